package http

import (
	"context"
	"net/http"
	"strconv"

	"balancebook/internal/domain/transaction"
)

// TransactionLister pages through a user's transactions.
type TransactionLister interface {
	List(ctx context.Context, userID int64, params transaction.ListParams) (*transaction.ListResult, error)
}

type TransactionHandler struct {
	transactions TransactionLister
}

func NewTransactionHandler(transactions TransactionLister) *TransactionHandler {
	return &TransactionHandler{transactions: transactions}
}

// HandleList handles GET /api/transactions?accountId=&limit=&offset=
func (h *TransactionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	params := transaction.ListParams{AccountID: q.Get("accountId")}

	var err error
	if v := q.Get("limit"); v != "" {
		if params.Limit, err = strconv.Atoi(v); err != nil {
			http.Error(w, "limit must be an integer", http.StatusBadRequest)
			return
		}
	}
	if v := q.Get("offset"); v != "" {
		if params.Offset, err = strconv.Atoi(v); err != nil {
			http.Error(w, "offset must be an integer", http.StatusBadRequest)
			return
		}
	}

	result, err := h.transactions.List(r.Context(), userID, params)
	if err != nil {
		writeError(w, r, err, "Failed to list transactions")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
