package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"balancebook/internal/domain/account"
)

// AccountService is the account surface used by AccountHandler.
type AccountService interface {
	CreateManualAccount(ctx context.Context, params account.CreateParams) (*account.Account, error)
	GetAccount(ctx context.Context, accountID string, userID int64) (*account.Account, error)
	ListAccountsByUserID(ctx context.Context, userID int64) ([]*account.Account, error)
	UpdateAccount(ctx context.Context, accountID string, userID int64, params account.UpdateParams) (*account.Account, error)
	UpdateManualBalance(ctx context.Context, accountID string, userID int64, balance decimal.Decimal) (*account.Account, error)
	DeleteAccount(ctx context.Context, accountID string, userID int64) error
}

type AccountHandler struct {
	accounts AccountService
}

func NewAccountHandler(accounts AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

type UpdateBalanceRequest struct {
	Balance decimal.Decimal `json:"balance"`
}

// HandleList handles GET /api/accounts
func (h *AccountHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	accounts, err := h.accounts.ListAccountsByUserID(r.Context(), userID)
	if err != nil {
		writeError(w, r, err, "Failed to list accounts")
		return
	}
	if accounts == nil {
		accounts = []*account.Account{}
	}
	writeJSON(w, http.StatusOK, accounts)
}

// HandleCreate handles POST /api/accounts (manual accounts only)
func (h *AccountHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var params account.CreateParams
	if err := decodeJSON(w, r, &params); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	params.UserID = userID

	acc, err := h.accounts.CreateManualAccount(r.Context(), params)
	if err != nil {
		writeError(w, r, err, "Failed to create account")
		return
	}
	writeJSON(w, http.StatusCreated, acc)
}

// HandleGet handles GET /api/accounts/{id}
func (h *AccountHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	acc, err := h.accounts.GetAccount(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		writeError(w, r, err, "Failed to get account")
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

// HandleUpdate handles PATCH /api/accounts/{id} (name, hidden)
func (h *AccountHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var params account.UpdateParams
	if err := decodeJSON(w, r, &params); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	acc, err := h.accounts.UpdateAccount(r.Context(), chi.URLParam(r, "id"), userID, params)
	if err != nil {
		writeError(w, r, err, "Failed to update account")
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

// HandleUpdateBalance handles POST /api/accounts/{id}/balance
func (h *AccountHandler) HandleUpdateBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req UpdateBalanceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	acc, err := h.accounts.UpdateManualBalance(r.Context(), chi.URLParam(r, "id"), userID, req.Balance)
	if err != nil {
		writeError(w, r, err, "Failed to update balance")
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

// HandleDelete handles DELETE /api/accounts/{id}
func (h *AccountHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.accounts.DeleteAccount(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		writeError(w, r, err, "Failed to delete account")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
