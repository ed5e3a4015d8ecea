package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"balancebook/internal/domain/balance"
	"balancebook/internal/domain/currency"
	"balancebook/internal/domain/dashboard"
)

// BalanceQuerier serves converted balance history.
type BalanceQuerier interface {
	Query(ctx context.Context, userID int64, params balance.QueryParams) (*balance.Series, error)
}

// DashboardService serves the per-user summary.
type DashboardService interface {
	Summary(ctx context.Context, userID int64, code string) (*dashboard.Summary, error)
}

type BalanceHandler struct {
	balances  BalanceQuerier
	dashboard DashboardService
}

func NewBalanceHandler(balances BalanceQuerier, dashboard DashboardService) *BalanceHandler {
	return &BalanceHandler{balances: balances, dashboard: dashboard}
}

// HandleQuery handles GET /api/balances?start=&end=&currency=&accountId=
// Omitted dates default to the last 30 days; accountId may repeat or be
// comma separated.
func (h *BalanceHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	params := balance.QueryParams{Currency: q.Get("currency")}

	var err error
	if params.Start, err = optionalDate(q.Get("start")); err != nil {
		http.Error(w, "start: "+err.Error(), http.StatusBadRequest)
		return
	}
	if params.End, err = optionalDate(q.Get("end")); err != nil {
		http.Error(w, "end: "+err.Error(), http.StatusBadRequest)
		return
	}
	for _, v := range q["accountId"] {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				params.AccountIDs = append(params.AccountIDs, id)
			}
		}
	}

	series, err := h.balances.Query(r.Context(), userID, params)
	if err != nil {
		writeError(w, r, err, "Failed to query balances")
		return
	}
	writeJSON(w, http.StatusOK, series)
}

// HandleDashboard handles GET /api/dashboard?currency=
func (h *BalanceHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	summary, err := h.dashboard.Summary(r.Context(), userID, r.URL.Query().Get("currency"))
	if err != nil {
		writeError(w, r, err, "Failed to build dashboard")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// optionalDate parses YYYY-MM-DD; "" yields the zero time.
func optionalDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	d, err := currency.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected YYYY-MM-DD, got %q", s)
	}
	return d, nil
}
