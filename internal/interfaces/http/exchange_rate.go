package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"balancebook/internal/domain/balance"
	"balancebook/internal/domain/currency"
)

const (
	// defaultBackfillDays is used when a backfill request has no start date.
	defaultBackfillDays = 365
	// maxBackfillDays bounds a requested range, inclusive. Older rates are
	// never read by a balance query.
	maxBackfillDays = balance.MaxQueryDays
)

// RateConverter converts amounts between currencies.
type RateConverter interface {
	GetRate(ctx context.Context, from, to string, date time.Time) (decimal.Decimal, error)
	Convert(ctx context.Context, amount decimal.Decimal, from, to string, date time.Time) (currency.Money, error)
}

// RateBackfiller loads missing daily rates.
type RateBackfiller interface {
	Backfill(ctx context.Context, currencies []string, start, end time.Time) (*currency.BackfillResult, error)
}

type ExchangeRateHandler struct {
	rates    RateConverter
	backfill RateBackfiller
	now      func() time.Time
}

func NewExchangeRateHandler(rates RateConverter, backfill RateBackfiller) *ExchangeRateHandler {
	return &ExchangeRateHandler{rates: rates, backfill: backfill, now: time.Now}
}

type ConvertResponse struct {
	Amount    currency.Money  `json:"amount"`
	Converted currency.Money  `json:"converted"`
	Rate      decimal.Decimal `json:"rate"`
	Date      string          `json:"date"`
}

type BackfillRequest struct {
	Currencies []string `json:"currencies"`
	Start      string   `json:"start"`
	End        string   `json:"end"`
}

// HandleConvert handles GET /api/exchange-rates/convert?amount=&from=&to=&date=
func (h *ExchangeRateHandler) HandleConvert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	amount, err := decimal.NewFromString(q.Get("amount"))
	if err != nil {
		http.Error(w, "amount must be a decimal number", http.StatusBadRequest)
		return
	}
	from, to := currency.NormalizeCode(q.Get("from")), currency.NormalizeCode(q.Get("to"))
	date, err := optionalDate(q.Get("date"))
	if err != nil {
		http.Error(w, "date: "+err.Error(), http.StatusBadRequest)
		return
	}
	if date.IsZero() {
		date = h.now()
	}
	date = currency.Day(date)

	rate, err := h.rates.GetRate(r.Context(), from, to, date)
	if err != nil {
		writeError(w, r, err, "Failed to get exchange rate")
		return
	}
	converted, err := h.rates.Convert(r.Context(), amount, from, to, date)
	if err != nil {
		writeError(w, r, err, "Failed to convert amount")
		return
	}

	writeJSON(w, http.StatusOK, ConvertResponse{
		Amount:    currency.NewMoney(amount, from),
		Converted: converted,
		Rate:      rate,
		Date:      currency.DateKey(date),
	})
}

// HandleBackfill handles POST /api/exchange-rates/backfill
func (h *ExchangeRateHandler) HandleBackfill(w http.ResponseWriter, r *http.Request) {
	var req BackfillRequest
	if err := decodeJSON(w, r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Currencies) == 0 {
		http.Error(w, "currencies are required", http.StatusBadRequest)
		return
	}

	end, err := optionalDate(req.End)
	if err != nil {
		http.Error(w, "end: "+err.Error(), http.StatusBadRequest)
		return
	}
	if end.IsZero() {
		end = currency.Day(h.now())
	}
	start, err := optionalDate(req.Start)
	if err != nil {
		http.Error(w, "start: "+err.Error(), http.StatusBadRequest)
		return
	}
	if start.IsZero() {
		start = end.AddDate(0, 0, -defaultBackfillDays)
	}
	if start.After(end) {
		http.Error(w, currency.ErrInvalidRange.Error(), http.StatusBadRequest)
		return
	}
	if days := int(end.Sub(start).Hours()/24) + 1; days > maxBackfillDays {
		http.Error(w, fmt.Sprintf("range must not exceed %d days", maxBackfillDays), http.StatusBadRequest)
		return
	}

	result, err := h.backfill.Backfill(r.Context(), req.Currencies, start, end)
	if err != nil {
		writeError(w, r, err, "Failed to backfill exchange rates")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
