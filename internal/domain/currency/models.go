package currency

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire and storage format for calendar dates.
const DateLayout = "2006-01-02"

// Rate sources
const (
	SourceFrankfurter = "frankfurter"
	SourceTatum       = "tatum"
	SourceFilled      = "fill_forward"
)

// Domain errors
var (
	ErrInvalidCurrency  = errors.New("invalid currency code")
	ErrCurrencyMismatch = errors.New("currency mismatch")
	ErrRateNotFound     = errors.New("exchange rate not found")
	ErrInvalidRange     = errors.New("start date must not be after end date")
)

// ExchangeRate is one stored daily rate: 1 BaseCurrency = Rate TargetCurrency.
type ExchangeRate struct {
	BaseCurrency   string          `json:"baseCurrency"`
	TargetCurrency string          `json:"targetCurrency"`
	Date           time.Time       `json:"date"`
	Rate           decimal.Decimal `json:"rate"`
	Source         string          `json:"source"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// BackfillResult summarises one backfill run.
type BackfillResult struct {
	Currencies []string `json:"currencies"`
	Requested  int      `json:"requested"`
	Existing   int      `json:"existing"`
	Fetched    int      `json:"fetched"`
	Filled     int      `json:"filled"`
	Skipped    int      `json:"skipped"`
	Stored     int      `json:"stored"`
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateKey formats t as YYYY-MM-DD.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD date as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// DateRange returns every calendar day from start to end inclusive.
func DateRange(start, end time.Time) []time.Time {
	start, end = Day(start), Day(end)
	if start.After(end) {
		return nil
	}
	days := make([]time.Time, 0, int(end.Sub(start).Hours()/24)+1)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}
