package balance

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"balancebook/internal/domain/currency"
)

const (
	// MaxQueryDays bounds a single balance query, two years inclusive.
	MaxQueryDays     = 731
	DefaultQueryDays = 30
)

// Domain errors
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrRangeTooLarge = errors.New("date range exceeds 731 days")
	ErrForbidden     = errors.New("access forbidden")
)

// Snapshot is an account's balance on one calendar day
type Snapshot struct {
	ID               string              `json:"id"`
	AccountID        string              `json:"accountId"`
	UserID           int64               `json:"-"`
	Date             time.Time           `json:"date"`
	CurrentBalance   decimal.Decimal     `json:"currentBalance"`
	AvailableBalance decimal.NullDecimal `json:"availableBalance"`
	Currency         string              `json:"currency"`
	CreatedAt        time.Time           `json:"createdAt"`
}

// UpsertParams replaces the (AccountID, Date) snapshot
type UpsertParams struct {
	AccountID        string
	UserID           int64
	Date             time.Time
	CurrentBalance   decimal.Decimal
	AvailableBalance decimal.NullDecimal
	Currency         string
}

func (p UpsertParams) Validate() error {
	if p.AccountID == "" {
		return errors.New("account ID is required")
	}
	if p.UserID <= 0 {
		return errors.New("valid user ID is required")
	}
	if p.Date.IsZero() {
		return errors.New("snapshot date is required")
	}
	return currency.ValidateCode(p.Currency)
}

// QueryParams selects a balance series. Zero values take defaults.
type QueryParams struct {
	Start      time.Time
	End        time.Time
	Currency   string
	AccountIDs []string
}

// Series is a per-day balance history converted into one currency
type Series struct {
	Currency     string        `json:"currency"`
	Start        string        `json:"start"`
	End          string        `json:"end"`
	Days         []Day         `json:"days"`
	MissingRates []MissingRate `json:"missingRates"`
}

// Day holds the converted totals of one date. Liabilities is the amount owed
// and Total is Assets minus Liabilities.
type Day struct {
	Date        string         `json:"date"`
	Total       currency.Money `json:"total"`
	Assets      currency.Money `json:"assets"`
	Liabilities currency.Money `json:"liabilities"`
	Accounts    []AccountValue `json:"accounts"`
}

// AccountValue is one account's balance on a day. Converted is nil when no
// rate was available.
type AccountValue struct {
	AccountID   string          `json:"accountId"`
	Name        string          `json:"name"`
	AccountType string          `json:"accountType"`
	BankLinkID  *string         `json:"bankLinkId,omitempty"`
	Balance     currency.Money  `json:"balance"`
	Converted   *currency.Money `json:"converted"`
}

// MissingRate lists the dates a currency could not be converted
type MissingRate struct {
	Currency string   `json:"currency"`
	Dates    []string `json:"dates"`
}

// CaptureResult summarises one capture run for a user
type CaptureResult struct {
	UserID    int64       `json:"userId"`
	Links     int         `json:"links"`
	Accounts  int         `json:"accounts"`
	Snapshots int         `json:"snapshots"`
	Errors    []LinkError `json:"errors,omitempty"`
}

// LinkError records a link whose provider fetch failed
type LinkError struct {
	LinkID      string `json:"linkId"`
	Institution string `json:"institution"`
	Status      string `json:"status"`
	Error       string `json:"error"`
}
