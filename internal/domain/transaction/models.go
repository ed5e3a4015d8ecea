package transaction

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

var ErrInvalidInput = errors.New("invalid input")

// Transaction is a posted or pending movement on an account. Outflows are negative.
type Transaction struct {
	ID              string          `json:"id"` // Provider's transaction id
	AccountID       string          `json:"accountId"`
	UserID          int64           `json:"-"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Description     string          `json:"description"`
	MerchantName    string          `json:"merchantName,omitempty"`
	Category        string          `json:"category,omitempty"`
	TransactionDate time.Time       `json:"transactionDate"`
	Pending         bool            `json:"pending"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// UpsertTransactionParams is used for syncing transactions from the provider
type UpsertTransactionParams struct {
	ID              string // Provider's transaction id (used as PK)
	AccountID       string
	UserID          int64
	Amount          decimal.Decimal
	Currency        string
	Description     string
	MerchantName    string
	Category        string
	TransactionDate time.Time
	Pending         bool
}

// ListParams selects one page of a user's transactions
type ListParams struct {
	AccountID string
	Limit     int
	Offset    int
}

// Validate applies defaults and bounds
func (p *ListParams) Validate() error {
	if p.Limit == 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit < 0 || p.Limit > MaxLimit {
		return errors.New("limit must be between 1 and 500")
	}
	if p.Offset < 0 {
		return errors.New("offset must not be negative")
	}
	return nil
}

// ListResult is one page of transactions
type ListResult struct {
	Transactions []*Transaction `json:"transactions"`
	Total        int64          `json:"total"`
	Limit        int            `json:"limit"`
	Offset       int            `json:"offset"`
}

// ProviderTransaction is a transaction as reported by a bank data provider
type ProviderTransaction struct {
	ExternalID        string
	AccountExternalID string
	Amount            decimal.Decimal
	Currency          string
	Description       string
	MerchantName      string
	Category          string
	Date              time.Time
	Pending           bool
}

// SyncPage is one page of incremental changes from a provider cursor
type SyncPage struct {
	Added      []ProviderTransaction
	Modified   []ProviderTransaction
	Removed    []string
	NextCursor string
	HasMore    bool
}

// SyncStats counts the effect of applying sync pages
type SyncStats struct {
	Added    int `json:"added"`
	Modified int `json:"modified"`
	Removed  int `json:"removed"`
	Skipped  int `json:"skipped"`
}
