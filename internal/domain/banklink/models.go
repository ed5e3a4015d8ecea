package banklink

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Providers
const (
	ProviderPlaid = "plaid"
	ProviderTatum = "tatum"
)

// Link statuses
const (
	StatusActive        = "active"
	StatusLoginRequired = "login_required"
	StatusError         = "error"
	StatusRevoked       = "revoked"
)

// Domain errors
var (
	ErrLinkNotFound       = errors.New("bank link not found")
	ErrForbidden          = errors.New("access forbidden")
	ErrDuplicateLink      = errors.New("bank link already exists")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnsupportedChain   = errors.New("unsupported blockchain")
	ErrInvalidAddress     = errors.New("invalid wallet address")
	ErrProviderNotEnabled = errors.New("provider is not configured")
	// ErrLoginRequired is returned by providers when the user must re-authenticate.
	ErrLoginRequired = errors.New("provider login required")
	// ErrProviderFailure wraps any other provider error.
	ErrProviderFailure = errors.New("provider request failed")
)

// BankLink is a connection to an external institution or wallet
type BankLink struct {
	ID                 string            `json:"id"`
	UserID             int64             `json:"userId"`
	Provider           string            `json:"provider"`
	ExternalID         string            `json:"externalId"` // Plaid item_id or chain:address
	InstitutionName    string            `json:"institutionName"`
	AccessToken        string            `json:"-"` // encrypted at rest
	Status             string            `json:"status"`
	LastError          string            `json:"lastError,omitempty"`
	TransactionsCursor string            `json:"-"`
	LastSyncedAt       *time.Time        `json:"lastSyncedAt,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
	CreatedAt          time.Time         `json:"createdAt"`
	UpdatedAt          time.Time         `json:"updatedAt"`
}

// Capturable reports whether balances should be fetched for the link.
func (l *BankLink) Capturable() bool {
	return l.Status == StatusActive || l.Status == StatusError
}

// CreateParams contains parameters for storing a new link
type CreateParams struct {
	UserID          int64
	Provider        string
	ExternalID      string
	InstitutionName string
	AccessToken     string // already encrypted
	Metadata        map[string]string
}

// Validate validates the create parameters
func (p CreateParams) Validate() error {
	if p.UserID <= 0 {
		return errors.New("valid user ID is required")
	}
	if p.Provider != ProviderPlaid && p.Provider != ProviderTatum {
		return errors.New("unknown provider")
	}
	if p.ExternalID == "" {
		return errors.New("external ID is required")
	}
	if p.Provider == ProviderPlaid && p.AccessToken == "" {
		return errors.New("access token is required")
	}
	return nil
}

// ProviderAccount is an account with its balance as reported by a provider
type ProviderAccount struct {
	ExternalID string
	Name       string
	Mask       string
	Type       string
	Subtype    string
	Currency   string
	Current    decimal.Decimal
	Available  decimal.NullDecimal
}

// LinkToken is a short-lived token used by the client to open Plaid Link
type LinkToken struct {
	Token      string    `json:"linkToken"`
	Expiration time.Time `json:"expiration"`
}

// PublicTokenExchange is the result of exchanging a Plaid Link public token
type PublicTokenExchange struct {
	AccessToken string
	ItemID      string
}
