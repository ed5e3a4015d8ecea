package account

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"balancebook/internal/domain/currency"
)

// Account types
const (
	TypeDepository = "depository"
	TypeCredit     = "credit"
	TypeLoan       = "loan"
	TypeInvestment = "investment"
	TypeCrypto     = "crypto"
	TypeOther      = "other"
)

var accountTypes = map[string]struct{}{
	TypeDepository: {},
	TypeCredit:     {},
	TypeLoan:       {},
	TypeInvestment: {},
	TypeCrypto:     {},
	TypeOther:      {},
}

// Domain errors
var (
	ErrInvalidAccountType = errors.New("invalid account type")
	ErrAccountNotFound    = errors.New("account not found")
	ErrForbidden          = errors.New("access forbidden")
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotManual          = errors.New("account is managed by a linked provider")
)

// Account represents a financial account domain entity
type Account struct {
	ID               string              `json:"id"`
	UserID           int64               `json:"userId"`
	BankLinkID       *string             `json:"bankLinkId,omitempty"` // NULL for manual accounts
	ExternalID       string              `json:"-"`
	Name             string              `json:"name"`
	Mask             string              `json:"mask,omitempty"`
	AccountType      string              `json:"accountType"`
	Subtype          string              `json:"subtype,omitempty"`
	Currency         string              `json:"currency"`
	CurrentBalance   decimal.Decimal     `json:"currentBalance"`
	AvailableBalance decimal.NullDecimal `json:"availableBalance"`
	IsManual         bool                `json:"isManual"`
	Hidden           bool                `json:"hidden"`
	CreatedAt        time.Time           `json:"createdAt"`
	UpdatedAt        time.Time           `json:"updatedAt"`
}

// IsLiability reports whether the account's balance is money owed.
func (a *Account) IsLiability() bool {
	return IsLiabilityType(a.AccountType)
}

// IsLiabilityType reports whether accounts of type t hold debt.
func IsLiabilityType(t string) bool {
	return t == TypeCredit || t == TypeLoan
}

// CreateParams contains parameters for creating a manual account
type CreateParams struct {
	UserID      int64           `json:"-"`
	Name        string          `json:"name"`
	AccountType string          `json:"accountType"`
	Subtype     string          `json:"subtype"`
	Currency    string          `json:"currency"`
	Balance     decimal.Decimal `json:"balance"`
}

// Validate validates the create parameters
func (p *CreateParams) Validate() error {
	if p.UserID <= 0 {
		return errors.New("valid user ID is required")
	}
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return errors.New("account name is required")
	}
	if p.AccountType == "" {
		p.AccountType = TypeOther
	}
	if !IsValidAccountType(p.AccountType) {
		return ErrInvalidAccountType
	}
	p.Currency = currency.NormalizeCode(p.Currency)
	if err := currency.ValidateCode(p.Currency); err != nil {
		return err
	}
	p.Balance = currency.Round(p.Balance, p.Currency)
	return nil
}

// UpsertParams describes a provider account, keyed by (BankLinkID, ExternalID)
type UpsertParams struct {
	UserID           int64
	BankLinkID       string
	ExternalID       string
	Name             string
	Mask             string
	AccountType      string
	Subtype          string
	Currency         string
	CurrentBalance   decimal.Decimal
	AvailableBalance decimal.NullDecimal
}

// Validate validates the upsert parameters
func (p *UpsertParams) Validate() error {
	if p.UserID <= 0 {
		return errors.New("valid user ID is required for upsert")
	}
	if p.BankLinkID == "" || p.ExternalID == "" {
		return errors.New("bank link and external ID are required for upsert")
	}
	if p.Name == "" {
		return errors.New("account name is required")
	}
	if !IsValidAccountType(p.AccountType) {
		p.AccountType = TypeOther
	}
	p.Currency = currency.NormalizeCode(p.Currency)
	return currency.ValidateCode(p.Currency)
}

// UpdateParams contains parameters for updating an account
type UpdateParams struct {
	Name   *string `json:"name"`
	Hidden *bool   `json:"hidden"`
}

// Validate validates the update parameters
func (p *UpdateParams) Validate() error {
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return errors.New("account name cannot be empty")
		}
		p.Name = &name
	}
	if p.Name == nil && p.Hidden == nil {
		return errors.New("nothing to update")
	}
	return nil
}

// IsValidAccountType checks if the provided account type is valid.
func IsValidAccountType(t string) bool {
	_, ok := accountTypes[t]
	return ok
}

// NormalizeType maps a provider account type onto one of the known types.
func NormalizeType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	switch t {
	case "brokerage":
		return TypeInvestment
	case "":
		return TypeOther
	}
	if IsValidAccountType(t) {
		return t
	}
	return TypeOther
}
