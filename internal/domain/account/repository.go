package account

import (
	"context"

	"github.com/shopspring/decimal"
)

// Repository defines the interface for account data access
// This interface is defined in the domain layer, but implemented in the infrastructure layer
type Repository interface {
	// Create creates a manual account
	Create(ctx context.Context, params CreateParams) (*Account, error)

	// GetByID retrieves an account by its ID
	GetByID(ctx context.Context, id string) (*Account, error)

	// ListByUserID retrieves all accounts for a specific user
	ListByUserID(ctx context.Context, userID int64) ([]*Account, error)

	// ListByBankLink retrieves the accounts fetched through one bank link
	ListByBankLink(ctx context.Context, bankLinkID string) ([]*Account, error)

	// Upsert creates or updates a provider account by (bank link, external ID)
	Upsert(ctx context.Context, params UpsertParams) (*Account, error)

	// Update changes user-editable fields
	Update(ctx context.Context, id string, params UpdateParams) (*Account, error)

	// UpdateBalance sets the current balance of a manual account
	UpdateBalance(ctx context.Context, id string, balance decimal.Decimal) (*Account, error)

	// Delete removes an account
	Delete(ctx context.Context, id string) error

	// ListUserIDs returns every user that owns at least one account
	ListUserIDs(ctx context.Context) ([]int64, error)
}
