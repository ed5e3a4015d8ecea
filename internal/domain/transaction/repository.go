package transaction

import "context"

// Repository defines the interface for transaction data access
type Repository interface {
	Upsert(ctx context.Context, params UpsertTransactionParams) error
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
	// ListByUserID returns a page of the user's transactions, newest first.
	ListByUserID(ctx context.Context, userID int64, params ListParams) ([]*Transaction, error)
	CountByUserID(ctx context.Context, userID int64, accountID string) (int64, error)
}
