package banklink

import (
	"context"
	"time"
)

// Repository defines data access for bank links
type Repository interface {
	// Create stores a link. Returns ErrDuplicateLink when (provider, external ID) exists.
	Create(ctx context.Context, params CreateParams) (*BankLink, error)
	GetByID(ctx context.Context, id string) (*BankLink, error)
	GetByExternalID(ctx context.Context, provider, externalID string) (*BankLink, error)
	ListByUserID(ctx context.Context, userID int64) ([]*BankLink, error)
	UpdateStatus(ctx context.Context, id, status, lastError string) error
	// MarkSynced sets the link active, clears its error and records the sync time.
	MarkSynced(ctx context.Context, id string, at time.Time) error
	UpdateCursor(ctx context.Context, id, cursor string) error
	Delete(ctx context.Context, id string) error
}
