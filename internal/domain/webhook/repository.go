package webhook

import "context"

// Repository defines data access for webhook events
type Repository interface {
	Create(ctx context.Context, params CreateParams) (*Event, error)
	// UpdateStatus records the dispatch outcome and stamps processed_at.
	UpdateStatus(ctx context.Context, id, status, errMsg string) error
}
