package dashboard

import "context"

// Cache stores computed summaries per user and currency.
type Cache interface {
	// Get reports false on a miss.
	Get(ctx context.Context, userID int64, code string) (*Summary, bool, error)
	Set(ctx context.Context, userID int64, code string, summary *Summary) error
	// Invalidate drops every cached currency for the user.
	Invalidate(ctx context.Context, userID int64) error
}
