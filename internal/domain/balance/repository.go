package balance

import (
	"context"
	"time"
)

// Repository defines data access for balance snapshots
type Repository interface {
	// UpsertSnapshot inserts or replaces the account's snapshot for the day.
	UpsertSnapshot(ctx context.Context, params UpsertParams) (*Snapshot, error)

	// ListRange returns snapshots dated within [start, end], ordered by account then date.
	ListRange(ctx context.Context, accountIDs []string, start, end time.Time) ([]Snapshot, error)

	// LatestBefore returns, per account, the newest snapshot dated strictly before date.
	LatestBefore(ctx context.Context, accountIDs []string, date time.Time) ([]Snapshot, error)
}
