package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"balancebook/internal/domain/balance"
	"balancebook/internal/domain/currency"
)

const snapshotColumns = `id, account_id, user_id, snapshot_date, current_balance, available_balance, currency, created_at`

// SnapshotRepository implements balance.Repository for PostgreSQL
type SnapshotRepository struct {
	db *DB
}

func NewSnapshotRepository(db *DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

func (r *SnapshotRepository) UpsertSnapshot(ctx context.Context, params balance.UpsertParams) (*balance.Snapshot, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", balance.ErrInvalidInput, err)
	}

	query := `
		INSERT INTO balance_snapshots (id, account_id, user_id, snapshot_date, current_balance, available_balance, currency)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (account_id, snapshot_date) DO UPDATE
			SET current_balance = EXCLUDED.current_balance,
			    available_balance = EXCLUDED.available_balance,
			    currency = EXCLUDED.currency
		RETURNING ` + snapshotColumns

	snap, err := scanSnapshot(r.db.QueryRowContext(ctx, query,
		uuid.NewString(), params.AccountID, params.UserID, currency.DateKey(params.Date),
		params.CurrentBalance, params.AvailableBalance, params.Currency,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert snapshot: %w", err)
	}
	return snap, nil
}

func (r *SnapshotRepository) ListRange(ctx context.Context, accountIDs []string, start, end time.Time) ([]balance.Snapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM balance_snapshots
		WHERE account_id = ANY($1::uuid[]) AND snapshot_date BETWEEN $2 AND $3
		ORDER BY account_id, snapshot_date
	`
	return r.list(ctx, query, pq.Array(accountIDs), currency.DateKey(start), currency.DateKey(end))
}

func (r *SnapshotRepository) LatestBefore(ctx context.Context, accountIDs []string, date time.Time) ([]balance.Snapshot, error) {
	query := `
		SELECT DISTINCT ON (account_id) ` + snapshotColumns + `
		FROM balance_snapshots
		WHERE account_id = ANY($1::uuid[]) AND snapshot_date < $2
		ORDER BY account_id, snapshot_date DESC
	`
	return r.list(ctx, query, pq.Array(accountIDs), currency.DateKey(date))
}

func (r *SnapshotRepository) list(ctx context.Context, query string, args ...any) ([]balance.Snapshot, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []balance.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snaps = append(snaps, *snap)
	}
	return snaps, rows.Err()
}

func scanSnapshot(row rowScanner) (*balance.Snapshot, error) {
	var s balance.Snapshot
	err := row.Scan(&s.ID, &s.AccountID, &s.UserID, &s.Date, &s.CurrentBalance, &s.AvailableBalance, &s.Currency, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	s.Date = currency.Day(s.Date)
	return &s, nil
}
