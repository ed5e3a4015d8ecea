package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"balancebook/internal/domain/banklink"
)

const bankLinkColumns = `id, user_id, provider, external_id, institution_name, access_token, status, last_error,
	transactions_cursor, last_synced_at, metadata, created_at, updated_at`

// BankLinkRepository implements banklink.Repository for PostgreSQL
type BankLinkRepository struct {
	db *DB
}

func NewBankLinkRepository(db *DB) *BankLinkRepository {
	return &BankLinkRepository{db: db}
}

func (r *BankLinkRepository) Create(ctx context.Context, params banklink.CreateParams) (*banklink.BankLink, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", banklink.ErrInvalidInput, err)
	}
	metadata, err := json.Marshal(params.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal link metadata: %w", err)
	}
	if params.Metadata == nil {
		metadata = []byte("{}")
	}

	query := `
		INSERT INTO bank_links (id, user_id, provider, external_id, institution_name, access_token, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + bankLinkColumns

	link, err := scanBankLink(r.db.QueryRowContext(ctx, query,
		uuid.NewString(), params.UserID, params.Provider, params.ExternalID, params.InstitutionName, params.AccessToken, metadata,
	))
	if isUniqueViolation(err) {
		return nil, banklink.ErrDuplicateLink
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create bank link: %w", err)
	}
	return link, nil
}

func (r *BankLinkRepository) GetByID(ctx context.Context, id string) (*banklink.BankLink, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, banklink.ErrLinkNotFound
	}
	return r.get(ctx, `SELECT `+bankLinkColumns+` FROM bank_links WHERE id = $1`, id)
}

func (r *BankLinkRepository) GetByExternalID(ctx context.Context, provider, externalID string) (*banklink.BankLink, error) {
	return r.get(ctx, `SELECT `+bankLinkColumns+` FROM bank_links WHERE provider = $1 AND external_id = $2`, provider, externalID)
}

func (r *BankLinkRepository) ListByUserID(ctx context.Context, userID int64) ([]*banklink.BankLink, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+bankLinkColumns+` FROM bank_links WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bank links: %w", err)
	}
	defer rows.Close()

	var links []*banklink.BankLink
	for rows.Next() {
		link, err := scanBankLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bank link: %w", err)
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

func (r *BankLinkRepository) UpdateStatus(ctx context.Context, id, status, lastError string) error {
	return r.exec(ctx, `UPDATE bank_links SET status = $2, last_error = $3, updated_at = NOW() WHERE id = $1`, id, status, lastError)
}

func (r *BankLinkRepository) MarkSynced(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx,
		`UPDATE bank_links SET status = 'active', last_error = '', last_synced_at = $2, updated_at = NOW() WHERE id = $1`,
		id, at,
	)
}

func (r *BankLinkRepository) UpdateCursor(ctx context.Context, id, cursor string) error {
	return r.exec(ctx, `UPDATE bank_links SET transactions_cursor = $2, updated_at = NOW() WHERE id = $1`, id, cursor)
}

// Delete removes the link; its accounts, snapshots and transactions cascade.
func (r *BankLinkRepository) Delete(ctx context.Context, id string) error {
	return r.exec(ctx, `DELETE FROM bank_links WHERE id = $1`, id)
}

// ListUserIDs returns every user with at least one link
func (r *BankLinkRepository) ListUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM bank_links ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list link owners: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *BankLinkRepository) get(ctx context.Context, query string, args ...any) (*banklink.BankLink, error) {
	link, err := scanBankLink(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, banklink.ErrLinkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bank link: %w", err)
	}
	return link, nil
}

func (r *BankLinkRepository) exec(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update bank link: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return banklink.ErrLinkNotFound
	}
	return nil
}

func scanBankLink(row rowScanner) (*banklink.BankLink, error) {
	var link banklink.BankLink
	var lastSynced sql.NullTime
	var metadata []byte

	err := row.Scan(
		&link.ID, &link.UserID, &link.Provider, &link.ExternalID, &link.InstitutionName, &link.AccessToken,
		&link.Status, &link.LastError, &link.TransactionsCursor, &lastSynced, &metadata,
		&link.CreatedAt, &link.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastSynced.Valid {
		link.LastSyncedAt = &lastSynced.Time
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &link.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal link metadata: %w", err)
		}
	}
	return &link, nil
}
