package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"balancebook/internal/domain/account"
)

const accountColumns = `id, user_id, bank_link_id, external_id, name, mask, account_type, subtype, currency,
	current_balance, available_balance, is_manual, hidden, created_at, updated_at`

// AccountRepository implements the account.Repository interface for PostgreSQL
type AccountRepository struct {
	db *DB
}

// NewAccountRepository creates a new PostgreSQL account repository
func NewAccountRepository(db *DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create stores a manual account
func (r *AccountRepository) Create(ctx context.Context, params account.CreateParams) (*account.Account, error) {
	query := `
		INSERT INTO accounts (id, user_id, name, account_type, subtype, currency, current_balance, is_manual)
		VALUES ($1, $2, $3, $4, $5, $6, $7, true)
		RETURNING ` + accountColumns

	acc, err := scanAccount(r.db.QueryRowContext(ctx, query,
		uuid.NewString(), params.UserID, params.Name, params.AccountType, params.Subtype, params.Currency, params.Balance,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return acc, nil
}

// GetByID retrieves an account by its ID
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*account.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, account.ErrAccountNotFound
	}
	acc, err := scanAccount(r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, account.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return acc, nil
}

// ListByUserID retrieves all accounts for a specific user
func (r *AccountRepository) ListByUserID(ctx context.Context, userID int64) ([]*account.Account, error) {
	return r.list(ctx, `SELECT `+accountColumns+` FROM accounts WHERE user_id = $1 ORDER BY created_at, name`, userID)
}

// ListByBankLink retrieves the accounts fetched through one link
func (r *AccountRepository) ListByBankLink(ctx context.Context, bankLinkID string) ([]*account.Account, error) {
	return r.list(ctx, `SELECT `+accountColumns+` FROM accounts WHERE bank_link_id = $1 ORDER BY created_at, name`, bankLinkID)
}

// Upsert inserts or refreshes a provider account keyed by (bank_link_id, external_id).
// The user's hidden flag and display name are kept on update.
func (r *AccountRepository) Upsert(ctx context.Context, params account.UpsertParams) (*account.Account, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", account.ErrInvalidInput, err)
	}

	query := `
		INSERT INTO accounts (id, user_id, bank_link_id, external_id, name, mask, account_type, subtype, currency,
		                      current_balance, available_balance, is_manual)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, false)
		ON CONFLICT (bank_link_id, external_id) DO UPDATE
			SET mask = EXCLUDED.mask,
			    account_type = EXCLUDED.account_type,
			    subtype = EXCLUDED.subtype,
			    currency = EXCLUDED.currency,
			    current_balance = EXCLUDED.current_balance,
			    available_balance = EXCLUDED.available_balance,
			    updated_at = NOW()
		RETURNING ` + accountColumns

	acc, err := scanAccount(r.db.QueryRowContext(ctx, query,
		uuid.NewString(), params.UserID, params.BankLinkID, params.ExternalID, params.Name, params.Mask,
		params.AccountType, params.Subtype, params.Currency, params.CurrentBalance, params.AvailableBalance,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert account: %w", err)
	}
	return acc, nil
}

// Update renames or hides an account
func (r *AccountRepository) Update(ctx context.Context, id string, params account.UpdateParams) (*account.Account, error) {
	query := `
		UPDATE accounts
		SET name = COALESCE($2, name),
		    hidden = COALESCE($3, hidden),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + accountColumns

	var name sql.NullString
	var hidden sql.NullBool
	if params.Name != nil {
		name = sql.NullString{String: *params.Name, Valid: true}
	}
	if params.Hidden != nil {
		hidden = sql.NullBool{Bool: *params.Hidden, Valid: true}
	}

	acc, err := scanAccount(r.db.QueryRowContext(ctx, query, id, name, hidden))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, account.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update account: %w", err)
	}
	return acc, nil
}

// UpdateBalance sets the current balance of an account
func (r *AccountRepository) UpdateBalance(ctx context.Context, id string, balance decimal.Decimal) (*account.Account, error) {
	query := `
		UPDATE accounts SET current_balance = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + accountColumns

	acc, err := scanAccount(r.db.QueryRowContext(ctx, query, id, balance))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, account.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}
	return acc, nil
}

// Delete deletes an account by its ID
func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return account.ErrAccountNotFound
	}
	return nil
}

// ListUserIDs returns every user holding at least one account
func (r *AccountRepository) ListUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM accounts ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list account owners: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *AccountRepository) list(ctx context.Context, query string, arg any) ([]*account.Account, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*account.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}
	return accounts, nil
}

func scanAccount(row rowScanner) (*account.Account, error) {
	var acc account.Account
	var bankLinkID, externalID sql.NullString

	err := row.Scan(
		&acc.ID, &acc.UserID, &bankLinkID, &externalID, &acc.Name, &acc.Mask, &acc.AccountType, &acc.Subtype,
		&acc.Currency, &acc.CurrentBalance, &acc.AvailableBalance, &acc.IsManual, &acc.Hidden,
		&acc.CreatedAt, &acc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if bankLinkID.Valid {
		acc.BankLinkID = &bankLinkID.String
	}
	acc.ExternalID = externalID.String
	return &acc, nil
}
