package postgres

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"balancebook/internal/domain/transaction"
)

const transactionColumns = `id, account_id, user_id, amount, currency, description, merchant_name, category,
	transaction_date, pending, created_at, updated_at`

type TransactionRepository struct {
	db *DB
}

func NewTransactionRepository(db *DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Upsert(ctx context.Context, params transaction.UpsertTransactionParams) error {
	query := `
		INSERT INTO transactions (id, account_id, user_id, amount, currency, description, merchant_name,
		                          category, transaction_date, pending)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE
			SET amount = EXCLUDED.amount,
			    currency = EXCLUDED.currency,
			    description = EXCLUDED.description,
			    merchant_name = EXCLUDED.merchant_name,
			    category = EXCLUDED.category,
			    transaction_date = EXCLUDED.transaction_date,
			    pending = EXCLUDED.pending,
			    updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query,
		params.ID, params.AccountID, params.UserID, params.Amount, params.Currency, params.Description,
		params.MerchantName, params.Category, params.TransactionDate, params.Pending,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert transaction %s: %w", params.ID, err)
	}
	return nil
}

func (r *TransactionRepository) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("failed to delete transactions: %w", err)
	}
	return result.RowsAffected()
}

func (r *TransactionRepository) ListByUserID(ctx context.Context, userID int64, params transaction.ListParams) ([]*transaction.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE user_id = $1 AND ($2 = '' OR account_id::text = $2)
		ORDER BY transaction_date DESC, id
		LIMIT $3 OFFSET $4
	`
	rows, err := r.db.QueryContext(ctx, query, userID, params.AccountID, params.Limit, params.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	transactions := []*transaction.Transaction{}
	for rows.Next() {
		var t transaction.Transaction
		err := rows.Scan(
			&t.ID, &t.AccountID, &t.UserID, &t.Amount, &t.Currency, &t.Description, &t.MerchantName,
			&t.Category, &t.TransactionDate, &t.Pending, &t.CreatedAt, &t.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, &t)
	}
	return transactions, rows.Err()
}

func (r *TransactionRepository) CountByUserID(ctx context.Context, userID int64, accountID string) (int64, error) {
	query := `SELECT COUNT(*) FROM transactions WHERE user_id = $1 AND ($2 = '' OR account_id::text = $2)`

	var count int64
	if err := r.db.QueryRowContext(ctx, query, userID, accountID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}
