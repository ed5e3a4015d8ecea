package transaction

import (
	"context"
	"fmt"
	"log/slog"
)

// Service lists transactions and applies provider sync pages
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns one page of the user's transactions, optionally for a single account.
func (s *Service) List(ctx context.Context, userID int64, params ListParams) (*ListResult, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	txs, err := s.repo.ListByUserID(ctx, userID, params)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.CountByUserID(ctx, userID, params.AccountID)
	if err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []*Transaction{}
	}

	return &ListResult{Transactions: txs, Total: total, Limit: params.Limit, Offset: params.Offset}, nil
}

// ApplySync writes one sync page. accountIDs maps provider account ids to
// local account ids; transactions for unknown accounts are skipped.
func (s *Service) ApplySync(ctx context.Context, userID int64, accountIDs map[string]string, page *SyncPage) (SyncStats, error) {
	var stats SyncStats

	upsert := func(tx ProviderTransaction) (bool, error) {
		accountID, ok := accountIDs[tx.AccountExternalID]
		if !ok {
			slog.DebugContext(ctx, "skipping transaction for unknown account",
				slog.String("transaction_id", tx.ExternalID),
				slog.String("account_external_id", tx.AccountExternalID),
			)
			return false, nil
		}
		err := s.repo.Upsert(ctx, UpsertTransactionParams{
			ID:              tx.ExternalID,
			AccountID:       accountID,
			UserID:          userID,
			Amount:          tx.Amount,
			Currency:        tx.Currency,
			Description:     tx.Description,
			MerchantName:    tx.MerchantName,
			Category:        TranslateCategory(tx.Category),
			TransactionDate: tx.Date,
			Pending:         tx.Pending,
		})
		if err != nil {
			return false, fmt.Errorf("failed to upsert transaction %s: %w", tx.ExternalID, err)
		}
		return true, nil
	}

	for _, tx := range page.Added {
		ok, err := upsert(tx)
		if err != nil {
			return stats, err
		}
		if ok {
			stats.Added++
		} else {
			stats.Skipped++
		}
	}
	for _, tx := range page.Modified {
		ok, err := upsert(tx)
		if err != nil {
			return stats, err
		}
		if ok {
			stats.Modified++
		} else {
			stats.Skipped++
		}
	}

	if len(page.Removed) > 0 {
		n, err := s.repo.DeleteByIDs(ctx, page.Removed)
		if err != nil {
			return stats, fmt.Errorf("failed to delete removed transactions: %w", err)
		}
		stats.Removed = int(n)
	}

	return stats, nil
}
