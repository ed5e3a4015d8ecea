package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"balancebook/internal/domain/currency"
)

// SnapshotRecorder stores an account's balance for a calendar day.
type SnapshotRecorder interface {
	RecordSnapshot(ctx context.Context, acc *Account, date time.Time) error
}

// CurrencyBackfiller loads exchange-rate history for currencies in the background.
type CurrencyBackfiller interface {
	EnsureCurrencyAsync(ctx context.Context, codes ...string)
}

// CacheInvalidator drops cached per-user views that depend on accounts.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, userID int64) error
}

// Service contains the business logic for account operations
type Service struct {
	repo      Repository
	snapshots SnapshotRecorder
	backfill  CurrencyBackfiller
	cache     CacheInvalidator
	now       func() time.Time
}

// NewService creates a new account service. snapshots, backfill and cache
// may be nil.
func NewService(repo Repository, snapshots SnapshotRecorder, backfill CurrencyBackfiller, cache CacheInvalidator) *Service {
	return &Service{repo: repo, snapshots: snapshots, backfill: backfill, cache: cache, now: time.Now}
}

// CreateManualAccount creates a manual account and records today's balance.
func (s *Service) CreateManualAccount(ctx context.Context, params CreateParams) (*Account, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	acc, err := s.repo.Create(ctx, params)
	if err != nil {
		return nil, err
	}

	s.recordToday(ctx, acc)
	s.invalidate(ctx, acc.UserID)
	if s.backfill != nil && acc.Currency != currency.USD {
		s.backfill.EnsureCurrencyAsync(ctx, acc.Currency)
	}
	return acc, nil
}

// GetAccount retrieves an account by ID and verifies user ownership
func (s *Service) GetAccount(ctx context.Context, accountID string, userID int64) (*Account, error) {
	account, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	// Business rule: verify ownership
	if account.UserID != userID {
		return nil, ErrForbidden
	}

	return account, nil
}

// ListAccountsByUserID retrieves all accounts for a specific user
func (s *Service) ListAccountsByUserID(ctx context.Context, userID int64) ([]*Account, error) {
	if userID <= 0 {
		return nil, errors.New("valid user ID is required")
	}

	return s.repo.ListByUserID(ctx, userID)
}

// UpdateAccount renames or hides an account
func (s *Service) UpdateAccount(ctx context.Context, accountID string, userID int64, params UpdateParams) (*Account, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if _, err := s.GetAccount(ctx, accountID, userID); err != nil {
		return nil, err
	}
	acc, err := s.repo.Update(ctx, accountID, params)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, userID)
	return acc, nil
}

// UpdateManualBalance sets a manual account's balance and records it for today.
func (s *Service) UpdateManualBalance(ctx context.Context, accountID string, userID int64, balance decimal.Decimal) (*Account, error) {
	acc, err := s.GetAccount(ctx, accountID, userID)
	if err != nil {
		return nil, err
	}
	if !acc.IsManual {
		return nil, ErrNotManual
	}

	acc, err = s.repo.UpdateBalance(ctx, accountID, currency.Round(balance, acc.Currency))
	if err != nil {
		return nil, err
	}
	s.recordToday(ctx, acc)
	s.invalidate(ctx, userID)
	return acc, nil
}

// DeleteAccount deletes a manual account after verifying ownership.
// Provider accounts go away with their bank link.
func (s *Service) DeleteAccount(ctx context.Context, accountID string, userID int64) error {
	acc, err := s.GetAccount(ctx, accountID, userID)
	if err != nil {
		return err
	}
	if !acc.IsManual {
		return ErrNotManual
	}

	if err := s.repo.Delete(ctx, accountID); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

func (s *Service) recordToday(ctx context.Context, acc *Account) {
	if s.snapshots == nil {
		return
	}
	if err := s.snapshots.RecordSnapshot(ctx, acc, s.now()); err != nil {
		slog.WarnContext(ctx, "failed to record manual balance snapshot",
			slog.String("account_id", acc.ID),
			slog.Any("error", err),
		)
	}
}

func (s *Service) invalidate(ctx context.Context, userID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		slog.WarnContext(ctx, "failed to invalidate dashboard cache",
			slog.Int64("user_id", userID),
			slog.Any("error", err),
		)
	}
}
