package balance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"balancebook/internal/domain/account"
	"balancebook/internal/domain/banklink"
	"balancebook/internal/domain/currency"
)

const captureConcurrency = 4

// AccountStore writes provider accounts and lists a user's accounts.
type AccountStore interface {
	ListByUserID(ctx context.Context, userID int64) ([]*account.Account, error)
	Upsert(ctx context.Context, params account.UpsertParams) (*account.Account, error)
}

// LinkStore is the subset of banklink.Repository used during capture.
type LinkStore interface {
	ListByUserID(ctx context.Context, userID int64) ([]*banklink.BankLink, error)
	UpdateStatus(ctx context.Context, id, status, lastError string) error
	MarkSynced(ctx context.Context, id string, at time.Time) error
}

// AccountFetcher reads current balances from a link's provider.
type AccountFetcher interface {
	Enabled(provider string) bool
	FetchAccounts(ctx context.Context, link *banklink.BankLink) ([]banklink.ProviderAccount, error)
}

// BalancesNotifier sends a silent refresh hint after new snapshots.
type BalancesNotifier interface {
	NotifyBalancesUpdated(ctx context.Context, userID int64) error
}

// SnapshotDeps groups the collaborators of SnapshotService. Backfill, Cache and
// Notifier may be nil.
type SnapshotDeps struct {
	Snapshots Repository
	Accounts  AccountStore
	Links     LinkStore
	Fetcher   AccountFetcher
	Backfill  account.CurrencyBackfiller
	Cache     banklink.CacheInvalidator
	Notifier  BalancesNotifier
}

// SnapshotService captures provider balances into daily snapshots
type SnapshotService struct {
	snapshots Repository
	accounts  AccountStore
	links     LinkStore
	fetcher   AccountFetcher
	backfill  account.CurrencyBackfiller
	cache     banklink.CacheInvalidator
	notifier  BalancesNotifier
	now       func() time.Time
}

func NewSnapshotService(deps SnapshotDeps) *SnapshotService {
	return &SnapshotService{
		snapshots: deps.Snapshots,
		accounts:  deps.Accounts,
		links:     deps.Links,
		fetcher:   deps.Fetcher,
		backfill:  deps.Backfill,
		cache:     deps.Cache,
		notifier:  deps.Notifier,
		now:       time.Now,
	}
}

// RecordSnapshot stores acc's current balance as its snapshot for date.
func (s *SnapshotService) RecordSnapshot(ctx context.Context, acc *account.Account, date time.Time) error {
	_, err := s.snapshots.UpsertSnapshot(ctx, UpsertParams{
		AccountID:        acc.ID,
		UserID:           acc.UserID,
		Date:             currency.Day(date),
		CurrentBalance:   acc.CurrentBalance,
		AvailableBalance: acc.AvailableBalance,
		Currency:         acc.Currency,
	})
	if err != nil {
		return fmt.Errorf("failed to record snapshot for account %s: %w", acc.ID, err)
	}
	return nil
}

// CaptureUser fetches every capturable link of the user and snapshots all
// accounts, manual ones included. Link failures are collected in the result.
func (s *SnapshotService) CaptureUser(ctx context.Context, userID int64) (*CaptureResult, error) {
	links, err := s.links.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	known, err := s.knownCurrencies(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := &CaptureResult{UserID: userID}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(captureConcurrency)
	for _, link := range links {
		if !link.Capturable() || !s.fetcher.Enabled(link.Provider) {
			continue
		}
		g.Go(func() error {
			n, codes, err := s.captureLink(gctx, link)

			mu.Lock()
			defer mu.Unlock()
			for _, c := range codes {
				if _, ok := known[c]; !ok {
					known[c] = false
				}
			}
			result.Accounts += n
			result.Snapshots += n
			if err != nil {
				result.Errors = append(result.Errors, LinkError{
					LinkID:      link.ID,
					Institution: link.InstitutionName,
					Status:      failureStatus(err),
					Error:       err.Error(),
				})
				return nil
			}
			result.Links++
			return nil
		})
	}
	_ = g.Wait()

	manual, err := s.snapshotManual(ctx, userID)
	if err != nil {
		return result, err
	}
	result.Snapshots += manual

	s.ensureNew(ctx, known)
	s.afterCapture(ctx, userID, result.Snapshots)

	slog.InfoContext(ctx, "balances captured",
		slog.Int64("user_id", userID),
		slog.Int("links", result.Links),
		slog.Int("snapshots", result.Snapshots),
		slog.Int("failed_links", len(result.Errors)),
	)
	return result, nil
}

// CaptureLink fetches one link regardless of its status. The link's status is
// updated either way.
func (s *SnapshotService) CaptureLink(ctx context.Context, link *banklink.BankLink) error {
	known, err := s.knownCurrencies(ctx, link.UserID)
	if err != nil {
		return err
	}

	n, codes, err := s.captureLink(ctx, link)
	for _, c := range codes {
		if _, ok := known[c]; !ok {
			known[c] = false
		}
	}

	s.ensureNew(ctx, known)
	s.afterCapture(ctx, link.UserID, n)
	return err
}

// captureLink returns the number of accounts snapshotted and the currencies of
// the accounts it upserted. Both are partial when err is non-nil.
func (s *SnapshotService) captureLink(ctx context.Context, link *banklink.BankLink) (int, []string, error) {
	fetched, err := s.fetcher.FetchAccounts(ctx, link)
	if err != nil {
		s.markFailed(ctx, link, err)
		return 0, nil, fmt.Errorf("capture link %s: %w", link.ID, err)
	}

	today := s.now()
	codes := make([]string, 0, len(fetched))
	count := 0
	for _, pa := range fetched {
		acc, err := s.accounts.Upsert(ctx, account.UpsertParams{
			UserID:           link.UserID,
			BankLinkID:       link.ID,
			ExternalID:       pa.ExternalID,
			Name:             pa.Name,
			Mask:             pa.Mask,
			AccountType:      account.NormalizeType(pa.Type),
			Subtype:          pa.Subtype,
			Currency:         pa.Currency,
			CurrentBalance:   currency.Round(pa.Current, pa.Currency),
			AvailableBalance: pa.Available,
		})
		if err != nil {
			err = fmt.Errorf("failed to upsert account %s: %w", pa.ExternalID, err)
			s.markFailed(ctx, link, err)
			return count, codes, err
		}
		codes = append(codes, acc.Currency)
		if err := s.RecordSnapshot(ctx, acc, today); err != nil {
			s.markFailed(ctx, link, err)
			return count, codes, err
		}
		count++
	}

	if err := s.links.MarkSynced(ctx, link.ID, today); err != nil {
		err = fmt.Errorf("failed to mark link synced: %w", err)
		s.markFailed(ctx, link, err)
		return count, codes, err
	}
	return count, codes, nil
}

// markFailed records err on the link so it surfaces as needing attention.
func (s *SnapshotService) markFailed(ctx context.Context, link *banklink.BankLink, err error) {
	status := failureStatus(err)
	if uerr := s.links.UpdateStatus(ctx, link.ID, status, err.Error()); uerr != nil {
		slog.ErrorContext(ctx, "failed to update link status",
			slog.String("link_id", link.ID),
			slog.Any("error", uerr),
		)
	}
	slog.WarnContext(ctx, "link balance capture failed",
		slog.String("link_id", link.ID),
		slog.String("provider", link.Provider),
		slog.String("status", status),
		slog.Any("error", err),
	)
}

func (s *SnapshotService) snapshotManual(ctx context.Context, userID int64) (int, error) {
	accounts, err := s.accounts.ListByUserID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to list accounts: %w", err)
	}
	today := s.now()
	n := 0
	for _, acc := range accounts {
		if !acc.IsManual {
			continue
		}
		if err := s.RecordSnapshot(ctx, acc, today); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// knownCurrencies maps the user's current account currencies to true.
func (s *SnapshotService) knownCurrencies(ctx context.Context, userID int64) (map[string]bool, error) {
	accounts, err := s.accounts.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	known := map[string]bool{currency.USD: true}
	for _, a := range accounts {
		known[a.Currency] = true
	}
	return known, nil
}

// ensureNew starts a backfill for currencies that were not known before capture.
func (s *SnapshotService) ensureNew(ctx context.Context, known map[string]bool) {
	if s.backfill == nil {
		return
	}
	var fresh []string
	for code, existed := range known {
		if !existed {
			fresh = append(fresh, code)
		}
	}
	if len(fresh) > 0 {
		s.backfill.EnsureCurrencyAsync(ctx, fresh...)
	}
}

func (s *SnapshotService) afterCapture(ctx context.Context, userID int64, snapshots int) {
	if snapshots == 0 {
		return
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, userID); err != nil {
			slog.WarnContext(ctx, "failed to invalidate dashboard cache", slog.Int64("user_id", userID), slog.Any("error", err))
		}
	}
	if s.notifier != nil {
		if err := s.notifier.NotifyBalancesUpdated(ctx, userID); err != nil {
			slog.WarnContext(ctx, "failed to send balances update", slog.Int64("user_id", userID), slog.Any("error", err))
		}
	}
}

func failureStatus(err error) string {
	if errors.Is(err, banklink.ErrLoginRequired) {
		return banklink.StatusLoginRequired
	}
	return banklink.StatusError
}
