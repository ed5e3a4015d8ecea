package banklink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"balancebook/internal/domain/account"
	"balancebook/internal/domain/transaction"
)

const (
	backgroundTimeout = 2 * time.Minute
	maxSyncPages      = 100
)

// BalanceCapturer fetches a link's balances and stores today's snapshots.
// It records the outcome on the link's status.
type BalanceCapturer interface {
	CaptureLink(ctx context.Context, link *BankLink) error
}

// CacheInvalidator drops cached per-user views.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, userID int64) error
}

// AccountLister lists the accounts fetched through a link.
type AccountLister interface {
	ListByBankLink(ctx context.Context, bankLinkID string) ([]*account.Account, error)
}

// TransactionApplier writes provider transaction changes.
type TransactionApplier interface {
	ApplySync(ctx context.Context, userID int64, accountIDs map[string]string, page *transaction.SyncPage) (transaction.SyncStats, error)
}

// ServiceDeps groups the collaborators of Service. Plaid and Cache may be nil.
type ServiceDeps struct {
	Links        Repository
	Fetcher      *Fetcher
	Cipher       Cipher
	Plaid        PlaidClient
	Capturer     BalanceCapturer
	Accounts     AccountLister
	Transactions TransactionApplier
	Cache        CacheInvalidator
}

// Service links institutions and wallets and keeps them in sync
type Service struct {
	links        Repository
	fetcher      *Fetcher
	cipher       Cipher
	plaid        PlaidClient
	capturer     BalanceCapturer
	accounts     AccountLister
	transactions TransactionApplier
	cache        CacheInvalidator
}

func NewService(deps ServiceDeps) *Service {
	return &Service{
		links:        deps.Links,
		fetcher:      deps.Fetcher,
		cipher:       deps.Cipher,
		plaid:        deps.Plaid,
		capturer:     deps.Capturer,
		accounts:     deps.Accounts,
		transactions: deps.Transactions,
		cache:        deps.Cache,
	}
}

// CreatePlaidLinkToken starts a Plaid Link session for the user.
func (s *Service) CreatePlaidLinkToken(ctx context.Context, userID int64) (*LinkToken, error) {
	if s.plaid == nil {
		return nil, ErrProviderNotEnabled
	}
	return s.plaid.CreateLinkToken(ctx, userID)
}

// LinkPlaid exchanges a public token, stores the item and captures its balances.
// A failed first capture leaves the link stored with its error status.
func (s *Service) LinkPlaid(ctx context.Context, userID int64, publicToken, institution string) (*BankLink, error) {
	if s.plaid == nil {
		return nil, ErrProviderNotEnabled
	}
	if strings.TrimSpace(publicToken) == "" {
		return nil, fmt.Errorf("%w: public token is required", ErrInvalidInput)
	}

	exchange, err := s.plaid.ExchangePublicToken(ctx, publicToken)
	if err != nil {
		return nil, err
	}

	encrypted, err := s.cipher.Encrypt(exchange.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt access token: %w", err)
	}

	if institution == "" {
		institution = "Plaid"
	}
	link, err := s.links.Create(ctx, CreateParams{
		UserID:          userID,
		Provider:        ProviderPlaid,
		ExternalID:      exchange.ItemID,
		InstitutionName: institution,
		AccessToken:     encrypted,
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "plaid item linked",
		slog.Int64("user_id", userID),
		slog.String("link_id", link.ID),
		slog.String("institution", institution),
	)

	if err := s.capturer.CaptureLink(ctx, link); err != nil {
		slog.WarnContext(ctx, "initial balance capture failed",
			slog.String("link_id", link.ID),
			slog.Any("error", err),
		)
	}

	s.SyncTransactionsAsync(ctx, link)

	return s.reload(ctx, link)
}

// LinkCryptoWallet tracks a wallet address. The link is only kept when the
// first balance fetch succeeds.
func (s *Service) LinkCryptoWallet(ctx context.Context, userID int64, chainName, address, label string) (*BankLink, error) {
	if !s.fetcher.Enabled(ProviderTatum) {
		return nil, ErrProviderNotEnabled
	}

	chain, err := LookupChain(chainName)
	if err != nil {
		return nil, err
	}
	address = strings.TrimSpace(address)
	if !chain.ValidAddress(address) {
		return nil, fmt.Errorf("%w for %s", ErrInvalidAddress, chain.Display)
	}

	label = strings.TrimSpace(label)
	if label == "" {
		label = chain.Display + " wallet"
	}

	link, err := s.links.Create(ctx, CreateParams{
		UserID:          userID,
		Provider:        ProviderTatum,
		ExternalID:      WalletExternalID(chain, address),
		InstitutionName: label,
		Metadata:        map[string]string{"chain": chain.Name, "address": address},
	})
	if err != nil {
		return nil, err
	}

	if err := s.capturer.CaptureLink(ctx, link); err != nil {
		if delErr := s.links.Delete(ctx, link.ID); delErr != nil {
			slog.ErrorContext(ctx, "failed to remove wallet link after failed capture",
				slog.String("link_id", link.ID),
				slog.Any("error", delErr),
			)
		}
		return nil, err
	}

	return s.reload(ctx, link)
}

func (s *Service) List(ctx context.Context, userID int64) ([]*BankLink, error) {
	return s.links.ListByUserID(ctx, userID)
}

// Get retrieves a link and verifies user ownership
func (s *Service) Get(ctx context.Context, userID int64, linkID string) (*BankLink, error) {
	link, err := s.links.GetByID(ctx, linkID)
	if err != nil {
		return nil, err
	}
	if link.UserID != userID {
		return nil, ErrForbidden
	}
	return link, nil
}

// Remove deletes a link with its accounts and history. Plaid items are
// removed at Plaid first; a failure there is logged and does not block.
func (s *Service) Remove(ctx context.Context, userID int64, linkID string) error {
	link, err := s.Get(ctx, userID, linkID)
	if err != nil {
		return err
	}

	if link.Provider == ProviderPlaid && s.plaid != nil {
		if token, err := s.fetcher.Credential(link); err != nil {
			slog.WarnContext(ctx, "cannot decrypt plaid credential for removal", slog.String("link_id", link.ID), slog.Any("error", err))
		} else if err := s.plaid.RemoveItem(ctx, token); err != nil {
			slog.WarnContext(ctx, "plaid item removal failed", slog.String("link_id", link.ID), slog.Any("error", err))
		}
	}

	if err := s.links.Delete(ctx, link.ID); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

// Refresh re-fetches one link's balances now.
func (s *Service) Refresh(ctx context.Context, userID int64, linkID string) (*BankLink, error) {
	link, err := s.Get(ctx, userID, linkID)
	if err != nil {
		return nil, err
	}
	if err := s.capturer.CaptureLink(ctx, link); err != nil {
		return nil, err
	}
	return s.reload(ctx, link)
}

// SyncTransactions pulls every transaction change since the link's cursor.
func (s *Service) SyncTransactions(ctx context.Context, link *BankLink) (transaction.SyncStats, error) {
	var total transaction.SyncStats
	if link.Provider != ProviderPlaid {
		return total, nil
	}
	if s.plaid == nil {
		return total, ErrProviderNotEnabled
	}

	token, err := s.fetcher.Credential(link)
	if err != nil {
		return total, err
	}

	accs, err := s.accounts.ListByBankLink(ctx, link.ID)
	if err != nil {
		return total, fmt.Errorf("failed to list link accounts: %w", err)
	}
	accountIDs := make(map[string]string, len(accs))
	for _, a := range accs {
		accountIDs[a.ExternalID] = a.ID
	}

	cursor := link.TransactionsCursor
	for range maxSyncPages {
		page, err := s.plaid.SyncTransactions(ctx, token, cursor)
		if err != nil {
			if errors.Is(err, ErrLoginRequired) {
				if uerr := s.links.UpdateStatus(ctx, link.ID, StatusLoginRequired, err.Error()); uerr != nil {
					slog.ErrorContext(ctx, "failed to update link status",
						slog.String("link_id", link.ID),
						slog.Any("error", uerr),
					)
				}
			}
			return total, err
		}

		stats, err := s.transactions.ApplySync(ctx, link.UserID, accountIDs, page)
		if err != nil {
			return total, err
		}
		total.Added += stats.Added
		total.Modified += stats.Modified
		total.Removed += stats.Removed
		total.Skipped += stats.Skipped

		cursor = page.NextCursor
		if !page.HasMore {
			break
		}
	}

	if cursor != link.TransactionsCursor {
		if err := s.links.UpdateCursor(ctx, link.ID, cursor); err != nil {
			return total, fmt.Errorf("failed to store sync cursor: %w", err)
		}
		link.TransactionsCursor = cursor
	}

	slog.InfoContext(ctx, "transactions synced",
		slog.String("link_id", link.ID),
		slog.Int("added", total.Added),
		slog.Int("modified", total.Modified),
		slog.Int("removed", total.Removed),
	)
	return total, nil
}

// SyncTransactionsAsync runs SyncTransactions in the background; errors are logged.
func (s *Service) SyncTransactionsAsync(ctx context.Context, link *BankLink) {
	if s.plaid == nil || link.Provider != ProviderPlaid {
		return
	}
	bg := context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(bg, backgroundTimeout)
		defer cancel()
		if _, err := s.SyncTransactions(ctx, link); err != nil {
			slog.ErrorContext(ctx, "background transaction sync failed",
				slog.String("link_id", link.ID),
				slog.Any("error", err),
			)
		}
	}()
}

func (s *Service) reload(ctx context.Context, link *BankLink) (*BankLink, error) {
	fresh, err := s.links.GetByID(ctx, link.ID)
	if err != nil {
		return link, nil
	}
	return fresh, nil
}

func (s *Service) invalidate(ctx context.Context, userID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		slog.WarnContext(ctx, "failed to invalidate dashboard cache", slog.Int64("user_id", userID), slog.Any("error", err))
	}
}
