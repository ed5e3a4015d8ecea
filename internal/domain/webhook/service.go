package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"balancebook/internal/domain/balance"
	"balancebook/internal/domain/banklink"
	"balancebook/internal/domain/transaction"
)

const dispatchTimeout = 2 * time.Minute

// Verifier authenticates a webhook body.
type Verifier interface {
	Verify(ctx context.Context, header string, body []byte) error
}

// LinkStore finds links by provider item and updates their health.
type LinkStore interface {
	GetByExternalID(ctx context.Context, provider, externalID string) (*banklink.BankLink, error)
	UpdateStatus(ctx context.Context, id, status, lastError string) error
}

// TransactionSyncer pulls transaction changes for a link.
type TransactionSyncer interface {
	SyncTransactions(ctx context.Context, link *banklink.BankLink) (transaction.SyncStats, error)
}

// BalanceCapturer refreshes all balances of a user.
type BalanceCapturer interface {
	CaptureUser(ctx context.Context, userID int64) (*balance.CaptureResult, error)
}

// Notifier alerts users about link health and new data.
type Notifier interface {
	NotifyLoginRequired(ctx context.Context, userID int64, linkID, institution string) error
	NotifyLinkRevoked(ctx context.Context, userID int64, linkID, institution string) error
	NotifySyncComplete(ctx context.Context, userID int64, institution string, added int) error
}

// ServiceDeps groups the collaborators of Service. Notifier and Cache may be nil.
type ServiceDeps struct {
	Events       Repository
	Verifier     Verifier
	Links        LinkStore
	Transactions TransactionSyncer
	Balances     BalanceCapturer
	Notifier     Notifier
	Cache        banklink.CacheInvalidator
}

// Service receives, stores and dispatches provider webhooks
type Service struct {
	events       Repository
	verifier     Verifier
	links        LinkStore
	transactions TransactionSyncer
	balances     BalanceCapturer
	notifier     Notifier
	cache        banklink.CacheInvalidator

	// background runs dispatch work off the request path.
	background func(func())
}

func NewService(deps ServiceDeps) *Service {
	return &Service{
		events:       deps.Events,
		verifier:     deps.Verifier,
		links:        deps.Links,
		transactions: deps.Transactions,
		balances:     deps.Balances,
		notifier:     deps.Notifier,
		cache:        deps.Cache,
		background:   func(f func()) { go f() },
	}
}

// HandlePlaid verifies and stores a Plaid webhook, then dispatches it in the
// background. Rejected deliveries are stored too.
func (s *Service) HandlePlaid(ctx context.Context, header string, body []byte) (*Event, error) {
	payload, parseErr := ParsePlaidPayload(body)

	if err := s.verifier.Verify(ctx, header, body); err != nil {
		slog.WarnContext(ctx, "plaid webhook rejected", slog.String("kind", payload.Kind()), slog.Any("error", err))
		s.store(ctx, payload, body, StatusRejected, err.Error())
		return nil, err
	}
	if parseErr != nil {
		s.store(ctx, payload, body, StatusFailed, parseErr.Error())
		return nil, parseErr
	}

	event, err := s.events.Create(ctx, CreateParams{
		Provider:    ProviderPlaid,
		WebhookType: payload.WebhookType,
		WebhookCode: payload.WebhookCode,
		ExternalID:  payload.ItemID,
		Payload:     body,
		Status:      StatusReceived,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store webhook event: %w", err)
	}

	bg := context.WithoutCancel(ctx)
	s.background(func() {
		ctx, cancel := context.WithTimeout(bg, dispatchTimeout)
		defer cancel()
		_ = s.Process(ctx, event, payload)
	})
	return event, nil
}

// Process dispatches a stored event and records the outcome on it.
func (s *Service) Process(ctx context.Context, event *Event, payload PlaidPayload) error {
	err := s.dispatch(ctx, payload)

	status, msg := StatusProcessed, ""
	if err != nil {
		status, msg = StatusFailed, err.Error()
		slog.ErrorContext(ctx, "plaid webhook dispatch failed",
			slog.String("event_id", event.ID),
			slog.String("kind", payload.Kind()),
			slog.Any("error", err),
		)
	}
	if uerr := s.events.UpdateStatus(ctx, event.ID, status, msg); uerr != nil {
		slog.ErrorContext(ctx, "failed to update webhook event", slog.String("event_id", event.ID), slog.Any("error", uerr))
	}
	event.Status, event.Error = status, msg
	return err
}

func (s *Service) dispatch(ctx context.Context, p PlaidPayload) error {
	handler := s.handlerFor(p)
	if handler == nil {
		slog.DebugContext(ctx, "plaid webhook ignored", slog.String("kind", p.Kind()))
		return nil
	}

	link, err := s.links.GetByExternalID(ctx, banklink.ProviderPlaid, p.ItemID)
	if errors.Is(err, banklink.ErrLinkNotFound) {
		slog.WarnContext(ctx, "plaid webhook for unknown item", slog.String("item_id", p.ItemID), slog.String("kind", p.Kind()))
		return nil
	}
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "plaid webhook dispatched",
		slog.String("kind", p.Kind()),
		slog.String("link_id", link.ID),
		slog.Int64("user_id", link.UserID),
	)
	return handler(ctx, link, p)
}

type handlerFunc func(ctx context.Context, link *banklink.BankLink, p PlaidPayload) error

func (s *Service) handlerFor(p PlaidPayload) handlerFunc {
	switch {
	case p.WebhookType == TypeTransactions && p.WebhookCode == CodeSyncUpdatesAvailable:
		return s.syncTransactions
	case p.WebhookType == TypeHoldings, p.WebhookCode == CodeDefaultUpdate:
		return s.captureBalances
	case p.WebhookType != TypeItem:
		return nil
	}

	switch p.WebhookCode {
	case CodeError:
		return s.itemError
	case CodePendingExpiration, CodePendingDisconnect:
		return s.loginRequired
	case CodeUserPermissionRevoked:
		return s.revoked
	case CodeLoginRepaired:
		return s.repaired
	}
	return nil
}

func (s *Service) syncTransactions(ctx context.Context, link *banklink.BankLink, _ PlaidPayload) error {
	stats, err := s.transactions.SyncTransactions(ctx, link)
	if err != nil {
		return err
	}
	if s.notifier != nil {
		if err := s.notifier.NotifySyncComplete(ctx, link.UserID, link.InstitutionName, stats.Added); err != nil {
			slog.WarnContext(ctx, "failed to notify sync", slog.String("link_id", link.ID), slog.Any("error", err))
		}
	}
	return nil
}

func (s *Service) captureBalances(ctx context.Context, link *banklink.BankLink, _ PlaidPayload) error {
	_, err := s.balances.CaptureUser(ctx, link.UserID)
	return err
}

func (s *Service) itemError(ctx context.Context, link *banklink.BankLink, p PlaidPayload) error {
	if p.Error != nil && p.Error.ErrorCode == ErrorCodeItemLoginRequired {
		return s.loginRequired(ctx, link, p)
	}
	msg := "item error"
	if p.Error != nil {
		msg = p.Error.ErrorCode + ": " + p.Error.ErrorMessage
	}
	return s.setStatus(ctx, link, banklink.StatusError, msg)
}

func (s *Service) loginRequired(ctx context.Context, link *banklink.BankLink, p PlaidPayload) error {
	if err := s.setStatus(ctx, link, banklink.StatusLoginRequired, p.Kind()); err != nil {
		return err
	}
	if s.notifier != nil {
		if err := s.notifier.NotifyLoginRequired(ctx, link.UserID, link.ID, link.InstitutionName); err != nil {
			slog.WarnContext(ctx, "failed to notify login required", slog.String("link_id", link.ID), slog.Any("error", err))
		}
	}
	return nil
}

func (s *Service) revoked(ctx context.Context, link *banklink.BankLink, p PlaidPayload) error {
	if err := s.setStatus(ctx, link, banklink.StatusRevoked, p.Kind()); err != nil {
		return err
	}
	if s.notifier != nil {
		if err := s.notifier.NotifyLinkRevoked(ctx, link.UserID, link.ID, link.InstitutionName); err != nil {
			slog.WarnContext(ctx, "failed to notify revocation", slog.String("link_id", link.ID), slog.Any("error", err))
		}
	}
	return nil
}

func (s *Service) repaired(ctx context.Context, link *banklink.BankLink, p PlaidPayload) error {
	if err := s.setStatus(ctx, link, banklink.StatusActive, ""); err != nil {
		return err
	}
	return s.captureBalances(ctx, link, p)
}

func (s *Service) setStatus(ctx context.Context, link *banklink.BankLink, status, msg string) error {
	if err := s.links.UpdateStatus(ctx, link.ID, status, msg); err != nil {
		return fmt.Errorf("failed to update link status: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, link.UserID); err != nil {
			slog.WarnContext(ctx, "failed to invalidate dashboard cache", slog.Int64("user_id", link.UserID), slog.Any("error", err))
		}
	}
	return nil
}

// store records a delivery that will not be dispatched.
func (s *Service) store(ctx context.Context, p PlaidPayload, body []byte, status, msg string) {
	if !json.Valid(body) {
		body = nil
	}
	_, err := s.events.Create(ctx, CreateParams{
		Provider:    ProviderPlaid,
		WebhookType: p.WebhookType,
		WebhookCode: p.WebhookCode,
		ExternalID:  p.ItemID,
		Payload:     body,
		Status:      status,
		Error:       msg,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to store webhook event", slog.String("status", status), slog.Any("error", err))
	}
}
