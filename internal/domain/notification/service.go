package notification

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"balancebook/internal/shared/messages"
)

// Service contains the business logic for notification operations
type Service struct {
	repo      Repository
	messenger Messenger
	texts     *messages.Messages
}

// NewService creates a new notification service. messenger may be nil, in
// which case notifications are stored but not pushed.
func NewService(repo Repository, messenger Messenger, texts *messages.Messages) *Service {
	if texts == nil {
		texts = messages.Default()
	}
	return &Service{repo: repo, messenger: messenger, texts: texts}
}

// RegisterDevice registers a device token for the authenticated user.
// If the token already belongs to another user, it is reassigned.
// Creates default notification preferences if none exist.
func (s *Service) RegisterDevice(ctx context.Context, params CreateDeviceTokenParams) (*DeviceToken, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	token, err := s.repo.UpsertDeviceToken(ctx, params)
	if err != nil {
		return nil, err
	}

	// Ensure notification preferences exist for this user
	if _, err := s.repo.GetPreferences(ctx, params.UserID); err != nil {
		if _, err := s.repo.UpsertPreferences(ctx, params.UserID, UpdatePreferenceParams{}); err != nil {
			slog.WarnContext(ctx, "failed to create default notification preferences",
				slog.Int64("user_id", params.UserID),
				slog.Any("error", err),
			)
		}
	}

	return token, nil
}

// DeactivateToken marks a token that the push service rejected.
func (s *Service) DeactivateToken(ctx context.Context, token string) error {
	return s.repo.DeactivateToken(ctx, token)
}

// GetPreferences returns the notification preferences for a user.
// Returns default (all-enabled) preferences if none have been created yet.
func (s *Service) GetPreferences(ctx context.Context, userID int64) (*NotificationPreference, error) {
	if userID <= 0 {
		return nil, errors.New("valid user ID is required")
	}

	prefs, err := s.repo.GetPreferences(ctx, userID)
	if err != nil {
		return &NotificationPreference{
			UserID:         userID,
			LinksEnabled:   true,
			SyncEnabled:    true,
			GeneralEnabled: true,
		}, nil
	}

	return prefs, nil
}

// UpdatePreferences updates notification preferences for a user
func (s *Service) UpdatePreferences(ctx context.Context, userID int64, params UpdatePreferenceParams) (*NotificationPreference, error) {
	if userID <= 0 {
		return nil, errors.New("valid user ID is required")
	}

	return s.repo.UpsertPreferences(ctx, userID, params)
}

// ListNotifications returns paginated notifications for a user
func (s *Service) ListNotifications(ctx context.Context, userID int64, page, perPage int) ([]*Notification, int, error) {
	if userID <= 0 {
		return nil, 0, errors.New("valid user ID is required")
	}
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	return s.repo.ListByUserID(ctx, userID, page, perPage)
}

// MarkNotificationOpened marks a notification as opened by the authenticated user
func (s *Service) MarkNotificationOpened(ctx context.Context, notificationID string, userID int64) error {
	if notificationID == "" {
		return errors.New("notification ID is required")
	}
	if userID <= 0 {
		return errors.New("valid user ID is required")
	}

	return s.repo.MarkOpened(ctx, notificationID, userID)
}

// SendToUser sends a push notification to a specific user.
// Respects notification preferences and creates a notification record.
func (s *Service) SendToUser(ctx context.Context, userID int64, title, body, category string, data map[string]string) error {
	if !IsValidCategory(category) {
		return ErrInvalidCategory
	}

	prefs, err := s.GetPreferences(ctx, userID)
	if err != nil {
		return err
	}

	if !prefs.IsCategoryEnabled(category) {
		slog.DebugContext(ctx, "notification skipped: category disabled",
			slog.Int64("user_id", userID),
			slog.String("category", category),
		)
		return nil
	}

	if data == nil {
		data = make(map[string]string)
	}
	if _, ok := data["route"]; !ok {
		data["route"] = category
	}

	tokens, err := s.activeTokens(ctx, userID)
	if err != nil {
		return err
	}

	if s.messenger != nil && len(tokens) > 0 {
		if err := s.messenger.SendMulticast(ctx, tokens, title, body, data); err != nil {
			slog.ErrorContext(ctx, "failed to push notification", slog.Int64("user_id", userID), slog.Any("error", err))
		}
	}

	// Stored even without devices so the in-app inbox shows it
	_, err = s.repo.CreateNotification(ctx, CreateNotificationParams{
		UserID:   userID,
		Title:    title,
		Message:  body,
		Category: category,
		Data:     data,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to store notification", slog.Int64("user_id", userID), slog.Any("error", err))
	}

	return nil
}

// NotifyLoginRequired tells the user a link needs re-authentication.
func (s *Service) NotifyLoginRequired(ctx context.Context, userID int64, linkID, institution string) error {
	msg := s.texts.LinkLoginRequired.Render(map[string]string{"institution": institution})
	return s.SendToUser(ctx, userID, msg.Title, msg.Body, CategoryLinks, map[string]string{"linkId": linkID})
}

// NotifyLinkRevoked tells the user a link lost its access.
func (s *Service) NotifyLinkRevoked(ctx context.Context, userID int64, linkID, institution string) error {
	msg := s.texts.LinkRevoked.Render(map[string]string{"institution": institution})
	return s.SendToUser(ctx, userID, msg.Title, msg.Body, CategoryLinks, map[string]string{"linkId": linkID})
}

// NotifySyncComplete reports newly imported transactions.
func (s *Service) NotifySyncComplete(ctx context.Context, userID int64, institution string, added int) error {
	if added <= 0 {
		return nil
	}
	msg := s.texts.SyncComplete.Render(map[string]string{
		"institution": institution,
		"count":       strconv.Itoa(added),
	})
	return s.SendToUser(ctx, userID, msg.Title, msg.Body, CategorySync, map[string]string{"route": "transactions"})
}

// NotifyBalancesUpdated sends a silent reload trigger after new snapshots.
func (s *Service) NotifyBalancesUpdated(ctx context.Context, userID int64) error {
	if s.messenger == nil {
		return nil
	}
	tokens, err := s.activeTokens(ctx, userID)
	if err != nil || len(tokens) == 0 {
		return err
	}
	return s.messenger.SendDataOnly(ctx, tokens, map[string]string{"type": "balances_updated"})
}

func (s *Service) activeTokens(ctx context.Context, userID int64) ([]string, error) {
	tokens, err := s.repo.GetActiveTokensByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.Token
	}
	return out, nil
}
