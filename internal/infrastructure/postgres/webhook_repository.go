package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"balancebook/internal/domain/webhook"
)

type WebhookRepository struct {
	db *DB
}

func NewWebhookRepository(db *DB) *WebhookRepository {
	return &WebhookRepository{db: db}
}

func (r *WebhookRepository) Create(ctx context.Context, params webhook.CreateParams) (*webhook.Event, error) {
	query := `
		INSERT INTO webhook_events (id, provider, webhook_type, webhook_code, external_id, payload, status, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING received_at
	`

	event := &webhook.Event{
		ID:          uuid.NewString(),
		Provider:    params.Provider,
		WebhookType: params.WebhookType,
		WebhookCode: params.WebhookCode,
		ExternalID:  params.ExternalID,
		Payload:     params.Payload,
		Status:      params.Status,
		Error:       params.Error,
	}

	var payload any
	if len(params.Payload) > 0 {
		payload = []byte(params.Payload)
	}

	err := r.db.QueryRowContext(ctx, query,
		event.ID, event.Provider, event.WebhookType, event.WebhookCode, event.ExternalID,
		payload, event.Status, event.Error,
	).Scan(&event.ReceivedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to store webhook event: %w", err)
	}
	return event, nil
}

func (r *WebhookRepository) UpdateStatus(ctx context.Context, id, status, errMsg string) error {
	query := `UPDATE webhook_events SET status = $2, error = $3, processed_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, errMsg); err != nil {
		return fmt.Errorf("failed to update webhook event %s: %w", id, err)
	}
	return nil
}
