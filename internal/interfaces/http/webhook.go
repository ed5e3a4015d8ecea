package http

import (
	"context"
	"io"
	"net/http"

	"balancebook/internal/domain/webhook"
)

const plaidVerificationHeader = "Plaid-Verification"

// WebhookReceiver verifies, stores and dispatches provider webhooks.
type WebhookReceiver interface {
	HandlePlaid(ctx context.Context, header string, body []byte) (*webhook.Event, error)
}

type WebhookHandler struct {
	webhooks WebhookReceiver
}

func NewWebhookHandler(webhooks WebhookReceiver) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks}
}

type WebhookResponse struct {
	Received bool   `json:"received"`
	EventID  string `json:"eventId"`
}

// HandlePlaid handles POST /api/webhooks/plaid. The raw body is needed for
// signature verification, so it is read before any decoding.
func (h *WebhookHandler) HandlePlaid(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	event, err := h.webhooks.HandlePlaid(r.Context(), r.Header.Get(plaidVerificationHeader), body)
	if err != nil {
		writeError(w, r, err, "Failed to process webhook")
		return
	}
	writeJSON(w, http.StatusOK, WebhookResponse{Received: true, EventID: event.ID})
}
