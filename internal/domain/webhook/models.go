package webhook

import (
	"encoding/json"
	"errors"
	"time"
)

const ProviderPlaid = "plaid"

// Event statuses
const (
	StatusReceived  = "received"
	StatusProcessed = "processed"
	StatusFailed    = "failed"
	StatusRejected  = "rejected"
)

// Plaid webhook types and codes handled by the dispatcher
const (
	TypeTransactions = "TRANSACTIONS"
	TypeItem         = "ITEM"
	TypeHoldings     = "HOLDINGS"

	CodeSyncUpdatesAvailable  = "SYNC_UPDATES_AVAILABLE"
	CodeDefaultUpdate         = "DEFAULT_UPDATE"
	CodeError                 = "ERROR"
	CodePendingExpiration     = "PENDING_EXPIRATION"
	CodePendingDisconnect     = "PENDING_DISCONNECT"
	CodeUserPermissionRevoked = "USER_PERMISSION_REVOKED"
	CodeLoginRepaired         = "LOGIN_REPAIRED"

	ErrorCodeItemLoginRequired = "ITEM_LOGIN_REQUIRED"
)

// Domain errors
var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrInvalidPayload   = errors.New("invalid webhook payload")
)

// Event is a stored webhook delivery
type Event struct {
	ID          string          `json:"id"`
	Provider    string          `json:"provider"`
	WebhookType string          `json:"webhookType"`
	WebhookCode string          `json:"webhookCode"`
	ExternalID  string          `json:"externalId"`
	Payload     json.RawMessage `json:"payload"`
	Status      string          `json:"status"`
	Error       string          `json:"error,omitempty"`
	ReceivedAt  time.Time       `json:"receivedAt"`
	ProcessedAt *time.Time      `json:"processedAt,omitempty"`
}

// CreateParams contains parameters for storing an event
type CreateParams struct {
	Provider    string
	WebhookType string
	WebhookCode string
	ExternalID  string
	Payload     json.RawMessage
	Status      string
	Error       string
}

// PlaidPayload is the subset of a Plaid webhook body used for dispatch
type PlaidPayload struct {
	WebhookType string      `json:"webhook_type"`
	WebhookCode string      `json:"webhook_code"`
	ItemID      string      `json:"item_id"`
	Error       *PlaidError `json:"error"`
}

type PlaidError struct {
	ErrorType    string `json:"error_type"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// ParsePlaidPayload decodes body. The JSON must carry a webhook type and code.
func ParsePlaidPayload(body []byte) (PlaidPayload, error) {
	var p PlaidPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return p, errors.Join(ErrInvalidPayload, err)
	}
	if p.WebhookType == "" || p.WebhookCode == "" {
		return p, ErrInvalidPayload
	}
	return p, nil
}

// Kind returns "TYPE/CODE" for logging.
func (p PlaidPayload) Kind() string {
	return p.WebhookType + "/" + p.WebhookCode
}
