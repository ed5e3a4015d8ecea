package firebase

import (
	"context"
	"fmt"
	"log/slog"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// FCM rejects multicast requests with more tokens than this.
const batchLimit = 500

// TokenDeactivator marks a token rejected by FCM as inactive.
type TokenDeactivator func(ctx context.Context, token string) error

// Client implements notification.Messenger on Firebase Cloud Messaging.
type Client struct {
	msg         *messaging.Client
	deactivator TokenDeactivator
	logger      *slog.Logger
}

// NewClient initializes a Firebase app from a service account file.
// deactivator may be nil.
func NewClient(ctx context.Context, credentialsFile string, deactivator TokenDeactivator) (*Client, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}

	msg, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase messaging: %w", err)
	}

	return &Client{
		msg:         msg,
		deactivator: deactivator,
		logger:      slog.Default().With(slog.String("component", "fcm")),
	}, nil
}

// SendMulticast pushes a visible notification to every token.
func (c *Client) SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) error {
	return c.multicast(ctx, tokens, &messaging.Notification{Title: title, Body: body}, data)
}

// SendDataOnly pushes a silent message handled by the app in the foreground.
func (c *Client) SendDataOnly(ctx context.Context, tokens []string, data map[string]string) error {
	return c.multicast(ctx, tokens, nil, data)
}

func (c *Client) multicast(ctx context.Context, tokens []string, n *messaging.Notification, data map[string]string) error {
	if len(tokens) == 0 {
		return nil
	}

	var success, failure int
	for _, batch := range chunkTokens(tokens, batchLimit) {
		resp, err := c.msg.SendEachForMulticast(ctx, &messaging.MulticastMessage{
			Tokens:       batch,
			Notification: n,
			Data:         data,
		})
		if err != nil {
			return fmt.Errorf("fcm multicast: %w", err)
		}

		success += resp.SuccessCount
		failure += resp.FailureCount
		if resp.FailureCount > 0 {
			c.handleFailures(ctx, batch, resp)
		}
	}

	c.logger.DebugContext(ctx, "fcm multicast sent",
		slog.Bool("data_only", n == nil),
		slog.Int("success", success),
		slog.Int("failure", failure),
	)
	return nil
}

func (c *Client) handleFailures(ctx context.Context, tokens []string, resp *messaging.BatchResponse) {
	for i, r := range resp.Responses {
		if r.Error == nil {
			continue
		}
		if messaging.IsUnregistered(r.Error) || messaging.IsInvalidArgument(r.Error) {
			c.logger.InfoContext(ctx, "deactivating rejected token", slog.Int("index", i), slog.Any("error", r.Error))
			c.deactivate(ctx, tokens[i])
			continue
		}
		c.logger.WarnContext(ctx, "fcm send failed", slog.Int("index", i), slog.Any("error", r.Error))
	}
}

func (c *Client) deactivate(ctx context.Context, token string) {
	if c.deactivator == nil {
		return
	}
	if err := c.deactivator(ctx, token); err != nil {
		c.logger.ErrorContext(ctx, "failed to deactivate token", slog.Any("error", err))
	}
}

func chunkTokens(tokens []string, size int) [][]string {
	var chunks [][]string
	for i := 0; i < len(tokens); i += size {
		end := min(i+size, len(tokens))
		chunks = append(chunks, tokens[i:end])
	}
	return chunks
}
