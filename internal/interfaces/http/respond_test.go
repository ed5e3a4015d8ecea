package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"balancebook/internal/domain/account"
	"balancebook/internal/domain/banklink"
	"balancebook/internal/domain/currency"
	"balancebook/internal/domain/webhook"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{account.ErrAccountNotFound, http.StatusNotFound},
		{fmt.Errorf("get account: %w", account.ErrForbidden), http.StatusForbidden},
		{fmt.Errorf("%w: bad code", currency.ErrInvalidCurrency), http.StatusBadRequest},
		{banklink.ErrLoginRequired, http.StatusConflict},
		{fmt.Errorf("%w: balances: 500", banklink.ErrProviderFailure), http.StatusBadGateway},
		{banklink.ErrProviderNotEnabled, http.StatusServiceUnavailable},
		{webhook.ErrInvalidSignature, http.StatusUnauthorized},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestWriteError_Body(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains string
		hidden   string
	}{
		{"client error carries message", account.ErrNotManual, account.ErrNotManual.Error(), ""},
		{"server error is generic", errors.New("pq: relation missing"), "Failed to do it", "relation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeError(w, httptest.NewRequest(http.MethodGet, "/", nil), tt.err, "Failed to do it")

			body := w.Body.String()
			if !strings.Contains(body, tt.contains) {
				t.Errorf("expected body to contain %q, got %q", tt.contains, body)
			}
			if tt.hidden != "" && strings.Contains(body, tt.hidden) {
				t.Errorf("body leaked %q", tt.hidden)
			}
		})
	}
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestHandleHealth(t *testing.T) {
	tests := []struct {
		name           string
		pingErr        error
		expectedStatus int
	}{
		{"healthy", nil, http.StatusOK},
		{"database down", errors.New("dial tcp"), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler(pingerFunc(func(ctx context.Context) error { return tt.pingErr }))

			w := httptest.NewRecorder()
			handler.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}
		})
	}
}
