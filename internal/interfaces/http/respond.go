package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"balancebook/internal/domain/account"
	"balancebook/internal/domain/balance"
	"balancebook/internal/domain/banklink"
	"balancebook/internal/domain/currency"
	"balancebook/internal/domain/notification"
	"balancebook/internal/domain/transaction"
	"balancebook/internal/domain/user"
	"balancebook/internal/domain/webhook"
	"balancebook/internal/shared/middleware"
)

const maxBodySize = 1 << 20 // 1 MiB

// errorStatus maps domain sentinel errors to HTTP status codes. The first
// match wins.
var errorStatus = []struct {
	err    error
	status int
}{
	{user.ErrInvalidCredentials, http.StatusUnauthorized},
	{webhook.ErrInvalidSignature, http.StatusUnauthorized},

	{account.ErrForbidden, http.StatusForbidden},
	{banklink.ErrForbidden, http.StatusForbidden},
	{balance.ErrForbidden, http.StatusForbidden},

	{account.ErrAccountNotFound, http.StatusNotFound},
	{user.ErrUserNotFound, http.StatusNotFound},
	{banklink.ErrLinkNotFound, http.StatusNotFound},
	{currency.ErrRateNotFound, http.StatusNotFound},
	{notification.ErrNotificationNotFound, http.StatusNotFound},

	{user.ErrEmailTaken, http.StatusConflict},
	{banklink.ErrDuplicateLink, http.StatusConflict},
	{banklink.ErrLoginRequired, http.StatusConflict},
	{account.ErrNotManual, http.StatusConflict},

	{banklink.ErrProviderFailure, http.StatusBadGateway},
	{banklink.ErrProviderNotEnabled, http.StatusServiceUnavailable},

	{account.ErrInvalidInput, http.StatusBadRequest},
	{account.ErrInvalidAccountType, http.StatusBadRequest},
	{user.ErrInvalidInput, http.StatusBadRequest},
	{banklink.ErrInvalidInput, http.StatusBadRequest},
	{banklink.ErrUnsupportedChain, http.StatusBadRequest},
	{banklink.ErrInvalidAddress, http.StatusBadRequest},
	{balance.ErrInvalidInput, http.StatusBadRequest},
	{balance.ErrRangeTooLarge, http.StatusBadRequest},
	{currency.ErrInvalidCurrency, http.StatusBadRequest},
	{currency.ErrInvalidRange, http.StatusBadRequest},
	{transaction.ErrInvalidInput, http.StatusBadRequest},
	{notification.ErrInvalidCategory, http.StatusBadRequest},
	{notification.ErrInvalidDeviceType, http.StatusBadRequest},
	{notification.ErrInvalidToken, http.StatusBadRequest},
	{webhook.ErrInvalidPayload, http.StatusBadRequest},
}

func statusFor(err error) int {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}

// writeError answers with a plain-text body. Client errors carry the error
// text; server errors are logged and answered generically.
func writeError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		slog.ErrorContext(r.Context(), msg,
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
		if status == http.StatusInternalServerError {
			http.Error(w, msg, status)
			return
		}
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a size-limited JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// requireUser returns the authenticated user id or answers 401.
func requireUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	}
	return userID, ok
}
