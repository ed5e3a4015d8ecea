package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"balancebook/internal/shared/auth"
)

type contextKey string

// UserIDKey holds the authenticated user's int64 id in the request context.
const UserIDKey contextKey = "userID"

const authCookieName = "access_token"

// Auth rejects requests without a valid session token. The token is read
// from the access_token cookie first, then from a Bearer Authorization header.
func Auth(jwt *auth.JWT) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFromRequest(r)
			if token == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := jwt.Validate(token)
			if err != nil {
				if !errors.Is(err, auth.ErrTokenExpired) {
					slog.DebugContext(r.Context(), "rejected session token", slog.Any("error", err))
				}
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext returns the authenticated user id, if any.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(UserIDKey).(int64)
	return id, ok
}

func tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(authCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
