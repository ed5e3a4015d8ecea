package http

import (
	"context"
	"net/http"
	"time"

	"balancebook/internal/domain/user"
	"balancebook/internal/shared/auth"
)

const (
	sessionCookie = "access_token"
	sessionTTL    = 24 * time.Hour
)

// UserService is the user surface used by the auth and user handlers.
type UserService interface {
	Register(ctx context.Context, params user.RegisterParams) (*user.User, error)
	Authenticate(ctx context.Context, email, password string) (*user.User, error)
	Get(ctx context.Context, userID int64) (*user.User, error)
	Update(ctx context.Context, userID int64, params user.UpdateUserParams) (*user.User, error)
}

type AuthHandler struct {
	users        UserService
	jwt          *auth.JWT
	secureCookie bool
}

func NewAuthHandler(users UserService, jwt *auth.JWT, secureCookie bool) *AuthHandler {
	return &AuthHandler{users: users, jwt: jwt, secureCookie: secureCookie}
}

type RegisterRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	Name         string `json:"name"`
	BaseCurrency string `json:"baseCurrency"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string     `json:"token"`
	User  *user.User `json:"user"`
}

// HandleRegister handles POST /api/auth/register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	u, err := h.users.Register(r.Context(), user.RegisterParams{
		Email:        req.Email,
		Password:     req.Password,
		Name:         req.Name,
		BaseCurrency: req.BaseCurrency,
	})
	if err != nil {
		writeError(w, r, err, "Failed to register")
		return
	}

	h.startSession(w, r, u, http.StatusCreated)
}

// HandleLogin handles POST /api/auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	u, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err, "Failed to log in")
		return
	}

	h.startSession(w, r, u, http.StatusOK)
}

// HandleLogout handles POST /api/auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, u *user.User, status int) {
	token, err := h.jwt.Generate(u.ID, u.Email)
	if err != nil {
		writeError(w, r, err, "Failed to create session")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, status, AuthResponse{Token: token, User: u})
}
