package http

import (
	"net/http"

	"balancebook/internal/domain/user"
)

type UserHandler struct {
	users UserService
}

func NewUserHandler(users UserService) *UserHandler {
	return &UserHandler{users: users}
}

// HandleGetMe handles GET /api/users/me
func (h *UserHandler) HandleGetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	u, err := h.users.Get(r.Context(), userID)
	if err != nil {
		writeError(w, r, err, "Failed to get user")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// HandleUpdateMe handles PATCH /api/users/me
func (h *UserHandler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var params user.UpdateUserParams
	if err := decodeJSON(w, r, &params); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	u, err := h.users.Update(r.Context(), userID, params)
	if err != nil {
		writeError(w, r, err, "Failed to update user")
		return
	}
	writeJSON(w, http.StatusOK, u)
}
