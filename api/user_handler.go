package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/GoCodeAlone/registry/store"
	"golang.org/x/crypto/bcrypt"
)

// UserHandler handles user account endpoints.
type UserHandler struct {
	users store.UserStore
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users store.UserStore) *UserHandler {
	return &UserHandler{users: users}
}

// Register handles POST /api/v1/users (admin only).
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string   `json:"username"`
		Email    string   `json:"email"`
		Password string   `json:"password"` //nolint:gosec // G117: request DTO field
		Roles    []string `json:"roles"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		WriteError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	roles := make([]store.Role, 0, len(req.Roles))
	for _, r := range req.Roles {
		role := store.Role(r)
		if !store.ValidRoles[role] {
			WriteError(w, http.StatusBadRequest, "invalid role: "+r)
			return
		}
		roles = append(roles, role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	user := &store.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		Roles:        roles,
	}
	if err := h.users.Create(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			WriteError(w, http.StatusConflict, "username already registered")
			return
		}
		WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	WriteJSON(w, http.StatusCreated, user)
}

// Me handles GET /api/v1/users/me.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	WriteJSON(w, http.StatusOK, user)
}

// List handles GET /api/v1/users (admin only).
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if users == nil {
		users = []*store.User{}
	}
	WriteJSON(w, http.StatusOK, users)
}
