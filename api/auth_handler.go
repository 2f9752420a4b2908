package api

import (
	"net/http"
	"time"

	"github.com/GoCodeAlone/registry/store"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// AuthHandler handles the token endpoint.
type AuthHandler struct {
	users     store.UserStore
	secret    []byte
	issuer    string
	accessTTL time.Duration
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(users store.UserStore, secret []byte, issuer string, accessTTL time.Duration) *AuthHandler {
	if accessTTL == 0 {
		accessTTL = time.Hour
	}
	return &AuthHandler{
		users:     users,
		secret:    secret,
		issuer:    issuer,
		accessTTL: accessTTL,
	}
}

// tokenResponse is the JSON shape returned to callers.
type tokenResponse struct {
	AccessToken string `json:"access_token"` //nolint:gosec // G117: token response field
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Token handles POST /api/v1/token. Credentials arrive as a form-encoded
// body (username, password) and a bearer access token is returned.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	if username == "" || password == "" {
		WriteError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	user, err := h.users.GetByUsername(r.Context(), username)
	if err != nil {
		// Burn a comparison anyway so missing and wrong-password
		// responses take similar time.
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$0000000000000000000000"), []byte(password))
		unauthorized(w)
		return
	}
	if user.Disabled {
		unauthorized(w)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		unauthorized(w)
		return
	}

	token, err := h.generateToken(user)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	WriteJSON(w, http.StatusOK, token)
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	WriteError(w, http.StatusUnauthorized, "incorrect username or password")
}

func (h *AuthHandler) generateToken(user *store.User) (*tokenResponse, error) {
	now := time.Now()

	roles := make([]string, len(user.Roles))
	for i, r := range user.Roles {
		roles[i] = string(r)
	}
	claims := jwt.MapClaims{
		"sub":   user.Username,
		"roles": roles,
		"iat":   now.Unix(),
		"exp":   now.Add(h.accessTTL).Unix(),
	}
	if h.issuer != "" {
		claims["iss"] = h.issuer
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
	if err != nil {
		return nil, err
	}

	return &tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(h.accessTTL.Seconds()),
	}, nil
}
