package api

import (
	"net/http"
	"time"

	"github.com/GoCodeAlone/registry/store"
	"github.com/GoCodeAlone/registry/version"
)

// Config holds configuration for the API layer.
type Config struct {
	JWTSecret string //nolint:gosec // G117: config field
	JWTIssuer string
	AccessTTL time.Duration

	// AuthRateLimit is the maximum number of requests per minute per IP
	// allowed on the /token endpoint. Defaults to 10 when zero.
	AuthRateLimit int
}

// NewRouter creates an http.Handler with all API v1 routes registered.
func NewRouter(users store.UserStore, versions *version.Service, cfg Config) http.Handler {
	mux := http.NewServeMux()

	secret := []byte(cfg.JWTSecret)
	mw := NewMiddleware(secret, users)

	// --- Auth ---
	authH := NewAuthHandler(users, secret, cfg.JWTIssuer, cfg.AccessTTL)
	authRL := mw.RateLimit(cfg.AuthRateLimit)
	mux.Handle("POST /api/v1/token", authRL(http.HandlerFunc(authH.Token)))

	// --- Users ---
	userH := NewUserHandler(users)
	mux.Handle("POST /api/v1/users", mw.RequireAuth(
		mw.RequireRole(store.RoleAdmin)(http.HandlerFunc(userH.Register))))
	mux.Handle("GET /api/v1/users/me", mw.RequireAuth(http.HandlerFunc(userH.Me)))
	mux.Handle("GET /api/v1/users", mw.RequireAuth(
		mw.RequireRole(store.RoleAdmin)(http.HandlerFunc(userH.List))))

	// --- Versions ---
	verH := NewVersionHandler(versions)
	mux.Handle("POST /api/v1/versions/save", mw.RequireAuth(http.HandlerFunc(verH.Save)))
	mux.Handle("GET /api/v1/versions", mw.RequireAuth(http.HandlerFunc(verH.List)))
	mux.Handle("GET /api/v1/versions/{id}", mw.RequireAuth(http.HandlerFunc(verH.Get)))
	mux.Handle("POST /api/v1/versions/restore/{id}", mw.RequireAuth(http.HandlerFunc(verH.Restore)))

	return mux
}
