package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/GoCodeAlone/registry/api"
	"github.com/GoCodeAlone/registry/artifact"
	"github.com/GoCodeAlone/registry/store"
	"github.com/GoCodeAlone/registry/version"
	"golang.org/x/crypto/bcrypt"
)

var (
	addr          = flag.String("addr", ":8080", "HTTP listen address")
	databaseURL   = flag.String("database-url", "", "PostgreSQL connection URL; empty uses an embedded SQLite database under -data-dir")
	dataDir       = flag.String("data-dir", "./data", "Root directory for artifact storage and the embedded database")
	jwtSecret     = flag.String("jwt-secret", "", "HMAC secret for signing access tokens (required)")
	jwtIssuer     = flag.String("jwt-issuer", "registry", "Issuer claim for access tokens")
	tokenTTL      = flag.String("token-ttl", "1h", "Access token lifetime")
	authRateLimit = flag.Int("auth-rate-limit", 10, "Token endpoint requests per minute per IP")
	ioWorkers     = flag.Int("io-workers", 4, "File I/O worker count")
	adminUser     = flag.String("admin-user", "admin", "Bootstrap admin username")
	adminPassword = flag.String("admin-password", "", "Bootstrap admin password; when empty no admin is seeded (or set REGISTRY_ADMIN_PASSWORD)")
)

func main() {
	flag.Parse()
	applyEnvOverrides()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if *jwtSecret == "" {
		log.Fatal("jwt-secret is required (flag -jwt-secret or REGISTRY_JWT_SECRET)")
	}
	ttl, err := time.ParseDuration(*tokenTTL)
	if err != nil {
		log.Fatalf("Invalid token-ttl %q: %v", *tokenTTL, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	users, versions, closeStore, err := openStore(ctx, *databaseURL, *dataDir)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer closeStore()

	pool := artifact.NewPool(artifact.PoolConfig{Workers: *ioWorkers})
	if err := pool.Start(ctx); err != nil {
		log.Fatalf("Failed to start worker pool: %v", err)
	}

	artifacts, err := artifact.NewLocalStore(
		filepath.Join(*dataDir, "archive"),
		filepath.Join(*dataDir, "active"),
		pool,
	)
	if err != nil {
		log.Fatalf("Failed to create artifact store: %v", err)
	}

	svc := version.NewService(versions, artifacts, logger)

	if *adminPassword != "" {
		if err := seedAdmin(ctx, users, *adminUser, *adminPassword, logger); err != nil {
			log.Fatalf("Failed to seed admin user: %v", err)
		}
	} else {
		logger.Warn("no admin password configured, skipping admin bootstrap")
	}

	handler := api.NewRouter(users, svc, api.Config{
		JWTSecret:     *jwtSecret,
		JWTIssuer:     *jwtIssuer,
		AccessTTL:     ttl,
		AuthRateLimit: *authRateLimit,
	})

	server := &http.Server{
		Addr:              *addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting server", "addr", *addr, "data_dir", *dataDir)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for termination signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	pool.Stop()

	logger.Info("Shutdown complete")
}

// isPostgresURL reports whether the database URL selects the PostgreSQL
// backend. Anything else is treated as an SQLite file path.
func isPostgresURL(u string) bool {
	return strings.HasPrefix(u, "postgres://") || strings.HasPrefix(u, "postgresql://")
}

// openStore opens the configured database backend, runs migrations, and
// returns the domain stores together with a close function.
func openStore(ctx context.Context, databaseURL, dataDir string) (store.UserStore, store.VersionStore, func(), error) {
	if isPostgresURL(databaseURL) {
		pg, err := store.NewPGStore(ctx, store.PGConfig{URL: databaseURL})
		if err != nil {
			return nil, nil, nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, nil, nil, fmt.Errorf("migrate: %w", err)
		}
		return pg.Users(), pg.Versions(), pg.Close, nil
	}

	path := databaseURL
	if path == "" {
		path = filepath.Join(dataDir, "registry.db")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, nil, nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := store.NewSQLiteStore(path)
	if err != nil {
		return nil, nil, nil, err
	}
	return db.Users(), db.Versions(), func() { _ = db.Close() }, nil
}

// seedAdmin creates the bootstrap admin account when the user table is
// empty. On a populated database it is a no-op, so restarting with the
// same flags never clobbers existing accounts.
func seedAdmin(ctx context.Context, users store.UserStore, username, password string, logger *slog.Logger) error {
	existing, err := users.List(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	u := &store.User{
		Username:     username,
		PasswordHash: string(hash),
		Roles:        []store.Role{store.RoleAdmin},
	}
	if err := users.Create(ctx, u); err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}
	logger.Info("Bootstrap admin user created", "username", username)
	return nil
}
