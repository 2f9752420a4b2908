package main

import (
	"flag"
	"os"
	"testing"
)

func TestEnvOrFlag(t *testing.T) {
	t.Run("returns env when set", func(t *testing.T) {
		t.Setenv("TEST_ENV_OR_FLAG", "from-env")
		flagVal := "from-flag"
		got := envOrFlag("TEST_ENV_OR_FLAG", &flagVal)
		if got != "from-env" {
			t.Errorf("envOrFlag = %q, want %q", got, "from-env")
		}
	})

	t.Run("returns flag when env not set", func(t *testing.T) {
		flagVal := "from-flag"
		got := envOrFlag("UNSET_ENV_VAR_XYZ", &flagVal)
		if got != "from-flag" {
			t.Errorf("envOrFlag = %q, want %q", got, "from-flag")
		}
	})

	t.Run("returns empty when both unset", func(t *testing.T) {
		got := envOrFlag("UNSET_ENV_VAR_XYZ", nil)
		if got != "" {
			t.Errorf("envOrFlag = %q, want empty", got)
		}
	})
}

func TestApplyEnvOverrides(t *testing.T) {
	// Save and restore original flag values after test.
	origAddr := *addr
	origDatabaseURL := *databaseURL
	origDataDir := *dataDir
	origJwtSecret := *jwtSecret
	origAdminPassword := *adminPassword
	origRateLimit := *authRateLimit
	t.Cleanup(func() {
		*addr = origAddr
		*databaseURL = origDatabaseURL
		*dataDir = origDataDir
		*jwtSecret = origJwtSecret
		*adminPassword = origAdminPassword
		*authRateLimit = origRateLimit
	})

	t.Run("REGISTRY_ADDR sets addr flag", func(t *testing.T) {
		*addr = ":8080"
		t.Setenv("REGISTRY_ADDR", ":9090")
		applyEnvOverrides()
		if *addr != ":9090" {
			t.Errorf("addr = %q, want %q", *addr, ":9090")
		}
	})

	t.Run("REGISTRY_DATABASE_URL sets database-url flag", func(t *testing.T) {
		*databaseURL = ""
		t.Setenv("REGISTRY_DATABASE_URL", "postgres://localhost/registry")
		applyEnvOverrides()
		if *databaseURL != "postgres://localhost/registry" {
			t.Errorf("databaseURL = %q, want %q", *databaseURL, "postgres://localhost/registry")
		}
	})

	t.Run("REGISTRY_DATA_DIR sets data-dir flag", func(t *testing.T) {
		*dataDir = "./data"
		t.Setenv("REGISTRY_DATA_DIR", "/var/lib/registry")
		applyEnvOverrides()
		if *dataDir != "/var/lib/registry" {
			t.Errorf("dataDir = %q, want %q", *dataDir, "/var/lib/registry")
		}
	})

	t.Run("REGISTRY_JWT_SECRET sets jwt-secret flag", func(t *testing.T) {
		*jwtSecret = ""
		t.Setenv("REGISTRY_JWT_SECRET", "my-secret")
		applyEnvOverrides()
		if *jwtSecret != "my-secret" {
			t.Errorf("jwtSecret = %q, want %q", *jwtSecret, "my-secret")
		}
	})

	t.Run("REGISTRY_ADMIN_PASSWORD sets admin-password flag", func(t *testing.T) {
		*adminPassword = ""
		t.Setenv("REGISTRY_ADMIN_PASSWORD", "bootstrap-pass")
		applyEnvOverrides()
		if *adminPassword != "bootstrap-pass" {
			t.Errorf("adminPassword = %q, want %q", *adminPassword, "bootstrap-pass")
		}
	})

	t.Run("REGISTRY_AUTH_RATE_LIMIT sets auth-rate-limit flag", func(t *testing.T) {
		*authRateLimit = 10
		t.Setenv("REGISTRY_AUTH_RATE_LIMIT", "25")
		applyEnvOverrides()
		if *authRateLimit != 25 {
			t.Errorf("authRateLimit = %d, want 25", *authRateLimit)
		}
	})

	t.Run("non-numeric rate limit is ignored", func(t *testing.T) {
		*authRateLimit = 10
		t.Setenv("REGISTRY_AUTH_RATE_LIMIT", "lots")
		applyEnvOverrides()
		if *authRateLimit != 10 {
			t.Errorf("authRateLimit = %d, want 10", *authRateLimit)
		}
	})

	t.Run("explicit flag not overridden by env", func(t *testing.T) {
		// Use flag.Set so the flag appears in the "visited" set, which
		// is what happens when the user passes -addr on the command line.
		_ = flag.Set("addr", ":7777")
		t.Setenv("REGISTRY_ADDR", ":9999")

		applyEnvOverrides()
		if *addr != ":7777" {
			t.Errorf("addr = %q, want %q (explicit flag should not be overridden by env)", *addr, ":7777")
		}
	})
}

func TestEnvOverridesDoNotPanic(t *testing.T) {
	origAddr := *addr
	origDataDir := *dataDir
	t.Cleanup(func() {
		*addr = origAddr
		*dataDir = origDataDir
	})

	// Clear all relevant env vars.
	for _, key := range []string{
		"REGISTRY_ADDR",
		"REGISTRY_DATABASE_URL",
		"REGISTRY_DATA_DIR",
		"REGISTRY_JWT_SECRET",
		"REGISTRY_JWT_ISSUER",
		"REGISTRY_TOKEN_TTL",
		"REGISTRY_ADMIN_USER",
		"REGISTRY_ADMIN_PASSWORD",
		"REGISTRY_AUTH_RATE_LIMIT",
		"REGISTRY_IO_WORKERS",
	} {
		os.Unsetenv(key)
	}

	applyEnvOverrides() // must not panic
}
