package main

import (
	"flag"
	"os"
	"strconv"
)

// envOrFlag returns the environment value when set, otherwise the flag value.
func envOrFlag(envKey string, flagVal *string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	if flagVal != nil {
		return *flagVal
	}
	return ""
}

// applyEnvOverrides copies REGISTRY_* environment variables into their
// corresponding flags. A flag passed explicitly on the command line always
// wins over the environment.
func applyEnvOverrides() {
	visited := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { visited[f.Name] = true })

	setString := func(flagName, envKey string, target *string) {
		if visited[flagName] {
			return
		}
		if v := os.Getenv(envKey); v != "" {
			*target = v
		}
	}
	setInt := func(flagName, envKey string, target *int) {
		if visited[flagName] {
			return
		}
		if v := os.Getenv(envKey); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*target = n
			}
		}
	}

	setString("addr", "REGISTRY_ADDR", addr)
	setString("database-url", "REGISTRY_DATABASE_URL", databaseURL)
	setString("data-dir", "REGISTRY_DATA_DIR", dataDir)
	setString("jwt-secret", "REGISTRY_JWT_SECRET", jwtSecret)
	setString("jwt-issuer", "REGISTRY_JWT_ISSUER", jwtIssuer)
	setString("token-ttl", "REGISTRY_TOKEN_TTL", tokenTTL)
	setString("admin-user", "REGISTRY_ADMIN_USER", adminUser)
	setString("admin-password", "REGISTRY_ADMIN_PASSWORD", adminPassword)
	setInt("auth-rate-limit", "REGISTRY_AUTH_RATE_LIMIT", authRateLimit)
	setInt("io-workers", "REGISTRY_IO_WORKERS", ioWorkers)
}
