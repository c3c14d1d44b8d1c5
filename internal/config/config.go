// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// AuthConfig holds authentication configuration. Either an OIDC issuer
// or a shared HS256 secret must be configured for auth to be enabled.
type AuthConfig struct {
	IssuerURL string // OIDC issuer URL for JWKS discovery
	Audience  string // required audience claim when IssuerURL is set
	JWTSecret string // HS256 shared secret for local/dev tokens
}

// Enabled reports whether any token validation is configured.
func (a *AuthConfig) Enabled() bool {
	return a.IssuerURL != "" || a.JWTSecret != ""
}

// Validate checks that the auth configuration is internally consistent.
func (a *AuthConfig) Validate() error {
	if a.IssuerURL != "" && a.Audience == "" {
		return fmt.Errorf("AUTH_AUDIENCE is required when AUTH_ISSUER_URL is set")
	}
	return nil
}

// Config holds the engine's process configuration.
type Config struct {
	DataDriver       string // "sqlite" or "duckdb"
	DataDBPath       string // path to the data store file
	DataReadConns    int    // read pool size for the sqlite driver
	AuditDBPath      string // path to the SQLite audit store
	SchemaConfigPath string // YAML table whitelist / access policy

	ListenAddr string // HTTP listen address (default ":8080")
	LogLevel   string // debug, info, warn, error (default "info")
	Env        string // "development" (default) or "production"

	// Rate limiting
	RateLimitRPS   float64 // sustained requests per second (default 100)
	RateLimitBurst int     // burst capacity (default 200)

	// CORS
	CORSAllowedOrigins []string // allowed origins (default: ["*"])

	CacheTTL    time.Duration // schema cache entry lifetime (default 5m)
	CacheSweep  string        // cron spec for the expiry sweep (default "@every 1m")
	AuditBuffer int           // audit recorder queue size (0 = default)

	Auth AuthConfig

	// Warnings collects non-fatal notes generated during loading. They
	// are logged by the caller once the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// LoadFromEnv loads configuration from environment variables and applies
// defaults. Insecure defaults are warnings in development and fatal in
// production.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		DataDriver:       os.Getenv("DATA_DRIVER"),
		DataDBPath:       os.Getenv("DATA_DB_PATH"),
		AuditDBPath:      os.Getenv("AUDIT_DB_PATH"),
		SchemaConfigPath: os.Getenv("SCHEMA_CONFIG_PATH"),
		ListenAddr:       os.Getenv("LISTEN_ADDR"),
		LogLevel:         os.Getenv("LOG_LEVEL"),
		Env:              os.Getenv("ENV"),
		CacheSweep:       os.Getenv("CACHE_SWEEP_SCHEDULE"),
		Auth: AuthConfig{
			IssuerURL: os.Getenv("AUTH_ISSUER_URL"),
			Audience:  os.Getenv("AUTH_AUDIENCE"),
			JWTSecret: os.Getenv("JWT_SECRET"),
		},
	}

	if v := os.Getenv("DATA_READ_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DataReadConns = n
		}
	}
	if v := os.Getenv("AUDIT_BUFFER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.AuditBuffer = n
		}
	}
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = f
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitBurst = n
		}
	}
	if v := os.Getenv("CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("CACHE_TTL: %w", err)
		}
		cfg.CacheTTL = d
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORSAllowedOrigins = origins
	}

	// Defaults
	if cfg.DataDriver == "" {
		cfg.DataDriver = "sqlite"
	}
	if cfg.DataDBPath == "" {
		cfg.DataDBPath = "datagate.sqlite"
	}
	if cfg.DataReadConns <= 0 {
		cfg.DataReadConns = 4
	}
	if cfg.AuditDBPath == "" {
		cfg.AuditDBPath = "datagate_audit.sqlite"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 100
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 200
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.CacheSweep == "" {
		cfg.CacheSweep = "@every 1m"
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}

	switch cfg.DataDriver {
	case "sqlite", "duckdb":
	default:
		return nil, fmt.Errorf("DATA_DRIVER must be sqlite or duckdb, got %q", cfg.DataDriver)
	}
	if cfg.SchemaConfigPath == "" {
		return nil, fmt.Errorf("SCHEMA_CONFIG_PATH is required")
	}
	if err := cfg.Auth.Validate(); err != nil {
		return nil, err
	}

	if !cfg.Auth.Enabled() {
		cfg.Warnings = append(cfg.Warnings, "auth is not configured — every caller is recorded as anonymous")
	}

	// Production mode: insecure defaults are fatal.
	if cfg.IsProduction() {
		if !cfg.Auth.Enabled() {
			return nil, fmt.Errorf("auth must be configured in production (set AUTH_ISSUER_URL or JWT_SECRET)")
		}
		if len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*" {
			return nil, fmt.Errorf("CORS wildcard (*) is not allowed in production (ENV=production)")
		}
	}

	return cfg, nil
}

// LoadDotEnv reads a .env file and sets any variables not already in the
// environment. Lines must be KEY=VALUE; comments (#) and blank lines are
// skipped. A missing file is not an error.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = stripQuotes(strings.TrimSpace(value))
		// Real environment variables take precedence.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes matching surrounding double or single quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
