// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Server settings.
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	MaxRequestBodyBytes int64 // Maximum request body size in bytes.

	// Database settings.
	DatabaseURL string

	// Intelligence provider credentials. All four are required at boot.
	IntelligenceABaseURL string
	IntelligenceAToken   string
	IntelligenceBBaseURL string
	IntelligenceBToken   string

	// Upstream call budgets. Lookup covers the short per-vessel GETs; Bulk
	// covers the slow endpoints (provider A risk scoring, compliance risks
	// and voyage events; provider B bulk risk), which the contract allows
	// to take 120s or more.
	UpstreamLookupTimeout time.Duration
	UpstreamBulkTimeout   time.Duration

	// Fanout bounds concurrent check evaluation within one screening.
	Fanout int

	// Redis settings for the optional cross-session upstream cache.
	// Empty RedisAddr disables the layer.
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	UpstreamCacheTTL time.Duration

	// Auth settings. Both optional; with neither configured the API runs
	// open (dev posture) and logs a warning.
	JWTPublicKeyPath string   // Path to Ed25519 public key PEM file.
	APIKeyHashes     []string // Argon2id hashes of accepted API keys.

	// Rate limiting.
	RateLimitEnabled bool
	RateLimitRPS     float64
	RateLimitBurst   int

	// MCP surface.
	MCPEnabled bool

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	// Operational settings.
	LogLevel                   string
	IdempotencyCleanupInterval time.Duration
	IdempotencyCompletedTTL    time.Duration
	IdempotencyAbandonedTTL    time.Duration
	ShutdownHTTPTimeout        time.Duration
	SkipEmbeddedMigrations     bool
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		Port:                       envInt("MARISK_PORT", 8080),
		ReadTimeout:                envDuration("MARISK_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:               envDuration("MARISK_WRITE_TIMEOUT", 180*time.Second),
		MaxRequestBodyBytes:        int64(envInt("MARISK_MAX_REQUEST_BODY_BYTES", 1*1024*1024)), // 1 MB default
		DatabaseURL:                envStr("MARISK_DATABASE_URL", ""),
		IntelligenceABaseURL:       envStr("MARISK_INTA_BASE_URL", ""),
		IntelligenceAToken:         envStr("MARISK_INTA_TOKEN", ""),
		IntelligenceBBaseURL:       envStr("MARISK_INTB_BASE_URL", ""),
		IntelligenceBToken:         envStr("MARISK_INTB_TOKEN", ""),
		UpstreamLookupTimeout:      envDuration("MARISK_UPSTREAM_LOOKUP_TIMEOUT", 15*time.Second),
		UpstreamBulkTimeout:        envDuration("MARISK_UPSTREAM_BULK_TIMEOUT", 150*time.Second),
		Fanout:                     envInt("MARISK_FANOUT", 8),
		RedisAddr:                  envStr("MARISK_REDIS_ADDR", ""),
		RedisPassword:              envStr("MARISK_REDIS_PASSWORD", ""),
		RedisDB:                    envInt("MARISK_REDIS_DB", 0),
		UpstreamCacheTTL:           envDuration("MARISK_UPSTREAM_CACHE_TTL", 10*time.Minute),
		JWTPublicKeyPath:           envStr("MARISK_JWT_PUBLIC_KEY", ""),
		APIKeyHashes:               envList("MARISK_API_KEY_HASHES"),
		RateLimitEnabled:           envBool("MARISK_RATE_LIMIT_ENABLED", true),
		RateLimitRPS:               envFloat("MARISK_RATE_LIMIT_RPS", 20),
		RateLimitBurst:             envInt("MARISK_RATE_LIMIT_BURST", 40),
		MCPEnabled:                 envBool("MARISK_MCP_ENABLED", false),
		OTELEndpoint:               envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure:               envBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		ServiceName:                envStr("OTEL_SERVICE_NAME", "marisk"),
		LogLevel:                   envStr("MARISK_LOG_LEVEL", "info"),
		IdempotencyCleanupInterval: envDuration("MARISK_IDEMPOTENCY_CLEANUP_INTERVAL", 10*time.Minute),
		IdempotencyCompletedTTL:    envDuration("MARISK_IDEMPOTENCY_COMPLETED_TTL", 24*time.Hour),
		IdempotencyAbandonedTTL:    envDuration("MARISK_IDEMPOTENCY_ABANDONED_TTL", 1*time.Hour),
		ShutdownHTTPTimeout:        envDuration("MARISK_SHUTDOWN_HTTP_TIMEOUT", 20*time.Second),
		SkipEmbeddedMigrations:     envBool("MARISK_SKIP_MIGRATIONS", false),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present. Screening cannot
// run without the database and both intelligence providers, so their
// absence is fatal at boot.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("config: MARISK_DATABASE_URL is required")
	}
	if c.IntelligenceABaseURL == "" {
		return fmt.Errorf("config: MARISK_INTA_BASE_URL is required")
	}
	if c.IntelligenceAToken == "" {
		return fmt.Errorf("config: MARISK_INTA_TOKEN is required")
	}
	if c.IntelligenceBBaseURL == "" {
		return fmt.Errorf("config: MARISK_INTB_BASE_URL is required")
	}
	if c.IntelligenceBToken == "" {
		return fmt.Errorf("config: MARISK_INTB_TOKEN is required")
	}
	if c.Fanout <= 0 {
		return fmt.Errorf("config: MARISK_FANOUT must be positive")
	}
	if c.MaxRequestBodyBytes <= 0 {
		return fmt.Errorf("config: MARISK_MAX_REQUEST_BODY_BYTES must be positive")
	}
	if c.RateLimitEnabled && c.RateLimitRPS <= 0 {
		return fmt.Errorf("config: MARISK_RATE_LIMIT_RPS must be positive when rate limiting is enabled")
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

// envList splits a comma-separated value, trimming whitespace and dropping
// empty entries.
func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
