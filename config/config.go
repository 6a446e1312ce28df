package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Scan      ScanConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Cache     CacheConfig
	Store     StoreConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 3000
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// MaxPages is the page pool capacity (max concurrent scans).
	MaxPages int // default: 5

	// DefaultProxy is the proxy URL for all page loads.
	DefaultProxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: true

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string
}

// ScanConfig controls the page-load session around each scan.
type ScanConfig struct {
	// DefaultTimeout is the per-scan hard ceiling when the client sends none.
	DefaultTimeout time.Duration // default: 30s

	// MaxTimeout is the maximum allowed timeout from the client.
	MaxTimeout time.Duration // default: 120s

	// NavigationTimeout is the max time for page.Navigate alone.
	NavigationTimeout time.Duration // default: 15s

	// IdleWindow is how long the network must be quiet before the page
	// load counts as settled.
	IdleWindow time.Duration // default: 500ms

	// BodyGrace bounds how long finalization waits for in-flight body reads.
	BodyGrace time.Duration // default: 2s
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: false

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 2

	// Burst is the maximum burst size per API key.
	Burst int // default: 5
}

// CORSConfig controls cross-origin access for the dashboard.
type CORSConfig struct {
	// AllowOrigins lists allowed origins; "*" allows all.
	AllowOrigins []string // default: ["*"]
}

// CacheConfig controls the scan response cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached responses.
	MaxEntries int // default: 500
}

// StoreConfig controls scan history persistence.
type StoreConfig struct {
	// DSN is the sqlite database path. Empty disables history.
	DSN string // default: "ecoaudit.db"
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"

	// File, when set, also writes logs to a rotating file.
	File       string
	MaxSizeMB  int // default: 50
	MaxBackups int // default: 5
	MaxAgeDays int // default: 14
}

// Load reads configuration from environment variables with sane defaults.
// Variables from a .env file in the working directory are loaded first;
// a missing file is not an error.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to parse .env file, using process environment", "error", err)
	}

	return &Config{
		Server: ServerConfig{
			Host: envOr("ECOAUDIT_HOST", "0.0.0.0"),
			Port: envIntOr("ECOAUDIT_PORT", 3000),
			Mode: envOr("ECOAUDIT_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:     envBoolOr("ECOAUDIT_HEADLESS", true),
			MaxPages:     envIntOr("ECOAUDIT_MAX_PAGES", 5),
			DefaultProxy: os.Getenv("ECOAUDIT_PROXY"),
			NoSandbox:    envBoolOr("ECOAUDIT_NO_SANDBOX", true),
			BrowserBin:   os.Getenv("ECOAUDIT_BROWSER_BIN"),
		},
		Scan: ScanConfig{
			DefaultTimeout:    envDurationOr("ECOAUDIT_DEFAULT_TIMEOUT", 30*time.Second),
			MaxTimeout:        envDurationOr("ECOAUDIT_MAX_TIMEOUT", 120*time.Second),
			NavigationTimeout: envDurationOr("ECOAUDIT_NAV_TIMEOUT", 15*time.Second),
			IdleWindow:        envDurationOr("ECOAUDIT_IDLE_WINDOW", 500*time.Millisecond),
			BodyGrace:         envDurationOr("ECOAUDIT_BODY_GRACE", 2*time.Second),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("ECOAUDIT_AUTH_ENABLED", false),
			APIKeys: envSliceOr("ECOAUDIT_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("ECOAUDIT_RATE_RPS", 2.0),
			Burst:             envIntOr("ECOAUDIT_RATE_BURST", 5),
		},
		CORS: CORSConfig{
			AllowOrigins: envSliceOr("ECOAUDIT_CORS_ORIGINS", []string{"*"}),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("ECOAUDIT_CACHE_MAX_ENTRIES", 500),
		},
		Store: StoreConfig{
			DSN: envOr("ECOAUDIT_DB", "ecoaudit.db"),
		},
		Log: LogConfig{
			Level:      envOr("ECOAUDIT_LOG_LEVEL", "info"),
			Format:     envOr("ECOAUDIT_LOG_FORMAT", "json"),
			File:       os.Getenv("ECOAUDIT_LOG_FILE"),
			MaxSizeMB:  envIntOr("ECOAUDIT_LOG_MAX_SIZE_MB", 50),
			MaxBackups: envIntOr("ECOAUDIT_LOG_MAX_BACKUPS", 5),
			MaxAgeDays: envIntOr("ECOAUDIT_LOG_MAX_AGE_DAYS", 14),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
