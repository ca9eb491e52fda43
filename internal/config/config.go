// Package config provides centralized configuration loaded from environment
// variables. Values are read once at startup and never change afterwards.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Defaults: the shop feed and watchlist the monitor was built for
// --------------------------------------------------------------------------

const DefaultShopURL = "https://api.joshlei.com/v2/growagarden/stock"

var DefaultCategories = []string{"seed_stock", "gear_stock", "egg_stock"}

var DefaultWatchlist = []string{
	"Master Sprinkler", "Godly Sprinkler", "Bug Egg", "Bee Egg",
	"Burning Bud", "Sugar Apple", "Ember Lily",
	"Beanstalk", "Tanning Mirror", "Lightning Rod",
}

// --------------------------------------------------------------------------
// Config struct, populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Shop feed
	ShopURL    string
	Categories []string
	Watchlist  []string

	// Scheduling
	PollFallback     time.Duration
	FetchTimeout     time.Duration
	FetchMinInterval time.Duration
	FetchMaxRetries  int
	FetchBackoff     time.Duration
	FetchMaxBackoff  time.Duration

	// Mail relay
	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	MailFrom string
	MailTo   []string

	// Status API (empty StatusAddr disables it)
	StatusAddr       string
	CORSAllowOrigins []string

	// Rate limiting (status API)
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	Environment string // development, staging, production
	Debug       bool
	LogLevel    string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	user := envOr("SMTP_USER", "")
	cfg := &Config{
		ShopURL:    envOr("SHOP_URL", DefaultShopURL),
		Categories: envList("SHOP_CATEGORIES", DefaultCategories),
		Watchlist:  envList("WATCHLIST", DefaultWatchlist),

		PollFallback:     time.Duration(envInt("POLL_FALLBACK_SECONDS", 5)) * time.Second,
		FetchTimeout:     envDuration("FETCH_TIMEOUT", 30*time.Second),
		FetchMinInterval: envDuration("FETCH_MIN_INTERVAL", time.Second),
		FetchMaxRetries:  envInt("FETCH_MAX_RETRIES", 5),
		FetchBackoff:     envDuration("FETCH_RETRY_BACKOFF", 5*time.Second),
		FetchMaxBackoff:  envDuration("FETCH_RETRY_MAX_BACKOFF", 30*time.Second),

		SMTPHost: envOr("SMTP_HOST", ""),
		SMTPPort: envInt("SMTP_PORT", 587),
		SMTPUser: user,
		SMTPPass: envOr("SMTP_PASS", ""),
		MailFrom: envOr("MAIL_FROM", user),
		MailTo:   envList("MAIL_TO", nil),

		StatusAddr:       envOr("STATUS_ADDR", ""),
		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{"http://localhost:3000"}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		Environment: envOr("ENVIRONMENT", "development"),
		Debug:       envBool("DEBUG", false),
		LogLevel:    envOr("LOG_LEVEL", "info"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.ShopURL == "" {
		return fmt.Errorf("SHOP_URL must not be empty")
	}
	if len(c.Categories) == 0 {
		return fmt.Errorf("SHOP_CATEGORIES must list at least one category")
	}
	if c.PollFallback <= 0 {
		return fmt.Errorf("POLL_FALLBACK_SECONDS must be positive, got %s", c.PollFallback)
	}
	if c.FetchMaxRetries < 0 {
		return fmt.Errorf("FETCH_MAX_RETRIES must not be negative")
	}
	if c.SMTPHost != "" && len(c.MailTo) == 0 {
		return fmt.Errorf("MAIL_TO is required when SMTP_HOST is set")
	}
	return nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// MailEnabled reports whether alerts go out by email.
func (c *Config) MailEnabled() bool {
	return c.SMTPHost != "" && c.MailFrom != "" && len(c.MailTo) > 0
}

// SlogLevel maps LOG_LEVEL (and DEBUG) to a slog level.
func (c *Config) SlogLevel() slog.Level {
	if c.Debug {
		return slog.LevelDebug
	}
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

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
