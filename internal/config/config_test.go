package config

import (
	"log/slog"
	"reflect"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"SHOP_URL", "SHOP_CATEGORIES", "WATCHLIST", "POLL_FALLBACK_SECONDS", "SMTP_HOST", "MAIL_TO", "DEBUG", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ShopURL != DefaultShopURL {
		t.Errorf("unexpected shop url %q", cfg.ShopURL)
	}
	if !reflect.DeepEqual(cfg.Categories, DefaultCategories) {
		t.Errorf("unexpected categories %v", cfg.Categories)
	}
	if cfg.PollFallback != 5*time.Second {
		t.Errorf("expected 5s fallback, got %s", cfg.PollFallback)
	}
	if cfg.MailEnabled() {
		t.Error("mail should be disabled without SMTP_HOST")
	}
	if cfg.SlogLevel() != slog.LevelInfo {
		t.Errorf("expected info level, got %v", cfg.SlogLevel())
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("SHOP_CATEGORIES", " seed_stock , egg_stock ,")
	t.Setenv("WATCHLIST", "Beanstalk")
	t.Setenv("POLL_FALLBACK_SECONDS", "3")
	t.Setenv("FETCH_TIMEOUT", "10s")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_USER", "bot@example.com")
	t.Setenv("MAIL_FROM", "")
	t.Setenv("MAIL_TO", "a@example.com,b@example.com")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("DEBUG", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(cfg.Categories, []string{"seed_stock", "egg_stock"}) {
		t.Errorf("unexpected categories %v", cfg.Categories)
	}
	if cfg.PollFallback != 3*time.Second || cfg.FetchTimeout != 10*time.Second {
		t.Errorf("unexpected durations: %s %s", cfg.PollFallback, cfg.FetchTimeout)
	}
	if cfg.MailFrom != "bot@example.com" {
		t.Errorf("MAIL_FROM should default to SMTP_USER, got %q", cfg.MailFrom)
	}
	if !cfg.MailEnabled() || len(cfg.MailTo) != 2 {
		t.Errorf("expected mail enabled with 2 recipients: %+v", cfg.MailTo)
	}
	if cfg.SlogLevel() != slog.LevelWarn {
		t.Errorf("expected warn level, got %v", cfg.SlogLevel())
	}
}

func TestLoad_Validation(t *testing.T) {
	t.Setenv("POLL_FALLBACK_SECONDS", "0")
	if _, err := Load(); err == nil {
		t.Error("expected error for zero fallback")
	}

	t.Setenv("POLL_FALLBACK_SECONDS", "5")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("MAIL_TO", "")
	if _, err := Load(); err == nil {
		t.Error("expected error for SMTP_HOST without MAIL_TO")
	}
}
