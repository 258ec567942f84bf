package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/nxfs")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("APP_PORT", "")
	t.Setenv("USAGE_WINDOW_HOURS", "")
	t.Setenv("GEOCODE_TIMEOUT_SECONDS", "")

	cfg := Load()
	if cfg.AppPort != "8080" {
		t.Fatalf("expected default port 8080, got %s", cfg.AppPort)
	}
	if cfg.UsageWindow != 5*time.Hour {
		t.Fatalf("expected 5h usage window, got %s", cfg.UsageWindow)
	}
	if cfg.GeocodeTimeout != 5*time.Second {
		t.Fatalf("expected 5s geocode timeout, got %s", cfg.GeocodeTimeout)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/nxfs")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("API_RATE_LIMIT", "7")
	t.Setenv("USAGE_RETENTION_HOURS", "12")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg := Load()
	if cfg.APIRateLimit != 7 {
		t.Fatalf("expected rate limit 7, got %d", cfg.APIRateLimit)
	}
	if cfg.UsageRetention != 12*time.Hour {
		t.Fatalf("expected 12h retention, got %s", cfg.UsageRetention)
	}
	if cfg.RedisDB != 0 {
		t.Fatalf("malformed REDIS_DB should fall back to 0, got %d", cfg.RedisDB)
	}
}
