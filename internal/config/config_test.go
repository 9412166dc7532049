package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("SLOT_GRANULARITY", "")
	t.Setenv("NOTIFY_TRANSPORT", "")
	t.Setenv("BOOKING_MAX_PENDING_PER_DOCTOR", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.StoreBackend != "memory" {
		t.Fatalf("expected memory store by default, got %s", cfg.StoreBackend)
	}
	if cfg.SlotGranularity != time.Hour {
		t.Fatalf("expected 60m granularity, got %s", cfg.SlotGranularity)
	}
	if cfg.NotifyTransport != "log" {
		t.Fatalf("expected log transport, got %s", cfg.NotifyTransport)
	}
	if cfg.BookingMaxPendingPerDoctor != 0 {
		t.Fatalf("expected booking cap disabled by default, got %d", cfg.BookingMaxPendingPerDoctor)
	}
	if cfg.StoreCreateRetries != 3 {
		t.Fatalf("expected 3 create retries, got %d", cfg.StoreCreateRetries)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_BACKEND", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("SLOT_GRANULARITY", "30m")
	t.Setenv("SCHEDULER_TIMEZONE", "UTC")
	t.Setenv("BOOKING_MAX_PENDING_PER_DOCTOR", "2")
	t.Setenv("REDIS_TLS", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://ayurwell.example, ,https://admin.ayurwell.example")
	t.Setenv("RATE_LIMIT_PER_SECOND", "2.5")
	t.Setenv("NOTIFY_TRANSPORT", "SQS")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.StoreBackend != "postgres" {
		t.Fatalf("expected postgres backend, got %s", cfg.StoreBackend)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected db override, got %s", cfg.DatabaseURL)
	}
	if cfg.SlotGranularity != 30*time.Minute {
		t.Fatalf("expected 30m granularity, got %s", cfg.SlotGranularity)
	}
	if cfg.Timezone != "UTC" {
		t.Fatalf("expected UTC, got %s", cfg.Timezone)
	}
	if cfg.BookingMaxPendingPerDoctor != 2 {
		t.Fatalf("expected cap override, got %d", cfg.BookingMaxPendingPerDoctor)
	}
	if !cfg.RedisTLS {
		t.Fatalf("expected redis tls enabled")
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://admin.ayurwell.example" {
		t.Fatalf("unexpected origins %v", cfg.CORSAllowedOrigins)
	}
	if cfg.RateLimitPerSecond != 2.5 {
		t.Fatalf("expected rate limit override, got %v", cfg.RateLimitPerSecond)
	}
	if cfg.NotifyTransport != "sqs" {
		t.Fatalf("expected sqs transport, got %s", cfg.NotifyTransport)
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("SLOT_GRANULARITY", "hourly")
	t.Setenv("WORKER_COUNT", "many")
	cfg := Load()
	if cfg.SlotGranularity != time.Hour {
		t.Fatalf("expected fallback granularity, got %s", cfg.SlotGranularity)
	}
	if cfg.WorkerCount != 2 {
		t.Fatalf("expected fallback worker count, got %d", cfg.WorkerCount)
	}
}
