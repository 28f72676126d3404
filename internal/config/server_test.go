package config

import (
	"testing"
	"time"
)

func TestLoadServerDefaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://localhost:5432/events?sslmode=disable")

	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("LoadServer() error = %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.ScanInterval() != 30*time.Second {
		t.Fatalf("ScanInterval = %v, want 30s", cfg.ScanInterval())
	}
	if cfg.LedgerTimeout() != 15*time.Second {
		t.Fatalf("LedgerTimeout = %v, want 15s", cfg.LedgerTimeout())
	}
	if cfg.NATSSubjectPrefix != "events" {
		t.Fatalf("NATSSubjectPrefix = %q, want events", cfg.NATSSubjectPrefix)
	}
	if !cfg.MigrateOnStart {
		t.Fatal("MigrateOnStart should default to true")
	}
}

func TestLoadServerRequiresPostgresDSN(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")

	_, err := LoadServer()
	if err == nil {
		t.Fatal("LoadServer() expected error, got nil")
	}
}

func TestLoadServerParseTypes(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://localhost:5432/events?sslmode=disable")
	t.Setenv("LEDGER_RATE_PER_SEC", "2.5")
	t.Setenv("SCAN_INTERVAL_MS", "1500")
	t.Setenv("ANNOUNCE_ENABLED", "true")
	t.Setenv("STALE_ENDED_MINUTES", "5")

	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("LoadServer() error = %v", err)
	}
	if cfg.LedgerRatePerSec != 2.5 {
		t.Fatalf("LedgerRatePerSec = %v, want 2.5", cfg.LedgerRatePerSec)
	}
	if cfg.ScanInterval() != 1500*time.Millisecond {
		t.Fatalf("ScanInterval = %v", cfg.ScanInterval())
	}
	if !cfg.AnnounceEnabled {
		t.Fatal("AnnounceEnabled = false, want true")
	}
	if cfg.StaleEndedAfter() != 5*time.Minute {
		t.Fatalf("StaleEndedAfter = %v", cfg.StaleEndedAfter())
	}
}
