package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RecordDir != "records" {
		t.Fatalf("expected default record dir, got %q", cfg.RecordDir)
	}
	if cfg.Cadence != time.Second {
		t.Fatalf("expected 1s cadence, got %v", cfg.Cadence)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CHRONICLE_RECORD_DIR", "/tmp/captures")
	t.Setenv("CHRONICLE_REPLAY_CADENCE", "250ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RecordDir != "/tmp/captures" {
		t.Fatalf("override not applied: %q", cfg.RecordDir)
	}
	if cfg.Cadence != 250*time.Millisecond {
		t.Fatalf("override not applied: %v", cfg.Cadence)
	}
}

func TestValidateRejectsNonPositiveCadence(t *testing.T) {
	cfg := Config{RecordDir: "records", Cadence: 0, FeedInterval: time.Second}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero cadence, got nil")
	}
}

func TestEnvDurationInvalidFallsBack(t *testing.T) {
	t.Setenv("CHRONICLE_REPLAY_CADENCE", "not-a-duration")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Cadence != time.Second {
		t.Fatalf("expected default cadence fallback, got %v", cfg.Cadence)
	}
}
