package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8000" {
		t.Errorf("port = %q, want 8000", cfg.Port)
	}
	if cfg.AccessTTL != 15*time.Minute {
		t.Errorf("access ttl = %v, want 15m", cfg.AccessTTL)
	}
	if cfg.RefreshTTL != 7*24*time.Hour {
		t.Errorf("refresh ttl = %v, want 168h", cfg.RefreshTTL)
	}
	if cfg.Production {
		t.Error("production should default to false")
	}
	if cfg.JWTSecret == "" {
		t.Error("expected a dev fallback secret outside production")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CHOREBOARD_PORT", "9001")
	t.Setenv("CHOREBOARD_ACCESS_TTL", "5m")
	t.Setenv("CHOREBOARD_JWT_SECRET", "sekrit")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9001" {
		t.Errorf("port = %q, want 9001", cfg.Port)
	}
	if cfg.AccessTTL != 5*time.Minute {
		t.Errorf("access ttl = %v, want 5m", cfg.AccessTTL)
	}
	if cfg.JWTSecret != "sekrit" {
		t.Errorf("secret = %q", cfg.JWTSecret)
	}
}

func TestLoadBadDuration(t *testing.T) {
	t.Setenv("CHOREBOARD_ACCESS_TTL", "soon")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unparseable duration")
	}
}

func TestLoadProductionRequiresSecret(t *testing.T) {
	t.Setenv("CHOREBOARD_ENV", "production")
	t.Setenv("CHOREBOARD_JWT_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing secret in production")
	}
}
