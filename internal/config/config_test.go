package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Errorf("Addr = %q, want :8080", cfg.Addr)
	}
	if cfg.CookieName != "dv_session" {
		t.Errorf("CookieName = %q, want dv_session", cfg.CookieName)
	}
	if cfg.SessionTTL != 12*time.Hour {
		t.Errorf("SessionTTL = %v, want 12h", cfg.SessionTTL)
	}
	if cfg.MaxUploadBytes != 512<<20 {
		t.Errorf("MaxUploadBytes = %d, want %d", cfg.MaxUploadBytes, int64(512<<20))
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("DV_ADDR", ":9999")
	t.Setenv("DV_SESSION_SECRET", "s3cret")
	t.Setenv("DV_DATABASE_URL", "postgres://localhost/dv")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":9999" {
		t.Errorf("Addr = %q, want :9999", cfg.Addr)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidate_MissingSecret(t *testing.T) {
	cfg := &Config{DatabaseURL: "postgres://localhost/dv", MaxUploadBytes: 1}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing session secret")
	}
}
