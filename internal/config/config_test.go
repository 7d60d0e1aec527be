package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CAMPUSCORE_AUTH_SECRET", "test-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPPort != 8080 {
		t.Fatalf("unexpected HTTPPort: %d", cfg.HTTPPort)
	}
	if cfg.AccessTokenTTL != 15*time.Minute {
		t.Fatalf("unexpected AccessTokenTTL: %v", cfg.AccessTokenTTL)
	}
	if cfg.TokenIssuer != "campuscore" {
		t.Fatalf("unexpected TokenIssuer: %q", cfg.TokenIssuer)
	}
	if cfg.BcryptCost != 10 {
		t.Fatalf("unexpected BcryptCost: %d", cfg.BcryptCost)
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("CAMPUSCORE_AUTH_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing auth secret")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CAMPUSCORE_AUTH_SECRET", "test-secret")
	t.Setenv("CAMPUSCORE_HTTP_PORT", "9090")
	t.Setenv("CAMPUSCORE_ACCESS_TOKEN_TTL", "1h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPPort != 9090 {
		t.Fatalf("unexpected HTTPPort: %d", cfg.HTTPPort)
	}
	if cfg.AccessTokenTTL != time.Hour {
		t.Fatalf("unexpected AccessTokenTTL: %v", cfg.AccessTokenTTL)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := Config{
		AuthSecret:     "s",
		HTTPPort:       8080,
		AccessTokenTTL: time.Minute,
		BcryptCost:     10,
	}

	bad := base
	bad.HTTPPort = 0
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for zero port")
	}

	bad = base
	bad.BcryptCost = 99
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for bcrypt cost out of range")
	}
}
