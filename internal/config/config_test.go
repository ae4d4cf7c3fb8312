// ABOUTME: Tests for configuration loading
// ABOUTME: Validates env defaults, overrides and validation errors

package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GRADEPORTAL_API_URL", "")
	t.Setenv("GRADEPORTAL_TIMEOUT", "")
	t.Setenv("GRADEPORTAL_CONFIG_DIR", "/tmp/gp")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_FORMAT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIURL != DefaultAPIURL {
		t.Errorf("expected default API URL, got %s", cfg.APIURL)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %s", cfg.Timeout)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "text" {
		t.Errorf("unexpected log defaults: %s %s", cfg.LogLevel, cfg.LogFormat)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("GRADEPORTAL_API_URL", "https://portal.example.edu/")
	t.Setenv("GRADEPORTAL_TIMEOUT", "5s")
	t.Setenv("GRADEPORTAL_CONFIG_DIR", "/tmp/gp")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIURL != "https://portal.example.edu" {
		t.Errorf("expected trailing slash trimmed, got %s", cfg.APIURL)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("expected 5s, got %s", cfg.Timeout)
	}
}

func TestLoad_InvalidTimeout(t *testing.T) {
	t.Setenv("GRADEPORTAL_CONFIG_DIR", "/tmp/gp")
	t.Setenv("GRADEPORTAL_TIMEOUT", "1h")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "GRADEPORTAL_TIMEOUT") {
		t.Errorf("expected timeout validation error, got %v", err)
	}
}

func setServerEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef0123")
	t.Setenv("ACCESS_TOKEN_TTL", "")
	t.Setenv("REFRESH_WINDOW", "")
	t.Setenv("MAX_ADMINS", "")
	t.Setenv("RATE_LIMIT_AUTH", "")
	t.Setenv("SEED_USERS", "")
	t.Setenv("PORT", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
}

func TestLoadServer_Defaults(t *testing.T) {
	setServerEnv(t)

	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "5000" {
		t.Errorf("expected port 5000, got %s", cfg.Port)
	}
	if cfg.AccessTokenTTL != 15*time.Minute || cfg.RefreshWindow != 7*24*time.Hour {
		t.Errorf("unexpected token lifetimes: %s %s", cfg.AccessTokenTTL, cfg.RefreshWindow)
	}
	if cfg.MaxAdmins != 1 || cfg.RateLimitAuth != 20 || !cfg.SeedUsers {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadServer_Validation(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"missing secret", "JWT_SECRET", "", "JWT_SECRET is required"},
		{"short secret", "JWT_SECRET", "short", "at least 16"},
		{"zero ttl", "ACCESS_TOKEN_TTL", "0s", "ACCESS_TOKEN_TTL"},
		{"window shorter than ttl", "REFRESH_WINDOW", "1m", "REFRESH_WINDOW"},
		{"negative admins", "MAX_ADMINS", "-1", "MAX_ADMINS"},
		{"rate limit too high", "RATE_LIMIT_AUTH", "20000", "RATE_LIMIT_AUTH"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setServerEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := LoadServer()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestGetEnvHelpers_IgnoreGarbage(t *testing.T) {
	t.Setenv("GP_TEST_INT", "abc")
	t.Setenv("GP_TEST_BOOL", "maybe")
	t.Setenv("GP_TEST_DUR", "soon")

	if getEnvInt("GP_TEST_INT", 7) != 7 {
		t.Error("expected int default")
	}
	if getEnvBool("GP_TEST_BOOL", true) != true {
		t.Error("expected bool default")
	}
	if getEnvDuration("GP_TEST_DUR", time.Second) != time.Second {
		t.Error("expected duration default")
	}
}

func TestLoadServer_CORSOrigins(t *testing.T) {
	setServerEnv(t)
	t.Setenv("CORS_ALLOWED_ORIGINS", " http://localhost:3000/ ,, https://portal.example.edu")

	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"http://localhost:3000", "https://portal.example.edu"}
	if len(cfg.CORSAllowedOrigins) != len(want) {
		t.Fatalf("expected %v, got %v", want, cfg.CORSAllowedOrigins)
	}
	for i := range want {
		if cfg.CORSAllowedOrigins[i] != want[i] {
			t.Errorf("origin %d = %q, want %q", i, cfg.CORSAllowedOrigins[i], want[i])
		}
	}
}
