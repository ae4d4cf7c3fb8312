// ABOUTME: Configuration loader for the portal client and the dev server
// ABOUTME: Loads settings from environment variables (and an optional .env) with defaults

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/uniportal/gradeportal/internal/tokenstore"
)

// DefaultAPIURL is used when neither flag nor environment names a backend.
const DefaultAPIURL = "http://localhost:5000"

// Config holds client settings.
type Config struct {
	APIURL    string
	Timeout   time.Duration
	ConfigDir string
	LogLevel  string
	LogFormat string
}

// ServerConfig holds devserver settings.
type ServerConfig struct {
	Port           string
	JWTSecret      string
	AccessTokenTTL time.Duration
	RefreshWindow  time.Duration
	ResetTokenTTL  time.Duration
	MaxAdmins      int
	RateLimitAuth  int // requests per minute per client for auth endpoints
	SeedUsers      bool
	// CORSAllowedOrigins lists browser origins allowed to call the API.
	// Empty blocks all cross-origin requests.
	CORSAllowedOrigins []string
}

// LoadDotEnv reads .env from the working directory if present. Variables
// already set in the environment win.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// Load reads client configuration.
func Load() (*Config, error) {
	cfg := &Config{
		APIURL:    strings.TrimRight(getEnv("GRADEPORTAL_API_URL", DefaultAPIURL), "/"),
		Timeout:   getEnvDuration("GRADEPORTAL_TIMEOUT", 30*time.Second),
		ConfigDir: getEnv("GRADEPORTAL_CONFIG_DIR", tokenstore.DefaultConfigDir()),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	if cfg.Timeout <= 0 || cfg.Timeout > 10*time.Minute {
		return nil, fmt.Errorf("GRADEPORTAL_TIMEOUT must be positive and at most 10m, got %s", cfg.Timeout)
	}
	if cfg.ConfigDir == "" {
		return nil, fmt.Errorf("cannot determine config directory; set GRADEPORTAL_CONFIG_DIR")
	}

	return cfg, nil
}

// LoadServer reads devserver configuration.
func LoadServer() (*ServerConfig, error) {
	cfg := &ServerConfig{
		Port:           getEnv("PORT", "5000"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		AccessTokenTTL: getEnvDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshWindow:  getEnvDuration("REFRESH_WINDOW", 7*24*time.Hour),
		ResetTokenTTL:  getEnvDuration("RESET_TOKEN_TTL", time.Hour),
		MaxAdmins:      getEnvInt("MAX_ADMINS", 1),
		RateLimitAuth:  getEnvInt("RATE_LIMIT_AUTH", 20),
		SeedUsers:      getEnvBool("SEED_USERS", true),

		CORSAllowedOrigins: getEnvStringList("CORS_ALLOWED_ORIGINS"),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if len(cfg.JWTSecret) < 16 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}
	if cfg.AccessTokenTTL <= 0 {
		return nil, fmt.Errorf("ACCESS_TOKEN_TTL must be positive, got %s", cfg.AccessTokenTTL)
	}
	if cfg.RefreshWindow < cfg.AccessTokenTTL {
		return nil, fmt.Errorf("REFRESH_WINDOW (%s) must not be shorter than ACCESS_TOKEN_TTL (%s)", cfg.RefreshWindow, cfg.AccessTokenTTL)
	}
	if cfg.MaxAdmins < 0 {
		return nil, fmt.Errorf("MAX_ADMINS must not be negative, got %d", cfg.MaxAdmins)
	}
	if cfg.RateLimitAuth < 1 || cfg.RateLimitAuth > 10000 {
		return nil, fmt.Errorf("RATE_LIMIT_AUTH must be between 1 and 10000, got %d", cfg.RateLimitAuth)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvStringList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimRight(strings.TrimSpace(part), "/")
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
