package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds runtime settings, read once at startup from CHOREBOARD_*
// environment variables.
type Config struct {
	Port       string
	DBPath     string
	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	CORSOrigin string
	Production bool
	LogLevel   string
	LogFormat  string
}

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// Load reads configuration from the environment. The JWT secret has no
// default; in production a missing secret is an error, in development a
// throwaway value is substituted so the server still starts.
func Load() (Config, error) {
	cfg := Config{
		Port:       envOr("CHOREBOARD_PORT", "8000"),
		DBPath:     envOr("CHOREBOARD_DB_PATH", "choreboard.db"),
		JWTSecret:  os.Getenv("CHOREBOARD_JWT_SECRET"),
		CORSOrigin: envOr("CHOREBOARD_CORS_ORIGIN", "http://localhost:3000"),
		Production: os.Getenv("CHOREBOARD_ENV") == "production",
		LogLevel:   envOr("CHOREBOARD_LOG_LEVEL", "info"),
		LogFormat:  envOr("CHOREBOARD_LOG_FORMAT", "text"),
	}

	var err error
	if cfg.AccessTTL, err = durationOr("CHOREBOARD_ACCESS_TTL", defaultAccessTTL); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTTL, err = durationOr("CHOREBOARD_REFRESH_TTL", defaultRefreshTTL); err != nil {
		return Config{}, err
	}

	if cfg.JWTSecret == "" {
		if cfg.Production {
			return Config{}, fmt.Errorf("CHOREBOARD_JWT_SECRET is required in production")
		}
		cfg.JWTSecret = "dev-secret-do-not-use-in-production"
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}
