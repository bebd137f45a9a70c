// Package config handles application configuration.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port       int
	BaseDomain string // e.g. "shedview.au"; tenancy is resolved against this

	// Marketing site redirect for the bare/base domain
	MarketingURL string

	// Database
	DatabaseURL string

	// Authentication
	JWTSecret     string
	JWTExpiry     time.Duration
	EncryptionKey []byte // 32-byte key for AES-256-GCM credential encryption

	// Scraper
	DaysAhead         int           // booking window size [today, today+N]
	ScraperWorkers    int           // per-club calendar fetch concurrency
	ScrapeConcurrency int           // global cap on concurrent club scrapes
	UpstreamTimeout   time.Duration // per upstream HTTP call

	// Rate limits (per minute)
	PublicRateLimit  int
	AdminRateLimit   int
	LoginRateLimitIP int

	// Development
	AllowLocalhost   bool   // resolve localhost requests to the dev club
	DevClubSubdomain string // subdomain of the club used for localhost requests

	Debug bool
}

// Load reads configuration from environment variables.
// Missing or malformed required values are a startup failure.
func Load() (*Config, error) {
	cfg := &Config{
		Port:         getEnvInt("PORT", 8080),
		BaseDomain:   strings.ToLower(getEnv("BASE_DOMAIN", "")),
		MarketingURL: getEnv("MARKETING_URL", ""),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		JWTSecret:    getEnv("JWT_SECRET", ""),
		JWTExpiry:    getEnvDuration("JWT_EXPIRY", time.Hour),

		DaysAhead:         getEnvInt("DAYS_AHEAD", 7),
		ScraperWorkers:    getEnvInt("SCRAPER_WORKERS", 4),
		ScrapeConcurrency: getEnvInt("SCRAPE_CONCURRENCY", 4),
		UpstreamTimeout:   getEnvDuration("UPSTREAM_TIMEOUT", 30*time.Second),

		PublicRateLimit:  getEnvInt("PUBLIC_RATE_LIMIT_PER_MIN", 120),
		AdminRateLimit:   getEnvInt("ADMIN_RATE_LIMIT_PER_MIN", 60),
		LoginRateLimitIP: getEnvInt("LOGIN_RATE_LIMIT_PER_IP_PER_MIN", 5),

		AllowLocalhost:   getEnvBool("ALLOW_LOCALHOST", false),
		DevClubSubdomain: getEnv("DEV_CLUB_SUBDOMAIN", ""),

		Debug: getEnvBool("DEBUG", false),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.BaseDomain == "" {
		return nil, fmt.Errorf("BASE_DOMAIN is required")
	}
	if cfg.DaysAhead < 1 {
		return nil, fmt.Errorf("DAYS_AHEAD must be at least 1")
	}

	key, err := decodeEncryptionKey(os.Getenv("ENCRYPTION_KEY"))
	if err != nil {
		return nil, err
	}
	cfg.EncryptionKey = key

	return cfg, nil
}

// decodeEncryptionKey decodes the hex-encoded AES-256 key.
func decodeEncryptionKey(value string) ([]byte, error) {
	if value == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY is required")
	}
	key, err := hex.DecodeString(strings.TrimSpace(value))
	if err != nil {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be hex-encoded: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("ENCRYPTION_KEY must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "true" || lower == "1" || lower == "yes"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
