// Package config builds service configuration from environment variables so
// main stays lean.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Config captures everything the server needs at startup.
type Config struct {
	Addr          string
	DatabaseURL   string
	RedisURL      string
	KafkaBrokers  []string
	KafkaTopic    string
	JWTSigningKey string

	RegistryURL       string
	SearchPageURL     string
	FallbackEnabled   bool
	MaxScraperSession int64
}

// FromEnv reads configuration with development-friendly defaults.
func FromEnv() Config {
	cfg := Config{
		Addr:              envOr("AFMCHECK_ADDR", ":8080"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisURL:          os.Getenv("REDIS_URL"),
		KafkaTopic:        os.Getenv("KAFKA_AUDIT_TOPIC"),
		JWTSigningKey:     envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		RegistryURL:       os.Getenv("VIES_URL"),
		SearchPageURL:     envOr("REGISTRY_SEARCH_URL", "https://publicity.businessportal.gr/search"),
		FallbackEnabled:   os.Getenv("SCRAPER_DISABLED") != "true",
		MaxScraperSession: envInt64("SCRAPER_MAX_SESSIONS", 2),
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
