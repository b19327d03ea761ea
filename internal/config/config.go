package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the application
type Config struct {
	Port           string
	AllowedOrigins []string
	LogLevel       string
	RedisURL       string
	DatabaseURL    string
	Environment    string
	AdminJWTSecret string

	// Display counter defaults; the admin API can override them at runtime
	MinVisitors           int
	MaxVisitors           int
	UpdateIntervalSeconds int
	DisplayEnabled        bool
	DisplayMode           string // "simulated" or "derived"

	// Ingestion protection
	IngestRateLimit    int // accepted events per identity per window
	PublicRateLimit    int // read requests per identity per window
	RateLimitWindowSec int
	BurstLimit         int // tighter bot-filter threshold
	BurstWindowSec     int
	DenylistAfter      int // rate-limit violations before denylisting

	// Retention
	RetentionDays int
	SweepSchedule string // cron expression, daily by default
	UniquenessSalt string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: parseOrigins(getEnv("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		RedisURL:       getEnv("REDIS_URL", ""),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		Environment:    getEnv("ENVIRONMENT", "production"),
		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		MinVisitors:           getIntEnv("MIN_VISITORS", 800),
		MaxVisitors:           getIntEnv("MAX_VISITORS", 2500),
		UpdateIntervalSeconds: getIntEnv("UPDATE_INTERVAL_SECONDS", 30),
		DisplayEnabled:        getBoolEnv("DISPLAY_ENABLED", true),
		DisplayMode:           getEnv("DISPLAY_MODE", "simulated"),

		IngestRateLimit:    getIntEnv("INGEST_RATE_LIMIT", 10),
		PublicRateLimit:    getIntEnv("PUBLIC_RATE_LIMIT", 100),
		RateLimitWindowSec: getIntEnv("RATE_LIMIT_WINDOW_SECONDS", 60),
		BurstLimit:         getIntEnv("BURST_LIMIT", 5),
		BurstWindowSec:     getIntEnv("BURST_WINDOW_SECONDS", 10),
		DenylistAfter:      getIntEnv("DENYLIST_AFTER", 3),

		RetentionDays:  getIntEnv("RETENTION_DAYS", 7),
		SweepSchedule:  getEnv("SWEEP_SCHEDULE", "5 0 * * *"),
		UniquenessSalt: getEnv("UNIQUENESS_SALT", "visitor-counter"),
	}, nil
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getIntEnv gets an integer environment variable with a fallback value
func getIntEnv(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// getBoolEnv gets a boolean environment variable with a fallback value
func getBoolEnv(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// parseOrigins parses comma-separated origins into a slice
func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}

	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))

	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
