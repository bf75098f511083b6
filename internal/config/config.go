package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr          string
	RedisURL      string
	DatabaseURL   string
	MigrationsDir string
	TokenSecret   string
	SessionTTL    time.Duration
	CORSOrigin    string
	// Remote backend (action-dispatch endpoint). Empty means local-only
	// until a base URL is configured at runtime.
	RemoteBaseURL string
	RemoteTimeout time.Duration
	DefaultMode   string
	// SMTP Configuration - empty host disables assignment emails
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string
}

func Load() Config {
	return Config{
		Addr:          getenv("API_ADDR", ":8790"),
		RedisURL:      getenv("REDIS_URL", "redis://localhost:6379/0"),
		DatabaseURL:   getenv("DATABASE_URL", ""),
		MigrationsDir: getenv("LEARNINGMAP_MIGRATIONS_DIR", "./db/migrations"),
		TokenSecret:   getenv("LEARNINGMAP_TOKEN_SECRET", "learningmap-dev-secret"),
		SessionTTL:    time.Duration(getenvInt("LEARNINGMAP_SESSION_TTL_SECONDS", 86400)) * time.Second,
		CORSOrigin:    getenv("LEARNINGMAP_CORS_ORIGIN", "*"),
		RemoteBaseURL: getenv("LEARNINGMAP_REMOTE_URL", ""),
		RemoteTimeout: time.Duration(getenvInt("LEARNINGMAP_REMOTE_TIMEOUT_SECONDS", 15)) * time.Second,
		DefaultMode:   getenv("LEARNINGMAP_MODE", "mock"),
		SMTPHost:      getenv("SMTP_HOST", ""),
		SMTPPort:      getenv("SMTP_PORT", "587"),
		SMTPUsername:  getenv("SMTP_USERNAME", ""),
		SMTPPassword:  getenv("SMTP_PASSWORD", ""),
		SMTPFrom:      getenv("SMTP_FROM", ""),
		SMTPFromName:  getenv("SMTP_FROM_NAME", "Learning Map"),
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
