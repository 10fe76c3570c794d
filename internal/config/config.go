// Package config provides configuration management for the application.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the application.
type Config struct {
	// AWS
	AWSRegion string
	S3Bucket  string

	// Database
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string

	// Redis
	RedisAddr     string
	RedisPassword string
	AnalysisTTL   time.Duration

	// Classifier
	ClassifierURL     string
	ClassifierTimeout time.Duration

	// SMS / Email
	SNSSenderID     string
	SESSenderEmail  string
	EscalationEmail string

	// Outreach
	OutreachInterval   time.Duration
	OutreachMinOverdue int
	OutreachLimit      int

	// Application
	Stage    string
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	_ = godotenv.Load()

	cfg := &Config{
		// AWS
		AWSRegion: getEnv("AWS_REGION", "ap-south-1"),
		S3Bucket:  getEnv("S3_BUCKET", "borrower-imports-dev"),

		// Database
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 5432),
		DBName:     getEnv("DB_NAME", "collections"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),

		// Redis
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		AnalysisTTL:   getEnvDuration("ANALYSIS_CACHE_TTL", 24*time.Hour),

		// Classifier
		ClassifierURL:     getEnv("CLASSIFIER_URL", ""),
		ClassifierTimeout: getEnvDuration("CLASSIFIER_TIMEOUT", 10*time.Second),

		// SMS / Email
		SNSSenderID:     getEnv("SNS_SENDER_ID", ""),
		SESSenderEmail:  getEnv("SES_SENDER_EMAIL", ""),
		EscalationEmail: getEnv("ESCALATION_EMAIL", ""),

		// Outreach
		OutreachInterval:   getEnvDuration("OUTREACH_INTERVAL", 2500*time.Millisecond),
		OutreachMinOverdue: getEnvInt("OUTREACH_MIN_OVERDUE_DAYS", 7),
		OutreachLimit:      getEnvInt("OUTREACH_LIMIT", 50),

		// Application
		Stage:    getEnv("STAGE", "dev"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg, nil
}

// DatabaseURL returns the PostgreSQL connection string.
func (c *Config) DatabaseURL() string {
	sslMode := "require" // Use SSL for RDS
	if c.DBHost == "localhost" || c.DBHost == "127.0.0.1" {
		sslMode = "disable" // Disable SSL for local development
	}
	return "postgres://" + c.DBUser + ":" + c.DBPassword + "@" + c.DBHost + ":" + strconv.Itoa(c.DBPort) + "/" + c.DBName + "?sslmode=" + sslMode
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as int or returns a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration retrieves an environment variable as a duration or returns a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
