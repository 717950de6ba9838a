// Package config provides environment-based configuration for the platform.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the platform.
type Config struct {
	// Database configuration
	DatabaseDSN string

	// Authentication
	JWTSecret    string
	JWTExpiry    time.Duration
	APIKeyHeader string

	// Server configuration
	APIPort int
	APIHost string

	// Graceful shutdown timeout
	ShutdownTimeout time.Duration

	// Ingest configuration
	Ingest IngestConfig

	// Compliance configuration
	Compliance ComplianceConfig

	// Documents configuration for at-rest encryption
	Documents DocumentsConfig
}

// IngestConfig holds log ingestion configuration.
type IngestConfig struct {
	// MaxBatchSize is the maximum number of log entries accepted per request.
	MaxBatchSize int
	// LookbackWindow bounds the model-change detection query.
	LookbackWindow time.Duration
}

// ComplianceConfig holds compliance scoring configuration.
type ComplianceConfig struct {
	// RulesPath points to a YAML rules file overriding the built-in weights.
	RulesPath string
	// ScoreWindow is the period of logs considered when computing scores.
	ScoreWindow time.Duration
}

// DocumentsConfig holds document encryption configuration.
type DocumentsConfig struct {
	// AgePublicKey is the age public key used to encrypt generated documents.
	// Format: age1... (Bech32 encoded)
	AgePublicKey string
	// AgePrivateKey is the age private key used to decrypt documents on read.
	// Format: AGE-SECRET-KEY-1... (Bech32 encoded)
	AgePrivateKey string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseDSN:     getEnv("DATABASE_URL", "postgres://localhost:5432/regulateai?sslmode=disable"),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		JWTExpiry:       getDurationEnv("JWT_EXPIRY", 24*time.Hour),
		APIKeyHeader:    getEnv("API_KEY_HEADER", "x-api-key"),
		APIPort:         getIntEnv("API_PORT", 8080),
		APIHost:         getEnv("API_HOST", "0.0.0.0"),
		ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),
		Ingest: IngestConfig{
			MaxBatchSize:   getIntEnv("INGEST_MAX_BATCH_SIZE", 100),
			LookbackWindow: getDurationEnv("INGEST_LOOKBACK_WINDOW", 30*24*time.Hour),
		},
		Compliance: ComplianceConfig{
			RulesPath:   getEnv("COMPLIANCE_RULES_PATH", ""),
			ScoreWindow: getDurationEnv("COMPLIANCE_SCORE_WINDOW", 30*24*time.Hour),
		},
		Documents: DocumentsConfig{
			AgePublicKey:  getEnv("DOCUMENTS_AGE_PUBLIC_KEY", ""),
			AgePrivateKey: getEnv("DOCUMENTS_AGE_PRIVATE_KEY", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	if c.Ingest.MaxBatchSize <= 0 {
		return fmt.Errorf("INGEST_MAX_BATCH_SIZE must be positive")
	}
	return nil
}

// LoadWithDefaults loads configuration with defaults for development.
// It does not validate required fields, useful for testing.
func LoadWithDefaults() *Config {
	return &Config{
		DatabaseDSN:     getEnv("DATABASE_URL", "postgres://localhost:5432/regulateai?sslmode=disable"),
		JWTSecret:       getEnv("JWT_SECRET", "development-secret-key-min-32-chars"),
		JWTExpiry:       getDurationEnv("JWT_EXPIRY", 24*time.Hour),
		APIKeyHeader:    getEnv("API_KEY_HEADER", "x-api-key"),
		APIPort:         getIntEnv("API_PORT", 8080),
		APIHost:         getEnv("API_HOST", "0.0.0.0"),
		ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),
		Ingest: IngestConfig{
			MaxBatchSize:   getIntEnv("INGEST_MAX_BATCH_SIZE", 100),
			LookbackWindow: getDurationEnv("INGEST_LOOKBACK_WINDOW", 30*24*time.Hour),
		},
		Compliance: ComplianceConfig{
			RulesPath:   getEnv("COMPLIANCE_RULES_PATH", ""),
			ScoreWindow: getDurationEnv("COMPLIANCE_SCORE_WINDOW", 30*24*time.Hour),
		},
		Documents: DocumentsConfig{
			AgePublicKey:  getEnv("DOCUMENTS_AGE_PUBLIC_KEY", ""),
			AgePrivateKey: getEnv("DOCUMENTS_AGE_PRIVATE_KEY", ""),
		},
	}
}

// getEnv returns the environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv returns the environment variable as an int or a default.
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getDurationEnv returns the environment variable as a duration or a default.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
