package config

import (
	"testing"
	"time"
)

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when JWT_SECRET is unset")
	}

	t.Setenv("JWT_SECRET", "too-short")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for a short JWT_SECRET")
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-key-with-enough-characters")
	t.Setenv("API_PORT", "9090")
	t.Setenv("INGEST_MAX_BATCH_SIZE", "50")
	t.Setenv("COMPLIANCE_SCORE_WINDOW", "168h")
	t.Setenv("DOCUMENTS_AGE_PUBLIC_KEY", "age1example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.APIPort != 9090 {
		t.Errorf("APIPort = %d", cfg.APIPort)
	}
	if cfg.Ingest.MaxBatchSize != 50 {
		t.Errorf("MaxBatchSize = %d", cfg.Ingest.MaxBatchSize)
	}
	if cfg.Compliance.ScoreWindow != 168*time.Hour {
		t.Errorf("ScoreWindow = %v", cfg.Compliance.ScoreWindow)
	}
	if cfg.Documents.AgePublicKey != "age1example" {
		t.Errorf("AgePublicKey = %q", cfg.Documents.AgePublicKey)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-key-with-enough-characters")
	t.Setenv("API_PORT", "")
	t.Setenv("INGEST_MAX_BATCH_SIZE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.APIPort != 8080 {
		t.Errorf("default APIPort = %d", cfg.APIPort)
	}
	if cfg.APIKeyHeader != "x-api-key" {
		t.Errorf("default APIKeyHeader = %q", cfg.APIKeyHeader)
	}
	if cfg.Ingest.MaxBatchSize != 100 {
		t.Errorf("default MaxBatchSize = %d", cfg.Ingest.MaxBatchSize)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("default ShutdownTimeout = %v", cfg.ShutdownTimeout)
	}
}

func TestInvalidIntFallsBackToDefault(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-key-with-enough-characters")
	t.Setenv("API_PORT", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIPort != 8080 {
		t.Errorf("APIPort = %d, want default 8080", cfg.APIPort)
	}
}
