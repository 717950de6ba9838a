// Package main provides a small tool to mint credentials for the platform:
// project API keys for SDK clients and age key pairs for document encryption.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/regulateai/platform/internal/auth"
	"github.com/regulateai/platform/internal/models"
	"github.com/regulateai/platform/internal/secrets"
	pgstore "github.com/regulateai/platform/internal/store/postgres"
)

func main() {
	kind := flag.String("kind", "apikey", "What to generate: apikey or agekeys")
	projectID := flag.String("project", "", "Project ID the API key belongs to")
	name := flag.String("name", "default", "Display name for the API key")
	dsn := flag.String("dsn", "", "Database DSN (or set DATABASE_URL env var)")
	flag.Parse()

	switch *kind {
	case "agekeys":
		generateAgeKeys()
	case "apikey":
		generateAPIKey(*projectID, *name, *dsn)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown kind %q, must be apikey or agekeys\n", *kind)
		os.Exit(1)
	}
}

// generateAgeKeys prints a fresh age key pair for document encryption.
func generateAgeKeys() {
	public, private, err := secrets.GenerateKeyPair()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating key pair: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("DOCUMENTS_AGE_PUBLIC_KEY=%s\n", public)
	fmt.Printf("DOCUMENTS_AGE_PRIVATE_KEY=%s\n", private)
}

// generateAPIKey mints an ingestion key, stores its hash, and prints the raw
// key exactly once.
func generateAPIKey(projectID, name, dsn string) {
	if projectID == "" {
		fmt.Fprintln(os.Stderr, "Error: -project is required for API keys")
		os.Exit(1)
	}

	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	if dsn == "" {
		fmt.Fprintln(os.Stderr, "Error: database DSN required. Use -dsn flag or set DATABASE_URL env var")
		os.Exit(1)
	}

	store, err := pgstore.NewPostgresStore(pgstore.DefaultConfig(dsn), nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to database: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rawKey, err := auth.GenerateAPIKey()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating key: %v\n", err)
		os.Exit(1)
	}

	key := &models.APIKey{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		Name:      name,
		KeyHash:   auth.HashAPIKey(rawKey),
		Prefix:    auth.KeyPrefix(rawKey),
	}

	if err := store.APIKeys().Create(ctx, key); err != nil {
		fmt.Fprintf(os.Stderr, "Error storing key: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(rawKey)
}
