package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/regulateai/platform/internal/models"
)

// APIKeyStore implements store.APIKeyStore using PostgreSQL.
type APIKeyStore struct {
	db     *sql.DB
	tx     *sql.Tx
	logger *slog.Logger
}

// conn returns the queryable connection (transaction or database).
func (s *APIKeyStore) conn() queryable {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// Create stores a new API key record (hash only).
func (s *APIKeyStore) Create(ctx context.Context, key *models.APIKey) error {
	query := `
		INSERT INTO api_keys (id, project_id, name, key_hash, prefix, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now().UTC()
	}

	_, err := s.conn().ExecContext(ctx, query,
		key.ID,
		key.ProjectID,
		key.Name,
		key.KeyHash,
		key.Prefix,
		key.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("inserting api key: %w", err)
	}

	return nil
}

// GetByHash retrieves a non-revoked API key by its SHA-256 hash.
func (s *APIKeyStore) GetByHash(ctx context.Context, hash string) (*models.APIKey, error) {
	query := `
		SELECT id, project_id, name, key_hash, prefix, created_at, last_used_at, revoked_at
		FROM api_keys
		WHERE key_hash = $1`

	key := &models.APIKey{}
	var lastUsed, revoked sql.NullTime
	err := s.conn().QueryRowContext(ctx, query, hash).Scan(
		&key.ID,
		&key.ProjectID,
		&key.Name,
		&key.KeyHash,
		&key.Prefix,
		&key.CreatedAt,
		&lastUsed,
		&revoked,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying api key by hash: %w", err)
	}

	if lastUsed.Valid {
		key.LastUsedAt = &lastUsed.Time
	}
	if revoked.Valid {
		key.RevokedAt = &revoked.Time
		return nil, ErrKeyRevoked
	}

	return key, nil
}

// List retrieves all keys for a project, revoked included.
func (s *APIKeyStore) List(ctx context.Context, projectID string) ([]*models.APIKey, error) {
	query := `
		SELECT id, project_id, name, key_hash, prefix, created_at, last_used_at, revoked_at
		FROM api_keys
		WHERE project_id = $1
		ORDER BY created_at DESC`

	rows, err := s.conn().QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("querying api keys: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		key := &models.APIKey{}
		var lastUsed, revoked sql.NullTime
		err := rows.Scan(
			&key.ID, &key.ProjectID, &key.Name, &key.KeyHash, &key.Prefix,
			&key.CreatedAt, &lastUsed, &revoked,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning api key row: %w", err)
		}
		if lastUsed.Valid {
			key.LastUsedAt = &lastUsed.Time
		}
		if revoked.Valid {
			key.RevokedAt = &revoked.Time
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating api key rows: %w", err)
	}

	return keys, nil
}

// Revoke marks a key as revoked.
func (s *APIKeyStore) Revoke(ctx context.Context, id string) error {
	query := `
		UPDATE api_keys
		SET revoked_at = $2
		WHERE id = $1 AND revoked_at IS NULL`

	result, err := s.conn().ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("revoking api key: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// TouchLastUsed records key usage; best effort.
func (s *APIKeyStore) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	_, err := s.conn().ExecContext(ctx,
		`UPDATE api_keys SET last_used_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("updating api key last_used_at: %w", err)
	}
	return nil
}
