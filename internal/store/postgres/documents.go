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

// DocumentStore implements store.DocumentStore using PostgreSQL.
// Document content is stored as age-encrypted bytes; this layer never sees
// plaintext.
type DocumentStore struct {
	db     *sql.DB
	tx     *sql.Tx
	logger *slog.Logger
}

// conn returns the queryable connection (transaction or database).
func (s *DocumentStore) conn() queryable {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// Create inserts a document record, typically in pending status.
func (s *DocumentStore) Create(ctx context.Context, doc *models.Document) error {
	if err := models.ValidateDocumentType(doc.Type); err != nil {
		return err
	}

	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = now
	}
	if doc.Status == "" {
		doc.Status = models.DocumentPending
	}

	query := `
		INSERT INTO documents (id, project_id, type, status, title, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.conn().ExecContext(ctx, query,
		doc.ID, doc.ProjectID, doc.Type, doc.Status, doc.Title, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting document: %w", err)
	}

	return nil
}

// Get retrieves a document with its encrypted content.
func (s *DocumentStore) Get(ctx context.Context, projectID, id string) (*models.Document, []byte, error) {
	query := `
		SELECT id, project_id, type, status, title, content, COALESCE(error, ''),
		       created_at, updated_at
		FROM documents
		WHERE project_id = $1 AND id = $2`

	doc := &models.Document{}
	var ciphertext []byte
	err := s.conn().QueryRowContext(ctx, query, projectID, id).Scan(
		&doc.ID, &doc.ProjectID, &doc.Type, &doc.Status, &doc.Title,
		&ciphertext, &doc.Error, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("querying document: %w", err)
	}

	return doc, ciphertext, nil
}

// List retrieves document metadata for a project, newest first.
func (s *DocumentStore) List(ctx context.Context, projectID string) ([]*models.Document, error) {
	query := `
		SELECT id, project_id, type, status, title, COALESCE(error, ''),
		       created_at, updated_at
		FROM documents
		WHERE project_id = $1
		ORDER BY created_at DESC`

	rows, err := s.conn().QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		doc := &models.Document{}
		err := rows.Scan(
			&doc.ID, &doc.ProjectID, &doc.Type, &doc.Status, &doc.Title,
			&doc.Error, &doc.CreatedAt, &doc.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating document rows: %w", err)
	}

	return docs, nil
}

// SetContent stores encrypted content and marks the document ready.
func (s *DocumentStore) SetContent(ctx context.Context, id string, ciphertext []byte) error {
	query := `
		UPDATE documents
		SET content = $2, status = 'ready', error = NULL, updated_at = $3
		WHERE id = $1`

	result, err := s.conn().ExecContext(ctx, query, id, ciphertext, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("storing document content: %w", err)
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

// SetFailed marks the document failed with an error message.
func (s *DocumentStore) SetFailed(ctx context.Context, id, errMsg string) error {
	query := `
		UPDATE documents
		SET status = 'failed', error = $2, updated_at = $3
		WHERE id = $1`

	result, err := s.conn().ExecContext(ctx, query, id, errMsg, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("marking document failed: %w", err)
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
