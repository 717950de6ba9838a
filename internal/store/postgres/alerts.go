package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/regulateai/platform/internal/models"
)

// AlertStore implements store.AlertStore using PostgreSQL.
type AlertStore struct {
	db     *sql.DB
	tx     *sql.Tx
	logger *slog.Logger
}

// conn returns the queryable connection (transaction or database).
func (s *AlertStore) conn() queryable {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// CreateIfNoneOpen inserts the alert unless an open alert of the same type
// already exists for the project. Returns true when inserted. The conditional
// insert is a single statement so concurrent ingests cannot double-alert.
func (s *AlertStore) CreateIfNoneOpen(ctx context.Context, alert *models.Alert) (bool, error) {
	detail, err := json.Marshal(alert.Detail)
	if err != nil {
		return false, fmt.Errorf("marshaling alert detail: %w", err)
	}

	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}
	if alert.Status == "" {
		alert.Status = models.AlertOpen
	}

	query := `
		INSERT INTO alerts (id, project_id, type, severity, status, message, detail, created_at)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8
		WHERE NOT EXISTS (
			SELECT 1 FROM alerts
			WHERE project_id = $2 AND type = $3 AND status = 'open'
		)`

	result, err := s.conn().ExecContext(ctx, query,
		alert.ID,
		alert.ProjectID,
		alert.Type,
		alert.Severity,
		alert.Status,
		alert.Message,
		detail,
		alert.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("inserting alert: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("getting rows affected: %w", err)
	}

	return affected > 0, nil
}

// List retrieves alerts for a project, newest first.
func (s *AlertStore) List(ctx context.Context, projectID string, status models.AlertStatus, limit int) ([]*models.Alert, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT id, project_id, type, severity, status, message, detail,
		       created_at, resolved_at, COALESCE(resolved_by, '')
		FROM alerts
		WHERE project_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3`

	rows, err := s.conn().QueryContext(ctx, query, projectID, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("querying alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*models.Alert
	for rows.Next() {
		alert := &models.Alert{}
		var detail []byte
		var resolvedAt sql.NullTime
		err := rows.Scan(
			&alert.ID, &alert.ProjectID, &alert.Type, &alert.Severity, &alert.Status,
			&alert.Message, &detail, &alert.CreatedAt, &resolvedAt, &alert.ResolvedBy,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning alert row: %w", err)
		}
		if resolvedAt.Valid {
			alert.ResolvedAt = &resolvedAt.Time
		}
		if len(detail) > 0 && string(detail) != "null" {
			if err := json.Unmarshal(detail, &alert.Detail); err != nil {
				return nil, fmt.Errorf("unmarshaling alert detail: %w", err)
			}
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating alert rows: %w", err)
	}

	return alerts, nil
}

// Resolve marks an alert resolved.
func (s *AlertStore) Resolve(ctx context.Context, id, resolvedBy string) error {
	query := `
		UPDATE alerts
		SET status = 'resolved', resolved_at = $2, resolved_by = $3
		WHERE id = $1 AND status = 'open'`

	result, err := s.conn().ExecContext(ctx, query, id, time.Now().UTC(), resolvedBy)
	if err != nil {
		return fmt.Errorf("resolving alert: %w", err)
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

// CountOpen returns the number of open alerts for a project.
func (s *AlertStore) CountOpen(ctx context.Context, projectID string) (int, error) {
	var count int
	err := s.conn().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM alerts WHERE project_id = $1 AND status = 'open'`,
		projectID).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("counting open alerts: %w", err)
	}

	return count, nil
}
