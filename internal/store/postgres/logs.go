package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/regulateai/platform/internal/models"
)

// logColumns is the column list shared by every log query.
const logColumns = `id, project_id, prompt, output, model, COALESCE(model_version, ''),
	confidence, latency_ms, tokens_input, tokens_output, human_reviewed,
	COALESCE(framework, ''), status, COALESCE(error_message, ''),
	COALESCE(session_id, ''), COALESCE(user_identifier, ''), metadata,
	timestamp, COALESCE(sdk_version, ''), created_at`

// LogStore implements store.LogStore using PostgreSQL.
type LogStore struct {
	db     *sql.DB
	tx     *sql.Tx
	logger *slog.Logger
}

// conn returns the queryable connection (transaction or database).
func (s *LogStore) conn() queryable {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// BulkInsert inserts a batch of validated entries in a single statement.
// Entries are assigned IDs in place.
func (s *LogStore) BulkInsert(ctx context.Context, projectID string, entries []*models.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	const cols = 19
	var sb strings.Builder
	sb.WriteString(`
		INSERT INTO logs (id, project_id, prompt, output, model, model_version,
			confidence, latency_ms, tokens_input, tokens_output, human_reviewed,
			framework, status, error_message, session_id, user_identifier,
			metadata, timestamp, sdk_version)
		VALUES `)

	now := time.Now().UTC()
	args := make([]any, 0, len(entries)*cols)
	for i, e := range entries {
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		e.ProjectID = projectID
		if e.Timestamp.IsZero() {
			e.Timestamp = now
		}
		if e.Status == "" {
			e.Status = models.LogStatusSuccess
		}

		metadata, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling metadata for entry %d: %w", i, err)
		}

		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for c := 0; c < cols; c++ {
			if c > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", i*cols+c+1)
		}
		sb.WriteByte(')')

		args = append(args,
			e.ID, e.ProjectID, e.Prompt, e.Output, e.Model, e.ModelVersion,
			e.Confidence, e.LatencyMs, e.TokensInput, e.TokensOutput, e.HumanReviewed,
			e.Framework, e.Status, e.ErrorMessage, e.SessionID, e.UserIdentifier,
			metadata, e.Timestamp, e.SDKVersion,
		)
	}

	if _, err := s.conn().ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("bulk inserting %d log entries: %w", len(entries), err)
	}

	return nil
}

// Get retrieves a single entry scoped to a project.
func (s *LogStore) Get(ctx context.Context, projectID, id string) (*models.LogEntry, error) {
	query := `SELECT ` + logColumns + ` FROM logs WHERE project_id = $1 AND id = $2`

	entry, err := scanLog(s.conn().QueryRowContext(ctx, query, projectID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying log entry: %w", err)
	}

	return entry, nil
}

// List retrieves entries for a project, newest first, applying the filter.
func (s *LogStore) List(ctx context.Context, projectID string, filter models.LogFilter) ([]*models.LogEntry, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + logColumns + ` FROM logs WHERE project_id = $1`)
	args := []any{projectID}

	if len(filter.Models) > 0 {
		args = append(args, pq.Array(filter.Models))
		fmt.Fprintf(&sb, " AND model = ANY($%d)", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		fmt.Fprintf(&sb, " AND status = $%d", len(args))
	}
	if filter.SessionID != "" {
		args = append(args, filter.SessionID)
		fmt.Fprintf(&sb, " AND session_id = $%d", len(args))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		fmt.Fprintf(&sb, " AND timestamp >= $%d", len(args))
	}
	if !filter.Until.IsZero() {
		args = append(args, filter.Until)
		fmt.Fprintf(&sb, " AND timestamp < $%d", len(args))
	}

	sb.WriteString(" ORDER BY timestamp DESC, id DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	args = append(args, limit)
	fmt.Fprintf(&sb, " LIMIT $%d", len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	}

	rows, err := s.conn().QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying logs: %w", err)
	}
	defer rows.Close()

	return scanLogs(rows)
}

// Search performs full-text search over prompt and output.
func (s *LogStore) Search(ctx context.Context, projectID, query string, limit int) ([]*models.LogEntry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	q := `
		SELECT ` + logColumns + `
		FROM logs
		WHERE project_id = $1
		  AND to_tsvector('simple', prompt || ' ' || output) @@ plainto_tsquery('simple', $2)
		ORDER BY timestamp DESC
		LIMIT $3`

	rows, err := s.conn().QueryContext(ctx, q, projectID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("searching logs: %w", err)
	}
	defer rows.Close()

	return scanLogs(rows)
}

// LatestModel returns the model and version of the project's most recent
// entry within the lookback window.
func (s *LogStore) LatestModel(ctx context.Context, projectID string, since time.Time) (string, string, error) {
	query := `
		SELECT model, COALESCE(model_version, '')
		FROM logs
		WHERE project_id = $1 AND timestamp >= $2
		ORDER BY timestamp DESC, id DESC
		LIMIT 1`

	var model, version string
	err := s.conn().QueryRowContext(ctx, query, projectID, since).Scan(&model, &version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", "", ErrNotFound
		}
		return "", "", fmt.Errorf("querying latest model: %w", err)
	}

	return model, version, nil
}

// CountsSince aggregates statistics for entries newer than since.
func (s *LogStore) CountsSince(ctx context.Context, projectID string, since time.Time) (*models.LogCounts, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'error'),
			COUNT(*) FILTER (WHERE human_reviewed),
			COUNT(*) FILTER (WHERE latency_ms IS NOT NULL),
			COUNT(DISTINCT date_trunc('day', timestamp))
		FROM logs
		WHERE project_id = $1 AND timestamp >= $2`

	counts := &models.LogCounts{}
	err := s.conn().QueryRowContext(ctx, query, projectID, since).Scan(
		&counts.Total,
		&counts.Errors,
		&counts.HumanReviewed,
		&counts.WithLatency,
		&counts.DistinctDays,
	)
	if err != nil {
		return nil, fmt.Errorf("counting logs: %w", err)
	}

	return counts, nil
}

// ListAfter retrieves entries created after the given time, oldest first.
func (s *LogStore) ListAfter(ctx context.Context, projectID string, after time.Time, limit int) ([]*models.LogEntry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := `
		SELECT ` + logColumns + `
		FROM logs
		WHERE project_id = $1 AND created_at > $2
		ORDER BY created_at ASC
		LIMIT $3`

	rows, err := s.conn().QueryContext(ctx, query, projectID, after, limit)
	if err != nil {
		return nil, fmt.Errorf("querying logs after timestamp: %w", err)
	}
	defer rows.Close()

	return scanLogs(rows)
}

// DistinctModels lists model/version pairs seen for the project.
func (s *LogStore) DistinctModels(ctx context.Context, projectID string, since time.Time) ([]string, error) {
	query := `
		SELECT DISTINCT model || CASE WHEN COALESCE(model_version, '') = '' THEN '' ELSE '@' || model_version END
		FROM logs
		WHERE project_id = $1 AND timestamp >= $2
		ORDER BY 1`

	rows, err := s.conn().QueryContext(ctx, query, projectID, since)
	if err != nil {
		return nil, fmt.Errorf("querying distinct models: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("scanning model row: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating model rows: %w", err)
	}

	return out, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanLog scans a single log entry row.
func scanLog(row rowScanner) (*models.LogEntry, error) {
	entry := &models.LogEntry{}
	var metadata []byte

	err := row.Scan(
		&entry.ID,
		&entry.ProjectID,
		&entry.Prompt,
		&entry.Output,
		&entry.Model,
		&entry.ModelVersion,
		&entry.Confidence,
		&entry.LatencyMs,
		&entry.TokensInput,
		&entry.TokensOutput,
		&entry.HumanReviewed,
		&entry.Framework,
		&entry.Status,
		&entry.ErrorMessage,
		&entry.SessionID,
		&entry.UserIdentifier,
		&metadata,
		&entry.Timestamp,
		&entry.SDKVersion,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(metadata) > 0 && string(metadata) != "null" {
		if err := json.Unmarshal(metadata, &entry.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling metadata: %w", err)
		}
	}

	return entry, nil
}

// scanLogs scans multiple log entry rows.
func scanLogs(rows *sql.Rows) ([]*models.LogEntry, error) {
	var entries []*models.LogEntry

	for rows.Next() {
		entry, err := scanLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning log row: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating log rows: %w", err)
	}

	return entries, nil
}
