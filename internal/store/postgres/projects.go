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

// ProjectStore implements store.ProjectStore using PostgreSQL.
type ProjectStore struct {
	db     *sql.DB
	tx     *sql.Tx
	logger *slog.Logger
}

// conn returns the queryable connection (transaction or database).
func (s *ProjectStore) conn() queryable {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// Create creates a new project.
func (s *ProjectStore) Create(ctx context.Context, project *models.Project) error {
	if err := project.Validate(); err != nil {
		return fmt.Errorf("validating project: %w", err)
	}

	query := `
		INSERT INTO projects (id, org_id, name, description, risk_category, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	now := time.Now().UTC()
	if project.CreatedAt.IsZero() {
		project.CreatedAt = now
	}
	if project.UpdatedAt.IsZero() {
		project.UpdatedAt = now
	}

	_, err := s.conn().ExecContext(ctx, query,
		project.ID,
		project.OrgID,
		project.Name,
		project.Description,
		project.RiskCategory,
		project.CreatedAt,
		project.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateName
		}
		return fmt.Errorf("inserting project: %w", err)
	}

	return nil
}

// Get retrieves a project by ID.
func (s *ProjectStore) Get(ctx context.Context, id string) (*models.Project, error) {
	query := `
		SELECT id, org_id, name, COALESCE(description, ''), risk_category, created_at, updated_at
		FROM projects
		WHERE id = $1`

	project := &models.Project{}
	err := s.conn().QueryRowContext(ctx, query, id).Scan(
		&project.ID,
		&project.OrgID,
		&project.Name,
		&project.Description,
		&project.RiskCategory,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying project: %w", err)
	}

	return project, nil
}

// List retrieves all projects in an organization.
func (s *ProjectStore) List(ctx context.Context, orgID string) ([]*models.Project, error) {
	query := `
		SELECT id, org_id, name, COALESCE(description, ''), risk_category, created_at, updated_at
		FROM projects
		WHERE org_id = $1
		ORDER BY created_at ASC`

	rows, err := s.conn().QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("querying projects: %w", err)
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		p := &models.Project{}
		err := rows.Scan(&p.ID, &p.OrgID, &p.Name, &p.Description, &p.RiskCategory, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning project row: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating project rows: %w", err)
	}

	return projects, nil
}

// Update updates a project.
func (s *ProjectStore) Update(ctx context.Context, project *models.Project) error {
	if err := project.Validate(); err != nil {
		return fmt.Errorf("validating project: %w", err)
	}

	query := `
		UPDATE projects
		SET name = $2, description = $3, risk_category = $4, updated_at = $5
		WHERE id = $1`

	project.UpdatedAt = time.Now().UTC()
	result, err := s.conn().ExecContext(ctx, query,
		project.ID, project.Name, project.Description, project.RiskCategory, project.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updating project: %w", err)
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

// Delete deletes a project and its dependent records.
func (s *ProjectStore) Delete(ctx context.Context, id string) error {
	result, err := s.conn().ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting project: %w", err)
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
