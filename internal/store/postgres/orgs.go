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

// OrgStore implements store.OrgStore using PostgreSQL.
type OrgStore struct {
	db     *sql.DB
	tx     *sql.Tx
	logger *slog.Logger
}

// conn returns the queryable connection (transaction or database).
func (s *OrgStore) conn() queryable {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// Create creates a new organization.
func (s *OrgStore) Create(ctx context.Context, org *models.Organization) error {
	if err := org.Validate(); err != nil {
		return fmt.Errorf("validating organization: %w", err)
	}

	query := `
		INSERT INTO organizations (id, name, slug, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	now := time.Now().UTC()
	if org.CreatedAt.IsZero() {
		org.CreatedAt = now
	}
	if org.UpdatedAt.IsZero() {
		org.UpdatedAt = now
	}

	err := s.conn().QueryRowContext(ctx, query,
		org.ID,
		org.Name,
		org.Slug,
		org.Description,
		org.CreatedAt,
		org.UpdatedAt,
	).Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateName
		}
		return fmt.Errorf("inserting organization: %w", err)
	}

	return nil
}

// Get retrieves an organization by ID.
func (s *OrgStore) Get(ctx context.Context, id string) (*models.Organization, error) {
	query := `
		SELECT id, name, slug, COALESCE(description, ''), created_at, updated_at
		FROM organizations
		WHERE id = $1`

	return s.scanOrg(s.conn().QueryRowContext(ctx, query, id))
}

// GetBySlug retrieves an organization by slug.
func (s *OrgStore) GetBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	query := `
		SELECT id, name, slug, COALESCE(description, ''), created_at, updated_at
		FROM organizations
		WHERE slug = $1`

	return s.scanOrg(s.conn().QueryRowContext(ctx, query, slug))
}

// List retrieves all organizations the user belongs to.
func (s *OrgStore) List(ctx context.Context, userID string) ([]*models.Organization, error) {
	query := `
		SELECT o.id, o.name, o.slug, COALESCE(o.description, ''), o.created_at, o.updated_at
		FROM organizations o
		JOIN org_members m ON m.org_id = o.id
		WHERE m.user_id = $1
		ORDER BY o.created_at ASC`

	rows, err := s.conn().QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying organizations: %w", err)
	}
	defer rows.Close()

	var orgs []*models.Organization
	for rows.Next() {
		org := &models.Organization{}
		if err := rows.Scan(&org.ID, &org.Name, &org.Slug, &org.Description, &org.CreatedAt, &org.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning organization row: %w", err)
		}
		orgs = append(orgs, org)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating organization rows: %w", err)
	}

	return orgs, nil
}

// Update updates an organization.
func (s *OrgStore) Update(ctx context.Context, org *models.Organization) error {
	if err := org.Validate(); err != nil {
		return fmt.Errorf("validating organization: %w", err)
	}

	query := `
		UPDATE organizations
		SET name = $2, slug = $3, description = $4, updated_at = $5
		WHERE id = $1`

	org.UpdatedAt = time.Now().UTC()
	result, err := s.conn().ExecContext(ctx, query,
		org.ID, org.Name, org.Slug, org.Description, org.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateName
		}
		return fmt.Errorf("updating organization: %w", err)
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

// Delete deletes an organization.
func (s *OrgStore) Delete(ctx context.Context, id string) error {
	result, err := s.conn().ExecContext(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting organization: %w", err)
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

// AddMember adds a user to an organization with a role.
func (s *OrgStore) AddMember(ctx context.Context, orgID, userID string, role models.Role) error {
	query := `
		INSERT INTO org_members (org_id, user_id, role, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (org_id, user_id) DO UPDATE SET role = $3`

	_, err := s.conn().ExecContext(ctx, query, orgID, userID, role, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("adding organization member: %w", err)
	}

	return nil
}

// RemoveMember removes a user from an organization.
func (s *OrgStore) RemoveMember(ctx context.Context, orgID, userID string) error {
	_, err := s.conn().ExecContext(ctx,
		`DELETE FROM org_members WHERE org_id = $1 AND user_id = $2`, orgID, userID)
	if err != nil {
		return fmt.Errorf("removing organization member: %w", err)
	}

	return nil
}

// IsMember reports whether the user belongs to the organization.
func (s *OrgStore) IsMember(ctx context.Context, orgID, userID string) (bool, error) {
	var exists bool
	err := s.conn().QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM org_members WHERE org_id = $1 AND user_id = $2)`,
		orgID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking organization membership: %w", err)
	}

	return exists, nil
}

// ListMembers retrieves all members of an organization.
func (s *OrgStore) ListMembers(ctx context.Context, orgID string) ([]*models.OrgMembership, error) {
	query := `
		SELECT org_id, user_id, role, created_at
		FROM org_members
		WHERE org_id = $1
		ORDER BY created_at ASC`

	rows, err := s.conn().QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("querying organization members: %w", err)
	}
	defer rows.Close()

	var members []*models.OrgMembership
	for rows.Next() {
		m := &models.OrgMembership{}
		if err := rows.Scan(&m.OrgID, &m.UserID, &m.Role, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning member row: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating member rows: %w", err)
	}

	return members, nil
}

// GetDefaultForUser returns the user's first organization.
func (s *OrgStore) GetDefaultForUser(ctx context.Context, userID string) (*models.Organization, error) {
	query := `
		SELECT o.id, o.name, o.slug, COALESCE(o.description, ''), o.created_at, o.updated_at
		FROM organizations o
		JOIN org_members m ON m.org_id = o.id
		WHERE m.user_id = $1
		ORDER BY m.created_at ASC
		LIMIT 1`

	return s.scanOrg(s.conn().QueryRowContext(ctx, query, userID))
}

// scanOrg scans a single organization row.
func (s *OrgStore) scanOrg(row *sql.Row) (*models.Organization, error) {
	org := &models.Organization{}
	err := row.Scan(&org.ID, &org.Name, &org.Slug, &org.Description, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning organization: %w", err)
	}
	return org, nil
}
