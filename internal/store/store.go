// Package store provides database access interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/regulateai/platform/internal/models"
)

// User represents a registered dashboard user.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// UserStore defines operations for user management.
type UserStore interface {
	// Create creates a new user with a hashed password.
	Create(ctx context.Context, email, name, password string) (*User, error)
	// GetByEmail retrieves a user by email.
	GetByEmail(ctx context.Context, email string) (*User, error)
	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id string) (*User, error)
	// Authenticate verifies credentials and returns the user.
	Authenticate(ctx context.Context, email, password string) (*User, error)
}

// OrgStore defines operations for organization management.
type OrgStore interface {
	// Create creates a new organization.
	Create(ctx context.Context, org *models.Organization) error
	// Get retrieves an organization by ID.
	Get(ctx context.Context, id string) (*models.Organization, error)
	// GetBySlug retrieves an organization by slug.
	GetBySlug(ctx context.Context, slug string) (*models.Organization, error)
	// List retrieves all organizations the user belongs to.
	List(ctx context.Context, userID string) ([]*models.Organization, error)
	// Update updates an organization.
	Update(ctx context.Context, org *models.Organization) error
	// Delete deletes an organization.
	Delete(ctx context.Context, id string) error
	// AddMember adds a user to an organization with a role.
	AddMember(ctx context.Context, orgID, userID string, role models.Role) error
	// RemoveMember removes a user from an organization.
	RemoveMember(ctx context.Context, orgID, userID string) error
	// IsMember reports whether the user belongs to the organization.
	IsMember(ctx context.Context, orgID, userID string) (bool, error)
	// ListMembers retrieves all members of an organization.
	ListMembers(ctx context.Context, orgID string) ([]*models.OrgMembership, error)
	// GetDefaultForUser returns the user's first organization.
	GetDefaultForUser(ctx context.Context, userID string) (*models.Organization, error)
}

// ProjectStore defines operations for project management.
type ProjectStore interface {
	// Create creates a new project.
	Create(ctx context.Context, project *models.Project) error
	// Get retrieves a project by ID.
	Get(ctx context.Context, id string) (*models.Project, error)
	// List retrieves all projects in an organization.
	List(ctx context.Context, orgID string) ([]*models.Project, error)
	// Update updates a project.
	Update(ctx context.Context, project *models.Project) error
	// Delete deletes a project and its dependent records.
	Delete(ctx context.Context, id string) error
}

// APIKeyStore defines operations for project API keys.
type APIKeyStore interface {
	// Create stores a new API key record (hash only).
	Create(ctx context.Context, key *models.APIKey) error
	// GetByHash retrieves a non-revoked API key by its SHA-256 hash.
	GetByHash(ctx context.Context, hash string) (*models.APIKey, error)
	// List retrieves all keys for a project, revoked included.
	List(ctx context.Context, projectID string) ([]*models.APIKey, error)
	// Revoke marks a key as revoked.
	Revoke(ctx context.Context, id string) error
	// TouchLastUsed records key usage; best effort.
	TouchLastUsed(ctx context.Context, id string, at time.Time) error
}

// LogStore defines operations for compliance log entries.
type LogStore interface {
	// BulkInsert inserts a batch of validated entries in a single statement.
	// Entries are assigned IDs in place.
	BulkInsert(ctx context.Context, projectID string, entries []*models.LogEntry) error
	// Get retrieves a single entry scoped to a project.
	Get(ctx context.Context, projectID, id string) (*models.LogEntry, error)
	// List retrieves entries for a project, newest first, applying the filter.
	List(ctx context.Context, projectID string, filter models.LogFilter) ([]*models.LogEntry, error)
	// Search performs full-text search over prompt and output.
	Search(ctx context.Context, projectID, query string, limit int) ([]*models.LogEntry, error)
	// LatestModel returns the model and version of the project's most recent
	// entry within the lookback window. Returns ErrNotFound when none exist.
	LatestModel(ctx context.Context, projectID string, since time.Time) (model, version string, err error)
	// CountsSince aggregates statistics for entries newer than since.
	CountsSince(ctx context.Context, projectID string, since time.Time) (*models.LogCounts, error)
	// ListAfter retrieves entries created after the given time, oldest first.
	// Used by the live tail.
	ListAfter(ctx context.Context, projectID string, after time.Time, limit int) ([]*models.LogEntry, error)
	// DistinctModels lists model/version pairs seen for the project.
	DistinctModels(ctx context.Context, projectID string, since time.Time) ([]string, error)
}

// AlertStore defines operations for compliance alerts.
type AlertStore interface {
	// CreateIfNoneOpen inserts the alert unless an open alert of the same
	// type already exists for the project. Returns true when inserted.
	CreateIfNoneOpen(ctx context.Context, alert *models.Alert) (bool, error)
	// List retrieves alerts for a project, newest first.
	List(ctx context.Context, projectID string, status models.AlertStatus, limit int) ([]*models.Alert, error)
	// Resolve marks an alert resolved.
	Resolve(ctx context.Context, id, resolvedBy string) error
	// CountOpen returns the number of open alerts for a project.
	CountOpen(ctx context.Context, projectID string) (int, error)
}

// DocumentStore defines operations for generated compliance documents.
type DocumentStore interface {
	// Create inserts a document record, typically in pending status.
	Create(ctx context.Context, doc *models.Document) error
	// Get retrieves a document with its encrypted content.
	Get(ctx context.Context, projectID, id string) (*models.Document, []byte, error)
	// List retrieves document metadata for a project, newest first.
	List(ctx context.Context, projectID string) ([]*models.Document, error)
	// SetContent stores encrypted content and marks the document ready.
	SetContent(ctx context.Context, id string, ciphertext []byte) error
	// SetFailed marks the document failed with an error message.
	SetFailed(ctx context.Context, id, errMsg string) error
}

// Store is the main interface for database operations.
type Store interface {
	// Users returns the UserStore for user operations.
	Users() UserStore
	// Orgs returns the OrgStore for organization operations.
	Orgs() OrgStore
	// Projects returns the ProjectStore for project operations.
	Projects() ProjectStore
	// APIKeys returns the APIKeyStore for API key operations.
	APIKeys() APIKeyStore
	// Logs returns the LogStore for log operations.
	Logs() LogStore
	// Alerts returns the AlertStore for alert operations.
	Alerts() AlertStore
	// Documents returns the DocumentStore for document operations.
	Documents() DocumentStore

	// WithTx executes the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// Otherwise, the transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error

	// Close closes the database connection.
	Close() error
}
