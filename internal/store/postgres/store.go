// Package postgres provides PostgreSQL implementation of the store interfaces.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/regulateai/platform/internal/store"
)

// PostgresStore implements the Store interface using PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger

	users     *UserStore
	orgs      *OrgStore
	projects  *ProjectStore
	apiKeys   *APIKeyStore
	logs      *LogStore
	alerts    *AlertStore
	documents *DocumentStore
}

// Config holds PostgreSQL connection configuration.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(dsn string) *Config {
	return &Config{
		DSN:             dsn,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
	}
}

// NewPostgresStore creates a new PostgreSQL store with the given configuration.
func NewPostgresStore(cfg *Config, logger *slog.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	s := &PostgresStore{
		db:     db,
		logger: logger,
	}

	// Initialize sub-stores
	s.users = &UserStore{db: db, logger: logger}
	s.orgs = &OrgStore{db: db, logger: logger}
	s.projects = &ProjectStore{db: db, logger: logger}
	s.apiKeys = &APIKeyStore{db: db, logger: logger}
	s.logs = &LogStore{db: db, logger: logger}
	s.alerts = &AlertStore{db: db, logger: logger}
	s.documents = &DocumentStore{db: db, logger: logger}

	logger.Info("connected to PostgreSQL database")
	return s, nil
}

// Users returns the UserStore.
func (s *PostgresStore) Users() store.UserStore {
	return s.users
}

// Orgs returns the OrgStore.
func (s *PostgresStore) Orgs() store.OrgStore {
	return s.orgs
}

// Projects returns the ProjectStore.
func (s *PostgresStore) Projects() store.ProjectStore {
	return s.projects
}

// APIKeys returns the APIKeyStore.
func (s *PostgresStore) APIKeys() store.APIKeyStore {
	return s.apiKeys
}

// Logs returns the LogStore.
func (s *PostgresStore) Logs() store.LogStore {
	return s.logs
}

// Alerts returns the AlertStore.
func (s *PostgresStore) Alerts() store.AlertStore {
	return s.alerts
}

// Documents returns the DocumentStore.
func (s *PostgresStore) Documents() store.DocumentStore {
	return s.documents
}

// WithTx executes the given function within a database transaction.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	// Create a transaction-scoped store
	txs := &txStore{
		tx:     tx,
		logger: s.logger,
	}

	// Execute the function
	if err := fn(txs); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("failed to rollback transaction", "error", rbErr)
		}
		return err
	}

	// Commit the transaction
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	s.logger.Info("closing PostgreSQL connection")
	return s.db.Close()
}

// DB returns the underlying database connection.
// This is useful for components that need direct database access.
func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// Ping verifies the database connection, satisfying health.Pinger.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// txStore wraps a transaction and implements the Store interface.
type txStore struct {
	tx     *sql.Tx
	logger *slog.Logger

	users     *UserStore
	orgs      *OrgStore
	projects  *ProjectStore
	apiKeys   *APIKeyStore
	logs      *LogStore
	alerts    *AlertStore
	documents *DocumentStore
}

func (s *txStore) Users() store.UserStore {
	if s.users == nil {
		s.users = &UserStore{tx: s.tx, logger: s.logger}
	}
	return s.users
}

func (s *txStore) Orgs() store.OrgStore {
	if s.orgs == nil {
		s.orgs = &OrgStore{tx: s.tx, logger: s.logger}
	}
	return s.orgs
}

func (s *txStore) Projects() store.ProjectStore {
	if s.projects == nil {
		s.projects = &ProjectStore{tx: s.tx, logger: s.logger}
	}
	return s.projects
}

func (s *txStore) APIKeys() store.APIKeyStore {
	if s.apiKeys == nil {
		s.apiKeys = &APIKeyStore{tx: s.tx, logger: s.logger}
	}
	return s.apiKeys
}

func (s *txStore) Logs() store.LogStore {
	if s.logs == nil {
		s.logs = &LogStore{tx: s.tx, logger: s.logger}
	}
	return s.logs
}

func (s *txStore) Alerts() store.AlertStore {
	if s.alerts == nil {
		s.alerts = &AlertStore{tx: s.tx, logger: s.logger}
	}
	return s.alerts
}

func (s *txStore) Documents() store.DocumentStore {
	if s.documents == nil {
		s.documents = &DocumentStore{tx: s.tx, logger: s.logger}
	}
	return s.documents
}

func (s *txStore) WithTx(ctx context.Context, fn func(store.Store) error) error {
	// Already in a transaction, just execute the function
	return fn(s)
}

func (s *txStore) Close() error {
	// No-op for transaction store
	return nil
}

// queryable is an interface that both *sql.DB and *sql.Tx implement.
type queryable interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
