package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/regulateai/platform/internal/models"
	"github.com/regulateai/platform/internal/store"
)

// getTestDSN returns the DSN for database-backed tests, or "" to skip them.
func getTestDSN() string {
	return os.Getenv("TEST_DATABASE_URL")
}

// setupLogTestDB creates a test database connection and runs migrations for logs.
func setupLogTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := getTestDSN()
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping database tests")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Skipf("failed to open database: %v", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("failed to ping database: %v", err)
	}

	if err := runLogMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

// cleanupLogTestDB cleans up test data and closes the connection.
func cleanupLogTestDB(t *testing.T, db *sql.DB) {
	t.Helper()
	db.Exec("DELETE FROM logs")
	db.Close()
}

// runLogMigrations applies the database schema for log testing.
func runLogMigrations(db *sql.DB) error {
	_, _ = db.Exec("DROP TABLE IF EXISTS logs CASCADE")

	schema := `
		CREATE TABLE logs (
			id UUID PRIMARY KEY,
			project_id UUID NOT NULL,
			prompt TEXT NOT NULL,
			output TEXT NOT NULL,
			model VARCHAR(255) NOT NULL,
			model_version VARCHAR(255),
			confidence DOUBLE PRECISION,
			latency_ms INTEGER,
			tokens_input INTEGER,
			tokens_output INTEGER,
			human_reviewed BOOLEAN NOT NULL DEFAULT FALSE,
			framework VARCHAR(100),
			status VARCHAR(20) NOT NULL DEFAULT 'success'
				CHECK (status IN ('success', 'error')),
			error_message TEXT,
			session_id VARCHAR(255),
			user_identifier VARCHAR(255),
			metadata JSONB,
			timestamp TIMESTAMPTZ NOT NULL,
			sdk_version VARCHAR(50),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX idx_logs_project_timestamp ON logs(project_id, timestamp DESC);
		CREATE INDEX idx_logs_project_session ON logs(project_id, session_id);
	`

	_, err := db.Exec(schema)
	return err
}

func newTestLogStore(db *sql.DB) *LogStore {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return &LogStore{db: db, logger: logger}
}

// genLogEntry generates a valid LogEntry with a random prompt and output.
func genLogEntry() gopter.Gen {
	return gopter.CombineGens(
		gen.Identifier(), // Prompt
		gen.Identifier(), // Output
		gen.Identifier(), // Model
	).Map(func(vals []interface{}) *models.LogEntry {
		return &models.LogEntry{
			Prompt: vals[0].(string),
			Output: vals[1].(string),
			Model:  vals[2].(string),
		}
	})
}

func TestLogBulkInsertRoundTrip(t *testing.T) {
	db := setupLogTestDB(t)
	defer cleanupLogTestDB(t, db)

	logs := newTestLogStore(db)
	ctx := context.Background()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("inserted batches read back complete and newest first", prop.ForAll(
		func(entries []*models.LogEntry) bool {
			db.Exec("DELETE FROM logs")
			projectID := uuid.New().String()

			// Distinct timestamps make the expected ordering unambiguous.
			base := time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond)
			for i, e := range entries {
				e.ID = ""
				e.Timestamp = base.Add(time.Duration(i) * time.Second)
			}

			if err := logs.BulkInsert(ctx, projectID, entries); err != nil {
				t.Logf("BulkInsert error: %v", err)
				return false
			}

			got, err := logs.List(ctx, projectID, models.LogFilter{Limit: len(entries) + 1})
			if err != nil {
				t.Logf("List error: %v", err)
				return false
			}
			if len(got) != len(entries) {
				t.Logf("expected %d entries, got %d", len(entries), len(got))
				return false
			}

			for i, e := range got {
				want := entries[len(entries)-1-i]
				if e.ID != want.ID || e.Prompt != want.Prompt || e.Output != want.Output || e.Model != want.Model {
					t.Logf("entry %d mismatch: got %+v want %+v", i, e, want)
					return false
				}
				if e.ProjectID != projectID {
					t.Logf("entry %d has project %q, want %q", i, e.ProjectID, projectID)
					return false
				}
				if e.Status != models.LogStatusSuccess {
					t.Logf("entry %d status %q, want default success", i, e.Status)
					return false
				}
			}
			return true
		},
		gen.SliceOfN(5, genLogEntry()),
	))

	properties.TestingRun(t)
}

func TestLogListFilters(t *testing.T) {
	db := setupLogTestDB(t)
	defer cleanupLogTestDB(t, db)

	logs := newTestLogStore(db)
	ctx := context.Background()
	projectID := uuid.New().String()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []*models.LogEntry{
		{Prompt: "p1", Output: "o1", Model: "gpt-4o", Timestamp: base},
		{Prompt: "p2", Output: "o2", Model: "gpt-4o", Status: models.LogStatusError, ErrorMessage: "timeout", Timestamp: base.Add(time.Minute)},
		{Prompt: "p3", Output: "o3", Model: "claude-3", SessionID: "sess-1", Timestamp: base.Add(2 * time.Minute)},
		{Prompt: "p4", Output: "o4", Model: "claude-3", SessionID: "sess-1", Timestamp: base.Add(3 * time.Minute)},
	}
	if err := logs.BulkInsert(ctx, projectID, entries); err != nil {
		t.Fatalf("BulkInsert() error = %v", err)
	}

	t.Run("by model", func(t *testing.T) {
		got, err := logs.List(ctx, projectID, models.LogFilter{Models: []string{"claude-3"}})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 claude-3 entries, got %d", len(got))
		}
	})

	t.Run("by status", func(t *testing.T) {
		got, err := logs.List(ctx, projectID, models.LogFilter{Status: models.LogStatusError})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(got) != 1 || got[0].ErrorMessage != "timeout" {
			t.Fatalf("expected the single error entry, got %+v", got)
		}
	})

	t.Run("by session", func(t *testing.T) {
		got, err := logs.List(ctx, projectID, models.LogFilter{SessionID: "sess-1"})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 session entries, got %d", len(got))
		}
	})

	t.Run("time window", func(t *testing.T) {
		got, err := logs.List(ctx, projectID, models.LogFilter{
			Since: base.Add(time.Minute),
			Until: base.Add(3 * time.Minute),
		})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 entries in window, got %d", len(got))
		}
	})

	t.Run("limit and offset", func(t *testing.T) {
		got, err := logs.List(ctx, projectID, models.LogFilter{Limit: 2, Offset: 1})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(got))
		}
		// Newest first, offset skips p4.
		if got[0].Prompt != "p3" || got[1].Prompt != "p2" {
			t.Fatalf("expected p3,p2 got %q,%q", got[0].Prompt, got[1].Prompt)
		}
	})

	t.Run("other project sees nothing", func(t *testing.T) {
		got, err := logs.List(ctx, uuid.New().String(), models.LogFilter{})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(got) != 0 {
			t.Fatalf("expected no entries for foreign project, got %d", len(got))
		}
	})
}

func TestLogGetScopedToProject(t *testing.T) {
	db := setupLogTestDB(t)
	defer cleanupLogTestDB(t, db)

	logs := newTestLogStore(db)
	ctx := context.Background()
	projectID := uuid.New().String()

	conf := 0.93
	latency := 412
	entry := &models.LogEntry{
		Prompt:     "loan request",
		Output:     "approved",
		Model:      "gpt-4o",
		Confidence: &conf,
		LatencyMs:  &latency,
		Metadata:   map[string]any{"region": "eu-west-1"},
		Timestamp:  time.Now().UTC(),
	}
	if err := logs.BulkInsert(ctx, projectID, []*models.LogEntry{entry}); err != nil {
		t.Fatalf("BulkInsert() error = %v", err)
	}

	got, err := logs.Get(ctx, projectID, entry.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Confidence == nil || *got.Confidence != conf {
		t.Errorf("Confidence = %v, want %v", got.Confidence, conf)
	}
	if got.LatencyMs == nil || *got.LatencyMs != latency {
		t.Errorf("LatencyMs = %v, want %v", got.LatencyMs, latency)
	}
	if got.Metadata["region"] != "eu-west-1" {
		t.Errorf("Metadata = %v, want region preserved", got.Metadata)
	}

	if _, err := logs.Get(ctx, uuid.New().String(), entry.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get() with foreign project = %v, want ErrNotFound", err)
	}
}

func TestLogLatestModel(t *testing.T) {
	db := setupLogTestDB(t)
	defer cleanupLogTestDB(t, db)

	logs := newTestLogStore(db)
	ctx := context.Background()
	projectID := uuid.New().String()
	since := time.Now().UTC().Add(-24 * time.Hour)

	if _, _, err := logs.LatestModel(ctx, projectID, since); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("LatestModel() on empty project = %v, want ErrNotFound", err)
	}

	base := time.Now().UTC().Add(-time.Hour)
	entries := []*models.LogEntry{
		{Prompt: "p", Output: "o", Model: "gpt-4o", ModelVersion: "2024-05-13", Timestamp: base},
		{Prompt: "p", Output: "o", Model: "gpt-4o", ModelVersion: "2024-08-06", Timestamp: base.Add(time.Minute)},
	}
	if err := logs.BulkInsert(ctx, projectID, entries); err != nil {
		t.Fatalf("BulkInsert() error = %v", err)
	}

	model, version, err := logs.LatestModel(ctx, projectID, since)
	if err != nil {
		t.Fatalf("LatestModel() error = %v", err)
	}
	if model != "gpt-4o" || version != "2024-08-06" {
		t.Errorf("LatestModel() = %q@%q, want gpt-4o@2024-08-06", model, version)
	}
}

func TestLogCountsSince(t *testing.T) {
	db := setupLogTestDB(t)
	defer cleanupLogTestDB(t, db)

	logs := newTestLogStore(db)
	ctx := context.Background()
	projectID := uuid.New().String()

	latency := 120
	day1 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	entries := []*models.LogEntry{
		{Prompt: "p", Output: "o", Model: "m", Timestamp: day1, LatencyMs: &latency},
		{Prompt: "p", Output: "o", Model: "m", Timestamp: day1.Add(time.Hour), HumanReviewed: true},
		{Prompt: "p", Output: "o", Model: "m", Timestamp: day2, Status: models.LogStatusError, ErrorMessage: "boom"},
	}
	if err := logs.BulkInsert(ctx, projectID, entries); err != nil {
		t.Fatalf("BulkInsert() error = %v", err)
	}

	counts, err := logs.CountsSince(ctx, projectID, day1.Add(-time.Hour))
	if err != nil {
		t.Fatalf("CountsSince() error = %v", err)
	}
	if counts.Total != 3 {
		t.Errorf("Total = %d, want 3", counts.Total)
	}
	if counts.Errors != 1 {
		t.Errorf("Errors = %d, want 1", counts.Errors)
	}
	if counts.HumanReviewed != 1 {
		t.Errorf("HumanReviewed = %d, want 1", counts.HumanReviewed)
	}
	if counts.WithLatency != 1 {
		t.Errorf("WithLatency = %d, want 1", counts.WithLatency)
	}
	if counts.DistinctDays != 2 {
		t.Errorf("DistinctDays = %d, want 2", counts.DistinctDays)
	}

	// A window starting after day1 only sees the day2 entry.
	counts, err = logs.CountsSince(ctx, projectID, day1.Add(12*time.Hour))
	if err != nil {
		t.Fatalf("CountsSince() error = %v", err)
	}
	if counts.Total != 1 || counts.DistinctDays != 1 {
		t.Errorf("windowed counts = %+v, want total 1 over 1 day", counts)
	}
}
