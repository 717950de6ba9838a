package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/regulateai/platform/internal/models"
	"github.com/regulateai/platform/internal/store"
)

// setupOrgTestDB creates a test database connection and runs migrations for orgs.
func setupOrgTestDB(t *testing.T) *sql.DB {
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

	if err := runOrgMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

// cleanupOrgTestDB cleans up test data and closes the connection.
func cleanupOrgTestDB(t *testing.T, db *sql.DB) {
	t.Helper()
	db.Exec("DELETE FROM org_members")
	db.Exec("DELETE FROM organizations")
	db.Close()
}

// runOrgMigrations applies the database schema for organization testing.
func runOrgMigrations(db *sql.DB) error {
	_, _ = db.Exec("DROP TABLE IF EXISTS org_members CASCADE")
	_, _ = db.Exec("DROP TABLE IF EXISTS organizations CASCADE")

	schema := `
		CREATE TABLE organizations (
			id UUID PRIMARY KEY,
			name VARCHAR(63) NOT NULL,
			slug VARCHAR(63) NOT NULL UNIQUE,
			description TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX idx_organizations_slug ON organizations(slug);

		CREATE TABLE org_members (
			org_id UUID NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
			user_id VARCHAR(255) NOT NULL,
			role VARCHAR(20) NOT NULL CHECK (role IN ('owner', 'member')),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (org_id, user_id)
		);
	`

	_, err := db.Exec(schema)
	return err
}

func newTestOrgStore(db *sql.DB) *OrgStore {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return &OrgStore{db: db, logger: logger}
}

// genLowercaseString generates a fixed-length lowercase string.
func genLowercaseString(n int) gopter.Gen {
	return gen.SliceOfN(n, gen.IntRange(0, 25)).Map(func(chars []int) string {
		b := make([]byte, len(chars))
		for i, c := range chars {
			b[i] = byte('a' + c)
		}
		return string(b)
	})
}

// genOrgInput generates a random valid Organization for creation.
func genOrgInput() gopter.Gen {
	return gopter.CombineGens(
		genLowercaseString(12), // Name
		genLowercaseString(8),  // Slug
		gen.AlphaString(),      // Description
	).Map(func(vals []interface{}) models.Organization {
		return models.Organization{
			ID:          uuid.New().String(),
			Name:        vals[0].(string),
			Slug:        vals[1].(string),
			Description: vals[2].(string),
		}
	})
}

func TestOrgCreationRoundTrip(t *testing.T) {
	db := setupOrgTestDB(t)
	defer cleanupOrgTestDB(t, db)

	orgs := newTestOrgStore(db)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("org creation round-trip preserves data", prop.ForAll(
		func(input models.Organization) bool {
			ctx := context.Background()

			db.Exec("DELETE FROM org_members")
			db.Exec("DELETE FROM organizations")

			if err := orgs.Create(ctx, &input); err != nil {
				t.Logf("Create error: %v", err)
				return false
			}

			got, err := orgs.Get(ctx, input.ID)
			if err != nil {
				t.Logf("Get error: %v", err)
				return false
			}
			if got.Name != input.Name || got.Slug != input.Slug || got.Description != input.Description {
				t.Logf("round-trip mismatch: got %+v want %+v", got, input)
				return false
			}

			bySlug, err := orgs.GetBySlug(ctx, input.Slug)
			if err != nil {
				t.Logf("GetBySlug error: %v", err)
				return false
			}
			return reflect.DeepEqual(got, bySlug)
		},
		genOrgInput(),
	))

	properties.TestingRun(t)
}

func TestOrgDuplicateSlugRejected(t *testing.T) {
	db := setupOrgTestDB(t)
	defer cleanupOrgTestDB(t, db)

	orgs := newTestOrgStore(db)
	ctx := context.Background()

	first := &models.Organization{ID: uuid.New().String(), Name: "Acme", Slug: "acme"}
	if err := orgs.Create(ctx, first); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	second := &models.Organization{ID: uuid.New().String(), Name: "Acme Two", Slug: "acme"}
	if err := orgs.Create(ctx, second); !errors.Is(err, store.ErrDuplicateName) {
		t.Fatalf("Create() with duplicate slug = %v, want ErrDuplicateName", err)
	}
}

func TestOrgMembershipLifecycle(t *testing.T) {
	db := setupOrgTestDB(t)
	defer cleanupOrgTestDB(t, db)

	orgs := newTestOrgStore(db)
	ctx := context.Background()

	org := &models.Organization{ID: uuid.New().String(), Name: "Acme", Slug: "acme"}
	if err := orgs.Create(ctx, org); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	userID := uuid.New().String()
	if err := orgs.AddMember(ctx, org.ID, userID, models.RoleOwner); err != nil {
		t.Fatalf("AddMember() error = %v", err)
	}

	isMember, err := orgs.IsMember(ctx, org.ID, userID)
	if err != nil {
		t.Fatalf("IsMember() error = %v", err)
	}
	if !isMember {
		t.Error("IsMember() = false after AddMember")
	}

	members, err := orgs.ListMembers(ctx, org.ID)
	if err != nil {
		t.Fatalf("ListMembers() error = %v", err)
	}
	if len(members) != 1 || members[0].UserID != userID || members[0].Role != models.RoleOwner {
		t.Errorf("ListMembers() = %+v, want single owner %q", members, userID)
	}

	// AddMember upserts the role for an existing membership.
	if err := orgs.AddMember(ctx, org.ID, userID, models.RoleMember); err != nil {
		t.Fatalf("AddMember() upsert error = %v", err)
	}
	members, err = orgs.ListMembers(ctx, org.ID)
	if err != nil {
		t.Fatalf("ListMembers() error = %v", err)
	}
	if len(members) != 1 || members[0].Role != models.RoleMember {
		t.Errorf("ListMembers() after role change = %+v, want single member", members)
	}

	got, err := orgs.GetDefaultForUser(ctx, userID)
	if err != nil {
		t.Fatalf("GetDefaultForUser() error = %v", err)
	}
	if got.ID != org.ID {
		t.Errorf("GetDefaultForUser() = %q, want %q", got.ID, org.ID)
	}

	listed, err := orgs.List(ctx, userID)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(listed) != 1 || listed[0].ID != org.ID {
		t.Errorf("List() = %+v, want the single org", listed)
	}

	if err := orgs.RemoveMember(ctx, org.ID, userID); err != nil {
		t.Fatalf("RemoveMember() error = %v", err)
	}
	isMember, err = orgs.IsMember(ctx, org.ID, userID)
	if err != nil {
		t.Fatalf("IsMember() error = %v", err)
	}
	if isMember {
		t.Error("IsMember() = true after RemoveMember")
	}
}

func TestOrgDeleteRemovesOrg(t *testing.T) {
	db := setupOrgTestDB(t)
	defer cleanupOrgTestDB(t, db)

	orgs := newTestOrgStore(db)
	ctx := context.Background()

	org := &models.Organization{ID: uuid.New().String(), Name: "Acme", Slug: "acme"}
	if err := orgs.Create(ctx, org); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := orgs.Delete(ctx, org.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := orgs.Get(ctx, org.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get() after delete = %v, want ErrNotFound", err)
	}
	if err := orgs.Delete(ctx, org.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Delete() again = %v, want ErrNotFound", err)
	}
}
