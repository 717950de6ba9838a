package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/regulateai/platform/internal/auth"
	"github.com/regulateai/platform/internal/models"
	"github.com/regulateai/platform/internal/store"
)

// mockOrgStore serves canned orgs and memberships.
type mockOrgStore struct {
	store.OrgStore
	orgs       map[string]*models.Organization // by ID
	bySlug     map[string]*models.Organization
	members    map[string]bool // orgID+":"+userID
	defaultOrg *models.Organization
}

func (m *mockOrgStore) Get(ctx context.Context, id string) (*models.Organization, error) {
	if org, ok := m.orgs[id]; ok {
		return org, nil
	}
	return nil, store.ErrNotFound
}

func (m *mockOrgStore) GetBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	if org, ok := m.bySlug[slug]; ok {
		return org, nil
	}
	return nil, store.ErrNotFound
}

func (m *mockOrgStore) IsMember(ctx context.Context, orgID, userID string) (bool, error) {
	return m.members[orgID+":"+userID], nil
}

func (m *mockOrgStore) GetDefaultForUser(ctx context.Context, userID string) (*models.Organization, error) {
	return m.defaultOrg, nil
}

// mockProjectStore serves canned projects.
type mockProjectStore struct {
	store.ProjectStore
	projects map[string]*models.Project
}

func (m *mockProjectStore) Get(ctx context.Context, id string) (*models.Project, error) {
	if p, ok := m.projects[id]; ok {
		return p, nil
	}
	return nil, store.ErrNotFound
}

// mockKeyStore serves API keys by hash.
type mockKeyStore struct {
	store.APIKeyStore
	byHash  map[string]*models.APIKey
	touched []string
}

func (m *mockKeyStore) GetByHash(ctx context.Context, hash string) (*models.APIKey, error) {
	if k, ok := m.byHash[hash]; ok {
		return k, nil
	}
	return nil, store.ErrNotFound
}

func (m *mockKeyStore) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	m.touched = append(m.touched, id)
	return nil
}

// mockStore wires the sub-stores behind store.Store.
type mockStore struct {
	store.Store
	orgStore     *mockOrgStore
	projectStore *mockProjectStore
	keyStore     *mockKeyStore
}

func (m *mockStore) Orgs() store.OrgStore         { return m.orgStore }
func (m *mockStore) Projects() store.ProjectStore { return m.projectStore }
func (m *mockStore) APIKeys() store.APIKeyStore   { return m.keyStore }

func newAuthService(t *testing.T, keys store.APIKeyStore) *auth.Service {
	t.Helper()
	return auth.NewService(&auth.Config{
		JWTSecret:   []byte("test-secret-key-with-enough-entropy!"),
		TokenExpiry: time.Hour,
	}, keys, slog.Default())
}

func TestAuthenticateRejectsMissingToken(t *testing.T) {
	m := NewAuthMiddleware(newAuthService(t, nil), slog.Default())

	handler := m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run without a token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/orgs", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestAuthenticateBindsUserContext(t *testing.T) {
	svc := newAuthService(t, nil)
	token, err := svc.GenerateToken("user-1", "a@b.com")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	m := NewAuthMiddleware(svc, slog.Default())
	var gotUser, gotEmail string
	handler := m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = GetUserID(r.Context())
		gotEmail = GetUserEmail(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/orgs", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if gotUser != "user-1" || gotEmail != "a@b.com" {
		t.Errorf("context = %q, %q", gotUser, gotEmail)
	}
}

func TestAuthenticateExpiredToken(t *testing.T) {
	expired := auth.NewService(&auth.Config{
		JWTSecret:   []byte("test-secret-key-with-enough-entropy!"),
		TokenExpiry: -time.Minute,
	}, nil, slog.Default())
	token, err := expired.GenerateToken("user-1", "a@b.com")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	m := NewAuthMiddleware(newAuthService(t, nil), slog.Default())
	handler := m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run with an expired token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/orgs", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestAPIKeyAuthenticate(t *testing.T) {
	raw, err := auth.GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey: %v", err)
	}

	keys := &mockKeyStore{byHash: map[string]*models.APIKey{
		auth.HashAPIKey(raw): {ID: "key-1", ProjectID: "proj-1"},
	}}
	m := NewAPIKeyMiddleware(newAuthService(t, keys), keys, "", slog.Default())

	var gotProject string
	handler := m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotProject = GetProjectID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/ingest/logs", nil)
	req.Header.Set("x-api-key", raw)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if gotProject != "proj-1" {
		t.Errorf("project = %q", gotProject)
	}
	if len(keys.touched) != 1 || keys.touched[0] != "key-1" {
		t.Errorf("last_used_at not touched: %v", keys.touched)
	}
}

func TestAPIKeyAuthenticateRejectsBadKey(t *testing.T) {
	keys := &mockKeyStore{byHash: map[string]*models.APIKey{}}
	m := NewAPIKeyMiddleware(newAuthService(t, keys), keys, "", slog.Default())

	handler := m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run with an invalid key")
	}))

	for _, key := range []string{"", "rgl_unknown"} {
		req := httptest.NewRequest(http.MethodPost, "/ingest/logs", nil)
		if key != "" {
			req.Header.Set("x-api-key", key)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("key %q: status = %d", key, rec.Code)
		}
	}
}

func TestOrgContextEnforcesMembership(t *testing.T) {
	orgA := &models.Organization{ID: "org-a", Slug: "org-a"}
	st := &mockStore{orgStore: &mockOrgStore{
		orgs:    map[string]*models.Organization{"org-a": orgA},
		bySlug:  map[string]*models.Organization{"org-a": orgA},
		members: map[string]bool{"org-a:user-1": true},
	}}

	mw := OrgContext(st, slog.Default())
	var gotOrg string
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotOrg = GetOrgID(r.Context())
	}))

	// Member: allowed.
	req := httptest.NewRequest(http.MethodGet, "/v1/projects", nil)
	req.Header.Set("X-Org-ID", "org-a")
	req = req.WithContext(context.WithValue(req.Context(), UserIDKey, "user-1"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || gotOrg != "org-a" {
		t.Errorf("member: status = %d, org = %q", rec.Code, gotOrg)
	}

	// Non-member: forbidden.
	req = httptest.NewRequest(http.MethodGet, "/v1/projects", nil)
	req.Header.Set("X-Org-ID", "org-a")
	req = req.WithContext(context.WithValue(req.Context(), UserIDKey, "user-2"))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("non-member: status = %d", rec.Code)
	}

	// Unknown org: not found.
	req = httptest.NewRequest(http.MethodGet, "/v1/projects", nil)
	req.Header.Set("X-Org-ID", "org-x")
	req = req.WithContext(context.WithValue(req.Context(), UserIDKey, "user-1"))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown org: status = %d", rec.Code)
	}
}

func TestOrgContextFallsBackToDefault(t *testing.T) {
	orgA := &models.Organization{ID: "org-a", Slug: "org-a"}
	st := &mockStore{orgStore: &mockOrgStore{defaultOrg: orgA}}

	mw := OrgContext(st, slog.Default())
	var gotOrg string
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotOrg = GetOrgID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/projects", nil)
	req = req.WithContext(context.WithValue(req.Context(), UserIDKey, "user-1"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || gotOrg != "org-a" {
		t.Errorf("status = %d, org = %q", rec.Code, gotOrg)
	}
}

func TestProjectAccessHidesForeignProjects(t *testing.T) {
	st := &mockStore{projectStore: &mockProjectStore{projects: map[string]*models.Project{
		"proj-a": {ID: "proj-a", OrgID: "org-a"},
		"proj-b": {ID: "proj-b", OrgID: "org-b"},
	}}}

	mw := ProjectAccess(st, slog.Default())
	var gotProject string
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p := GetProject(r.Context()); p != nil {
			gotProject = p.ID
		}
	}))

	r := chi.NewRouter()
	r.Route("/v1/{projectID}", func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				ctx := context.WithValue(req.Context(), OrgContextKey, &models.Organization{ID: "org-a"})
				next.ServeHTTP(w, req.WithContext(ctx))
			})
		})
		r.Handle("/logs", handler)
	})

	// Own project: allowed.
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/proj-a/logs", nil))
	if rec.Code != http.StatusOK || gotProject != "proj-a" {
		t.Errorf("own project: status = %d, project = %q", rec.Code, gotProject)
	}

	// Another org's project: indistinguishable from missing.
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/proj-b/logs", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("foreign project: status = %d", rec.Code)
	}

	// Unknown project.
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/proj-x/logs", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown project: status = %d", rec.Code)
	}
}
