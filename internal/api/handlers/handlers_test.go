package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/regulateai/platform/internal/api/middleware"
	"github.com/regulateai/platform/internal/ingest"
	"github.com/regulateai/platform/internal/models"
	"github.com/regulateai/platform/internal/store"
)

// fakeLogStore backs handler tests with in-memory entries.
type fakeLogStore struct {
	store.LogStore

	entries    []*models.LogEntry
	lastFilter models.LogFilter
}

func (f *fakeLogStore) BulkInsert(ctx context.Context, projectID string, entries []*models.LogEntry) error {
	f.entries = append(f.entries, entries...)
	return nil
}

func (f *fakeLogStore) LatestModel(ctx context.Context, projectID string, since time.Time) (string, string, error) {
	return "", "", store.ErrNotFound
}

func (f *fakeLogStore) List(ctx context.Context, projectID string, filter models.LogFilter) ([]*models.LogEntry, error) {
	f.lastFilter = filter
	return f.entries, nil
}

type fakeAlertStore struct {
	store.AlertStore
	alerts   []*models.Alert
	resolved []string
}

func (f *fakeAlertStore) CreateIfNoneOpen(ctx context.Context, alert *models.Alert) (bool, error) {
	f.alerts = append(f.alerts, alert)
	return true, nil
}

func (f *fakeAlertStore) List(ctx context.Context, projectID string, status models.AlertStatus, limit int) ([]*models.Alert, error) {
	return f.alerts, nil
}

func (f *fakeAlertStore) Resolve(ctx context.Context, id, resolvedBy string) error {
	for _, a := range f.alerts {
		if a.ID == id && a.Status == models.AlertOpen {
			f.resolved = append(f.resolved, id+":"+resolvedBy)
			return nil
		}
	}
	return store.ErrNotFound
}

type fakeStore struct {
	store.Store
	logs   *fakeLogStore
	alerts *fakeAlertStore
	orgs   *fakeOrgStore
}

func (f *fakeStore) Logs() store.LogStore     { return f.logs }
func (f *fakeStore) Alerts() store.AlertStore { return f.alerts }
func (f *fakeStore) Orgs() store.OrgStore     { return f.orgs }

func newFakeStore() *fakeStore {
	return &fakeStore{logs: &fakeLogStore{}, alerts: &fakeAlertStore{}}
}

// withProjectID simulates the API key middleware.
func withProjectID(r *http.Request, projectID string) *http.Request {
	ctx := context.WithValue(r.Context(), middleware.ProjectIDKey, projectID)
	return r.WithContext(ctx)
}

// withProject simulates the project access middleware.
func withProject(r *http.Request, project *models.Project) *http.Request {
	ctx := context.WithValue(r.Context(), middleware.ProjectContextKey, project)
	return r.WithContext(ctx)
}

func TestIngestAcknowledgesBatch(t *testing.T) {
	st := newFakeStore()
	h := NewIngestHandler(ingest.NewPipeline(st, ingest.Config{}, nil), slog.Default())

	body := `{"logs":[
		{"prompt":"p1","output":"o1","model":"gpt-4o"},
		{"prompt":"","output":"o2","model":"gpt-4o"},
		{"prompt":"p3","output":"o3","model":"gpt-4o"}
	]}`
	req := withProjectID(httptest.NewRequest(http.MethodPost, "/ingest/logs", bytes.NewBufferString(body)), "proj-1")
	rec := httptest.NewRecorder()
	h.Ingest(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var result ingest.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Accepted != 2 || result.Rejected != 1 {
		t.Errorf("accepted=%d rejected=%d", result.Accepted, result.Rejected)
	}
	if len(result.Errors) != 1 || result.Errors[0].Index != 1 {
		t.Errorf("errors = %+v", result.Errors)
	}
	if result.ProjectID != "proj-1" {
		t.Errorf("project_id = %q", result.ProjectID)
	}
	if len(st.logs.entries) != 2 {
		t.Errorf("stored %d entries", len(st.logs.entries))
	}
}

func TestIngestWithoutAPIKeyContext(t *testing.T) {
	h := NewIngestHandler(ingest.NewPipeline(newFakeStore(), ingest.Config{}, nil), slog.Default())

	req := httptest.NewRequest(http.MethodPost, "/ingest/logs", bytes.NewBufferString(`{"logs":[]}`))
	rec := httptest.NewRecorder()
	h.Ingest(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestIngestRejectsBadBatches(t *testing.T) {
	h := NewIngestHandler(ingest.NewPipeline(newFakeStore(), ingest.Config{MaxBatchSize: 2}, nil), slog.Default())

	cases := []struct {
		name string
		body string
	}{
		{"empty batch", `{"logs":[]}`},
		{"malformed json", `{"logs":`},
		{"oversized batch", `{"logs":[` +
			`{"prompt":"p","output":"o","model":"m"},` +
			`{"prompt":"p","output":"o","model":"m"},` +
			`{"prompt":"p","output":"o","model":"m"}]}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := withProjectID(httptest.NewRequest(http.MethodPost, "/ingest/logs", bytes.NewBufferString(tc.body)), "proj-1")
			rec := httptest.NewRecorder()
			h.Ingest(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, body = %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestLogListAppliesFilter(t *testing.T) {
	st := newFakeStore()
	st.logs.entries = []*models.LogEntry{{ID: "log-1", Prompt: "p", Output: "o", Model: "gpt-4o"}}
	h := NewLogHandler(st, slog.Default())

	url := "/v1/proj-1/logs?model=gpt-4o&model=claude-3&status=error&session_id=s-1" +
		"&since=2026-01-01T00:00:00Z&limit=9999&offset=20"
	req := withProject(httptest.NewRequest(http.MethodGet, url, nil), &models.Project{ID: "proj-1"})
	rec := httptest.NewRecorder()
	h.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	filter := st.logs.lastFilter
	if len(filter.Models) != 2 || filter.Models[0] != "gpt-4o" {
		t.Errorf("models = %v", filter.Models)
	}
	if filter.Status != models.LogStatusError || filter.SessionID != "s-1" {
		t.Errorf("status = %q, session = %q", filter.Status, filter.SessionID)
	}
	if filter.Since.IsZero() {
		t.Error("since not parsed")
	}
	if filter.Limit != maxLogLimit {
		t.Errorf("limit = %d, want capped at %d", filter.Limit, maxLogLimit)
	}
	if filter.Offset != 20 {
		t.Errorf("offset = %d", filter.Offset)
	}

	var envelope struct {
		Logs   []*models.LogEntry `json:"logs"`
		Limit  int                `json:"limit"`
		Offset int                `json:"offset"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(envelope.Logs) != 1 || envelope.Offset != 20 {
		t.Errorf("envelope = %+v", envelope)
	}
}

func TestLogListWithoutProject(t *testing.T) {
	h := NewLogHandler(newFakeStore(), slog.Default())
	req := httptest.NewRequest(http.MethodGet, "/v1/proj-1/logs", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestAlertListValidatesStatus(t *testing.T) {
	h := NewAlertHandler(newFakeStore(), slog.Default())

	req := withProject(httptest.NewRequest(http.MethodGet, "/v1/proj-1/alerts?status=bogus", nil), &models.Project{ID: "proj-1"})
	rec := httptest.NewRecorder()
	h.List(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestAlertResolve(t *testing.T) {
	st := newFakeStore()
	st.alerts.alerts = []*models.Alert{{ID: "alert-1", Status: models.AlertOpen}}
	h := NewAlertHandler(st, slog.Default())

	r := newAlertRouter(h)

	req := withProject(httptest.NewRequest(http.MethodPost, "/v1/proj-1/alerts/alert-1/resolve", nil), &models.Project{ID: "proj-1"})
	req = req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, "user-1"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(st.alerts.resolved) != 1 || st.alerts.resolved[0] != "alert-1:user-1" {
		t.Errorf("resolved = %v", st.alerts.resolved)
	}

	// Resolving an unknown alert yields 404.
	req = withProject(httptest.NewRequest(http.MethodPost, "/v1/proj-1/alerts/alert-x/resolve", nil), &models.Project{ID: "proj-1"})
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown alert: status = %d", rec.Code)
	}
}

func TestResponseHelpers(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, map[string]string{"id": "x"})
	if rec.Code != http.StatusCreated || rec.Header().Get("Content-Type") != "application/json" {
		t.Errorf("WriteJSON: status = %d, content-type = %q", rec.Code, rec.Header().Get("Content-Type"))
	}

	rec = httptest.NewRecorder()
	WriteBadRequest(rec, "nope")
	var apiErr APIError
	if err := json.Unmarshal(rec.Body.Bytes(), &apiErr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Code != http.StatusBadRequest || apiErr.Message != "nope" {
		t.Errorf("WriteBadRequest: %d %+v", rec.Code, apiErr)
	}
}

func newAlertRouter(h *AlertHandler) http.Handler {
	r := chi.NewRouter()
	r.Post("/v1/{projectID}/alerts/{alertID}/resolve", h.Resolve)
	return r
}

// fakeOrgStore backs org handler tests with in-memory orgs and memberships.
type fakeOrgStore struct {
	store.OrgStore
	orgs    map[string]*models.Organization
	members map[string]bool // "orgID:userID"
	deleted []string
}

func (f *fakeOrgStore) Get(ctx context.Context, id string) (*models.Organization, error) {
	if o, ok := f.orgs[id]; ok {
		return o, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeOrgStore) IsMember(ctx context.Context, orgID, userID string) (bool, error) {
	return f.members[orgID+":"+userID], nil
}

func (f *fakeOrgStore) List(ctx context.Context, userID string) ([]*models.Organization, error) {
	var out []*models.Organization
	for id, o := range f.orgs {
		if f.members[id+":"+userID] {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeOrgStore) Delete(ctx context.Context, id string) error {
	if _, ok := f.orgs[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.orgs, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func newOrgRouter(h *OrgHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/v1/orgs/{orgID}", h.Get)
	r.Delete("/v1/orgs/{orgID}", h.Delete)
	return r
}

func withUserID(r *http.Request, userID string) *http.Request {
	ctx := context.WithValue(r.Context(), middleware.UserIDKey, userID)
	return r.WithContext(ctx)
}

func TestOrgGetHiddenFromNonMembers(t *testing.T) {
	orgs := &fakeOrgStore{
		orgs: map[string]*models.Organization{
			"org-a": {ID: "org-a", Name: "Acme", Slug: "acme"},
			"org-b": {ID: "org-b", Name: "Other", Slug: "other"},
		},
		members: map[string]bool{"org-a:user-1": true, "org-b:user-2": true},
	}
	st := &fakeStore{logs: &fakeLogStore{}, alerts: &fakeAlertStore{}, orgs: orgs}
	h := NewOrgHandler(st, slog.Default())
	router := newOrgRouter(h)

	req := withUserID(httptest.NewRequest(http.MethodGet, "/v1/orgs/org-a", nil), "user-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("own org: status = %d, want 200", rec.Code)
	}

	req = withUserID(httptest.NewRequest(http.MethodGet, "/v1/orgs/org-b", nil), "user-1")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("foreign org: status = %d, want 404", rec.Code)
	}
}

func TestOrgDeleteKeepsLastOrg(t *testing.T) {
	orgs := &fakeOrgStore{
		orgs: map[string]*models.Organization{
			"org-a": {ID: "org-a", Name: "Acme", Slug: "acme"},
			"org-b": {ID: "org-b", Name: "Beta", Slug: "beta"},
		},
		members: map[string]bool{
			"org-a:user-1": true,
			"org-a:user-2": true,
			"org-b:user-2": true,
		},
	}
	st := &fakeStore{logs: &fakeLogStore{}, alerts: &fakeAlertStore{}, orgs: orgs}
	h := NewOrgHandler(st, slog.Default())
	router := newOrgRouter(h)

	// user-1 belongs only to org-a; deleting it is refused.
	req := withUserID(httptest.NewRequest(http.MethodDelete, "/v1/orgs/org-a", nil), "user-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("last org: status = %d, want 400", rec.Code)
	}
	if len(orgs.deleted) != 0 {
		t.Errorf("deleted = %v, want none", orgs.deleted)
	}

	// user-2 belongs to both; deleting one is allowed.
	req = withUserID(httptest.NewRequest(http.MethodDelete, "/v1/orgs/org-b", nil), "user-2")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete: status = %d, want 204", rec.Code)
	}
	if len(orgs.deleted) != 1 || orgs.deleted[0] != "org-b" {
		t.Errorf("deleted = %v, want [org-b]", orgs.deleted)
	}
}
