package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/healthlog/platform/internal/shared/auth"
	"github.com/healthlog/platform/internal/shared/config"
	"github.com/healthlog/platform/internal/store"
	"github.com/healthlog/platform/internal/tracker"
)

type stubSessions struct {
	removed []string
	active  int
}

func (s *stubSessions) Remove(ctx context.Context, uid string) error {
	s.removed = append(s.removed, uid)
	return nil
}

func (s *stubSessions) Len() int { return s.active }

type stubChecker struct {
	member bool
	err    error
}

func (c *stubChecker) IsMember(ctx context.Context, email, group string) (bool, error) {
	return c.member, c.err
}

func newTestHandler(t *testing.T) (*Handler, *store.MemoryStore, *stubSessions) {
	t.Helper()
	st := store.NewMemoryStore()
	sessions := &stubSessions{active: 2}
	h := NewHandler(st, sessions, &stubChecker{member: true}, nil, &config.Config{
		Geocode: config.GeocodeConfig{Enabled: true},
	})
	return h, st, sessions
}

func seedUser(t *testing.T, st *store.MemoryStore, uid string) {
	t.Helper()
	doc := &tracker.UserDocument{Awards: []string{tracker.AwardFirstVisit}}
	if err := st.Save(context.Background(), uid, store.Full(doc)); err != nil {
		t.Fatal(err)
	}
}

func TestGetStats(t *testing.T) {
	h, st, _ := newTestHandler(t)
	seedUser(t, st, "u1")
	seedUser(t, st, "u2")

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out["users"].(float64) != 2 {
		t.Errorf("users = %v, want 2", out["users"])
	}
	if out["activeSessions"].(float64) != 2 {
		t.Errorf("activeSessions = %v, want 2", out["activeSessions"])
	}
}

func TestListUsers(t *testing.T) {
	h, st, _ := newTestHandler(t)
	seedUser(t, st, "u1")

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users?limit=10", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var out struct {
		Data  []store.UserSummary `json:"data"`
		Total int                 `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.Total != 1 || len(out.Data) != 1 || out.Data[0].UID != "u1" {
		t.Errorf("unexpected listing: %+v", out)
	}
	if out.Data[0].Awards != 1 {
		t.Errorf("awards = %d, want 1", out.Data[0].Awards)
	}
}

func TestDeleteUser(t *testing.T) {
	h, st, sessions := newTestHandler(t)
	seedUser(t, st, "u1")

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/users/u1", nil))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if len(sessions.removed) != 1 || sessions.removed[0] != "u1" {
		t.Errorf("sessions removed = %v, want [u1]", sessions.removed)
	}
	if _, err := st.Load(context.Background(), "u1"); err == nil {
		t.Error("document should be gone")
	}
}

func TestDeleteUserMissing(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/users/ghost", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestValidateGroup(t *testing.T) {
	h, _, _ := newTestHandler(t)

	body := strings.NewReader(`{"email":"admin@healthlog.example","group":"healthlog-admins"}`)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/groups/validate", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out["member"] != true {
		t.Errorf("member = %v, want true", out["member"])
	}
}

func TestValidateGroupMissingFields(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/groups/validate", strings.NewReader(`{}`)))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestValidateGroupDirectoryError(t *testing.T) {
	st := store.NewMemoryStore()
	h := NewHandler(st, &stubSessions{}, &stubChecker{err: errors.New("unreachable")}, nil, &config.Config{})

	body := strings.NewReader(`{"email":"a@b.c","group":"g"}`)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/groups/validate", body))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestPublicConfig(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.PublicConfig(rec, httptest.NewRequest(http.MethodGet, "/config", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var out struct {
		GeocodeEnabled    bool                      `json:"geocodeEnabled"`
		Awards            []tracker.AwardDefinition `json:"awards"`
		VisitHistoryLimit int                       `json:"visitHistoryLimit"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if !out.GeocodeEnabled {
		t.Error("geocodeEnabled should mirror config")
	}
	if len(out.Awards) != 5 {
		t.Errorf("awards = %d, want 5", len(out.Awards))
	}
	if out.VisitHistoryLimit != tracker.VisitHistoryMax {
		t.Errorf("visitHistoryLimit = %d", out.VisitHistoryLimit)
	}
}

func TestPublicConfigServedWithoutCredentials(t *testing.T) {
	h, _, _ := newTestHandler(t)

	// Mirror the server's mounting: the bootstrap config lives under
	// /api/v1 but outside the token middleware.
	r := chi.NewRouter()
	r.Get("/api/v1/config", h.PublicConfig)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware(config.AuthConfig{JWTSecret: "test-secret"}))
		r.Mount("/admin", h.Routes())
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/config", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("GET /api/v1/config without token = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/stats", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("GET /api/v1/admin/stats without token = %d, want 401", rec.Code)
	}
}
