package session

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/healthlog/platform/internal/shared/auth"
	"github.com/healthlog/platform/internal/store"
	"github.com/healthlog/platform/internal/tracker"
)

func testServer(t *testing.T) (*httptest.Server, *Registry) {
	t.Helper()
	registry := NewRegistry(store.NewMemoryStore(), testSeeder(), nil, testConfig())
	handler := NewHandler(registry)

	authenticated := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Test-UID") != "" {
			ctx := auth.WithIdentity(r.Context(), &auth.Identity{
				UID:           r.Header.Get("X-Test-UID"),
				Email:         "user@example.com",
				EmailVerified: true,
			})
			r = r.WithContext(ctx)
		}
		handler.Routes().ServeHTTP(w, r)
	})

	srv := httptest.NewServer(authenticated)
	t.Cleanup(srv.Close)
	return srv, registry
}

func doRequest(t *testing.T, srv *httptest.Server, method, path, uid string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if uid != "" {
		req.Header.Set("X-Test-UID", uid)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestAPIRequiresAuthentication(t *testing.T) {
	srv, _ := testServer(t)

	resp := doRequest(t, srv, http.MethodGet, "/document", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestAPIGetDocumentSeedsOnFirstUse(t *testing.T) {
	srv, _ := testServer(t)

	resp := doRequest(t, srv, http.MethodGet, "/document", "u1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var doc tracker.UserDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		t.Fatal(err)
	}
	if len(doc.Hospitals) == 0 {
		t.Error("first-use document should carry seeded hospitals")
	}
}

func TestAPIInteractionFlow(t *testing.T) {
	srv, _ := testServer(t)

	resp := doRequest(t, srv, http.MethodPost, "/interactions", "u1", map[string]any{
		"collection": "hospitals",
		"index":      0,
		"action":     "toggle",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var out struct {
		Result   tracker.InteractionResult `json:"result"`
		Unlocked []string                  `json:"unlocked"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if !out.Result.Changed || !out.Result.Entity.Visited {
		t.Errorf("result = %+v", out.Result)
	}
	if len(out.Unlocked) != 1 || out.Unlocked[0] != tracker.AwardFirstVisit {
		t.Errorf("unlocked = %v, want [first_visit]", out.Unlocked)
	}

	// The awards endpoint delivers the notification exactly once.
	resp = doRequest(t, srv, http.MethodGet, "/awards", "u1", nil)
	var awards struct {
		Unlocked      []string            `json:"unlocked"`
		Notifications []AwardNotification `json:"notifications"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&awards); err != nil {
		t.Fatal(err)
	}
	if len(awards.Notifications) != 1 {
		t.Fatalf("notifications = %+v, want 1", awards.Notifications)
	}

	resp = doRequest(t, srv, http.MethodGet, "/awards", "u1", nil)
	var second struct {
		Notifications []AwardNotification `json:"notifications"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&second); err != nil {
		t.Fatal(err)
	}
	if len(second.Notifications) != 0 {
		t.Errorf("second read returned %d notifications, want 0", len(second.Notifications))
	}
}

func TestAPIInteractionValidation(t *testing.T) {
	srv, _ := testServer(t)

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{"unknown collection", map[string]any{"collection": "clinics", "index": 0, "action": "toggle"}, http.StatusBadRequest},
		{"unknown action", map[string]any{"collection": "hospitals", "index": 0, "action": "reset"}, http.StatusBadRequest},
		{"index out of range", map[string]any{"collection": "hospitals", "index": 5000, "action": "toggle"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doRequest(t, srv, http.MethodPost, "/interactions", "u1", tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestAPIRecordEndpoints(t *testing.T) {
	srv, _ := testServer(t)

	resp := doRequest(t, srv, http.MethodPost, "/records/", "u1", tracker.CreateRecordRequest{
		IncidentType: "appointment",
		Severity:     3,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}
	var rec tracker.MedicalRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		t.Fatal(err)
	}

	resp = doRequest(t, srv, http.MethodDelete, "/records/"+rec.ID.String(), "u1", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", resp.StatusCode)
	}

	resp = doRequest(t, srv, http.MethodDelete, "/records/"+rec.ID.String(), "u1", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("double delete status = %d, want 404", resp.StatusCode)
	}
}

func TestAPISignout(t *testing.T) {
	srv, registry := testServer(t)

	doRequest(t, srv, http.MethodGet, "/document", "u1", nil)
	if registry.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", registry.Len())
	}

	resp := doRequest(t, srv, http.MethodPost, "/signout", "u1", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("signout status = %d, want 204", resp.StatusCode)
	}
	if registry.Len() != 0 {
		t.Errorf("Len() = %d after signout, want 0", registry.Len())
	}
}
