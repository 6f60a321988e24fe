package admin

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/healthlog/platform/internal/shared/config"
	"github.com/healthlog/platform/internal/shared/errors"
	"github.com/healthlog/platform/internal/shared/events"
	"github.com/healthlog/platform/internal/store"
	"github.com/healthlog/platform/internal/tracker"
)

// Sessions is the slice of the session registry the admin surface
// needs: dropping a user's live session when their data is deleted.
type Sessions interface {
	Remove(ctx context.Context, uid string) error
	Len() int
}

// Publisher publishes domain events.
type Publisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// GroupChecker validates directory group membership.
type GroupChecker interface {
	IsMember(ctx context.Context, email, group string) (bool, error)
}

// Handler provides the admin and public-config HTTP surface.
type Handler struct {
	store     store.Store
	sessions  Sessions
	directory GroupChecker
	bus       Publisher
	cfg       *config.Config
}

// NewHandler creates an admin handler. directory and bus may be nil.
func NewHandler(st store.Store, sessions Sessions, directory GroupChecker, bus Publisher, cfg *config.Config) *Handler {
	return &Handler{store: st, sessions: sessions, directory: directory, bus: bus, cfg: cfg}
}

// Routes registers the admin routes. Callers must wrap these with
// auth.RequireAdmin.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/stats", h.GetStats)
	r.Get("/users", h.ListUsers)
	r.Delete("/users/{uid}", h.DeleteUser)
	r.Post("/groups/validate", h.ValidateGroup)

	return r
}

// GetStats reports platform-wide counts.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	_, total, err := h.store.List(r.Context(), 1, 0)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"users":          total,
		"activeSessions": h.sessions.Len(),
		"awardCatalogue": len(tracker.AwardDefinitions()),
	})
}

// ListUsers pages through stored user summaries.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	users, total, err := h.store.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  users,
		"total": total,
	})
}

// DeleteUser removes a user's document and live session.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	if uid == "" {
		writeError(w, errors.BadRequest("uid is required"))
		return
	}

	if err := h.sessions.Remove(r.Context(), uid); err != nil {
		log.Printf("WARN: failed to close session for %s: %v", uid, err)
	}
	if err := h.store.Delete(r.Context(), uid); err != nil {
		writeError(w, err)
		return
	}

	if h.bus != nil {
		if err := h.bus.Publish(r.Context(), events.NewEvent(events.TypeUserDeleted, uid, nil)); err != nil {
			log.Printf("WARN: failed to publish user.deleted: %v", err)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

type validateGroupRequest struct {
	Email string `json:"email"`
	Group string `json:"group"`
}

// ValidateGroup rechecks a group membership against the staff
// directory.
func (h *Handler) ValidateGroup(w http.ResponseWriter, r *http.Request) {
	if h.directory == nil {
		writeError(w, errors.Conflict("directory service is not configured"))
		return
	}

	var req validateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}
	if req.Email == "" || req.Group == "" {
		writeError(w, errors.Validation("validation failed", map[string]string{
			"email": "email is required",
			"group": "group is required",
		}))
		return
	}

	member, err := h.directory.IsMember(r.Context(), req.Email, req.Group)
	if err != nil {
		writeError(w, errors.Wrap(err, "directory check failed"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"email":  req.Email,
		"group":  req.Group,
		"member": member,
	})
}

// PublicConfig serves the unauthenticated client bootstrap config.
// Mounted outside the admin group.
func (h *Handler) PublicConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"geocodeEnabled": h.cfg.Geocode.Enabled,
		"awards":         tracker.AwardDefinitions(),
		"severity": map[string]int{
			"min": tracker.SeverityMin,
			"max": tracker.SeverityMax,
		},
		"visitHistoryLimit": tracker.VisitHistoryMax,
	})
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	if appErr, ok := err.(*errors.AppError); ok {
		w.WriteHeader(appErr.HTTPStatus)
		json.NewEncoder(w).Encode(map[string]any{
			"error":   appErr.Message,
			"code":    appErr.Code,
			"details": appErr.Details,
		})
		return
	}

	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
}
