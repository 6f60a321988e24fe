package session

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/healthlog/platform/internal/shared/auth"
	"github.com/healthlog/platform/internal/shared/errors"
	"github.com/healthlog/platform/internal/shared/types"
	"github.com/healthlog/platform/internal/tracker"
)

// Handler provides HTTP handlers for the user-facing tracker API.
// Every route operates on the calling identity's own session.
type Handler struct {
	registry *Registry
}

// NewHandler creates a new session handler.
func NewHandler(registry *Registry) *Handler {
	return &Handler{registry: registry}
}

// Routes registers the user-facing routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/document", h.GetDocument)
	r.Get("/stats", h.GetStats)
	r.Get("/awards", h.GetAwards)
	r.Get("/history", h.GetHistory)
	r.Post("/interactions", h.ApplyInteraction)

	r.Route("/records", func(r chi.Router) {
		r.Post("/", h.CreateRecord)
		r.Delete("/{recordID}", h.DeleteRecord)
	})

	r.Post("/symptoms", h.CreateSymptomEntry)
	r.Put("/profile", h.UpdateProfile)
	r.Post("/signout", h.Signout)

	return r
}

// session resolves the caller's session, writing the error response
// itself on failure.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*Manager, bool) {
	identity := auth.GetIdentity(r.Context())
	if identity == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return nil, false
	}

	m, err := h.registry.Get(r.Context(), identity.UID)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return m, true
}

// GetDocument returns the caller's full document.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	m, ok := h.session(w, r)
	if !ok {
		return
	}

	doc, err := m.Document()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// GetStats returns aggregate statistics per collection, with optional
// name filtering and visit-count ordering of the entity lists.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	m, ok := h.session(w, r)
	if !ok {
		return
	}

	doc, err := m.Document()
	if err != nil {
		writeError(w, err)
		return
	}

	hospitals := doc.Hospitals
	ambulance := doc.Ambulance
	if term := r.URL.Query().Get("search"); term != "" {
		hospitals = tracker.FilterByName(hospitals, term)
		ambulance = tracker.FilterByName(ambulance, term)
	}
	if r.URL.Query().Get("sort") == "visits" {
		hospitals = tracker.SortByVisits(hospitals)
		ambulance = tracker.SortByVisits(ambulance)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"hospitals": map[string]any{
			"stats":    tracker.Aggregate(doc.Hospitals),
			"entities": hospitals,
		},
		"ambulance": map[string]any{
			"stats":    tracker.Aggregate(doc.Ambulance),
			"entities": ambulance,
		},
	})
}

// GetAwards returns the award catalogue, the caller's unlocked set,
// and any notifications not yet delivered. Notifications are consumed
// by this call.
func (h *Handler) GetAwards(w http.ResponseWriter, r *http.Request) {
	m, ok := h.session(w, r)
	if !ok {
		return
	}

	doc, err := m.Document()
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"definitions":   tracker.AwardDefinitions(),
		"unlocked":      doc.Awards,
		"notifications": m.TakeNotifications(),
	})
}

// GetHistory returns the visit history, newest first.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	m, ok := h.session(w, r)
	if !ok {
		return
	}

	doc, err := m.Document()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"history": doc.VisitHistory,
		"limit":   tracker.VisitHistoryMax,
	})
}

type interactionRequest struct {
	Collection string `json:"collection"`
	Index      int    `json:"index"`
	Action     string `json:"action"`
}

// ApplyInteraction applies one typed interaction and reports the
// result plus any awards it unlocked.
func (h *Handler) ApplyInteraction(w http.ResponseWriter, r *http.Request) {
	m, ok := h.session(w, r)
	if !ok {
		return
	}

	var req interactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	collection, err := tracker.ParseCollection(req.Collection)
	if err != nil {
		writeError(w, errors.Validation("validation failed", map[string]string{"collection": err.Error()}))
		return
	}
	action, err := tracker.ParseAction(req.Action)
	if err != nil {
		writeError(w, errors.Validation("validation failed", map[string]string{"action": err.Error()}))
		return
	}

	result, unlocked, err := m.Interact(r.Context(), tracker.Command{
		Collection: collection,
		Index:      req.Index,
		Action:     action,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"result":   result,
		"unlocked": unlocked,
	})
}

// CreateRecord logs a medical record.
func (h *Handler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	m, ok := h.session(w, r)
	if !ok {
		return
	}

	var req tracker.CreateRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	rec, err := m.CreateRecord(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// DeleteRecord removes a medical record.
func (h *Handler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	m, ok := h.session(w, r)
	if !ok {
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "recordID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid record ID"))
		return
	}

	if err := m.DeleteRecord(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateSymptomEntry logs a symptom tracking entry.
func (h *Handler) CreateSymptomEntry(w http.ResponseWriter, r *http.Request) {
	m, ok := h.session(w, r)
	if !ok {
		return
	}

	var req tracker.CreateSymptomEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	entry, err := m.AddSymptomEntry(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// UpdateProfile replaces the caller's profile.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	m, ok := h.session(w, r)
	if !ok {
		return
	}

	var req tracker.UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	profile, err := m.UpdateProfile(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// Signout flushes and retires the caller's session.
func (h *Handler) Signout(w http.ResponseWriter, r *http.Request) {
	identity := auth.GetIdentity(r.Context())
	if identity == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	if err := h.registry.Remove(r.Context(), identity.UID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
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
