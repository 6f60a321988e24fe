package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/healthlog/platform/internal/seed"
	"github.com/healthlog/platform/internal/shared/config"
	"github.com/healthlog/platform/internal/shared/errors"
	"github.com/healthlog/platform/internal/shared/events"
	"github.com/healthlog/platform/internal/shared/metrics"
	"github.com/healthlog/platform/internal/shared/types"
	"github.com/healthlog/platform/internal/store"
	"github.com/healthlog/platform/internal/tracker"
)

// State is the lifecycle phase of a session.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateLoading       State = "loading"
	StateSeeding       State = "seeding"
	StateReady         State = "ready"
	StateSaving        State = "saving"
	StateClosed        State = "closed"
)

// Publisher publishes domain events. Best effort; failures are logged
// and never fail the originating operation.
type Publisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// AwardNotification is delivered to the client exactly once per
// unlock within a session.
type AwardNotification struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// dirtySet tracks which document sections have unsaved changes.
type dirtySet struct {
	hospitals, ambulance, records, symptoms, awards, profile, history bool
}

func (d *dirtySet) any() bool {
	return d.hospitals || d.ambulance || d.records || d.symptoms ||
		d.awards || d.profile || d.history
}

func (d *dirtySet) clear() { *d = dirtySet{} }

// Manager owns one user's in-memory document and mediates every
// mutation. Writes are optimistic: the in-memory copy changes first
// and persistence trails behind a debounce window, with consecutive
// mutations coalescing into one save.
type Manager struct {
	uid    string
	store  store.Store
	seeder *seed.Seeder
	bus    Publisher
	cfg    config.SessionConfig

	mu            sync.Mutex
	doc           *tracker.UserDocument
	state         State
	dirty         dirtySet
	saveTimer     *time.Timer
	notifications []AwardNotification
	lastActive    time.Time
	seeded        bool

	// openDone is closed when an in-flight Open resolves; openErr holds
	// its outcome for callers that waited on it.
	openDone chan struct{}
	openErr  error
}

// NewManager creates an unopened manager for a uid.
func NewManager(uid string, st store.Store, seeder *seed.Seeder, bus Publisher, cfg config.SessionConfig) *Manager {
	if cfg.SaveDebounce <= 0 {
		cfg.SaveDebounce = 500 * time.Millisecond
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = 10 * time.Second
	}
	return &Manager{
		uid:        uid,
		store:      st,
		seeder:     seeder,
		bus:        bus,
		cfg:        cfg,
		state:      StateUninitialized,
		lastActive: time.Now(),
	}
}

// Open loads the user's document, seeding a fresh one when nothing is
// stored or the load exceeds its timeout. A slow store degrades to a
// working seeded session instead of an error page.
//
// Only one caller performs the load; concurrent callers for the same
// session block until it resolves and share its outcome, so parallel
// first requests never see a half-open session.
func (m *Manager) Open(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case StateLoading, StateSeeding:
		done := m.openDone
		m.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
		m.mu.Lock()
		err := m.openErr
		m.mu.Unlock()
		return err

	case StateUninitialized:
		m.state = StateLoading
		m.openDone = make(chan struct{})
		m.mu.Unlock()

	default:
		m.mu.Unlock()
		return nil
	}

	loadCtx, cancel := context.WithTimeout(ctx, m.cfg.LoadTimeout)
	defer cancel()

	doc, err := m.store.Load(loadCtx, m.uid)
	switch {
	case err == nil:
		metrics.RecordDocumentLoad("ok")

	case isNotFound(err):
		metrics.RecordDocumentLoad("seeded")
		doc = m.seedDocument(ctx)

	case loadCtx.Err() != nil:
		log.Printf("WARN: load timed out for %s, seeding: %v", m.uid, err)
		metrics.RecordDocumentLoad("timeout")
		doc = m.seedDocument(ctx)

	default:
		m.mu.Lock()
		m.state = StateUninitialized
		m.openErr = err
		close(m.openDone)
		m.mu.Unlock()
		metrics.RecordDocumentLoad("error")
		return err
	}

	m.mu.Lock()
	m.doc = doc
	m.state = StateReady
	m.lastActive = time.Now()
	m.openErr = nil
	close(m.openDone)
	m.mu.Unlock()

	metrics.RecordSessionOpened()

	if m.seeded {
		m.markAllDirty()
		m.scheduleSave()
		m.publish(events.NewEvent(events.TypeUserSeeded, m.uid, map[string]int{
			"hospitals": len(doc.Hospitals),
			"ambulance": len(doc.Ambulance),
		}))
	}
	return nil
}

func isNotFound(err error) bool {
	appErr, ok := err.(*errors.AppError)
	return ok && appErr.Code == "NOT_FOUND"
}

func (m *Manager) seedDocument(ctx context.Context) *tracker.UserDocument {
	m.mu.Lock()
	m.state = StateSeeding
	m.seeded = true
	m.mu.Unlock()
	return m.seeder.Document(ctx)
}

// State returns the current lifecycle phase.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastActive reports when the session last served an operation.
func (m *Manager) LastActive() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastActive
}

// Document returns a deep-copied snapshot of the in-memory document.
// The copy escapes the mutex, so it must not share backing arrays with
// the live document that Interact mutates in place.
func (m *Manager) Document() (*tracker.UserDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.readyLocked(); err != nil {
		return nil, err
	}
	return m.doc.Clone(), nil
}

func (m *Manager) readyLocked() error {
	switch m.state {
	case StateReady, StateSaving:
		m.lastActive = time.Now()
		return nil
	case StateClosed:
		return errors.Conflict("session is closed")
	default:
		return errors.Conflict("session is not ready")
	}
}

// Interact applies a typed interaction, re-evaluates awards, and
// schedules a save. Newly unlocked award ids are returned alongside
// the entity result.
func (m *Manager) Interact(ctx context.Context, cmd tracker.Command) (tracker.InteractionResult, []string, error) {
	m.mu.Lock()
	if err := m.readyLocked(); err != nil {
		m.mu.Unlock()
		return tracker.InteractionResult{}, nil, err
	}

	result, err := tracker.Apply(m.doc, cmd)
	if err != nil {
		m.mu.Unlock()
		return tracker.InteractionResult{}, nil, err
	}

	var unlocked []string
	if result.Changed {
		unlocked = tracker.EvaluateAwards(m.doc)
		for _, id := range unlocked {
			if def, ok := tracker.AwardDefinitionByID(id); ok {
				m.notifications = append(m.notifications, AwardNotification{
					ID: def.ID, Name: def.Name, Description: def.Description, Icon: def.Icon,
				})
			}
		}

		switch cmd.Collection {
		case tracker.CollectionHospitals:
			m.dirty.hospitals = true
		case tracker.CollectionAmbulance:
			m.dirty.ambulance = true
		}
		m.dirty.history = true
		if len(unlocked) > 0 {
			m.dirty.awards = true
		}
		m.scheduleSaveLocked()
	}
	m.mu.Unlock()

	if result.Changed {
		metrics.RecordInteraction(string(cmd.Collection), string(cmd.Action))
		m.publish(events.NewEvent(events.TypeVisitRecorded, m.uid, result))
		for _, id := range unlocked {
			metrics.RecordAwardUnlocked(id)
			m.publish(events.NewEvent(events.TypeAwardUnlocked, m.uid, map[string]string{"award": id}))
		}
	}
	return result, unlocked, nil
}

// CreateRecord validates and stores a medical record.
func (m *Manager) CreateRecord(ctx context.Context, req tracker.CreateRecordRequest) (tracker.MedicalRecord, error) {
	rec, err := tracker.NewMedicalRecord(req)
	if err != nil {
		return tracker.MedicalRecord{}, err
	}

	m.mu.Lock()
	if err := m.readyLocked(); err != nil {
		m.mu.Unlock()
		return tracker.MedicalRecord{}, err
	}
	m.doc.AddRecord(rec)
	m.dirty.records = true
	m.scheduleSaveLocked()
	m.mu.Unlock()

	metrics.RecordMedicalRecordCreated(string(rec.Incident))
	m.publish(events.NewEvent(events.TypeRecordCreated, m.uid, map[string]string{
		"id":       rec.ID.String(),
		"incident": string(rec.Incident),
	}))
	return rec, nil
}

// DeleteRecord removes a record by id.
func (m *Manager) DeleteRecord(ctx context.Context, id types.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.readyLocked(); err != nil {
		return err
	}
	if !m.doc.DeleteRecord(id) {
		return errors.NotFound("medical record", id.String())
	}
	m.dirty.records = true
	m.scheduleSaveLocked()
	return nil
}

// AddSymptomEntry validates and stores a symptom tracking entry.
func (m *Manager) AddSymptomEntry(ctx context.Context, req tracker.CreateSymptomEntryRequest) (tracker.SymptomTrackingEntry, error) {
	entry, err := tracker.NewSymptomEntry(req)
	if err != nil {
		return tracker.SymptomTrackingEntry{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.readyLocked(); err != nil {
		return tracker.SymptomTrackingEntry{}, err
	}
	m.doc.AddSymptomEntry(entry)
	m.dirty.symptoms = true
	m.scheduleSaveLocked()
	return entry, nil
}

// UpdateProfile replaces the user's profile.
func (m *Manager) UpdateProfile(ctx context.Context, req tracker.UpdateProfileRequest) (tracker.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.readyLocked(); err != nil {
		return tracker.UserProfile{}, err
	}
	m.doc.ApplyProfile(req)
	m.dirty.profile = true
	m.scheduleSaveLocked()
	return m.doc.Profile, nil
}

// TakeNotifications returns the pending award notifications and
// clears them, so each unlock is announced once.
func (m *Manager) TakeNotifications() []AwardNotification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.notifications
	m.notifications = nil
	return out
}

func (m *Manager) markAllDirty() {
	m.mu.Lock()
	m.dirty = dirtySet{
		hospitals: true, ambulance: true, records: true,
		symptoms: true, awards: true, profile: true, history: true,
	}
	m.mu.Unlock()
}

func (m *Manager) scheduleSave() {
	m.mu.Lock()
	m.scheduleSaveLocked()
	m.mu.Unlock()
}

// scheduleSaveLocked arms or extends the debounce timer. A burst of
// mutations collapses into a single save once the window goes quiet.
func (m *Manager) scheduleSaveLocked() {
	if m.state == StateClosed {
		return
	}
	if m.saveTimer != nil {
		m.saveTimer.Reset(m.cfg.SaveDebounce)
		return
	}
	m.saveTimer = time.AfterFunc(m.cfg.SaveDebounce, func() {
		m.Flush(context.Background())
	})
}

// Flush persists all dirty sections now. On failure the sections stay
// dirty for the next attempt; the in-memory copy is already ahead of
// the store and stays authoritative.
func (m *Manager) Flush(ctx context.Context) error {
	m.mu.Lock()
	if m.doc == nil || !m.dirty.any() {
		m.mu.Unlock()
		return nil
	}

	prev := m.state
	if prev == StateReady {
		m.state = StateSaving
	}

	partial := store.Partial{}
	if m.dirty.hospitals {
		h := append([]tracker.TrackedEntity(nil), m.doc.Hospitals...)
		partial.Hospitals = &h
	}
	if m.dirty.ambulance {
		a := append([]tracker.TrackedEntity(nil), m.doc.Ambulance...)
		partial.Ambulance = &a
	}
	if m.dirty.records {
		r := append([]tracker.MedicalRecord(nil), m.doc.MedicalRecords...)
		partial.MedicalRecords = &r
	}
	if m.dirty.symptoms {
		s := append([]tracker.SymptomTrackingEntry(nil), m.doc.SymptomTracking...)
		partial.SymptomTracking = &s
	}
	if m.dirty.awards {
		a := append([]string(nil), m.doc.Awards...)
		partial.Awards = &a
	}
	if m.dirty.profile {
		p := m.doc.Profile
		partial.Profile = &p
	}
	if m.dirty.history {
		h := append([]tracker.VisitHistoryEntry(nil), m.doc.VisitHistory...)
		partial.VisitHistory = &h
	}
	snapshot := m.dirty
	m.dirty.clear()
	m.mu.Unlock()

	err := m.store.Save(ctx, m.uid, partial)

	m.mu.Lock()
	if m.state == StateSaving {
		m.state = StateReady
	}
	if err != nil {
		// Re-mark so the next flush retries everything that failed.
		m.dirty.hospitals = m.dirty.hospitals || snapshot.hospitals
		m.dirty.ambulance = m.dirty.ambulance || snapshot.ambulance
		m.dirty.records = m.dirty.records || snapshot.records
		m.dirty.symptoms = m.dirty.symptoms || snapshot.symptoms
		m.dirty.awards = m.dirty.awards || snapshot.awards
		m.dirty.profile = m.dirty.profile || snapshot.profile
		m.dirty.history = m.dirty.history || snapshot.history
	}
	m.mu.Unlock()

	if err != nil {
		metrics.RecordDocumentSave(false)
		log.Printf("WARN: save failed for %s: %v", m.uid, err)
		return err
	}
	metrics.RecordDocumentSave(true)
	return nil
}

// Close flushes outstanding changes and retires the session.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return nil
	}
	if m.saveTimer != nil {
		m.saveTimer.Stop()
		m.saveTimer = nil
	}
	m.mu.Unlock()

	err := m.Flush(ctx)

	m.mu.Lock()
	m.state = StateClosed
	m.mu.Unlock()

	metrics.RecordSessionClosed()
	return err
}

// publish sends a domain event when a bus is configured.
func (m *Manager) publish(event events.Event) {
	if m.bus == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.bus.Publish(ctx, event); err != nil {
		log.Printf("WARN: failed to publish %s event: %v", event.Type, err)
	}
}
