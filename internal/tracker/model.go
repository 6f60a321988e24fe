package tracker

import (
	"fmt"
	"time"

	"github.com/healthlog/platform/internal/shared/types"
)

// Collection identifies one of the tracked-entity lists in a user
// document.
type Collection string

const (
	CollectionHospitals Collection = "hospitals"
	CollectionAmbulance Collection = "ambulance"
)

// ParseCollection parses a collection name supplied by a client.
func ParseCollection(s string) (Collection, error) {
	switch Collection(s) {
	case CollectionHospitals, CollectionAmbulance:
		return Collection(s), nil
	}
	return "", fmt.Errorf("unknown collection %q", s)
}

// Action is an interaction applied to a tracked entity.
type Action string

const (
	ActionToggle   Action = "toggle"
	ActionIncrease Action = "increase"
	ActionDecrease Action = "decrease"
)

// ParseAction parses an action name supplied by a client.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionToggle, ActionIncrease, ActionDecrease:
		return Action(s), nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// Coordinates is a WGS84 point.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// TrackedEntity is a hospital or ambulance service the user may visit
// and count visits against. Within a session an entity is addressed by
// its index; across sessions identity is by Name. Collections are only
// appended to at initialization, never reordered.
//
// Invariant: Visited == (Count > 0) after every interaction.
type TrackedEntity struct {
	Name        string       `json:"name"`
	City        string       `json:"city,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	Visited     bool         `json:"visited"`
	Count       int          `json:"count"`
	LastVisit   *time.Time   `json:"lastVisit,omitempty"`
}

// IncidentType classifies a medical record.
type IncidentType string

const (
	IncidentEmergency   IncidentType = "emergency"
	IncidentAppointment IncidentType = "appointment"
	IncidentSymptomLog  IncidentType = "symptom_log"
	IncidentMedication  IncidentType = "medication"
	IncidentTest        IncidentType = "test"
	IncidentOther       IncidentType = "other"
)

// ParseIncidentType parses an incident type supplied by a client.
func ParseIncidentType(s string) (IncidentType, error) {
	switch IncidentType(s) {
	case IncidentEmergency, IncidentAppointment, IncidentSymptomLog,
		IncidentMedication, IncidentTest, IncidentOther:
		return IncidentType(s), nil
	}
	return "", fmt.Errorf("unknown incident type %q", s)
}

// Impact grades how much an incident affected the user.
type Impact string

const (
	ImpactNone        Impact = "none"
	ImpactMinimal     Impact = "minimal"
	ImpactModerate    Impact = "moderate"
	ImpactSignificant Impact = "significant"
	ImpactSevere      Impact = "severe"
)

// ParseImpact parses an impact level supplied by a client.
func ParseImpact(s string) (Impact, error) {
	switch Impact(s) {
	case ImpactNone, ImpactMinimal, ImpactModerate, ImpactSignificant, ImpactSevere:
		return Impact(s), nil
	}
	return "", fmt.Errorf("unknown impact %q", s)
}

// Severity bounds for medical records.
const (
	SeverityMin = 1
	SeverityMax = 10
)

// MedicalRecord is a single health incident. Records are immutable
// after creation except for deletion, and the list is kept
// newest-first.
type MedicalRecord struct {
	ID         types.ID     `json:"id"`
	Incident   IncidentType `json:"incidentType"`
	OccurredAt time.Time    `json:"occurredAt"`
	// Location is free text or a TrackedEntity name reference.
	Location  string    `json:"location,omitempty"`
	Symptoms  []string  `json:"symptoms,omitempty"`
	Severity  int       `json:"severity"`
	Impact    Impact    `json:"impact"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// SymptomTrackingEntry holds condition-specific structured answers,
// keyed by condition id then field id. Entries are not cross-validated
// against the profile's condition list; unknown conditions are simply
// never rendered.
type SymptomTrackingEntry struct {
	ID         types.ID                     `json:"id"`
	OccurredAt time.Time                    `json:"occurredAt"`
	Answers    map[string]map[string]string `json:"answers"`
	Notes      string                       `json:"notes,omitempty"`
	CreatedAt  time.Time                    `json:"createdAt"`
}

// UserProfile carries the user's self-declared details.
type UserProfile struct {
	DisplayName         string   `json:"displayName,omitempty"`
	Conditions          []string `json:"conditions,omitempty"`
	EmergencyContact    string   `json:"emergencyContact,omitempty"`
	MedicalNotes        string   `json:"medicalNotes,omitempty"`
	OnboardingCompleted bool     `json:"onboardingCompleted"`
}

// VisitHistoryMax caps the visit-history log; the oldest entry is
// evicted beyond this.
const VisitHistoryMax = 100

// VisitHistoryEntry records one applied interaction, most recent first.
type VisitHistoryEntry struct {
	Collection Collection `json:"collection"`
	EntityName string     `json:"entityName"`
	Action     Action     `json:"action"`
	Count      int        `json:"count"`
	Visited    bool       `json:"visited"`
	Timestamp  time.Time  `json:"timestamp"`
}

// UserDocument is the root aggregate: one per authenticated identity.
// The in-memory copy is owned by a session manager; the store owns the
// durable copy and merges on write.
type UserDocument struct {
	Hospitals       []TrackedEntity        `json:"hospitals"`
	Ambulance       []TrackedEntity        `json:"ambulance"`
	MedicalRecords  []MedicalRecord        `json:"medicalRecords"`
	SymptomTracking []SymptomTrackingEntry `json:"symptomTracking"`
	// Awards holds unlocked award ids. Append-only, membership only.
	Awards       []string            `json:"awards"`
	Profile      UserProfile         `json:"userProfile"`
	VisitHistory []VisitHistoryEntry `json:"visitHistory"`
}

// Clone returns a deep copy of the document. Every slice gets a fresh
// backing array so a snapshot handed to a reader cannot observe
// interactions applied to the original afterwards.
func (d *UserDocument) Clone() *UserDocument {
	return &UserDocument{
		Hospitals:       cloneEntities(d.Hospitals),
		Ambulance:       cloneEntities(d.Ambulance),
		MedicalRecords:  append([]MedicalRecord(nil), d.MedicalRecords...),
		SymptomTracking: append([]SymptomTrackingEntry(nil), d.SymptomTracking...),
		Awards:          append([]string(nil), d.Awards...),
		Profile:         d.Profile,
		VisitHistory:    append([]VisitHistoryEntry(nil), d.VisitHistory...),
	}
}

func cloneEntities(src []TrackedEntity) []TrackedEntity {
	if src == nil {
		return nil
	}
	out := make([]TrackedEntity, len(src))
	copy(out, src)
	for i := range out {
		if out[i].LastVisit != nil {
			t := *out[i].LastVisit
			out[i].LastVisit = &t
		}
		if out[i].Coordinates != nil {
			c := *out[i].Coordinates
			out[i].Coordinates = &c
		}
	}
	return out
}

// EntityCollection returns the named collection slice, or nil for an
// unknown name.
func (d *UserDocument) EntityCollection(c Collection) []TrackedEntity {
	switch c {
	case CollectionHospitals:
		return d.Hospitals
	case CollectionAmbulance:
		return d.Ambulance
	}
	return nil
}

// HasAward reports whether an award id has been unlocked.
func (d *UserDocument) HasAward(id string) bool {
	for _, a := range d.Awards {
		if a == id {
			return true
		}
	}
	return false
}
