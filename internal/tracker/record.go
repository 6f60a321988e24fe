package tracker

import (
	"fmt"
	"time"

	"github.com/healthlog/platform/internal/shared/errors"
	"github.com/healthlog/platform/internal/shared/types"
)

// CreateRecordRequest is the payload for logging a medical record.
type CreateRecordRequest struct {
	IncidentType string   `json:"incidentType"`
	OccurredAt   string   `json:"occurredAt"`
	Location     string   `json:"location"`
	Symptoms     []string `json:"symptoms"`
	Severity     int      `json:"severity"`
	Impact       string   `json:"impact"`
	Notes        string   `json:"notes"`
}

// Validate checks the request and returns the parsed enum values. All
// fields are checked before returning so the caller gets every problem
// at once; nothing is persisted on failure.
func (r CreateRecordRequest) Validate() (IncidentType, Impact, time.Time, *errors.AppError) {
	details := map[string]string{}

	incident, err := ParseIncidentType(r.IncidentType)
	if err != nil {
		details["incidentType"] = err.Error()
	}

	impact := ImpactNone
	if r.Impact != "" {
		impact, err = ParseImpact(r.Impact)
		if err != nil {
			details["impact"] = err.Error()
		}
	}

	occurredAt := time.Now().UTC()
	if r.OccurredAt != "" {
		occurredAt, err = time.Parse(time.RFC3339, r.OccurredAt)
		if err != nil {
			details["occurredAt"] = "must be an RFC 3339 timestamp"
		}
	}

	if r.Severity < SeverityMin || r.Severity > SeverityMax {
		details["severity"] = fmt.Sprintf("must be between %d and %d", SeverityMin, SeverityMax)
	}

	if len(details) > 0 {
		return "", "", time.Time{}, errors.Validation("invalid medical record", details)
	}
	return incident, impact, occurredAt, nil
}

// NewMedicalRecord validates the request and builds a record with a
// fresh id. The record is not attached to any document.
func NewMedicalRecord(req CreateRecordRequest) (MedicalRecord, error) {
	incident, impact, occurredAt, appErr := req.Validate()
	if appErr != nil {
		return MedicalRecord{}, appErr
	}

	return MedicalRecord{
		ID:         types.NewID(),
		Incident:   incident,
		OccurredAt: occurredAt,
		Location:   req.Location,
		Symptoms:   req.Symptoms,
		Severity:   req.Severity,
		Impact:     impact,
		Notes:      req.Notes,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// AddRecord prepends a record to the document, keeping the list
// newest-first.
func (d *UserDocument) AddRecord(rec MedicalRecord) {
	d.MedicalRecords = append([]MedicalRecord{rec}, d.MedicalRecords...)
}

// DeleteRecord removes a record by id. Returns false if no record with
// that id exists.
func (d *UserDocument) DeleteRecord(id types.ID) bool {
	for i, rec := range d.MedicalRecords {
		if rec.ID == id {
			d.MedicalRecords = append(d.MedicalRecords[:i], d.MedicalRecords[i+1:]...)
			return true
		}
	}
	return false
}

// CreateSymptomEntryRequest is the payload for a symptom tracking
// entry.
type CreateSymptomEntryRequest struct {
	OccurredAt string                       `json:"occurredAt"`
	Answers    map[string]map[string]string `json:"answers"`
	Notes      string                       `json:"notes"`
}

// NewSymptomEntry validates the request and builds an entry. Answers
// are accepted as-is; conditions the profile does not list are kept
// but never rendered.
func NewSymptomEntry(req CreateSymptomEntryRequest) (SymptomTrackingEntry, error) {
	if len(req.Answers) == 0 {
		return SymptomTrackingEntry{}, errors.Validation("invalid symptom entry", map[string]string{
			"answers": "at least one answer is required",
		})
	}

	occurredAt := time.Now().UTC()
	if req.OccurredAt != "" {
		var err error
		occurredAt, err = time.Parse(time.RFC3339, req.OccurredAt)
		if err != nil {
			return SymptomTrackingEntry{}, errors.Validation("invalid symptom entry", map[string]string{
				"occurredAt": "must be an RFC 3339 timestamp",
			})
		}
	}

	return SymptomTrackingEntry{
		ID:         types.NewID(),
		OccurredAt: occurredAt,
		Answers:    req.Answers,
		Notes:      req.Notes,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// AddSymptomEntry prepends an entry, keeping the list newest-first.
func (d *UserDocument) AddSymptomEntry(entry SymptomTrackingEntry) {
	d.SymptomTracking = append([]SymptomTrackingEntry{entry}, d.SymptomTracking...)
}

// UpdateProfileRequest carries a full profile replacement.
type UpdateProfileRequest struct {
	DisplayName         string   `json:"displayName"`
	Conditions          []string `json:"conditions"`
	EmergencyContact    string   `json:"emergencyContact"`
	MedicalNotes        string   `json:"medicalNotes"`
	OnboardingCompleted bool     `json:"onboardingCompleted"`
}

// ApplyProfile replaces the document's profile.
func (d *UserDocument) ApplyProfile(req UpdateProfileRequest) {
	d.Profile = UserProfile{
		DisplayName:         req.DisplayName,
		Conditions:          req.Conditions,
		EmergencyContact:    req.EmergencyContact,
		MedicalNotes:        req.MedicalNotes,
		OnboardingCompleted: req.OnboardingCompleted,
	}
}
