package store

import (
	"context"
	"time"

	"github.com/healthlog/platform/internal/tracker"
)

// Partial selects the document sections a save should write. Nil
// fields are left untouched in the durable copy, so two devices
// writing different sections never clobber each other. Within one
// section the last write wins.
type Partial struct {
	Hospitals       *[]tracker.TrackedEntity
	Ambulance       *[]tracker.TrackedEntity
	MedicalRecords  *[]tracker.MedicalRecord
	SymptomTracking *[]tracker.SymptomTrackingEntry
	Awards          *[]string
	Profile         *tracker.UserProfile
	VisitHistory    *[]tracker.VisitHistoryEntry
}

// Full builds a partial covering every section of the document.
func Full(doc *tracker.UserDocument) Partial {
	return Partial{
		Hospitals:       &doc.Hospitals,
		Ambulance:       &doc.Ambulance,
		MedicalRecords:  &doc.MedicalRecords,
		SymptomTracking: &doc.SymptomTracking,
		Awards:          &doc.Awards,
		Profile:         &doc.Profile,
		VisitHistory:    &doc.VisitHistory,
	}
}

// IsEmpty reports whether the partial selects no sections.
func (p Partial) IsEmpty() bool {
	return p.Hospitals == nil && p.Ambulance == nil && p.MedicalRecords == nil &&
		p.SymptomTracking == nil && p.Awards == nil && p.Profile == nil &&
		p.VisitHistory == nil
}

// UserSummary is the admin-facing view of one stored document.
type UserSummary struct {
	UID       string    `json:"uid"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Awards    int       `json:"awards"`
	Records   int       `json:"records"`
}

// Store persists user documents keyed by identity uid. Load returns
// errors.NotFound for a uid that has never been saved.
type Store interface {
	Load(ctx context.Context, uid string) (*tracker.UserDocument, error)
	Save(ctx context.Context, uid string, p Partial) error
	Delete(ctx context.Context, uid string) error
	List(ctx context.Context, limit, offset int) ([]UserSummary, int, error)
}
