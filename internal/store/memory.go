package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/healthlog/platform/internal/shared/errors"
	"github.com/healthlog/platform/internal/tracker"
)

// MemoryStore is an in-process store for tests and local development.
// Documents are deep-copied on the way in and out so callers never
// share state with the store.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]*memoryEntry
}

type memoryEntry struct {
	doc       tracker.UserDocument
	createdAt time.Time
	updatedAt time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]*memoryEntry)}
}

func copyDocument(src *tracker.UserDocument) (*tracker.UserDocument, error) {
	raw, err := json.Marshal(src)
	if err != nil {
		return nil, errors.Wrap(err, "failed to copy document")
	}
	dst := &tracker.UserDocument{}
	if err := json.Unmarshal(raw, dst); err != nil {
		return nil, errors.Wrap(err, "failed to copy document")
	}
	return dst, nil
}

// Load returns a copy of the stored document.
func (s *MemoryStore) Load(ctx context.Context, uid string) (*tracker.UserDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.docs[uid]
	if !ok {
		return nil, errors.NotFound("user document", uid)
	}
	return copyDocument(&entry.doc)
}

// Save merges the selected sections into the stored document.
func (s *MemoryStore) Save(ctx context.Context, uid string, p Partial) error {
	if p.IsEmpty() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	entry, ok := s.docs[uid]
	if !ok {
		entry = &memoryEntry{createdAt: now}
		s.docs[uid] = entry
	}
	entry.updatedAt = now

	if p.Hospitals != nil {
		entry.doc.Hospitals = append([]tracker.TrackedEntity(nil), *p.Hospitals...)
	}
	if p.Ambulance != nil {
		entry.doc.Ambulance = append([]tracker.TrackedEntity(nil), *p.Ambulance...)
	}
	if p.MedicalRecords != nil {
		entry.doc.MedicalRecords = append([]tracker.MedicalRecord(nil), *p.MedicalRecords...)
	}
	if p.SymptomTracking != nil {
		entry.doc.SymptomTracking = append([]tracker.SymptomTrackingEntry(nil), *p.SymptomTracking...)
	}
	if p.Awards != nil {
		entry.doc.Awards = append([]string(nil), *p.Awards...)
	}
	if p.Profile != nil {
		entry.doc.Profile = *p.Profile
	}
	if p.VisitHistory != nil {
		entry.doc.VisitHistory = append([]tracker.VisitHistoryEntry(nil), *p.VisitHistory...)
	}

	return nil
}

// Delete removes a document.
func (s *MemoryStore) Delete(ctx context.Context, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[uid]; !ok {
		return errors.NotFound("user document", uid)
	}
	delete(s.docs, uid)
	return nil
}

// List returns summaries ordered by update time descending.
func (s *MemoryStore) List(ctx context.Context, limit, offset int) ([]UserSummary, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]UserSummary, 0, len(s.docs))
	for uid, entry := range s.docs {
		summaries = append(summaries, UserSummary{
			UID:       uid,
			CreatedAt: entry.createdAt,
			UpdatedAt: entry.updatedAt,
			Awards:    len(entry.doc.Awards),
			Records:   len(entry.doc.MedicalRecords),
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})

	total := len(summaries)
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(summaries) {
		return nil, total, nil
	}
	summaries = summaries[offset:]
	if len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, total, nil
}
