package tracker

import (
	"testing"
	"time"
)

func TestCloneIsolatesSnapshot(t *testing.T) {
	doc := testDocument()
	if _, err := Apply(doc, Command{Collection: CollectionHospitals, Index: 0, Action: ActionIncrease}); err != nil {
		t.Fatal(err)
	}

	snap := doc.Clone()

	for i := 0; i < 3; i++ {
		if _, err := Apply(doc, Command{Collection: CollectionHospitals, Index: 0, Action: ActionIncrease}); err != nil {
			t.Fatal(err)
		}
	}

	if snap.Hospitals[0].Count != 1 {
		t.Errorf("snapshot count = %d, want 1", snap.Hospitals[0].Count)
	}
	if len(snap.VisitHistory) != 1 {
		t.Errorf("snapshot history length = %d, want 1", len(snap.VisitHistory))
	}

	// Mutating the clone must not reach the original either.
	snap.Hospitals[1].Count = 50
	if doc.Hospitals[1].Count != 0 {
		t.Error("clone mutation leaked into the original")
	}
}

func TestClonePointerFieldsDetached(t *testing.T) {
	visit := time.Now()
	doc := &UserDocument{
		Hospitals: []TrackedEntity{{
			Name:        "A",
			Coordinates: &Coordinates{Latitude: 51.5, Longitude: -0.1},
			Visited:     true,
			Count:       1,
			LastVisit:   &visit,
		}},
	}

	snap := doc.Clone()

	if snap.Hospitals[0].LastVisit == doc.Hospitals[0].LastVisit {
		t.Error("LastVisit pointer shared with the original")
	}
	if snap.Hospitals[0].Coordinates == doc.Hospitals[0].Coordinates {
		t.Error("Coordinates pointer shared with the original")
	}
	if !snap.Hospitals[0].LastVisit.Equal(visit) {
		t.Error("cloned LastVisit differs from the original value")
	}
	if snap.Hospitals[0].Coordinates.Latitude != 51.5 {
		t.Error("cloned Coordinates differ from the original value")
	}
}
