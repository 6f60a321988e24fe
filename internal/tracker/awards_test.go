package tracker

import (
	"reflect"
	"testing"
)

func hospitals(n, visited int) []TrackedEntity {
	out := make([]TrackedEntity, n)
	for i := range out {
		out[i].Name = "Hospital"
		if i < visited {
			out[i].Visited = true
			out[i].Count = 1
		}
	}
	return out
}

func TestEvaluateAwardsFirstVisit(t *testing.T) {
	doc := &UserDocument{Hospitals: hospitals(3, 0), Ambulance: hospitals(2, 0)}

	if got := EvaluateAwards(doc); got != nil {
		t.Fatalf("no visits: unlocked %v, want none", got)
	}

	if _, err := Apply(doc, Command{Collection: CollectionHospitals, Index: 0, Action: ActionToggle}); err != nil {
		t.Fatal(err)
	}
	if got := EvaluateAwards(doc); !reflect.DeepEqual(got, []string{AwardFirstVisit}) {
		t.Errorf("unlocked %v, want [first_visit]", got)
	}
}

func TestEvaluateAwardsIdempotent(t *testing.T) {
	doc := &UserDocument{Hospitals: hospitals(3, 1)}

	first := EvaluateAwards(doc)
	if !reflect.DeepEqual(first, []string{AwardFirstVisit}) {
		t.Fatalf("first pass unlocked %v", first)
	}
	if again := EvaluateAwards(doc); again != nil {
		t.Errorf("second pass unlocked %v, want none", again)
	}
	if len(doc.Awards) != 1 {
		t.Errorf("awards = %v, want exactly one entry", doc.Awards)
	}
}

func TestEvaluateAwardsFifthToggle(t *testing.T) {
	// Four distinct hospitals visited, then a fifth toggled on: both
	// thresholds crossed by the same evaluation if first_visit was not
	// yet held, otherwise just hospitals_5.
	doc := &UserDocument{Hospitals: hospitals(10, 4)}
	EvaluateAwards(doc)
	if !doc.HasAward(AwardFirstVisit) {
		t.Fatal("expected first_visit after four visits")
	}
	if doc.HasAward(AwardHospitals5) {
		t.Fatal("hospitals_5 must not unlock at four")
	}

	if _, err := Apply(doc, Command{Collection: CollectionHospitals, Index: 4, Action: ActionToggle}); err != nil {
		t.Fatal(err)
	}
	got := EvaluateAwards(doc)
	if !reflect.DeepEqual(got, []string{AwardHospitals5}) {
		t.Errorf("unlocked %v, want [hospitals_5]", got)
	}
}

func TestEvaluateAwardsMultipleInOnePass(t *testing.T) {
	// A fresh document already holding enough data unlocks every
	// qualifying award in a single evaluation, in table order.
	doc := &UserDocument{Hospitals: hospitals(10, 10)}
	got := EvaluateAwards(doc)
	want := []string{AwardFirstVisit, AwardHospitals5, AwardHospitals10}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("unlocked %v, want %v", got, want)
	}
}

func TestEvaluateAwardsTrustsAll(t *testing.T) {
	doc := &UserDocument{Ambulance: hospitals(3, 2)}
	EvaluateAwards(doc)
	if doc.HasAward(AwardTrustsAll) {
		t.Fatal("trusts_all must not unlock with one trust unvisited")
	}

	if _, err := Apply(doc, Command{Collection: CollectionAmbulance, Index: 2, Action: ActionToggle}); err != nil {
		t.Fatal(err)
	}
	got := EvaluateAwards(doc)
	if !reflect.DeepEqual(got, []string{AwardTrustsAll}) {
		t.Errorf("unlocked %v, want [trusts_all]", got)
	}
}

func TestEvaluateAwardsTrustsAllEmptyCollection(t *testing.T) {
	doc := &UserDocument{Hospitals: hospitals(1, 1)}
	EvaluateAwards(doc)
	if doc.HasAward(AwardTrustsAll) {
		t.Error("trusts_all must not unlock for an empty ambulance list")
	}
}

func TestEvaluateAwardsVisits100(t *testing.T) {
	doc := &UserDocument{
		Hospitals: []TrackedEntity{{Name: "A", Visited: true, Count: 60}},
		Ambulance: []TrackedEntity{{Name: "B", Visited: true, Count: 39}},
	}
	EvaluateAwards(doc)
	if doc.HasAward(AwardVisits100) {
		t.Fatal("visits_100 must not unlock at 99")
	}

	if _, err := Apply(doc, Command{Collection: CollectionAmbulance, Index: 0, Action: ActionIncrease}); err != nil {
		t.Fatal(err)
	}
	got := EvaluateAwards(doc)
	if !reflect.DeepEqual(got, []string{AwardVisits100}) {
		t.Errorf("unlocked %v, want [visits_100]", got)
	}
}

func TestEvaluateAwardsNeverRevokes(t *testing.T) {
	doc := &UserDocument{Hospitals: hospitals(1, 1)}
	EvaluateAwards(doc)
	if !doc.HasAward(AwardFirstVisit) {
		t.Fatal("expected first_visit")
	}

	// Undo the visit. The award stays.
	if _, err := Apply(doc, Command{Collection: CollectionHospitals, Index: 0, Action: ActionDecrease}); err != nil {
		t.Fatal(err)
	}
	EvaluateAwards(doc)
	if !doc.HasAward(AwardFirstVisit) {
		t.Error("award was revoked after data no longer qualifies")
	}
}

func TestAwardDefinitionByID(t *testing.T) {
	for _, def := range AwardDefinitions() {
		got, ok := AwardDefinitionByID(def.ID)
		if !ok || got.ID != def.ID {
			t.Errorf("AwardDefinitionByID(%q) not found", def.ID)
		}
	}
	if _, ok := AwardDefinitionByID("nonexistent"); ok {
		t.Error("AwardDefinitionByID(nonexistent) = ok")
	}
}
