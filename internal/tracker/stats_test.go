package tracker

import (
	"reflect"
	"testing"
)

func TestAggregate(t *testing.T) {
	tests := []struct {
		name     string
		entities []TrackedEntity
		want     Stats
	}{
		{
			name:     "empty collection",
			entities: nil,
			want:     Stats{},
		},
		{
			name: "none visited",
			entities: []TrackedEntity{
				{Name: "A"}, {Name: "B"},
			},
			want: Stats{Total: 2, UnvisitedCount: 2},
		},
		{
			name: "mixed",
			entities: []TrackedEntity{
				{Name: "A", Visited: true, Count: 3},
				{Name: "B"},
				{Name: "C", Visited: true, Count: 1},
			},
			want: Stats{Total: 3, VisitedCount: 2, UnvisitedCount: 1, TotalVisits: 4, Percentage: 67},
		},
		{
			name: "all visited",
			entities: []TrackedEntity{
				{Name: "A", Visited: true, Count: 2},
				{Name: "B", Visited: true, Count: 5},
			},
			want: Stats{Total: 2, VisitedCount: 2, TotalVisits: 7, Percentage: 100},
		},
		{
			name: "rounds to nearest",
			entities: []TrackedEntity{
				{Name: "A", Visited: true, Count: 1},
				{Name: "B"}, {Name: "C"},
			},
			want: Stats{Total: 3, VisitedCount: 1, UnvisitedCount: 2, TotalVisits: 1, Percentage: 33},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Aggregate(tt.entities)
			if got != tt.want {
				t.Errorf("Aggregate() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestAggregateOrderIndependent(t *testing.T) {
	a := []TrackedEntity{
		{Name: "A", Visited: true, Count: 2},
		{Name: "B"},
		{Name: "C", Visited: true, Count: 7},
	}
	b := []TrackedEntity{a[2], a[0], a[1]}

	if Aggregate(a) != Aggregate(b) {
		t.Error("Aggregate() depends on input order")
	}
}

func TestFilterByName(t *testing.T) {
	entities := []TrackedEntity{
		{Name: "St Mary's Hospital"},
		{Name: "Royal Infirmary"},
		{Name: "Royal Free Hospital"},
	}

	tests := []struct {
		name string
		term string
		want []string
	}{
		{"empty term matches all", "", []string{"St Mary's Hospital", "Royal Infirmary", "Royal Free Hospital"}},
		{"case insensitive", "ROYAL", []string{"Royal Infirmary", "Royal Free Hospital"}},
		{"substring", "hosp", []string{"St Mary's Hospital", "Royal Free Hospital"}},
		{"no match", "clinic", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterByName(entities, tt.term)
			var names []string
			for _, e := range got {
				names = append(names, e.Name)
			}
			if !reflect.DeepEqual(names, tt.want) {
				t.Errorf("FilterByName(%q) = %v, want %v", tt.term, names, tt.want)
			}
		})
	}
}

func TestSortByVisitsStable(t *testing.T) {
	entities := []TrackedEntity{
		{Name: "A", Count: 1},
		{Name: "B", Count: 3},
		{Name: "C", Count: 1},
		{Name: "D", Count: 3},
	}

	got := SortByVisits(entities)
	wantOrder := []string{"B", "D", "A", "C"}
	for i, name := range wantOrder {
		if got[i].Name != name {
			t.Errorf("position %d: got %s, want %s", i, got[i].Name, name)
		}
	}

	// Input must be untouched.
	if entities[0].Name != "A" || entities[1].Name != "B" {
		t.Error("SortByVisits mutated its input")
	}
}
