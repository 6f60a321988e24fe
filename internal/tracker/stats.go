package tracker

import (
	"math"
	"sort"
	"strings"
)

// Stats is an aggregate view over a tracked-entity collection.
type Stats struct {
	Total          int `json:"total"`
	VisitedCount   int `json:"visitedCount"`
	UnvisitedCount int `json:"unvisitedCount"`
	// TotalVisits is the sum of entity counts.
	TotalVisits int `json:"totalVisits"`
	// Percentage is visited/total rounded to the nearest integer, 0
	// for an empty collection.
	Percentage int `json:"percentage"`
}

// Aggregate computes collection statistics. Pure: it neither mutates
// nor depends on the order of its input.
func Aggregate(entities []TrackedEntity) Stats {
	s := Stats{Total: len(entities)}
	for _, e := range entities {
		if e.Visited {
			s.VisitedCount++
		}
		s.TotalVisits += e.Count
	}
	s.UnvisitedCount = s.Total - s.VisitedCount
	if s.Total > 0 {
		s.Percentage = int(math.Round(100 * float64(s.VisitedCount) / float64(s.Total)))
	}
	return s
}

// FilterByName returns the entities whose name contains term,
// case-insensitively. An empty term matches everything. Input order is
// preserved and the input is never mutated.
func FilterByName(entities []TrackedEntity, term string) []TrackedEntity {
	if term == "" {
		out := make([]TrackedEntity, len(entities))
		copy(out, entities)
		return out
	}

	needle := strings.ToLower(term)
	var out []TrackedEntity
	for _, e := range entities {
		if strings.Contains(strings.ToLower(e.Name), needle) {
			out = append(out, e)
		}
	}
	return out
}

// SortByVisits returns a copy ordered by count descending. Ties keep
// their original relative order. Presentation concern only; the
// underlying collections are never reordered.
func SortByVisits(entities []TrackedEntity) []TrackedEntity {
	out := make([]TrackedEntity, len(entities))
	copy(out, entities)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	return out
}
