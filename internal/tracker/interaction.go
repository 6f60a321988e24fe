package tracker

import (
	"time"

	"github.com/healthlog/platform/internal/shared/errors"
)

// Command is a typed interaction produced by the UI layer. It replaces
// the loose dataset attributes the original client read off clicked
// elements.
type Command struct {
	Collection Collection `json:"collection"`
	Index      int        `json:"index"`
	Action     Action     `json:"action"`
}

// InteractionResult reports the outcome of an applied command.
type InteractionResult struct {
	Collection Collection    `json:"collection"`
	Index      int           `json:"index"`
	Action     Action        `json:"action"`
	Changed    bool          `json:"changed"`
	Entity     TrackedEntity `json:"entity"`
}

// Apply executes a command against the document in place. An unknown
// collection or out-of-range index returns an InvalidReference error
// rather than silently doing nothing.
//
// Semantics:
//   - toggle: flips Visited. Turning on with Count == 0 sets Count = 1.
//     Turning off leaves Count unchanged; only decrease-to-zero resets
//     the counter. The asymmetry is intentional.
//   - increase: Count += 1 and Visited = true.
//   - decrease: only effective while Count > 0; reaching zero clears
//     Visited.
//
// Every effective mutation is appended to the capped visit history.
func Apply(doc *UserDocument, cmd Command) (InteractionResult, error) {
	return applyAt(doc, cmd, time.Now())
}

// applyAt is Apply with an injectable clock.
func applyAt(doc *UserDocument, cmd Command, now time.Time) (InteractionResult, error) {
	var entities []TrackedEntity
	switch cmd.Collection {
	case CollectionHospitals:
		entities = doc.Hospitals
	case CollectionAmbulance:
		entities = doc.Ambulance
	default:
		return InteractionResult{}, errors.InvalidReference(string(cmd.Collection), cmd.Index)
	}

	if cmd.Index < 0 || cmd.Index >= len(entities) {
		return InteractionResult{}, errors.InvalidReference(string(cmd.Collection), cmd.Index)
	}

	entity := &entities[cmd.Index]
	changed := false

	switch cmd.Action {
	case ActionToggle:
		if entity.Visited {
			entity.Visited = false
		} else {
			entity.Visited = true
			if entity.Count == 0 {
				entity.Count = 1
			}
			entity.LastVisit = &now
		}
		changed = true

	case ActionIncrease:
		entity.Count++
		entity.Visited = true
		entity.LastVisit = &now
		changed = true

	case ActionDecrease:
		if entity.Count > 0 {
			entity.Count--
			if entity.Count == 0 {
				entity.Visited = false
			}
			changed = true
		}

	default:
		// Closed enum at the API boundary; anything else is a no-op.
	}

	if changed {
		doc.recordVisit(VisitHistoryEntry{
			Collection: cmd.Collection,
			EntityName: entity.Name,
			Action:     cmd.Action,
			Count:      entity.Count,
			Visited:    entity.Visited,
			Timestamp:  now,
		})
	}

	return InteractionResult{
		Collection: cmd.Collection,
		Index:      cmd.Index,
		Action:     cmd.Action,
		Changed:    changed,
		Entity:     *entity,
	}, nil
}

// recordVisit prepends a history entry, evicting the oldest beyond the
// cap.
func (d *UserDocument) recordVisit(entry VisitHistoryEntry) {
	d.VisitHistory = append([]VisitHistoryEntry{entry}, d.VisitHistory...)
	if len(d.VisitHistory) > VisitHistoryMax {
		d.VisitHistory = d.VisitHistory[:VisitHistoryMax]
	}
}
