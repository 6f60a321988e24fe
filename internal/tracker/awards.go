package tracker

// AggregateStats is the read-only view award predicates evaluate
// against. Predicates never see individual entities, so evaluation
// order cannot affect the outcome.
type AggregateStats struct {
	Hospitals Stats
	Ambulance Stats
}

// TotalVisits is the sum of visit counts across both collections.
func (a AggregateStats) TotalVisits() int {
	return a.Hospitals.TotalVisits + a.Ambulance.TotalVisits
}

// VisitedEntities is the number of visited entities across both
// collections.
func (a AggregateStats) VisitedEntities() int {
	return a.Hospitals.VisitedCount + a.Ambulance.VisitedCount
}

// AwardDefinition is one badge in the static, process-wide table.
type AwardDefinition struct {
	ID          string                    `json:"id"`
	Name        string                    `json:"name"`
	Description string                    `json:"description"`
	Icon        string                    `json:"icon"`
	Predicate   func(AggregateStats) bool `json:"-"`
}

// Award ids.
const (
	AwardFirstVisit  = "first_visit"
	AwardHospitals5  = "hospitals_5"
	AwardHospitals10 = "hospitals_10"
	AwardTrustsAll   = "trusts_all"
	AwardVisits100   = "visits_100"
)

// awardTable is evaluated in definition order.
var awardTable = []AwardDefinition{
	{
		ID:          AwardFirstVisit,
		Name:        "First Visit",
		Description: "Log your first hospital or ambulance service visit",
		Icon:        "🏥",
		Predicate: func(s AggregateStats) bool {
			return s.VisitedEntities() >= 1
		},
	},
	{
		ID:          AwardHospitals5,
		Name:        "Getting Around",
		Description: "Visit 5 different hospitals",
		Icon:        "🚶",
		Predicate: func(s AggregateStats) bool {
			return s.Hospitals.VisitedCount >= 5
		},
	},
	{
		ID:          AwardHospitals10,
		Name:        "Frequent Flyer",
		Description: "Visit 10 different hospitals",
		Icon:        "✈️",
		Predicate: func(s AggregateStats) bool {
			return s.Hospitals.VisitedCount >= 10
		},
	},
	{
		ID:          AwardTrustsAll,
		Name:        "Full Coverage",
		Description: "Visit every ambulance service trust",
		Icon:        "🚑",
		Predicate: func(s AggregateStats) bool {
			return s.Ambulance.Total > 0 && s.Ambulance.VisitedCount == s.Ambulance.Total
		},
	},
	{
		ID:          AwardVisits100,
		Name:        "Century",
		Description: "Log 100 visits in total",
		Icon:        "💯",
		Predicate: func(s AggregateStats) bool {
			return s.TotalVisits() >= 100
		},
	},
}

// AwardDefinitions returns the static award table in evaluation order.
func AwardDefinitions() []AwardDefinition {
	out := make([]AwardDefinition, len(awardTable))
	copy(out, awardTable)
	return out
}

// AwardDefinition returns the definition for an id, if known.
func AwardDefinitionByID(id string) (AwardDefinition, bool) {
	for _, def := range awardTable {
		if def.ID == id {
			return def, true
		}
	}
	return AwardDefinition{}, false
}

// EvaluateAwards checks every definition against the document's
// aggregate statistics and appends any newly met awards to the
// document's unlocked set. It returns the ids unlocked by this call,
// in table order.
//
// Idempotent: already-unlocked awards are never re-unlocked,
// duplicated, or revoked; a second call with no data change returns
// nothing.
func EvaluateAwards(doc *UserDocument) []string {
	stats := AggregateStats{
		Hospitals: Aggregate(doc.Hospitals),
		Ambulance: Aggregate(doc.Ambulance),
	}

	var unlocked []string
	for _, def := range awardTable {
		if doc.HasAward(def.ID) {
			continue
		}
		if def.Predicate(stats) {
			doc.Awards = append(doc.Awards, def.ID)
			unlocked = append(unlocked, def.ID)
		}
	}
	return unlocked
}
