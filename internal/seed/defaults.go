package seed

import "github.com/healthlog/platform/internal/tracker"

// Built-in lists used when every remote source is unavailable. Kept
// deliberately small; the remote lists are the real catalogue.

// DefaultHospitals returns the built-in hospital list.
func DefaultHospitals() []tracker.TrackedEntity {
	return []tracker.TrackedEntity{
		{Name: "St Thomas' Hospital", City: "London"},
		{Name: "St Mary's Hospital", City: "London"},
		{Name: "Royal Free Hospital", City: "London"},
		{Name: "Manchester Royal Infirmary", City: "Manchester"},
		{Name: "Queen Elizabeth Hospital", City: "Birmingham"},
		{Name: "Leeds General Infirmary", City: "Leeds"},
		{Name: "Royal Victoria Infirmary", City: "Newcastle"},
		{Name: "Addenbrooke's Hospital", City: "Cambridge"},
		{Name: "John Radcliffe Hospital", City: "Oxford"},
		{Name: "Bristol Royal Infirmary", City: "Bristol"},
		{Name: "Royal Infirmary of Edinburgh", City: "Edinburgh"},
		{Name: "University Hospital of Wales", City: "Cardiff"},
	}
}

// DefaultAmbulance returns the built-in ambulance trust list.
func DefaultAmbulance() []tracker.TrackedEntity {
	return []tracker.TrackedEntity{
		{Name: "London Ambulance Service"},
		{Name: "North West Ambulance Service"},
		{Name: "North East Ambulance Service"},
		{Name: "Yorkshire Ambulance Service"},
		{Name: "West Midlands Ambulance Service"},
		{Name: "East Midlands Ambulance Service"},
		{Name: "East of England Ambulance Service"},
		{Name: "South East Coast Ambulance Service"},
		{Name: "South Central Ambulance Service"},
		{Name: "South Western Ambulance Service"},
		{Name: "Welsh Ambulance Services"},
		{Name: "Scottish Ambulance Service"},
	}
}
