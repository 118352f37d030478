// internal/models/profile.go
package models

import (
	"maps"
	"slices"
)

// Preference is a named dietary preference flag.
type Preference string

const (
	Vegan       Preference = "vegan"
	Vegetarian  Preference = "vegetarian"
	Pescatarian Preference = "pescatarian"
	Halal       Preference = "halal"
	Kosher      Preference = "kosher"

	LowSugar    Preference = "low_sugar"
	LowSalt     Preference = "low_salt"
	LowFat      Preference = "low_fat"
	HighFiber   Preference = "high_fiber"
	HighProtein Preference = "high_protein"
	OrganicOnly Preference = "organic_only"
)

// KnownPreferences lists every accepted preference in display order.
var KnownPreferences = []Preference{
	Vegan, Vegetarian, Pescatarian, Halal, Kosher,
	LowSugar, LowSalt, LowFat, HighFiber, HighProtein, OrganicOnly,
}

// IsHard reports whether a conflict with p makes a product NOT_SAFE.
func (p Preference) IsHard() bool {
	switch p {
	case Vegan, Vegetarian, Pescatarian, Halal, Kosher:
		return true
	default:
		return false
	}
}

// ParsePreference accepts a known preference name.
func ParsePreference(s string) (Preference, bool) {
	p := Preference(s)
	return p, slices.Contains(KnownPreferences, p)
}

const defaultProfileName = "Custom Profile"

// DietaryProfile is the user's standing set of restrictions and preferences.
type DietaryProfile struct {
	ProfileName        string                  `json:"profile_name,omitempty"`
	Allergies          []string                `json:"allergies,omitempty"`
	Intolerances       []string                `json:"intolerances,omitempty"`
	DietaryPreferences map[Preference]bool     `json:"dietary_preferences,omitempty"`
	MedicalConditions  []string                `json:"medical_conditions,omitempty"`
	AvoidAdditives     []string                `json:"avoid_additives,omitempty"`
	NutrientLimits     map[NutrientKey]float64 `json:"nutrient_limits,omitempty"`
}

// DisplayName returns the profile name or a generic one.
func (p *DietaryProfile) DisplayName() string {
	if p == nil || p.ProfileName == "" {
		return defaultProfileName
	}
	return p.ProfileName
}

// Enabled reports whether preference pref is switched on.
func (p *DietaryProfile) Enabled(pref Preference) bool {
	if p == nil {
		return false
	}
	return p.DietaryPreferences[pref]
}

// ActivePreferences returns the enabled preferences in display order.
func (p *DietaryProfile) ActivePreferences() []Preference {
	var out []Preference
	for _, pref := range KnownPreferences {
		if p.Enabled(pref) {
			out = append(out, pref)
		}
	}
	return out
}

// IsEmpty reports whether the profile places no restriction at all. An empty
// profile evaluates exactly like no profile.
func (p *DietaryProfile) IsEmpty() bool {
	if p == nil {
		return true
	}
	return len(p.Allergies) == 0 &&
		len(p.Intolerances) == 0 &&
		len(p.ActivePreferences()) == 0 &&
		len(p.MedicalConditions) == 0 &&
		len(p.AvoidAdditives) == 0 &&
		len(p.NutrientLimits) == 0
}

// Clone returns a deep copy, so an in-flight search never observes a later update.
func (p *DietaryProfile) Clone() *DietaryProfile {
	if p == nil {
		return nil
	}
	return &DietaryProfile{
		ProfileName:        p.ProfileName,
		Allergies:          slices.Clone(p.Allergies),
		Intolerances:       slices.Clone(p.Intolerances),
		DietaryPreferences: maps.Clone(p.DietaryPreferences),
		MedicalConditions:  slices.Clone(p.MedicalConditions),
		AvoidAdditives:     slices.Clone(p.AvoidAdditives),
		NutrientLimits:     maps.Clone(p.NutrientLimits),
	}
}
