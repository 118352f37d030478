// internal/models/constraints.go
package models

// BoundSource records where a bound came from.
type BoundSource string

const (
	SourceRequest  BoundSource = "request"
	SourceShortcut BoundSource = "shortcut"
	SourceProfile  BoundSource = "profile"
)

// Bound is an inclusive numeric range on one nutrient. A nil side is open.
type Bound struct {
	Min    *float64    `json:"min,omitempty"`
	Max    *float64    `json:"max,omitempty"`
	Source BoundSource `json:"source"`
}

// Allows reports whether v lies within the bound.
func (b Bound) Allows(v float64) bool {
	if b.Min != nil && v < *b.Min {
		return false
	}
	if b.Max != nil && v > *b.Max {
		return false
	}
	return true
}

// RequiresPresence reports whether a product with no value for the nutrient
// fails this bound. Only bounds the caller asked for in the request do; a
// standing profile limit cannot be judged against an unknown value.
func (b Bound) RequiresPresence() bool {
	return b.Source != SourceProfile
}

// ConstraintSet is the effective set of numeric bounds and ingredient
// exclusions for one request.
type ConstraintSet struct {
	Bounds     map[NutrientKey]Bound `json:"bounds,omitempty"`
	Exclusions []string              `json:"exclusions,omitempty"`
}

// Keys returns the constrained nutrients in display order.
func (c ConstraintSet) Keys() []NutrientKey {
	keys := make([]NutrientKey, 0, len(c.Bounds))
	for _, k := range AllNutrients {
		if _, ok := c.Bounds[k]; ok {
			keys = append(keys, k)
		}
	}
	return keys
}

// IsEmpty reports whether nothing is constrained.
func (c ConstraintSet) IsEmpty() bool {
	return len(c.Bounds) == 0 && len(c.Exclusions) == 0
}

// Float returns a pointer to v, for building bounds.
func Float(v float64) *float64 {
	return &v
}
