// internal/filter/compile.go
package filter

import (
	"fmt"
	"slices"

	"mcp-diet-check/internal/models"
	"mcp-diet-check/internal/rules"
)

// Compile merges request filters with the profile's nutrient limits. For each
// nutrient an explicit request bound wins, then a shortcut, then the profile
// limit in that nutrient's direction. A nil profile contributes nothing.
func Compile(p Params, prof *models.DietaryProfile) models.ConstraintSet {
	cs := models.ConstraintSet{Bounds: map[models.NutrientKey]models.Bound{}}
	if p.IsEmpty() && (prof == nil || len(prof.NutrientLimits) == 0) {
		return cs
	}

	for _, key := range models.AllNutrients {
		if b, ok := p.Bounds[key]; ok {
			cs.Bounds[key] = b
			continue
		}
		if i := slices.IndexFunc(p.Shortcuts, func(s Shortcut) bool { return s.Key == key }); i >= 0 {
			cs.Bounds[key] = models.Bound{Max: models.Float(p.Shortcuts[i].Max), Source: models.SourceShortcut}
			continue
		}
		if prof == nil {
			continue
		}
		if limit, ok := prof.NutrientLimits[key]; ok {
			cs.Bounds[key] = ProfileBound(key, limit)
		}
	}

	cs.Exclusions = slices.Clone(p.Exclusions)

	return cs
}

// ForProfile is the constraint set of a lookup, which applies no request filters.
func ForProfile(prof *models.DietaryProfile) models.ConstraintSet {
	return Compile(Params{}, prof)
}

// ProfileBound turns a profile limit into a ceiling or floor by nutrient.
func ProfileBound(key models.NutrientKey, limit float64) models.Bound {
	b := models.Bound{Source: models.SourceProfile}
	if key.Direction() == models.LimitMin {
		b.Min = models.Float(limit)
	} else {
		b.Max = models.Float(limit)
	}
	return b
}

// Check reports whether a candidate passes the constraint set, and if not, why.
// A request or shortcut bound rejects a product that does not report the
// nutrient; a profile bound only rejects an observed value outside it.
func Check(p models.Product, cs models.ConstraintSet) (bool, string) {
	if cs.IsEmpty() {
		return true, ""
	}

	for _, key := range cs.Keys() {
		b := cs.Bounds[key]
		v, ok := p.Nutrients.Get(key)
		if !ok {
			if b.RequiresPresence() {
				return false, fmt.Sprintf("no %s value", key.Label())
			}
			continue
		}
		if !b.Allows(v) {
			return false, fmt.Sprintf("%s %s per 100g outside %s", key.Label(), key.Format(v), describe(key, b))
		}
	}

	for _, token := range cs.Exclusions {
		if rules.MatchProduct(exclusionGroup(token), p) {
			return false, "contains " + token
		}
	}

	return true, ""
}

// Summary describes the request-level filters for display, e.g.
// "Low fat (≤3g)" or "≥10g protein". Profile limits are not listed.
func Summary(cs models.ConstraintSet) []string {
	var out []string
	for _, key := range cs.Keys() {
		b := cs.Bounds[key]
		switch b.Source {
		case models.SourceShortcut:
			out = append(out, fmt.Sprintf("Low %s (≤%s)", key.Label(), key.Format(*b.Max)))
		case models.SourceRequest:
			out = append(out, describe(key, b))
		}
	}
	for _, token := range cs.Exclusions {
		out = append(out, "No "+token)
	}
	return out
}

func exclusionGroup(token string) rules.Group {
	if token == nutsExclusion {
		return rules.NutGroup()
	}
	return rules.LookupGroup(token)
}

func describe(key models.NutrientKey, b models.Bound) string {
	switch {
	case b.Min != nil && b.Max != nil:
		return fmt.Sprintf("%s to %s %s", key.Format(*b.Min), key.Format(*b.Max), key.Label())
	case b.Min != nil:
		return fmt.Sprintf("≥%s %s", key.Format(*b.Min), key.Label())
	case b.Max != nil:
		return fmt.Sprintf("≤%s %s", key.Format(*b.Max), key.Label())
	default:
		return key.Label()
	}
}
