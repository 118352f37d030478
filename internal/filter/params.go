// internal/filter/params.go

// Package filter compiles the optional search filters of a request, together
// with the active profile's nutrient limits, into one effective constraint set
// and checks candidates against it.
package filter

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"mcp-diet-check/internal/models"
)

// Shortcut is a boolean filter that stands for a fixed per-100g ceiling.
type Shortcut struct {
	Name string
	Key  models.NutrientKey
	Max  float64
}

// Shortcuts are the built-in boolean filters, in display order.
var Shortcuts = []Shortcut{
	{Name: "low_fat", Key: models.Fat, Max: 3.0},
	{Name: "low_fiber", Key: models.Fiber, Max: 3.0},
	{Name: "low_sugar", Key: models.Sugars, Max: 5.0},
	{Name: "low_salt", Key: models.Salt, Max: 0.3},
}

// NoNuts is the boolean filter that excludes anything mentioning nuts.
const NoNuts = "no_nuts"

const nutsExclusion = "nuts"

// Params are the filters one search request asked for.
type Params struct {
	// Bounds holds explicit min_<nutrient> and max_<nutrient> values.
	Bounds map[models.NutrientKey]models.Bound
	// Shortcuts holds the enabled boolean shortcuts.
	Shortcuts []Shortcut
	// Exclusions holds ingredient groups to drop, e.g. "nuts".
	Exclusions []string
}

// IsEmpty reports whether no filter was requested.
func (p Params) IsEmpty() bool {
	return len(p.Bounds) == 0 && len(p.Shortcuts) == 0 && len(p.Exclusions) == 0
}

// ParseParams reads filters from a request's arguments. Numeric filters are
// named min_<nutrient> or max_<nutrient> with any spelling ParseNutrientKey
// accepts ("max_sugar", "min_protein", "max_calories"). Values that are not
// numbers or numeric strings are ignored, as are unknown keys.
func ParseParams(args map[string]any) Params {
	p := Params{Bounds: map[models.NutrientKey]models.Bound{}}

	for name, raw := range args {
		var (
			floor bool
			rest  string
		)
		switch {
		case strings.HasPrefix(name, "min_"):
			floor, rest = true, strings.TrimPrefix(name, "min_")
		case strings.HasPrefix(name, "max_"):
			rest = strings.TrimPrefix(name, "max_")
		default:
			continue
		}

		key, ok := models.ParseNutrientKey(rest)
		if !ok {
			continue
		}
		v, ok := Number(raw)
		if !ok {
			continue
		}

		b := p.Bounds[key]
		b.Source = models.SourceRequest
		if floor {
			b.Min = models.Float(v)
		} else {
			b.Max = models.Float(v)
		}
		p.Bounds[key] = b
	}

	for _, s := range Shortcuts {
		if on, _ := Bool(args[s.Name]); on {
			p.Shortcuts = append(p.Shortcuts, s)
		}
	}
	if on, _ := Bool(args[NoNuts]); on {
		p.Exclusions = append(p.Exclusions, nutsExclusion)
	}

	return p
}

// Number coerces a JSON number or numeric string. NaN and infinities are rejected.
func Number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Bool coerces a JSON bool or a "true"/"false" string.
func Bool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return false, false
		}
		return parsed, true
	default:
		return false, false
	}
}
