// internal/profile/parse.go
package profile

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"mcp-diet-check/internal/filter"
	"mcp-diet-check/internal/models"
)

// DroppedField records a profile field, or one entry of a mapping field, that
// was ignored because it had the wrong shape.
type DroppedField struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Parse builds a profile from loosely typed input. List fields accept arrays,
// JSON-encoded arrays, or comma-separated strings. Mapping fields accept
// objects or JSON-encoded objects. A field with the wrong shape is dropped on
// its own; the rest of the profile is kept. Unknown top-level fields and
// unknown preference names are ignored.
func Parse(args map[string]any) (*models.DietaryProfile, []DroppedField) {
	p := &models.DietaryProfile{}
	var dropped []DroppedField
	drop := func(field, format string, a ...any) {
		dropped = append(dropped, DroppedField{Field: field, Reason: fmt.Sprintf(format, a...)})
	}

	if raw, ok := args["profile_name"]; ok && raw != nil {
		if s, ok := raw.(string); ok {
			p.ProfileName = strings.TrimSpace(s)
		} else {
			drop("profile_name", "expected text, got %s", kindOf(raw))
		}
	}

	lists := []struct {
		name string
		dst  *[]string
	}{
		{"allergies", &p.Allergies},
		{"intolerances", &p.Intolerances},
		{"medical_conditions", &p.MedicalConditions},
		{"avoid_additives", &p.AvoidAdditives},
	}
	for _, l := range lists {
		raw, ok := args[l.name]
		if !ok || raw == nil {
			continue
		}
		tokens, err := parseList(raw)
		if err != nil {
			drop(l.name, "%v", err)
			continue
		}
		*l.dst = tokens
	}

	if raw, ok := args["dietary_preferences"]; ok && raw != nil {
		prefs, issues, err := parsePreferences(raw)
		if err != nil {
			drop("dietary_preferences", "%v", err)
		} else {
			p.DietaryPreferences = prefs
		}
		dropped = append(dropped, issues...)
	}

	if raw, ok := args["nutrient_limits"]; ok && raw != nil {
		limits, issues, err := parseLimits(raw)
		if err != nil {
			drop("nutrient_limits", "%v", err)
		} else {
			p.NutrientLimits = limits
		}
		dropped = append(dropped, issues...)
	}

	return p, dropped
}

func parseList(raw any) ([]string, error) {
	var items []any
	switch v := raw.(type) {
	case []any:
		items = v
	case []string:
		for _, s := range v {
			items = append(items, s)
		}
	case string:
		s := strings.TrimSpace(v)
		if strings.HasPrefix(s, "[") {
			if err := json.Unmarshal([]byte(s), &items); err != nil {
				return nil, fmt.Errorf("invalid JSON list: %w", err)
			}
			break
		}
		for _, part := range strings.Split(s, ",") {
			items = append(items, part)
		}
	default:
		return nil, fmt.Errorf("expected a list, got %s", kindOf(raw))
	}

	out := []string{}
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out, nil
}

func parseMapping(raw any) (map[string]any, error) {
	switch v := raw.(type) {
	case map[string]any:
		return v, nil
	case string:
		var m map[string]any
		if err := json.Unmarshal([]byte(strings.TrimSpace(v)), &m); err != nil {
			return nil, fmt.Errorf("invalid JSON object: %w", err)
		}
		if m == nil {
			return nil, fmt.Errorf("expected an object, got %s", kindOf(raw))
		}
		return m, nil
	default:
		return nil, fmt.Errorf("expected an object, got %s", kindOf(raw))
	}
}

func parsePreferences(raw any) (map[models.Preference]bool, []DroppedField, error) {
	// A plain list of names switches each one on.
	if names, err := parseList(raw); err == nil && !isMappingString(raw) {
		prefs := map[models.Preference]bool{}
		for _, n := range names {
			if pref, ok := models.ParsePreference(preferenceKey(n)); ok {
				prefs[pref] = true
			}
		}
		return prefs, nil, nil
	}

	m, err := parseMapping(raw)
	if err != nil {
		return nil, nil, err
	}

	prefs := map[models.Preference]bool{}
	var dropped []DroppedField
	for name, v := range m {
		pref, ok := models.ParsePreference(preferenceKey(name))
		if !ok {
			continue
		}
		on, ok := filter.Bool(v)
		if !ok {
			dropped = append(dropped, DroppedField{
				Field:  "dietary_preferences." + name,
				Reason: fmt.Sprintf("expected true or false, got %s", kindOf(v)),
			})
			continue
		}
		prefs[pref] = on
	}
	sortDropped(dropped)
	return prefs, dropped, nil
}

func parseLimits(raw any) (map[models.NutrientKey]float64, []DroppedField, error) {
	m, err := parseMapping(raw)
	if err != nil {
		return nil, nil, err
	}

	limits := map[models.NutrientKey]float64{}
	var dropped []DroppedField
	for name, v := range m {
		key, ok := models.ParseNutrientKey(name)
		if !ok {
			dropped = append(dropped, DroppedField{
				Field:  "nutrient_limits." + name,
				Reason: "unknown nutrient",
			})
			continue
		}
		limit, ok := filter.Number(v)
		if !ok || limit < 0 {
			dropped = append(dropped, DroppedField{
				Field:  "nutrient_limits." + name,
				Reason: "expected a non-negative number",
			})
			continue
		}
		limits[key] = limit
	}
	sortDropped(dropped)
	return limits, dropped, nil
}

func sortDropped(d []DroppedField) {
	slices.SortFunc(d, func(a, b DroppedField) int { return strings.Compare(a.Field, b.Field) })
}

func preferenceKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

func isMappingString(raw any) bool {
	s, ok := raw.(string)
	return ok && strings.HasPrefix(strings.TrimSpace(s), "{")
}

func kindOf(v any) string {
	switch v.(type) {
	case string:
		return "text"
	case float64, int, int64, json.Number:
		return "a number"
	case bool:
		return "a boolean"
	case []any:
		return "a list"
	case map[string]any:
		return "an object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
