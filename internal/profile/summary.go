// internal/profile/summary.go
package profile

import (
	"fmt"
	"strings"

	"mcp-diet-check/internal/models"
)

// Summary renders a profile for people. Medical conditions that known reports
// false are marked as not checked; a nil known marks none.
func Summary(p *models.DietaryProfile, known func(string) bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📋 Current Profile: %s", p.DisplayName())

	line := func(icon, label string, items []string) {
		if len(items) > 0 {
			fmt.Fprintf(&b, "\n%s %s: %s", icon, label, strings.Join(items, ", "))
		}
	}

	line("🚨", "Allergies", p.Allergies)
	line("⚠️", "Intolerances", p.Intolerances)
	conditions := make([]string, 0, len(p.MedicalConditions))
	for _, c := range p.MedicalConditions {
		if known != nil && !known(c) {
			c += " (no rules, not checked)"
		}
		conditions = append(conditions, c)
	}
	line("🏥", "Medical Conditions", conditions)

	var prefs []string
	for _, pref := range p.ActivePreferences() {
		prefs = append(prefs, string(pref))
	}
	line("🥗", "Dietary Preferences", prefs)
	line("🧪", "Avoid Additives", p.AvoidAdditives)

	var limits []string
	for _, k := range models.AllNutrients {
		v, ok := p.NutrientLimits[k]
		if !ok {
			continue
		}
		dir := "max"
		if k.Direction() == models.LimitMin {
			dir = "min"
		}
		limits = append(limits, fmt.Sprintf("%s %s %s", k.Label(), dir, k.Format(v)))
	}
	line("📊", "Nutrient Limits", limits)

	if p.IsEmpty() {
		b.WriteString("\n\nThis profile sets no restrictions, so every product is treated as safe.")
	} else {
		b.WriteString("\n\n✅ This profile is automatically applied to all food searches.")
	}

	return b.String()
}
