// internal/pipeline/render.go
package pipeline

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/dustin/go-humanize"

	"mcp-diet-check/internal/models"
)

const (
	referenceNote = "Note: These results are for reference only. Please check the actual product packaging for the most accurate information."
	safetyLegend  = "🛡️ SAFETY INDICATORS:\n" +
		"✅ SAFE - No issues detected for your dietary profile\n" +
		"⚠️ CAUTION - Contains ingredients you should be cautious about\n" +
		"❌ NOT SAFE - Contains allergens or ingredients to avoid"
	safeOnlyTip = "💡 TIP: Use 'search_safe_food_only' to see only products that are safe for your dietary profile."
)

func renderSearch(res *SearchResult, reasons int) string {
	var b strings.Builder

	if !res.Found() {
		switch {
		case res.Candidates == 0 || len(res.Filters) == 0:
			fmt.Fprintf(&b, "No products found for '%s'. Try a different search term.", res.Query)
		default:
			fmt.Fprintf(&b, "No products found for '%s' matching your filters: %s.\n", res.Query, strings.Join(res.Filters, ", "))
			fmt.Fprintf(&b, "Checked %d products. Try relaxing some filters or using different search terms.", res.Checked)
		}
		return b.String()
	}

	if len(res.Filters) > 0 {
		fmt.Fprintf(&b, "Found %d products for '%s' matching filters: %s\n", len(res.Entries), res.Query, strings.Join(res.Filters, ", "))
		fmt.Fprintf(&b, "(Checked %d total products)\n\n", res.Checked)
	} else {
		fmt.Fprintf(&b, "Found %d products for '%s':\n", len(res.Entries), res.Query)
	}

	writeEntries(&b, res.Entries, res.ProfileApplied, reasons)

	if res.FilteredOut > 0 {
		fmt.Fprintf(&b, "\n\nℹ️ %s products were filtered out due to nutrient criteria.", humanize.Comma(int64(res.FilteredOut)))
	}
	if res.Truncated > 0 {
		fmt.Fprintf(&b, "\n... and %s more results.", humanize.Comma(int64(res.Truncated)))
	}

	b.WriteString("\n\n" + referenceNote)

	if res.ProfileApplied {
		b.WriteString("\n\n" + safetyLegend)
		for _, e := range res.Entries {
			if e.Verdict.Classification == models.NotSafe {
				b.WriteString("\n\n" + safeOnlyTip)
				break
			}
		}
	}

	return b.String()
}

func renderSafeOnly(res *SearchResult, prof *models.DietaryProfile, reasons int) string {
	var b strings.Builder

	if !res.Found() {
		if res.Candidates == 0 {
			fmt.Fprintf(&b, "No products found for '%s'. Try a different search term.", res.Query)
			return b.String()
		}
		fmt.Fprintf(&b, "❌ No completely safe products found for '%s'.\n\n", res.Query)
		fmt.Fprintf(&b, "Checked %d products. ", res.Checked)
		if res.HiddenUnsafe > 0 {
			fmt.Fprintf(&b, "%d had safety concerns for your dietary profile", res.HiddenUnsafe)
			if res.FilteredOut > 0 {
				fmt.Fprintf(&b, " and %d did not meet the nutrient criteria", res.FilteredOut)
			}
			b.WriteString(".")
		} else if res.FilteredOut > 0 {
			fmt.Fprintf(&b, "%d did not meet the nutrient criteria.", res.FilteredOut)
		}
		if res.Truncated > 0 {
			fmt.Fprintf(&b, "\n\nOnly the first %d matching products were checked for safety; %d more were not. "+
				"A more specific search term may surface safe options.", res.HiddenUnsafe, res.Truncated)
		}
		b.WriteString("\n\n💡 Try:\n- Use search_food_product to see products with warnings\n- Try different or broader search terms\n- Use get_product_nutrition to check specific barcodes")
		b.WriteString("\n\n" + referenceNote)
		return b.String()
	}

	fmt.Fprintf(&b, "🎯 Found %d SAFE products for '%s' (checked %d total):\n\n", len(res.Entries), res.Query, res.Checked)
	if len(res.Filters) > 0 {
		fmt.Fprintf(&b, "Filters: %s\n\n", strings.Join(res.Filters, ", "))
	}
	writeEntries(&b, res.Entries, true, reasons)

	if res.Truncated > 0 {
		fmt.Fprintf(&b, "\n\n📝 Showing first %d results. There may be more safe options available.", len(res.Entries)+res.HiddenUnsafe)
	}
	if res.HiddenUnsafe > 0 {
		fmt.Fprintf(&b, "\n\nℹ️ %d products with safety concerns were hidden.", res.HiddenUnsafe)
	}

	if req := requirements(prof); len(req) > 0 {
		b.WriteString("\n\n• All listed products meet your dietary requirements:\n✅ ")
		b.WriteString(strings.Join(req, "\n✅ "))
	}

	b.WriteString("\n\n" + referenceNote)

	return b.String()
}

func renderSafeOnlyNoProfile(res *SearchResult) string {
	return fmt.Sprintf("No user profile is set, so no products for '%s' can be confirmed as safe. "+
		"Use set_user_profile to configure dietary restrictions, or search_food_product for unfiltered results.", res.Query)
}

func renderLookup(res *LookupResult) string {
	e := res.Entry
	p := e.Product

	var b strings.Builder

	var parts []string
	for _, k := range []models.NutrientKey{models.EnergyKcal, models.Fat, models.Sugars, models.Proteins, models.Salt, models.Fiber} {
		if v, ok := p.Nutrients.Get(k); ok {
			parts = append(parts, fmt.Sprintf("\n• %s: %s", lookupLabel(k), lookupValue(k, v)))
		}
	}
	if len(parts) > 0 {
		fmt.Fprintf(&b, "**%s (%s)** %s", p.Name, p.Brand, strings.Join(parts, ""))
	} else {
		fmt.Fprintf(&b, "**%s (%s)**: Nutritional information not available", p.Name, p.Brand)
	}
	fmt.Fprintf(&b, "\n%s", e.URL)

	if !res.ProfileApplied {
		return b.String()
	}

	if len(e.Verdict.Violations) > 0 {
		b.WriteString("\n\n🔍 DIETARY ANALYSIS:")
		for _, r := range e.Verdict.Reasons() {
			b.WriteString("\n• " + r)
		}
	}

	switch e.Verdict.Classification {
	case models.NotSafe:
		b.WriteString("\n\n❌ This product is NOT RECOMMENDED for your dietary profile.")
	case models.Caution:
		b.WriteString("\n\n⚠️ Please review the warnings above before consuming.")
	default:
		b.WriteString("\n\n✅ This product appears suitable for your dietary profile.")
	}

	return b.String()
}

func writeEntries(b *strings.Builder, entries []Entry, badges bool, reasons int) {
	for i, e := range entries {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(b, "%d. **%s (%s)**\n%s", i+1, e.Product.Name, e.Product.Brand, e.URL)
		if badges {
			b.WriteString(" " + e.Verdict.Classification.Badge())
		}
		if h := headline(e.Product.Nutrients); h != "" {
			b.WriteString(" | " + h)
		}
		rs := e.Verdict.Reasons()
		for j, r := range rs {
			if j == reasons {
				fmt.Fprintf(b, "\n   ... and %d more", len(rs)-reasons)
				break
			}
			b.WriteString("\n   • " + r)
		}
	}
}

func headline(n models.Nutrients) string {
	var parts []string
	for _, k := range models.HeadlineNutrients {
		v, ok := n.Get(k)
		if !ok {
			continue
		}
		if k == models.EnergyKcal {
			parts = append(parts, humanize.FtoaWithDigits(v, 1)+" kcal")
			continue
		}
		parts = append(parts, k.Format(v)+" "+k.Label())
	}
	return strings.Join(parts, ", ")
}

func requirements(prof *models.DietaryProfile) []string {
	var out []string
	if len(prof.Allergies) > 0 {
		out = append(out, "No "+strings.Join(prof.Allergies, ", ")+" allergens")
	}
	if len(prof.Intolerances) > 0 {
		out = append(out, "No "+strings.Join(prof.Intolerances, ", "))
	}
	for _, pref := range prof.ActivePreferences() {
		out = append(out, strings.ReplaceAll(string(pref), "_", " "))
	}
	if len(prof.AvoidAdditives) > 0 {
		out = append(out, "No "+strings.Join(prof.AvoidAdditives, ", ")+" additives")
	}
	var limits []string
	for _, k := range models.AllNutrients {
		v, ok := prof.NutrientLimits[k]
		if !ok {
			continue
		}
		op := "≤"
		if k.Direction() == models.LimitMin {
			op = "≥"
		}
		limits = append(limits, fmt.Sprintf("%s %s %s", k.Label(), op, k.Format(v)))
	}
	if len(limits) > 0 {
		out = append(out, "Within limits: "+strings.Join(limits, ", "))
	}
	return out
}

func lookupLabel(k models.NutrientKey) string {
	if k == models.EnergyKcal {
		return "Energy"
	}
	l := k.Label()
	return strings.ToUpper(l[:1]) + l[1:]
}

func lookupValue(k models.NutrientKey, v float64) string {
	if k == models.EnergyKcal {
		return humanize.FtoaWithDigits(v, 1) + " kcal/100g"
	}
	return k.Format(v)
}

// cleanText keeps printable characters and collapses whitespace, falling
// back to def when nothing is left.
func cleanText(s, def string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, s)
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return def
	}
	return s
}
