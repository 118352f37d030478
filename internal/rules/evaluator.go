// internal/rules/evaluator.go

// Package rules classifies a product against a dietary profile.
//
// Evaluation runs every check and collects every violation:
//
//  1. allergies and intolerances, expanded through ingredient groups
//  2. avoided additives, by code or additive group
//  3. hard dietary preferences (vegan, vegetarian, pescatarian, halal, kosher)
//  4. nutrient limits from the effective constraint set
//  5. soft preferences and medical conditions
//
// Steps 1 to 3 produce hard violations and a NOT_SAFE verdict. Steps 4 and 5
// produce soft violations, which yield CAUTION at most. Matching is keyword
// based and therefore best-effort; the tables live in keywords.go and are
// versioned by [Version].
package rules

import (
	"fmt"
	"slices"
	"strings"

	"mcp-diet-check/internal/models"
	"mcp-diet-check/internal/nutrients"
)

// Evaluator produces safety verdicts. It is safe for concurrent use.
type Evaluator struct {
	conditions *Conditions
}

// NewEvaluator creates an [Evaluator]. A nil conditions table disables the
// medical condition checks.
func NewEvaluator(conditions *Conditions) *Evaluator {
	return &Evaluator{conditions: conditions}
}

// KnownCondition reports whether any medical condition rule covers condition.
func (e *Evaluator) KnownCondition(condition string) bool {
	return e.conditions != nil && e.conditions.Known(condition)
}

// Evaluate classifies p against prof. Bounds in cs are checked against the
// nutrients p reports; a nutrient p does not report is never a violation. A
// nil or empty profile always yields SAFE.
func (e *Evaluator) Evaluate(p models.Product, prof *models.DietaryProfile, cs models.ConstraintSet) models.SafetyVerdict {
	verdict := models.SafetyVerdict{
		Classification: models.Safe,
		Violations:     []models.Violation{},
		RulesVersion:   Version,
	}
	if prof.IsEmpty() {
		return verdict
	}

	s := newScan(p)

	var vs []models.Violation
	vs = append(vs, s.ingredientGroups(models.RuleAllergy, prof.Allergies, true)...)
	vs = append(vs, s.ingredientGroups(models.RuleIntolerance, prof.Intolerances, false)...)
	vs = append(vs, s.avoidedAdditives(prof.AvoidAdditives)...)
	vs = append(vs, s.hardPreferences(prof)...)

	limits, matched := s.nutrientLimits(cs)
	vs = append(vs, limits...)
	vs = append(vs, s.softPreferences(prof)...)
	vs = append(vs, e.medical(s, prof.MedicalConditions)...)

	verdict.Violations = append(verdict.Violations, vs...)
	verdict.MatchedNutrients = matched
	verdict.Classification = classify(vs)

	return verdict
}

func classify(vs []models.Violation) models.Classification {
	c := models.Safe
	for _, v := range vs {
		if v.Severity == models.SeverityHard {
			return models.NotSafe
		}
		c = models.Caution
	}
	return c
}

// scan holds the normalised text of one product.
type scan struct {
	product     models.Product
	ingredients string
	allergens   []string
	traces      []string
	labels      []string
	analysis    []string
	additives   []string
}

func newScan(p models.Product) *scan {
	additives := make([]string, 0, len(p.AdditiveTags))
	for _, a := range p.AdditiveTags {
		if code := nutrients.NormalizeAdditive(a); code != "" {
			additives = append(additives, code)
		}
	}
	return &scan{
		product:     p,
		ingredients: Normalize(p.IngredientsText),
		allergens:   normalizeAll(p.AllergenTags),
		traces:      normalizeAll(p.TraceTags),
		labels:      normalizeAll(p.LabelTags),
		analysis:    normalizeAll(p.AnalysisTags),
		additives:   additives,
	}
}

// normalizeAll normalises tags, dropping any "en:" style language prefix.
func normalizeAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if i := strings.IndexByte(s, ':'); i >= 0 && i <= 3 {
			s = s[i+1:]
		}
		if n := Normalize(s); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// MatchTerms returns the group terms found in normalised text, in table order.
func MatchTerms(g Group, text string) []string {
	text = stripPhrases(text, g.Exempt)
	var found []string
	for _, t := range g.Terms {
		if containsKeyword(text, t) {
			found = append(found, t)
		}
	}
	return found
}

// MatchProduct reports whether the product's ingredients, allergen tags or
// trace tags mention the group.
func MatchProduct(g Group, p models.Product) bool {
	s := newScan(p)
	if len(MatchTerms(g, s.ingredients)) > 0 {
		return true
	}
	return len(s.matchTags(g, s.allergens)) > 0 ||
		len(s.matchTags(g, s.traces)) > 0 ||
		len(s.matchCodes(g.Codes)) > 0
}

func (s *scan) matchTags(g Group, tags []string) []string {
	var found []string
	for _, tag := range tags {
		for _, t := range MatchTerms(g, tag) {
			if !slices.Contains(found, t) {
				found = append(found, t)
			}
		}
	}
	return found
}

func (s *scan) matchCodes(codes []string) []string {
	var found []string
	for _, tag := range s.additives {
		for _, code := range codes {
			if codeMatches(tag, code) && !slices.Contains(found, tag) {
				found = append(found, tag)
			}
		}
	}
	return found
}

func (s *scan) ingredientGroups(kind models.RuleKind, tokens []string, withTraces bool) []models.Violation {
	label := "Allergy"
	if kind == models.RuleIntolerance {
		label = "Intolerance"
	}

	var out []models.Violation
	for _, token := range tokens {
		g := LookupGroup(token)
		found := MatchTerms(g, s.ingredients)
		for _, t := range s.matchTags(g, s.allergens) {
			if !slices.Contains(found, t) {
				found = append(found, t)
			}
		}
		found = append(found, s.matchCodes(g.Codes)...)

		switch {
		case len(found) > 0:
			out = append(out, models.Violation{
				Rule:     kind,
				Severity: models.SeverityHard,
				Subject:  token,
				Reason:   fmt.Sprintf("%s: contains %s%s", label, token, detail(token, found)),
			})
		case withTraces && len(s.matchTags(g, s.traces)) > 0:
			out = append(out, models.Violation{
				Rule:     kind,
				Severity: models.SeverityHard,
				Subject:  token,
				Reason:   fmt.Sprintf("%s: may contain traces of %s", label, token),
			})
		}
	}
	return out
}

func (s *scan) avoidedAdditives(tokens []string) []models.Violation {
	var out []models.Violation
	for _, token := range tokens {
		found := s.matchCodes(ExpandAdditive(token))
		if len(found) == 0 {
			continue
		}
		out = append(out, models.Violation{
			Rule:     models.RuleAdditive,
			Severity: models.SeverityHard,
			Subject:  token,
			Reason:   fmt.Sprintf("Avoided additive: contains %s%s", token, detail(token, found)),
		})
	}
	return out
}

func (s *scan) hardPreferences(prof *models.DietaryProfile) []models.Violation {
	var out []models.Violation
	for _, pref := range prof.ActivePreferences() {
		if !pref.IsHard() {
			continue
		}
		table, ok := preferenceTables[pref]
		if !ok || s.labelled(table.TrustLabels) {
			continue
		}

		var reasons []string
		if s.flagged(table.Conflict) {
			reasons = append(reasons, fmt.Sprintf("flagged non-%s by ingredient analysis", pref))
		}
		found := MatchTerms(table.Group, s.ingredients)
		found = append(found, s.matchCodes(table.Codes)...)
		if len(found) > 0 {
			reasons = append(reasons, "contains "+strings.Join(found, ", "))
		}

		if len(reasons) > 0 {
			out = append(out, models.Violation{
				Rule:     models.RulePreference,
				Severity: models.SeverityHard,
				Subject:  string(pref),
				Reason:   fmt.Sprintf("Not %s: %s", pref, strings.Join(reasons, "; ")),
			})
			continue
		}

		switch {
		case s.flagged(table.Unknown):
			out = append(out, unknownStatus(pref, "not confirmed by ingredient analysis"))
		case s.ingredients == "":
			out = append(out, unknownStatus(pref, "no ingredient list"))
		}
	}
	return out
}

func unknownStatus(pref models.Preference, why string) models.Violation {
	return models.Violation{
		Rule:     models.RulePreference,
		Severity: models.SeveritySoft,
		Subject:  string(pref),
		Reason:   fmt.Sprintf("%s status unknown: %s", capitalize(string(pref)), why),
	}
}

// labelled reports whether any product label names one of want.
func (s *scan) labelled(want []string) bool {
	for _, label := range s.labels {
		if strings.HasPrefix(label, "non ") || strings.HasPrefix(label, "not ") {
			continue
		}
		for _, w := range want {
			if containsKeyword(label, w) {
				return true
			}
		}
	}
	return false
}

func (s *scan) flagged(tags []string) bool {
	for _, t := range tags {
		if slices.Contains(s.analysis, t) {
			return true
		}
	}
	return false
}

func (s *scan) nutrientLimits(cs models.ConstraintSet) ([]models.Violation, []models.NutrientKey) {
	var (
		out     []models.Violation
		matched []models.NutrientKey
	)
	for _, k := range cs.Keys() {
		v, ok := s.product.Nutrients.Get(k)
		if !ok {
			continue
		}
		matched = append(matched, k)

		b := cs.Bounds[k]
		switch {
		case b.Max != nil && v > *b.Max:
			out = append(out, models.Violation{
				Rule:     models.RuleNutrientLimit,
				Severity: models.SeveritySoft,
				Subject:  string(k),
				Reason: fmt.Sprintf("High %s: %s per 100g exceeds limit of %s",
					k.Label(), k.Format(v), k.Format(*b.Max)),
			})
		case b.Min != nil && v < *b.Min:
			out = append(out, models.Violation{
				Rule:     models.RuleNutrientLimit,
				Severity: models.SeveritySoft,
				Subject:  string(k),
				Reason: fmt.Sprintf("Low %s: %s per 100g is below minimum of %s",
					k.Label(), k.Format(v), k.Format(*b.Min)),
			})
		}
	}
	return out, matched
}

// softThreshold is the nutrient signal behind a soft preference.
type softThreshold struct {
	key   models.NutrientKey
	limit float64
	// floor is true when the preference wants at least limit.
	floor bool
}

var softThresholds = map[models.Preference]softThreshold{
	models.LowSugar:    {key: models.Sugars, limit: 5},
	models.LowSalt:     {key: models.Salt, limit: 1.5},
	models.LowFat:      {key: models.Fat, limit: 3},
	models.HighFiber:   {key: models.Fiber, limit: 3, floor: true},
	models.HighProtein: {key: models.Proteins, limit: 10, floor: true},
}

var organicLabels = []string{"organic", "bio", "biologique", "biologico", "organico", "ecologico"}

func (s *scan) softPreferences(prof *models.DietaryProfile) []models.Violation {
	var out []models.Violation
	for _, pref := range prof.ActivePreferences() {
		if pref.IsHard() {
			continue
		}

		if pref == models.OrganicOnly {
			if len(s.labels) > 0 && !s.labelled(organicLabels) {
				out = append(out, models.Violation{
					Rule:     models.RuleSoftPreference,
					Severity: models.SeveritySoft,
					Subject:  string(pref),
					Reason:   "Organic only: product is not labelled organic",
				})
			}
			continue
		}

		th, ok := softThresholds[pref]
		if !ok {
			continue
		}
		v, ok := s.product.Nutrients.Get(th.key)
		if !ok {
			continue
		}

		var reason string
		switch {
		case th.floor && v < th.limit:
			reason = fmt.Sprintf("%s: only %s %s per 100g (want at least %s)",
				preferenceTitle(pref), th.key.Format(v), th.key.Label(), th.key.Format(th.limit))
		case !th.floor && v > th.limit:
			reason = fmt.Sprintf("%s: %s %s per 100g (want at most %s)",
				preferenceTitle(pref), th.key.Format(v), th.key.Label(), th.key.Format(th.limit))
		default:
			continue
		}
		out = append(out, models.Violation{
			Rule:     models.RuleSoftPreference,
			Severity: models.SeveritySoft,
			Subject:  string(pref),
			Reason:   reason,
		})
	}
	return out
}

func (e *Evaluator) medical(s *scan, conditions []string) []models.Violation {
	if e.conditions == nil || len(conditions) == 0 {
		return nil
	}
	in := newConditionInput(s.product, s.ingredients)
	var out []models.Violation
	for _, c := range conditions {
		out = append(out, e.conditions.Check(c, in)...)
	}
	return out
}

// detail lists the matched terms when they say more than the token itself.
func detail(token string, found []string) string {
	if len(found) == 1 && found[0] == Normalize(token) {
		return ""
	}
	return " (" + strings.Join(found, ", ") + ")"
}

func preferenceTitle(p models.Preference) string {
	return capitalize(strings.ReplaceAll(string(p), "_", " "))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
