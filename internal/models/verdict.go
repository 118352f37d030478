// internal/models/verdict.go
package models

// Classification is the overall safety verdict for one product.
type Classification string

const (
	Safe    Classification = "SAFE"
	Caution Classification = "CAUTION"
	NotSafe Classification = "NOT_SAFE"
)

// Badge is the short display marker for the classification.
func (c Classification) Badge() string {
	switch c {
	case NotSafe:
		return "❌ NOT SAFE"
	case Caution:
		return "⚠️ CAUTION"
	default:
		return "✅ SAFE"
	}
}

type Severity string

const (
	// SeverityHard violations make a product NOT_SAFE.
	SeverityHard Severity = "hard"
	// SeveritySoft violations make a product at most CAUTION.
	SeveritySoft Severity = "soft"
)

type RuleKind string

const (
	RuleAllergy        RuleKind = "allergy"
	RuleIntolerance    RuleKind = "intolerance"
	RuleAdditive       RuleKind = "avoided_additive"
	RulePreference     RuleKind = "dietary_preference"
	RuleNutrientLimit  RuleKind = "nutrient_limit"
	RuleSoftPreference RuleKind = "soft_preference"
	RuleMedical        RuleKind = "medical_condition"
)

// Violation is one itemised reason a product is not plainly safe.
type Violation struct {
	Rule     RuleKind `json:"rule"`
	Severity Severity `json:"severity"`
	Subject  string   `json:"subject"`
	Reason   string   `json:"reason"`
}

// SafetyVerdict is the result of evaluating one product against one profile.
type SafetyVerdict struct {
	Classification   Classification `json:"classification"`
	Violations       []Violation    `json:"violations"`
	MatchedNutrients []NutrientKey  `json:"matched_nutrients,omitempty"`
	RulesVersion     string         `json:"rules_version"`
}

// Reasons returns the violation reasons in evaluation order.
func (v SafetyVerdict) Reasons() []string {
	out := make([]string, 0, len(v.Violations))
	for _, viol := range v.Violations {
		out = append(out, viol.Reason)
	}
	return out
}
