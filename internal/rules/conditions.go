// internal/rules/conditions.go
package rules

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/cel-go/cel"

	"mcp-diet-check/internal/models"
)

// Protect CEL environment creation and compilation from concurrent access.
var celMutex sync.Mutex

// ConditionRule flags products of concern for one medical condition.
//
// Match is a CEL expression evaluated per product that returns true when the
// product is a concern. It has access to:
//   - `n` (map<string, double>): per-100g nutrients, present keys only
//   - `ingredients` (string): normalised ingredient text
//   - `additives` (list<string>): additive codes, e.g. "e330"
//   - `allergens` (list<string>): allergen tags, e.g. "milk"
//
// Examples:
//   - "sugars" in n && n["sugars"] > 10.0
//   - additives.exists(a, a.startsWith("e45"))
//   - ingredients.matches(r"\bwheat\b")
//
// A rule whose expression errors or yields a non-boolean never matches, so a
// missing nutrient can be tested with `in` rather than guarded against.
type ConditionRule struct {
	program cel.Program

	// Condition is the medical condition token, e.g. "diabetes".
	Condition string `json:"condition" yaml:"condition"`
	// Aliases are other tokens that name the same condition.
	Aliases []string `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	// Match is the CEL expression.
	Match string `json:"match" yaml:"match"`
	// Reason is the violation text shown when the rule matches.
	Reason string `json:"reason" yaml:"reason"`
}

// DefaultConditionRules is the built-in medical condition table.
var DefaultConditionRules = []ConditionRule{
	{
		Condition: "diabetes",
		Aliases:   []string{"diabetic", "type 1 diabetes", "type 2 diabetes", "prediabetes"},
		Match:     `"sugars" in n && n["sugars"] > 10.0`,
		Reason:    "High sugar content for diabetes (over 10g per 100g)",
	},
	{
		Condition: "diabetes",
		Match:     `"carbohydrates" in n && n["carbohydrates"] > 60.0`,
		Reason:    "Very high carbohydrate content for diabetes (over 60g per 100g)",
	},
	{
		Condition: "hypertension",
		Aliases:   []string{"high blood pressure"},
		Match:     `("salt" in n && n["salt"] > 1.5) || ("sodium" in n && n["sodium"] > 0.6)`,
		Reason:    "High salt content for hypertension (over 1.5g per 100g)",
	},
	{
		Condition: "high cholesterol",
		Aliases:   []string{"cholesterol", "hypercholesterolemia"},
		Match:     `("saturated_fat" in n && n["saturated_fat"] > 5.0) || ("trans_fat" in n && n["trans_fat"] > 0.0)`,
		Reason:    "High saturated or trans fat for high cholesterol",
	},
	{
		Condition: "kidney disease",
		Aliases:   []string{"ckd", "chronic kidney disease", "renal disease"},
		Match:     `("sodium" in n && n["sodium"] > 0.6) || ("potassium" in n && n["potassium"] > 0.3)`,
		Reason:    "High sodium or potassium for kidney disease",
	},
	{
		Condition: "kidney disease",
		Match:     `additives.exists(a, a.matches(r"^e(33[89]|34[013]|45[012])"))`,
		Reason:    "Contains phosphate additives, a concern for kidney disease",
	},
	{
		Condition: "celiac",
		Aliases:   []string{"coeliac", "celiac disease", "coeliac disease"},
		Match:     `!ingredients.contains("gluten free") && (allergens.exists(a, a == "gluten") || ingredients.matches(r"\b(wheat|barley|rye|spelt|malt)\b"))`,
		Reason:    "Contains gluten sources, a concern for celiac disease",
	},
	{
		Condition: "heart disease",
		Aliases:   []string{"cardiovascular disease", "heart condition"},
		Match:     `("saturated_fat" in n && n["saturated_fat"] > 5.0) || ("salt" in n && n["salt"] > 1.5)`,
		Reason:    "High saturated fat or salt for heart disease",
	},
}

// Conditions holds compiled condition rules indexed by condition token.
type Conditions struct {
	byToken map[string][]*ConditionRule
}

// NewConditions compiles the built-in rules plus any extra rules. Extra rules
// for a condition replace every built-in rule for it and take over the
// built-in aliases.
func NewConditions(extra ...ConditionRule) (*Conditions, error) {
	env, err := newConditionEnv()
	if err != nil {
		return nil, err
	}

	replaced := map[string][]string{}
	for _, r := range extra {
		replaced[Normalize(r.Condition)] = nil
	}

	all := make([]ConditionRule, 0, len(DefaultConditionRules)+len(extra))
	for _, r := range DefaultConditionRules {
		key := Normalize(r.Condition)
		if _, ok := replaced[key]; ok {
			replaced[key] = append(replaced[key], r.Aliases...)
			continue
		}
		all = append(all, r)
	}
	for _, r := range extra {
		r.Aliases = append(slices.Clone(r.Aliases), replaced[Normalize(r.Condition)]...)
		all = append(all, r)
	}

	c := &Conditions{byToken: map[string][]*ConditionRule{}}
	var errs []error
	for _, r := range all {
		if err := r.compile(env); err != nil {
			errs = append(errs, fmt.Errorf("condition %q: %w", r.Condition, err))
			continue
		}
		c.add(&r)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return c, nil
}

func (c *Conditions) add(r *ConditionRule) {
	seen := map[string]bool{}
	for _, token := range append([]string{r.Condition}, r.Aliases...) {
		key := Normalize(token)
		if seen[key] {
			continue
		}
		seen[key] = true
		c.byToken[key] = append(c.byToken[key], r)
	}
}

// Known reports whether any rule covers the condition token.
func (c *Conditions) Known(condition string) bool {
	_, ok := c.byToken[Normalize(condition)]
	return ok
}

// Check returns a violation for every rule of the condition that matches.
func (c *Conditions) Check(condition string, in conditionInput) []models.Violation {
	var out []models.Violation
	for _, r := range c.byToken[Normalize(condition)] {
		if r.matches(in) {
			out = append(out, models.Violation{
				Rule:     models.RuleMedical,
				Severity: models.SeveritySoft,
				Subject:  condition,
				Reason:   r.Reason,
			})
		}
	}
	return out
}

type conditionInput struct {
	nutrients   map[string]float64
	ingredients string
	additives   []string
	allergens   []string
}

func newConditionInput(p models.Product, ingredients string) conditionInput {
	n := make(map[string]float64, len(p.Nutrients))
	for k, v := range p.Nutrients {
		n[string(k)] = v
	}
	return conditionInput{
		nutrients:   n,
		ingredients: ingredients,
		additives:   nonNil(p.AdditiveTags),
		allergens:   nonNil(p.AllergenTags),
	}
}

func newConditionEnv() (*cel.Env, error) {
	celMutex.Lock()
	defer celMutex.Unlock()

	env, err := cel.NewEnv(
		cel.Variable("n", cel.MapType(cel.StringType, cel.DoubleType)),
		cel.Variable("ingredients", cel.StringType),
		cel.Variable("additives", cel.ListType(cel.StringType)),
		cel.Variable("allergens", cel.ListType(cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}

	return env, nil
}

func (r *ConditionRule) compile(env *cel.Env) error {
	celMutex.Lock()
	defer celMutex.Unlock()

	ast, issues := env.Compile(r.Match)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("compile match expression: %w", issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return fmt.Errorf("match expression must return bool, got %s", ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return fmt.Errorf("create CEL program: %w", err)
	}

	r.program = program

	return nil
}

func (r *ConditionRule) matches(in conditionInput) bool {
	result, _, err := r.program.Eval(map[string]any{
		"n":           in.nutrients,
		"ingredients": in.ingredients,
		"additives":   in.additives,
		"allergens":   in.allergens,
	})
	if err != nil {
		return false
	}

	if b, ok := result.Value().(bool); ok {
		return b
	}

	return false
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
