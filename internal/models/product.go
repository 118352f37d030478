// internal/models/product.go
package models

import (
	"strings"

	"github.com/dustin/go-humanize"
)

// NutrientKey identifies one per-100g nutrient the engine knows about.
type NutrientKey string

const (
	EnergyKcal    NutrientKey = "energy_kcal"
	Fat           NutrientKey = "fat"
	SaturatedFat  NutrientKey = "saturated_fat"
	TransFat      NutrientKey = "trans_fat"
	Carbohydrates NutrientKey = "carbohydrates"
	Sugars        NutrientKey = "sugars"
	Fiber         NutrientKey = "fiber"
	Proteins      NutrientKey = "proteins"
	Salt          NutrientKey = "salt"
	Sodium        NutrientKey = "sodium"
	Potassium     NutrientKey = "potassium"
	Calcium       NutrientKey = "calcium"
	Iron          NutrientKey = "iron"
	VitaminC      NutrientKey = "vitamin_c"
	VitaminD      NutrientKey = "vitamin_d"
)

// AllNutrients lists every known key in display order.
var AllNutrients = []NutrientKey{
	EnergyKcal, Fat, SaturatedFat, TransFat, Carbohydrates, Sugars, Fiber,
	Proteins, Salt, Sodium, Potassium, Calcium, Iron, VitaminC, VitaminD,
}

// HeadlineNutrients are shown on every search entry when present.
var HeadlineNutrients = []NutrientKey{EnergyKcal, Fat, Sugars, Salt, Proteins, Fiber}

// LimitDirection says whether a profile limit on a nutrient is a ceiling or a floor.
type LimitDirection string

const (
	LimitMax LimitDirection = "max"
	LimitMin LimitDirection = "min"
)

var nutrientAliases = map[string]NutrientKey{
	"energy":        EnergyKcal,
	"energy_kcal":   EnergyKcal,
	"kcal":          EnergyKcal,
	"calories":      EnergyKcal,
	"calorie":       EnergyKcal,
	"fat":           Fat,
	"fats":          Fat,
	"saturated_fat": SaturatedFat,
	"saturated":     SaturatedFat,
	"sat_fat":       SaturatedFat,
	"trans_fat":     TransFat,
	"carbohydrates": Carbohydrates,
	"carbohydrate":  Carbohydrates,
	"carbs":         Carbohydrates,
	"sugars":        Sugars,
	"sugar":         Sugars,
	"fiber":         Fiber,
	"fibre":         Fiber,
	"proteins":      Proteins,
	"protein":       Proteins,
	"salt":          Salt,
	"sodium":        Sodium,
	"potassium":     Potassium,
	"calcium":       Calcium,
	"iron":          Iron,
	"vitamin_c":     VitaminC,
	"vitamin_d":     VitaminD,
}

// ParseNutrientKey resolves the spellings callers use ("sugars_100g",
// "energy-kcal", "protein", "calories") to a canonical key.
func ParseNutrientKey(s string) (NutrientKey, bool) {
	k := strings.ToLower(strings.TrimSpace(s))
	k = strings.TrimSuffix(k, "_100g")
	k = strings.ReplaceAll(k, "-", "_")
	k = strings.ReplaceAll(k, " ", "_")
	key, ok := nutrientAliases[k]
	return key, ok
}

// Direction returns how a profile limit on k is interpreted. Nutrients people
// limit (sugars, salt, fat, sodium, energy, carbohydrates) are ceilings;
// nutrients people seek (fiber, proteins, minerals, vitamins) are floors.
func (k NutrientKey) Direction() LimitDirection {
	switch k {
	case Fiber, Proteins, Potassium, Calcium, Iron, VitaminC, VitaminD:
		return LimitMin
	default:
		return LimitMax
	}
}

// Unit is the per-100g unit of the nutrient as reported upstream.
func (k NutrientKey) Unit() string {
	if k == EnergyKcal {
		return "kcal"
	}
	return "g"
}

// Label is the human name of the nutrient.
func (k NutrientKey) Label() string {
	switch k {
	case EnergyKcal:
		return "calories"
	case SaturatedFat:
		return "saturated fat"
	case TransFat:
		return "trans fat"
	case Sugars:
		return "sugar"
	case Proteins:
		return "protein"
	case VitaminC:
		return "vitamin C"
	case VitaminD:
		return "vitamin D"
	default:
		return string(k)
	}
}

// Format renders a per-100g amount with its unit, e.g. "10.6g" or "539kcal".
func (k NutrientKey) Format(v float64) string {
	return humanize.FtoaWithDigits(v, 3) + k.Unit()
}

// Nutrients holds per-100g values. A key that is absent is unknown, which is
// different from a known zero.
type Nutrients map[NutrientKey]float64

// Get returns the value for k and whether it is known.
func (n Nutrients) Get(k NutrientKey) (float64, bool) {
	v, ok := n[k]
	return v, ok
}

// Keys returns the present keys in display order.
func (n Nutrients) Keys() []NutrientKey {
	keys := make([]NutrientKey, 0, len(n))
	for _, k := range AllNutrients {
		if _, ok := n[k]; ok {
			keys = append(keys, k)
		}
	}
	return keys
}

// Product is one normalised food database record.
type Product struct {
	Name            string    `json:"name"`
	Brand           string    `json:"brand"`
	Barcode         string    `json:"barcode"`
	IngredientsText string    `json:"ingredients_text,omitempty"`
	AdditiveTags    []string  `json:"additive_tags,omitempty"`
	AllergenTags    []string  `json:"allergen_tags,omitempty"`
	TraceTags       []string  `json:"trace_tags,omitempty"`
	LabelTags       []string  `json:"label_tags,omitempty"`
	AnalysisTags    []string  `json:"analysis_tags,omitempty"`
	Nutrients       Nutrients `json:"nutrients"`
}
