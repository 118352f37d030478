// internal/nutrients/extract.go

// Package nutrients turns raw food database records into [models.Product]
// values with a typed per-100g nutrient snapshot.
//
// Only per-100g fields are read. A field that is missing or not numeric is
// left out of the snapshot rather than defaulted to zero, so "unknown" never
// reads as "none".
package nutrients

import (
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"mcp-diet-check/internal/models"
)

const kjPerKcal = 4.184

// sourceFields maps each nutrient to the per-100g record fields it may be
// read from, in preference order.
var sourceFields = map[models.NutrientKey][]string{
	models.EnergyKcal:    {"energy-kcal_100g"},
	models.Fat:           {"fat_100g"},
	models.SaturatedFat:  {"saturated-fat_100g"},
	models.TransFat:      {"trans-fat_100g"},
	models.Carbohydrates: {"carbohydrates_100g"},
	models.Sugars:        {"sugars_100g"},
	models.Fiber:         {"fiber_100g"},
	models.Proteins:      {"proteins_100g"},
	models.Salt:          {"salt_100g"},
	models.Sodium:        {"sodium_100g"},
	models.Potassium:     {"potassium_100g"},
	models.Calcium:       {"calcium_100g"},
	models.Iron:          {"iron_100g"},
	models.VitaminC:      {"vitamin-c_100g"},
	models.VitaminD:      {"vitamin-d_100g"},
}

// kilojouleFields carry energy in kJ and are used only when no kcal value exists.
var kilojouleFields = []string{"energy-kj_100g", "energy_100g"}

// Extract normalises one raw product record. A malformed record yields a
// product with an empty nutrient snapshot instead of an error, so one bad
// record never aborts a batch.
func Extract(raw []byte) models.Product {
	if !gjson.ValidBytes(raw) {
		return models.Product{Nutrients: models.Nutrients{}}
	}
	return FromResult(gjson.ParseBytes(raw))
}

// FromResult normalises an already parsed record.
func FromResult(rec gjson.Result) models.Product {
	p := models.Product{Nutrients: models.Nutrients{}}
	if !rec.IsObject() {
		return p
	}

	p.Name = firstString(rec, "product_name", "product_name_en", "generic_name")
	p.Brand = firstString(rec, "brands")
	p.Barcode = firstString(rec, "code", "_id")
	p.IngredientsText = firstString(rec, "ingredients_text", "ingredients_text_en")
	p.AdditiveTags = tags(rec.Get("additives_tags"), NormalizeAdditive)
	p.AllergenTags = tags(rec.Get("allergens_tags"), stripLanguage)
	p.TraceTags = tags(rec.Get("traces_tags"), stripLanguage)
	p.LabelTags = tags(rec.Get("labels_tags"), stripLanguage)
	p.AnalysisTags = tags(rec.Get("ingredients_analysis_tags"), stripLanguage)

	nutriments := rec.Get("nutriments")
	if !nutriments.IsObject() {
		return p
	}

	for _, key := range models.AllNutrients {
		for _, field := range sourceFields[key] {
			if v, ok := number(nutriments.Get(gjson.Escape(field))); ok {
				p.Nutrients[key] = v
				break
			}
		}
	}

	if _, ok := p.Nutrients[models.EnergyKcal]; !ok {
		for _, field := range kilojouleFields {
			if v, ok := number(nutriments.Get(gjson.Escape(field))); ok {
				p.Nutrients[models.EnergyKcal] = math.Round(v/kjPerKcal*10) / 10
				break
			}
		}
	}

	return p
}

// number coerces a JSON number or numeric string. Negative, NaN and infinite
// values are rejected.
func number(r gjson.Result) (float64, bool) {
	var v float64
	switch r.Type {
	case gjson.Number:
		v = r.Float()
	case gjson.String:
		s := strings.TrimSpace(strings.ReplaceAll(r.Str, ",", "."))
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		v = f
	default:
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, false
	}
	return v, true
}

func firstString(rec gjson.Result, fields ...string) string {
	for _, f := range fields {
		if r := rec.Get(f); r.Type == gjson.String && strings.TrimSpace(r.Str) != "" {
			return strings.TrimSpace(r.Str)
		}
	}
	return ""
}

func tags(r gjson.Result, normalize func(string) string) []string {
	if !r.IsArray() {
		return nil
	}
	var out []string
	for _, item := range r.Array() {
		if item.Type != gjson.String {
			continue
		}
		if t := normalize(item.Str); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// stripLanguage turns "en:tree-nuts" into "tree nuts".
func stripLanguage(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if i := strings.IndexByte(tag, ':'); i >= 0 {
		tag = tag[i+1:]
	}
	return strings.TrimSpace(strings.ReplaceAll(tag, "-", " "))
}

// NormalizeAdditive turns "en:E-330", "E330" or "e 330" into "e330".
func NormalizeAdditive(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if i := strings.IndexByte(code, ':'); i >= 0 {
		code = code[i+1:]
	}
	return strings.NewReplacer("-", "", " ", "", "_", "").Replace(code)
}
