package filter_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcp-diet-check/internal/filter"
	"mcp-diet-check/internal/models"
)

func TestParseParams(t *testing.T) {
	t.Parallel()

	p := filter.ParseParams(map[string]any{
		"product_name": "yogurt",
		"max_sugar":    5.0,
		"min_protein":  "10",
		"max_protein":  json.Number("30"),
		"max_calories": 200,
		"min_caffeine": 1.0,
		"max_salt":     "lots",
		"low_fat":      "true",
		"low_salt":     false,
		"no_nuts":      true,
		"high_fiber":   true,
	})

	require.Len(t, p.Bounds, 3)
	assert.InDelta(t, 5.0, *p.Bounds[models.Sugars].Max, 0)
	assert.InDelta(t, 10.0, *p.Bounds[models.Proteins].Min, 0)
	assert.InDelta(t, 30.0, *p.Bounds[models.Proteins].Max, 0)
	assert.InDelta(t, 200.0, *p.Bounds[models.EnergyKcal].Max, 0)
	assert.Equal(t, models.SourceRequest, p.Bounds[models.Proteins].Source)

	require.Len(t, p.Shortcuts, 1)
	assert.Equal(t, "low_fat", p.Shortcuts[0].Name)
	assert.Equal(t, []string{"nuts"}, p.Exclusions)
}

func TestParseParams_Empty(t *testing.T) {
	t.Parallel()

	assert.True(t, filter.ParseParams(nil).IsEmpty())
	assert.True(t, filter.ParseParams(map[string]any{"product_name": "x"}).IsEmpty())
}

func TestCompile_Precedence(t *testing.T) {
	t.Parallel()

	prof := &models.DietaryProfile{NutrientLimits: map[models.NutrientKey]float64{
		models.Sugars:   10,
		models.Fat:      20,
		models.Salt:     1,
		models.Proteins: 8,
	}}
	p := filter.ParseParams(map[string]any{
		"max_sugar": 2,
		"low_fat":   true,
		"low_salt":  true,
		"max_salt":  0.5,
	})

	cs := filter.Compile(p, prof)

	// Explicit request bound beats the profile limit.
	assert.Equal(t, models.SourceRequest, cs.Bounds[models.Sugars].Source)
	assert.InDelta(t, 2.0, *cs.Bounds[models.Sugars].Max, 0)

	// Shortcut beats the profile limit.
	assert.Equal(t, models.SourceShortcut, cs.Bounds[models.Fat].Source)
	assert.InDelta(t, 3.0, *cs.Bounds[models.Fat].Max, 0)

	// Explicit bound beats the shortcut.
	assert.Equal(t, models.SourceRequest, cs.Bounds[models.Salt].Source)
	assert.InDelta(t, 0.5, *cs.Bounds[models.Salt].Max, 0)

	// Profile protein limit is a floor.
	assert.Equal(t, models.SourceProfile, cs.Bounds[models.Proteins].Source)
	require.NotNil(t, cs.Bounds[models.Proteins].Min)
	assert.Nil(t, cs.Bounds[models.Proteins].Max)
}

func TestCompile_NoProfile(t *testing.T) {
	t.Parallel()

	cs := filter.Compile(filter.Params{}, nil)
	assert.True(t, cs.IsEmpty())

	cs = filter.ForProfile(&models.DietaryProfile{NutrientLimits: map[models.NutrientKey]float64{models.Sugars: 5}})
	assert.Equal(t, []models.NutrientKey{models.Sugars}, cs.Keys())
}

func TestCheck(t *testing.T) {
	t.Parallel()

	requestMin := models.ConstraintSet{Bounds: map[models.NutrientKey]models.Bound{
		models.Proteins: {Min: models.Float(10), Source: models.SourceRequest},
	}}
	profileMax := filter.ForProfile(&models.DietaryProfile{
		NutrientLimits: map[models.NutrientKey]float64{models.Sugars: 5},
	})
	noNuts := filter.Compile(filter.ParseParams(map[string]any{"no_nuts": true}), nil)

	tests := map[string]struct {
		cs      models.ConstraintSet
		product models.Product
		want    bool
	}{
		"request min met":           {cs: requestMin, product: product(models.Proteins, 12), want: true},
		"request min below":         {cs: requestMin, product: product(models.Proteins, 9.9)},
		"request min absent":        {cs: requestMin, product: product(models.Sugars, 1)},
		"profile max exceeded":      {cs: profileMax, product: product(models.Sugars, 10.6)},
		"profile max absent passes": {cs: profileMax, product: product(models.Salt, 3), want: true},
		"no nuts ingredient":        {cs: noNuts, product: models.Product{IngredientsText: "sugar, hazelnuts"}},
		"no nuts trace":             {cs: noNuts, product: models.Product{TraceTags: []string{"nuts"}}},
		"no nuts coconut":           {cs: noNuts, product: models.Product{IngredientsText: "coconut, sugar"}, want: true},
		"no nuts almond flour":      {cs: noNuts, product: models.Product{IngredientsText: "almond flour, eggs"}},
		"empty set passes":          {cs: filter.Compile(filter.Params{}, nil), product: models.Product{IngredientsText: "peanuts"}, want: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ok, reason := filter.Check(tc.product, tc.cs)
			assert.Equal(t, tc.want, ok, reason)
			if !tc.want {
				assert.NotEmpty(t, reason)
			}
		})
	}
}

func TestCheck_MinProteinMonotonic(t *testing.T) {
	t.Parallel()

	candidates := []models.Product{
		product(models.Proteins, 2),
		product(models.Proteins, 8),
		product(models.Proteins, 12.5),
		product(models.Proteins, 25),
		product(models.Sugars, 4),
	}

	passing := func(floor float64) int {
		cs := filter.Compile(filter.ParseParams(map[string]any{"min_protein": floor}), nil)
		n := 0
		for _, c := range candidates {
			if ok, _ := filter.Check(c, cs); ok {
				n++
			}
		}
		return n
	}

	prev := len(candidates)
	for _, floor := range []float64{0, 2, 5, 10, 12.5, 20, 30} {
		n := passing(floor)
		assert.LessOrEqual(t, n, prev, "min_protein=%v", floor)
		prev = n
	}
	assert.Equal(t, 2, passing(10))
}

func TestSummary(t *testing.T) {
	t.Parallel()

	cs := filter.Compile(filter.ParseParams(map[string]any{
		"low_fat":     true,
		"min_protein": 10,
		"no_nuts":     true,
	}), &models.DietaryProfile{NutrientLimits: map[models.NutrientKey]float64{models.Sugars: 5}})

	assert.Equal(t, []string{"Low fat (≤3g)", "≥10g protein", "No nuts"}, filter.Summary(cs))
}

func product(key models.NutrientKey, v float64) models.Product {
	return models.Product{Nutrients: models.Nutrients{key: v}}
}
