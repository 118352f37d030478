package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcp-diet-check/internal/models"
)

func TestParseNutrientKey(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		in   string
		want models.NutrientKey
		ok   bool
	}{
		"off style":        {in: "sugars_100g", want: models.Sugars, ok: true},
		"hyphenated":       {in: "energy-kcal_100g", want: models.EnergyKcal, ok: true},
		"alias":            {in: "Protein", want: models.Proteins, ok: true},
		"calories":         {in: "calories", want: models.EnergyKcal, ok: true},
		"vitamin":          {in: "vitamin-c", want: models.VitaminC, ok: true},
		"saturated":        {in: "saturated-fat_100g", want: models.SaturatedFat, ok: true},
		"british fibre":    {in: "fibre", want: models.Fiber, ok: true},
		"unknown nutrient": {in: "caffeine", ok: false},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, ok := models.ParseNutrientKey(tc.in)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestNutrientKey_Direction(t *testing.T) {
	t.Parallel()

	for _, k := range []models.NutrientKey{models.Sugars, models.Salt, models.Fat, models.Sodium, models.EnergyKcal} {
		assert.Equal(t, models.LimitMax, k.Direction(), k)
	}
	for _, k := range []models.NutrientKey{models.Fiber, models.Proteins, models.Potassium, models.Calcium, models.Iron, models.VitaminC, models.VitaminD} {
		assert.Equal(t, models.LimitMin, k.Direction(), k)
	}
}

func TestNutrients_MissingIsNotZero(t *testing.T) {
	t.Parallel()

	n := models.Nutrients{models.Sugars: 0}

	v, ok := n.Get(models.Sugars)
	assert.True(t, ok)
	assert.Zero(t, v)

	_, ok = n.Get(models.Salt)
	assert.False(t, ok)
}

func TestBound_Allows(t *testing.T) {
	t.Parallel()

	b := models.Bound{Min: models.Float(2), Max: models.Float(5), Source: models.SourceRequest}
	assert.True(t, b.Allows(2))
	assert.True(t, b.Allows(5))
	assert.False(t, b.Allows(1.9))
	assert.False(t, b.Allows(5.1))
	assert.True(t, b.RequiresPresence())

	profileBound := models.Bound{Max: models.Float(5), Source: models.SourceProfile}
	assert.False(t, profileBound.RequiresPresence())
}

func TestDietaryProfile_IsEmpty(t *testing.T) {
	t.Parallel()

	var nilProfile *models.DietaryProfile
	assert.True(t, nilProfile.IsEmpty())
	assert.True(t, (&models.DietaryProfile{ProfileName: "named only"}).IsEmpty())
	assert.True(t, (&models.DietaryProfile{
		DietaryPreferences: map[models.Preference]bool{models.Vegan: false},
	}).IsEmpty())
	assert.False(t, (&models.DietaryProfile{Allergies: []string{"milk"}}).IsEmpty())
}

func TestDietaryProfile_Clone(t *testing.T) {
	t.Parallel()

	orig := &models.DietaryProfile{
		Allergies:          []string{"milk"},
		DietaryPreferences: map[models.Preference]bool{models.Vegan: true},
		NutrientLimits:     map[models.NutrientKey]float64{models.Sugars: 5},
	}

	clone := orig.Clone()
	require.Equal(t, orig, clone)

	clone.Allergies[0] = "egg"
	clone.NutrientLimits[models.Sugars] = 10
	assert.Equal(t, "milk", orig.Allergies[0])
	assert.InDelta(t, 5.0, orig.NutrientLimits[models.Sugars], 0)
}
