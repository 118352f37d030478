package profile_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcp-diet-check/internal/models"
	"mcp-diet-check/internal/profile"
	"mcp-diet-check/internal/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParse_Tolerant(t *testing.T) {
	t.Parallel()

	p, dropped := profile.Parse(map[string]any{
		"profile_name":        "  Family ",
		"allergies":           []any{"Milk", "peanuts", "milk", 4.0, ""},
		"intolerances":        `["lactose", "Gluten"]`,
		"medical_conditions":  "diabetes, hypertension",
		"avoid_additives":     map[string]any{"e330": true},
		"dietary_preferences": `{"vegan": true, "low-sugar": "true", "keto": true, "halal": "sometimes"}`,
		"nutrient_limits": map[string]any{
			"sugars_100g": 5.0,
			"protein":     "10",
			"caffeine":    1.0,
			"salt":        -1.0,
		},
		"favourite_colour": "green",
	})

	assert.Equal(t, "Family", p.ProfileName)
	assert.Equal(t, []string{"milk", "peanuts"}, p.Allergies)
	assert.Equal(t, []string{"lactose", "gluten"}, p.Intolerances)
	assert.Equal(t, []string{"diabetes", "hypertension"}, p.MedicalConditions)
	assert.Nil(t, p.AvoidAdditives)
	assert.Equal(t, map[models.Preference]bool{models.Vegan: true, models.LowSugar: true}, p.DietaryPreferences)
	assert.Equal(t, map[models.NutrientKey]float64{models.Sugars: 5, models.Proteins: 10}, p.NutrientLimits)

	fields := make([]string, 0, len(dropped))
	for _, d := range dropped {
		fields = append(fields, d.Field)
	}
	assert.Equal(t, []string{
		"avoid_additives",
		"dietary_preferences.halal",
		"nutrient_limits.caffeine",
		"nutrient_limits.salt",
	}, fields)
}

func TestParse_WrongShapeDropsOnlyThatField(t *testing.T) {
	t.Parallel()

	p, dropped := profile.Parse(map[string]any{
		"allergies":       []any{"egg"},
		"nutrient_limits": "not a mapping",
	})

	assert.Equal(t, []string{"egg"}, p.Allergies)
	assert.Nil(t, p.NutrientLimits)
	require.Len(t, dropped, 1)
	assert.Equal(t, "nutrient_limits", dropped[0].Field)
}

func TestParse_PreferenceList(t *testing.T) {
	t.Parallel()

	p, dropped := profile.Parse(map[string]any{"dietary_preferences": []any{"Vegetarian", "organic only"}})
	assert.Empty(t, dropped)
	assert.Equal(t, []models.Preference{models.Vegetarian, models.OrganicOnly}, p.ActivePreferences())
}

func newManager(t *testing.T) (*profile.Manager, storage.Store) {
	t.Helper()

	store := storage.NewJSONFileStore(filepath.Join(t.TempDir(), "dietcheck-profile.json"))
	return profile.NewManager(store, discardLogger()), store
}

func TestManager_Lifecycle(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	m, store := newManager(t)

	_, ok := m.Get()
	assert.False(t, ok)

	res := m.Set(ctx, map[string]any{
		"allergies":           []any{"milk"},
		"dietary_preferences": map[string]any{"vegan": true, "low_salt": false},
		"nutrient_limits":     map[string]any{"sugars": 5},
	})
	assert.True(t, res.Persisted)
	assert.Empty(t, res.Dropped)

	got, ok := m.Get()
	require.True(t, ok)
	assert.Equal(t, &models.DietaryProfile{
		Allergies:          []string{"milk"},
		DietaryPreferences: map[models.Preference]bool{models.Vegan: true, models.LowSalt: false},
		NutrientLimits:     map[models.NutrientKey]float64{models.Sugars: 5},
	}, got)

	// Set is a full replace.
	m.Set(ctx, map[string]any{"intolerances": "lactose"})
	got, _ = m.Get()
	assert.Empty(t, got.Allergies)
	assert.Equal(t, []string{"lactose"}, got.Intolerances)

	// A fresh manager over the same store sees the saved profile.
	reloaded := profile.NewManager(store, discardLogger())
	reloaded.Load(ctx)
	got, ok = reloaded.Get()
	require.True(t, ok)
	assert.Equal(t, []string{"lactose"}, got.Intolerances)

	assert.True(t, m.Clear(ctx))
	_, ok = m.Get()
	assert.False(t, ok)
	assert.False(t, m.Clear(ctx))

	_, err := store.Load(ctx)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestManager_EmptyProfileIsSet(t *testing.T) {
	t.Parallel()

	m, _ := newManager(t)
	m.Set(t.Context(), map[string]any{})

	got, ok := m.Get()
	assert.True(t, ok)
	assert.True(t, got.IsEmpty())
}

func TestManager_GetReturnsCopy(t *testing.T) {
	t.Parallel()

	m, _ := newManager(t)
	m.Set(t.Context(), map[string]any{"allergies": []any{"milk"}})

	got, _ := m.Get()
	got.Allergies[0] = "nothing"

	again, _ := m.Get()
	assert.Equal(t, []string{"milk"}, again.Allergies)
}

func TestManager_LoadUnreadable(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	store := storage.NewJSONFileStore(filepath.Join(t.TempDir(), "p.json"))
	require.NoError(t, store.Save(ctx, []byte("{not json")))

	m := profile.NewManager(store, discardLogger())
	m.Load(ctx)

	_, ok := m.Get()
	assert.False(t, ok)
}

func TestManager_LoadLegacyFile(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	store := storage.NewJSONFileStore(filepath.Join(t.TempDir(), "p.json"))
	require.NoError(t, store.Save(ctx, []byte(`{
		"profile_name": "Custom Profile",
		"allergies": "[\"nuts\"]",
		"nutrient_limits": {"sugars_100g": 5, "salt_100g": 1.2}
	}`)))

	m := profile.NewManager(store, discardLogger())
	m.Load(ctx)

	got, ok := m.Get()
	require.True(t, ok)
	assert.Equal(t, []string{"nuts"}, got.Allergies)
	assert.Equal(t, map[models.NutrientKey]float64{models.Sugars: 5, models.Salt: 1.2}, got.NutrientLimits)
}

type failingStore struct{ storage.Store }

func (failingStore) Save(context.Context, []byte) error { return errors.New("disk full") }

func TestManager_SaveFailureKeepsProfile(t *testing.T) {
	t.Parallel()

	inner := storage.NewJSONFileStore(filepath.Join(t.TempDir(), "p.json"))
	m := profile.NewManager(failingStore{inner}, discardLogger())

	res := m.Set(t.Context(), map[string]any{"allergies": "egg"})
	assert.False(t, res.Persisted)

	got, ok := m.Get()
	require.True(t, ok)
	assert.Equal(t, []string{"egg"}, got.Allergies)
}

func TestSummary(t *testing.T) {
	t.Parallel()

	s := profile.Summary(&models.DietaryProfile{
		ProfileName:        "Me",
		Allergies:          []string{"milk"},
		DietaryPreferences: map[models.Preference]bool{models.Vegan: true, models.LowSalt: false},
		NutrientLimits:     map[models.NutrientKey]float64{models.Sugars: 5, models.Fiber: 6},
		MedicalConditions:  []string{"diabetes", "gout"},
	}, func(c string) bool { return c == "diabetes" })

	assert.Contains(t, s, "📋 Current Profile: Me")
	assert.Contains(t, s, "Allergies: milk")
	assert.Contains(t, s, "Dietary Preferences: vegan")
	assert.Contains(t, s, "Nutrient Limits: sugar max 5g, fiber min 6g")
	assert.NotContains(t, s, "low_salt")
	assert.Contains(t, s, "Medical Conditions: diabetes, gout (no rules, not checked)")
}
