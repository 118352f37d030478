// internal/server/tools.go
package server

import (
	"context"
	"fmt"
	"strings"

	"mcp-diet-check/internal/errors"
	"mcp-diet-check/internal/filter"
	"mcp-diet-check/internal/models"
	"mcp-diet-check/internal/pipeline"
	"mcp-diet-check/internal/profile"
)

const (
	ToolSearchFoodProduct   = "search_food_product"
	ToolSearchSafeFoodOnly  = "search_safe_food_only"
	ToolGetProductNutrition = "get_product_nutrition"
	ToolSetUserProfile      = "set_user_profile"
	ToolGetUserProfile      = "get_user_profile"
	ToolClearUserProfile    = "clear_user_profile"
)

// ProductSummary is one product in a search result payload.
type ProductSummary struct {
	Name           string             `json:"name"`
	Brand          string             `json:"brand"`
	Barcode        string             `json:"barcode"`
	URL            string             `json:"url"`
	Classification string             `json:"classification"`
	Violations     []string           `json:"violations"`
	Nutrients      map[string]float64 `json:"nutrients"`
}

// SearchPayload is the result of both search operations.
type SearchPayload struct {
	Query          string           `json:"query"`
	Found          bool             `json:"found"`
	SafeOnly       bool             `json:"safe_only"`
	ProfileApplied bool             `json:"profile_applied"`
	Filters        []string         `json:"filters,omitempty"`
	Checked        int              `json:"checked"`
	FilteredOut    int              `json:"filtered_out"`
	HiddenUnsafe   int              `json:"hidden_unsafe,omitempty"`
	RulesVersion   string           `json:"rules_version,omitempty"`
	Products       []ProductSummary `json:"products"`
}

// LookupPayload is the result of get_product_nutrition.
type LookupPayload struct {
	Barcode        string                `json:"barcode"`
	Found          bool                  `json:"found"`
	ProfileApplied bool                  `json:"profile_applied"`
	Product        *models.Product       `json:"product,omitempty"`
	Verdict        *models.SafetyVerdict `json:"verdict,omitempty"`
}

// ProfilePayload is the result of the profile operations.
type ProfilePayload struct {
	ProfileSet    bool                   `json:"profile_set"`
	ProfileData   map[string]any         `json:"profile_data,omitempty"`
	DroppedFields []profile.DroppedField `json:"dropped_fields,omitempty"`
	Persisted     *bool                  `json:"persisted,omitempty"`
	History       map[string]int         `json:"history,omitempty"`
}

func (d *Dispatcher) handleSearchFoodProduct(ctx context.Context, args map[string]any) (Response, error) {
	return d.search(ctx, args, d.pipeline.Search)
}

func (d *Dispatcher) handleSearchSafeFoodOnly(ctx context.Context, args map[string]any) (Response, error) {
	return d.search(ctx, args, d.pipeline.SafeOnly)
}

type searchFunc func(context.Context, string, map[string]any, *models.DietaryProfile) (*pipeline.SearchResult, error)

func (d *Dispatcher) search(ctx context.Context, args map[string]any, run searchFunc) (Response, error) {
	query, err := requireString(args, "product_name", "Product name parameter is required.")
	if err != nil {
		return Response{}, err
	}

	// The profile is copied once so a concurrent set or clear cannot change
	// it halfway through this search.
	prof, _ := d.profiles.Get()

	res, err := run(ctx, query, args, prof)
	if err != nil {
		return Response{}, err
	}

	payload := SearchPayload{
		Query:          res.Query,
		Found:          res.Found(),
		SafeOnly:       res.SafeOnly,
		ProfileApplied: res.ProfileApplied,
		Filters:        res.Filters,
		Checked:        res.Checked,
		FilteredOut:    res.FilteredOut,
		HiddenUnsafe:   res.HiddenUnsafe,
		Products:       make([]ProductSummary, 0, len(res.Entries)),
	}
	for _, e := range res.Entries {
		payload.RulesVersion = e.Verdict.RulesVersion
		payload.Products = append(payload.Products, ProductSummary{
			Name:           e.Product.Name,
			Brand:          e.Product.Brand,
			Barcode:        e.Product.Barcode,
			URL:            e.URL,
			Classification: string(e.Verdict.Classification),
			Violations:     e.Verdict.Reasons(),
			Nutrients:      nutrientMap(e.Product.Nutrients),
		})
	}

	return Response{Success: true, Message: res.Message, Result: payload}, nil
}

func (d *Dispatcher) handleGetProductNutrition(ctx context.Context, args map[string]any) (Response, error) {
	barcode, err := requireString(args, "barcode", "Barcode parameter is required.")
	if err != nil {
		return Response{}, err
	}

	prof, _ := d.profiles.Get()

	res, err := d.pipeline.Lookup(ctx, barcode, prof)
	if err != nil {
		return Response{}, err
	}

	payload := LookupPayload{Barcode: res.Barcode, Found: res.Found, ProfileApplied: res.ProfileApplied}
	if res.Entry != nil {
		payload.Product = &res.Entry.Product
		payload.Verdict = &res.Entry.Verdict
	}

	return Response{Success: true, Message: res.Message, Result: payload}, nil
}

func (d *Dispatcher) handleSetUserProfile(ctx context.Context, args map[string]any) (Response, error) {
	res := d.profiles.Set(ctx, args)

	data, err := profile.Encode(res.Profile)
	if err != nil {
		return Response{}, errors.Wrap(errors.ErrCodeInternal, "Error setting user profile", err)
	}

	msg := fmt.Sprintf("Profile '%s' has been set and saved successfully. "+
		"Dietary restrictions and preferences will now be applied to all food searches automatically.",
		res.Profile.DisplayName())
	if !res.Persisted {
		msg = fmt.Sprintf("Profile '%s' has been set for this session, but it could not be saved and will be lost on restart. "+
			"Dietary restrictions and preferences will now be applied to all food searches automatically.",
			res.Profile.DisplayName())
	}
	if len(res.Dropped) > 0 {
		fields := make([]string, 0, len(res.Dropped))
		for _, f := range res.Dropped {
			fields = append(fields, f.Field)
		}
		msg += fmt.Sprintf("\n\nThese fields were ignored because they could not be understood: %s.", strings.Join(fields, ", "))
	}

	persisted := res.Persisted

	return Response{
		Success: true,
		Message: msg,
		Result: ProfilePayload{
			ProfileSet:    true,
			ProfileData:   data,
			DroppedFields: res.Dropped,
			Persisted:     &persisted,
		},
	}, nil
}

func (d *Dispatcher) handleGetUserProfile(ctx context.Context, _ map[string]any) (Response, error) {
	prof, ok := d.profiles.Get()
	if !ok {
		return Response{
			Success: true,
			Message: "No user profile is currently set. Use set_user_profile to configure dietary restrictions and preferences.",
			Result:  ProfilePayload{ProfileSet: false},
		}, nil
	}

	data, err := profile.Encode(prof)
	if err != nil {
		return Response{}, errors.Wrap(errors.ErrCodeInternal, "Error reading user profile", err)
	}

	payload := ProfilePayload{ProfileSet: true, ProfileData: data}
	if h, ok := d.profiles.History(ctx); ok {
		payload.History = h
	}

	return Response{Success: true, Message: profile.Summary(prof, d.knownCondition), Result: payload}, nil
}

func (d *Dispatcher) handleClearUserProfile(ctx context.Context, _ map[string]any) (Response, error) {
	had := d.profiles.Clear(ctx)

	return Response{
		Success: true,
		Message: "User profile has been cleared successfully. No dietary restrictions will be applied to future searches until a new profile is set.",
		Result:  map[string]any{"profile_set": false, "had_profile": had},
	}, nil
}

func (d *Dispatcher) knownCondition(condition string) bool {
	return d.pipeline != nil && d.pipeline.KnownCondition(condition)
}

func requireString(args map[string]any, key, msg string) (string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return "", errors.New(errors.ErrCodeInvalidRequest, msg)
	}
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case float64:
		s = fmt.Sprintf("%.0f", t)
	default:
		s = fmt.Sprint(t)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errors.New(errors.ErrCodeInvalidRequest, msg)
	}
	return s, nil
}

func nutrientMap(n models.Nutrients) map[string]float64 {
	out := make(map[string]float64, len(n))
	for _, k := range n.Keys() {
		out[string(k)] = n[k]
	}
	return out
}

// toolSpec describes one operation for transports that advertise a schema.
type toolSpec struct {
	Name        string
	Description string
	Properties  map[string]property
}

type property struct {
	Types       []string
	Items       string
	Description string
}

var (
	numberish = []string{"number", "string"}
	boolish   = []string{"boolean", "string"}
	listish   = []string{"array", "string"}
	mappish   = []string{"object", "string"}
)

func searchProperties() map[string]property {
	props := map[string]property{
		"product_name": {Types: []string{"string"}, Description: "Name of the food product to search for. Required."},
		filter.NoNuts:  {Types: boolish, Description: "Exclude products that contain or may contain nuts"},
	}
	for _, s := range filter.Shortcuts {
		props[s.Name] = property{
			Types:       boolish,
			Description: fmt.Sprintf("Only products with at most %s %s per 100g", s.Key.Format(s.Max), s.Key.Label()),
		}
	}
	for _, k := range models.AllNutrients {
		props["min_"+string(k)] = property{Types: numberish, Description: fmt.Sprintf("Minimum %s per 100g (%s)", k.Label(), k.Unit())}
		props["max_"+string(k)] = property{Types: numberish, Description: fmt.Sprintf("Maximum %s per 100g (%s)", k.Label(), k.Unit())}
	}
	// Short spellings callers commonly use.
	for _, alias := range []string{"max_calories", "min_calories", "max_sugar", "min_protein", "max_protein"} {
		props[alias] = property{Types: numberish, Description: "Alias of the corresponding per-100g bound"}
	}
	return props
}

var toolSpecs = []toolSpec{
	{
		Name: ToolSearchFoodProduct,
		Description: "Search food products by name. Every result is annotated with a safety verdict " +
			"(SAFE, CAUTION or NOT SAFE) for the stored dietary profile. Optional min_/max_ nutrient " +
			"filters and low_fat, low_sugar, low_salt, low_fiber, no_nuts drop products before analysis.",
		Properties: searchProperties(),
	},
	{
		Name: ToolSearchSafeFoodOnly,
		Description: "Search food products by name and return only products that are SAFE for the " +
			"stored dietary profile. Accepts the same filters as search_food_product.",
		Properties: searchProperties(),
	},
	{
		Name:        ToolGetProductNutrition,
		Description: "Get nutrition facts for a product by barcode, with a dietary analysis against the stored profile.",
		Properties: map[string]property{
			"barcode": {Types: []string{"string"}, Description: "The product barcode. Required."},
		},
	},
	{
		Name: ToolSetUserProfile,
		Description: "Set the dietary profile applied to all searches. Replaces any existing profile; " +
			"fields left out are empty.",
		Properties: map[string]property{
			"profile_name":        {Types: []string{"string"}, Description: "Name of the profile"},
			"allergies":           {Types: listish, Items: "string", Description: "Allergens to avoid, e.g. milk, peanuts, gluten"},
			"intolerances":        {Types: listish, Items: "string", Description: "Intolerances, e.g. lactose"},
			"medical_conditions":  {Types: listish, Items: "string", Description: "Medical conditions, e.g. diabetes, hypertension"},
			"avoid_additives":     {Types: listish, Items: "string", Description: "Additive codes or groups to avoid, e.g. e951, artificial_sweeteners"},
			"dietary_preferences": {Types: mappish, Description: "Preference flags, e.g. {\"vegan\": true, \"low_sugar\": true}"},
			"nutrient_limits":     {Types: mappish, Description: "Per-100g limits by nutrient; maximums for sugars, salt, fat, sodium and minimums for fiber, protein, minerals, vitamins"},
		},
	},
	{
		Name:        ToolGetUserProfile,
		Description: "Show the stored dietary profile.",
		Properties:  map[string]property{},
	},
	{
		Name:        ToolClearUserProfile,
		Description: "Delete the stored dietary profile. Searches then apply no restrictions.",
		Properties:  map[string]property{},
	},
}
