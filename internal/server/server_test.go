package server_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"mcp-diet-check/internal/config"
	"mcp-diet-check/internal/profile"
	"mcp-diet-check/internal/server"
	"mcp-diet-check/internal/storage"
)

const searchBody = `{"count": 3, "products": [
	{"code": "111", "product_name": "Milk Chocolate", "brands": "Acme",
	 "ingredients_text": "sugar, whole milk powder, cocoa mass",
	 "nutriments": {"sugars_100g": 56, "proteins_100g": 7}},
	{"code": "222", "product_name": "Dark Chocolate", "brands": "Acme",
	 "ingredients_text": "cocoa mass, sugar, cocoa butter",
	 "nutriments": {"sugars_100g": 30, "proteins_100g": 9}},
	{"code": "333", "product_name": "Protein Bar", "brands": "Fit",
	 "ingredients_text": "soy protein, oats",
	 "nutriments": {"sugars_100g": 2, "proteins_100g": 30}}
]}`

const productBody = `{"status": 1, "product": {"code": "111", "product_name": "Milk Chocolate", "brands": "Acme",
	"ingredients_text": "sugar, whole milk powder, cocoa mass",
	"nutriments": {"energy-kcal_100g": 535, "sugars_100g": 56, "proteins_100g": 7}}}`

func newFoodDatabase(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/cgi/search.pl" && r.URL.Query().Get("search_terms") == "outage":
			http.Error(w, "down", http.StatusBadGateway)
		case r.URL.Path == "/cgi/search.pl":
			_, _ = w.Write([]byte(searchBody))
		case r.URL.Path == "/api/v0/product/111.json":
			_, _ = w.Write([]byte(productBody))
		default:
			_, _ = w.Write([]byte(`{"status": 0}`))
		}
	}))
	t.Cleanup(srv.Close)

	return srv
}

func newServer(t *testing.T) *server.DietCheckServer {
	t.Helper()

	db := newFoodDatabase(t)

	cfg := config.Default()
	cfg.Store.ProfilePath = filepath.Join(t.TempDir(), "user_profile.json")
	cfg.OpenFoodFacts.BaseURL = db.URL
	cfg.OpenFoodFacts.RequestsPerMinute = 0

	s, err := server.NewDietCheckServer(t.Context(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop(t.Context()) })

	return s
}

func TestDispatcher_ProfileLifecycle(t *testing.T) {
	t.Parallel()

	d := newServer(t).Dispatcher()
	ctx := t.Context()

	resp := d.Call(ctx, server.ToolGetUserProfile, nil)
	require.True(t, resp.Success)
	assert.Contains(t, resp.Message, "No user profile is currently set")

	resp = d.Call(ctx, server.ToolSetUserProfile, map[string]any{
		"profile_name":        "Sam",
		"allergies":           []any{"milk"},
		"dietary_preferences": map[string]any{"vegan": true},
		"nutrient_limits":     "oops",
	})
	require.True(t, resp.Success)
	assert.True(t, strings.HasPrefix(resp.Message, "Profile 'Sam' has been set and saved successfully."))
	assert.Contains(t, resp.Message, "nutrient_limits")

	payload, ok := resp.Result.(server.ProfilePayload)
	require.True(t, ok)
	assert.Equal(t, []profile.DroppedField{{Field: "nutrient_limits", Reason: payload.DroppedFields[0].Reason}}, payload.DroppedFields)

	resp = d.Call(ctx, server.ToolGetUserProfile, map[string]any{})
	require.True(t, resp.Success)
	assert.Contains(t, resp.Message, "📋 Current Profile: Sam")
	got := resp.Result.(server.ProfilePayload)
	assert.Equal(t, []any{"milk"}, got.ProfileData["allergies"])

	resp = d.Call(ctx, server.ToolClearUserProfile, nil)
	require.True(t, resp.Success)
	assert.Contains(t, resp.Message, "User profile has been cleared successfully.")

	resp = d.Call(ctx, server.ToolGetUserProfile, nil)
	assert.False(t, resp.Result.(server.ProfilePayload).ProfileSet)
}

func TestDispatcher_Search(t *testing.T) {
	t.Parallel()

	d := newServer(t).Dispatcher()
	ctx := t.Context()

	resp := d.Call(ctx, server.ToolSetUserProfile, map[string]any{"allergies": "milk"})
	require.True(t, resp.Success)

	resp = d.Call(ctx, server.ToolSearchFoodProduct, map[string]any{"product_name": "chocolate"})
	require.True(t, resp.Success, resp.Message)
	annotated := resp.Result.(server.SearchPayload)
	require.Len(t, annotated.Products, 3)
	assert.Equal(t, "NOT_SAFE", annotated.Products[0].Classification)
	require.NotEmpty(t, annotated.Products[0].Violations)
	assert.True(t, strings.HasPrefix(annotated.Products[0].Violations[0], "Allergy: contains milk"))
	assert.Equal(t, "SAFE", annotated.Products[1].Classification)

	resp = d.Call(ctx, server.ToolSearchSafeFoodOnly, map[string]any{"product_name": "chocolate"})
	require.True(t, resp.Success)
	safe := resp.Result.(server.SearchPayload)
	assert.Len(t, safe.Products, 2)
	assert.Equal(t, 1, safe.HiddenUnsafe)

	resp = d.Call(ctx, server.ToolSearchFoodProduct, map[string]any{"product_name": "chocolate", "min_protein": "10"})
	require.True(t, resp.Success)
	filtered := resp.Result.(server.SearchPayload)
	require.Len(t, filtered.Products, 1)
	assert.Equal(t, "333", filtered.Products[0].Barcode)
	assert.Equal(t, 2, filtered.FilteredOut)
}

func TestDispatcher_Lookup(t *testing.T) {
	t.Parallel()

	d := newServer(t).Dispatcher()
	ctx := t.Context()

	resp := d.Call(ctx, server.ToolGetProductNutrition, map[string]any{"barcode": "111"})
	require.True(t, resp.Success)
	payload := resp.Result.(server.LookupPayload)
	assert.True(t, payload.Found)
	assert.Equal(t, "SAFE", string(payload.Verdict.Classification))
	assert.Empty(t, payload.Verdict.Violations)

	resp = d.Call(ctx, server.ToolGetProductNutrition, map[string]any{"barcode": "999"})
	require.True(t, resp.Success)
	assert.False(t, resp.Result.(server.LookupPayload).Found)
	assert.Equal(t, "Product with barcode '999' not found.", resp.Message)
}

func TestDispatcher_Failures(t *testing.T) {
	t.Parallel()

	d := newServer(t).Dispatcher()
	ctx := t.Context()

	tests := map[string]struct {
		tool string
		args map[string]any
		code string
	}{
		"unknown tool":      {tool: "order_pizza", code: "INVALID_REQUEST"},
		"missing name":      {tool: server.ToolSearchFoodProduct, args: map[string]any{}, code: "INVALID_REQUEST"},
		"blank barcode":     {tool: server.ToolGetProductNutrition, args: map[string]any{"barcode": " "}, code: "INVALID_REQUEST"},
		"upstream failure":  {tool: server.ToolSearchFoodProduct, args: map[string]any{"product_name": "outage"}, code: "SERVICE_ERROR"},
		"safe-only failure": {tool: server.ToolSearchSafeFoodOnly, args: map[string]any{"product_name": "outage"}, code: "SERVICE_ERROR"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			resp := d.Call(ctx, tc.tool, tc.args)
			assert.False(t, resp.Success)
			assert.Equal(t, tc.code, resp.ErrorCode)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestDispatcher_RecoversFromPanics(t *testing.T) {
	t.Parallel()

	store := storage.NewJSONFileStore(filepath.Join(t.TempDir(), "p.json"))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d := server.NewDispatcher(profile.NewManager(store, logger), nil, logger)

	resp := d.Call(t.Context(), server.ToolSearchFoodProduct, map[string]any{"product_name": "bread"})
	assert.False(t, resp.Success)
	assert.Equal(t, "INTERNAL", resp.ErrorCode)

	// The dispatcher keeps serving.
	resp = d.Call(t.Context(), server.ToolGetUserProfile, nil)
	assert.True(t, resp.Success)
}

func TestHTTPHandler(t *testing.T) {
	t.Parallel()

	h := newServer(t).Handler()

	body := bytes.NewBufferString(`{"name": "get_user_profile", "arguments": {}}`)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", body))
	require.Equal(t, http.StatusOK, rec.Code)

	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Content, 1)
	assert.Equal(t, "text", result.Content[0].Type)

	var resp server.Response
	require.NoError(t, json.Unmarshal([]byte(result.Content[0].Text), &resp))
	assert.True(t, resp.Success)
	assert.Contains(t, resp.Message, "No user profile is currently set")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dietcheck_tool_calls_total")
}

func TestMCPServer(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	d := newServer(t).Dispatcher()

	clientTransport, serverTransport := sdk.NewInMemoryTransports()

	serverSession, err := server.NewMCPServer(d).Connect(ctx, serverTransport)
	require.NoError(t, err)

	client := sdk.NewClient(&sdk.Implementation{Name: "client"}, nil)
	clientSession, err := client.Connect(ctx, clientTransport)
	require.NoError(t, err)

	tools, err := clientSession.ListTools(ctx, nil)
	require.NoError(t, err)
	names := make([]string, 0, len(tools.Tools))
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, d.Tools(), names)

	r, err := clientSession.CallTool(ctx, &sdk.CallToolParams{
		Name:      server.ToolSetUserProfile,
		Arguments: map[string]any{"profile_name": "Kai", "allergies": "peanuts, sesame"},
	})
	require.NoError(t, err)
	assert.False(t, r.IsError)

	structured, ok := r.StructuredContent.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, structured["success"])

	r, err = clientSession.CallTool(ctx, &sdk.CallToolParams{
		Name:      server.ToolSearchFoodProduct,
		Arguments: map[string]any{},
	})
	require.NoError(t, err)
	assert.True(t, r.IsError)

	require.NoError(t, clientSession.Close())
	require.NoError(t, serverSession.Wait())
}
