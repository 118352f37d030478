// internal/pipeline/pipeline.go

// Package pipeline runs searches and lookups against the food database.
//
// A search fetches candidates, extracts their nutrients, drops those outside
// the effective constraint set, evaluates the rest against the profile and
// keeps the upstream ranking. Safe-only search additionally keeps only SAFE
// entries. A lookup evaluates one product with no range filtering.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"mcp-diet-check/internal/errors"
	"mcp-diet-check/internal/filter"
	"mcp-diet-check/internal/log"
	"mcp-diet-check/internal/models"
	"mcp-diet-check/internal/nutrients"
	"mcp-diet-check/internal/rules"
)

// Catalog is the food database.
type Catalog interface {
	Search(ctx context.Context, query string) ([]json.RawMessage, error)
	Product(ctx context.Context, barcode string) (json.RawMessage, error)
}

// SafeOnlyMode says what safe-only search does when no profile is set.
type SafeOnlyMode string

const (
	// SafeOnlyUnrestricted behaves exactly like annotated search.
	SafeOnlyUnrestricted SafeOnlyMode = "unrestricted"
	// SafeOnlyError fails the request.
	SafeOnlyError SafeOnlyMode = "error"
	// SafeOnlyEmpty answers with no entries.
	SafeOnlyEmpty SafeOnlyMode = "empty"
)

var AllSafeOnlyModes = []string{string(SafeOnlyUnrestricted), string(SafeOnlyError), string(SafeOnlyEmpty)}

// ParseSafeOnlyMode validates a configured mode.
func ParseSafeOnlyMode(s string) (SafeOnlyMode, error) {
	switch m := SafeOnlyMode(strings.ToLower(strings.TrimSpace(s))); m {
	case SafeOnlyUnrestricted, SafeOnlyError, SafeOnlyEmpty:
		return m, nil
	case "":
		return SafeOnlyUnrestricted, nil
	default:
		return "", fmt.Errorf("unknown safe-only mode %q", s)
	}
}

type Options struct {
	// MaxChecked caps how many candidates are considered per search.
	MaxChecked int
	// MaxResults caps how many entries a search returns.
	MaxResults int
	// ReasonsPerEntry caps the violation reasons shown per search entry.
	ReasonsPerEntry int
	// Workers bounds per-candidate parallelism.
	Workers int
	// SafeOnlyWithoutProfile applies to safe-only search with no profile.
	SafeOnlyWithoutProfile SafeOnlyMode
}

// DefaultOptions returns the built-in caps.
func DefaultOptions() Options {
	return Options{
		MaxChecked:             50,
		MaxResults:             10,
		ReasonsPerEntry:        3,
		Workers:                4,
		SafeOnlyWithoutProfile: SafeOnlyUnrestricted,
	}
}

type Pipeline struct {
	catalog   Catalog
	evaluator *rules.Evaluator
	opts      Options
}

func New(catalog Catalog, evaluator *rules.Evaluator, opts Options) *Pipeline {
	def := DefaultOptions()
	if opts.MaxChecked <= 0 {
		opts.MaxChecked = def.MaxChecked
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = def.MaxResults
	}
	if opts.ReasonsPerEntry <= 0 {
		opts.ReasonsPerEntry = def.ReasonsPerEntry
	}
	if opts.Workers <= 0 {
		opts.Workers = def.Workers
	}
	if opts.SafeOnlyWithoutProfile == "" {
		opts.SafeOnlyWithoutProfile = def.SafeOnlyWithoutProfile
	}
	return &Pipeline{catalog: catalog, evaluator: evaluator, opts: opts}
}

// Entry is one product in a result with its verdict.
type Entry struct {
	Product models.Product       `json:"product"`
	URL     string               `json:"url"`
	Verdict models.SafetyVerdict `json:"verdict"`
}

// SearchResult is the outcome of a search.
type SearchResult struct {
	Query   string   `json:"query"`
	Filters []string `json:"filters,omitempty"`
	Entries []Entry  `json:"entries"`
	// Candidates is how many records the food database returned.
	Candidates int `json:"candidates"`
	// Checked is how many candidates were considered.
	Checked int `json:"checked"`
	// FilteredOut counts candidates dropped by the constraint set.
	FilteredOut int `json:"filtered_out"`
	// Truncated counts passing candidates beyond the result cap.
	Truncated int `json:"truncated"`
	// HiddenUnsafe counts entries a safe-only search left out.
	HiddenUnsafe   int    `json:"hidden_unsafe,omitempty"`
	SafeOnly       bool   `json:"safe_only"`
	ProfileApplied bool   `json:"profile_applied"`
	ProfileName    string `json:"profile_name,omitempty"`
	Message        string `json:"-"`
}

// Found reports whether the result has any entries.
func (r *SearchResult) Found() bool {
	return len(r.Entries) > 0
}

// LookupResult is the outcome of a barcode lookup.
type LookupResult struct {
	Barcode        string `json:"barcode"`
	Found          bool   `json:"found"`
	Entry          *Entry `json:"entry,omitempty"`
	ProfileApplied bool   `json:"profile_applied"`
	Message        string `json:"-"`
}

// Search runs an annotated search. prof may be nil.
func (p *Pipeline) Search(ctx context.Context, query string, args map[string]any, prof *models.DietaryProfile) (*SearchResult, error) {
	return p.search(ctx, query, args, prof, false)
}

// KnownCondition reports whether medical condition rules exist for condition.
func (p *Pipeline) KnownCondition(condition string) bool {
	return p.evaluator.KnownCondition(condition)
}

// SafeOnly runs a search that keeps only SAFE entries. With no profile it
// follows the configured [SafeOnlyMode].
func (p *Pipeline) SafeOnly(ctx context.Context, query string, args map[string]any, prof *models.DietaryProfile) (*SearchResult, error) {
	if prof == nil {
		switch p.opts.SafeOnlyWithoutProfile {
		case SafeOnlyError:
			return nil, errors.New(errors.ErrCodeInvalidRequest,
				"No user profile is set, so safe-only search has nothing to filter on. Use set_user_profile first or use search_food_product.")
		case SafeOnlyEmpty:
			res := &SearchResult{Query: strings.TrimSpace(query), Entries: []Entry{}, SafeOnly: true}
			res.Message = renderSafeOnlyNoProfile(res)
			return res, nil
		}
	}
	return p.search(ctx, query, args, prof, true)
}

type candidate struct {
	product models.Product
	passed  bool
	reason  string
	verdict models.SafetyVerdict
}

func (p *Pipeline) search(ctx context.Context, query string, args map[string]any, prof *models.DietaryProfile, safeOnly bool) (*SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New(errors.ErrCodeInvalidRequest, "Product name parameter is required.")
	}

	logger := log.WithContext(ctx)
	params := filter.ParseParams(args)
	// Request filters only decide which candidates are evaluated; verdicts
	// use the profile's own limits, as a lookup does.
	cs := filter.Compile(params, prof)
	limits := filter.ForProfile(prof)

	recs, err := p.catalog.Search(ctx, query)
	if err != nil {
		logger.ErrorContext(ctx, "failed to search products", "query", query, "err", err)
		return nil, err
	}

	res := &SearchResult{
		Query:          query,
		Filters:        filter.Summary(cs),
		Entries:        []Entry{},
		Candidates:     len(recs),
		SafeOnly:       safeOnly,
		ProfileApplied: prof != nil,
	}
	if prof != nil {
		res.ProfileName = prof.DisplayName()
	}

	if len(recs) > p.opts.MaxChecked {
		recs = recs[:p.opts.MaxChecked]
	}
	res.Checked = len(recs)

	candidates := make([]candidate, len(recs))

	var g errgroup.Group
	g.SetLimit(p.opts.Workers)
	for i, rec := range recs {
		g.Go(func() error {
			c := candidate{product: nutrients.Extract(rec)}
			c.passed, c.reason = filter.Check(c.product, cs)
			if c.passed {
				c.verdict = p.evaluator.Evaluate(c.product, prof, limits)
			}
			candidates[i] = c
			return nil
		})
	}
	_ = g.Wait()

	for _, c := range candidates {
		if !c.passed {
			res.FilteredOut++
			logger.DebugContext(ctx, "candidate filtered out",
				"barcode", c.product.Barcode,
				"reason", c.reason,
			)
			continue
		}
		if len(res.Entries) >= p.opts.MaxResults {
			res.Truncated++
			continue
		}
		res.Entries = append(res.Entries, newEntry(c.product, c.verdict))
	}

	for _, e := range res.Entries {
		observeVerdict(e.Verdict.Classification)
	}

	if safeOnly && prof != nil {
		kept := make([]Entry, 0, len(res.Entries))
		for _, e := range res.Entries {
			if e.Verdict.Classification == models.Safe {
				kept = append(kept, e)
			}
		}
		res.HiddenUnsafe = len(res.Entries) - len(kept)
		res.Entries = kept
	}

	if safeOnly && prof != nil {
		res.Message = renderSafeOnly(res, prof, p.opts.ReasonsPerEntry)
	} else {
		res.Message = renderSearch(res, p.opts.ReasonsPerEntry)
	}

	logger.InfoContext(ctx, "product search done",
		"query", query,
		"checked", res.Checked,
		"filtered_out", res.FilteredOut,
		"entries", len(res.Entries),
		"safe_only", safeOnly,
		"request_filters", !params.IsEmpty(),
	)

	return res, nil
}

// Lookup evaluates the product with barcode against prof, which may be nil.
// An unknown barcode is reported as a result with Found false.
func (p *Pipeline) Lookup(ctx context.Context, barcode string, prof *models.DietaryProfile) (*LookupResult, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, errors.New(errors.ErrCodeInvalidRequest, "Barcode parameter is required.")
	}

	logger := log.WithContext(ctx)
	res := &LookupResult{Barcode: barcode, ProfileApplied: prof != nil}

	rec, err := p.catalog.Product(ctx, barcode)
	if errors.IsNotFound(err) {
		logger.InfoContext(ctx, "product not found", "barcode", barcode)
		res.Message = fmt.Sprintf("Product with barcode '%s' not found.", barcode)
		return res, nil
	}
	if err != nil {
		logger.ErrorContext(ctx, "failed to retrieve product data", "barcode", barcode, "err", err)
		return nil, err
	}

	product := nutrients.Extract(rec)
	if product.Barcode == "" {
		product.Barcode = barcode
	}
	verdict := p.evaluator.Evaluate(product, prof, filter.ForProfile(prof))
	observeVerdict(verdict.Classification)

	entry := newEntry(product, verdict)
	res.Found = true
	res.Entry = &entry
	res.Message = renderLookup(res)

	return res, nil
}

func newEntry(p models.Product, v models.SafetyVerdict) Entry {
	p.Name = cleanText(p.Name, "Unknown Product")
	p.Brand = cleanText(p.Brand, "Unknown Brand")
	return Entry{Product: p, URL: ProductURL(p.Barcode), Verdict: v}
}

// ProductURL is the public page of a product.
func ProductURL(barcode string) string {
	return "https://world.openfoodfacts.org/product/" + barcode
}
