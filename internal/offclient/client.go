// internal/offclient/client.go
package offclient

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"mcp-diet-check/internal/errors"
	"mcp-diet-check/internal/log"
)

const (
	DefaultBaseURL   = "https://world.openfoodfacts.org"
	DefaultUserAgent = "DietCheck/1.0 (dietary safety assistant)"
	DefaultTimeout   = 10 * time.Second
	DefaultPageSize  = 50

	// maxErrorBody bounds how much of a failed response ends up in an error.
	maxErrorBody = 512
)

// Config configures a [Client]. Zero fields take the defaults above;
// RequestsPerMinute of zero disables pacing.
type Config struct {
	BaseURL           string
	UserAgent         string
	Timeout           time.Duration
	RequestsPerMinute int
	Burst             int
	PageSize          int
}

// Client fetches raw product records from Open Food Facts. Each request has
// a single fixed timeout and is never retried.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
	pageSize   int
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerMinute > 0 {
		burst := max(cfg.Burst, 1)
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), burst)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		limiter:   limiter,
		pageSize:  cfg.PageSize,
	}
}

// Search returns the raw records matching query, in upstream ranking order.
// An empty slice means the search matched nothing.
func (c *Client) Search(ctx context.Context, query string) ([]json.RawMessage, error) {
	params := url.Values{}
	params.Set("search_terms", query)
	params.Set("search_simple", "1")
	params.Set("action", "process")
	params.Set("json", "1")
	params.Set("page_size", fmt.Sprint(c.pageSize))

	body, err := c.get(ctx, endpointSearch, c.baseURL+"/cgi/search.pl?"+params.Encode())
	if err != nil {
		return nil, err
	}

	products := gjson.GetBytes(body, "products")
	if products.Exists() && !products.IsArray() {
		return nil, c.fail(endpointSearch, errors.New(errors.ErrCodeService, "unexpected search response format"))
	}

	var out []json.RawMessage
	products.ForEach(func(_, rec gjson.Result) bool {
		out = append(out, json.RawMessage(rec.Raw))
		return true
	})

	log.WithContext(ctx).DebugContext(ctx, "food database search done",
		"query", query,
		"candidates", len(out),
	)
	observe(endpointSearch, outcomeOK)

	return out, nil
}

// Product returns the raw record for barcode. An unknown barcode yields an
// error with code NOT_FOUND.
func (c *Client) Product(ctx context.Context, barcode string) (json.RawMessage, error) {
	endpoint := fmt.Sprintf("%s/api/v0/product/%s.json", c.baseURL, url.PathEscape(barcode))

	body, err := c.get(ctx, endpointProduct, endpoint)
	if err != nil {
		return nil, err
	}

	if gjson.GetBytes(body, "status").Int() != 1 {
		observe(endpointProduct, outcomeNotFound)
		return nil, errors.NewWithContext(errors.ErrCodeNotFound,
			fmt.Sprintf("no product found for barcode %s", barcode),
			map[string]any{"barcode": barcode})
	}

	rec := gjson.GetBytes(body, "product")
	if !rec.IsObject() {
		return nil, c.fail(endpointProduct, errors.New(errors.ErrCodeService, "unexpected product response format"))
	}

	observe(endpointProduct, outcomeOK)

	return json.RawMessage(rec.Raw), nil
}

func (c *Client) get(ctx context.Context, endpoint, target string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, c.fail(endpoint, errors.Wrap(errors.ErrCodeTimeout, "food database request was cancelled", err))
	}

	start := time.Now()
	defer func() { requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, c.fail(endpoint, errors.Wrap(errors.ErrCodeInternal, "failed to create HTTP request", err))
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, c.fail(endpoint, errors.WrapWithContext(errors.ErrCodeTimeout,
				"food database request timed out", err, map[string]any{"endpoint": endpoint}))
		}
		return nil, c.fail(endpoint, errors.WrapWithContext(errors.ErrCodeService,
			"food database request failed", err, map[string]any{"endpoint": endpoint}))
	}
	defer resp.Body.Close()

	// The product API answers 404 for some unknown barcodes.
	if endpoint == endpointProduct && resp.StatusCode == http.StatusNotFound {
		return []byte(`{"status":0}`), nil
	}

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, c.fail(endpoint, errors.NewWithContext(errors.ErrCodeService,
			fmt.Sprintf("food database request failed with status %d", resp.StatusCode),
			map[string]any{"status": resp.StatusCode, "body": strings.TrimSpace(string(bodyBytes))}))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return nil, c.fail(endpoint, errors.Wrap(errors.ErrCodeTimeout, "food database request timed out", err))
		}
		return nil, c.fail(endpoint, errors.Wrap(errors.ErrCodeService, "failed to read food database response", err))
	}
	if !gjson.ValidBytes(body) {
		return nil, c.fail(endpoint, errors.New(errors.ErrCodeService, "food database returned invalid JSON"))
	}

	return body, nil
}

func (c *Client) fail(endpoint string, err *errors.StructuredError) error {
	outcome := outcomeError
	if err.Code == errors.ErrCodeTimeout {
		outcome = outcomeTimeout
	}
	observe(endpoint, outcome)
	return err
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	if stderrors.As(err, &te) && te.Timeout() {
		return true
	}
	return stderrors.Is(err, context.DeadlineExceeded)
}
