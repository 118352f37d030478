package offclient_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"mcp-diet-check/internal/errors"
	"mcp-diet-check/internal/offclient"
)

func newServer(t *testing.T, h http.HandlerFunc) *offclient.Client {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	return offclient.NewClient(offclient.Config{
		BaseURL:   srv.URL,
		UserAgent: "DietCheckTest/1.0",
		Timeout:   500 * time.Millisecond,
		PageSize:  20,
	})
}

func TestSearch(t *testing.T) {
	t.Parallel()

	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cgi/search.pl", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "peanut butter", q.Get("search_terms"))
		assert.Equal(t, "1", q.Get("search_simple"))
		assert.Equal(t, "process", q.Get("action"))
		assert.Equal(t, "1", q.Get("json"))
		assert.Equal(t, "20", q.Get("page_size"))
		assert.Equal(t, "DietCheckTest/1.0", r.Header.Get("User-Agent"))

		_, _ = w.Write([]byte(`{"count": 2, "products": [{"code": "1", "product_name": "A"}, {"code": "2"}]}`))
	})

	recs, err := c.Search(t.Context(), "peanut butter")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "A", gjson.GetBytes(recs[0], "product_name").String())
	assert.Equal(t, "2", gjson.GetBytes(recs[1], "code").String())
}

func TestSearch_NoProducts(t *testing.T) {
	t.Parallel()

	c := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"count": 0, "products": []}`))
	})

	recs, err := c.Search(t.Context(), "zzzz")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestSearch_Failures(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		handler http.HandlerFunc
		code    errors.ErrorCode
	}{
		"server error": {
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "maintenance", http.StatusServiceUnavailable)
			},
			code: errors.ErrCodeService,
		},
		"invalid json": {
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`<html>oops</html>`))
			},
			code: errors.ErrCodeService,
		},
		"products not a list": {
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"products": "none"}`))
			},
			code: errors.ErrCodeService,
		},
		"timeout": {
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			},
			code: errors.ErrCodeTimeout,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			c := newServer(t, tc.handler)
			_, err := c.Search(t.Context(), "milk")
			require.Error(t, err)
			assert.Equal(t, tc.code, errors.CodeOf(err))
			assert.True(t, errors.IsServiceError(err))
		})
	}
}

func TestProduct(t *testing.T) {
	t.Parallel()

	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v0/product/3017620422003.json":
			_, _ = w.Write([]byte(`{"status": 1, "product": {"code": "3017620422003", "product_name": "Nutella"}}`))
		case "/api/v0/product/404.json":
			http.NotFound(w, r)
		default:
			_, _ = w.Write([]byte(`{"status": 0, "status_verbose": "product not found"}`))
		}
	})

	rec, err := c.Product(t.Context(), "3017620422003")
	require.NoError(t, err)
	assert.Equal(t, "Nutella", gjson.GetBytes(rec, "product_name").String())

	for _, barcode := range []string{"0000", "404"} {
		_, err = c.Product(t.Context(), barcode)
		require.Error(t, err, barcode)
		assert.True(t, errors.IsNotFound(err), barcode)
	}
}

func TestRateLimitedClientStillServes(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"products": []}`))
	}))
	t.Cleanup(srv.Close)

	c := offclient.NewClient(offclient.Config{BaseURL: srv.URL, RequestsPerMinute: 600, Burst: 2})
	for range 2 {
		_, err := c.Search(t.Context(), "bread")
		require.NoError(t, err)
	}
}
