package quotes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// setupTestServer creates a new test server and a Client configured to use it.
func setupTestServer(handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)

	c := &Client{
		client:  resty.New().SetBaseURL(server.URL),
		apiKey:  "test_api_key",
		logger:  zap.NewNop(),              // Use a no-op logger for tests
		limiter: rate.NewLimiter(rate.Inf, 1), // Allow all requests in tests
	}

	return c, server
}

func TestLookup(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/stock/NET/quote", r.URL.Path)
			assert.Equal(t, "test_api_key", r.URL.Query().Get("token"))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"symbol":"NET","companyName":"Cloudflare Inc","latestPrice":123.45}`))
		})

		c, server := setupTestServer(handler)
		defer server.Close()

		quote, err := c.Lookup(context.Background(), "NET")

		assert.NoError(t, err)
		assert.Equal(t, "NET", quote.Symbol)
		assert.Equal(t, "Cloudflare Inc", quote.Name)
		assert.Equal(t, "123.45", quote.Price.String())
	})

	t.Run("SymbolNotFound", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		c, server := setupTestServer(handler)
		defer server.Close()

		_, err := c.Lookup(context.Background(), "NOPE")

		assert.ErrorIs(t, err, ErrSymbolNotFound)
	})

	t.Run("NonPositivePriceIsProviderError", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"symbol":"NET","companyName":"Cloudflare Inc","latestPrice":0}`))
		})

		c, server := setupTestServer(handler)
		defer server.Close()

		_, err := c.Lookup(context.Background(), "NET")

		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrSymbolNotFound)
	})

	t.Run("RetriesServerError", func(t *testing.T) {
		var calls int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) == 1 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"symbol":"NET","companyName":"Cloudflare Inc","latestPrice":50}`))
		})

		c, server := setupTestServer(handler)
		defer server.Close()

		quote, err := c.Lookup(context.Background(), "NET")

		assert.NoError(t, err)
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
		assert.Equal(t, "50", quote.Price.String())
	})

	t.Run("ClientErrorIsNotRetried", func(t *testing.T) {
		var calls int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusForbidden)
		})

		c, server := setupTestServer(handler)
		defer server.Close()

		_, err := c.Lookup(context.Background(), "NET")

		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrSymbolNotFound)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})
}
