package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"paper-trade-go/internal/config"
)

// ErrSymbolNotFound is returned when the provider does not know the symbol.
// It is distinct from transport or server errors so callers can reject the
// symbol instead of reporting an outage.
var ErrSymbolNotFound = errors.New("symbol not found")

// Quote is a point-in-time price snapshot for one symbol.
type Quote struct {
	Symbol string
	Name   string
	Price  decimal.Decimal
}

// Service defines the lookup contract the portfolio engine depends on.
type Service interface {
	Lookup(ctx context.Context, symbol string) (*Quote, error)
}

// Client is a quote provider client over an IEX-style REST API.
// It implements the Service interface.
type Client struct {
	client  *resty.Client
	apiKey  string
	logger  *zap.Logger
	limiter *rate.Limiter
}

// ensure Client implements the interface
var _ Service = (*Client)(nil)

// NewClient creates a new quote provider client.
func NewClient(cfg *config.Quotes, logger *zap.Logger) *Client {
	client := resty.New().SetBaseURL(cfg.BaseURL)

	// rate.Limit is requests per second.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &Client{
		client:  client,
		apiKey:  cfg.ApiKey,
		logger:  logger,
		limiter: limiter,
	}
}

// quoteResponse mirrors the provider's quote payload.
type quoteResponse struct {
	Symbol      string      `json:"symbol"`
	CompanyName string      `json:"companyName"`
	LatestPrice json.Number `json:"latestPrice"`
}

// Lookup fetches the current quote for a symbol.
func (c *Client) Lookup(ctx context.Context, symbol string) (*Quote, error) {
	req := c.client.R().
		SetContext(ctx).
		SetResult(&quoteResponse{}).
		SetQueryParam("token", c.apiKey).
		SetHeader("Accept", "application/json")

	resp, err := c.doRequest(ctx, "GET", fmt.Sprintf("/stock/%s/quote", symbol), req)
	if err != nil {
		if errors.Is(err, ErrSymbolNotFound) {
			return nil, ErrSymbolNotFound
		}
		c.logger.Error("Quote lookup failed", zap.String("symbol", symbol), zap.Error(err))
		return nil, fmt.Errorf("failed to look up quote for %s: %w", symbol, err)
	}

	result := resp.Result().(*quoteResponse)
	price, err := decimal.NewFromString(result.LatestPrice.String())
	if err != nil {
		return nil, fmt.Errorf("provider returned malformed price %q for %s: %w", result.LatestPrice, symbol, err)
	}
	if !price.IsPositive() {
		return nil, fmt.Errorf("provider returned non-positive price %s for %s", price, symbol)
	}

	return &Quote{
		Symbol: result.Symbol,
		Name:   result.CompanyName,
		Price:  price,
	}, nil
}

// doRequest handles the actual request execution with rate limiting and retry logic.
func (c *Client) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	const maxRetries = 3

	for i := 0; i < maxRetries; i++ {
		// Wait for the rate limiter
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
		resp, err = req.Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil // Success
		}

		// Analyze error and decide whether to retry
		shouldRetry := false
		var retryAfter time.Duration

		if resp != nil && err == nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusNotFound {
				// Unknown symbol, never retried.
				return nil, ErrSymbolNotFound
			}
			if statusCode == http.StatusTooManyRequests {
				shouldRetry = true
				retryAfterHeader := resp.Header().Get("Retry-After")
				if seconds, err := strconv.Atoi(retryAfterHeader); err == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 { // Server errors
				shouldRetry = true
			}
		} else { // Network or other client-side errors
			shouldRetry = true
		}

		if !shouldRetry {
			return nil, fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
		}

		// If we should retry, calculate wait time
		if retryAfter == 0 {
			// Exponential backoff: 1s, 2s, 4s
			retryAfter = time.Duration(math.Pow(2, float64(i))) * time.Second
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err == nil && resp != nil {
		err = fmt.Errorf("status %s", resp.Status())
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}
