// Package rates fetches exchange rates from the open.er-api.com public API.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/expenseflow/expenseflow/internal/application/port"
	"github.com/expenseflow/expenseflow/internal/domain/apperr"
)

const defaultBaseURL = "https://open.er-api.com/v6/latest"

// Client implements port.RateSource against the exchange rate API. Every
// request carries a timeout so a slow provider cannot stall a caller; the
// normalizer above it degrades softly on any error.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// Option customizes the rate client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint, mainly for tests.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

// NewClient creates a rate client with a 10 second default timeout.
func NewClient(logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type ratesResponse struct {
	Result string             `json:"result"`
	Rates  map[string]float64 `json:"rates"`
}

// GetRate returns the conversion rate from one currency to another. The API
// only serves current rates, so asOf is used for logging, not lookup.
func (c *Client) GetRate(ctx context.Context, from, to string, asOf time.Time) (decimal.Decimal, error) {
	url := fmt.Sprintf("%s/%s", c.baseURL, from)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to build rate request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Rate provider unreachable", zap.String("from", from), zap.String("to", to), zap.Error(err))
		return decimal.Zero, apperr.ExternalUnavailable("rate provider unreachable: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("Rate provider returned non-200", zap.Int("status", resp.StatusCode), zap.String("from", from))
		return decimal.Zero, apperr.ExternalUnavailable("rate provider returned status %d", resp.StatusCode)
	}

	var body ratesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, apperr.ExternalUnavailable("invalid rate response: %v", err)
	}

	rate, ok := body.Rates[to]
	if !ok {
		return decimal.Zero, apperr.ExternalUnavailable("no rate from %s to %s as of %s", from, to, asOf.Format("2006-01-02"))
	}

	return decimal.NewFromFloat(rate), nil
}

// Verify interface compliance
var _ port.RateSource = (*Client)(nil)
