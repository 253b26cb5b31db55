// Package finnhub implements the international quote source against the
// Finnhub REST API.
package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/agustinrios/cedearscan/internal/domain"
)

// Client fetches US-market quotes from Finnhub.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates a Client for the given base URL ("https://finnhub.io/api/v1")
// and API key.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// quoteResponse is the JSON shape of /quote. Finnhub returns c=0 for unknown
// symbols instead of an error status.
type quoteResponse struct {
	Current       float64 `json:"c"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	Open          float64 `json:"o"`
	PreviousClose float64 `json:"pc"`
}

// Name identifies the source in logs and cache keys.
func (c *Client) Name() string { return "finnhub" }

// GetQuote fetches the current USD price for symbol.
func (c *Client) GetQuote(ctx context.Context, symbol string) (domain.PriceQuote, error) {
	endpoint := fmt.Sprintf("%s/quote?symbol=%s&token=%s",
		c.baseURL, url.QueryEscape(symbol), url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("finnhub: create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("finnhub: %s: %w: %v", symbol, domain.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return domain.PriceQuote{}, fmt.Errorf("finnhub: %s: %w", symbol, domain.ErrRateLimited)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return domain.PriceQuote{}, fmt.Errorf("finnhub: %s: status %d: %w",
			symbol, resp.StatusCode, domain.ErrUnauthenticated)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.PriceQuote{}, fmt.Errorf("finnhub: %s: status %d: %s: %w",
			symbol, resp.StatusCode, string(body), domain.ErrSourceUnavailable)
	}

	var data quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return domain.PriceQuote{}, fmt.Errorf("finnhub: %s: decode: %w", symbol, err)
	}
	if data.Current <= 0 {
		return domain.PriceQuote{}, fmt.Errorf("finnhub: %s: no quote (c=%v): %w",
			symbol, data.Current, domain.ErrQuoteUnavailable)
	}

	return domain.PriceQuote{
		Symbol:    symbol,
		Price:     data.Current,
		Currency:  "USD",
		Source:    "finnhub",
		Timestamp: time.Now(),
	}, nil
}

// Compile-time interface check.
var _ domain.InternationalQuoteSource = (*Client)(nil)
