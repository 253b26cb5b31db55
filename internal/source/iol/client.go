// Package iol integrates the InvertirOnline broker API: authenticated local
// receipt quotes, bond quotes, and the AL30/AL30D implied FX rate.
package iol

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/agustinrios/cedearscan/internal/domain"
)

// Client is an HTTP client for the broker's v2 market-data API. Every call
// requires an authenticated session; the client itself holds no token state.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client for the given base URL
// ("https://api.invertironline.com").
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// Name identifies the source in logs and quote attribution.
func (c *Client) Name() string { return "iol" }

// quoteResponse is the JSON shape of a Cotizacion response. Only the last
// trade price is consumed.
type quoteResponse struct {
	UltimoPrecio float64 `json:"ultimoPrecio"`
}

// GetQuote fetches the latest local-currency price for a receipt traded on
// BCBA. It fails with domain.ErrUnauthenticated when access carries no valid
// session.
func (c *Client) GetQuote(ctx context.Context, symbol string, access domain.Access) (domain.PriceQuote, error) {
	session, ok := domain.SessionFrom(access)
	if !ok {
		return domain.PriceQuote{}, fmt.Errorf("iol: quote %s: %w", symbol, domain.ErrUnauthenticated)
	}

	price, err := c.fetchPrice(ctx, symbol, session)
	if err != nil {
		return domain.PriceQuote{}, err
	}

	return domain.PriceQuote{
		Symbol:    symbol,
		Price:     price,
		Currency:  "ARS",
		Source:    c.Name(),
		Timestamp: time.Now(),
	}, nil
}

// RequiresSession reports that the broker API only serves authenticated
// sessions, letting resolvers skip it entirely in unauthenticated runs.
func (c *Client) RequiresSession() bool { return true }

// GetBondPrice fetches the last trade price for a BCBA-listed bond. Used by
// the AL30 implied FX source.
func (c *Client) GetBondPrice(ctx context.Context, symbol string, session domain.Session) (float64, error) {
	return c.fetchPrice(ctx, symbol, session)
}

func (c *Client) fetchPrice(ctx context.Context, symbol string, session domain.Session) (float64, error) {
	url := fmt.Sprintf("%s/api/v2/bCBA/Titulos/%s/Cotizacion", c.baseURL, symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("iol: create request %s: %w", symbol, err)
	}
	req.Header.Set("Authorization", "Bearer "+session.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("iol: quote %s: %w: %v", symbol, domain.ErrQuoteUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return 0, fmt.Errorf("iol: quote %s: status %d: %w", symbol, resp.StatusCode, domain.ErrUnauthenticated)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("iol: quote %s: status %d: %s: %w",
			symbol, resp.StatusCode, string(body), domain.ErrQuoteUnavailable)
	}

	var data quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return 0, fmt.Errorf("iol: decode quote %s: %w", symbol, err)
	}
	if data.UltimoPrecio <= 0 {
		return 0, fmt.Errorf("iol: quote %s: invalid price %v: %w",
			symbol, data.UltimoPrecio, domain.ErrQuoteUnavailable)
	}
	return data.UltimoPrecio, nil
}

// Compile-time interface checks.
var (
	_ domain.LocalMarketQuoteSource = (*Client)(nil)
	_ domain.SessionGated           = (*Client)(nil)
)
