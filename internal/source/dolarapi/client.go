// Package dolarapi implements the primary FX proxy rate source on top of the
// public dolarapi.com feed.
package dolarapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/agustinrios/cedearscan/internal/domain"
)

// Client is a thin HTTP client for dolarapi.com.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client for the given base URL ("https://dolarapi.com/v1").
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// rateResponse is the JSON shape of a dolarapi quote.
type rateResponse struct {
	Nombre             string  `json:"nombre"`
	Compra             float64 `json:"compra"`
	Venta              float64 `json:"venta"`
	FechaActualizacion string  `json:"fechaActualizacion"`
}

// GetCCL fetches the CCL (contado con liquidación) rate.
func (c *Client) GetCCL(ctx context.Context) (domain.FXRate, error) {
	return c.getRate(ctx, "/dolares/contadoconliqui", "dolarapi_ccl")
}

// GetMEP fetches the MEP (bolsa) rate. Recorded for rate history; not used in
// the arbitrage formula.
func (c *Client) GetMEP(ctx context.Context) (domain.FXRate, error) {
	return c.getRate(ctx, "/dolares/bolsa", "dolarapi_mep")
}

func (c *Client) getRate(ctx context.Context, path, sourceName string) (domain.FXRate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return domain.FXRate{}, fmt.Errorf("dolarapi: create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.FXRate{}, fmt.Errorf("dolarapi: %s: %w: %v", sourceName, domain.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.FXRate{}, fmt.Errorf("dolarapi: %s: status %d: %s: %w",
			sourceName, resp.StatusCode, string(body), domain.ErrSourceUnavailable)
	}

	var data rateResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return domain.FXRate{}, fmt.Errorf("dolarapi: %s: decode: %w", sourceName, err)
	}
	if data.Venta <= 0 {
		return domain.FXRate{}, fmt.Errorf("dolarapi: %s: invalid sell price %v: %w",
			sourceName, data.Venta, domain.ErrSourceUnavailable)
	}

	return domain.FXRate{
		Rate:      data.Venta,
		Source:    sourceName,
		Timestamp: time.Now(),
	}, nil
}

// CCLSource adapts the CCL endpoint to domain.FXRateSource.
type CCLSource struct {
	client *Client
}

// NewCCLSource creates the FX source for the resolver cascade.
func NewCCLSource(client *Client) *CCLSource {
	return &CCLSource{client: client}
}

// Name identifies the source in logs and cache keys.
func (s *CCLSource) Name() string { return "dolarapi_ccl" }

// GetRate fetches the CCL rate. The public feed needs no session, so access
// is ignored.
func (s *CCLSource) GetRate(ctx context.Context, _ domain.Access) (domain.FXRate, error) {
	return s.client.GetCCL(ctx)
}

// Compile-time interface check.
var _ domain.FXRateSource = (*CCLSource)(nil)
