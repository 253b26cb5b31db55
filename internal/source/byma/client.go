// Package byma reads the public BYMA market-data feed: the delayed CEDEAR
// board for local prices, plus the published conversion catalog.
package byma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/agustinrios/cedearscan/internal/domain"
)

// boardCacheTTL bounds how long one board download is reused across symbols.
// The feed is delayed anyway, so a short window loses nothing.
const boardCacheTTL = 5 * time.Minute

// Client fetches the CEDEAR board from BYMA's free REST endpoint. The board
// comes back as one large array, so the client downloads it once and answers
// per-symbol lookups from an in-process copy until it goes stale. The limiter
// guards only the board download; snapshot lookups are free.
type Client struct {
	baseURL string
	http    *http.Client
	limiter domain.RateLimiter

	mu        sync.Mutex
	board     map[string]boardRow
	fetchedAt time.Time
	now       func() time.Time
}

// NewClient creates a Client for the given base URL
// ("https://open.bymadata.com.ar/vanoms-be-core/rest/api/bymadata/free").
// A nil limiter leaves board downloads unthrottled.
func NewClient(baseURL string, timeout time.Duration, limiter domain.RateLimiter) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		limiter: limiter,
		now:     time.Now,
	}
}

// boardRow is one entry of the CEDEAR board. Trade is the last traded price
// and may be zero outside session hours; ClosingPrice covers that case.
type boardRow struct {
	Symbol       string  `json:"symbol"`
	Trade        float64 `json:"trade"`
	ClosingPrice float64 `json:"closingPrice"`
}

// boardRequest is the filter payload the endpoint expects. T1 selects the
// 48-hour settlement board, which is where CEDEARs actually trade.
type boardRequest struct {
	ExcludeZeroPxAndQty bool `json:"excludeZeroPxAndQty"`
	T1                  bool `json:"T1"`
	T0                  bool `json:"T0"`
}

// Name identifies the source in logs and cache keys.
func (c *Client) Name() string { return "byma" }

// ThrottlesOwnRequests reports that the client rate-limits the board fetch
// itself, so callers must not spend a grant on per-symbol lookups.
func (c *Client) ThrottlesOwnRequests() bool { return true }

// GetQuote returns the delayed local price for symbol. The feed is public,
// so access is ignored. Last trade wins over closing price when both exist.
func (c *Client) GetQuote(ctx context.Context, symbol string, _ domain.Access) (domain.PriceQuote, error) {
	board, err := c.getBoard(ctx)
	if err != nil {
		return domain.PriceQuote{}, err
	}

	row, ok := board[strings.ToUpper(symbol)]
	if !ok {
		return domain.PriceQuote{}, fmt.Errorf("byma: %s not on board: %w", symbol, domain.ErrQuoteUnavailable)
	}

	price := row.Trade
	if price <= 0 {
		price = row.ClosingPrice
	}
	if price <= 0 {
		return domain.PriceQuote{}, fmt.Errorf("byma: %s has no usable price: %w", symbol, domain.ErrQuoteUnavailable)
	}

	return domain.PriceQuote{
		Symbol:    symbol,
		Price:     price,
		Currency:  "ARS",
		Source:    "byma",
		Timestamp: c.now(),
	}, nil
}

func (c *Client) getBoard(ctx context.Context) (map[string]boardRow, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.board != nil && c.now().Sub(c.fetchedAt) < boardCacheTTL {
		return c.board, nil
	}

	if c.limiter != nil {
		if err := c.limiter.Acquire(ctx, c.Name()); err != nil {
			return nil, fmt.Errorf("byma: rate limiter: %w", err)
		}
	}

	rows, err := c.fetchBoard(ctx)
	if err != nil {
		// A stale board beats no board when the feed is flapping.
		if c.board != nil {
			return c.board, nil
		}
		return nil, err
	}

	board := make(map[string]boardRow, len(rows))
	for _, row := range rows {
		board[strings.ToUpper(strings.TrimSpace(row.Symbol))] = row
	}
	c.board = board
	c.fetchedAt = c.now()
	return board, nil
}

func (c *Client) fetchBoard(ctx context.Context) ([]boardRow, error) {
	payload, err := json.Marshal(boardRequest{ExcludeZeroPxAndQty: true, T1: true, T0: false})
	if err != nil {
		return nil, fmt.Errorf("byma: marshal board request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/cedears", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("byma: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("byma: fetch board: %w: %v", domain.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("byma: board status %d: %s: %w",
			resp.StatusCode, string(body), domain.ErrSourceUnavailable)
	}

	var rows []boardRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("byma: decode board: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("byma: empty board: %w", domain.ErrSourceUnavailable)
	}
	return rows, nil
}

// Compile-time interface checks.
var (
	_ domain.LocalMarketQuoteSource = (*Client)(nil)
	_ domain.SelfThrottled          = (*Client)(nil)
)
