package byma

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/agustinrios/cedearscan/internal/catalog"
	"github.com/agustinrios/cedearscan/internal/domain"
)

// catalogEntry is one row of the published conversion catalog. The underlying
// ticker defaults to the local symbol when the publisher omits it.
type catalogEntry struct {
	Symbol           string `json:"symbol"`
	CompanyName      string `json:"company_name"`
	Ratio            string `json:"ratio"`
	UnderlyingSymbol string `json:"underlying_symbol"`
}

// CatalogProvider loads the conversion catalog from a local JSON file or an
// HTTP URL, whichever the configured path looks like.
type CatalogProvider struct {
	path string
	http *http.Client
}

// NewCatalogProvider creates a provider for the given file path or URL.
func NewCatalogProvider(path string, timeout time.Duration) *CatalogProvider {
	return &CatalogProvider{
		path: path,
		http: &http.Client{Timeout: timeout},
	}
}

// LoadAll reads and parses the full catalog. Rows with malformed ratios are
// surfaced as-is via a non-positive ConversionRatio so the caller decides
// whether to skip them.
func (p *CatalogProvider) LoadAll(ctx context.Context) (map[string]domain.Instrument, error) {
	raw, err := p.read(ctx)
	if err != nil {
		return nil, err
	}

	var entries []catalogEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("byma: parse catalog %s: %w", p.path, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("byma: catalog %s is empty", p.path)
	}

	instruments := make(map[string]domain.Instrument, len(entries))
	for _, entry := range entries {
		symbol := strings.ToUpper(strings.TrimSpace(entry.Symbol))
		if symbol == "" {
			continue
		}

		underlying := strings.ToUpper(strings.TrimSpace(entry.UnderlyingSymbol))
		if underlying == "" {
			underlying = symbol
		}

		ratio, err := catalog.ParseRatio(entry.Ratio)
		if err != nil {
			ratio = 0
		}

		instruments[symbol] = domain.Instrument{
			Symbol:           symbol,
			UnderlyingSymbol: underlying,
			ConversionRatio:  ratio,
			Name:             strings.TrimSpace(entry.CompanyName),
		}
	}
	return instruments, nil
}

func (p *CatalogProvider) read(ctx context.Context) ([]byte, error) {
	if strings.HasPrefix(p.path, "http://") || strings.HasPrefix(p.path, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.path, nil)
		if err != nil {
			return nil, fmt.Errorf("byma: create catalog request: %w", err)
		}
		resp, err := p.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("byma: fetch catalog: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("byma: catalog status %d", resp.StatusCode)
		}
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("byma: read catalog response: %w", err)
		}
		return raw, nil
	}

	raw, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("byma: read catalog: %w", err)
	}
	return raw, nil
}

// Compile-time interface check.
var _ domain.CatalogProvider = (*CatalogProvider)(nil)
