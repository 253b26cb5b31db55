// Package catalog implements the read-only conversion catalog: the
// symbol → (conversion ratio, underlying symbol) lookup behind every
// evaluation. The catalog is loaded once at startup from a provider and never
// mutated afterwards.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/agustinrios/cedearscan/internal/domain"
)

// Catalog implements domain.Catalog over an in-memory map. Lookups are
// case-insensitive on the receipt symbol.
type Catalog struct {
	mu          sync.RWMutex
	instruments map[string]domain.Instrument
}

// Load builds a Catalog by invoking the provider once. A provider failure is
// returned to the caller and should be treated as fatal; the scanner cannot
// evaluate anything without conversion metadata.
func Load(ctx context.Context, provider domain.CatalogProvider, logger *slog.Logger) (*Catalog, error) {
	instruments, err := provider.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: load: %w", err)
	}
	if len(instruments) == 0 {
		return nil, fmt.Errorf("catalog: provider returned no instruments")
	}

	normalized := make(map[string]domain.Instrument, len(instruments))
	for sym, inst := range instruments {
		key := normalizeSymbol(sym)
		if key == "" {
			continue
		}
		if inst.ConversionRatio <= 0 {
			logger.Warn("catalog: skipping instrument with invalid ratio",
				slog.String("symbol", sym),
				slog.Float64("ratio", inst.ConversionRatio),
			)
			continue
		}
		normalized[key] = inst
	}

	logger.Info("catalog loaded", slog.Int("instruments", len(normalized)))

	return &Catalog{instruments: normalized}, nil
}

// Lookup returns the instrument for symbol or domain.ErrUnknownSymbol.
func (c *Catalog) Lookup(symbol string) (domain.Instrument, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	inst, ok := c.instruments[normalizeSymbol(symbol)]
	if !ok {
		return domain.Instrument{}, fmt.Errorf("catalog: %q: %w", symbol, domain.ErrUnknownSymbol)
	}
	return inst, nil
}

// Symbols returns every known receipt symbol, sorted.
func (c *Catalog) Symbols() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, 0, len(c.instruments))
	for sym := range c.instruments {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ParseRatio converts a catalog ratio string to the number of local receipts
// per one underlying share. "10:1" yields 10; a bare "5" yields 5. Malformed
// input is an error rather than a silent 1:1 so bad catalog rows surface at
// load time.
func ParseRatio(ratio string) (float64, error) {
	s := strings.TrimSpace(ratio)
	if s == "" {
		return 0, fmt.Errorf("catalog: empty ratio")
	}

	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}

	var v float64
	if _, err := fmt.Sscanf(s, "%f", &v); err != nil {
		return 0, fmt.Errorf("catalog: malformed ratio %q: %w", ratio, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("catalog: non-positive ratio %q", ratio)
	}
	return v, nil
}

// Compile-time interface check.
var _ domain.Catalog = (*Catalog)(nil)
