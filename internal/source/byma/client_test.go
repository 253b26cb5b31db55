package byma

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agustinrios/cedearscan/internal/domain"
)

func boardServer(t *testing.T, rows []map[string]any, hits *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cedears" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req["excludeZeroPxAndQty"] != true || req["T1"] != true || req["T0"] != false {
			t.Errorf("board filter = %v", req)
		}
		if hits != nil {
			*hits++
		}
		json.NewEncoder(w).Encode(rows)
	}))
}

func TestClient_GetQuote_PrefersTrade(t *testing.T) {
	server := boardServer(t, []map[string]any{
		{"symbol": "TSLA", "trade": 3847.0, "closingPrice": 3800.0},
		{"symbol": "AAPL", "trade": 0.0, "closingPrice": 15230.5},
	}, nil)
	defer server.Close()

	c := NewClient(server.URL, 5*time.Second, nil)

	quote, err := c.GetQuote(context.Background(), "TSLA", domain.Unauthenticated{})
	if err != nil {
		t.Fatalf("GetQuote TSLA: %v", err)
	}
	if quote.Price != 3847.0 {
		t.Errorf("TSLA price = %v, want last trade", quote.Price)
	}
	if quote.Source != "byma" || quote.Currency != "ARS" {
		t.Errorf("quote = %+v", quote)
	}

	// No trade today falls back to the closing price.
	quote, err = c.GetQuote(context.Background(), "aapl", domain.Unauthenticated{})
	if err != nil {
		t.Fatalf("GetQuote AAPL: %v", err)
	}
	if quote.Price != 15230.5 {
		t.Errorf("AAPL price = %v, want closing price", quote.Price)
	}
}

func TestClient_GetQuote_BoardReuse(t *testing.T) {
	hits := 0
	server := boardServer(t, []map[string]any{
		{"symbol": "TSLA", "trade": 3847.0},
		{"symbol": "GOOGL", "trade": 2210.0},
	}, &hits)
	defer server.Close()

	c := NewClient(server.URL, 5*time.Second, nil)
	for _, symbol := range []string{"TSLA", "GOOGL", "TSLA"} {
		if _, err := c.GetQuote(context.Background(), symbol, domain.Unauthenticated{}); err != nil {
			t.Fatalf("GetQuote %s: %v", symbol, err)
		}
	}
	if hits != 1 {
		t.Errorf("board fetched %d times, want 1", hits)
	}
}

type countingLimiter struct {
	grants int
}

func (l *countingLimiter) Acquire(ctx context.Context, source string) error {
	l.grants++
	return nil
}

func TestClient_GetQuote_ThrottlesOnlyBoardFetch(t *testing.T) {
	server := boardServer(t, []map[string]any{
		{"symbol": "TSLA", "trade": 3847.0},
		{"symbol": "GOOGL", "trade": 2210.0},
	}, nil)
	defer server.Close()

	limiter := &countingLimiter{}
	c := NewClient(server.URL, 5*time.Second, limiter)
	for _, symbol := range []string{"TSLA", "GOOGL", "TSLA"} {
		if _, err := c.GetQuote(context.Background(), symbol, domain.Unauthenticated{}); err != nil {
			t.Fatalf("GetQuote %s: %v", symbol, err)
		}
	}

	// Three lookups share one board download, so only one grant is spent.
	if limiter.grants != 1 {
		t.Errorf("limiter grants = %d, want 1", limiter.grants)
	}
	if !c.ThrottlesOwnRequests() {
		t.Error("client must report self-throttling so resolvers skip their grant")
	}
}

func TestClient_GetQuote_SymbolMissing(t *testing.T) {
	server := boardServer(t, []map[string]any{{"symbol": "TSLA", "trade": 3847.0}}, nil)
	defer server.Close()

	c := NewClient(server.URL, 5*time.Second, nil)
	if _, err := c.GetQuote(context.Background(), "MELI", domain.Unauthenticated{}); !errors.Is(err, domain.ErrQuoteUnavailable) {
		t.Errorf("err = %v, want ErrQuoteUnavailable", err)
	}
}

func TestClient_GetQuote_FeedDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewClient(server.URL, 5*time.Second, nil)
	if _, err := c.GetQuote(context.Background(), "TSLA", domain.Unauthenticated{}); !errors.Is(err, domain.ErrSourceUnavailable) {
		t.Errorf("err = %v, want ErrSourceUnavailable", err)
	}
}

func TestCatalogProvider_LoadAll_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	payload := `[
		{"symbol": "TSLA", "company_name": "Tesla Inc.", "ratio": "15:1"},
		{"symbol": "MELI", "company_name": "MercadoLibre", "ratio": "60:1", "underlying_symbol": "MELI"},
		{"symbol": "BAD", "company_name": "Broken Row", "ratio": "abc"}
	]`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	provider := NewCatalogProvider(path, 5*time.Second)
	instruments, err := provider.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}

	tsla, ok := instruments["TSLA"]
	if !ok {
		t.Fatal("TSLA missing")
	}
	if tsla.ConversionRatio != 15.0 || tsla.UnderlyingSymbol != "TSLA" || tsla.Name != "Tesla Inc." {
		t.Errorf("TSLA = %+v", tsla)
	}

	// Malformed ratios come through as zero for the catalog loader to skip.
	if bad := instruments["BAD"]; bad.ConversionRatio != 0 {
		t.Errorf("BAD ratio = %v, want 0", bad.ConversionRatio)
	}
}

func TestCatalogProvider_LoadAll_URL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"symbol": "ko", "company_name": "Coca-Cola", "ratio": "5:1"}]`))
	}))
	defer server.Close()

	provider := NewCatalogProvider(server.URL, 5*time.Second)
	instruments, err := provider.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if got := instruments["KO"].ConversionRatio; got != 5.0 {
		t.Errorf("KO ratio = %v", got)
	}
}

func TestCatalogProvider_LoadAll_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	if err := os.WriteFile(path, []byte(`[]`), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	provider := NewCatalogProvider(path, 5*time.Second)
	if _, err := provider.LoadAll(context.Background()); err == nil {
		t.Error("want error for empty catalog")
	}
}
