package finnhub

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/agustinrios/cedearscan/internal/domain"
)

func TestClient_GetQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/quote" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("symbol"); got != "TSLA" {
			t.Errorf("symbol = %q", got)
		}
		if got := r.URL.Query().Get("token"); got != "test-key" {
			t.Errorf("token = %q", got)
		}
		w.Write([]byte(`{"c":353.61,"h":356.2,"l":349.8,"o":351.0,"pc":350.12}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "test-key", 5*time.Second)
	quote, err := c.GetQuote(context.Background(), "TSLA")
	if err != nil {
		t.Fatalf("GetQuote: %v", err)
	}
	if quote.Price != 353.61 || quote.Currency != "USD" || quote.Source != "finnhub" {
		t.Errorf("quote = %+v", quote)
	}
}

func TestClient_GetQuote_UnknownSymbol(t *testing.T) {
	// Finnhub answers 200 with c=0 for symbols it does not know.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"c":0,"h":0,"l":0,"o":0,"pc":0}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "test-key", 5*time.Second)
	if _, err := c.GetQuote(context.Background(), "NOPE"); !errors.Is(err, domain.ErrQuoteUnavailable) {
		t.Errorf("err = %v, want ErrQuoteUnavailable", err)
	}
}

func TestClient_GetQuote_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "API limit reached", http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := NewClient(server.URL, "test-key", 5*time.Second)
	if _, err := c.GetQuote(context.Background(), "TSLA"); !errors.Is(err, domain.ErrRateLimited) {
		t.Errorf("err = %v, want ErrRateLimited", err)
	}
}

func TestClient_GetQuote_BadKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Invalid API key", http.StatusUnauthorized)
	}))
	defer server.Close()

	c := NewClient(server.URL, "wrong", 5*time.Second)
	if _, err := c.GetQuote(context.Background(), "TSLA"); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("err = %v, want ErrUnauthenticated", err)
	}
}
