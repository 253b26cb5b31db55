package iol

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/agustinrios/cedearscan/internal/domain"
)

func testSession() domain.Session {
	return domain.Session{
		AccessToken: "test-token",
		ExpiresAt:   time.Now().Add(10 * time.Minute),
	}
}

func TestAuthenticator_Login(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/token" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "password" {
			t.Errorf("grant_type = %q", got)
		}
		w.Write([]byte(`{"access_token":"abc","refresh_token":"def"}`))
	}))
	defer server.Close()

	auth := NewAuthenticator(server.URL, "user", "pass", 5*time.Second)
	session, err := auth.Login(context.Background())
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if session.AccessToken != "abc" || session.RefreshToken != "def" {
		t.Errorf("session = %+v", session)
	}
	if !session.Valid() {
		t.Error("fresh session should be valid")
	}
}

func TestAuthenticator_LoginRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad credentials", http.StatusBadRequest)
	}))
	defer server.Close()

	auth := NewAuthenticator(server.URL, "user", "wrong", 5*time.Second)
	if _, err := auth.Login(context.Background()); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("err = %v, want ErrUnauthenticated", err)
	}
}

func TestClient_GetQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/bCBA/Titulos/TSLA/Cotizacion") {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		w.Write([]byte(`{"ultimoPrecio":3847.0}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, 5*time.Second)
	quote, err := c.GetQuote(context.Background(), "TSLA", domain.Authenticated{Session: testSession()})
	if err != nil {
		t.Fatalf("GetQuote: %v", err)
	}
	if quote.Price != 3847.0 || quote.Currency != "ARS" || quote.Source != "iol" {
		t.Errorf("quote = %+v", quote)
	}
	if quote.IsTheoretical {
		t.Error("direct quote must not be theoretical")
	}
}

func TestClient_GetQuote_Unauthenticated(t *testing.T) {
	c := NewClient("http://unused.invalid", 5*time.Second)

	if _, err := c.GetQuote(context.Background(), "TSLA", domain.Unauthenticated{}); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("err = %v, want ErrUnauthenticated", err)
	}

	// An expired session is as good as none.
	expired := domain.Session{AccessToken: "old", ExpiresAt: time.Now().Add(-time.Minute)}
	if _, err := c.GetQuote(context.Background(), "TSLA", domain.Authenticated{Session: expired}); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("err = %v, want ErrUnauthenticated for expired session", err)
	}
}

func TestAL30Source_GetRate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "/AL30D/"):
			w.Write([]byte(`{"ultimoPrecio":57.75}`))
		case strings.Contains(r.URL.Path, "/AL30/"):
			w.Write([]byte(`{"ultimoPrecio":75075.0}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	src := NewAL30Source(NewClient(server.URL, 5*time.Second))
	rate, err := src.GetRate(context.Background(), domain.Authenticated{Session: testSession()})
	if err != nil {
		t.Fatalf("GetRate: %v", err)
	}
	want := 75075.0 / 57.75
	if rate.Rate != want {
		t.Errorf("Rate = %v, want %v", rate.Rate, want)
	}
	if rate.Source != "iol_al30" {
		t.Errorf("Source = %q", rate.Source)
	}
}

func TestAL30Source_RequiresSession(t *testing.T) {
	src := NewAL30Source(NewClient("http://unused.invalid", 5*time.Second))
	if _, err := src.GetRate(context.Background(), domain.Unauthenticated{}); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("err = %v, want ErrUnauthenticated", err)
	}
}
