package dolarapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/agustinrios/cedearscan/internal/domain"
)

func TestClient_GetCCL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/dolares/contadoconliqui" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"nombre":"Contado con liquidación","compra":1270.0,"venta":1275.5,"fechaActualizacion":"2025-06-10T15:00:00.000Z"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, 5*time.Second)
	rate, err := c.GetCCL(context.Background())
	if err != nil {
		t.Fatalf("GetCCL: %v", err)
	}
	if rate.Rate != 1275.5 {
		t.Errorf("Rate = %v, want 1275.5 (sell side)", rate.Rate)
	}
	if rate.Source != "dolarapi_ccl" {
		t.Errorf("Source = %q", rate.Source)
	}
}

func TestClient_GetCCL_InvalidPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"venta":0}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, 5*time.Second)
	if _, err := c.GetCCL(context.Background()); !errors.Is(err, domain.ErrSourceUnavailable) {
		t.Errorf("err = %v, want ErrSourceUnavailable", err)
	}
}

func TestClient_GetCCL_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	c := NewClient(server.URL, 5*time.Second)
	if _, err := c.GetCCL(context.Background()); !errors.Is(err, domain.ErrSourceUnavailable) {
		t.Errorf("err = %v, want ErrSourceUnavailable", err)
	}
}

func TestCCLSource_IgnoresAccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"venta":1300.0}`))
	}))
	defer server.Close()

	src := NewCCLSource(NewClient(server.URL, 5*time.Second))
	if src.Name() != "dolarapi_ccl" {
		t.Errorf("Name = %q", src.Name())
	}
	rate, err := src.GetRate(context.Background(), domain.Unauthenticated{})
	if err != nil {
		t.Fatalf("GetRate: %v", err)
	}
	if rate.Rate != 1300.0 {
		t.Errorf("Rate = %v", rate.Rate)
	}
}
