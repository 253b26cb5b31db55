package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/agustinrios/cedearscan/internal/domain"
)

// mapProvider serves a fixed instrument map.
type mapProvider struct {
	instruments map[string]domain.Instrument
	err         error
}

func (p *mapProvider) LoadAll(ctx context.Context) (map[string]domain.Instrument, error) {
	return p.instruments, p.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCatalog_Lookup(t *testing.T) {
	provider := &mapProvider{instruments: map[string]domain.Instrument{
		"TSLA": {Symbol: "TSLA", UnderlyingSymbol: "TSLA", ConversionRatio: 15},
		"ko":   {Symbol: "KO", UnderlyingSymbol: "KO", ConversionRatio: 5},
	}}

	c, err := Load(context.Background(), provider, discardLogger())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	inst, err := c.Lookup("tsla")
	if err != nil {
		t.Fatalf("Lookup(tsla): %v", err)
	}
	if inst.ConversionRatio != 15 {
		t.Errorf("ConversionRatio = %v, want 15", inst.ConversionRatio)
	}

	if _, err := c.Lookup("MISSING"); !errors.Is(err, domain.ErrUnknownSymbol) {
		t.Errorf("Lookup(MISSING) err = %v, want ErrUnknownSymbol", err)
	}
}

func TestCatalog_SkipsInvalidRatios(t *testing.T) {
	provider := &mapProvider{instruments: map[string]domain.Instrument{
		"GOOD": {Symbol: "GOOD", UnderlyingSymbol: "GOOD", ConversionRatio: 10},
		"BAD":  {Symbol: "BAD", UnderlyingSymbol: "BAD", ConversionRatio: 0},
	}}

	c, err := Load(context.Background(), provider, discardLogger())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if _, err := c.Lookup("BAD"); !errors.Is(err, domain.ErrUnknownSymbol) {
		t.Errorf("instrument with zero ratio should not load, got err = %v", err)
	}
	if got := c.Symbols(); len(got) != 1 || got[0] != "GOOD" {
		t.Errorf("Symbols() = %v, want [GOOD]", got)
	}
}

func TestCatalog_LoadFailureIsFatal(t *testing.T) {
	provider := &mapProvider{err: errors.New("download failed")}
	if _, err := Load(context.Background(), provider, discardLogger()); err == nil {
		t.Fatal("Load should fail when the provider fails")
	}
}

func TestParseRatio(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"10:1", 10, false},
		{"2:1", 2, false},
		{" 15 : 1 ", 15, false},
		{"5", 5, false},
		{"0.5", 0.5, false},
		{"", 0, true},
		{"abc", 0, true},
		{"0:1", 0, true},
		{"-3:1", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseRatio(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseRatio(%q) = %v, want error", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseRatio(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseRatio(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
