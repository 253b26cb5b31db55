// Package domain defines the core types, upstream-source boundaries, and
// sentinel errors shared by every layer of the scanner. It carries no
// third-party dependencies so that integration packages can depend on it
// without cycles.
package domain

import "context"

// Instrument describes a locally-traded depositary receipt and its link to
// the foreign security it represents. Instruments are immutable once loaded
// and owned exclusively by the conversion catalog.
type Instrument struct {
	// Symbol is the local receipt ticker, e.g. "TSLA" on BYMA.
	Symbol string

	// UnderlyingSymbol is the foreign security ticker the receipt represents.
	// For most receipts it matches Symbol, but not always (e.g. "MELI.BA").
	UnderlyingSymbol string

	// ConversionRatio is the number of local receipts corresponding to one
	// underlying share. A "10:1" catalog entry yields 10.0. Always positive.
	ConversionRatio float64

	// Name is the issuer's company name as published in the catalog, if known.
	Name string
}

// Catalog is the read-only symbol lookup backing every evaluation.
type Catalog interface {
	// Lookup returns the instrument for symbol or ErrUnknownSymbol.
	Lookup(symbol string) (Instrument, error)

	// Symbols returns every known receipt symbol, sorted.
	Symbols() []string
}

// CatalogProvider loads the full symbol map from an external catalog source.
// It is invoked once at startup; a failure here is fatal to the process.
type CatalogProvider interface {
	LoadAll(ctx context.Context) (map[string]Instrument, error)
}
