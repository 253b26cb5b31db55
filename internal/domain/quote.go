package domain

import "time"

// PriceQuote is a single resolved price observation. Quotes are created fresh
// on every resolution and never mutated afterwards.
type PriceQuote struct {
	// Symbol the quote is for.
	Symbol string

	// Price in Currency units. Always positive.
	Price float64

	// Currency is the ISO code the price is denominated in ("ARS", "USD").
	Currency string

	// Source names the upstream that produced the quote ("iol", "byma",
	// "finnhub") or "theoretical" for a derived price.
	Source string

	// Timestamp is when the quote was resolved.
	Timestamp time.Time

	// IsTheoretical is true when the price was computed from the underlying
	// price, FX rate, and conversion ratio rather than observed on a market.
	IsTheoretical bool

	// Stale is true when the quote was served from a cache entry past its
	// freshness window during an upstream outage. A stale quote is still a
	// real observation, just delayed.
	Stale bool
}

// TheoreticalLocalPrice converts an underlying price in foreign currency to
// the implied local-receipt price: underlying price times the FX rate, spread
// over the receipts that make up one share. All inputs must be positive.
func TheoreticalLocalPrice(underlyingPrice, fxRate, conversionRatio float64) float64 {
	return underlyingPrice * fxRate / conversionRatio
}

// FXRate is a resolved foreign-exchange proxy rate (local currency units per
// one unit of the foreign currency).
type FXRate struct {
	// Rate in local-currency units per foreign unit. Always positive.
	Rate float64

	// Source names the upstream that produced the rate ("dolarapi_ccl",
	// "iol_al30", ...).
	Source string

	// Timestamp is when the rate was resolved.
	Timestamp time.Time

	// FallbackUsed is true when the rate did not come from the first source
	// in the configured priority order.
	FallbackUsed bool
}
