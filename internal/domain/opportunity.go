package domain

import "time"

// Recommendation is the actionable direction of a detected mispricing.
type Recommendation string

const (
	// RecommendationFavorLocal: the local receipt trades below its
	// theoretical price. Buy local, sell the underlying.
	RecommendationFavorLocal Recommendation = "FAVOR_LOCAL"

	// RecommendationFavorUnderlying: the local receipt trades above its
	// theoretical price. Sell local, buy the underlying.
	RecommendationFavorUnderlying Recommendation = "FAVOR_UNDERLYING"
)

// Confidence grades the inputs behind an opportunity.
type Confidence string

const (
	// ConfidenceHigh: every input was a live market observation.
	ConfidenceHigh Confidence = "high"

	// ConfidenceDegraded: at least one input was theoretical or served from
	// a stale cache entry during an outage.
	ConfidenceDegraded Confidence = "degraded"
)

// ArbitrageOpportunity is emitted when the deviation between the observed
// local price and the theoretical local price exceeds the configured
// threshold. Opportunities are immutable; they are handed to the sink and to
// the notification fan-out as-is.
type ArbitrageOpportunity struct {
	ID     string
	Symbol string

	// LocalPrice is the observed (or theoretical-fallback) receipt price in
	// local currency.
	LocalPrice float64

	// UnderlyingPriceLocal is the underlying price expressed in local
	// currency via the FX rate and conversion ratio; this is the
	// theoretical local price the deviation is measured against.
	UnderlyingPriceLocal float64

	// UnderlyingPrice is the raw underlying price in its own currency.
	UnderlyingPrice float64

	// FXRate and ConversionRatio are the inputs used for the conversion.
	FXRate          float64
	ConversionRatio float64

	// DeviationPct is (LocalPrice - UnderlyingPriceLocal) / UnderlyingPriceLocal.
	DeviationPct float64

	Recommendation Recommendation
	Confidence     Confidence

	// LocalSource, UnderlyingSource, and FXSource attribute each input.
	LocalSource      string
	UnderlyingSource string
	FXSource         string

	// LocalIsTheoretical is true when no direct local quote was available
	// and the local price itself is the derived one.
	LocalIsTheoretical bool

	DetectedAt time.Time
}
