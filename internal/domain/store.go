package domain

import (
	"context"
	"time"
)

// OpportunityStore is the output boundary for detected opportunities.
type OpportunityStore interface {
	// Record persists a single opportunity.
	Record(ctx context.Context, opp ArbitrageOpportunity) error

	// ListRecent returns the most recent opportunities, newest first.
	// limit <= 0 means no limit.
	ListRecent(ctx context.Context, limit int) ([]ArbitrageOpportunity, error)

	// ListBySymbol returns recent opportunities for one symbol, newest first.
	ListBySymbol(ctx context.Context, symbol string, limit int) ([]ArbitrageOpportunity, error)
}

// FXRateHistoryStore keeps a record of resolved FX rates for later analysis.
type FXRateHistoryStore interface {
	Insert(ctx context.Context, kind string, r FXRate) error
	ListRange(ctx context.Context, kind string, from, to time.Time) ([]FXRate, error)
}

// ReportArchiver stores scan reports (the full batch result of one
// evaluation run) in long-term object storage.
type ReportArchiver interface {
	ArchiveScan(ctx context.Context, ranAt time.Time, opps []ArbitrageOpportunity) (string, error)
}
