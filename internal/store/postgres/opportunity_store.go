package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agustinrios/cedearscan/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore using PostgreSQL.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates a store backed by the given connection pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

const opportunitySelectCols = `id, symbol, local_price, underlying_price_local,
	underlying_price, fx_rate, conversion_ratio, deviation_pct,
	recommendation, confidence,
	local_source, underlying_source, fx_source, local_is_theoretical,
	detected_at`

// Record persists a single detected opportunity.
func (s *OpportunityStore) Record(ctx context.Context, opp domain.ArbitrageOpportunity) error {
	const query = `
		INSERT INTO opportunities (
			id, symbol, local_price, underlying_price_local,
			underlying_price, fx_rate, conversion_ratio, deviation_pct,
			recommendation, confidence,
			local_source, underlying_source, fx_source, local_is_theoretical,
			detected_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10,
			$11, $12, $13, $14,
			$15
		)`

	_, err := s.pool.Exec(ctx, query,
		opp.ID, opp.Symbol, opp.LocalPrice, opp.UnderlyingPriceLocal,
		opp.UnderlyingPrice, opp.FXRate, opp.ConversionRatio, opp.DeviationPct,
		string(opp.Recommendation), string(opp.Confidence),
		opp.LocalSource, opp.UnderlyingSource, opp.FXSource, opp.LocalIsTheoretical,
		opp.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: record opportunity %s: %w", opp.ID, err)
	}
	return nil
}

// ListRecent returns the most recent opportunities, newest first.
func (s *OpportunityStore) ListRecent(ctx context.Context, limit int) ([]domain.ArbitrageOpportunity, error) {
	query := `SELECT ` + opportunitySelectCols + ` FROM opportunities ORDER BY detected_at DESC`
	args := []any{}

	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent opportunities: %w", err)
	}
	defer rows.Close()

	return scanOpportunities(rows)
}

// ListBySymbol returns recent opportunities for one symbol, newest first.
func (s *OpportunityStore) ListBySymbol(ctx context.Context, symbol string, limit int) ([]domain.ArbitrageOpportunity, error) {
	query := `SELECT ` + opportunitySelectCols + ` FROM opportunities WHERE symbol = $1 ORDER BY detected_at DESC`
	args := []any{symbol}

	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list opportunities for %s: %w", symbol, err)
	}
	defer rows.Close()

	return scanOpportunities(rows)
}

func scanOpportunities(rows pgx.Rows) ([]domain.ArbitrageOpportunity, error) {
	var opps []domain.ArbitrageOpportunity
	for rows.Next() {
		var (
			opp            domain.ArbitrageOpportunity
			recommendation string
			confidence     string
		)
		if err := rows.Scan(
			&opp.ID, &opp.Symbol, &opp.LocalPrice, &opp.UnderlyingPriceLocal,
			&opp.UnderlyingPrice, &opp.FXRate, &opp.ConversionRatio, &opp.DeviationPct,
			&recommendation, &confidence,
			&opp.LocalSource, &opp.UnderlyingSource, &opp.FXSource, &opp.LocalIsTheoretical,
			&opp.DetectedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan opportunity: %w", err)
		}
		opp.Recommendation = domain.Recommendation(recommendation)
		opp.Confidence = domain.Confidence(confidence)
		opps = append(opps, opp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: opportunity rows: %w", err)
	}
	return opps, nil
}

// Compile-time interface check.
var _ domain.OpportunityStore = (*OpportunityStore)(nil)
