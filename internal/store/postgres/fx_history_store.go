package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agustinrios/cedearscan/internal/domain"
)

// FXRateHistoryStore implements domain.FXRateHistoryStore using PostgreSQL.
// Every resolved rate is appended with its kind ("ccl", "mep") so rate drift
// can be analyzed after the fact.
type FXRateHistoryStore struct {
	pool *pgxpool.Pool
}

// NewFXRateHistoryStore creates a store backed by the given connection pool.
func NewFXRateHistoryStore(pool *pgxpool.Pool) *FXRateHistoryStore {
	return &FXRateHistoryStore{pool: pool}
}

// Insert appends one resolved rate observation.
func (s *FXRateHistoryStore) Insert(ctx context.Context, kind string, r domain.FXRate) error {
	const query = `
		INSERT INTO fx_rate_history (kind, rate, source, fallback_used, resolved_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.pool.Exec(ctx, query, kind, r.Rate, r.Source, r.FallbackUsed, r.Timestamp)
	if err != nil {
		return fmt.Errorf("postgres: insert fx rate %s/%s: %w", kind, r.Source, err)
	}
	return nil
}

// ListRange returns rate observations of one kind within [from, to], oldest
// first.
func (s *FXRateHistoryStore) ListRange(ctx context.Context, kind string, from, to time.Time) ([]domain.FXRate, error) {
	const query = `
		SELECT rate, source, fallback_used, resolved_at
		FROM fx_rate_history
		WHERE kind = $1 AND resolved_at >= $2 AND resolved_at <= $3
		ORDER BY resolved_at ASC`

	rows, err := s.pool.Query(ctx, query, kind, from, to)
	if err != nil {
		return nil, fmt.Errorf("postgres: list fx rates %s: %w", kind, err)
	}
	defer rows.Close()

	var rates []domain.FXRate
	for rows.Next() {
		var r domain.FXRate
		if err := rows.Scan(&r.Rate, &r.Source, &r.FallbackUsed, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("postgres: scan fx rate: %w", err)
		}
		rates = append(rates, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: fx rate rows: %w", err)
	}
	return rates, nil
}

// Compile-time interface check.
var _ domain.FXRateHistoryStore = (*FXRateHistoryStore)(nil)
