// Package engine evaluates symbols for arbitrage between the local receipt
// price and the theoretical price implied by the underlying market and the FX
// proxy rate.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/agustinrios/cedearscan/internal/domain"
	"github.com/agustinrios/cedearscan/internal/resolver"
)

// OpportunityChannel is the signal-bus channel opportunities are published on.
const OpportunityChannel = "opportunities"

// defaultBatchConcurrency bounds concurrent evaluations in a batch. Upstream
// rate limits do the real throttling; this just caps in-flight work.
const defaultBatchConcurrency = 4

// Alerter fans a detected opportunity out to operators. Implementations must
// not block the evaluation path on slow deliveries.
type Alerter interface {
	AlertOpportunity(ctx context.Context, opp domain.ArbitrageOpportunity)
}

// Engine wires the catalog and the three resolvers into the evaluation flow.
// Store, bus, and alerter are optional; a nil collaborator is skipped.
type Engine struct {
	catalog    domain.Catalog
	fx         *resolver.FXResolver
	underlying *resolver.UnderlyingResolver
	local      *resolver.LocalResolver
	threshold  float64

	store   domain.OpportunityStore
	bus     domain.SignalBus
	alerter Alerter

	concurrency int
	logger      *slog.Logger
	now         func() time.Time
	newID       func() string
}

// Option configures optional Engine collaborators.
type Option func(*Engine)

// WithStore persists every detected opportunity.
func WithStore(store domain.OpportunityStore) Option {
	return func(e *Engine) { e.store = store }
}

// WithSignalBus publishes every detected opportunity as a JSON payload on
// OpportunityChannel.
func WithSignalBus(bus domain.SignalBus) Option {
	return func(e *Engine) { e.bus = bus }
}

// WithAlerter forwards every detected opportunity to the alert fan-out.
func WithAlerter(alerter Alerter) Option {
	return func(e *Engine) { e.alerter = alerter }
}

// WithBatchConcurrency overrides the in-flight evaluation cap for batches.
func WithBatchConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// New creates an Engine. threshold is the exclusive deviation boundary: a
// deviation whose magnitude equals the threshold exactly does not trigger.
func New(
	catalog domain.Catalog,
	fx *resolver.FXResolver,
	underlying *resolver.UnderlyingResolver,
	local *resolver.LocalResolver,
	threshold float64,
	logger *slog.Logger,
	opts ...Option,
) *Engine {
	e := &Engine{
		catalog:     catalog,
		fx:          fx,
		underlying:  underlying,
		local:       local,
		threshold:   threshold,
		concurrency: defaultBatchConcurrency,
		logger:      logger.With("component", "engine"),
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate resolves all three inputs for symbol and emits an opportunity when
// the local price deviates from the theoretical price by more than the
// threshold. A nil opportunity with a nil error means the symbol is fairly
// priced. Lookup failures surface ErrUnknownSymbol; resolution failures
// surface the resolver's error.
func (e *Engine) Evaluate(ctx context.Context, symbol string, access domain.Access) (*domain.ArbitrageOpportunity, error) {
	instrument, err := e.catalog.Lookup(symbol)
	if err != nil {
		return nil, err
	}

	// FX and underlying are independent inputs; resolve them concurrently
	// and join before anything is derived from either.
	var (
		fxRate     domain.FXRate
		underlying domain.PriceQuote
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		fxRate, err = e.fx.Resolve(gctx, access)
		return err
	})
	g.Go(func() error {
		var err error
		underlying, err = e.underlying.Resolve(gctx, instrument.UnderlyingSymbol)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("engine: evaluate %s: %w", symbol, err)
	}

	local, err := e.local.Resolve(ctx, instrument, underlying, fxRate, access)
	if err != nil {
		return nil, fmt.Errorf("engine: evaluate %s: %w", symbol, err)
	}

	theoretical := domain.TheoreticalLocalPrice(underlying.Price, fxRate.Rate, instrument.ConversionRatio)
	deviation := (local.Price - theoretical) / theoretical

	e.logger.Debug("symbol evaluated",
		"symbol", symbol,
		"local_price", local.Price,
		"theoretical_price", theoretical,
		"deviation_pct", deviation,
		"local_source", local.Source,
		"underlying_source", underlying.Source,
		"fx_source", fxRate.Source)

	if math.Abs(deviation) <= e.threshold {
		return nil, nil
	}

	recommendation := domain.RecommendationFavorLocal
	if deviation > 0 {
		recommendation = domain.RecommendationFavorUnderlying
	}

	confidence := domain.ConfidenceHigh
	if local.IsTheoretical || local.Stale || underlying.Stale {
		confidence = domain.ConfidenceDegraded
	}

	opp := domain.ArbitrageOpportunity{
		ID:                   e.newID(),
		Symbol:               instrument.Symbol,
		LocalPrice:           local.Price,
		UnderlyingPriceLocal: theoretical,
		UnderlyingPrice:      underlying.Price,
		FXRate:               fxRate.Rate,
		ConversionRatio:      instrument.ConversionRatio,
		DeviationPct:         deviation,
		Recommendation:       recommendation,
		Confidence:           confidence,
		LocalSource:          local.Source,
		UnderlyingSource:     underlying.Source,
		FXSource:             fxRate.Source,
		LocalIsTheoretical:   local.IsTheoretical,
		DetectedAt:           e.now(),
	}

	e.emit(ctx, opp)
	return &opp, nil
}

// emit pushes a detected opportunity to every configured collaborator.
// Delivery failures are logged, never propagated: the detection itself is the
// engine's contract.
func (e *Engine) emit(ctx context.Context, opp domain.ArbitrageOpportunity) {
	e.logger.Info("opportunity detected",
		"id", opp.ID,
		"symbol", opp.Symbol,
		"deviation_pct", opp.DeviationPct,
		"recommendation", opp.Recommendation,
		"confidence", opp.Confidence)

	if e.store != nil {
		if err := e.store.Record(ctx, opp); err != nil {
			e.logger.Error("opportunity store write failed", "id", opp.ID, "error", err)
		}
	}

	if e.bus != nil {
		payload, err := json.Marshal(opp)
		if err != nil {
			e.logger.Error("opportunity marshal failed", "id", opp.ID, "error", err)
		} else if err := e.bus.Publish(ctx, OpportunityChannel, payload); err != nil {
			e.logger.Error("opportunity publish failed", "id", opp.ID, "error", err)
		}
	}

	if e.alerter != nil {
		e.alerter.AlertOpportunity(ctx, opp)
	}
}

// BatchResult is the outcome of one batch evaluation run.
type BatchResult struct {
	// RanAt is when the batch started.
	RanAt time.Time

	// Evaluated counts symbols that completed evaluation, opportunity or not.
	Evaluated int

	// Opportunities detected in this run, ordered by descending deviation
	// magnitude.
	Opportunities []domain.ArbitrageOpportunity

	// Failures maps each failed symbol to its terminal error.
	Failures map[string]error
}

// EvaluateBatch evaluates symbols with bounded concurrency. Per-symbol
// failures are isolated: one symbol exhausting its sources never stops the
// rest of the batch.
func (e *Engine) EvaluateBatch(ctx context.Context, symbols []string, access domain.Access) BatchResult {
	result := BatchResult{
		RanAt:    e.now(),
		Failures: make(map[string]error),
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for _, symbol := range symbols {
		g.Go(func() error {
			opp, err := e.Evaluate(gctx, symbol, access)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				e.logger.Warn("symbol evaluation failed", "symbol", symbol, "error", err)
				result.Failures[symbol] = err
				return nil
			}
			result.Evaluated++
			if opp != nil {
				result.Opportunities = append(result.Opportunities, *opp)
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(result.Opportunities, func(i, j int) bool {
		return math.Abs(result.Opportunities[i].DeviationPct) > math.Abs(result.Opportunities[j].DeviationPct)
	})

	e.logger.Info("batch complete",
		"symbols", len(symbols),
		"evaluated", result.Evaluated,
		"opportunities", len(result.Opportunities),
		"failures", len(result.Failures))
	return result
}
