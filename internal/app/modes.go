package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agustinrios/cedearscan/internal/engine"
	"github.com/agustinrios/cedearscan/internal/server"
	"github.com/agustinrios/cedearscan/internal/server/handler"
	"github.com/agustinrios/cedearscan/internal/server/ws"
)

// shutdownGrace bounds how long in-flight HTTP requests may run after the
// context is cancelled.
const shutdownGrace = 10 * time.Second

// Long-running deployments export old opportunity rows to object storage once
// a day; rows older than opportunityExportAge are included.
const (
	opportunityExportAge      = 30 * 24 * time.Hour
	opportunityExportInterval = 24 * time.Hour
)

// ScanMode runs one batch over the configured portfolio and exits.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scan mode")
	a.runScan(ctx, deps)
	return ctx.Err()
}

// WatchMode re-evaluates the portfolio on a fixed interval until cancelled.
func (a *App) WatchMode(ctx context.Context, deps *Dependencies) error {
	interval := a.cfg.Watch.Interval.Duration
	a.logger.InfoContext(ctx, "starting watch mode",
		slog.Duration("interval", interval),
	)

	a.runScan(ctx, deps)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	nextExport := time.Now().Add(opportunityExportInterval)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.runScan(ctx, deps)
			if time.Now().After(nextExport) {
				a.exportOldOpportunities(ctx, deps)
				nextExport = time.Now().Add(opportunityExportInterval)
			}
		}
	}
}

// exportOldOpportunities moves aged opportunity rows into object storage as a
// JSONL export. Requires both backends; otherwise it is a no-op.
func (a *App) exportOldOpportunities(ctx context.Context, deps *Dependencies) {
	if deps.Archiver == nil || deps.OpportunityStore == nil {
		return
	}

	before := time.Now().Add(-opportunityExportAge)
	key, count, err := deps.Archiver.ArchiveOpportunities(ctx, deps.OpportunityStore, before)
	if err != nil {
		a.logger.WarnContext(ctx, "opportunity export failed",
			slog.String("error", err.Error()),
		)
		return
	}
	if count > 0 {
		a.logger.InfoContext(ctx, "opportunities exported",
			slog.String("key", key),
			slog.Int("rows", count),
		)
	}
}

// ServeMode runs the HTTP + WebSocket API together with the periodic
// evaluation loop, so the opportunity stream and stores fill without
// on-demand scans.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode",
		slog.Int("port", a.cfg.Server.Port),
	)

	g, ctx := errgroup.WithContext(ctx)

	hub := ws.NewHub(deps.SignalBus, engine.OpportunityChannel, a.cfg.Mode, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.New(
		server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			APIKey:      a.cfg.Server.APIKey,
		},
		server.Handlers{
			Health:        handler.NewHealthHandler(deps.Catalog, deps.Access, a.logger),
			Opportunities: handler.NewOpportunityHandler(deps.OpportunityStore, a.logger),
			FXRates:       handler.NewFXRateHandler(deps.FXHistoryStore, a.logger),
			Scan:          handler.NewScanHandler(deps.Engine, deps.Catalog, deps.Access, a.logger),
		},
		hub,
		a.logger,
	)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return a.WatchMode(ctx, deps)
	})

	return g.Wait()
}

// runScan evaluates the portfolio once and routes the results: log, FX-rate
// history, report archive. Persistence failures are logged and absorbed;
// detection already happened.
func (a *App) runScan(ctx context.Context, deps *Dependencies) engine.BatchResult {
	symbols := a.cfg.Engine.Symbols
	if len(symbols) == 0 {
		symbols = deps.Catalog.Symbols()
	}
	access := deps.Access()

	result := deps.Engine.EvaluateBatch(ctx, symbols, access)

	a.recordFXHistory(ctx, deps)

	if deps.Archiver != nil {
		key, err := deps.Archiver.ArchiveScan(ctx, result.RanAt, result.Opportunities)
		if err != nil {
			a.logger.WarnContext(ctx, "scan report archive failed",
				slog.String("error", err.Error()),
			)
		} else {
			a.logger.InfoContext(ctx, "scan report archived", slog.String("key", key))
		}
	}

	return result
}

// recordFXHistory persists the CCL rate the cascade resolves plus the MEP
// reference rate. MEP is recorded for comparison only; the arbitrage formula
// never uses it.
func (a *App) recordFXHistory(ctx context.Context, deps *Dependencies) {
	if deps.FXHistoryStore == nil {
		return
	}

	if rate, err := deps.FXResolver.Resolve(ctx, deps.Access()); err != nil {
		a.logger.WarnContext(ctx, "fx history: ccl resolve failed",
			slog.String("error", err.Error()),
		)
	} else if err := deps.FXHistoryStore.Insert(ctx, "ccl", rate); err != nil {
		a.logger.WarnContext(ctx, "fx history: ccl insert failed",
			slog.String("error", err.Error()),
		)
	}

	if rate, err := deps.DolarAPI.GetMEP(ctx); err != nil {
		a.logger.WarnContext(ctx, "fx history: mep fetch failed",
			slog.String("error", err.Error()),
		)
	} else if err := deps.FXHistoryStore.Insert(ctx, "mep", rate); err != nil {
		a.logger.WarnContext(ctx, "fx history: mep insert failed",
			slog.String("error", err.Error()),
		)
	}
}
