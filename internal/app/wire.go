package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/agustinrios/cedearscan/internal/blob/s3"
	"github.com/agustinrios/cedearscan/internal/cache/memory"
	"github.com/agustinrios/cedearscan/internal/cache/redis"
	"github.com/agustinrios/cedearscan/internal/catalog"
	"github.com/agustinrios/cedearscan/internal/config"
	"github.com/agustinrios/cedearscan/internal/crypto"
	"github.com/agustinrios/cedearscan/internal/domain"
	"github.com/agustinrios/cedearscan/internal/engine"
	"github.com/agustinrios/cedearscan/internal/notify"
	"github.com/agustinrios/cedearscan/internal/resolver"
	"github.com/agustinrios/cedearscan/internal/source/byma"
	"github.com/agustinrios/cedearscan/internal/source/dolarapi"
	"github.com/agustinrios/cedearscan/internal/source/finnhub"
	"github.com/agustinrios/cedearscan/internal/source/iol"
	"github.com/agustinrios/cedearscan/internal/store/postgres"
)

// Dependencies bundles everything the run modes need. It is constructed by
// Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Catalog    domain.Catalog
	Engine     *engine.Engine
	FXResolver *resolver.FXResolver
	SignalBus  domain.SignalBus

	// Access returns the current local-market capability, establishing or
	// refreshing the broker session as needed.
	Access func() domain.Access

	// DolarAPI stays reachable outside the cascade for the MEP reference
	// rate, which is recorded but never used in the arbitrage formula.
	DolarAPI *dolarapi.Client

	// Nil unless the corresponding backend is configured.
	OpportunityStore domain.OpportunityStore
	FXHistoryStore   domain.FXRateHistoryStore
	Archiver         *s3blob.Archiver
	Notifier         *notify.Notifier
}

// hasPostgres reports whether a persistence backend is configured. The
// scanner runs fine without one; stores are simply absent.
func hasPostgres(cfg *config.Config) bool {
	return cfg.Postgres.DSN != "" || cfg.Postgres.Host != ""
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}
	timeout := cfg.Resolver.RequestTimeout.Duration

	// --- Conversion catalog ---
	catalogSource := cfg.Catalog.Path
	if cfg.Catalog.URL != "" {
		catalogSource = cfg.Catalog.URL
	}
	cat, err := catalog.Load(ctx, byma.NewCatalogProvider(catalogSource, timeout), logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: catalog: %w", err)
	}
	deps.Catalog = cat

	// --- Caches, rate limiter, signal bus ---
	var (
		fxCache         domain.FXRateCache
		underlyingCache domain.QuoteCache
		localCache      domain.QuoteCache
		limiter         domain.RateLimiter
	)
	retention := cfg.Resolver.UnderlyingRetention.Duration
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		fxCache = redis.NewFXRateCache(redisClient)
		underlyingCache = redis.NewQuoteCache(redisClient, "underlying", retention)
		localCache = redis.NewQuoteCache(redisClient, "local", 0)
		limiter = redis.NewRateLimiter(redisClient, cfg.Resolver.RateLimitInterval.Duration)
		deps.SignalBus = redis.NewSignalBus(redisClient)
	} else {
		fxCache = memory.NewFXRateCache()
		underlyingCache = memory.NewQuoteCache(retention)
		localCache = memory.NewQuoteCache(0)
		limiter = memory.NewRateLimiter(cfg.Resolver.RateLimitInterval.Duration)
		deps.SignalBus = memory.NewSignalBus()
	}

	// --- Broker session ---
	var auth *iol.Authenticator
	if cfg.IOL.Username != "" || cfg.IOL.EncryptedCredentialsPath != "" {
		creds, err := crypto.LoadCredentials(crypto.CredentialsConfig{
			Username:      cfg.IOL.Username,
			Password:      cfg.IOL.Password,
			EncryptedPath: cfg.IOL.EncryptedCredentialsPath,
			Passphrase:    cfg.IOL.CredentialsPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: broker credentials: %w", err)
		}
		auth = iol.NewAuthenticator(cfg.IOL.BaseURL, creds.Username, creds.Password, timeout)
	}
	deps.Access = newSessionManager(auth, timeout, logger).Access

	// --- Sources ---
	dolarClient := dolarapi.NewClient(cfg.DolarAPI.BaseURL, timeout)
	iolClient := iol.NewClient(cfg.IOL.BaseURL, timeout)
	bymaClient := byma.NewClient(cfg.BYMA.BaseURL, timeout, limiter)
	finnhubClient := finnhub.NewClient(cfg.Finnhub.BaseURL, cfg.Finnhub.APIKey, timeout)
	deps.DolarAPI = dolarClient

	fxSources := make([]domain.FXRateSource, 0, len(cfg.Resolver.FXSources))
	for _, name := range cfg.Resolver.FXSources {
		switch name {
		case "dolarapi_ccl":
			fxSources = append(fxSources, dolarapi.NewCCLSource(dolarClient))
		case "iol_al30":
			fxSources = append(fxSources, iol.NewAL30Source(iolClient))
		default:
			cleanup()
			return nil, nil, fmt.Errorf("wire: unknown fx source %q", name)
		}
	}
	localSources := []domain.LocalMarketQuoteSource{iolClient, bymaClient}

	// --- Resolvers + engine ---
	fxResolver := resolver.NewFXResolver(
		fxSources, fxCache, limiter, cfg.Resolver.FXCacheTTL.Duration, logger,
	)
	underlyingResolver := resolver.NewUnderlyingResolver(
		finnhubClient, underlyingCache, limiter, cfg.Resolver.UnderlyingCacheTTL.Duration, logger,
	)
	localResolver := resolver.NewLocalResolver(
		localSources, localCache, limiter, cfg.Resolver.LocalCacheTTL.Duration, logger,
	)
	deps.FXResolver = fxResolver

	engineOpts := []engine.Option{
		engine.WithSignalBus(deps.SignalBus),
		engine.WithBatchConcurrency(cfg.Engine.BatchConcurrency),
	}

	// --- PostgreSQL ---
	if hasPostgres(cfg) {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}

		pool := pgClient.Pool()
		deps.OpportunityStore = postgres.NewOpportunityStore(pool)
		deps.FXHistoryStore = postgres.NewFXRateHistoryStore(pool)
		engineOpts = append(engineOpts, engine.WithStore(deps.OpportunityStore))
	}

	// --- S3 report archive ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), "reports")
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
			timeout,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL, timeout))
	}
	if len(senders) > 0 {
		deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
		engineOpts = append(engineOpts, engine.WithAlerter(deps.Notifier))
	}

	deps.Engine = engine.New(
		cat,
		fxResolver,
		underlyingResolver,
		localResolver,
		cfg.Engine.Threshold,
		logger,
		engineOpts...,
	)

	return deps, cleanup, nil
}
