package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies CEDEARSCAN_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known CEDEARSCAN_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── IOL ──
	setStr(&cfg.IOL.BaseURL, "CEDEARSCAN_IOL_BASE_URL")
	setStr(&cfg.IOL.Username, "CEDEARSCAN_IOL_USERNAME")
	setStr(&cfg.IOL.Password, "CEDEARSCAN_IOL_PASSWORD")
	setStr(&cfg.IOL.EncryptedCredentialsPath, "CEDEARSCAN_IOL_ENCRYPTED_CREDENTIALS_PATH")
	setStr(&cfg.IOL.CredentialsPassword, "CEDEARSCAN_IOL_CREDENTIALS_PASSWORD")

	// ── Finnhub ──
	setStr(&cfg.Finnhub.BaseURL, "CEDEARSCAN_FINNHUB_BASE_URL")
	setStr(&cfg.Finnhub.APIKey, "CEDEARSCAN_FINNHUB_API_KEY")
	setStr(&cfg.Finnhub.APIKey, "FINNHUB_API_KEY") // compatibility alias

	// ── DolarAPI / BYMA / catalog ──
	setStr(&cfg.DolarAPI.BaseURL, "CEDEARSCAN_DOLARAPI_BASE_URL")
	setStr(&cfg.BYMA.BaseURL, "CEDEARSCAN_BYMA_BASE_URL")
	setStr(&cfg.Catalog.Path, "CEDEARSCAN_CATALOG_PATH")
	setStr(&cfg.Catalog.URL, "CEDEARSCAN_CATALOG_URL")

	// ── Resolver ──
	setStringSlice(&cfg.Resolver.FXSources, "CEDEARSCAN_RESOLVER_FX_SOURCES")
	setDuration(&cfg.Resolver.FXCacheTTL, "CEDEARSCAN_RESOLVER_FX_CACHE_TTL")
	setDuration(&cfg.Resolver.LocalCacheTTL, "CEDEARSCAN_RESOLVER_LOCAL_CACHE_TTL")
	setDuration(&cfg.Resolver.UnderlyingCacheTTL, "CEDEARSCAN_RESOLVER_UNDERLYING_CACHE_TTL")
	setDuration(&cfg.Resolver.UnderlyingRetention, "CEDEARSCAN_RESOLVER_UNDERLYING_RETENTION")
	setDuration(&cfg.Resolver.RequestTimeout, "CEDEARSCAN_RESOLVER_REQUEST_TIMEOUT")
	setDuration(&cfg.Resolver.RateLimitInterval, "CEDEARSCAN_RESOLVER_RATE_LIMIT_INTERVAL")

	// ── Engine ──
	setFloat64(&cfg.Engine.Threshold, "CEDEARSCAN_ENGINE_THRESHOLD")
	setStringSlice(&cfg.Engine.Symbols, "CEDEARSCAN_ENGINE_SYMBOLS")
	setInt(&cfg.Engine.BatchConcurrency, "CEDEARSCAN_ENGINE_BATCH_CONCURRENCY")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "CEDEARSCAN_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "CEDEARSCAN_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "CEDEARSCAN_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "CEDEARSCAN_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "CEDEARSCAN_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "CEDEARSCAN_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "CEDEARSCAN_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "CEDEARSCAN_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "CEDEARSCAN_POSTGRES_POOL_MIN_CONNS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "CEDEARSCAN_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "CEDEARSCAN_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "CEDEARSCAN_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "CEDEARSCAN_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "CEDEARSCAN_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "CEDEARSCAN_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "CEDEARSCAN_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "CEDEARSCAN_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "CEDEARSCAN_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "CEDEARSCAN_S3_REGION")
	setStr(&cfg.S3.Bucket, "CEDEARSCAN_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "CEDEARSCAN_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "CEDEARSCAN_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "CEDEARSCAN_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "CEDEARSCAN_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setInt(&cfg.Server.Port, "CEDEARSCAN_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "CEDEARSCAN_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "CEDEARSCAN_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "CEDEARSCAN_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "CEDEARSCAN_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "CEDEARSCAN_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "CEDEARSCAN_NOTIFY_EVENTS")

	// ── Watch ──
	setDuration(&cfg.Watch.Interval, "CEDEARSCAN_WATCH_INTERVAL")

	// ── Top-level ──
	setStr(&cfg.Mode, "CEDEARSCAN_MODE")
	setStr(&cfg.LogLevel, "CEDEARSCAN_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
