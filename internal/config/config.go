// Package config defines the top-level configuration for the CEDEAR arbitrage
// scanner and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by CEDEARSCAN_* environment
// variables.
type Config struct {
	IOL      IOLConfig      `toml:"iol"`
	Finnhub  FinnhubConfig  `toml:"finnhub"`
	DolarAPI DolarAPIConfig `toml:"dolarapi"`
	BYMA     BYMAConfig     `toml:"byma"`
	Catalog  CatalogConfig  `toml:"catalog"`
	Resolver ResolverConfig `toml:"resolver"`
	Engine   EngineConfig   `toml:"engine"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Watch    WatchConfig    `toml:"watch"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// IOLConfig holds broker API credentials and endpoints. Credentials may be
// given in plaintext or through an encrypted file produced by the
// `credentials encrypt` helper; the encrypted form wins when both are set.
type IOLConfig struct {
	BaseURL                  string `toml:"base_url"`
	Username                 string `toml:"username"`
	Password                 string `toml:"password"`
	EncryptedCredentialsPath string `toml:"encrypted_credentials_path"`
	CredentialsPassword      string `toml:"credentials_password"`
}

// FinnhubConfig holds the international quote source parameters.
type FinnhubConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
}

// DolarAPIConfig holds the public FX rate feed parameters.
type DolarAPIConfig struct {
	BaseURL string `toml:"base_url"`
}

// BYMAConfig holds the public market-data feed parameters.
type BYMAConfig struct {
	BaseURL string `toml:"base_url"`
}

// CatalogConfig controls where the receipt catalog (symbol, ratio,
// underlying) is loaded from. Path points at a local JSON snapshot; URL, when
// set, is fetched instead.
type CatalogConfig struct {
	Path string `toml:"path"`
	URL  string `toml:"url"`
}

// ResolverConfig tunes the price-resolution cascade.
type ResolverConfig struct {
	// FXSources is the FX source priority order. Known names:
	// "dolarapi_ccl", "iol_al30".
	FXSources []string `toml:"fx_sources"`

	// FXCacheTTL is the freshness window for cached FX rates.
	FXCacheTTL duration `toml:"fx_cache_ttl"`

	// LocalCacheTTL is the freshness window for cached local receipt quotes.
	LocalCacheTTL duration `toml:"local_cache_ttl"`

	// UnderlyingCacheTTL is the freshness window for cached underlying
	// quotes.
	UnderlyingCacheTTL duration `toml:"underlying_cache_ttl"`

	// UnderlyingRetention is how long an expired underlying quote is kept
	// around to bridge weekend and holiday outages.
	UnderlyingRetention duration `toml:"underlying_retention"`

	// RequestTimeout bounds every upstream call.
	RequestTimeout duration `toml:"request_timeout"`

	// RateLimitInterval is the minimum interval between consecutive calls to
	// the same upstream source.
	RateLimitInterval duration `toml:"rate_limit_interval"`
}

// EngineConfig tunes opportunity detection.
type EngineConfig struct {
	// Threshold is the minimum absolute deviation (as a fraction, 0.005 =
	// 0.5%) for an opportunity to be emitted. The comparison is strict: a
	// deviation exactly at the threshold does not emit.
	Threshold float64 `toml:"threshold"`

	// Symbols is the portfolio scanned by the scan and watch modes.
	Symbols []string `toml:"symbols"`

	// BatchConcurrency bounds how many symbols are evaluated at once.
	BatchConcurrency int `toml:"batch_concurrency"`
}

// PostgresConfig holds the opportunity/rate history database parameters.
// Leave DSN and Host empty to run without persistence.
type PostgresConfig struct {
	DSN          string `toml:"dsn"`
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	Database     string `toml:"database"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	SSLMode      string `toml:"ssl_mode"`
	PoolMaxConns int    `toml:"pool_max_conns"`
	PoolMinConns int    `toml:"pool_min_conns"`
}

// RedisConfig holds Redis connection parameters. When Enabled is false the
// scanner uses in-process caches and rate limiting instead.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds object storage parameters for scan report archiving.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds the HTTP/WebSocket API parameters (serve mode).
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
}

// NotifyConfig holds alert channel credentials. Channels with empty
// credentials are skipped.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// WatchConfig tunes the periodic re-evaluation loop (watch mode).
type WatchConfig struct {
	Interval duration `toml:"interval"`
}

// duration wraps time.Duration so TOML values like "300s" or "72h" parse
// directly into config fields.
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Defaults returns a Config pre-populated with sensible defaults. Load merges
// the TOML file on top of this.
func Defaults() Config {
	return Config{
		IOL: IOLConfig{
			BaseURL: "https://api.invertironline.com",
		},
		Finnhub: FinnhubConfig{
			BaseURL: "https://finnhub.io/api/v1",
		},
		DolarAPI: DolarAPIConfig{
			BaseURL: "https://dolarapi.com/v1",
		},
		BYMA: BYMAConfig{
			BaseURL: "https://open.bymadata.com.ar/vanoms-be-core/rest/api/bymadata/free",
		},
		Catalog: CatalogConfig{
			Path: "byma_cedeares.json",
		},
		Resolver: ResolverConfig{
			FXSources:           []string{"dolarapi_ccl", "iol_al30"},
			FXCacheTTL:          duration{300 * time.Second},
			LocalCacheTTL:       duration{180 * time.Second},
			UnderlyingCacheTTL:  duration{300 * time.Second},
			UnderlyingRetention: duration{72 * time.Hour},
			RequestTimeout:      duration{15 * time.Second},
			RateLimitInterval:   duration{1 * time.Second},
		},
		Engine: EngineConfig{
			Threshold:        0.005,
			BatchConcurrency: 4,
		},
		Postgres: PostgresConfig{
			Port:         5432,
			SSLMode:      "disable",
			PoolMaxConns: 4,
			PoolMinConns: 1,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
		},
		S3: S3Config{
			Region: "us-east-1",
			UseSSL: true,
		},
		Server: ServerConfig{
			Port: 8080,
		},
		Watch: WatchConfig{
			Interval: duration{5 * time.Minute},
		},
		Mode:     "scan",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"scan":  true,
	"watch": true,
	"serve": true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var knownFXSources = map[string]bool{
	"dolarapi_ccl": true,
	"iol_al30":     true,
}

// Validate checks the configuration for inconsistencies and returns an error
// describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: scan, watch, serve)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Finnhub.APIKey == "" {
		errs = append(errs, "finnhub: api_key is required (underlying prices cannot be resolved without it)")
	}
	if c.DolarAPI.BaseURL == "" {
		errs = append(errs, "dolarapi: base_url must not be empty")
	}
	if c.BYMA.BaseURL == "" {
		errs = append(errs, "byma: base_url must not be empty")
	}
	if c.Catalog.Path == "" && c.Catalog.URL == "" {
		errs = append(errs, "catalog: either path or url must be set")
	}

	if len(c.Resolver.FXSources) == 0 {
		errs = append(errs, "resolver: fx_sources must not be empty")
	}
	for _, s := range c.Resolver.FXSources {
		if !knownFXSources[s] {
			errs = append(errs, fmt.Sprintf("resolver: unknown fx source %q (valid: dolarapi_ccl, iol_al30)", s))
		}
	}
	if c.Resolver.FXCacheTTL.Duration <= 0 {
		errs = append(errs, "resolver: fx_cache_ttl must be positive")
	}
	if c.Resolver.UnderlyingRetention.Duration < c.Resolver.UnderlyingCacheTTL.Duration {
		errs = append(errs, "resolver: underlying_retention must not be shorter than underlying_cache_ttl")
	}
	if c.Resolver.RequestTimeout.Duration <= 0 {
		errs = append(errs, "resolver: request_timeout must be positive")
	}

	if c.Engine.Threshold < 0 {
		errs = append(errs, "engine: threshold must not be negative")
	}
	if c.Engine.BatchConcurrency <= 0 {
		errs = append(errs, "engine: batch_concurrency must be positive")
	}

	// IOL credentials: the encrypted form needs its password; plaintext needs
	// both halves. Absent credentials are fine (public-data mode).
	if c.IOL.EncryptedCredentialsPath != "" && c.IOL.CredentialsPassword == "" {
		errs = append(errs, "iol: credentials_password is required when encrypted_credentials_path is set")
	}
	if c.IOL.Username != "" && c.IOL.Password == "" && c.IOL.EncryptedCredentialsPath == "" {
		errs = append(errs, "iol: password is required when username is set")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty when redis is enabled")
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when s3 is enabled")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty when s3 is enabled")
		}
	}

	if strings.ToLower(c.Mode) == "serve" && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Sprintf("server: invalid port %d", c.Server.Port))
	}
	// Serve mode runs the watch loop alongside the HTTP server, so both
	// modes need a usable interval.
	switch strings.ToLower(c.Mode) {
	case "watch", "serve":
		if c.Watch.Interval.Duration <= 0 {
			errs = append(errs, "watch: interval must be positive")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
