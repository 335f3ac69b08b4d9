package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the application
type Config struct {
	// Data provider configuration
	Providers ProvidersConfig

	// Database configuration
	Database DatabaseConfig

	// Redis configuration (response cache + enrichment queue)
	Redis RedisConfig

	// API server configuration
	API APIConfig

	// Enricher configuration
	Enricher EnricherConfig

	// Logging configuration
	Log LogConfig
}

// ProvidersConfig holds external data provider settings
type ProvidersConfig struct {
	DebankBaseURL    string        `envconfig:"DEBANK_BASE_URL" default:"https://pro-openapi.debank.com"`
	DebankAccessKey  string        `envconfig:"DEBANK_ACCESS_KEY" default:""`
	AlchemyAPIKey    string        `envconfig:"ALCHEMY_API_KEY" default:""`
	CoingeckoBaseURL string        `envconfig:"COINGECKO_BASE_URL" default:"https://api.coingecko.com/api/v3"`
	RequestTimeout   time.Duration `envconfig:"PROVIDER_REQUEST_TIMEOUT" default:"30s"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host            string        `envconfig:"DB_HOST" default:"localhost"`
	Port            int           `envconfig:"DB_PORT" default:"5432"`
	User            string        `envconfig:"DB_USER" default:"enricher"`
	Password        string        `envconfig:"DB_PASSWORD" default:"enricher"`
	Name            string        `envconfig:"DB_NAME" default:"portfolio_enricher"`
	SSLMode         string        `envconfig:"DB_SSL_MODE" default:"disable"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"5m"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// APIConfig holds API server settings
type APIConfig struct {
	Host            string        `envconfig:"API_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"API_PORT" default:"8081"`
	ReadTimeout     time.Duration `envconfig:"API_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"API_WRITE_TIMEOUT" default:"10s"`
	ShutdownTimeout time.Duration `envconfig:"API_SHUTDOWN_TIMEOUT" default:"30s"`
	RateLimitRPS    int           `envconfig:"API_RATE_LIMIT_RPS" default:"100"`
	CacheTTL        time.Duration `envconfig:"API_CACHE_TTL" default:"30s"`
}

// EnricherConfig holds enrichment worker settings
type EnricherConfig struct {
	MetricsPort     int           `envconfig:"ENRICHER_METRICS_PORT" default:"8080"`
	WorkerCount     int           `envconfig:"ENRICHER_WORKER_COUNT" default:"4"`
	QueueKey        string        `envconfig:"ENRICHER_QUEUE_KEY" default:"enrichment:queue"`
	PollTimeout     time.Duration `envconfig:"ENRICHER_POLL_TIMEOUT" default:"5s"`
	PriceCacheTTL   time.Duration `envconfig:"ENRICHER_PRICE_CACHE_TTL" default:"5m"`
	PriceBatchLimit int           `envconfig:"ENRICHER_PRICE_BATCH_LIMIT" default:"10"`
	PriceBatchDelay time.Duration `envconfig:"ENRICHER_PRICE_BATCH_DELAY" default:"500ms"`
	ScanPriceLimit  int           `envconfig:"ENRICHER_SCAN_PRICE_LIMIT" default:"20"`
	SyncStaleAfter  time.Duration `envconfig:"ENRICHER_SYNC_STALE_AFTER" default:"5m"`

	// EVM chains scanned when the primary provider has no data
	FallbackChains []string `envconfig:"ENRICHER_FALLBACK_CHAINS" default:"ethereum,base,arbitrum"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"json"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
