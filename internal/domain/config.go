package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Catalog        CatalogConfig        `mapstructure:"catalog"`
	Resolver       ResolverConfig       `mapstructure:"resolver"`
	Dosage         DosageConfig         `mapstructure:"dosage"`
	Pipeline       PipelineConfig       `mapstructure:"pipeline"`
	OpenFDA        OpenFDAConfig        `mapstructure:"openfda"`
	Cache          CacheConfig          `mapstructure:"cache"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Logging        LoggingConfig        `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	MaxBatchSize  int           `mapstructure:"max_batch_size"`
	EnableMetrics bool          `mapstructure:"enable_metrics"`
}

// DatabaseConfig represents the Postgres connection used when the catalog lives in Postgres
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// Catalog source kinds
const (
	CatalogSourceEmbedded = "embedded"
	CatalogSourceFile     = "file"
	CatalogSourceSQLite   = "sqlite"
	CatalogSourcePostgres = "postgres"
)

// CatalogConfig selects where the knowledge base and safety table are loaded from
type CatalogConfig struct {
	Source           string `mapstructure:"source"`
	DrugsPath        string `mapstructure:"drugs_path"`
	SafetyLimitsPath string `mapstructure:"safety_limits_path"`
	SQLitePath       string `mapstructure:"sqlite_path"`
}

// ResolverConfig tunes catalog matching
type ResolverConfig struct {
	Threshold        float64 `mapstructure:"threshold"`
	PrefixConfidence int     `mapstructure:"prefix_confidence"`
	MinPrefixLength  int     `mapstructure:"min_prefix_length"`
	MemoSize         int     `mapstructure:"memo_size"`
}

// DosageConfig tunes the dosage validator
type DosageConfig struct {
	MaxLiquidVolumeMl float64 `mapstructure:"max_liquid_volume_ml"`
}

// PipelineConfig bounds per-request fan-out
type PipelineConfig struct {
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	Deadline       time.Duration `mapstructure:"deadline"`
}

// OpenFDAConfig represents openFDA drug label API configuration
type OpenFDAConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	Enabled           bool          `mapstructure:"enabled"`
}

// Cache backends
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
	CacheBackendNone   = "none"
)

// CacheConfig represents verification cache configuration
type CacheConfig struct {
	Backend     string        `mapstructure:"backend"`
	RedisURL    string        `mapstructure:"redis_url"`
	DefaultTTL  time.Duration `mapstructure:"default_ttl"`
	MaxItems    int           `mapstructure:"max_items"`
	MaxRetries  int           `mapstructure:"max_retries"`
	PoolSize    int           `mapstructure:"pool_size"`
	PoolTimeout time.Duration `mapstructure:"pool_timeout"`
}

// CircuitBreakerConfig represents circuit breaker configuration for the label service
type CircuitBreakerConfig struct {
	MaxRequests      uint32        `mapstructure:"max_requests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	Filename string `mapstructure:"filename"`
}
