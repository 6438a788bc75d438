package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"

	"github.com/medscan-resolver/internal/domain"
)

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	v      *viper.Viper
	config *domain.Config
}

var _ domain.ConfigManager = (*Manager)(nil)

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	return NewManagerWithFile("")
}

// NewManagerWithFile creates a configuration manager reading an explicit config file.
// An empty path searches the default locations.
func NewManagerWithFile(path string) (*Manager, error) {
	m := &Manager{v: viper.New()}
	if path != "" {
		m.v.SetConfigFile(path)
	}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	v := m.v

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/medscan-resolver/")

	v.SetEnvPrefix("MEDSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	m.setDefaults()

	// Read configuration file (optional - will use defaults and env vars if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	v := m.v

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.max_batch_size", 50)
	v.SetDefault("server.enable_metrics", true)

	// Database defaults (postgres catalog source only)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "medscan")
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")

	// Catalog defaults
	v.SetDefault("catalog.source", domain.CatalogSourceEmbedded)
	v.SetDefault("catalog.drugs_path", "")
	v.SetDefault("catalog.safety_limits_path", "")
	v.SetDefault("catalog.sqlite_path", "./data/catalog.db")

	// Matching and validation defaults
	v.SetDefault("resolver.threshold", 0.65)
	v.SetDefault("resolver.prefix_confidence", 90)
	v.SetDefault("resolver.min_prefix_length", 3)
	v.SetDefault("resolver.memo_size", 1024)
	v.SetDefault("dosage.max_liquid_volume_ml", 50)
	v.SetDefault("pipeline.max_concurrency", 4)
	v.SetDefault("pipeline.deadline", "20s")

	// openFDA defaults
	v.SetDefault("openfda.enabled", true)
	v.SetDefault("openfda.base_url", "https://api.fda.gov")
	v.SetDefault("openfda.api_key", "")
	v.SetDefault("openfda.timeout", "10s")
	v.SetDefault("openfda.requests_per_minute", 240)

	// Cache defaults
	v.SetDefault("cache.backend", domain.CacheBackendMemory)
	v.SetDefault("cache.redis_url", "redis://localhost:6379")
	v.SetDefault("cache.default_ttl", "24h")
	v.SetDefault("cache.max_items", 1000)
	v.SetDefault("cache.max_retries", 3)
	v.SetDefault("cache.pool_size", 10)
	v.SetDefault("cache.pool_timeout", "4s")

	// Circuit breaker defaults
	v.SetDefault("circuit_breaker.max_requests", 3)
	v.SetDefault("circuit_breaker.interval", "30s")
	v.SetDefault("circuit_breaker.timeout", "60s")
	v.SetDefault("circuit_breaker.failure_threshold", 3)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.filename", "")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetDatabaseConfig returns database configuration
func (m *Manager) GetDatabaseConfig() *domain.DatabaseConfig {
	return &m.config.Database
}

// GetOpenFDAConfig returns label service configuration
func (m *Manager) GetOpenFDAConfig() *domain.OpenFDAConfig {
	return &m.config.OpenFDA
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}
	if config.Server.MaxBatchSize <= 0 {
		return fmt.Errorf("server max batch size must be positive: %d", config.Server.MaxBatchSize)
	}

	switch config.Catalog.Source {
	case domain.CatalogSourceEmbedded:
	case domain.CatalogSourceFile:
		if config.Catalog.DrugsPath == "" {
			return fmt.Errorf("catalog drugs path is required for the file source")
		}
	case domain.CatalogSourceSQLite:
		if config.Catalog.SQLitePath == "" {
			return fmt.Errorf("catalog sqlite path is required for the sqlite source")
		}
	case domain.CatalogSourcePostgres:
		if config.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if config.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if config.Database.Username == "" {
			return fmt.Errorf("database username is required")
		}
	default:
		return fmt.Errorf("invalid catalog source: %s", config.Catalog.Source)
	}

	if config.Resolver.Threshold < 0 || config.Resolver.Threshold > 1 {
		return fmt.Errorf("resolver threshold must be within [0,1]: %v", config.Resolver.Threshold)
	}
	if config.Resolver.PrefixConfidence < 0 || config.Resolver.PrefixConfidence > 100 {
		return fmt.Errorf("resolver prefix confidence must be within [0,100]: %d", config.Resolver.PrefixConfidence)
	}
	if config.Resolver.MinPrefixLength < 1 {
		return fmt.Errorf("resolver min prefix length must be at least 1: %d", config.Resolver.MinPrefixLength)
	}
	if config.Dosage.MaxLiquidVolumeMl <= 0 {
		return fmt.Errorf("dosage max liquid volume must be positive: %v", config.Dosage.MaxLiquidVolumeMl)
	}
	if config.Pipeline.MaxConcurrency <= 0 {
		return fmt.Errorf("pipeline max concurrency must be positive: %d", config.Pipeline.MaxConcurrency)
	}
	if config.Pipeline.Deadline <= 0 {
		return fmt.Errorf("pipeline deadline must be positive: %s", config.Pipeline.Deadline)
	}

	if config.OpenFDA.Enabled && config.OpenFDA.BaseURL == "" {
		return fmt.Errorf("openFDA base URL is required")
	}

	switch config.Cache.Backend {
	case domain.CacheBackendMemory, domain.CacheBackendNone:
	case domain.CacheBackendRedis:
		if config.Cache.RedisURL == "" {
			return fmt.Errorf("Redis URL is required for the redis cache backend")
		}
	default:
		return fmt.Errorf("invalid cache backend: %s", config.Cache.Backend)
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// GetDatabaseConnectionString returns a formatted database connection string
func (m *Manager) GetDatabaseConnectionString() string {
	db := m.config.Database
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		db.Host, db.Port, db.Username, db.Password, db.Database, db.SSLMode)
}

// GetDatabaseURL returns the database connection as a URL, the form golang-migrate expects
func (m *Manager) GetDatabaseURL() string {
	db := m.config.Database
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(db.Username, db.Password),
		Host:     fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:     "/" + db.Database,
		RawQuery: "sslmode=" + url.QueryEscape(db.SSLMode),
	}
	return u.String()
}

// GetRedisConnectionString returns the Redis connection string
func (m *Manager) GetRedisConnectionString() string {
	return m.config.Cache.RedisURL
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.v.GetString("environment")) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(m.v.GetString("environment"))
	return env == "development" || env == "dev" || env == ""
}
