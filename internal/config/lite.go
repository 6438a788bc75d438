// Package config provides configuration management for the resolver.
// This file contains the lightweight configuration used by the operator CLI.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/medscan-resolver/internal/domain"
)

// LiteConfig is a simplified configuration for standalone operation.
// It requires no config file and reads only environment variables.
type LiteConfig struct {
	// Data storage
	DataDir string // Base directory for the SQLite catalog

	// Catalog
	CatalogPath      string // Optional drugs file; empty means the embedded catalog
	SafetyLimitsPath string // Optional safety-limit file

	// Matching
	Threshold float64

	// Cache settings
	CacheMaxItems int
	CacheTTL      time.Duration

	// Label service
	OpenFDAAPIKey  string // Optional: raises the openFDA rate limit
	OpenFDAEnabled bool

	// Logging
	LogLevel  string
	LogFormat string
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".medscan")

	return &LiteConfig{
		DataDir:        dataDir,
		Threshold:      0.65,
		CacheMaxItems:  1000,
		CacheTTL:       24 * time.Hour,
		OpenFDAEnabled: true,
		LogLevel:       "warn",
		LogFormat:      "text",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	if v := os.Getenv("MEDSCAN_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	cfg.CatalogPath = os.Getenv("MEDSCAN_CATALOG_PATH")
	cfg.SafetyLimitsPath = os.Getenv("MEDSCAN_SAFETY_LIMITS_PATH")

	if v := os.Getenv("MEDSCAN_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
			cfg.Threshold = f
		}
	}

	if v := os.Getenv("MEDSCAN_CACHE_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxItems = n
		}
	}
	if v := os.Getenv("MEDSCAN_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CacheTTL = d
		}
	}

	cfg.OpenFDAAPIKey = os.Getenv("OPENFDA_API_KEY")
	if v := os.Getenv("MEDSCAN_OPENFDA_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.OpenFDAEnabled = b
		}
	}

	if v := os.Getenv("MEDSCAN_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("MEDSCAN_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// CatalogDBPath returns the path to the SQLite catalog database.
func (c *LiteConfig) CatalogDBPath() string {
	return filepath.Join(c.DataDir, "catalog.db")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0755)
}

// ToConfig expands the lite settings into a full configuration with the
// same defaults the server uses.
func (c *LiteConfig) ToConfig() *domain.Config {
	catalog := domain.CatalogConfig{
		Source:     domain.CatalogSourceEmbedded,
		SQLitePath: c.CatalogDBPath(),
	}
	if c.CatalogPath != "" {
		catalog.Source = domain.CatalogSourceFile
		catalog.DrugsPath = c.CatalogPath
		catalog.SafetyLimitsPath = c.SafetyLimitsPath
	}

	return &domain.Config{
		Catalog: catalog,
		Resolver: domain.ResolverConfig{
			Threshold:        c.Threshold,
			PrefixConfidence: 90,
			MinPrefixLength:  3,
			MemoSize:         256,
		},
		Dosage:   domain.DosageConfig{MaxLiquidVolumeMl: 50},
		Pipeline: domain.PipelineConfig{MaxConcurrency: 4, Deadline: 20 * time.Second},
		OpenFDA: domain.OpenFDAConfig{
			BaseURL:           "https://api.fda.gov",
			APIKey:            c.OpenFDAAPIKey,
			Timeout:           10 * time.Second,
			RequestsPerMinute: 240,
			Enabled:           c.OpenFDAEnabled,
		},
		Cache: domain.CacheConfig{
			Backend:    domain.CacheBackendMemory,
			MaxItems:   c.CacheMaxItems,
			DefaultTTL: c.CacheTTL,
		},
		Logging: domain.LoggingConfig{
			Level:  c.LogLevel,
			Format: c.LogFormat,
			Output: "stderr",
		},
	}
}
