package domain

import (
	"context"
)

// LabelVerifier looks a drug name up in the regulatory label service.
// Implementations never fail: any lookup problem yields a nil result.
type LabelVerifier interface {
	Verify(ctx context.Context, name string) *VerificationResult
}

// CatalogSource loads the knowledge base and safety-limit table at startup
type CatalogSource interface {
	LoadDrugs(ctx context.Context) ([]DrugRecord, error)
	LoadSafetyLimits(ctx context.Context) (map[string]SafetyLimit, error)
	Name() string
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetDatabaseConfig() *DatabaseConfig
	GetOpenFDAConfig() *OpenFDAConfig
	GetServerConfig() *ServerConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
	GetDatabaseURL() string
	GetRedisConnectionString() string
	IsProduction() bool
	IsDevelopment() bool
}
