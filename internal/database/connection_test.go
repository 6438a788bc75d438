package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/medscan-resolver/internal/domain"
)

func startPostgres(t *testing.T) (Config, string) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping PostgreSQL container test in short mode")
	}

	ctx := context.Background()
	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate PostgreSQL container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	config := Config{
		Host:        host,
		Port:        port.Int(),
		Database:    "testdb",
		Username:    "testuser",
		Password:    "testpass",
		MaxConns:    10,
		MinConns:    2,
		MaxConnLife: time.Hour,
		MaxConnIdle: time.Minute * 30,
		SSLMode:     "disable",
	}
	url := fmt.Sprintf("postgres://testuser:testpass@%s:%d/testdb?sslmode=disable", host, port.Int())
	return config, url
}

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return logger
}

func TestDatabaseConnection(t *testing.T) {
	ctx := context.Background()
	config, _ := startPostgres(t)

	db, err := NewConnection(ctx, config, newTestLogger())
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Health(ctx))

	stats := db.Stats()
	assert.Greater(t, stats.TotalConns(), int32(0))
	t.Logf("Connection pool stats: Total=%d, Idle=%d, Used=%d",
		stats.TotalConns(), stats.IdleConns(), stats.AcquiredConns())
}

func TestMigrationRunner(t *testing.T) {
	ctx := context.Background()
	config, url := startPostgres(t)
	logger := newTestLogger()

	runner, err := NewMigrationRunner(url, logger)
	require.NoError(t, err)
	defer runner.Close()

	require.NoError(t, runner.Up(ctx))
	// second run is a no-op
	require.NoError(t, runner.Up(ctx))

	version, dirty, err := runner.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	db, err := NewConnection(ctx, config, logger)
	require.NoError(t, err)
	defer db.Close()

	var tables int
	err = db.Pool.QueryRow(ctx,
		`SELECT count(*) FROM information_schema.tables WHERE table_name IN ('drugs', 'safety_limits')`).Scan(&tables)
	require.NoError(t, err)
	assert.Equal(t, 2, tables)

	_, err = db.Pool.Exec(ctx,
		`INSERT INTO safety_limits (alias, max_single_dose_mg, max_daily_dose_mg) VALUES ('bad', 500, 100)`)
	assert.Error(t, err, "daily limit below single limit must be rejected")

	require.NoError(t, runner.Down(ctx))
	err = db.Pool.QueryRow(ctx,
		`SELECT count(*) FROM information_schema.tables WHERE table_name IN ('drugs', 'safety_limits')`).Scan(&tables)
	require.NoError(t, err)
	assert.Equal(t, 0, tables)
}

func TestConfigFromDomain(t *testing.T) {
	cfg := ConfigFromDomain(domain.DatabaseConfig{
		Host:            "db",
		Port:            5432,
		Database:        "medscan",
		Username:        "app",
		Password:        "secret",
		MaxOpenConns:    8,
		MaxIdleConns:    20,
		ConnMaxLifetime: 30 * time.Minute,
	})

	assert.Equal(t, int32(8), cfg.MaxConns)
	assert.Equal(t, int32(8), cfg.MinConns)
	assert.Equal(t, "disable", cfg.SSLMode)
	assert.Equal(t, 30*time.Minute, cfg.MaxConnLife)
	assert.Equal(t, "host=db port=5432 dbname=medscan user=app password=secret sslmode=disable", cfg.DSN())

	assert.Equal(t, int32(4), ConfigFromDomain(domain.DatabaseConfig{}).MaxConns)
}
