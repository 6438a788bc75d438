package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medscan-resolver/internal/domain"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func TestNew_EmbeddedWithoutVerification(t *testing.T) {
	cfg := &domain.Config{
		Catalog:  domain.CatalogConfig{Source: domain.CatalogSourceEmbedded},
		Pipeline: domain.PipelineConfig{MaxConcurrency: 2, Deadline: time.Second},
	}

	a, err := New(context.Background(), cfg, newTestLogger())
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Verifier)
	assert.Nil(t, a.Cache)
	assert.Empty(t, a.HealthChecks())

	records := a.Pipeline.ProcessNames(context.Background(), []string{"Calpol"})
	require.Len(t, records, 1)
	assert.Equal(t, "Calpol", records[0].Name)
	assert.False(t, records[0].FDAVerified)
}

func TestNew_WithVerifierAndMemoryCache(t *testing.T) {
	cfg := &domain.Config{
		Catalog: domain.CatalogConfig{Source: domain.CatalogSourceEmbedded},
		OpenFDA: domain.OpenFDAConfig{Enabled: true, BaseURL: "http://127.0.0.1:1"},
		Cache:   domain.CacheConfig{Backend: domain.CacheBackendMemory},
	}

	a, err := New(context.Background(), cfg, newTestLogger())
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Verifier)
	require.NotNil(t, a.Cache)

	checks := a.HealthChecks()
	require.Contains(t, checks, "label_service")
	assert.NoError(t, checks["label_service"](context.Background()))
}

func TestNew_SQLiteSource(t *testing.T) {
	cfg := &domain.Config{
		Catalog: domain.CatalogConfig{
			Source:     domain.CatalogSourceSQLite,
			SQLitePath: filepath.Join(t.TempDir(), "catalog.db"),
		},
	}

	// an empty SQLite catalog is malformed
	_, err := New(context.Background(), cfg, newTestLogger())
	var catalogErr *domain.CatalogError
	assert.ErrorAs(t, err, &catalogErr)
}

func TestNew_FileSourceErrors(t *testing.T) {
	drugs := filepath.Join(t.TempDir(), "drugs.json")
	require.NoError(t, os.WriteFile(drugs, []byte(`[{"name":"Calpol","brand":"Calpol"},{"name":"Dolo","brand":"Calpol"}]`), 0644))

	cfg := &domain.Config{Catalog: domain.CatalogConfig{Source: domain.CatalogSourceFile, DrugsPath: drugs}}

	_, err := New(context.Background(), cfg, newTestLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collides")
}
