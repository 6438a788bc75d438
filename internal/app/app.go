// Package app assembles the medication pipeline from configuration. Both the
// HTTP server and the operator CLI are built on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/medscan-resolver/internal/database"
	"github.com/medscan-resolver/internal/domain"
	"github.com/medscan-resolver/internal/knowledge"
	"github.com/medscan-resolver/internal/metrics"
	"github.com/medscan-resolver/internal/repository"
	"github.com/medscan-resolver/internal/service"
	"github.com/medscan-resolver/pkg/external"
)

// App holds the wired pipeline and the resources it owns
type App struct {
	Pipeline  *service.Pipeline
	Knowledge *knowledge.KnowledgeBase
	Metrics   *metrics.Metrics
	Verifier  *external.ResilientVerifier
	Cache     external.VerificationCache
	DB        *database.DB

	closers []io.Closer
	logger  *logrus.Logger
}

// New loads the catalog and wires every pipeline stage. The returned App must be closed.
func New(ctx context.Context, cfg *domain.Config, logger *logrus.Logger) (*App, error) {
	a := &App{
		Metrics: metrics.New(),
		logger:  logger,
	}

	source, err := a.openSource(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	kb, err := knowledge.Load(ctx, source)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	a.Knowledge = kb

	logger.WithFields(logrus.Fields{
		"source":        source.Name(),
		"drugs":         kb.Catalog.Len(),
		"targets":       len(kb.Catalog.Targets()),
		"safety_limits": kb.Safety.Len(),
	}).Info("Catalog loaded")

	resolver, err := service.NewResolver(kb.Catalog, cfg.Resolver, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create resolver: %w", err)
	}
	validator, err := service.NewDosageValidator(kb.Safety, cfg.Dosage, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create dosage validator: %w", err)
	}

	var verifier domain.LabelVerifier
	if cfg.OpenFDA.Enabled {
		cache, err := external.NewVerificationCache(cfg.Cache)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create verification cache: %w", err)
		}
		if cache != nil {
			a.Cache = cache
			a.closers = append(a.closers, cache)
		}

		client := external.NewOpenFDAClient(cfg.OpenFDA)
		a.Verifier = external.NewResilientVerifier(client, cache, cfg.Cache.DefaultTTL, cfg.CircuitBreaker, logger).
			WithRecorder(a.Metrics)
		verifier = a.Verifier
	} else {
		logger.Warn("Label verification disabled: records will not be FDA verified")
	}

	pipeline, err := service.NewPipeline(resolver, service.NewEnricher(0), validator, verifier, cfg.Pipeline, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}
	a.Pipeline = pipeline.WithObserver(a.Metrics)

	return a, nil
}

func (a *App) openSource(ctx context.Context, cfg *domain.Config) (domain.CatalogSource, error) {
	if cfg.Catalog.Source != domain.CatalogSourcePostgres {
		source, err := knowledge.NewSource(cfg.Catalog)
		if err != nil {
			return nil, fmt.Errorf("failed to open catalog source: %w", err)
		}
		if closer, ok := source.(io.Closer); ok {
			a.closers = append(a.closers, closer)
		}
		return source, nil
	}

	db, err := database.NewConnection(ctx, database.ConfigFromDomain(cfg.Database), a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to catalog database: %w", err)
	}
	a.DB = db
	return repository.NewCatalogRepository(db.Pool, a.logger), nil
}

// HealthChecks returns probes for the external dependencies in use
func (a *App) HealthChecks() map[string]func(ctx context.Context) error {
	checks := make(map[string]func(ctx context.Context) error)
	if a.DB != nil {
		checks["database"] = a.DB.Health
	}
	if redisCache, ok := a.Cache.(*external.RedisCache); ok {
		checks["cache"] = redisCache.Ping
	}
	if a.Verifier != nil {
		verifier := a.Verifier
		checks["label_service"] = func(ctx context.Context) error {
			if verifier.State() == gobreaker.StateOpen {
				return errors.New("circuit breaker open")
			}
			return nil
		}
	}
	return checks
}

// Close releases the cache, the catalog source and the database pool
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if a.DB != nil {
		a.DB.Close()
		a.DB = nil
	}
	return errors.Join(errs...)
}
