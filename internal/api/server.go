package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/medscan-resolver/internal/domain"
	"github.com/medscan-resolver/internal/metrics"
	"github.com/medscan-resolver/internal/middleware"
	"github.com/medscan-resolver/internal/service"
)

const (
	defaultMaxBatchSize = 50
	maxRequestBodyBytes = 1 << 20
	healthCheckTimeout  = 2 * time.Second
	shutdownTimeout     = 30 * time.Second
)

// HealthCheck reports whether a dependency such as the cache or database is reachable
type HealthCheck func(ctx context.Context) error

// Server represents the HTTP server
type Server struct {
	config   domain.ServerConfig
	pipeline *service.Pipeline
	metrics  *metrics.Metrics
	logger   *logrus.Logger

	router *gin.Engine
	server *http.Server

	checksMu sync.RWMutex
	checks   map[string]HealthCheck
}

// NewServer creates a new HTTP server instance. m may be nil to disable /metrics.
func NewServer(config domain.ServerConfig, pipeline *service.Pipeline, m *metrics.Metrics, logger *logrus.Logger) *Server {
	if config.MaxBatchSize <= 0 {
		config.MaxBatchSize = defaultMaxBatchSize
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	if logger.IsLevelEnabled(logrus.DebugLevel) {
		gin.SetMode(gin.DebugMode)
	} else if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.AccessLog(logger))
	if m != nil {
		router.Use(m.Middleware())
	}

	s := &Server{
		config:   config,
		pipeline: pipeline,
		metrics:  m,
		logger:   logger,
		router:   router,
		checks:   make(map[string]HealthCheck),
	}
	s.setupRoutes()

	return s
}

// AddHealthCheck registers a dependency probe reported by /health
func (s *Server) AddHealthCheck(name string, check HealthCheck) {
	s.checksMu.Lock()
	defer s.checksMu.Unlock()
	s.checks[name] = check
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	if s.metrics != nil && s.config.EnableMetrics {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/medications/resolve", s.handleResolve)
		v1.POST("/dosage/validate", s.handleValidateDosage)
		v1.GET("/catalog/targets", s.handleCatalogTargets)
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	s.checksMu.RLock()
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	results := make(map[string]string, len(names))
	for _, name := range names {
		if err := s.checks[name](ctx); err != nil {
			results[name] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
		} else {
			results[name] = "ok"
		}
	}
	s.checksMu.RUnlock()

	catalog := s.pipeline.Resolver().Catalog()
	c.JSON(code, gin.H{
		"status":         status,
		"timestamp":      time.Now().UTC(),
		"version":        "1.0.0",
		"catalog_source": catalog.Source(),
		"catalog_size":   catalog.Len(),
		"checks":         results,
	})
}

// ResolveRequest is the body of POST /api/v1/medications/resolve.
// Exactly one of Medicines or Names must be set.
type ResolveRequest struct {
	Medicines []domain.ExtractedMedication `json:"medicines"`
	Names     []string                     `json:"names"`
}

// ResolveResponse wraps the processed records
type ResolveResponse struct {
	Medicines []domain.MedicationRecord `json:"medicines"`
	Count     int                       `json:"count"`
}

func (s *Server) handleResolve(c *gin.Context) {
	var req ResolveRequest
	if !s.bindJSON(c, &req) {
		return
	}

	switch {
	case len(req.Medicines) > 0 && len(req.Names) > 0:
		s.respondError(c, http.StatusBadRequest, domain.ErrInvalidInput,
			"send either medicines or names, not both", "")
		return
	case len(req.Medicines) == 0 && len(req.Names) == 0:
		s.respondError(c, http.StatusBadRequest, domain.ErrInvalidInput,
			"no medicines to resolve", "")
		return
	}

	size := len(req.Medicines) + len(req.Names)
	if size > s.config.MaxBatchSize {
		s.respondError(c, http.StatusRequestEntityTooLarge, domain.ErrValidation,
			fmt.Sprintf("batch of %d exceeds the limit of %d", size, s.config.MaxBatchSize), "")
		return
	}

	var records []domain.MedicationRecord
	if len(req.Medicines) > 0 {
		records = s.pipeline.Process(c.Request.Context(), req.Medicines)
	} else {
		records = s.pipeline.ProcessNames(c.Request.Context(), req.Names)
	}

	c.JSON(http.StatusOK, ResolveResponse{Medicines: records, Count: len(records)})
}

// DosageRequest is the body of POST /api/v1/dosage/validate
type DosageRequest struct {
	Drug   string `json:"drug"`
	Dosage string `json:"dosage"`
}

func (s *Server) handleValidateDosage(c *gin.Context) {
	var req DosageRequest
	if !s.bindJSON(c, &req) {
		return
	}
	if strings.TrimSpace(req.Drug) == "" {
		err := domain.NewValidationError("drug", "drug name is required", req.Drug)
		s.respondError(c, http.StatusBadRequest, domain.ErrValidation, err.Error(), "")
		return
	}

	c.JSON(http.StatusOK, s.pipeline.Validator().ValidateDosage(req.Drug, req.Dosage))
}

func (s *Server) handleCatalogTargets(c *gin.Context) {
	catalog := s.pipeline.Resolver().Catalog()
	targets := catalog.Targets()

	c.JSON(http.StatusOK, gin.H{
		"source":  catalog.Source(),
		"count":   len(targets),
		"targets": targets,
	})
}

func (s *Server) bindJSON(c *gin.Context, dst any) bool {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBodyBytes)
	if err := c.ShouldBindJSON(dst); err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrInvalidInput, "malformed request body", err.Error())
		return false
	}
	return true
}

func (s *Server) respondError(c *gin.Context, status int, code, message, details string) {
	serviceErr := domain.NewServiceError(code, message, details, middleware.GetCorrelationID(c))
	c.AbortWithStatusJSON(status, gin.H{"error": serviceErr})
}
