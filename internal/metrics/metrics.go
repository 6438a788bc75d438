// Package metrics exposes Prometheus metrics for the resolution pipeline and its HTTP API:
//   - medscan_candidates_total: Counter with match and verified labels
//   - medscan_dosage_findings_total: Counter with result label
//   - medscan_verifications_total: Counter with outcome label
//   - medscan_batch_duration_seconds: Histogram of whole-batch latency
//   - medscan_http_requests_total / medscan_http_request_duration_seconds: API traffic
//
// Each Metrics value owns its registry, so tests can create as many as they need.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/medscan-resolver/internal/domain"
)

const namespace = "medscan"

// Metrics holds the pipeline and API collectors
type Metrics struct {
	registry *prometheus.Registry

	Candidates     *prometheus.CounterVec
	DosageFindings *prometheus.CounterVec
	Verifications  *prometheus.CounterVec
	BatchDuration  prometheus.Histogram
	BatchSize      prometheus.Histogram

	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPInFlight        prometheus.Gauge
}

// New creates and registers all collectors on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Candidates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "candidates_total",
				Help:      "Medication candidates processed, by match kind and label verification",
			},
			[]string{"match", "verified"},
		),
		DosageFindings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dosage_findings_total",
				Help:      "Dosage validator verdicts",
			},
			[]string{"result"},
		),
		Verifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "verifications_total",
				Help:      "Drug label lookups by outcome",
			},
			[]string{"outcome"},
		),
		BatchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_duration_seconds",
				Help:      "Time to process one batch of candidates",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 20, 30},
			},
		),
		BatchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_size",
				Help:      "Candidates per batch",
				Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 50},
			},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current in-flight requests",
			},
		),
	}

	m.registry.MustRegister(
		m.Candidates,
		m.DosageFindings,
		m.Verifications,
		m.BatchDuration,
		m.BatchSize,
		m.HTTPRequests,
		m.HTTPRequestDuration,
		m.HTTPInFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// CandidateProcessed records one finished medication record
func (m *Metrics) CandidateProcessed(kind domain.MatchKind, record domain.MedicationRecord) {
	m.Candidates.WithLabelValues(string(kind), strconv.FormatBool(record.FDAVerified)).Inc()

	result := "safe"
	if !record.DosageCheck.IsSafe {
		result = "flagged"
	}
	m.DosageFindings.WithLabelValues(result).Inc()
}

// BatchProcessed records one finished batch
func (m *Metrics) BatchProcessed(size int, elapsed time.Duration) {
	m.BatchSize.Observe(float64(size))
	m.BatchDuration.Observe(elapsed.Seconds())
}

// VerificationOutcome records a label lookup outcome such as "verified", "not_found",
// "error", "circuit_open" or "cache_hit"
func (m *Metrics) VerificationOutcome(outcome string) {
	m.Verifications.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency per route
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		m.HTTPInFlight.Inc()
		defer m.HTTPInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.HTTPRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
