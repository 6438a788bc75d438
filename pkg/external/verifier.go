package external

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/medscan-resolver/internal/domain"
)

// LabelSearcher is the raw label lookup wrapped by ResilientVerifier
type LabelSearcher interface {
	SearchLabel(ctx context.Context, name string) (*domain.VerificationResult, error)
}

// OutcomeRecorder receives one outcome per Verify call
type OutcomeRecorder interface {
	VerificationOutcome(outcome string)
}

// Verification outcomes
const (
	OutcomeVerified    = "verified"
	OutcomeNotFound    = "not_found"
	OutcomeError       = "error"
	OutcomeCircuitOpen = "circuit_open"
	OutcomeCacheHit    = "cache_hit"
	OutcomeSkipped     = "skipped"
)

// ResilientVerifier fronts the label service with a cache and a circuit breaker.
// It implements domain.LabelVerifier: every failure becomes a nil result.
type ResilientVerifier struct {
	client   LabelSearcher
	breaker  *gobreaker.CircuitBreaker
	cache    VerificationCache
	cacheTTL time.Duration
	recorder OutcomeRecorder
	logger   *logrus.Logger
}

// NewResilientVerifier creates a verifier. cache may be nil.
func NewResilientVerifier(
	client LabelSearcher,
	cache VerificationCache,
	cacheTTL time.Duration,
	breakerConfig domain.CircuitBreakerConfig,
	logger *logrus.Logger,
) *ResilientVerifier {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if breakerConfig.MaxRequests == 0 {
		breakerConfig.MaxRequests = 3
	}
	if breakerConfig.Interval == 0 {
		breakerConfig.Interval = 30 * time.Second
	}
	if breakerConfig.Timeout == 0 {
		breakerConfig.Timeout = 60 * time.Second
	}
	if breakerConfig.FailureThreshold == 0 {
		breakerConfig.FailureThreshold = 3
	}
	threshold := breakerConfig.FailureThreshold

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openFDA",
		MaxRequests: breakerConfig.MaxRequests,
		Interval:    breakerConfig.Interval,
		Timeout:     breakerConfig.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures >= threshold ||
				(counts.Requests >= threshold && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
		IsSuccessful: func(err error) bool {
			// a missing label or a caller-side cancellation says nothing about service health
			return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled)
		},
	})

	return &ResilientVerifier{
		client:   client,
		breaker:  breaker,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// WithRecorder attaches an outcome recorder such as the Prometheus metrics
func (v *ResilientVerifier) WithRecorder(recorder OutcomeRecorder) *ResilientVerifier {
	v.recorder = recorder
	return v
}

// Verify implements domain.LabelVerifier
func (v *ResilientVerifier) Verify(ctx context.Context, name string) *domain.VerificationResult {
	key := strings.ToLower(SanitizeDrugName(name))
	if key == "" {
		v.record(OutcomeSkipped)
		return nil
	}

	if v.cache != nil {
		cached, found, err := v.cache.Get(ctx, key)
		if err != nil {
			v.logger.WithError(err).WithField("drug", name).Debug("Label cache read failed")
		} else if found {
			v.record(OutcomeCacheHit)
			return cached
		}
	}

	result, err := v.breaker.Execute(func() (interface{}, error) {
		return v.client.SearchLabel(ctx, name)
	})

	switch {
	case err == nil:
		label := result.(*domain.VerificationResult)
		v.store(ctx, key, label)
		v.record(OutcomeVerified)
		return label
	case errors.Is(err, ErrNotFound):
		v.logger.WithField("drug", name).Debug("No label found")
		v.store(ctx, key, nil)
		v.record(OutcomeNotFound)
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		v.logger.WithField("drug", name).Debug("Label lookup skipped: circuit open")
		v.record(OutcomeCircuitOpen)
		return nil
	default:
		v.logger.WithError(err).WithField("drug", name).Warn("Label lookup failed")
		v.record(OutcomeError)
		return nil
	}
}

func (v *ResilientVerifier) store(ctx context.Context, key string, label *domain.VerificationResult) {
	if v.cache == nil {
		return
	}
	if err := v.cache.Set(ctx, key, label, v.cacheTTL); err != nil {
		v.logger.WithError(err).WithField("drug", key).Debug("Label cache write failed")
	}
}

func (v *ResilientVerifier) record(outcome string) {
	if v.recorder != nil {
		v.recorder.VerificationOutcome(outcome)
	}
}

// State reports the circuit breaker state
func (v *ResilientVerifier) State() gobreaker.State {
	return v.breaker.State()
}
