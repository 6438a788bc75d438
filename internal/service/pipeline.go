package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/medscan-resolver/internal/domain"
)

// Pipeline defaults
const (
	DefaultMaxConcurrency = 4
	DefaultDeadline       = 20 * time.Second
)

// Observer receives per-candidate and per-batch outcomes
type Observer interface {
	CandidateProcessed(kind domain.MatchKind, record domain.MedicationRecord)
	BatchProcessed(size int, elapsed time.Duration)
}

// Pipeline resolves, verifies, enriches and dose-checks medication candidates.
// Candidates are processed concurrently; output order always matches input order.
type Pipeline struct {
	resolver  *Resolver
	enricher  *Enricher
	validator *DosageValidator
	verifier  domain.LabelVerifier

	maxConcurrency int
	deadline       time.Duration

	observer Observer
	logger   *logrus.Logger
}

// NewPipeline wires the pipeline stages. verifier may be nil, in which case no
// record is ever label-verified.
func NewPipeline(
	resolver *Resolver,
	enricher *Enricher,
	validator *DosageValidator,
	verifier domain.LabelVerifier,
	config domain.PipelineConfig,
	logger *logrus.Logger,
) (*Pipeline, error) {
	if resolver == nil || validator == nil {
		return nil, fmt.Errorf("pipeline requires a resolver and a dosage validator")
	}
	if enricher == nil {
		enricher = NewEnricher(0)
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = DefaultMaxConcurrency
	}
	if config.Deadline <= 0 {
		config.Deadline = DefaultDeadline
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Pipeline{
		resolver:       resolver,
		enricher:       enricher,
		validator:      validator,
		verifier:       verifier,
		maxConcurrency: config.MaxConcurrency,
		deadline:       config.Deadline,
		logger:         logger,
	}, nil
}

// WithObserver attaches an observer such as the Prometheus metrics
func (p *Pipeline) WithObserver(observer Observer) *Pipeline {
	p.observer = observer
	return p
}

// Process runs every candidate through the pipeline. It never fails: a candidate
// that cannot be resolved or verified still yields a record.
func (p *Pipeline) Process(ctx context.Context, candidates []domain.ExtractedMedication) []domain.MedicationRecord {
	records := make([]domain.MedicationRecord, len(candidates))
	if len(candidates) == 0 {
		return records
	}

	batchID := uuid.New().String()
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, p.deadline)
	defer cancel()

	var g errgroup.Group
	g.SetLimit(p.maxConcurrency)

	for i, candidate := range candidates {
		g.Go(func() error {
			records[i] = p.processOne(ctx, batchID, candidate)
			return nil
		})
	}
	_ = g.Wait()

	elapsed := time.Since(start)
	p.logSummary(batchID, records, elapsed)
	if p.observer != nil {
		p.observer.BatchProcessed(len(records), elapsed)
	}

	return records
}

// ProcessNames runs plain medicine names through the pipeline
func (p *Pipeline) ProcessNames(ctx context.Context, names []string) []domain.MedicationRecord {
	candidates := make([]domain.ExtractedMedication, len(names))
	for i, name := range names {
		candidates[i] = domain.ExtractedMedication{ClaimedName: name}
	}
	return p.Process(ctx, candidates)
}

func (p *Pipeline) processOne(ctx context.Context, batchID string, candidate domain.ExtractedMedication) domain.MedicationRecord {
	resolution := p.resolver.Resolve(candidate.ResolutionInput())

	verification := p.verify(ctx, batchID, displayName(candidate, resolution))

	record := p.enricher.Enrich(candidate, resolution, verification)
	record.DosageCheck = p.validator.ValidateDosageAny(dosageLookupNames(record, resolution), candidate.DosageText)

	if p.observer != nil {
		p.observer.CandidateProcessed(resolution.MatchKind, record)
	}
	return record
}

// verify calls the label verifier but never waits past the batch deadline
func (p *Pipeline) verify(ctx context.Context, batchID, name string) *domain.VerificationResult {
	name = strings.TrimSpace(name)
	if p.verifier == nil || name == "" {
		return nil
	}
	if ctx.Err() != nil {
		return nil
	}

	done := make(chan *domain.VerificationResult, 1)
	go func() {
		done <- p.verifier.Verify(ctx, name)
	}()

	select {
	case result := <-done:
		return result
	case <-ctx.Done():
		p.logger.WithFields(logrus.Fields{
			"batch_id": batchID,
			"drug":     name,
		}).Warn("Label verification cut off by pipeline deadline")
		return nil
	}
}

// dosageLookupNames lists the names tried against the safety table, most specific first
func dosageLookupNames(record domain.MedicationRecord, resolution domain.ResolutionResult) []string {
	names := []string{record.Name}
	if resolution.ResolvedName != nil {
		names = append(names, *resolution.ResolvedName)
	}
	if rec := resolution.MatchedRecord; rec != nil {
		names = append(names, rec.Name, rec.Brand)
	}
	return append(names, record.GenericName)
}

func (p *Pipeline) logSummary(batchID string, records []domain.MedicationRecord, elapsed time.Duration) {
	var resolved, verified, flagged int
	for _, r := range records {
		if !r.Unresolved {
			resolved++
		}
		if r.FDAVerified {
			verified++
		}
		if !r.DosageCheck.IsSafe {
			flagged++
		}
	}

	p.logger.WithFields(logrus.Fields{
		"batch_id":   batchID,
		"candidates": len(records),
		"resolved":   resolved,
		"verified":   verified,
		"flagged":    flagged,
		"elapsed_ms": elapsed.Milliseconds(),
	}).Info("Processed medication batch")
}

// Resolver returns the pipeline's resolver
func (p *Pipeline) Resolver() *Resolver {
	return p.resolver
}

// Validator returns the pipeline's dosage validator
func (p *Pipeline) Validator() *DosageValidator {
	return p.validator
}
