package service

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	"github.com/medscan-resolver/internal/domain"
	"github.com/medscan-resolver/internal/knowledge"
	"github.com/medscan-resolver/pkg/similarity"
)

// Resolver defaults
const (
	DefaultThreshold        = 0.65
	DefaultPrefixConfidence = 90
	DefaultMinPrefixLength  = 3
	DefaultMemoSize         = 1024
)

type matchTarget struct {
	display    string
	normalized string
	length     int
}

// Resolver maps noisy drug names onto catalog entries.
// It is safe for concurrent use.
type Resolver struct {
	catalog *knowledge.Catalog
	targets []matchTarget

	threshold        float64
	prefixConfidence int
	minPrefixLength  int

	// Memo of results keyed by normalized input
	memo *lru.Cache

	logger  *logrus.Logger
	stats   ResolverStats
	statsMu sync.RWMutex
}

// ResolverStats counts resolver outcomes
type ResolverStats struct {
	Requests   int64 `json:"requests"`
	MemoHits   int64 `json:"memo_hits"`
	Exact      int64 `json:"exact"`
	Prefix     int64 `json:"prefix"`
	Fuzzy      int64 `json:"fuzzy"`
	Unresolved int64 `json:"unresolved"`
}

// NewResolver creates a resolver over catalog. Zero config values take defaults.
func NewResolver(catalog *knowledge.Catalog, config domain.ResolverConfig, logger *logrus.Logger) (*Resolver, error) {
	if catalog == nil {
		return nil, fmt.Errorf("resolver requires a catalog")
	}
	if config.Threshold == 0 {
		config.Threshold = DefaultThreshold
	}
	if config.Threshold < 0 || config.Threshold > 1 {
		return nil, fmt.Errorf("resolver threshold must be within [0,1], got %v", config.Threshold)
	}
	if config.PrefixConfidence == 0 {
		config.PrefixConfidence = DefaultPrefixConfidence
	}
	if config.PrefixConfidence < 0 || config.PrefixConfidence > 100 {
		return nil, fmt.Errorf("prefix confidence must be within [0,100], got %d", config.PrefixConfidence)
	}
	if config.MinPrefixLength <= 0 {
		config.MinPrefixLength = DefaultMinPrefixLength
	}
	if config.MemoSize <= 0 {
		config.MemoSize = DefaultMemoSize
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	memo, err := lru.New(config.MemoSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolver memo: %w", err)
	}

	targets := catalog.Targets()
	r := &Resolver{
		catalog:          catalog,
		targets:          make([]matchTarget, 0, len(targets)),
		threshold:        config.Threshold,
		prefixConfidence: config.PrefixConfidence,
		minPrefixLength:  config.MinPrefixLength,
		memo:             memo,
		logger:           logger,
	}
	for _, t := range targets {
		norm := similarity.Normalize(t)
		r.targets = append(r.targets, matchTarget{
			display:    t,
			normalized: norm,
			length:     utf8.RuneCountInString(norm),
		})
	}

	return r, nil
}

// Resolve finds the best catalog match for raw. It never fails: an input that
// matches nothing yields a result with a nil ResolvedName and the best score seen.
func (r *Resolver) Resolve(raw string) domain.ResolutionResult {
	r.incrementStat(func(s *ResolverStats) { s.Requests++ })

	input := similarity.Normalize(raw)
	if input == "" {
		r.incrementStat(func(s *ResolverStats) { s.Unresolved++ })
		return domain.ResolutionResult{RawInput: raw, MatchKind: domain.MatchNone}
	}

	if cached, ok := r.memo.Get(input); ok {
		r.incrementStat(func(s *ResolverStats) { s.MemoHits++ })
		return withRawInput(cached.(domain.ResolutionResult), raw)
	}

	result := r.match(input)
	r.memo.Add(input, result)
	r.recordOutcome(result.MatchKind)

	r.logger.WithFields(logrus.Fields{
		"input":      raw,
		"match":      result.MatchKind,
		"confidence": result.Confidence,
		"resolved":   result.Resolved(),
	}).Debug("Resolved candidate name")

	return withRawInput(result, raw)
}

func (r *Resolver) match(input string) domain.ResolutionResult {
	for _, t := range r.targets {
		if t.normalized == input {
			return r.accept(t, 100, domain.MatchExact)
		}
	}

	inputLen := utf8.RuneCountInString(input)
	for _, t := range r.targets {
		if r.isPrefixMatch(input, inputLen, t) {
			return r.accept(t, r.prefixConfidence, domain.MatchPrefix)
		}
	}

	best := -1.0
	var bestTarget matchTarget
	for _, t := range r.targets {
		// strict comparison keeps the first-seen target on ties
		if score := similarity.Similarity(input, t.normalized); score > best {
			best = score
			bestTarget = t
		}
	}

	if best < 0 {
		return domain.ResolutionResult{MatchKind: domain.MatchNone}
	}
	confidence := int(math.Round(best * 100))
	if best >= r.threshold {
		return r.accept(bestTarget, confidence, domain.MatchFuzzy)
	}
	return domain.ResolutionResult{Confidence: confidence, MatchKind: domain.MatchNone}
}

// isPrefixMatch reports whether either string starts with the other. The shorter
// side must be at least minPrefixLength runes long.
func (r *Resolver) isPrefixMatch(input string, inputLen int, t matchTarget) bool {
	if inputLen <= t.length {
		return inputLen >= r.minPrefixLength && strings.HasPrefix(t.normalized, input)
	}
	return t.length >= r.minPrefixLength && strings.HasPrefix(input, t.normalized)
}

func (r *Resolver) accept(t matchTarget, confidence int, kind domain.MatchKind) domain.ResolutionResult {
	name := t.display
	result := domain.ResolutionResult{
		ResolvedName: &name,
		Confidence:   confidence,
		MatchKind:    kind,
	}
	if rec, ok := r.catalog.FindByTarget(t.display); ok {
		result.MatchedRecord = rec
	}
	return result
}

// withRawInput copies a memoized result so callers never share pointers
func withRawInput(result domain.ResolutionResult, raw string) domain.ResolutionResult {
	result.RawInput = raw
	if result.ResolvedName != nil {
		name := *result.ResolvedName
		result.ResolvedName = &name
	}
	if result.MatchedRecord != nil {
		rec := *result.MatchedRecord
		rec.Dosages = append([]string(nil), rec.Dosages...)
		result.MatchedRecord = &rec
	}
	return result
}

func (r *Resolver) recordOutcome(kind domain.MatchKind) {
	r.incrementStat(func(s *ResolverStats) {
		switch kind {
		case domain.MatchExact:
			s.Exact++
		case domain.MatchPrefix:
			s.Prefix++
		case domain.MatchFuzzy:
			s.Fuzzy++
		default:
			s.Unresolved++
		}
	})
}

func (r *Resolver) incrementStat(update func(*ResolverStats)) {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	update(&r.stats)
}

// Stats returns a snapshot of resolver counters
func (r *Resolver) Stats() ResolverStats {
	r.statsMu.RLock()
	defer r.statsMu.RUnlock()
	return r.stats
}

// Catalog returns the catalog the resolver matches against
func (r *Resolver) Catalog() *knowledge.Catalog {
	return r.catalog
}

// Threshold returns the acceptance threshold in effect
func (r *Resolver) Threshold() float64 {
	return r.threshold
}
