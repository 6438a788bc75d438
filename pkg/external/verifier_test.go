package external

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/medscan-resolver/internal/domain"
)

// MockLabelSearcher is a mock implementation of the LabelSearcher interface
type MockLabelSearcher struct {
	mock.Mock
}

func (m *MockLabelSearcher) SearchLabel(ctx context.Context, name string) (*domain.VerificationResult, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.VerificationResult), args.Error(1)
}

type countingRecorder struct {
	outcomes map[string]int
}

func (c *countingRecorder) VerificationOutcome(outcome string) {
	c.outcomes[outcome]++
}

func newTestVerifier(client LabelSearcher, cache VerificationCache) (*ResilientVerifier, *test.Hook, *countingRecorder) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	recorder := &countingRecorder{outcomes: make(map[string]int)}

	verifier := NewResilientVerifier(client, cache, time.Hour, domain.CircuitBreakerConfig{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 3,
	}, logger).WithRecorder(recorder)
	return verifier, hook, recorder
}

func TestResilientVerifier_VerifiedResultIsCached(t *testing.T) {
	ctx := context.Background()
	client := new(MockLabelSearcher)
	client.On("SearchLabel", ctx, "Tylenol").Return(&domain.VerificationResult{BrandName: "Tylenol", GenericName: "ACETAMINOPHEN"}, nil)

	verifier, _, recorder := newTestVerifier(client, NewMemoryCache(10, time.Hour))

	first := verifier.Verify(ctx, "Tylenol")
	require.NotNil(t, first)
	assert.Equal(t, "ACETAMINOPHEN", first.GenericName)

	second := verifier.Verify(ctx, "Tylenol")
	require.NotNil(t, second)
	assert.Equal(t, "Tylenol", second.BrandName)

	client.AssertNumberOfCalls(t, "SearchLabel", 1)
	assert.Equal(t, 1, recorder.outcomes[OutcomeVerified])
	assert.Equal(t, 1, recorder.outcomes[OutcomeCacheHit])
}

func TestResilientVerifier_NotFoundIsAbsentAndCached(t *testing.T) {
	ctx := context.Background()
	client := new(MockLabelSearcher)
	client.On("SearchLabel", ctx, "Meftal-P").Return(nil, ErrNotFound)

	verifier, hook, _ := newTestVerifier(client, NewMemoryCache(10, time.Hour))

	assert.Nil(t, verifier.Verify(ctx, "Meftal-P"))
	assert.Nil(t, verifier.Verify(ctx, "Meftal-P"))

	client.AssertNumberOfCalls(t, "SearchLabel", 1)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.DebugLevel, hook.LastEntry().Level)
}

func TestResilientVerifier_TransportErrorIsAbsentAndLogged(t *testing.T) {
	ctx := context.Background()
	client := new(MockLabelSearcher)
	client.On("SearchLabel", ctx, "Calpol").Return(nil, errors.New("dial tcp: connection refused"))

	verifier, hook, recorder := newTestVerifier(client, NewMemoryCache(10, time.Hour))

	assert.Nil(t, verifier.Verify(ctx, "Calpol"))
	assert.Nil(t, verifier.Verify(ctx, "Calpol"))

	// failures are not cached
	client.AssertNumberOfCalls(t, "SearchLabel", 2)
	assert.Equal(t, 2, recorder.outcomes[OutcomeError])

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "Label lookup failed", entry.Message)
	assert.Equal(t, "Calpol", entry.Data["drug"])
}

func TestResilientVerifier_CircuitOpensAfterConsecutiveFailures(t *testing.T) {
	ctx := context.Background()
	client := new(MockLabelSearcher)
	client.On("SearchLabel", ctx, mock.Anything).Return(nil, errors.New("openFDA returned status 503"))

	verifier, _, recorder := newTestVerifier(client, nil)

	for _, name := range []string{"Calpol", "Advil", "Lipitor"} {
		assert.Nil(t, verifier.Verify(ctx, name))
	}
	assert.Equal(t, gobreaker.StateOpen, verifier.State())

	assert.Nil(t, verifier.Verify(ctx, "Zyrtec"))
	client.AssertNumberOfCalls(t, "SearchLabel", 3)
	assert.Equal(t, 1, recorder.outcomes[OutcomeCircuitOpen])
}

func TestResilientVerifier_NotFoundDoesNotTripCircuit(t *testing.T) {
	ctx := context.Background()
	client := new(MockLabelSearcher)
	client.On("SearchLabel", ctx, mock.Anything).Return(nil, ErrNotFound)

	verifier, _, _ := newTestVerifier(client, nil)

	for i := 0; i < 5; i++ {
		assert.Nil(t, verifier.Verify(ctx, "UnknownDrug123"))
	}
	assert.Equal(t, gobreaker.StateClosed, verifier.State())
	client.AssertNumberOfCalls(t, "SearchLabel", 5)
}

func TestResilientVerifier_EmptyNameSkipsLookup(t *testing.T) {
	client := new(MockLabelSearcher)
	verifier, _, recorder := newTestVerifier(client, nil)

	assert.Nil(t, verifier.Verify(context.Background(), "  ()  "))
	client.AssertNotCalled(t, "SearchLabel", mock.Anything, mock.Anything)
	assert.Equal(t, 1, recorder.outcomes[OutcomeSkipped])
}

func TestResilientVerifier_SatisfiesLabelVerifier(t *testing.T) {
	var _ domain.LabelVerifier = (*ResilientVerifier)(nil)
}
