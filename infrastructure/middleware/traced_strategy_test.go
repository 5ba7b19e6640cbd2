package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/scoutval/internal/domain"
	"github.com/ahrav/scoutval/internal/ports"
)

type stubStrategy struct {
	results  []domain.ValidationResult
	err      error
	can      bool
	calls    int
	lastVctx ports.ValidationContext
}

func (s *stubStrategy) Name() string                { return "StubStrategy" }
func (s *stubStrategy) Type() domain.ValidationType { return domain.ValidationTypeConsensus }

func (s *stubStrategy) CanValidate(context.Context, ports.ValidationContext) bool { return s.can }

func (s *stubStrategy) Validate(_ context.Context, vctx ports.ValidationContext) ([]domain.ValidationResult, error) {
	s.calls++
	s.lastVctx = vctx
	return s.results, s.err
}

type recordingMetrics struct {
	mu         sync.Mutex
	latencies  map[string]int
	counters   map[string]float64
	histograms map[string][]float64
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		latencies:  make(map[string]int),
		counters:   make(map[string]float64),
		histograms: make(map[string][]float64),
	}
}

func (m *recordingMetrics) RecordLatency(op string, _ time.Duration, _ map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies[op]++
}

func (m *recordingMetrics) RecordCounter(metric string, v float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[metric+"/"+labels["outcome"]] += v
}

func (m *recordingMetrics) RecordHistogram(metric string, v float64, _ map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histograms[metric] = append(m.histograms[metric], v)
}

func TestTracedStrategy_PassesThrough(t *testing.T) {
	inner := &stubStrategy{
		can: true,
		results: []domain.ValidationResult{
			{AccuracyScore: 1.0, Outcome: domain.OutcomeExactMatch},
			{AccuracyScore: 0.8, Outcome: domain.OutcomeCloseMatch},
			{AccuracyScore: 1.0, Outcome: domain.OutcomeExactMatch},
		},
	}
	metrics := newRecordingMetrics()
	traced := NewTracedStrategy(inner, metrics)

	vctx := ports.ValidationContext{MatchKey: "2025txhou_qm1", TeamNumber: 254, ExecutionID: "exec-1"}
	assert.True(t, traced.CanValidate(context.Background(), vctx))
	assert.Equal(t, "StubStrategy", traced.Name())
	assert.Equal(t, domain.ValidationTypeConsensus, traced.Type())

	results, err := traced.Validate(context.Background(), vctx)
	require.NoError(t, err)
	assert.Len(t, results, 3)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, vctx.MatchKey, inner.lastVctx.MatchKey)

	assert.Equal(t, 1, metrics.latencies[MetricStrategyValidate])
	assert.Equal(t, 2.0, metrics.counters[MetricResults+"/exact_match"])
	assert.Equal(t, 1.0, metrics.counters[MetricResults+"/close_match"])
	assert.Equal(t, []float64{1.0, 0.8, 1.0}, metrics.histograms[MetricAccuracyScore])
}

func TestTracedStrategy_PropagatesErrors(t *testing.T) {
	boom := domain.NewInsufficientScoutsError(2, 3)
	inner := &stubStrategy{err: boom}
	metrics := newRecordingMetrics()
	traced := NewTracedStrategy(inner, metrics)

	_, err := traced.Validate(context.Background(), ports.ValidationContext{MatchKey: "qm1", TeamNumber: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrPreconditionNotMet))
	assert.Equal(t, 1, metrics.latencies[MetricStrategyValidate])
	assert.Empty(t, metrics.counters)
}

func TestTracedStrategy_NilMetrics(t *testing.T) {
	traced := NewTracedStrategy(&stubStrategy{}, nil)
	assert.NotPanics(t, func() {
		_, _ = traced.Validate(context.Background(), ports.ValidationContext{})
	})
}
