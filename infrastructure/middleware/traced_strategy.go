package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/scoutval/internal/domain"
	"github.com/ahrav/scoutval/internal/ports"
)

const tracerName = "scoutval/strategy"

var _ ports.Strategy = (*TracedStrategy)(nil)

// TracedStrategy wraps a strategy with an OpenTelemetry span per Validate
// call and records latency, result outcomes and accuracy scores.
type TracedStrategy struct {
	next    ports.Strategy
	metrics ports.MetricsCollector
	tracer  trace.Tracer
}

// NewTracedStrategy decorates next. A nil metrics collector discards
// measurements.
func NewTracedStrategy(next ports.Strategy, metrics ports.MetricsCollector) *TracedStrategy {
	if metrics == nil {
		metrics = ports.NoopMetrics{}
	}
	return &TracedStrategy{
		next:    next,
		metrics: metrics,
		tracer:  otel.Tracer(tracerName),
	}
}

// Name implements ports.Strategy.
func (s *TracedStrategy) Name() string { return s.next.Name() }

// Type implements ports.Strategy.
func (s *TracedStrategy) Type() domain.ValidationType { return s.next.Type() }

// CanValidate implements ports.Strategy.
func (s *TracedStrategy) CanValidate(ctx context.Context, vctx ports.ValidationContext) bool {
	ctx, span := s.tracer.Start(ctx, "Strategy.CanValidate", trace.WithAttributes(s.attributes(vctx)...))
	defer span.End()

	ok := s.next.CanValidate(ctx, vctx)
	span.SetAttributes(attribute.Bool("validation.can_validate", ok))
	return ok
}

// Validate implements ports.Strategy.
func (s *TracedStrategy) Validate(
	ctx context.Context,
	vctx ports.ValidationContext,
) ([]domain.ValidationResult, error) {
	ctx, span := s.tracer.Start(ctx, "Strategy.Validate", trace.WithAttributes(s.attributes(vctx)...))
	defer span.End()

	labels := map[string]string{"strategy": string(s.next.Type())}
	start := time.Now()
	results, err := s.next.Validate(ctx, vctx)
	s.metrics.RecordLatency(MetricStrategyValidate, time.Since(start), labels)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return results, err
	}

	outcomes := make(map[domain.Outcome]int, 3)
	for _, r := range results {
		outcomes[r.Outcome]++
		s.metrics.RecordHistogram(MetricAccuracyScore, r.AccuracyScore, labels)
	}
	for outcome, n := range outcomes {
		s.metrics.RecordCounter(MetricResults, float64(n), map[string]string{
			"strategy": string(s.next.Type()),
			"outcome":  string(outcome),
		})
	}

	span.AddEvent("validation.completed", trace.WithAttributes(
		attribute.Int("results", len(results)),
		attribute.Int("exact_matches", outcomes[domain.OutcomeExactMatch]),
		attribute.Int("close_matches", outcomes[domain.OutcomeCloseMatch]),
		attribute.Int("mismatches", outcomes[domain.OutcomeMismatch]),
	))
	span.SetStatus(codes.Ok, "")
	return results, nil
}

func (s *TracedStrategy) attributes(vctx ports.ValidationContext) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("validation.strategy", s.next.Name()),
		attribute.String("validation.match_key", vctx.MatchKey),
		attribute.Int("validation.team_number", vctx.TeamNumber),
		attribute.String("validation.execution_id", vctx.ExecutionID),
	}
}
