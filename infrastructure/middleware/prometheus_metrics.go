// Package middleware provides cross-cutting concerns for the validation
// engine: Prometheus metrics and OpenTelemetry tracing around strategies.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/scoutval/internal/ports"
)

// Metric names understood by PrometheusMetrics. Any other counter lands in
// the generic operations counter.
const (
	MetricStrategyValidate  = "strategy_validate"
	MetricResults           = "validation_results_total"
	MetricCacheLookups      = "match_cache_lookups_total"
	MetricAlliancesSkipped  = "alliances_skipped_total"
	MetricPreconditionSkips = "precondition_skips_total"
	MetricAccuracyScore     = "accuracy_score"
)

const namespace = "scoutval"

// PrometheusMetrics implements the MetricsCollector interface using
// Prometheus. It tracks strategy latency, result outcomes, cache efficiency
// and the accuracy distribution per strategy.
type PrometheusMetrics struct {
	executionLatency  *prometheus.HistogramVec
	results           *prometheus.CounterVec
	cacheLookups      *prometheus.CounterVec
	alliancesSkipped  *prometheus.CounterVec
	preconditionSkips *prometheus.CounterVec
	accuracy          *prometheus.HistogramVec
	operationCounter  *prometheus.CounterVec
}

// NewPrometheusMetrics creates a PrometheusMetrics instance and registers its
// collectors on reg. A nil reg uses the default registerer.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	auto := promauto.With(reg)

	return &PrometheusMetrics{
		executionLatency: auto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "execution_duration_seconds",
				Help:      "Execution time of validation operations.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation", "strategy"},
		),
		results: auto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      MetricResults,
				Help:      "Validation results produced, by strategy and outcome.",
			},
			[]string{"strategy", "outcome"},
		),
		cacheLookups: auto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      MetricCacheLookups,
				Help:      "Match result cache lookups, by strategy and hit/miss status.",
			},
			[]string{"strategy", "status"},
		),
		alliancesSkipped: auto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      MetricAlliancesSkipped,
				Help:      "Alliances skipped for lack of scouted teams.",
			},
			[]string{"strategy"},
		),
		preconditionSkips: auto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      MetricPreconditionSkips,
				Help:      "Validations skipped on an unmet precondition, by code.",
			},
			[]string{"strategy", "code"},
		),
		accuracy: auto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      MetricAccuracyScore,
				Help:      "Distribution of accuracy scores.",
				Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.75, 0.8, 0.9, 0.95, 1.0},
			},
			[]string{"strategy"},
		),
		operationCounter: auto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total number of other counted operations.",
			},
			[]string{"operation", "strategy"},
		),
	}
}

// RecordLatency implements the MetricsCollector interface by recording
// execution latency in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordLatency(
	operation string,
	duration time.Duration,
	labels map[string]string,
) {
	pm.executionLatency.WithLabelValues(operation, strategyLabel(labels)).Observe(duration.Seconds())
}

// RecordCounter implements the MetricsCollector interface by incrementing
// Prometheus counters.
func (pm *PrometheusMetrics) RecordCounter(
	metric string, value float64, labels map[string]string,
) {
	strategy := strategyLabel(labels)

	switch metric {
	case MetricResults:
		pm.results.WithLabelValues(strategy, labelOr(labels, "outcome", "unknown")).Add(value)
	case MetricCacheLookups:
		pm.cacheLookups.WithLabelValues(strategy, labelOr(labels, "status", "unknown")).Add(value)
	case MetricAlliancesSkipped:
		pm.alliancesSkipped.WithLabelValues(strategy).Add(value)
	case MetricPreconditionSkips:
		pm.preconditionSkips.WithLabelValues(strategy, labelOr(labels, "code", "unknown")).Add(value)
	default:
		pm.operationCounter.WithLabelValues(metric, strategy).Add(value)
	}
}

// RecordHistogram implements the MetricsCollector interface. Accuracy scores
// have their own buckets; other values share the latency histogram.
func (pm *PrometheusMetrics) RecordHistogram(
	metric string, value float64, labels map[string]string,
) {
	strategy := strategyLabel(labels)
	if metric == MetricAccuracyScore {
		pm.accuracy.WithLabelValues(strategy).Observe(value)
		return
	}
	pm.executionLatency.WithLabelValues(metric, strategy).Observe(value)
}

func strategyLabel(labels map[string]string) string {
	return labelOr(labels, "strategy", "unknown")
}

func labelOr(labels map[string]string, key, fallback string) string {
	if v, ok := labels[key]; ok && v != "" {
		return v
	}
	return fallback
}

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
