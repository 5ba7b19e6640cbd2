package ports

import (
	"time"
)

// MetricsCollector defines the interface for collecting operational metrics.
// Implementations should integrate with observability platforms like
// Prometheus.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	// This is useful for tracking events like cache hits/misses, skips, etc.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram, e.g. accuracy scores.
	RecordHistogram(metric string, value float64, labels map[string]string)
}

// NoopMetrics discards every measurement.
type NoopMetrics struct{}

func (NoopMetrics) RecordLatency(string, time.Duration, map[string]string) {}
func (NoopMetrics) RecordCounter(string, float64, map[string]string)       {}
func (NoopMetrics) RecordHistogram(string, float64, map[string]string)     {}
