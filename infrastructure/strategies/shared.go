// Package strategies provides the validation strategies that implement
// ports.Strategy: consensus validation across scouts and validation against
// the official match record.
package strategies

import (
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ahrav/scoutval/internal/ports"
)

// Common errors returned by strategy constructors and match computations.
var (
	// ErrNilDependency is returned when a required collaborator is nil.
	ErrNilDependency = errors.New("strategy dependency cannot be nil")

	// ErrOfficialResultUnavailable is returned when a match has no posted
	// official breakdown.
	ErrOfficialResultUnavailable = errors.New("official result unavailable")
)

// Package-level validator instance for configuration validation.
// Uses go-playground/validator v10 for struct tag-based validation.
var validate = validator.New()

// Option customizes a strategy at construction.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	metrics ports.MetricsCollector
	now     func() time.Time
	newID   func() string
}

func defaultOptions() options {
	return options{
		logger:  slog.Default(),
		metrics: ports.NoopMetrics{},
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// WithLogger sets the strategy logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(metrics ports.MetricsCollector) Option {
	return func(o *options) {
		if metrics != nil {
			o.metrics = metrics
		}
	}
}

// WithClock overrides the result timestamp source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithIDGenerator overrides validation and execution id generation.
func WithIDGenerator(newID func() string) Option {
	return func(o *options) {
		if newID != nil {
			o.newID = newID
		}
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ConsensusConfidence grows logarithmically with the number of fields
// validated for one scout and saturates at 0.95.
func ConsensusConfidence(fieldCount int) float64 {
	return math.Min(0.95, 0.5+0.45*math.Log(float64(fieldCount+1))/math.Log(100))
}

// executionID returns the caller's execution id or a fresh one.
func (o options) executionID(vctx ports.ValidationContext) string {
	if vctx.ExecutionID != "" {
		return vctx.ExecutionID
	}
	return o.newID()
}
