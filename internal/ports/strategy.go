// Package ports defines the core interfaces that form the contract between
// the domain/application layers and the infrastructure layer.
// These interfaces enable dependency inversion and make the system testable.
package ports

import (
	"context"

	"github.com/ahrav/scoutval/internal/domain"
)

// ValidationContext is the caller-supplied input for one strategy call.
type ValidationContext struct {
	// MatchKey identifies the match under validation.
	MatchKey string

	// TeamNumber selects the team. Zero means "not supplied"; match-scoped
	// strategies then return results for every team.
	TeamNumber int

	EventKey   string
	SeasonYear int

	// MinScoutsRequired overrides the strategy's default minimum when > 0.
	MinScoutsRequired int

	// ExecutionID identifies the validation run. Strategies generate one
	// when it is empty.
	ExecutionID string

	// Cache holds match-level results for the current execution. It is owned
	// by the orchestrator and may be nil, in which case nothing is cached.
	Cache MatchResultCache
}

// Strategy validates scouting observations for one match context.
// Strategies hold no per-execution state and are safe for concurrent use.
type Strategy interface {
	// Name returns the strategy's method name recorded on its results.
	Name() string

	// Type returns the validation type tag of the strategy's results.
	Type() domain.ValidationType

	// CanValidate reports whether the context has enough data to validate.
	// It never returns an error; fetch failures read as false.
	CanValidate(ctx context.Context, vctx ValidationContext) bool

	// Validate produces one result per validated field.
	//
	// Example:
	//
	//	if strategy.CanValidate(ctx, vctx) {
	//	    results, err := strategy.Validate(ctx, vctx)
	//	}
	Validate(ctx context.Context, vctx ValidationContext) ([]domain.ValidationResult, error)
}

// MatchResultCache stores the full result set of a match-scoped strategy for
// one execution so per-team calls reuse it. Entries are partitioned by
// execution id and never shared across executions.
type MatchResultCache interface {
	// GetOrCompute returns the cached results for (executionID, matchKey)
	// or runs compute once and stores its output. hit reports whether the
	// value came from the cache.
	GetOrCompute(
		executionID, matchKey string,
		compute func() ([]domain.ValidationResult, error),
	) (results []domain.ValidationResult, hit bool, err error)

	// Clear drops every entry of one execution.
	Clear(executionID string)

	// Reset drops every entry.
	Reset()
}

// Consolidator merges several scouts' period payloads into a consensus
// payload. Fields without enough observations are left out.
type Consolidator interface {
	Consolidate(payloads []domain.Payload) domain.Payload
}
