package strategies

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/ahrav/scoutval/internal/domain"
	"github.com/ahrav/scoutval/internal/ports"
)

var _ ports.Strategy = (*ConsensusValidationStrategy)(nil)

// ConsensusMethodName is recorded as ValidationMethod on consensus results.
const ConsensusMethodName = "ConsensusValidationStrategy"

// ConsensusConfig controls the consensus strategy.
type ConsensusConfig struct {
	// MinScoutsRequired is the minimum number of observations of one team in
	// one match before a consensus is trusted. A ValidationContext may
	// override it. Default: 3.
	MinScoutsRequired int `yaml:"min_scouts_required" json:"min_scouts_required" validate:"min=1,max=20"`

	// ExcludedKeys are payload metadata keys that are never validated.
	ExcludedKeys []string `yaml:"excluded_keys" json:"excluded_keys"`
}

// DefaultConsensusConfig returns the production defaults.
func DefaultConsensusConfig() ConsensusConfig {
	return ConsensusConfig{
		MinScoutsRequired: 3,
		ExcludedKeys:      []string{domain.KeySchemaVersion, domain.KeyNotes},
	}
}

// ConsensusValidationStrategy compares every scout's observation of a team
// in a match against the consensus of all scouts' observations of that
// team-in-match. Each (scout, period, field) yields one result.
//
// Concurrency: the strategy is stateless after construction and safe for
// concurrent use.
type ConsensusValidationStrategy struct {
	config       ConsensusConfig
	excluded     map[string]struct{}
	observations ports.ObservationRepository
	consolidator ports.Consolidator
	opts         options
}

// NewConsensusValidationStrategy creates a consensus strategy.
// It returns ErrNilDependency when a collaborator is missing, or a
// configuration validation error.
func NewConsensusValidationStrategy(
	config ConsensusConfig,
	observations ports.ObservationRepository,
	consolidator ports.Consolidator,
	opts ...Option,
) (*ConsensusValidationStrategy, error) {
	if observations == nil || consolidator == nil {
		return nil, ErrNilDependency
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	excluded := make(map[string]struct{}, len(config.ExcludedKeys))
	for _, k := range config.ExcludedKeys {
		excluded[k] = struct{}{}
	}

	return &ConsensusValidationStrategy{
		config:       config,
		excluded:     excluded,
		observations: observations,
		consolidator: consolidator,
		opts:         buildOptions(opts),
	}, nil
}

// Name implements ports.Strategy.
func (s *ConsensusValidationStrategy) Name() string { return ConsensusMethodName }

// Type implements ports.Strategy.
func (s *ConsensusValidationStrategy) Type() domain.ValidationType {
	return domain.ValidationTypeConsensus
}

// CanValidate reports whether enough scouts observed the team in the match.
// Fetch failures are logged and read as false.
func (s *ConsensusValidationStrategy) CanValidate(ctx context.Context, vctx ports.ValidationContext) bool {
	if vctx.MatchKey == "" || vctx.TeamNumber == 0 {
		return false
	}

	teamObs, err := s.teamObservations(ctx, vctx)
	if err != nil {
		s.opts.logger.ErrorContext(ctx, "consensus precondition check failed",
			slog.String("match_key", vctx.MatchKey),
			slog.Int("team_number", vctx.TeamNumber),
			slog.Any("error", err),
		)
		return false
	}
	return len(teamObs) >= s.minScouts(vctx)
}

// Validate computes a consensus payload per period and scores every scout's
// fields against it.
//
// Errors:
//   - *domain.PreconditionError when a context field is missing or fewer than
//     the required number of scouts observed the team
//   - wrapped repository errors
func (s *ConsensusValidationStrategy) Validate(
	ctx context.Context,
	vctx ports.ValidationContext,
) ([]domain.ValidationResult, error) {
	if err := requireConsensusContext(vctx); err != nil {
		return nil, err
	}

	teamObs, err := s.teamObservations(ctx, vctx)
	if err != nil {
		return nil, fmt.Errorf("fetch observations for %s: %w", vctx.MatchKey, err)
	}

	required := s.minScouts(vctx)
	if len(teamObs) < required {
		return nil, domain.NewInsufficientScoutsError(len(teamObs), required)
	}

	consensus := make(map[domain.Period]domain.Payload, len(domain.Periods))
	for _, period := range domain.Periods {
		payloads := make([]domain.Payload, 0, len(teamObs))
		for _, obs := range teamObs {
			payloads = append(payloads, obs.Payload(period))
		}
		consensus[period] = s.consolidator.Consolidate(payloads)
	}

	executionID := s.opts.executionID(vctx)
	now := s.opts.now()

	results := make([]domain.ValidationResult, 0)
	for _, obs := range teamObs {
		start := len(results)
		for _, period := range domain.Periods {
			results = s.validatePeriod(results, vctx, executionID, now, obs, period, consensus[period])
		}

		confidence := ConsensusConfidence(len(results) - start)
		for i := start; i < len(results); i++ {
			results[i].ConfidenceLevel = confidence
		}
	}

	s.opts.logger.DebugContext(ctx, "consensus validation complete",
		slog.String("match_key", vctx.MatchKey),
		slog.Int("team_number", vctx.TeamNumber),
		slog.Int("scouts", len(teamObs)),
		slog.Int("results", len(results)),
	)
	return results, nil
}

// validatePeriod appends one result per field of the period that has a
// consensus value.
func (s *ConsensusValidationStrategy) validatePeriod(
	results []domain.ValidationResult,
	vctx ports.ValidationContext,
	executionID string,
	now time.Time,
	obs domain.Observation,
	period domain.Period,
	consensus domain.Payload,
) []domain.ValidationResult {
	scout := obs.Payload(period)

	for _, key := range unionKeys(scout, consensus) {
		if _, skip := s.excluded[key]; skip {
			continue
		}
		// Fields too sparse to reach consensus carry no signal.
		expected, ok := consensus[key]
		if !ok || expected == nil {
			continue
		}
		actual := scout[key]

		score := domain.CompareValues(expected, actual)
		results = append(results, domain.ValidationResult{
			ID:               s.opts.newID(),
			ExecutionID:      executionID,
			ScouterID:        obs.ScouterID,
			MatchKey:         vctx.MatchKey,
			TeamNumber:       vctx.TeamNumber,
			EventKey:         vctx.EventKey,
			SeasonYear:       vctx.SeasonYear,
			FieldPath:        domain.JoinPath(string(period), key),
			ExpectedValue:    expected,
			ActualValue:      actual,
			AccuracyScore:    score,
			Outcome:          domain.ClassifyConsensusOutcome(score),
			ValidationType:   domain.ValidationTypeConsensus,
			ValidationMethod: ConsensusMethodName,
			CreatedAt:        now,
		})
	}
	return results
}

func (s *ConsensusValidationStrategy) teamObservations(
	ctx context.Context,
	vctx ports.ValidationContext,
) ([]domain.Observation, error) {
	all, err := s.observations.GetObservationsForMatch(ctx, vctx.MatchKey)
	if err != nil {
		return nil, err
	}
	return domain.FilterByTeam(all, vctx.TeamNumber), nil
}

func (s *ConsensusValidationStrategy) minScouts(vctx ports.ValidationContext) int {
	if vctx.MinScoutsRequired > 0 {
		return vctx.MinScoutsRequired
	}
	return s.config.MinScoutsRequired
}

// requireConsensusContext checks the context fields every consensus result
// carries.
func requireConsensusContext(vctx ports.ValidationContext) error {
	switch {
	case vctx.MatchKey == "":
		return domain.NewMissingFieldError(domain.CodeMissingMatchKey, "match_key")
	case vctx.TeamNumber == 0:
		return domain.NewMissingFieldError(domain.CodeMissingTeamNumber, "team_number")
	case vctx.EventKey == "":
		return domain.NewMissingFieldError(domain.CodeMissingEventKey, "event_key")
	case vctx.SeasonYear == 0:
		return domain.NewMissingFieldError(domain.CodeMissingSeasonYear, "season_year")
	}
	return nil
}

// unionKeys returns the keys of both payloads in sorted order.
func unionKeys(a, b domain.Payload) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		seen[k] = struct{}{}
	}
	for k := range b {
		seen[k] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
