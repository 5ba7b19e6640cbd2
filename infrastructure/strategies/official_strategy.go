package strategies

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/ahrav/scoutval/internal/domain"
	"github.com/ahrav/scoutval/internal/ports"
)

var _ ports.Strategy = (*OfficialRecordValidationStrategy)(nil)

// OfficialMethodName is recorded as ValidationMethod on official-record
// results.
const OfficialMethodName = "TBAValidationStrategy"

// OfficialRecordConfig controls the official-record strategy.
type OfficialRecordConfig struct {
	// MinTeamsWithData is how many teams of an alliance must have an
	// observation before the alliance is validated. Default: 3 (full
	// alliance).
	MinTeamsWithData int `yaml:"min_teams_with_data" json:"min_teams_with_data" validate:"min=1,max=3"`

	// ConfidenceLevel is stamped on every result. Alliance totals are coarse,
	// so it sits below consensus confidence. Default: 0.6.
	ConfidenceLevel float64 `yaml:"confidence_level" json:"confidence_level" validate:"gt=0,lte=1"`

	// FieldMappings link official metrics to observation fields.
	FieldMappings []domain.FieldMapping `yaml:"field_mappings" json:"field_mappings" validate:"required,min=1,dive"`
}

// DefaultOfficialRecordConfig returns the production defaults with the
// given season's field mappings.
func DefaultOfficialRecordConfig(mappings []domain.FieldMapping) OfficialRecordConfig {
	return OfficialRecordConfig{
		MinTeamsWithData: 3,
		ConfidenceLevel:  0.6,
		FieldMappings:    mappings,
	}
}

// OfficialRecordValidationStrategy validates scouted totals against the
// official alliance breakdown. The official record only reports alliance
// totals, so an alliance's discrepancy is split equally across its scouted
// teams: the record cannot attribute the error to a specific robot.
//
// The strategy validates all six teams of a match in one pass. Per-team
// calls that share an execution reuse that pass through the
// ValidationContext's MatchResultCache.
//
// Failure semantics: Validate is best effort. Errors are logged and an empty
// result set is returned so one match never blocks other validations.
type OfficialRecordValidationStrategy struct {
	config       OfficialRecordConfig
	observations ports.ObservationRepository
	matches      ports.MatchRepository
	opts         options
}

// NewOfficialRecordValidationStrategy creates an official-record strategy.
func NewOfficialRecordValidationStrategy(
	config OfficialRecordConfig,
	observations ports.ObservationRepository,
	matches ports.MatchRepository,
	opts ...Option,
) (*OfficialRecordValidationStrategy, error) {
	if observations == nil || matches == nil {
		return nil, ErrNilDependency
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &OfficialRecordValidationStrategy{
		config:       config,
		observations: observations,
		matches:      matches,
		opts:         buildOptions(opts),
	}, nil
}

// Name implements ports.Strategy.
func (s *OfficialRecordValidationStrategy) Name() string { return OfficialMethodName }

// Type implements ports.Strategy.
func (s *OfficialRecordValidationStrategy) Type() domain.ValidationType {
	return domain.ValidationTypeTBA
}

// CanValidate reports whether the match has a finalized official result
// with a breakdown. It is match scoped and ignores the team number.
func (s *OfficialRecordValidationStrategy) CanValidate(ctx context.Context, vctx ports.ValidationContext) bool {
	if vctx.MatchKey == "" {
		return false
	}

	official, err := s.matches.GetOfficialResult(ctx, vctx.MatchKey)
	if err != nil {
		s.opts.logger.WarnContext(ctx, "official result lookup failed",
			slog.String("match_key", vctx.MatchKey),
			slog.Any("error", err),
		)
		return false
	}
	return official != nil && official.HasBreakdown() && official.IsFinalized()
}

// Validate returns the official-record results for the context's team, or
// for every team when no team number is given.
func (s *OfficialRecordValidationStrategy) Validate(
	ctx context.Context,
	vctx ports.ValidationContext,
) ([]domain.ValidationResult, error) {
	if vctx.MatchKey == "" {
		s.opts.logger.WarnContext(ctx, "official validation skipped: missing match key")
		return []domain.ValidationResult{}, nil
	}

	// Without a caller-supplied execution id the cache entry could never be
	// shared or cleared.
	useCache := vctx.Cache != nil && vctx.ExecutionID != ""
	vctx.ExecutionID = s.opts.executionID(vctx)

	compute := func() ([]domain.ValidationResult, error) {
		return s.ValidateMatch(ctx, vctx)
	}

	var (
		all []domain.ValidationResult
		err error
	)
	if useCache {
		var hit bool
		all, hit, err = vctx.Cache.GetOrCompute(vctx.ExecutionID, vctx.MatchKey, compute)
		status := "miss"
		if hit {
			status = "hit"
		}
		s.opts.metrics.RecordCounter("match_cache_lookups_total", 1, map[string]string{
			"strategy": OfficialMethodName,
			"status":   status,
		})
	} else {
		all, err = compute()
	}
	if err != nil {
		s.opts.logger.ErrorContext(ctx, "official validation failed",
			slog.String("match_key", vctx.MatchKey),
			slog.String("execution_id", vctx.ExecutionID),
			slog.Any("error", err),
		)
		return []domain.ValidationResult{}, nil
	}

	if vctx.TeamNumber == 0 {
		return slices.Clone(all), nil
	}
	return domain.FilterResultsByTeam(all, vctx.TeamNumber), nil
}

// ValidateMatch validates both alliances of a match and returns results for
// every team. Unlike Validate it reports errors to the caller.
func (s *OfficialRecordValidationStrategy) ValidateMatch(
	ctx context.Context,
	vctx ports.ValidationContext,
) ([]domain.ValidationResult, error) {
	if vctx.MatchKey == "" {
		return nil, domain.NewMissingFieldError(domain.CodeMissingMatchKey, "match_key")
	}
	executionID := s.opts.executionID(vctx)

	official, err := s.matches.GetOfficialResult(ctx, vctx.MatchKey)
	if err != nil {
		return nil, fmt.Errorf("fetch official result: %w", err)
	}
	if official == nil || !official.HasBreakdown() {
		return nil, fmt.Errorf("%w: match %s", ErrOfficialResultUnavailable, vctx.MatchKey)
	}

	composition, err := s.matches.GetAllianceComposition(ctx, vctx.MatchKey)
	if err != nil {
		return nil, fmt.Errorf("fetch alliance composition: %w", err)
	}

	observations, err := s.observations.GetObservationsForMatch(ctx, vctx.MatchKey)
	if err != nil {
		return nil, fmt.Errorf("fetch observations: %w", err)
	}
	byTeam := latestByTeam(observations)

	now := s.opts.now()
	results := make([]domain.ValidationResult, 0)
	for _, color := range domain.Alliances {
		scouted := make([]domain.Observation, 0, 3)
		for _, team := range composition.Teams(color) {
			if obs, ok := byTeam[team]; ok {
				scouted = append(scouted, obs)
			}
		}

		if len(scouted) < s.config.MinTeamsWithData {
			s.opts.logger.DebugContext(ctx, "alliance skipped: not enough scouted teams",
				slog.String("match_key", vctx.MatchKey),
				slog.String("alliance", string(color)),
				slog.Int("teams_with_data", len(scouted)),
				slog.Int("required", s.config.MinTeamsWithData),
			)
			s.opts.metrics.RecordCounter("alliances_skipped_total", 1, map[string]string{
				"strategy": OfficialMethodName,
			})
			continue
		}

		results = s.validateAlliance(results, vctx, executionID, now, official.Breakdown[color], scouted)
	}
	return results, nil
}

// validateAlliance appends one result per scouted team per field mapping.
func (s *OfficialRecordValidationStrategy) validateAlliance(
	results []domain.ValidationResult,
	vctx ports.ValidationContext,
	executionID string,
	now time.Time,
	breakdown map[string]any,
	scouted []domain.Observation,
) []domain.ValidationResult {
	docs := make([]map[string]any, len(scouted))
	for i, obs := range scouted {
		docs[i] = obs.Document()
	}

	for _, mapping := range s.config.FieldMappings {
		officialValue, ok := mapping.OfficialValue(breakdown)
		if !ok {
			continue
		}

		contributions := make([]float64, len(scouted))
		scoutedTotal := 0.0
		for i, doc := range docs {
			contributions[i] = mapping.Contribution(doc)
			scoutedTotal += contributions[i]
		}

		allianceError := math.Abs(officialValue - scoutedTotal)
		perTeamError := allianceError / float64(len(scouted))
		score := officialAccuracy(perTeamError, officialValue)
		outcome := domain.ClassifyOfficialOutcome(score)

		for i, obs := range scouted {
			// A result without a scout cannot feed reliability scoring.
			if obs.ScouterID == "" {
				continue
			}
			results = append(results, domain.ValidationResult{
				ID:               s.opts.newID(),
				ExecutionID:      executionID,
				ScouterID:        obs.ScouterID,
				MatchKey:         vctx.MatchKey,
				TeamNumber:       obs.TeamNumber,
				EventKey:         vctx.EventKey,
				SeasonYear:       vctx.SeasonYear,
				FieldPath:        mapping.FieldPath(),
				ExpectedValue:    officialValue,
				ActualValue:      contributions[i],
				AccuracyScore:    score,
				Outcome:          outcome,
				ConfidenceLevel:  s.config.ConfidenceLevel,
				ValidationType:   domain.ValidationTypeTBA,
				ValidationMethod: OfficialMethodName,
				Notes: fmt.Sprintf(
					"official %s total %g, scouted alliance total %g, team contribution %g; "+
						"alliance error %g split across %d teams = per-team error %.2f",
					mapping.OfficialMetric, officialValue, scoutedTotal, contributions[i],
					allianceError, len(scouted), perTeamError,
				),
				CreatedAt: now,
			})
		}
	}
	return results
}

// officialAccuracy converts a per-team error into a score relative to the
// official total, floored at one to avoid dividing by zero.
func officialAccuracy(perTeamError, officialValue float64) float64 {
	if perTeamError == 0 {
		return 1.0
	}
	return math.Max(0, 1-perTeamError/math.Max(officialValue, 1))
}

// latestByTeam indexes observations by team, keeping the most recently
// created observation of each team. Ties keep the later one in input order.
func latestByTeam(observations []domain.Observation) map[int]domain.Observation {
	byTeam := make(map[int]domain.Observation, len(observations))
	for _, obs := range observations {
		current, ok := byTeam[obs.TeamNumber]
		if !ok || !obs.CreatedAt.Before(current.CreatedAt) {
			byTeam[obs.TeamNumber] = obs
		}
	}
	return byTeam
}
