package strategies

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/scoutval/infrastructure/consolidate"
	"github.com/ahrav/scoutval/internal/domain"
	"github.com/ahrav/scoutval/internal/ports"
)

func consensusObservations() []domain.Observation {
	base := func(scout string) domain.Observation {
		return domain.Observation{
			ID:         "obs-" + scout,
			MatchKey:   testMatchKey,
			TeamNumber: 254,
			ScouterID:  scout,
			EventKey:   testEventKey,
			Alliance:   domain.AllianceRed,
			AutoPerformance: domain.Payload{
				"schema_version":     2,
				"left_starting_zone": true,
				"coral_scored_L1":    1,
			},
			TeleopPerformance: domain.Payload{
				"coral_scored_L1": 4,
				"coral_scored_L2": 2,
			},
			EndgamePerformance: domain.Payload{
				"cage_level": "deep",
			},
		}
	}

	first := base("scout-a")
	first.TeleopPerformance["defense_rating"] = 3

	second := base("scout-b")

	third := base("scout-c")
	third.TeleopPerformance["coral_scored_L1"] = 5
	third.EndgamePerformance["cage_level"] = "shallow"

	other := base("scout-d")
	other.TeamNumber = 1678

	return []domain.Observation{first, second, third, other}
}

func newConsensusStrategy(t *testing.T, repo ports.ObservationRepository) *ConsensusValidationStrategy {
	t.Helper()
	consolidator, err := consolidate.New(consolidate.DefaultConfig())
	require.NoError(t, err)

	s, err := NewConsensusValidationStrategy(DefaultConsensusConfig(), repo, consolidator,
		WithClock(fixedClock),
		WithIDGenerator(sequentialIDs()),
	)
	require.NoError(t, err)
	return s
}

func consensusContext() ports.ValidationContext {
	return ports.ValidationContext{
		MatchKey:    testMatchKey,
		TeamNumber:  254,
		EventKey:    testEventKey,
		SeasonYear:  testSeason,
		ExecutionID: "exec-1",
	}
}

func TestNewConsensusValidationStrategy(t *testing.T) {
	consolidator, err := consolidate.New(consolidate.DefaultConfig())
	require.NoError(t, err)

	_, err = NewConsensusValidationStrategy(DefaultConsensusConfig(), nil, consolidator)
	assert.ErrorIs(t, err, ErrNilDependency)

	_, err = NewConsensusValidationStrategy(DefaultConsensusConfig(), &fakeObservationRepo{}, nil)
	assert.ErrorIs(t, err, ErrNilDependency)

	_, err = NewConsensusValidationStrategy(ConsensusConfig{MinScoutsRequired: 0}, &fakeObservationRepo{}, consolidator)
	assert.Error(t, err)

	s, err := NewConsensusValidationStrategy(DefaultConsensusConfig(), &fakeObservationRepo{}, consolidator)
	require.NoError(t, err)
	assert.Equal(t, ConsensusMethodName, s.Name())
	assert.Equal(t, domain.ValidationTypeConsensus, s.Type())
}

func TestConsensus_CanValidate(t *testing.T) {
	tests := []struct {
		name string
		repo *fakeObservationRepo
		vctx func() ports.ValidationContext
		want bool
	}{
		{
			name: "three scouts",
			repo: &fakeObservationRepo{observations: consensusObservations()},
			vctx: consensusContext,
			want: true,
		},
		{
			name: "two scouts below default minimum",
			repo: &fakeObservationRepo{observations: consensusObservations()[:2]},
			vctx: consensusContext,
			want: false,
		},
		{
			name: "override lowers minimum",
			repo: &fakeObservationRepo{observations: consensusObservations()[:2]},
			vctx: func() ports.ValidationContext {
				v := consensusContext()
				v.MinScoutsRequired = 2
				return v
			},
			want: true,
		},
		{
			name: "missing team number",
			repo: &fakeObservationRepo{observations: consensusObservations()},
			vctx: func() ports.ValidationContext {
				v := consensusContext()
				v.TeamNumber = 0
				return v
			},
			want: false,
		},
		{
			name: "repository failure fails closed",
			repo: &fakeObservationRepo{err: errors.New("connection reset")},
			vctx: consensusContext,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newConsensusStrategy(t, tt.repo)
			assert.Equal(t, tt.want, s.CanValidate(context.Background(), tt.vctx()))
		})
	}
}

func TestConsensus_Validate_InsufficientScouts(t *testing.T) {
	s := newConsensusStrategy(t, &fakeObservationRepo{observations: consensusObservations()[:2]})

	vctx := consensusContext()
	vctx.MinScoutsRequired = 3
	assert.False(t, s.CanValidate(context.Background(), vctx))

	results, err := s.Validate(context.Background(), vctx)
	require.Error(t, err)
	assert.Nil(t, results)

	var pe *domain.PreconditionError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, domain.CodeInsufficientScouts, pe.Code)
	assert.Equal(t, 2, pe.Found)
	assert.Equal(t, 3, pe.Required)
}

func TestConsensus_Validate_MissingContext(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ports.ValidationContext)
		code   domain.ErrorCode
	}{
		{name: "match key", mutate: func(v *ports.ValidationContext) { v.MatchKey = "" }, code: domain.CodeMissingMatchKey},
		{name: "team number", mutate: func(v *ports.ValidationContext) { v.TeamNumber = 0 }, code: domain.CodeMissingTeamNumber},
		{name: "event key", mutate: func(v *ports.ValidationContext) { v.EventKey = "" }, code: domain.CodeMissingEventKey},
		{name: "season year", mutate: func(v *ports.ValidationContext) { v.SeasonYear = 0 }, code: domain.CodeMissingSeasonYear},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeObservationRepo{observations: consensusObservations()}
			s := newConsensusStrategy(t, repo)

			vctx := consensusContext()
			tt.mutate(&vctx)

			_, err := s.Validate(context.Background(), vctx)
			var pe *domain.PreconditionError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.code, pe.Code)
			assert.ErrorIs(t, err, domain.ErrPreconditionNotMet)
			assert.Zero(t, repo.calls.Load(), "context is checked before fetching")
		})
	}
}

func TestConsensus_Validate_RepositoryError(t *testing.T) {
	s := newConsensusStrategy(t, &fakeObservationRepo{err: ports.ErrServiceUnavailable})

	_, err := s.Validate(context.Background(), consensusContext())
	assert.ErrorIs(t, err, ports.ErrServiceUnavailable)
}

func TestConsensus_Validate_ProducesResults(t *testing.T) {
	s := newConsensusStrategy(t, &fakeObservationRepo{observations: consensusObservations()})

	results, err := s.Validate(context.Background(), consensusContext())
	require.NoError(t, err)
	// Three scouts x (2 auto + 2 teleop + 1 endgame) fields.
	require.Len(t, results, 15)

	for _, r := range results {
		assert.NotEmpty(t, r.ID)
		assert.Equal(t, "exec-1", r.ExecutionID)
		assert.NotEmpty(t, r.ScouterID)
		assert.Equal(t, testMatchKey, r.MatchKey)
		assert.Equal(t, 254, r.TeamNumber)
		assert.Equal(t, testEventKey, r.EventKey)
		assert.Equal(t, testSeason, r.SeasonYear)
		assert.NotEmpty(t, r.FieldPath)
		assert.NotNil(t, r.ExpectedValue)
		assert.NotNil(t, r.ActualValue)
		assert.Equal(t, domain.ValidationTypeConsensus, r.ValidationType)
		assert.Equal(t, ConsensusMethodName, r.ValidationMethod)
		assert.Equal(t, fixedNow, r.CreatedAt)
		assert.Equal(t, domain.ClassifyConsensusOutcome(r.AccuracyScore), r.Outcome)
		assert.InDelta(t, ConsensusConfidence(5), r.ConfidenceLevel, 1e-9)
	}

	byKey := make(map[string]domain.ValidationResult)
	for _, r := range results {
		byKey[r.ScouterID+"|"+r.FieldPath] = r
	}

	endgame := byKey["scout-c|endgame_performance.cage_level"]
	assert.Equal(t, "deep", endgame.ExpectedValue)
	assert.Equal(t, "shallow", endgame.ActualValue)
	assert.Equal(t, 0.0, endgame.AccuracyScore)
	assert.Equal(t, domain.OutcomeMismatch, endgame.Outcome)

	coral := byKey["scout-c|teleop_performance.coral_scored_L1"]
	assert.Equal(t, 4.0, coral.ExpectedValue)
	assert.Equal(t, 0.8, coral.AccuracyScore)
	assert.Equal(t, domain.OutcomeCloseMatch, coral.Outcome)

	agree := byKey["scout-a|teleop_performance.coral_scored_L1"]
	assert.Equal(t, 1.0, agree.AccuracyScore)
	assert.Equal(t, domain.OutcomeExactMatch, agree.Outcome)
}

func TestConsensus_Validate_SkipsFieldsWithoutConsensus(t *testing.T) {
	s := newConsensusStrategy(t, &fakeObservationRepo{observations: consensusObservations()})

	results, err := s.Validate(context.Background(), consensusContext())
	require.NoError(t, err)

	for _, r := range results {
		assert.NotEqual(t, "teleop_performance.defense_rating", r.FieldPath)
		assert.NotEqual(t, "auto_performance.schema_version", r.FieldPath)
	}
}

func TestConsensus_Validate_MissingScoutValue(t *testing.T) {
	obs := consensusObservations()
	delete(obs[1].AutoPerformance, "coral_scored_L1")
	s := newConsensusStrategy(t, &fakeObservationRepo{observations: obs})

	results, err := s.Validate(context.Background(), consensusContext())
	require.NoError(t, err)

	found := false
	for _, r := range results {
		if r.ScouterID == "scout-b" && r.FieldPath == "auto_performance.coral_scored_L1" {
			found = true
			assert.Nil(t, r.ActualValue)
			assert.Equal(t, 0.0, r.AccuracyScore)
			assert.Equal(t, domain.OutcomeMismatch, r.Outcome)
		}
	}
	assert.True(t, found, "a field the scout left blank is still scored against consensus")
}

func TestConsensus_Validate_Idempotent(t *testing.T) {
	repo := &fakeObservationRepo{observations: consensusObservations()}
	s := newConsensusStrategy(t, repo)

	first, err := s.Validate(context.Background(), consensusContext())
	require.NoError(t, err)
	second, err := s.Validate(context.Background(), consensusContext())
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].FieldPath, second[i].FieldPath)
		assert.Equal(t, first[i].AccuracyScore, second[i].AccuracyScore)
		assert.Equal(t, first[i].Outcome, second[i].Outcome)
		assert.NotEqual(t, first[i].ID, second[i].ID)
	}
}

func TestConsensusConfidence(t *testing.T) {
	assert.InDelta(t, 0.5, ConsensusConfidence(0), 1e-9)
	assert.InDelta(t, 0.5+0.45*0.5, ConsensusConfidence(9), 1e-9)
	assert.InDelta(t, 0.95, ConsensusConfidence(99), 1e-9)
	assert.Equal(t, 0.95, ConsensusConfidence(500))
	assert.Less(t, ConsensusConfidence(3), ConsensusConfidence(10))
}
