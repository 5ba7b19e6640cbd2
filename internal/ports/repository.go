package ports

import (
	"context"

	"github.com/ahrav/scoutval/internal/domain"
)

// ObservationRepository reads raw scouting observations.
type ObservationRepository interface {
	// GetObservationsForMatch returns every scout's observation for the
	// match, across all teams and both alliances, oldest first.
	GetObservationsForMatch(ctx context.Context, matchKey string) ([]domain.Observation, error)
}

// MatchRepository reads match schedules and official results.
type MatchRepository interface {
	// GetAllianceComposition returns the three team numbers per alliance.
	GetAllianceComposition(ctx context.Context, matchKey string) (domain.AllianceComposition, error)

	// GetOfficialResult returns the official result, or nil with a nil
	// error when results are not posted yet.
	GetOfficialResult(ctx context.Context, matchKey string) (*domain.OfficialResult, error)

	// ListMatchKeys returns the match keys of an event in schedule order.
	ListMatchKeys(ctx context.Context, eventKey string) ([]string, error)
}

// ResultSink receives validation results for downstream reliability
// scoring.
type ResultSink interface {
	Store(ctx context.Context, results []domain.ValidationResult) error
}
