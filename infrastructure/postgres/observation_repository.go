package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/text/cases"

	"github.com/ahrav/scoutval/internal/domain"
	"github.com/ahrav/scoutval/internal/ports"
)

var _ ports.ObservationRepository = (*ObservationRepository)(nil)

// observationRow mirrors a scouting_observations row.
type observationRow struct {
	ID                 string    `db:"id"`
	MatchKey           string    `db:"match_key"`
	TeamNumber         int       `db:"team_number"`
	ScouterID          string    `db:"scouter_id"`
	EventKey           string    `db:"event_key"`
	Alliance           string    `db:"alliance"`
	AutoPerformance    []byte    `db:"auto_performance"`
	TeleopPerformance  []byte    `db:"teleop_performance"`
	EndgamePerformance []byte    `db:"endgame_performance"`
	Notes              string    `db:"notes"`
	CreatedAt          time.Time `db:"created_at"`
}

// ObservationRepository reads scouting observations.
type ObservationRepository struct {
	db *sqlx.DB
}

// NewObservationRepository creates a new observation repository.
func NewObservationRepository(db *sqlx.DB) *ObservationRepository {
	return &ObservationRepository{db: db}
}

// GetObservationsForMatch implements ports.ObservationRepository.
func (r *ObservationRepository) GetObservationsForMatch(
	ctx context.Context,
	matchKey string,
) ([]domain.Observation, error) {
	const query = `
		SELECT id, match_key, team_number, scouter_id, event_key, alliance,
			   auto_performance, teleop_performance, endgame_performance,
			   notes, created_at
		FROM scouting_observations
		WHERE match_key = $1
		ORDER BY created_at ASC, id ASC`

	var rows []observationRow
	if err := r.db.SelectContext(ctx, &rows, query, matchKey); err != nil {
		return nil, ports.NewRepositoryError("get_observations_for_match", matchKey, err)
	}

	observations := make([]domain.Observation, 0, len(rows))
	for _, row := range rows {
		obs, err := row.toDomain()
		if err != nil {
			return nil, ports.NewRepositoryError("get_observations_for_match", matchKey, err)
		}
		observations = append(observations, obs)
	}
	return observations, nil
}

func (row observationRow) toDomain() (domain.Observation, error) {
	alliance, err := parseAllianceColor(row.Alliance)
	if err != nil {
		return domain.Observation{}, fmt.Errorf("observation %s: %w", row.ID, err)
	}

	obs := domain.Observation{
		ID:         row.ID,
		MatchKey:   row.MatchKey,
		TeamNumber: row.TeamNumber,
		ScouterID:  row.ScouterID,
		EventKey:   row.EventKey,
		Alliance:   alliance,
		Notes:      row.Notes,
		CreatedAt:  row.CreatedAt,
	}
	if obs.AutoPerformance, err = decodePayload(row.AutoPerformance); err != nil {
		return domain.Observation{}, fmt.Errorf("observation %s auto_performance: %w", row.ID, err)
	}
	if obs.TeleopPerformance, err = decodePayload(row.TeleopPerformance); err != nil {
		return domain.Observation{}, fmt.Errorf("observation %s teleop_performance: %w", row.ID, err)
	}
	if obs.EndgamePerformance, err = decodePayload(row.EndgamePerformance); err != nil {
		return domain.Observation{}, fmt.Errorf("observation %s endgame_performance: %w", row.ID, err)
	}
	return obs, nil
}

// decodePayload unmarshals a JSONB period payload. NULL and empty columns
// decode to an empty payload.
func decodePayload(raw []byte) (domain.Payload, error) {
	payload := make(domain.Payload)
	if len(raw) == 0 || string(raw) == "null" {
		return payload, nil
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrInvalidRecord, err)
	}
	return payload, nil
}

var foldCase = cases.Fold()

// parseAllianceColor accepts any casing of "red" or "blue".
func parseAllianceColor(s string) (domain.AllianceColor, error) {
	color := domain.AllianceColor(foldCase.String(strings.TrimSpace(s)))
	switch color {
	case domain.AllianceRed, domain.AllianceBlue:
		return color, nil
	default:
		return "", fmt.Errorf("%w: unknown alliance color %q", ports.ErrInvalidRecord, s)
	}
}
