package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ahrav/scoutval/internal/domain"
	"github.com/ahrav/scoutval/internal/ports"
)

var _ ports.MatchRepository = (*MatchRepository)(nil)

// MatchRepository reads match schedules and official results.
type MatchRepository struct {
	db *sqlx.DB
}

// NewMatchRepository creates a new match repository.
func NewMatchRepository(db *sqlx.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

type compositionRow struct {
	RedTeams  pq.Int64Array `db:"red_teams"`
	BlueTeams pq.Int64Array `db:"blue_teams"`
}

// GetAllianceComposition implements ports.MatchRepository. It returns
// ports.ErrNotFound when the match is not scheduled.
func (r *MatchRepository) GetAllianceComposition(
	ctx context.Context,
	matchKey string,
) (domain.AllianceComposition, error) {
	const query = `SELECT red_teams, blue_teams FROM matches WHERE match_key = $1`

	var row compositionRow
	if err := r.db.GetContext(ctx, &row, query, matchKey); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ports.ErrNotFound
		}
		return domain.AllianceComposition{}, ports.NewRepositoryError("get_alliance_composition", matchKey, err)
	}
	return domain.AllianceComposition{
		Red:  toInts(row.RedTeams),
		Blue: toInts(row.BlueTeams),
	}, nil
}

type officialRow struct {
	MatchKey       string       `db:"match_key"`
	ScoreBreakdown []byte       `db:"score_breakdown"`
	PostResultTime sql.NullTime `db:"post_result_time"`
}

// GetOfficialResult implements ports.MatchRepository. A match without a
// posted result yields nil and no error.
func (r *MatchRepository) GetOfficialResult(
	ctx context.Context,
	matchKey string,
) (*domain.OfficialResult, error) {
	const query = `
		SELECT match_key, score_breakdown, post_result_time
		FROM official_match_results
		WHERE match_key = $1`

	var row officialRow
	if err := r.db.GetContext(ctx, &row, query, matchKey); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, ports.NewRepositoryError("get_official_result", matchKey, err)
	}

	result, err := row.toDomain()
	if err != nil {
		return nil, ports.NewRepositoryError("get_official_result", matchKey, err)
	}
	return result, nil
}

// ListMatchKeys implements ports.MatchRepository. Matches are ordered
// qualification first, then playoffs, by set and match number.
func (r *MatchRepository) ListMatchKeys(ctx context.Context, eventKey string) ([]string, error) {
	const query = `
		SELECT match_key
		FROM matches
		WHERE event_key = $1
		ORDER BY CASE comp_level
				WHEN 'qm' THEN 0
				WHEN 'ef' THEN 1
				WHEN 'qf' THEN 2
				WHEN 'sf' THEN 3
				WHEN 'f'  THEN 4
				ELSE 5
			END, set_number, match_number`

	var keys []string
	if err := r.db.SelectContext(ctx, &keys, query, eventKey); err != nil {
		return nil, ports.NewRepositoryError("list_match_keys", eventKey, err)
	}
	return keys, nil
}

func (row officialRow) toDomain() (*domain.OfficialResult, error) {
	breakdown, err := decodeBreakdown(row.ScoreBreakdown)
	if err != nil {
		return nil, err
	}

	result := &domain.OfficialResult{
		MatchKey:  row.MatchKey,
		Breakdown: breakdown,
	}
	if row.PostResultTime.Valid {
		posted := row.PostResultTime.Time.UTC()
		result.PostResultTime = &posted
	}
	return result, nil
}

// decodeBreakdown unmarshals a per-alliance breakdown object and normalizes
// alliance keys. Keys other than the two alliance colors are ignored.
func decodeBreakdown(raw []byte) (map[domain.AllianceColor]map[string]any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var byKey map[string]json.RawMessage
	if err := json.Unmarshal(raw, &byKey); err != nil {
		return nil, fmt.Errorf("%w: score breakdown: %v", ports.ErrInvalidRecord, err)
	}

	breakdown := make(map[domain.AllianceColor]map[string]any, len(domain.Alliances))
	for key, value := range byKey {
		color, err := parseAllianceColor(key)
		if err != nil {
			continue
		}
		var metrics map[string]any
		if err := json.Unmarshal(value, &metrics); err != nil {
			return nil, fmt.Errorf("%w: score breakdown %s: %v", ports.ErrInvalidRecord, color, err)
		}
		if metrics != nil {
			breakdown[color] = metrics
		}
	}
	return breakdown, nil
}

func toInts(values pq.Int64Array) []int {
	out := make([]int, len(values))
	for i, v := range values {
		out[i] = int(v)
	}
	return out
}

