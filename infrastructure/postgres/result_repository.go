package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ahrav/scoutval/internal/domain"
	"github.com/ahrav/scoutval/internal/ports"
)

var _ ports.ResultSink = (*ResultRepository)(nil)

// SinkName identifies the postgres sink in errors and logs.
const SinkName = "postgres"

// resultRow mirrors a validation_results row.
type resultRow struct {
	ID               string    `db:"validation_id"`
	ExecutionID      string    `db:"execution_id"`
	ScouterID        string    `db:"scouter_id"`
	MatchKey         string    `db:"match_key"`
	TeamNumber       int       `db:"team_number"`
	EventKey         string    `db:"event_key"`
	SeasonYear       int       `db:"season_year"`
	FieldPath        string    `db:"field_path"`
	ExpectedValue    []byte    `db:"expected_value"`
	ActualValue      []byte    `db:"actual_value"`
	AccuracyScore    float64   `db:"accuracy_score"`
	Outcome          string    `db:"outcome"`
	ConfidenceLevel  float64   `db:"confidence_level"`
	ValidationType   string    `db:"validation_type"`
	ValidationMethod string    `db:"validation_method"`
	Notes            string    `db:"notes"`
	CreatedAt        time.Time `db:"created_at"`
}

const insertResult = `
	INSERT INTO validation_results (
		validation_id, execution_id, scouter_id, match_key, team_number,
		event_key, season_year, field_path, expected_value, actual_value,
		accuracy_score, outcome, confidence_level, validation_type,
		validation_method, notes, created_at
	) VALUES (
		:validation_id, :execution_id, :scouter_id, :match_key, :team_number,
		:event_key, :season_year, :field_path, :expected_value, :actual_value,
		:accuracy_score, :outcome, :confidence_level, :validation_type,
		:validation_method, :notes, :created_at
	)
	ON CONFLICT (validation_id) DO NOTHING`

// ResultRepository persists validation results for reliability scoring.
type ResultRepository struct {
	db        *sqlx.DB
	batchSize int
}

// NewResultRepository creates a result repository that inserts in batches
// of batchSize rows. A non-positive batchSize defaults to 500.
func NewResultRepository(db *sqlx.DB, batchSize int) *ResultRepository {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &ResultRepository{db: db, batchSize: batchSize}
}

// Store implements ports.ResultSink. All batches commit in one transaction.
func (r *ResultRepository) Store(ctx context.Context, results []domain.ValidationResult) error {
	if len(results) == 0 {
		return nil
	}

	rows, err := toResultRows(results)
	if err != nil {
		return &ports.SinkError{Sink: SinkName, Count: len(results), Err: err}
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return &ports.SinkError{Sink: SinkName, Count: len(results), Err: fmt.Errorf("begin transaction: %w", err)}
	}
	defer func() { _ = tx.Rollback() }()

	for start := 0; start < len(rows); start += r.batchSize {
		end := min(start+r.batchSize, len(rows))
		if _, err := tx.NamedExecContext(ctx, insertResult, rows[start:end]); err != nil {
			return &ports.SinkError{Sink: SinkName, Count: len(results), Err: fmt.Errorf("insert results: %w", err)}
		}
	}

	if err := tx.Commit(); err != nil {
		return &ports.SinkError{Sink: SinkName, Count: len(results), Err: fmt.Errorf("commit: %w", err)}
	}
	return nil
}

func toResultRows(results []domain.ValidationResult) ([]resultRow, error) {
	rows := make([]resultRow, len(results))
	for i, res := range results {
		res = res.Encodable()
		expected, err := json.Marshal(res.ExpectedValue)
		if err != nil {
			return nil, fmt.Errorf("marshal expected value of %s: %w", res.ID, err)
		}
		actual, err := json.Marshal(res.ActualValue)
		if err != nil {
			return nil, fmt.Errorf("marshal actual value of %s: %w", res.ID, err)
		}
		rows[i] = resultRow{
			ID:               res.ID,
			ExecutionID:      res.ExecutionID,
			ScouterID:        res.ScouterID,
			MatchKey:         res.MatchKey,
			TeamNumber:       res.TeamNumber,
			EventKey:         res.EventKey,
			SeasonYear:       res.SeasonYear,
			FieldPath:        res.FieldPath,
			ExpectedValue:    expected,
			ActualValue:      actual,
			AccuracyScore:    res.AccuracyScore,
			Outcome:          string(res.Outcome),
			ConfidenceLevel:  res.ConfidenceLevel,
			ValidationType:   string(res.ValidationType),
			ValidationMethod: res.ValidationMethod,
			Notes:            res.Notes,
			CreatedAt:        res.CreatedAt,
		}
	}
	return rows, nil
}
