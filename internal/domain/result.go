package domain

import (
	"math"
	"strconv"
	"time"
)

// Outcome is the discrete classification of an accuracy score.
type Outcome string

// Supported outcomes.
const (
	OutcomeExactMatch Outcome = "exact_match"
	OutcomeCloseMatch Outcome = "close_match"
	OutcomeMismatch   Outcome = "mismatch"
)

// ValidationType tags which strategy family produced a result.
type ValidationType string

// Supported validation types.
const (
	ValidationTypeConsensus ValidationType = "consensus"
	ValidationTypeTBA       ValidationType = "tba"
)

// ValidationResult is the atomic output of a validation run: one field, one
// scout, one outcome. Results are created fresh on every run and never
// mutated afterwards.
type ValidationResult struct {
	// ID uniquely identifies this result (a UUID).
	ID string `json:"validation_id" db:"validation_id"`

	// ExecutionID identifies the validation run that produced the result.
	ExecutionID string `json:"execution_id" db:"execution_id"`

	ScouterID  string `json:"scouter_id" db:"scouter_id"`
	MatchKey   string `json:"match_key" db:"match_key"`
	TeamNumber int    `json:"team_number" db:"team_number"`
	EventKey   string `json:"event_key" db:"event_key"`
	SeasonYear int    `json:"season_year" db:"season_year"`

	// FieldPath is the dot-qualified field, e.g.
	// "teleop_performance.coral_scored_L1".
	FieldPath string `json:"field_path" db:"field_path"`

	ExpectedValue any `json:"expected_value"`
	ActualValue   any `json:"actual_value"`

	// AccuracyScore lies in [0.0, 1.0].
	AccuracyScore float64 `json:"accuracy_score" db:"accuracy_score"`

	// Outcome is consistent with AccuracyScore under the producing
	// strategy's classifier.
	Outcome Outcome `json:"outcome" db:"outcome"`

	// ConfidenceLevel lies in [0.0, 1.0] and is strategy specific.
	ConfidenceLevel float64 `json:"confidence_level" db:"confidence_level"`

	ValidationType   ValidationType `json:"validation_type" db:"validation_type"`
	ValidationMethod string         `json:"validation_method" db:"validation_method"`

	// Notes optionally explains how the score was derived.
	Notes string `json:"notes,omitempty" db:"notes"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// FilterResultsByTeam returns the results for one team, preserving order.
func FilterResultsByTeam(results []ValidationResult, team int) []ValidationResult {
	filtered := make([]ValidationResult, 0, len(results))
	for _, r := range results {
		if r.TeamNumber == team {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// Encodable returns a copy of r whose expected and actual values survive
// JSON encoding. Non-finite numbers become "NaN", "+Inf" or "-Inf".
func (r ValidationResult) Encodable() ValidationResult {
	r.ExpectedValue = encodableValue(r.ExpectedValue)
	r.ActualValue = encodableValue(r.ActualValue)
	return r
}

func encodableValue(v any) any {
	switch v.(type) {
	case float64, float32:
		f, _ := ToFloat(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return strconv.FormatFloat(f, 'g', -1, 64)
		}
	}
	return v
}
