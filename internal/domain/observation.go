// Package domain contains pure, dependency-free domain models and types
// for the scouting validation engine.
package domain

import (
	"time"
)

// AllianceColor identifies one of the two alliances in a match.
type AllianceColor string

// Supported alliance colors.
const (
	AllianceRed  AllianceColor = "red"
	AllianceBlue AllianceColor = "blue"
)

// Alliances lists both alliance colors in a stable order.
var Alliances = []AllianceColor{AllianceRed, AllianceBlue}

// Period identifies a match phase and doubles as the payload's top-level
// field name inside an observation document.
type Period string

// The three match periods, named after the observation columns that hold them.
const (
	PeriodAuto    Period = "auto_performance"
	PeriodTeleop  Period = "teleop_performance"
	PeriodEndgame Period = "endgame_performance"
)

// Periods lists the match periods in play order.
var Periods = []Period{PeriodAuto, PeriodTeleop, PeriodEndgame}

// Metadata keys stored alongside period payloads that never take part in
// validation.
const (
	KeySchemaVersion = "schema_version"
	KeyNotes         = "notes"
)

// Payload is the open-ended field map recorded for one period. Values are
// booleans, numbers or category strings; the schema changes every season so
// the type stays dynamic.
type Payload map[string]any

// Observation is one scout's recorded performance for one team in one match.
// Observations are immutable once submitted; corrections arrive as new
// observations.
type Observation struct {
	// ID is the storage identifier of the observation.
	ID string `json:"id" db:"id"`

	// MatchKey identifies the match, e.g. "2025txhou_qm12".
	MatchKey string `json:"match_key" db:"match_key"`

	// TeamNumber is the FRC team that was observed.
	TeamNumber int `json:"team_number" db:"team_number"`

	// ScouterID identifies the scout that submitted the observation.
	// It may be empty for legacy rows without a scout linkage.
	ScouterID string `json:"scouter_id" db:"scouter_id"`

	// EventKey identifies the event the match belongs to.
	EventKey string `json:"event_key" db:"event_key"`

	// Alliance is the color the observed team played on.
	Alliance AllianceColor `json:"alliance" db:"alliance"`

	AutoPerformance    Payload `json:"auto_performance"`
	TeleopPerformance  Payload `json:"teleop_performance"`
	EndgamePerformance Payload `json:"endgame_performance"`

	// Notes is free text and is never validated.
	Notes string `json:"notes" db:"notes"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Payload returns the payload recorded for the given period.
func (o Observation) Payload(p Period) Payload {
	switch p {
	case PeriodAuto:
		return o.AutoPerformance
	case PeriodTeleop:
		return o.TeleopPerformance
	case PeriodEndgame:
		return o.EndgamePerformance
	default:
		return nil
	}
}

// Document returns the observation's period payloads as one nested map keyed
// by period name, suitable for dot-path lookup such as
// "teleop_performance.coral_scored_L1".
func (o Observation) Document() map[string]any {
	return map[string]any{
		string(PeriodAuto):    map[string]any(o.AutoPerformance),
		string(PeriodTeleop):  map[string]any(o.TeleopPerformance),
		string(PeriodEndgame): map[string]any(o.EndgamePerformance),
	}
}

// FilterByTeam returns the observations recorded for the given team,
// preserving order.
func FilterByTeam(observations []Observation, team int) []Observation {
	filtered := make([]Observation, 0, len(observations))
	for _, obs := range observations {
		if obs.TeamNumber == team {
			filtered = append(filtered, obs)
		}
	}
	return filtered
}

// AllianceComposition lists the team numbers playing on each alliance.
type AllianceComposition struct {
	Red  []int `json:"red"`
	Blue []int `json:"blue"`
}

// Teams returns the teams on the given alliance.
func (a AllianceComposition) Teams(color AllianceColor) []int {
	switch color {
	case AllianceRed:
		return a.Red
	case AllianceBlue:
		return a.Blue
	default:
		return nil
	}
}

// AllTeams returns red teams followed by blue teams.
func (a AllianceComposition) AllTeams() []int {
	teams := make([]int, 0, len(a.Red)+len(a.Blue))
	teams = append(teams, a.Red...)
	return append(teams, a.Blue...)
}

// OfficialResult is the third-party record of a played match. It reports
// alliance-level totals only and is never modified by the engine.
type OfficialResult struct {
	// MatchKey identifies the match.
	MatchKey string `json:"match_key"`

	// Breakdown maps each alliance to its metric name -> value table.
	Breakdown map[AllianceColor]map[string]any `json:"score_breakdown"`

	// PostResultTime is set once the results are posted and final.
	PostResultTime *time.Time `json:"post_result_time,omitempty"`
}

// IsFinalized reports whether the official results have been posted.
func (r *OfficialResult) IsFinalized() bool {
	return r != nil && r.PostResultTime != nil
}

// HasBreakdown reports whether both alliances carry a score breakdown.
func (r *OfficialResult) HasBreakdown() bool {
	if r == nil || len(r.Breakdown) == 0 {
		return false
	}
	for _, color := range Alliances {
		if len(r.Breakdown[color]) == 0 {
			return false
		}
	}
	return true
}
