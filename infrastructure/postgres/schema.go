// Package postgres implements the record store and result sink on
// PostgreSQL using sqlx and lib/pq.
package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // registers the "postgres" driver
)

// Schema creates the tables the repositories read and write. Observation
// payloads and official breakdowns are stored as JSONB because their fields
// change every season.
const Schema = `
CREATE TABLE IF NOT EXISTS scouting_observations (
	id                  TEXT PRIMARY KEY,
	match_key           TEXT NOT NULL,
	team_number         INTEGER NOT NULL,
	scouter_id          TEXT NOT NULL DEFAULT '',
	event_key           TEXT NOT NULL,
	alliance            TEXT NOT NULL,
	auto_performance    JSONB NOT NULL DEFAULT '{}'::jsonb,
	teleop_performance  JSONB NOT NULL DEFAULT '{}'::jsonb,
	endgame_performance JSONB NOT NULL DEFAULT '{}'::jsonb,
	notes               TEXT NOT NULL DEFAULT '',
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_scouting_observations_match ON scouting_observations (match_key);

CREATE TABLE IF NOT EXISTS matches (
	match_key      TEXT PRIMARY KEY,
	event_key      TEXT NOT NULL,
	comp_level     TEXT NOT NULL,
	set_number     INTEGER NOT NULL DEFAULT 1,
	match_number   INTEGER NOT NULL,
	red_teams      INTEGER[] NOT NULL,
	blue_teams     INTEGER[] NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_matches_event ON matches (event_key);

CREATE TABLE IF NOT EXISTS official_match_results (
	match_key        TEXT PRIMARY KEY REFERENCES matches (match_key),
	score_breakdown  JSONB,
	post_result_time TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS validation_results (
	validation_id     TEXT PRIMARY KEY,
	execution_id      TEXT NOT NULL,
	scouter_id        TEXT NOT NULL,
	match_key         TEXT NOT NULL,
	team_number       INTEGER NOT NULL,
	event_key         TEXT NOT NULL,
	season_year       INTEGER NOT NULL,
	field_path        TEXT NOT NULL,
	expected_value    JSONB,
	actual_value      JSONB,
	accuracy_score    DOUBLE PRECISION NOT NULL,
	outcome           TEXT NOT NULL,
	confidence_level  DOUBLE PRECISION NOT NULL,
	validation_type   TEXT NOT NULL,
	validation_method TEXT NOT NULL,
	notes             TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_validation_results_scouter ON validation_results (scouter_id, event_key);
`

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, dsn string, maxOpenConns int) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxOpenConns)
	}
	return db, nil
}

// Migrate applies Schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
