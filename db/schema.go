// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported values for the database type setting
const (
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
)

// Open connects to the database of the given type and verifies the
// connection. SQLite connections get WAL, foreign keys and a busy timeout.
func Open(dbType, url string) (*sql.DB, error) {
	var driver string
	switch strings.ToLower(dbType) {
	case TypeSQLite, "":
		driver = "sqlite"
	case TypePostgres, "postgresql":
		driver = "postgres"
	default:
		return nil, fmt.Errorf("unsupported database type %q", dbType)
	}

	conn, err := sql.Open(driver, url)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if driver == "sqlite" {
		// One writer at a time; pragmas below are per connection
		conn.SetMaxOpenConns(1)
		for _, pragma := range []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA foreign_keys=ON",
			"PRAGMA busy_timeout=5000",
		} {
			if _, err := conn.Exec(pragma); err != nil {
				conn.Close()
				return nil, fmt.Errorf("%s: %w", pragma, err)
			}
		}
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return conn, nil
}

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

const schema = `
-- Stimulus catalog
CREATE TABLE IF NOT EXISTS resources (
    id BIGINT PRIMARY KEY,
    folder_path TEXT NOT NULL,
    filename TEXT NOT NULL,
    uri TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL,
    UNIQUE (folder_path, filename)
);

CREATE INDEX IF NOT EXISTS idx_resources_folder_path ON resources(folder_path);

-- Participants
CREATE TABLE IF NOT EXISTS participants (
    id TEXT PRIMARY KEY,
    participant_name TEXT NOT NULL UNIQUE,
    created_at TIMESTAMP NOT NULL
);

-- Sequences
CREATE TABLE IF NOT EXISTS sequence_info (
    sequence_id BIGINT PRIMARY KEY,
    sequence_name TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    group_key TEXT NOT NULL,
    set_size INTEGER NOT NULL CHECK (set_size >= 2),
    n_trials INTEGER NOT NULL
);

-- One row per (trial, position)
CREATE TABLE IF NOT EXISTS sequences (
    sequence_id BIGINT NOT NULL REFERENCES sequence_info(sequence_id) ON DELETE CASCADE,
    stimulus_id BIGINT NOT NULL REFERENCES resources(id),
    trial_index INTEGER NOT NULL,
    order_index INTEGER NOT NULL,
    PRIMARY KEY (sequence_id, trial_index, order_index)
);

-- Trial results (append-only)
CREATE TABLE IF NOT EXISTS trial_results (
    participant_id TEXT NOT NULL REFERENCES participants(id) ON DELETE CASCADE,
    sequence_id BIGINT NOT NULL REFERENCES sequence_info(sequence_id) ON DELETE CASCADE,
    trial_index INTEGER NOT NULL,
    best_stimulus BIGINT NOT NULL,
    worst_stimulus BIGINT NOT NULL,
    submitted_at TIMESTAMP NOT NULL,
    PRIMARY KEY (participant_id, sequence_id, trial_index),
    CHECK (best_stimulus <> worst_stimulus)
);

CREATE INDEX IF NOT EXISTS idx_trial_results_sequence ON trial_results(sequence_id);

-- Final rankings (derived, recomputable from trial_results)
CREATE TABLE IF NOT EXISTS final_scores (
    participant_id TEXT NOT NULL REFERENCES participants(id) ON DELETE CASCADE,
    sequence_id BIGINT NOT NULL REFERENCES sequence_info(sequence_id) ON DELETE CASCADE,
    resource_id BIGINT NOT NULL,
    final_score DOUBLE PRECISION NOT NULL,
    rank_position INTEGER NOT NULL,
    computed_at TIMESTAMP NOT NULL,
    PRIMARY KEY (participant_id, sequence_id, resource_id)
);
`
