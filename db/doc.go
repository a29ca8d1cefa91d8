// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles database connections and schema creation.

# Connecting

Open selects the driver from the configured database type:

	conn, err := db.Open(cfg.DatabaseType, cfg.DatabaseURL)

"sqlite" uses modernc.org/sqlite, "postgres" uses github.com/lib/pq.

# Schema Creation

CreateSchema initializes all required tables:

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.

# Tables

  - resources: Stimulus catalog (one row per audio file)
  - participants: Participants by unique name
  - sequence_info: One row per generated sequence
  - sequences: Trial design rows, one per (trial, position)
  - trial_results: Best/worst choices, keyed by (participant, sequence, trial)
  - final_scores: Latest fitted ranking per participant and sequence

# Relationships

	resources 1──* sequences
	sequence_info 1──* sequences
	sequence_info 1──* trial_results
	participants 1──* trial_results
	participants 1──* final_scores

Timestamps are always written by the application, no column relies on a
database default, so the same schema runs on SQLite and PostgreSQL.
*/
package db
