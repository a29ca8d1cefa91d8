// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package store implements the persistence collaborators of the experiment
// service on top of database/sql.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/danielhkuo/bestworst/scaling"
)

// Store persists the catalog, sequences, participants, trial results and
// final scores in any database/sql backend using the schema in package db.
//
// Every database failure is wrapped with scaling.ErrStoreUnavailable;
// missing rows are reported with scaling.ErrNotFound. The store never
// retries.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

func New(db *sql.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock returns a copy of the store that timestamps rows with now.
func (s *Store) WithClock(now func() time.Time) *Store {
	return &Store{db: s.db, now: now}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", scaling.ErrStoreUnavailable, op, err)
}

func notFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", scaling.ErrNotFound, fmt.Sprintf(format, args...))
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func isNotFound(err error) bool {
	return errors.Is(err, scaling.ErrNotFound)
}
