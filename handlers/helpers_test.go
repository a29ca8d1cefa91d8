// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"testing"

	"github.com/danielhkuo/bestworst/experiment"
	"github.com/danielhkuo/bestworst/store"
	"github.com/danielhkuo/bestworst/testutil"
)

// newTestService builds a service over a fresh test database
func newTestService(t *testing.T) (*experiment.Service, *sql.DB) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	svc := experiment.NewService(store.New(db), experiment.Config{
		Alpha:      cfg.Alpha,
		Ridge:      cfg.Ridge,
		FitTimeout: cfg.FitTimeout,
	})
	return svc, db
}
