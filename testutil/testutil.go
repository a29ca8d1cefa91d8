// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielhkuo/bestworst/cliparse"
	"github.com/danielhkuo/bestworst/db"
	"github.com/danielhkuo/bestworst/models"
	"github.com/danielhkuo/bestworst/scaling"
	"github.com/danielhkuo/bestworst/store"
)

// SetupTestDB creates a fresh SQLite database with the full schema in a
// temporary directory. It is closed when the test ends.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "bestworst_test.db")
	conn, err := db.Open(db.TypeSQLite, path)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:         3318,
		DatabaseURL:  "file:test.db",
		DatabaseType: db.TypeSQLite,
		Alpha:        scaling.DefaultAlpha,
		Ridge:        scaling.DefaultRidge,
		FitTimeout:   5 * time.Second,
	}
}

// SeedResources registers n audio files under groupKey and returns their ids
func SeedResources(t *testing.T, conn *sql.DB, groupKey string, n int) []scaling.StimulusID {
	t.Helper()

	s := store.New(conn)
	ids := make([]scaling.StimulusID, 0, n)
	for i := 0; i < n; i++ {
		filename := fmt.Sprintf("stimulus_%02d.wav", i+1)
		id, _, err := s.AddResource(context.Background(), models.Resource{
			FolderPath: groupKey,
			Filename:   filename,
			URI:        groupKey + "/" + filename,
		})
		if err != nil {
			t.Fatalf("Failed to seed resource: %v", err)
		}
		ids = append(ids, id)
	}

	return ids
}

// CreateTestSequence stores design as a new sequence over groupKey and
// returns its id
func CreateTestSequence(t *testing.T, conn *sql.DB, groupKey string, design scaling.TrialDesign) int64 {
	t.Helper()

	setSize := 0
	if len(design.Trials) > 0 {
		setSize = len(design.Trials[0])
	}
	info, err := store.New(conn).CreateSequence(context.Background(), models.SequenceInfo{
		SequenceName: "Test Sequence",
		GroupKey:     groupKey,
		SetSize:      setSize,
	}, design)
	if err != nil {
		t.Fatalf("Failed to create test sequence: %v", err)
	}

	return info.SequenceID
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
