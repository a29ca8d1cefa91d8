// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"

	"github.com/danielhkuo/bestworst/models"
	"github.com/danielhkuo/bestworst/scaling"
)

// AddResource registers a stimulus file. An existing (folder_path, filename)
// row is returned unchanged with added == false.
func (s *Store) AddResource(ctx context.Context, r models.Resource) (scaling.StimulusID, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, unavailable("begin add resource", err)
	}
	defer tx.Rollback()

	var existing scaling.StimulusID
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM resources WHERE folder_path = $1 AND filename = $2
	`, r.FolderPath, r.Filename).Scan(&existing)
	if err == nil {
		return existing, false, nil
	}
	if !isNoRows(err) {
		return 0, false, unavailable("query resource", err)
	}

	var id scaling.StimulusID
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) + 1 FROM resources`).Scan(&id); err != nil {
		return 0, false, unavailable("next resource id", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO resources (id, folder_path, filename, uri, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, r.FolderPath, r.Filename, r.URI, r.Description, s.now())
	if err != nil {
		return 0, false, unavailable("insert resource", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, false, unavailable("commit resource", err)
	}
	return id, true, nil
}

// ListStimulusIDs returns the ids of a resource group in ascending order.
// An unknown or empty group yields an empty slice.
func (s *Store) ListStimulusIDs(ctx context.Context, groupKey string) ([]scaling.StimulusID, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM resources WHERE folder_path = $1 ORDER BY id
	`, groupKey)
	if err != nil {
		return nil, unavailable("list stimulus ids", err)
	}
	defer rows.Close()

	var ids []scaling.StimulusID
	for rows.Next() {
		var id scaling.StimulusID
		if err := rows.Scan(&id); err != nil {
			return nil, unavailable("scan stimulus id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list stimulus ids", err)
	}
	return ids, nil
}

// ResolvePath returns the URI of a stimulus.
func (s *Store) ResolvePath(ctx context.Context, id scaling.StimulusID) (string, error) {
	var uri string
	err := s.db.QueryRowContext(ctx, `SELECT uri FROM resources WHERE id = $1`, id).Scan(&uri)
	if isNoRows(err) {
		return "", notFound("resource %d", id)
	}
	if err != nil {
		return "", unavailable("resolve path", err)
	}
	return uri, nil
}

// ListResources returns the catalog rows of a group, or of every group
// when groupKey is empty.
func (s *Store) ListResources(ctx context.Context, groupKey string) ([]models.Resource, error) {
	query := `
		SELECT id, folder_path, filename, uri, description, created_at
		FROM resources
		WHERE folder_path = $1
		ORDER BY id
	`
	args := []any{groupKey}
	if groupKey == "" {
		query = `
			SELECT id, folder_path, filename, uri, description, created_at
			FROM resources
			ORDER BY id
		`
		args = nil
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("list resources", err)
	}
	defer rows.Close()

	resources := []models.Resource{}
	for rows.Next() {
		var r models.Resource
		if err := rows.Scan(&r.ID, &r.FolderPath, &r.Filename, &r.URI, &r.Description, &r.CreatedAt); err != nil {
			return nil, unavailable("scan resource", err)
		}
		resources = append(resources, r)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list resources", err)
	}
	return resources, nil
}

// SequenceResources returns the catalog rows of every stimulus used by a
// sequence, keyed by id.
func (s *Store) SequenceResources(ctx context.Context, sequenceID int64) (map[scaling.StimulusID]models.Resource, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT r.id, r.folder_path, r.filename, r.uri, r.description, r.created_at
		FROM sequences sq
		JOIN resources r ON r.id = sq.stimulus_id
		WHERE sq.sequence_id = $1
	`, sequenceID)
	if err != nil {
		return nil, unavailable("sequence resources", err)
	}
	defer rows.Close()

	resources := make(map[scaling.StimulusID]models.Resource)
	for rows.Next() {
		var r models.Resource
		if err := rows.Scan(&r.ID, &r.FolderPath, &r.Filename, &r.URI, &r.Description, &r.CreatedAt); err != nil {
			return nil, unavailable("scan resource", err)
		}
		resources[r.ID] = r
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("sequence resources", err)
	}
	return resources, nil
}
