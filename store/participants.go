// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/danielhkuo/bestworst/models"
)

// GetOrCreateParticipant looks a participant up by name and creates it
// with a fresh uuid when missing. Concurrent calls for the same name
// resolve to the same row.
func (s *Store) GetOrCreateParticipant(ctx context.Context, name string) (models.Participant, error) {
	p, err := s.FindParticipant(ctx, name)
	if err == nil {
		return p, nil
	}
	if !isNotFound(err) {
		return models.Participant{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO participants (id, participant_name, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (participant_name) DO NOTHING
	`, uuid.NewString(), name, s.now())
	if err != nil {
		return models.Participant{}, unavailable("insert participant", err)
	}

	return s.FindParticipant(ctx, name)
}

// FindParticipant returns the participant with the given name.
func (s *Store) FindParticipant(ctx context.Context, name string) (models.Participant, error) {
	var p models.Participant
	err := s.db.QueryRowContext(ctx, `
		SELECT id, participant_name, created_at FROM participants WHERE participant_name = $1
	`, name).Scan(&p.ID, &p.Name, &p.CreatedAt)
	if isNoRows(err) {
		return models.Participant{}, notFound("participant %q", name)
	}
	if err != nil {
		return models.Participant{}, unavailable("query participant", err)
	}
	return p, nil
}
