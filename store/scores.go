// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"time"

	"github.com/danielhkuo/bestworst/models"
	"github.com/danielhkuo/bestworst/scaling"
)

// SaveFinalScores replaces the stored ranking of a participant's sequence.
func (s *Store) SaveFinalScores(ctx context.Context, participantID string, sequenceID int64, ranking scaling.FinalRanking) (time.Time, error) {
	computedAt := s.now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return time.Time{}, unavailable("begin save final scores", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		DELETE FROM final_scores WHERE participant_id = $1 AND sequence_id = $2
	`, participantID, sequenceID)
	if err != nil {
		return time.Time{}, unavailable("delete final scores", err)
	}

	for _, rs := range ranking.Stimuli {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO final_scores (participant_id, sequence_id, resource_id, final_score, rank_position, computed_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, participantID, sequenceID, rs.ID, rs.Score, rs.Rank, computedAt)
		if err != nil {
			return time.Time{}, unavailable("insert final score", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return time.Time{}, unavailable("commit final scores", err)
	}
	return computedAt, nil
}

// ListFinalScores returns the stored ranking, best first.
func (s *Store) ListFinalScores(ctx context.Context, participantID string, sequenceID int64) ([]models.FinalScore, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT resource_id, final_score, rank_position, computed_at
		FROM final_scores
		WHERE participant_id = $1 AND sequence_id = $2
		ORDER BY rank_position
	`, participantID, sequenceID)
	if err != nil {
		return nil, unavailable("list final scores", err)
	}
	defer rows.Close()

	scores := []models.FinalScore{}
	for rows.Next() {
		fs := models.FinalScore{ParticipantID: participantID, SequenceID: sequenceID}
		if err := rows.Scan(&fs.ResourceID, &fs.FinalScore, &fs.RankPosition, &fs.ComputedAt); err != nil {
			return nil, unavailable("scan final score", err)
		}
		scores = append(scores, fs)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list final scores", err)
	}
	return scores, nil
}
