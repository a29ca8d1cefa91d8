// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"

	"github.com/danielhkuo/bestworst/scaling"
)

// AppendResult records a trial result. A result with the same
// (participant, sequence, trial_index) already on file is left untouched
// and inserted is false. A zero SubmittedAt is stamped with the store clock.
func (s *Store) AppendResult(ctx context.Context, r scaling.TrialResult) (bool, error) {
	if r.SubmittedAt.IsZero() {
		r.SubmittedAt = s.now()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO trial_results (participant_id, sequence_id, trial_index, best_stimulus, worst_stimulus, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (participant_id, sequence_id, trial_index) DO NOTHING
	`, r.ParticipantID, r.SequenceID, r.TrialIndex, r.Best, r.Worst, r.SubmittedAt)
	if err != nil {
		return false, unavailable("insert trial result", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, unavailable("trial result rows affected", err)
	}
	return n == 1, nil
}

// GetResult returns the recorded result of one trial.
func (s *Store) GetResult(ctx context.Context, participantID string, sequenceID int64, trialIndex int) (scaling.TrialResult, error) {
	r := scaling.TrialResult{ParticipantID: participantID, SequenceID: sequenceID, TrialIndex: trialIndex}
	err := s.db.QueryRowContext(ctx, `
		SELECT best_stimulus, worst_stimulus, submitted_at
		FROM trial_results
		WHERE participant_id = $1 AND sequence_id = $2 AND trial_index = $3
	`, participantID, sequenceID, trialIndex).Scan(&r.Best, &r.Worst, &r.SubmittedAt)
	if isNoRows(err) {
		return scaling.TrialResult{}, notFound("trial %d of sequence %d", trialIndex, sequenceID)
	}
	if err != nil {
		return scaling.TrialResult{}, unavailable("query trial result", err)
	}
	return r, nil
}

// ListResults returns a participant's results for a sequence in arrival order.
func (s *Store) ListResults(ctx context.Context, participantID string, sequenceID int64) ([]scaling.TrialResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT trial_index, best_stimulus, worst_stimulus, submitted_at
		FROM trial_results
		WHERE participant_id = $1 AND sequence_id = $2
		ORDER BY submitted_at, trial_index
	`, participantID, sequenceID)
	if err != nil {
		return nil, unavailable("list trial results", err)
	}
	defer rows.Close()

	var results []scaling.TrialResult
	for rows.Next() {
		r := scaling.TrialResult{ParticipantID: participantID, SequenceID: sequenceID}
		if err := rows.Scan(&r.TrialIndex, &r.Best, &r.Worst, &r.SubmittedAt); err != nil {
			return nil, unavailable("scan trial result", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list trial results", err)
	}
	return results, nil
}
