// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"

	"github.com/danielhkuo/bestworst/models"
	"github.com/danielhkuo/bestworst/scaling"
)

// CreateSequence stores a sequence_info row and one sequences row per
// (trial, position) in a single transaction. A zero info.SequenceID
// allocates the next free id. CreatedAt and NTrials are filled in.
func (s *Store) CreateSequence(ctx context.Context, info models.SequenceInfo, design scaling.TrialDesign) (models.SequenceInfo, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.SequenceInfo{}, unavailable("begin create sequence", err)
	}
	defer tx.Rollback()

	if info.SequenceID == 0 {
		err := tx.QueryRowContext(ctx, `
			SELECT COALESCE(MAX(sequence_id), 0) + 1 FROM sequence_info
		`).Scan(&info.SequenceID)
		if err != nil {
			return models.SequenceInfo{}, unavailable("next sequence id", err)
		}
	}
	info.CreatedAt = s.now()
	info.NTrials = len(design.Trials)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sequence_info (sequence_id, sequence_name, created_at, group_key, set_size, n_trials)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, info.SequenceID, info.SequenceName, info.CreatedAt, info.GroupKey, info.SetSize, info.NTrials)
	if err != nil {
		return models.SequenceInfo{}, unavailable("insert sequence_info", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sequences (sequence_id, stimulus_id, trial_index, order_index)
		VALUES ($1, $2, $3, $4)
	`)
	if err != nil {
		return models.SequenceInfo{}, unavailable("prepare sequences insert", err)
	}
	defer stmt.Close()

	for trialIdx, set := range design.Trials {
		for orderIdx, id := range set {
			if _, err := stmt.ExecContext(ctx, info.SequenceID, id, trialIdx, orderIdx); err != nil {
				return models.SequenceInfo{}, unavailable("insert sequences row", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return models.SequenceInfo{}, unavailable("commit sequence", err)
	}
	return info, nil
}

// GetSequenceInfo returns the sequence_info row of a sequence.
func (s *Store) GetSequenceInfo(ctx context.Context, sequenceID int64) (models.SequenceInfo, error) {
	var info models.SequenceInfo
	err := s.db.QueryRowContext(ctx, `
		SELECT sequence_id, sequence_name, created_at, group_key, set_size, n_trials
		FROM sequence_info
		WHERE sequence_id = $1
	`, sequenceID).Scan(
		&info.SequenceID, &info.SequenceName, &info.CreatedAt,
		&info.GroupKey, &info.SetSize, &info.NTrials,
	)
	if isNoRows(err) {
		return models.SequenceInfo{}, notFound("sequence %d", sequenceID)
	}
	if err != nil {
		return models.SequenceInfo{}, unavailable("query sequence_info", err)
	}
	return info, nil
}

// ListSequences returns every sequence, newest id first.
func (s *Store) ListSequences(ctx context.Context) ([]models.SequenceInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sequence_id, sequence_name, created_at, group_key, set_size, n_trials
		FROM sequence_info
		ORDER BY sequence_id DESC
	`)
	if err != nil {
		return nil, unavailable("list sequences", err)
	}
	defer rows.Close()

	sequences := []models.SequenceInfo{}
	for rows.Next() {
		var info models.SequenceInfo
		if err := rows.Scan(
			&info.SequenceID, &info.SequenceName, &info.CreatedAt,
			&info.GroupKey, &info.SetSize, &info.NTrials,
		); err != nil {
			return nil, unavailable("scan sequence", err)
		}
		sequences = append(sequences, info)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list sequences", err)
	}
	return sequences, nil
}

// LoadDesign rebuilds the TrialSets of a sequence by grouping rows on
// trial_index, ordered by order_index. Leftover is not persisted.
func (s *Store) LoadDesign(ctx context.Context, sequenceID int64) (scaling.TrialDesign, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT trial_index, stimulus_id
		FROM sequences
		WHERE sequence_id = $1
		ORDER BY trial_index, order_index
	`, sequenceID)
	if err != nil {
		return scaling.TrialDesign{}, unavailable("load design", err)
	}
	defer rows.Close()

	var design scaling.TrialDesign
	current := -1
	for rows.Next() {
		var trialIdx int
		var id scaling.StimulusID
		if err := rows.Scan(&trialIdx, &id); err != nil {
			return scaling.TrialDesign{}, unavailable("scan design row", err)
		}
		if trialIdx != current {
			design.Trials = append(design.Trials, scaling.TrialSet{})
			current = trialIdx
		}
		last := len(design.Trials) - 1
		design.Trials[last] = append(design.Trials[last], id)
	}
	if err := rows.Err(); err != nil {
		return scaling.TrialDesign{}, unavailable("load design", err)
	}

	if len(design.Trials) == 0 {
		return scaling.TrialDesign{}, notFound("no trials for sequence %d", sequenceID)
	}
	return design, nil
}
