// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package experiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/danielhkuo/bestworst/metrics"
	"github.com/danielhkuo/bestworst/models"
	"github.com/danielhkuo/bestworst/scaling"
)

// Submission is one participant response to a trial.
type Submission struct {
	ParticipantName string
	SequenceID      int64
	TrialIndex      int
	Best            scaling.StimulusID
	Worst           scaling.StimulusID

	// ResourcesInTrial, when non-nil, must match the stored trial set.
	ResourcesInTrial []scaling.StimulusID
}

// SubmitResult reports the participant's online values after a submission.
type SubmitResult struct {
	Participant models.Participant
	Duplicate   bool
	Values      []scaling.RankedStimulus
}

// Finalized is a computed and stored final ranking.
type Finalized struct {
	Participant models.Participant
	Ranking     scaling.FinalRanking
	Resources   map[scaling.StimulusID]models.Resource
	ComputedAt  time.Time
	Summary     string
}

// StartSession registers the participant and loads their online values
// for the sequence.
func (s *Service) StartSession(ctx context.Context, participantName string, sequenceID int64) (models.Participant, []scaling.RankedStimulus, error) {
	if participantName == "" {
		return models.Participant{}, nil, fmt.Errorf("%w: participant_name is required", scaling.ErrValidation)
	}
	design, err := s.design(ctx, sequenceID)
	if err != nil {
		return models.Participant{}, nil, err
	}
	p, err := s.store.GetOrCreateParticipant(ctx, participantName)
	if err != nil {
		return models.Participant{}, nil, err
	}

	sess := s.sessions.acquire(sessionKey{p.ID, sequenceID})
	defer sess.mu.Unlock()

	if err := s.load(ctx, sess, p.ID, sequenceID, design); err != nil {
		return models.Participant{}, nil, err
	}
	return p, sess.values.Ranked(), nil
}

// Submit validates a response, appends it to the durable log and applies
// the online update. A retry of an already recorded trial with the same
// choices is reported as a duplicate and not applied again.
func (s *Service) Submit(ctx context.Context, sub Submission) (SubmitResult, error) {
	res, err := s.submit(ctx, sub)
	switch {
	case err == nil && res.Duplicate:
		metrics.SubmissionsTotal.WithLabelValues(metrics.OutcomeDuplicate).Inc()
	case err == nil:
		metrics.SubmissionsTotal.WithLabelValues(metrics.OutcomeRecorded).Inc()
	case errors.Is(err, scaling.ErrValidation), errors.Is(err, scaling.ErrNotFound):
		metrics.SubmissionsTotal.WithLabelValues(metrics.OutcomeRejected).Inc()
	default:
		metrics.SubmissionsTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
	}
	return res, err
}

func (s *Service) submit(ctx context.Context, sub Submission) (SubmitResult, error) {
	if sub.ParticipantName == "" {
		return SubmitResult{}, fmt.Errorf("%w: participant_name is required", scaling.ErrValidation)
	}

	design, err := s.design(ctx, sub.SequenceID)
	if err != nil {
		return SubmitResult{}, err
	}
	if sub.TrialIndex < 0 || sub.TrialIndex >= len(design.Trials) {
		return SubmitResult{}, fmt.Errorf("%w: trial index %d out of range [0, %d)",
			scaling.ErrValidation, sub.TrialIndex, len(design.Trials))
	}
	set := design.Trials[sub.TrialIndex]
	if sub.ResourcesInTrial != nil && !set.SameMembers(sub.ResourcesInTrial) {
		return SubmitResult{}, fmt.Errorf("%w: resources_in_trial %v do not match trial %d %v",
			scaling.ErrValidation, sub.ResourcesInTrial, sub.TrialIndex, set)
	}
	if err := scaling.ValidateChoice(set, sub.Best, sub.Worst); err != nil {
		return SubmitResult{}, err
	}

	p, err := s.store.GetOrCreateParticipant(ctx, sub.ParticipantName)
	if err != nil {
		return SubmitResult{}, err
	}

	sess := s.sessions.acquire(sessionKey{p.ID, sub.SequenceID})
	defer sess.mu.Unlock()

	if err := s.load(ctx, sess, p.ID, sub.SequenceID, design); err != nil {
		return SubmitResult{}, err
	}

	result := scaling.TrialResult{
		ParticipantID: p.ID,
		SequenceID:    sub.SequenceID,
		TrialIndex:    sub.TrialIndex,
		Best:          sub.Best,
		Worst:         sub.Worst,
	}
	inserted, err := s.store.AppendResult(ctx, result)
	if err != nil {
		slog.Error("failed to record trial result",
			"participant_id", p.ID,
			"sequence_id", sub.SequenceID,
			"trial_index", sub.TrialIndex,
			"error", err)
		return SubmitResult{}, err
	}

	if !inserted {
		existing, err := s.store.GetResult(ctx, p.ID, sub.SequenceID, sub.TrialIndex)
		if err != nil {
			return SubmitResult{}, err
		}
		if existing.Best != sub.Best || existing.Worst != sub.Worst {
			return SubmitResult{}, fmt.Errorf("%w: trial %d already answered with best=%d worst=%d",
				scaling.ErrValidation, sub.TrialIndex, existing.Best, existing.Worst)
		}
		slog.Warn("duplicate submission ignored",
			"participant_id", p.ID,
			"sequence_id", sub.SequenceID,
			"trial_index", sub.TrialIndex)
		return SubmitResult{Participant: p, Duplicate: true, Values: sess.values.Ranked()}, nil
	}

	if err := scaling.Update(sess.values, set, sub.Best, sub.Worst, s.cfg.Alpha); err != nil {
		return SubmitResult{}, err
	}

	slog.Info("trial recorded",
		"participant_id", p.ID,
		"sequence_id", sub.SequenceID,
		"trial_index", sub.TrialIndex,
		"best", sub.Best,
		"worst", sub.Worst)

	return SubmitResult{Participant: p, Values: sess.values.Ranked()}, nil
}

// Values returns a registered participant's online values for a sequence.
func (s *Service) Values(ctx context.Context, participantName string, sequenceID int64) (models.Participant, []scaling.RankedStimulus, error) {
	if participantName == "" {
		return models.Participant{}, nil, fmt.Errorf("%w: participant_name is required", scaling.ErrValidation)
	}
	design, err := s.design(ctx, sequenceID)
	if err != nil {
		return models.Participant{}, nil, err
	}
	p, err := s.store.FindParticipant(ctx, participantName)
	if err != nil {
		return models.Participant{}, nil, err
	}

	sess := s.sessions.acquire(sessionKey{p.ID, sequenceID})
	defer sess.mu.Unlock()

	if err := s.load(ctx, sess, p.ID, sequenceID, design); err != nil {
		return models.Participant{}, nil, err
	}
	return p, sess.values.Ranked(), nil
}

// Finalize fits the ranking model over the participant's recorded results,
// replaces their stored final scores and ends the online session.
func (s *Service) Finalize(ctx context.Context, participantName string, sequenceID int64) (Finalized, error) {
	if participantName == "" {
		return Finalized{}, fmt.Errorf("%w: participant_name is required", scaling.ErrValidation)
	}
	if _, err := s.design(ctx, sequenceID); err != nil {
		return Finalized{}, err
	}
	p, err := s.store.FindParticipant(ctx, participantName)
	if err != nil {
		return Finalized{}, err
	}

	key := sessionKey{p.ID, sequenceID}

	// Closed snapshot; later submissions need another finalize
	sess := s.sessions.acquire(key)
	results, err := s.store.ListResults(ctx, p.ID, sequenceID)
	sess.mu.Unlock()
	if err != nil {
		return Finalized{}, err
	}

	agg := scaling.NewAggregator(s.cfg.Ridge)

	fitCtx, cancel := context.WithTimeout(ctx, s.cfg.FitTimeout)
	defer cancel()

	start := time.Now()
	ranking, err := agg.Fit(fitCtx, results)
	metrics.FitDuration.Observe(time.Since(start).Seconds())
	switch {
	case err == nil:
		metrics.FitsTotal.WithLabelValues(metrics.FitOK).Inc()
	case errors.Is(err, scaling.ErrInsufficientData):
		metrics.FitsTotal.WithLabelValues(metrics.FitInsufficientData).Inc()
		return Finalized{}, err
	default:
		metrics.FitsTotal.WithLabelValues(metrics.FitFailed).Inc()
		slog.Error("ranking fit failed",
			"participant_id", p.ID,
			"sequence_id", sequenceID,
			"observations", len(results),
			"error", err)
		return Finalized{}, err
	}

	computedAt, err := s.store.SaveFinalScores(ctx, p.ID, sequenceID, ranking)
	if err != nil {
		return Finalized{}, err
	}

	resources, err := s.store.SequenceResources(ctx, sequenceID)
	if err != nil {
		return Finalized{}, err
	}

	// End the online session. Anything submitted since the snapshot is in
	// the log and comes back on replay.
	sess = s.sessions.acquire(key)
	s.sessions.evict(key, sess)
	sess.mu.Unlock()

	slog.Info("ranking computed",
		"participant_id", p.ID,
		"sequence_id", sequenceID,
		"observations", ranking.Observations,
		"iterations", ranking.Iterations,
		"log_likelihood", ranking.LogLikelihood)

	return Finalized{
		Participant: p,
		Ranking:     ranking,
		Resources:   resources,
		ComputedAt:  computedAt,
		Summary:     summarize(ranking, s.cfg.Ridge),
	}, nil
}

// load replays the durable log into sess the first time it is used.
// Callers hold sess.mu.
func (s *Service) load(ctx context.Context, sess *session, participantID string, sequenceID int64, design scaling.TrialDesign) error {
	if sess.values != nil {
		return nil
	}

	results, err := s.store.ListResults(ctx, participantID, sequenceID)
	if err != nil {
		return err
	}

	values := scaling.NewValueState(design.Stimuli())
	for _, r := range results {
		if r.TrialIndex < 0 || r.TrialIndex >= len(design.Trials) {
			return fmt.Errorf("%w: stored result for trial %d outside sequence %d",
				scaling.ErrValidation, r.TrialIndex, sequenceID)
		}
		if err := scaling.Update(values, design.Trials[r.TrialIndex], r.Best, r.Worst, s.cfg.Alpha); err != nil {
			return err
		}
	}

	sess.values = values
	return nil
}

func summarize(r scaling.FinalRanking, ridge float64) string {
	return fmt.Sprintf(
		"Bradley-Terry-Luce fit: %d comparisons, %d stimuli, reference %d, log-likelihood %.4f, %d iterations, ridge %g",
		r.Observations, len(r.Stimuli), r.Reference, r.LogLikelihood, r.Iterations, ridge)
}
