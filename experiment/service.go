// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package experiment runs best-worst scaling sessions on top of a Store:
// it generates and persists trial sequences, records participant choices,
// keeps each participant's online values and computes final rankings.
package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/danielhkuo/bestworst/metrics"
	"github.com/danielhkuo/bestworst/models"
	"github.com/danielhkuo/bestworst/scaling"
)

// Store is everything the service needs from persistence. *store.Store
// satisfies it.
type Store interface {
	ListStimulusIDs(ctx context.Context, groupKey string) ([]scaling.StimulusID, error)
	ListResources(ctx context.Context, groupKey string) ([]models.Resource, error)
	SequenceResources(ctx context.Context, sequenceID int64) (map[scaling.StimulusID]models.Resource, error)

	CreateSequence(ctx context.Context, info models.SequenceInfo, design scaling.TrialDesign) (models.SequenceInfo, error)
	GetSequenceInfo(ctx context.Context, sequenceID int64) (models.SequenceInfo, error)
	ListSequences(ctx context.Context) ([]models.SequenceInfo, error)
	LoadDesign(ctx context.Context, sequenceID int64) (scaling.TrialDesign, error)

	GetOrCreateParticipant(ctx context.Context, name string) (models.Participant, error)
	FindParticipant(ctx context.Context, name string) (models.Participant, error)

	AppendResult(ctx context.Context, r scaling.TrialResult) (bool, error)
	GetResult(ctx context.Context, participantID string, sequenceID int64, trialIndex int) (scaling.TrialResult, error)
	ListResults(ctx context.Context, participantID string, sequenceID int64) ([]scaling.TrialResult, error)

	SaveFinalScores(ctx context.Context, participantID string, sequenceID int64, ranking scaling.FinalRanking) (time.Time, error)
}

type Config struct {
	Alpha      float64
	Ridge      float64
	FitTimeout time.Duration

	// SessionIdle is how long an online session may go unused before
	// EvictIdle drops it. Values are rebuilt from the log on next use.
	SessionIdle time.Duration

	// Seed draws a design seed when a request does not carry one.
	// Defaults to math/rand/v2.Uint64.
	Seed func() uint64
}

// Service is safe for concurrent use.
type Service struct {
	store    Store
	cfg      Config
	sessions *registry

	flight  singleflight.Group
	designs *designCache
}

func NewService(store Store, cfg Config) *Service {
	if cfg.Alpha == 0 {
		cfg.Alpha = scaling.DefaultAlpha
	}
	if cfg.FitTimeout <= 0 {
		cfg.FitTimeout = 10 * time.Second
	}
	if cfg.SessionIdle <= 0 {
		cfg.SessionIdle = 30 * time.Minute
	}
	if cfg.Seed == nil {
		cfg.Seed = rand.Uint64
	}
	return &Service{
		store:    store,
		cfg:      cfg,
		sessions: newRegistry(),
		designs:  newDesignCache(),
	}
}

// EvictIdle drops online sessions unused for longer than cfg.SessionIdle
// and returns how many were dropped.
func (s *Service) EvictIdle() int {
	return s.sessions.evictIdle(s.sessions.now().Add(-s.cfg.SessionIdle))
}

// RunEviction calls EvictIdle every interval until ctx is done.
func (s *Service) RunEviction(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.EvictIdle(); n > 0 {
				slog.Info("idle sessions evicted", "count", n, "active", s.sessions.len())
			}
		}
	}
}

// CreateSequenceParams describes a sequence to generate.
type CreateSequenceParams struct {
	GroupKey string
	Name     string
	Repeats  int
	SetSize  int
	Seed     uint64 // 0 draws a random seed
}

// CreatedSequence is a stored sequence with the design it was built from.
type CreatedSequence struct {
	Info   models.SequenceInfo
	Design scaling.TrialDesign
	Seed   uint64
}

// CreateSequence generates a design over the group's stimuli and stores
// it. Leftover repeats are dropped and only reported.
func (s *Service) CreateSequence(ctx context.Context, p CreateSequenceParams) (CreatedSequence, error) {
	if p.GroupKey == "" {
		return CreatedSequence{}, fmt.Errorf("%w: group_key is required", scaling.ErrValidation)
	}

	ids, err := s.store.ListStimulusIDs(ctx, p.GroupKey)
	if err != nil {
		return CreatedSequence{}, err
	}
	if len(ids) == 0 {
		return CreatedSequence{}, fmt.Errorf("%w: stimulus pool %q is empty", scaling.ErrNotFound, p.GroupKey)
	}

	seed := p.Seed
	for seed == 0 {
		seed = s.cfg.Seed()
	}

	design, err := scaling.Generate(ids, p.Repeats, p.SetSize, rand.New(rand.NewPCG(seed, seed)))
	if err != nil {
		return CreatedSequence{}, err
	}
	if len(design.Trials) == 0 {
		return CreatedSequence{}, fmt.Errorf("%w: pool %q has %d stimuli, fewer than set size %d",
			scaling.ErrValidation, p.GroupKey, len(ids), p.SetSize)
	}
	if len(design.Leftover) > 0 {
		metrics.LeftoverStimuliTotal.Add(float64(len(design.Leftover)))
		slog.Warn("leftover stimuli dropped from sequence",
			"group_key", p.GroupKey,
			"count", len(design.Leftover),
			"leftover", design.Leftover)
	}

	name := p.Name
	if name == "" {
		name = fmt.Sprintf("%s-%d", p.GroupKey, seed)
	}

	info, err := s.store.CreateSequence(ctx, models.SequenceInfo{
		SequenceName: name,
		GroupKey:     p.GroupKey,
		SetSize:      p.SetSize,
	}, design)
	if err != nil {
		slog.Error("failed to store sequence", "group_key", p.GroupKey, "error", err)
		return CreatedSequence{}, err
	}

	s.designs.put(info.SequenceID, design)
	metrics.SequencesCreatedTotal.Inc()
	slog.Info("sequence created",
		"sequence_id", info.SequenceID,
		"group_key", info.GroupKey,
		"n_trials", info.NTrials,
		"set_size", info.SetSize,
		"seed", seed)

	return CreatedSequence{Info: info, Design: design, Seed: seed}, nil
}

func (s *Service) ListSequences(ctx context.Context) ([]models.SequenceInfo, error) {
	return s.store.ListSequences(ctx)
}

func (s *Service) ListResources(ctx context.Context, groupKey string) ([]models.Resource, error) {
	return s.store.ListResources(ctx, groupKey)
}

// TrialsView is what a presentation layer needs to run a sequence.
type TrialsView struct {
	SequenceID int64
	Design     scaling.TrialDesign
	AudioMap   map[scaling.StimulusID]string
}

// Trials returns the trial sets of a sequence and the URI of each stimulus.
func (s *Service) Trials(ctx context.Context, sequenceID int64) (TrialsView, error) {
	design, err := s.design(ctx, sequenceID)
	if err != nil {
		return TrialsView{}, err
	}

	resources, err := s.store.SequenceResources(ctx, sequenceID)
	if err != nil {
		return TrialsView{}, err
	}
	audio := make(map[scaling.StimulusID]string, len(resources))
	for id, r := range resources {
		audio[id] = r.URI
	}

	return TrialsView{SequenceID: sequenceID, Design: design, AudioMap: audio}, nil
}

// design returns the immutable design of a sequence, loading it at most
// once per concurrent burst of callers.
func (s *Service) design(ctx context.Context, sequenceID int64) (scaling.TrialDesign, error) {
	if d, ok := s.designs.get(sequenceID); ok {
		return d, nil
	}

	v, err, _ := s.flight.Do(fmt.Sprint(sequenceID), func() (interface{}, error) {
		d, err := s.store.LoadDesign(ctx, sequenceID)
		if err != nil {
			return nil, err
		}
		s.designs.put(sequenceID, d)
		return d, nil
	})
	if err != nil {
		return scaling.TrialDesign{}, err
	}
	return v.(scaling.TrialDesign), nil
}
