// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import (
	"time"

	"github.com/danielhkuo/bestworst/scaling"
)

// Error codes carried in ErrorResponse.Code
const (
	CodeValidation       = "validation"
	CodeNotFound         = "not_found"
	CodeInsufficientData = "insufficient_data"
	CodeModelFitFailed   = "model_fit_failed"
	CodeStoreUnavailable = "store_unavailable"
	CodeInternal         = "internal"
)

// Request types

type CreateSequenceRequest struct {
	SequenceName string `json:"sequence_name"`
	GroupKey     string `json:"group_key"`
	Repeats      int    `json:"repeats"`
	SetSize      int    `json:"set_size"`
	Seed         uint64 `json:"seed,omitempty"` // 0 draws a random seed
}

type SubmitTrialRequest struct {
	ParticipantName  string               `json:"participant_name"`
	BestStimulus     scaling.StimulusID   `json:"best_stimulus"`
	WorstStimulus    scaling.StimulusID   `json:"worst_stimulus"`
	ResourcesInTrial []scaling.StimulusID `json:"resources_in_trial"`
}

type FinalizeRequest struct {
	ParticipantName string `json:"participant_name"`
}

// Response types

type CreateSequenceResponse struct {
	Sequence SequenceInfo           `json:"sequence"`
	Trials   [][]scaling.StimulusID `json:"trials"`
	Leftover []scaling.StimulusID   `json:"leftover"`
	Seed     uint64                 `json:"seed"`
}

type TrialsResponse struct {
	SequenceID int64                         `json:"sequence_id"`
	Trials     [][]scaling.StimulusID        `json:"trials"`
	AudioMap   map[scaling.StimulusID]string `json:"audio_map"`
}

type SubmitTrialResponse struct {
	Message   string           `json:"message"`
	Duplicate bool             `json:"duplicate"`
	Values    []ScoredResource `json:"values"`
}

type ValuesResponse struct {
	ParticipantName string           `json:"participant_name"`
	SequenceID      int64            `json:"sequence_id"`
	Values          []ScoredResource `json:"values"`
}

type FinalizeResponse struct {
	SortedStimuli []ScoredResource `json:"sorted_stimuli"`
	Summary       string           `json:"summary"`
	Message       string           `json:"message"`
}

// ScoredResource is one row of a ranking, best first
type ScoredResource struct {
	ResourceID scaling.StimulusID `json:"resource_id"`
	Score      float64            `json:"score"`
	StdError   float64            `json:"std_error,omitempty"`
	Rank       int                `json:"rank"` // 1-indexed ranking
	Filename   string             `json:"filename,omitempty"`
}

// Domain types

type Resource struct {
	ID          scaling.StimulusID `json:"id"`
	FolderPath  string             `json:"folder_path"`
	Filename    string             `json:"filename"`
	URI         string             `json:"uri"`
	Description string             `json:"description,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}

type Participant struct {
	ID        string    `json:"id"`
	Name      string    `json:"participant_name"`
	CreatedAt time.Time `json:"created_at"`
}

type SequenceInfo struct {
	SequenceID   int64     `json:"sequence_id"`
	SequenceName string    `json:"sequence_name"`
	CreatedAt    time.Time `json:"created_at"`
	GroupKey     string    `json:"group_key"`
	SetSize      int       `json:"set_size"`
	NTrials      int       `json:"n_trials"`
}

type FinalScore struct {
	ParticipantID string             `json:"participant_id"`
	SequenceID    int64              `json:"sequence_id"`
	ResourceID    scaling.StimulusID `json:"resource_id"`
	FinalScore    float64            `json:"final_score"`
	RankPosition  int                `json:"rank_position"`
	ComputedAt    time.Time          `json:"computed_at"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}
