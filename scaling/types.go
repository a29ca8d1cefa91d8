// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package scaling

import (
	"sort"
	"time"
)

// StimulusID is the integer key of a resource in the catalog.
type StimulusID int64

// TrialSet is one group of distinct stimuli presented together.
type TrialSet []StimulusID

// Contains reports whether id is a member of the set.
func (s TrialSet) Contains(id StimulusID) bool {
	for _, v := range s {
		if v == id {
			return true
		}
	}
	return false
}

// SameMembers reports whether both sets hold the same ids, ignoring order.
func (s TrialSet) SameMembers(other []StimulusID) bool {
	if len(s) != len(other) {
		return false
	}
	seen := make(map[StimulusID]int, len(s))
	for _, id := range s {
		seen[id]++
	}
	for _, id := range other {
		if seen[id] == 0 {
			return false
		}
		seen[id]--
	}
	return true
}

// TrialDesign is the ordered list of trials for a sequence. The index of a
// TrialSet in Trials is its trial number.
type TrialDesign struct {
	Trials   []TrialSet
	Leftover []StimulusID
}

// Stimuli returns the distinct ids used by the design in ascending order.
func (d TrialDesign) Stimuli() []StimulusID {
	seen := make(map[StimulusID]bool)
	var ids []StimulusID
	for _, set := range d.Trials {
		for _, id := range set {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	sortIDs(ids)
	return ids
}

// ValueState holds the running online score of each stimulus for one
// (participant, sequence) pair.
type ValueState map[StimulusID]float64

// NewValueState returns a state with every id at 0.
func NewValueState(ids []StimulusID) ValueState {
	v := make(ValueState, len(ids))
	for _, id := range ids {
		v[id] = 0.0
	}
	return v
}

// Clone returns a copy safe to hand out while the original keeps mutating.
func (v ValueState) Clone() ValueState {
	out := make(ValueState, len(v))
	for id, score := range v {
		out[id] = score
	}
	return out
}

// Ranked orders the state by score descending, id ascending. StdError is
// always zero for online values.
func (v ValueState) Ranked() []RankedStimulus {
	out := make([]RankedStimulus, 0, len(v))
	for id, score := range v {
		out = append(out, RankedStimulus{ID: id, Score: score})
	}
	rankInPlace(out)
	return out
}

// TrialResult is one recorded best/worst choice. The natural key is
// (ParticipantID, SequenceID, TrialIndex).
type TrialResult struct {
	ParticipantID string
	SequenceID    int64
	TrialIndex    int
	Best          StimulusID
	Worst         StimulusID
	SubmittedAt   time.Time
}

// RankedStimulus is one entry of a ranking. StdError is 0 for the
// reference stimulus and for online values.
type RankedStimulus struct {
	ID       StimulusID
	Score    float64
	StdError float64
	Rank     int // 1-indexed
}

// FinalRanking is the batch fit over a participant's results. It is
// derived data and can be recomputed from the TrialResults at any time.
type FinalRanking struct {
	Stimuli       []RankedStimulus
	Reference     StimulusID
	LogLikelihood float64
	Iterations    int
	Observations  int
}

func rankInPlace(items []RankedStimulus) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].ID < items[j].ID
	})
	for i := range items {
		items[i].Rank = i + 1
	}
}

func sortIDs(ids []StimulusID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
