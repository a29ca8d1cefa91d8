// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package scaling

import "fmt"

// Pairwise targets of the online update: best should sit one point above
// each peer, worst one point below.
const (
	bestTarget  = 1.0
	worstTarget = -1.0
)

// DefaultAlpha is the learning rate used when none is configured.
const DefaultAlpha = 0.1

// ValidateChoice checks a best/worst pick against its trial set.
func ValidateChoice(set TrialSet, best, worst StimulusID) error {
	if len(set) == 0 {
		return fmt.Errorf("%w: trial set is empty", ErrValidation)
	}
	seen := make(map[StimulusID]bool, len(set))
	for _, id := range set {
		if seen[id] {
			return fmt.Errorf("%w: duplicate stimulus %d in trial set", ErrValidation, id)
		}
		seen[id] = true
	}
	if best == worst {
		return fmt.Errorf("%w: best and worst cannot be the same stimulus (%d)", ErrValidation, best)
	}
	if !set.Contains(best) {
		return fmt.Errorf("%w: best stimulus %d is not in the trial set", ErrValidation, best)
	}
	if !set.Contains(worst) {
		return fmt.Errorf("%w: worst stimulus %d is not in the trial set", ErrValidation, worst)
	}
	return nil
}

// Update applies one trial outcome to state in place.
//
// For every peer o of best: V[best] += alpha * (1 - (V[best] - V[o])).
// For every peer o of worst: V[worst] += alpha * (-1 - (V[worst] - V[o])).
// All errors are computed from the values held at the start of the trial;
// stimuli that are neither best nor worst do not move.
//
// Nothing is written unless validation passes. Stimuli of the set missing
// from state are treated as 0.
func Update(state ValueState, set TrialSet, best, worst StimulusID, alpha float64) error {
	if state == nil {
		return fmt.Errorf("%w: value state is nil", ErrValidation)
	}
	if !(alpha > 0 && alpha < 1) {
		return fmt.Errorf("%w: alpha must be in (0, 1), got %v", ErrValidation, alpha)
	}
	if err := ValidateChoice(set, best, worst); err != nil {
		return err
	}

	vBest, vWorst := state[best], state[worst]
	var dBest, dWorst float64
	for _, o := range set {
		if o != best {
			dBest += alpha * (bestTarget - (vBest - state[o]))
		}
		if o != worst {
			dWorst += alpha * (worstTarget - (vWorst - state[o]))
		}
	}

	state[best] = vBest + dBest
	state[worst] = vWorst + dWorst
	return nil
}
