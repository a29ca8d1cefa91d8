// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package scaling

import (
	"fmt"
	"math/rand/v2"
)

// Generate builds a TrialDesign in which every id appears in at most
// repeats trials of setSize distinct ids.
//
// Trials are packed greedily: each round samples setSize ids uniformly,
// without replacement, from those that still have repeats left. Packing
// stops once fewer than setSize ids remain available, and the remaining
// repeats are returned as Leftover, one entry per unused repeat. A
// different sampling order can sometimes pack more; the greedy result is
// kept as is and leftover units are dropped.
//
// The output depends only on ids, the parameters and the state of rng.
func Generate(ids []StimulusID, repeats, setSize int, rng *rand.Rand) (TrialDesign, error) {
	if repeats < 1 {
		return TrialDesign{}, fmt.Errorf("%w: repeats must be >= 1, got %d", ErrValidation, repeats)
	}
	if setSize < 2 {
		return TrialDesign{}, fmt.Errorf("%w: set_size must be >= 2, got %d", ErrValidation, setSize)
	}
	if rng == nil {
		return TrialDesign{}, fmt.Errorf("%w: random source is required", ErrValidation)
	}

	remaining := make(map[StimulusID]int, len(ids))
	for _, id := range ids {
		if _, dup := remaining[id]; dup {
			return TrialDesign{}, fmt.Errorf("%w: duplicate stimulus id %d", ErrValidation, id)
		}
		remaining[id] = repeats
	}

	var design TrialDesign
	available := make([]StimulusID, 0, len(ids))
	for {
		// Available ids keep input order so a seed reproduces the design
		available = available[:0]
		for _, id := range ids {
			if remaining[id] > 0 {
				available = append(available, id)
			}
		}
		if len(available) < setSize {
			break
		}

		// Partial Fisher-Yates: the first setSize slots become the sample,
		// already in random order
		for i := 0; i < setSize; i++ {
			j := i + rng.IntN(len(available)-i)
			available[i], available[j] = available[j], available[i]
		}

		set := make(TrialSet, setSize)
		copy(set, available[:setSize])
		for _, id := range set {
			remaining[id]--
		}
		design.Trials = append(design.Trials, set)
	}

	for _, id := range ids {
		for n := remaining[id]; n > 0; n-- {
			design.Leftover = append(design.Leftover, id)
		}
	}

	return design, nil
}
