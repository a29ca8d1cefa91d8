// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package scaling implements the algorithms behind a best-worst scaling
experiment.

# Trial Design

Generate packs a stimulus pool into trials of distinct stimuli, each
stimulus used at most `repeats` times:

	rng := rand.New(rand.NewPCG(seed, seed))
	design, err := scaling.Generate(ids, 3, 5, rng)

The random source is always injected; the same seed yields the same design.

# Online Values

Update moves the best and worst stimulus of a trial after every response:

	state := scaling.NewValueState(design.Stimuli())
	err := scaling.Update(state, design.Trials[0], best, worst, scaling.DefaultAlpha)

Invalid picks are rejected before anything is written.

# Final Ranking

Aggregator fits a Bradley-Terry-Luce model over the recorded outcomes:

	ranking, err := scaling.NewAggregator(scaling.DefaultRidge).Fit(ctx, results)

Stimuli are ranked by coefficient descending, ties by id ascending.

# Errors

All failures wrap one of ErrValidation, ErrNotFound, ErrInsufficientData,
ErrModelFitFailed or ErrStoreUnavailable.
*/
package scaling
