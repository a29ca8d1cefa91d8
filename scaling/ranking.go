// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package scaling

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Solver defaults.
const (
	DefaultRidge         = 0.01
	DefaultMaxIterations = 100
	DefaultTolerance     = 1e-8
)

// Aggregator fits a Bradley-Terry-Luce model to best/worst outcomes.
//
// Every TrialResult contributes one observation "best beats worst" with
// feature +1 on best and -1 on worst. Only stimuli picked as best or worst
// at least once are ranked. The stimulus with the largest id is
// the reference and its coefficient is fixed at 0. Coefficients maximise
//
//	sum log σ(β_best - β_worst) - Ridge/2 * |β|²
//
// by Newton-Raphson with backtracking. With Ridge = 0 this is the plain
// maximum likelihood estimate, which does not exist when the outcomes are
// separable and is reported as ErrModelFitFailed.
type Aggregator struct {
	Ridge         float64
	MaxIterations int
	Tolerance     float64
}

// NewAggregator returns an Aggregator with default solver settings.
func NewAggregator(ridge float64) *Aggregator {
	return &Aggregator{
		Ridge:         ridge,
		MaxIterations: DefaultMaxIterations,
		Tolerance:     DefaultTolerance,
	}
}

// observation holds the column of best and worst, -1 for the reference.
type observation struct {
	best, worst int
}

// Fit computes the FinalRanking for one participant's results. ctx bounds
// the solver; cancellation is reported as ErrModelFitFailed.
func (a *Aggregator) Fit(ctx context.Context, results []TrialResult) (FinalRanking, error) {
	if a.Ridge < 0 || math.IsNaN(a.Ridge) {
		return FinalRanking{}, fmt.Errorf("%w: ridge must be >= 0, got %v", ErrValidation, a.Ridge)
	}
	if len(results) == 0 {
		return FinalRanking{}, fmt.Errorf("%w: no trial results", ErrInsufficientData)
	}

	seen := make(map[StimulusID]bool)
	var ids []StimulusID
	for _, r := range results {
		if r.Best == r.Worst {
			return FinalRanking{}, fmt.Errorf("%w: trial %d has best == worst", ErrValidation, r.TrialIndex)
		}
		for _, id := range [2]StimulusID{r.Best, r.Worst} {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	if len(ids) < 2 {
		return FinalRanking{}, fmt.Errorf("%w: need at least 2 compared stimuli, got %d", ErrInsufficientData, len(ids))
	}

	sortIDs(ids)
	reference := ids[len(ids)-1]
	column := make(map[StimulusID]int, len(ids))
	for i, id := range ids[:len(ids)-1] {
		column[id] = i
	}
	col := func(id StimulusID) int {
		if id == reference {
			return -1
		}
		return column[id]
	}
	obs := make([]observation, len(results))
	for i, r := range results {
		obs[i] = observation{best: col(r.Best), worst: col(r.Worst)}
	}

	beta, cov, ll, iterations, err := a.solve(ctx, obs, len(ids)-1)
	if err != nil {
		return FinalRanking{}, err
	}

	ranked := make([]RankedStimulus, len(ids))
	for i, id := range ids {
		rs := RankedStimulus{ID: id}
		if j := col(id); j >= 0 {
			rs.Score = beta[j]
			rs.StdError = math.Sqrt(cov.At(j, j))
		}
		ranked[i] = rs
	}
	rankInPlace(ranked)

	return FinalRanking{
		Stimuli:       ranked,
		Reference:     reference,
		LogLikelihood: ll,
		Iterations:    iterations,
		Observations:  len(obs),
	}, nil
}

// solve runs Newton-Raphson over k free coefficients and returns them with
// their covariance (inverse negative Hessian) at the optimum.
func (a *Aggregator) solve(ctx context.Context, obs []observation, k int) ([]float64, *mat.SymDense, float64, int, error) {
	maxIter := a.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	tol := a.Tolerance
	if tol <= 0 {
		tol = DefaultTolerance
	}

	beta := make([]float64, k)
	trial := make([]float64, k)
	ll := a.logLikelihood(obs, beta)

	for iter := 1; iter <= maxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, 0, iter, fmt.Errorf("%w: solver stopped: %w", ErrModelFitFailed, err)
		}

		grad, info := a.derivatives(obs, beta)
		var chol mat.Cholesky
		if ok := chol.Factorize(info); !ok {
			return nil, nil, 0, iter, fmt.Errorf("%w: information matrix is singular at iteration %d", ErrModelFitFailed, iter)
		}
		var delta mat.VecDense
		if err := chol.SolveVecTo(&delta, mat.NewVecDense(k, grad)); err != nil {
			return nil, nil, 0, iter, fmt.Errorf("%w: newton step: %w", ErrModelFitFailed, err)
		}

		// Halve the step until the objective does not decrease
		step := 1.0
		var next float64
		for {
			for j := range beta {
				trial[j] = beta[j] + step*delta.AtVec(j)
			}
			next = a.logLikelihood(obs, trial)
			if next >= ll || step < 1e-10 {
				break
			}
			step /= 2
		}

		maxMove := 0.0
		for j := range beta {
			move := step * delta.AtVec(j)
			maxMove = math.Max(maxMove, math.Abs(move))
			beta[j] = trial[j]
		}
		ll = next

		if math.IsNaN(ll) || math.IsInf(ll, 0) {
			return nil, nil, 0, iter, fmt.Errorf("%w: objective is not finite at iteration %d", ErrModelFitFailed, iter)
		}
		if maxMove < tol {
			cov, err := a.covariance(obs, beta)
			if err != nil {
				return nil, nil, 0, iter, err
			}
			return beta, cov, ll, iter, nil
		}
	}

	return nil, nil, 0, maxIter, fmt.Errorf("%w: no convergence after %d iterations (outcomes may be perfectly separated)", ErrModelFitFailed, maxIter)
}

func (a *Aggregator) covariance(obs []observation, beta []float64) (*mat.SymDense, error) {
	_, info := a.derivatives(obs, beta)
	var chol mat.Cholesky
	if ok := chol.Factorize(info); !ok {
		return nil, fmt.Errorf("%w: information matrix is singular at optimum", ErrModelFitFailed)
	}
	var cov mat.SymDense
	if err := chol.InverseTo(&cov); err != nil {
		return nil, fmt.Errorf("%w: covariance: %w", ErrModelFitFailed, err)
	}
	return &cov, nil
}

// logLikelihood returns the penalised objective at beta.
func (a *Aggregator) logLikelihood(obs []observation, beta []float64) float64 {
	ll := 0.0
	for _, o := range obs {
		ll += logSigmoid(eta(o, beta))
	}
	for _, b := range beta {
		ll -= a.Ridge / 2 * b * b
	}
	return ll
}

// derivatives returns the gradient of the objective and the information
// matrix (negative Hessian) at beta.
func (a *Aggregator) derivatives(obs []observation, beta []float64) ([]float64, *mat.SymDense) {
	k := len(beta)
	grad := make([]float64, k)
	info := mat.NewSymDense(k, nil)

	for _, o := range obs {
		e := eta(o, beta)
		resid := sigmoid(-e) // 1 - σ(e)
		w := sigmoid(e) * resid

		if o.best >= 0 {
			grad[o.best] += resid
			info.SetSym(o.best, o.best, info.At(o.best, o.best)+w)
		}
		if o.worst >= 0 {
			grad[o.worst] -= resid
			info.SetSym(o.worst, o.worst, info.At(o.worst, o.worst)+w)
		}
		if o.best >= 0 && o.worst >= 0 {
			info.SetSym(o.best, o.worst, info.At(o.best, o.worst)-w)
		}
	}

	for j := 0; j < k; j++ {
		grad[j] -= a.Ridge * beta[j]
		info.SetSym(j, j, info.At(j, j)+a.Ridge)
	}
	return grad, info
}

func eta(o observation, beta []float64) float64 {
	e := 0.0
	if o.best >= 0 {
		e += beta[o.best]
	}
	if o.worst >= 0 {
		e -= beta[o.worst]
	}
	return e
}

func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	z := math.Exp(x)
	return z / (1 + z)
}

func logSigmoid(x float64) float64 {
	if x >= 0 {
		return -math.Log1p(math.Exp(-x))
	}
	return x - math.Log1p(math.Exp(x))
}
