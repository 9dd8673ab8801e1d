// Package adaptive holds the scoring and learning primitives shared by the
// band selector and the strategy router: a normalized weight vector, the
// outcome learning rule, and an incumbent-preferring argmax.
package adaptive

import (
	"fmt"
	"math"
)

// #region weight-vector

// WeightVector is a normalized set of non-negative weights over an ordered set
// of candidates. Every mutating method leaves the weights summing to 1.
// It is not safe for concurrent use; owners serialize access.
type WeightVector[C comparable] struct {
	order   []C
	weights map[C]float64
}

// NewWeightVector creates a vector over order using priors. Missing or
// non-positive priors count as zero; if every prior is zero the vector is uniform.
func NewWeightVector[C comparable](order []C, priors map[C]float64) (*WeightVector[C], error) {
	if len(order) == 0 {
		return nil, fmt.Errorf("weight vector: no candidates")
	}
	w := &WeightVector[C]{
		order:   append([]C(nil), order...),
		weights: make(map[C]float64, len(order)),
	}
	for _, c := range order {
		if _, dup := w.weights[c]; dup {
			return nil, fmt.Errorf("weight vector: duplicate candidate %v", c)
		}
		p := priors[c]
		if p < 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			p = 0
		}
		w.weights[c] = p
	}
	w.Normalize()
	return w, nil
}

// Candidates returns the candidates in registration order.
func (w *WeightVector[C]) Candidates() []C {
	return append([]C(nil), w.order...)
}

// Has reports whether c is a candidate.
func (w *WeightVector[C]) Has(c C) bool {
	_, ok := w.weights[c]
	return ok
}

// Get returns the weight of c, or 0 if c is unknown.
func (w *WeightVector[C]) Get(c C) float64 {
	return w.weights[c]
}

// Sum returns the total weight.
func (w *WeightVector[C]) Sum() float64 {
	var s float64
	for _, c := range w.order {
		s += w.weights[c]
	}
	return s
}

// Reward adds amount to c and renormalizes.
func (w *WeightVector[C]) Reward(c C, amount float64) {
	if !w.Has(c) || amount <= 0 || math.IsNaN(amount) {
		return
	}
	w.weights[c] += amount
	w.Normalize()
}

// Penalize multiplies c's weight by factor in [0,1] and renormalizes.
func (w *WeightVector[C]) Penalize(c C, factor float64) {
	if !w.Has(c) {
		return
	}
	if factor < 0 || math.IsNaN(factor) {
		factor = 0
	}
	if factor > 1 {
		factor = 1
	}
	w.weights[c] *= factor
	w.Normalize()
}

// Normalize rescales the weights to sum to 1. A zero vector becomes uniform.
func (w *WeightVector[C]) Normalize() {
	sum := w.Sum()
	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		u := 1 / float64(len(w.order))
		for _, c := range w.order {
			w.weights[c] = u
		}
		return
	}
	for _, c := range w.order {
		w.weights[c] /= sum
	}
}

// Snapshot returns a copy of the weights.
func (w *WeightVector[C]) Snapshot() map[C]float64 {
	out := make(map[C]float64, len(w.order))
	for _, c := range w.order {
		out[c] = w.weights[c]
	}
	return out
}

// Restore replaces weights for known candidates and renormalizes.
// Unknown keys are ignored.
func (w *WeightVector[C]) Restore(weights map[C]float64) {
	for _, c := range w.order {
		if v, ok := weights[c]; ok && v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0) {
			w.weights[c] = v
		}
	}
	w.Normalize()
}

// #endregion weight-vector

// #region apply-outcome

// ApplyOutcome applies the learning rule to w. On success the candidate gains
// LearningRate/(cost+1); on failure its weight is scaled by (1-LearningRate).
// The vector is renormalized in both cases.
func ApplyOutcome[C comparable](w *WeightVector[C], o Outcome[C], cfg UpdateConfig) UpdateResult[C] {
	res := UpdateResult[C]{Candidate: o.Candidate, Action: "no_op", Before: w.Get(o.Candidate)}
	if !w.Has(o.Candidate) {
		res.After = res.Before
		return res
	}

	cost := o.CostMs
	if cost < 0 || math.IsNaN(cost) {
		cost = 0
	}

	if o.Success {
		w.Reward(o.Candidate, cfg.LearningRate/(cost+1))
		res.Action = "reward"
	} else {
		w.Penalize(o.Candidate, 1-cfg.LearningRate)
		res.Action = "penalize"
	}

	if cfg.MinWeight > 0 {
		for _, c := range w.order {
			if w.weights[c] < cfg.MinWeight {
				w.weights[c] = cfg.MinWeight
			}
		}
		w.Normalize()
	}

	res.After = w.Get(o.Candidate)
	return res
}

// #endregion apply-outcome
