package adaptive

import (
	"cmp"
	"slices"
)

// #region argmax

// Argmax returns the highest-scoring candidate. The incumbent is scored first
// and a challenger must score strictly higher to replace it.
func Argmax[C comparable](incumbent C, challengers []C, score func(C) float64) (C, float64) {
	best := incumbent
	bestScore := score(incumbent)
	for _, c := range challengers {
		if c == incumbent {
			continue
		}
		if s := score(c); s > bestScore {
			best, bestScore = c, s
		}
	}
	return best, bestScore
}

// #endregion argmax

// #region ranked

// Scored pairs a candidate with its score.
type Scored[C comparable] struct {
	Candidate C
	Score     float64
}

// Rank scores candidates and returns them sorted by score, highest first.
// Equal scores keep input order.
func Rank[C comparable](candidates []C, score func(C) float64) []Scored[C] {
	out := make([]Scored[C], 0, len(candidates))
	for _, c := range candidates {
		out = append(out, Scored[C]{Candidate: c, Score: score(c)})
	}
	slices.SortStableFunc(out, func(a, b Scored[C]) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return out
}

// #endregion ranked
