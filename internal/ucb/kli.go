// Package ucb implements the KLI-UCB score used to rank both items and
// cells (§4.2). It is the IRT-driven half of the hybrid scoring policy —
// the UCB1-style half lives in internal/linucb and is blended by
// internal/hybrid.
package ucb

import (
	"math"

	"github.com/catengine/cat/internal/irt"
)

// ForcedExplorationScore is returned for any arm that has never been
// selected, per §4.2's "forced exploration" rule.
const ForcedExplorationScore = 1e9

// Score computes the KLI-UCB score for an item/cell with IRT parameters
// (a, b) under ability theta, with nSelections selections of this arm out of
// totalSelections total across the pool, and exploration constant c.
//
//	score = KL(p, 0.5) + (-|theta - b|) + c * sqrt(ln(N) / n)
//
// nSelections == 0 always returns ForcedExplorationScore. Any non-finite
// intermediate returns -Inf so the caller falls back to another candidate.
func Score(theta float64, params irt.Parameters, nSelections, totalSelections int, c float64) float64 {
	if nSelections == 0 {
		return ForcedExplorationScore
	}
	if totalSelections <= 0 {
		return math.Inf(-1)
	}

	p := irt.Probability(theta, params)
	kl := irt.KLInformation(p)
	proximity := -math.Abs(theta - params.B)
	exploration := c * math.Sqrt(math.Log(float64(totalSelections))/float64(nSelections))

	score := kl + proximity + exploration
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return math.Inf(-1)
	}
	return score
}
