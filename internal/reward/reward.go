// Package reward computes the multi-objective LinUCB training signal
// (§4.5): correctness, information gain, and speed, blended by
// configurable weights that must sum to 1.
package reward

import (
	"math"

	"github.com/catengine/cat/internal/domain"
)

// Weights controls the reward blend. Binary mode (IsBinary) collapses the
// reward to just correctness, ignoring the other two weights.
type Weights struct {
	Correctness float64
	InfoGain    float64
	Speed       float64
	IsBinary    bool
}

// DefaultWeights returns the §4.5 defaults: 0.7 correctness, 0.2
// information gain, 0.1 speed.
func DefaultWeights() Weights {
	return Weights{Correctness: 0.7, InfoGain: 0.2, Speed: 0.1}
}

// Validate rejects weights that don't sum to 1 within the §6 tolerance of
// 0.01. Binary-mode weights are not validated since only Correctness is used.
func (w Weights) Validate() error {
	if w.IsBinary {
		return nil
	}
	sum := w.Correctness + w.InfoGain + w.Speed
	if math.Abs(sum-1) > 0.01 {
		return domain.ErrRewardWeightsInvalid
	}
	return nil
}

// Inputs are the per-response quantities the reward is computed from.
type Inputs struct {
	IsCorrect      bool
	SEMBefore      float64 // per-cell SEM before this response (§9: per-cell, not session-wide)
	SEMAfter       float64 // per-cell SEM after this response
	ResponseTimeMs int64
}

const speedCapSeconds = 120.0

// Compute returns the blended reward r in [0, 1]. info_gain is
// clip((SEMBefore - SEMAfter) / SEMBefore * 2, 0, 1); speed is
// max(0, 1 - response_time_s / 120). Returns domain.ErrNonFiniteReward if
// the inputs would produce a non-finite result — the reward is never
// silently clamped away from an invalid computation (per §4.5, "invalid
// rewards are rejected, not clamped silently").
func Compute(in Inputs, w Weights) (float64, error) {
	correctness := 0.0
	if in.IsCorrect {
		correctness = 1.0
	}

	if w.IsBinary {
		return correctness, nil
	}

	infoGain := 0.0
	if in.SEMBefore > 0 && !math.IsInf(in.SEMBefore, 0) {
		raw := (in.SEMBefore - in.SEMAfter) / in.SEMBefore * 2
		infoGain = clamp01(raw)
	}

	speed := math.Max(0, 1-float64(in.ResponseTimeMs)/1000/speedCapSeconds)

	r := w.Correctness*correctness + w.InfoGain*infoGain + w.Speed*speed

	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, domain.ErrNonFiniteReward
	}
	if r < -1e-9 || r > 1+1e-9 {
		return 0, domain.ErrNonFiniteReward
	}
	return clamp01(r), nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
