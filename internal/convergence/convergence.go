// Package convergence implements distribution-aware SEM targets and the
// rescue cascade that widens an item pool's search band when the
// standard difficulty window runs dry (§4.10). It also deterministically
// decides, per learner, whether the feature is active at all via a hash
// bucket against a traffic-allocation percentage.
package convergence

import (
	"github.com/catengine/cat/internal/domain"
)

// QuintileTarget is the base SEM target and difficulty range half-width
// for one ability quintile, before baseline-tighten / practice-loosen
// adjustment.
type QuintileTarget struct {
	SEMTarget   float64
	RangeWidth float64
}

// QuintileTable maps each ability quintile to its base SEM target and
// difficulty range half-width, before baseline-tighten / practice-loosen
// adjustment.
type QuintileTable map[domain.Quintile]QuintileTarget

// DefaultQuintileTable is the §4.10 table, formative-mode baseline. Callers
// needing an operator-overridden SEM target per quintile should start from
// this and pass the result through WithSEMTargets rather than building a
// table from scratch, so range widths stay grounded in §4.10.
func DefaultQuintileTable() QuintileTable {
	return QuintileTable{
		domain.Q1: {SEMTarget: 0.50, RangeWidth: 0.6},
		domain.Q2: {SEMTarget: 0.35, RangeWidth: 0.5},
		domain.Q3: {SEMTarget: 0.35, RangeWidth: 0.4},
		domain.Q4: {SEMTarget: 0.35, RangeWidth: 0.5},
		domain.Q5: {SEMTarget: 0.50, RangeWidth: 0.6},
	}
}

// WithSEMTargets returns a copy of table with each quintile's SEMTarget
// replaced (range widths untouched), for operators who override the §6
// CAT_CONVERGENCE_SEM_Q1..Q5 settings without changing the underlying
// difficulty-band geometry.
func (table QuintileTable) WithSEMTargets(q1, q2, q3, q4, q5 float64) QuintileTable {
	out := make(QuintileTable, len(table))
	for q, t := range table {
		out[q] = t
	}
	overrides := map[domain.Quintile]float64{domain.Q1: q1, domain.Q2: q2, domain.Q3: q3, domain.Q4: q4, domain.Q5: q5}
	for q, sem := range overrides {
		t := out[q]
		t.SEMTarget = sem
		out[q] = t
	}
	return out
}

const (
	baselineTighten = 0.05
	practiceLoosen  = 0.05
	thresholdFloor  = 0.20
)

// EffectiveTarget returns the adaptive SEM target and range half-width for a
// learner at ability theta, adjusted for quiz type, against the given
// per-quintile table. Callers with no operator override pass
// DefaultQuintileTable().
func EffectiveTarget(theta float64, quizType domain.QuizType, table QuintileTable) QuintileTarget {
	base := table[domain.QuintileOf(theta)]
	sem := base.SEMTarget
	switch {
	case quizType == domain.QuizBaseline:
		sem -= baselineTighten
	case quizType.IsPractice():
		sem += practiceLoosen
	}
	if sem < thresholdFloor {
		sem = thresholdFloor
	}
	return QuintileTarget{SEMTarget: sem, RangeWidth: base.RangeWidth}
}

// RescueStep identifies which step of the Rescue Cascade produced a
// result, for logging and the observability layer.
type RescueStep int

const (
	RescueWiden1 RescueStep = iota + 1
	RescueWiden2
	RescueRelaxThreshold
	RescueExhausted
)

// RescueOutcome is the result of running the cascade for one cell.
type RescueOutcome struct {
	Step          RescueStep
	Continue      bool
	WidenedRange  float64
	RelaxedTarget float64 // only meaningful when Step == RescueRelaxThreshold
}

// CountUnusedInBand counts unused items whose difficulty falls within
// [center-halfWidth, center+halfWidth]. Supplied by the caller so this
// package stays store-agnostic.
type CountUnusedInBand func(center, halfWidth float64) int

// CountUnusedTotal counts every unused item in the cell, ignoring
// difficulty band entirely. Supplied by the caller so this package stays
// store-agnostic.
type CountUnusedTotal func() int

// RunRescueCascade widens the search band (1.5x, then 2x) and, failing
// that, relaxes the cell's SEM threshold by 0.10 and checks the cell's
// entire unused pool — not just the band — before giving up and marking
// the cell exhausted (§4.10).
func RunRescueCascade(center, baseHalfWidth float64, target QuintileTarget, minThreshold int, countInBand CountUnusedInBand, countTotal CountUnusedTotal) RescueOutcome {
	widen1 := baseHalfWidth * 1.5
	if countInBand(center, widen1) >= minThreshold {
		return RescueOutcome{Step: RescueWiden1, Continue: true, WidenedRange: widen1}
	}

	widen2 := baseHalfWidth * 2.0
	if countInBand(center, widen2) >= minThreshold {
		return RescueOutcome{Step: RescueWiden2, Continue: true, WidenedRange: widen2}
	}

	relaxedTarget := target.SEMTarget + 0.10
	if countTotal() >= minThreshold {
		return RescueOutcome{Step: RescueRelaxThreshold, Continue: true, WidenedRange: widen2, RelaxedTarget: relaxedTarget}
	}

	return RescueOutcome{Step: RescueExhausted, Continue: false, WidenedRange: widen2, RelaxedTarget: relaxedTarget}
}

// djb2 computes Bernstein's hash, the classic djb2 variant (seed 5381,
// hash*33 + c), over the raw bytes of s.
func djb2(s string) uint32 {
	var h uint32 = 5381
	for i := 0; i < len(s); i++ {
		h = h*33 + uint32(s[i])
	}
	return h
}

// IsEnabledForLearner deterministically buckets learnerID into [0, 100)
// via djb2(learnerID) % 100 and compares against trafficAllocation (a
// percentage in [0, 100]). The same learner always lands in the same
// bucket, on any machine, so enabling convergence never flips mid-study
// for an individual learner unless trafficAllocation itself changes.
func IsEnabledForLearner(learnerID string, trafficAllocation int) bool {
	bucket := djb2(learnerID) % 100
	return int(bucket) < trafficAllocation
}
