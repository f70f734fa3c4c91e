package convergence

import (
	"math"
	"testing"

	"github.com/catengine/cat/internal/domain"
)

func TestEffectiveTarget_Q3RegularMatchesTable(t *testing.T) {
	got := EffectiveTarget(0, domain.QuizRegular, DefaultQuintileTable())
	if math.Abs(got.SEMTarget-0.35) > 1e-9 {
		t.Errorf("SEMTarget = %v, want 0.35", got.SEMTarget)
	}
	if math.Abs(got.RangeWidth-0.4) > 1e-9 {
		t.Errorf("RangeWidth = %v, want 0.4", got.RangeWidth)
	}
}

func TestEffectiveTarget_BaselineTightens(t *testing.T) {
	regular := EffectiveTarget(0, domain.QuizRegular, DefaultQuintileTable())
	baseline := EffectiveTarget(0, domain.QuizBaseline, DefaultQuintileTable())
	if math.Abs(regular.SEMTarget-baseline.SEMTarget-0.05) > 1e-9 {
		t.Errorf("baseline should be 0.05 tighter: regular=%v baseline=%v", regular.SEMTarget, baseline.SEMTarget)
	}
}

func TestEffectiveTarget_PracticeLoosens(t *testing.T) {
	regular := EffectiveTarget(0, domain.QuizRegular, DefaultQuintileTable())
	practice := EffectiveTarget(0, domain.QuizPracticeNew, DefaultQuintileTable())
	if math.Abs(practice.SEMTarget-regular.SEMTarget-0.05) > 1e-9 {
		t.Errorf("practice should be 0.05 looser: regular=%v practice=%v", regular.SEMTarget, practice.SEMTarget)
	}
}

func TestEffectiveTarget_NeverBelowFloor(t *testing.T) {
	// No default quintile reaches the 0.20 floor (Q3 baseline = 0.35 - 0.05
	// = 0.30); this checks that an extreme quintile stays at or above it.
	got := EffectiveTarget(-2.0, domain.QuizBaseline, DefaultQuintileTable()) // Q1 base 0.50 - 0.05 = 0.45, still above floor
	if got.SEMTarget < thresholdFloor {
		t.Errorf("SEMTarget = %v, fell below floor %v", got.SEMTarget, thresholdFloor)
	}
}

func TestEffectiveTarget_HonorsOperatorSEMOverride(t *testing.T) {
	table := DefaultQuintileTable().WithSEMTargets(0.99, 0.99, 0.99, 0.99, 0.99)
	got := EffectiveTarget(0, domain.QuizRegular, table) // Q3
	if math.Abs(got.SEMTarget-0.99) > 1e-9 {
		t.Errorf("SEMTarget = %v, want the overridden 0.99", got.SEMTarget)
	}
	if math.Abs(got.RangeWidth-0.4) > 1e-9 {
		t.Errorf("RangeWidth = %v, want the untouched Q3 width 0.4", got.RangeWidth)
	}
}

func TestRunRescueCascade_Widen1Succeeds(t *testing.T) {
	target := QuintileTarget{SEMTarget: 0.35, RangeWidth: 0.4}
	count := func(center, halfWidth float64) int {
		if halfWidth >= 0.6 { // 0.4*1.5
			return 10
		}
		return 1
	}
	total := func() int { return 10 }
	out := RunRescueCascade(0, 0.4, target, 5, count, total)
	if out.Step != RescueWiden1 || !out.Continue {
		t.Errorf("got %+v, want RescueWiden1/continue", out)
	}
}

func TestRunRescueCascade_Widen2Succeeds(t *testing.T) {
	target := QuintileTarget{SEMTarget: 0.35, RangeWidth: 0.4}
	count := func(center, halfWidth float64) int {
		if halfWidth >= 0.8 { // 0.4*2.0
			return 10
		}
		return 1
	}
	total := func() int { return 10 }
	out := RunRescueCascade(0, 0.4, target, 5, count, total)
	if out.Step != RescueWiden2 || !out.Continue {
		t.Errorf("got %+v, want RescueWiden2/continue", out)
	}
}

func TestRunRescueCascade_RelaxThresholdSucceedsOnTotalPoolCount(t *testing.T) {
	// Band counts stay starved at both widen steps, but the cell's total
	// unused pool (ignoring band) clears the threshold.
	target := QuintileTarget{SEMTarget: 0.35, RangeWidth: 0.4}
	count := func(center, halfWidth float64) int { return 1 }
	total := func() int { return 5 }
	out := RunRescueCascade(0, 0.4, target, 5, count, total)
	if out.Step != RescueRelaxThreshold || !out.Continue {
		t.Errorf("got %+v, want RescueRelaxThreshold/continue", out)
	}
	if math.Abs(out.RelaxedTarget-0.45) > 1e-9 {
		t.Errorf("RelaxedTarget = %v, want 0.45", out.RelaxedTarget)
	}
}

func TestRunRescueCascade_ExhaustedWhenNothingWorks(t *testing.T) {
	target := QuintileTarget{SEMTarget: 0.35, RangeWidth: 0.4}
	count := func(center, halfWidth float64) int { return 0 }
	total := func() int { return 0 }
	out := RunRescueCascade(0, 0.4, target, 5, count, total)
	if out.Step != RescueExhausted || out.Continue {
		t.Errorf("got %+v, want RescueExhausted/stop", out)
	}
}

func TestIsEnabledForLearner_Deterministic(t *testing.T) {
	a := IsEnabledForLearner("learner-42", 50)
	b := IsEnabledForLearner("learner-42", 50)
	if a != b {
		t.Error("bucketing must be deterministic for the same learner id")
	}
}

func TestIsEnabledForLearner_ZeroAllocationDisablesEveryone(t *testing.T) {
	for _, id := range []string{"a", "b", "learner-123", ""} {
		if IsEnabledForLearner(id, 0) {
			t.Errorf("learner %q enabled with 0%% traffic allocation", id)
		}
	}
}

func TestIsEnabledForLearner_FullAllocationEnablesEveryone(t *testing.T) {
	for _, id := range []string{"a", "b", "learner-123", ""} {
		if !IsEnabledForLearner(id, 100) {
			t.Errorf("learner %q disabled with 100%% traffic allocation", id)
		}
	}
}
