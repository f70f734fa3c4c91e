package irt

import (
	"math"
	"testing"
)

func TestProbability_MatchedItem(t *testing.T) {
	p := Probability(0, Parameters{A: 1, B: 0, C: 0})
	if math.Abs(p-0.5) > 1e-5 {
		t.Errorf("P = %v, want 0.5 +/- 1e-5", p)
	}
}

func TestInformation_MatchedItem(t *testing.T) {
	info := Information(0, Parameters{A: 1, B: 0, C: 0})
	if math.Abs(info-0.25) > 1e-2 {
		t.Errorf("I(theta) = %v, want 0.25 +/- 1e-2", info)
	}
}

func TestKLInformation_MatchedItem(t *testing.T) {
	kl := KLInformation(0.5)
	if kl != 0 {
		t.Errorf("KL(0.5) = %v, want 0", kl)
	}
}

func TestProbability_GuessingFloor(t *testing.T) {
	p := Probability(-10, Parameters{A: 1, B: 0, C: 0.25})
	if math.Abs(p-0.25) > 1e-1 {
		t.Errorf("P = %v, want ~0.25", p)
	}
}

func TestProbability_3PLReducesTo2PL(t *testing.T) {
	for _, theta := range []float64{-3, -1, 0, 1, 3} {
		p2 := Probability(theta, Parameters{A: 1.2, B: 0.3, C: 0})
		p3 := Probability(theta, Parameters{A: 1.2, B: 0.3, C: 0})
		if math.Abs(p2-p3) > 1e-5 {
			t.Errorf("theta=%v: 2PL %v != 3PL-at-c=0 %v", theta, p2, p3)
		}
	}
}

func TestProbability_MonotoneInTheta(t *testing.T) {
	params := Parameters{A: 1.3, B: 0.2, C: 0.2}
	prev := Probability(-4, params)
	for theta := -3.9; theta <= 4; theta += 0.1 {
		cur := Probability(theta, params)
		if cur < prev-1e-9 {
			t.Fatalf("P not monotone at theta=%v: prev=%v cur=%v", theta, prev, cur)
		}
		prev = cur
	}
}

func TestProbability_BoundedByCAndOne(t *testing.T) {
	params := Parameters{A: 1.5, B: -1, C: 0.2}
	for theta := -4.0; theta <= 4; theta += 0.25 {
		p := Probability(theta, params)
		if p < params.C-1e-9 || p > 1+1e-9 {
			t.Errorf("theta=%v: P=%v out of [c, 1]", theta, p)
		}
	}
}

func TestKLInformation_SymmetricAndPositive(t *testing.T) {
	for _, d := range []float64{0.05, 0.1, 0.3} {
		up := KLInformation(0.5 + d)
		down := KLInformation(0.5 - d)
		if math.Abs(up-down) > 1e-9 {
			t.Errorf("KL not symmetric at d=%v: %v vs %v", d, up, down)
		}
		if up <= 0 {
			t.Errorf("KL(0.5+%v) = %v, want > 0", d, up)
		}
	}
}

func TestInformation_AlwaysFiniteAndPositive(t *testing.T) {
	cases := []Parameters{
		{A: 0.5, B: -4, C: 0},
		{A: 2.5, B: 4, C: 0.35},
		{A: 1, B: 0, C: 0.01},
	}
	for _, p := range cases {
		for theta := -4.0; theta <= 4; theta += 0.5 {
			info := Information(theta, p)
			if math.IsNaN(info) || math.IsInf(info, 0) {
				t.Fatalf("Information(%v, %+v) = %v, want finite", theta, p, info)
			}
			if info < 0 {
				t.Fatalf("Information(%v, %+v) = %v, want >= 0", theta, p, info)
			}
		}
	}
}
