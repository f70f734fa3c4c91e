package hybrid

import (
	"math"
	"testing"
)

func TestLinUCBWeight_RampBreakpoints(t *testing.T) {
	cfg := DefaultConfig()

	if w := LinUCBWeight(0, 0, cfg); math.Abs(w-cfg.WMin) > 1e-9 {
		t.Errorf("weight at k=0 = %v, want %v", w, cfg.WMin)
	}
	if w := LinUCBWeight(7, 0, cfg); math.Abs(w-cfg.WMid) > 1e-9 {
		t.Errorf("weight at k=7 = %v, want %v", w, cfg.WMid)
	}
	// At k=26 the exponential segment starts: WPlateau + (WMax-WPlateau)*exp(-0/2) = WMax.
	if w := LinUCBWeight(26, 0, cfg); math.Abs(w-cfg.WMax) > 1e-9 {
		t.Errorf("weight at k=26, sigma=0 = %v, want %v", w, cfg.WMax)
	}
}

func TestLinUCBWeight_MonotonicInFirstRamp(t *testing.T) {
	cfg := DefaultConfig()
	prev := LinUCBWeight(0, 0, cfg)
	for k := 1; k < cfg.RampStart; k++ {
		w := LinUCBWeight(k, 0, cfg)
		if w < prev {
			t.Errorf("weight decreased at k=%d: %v < %v", k, w, prev)
		}
		prev = w
	}
}

func TestLinUCBWeight_PlateauApproachesWMaxAsSigmaShrinks(t *testing.T) {
	cfg := DefaultConfig()
	wHighUncertainty := LinUCBWeight(30, 10, cfg)
	wLowUncertainty := LinUCBWeight(30, 0.001, cfg)
	if wLowUncertainty <= wHighUncertainty {
		t.Errorf("weight should rise toward WMax as sigma shrinks: high-sigma=%v low-sigma=%v", wHighUncertainty, wLowUncertainty)
	}
	if wLowUncertainty > cfg.WMax+1e-9 {
		t.Errorf("weight = %v, must not exceed WMax=%v", wLowUncertainty, cfg.WMax)
	}
}

func TestSigmoid_Bounds(t *testing.T) {
	if s := Sigmoid(0); math.Abs(s-0.5) > 1e-9 {
		t.Errorf("Sigmoid(0) = %v, want 0.5", s)
	}
	if s := Sigmoid(10); s <= 0.99 || s >= 1 {
		t.Errorf("Sigmoid(10) = %v, want close to but below 1", s)
	}
	if s := Sigmoid(-10); s < 0 || s >= 0.01 {
		t.Errorf("Sigmoid(-10) = %v, want close to but above 0", s)
	}
}

func TestScore_WithinUnitRange(t *testing.T) {
	cfg := DefaultConfig()
	cases := []struct {
		k                 int
		sigma, ucbL, ucbI float64
	}{
		{0, 1, 5, -5},
		{10, 0.5, -3, 3},
		{40, 0.01, 0, 0},
	}
	for _, c := range cases {
		s := Score(c.k, c.sigma, c.ucbL, c.ucbI, cfg)
		if s < 0 || s > 1 {
			t.Errorf("Score(%v) = %v, out of [0,1]", c, s)
		}
	}
}

func TestScore_HigherLinUCBWinsEarlyWeightedLess(t *testing.T) {
	cfg := DefaultConfig()
	// At k=0, IRT dominates (wI ~0.6), so a high IRT UCB should beat a
	// merely moderate LinUCB UCB.
	low := Score(0, 0, 0, 0, cfg)
	high := Score(0, 0, 0, 10, cfg)
	if high <= low {
		t.Errorf("raising IRT UCB should raise the blended score at k=0: low=%v high=%v", low, high)
	}
}
