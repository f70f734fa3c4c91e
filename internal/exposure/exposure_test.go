package exposure

import (
	"math"
	"testing"
)

func TestAdmissionProbability_NeverShownAlwaysAdmitted(t *testing.T) {
	cfg := DefaultConfig()
	if p := AdmissionProbability(0, 0, cfg); p != 1 {
		t.Errorf("p = %v, want 1 for an item with no window history", p)
	}
}

func TestAdmissionProbability_HighExposureHitsFloor(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRate = 0.02
	// r_obs = 0.9, so max_rate/r_obs = 0.02/0.9 ~ 0.022, below the 0.05 floor.
	p := AdmissionProbability(900, 1000, cfg)
	if math.Abs(p-cfg.AdmissionFloor) > 1e-9 {
		t.Errorf("p = %v, want clipped to floor %v", p, cfg.AdmissionFloor)
	}
}

func TestAdmissionProbability_LowExposureCapsAtOne(t *testing.T) {
	cfg := DefaultConfig()
	p := AdmissionProbability(1, 1000, cfg)
	if p != 1 {
		t.Errorf("p = %v, want clipped to 1", p)
	}
}

func TestAdmissionProbability_AtTargetRateGivesMaxRateRatio(t *testing.T) {
	cfg := DefaultConfig()
	// r_obs exactly max_rate => p = max_rate/r_obs = 1.
	p := AdmissionProbability(200, 1000, cfg)
	if math.Abs(p-1) > 1e-9 {
		t.Errorf("p = %v, want 1 at r_obs == max_rate", p)
	}
}

func constantDraw(v float64) Draw {
	return func() float64 { return v }
}

func TestSelectAdmitted_FirstCandidateAdmittedWhenDrawBelowP(t *testing.T) {
	cfg := DefaultConfig()
	ranked := []Candidate{
		{ItemID: "a", ExposureCount: 0, TotalResponsesInWindow: 0},
		{ItemID: "b", ExposureCount: 900, TotalResponsesInWindow: 1000},
	}
	got, ok := SelectAdmitted(ranked, cfg, constantDraw(0.01))
	if !ok || got.ItemID != "a" {
		t.Errorf("got %+v, want item a admitted", got)
	}
}

func TestSelectAdmitted_FallsThroughToNextOnRejection(t *testing.T) {
	cfg := DefaultConfig()
	ranked := []Candidate{
		{ItemID: "a", ExposureCount: 900, TotalResponsesInWindow: 1000}, // p = 0.20/0.9 ~ 0.22
		{ItemID: "b", ExposureCount: 0, TotalResponsesInWindow: 0},      // p = 1
	}
	// draw=0.5 rejects a (0.5 >= 0.22) but admits b (0.5 < 1).
	got, ok := SelectAdmitted(ranked, cfg, constantDraw(0.5))
	if !ok || got.ItemID != "b" {
		t.Errorf("got %+v, want item b admitted after a rejected", got)
	}
}

func TestSelectAdmitted_ForceAdmitsTopWhenAllReject(t *testing.T) {
	cfg := DefaultConfig()
	ranked := []Candidate{
		{ItemID: "a", ExposureCount: 900, TotalResponsesInWindow: 1000},
		{ItemID: "b", ExposureCount: 900, TotalResponsesInWindow: 1000},
	}
	got, ok := SelectAdmitted(ranked, cfg, constantDraw(0.99))
	if !ok || got.ItemID != "a" {
		t.Errorf("got %+v, want top candidate a force-admitted", got)
	}
}

func TestSelectAdmitted_EmptyListReturnsFalse(t *testing.T) {
	_, ok := SelectAdmitted(nil, DefaultConfig(), constantDraw(0))
	if ok {
		t.Error("expected ok=false for empty candidate list")
	}
}
