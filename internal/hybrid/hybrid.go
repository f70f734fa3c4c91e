// Package hybrid blends a LinUCB score and an IRT-UCB score into one
// ranking score (§4.6). The blend weight shifts from IRT-led early in a
// session, through a linear ramp, to LinUCB-led once enough responses
// have accumulated to trust the bandit's learned weights.
package hybrid

import "math"

// Config holds the session-progress breakpoints and weight targets.
// The fields are plain struct fields: no environment variable overrides
// them, and the engine always scores with DefaultConfig().
type Config struct {
	// WMin is the LinUCB weight at session progress k=0.
	WMin float64
	// WMid is the LinUCB weight at k=7, the first ramp's endpoint.
	WMid float64
	// WPlateau is the value the second ramp approaches as k nears 26, and
	// the floor the k>=26 weight decays toward as sigma grows.
	WPlateau float64
	// WMax is the asymptotic LinUCB weight as LinUCB uncertainty sigma
	// goes to 0, for k>=26 (open question: the spec gives the 0.871
	// plateau and the exp(-sigma/2) decay shape but not this asymptote;
	// 0.95 was chosen as a value comfortably above the plateau that
	// still leaves the IRT term a non-trivial floor influence).
	WMax float64
	// RampStart and RampMid are the k breakpoints (7 and 26).
	RampStart int
	RampMid   int
}

// DefaultConfig returns the §4.6 defaults.
func DefaultConfig() Config {
	return Config{
		WMin:      0.403,
		WMid:      0.708,
		WPlateau:  0.871,
		WMax:      0.95,
		RampStart: 7,
		RampMid:   26,
	}
}

// LinUCBWeight returns the session-progress-dependent weight given to the
// LinUCB score. k is the number of questions already answered this
// session; sigma is the LinUCB prediction's uncertainty term (from
// linucb.Model.Predict) for the candidate being scored.
func LinUCBWeight(k int, sigma float64, cfg Config) float64 {
	switch {
	case k < cfg.RampStart:
		t := float64(k) / float64(cfg.RampStart)
		return lerp(cfg.WMin, cfg.WMid, t)
	case k < cfg.RampMid:
		t := float64(k-cfg.RampStart) / float64(cfg.RampMid-cfg.RampStart)
		return lerp(cfg.WMid, cfg.WPlateau, t)
	default:
		return cfg.WPlateau + (cfg.WMax-cfg.WPlateau)*math.Exp(-sigma/2)
	}
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// Sigmoid maps (-inf, inf) to (0, 1). In float64 the result rounds to
// exactly 1 once x exceeds about 37.
func Sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// Score blends ucbLinUCB and ucbIRT into the final ranking score. ucbIRT
// is halved before the sigmoid for a softer curve, per §4.6.
func Score(k int, sigma, ucbLinUCB, ucbIRT float64, cfg Config) float64 {
	wL := LinUCBWeight(k, sigma, cfg)
	wI := 1 - wL
	return wL*Sigmoid(ucbLinUCB) + wI*Sigmoid(ucbIRT/2)
}
