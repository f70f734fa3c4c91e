// Package exposure implements Sympson-Hetter exposure control: it caps
// how often any single item is shown relative to the test population, so
// a handful of high-information items don't get administered to every
// learner and leak into shared answer keys (§4.8).
package exposure

import "math"

// Config holds the Sympson-Hetter thresholds. No environment variable
// overrides them; internal/infra/config reads only CAT_BANDIT_* and
// CAT_CONVERGENCE_*.
type Config struct {
	MaxRate        float64
	AdmissionFloor float64
	// WindowDays is the rolling-window length in days. Nothing in this
	// package reads it: rates are computed from whatever counts the caller
	// passes, and the engine passes all-time exposure counts.
	WindowDays int
}

// DefaultConfig returns the §4.8 defaults: a 20% max exposure rate, a 5%
// admission floor, and WindowDays = 30.
func DefaultConfig() Config {
	return Config{MaxRate: 0.20, AdmissionFloor: 0.05, WindowDays: 30}
}

// AdmissionProbability returns P_adm for a candidate observed at rate
// r_obs = exposureCount / totalResponsesInWindow. An empty window
// (totalResponsesInWindow == 0) or a never-administered item
// (exposureCount == 0) is always admitted.
func AdmissionProbability(exposureCount, totalResponsesInWindow int, cfg Config) float64 {
	if totalResponsesInWindow <= 0 {
		return 1
	}
	rObs := float64(exposureCount) / float64(totalResponsesInWindow)
	if rObs <= 0 {
		return 1
	}
	p := cfg.MaxRate / rObs
	return clip(p, cfg.AdmissionFloor, 1)
}

func clip(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Candidate is a score-ranked item eligible for administration.
type Candidate struct {
	ItemID                 string
	ExposureCount          int
	TotalResponsesInWindow int
}

// Draw is the source of the Sympson-Hetter random admission trial. In
// production this is rand.Float64; tests inject a deterministic stream.
type Draw func() float64

// SelectAdmitted walks a score-ranked candidate list (highest score
// first) and admits the first candidate whose Sympson-Hetter coin flip
// succeeds. If every candidate rejects, the top-ranked candidate is
// force-admitted so a session never stalls for want of exposure budget.
func SelectAdmitted(ranked []Candidate, cfg Config, draw Draw) (Candidate, bool) {
	if len(ranked) == 0 {
		return Candidate{}, false
	}
	for _, c := range ranked {
		pAdm := AdmissionProbability(c.ExposureCount, c.TotalResponsesInWindow, cfg)
		if draw() < pAdm {
			return c, true
		}
	}
	return ranked[0], true
}
