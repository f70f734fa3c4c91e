// Package features builds the canonical 15-dimensional LinUCB context
// vector (§4.4): six user, five item, four interaction features, each
// normalized to [0, 1]. The order is load-bearing — weight vectors are
// stored by index — and matches linucb.Context exactly.
package features

import (
	"math"

	"github.com/catengine/cat/internal/irt"
	"github.com/catengine/cat/internal/linucb"
)

// UserState is the subset of learner-cell mastery state the feature
// builder needs.
type UserState struct {
	Theta              float64
	SEM                float64
	Confidence         float64
	ResponseCount      int
	RecentAccuracy     float64 // over last <=5 responses this session; 0.5 when none
	QuestionsInSession int
	TopicMastery       float64 // [0,1]; 1 - this feeds interaction_topic_weakness
}

// ItemState is the subset of item state the feature builder needs.
type ItemState struct {
	Params                irt.Parameters
	ExposureCount         int
	MaxExposure           int
	HistoricalCorrectRate float64
}

// Build assembles the canonical context vector. Any value that would fall
// outside [0, 1] is clamped (§4.4: "values outside are clamped with a
// warning" — the warning is the caller's responsibility via the returned
// clamped flag).
func Build(user UserState, item ItemState) (linucb.Context, bool) {
	var clampedAny bool

	clamp01 := func(v float64) float64 {
		if v < 0 {
			clampedAny = true
			return 0
		}
		if v > 1 {
			clampedAny = true
			return 1
		}
		return v
	}

	var x linucb.Context

	// 1-6: user features
	x[0] = clamp01((user.Theta + 4) / 8)
	x[1] = clamp01(math.Min(user.SEM/2, 1))
	x[2] = clamp01(user.Confidence)
	x[3] = clamp01(math.Min(float64(user.ResponseCount)/50, 1))
	x[4] = clamp01(user.RecentAccuracy)
	x[5] = clamp01(math.Min(float64(user.QuestionsInSession)/30, 1))

	// 7-11: item features
	x[6] = clamp01((item.Params.B + 4) / 8)
	x[7] = clamp01((item.Params.A - 0.5) / 2)
	x[8] = clamp01(item.Params.C / 0.35)
	x[9] = clamp01(exposureRate(item.ExposureCount, item.MaxExposure))
	x[10] = clamp01(item.HistoricalCorrectRate)

	// 12-15: interaction features
	distance := math.Abs(user.Theta - item.Params.B)
	x[11] = clamp01(distance / 8)
	x[12] = clamp01(irt.Probability(user.Theta, item.Params))
	x[13] = clamp01(irt.Information(user.Theta, item.Params) / 2)
	x[14] = clamp01(1 - user.TopicMastery)

	return x, clampedAny
}

// exposureRate is min(exposure_count / max_exposure, 1), 0 when the cap is 0.
func exposureRate(exposureCount, maxExposure int) float64 {
	if maxExposure <= 0 {
		return 0
	}
	return math.Min(float64(exposureCount)/float64(maxExposure), 1)
}

