// Package stopping implements the eight-rule Stopping Controller (§4.9):
// an ordered decision cascade that decides whether a quiz session should
// continue, and if not, why.
package stopping

import "github.com/catengine/cat/internal/domain"

// Reason is the machine-readable stop/continue reason, stable across
// releases since clients key analytics dashboards off it.
type Reason string

const (
	ReasonMaxQuestionsReached      Reason = "max_questions_reached"
	ReasonMinimumNotReached        Reason = "minimum_not_reached"
	ReasonAllCellsMastered         Reason = "all_cells_mastered"
	ReasonPSERSuggestsContinue     Reason = "pser_suggests_continue"
	ReasonPrecisionAchieved        Reason = "precision_achieved"
	ReasonDifficultyRangeExhausted Reason = "difficulty_range_exhausted"
	ReasonNoInformativeItems       Reason = "no_informative_items_remaining"
	ReasonLowInformationGain       Reason = "low_information_gain"
	ReasonCriteriaNotMet           Reason = "criteria_not_met"
)

// Config holds the per-quiz-type defaults from the §4.9 table.
type Config struct {
	MinQuestions       int
	MaxQuestions       int
	TargetSEM          float64
	PSERThreshold      float64
	MinInfoThreshold   float64
	MinInformationGain float64
}

// DefaultsForQuizType returns the §4.9 per-type defaults.
func DefaultsForQuizType(t domain.QuizType) Config {
	switch {
	case t == domain.QuizBaseline:
		return Config{MinQuestions: 10, MaxQuestions: 50, TargetSEM: 0.25, PSERThreshold: 0.03, MinInfoThreshold: 0.08, MinInformationGain: 0.05}
	case t.IsPractice():
		return Config{MinQuestions: 3, MaxQuestions: 20, TargetSEM: 0.40, PSERThreshold: 0.10, MinInfoThreshold: 0.15, MinInformationGain: 0.05}
	default: // regular
		return Config{MinQuestions: 5, MaxQuestions: 30, TargetSEM: 0.30, PSERThreshold: 0.05, MinInfoThreshold: 0.10, MinInformationGain: 0.05}
	}
}

// Decision is the Stopping Controller's verdict.
type Decision struct {
	Stop    bool
	Reason  Reason
	Details string
}

// CellState is the subset of per-cell state the controller needs to
// evaluate a session. ConvergenceActive cells report their own adaptive
// EffectiveTargetSEM; otherwise the session-wide Config.TargetSEM is used.
type CellState struct {
	CellID              string
	Mastered            bool
	AverageSEM          float64
	EffectiveTargetSEM  float64 // only meaningful if ConvergenceActive
	ConvergenceActive   bool
	PredictedSEMImprove float64 // PSER: predicted SEM reduction from the next item
	PoolExhausted       bool    // true once the Rescue Cascade (§4.10) gave up on this cell
	MaxRemainingInfo    float64 // highest Fisher information among this cell's unused items
}

// Inputs bundles the session-level facts the controller decides from.
type Inputs struct {
	Answered           int
	Cells              []CellState
	Last5KLInformation []float64 // most recent responses first or last, order irrelevant to the mean
}

// Evaluate runs the eight ordered rules of §4.9 and returns the first one
// that fires.
func Evaluate(in Inputs, cfg Config) Decision {
	if in.Answered >= cfg.MaxQuestions {
		return Decision{Stop: true, Reason: ReasonMaxQuestionsReached}
	}
	if in.Answered < cfg.MinQuestions {
		return Decision{Stop: false, Reason: ReasonMinimumNotReached}
	}

	active := activeCells(in.Cells)
	if len(active) == 0 {
		return Decision{Stop: true, Reason: ReasonAllCellsMastered}
	}

	if precisionMet(active, cfg.TargetSEM) {
		if pserSuggestsContinue(active, cfg.PSERThreshold) {
			return Decision{Stop: false, Reason: ReasonPSERSuggestsContinue}
		}
		return Decision{Stop: true, Reason: ReasonPrecisionAchieved}
	}

	if allActivePoolsExhausted(active) {
		return Decision{Stop: true, Reason: ReasonDifficultyRangeExhausted}
	}

	if noInformativeItemsRemain(active, cfg.MinInfoThreshold) {
		return Decision{Stop: true, Reason: ReasonNoInformativeItems}
	}

	if in.Answered >= 10 && len(in.Last5KLInformation) > 0 {
		if mean(in.Last5KLInformation) < cfg.MinInformationGain {
			return Decision{Stop: true, Reason: ReasonLowInformationGain}
		}
	}

	return Decision{Stop: false, Reason: ReasonCriteriaNotMet}
}

func activeCells(cells []CellState) []CellState {
	var active []CellState
	for _, c := range cells {
		if !c.Mastered {
			active = append(active, c)
		}
	}
	return active
}

func precisionMet(active []CellState, fixedTarget float64) bool {
	sum, target := 0.0, 0.0
	for _, c := range active {
		sum += c.AverageSEM
		if c.ConvergenceActive {
			target += c.EffectiveTargetSEM
		} else {
			target += fixedTarget
		}
	}
	n := float64(len(active))
	return sum/n <= target/n
}

func pserSuggestsContinue(active []CellState, pserThreshold float64) bool {
	for _, c := range active {
		if c.PredictedSEMImprove >= pserThreshold {
			return true
		}
	}
	return false
}

func allActivePoolsExhausted(active []CellState) bool {
	for _, c := range active {
		if !c.PoolExhausted {
			return false
		}
	}
	return true
}

func noInformativeItemsRemain(active []CellState, minInfoThreshold float64) bool {
	for _, c := range active {
		if c.MaxRemainingInfo >= minInfoThreshold {
			return false
		}
	}
	return true
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
