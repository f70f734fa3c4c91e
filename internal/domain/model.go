// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring of clean architecture — it depends on nothing.
package domain

import "time"

// ─── IRT Model Tag ──────────────────────────────────────────────────────────

// ModelTag identifies which IRT response model an item is calibrated under.
type ModelTag string

const (
	Model2PL ModelTag = "2PL"
	Model3PL ModelTag = "3PL"
)

// ─── Item ───────────────────────────────────────────────────────────────────

// Item is a pre-calibrated question in the bank.
//
// Immutable except for the exposure and calibration-stats fields: A, B, C,
// Model, CellID, MaxExposure are set once at calibration time. ExposureCount,
// LastUsed, and HistoricalCorrectRate change as the item is administered.
//
// Invariant: Model == Model2PL implies C == 0; Model == Model3PL implies
// C > 0.01.
type Item struct {
	ID     string
	CellID string

	A     float64 // discrimination, [0.5, 2.5]
	B     float64 // difficulty, [-4, 4]
	C     float64 // guessing floor, [0, 0.35]
	Model ModelTag

	ExposureCount         int
	MaxExposure           int
	LastUsed              *time.Time
	HistoricalCorrectRate float64 // [0, 1]

	Active bool
}

// IsThreePL reports whether this item should be scored under the 3PL model,
// per the unified dispatch rule in §4.1: 2PL whenever C < 0.01.
func (it Item) IsThreePL() bool {
	return it.C >= 0.01
}

// ─── Cell (topic) ───────────────────────────────────────────────────────────

// Cell is a topic or content unit: the unit of content balancing and of
// mastery.
type Cell struct {
	ID                    string
	AggregateDiscriminate float64 // cell-level "a" used by cell UCB
	AggregateDifficulty   float64 // cell-level "b" used by cell UCB
	ItemCount             int
}

// ─── Learner Cell Mastery ───────────────────────────────────────────────────

// LearnerCellMastery is one row per (learner, cell). Created lazily when the
// first item from that cell is presented to the learner.
type LearnerCellMastery struct {
	LearnerID string
	CellID    string

	Theta          float64 // ability estimate, [-4, 4]
	SEM            float64 // standard error of measurement, >= 0 (may be +Inf)
	Confidence     float64 // [0, 1]
	ResponseCount  int
	MasteryStatus  int // 0 = active, 1 = mastered / pool-exhausted
	SelectionCount int
	LastEstimated  time.Time
}

// Mastered reports whether this cell is done: either the learner achieved
// mastery or the rescue cascade gave up on it (§4.9, §4.10).
func (m LearnerCellMastery) Mastered() bool {
	return m.MasteryStatus == 1
}

// ─── Response ───────────────────────────────────────────────────────────────

// Response is a single answered question. Append-only: the ordered sequence
// of Responses for a (learner, cell) is the sole input to ability
// re-estimation.
type Response struct {
	LearnerID      string
	QuizID         string
	ItemID         string
	Option         string
	IsCorrect      bool
	ResponseTimeMs int64
	CreatedAt      time.Time
}

// ─── Quiz Session ───────────────────────────────────────────────────────────

// TopicSelectionMode controls whether the content balancer or the learner
// picks which cells are in play.
type TopicSelectionMode string

const (
	TopicSelectionSystem TopicSelectionMode = "system"
	TopicSelectionManual TopicSelectionMode = "manual"
)

// QuizType selects the per-type stopping defaults in §4.9 and the SEM
// tightening/loosening in §4.10.
type QuizType string

const (
	QuizBaseline       QuizType = "baseline"
	QuizRegular        QuizType = "regular"
	QuizPracticeNew    QuizType = "practice-new"
	QuizPracticeReview QuizType = "practice-review"
)

// IsPractice reports whether this quiz type uses the "practice" stopping and
// convergence defaults (both practice-new and practice-review do).
func (t QuizType) IsPractice() bool {
	return t == QuizPracticeNew || t == QuizPracticeReview
}

// QuizStatus enumerates the lifecycle of a session.
type QuizStatus string

const (
	QuizStatusInProgress QuizStatus = "in_progress"
	QuizStatusCompleted  QuizStatus = "completed"
	QuizStatusAbandoned  QuizStatus = "abandoned"
)

// QuizSession is a finite append-only log of Responses; it terminates when
// the Stopping Controller says so (§4.9).
type QuizSession struct {
	ID           string
	LearnerID    string
	MaxQuestions int
	Exploration  float64 // UCB exploration constant C, §4.2, default 1.0
	TopicMode    TopicSelectionMode
	SelectedCells []string // only consulted when TopicMode == manual
	QuizType     QuizType

	Status      QuizStatus
	StartedAt   time.Time
	CompletedAt *time.Time
}

// ─── Decision Snapshot ──────────────────────────────────────────────────────

// DecisionSnapshot is written before the learner sees an item and consumed
// when the response arrives, to update the exact same LinUCB model with the
// exact same context (§3). It is the sole durable link between a selection
// and the subsequent model update — losing it means skipping the update,
// never extrapolating.
type DecisionSnapshot struct {
	ID        string
	LearnerID string
	QuizID    string
	ItemID    string

	Context   [15]float64 // serialized context vector, canonical order §4.4
	UCB       float64     // final blended score at selection time
	Mu        float64     // LinUCB predicted mean xᵀθ̂
	Sigma     float64     // LinUCB predicted uncertainty
	Theta     float64     // learner ability at selection time
	Algorithm string      // "linucb", "hybrid", or "kli-ucb"

	CreatedAt time.Time
}

// ─── Quintile (§4.10) ───────────────────────────────────────────────────────

// Quintile buckets a learner's ability for the distribution-aware
// convergence thresholds and optimal difficulty ranges.
type Quintile int

const (
	Q1 Quintile = iota + 1
	Q2
	Q3
	Q4
	Q5
)

// QuintileOf returns the ability quintile for theta, per the §4.10 table.
func QuintileOf(theta float64) Quintile {
	switch {
	case theta < -1.0:
		return Q1
	case theta < -0.3:
		return Q2
	case theta <= 0.3:
		return Q3
	case theta <= 1.0:
		return Q4
	default:
		return Q5
	}
}
