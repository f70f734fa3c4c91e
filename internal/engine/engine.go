// Package engine orchestrates one learner's quiz session: picking the
// next item (select_next), scoring an answer and updating models
// (process_answer), and reporting session state (quiz_status) (§4.11).
//
// The engine is logically single-threaded per session (§5): callers are
// responsible for serializing select_next/process_answer pairs for a
// given (learner, quiz); the engine itself never fans a single session
// out across goroutines.
package engine

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"time"

	"github.com/catengine/cat/internal/contentbalancer"
	"github.com/catengine/cat/internal/convergence"
	"github.com/catengine/cat/internal/domain"
	"github.com/catengine/cat/internal/exposure"
	"github.com/catengine/cat/internal/features"
	"github.com/catengine/cat/internal/hybrid"
	"github.com/catengine/cat/internal/infra/config"
	"github.com/catengine/cat/internal/infra/observability"
	"github.com/catengine/cat/internal/irt"
	"github.com/catengine/cat/internal/linucb"
	"github.com/catengine/cat/internal/reward"
	"github.com/catengine/cat/internal/stopping"
	"github.com/catengine/cat/internal/ucb"

	"github.com/google/uuid"
)

// Engine bundles every store and policy package needed to run a session.
// It holds no per-session state; everything it needs is either passed in
// or loaded from the stores on each call.
type Engine struct {
	Items      domain.ItemStore
	Responses  domain.ResponseStore
	Masteries  domain.MasteryStore
	Models     domain.ModelStore
	Snapshots  domain.SnapshotStore
	Quizzes    domain.QuizStore
	Config     *config.Store
	RandDraw   exposure.Draw
	Now        func() time.Time
	NewID      func() string
	Tracer     *observability.Tracer
}

// New builds an Engine with production defaults for RandDraw, Now, and
// NewID (math/rand, time.Now, uuid.NewString respectively, injected so
// tests can supply deterministic substitutes).
func New(items domain.ItemStore, responses domain.ResponseStore, masteries domain.MasteryStore, models domain.ModelStore, snapshots domain.SnapshotStore, quizzes domain.QuizStore, cfg *config.Store) *Engine {
	return &Engine{
		Items:     items,
		Responses: responses,
		Masteries: masteries,
		Models:    models,
		Snapshots: snapshots,
		Quizzes:   quizzes,
		Config:    cfg,
		RandDraw:  defaultDraw,
		Now:       time.Now,
		NewID:     uuid.NewString,
		Tracer:    observability.DefaultTracer,
	}
}

// doneStop builds a Done selection result for the given stop reason and
// records it against the stopping-decisions metric.
func doneStop(reason stopping.Reason) SelectionResult {
	observability.StopReasons.WithLabelValues(string(reason)).Inc()
	return SelectionResult{Done: true, StopDecision: stopping.Decision{Stop: true, Reason: reason}}
}

func defaultDraw() float64 {
	// Uniform draw on [0, 1) from math/rand's global source; tests replace
	// it with deterministic draws via Engine.RandDraw.
	return rand.Float64()
}

// candidate is one scored item ready for exposure-controlled admission.
type candidate struct {
	item      domain.Item
	rawScore  float64
	mu, sigma float64
	context   linucb.Context
	algorithm string
}

// SelectionResult is what select_next hands back to the caller.
type SelectionResult struct {
	Item      *domain.Item
	Done      bool
	StopDecision stopping.Decision
}

// SelectNext implements §4.11's select_next: load settings, consult the
// stopping controller, pick a target cell via the content balancer, score
// and admit a candidate item, persist the decision snapshot, and return
// it. A nil Item with Done=true means the quiz is over; the StopDecision
// explains why.
func (e *Engine) SelectNext(ctx context.Context, learnerID, quizID string) (result SelectionResult, err error) {
	span := e.Tracer.StartSpan(ctx, "select_next", map[string]string{"learner_id": learnerID, "quiz_id": quizID})
	defer func() { e.Tracer.EndSpan(span, err) }()

	quiz, err := e.Quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return SelectionResult{}, fmt.Errorf("engine: loading quiz: %w", err)
	}

	answered, err := e.Responses.CountByQuiz(ctx, learnerID, quizID)
	if err != nil {
		return SelectionResult{}, fmt.Errorf("engine: counting responses: %w", err)
	}
	if answered >= quiz.MaxQuestions {
		return doneStop(stopping.ReasonMaxQuestionsReached), nil
	}

	cellIDs := quiz.SelectedCells
	masteries, err := e.Masteries.ListMasteries(ctx, learnerID, cellIDs)
	if err != nil {
		return SelectionResult{}, fmt.Errorf("engine: loading masteries: %w", err)
	}

	stopCfg := stopping.DefaultsForQuizType(quiz.QuizType)
	cfg := e.Config.Get()
	convergenceOn := cfg.Convergence.Enabled && convergence.IsEnabledForLearner(learnerID, cfg.Convergence.TrafficPercent)
	semTable := semTableFromConfig(cfg.Convergence)

	poolStats := make(map[string]cellPoolStats, len(masteries))
	for _, m := range masteries {
		if m.Mastered() {
			continue
		}
		stats, err := e.cellPoolStatsFor(ctx, m.CellID, m.Theta)
		if err != nil {
			return SelectionResult{}, fmt.Errorf("engine: computing remaining pool info for cell %s: %w", m.CellID, err)
		}
		poolStats[m.CellID] = stats
	}
	last5KL, err := e.recentKLInformation(ctx, learnerID, quizID)
	if err != nil {
		return SelectionResult{}, fmt.Errorf("engine: loading recent selection information: %w", err)
	}

	stopDecision := stopping.Evaluate(buildStoppingInputs(answered, masteries, quiz.QuizType, convergenceOn, semTable, poolStats, last5KL), stopCfg)
	if stopDecision.Stop {
		observability.StopReasons.WithLabelValues(string(stopDecision.Reason)).Inc()
		if err := e.Quizzes.UpdateQuizStatus(ctx, quizID, domain.QuizStatusCompleted, e.Now()); err != nil {
			return SelectionResult{}, fmt.Errorf("engine: marking quiz complete: %w", err)
		}
		return SelectionResult{Done: true, StopDecision: stopDecision}, nil
	}

	activeCells := activeMasteries(masteries)
	if len(activeCells) == 0 {
		return doneStop(stopping.ReasonAllCellsMastered), nil
	}

	totalSelections := 0
	for _, m := range activeCells {
		totalSelections += m.SelectionCount
	}

	balCfg := contentbalancer.DefaultConfig()
	targetIdx := pickTargetCell(activeCells, totalSelections, balCfg)
	target := activeCells[targetIdx]

	for {
		items, exhausted, err := e.itemsForTarget(ctx, target, quiz.QuizType, convergenceOn)
		if err != nil {
			return SelectionResult{}, fmt.Errorf("engine: loading items for cell %s: %w", target.CellID, err)
		}
		if len(items) == 0 || exhausted {
			target.MasteryStatus = 1
			if err := e.Masteries.UpsertMastery(ctx, target); err != nil {
				return SelectionResult{}, fmt.Errorf("engine: marking cell mastered: %w", err)
			}
			activeCells = removeCell(activeCells, target.CellID)
			if len(activeCells) == 0 {
				return doneStop(stopping.ReasonAllCellsMastered), nil
			}
			targetIdx = pickTargetCell(activeCells, totalSelections, balCfg)
			target = activeCells[targetIdx]
			continue
		}

		cands, err := e.scoreCandidates(ctx, quiz, target, items, answered)
		if err != nil {
			return SelectionResult{}, err
		}

		picked, err := e.admit(ctx, cands)
		if err != nil {
			return SelectionResult{}, err
		}

		snapshot := domain.DecisionSnapshot{
			ID:        e.NewID(),
			LearnerID: learnerID,
			QuizID:    quizID,
			ItemID:    picked.item.ID,
			Context:   picked.context,
			UCB:       picked.rawScore,
			Mu:        picked.mu,
			Sigma:     picked.sigma,
			Theta:     target.Theta,
			Algorithm: picked.algorithm,
			CreatedAt: e.Now(),
		}
		if err := e.Snapshots.WriteSnapshot(ctx, snapshot); err != nil {
			return SelectionResult{}, fmt.Errorf("engine: writing decision snapshot: %w", err)
		}

		target.SelectionCount++
		if err := e.Masteries.UpsertMastery(ctx, target); err != nil {
			return SelectionResult{}, fmt.Errorf("engine: updating cell selection count: %w", err)
		}
		if err := e.Items.IncrementExposure(ctx, picked.item.ID, e.Now()); err != nil {
			return SelectionResult{}, fmt.Errorf("engine: incrementing exposure: %w", err)
		}

		observability.ItemsAdministered.WithLabelValues(picked.algorithm).Inc()

		item := picked.item
		return SelectionResult{Item: &item}, nil
	}
}

// cellPoolStats is the live state of a cell's remaining item pool, computed
// fresh on every select_next so the stopping controller's pool-exhaustion,
// PSER, and min-information rules (§4.9 rules 4-6) see the current picture
// rather than the stale snapshot from the last processed answer.
type cellPoolStats struct {
	maxInfo       float64
	poolExhausted bool
}

// cellPoolStatsFor loads the cell's unused, active items and reports the
// highest Fisher information among them at the learner's current theta, and
// whether the pool is empty outright.
func (e *Engine) cellPoolStatsFor(ctx context.Context, cellID string, theta float64) (cellPoolStats, error) {
	items, err := e.Items.ItemsByCell(ctx, cellID, domain.ItemFilter{ActiveOnly: true})
	if err != nil {
		return cellPoolStats{}, err
	}
	if len(items) == 0 {
		return cellPoolStats{poolExhausted: true}, nil
	}
	maxInfo := 0.0
	for _, it := range items {
		info := irt.Information(theta, irt.Parameters{A: it.A, B: it.B, C: it.C})
		if info > maxInfo {
			maxInfo = info
		}
	}
	return cellPoolStats{maxInfo: maxInfo}, nil
}

// recentKLInformation returns the KL information (§4.1) of the most recent
// selections in this session, newest first, re-derived from the decision
// snapshots' stored theta and the selected item's IRT parameters — the
// session's actual record of "information used for selection."
func (e *Engine) recentKLInformation(ctx context.Context, learnerID, quizID string) ([]float64, error) {
	snaps, err := e.Snapshots.RecentSnapshots(ctx, learnerID, quizID, 5)
	if err != nil {
		return nil, err
	}
	out := make([]float64, 0, len(snaps))
	for _, s := range snaps {
		item, err := e.Items.GetItem(ctx, s.ItemID)
		if err != nil || item == nil {
			continue
		}
		p := irt.Probability(s.Theta, irt.Parameters{A: item.A, B: item.B, C: item.C})
		out = append(out, irt.KLInformation(p))
	}
	return out, nil
}

// predictedSEMImprove implements PSER (§4.9 rule 4): the SEM reduction the
// cell would see if its single most informative remaining item were
// administered next. Zero when there's no finite current SEM to improve on
// or no informative items left.
func predictedSEMImprove(currentSEM, maxInfo float64) float64 {
	if maxInfo <= 0 || currentSEM <= 0 || math.IsInf(currentSEM, 1) {
		return 0
	}
	currentInfo := 1 / (currentSEM * currentSEM)
	predictedSEM := 1 / math.Sqrt(currentInfo+maxInfo)
	improve := currentSEM - predictedSEM
	if improve < 0 {
		return 0
	}
	return improve
}

func buildStoppingInputs(answered int, masteries []domain.LearnerCellMastery, quizType domain.QuizType, convergenceOn bool, semTable convergence.QuintileTable, poolStats map[string]cellPoolStats, last5KL []float64) stopping.Inputs {
	cells := make([]stopping.CellState, 0, len(masteries))
	for _, m := range masteries {
		cell := stopping.CellState{
			CellID:     m.CellID,
			Mastered:   m.Mastered(),
			AverageSEM: m.SEM,
		}
		if convergenceOn {
			target := convergence.EffectiveTarget(m.Theta, quizType, semTable)
			cell.ConvergenceActive = true
			cell.EffectiveTargetSEM = target.SEMTarget
		}
		if stats, ok := poolStats[m.CellID]; ok {
			cell.MaxRemainingInfo = stats.maxInfo
			cell.PoolExhausted = stats.poolExhausted
			cell.PredictedSEMImprove = predictedSEMImprove(m.SEM, stats.maxInfo)
		}
		cells = append(cells, cell)
	}
	return stopping.Inputs{Answered: answered, Cells: cells, Last5KLInformation: last5KL}
}

func activeMasteries(masteries []domain.LearnerCellMastery) []domain.LearnerCellMastery {
	var active []domain.LearnerCellMastery
	for _, m := range masteries {
		if !m.Mastered() {
			active = append(active, m)
		}
	}
	return active
}

func removeCell(cells []domain.LearnerCellMastery, cellID string) []domain.LearnerCellMastery {
	var out []domain.LearnerCellMastery
	for _, c := range cells {
		if c.CellID != cellID {
			out = append(out, c)
		}
	}
	return out
}

// pickTargetCell applies the content balancer to every active cell's
// forced-exploration-aware score and returns the index of the winner.
func pickTargetCell(active []domain.LearnerCellMastery, totalSelections int, cfg contentbalancer.Config) int {
	best, bestScore := 0, math.Inf(-1)
	selections := make(map[string]int, len(active))
	for i, c := range active {
		selections[c.CellID] = c.SelectionCount
		raw := 1.0
		if c.SelectionCount > 0 {
			raw = 1.0 / float64(c.SelectionCount)
		}
		adjusted := contentbalancer.Adjust(raw, c.SelectionCount, totalSelections, cfg)
		if adjusted > bestScore {
			best, bestScore = i, adjusted
		}
	}
	coverage := contentbalancer.EvaluateCoverage(selections, cfg)
	observability.ContentBalancerCellsOverCap.Set(float64(coverage.CellsOverCap))
	return best
}

// rescueMinThreshold is the minimum number of unused items a difficulty
// band must contain before the rescue cascade widens it further (§4.10).
const rescueMinThreshold = 3

// semTableFromConfig builds the per-quintile SEM-target table convergence
// evaluates against, honoring an operator's CAT_CONVERGENCE_SEM_Q1..Q5
// overrides (§6) over the §4.10 defaults.
func semTableFromConfig(cfg config.DistributionAwareConvergenceConfig) convergence.QuintileTable {
	return convergence.DefaultQuintileTable().WithSEMTargets(cfg.SEMQ1, cfg.SEMQ2, cfg.SEMQ3, cfg.SEMQ4, cfg.SEMQ5)
}

// itemsForTarget loads the target cell's active item pool. When
// distribution-aware convergence is on for this learner, it first narrows
// to the quintile's difficulty band and, if that band is running dry, runs
// the rescue cascade to widen it or relax the SEM threshold (§4.10). If the
// cascade exhausts every step, the cell's pool is exhausted: it returns no
// items and exhausted=true, so the caller marks the cell mastered and stops
// sampling from it rather than falling back to an unbounded pool.
func (e *Engine) itemsForTarget(ctx context.Context, target domain.LearnerCellMastery, quizType domain.QuizType, convergenceOn bool) (items []domain.Item, exhausted bool, err error) {
	unbounded := domain.ItemFilter{ActiveOnly: true}
	if !convergenceOn {
		items, err = e.Items.ItemsByCell(ctx, target.CellID, unbounded)
		return items, false, err
	}

	qt := convergence.EffectiveTarget(target.Theta, quizType, semTableFromConfig(e.Config.Get().Convergence))
	countInBand := func(center, halfWidth float64) int {
		items, err := e.Items.ItemsByCell(ctx, target.CellID, domain.ItemFilter{
			ActiveOnly: true, BandSet: true, MinB: center - halfWidth, MaxB: center + halfWidth,
		})
		if err != nil {
			return 0
		}
		return len(items)
	}
	countTotal := func() int {
		items, err := e.Items.ItemsByCell(ctx, target.CellID, unbounded)
		if err != nil {
			return 0
		}
		return len(items)
	}

	halfWidth := qt.RangeWidth
	if countInBand(target.Theta, halfWidth) < rescueMinThreshold {
		outcome := convergence.RunRescueCascade(target.Theta, qt.RangeWidth, qt, rescueMinThreshold, countInBand, countTotal)
		observability.RescueCascadeSteps.WithLabelValues(rescueStepLabel(outcome.Step)).Inc()
		if !outcome.Continue {
			return nil, true, nil
		}
		halfWidth = outcome.WidenedRange
	}

	items, err = e.Items.ItemsByCell(ctx, target.CellID, domain.ItemFilter{
		ActiveOnly: true, BandSet: true, MinB: target.Theta - halfWidth, MaxB: target.Theta + halfWidth,
	})
	return items, false, err
}

func rescueStepLabel(step convergence.RescueStep) string {
	switch step {
	case convergence.RescueWiden1:
		return "widen_1"
	case convergence.RescueWiden2:
		return "widen_2"
	case convergence.RescueRelaxThreshold:
		return "relax_threshold"
	default:
		return "exhausted"
	}
}

// scoreCandidates computes the hybrid (or pure KLI-UCB) score for every
// unused item in the target cell.
// answered is the number of responses already recorded in this session.
func (e *Engine) scoreCandidates(ctx context.Context, quiz *domain.QuizSession, mastery domain.LearnerCellMastery, items []domain.Item, answered int) ([]candidate, error) {
	cfg := e.Config.Get()
	k := answered // session progress: questions already answered this session

	cands := make([]candidate, 0, len(items))
	for _, item := range items {
		params := irt.Parameters{A: item.A, B: item.B, C: item.C}

		if !cfg.Bandit.Enabled || cfg.Bandit.Mode == config.BanditModeDisabled || cfg.Bandit.Mode == config.BanditModeIRTOnly {
			score := ucb.Score(mastery.Theta, params, item.ExposureCount, max1(mastery.SelectionCount), quiz.Exploration)
			cands = append(cands, candidate{item: item, rawScore: score, algorithm: "kli-ucb"})
			continue
		}

		ctxVec, _ := features.Build(features.UserState{
			Theta:              mastery.Theta,
			SEM:                mastery.SEM,
			Confidence:         mastery.Confidence,
			ResponseCount:      mastery.ResponseCount,
			RecentAccuracy:     0.5,
			QuestionsInSession: k,
			TopicMastery:       0,
		}, features.ItemState{
			Params:                params,
			ExposureCount:         item.ExposureCount,
			MaxExposure:           item.MaxExposure,
			HistoricalCorrectRate: item.HistoricalCorrectRate,
		})

		blob, err := e.Models.Get(ctx, item.ID)
		var model *linucb.Model
		if err != nil || blob == nil {
			model = linucb.New(linucb.DefaultLambda)
		} else {
			model, err = linucb.Unmarshal(blob)
			if err != nil {
				model = linucb.New(linucb.DefaultLambda)
			}
		}

		ucbL, mu, sigma := model.Predict(ctxVec, cfg.Bandit.Alpha)

		if cfg.Bandit.Mode == config.BanditModeHybrid {
			ucbI := ucb.Score(mastery.Theta, params, item.ExposureCount, max1(mastery.SelectionCount), quiz.Exploration)
			final := hybrid.Score(k, sigma, ucbL, ucbI, hybrid.DefaultConfig())
			cands = append(cands, candidate{item: item, rawScore: final, mu: mu, sigma: sigma, context: ctxVec, algorithm: "hybrid"})
		} else {
			cands = append(cands, candidate{item: item, rawScore: ucbL, mu: mu, sigma: sigma, context: ctxVec, algorithm: "linucb"})
		}
	}
	return cands, nil
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// admit sorts candidates descending and runs Sympson-Hetter admission.
func (e *Engine) admit(ctx context.Context, cands []candidate) (candidate, error) {
	if len(cands) == 0 {
		return candidate{}, domain.ErrPoolExhausted
	}
	sorted := make([]candidate, len(cands))
	copy(sorted, cands)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].rawScore > sorted[j-1].rawScore; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	ranked := make([]exposure.Candidate, len(sorted))
	for i, c := range sorted {
		ranked[i] = exposure.Candidate{ItemID: c.item.ID, ExposureCount: c.item.ExposureCount, TotalResponsesInWindow: totalExposureWindow(sorted)}
	}

	draw := e.RandDraw
	if draw == nil {
		draw = defaultDraw
	}
	admitted, ok := exposure.SelectAdmitted(ranked, exposure.DefaultConfig(), draw)
	if !ok {
		observability.ExposureAdmissionDecisions.WithLabelValues("rejected").Inc()
		return candidate{}, domain.ErrPoolExhausted
	}
	observability.ExposureAdmissionDecisions.WithLabelValues("admitted").Inc()
	for _, c := range sorted {
		if c.item.ID == admitted.ItemID {
			return c, nil
		}
	}
	return sorted[0], nil
}

func totalExposureWindow(cands []candidate) int {
	total := 0
	for _, c := range cands {
		total += c.item.ExposureCount
	}
	return total
}

// AnswerResult is what process_answer hands back to the caller (§4.11).
type AnswerResult struct {
	IsCorrect bool
	OldTheta  float64
	NewTheta  float64
	Confidence float64
	Method    irt.Method
}

// ProcessAnswer implements §4.11's process_answer: record the response,
// re-estimate ability from the cell's full response history, persist the
// mastery row, and — if a matching decision snapshot exists — update the
// per-item LinUCB model with the computed reward.
func (e *Engine) ProcessAnswer(ctx context.Context, learnerID, quizID, itemID, option string, responseTimeMs int64) (result AnswerResult, err error) {
	span := e.Tracer.StartSpan(ctx, "process_answer", map[string]string{"learner_id": learnerID, "quiz_id": quizID, "item_id": itemID})
	defer func() { e.Tracer.EndSpan(span, err) }()

	item, err := e.Items.GetItem(ctx, itemID)
	if err != nil {
		return AnswerResult{}, fmt.Errorf("engine: loading item: %w", err)
	}

	isCorrect := option == "correct" // option correctness is resolved by the caller's item/option store; this engine only consumes the bool

	mastery, err := e.Masteries.GetMastery(ctx, learnerID, item.CellID)
	if err != nil {
		return AnswerResult{}, fmt.Errorf("engine: loading mastery: %w", err)
	}
	if mastery == nil {
		mastery = &domain.LearnerCellMastery{LearnerID: learnerID, CellID: item.CellID}
	}
	oldTheta := mastery.Theta
	oldSEM := mastery.SEM

	now := e.Now()
	response := domain.Response{
		LearnerID:      learnerID,
		QuizID:         quizID,
		ItemID:         itemID,
		Option:         option,
		IsCorrect:      isCorrect,
		ResponseTimeMs: responseTimeMs,
		CreatedAt:      now,
	}
	if err := e.Responses.AppendResponse(ctx, response); err != nil {
		return AnswerResult{}, fmt.Errorf("engine: appending response: %w", err)
	}

	history, err := e.Responses.ResponsesByCell(ctx, learnerID, item.CellID)
	if err != nil {
		return AnswerResult{}, fmt.Errorf("engine: loading response history: %w", err)
	}

	scored := make([]irt.ScoredResponse, 0, len(history))
	for _, r := range history {
		hItem, err := e.Items.GetItem(ctx, r.ItemID)
		if err != nil {
			continue // a deleted/missing item drops from re-estimation rather than failing the whole answer
		}
		scored = append(scored, irt.ScoredResponse{
			Params:    irt.Parameters{A: hItem.A, B: hItem.B, C: hItem.C},
			IsCorrect: r.IsCorrect,
		})
	}

	estimate := irt.EstimateAbility(scored, 0)
	mastery.Theta = estimate.Theta
	mastery.SEM = estimate.SEM
	mastery.Confidence = estimate.Confidence
	mastery.ResponseCount = len(scored)
	mastery.LastEstimated = now
	if estimate.SEM < 0.3 && mastery.ResponseCount >= 3 {
		mastery.MasteryStatus = 1
	}
	observability.SEMDistribution.Observe(estimate.SEM)
	if err := e.Masteries.UpsertMastery(ctx, *mastery); err != nil {
		return AnswerResult{}, fmt.Errorf("engine: persisting mastery: %w", err)
	}

	cfg := e.Config.Get()
	if cfg.Bandit.Enabled && cfg.Bandit.Mode != config.BanditModeDisabled && cfg.Bandit.Mode != config.BanditModeIRTOnly {
		if snapshot, err := e.Snapshots.LatestSnapshot(ctx, learnerID, quizID, itemID); err == nil && snapshot != nil {
			r, rewardErr := reward.Compute(reward.Inputs{
				IsCorrect:      isCorrect,
				SEMBefore:      oldSEM,
				SEMAfter:       estimate.SEM,
				ResponseTimeMs: responseTimeMs,
			}, reward.DefaultWeights())
			if rewardErr != nil {
				observability.LinUCBRejectedRewards.Inc()
			}
			if rewardErr == nil {
				blob, getErr := e.Models.Get(ctx, itemID)
				var model *linucb.Model
				if getErr != nil || blob == nil {
					model = linucb.New(linucb.DefaultLambda)
				} else {
					model, getErr = linucb.Unmarshal(blob)
					if getErr != nil {
						model = linucb.New(linucb.DefaultLambda)
					}
				}
				ctxVec, ctxErr := linucb.UnmarshalContext(linucb.MarshalContext(snapshot.Context))
				if ctxErr == nil {
					if updateErr := model.Update(ctxVec, r); updateErr == nil {
						_ = e.Models.Put(ctx, itemID, model.Marshal())
					}
					// a rejected update keeps the prior model untouched and is not
					// itself an error for process_answer's caller (§7 kind 2).
				}
			}
		} else {
			// a missing snapshot means the update is skipped and logged (§7 kind 4);
			// the response and mastery update above have already been persisted.
			log.Printf("engine: no decision snapshot for learner %s, quiz %s, item %s (err: %v); LinUCB update skipped", learnerID, quizID, itemID, err)
		}
	}

	return AnswerResult{
		IsCorrect:  isCorrect,
		OldTheta:   oldTheta,
		NewTheta:   mastery.Theta,
		Confidence: mastery.Confidence,
		Method:     estimate.Method,
	}, nil
}

// QuizStatusResult is what quiz_status reports (§4.11).
type QuizStatusResult struct {
	Answered     int
	MaxQuestions int
	Status       domain.QuizStatus
	Masteries    []domain.LearnerCellMastery
}

// QuizStatus reports the current state of a session without mutating it.
func (e *Engine) QuizStatus(ctx context.Context, learnerID, quizID string) (QuizStatusResult, error) {
	quiz, err := e.Quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return QuizStatusResult{}, fmt.Errorf("engine: loading quiz: %w", err)
	}
	answered, err := e.Responses.CountByQuiz(ctx, learnerID, quizID)
	if err != nil {
		return QuizStatusResult{}, fmt.Errorf("engine: counting responses: %w", err)
	}
	masteries, err := e.Masteries.ListMasteries(ctx, learnerID, quiz.SelectedCells)
	if err != nil {
		return QuizStatusResult{}, fmt.Errorf("engine: loading masteries: %w", err)
	}
	return QuizStatusResult{
		Answered:     answered,
		MaxQuestions: quiz.MaxQuestions,
		Status:       quiz.Status,
		Masteries:    masteries,
	}, nil
}

