package engine

import (
	"context"
	"testing"
	"time"

	"github.com/catengine/cat/internal/domain"
	"github.com/catengine/cat/internal/infra/config"
)

// ─── In-memory fakes ────────────────────────────────────────────────────────

type fakeItemStore struct {
	items map[string]*domain.Item // by ID
	byCell map[string][]string
}

func (f *fakeItemStore) ItemsByCell(ctx context.Context, cellID string, filter domain.ItemFilter) ([]domain.Item, error) {
	var out []domain.Item
	for _, id := range f.byCell[cellID] {
		it := f.items[id]
		if filter.ActiveOnly && !it.Active {
			continue
		}
		if filter.BandSet && (it.B < filter.MinB || it.B > filter.MaxB) {
			continue
		}
		if filter.Exclude[id] {
			continue
		}
		out = append(out, *it)
	}
	return out, nil
}

func (f *fakeItemStore) GetItem(ctx context.Context, itemID string) (*domain.Item, error) {
	it, ok := f.items[itemID]
	if !ok {
		return nil, nil
	}
	cp := *it
	return &cp, nil
}

func (f *fakeItemStore) IncrementExposure(ctx context.Context, itemID string, at time.Time) error {
	if it, ok := f.items[itemID]; ok {
		it.ExposureCount++
		it.LastUsed = &at
	}
	return nil
}

func (f *fakeItemStore) Cells(ctx context.Context, cellIDs []string) ([]domain.Cell, error) {
	return nil, nil
}

type fakeResponseStore struct {
	responses []domain.Response
}

func (f *fakeResponseStore) AppendResponse(ctx context.Context, r domain.Response) error {
	f.responses = append(f.responses, r)
	return nil
}

func (f *fakeResponseStore) ResponsesByCell(ctx context.Context, learnerID, cellID string) ([]domain.Response, error) {
	var out []domain.Response
	for _, r := range f.responses {
		if r.LearnerID == learnerID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeResponseStore) CountByQuiz(ctx context.Context, learnerID, quizID string) (int, error) {
	n := 0
	for _, r := range f.responses {
		if r.LearnerID == learnerID && r.QuizID == quizID {
			n++
		}
	}
	return n, nil
}

type fakeMasteryStore struct {
	byKey map[string]*domain.LearnerCellMastery
}

func key(learnerID, cellID string) string { return learnerID + "|" + cellID }

func (f *fakeMasteryStore) GetMastery(ctx context.Context, learnerID, cellID string) (*domain.LearnerCellMastery, error) {
	m, ok := f.byKey[key(learnerID, cellID)]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMasteryStore) ListMasteries(ctx context.Context, learnerID string, cellIDs []string) ([]domain.LearnerCellMastery, error) {
	var out []domain.LearnerCellMastery
	for k, m := range f.byKey {
		if m.LearnerID == learnerID {
			_ = k
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeMasteryStore) UpsertMastery(ctx context.Context, m domain.LearnerCellMastery) error {
	cp := m
	f.byKey[key(m.LearnerID, m.CellID)] = &cp
	return nil
}

type fakeModelStore struct {
	blobs map[string][]byte
}

func (f *fakeModelStore) Get(ctx context.Context, itemID string) ([]byte, error) {
	return f.blobs[itemID], nil
}

func (f *fakeModelStore) Put(ctx context.Context, itemID string, blob []byte) error {
	f.blobs[itemID] = blob
	return nil
}

type fakeSnapshotStore struct {
	byID    map[string]domain.DecisionSnapshot
	ordered []domain.DecisionSnapshot
}

func (f *fakeSnapshotStore) WriteSnapshot(ctx context.Context, s domain.DecisionSnapshot) error {
	f.byID[s.LearnerID+"|"+s.QuizID+"|"+s.ItemID] = s
	f.ordered = append(f.ordered, s)
	return nil
}

func (f *fakeSnapshotStore) LatestSnapshot(ctx context.Context, learnerID, quizID, itemID string) (*domain.DecisionSnapshot, error) {
	s, ok := f.byID[learnerID+"|"+quizID+"|"+itemID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (f *fakeSnapshotStore) RecentSnapshots(ctx context.Context, learnerID, quizID string, limit int) ([]domain.DecisionSnapshot, error) {
	var matching []domain.DecisionSnapshot
	for _, s := range f.ordered {
		if s.LearnerID == learnerID && s.QuizID == quizID {
			matching = append(matching, s)
		}
	}
	// newest first
	for i, j := 0, len(matching)-1; i < j; i, j = i+1, j-1 {
		matching[i], matching[j] = matching[j], matching[i]
	}
	if len(matching) > limit {
		matching = matching[:limit]
	}
	return matching, nil
}

type fakeQuizStore struct {
	quiz *domain.QuizSession
}

func (f *fakeQuizStore) GetQuiz(ctx context.Context, quizID string) (*domain.QuizSession, error) {
	cp := *f.quiz
	return &cp, nil
}

func (f *fakeQuizStore) UpdateQuizStatus(ctx context.Context, quizID string, status domain.QuizStatus, at time.Time) error {
	f.quiz.Status = status
	return nil
}

// ─── Test harness ───────────────────────────────────────────────────────────

func newTestEngine(quiz *domain.QuizSession, items *fakeItemStore) (*Engine, *fakeResponseStore, *fakeMasteryStore) {
	responses := &fakeResponseStore{}
	masteries := &fakeMasteryStore{byKey: map[string]*domain.LearnerCellMastery{}}
	models := &fakeModelStore{blobs: map[string][]byte{}}
	snapshots := &fakeSnapshotStore{byID: map[string]domain.DecisionSnapshot{}}
	quizzes := &fakeQuizStore{quiz: quiz}

	store := config.NewStore(config.DefaultSnapshot())

	e := New(items, responses, masteries, models, snapshots, quizzes, store)
	e.Now = func() time.Time { return time.Unix(0, 0) }
	idCounter := 0
	e.NewID = func() string {
		idCounter++
		return "snap-" + string(rune('a'+idCounter))
	}
	return e, responses, masteries
}

func oneCellOneItem() (*fakeItemStore, *domain.QuizSession) {
	item := &domain.Item{ID: "item1", CellID: "cellA", A: 1.0, B: 0.0, C: 0, Active: true, MaxExposure: 100}
	items := &fakeItemStore{
		items:  map[string]*domain.Item{"item1": item},
		byCell: map[string][]string{"cellA": {"item1"}},
	}
	quiz := &domain.QuizSession{
		ID: "quiz1", LearnerID: "learner1", MaxQuestions: 10, Exploration: 1.0,
		TopicMode: domain.TopicSelectionManual, SelectedCells: []string{"cellA"},
		QuizType: domain.QuizRegular, Status: domain.QuizStatusInProgress,
	}
	return items, quiz
}

// disableConvergence turns distribution-aware convergence off. With it on
// (the default), a one-item cell never clears the rescue cascade's 3-item
// threshold, so the cell is exhausted before its item can be selected.
func disableConvergence(t *testing.T, e *Engine) {
	t.Helper()
	cfg := config.DefaultSnapshot()
	cfg.Convergence.Enabled = false
	if err := e.Config.Swap(cfg); err != nil {
		t.Fatalf("Swap failed: %v", err)
	}
}

func TestSelectNext_PicksTheOnlyAvailableItem(t *testing.T) {
	items, quiz := oneCellOneItem()
	e, _, masteries := newTestEngine(quiz, items)
	disableConvergence(t, e)
	masteries.byKey[key("learner1", "cellA")] = &domain.LearnerCellMastery{LearnerID: "learner1", CellID: "cellA"}

	result, err := e.SelectNext(context.Background(), "learner1", "quiz1")
	if err != nil {
		t.Fatalf("SelectNext failed: %v", err)
	}
	if result.Done {
		t.Fatal("expected an item, got Done")
	}
	if result.Item == nil || result.Item.ID != "item1" {
		t.Fatalf("got %+v, want item1", result.Item)
	}
}

func TestSelectNext_StopsAtMaxQuestions(t *testing.T) {
	items, quiz := oneCellOneItem()
	quiz.MaxQuestions = 1
	e, responses, _ := newTestEngine(quiz, items)
	responses.responses = append(responses.responses, domain.Response{LearnerID: "learner1", QuizID: "quiz1", ItemID: "item1"})

	result, err := e.SelectNext(context.Background(), "learner1", "quiz1")
	if err != nil {
		t.Fatalf("SelectNext failed: %v", err)
	}
	if !result.Done || result.StopDecision.Reason != "max_questions_reached" {
		t.Fatalf("got %+v, want stop/max_questions_reached", result)
	}
}

func TestSelectNext_MarksCellMasteredWhenPoolEmpty(t *testing.T) {
	items := &fakeItemStore{items: map[string]*domain.Item{}, byCell: map[string][]string{"cellA": {}}}
	quiz := &domain.QuizSession{
		ID: "quiz1", LearnerID: "learner1", MaxQuestions: 10, Exploration: 1.0,
		TopicMode: domain.TopicSelectionManual, SelectedCells: []string{"cellA"},
		QuizType: domain.QuizRegular, Status: domain.QuizStatusInProgress,
	}
	e, _, masteries := newTestEngine(quiz, items)
	masteries.byKey[key("learner1", "cellA")] = &domain.LearnerCellMastery{LearnerID: "learner1", CellID: "cellA"}

	result, err := e.SelectNext(context.Background(), "learner1", "quiz1")
	if err != nil {
		t.Fatalf("SelectNext failed: %v", err)
	}
	if !result.Done {
		t.Fatalf("expected done when the only cell's pool is empty, got %+v", result)
	}
}

func TestProcessAnswer_UpdatesMasteryAndReturnsCorrectness(t *testing.T) {
	items, quiz := oneCellOneItem()
	e, responses, masteries := newTestEngine(quiz, items)

	res, err := e.ProcessAnswer(context.Background(), "learner1", "quiz1", "item1", "correct", 5000)
	if err != nil {
		t.Fatalf("ProcessAnswer failed: %v", err)
	}
	if !res.IsCorrect {
		t.Error("expected IsCorrect true for option 'correct'")
	}
	if len(responses.responses) != 1 {
		t.Fatalf("expected 1 response recorded, got %d", len(responses.responses))
	}
	if _, ok := masteries.byKey[key("learner1", "cellA")]; !ok {
		t.Error("expected a mastery row to be persisted")
	}
}

func TestProcessAnswer_UpdatesLinUCBModelWhenSnapshotExists(t *testing.T) {
	items, quiz := oneCellOneItem()
	e, _, masteries := newTestEngine(quiz, items)
	disableConvergence(t, e)
	masteries.byKey[key("learner1", "cellA")] = &domain.LearnerCellMastery{LearnerID: "learner1", CellID: "cellA"}

	ctx := context.Background()
	selectResult, err := e.SelectNext(ctx, "learner1", "quiz1")
	if err != nil {
		t.Fatalf("SelectNext failed: %v", err)
	}
	if selectResult.Item == nil {
		t.Fatal("expected an item from SelectNext")
	}

	modelStoreBefore, _ := e.Models.Get(ctx, selectResult.Item.ID)

	_, err = e.ProcessAnswer(ctx, "learner1", "quiz1", selectResult.Item.ID, "correct", 3000)
	if err != nil {
		t.Fatalf("ProcessAnswer failed: %v", err)
	}

	modelStoreAfter, _ := e.Models.Get(ctx, selectResult.Item.ID)
	if len(modelStoreAfter) == 0 {
		t.Error("expected a LinUCB model blob to be persisted after an answer with a bandit-mode decision snapshot")
	}
	_ = modelStoreBefore
}

func TestSelectNext_RescueCascadeWidensStarvedBand(t *testing.T) {
	items := &fakeItemStore{
		items: map[string]*domain.Item{
			"near":   {ID: "near", CellID: "cellA", A: 1, B: 0.0, Active: true, MaxExposure: 100},
			"plus5":  {ID: "plus5", CellID: "cellA", A: 1, B: 0.5, Active: true, MaxExposure: 100},
			"minus5": {ID: "minus5", CellID: "cellA", A: 1, B: -0.5, Active: true, MaxExposure: 100},
			"far":    {ID: "far", CellID: "cellA", A: 1, B: 0.7, Active: true, MaxExposure: 100},
		},
		byCell: map[string][]string{"cellA": {"near", "plus5", "minus5", "far"}},
	}
	quiz := &domain.QuizSession{
		ID: "quiz1", LearnerID: "learner1", MaxQuestions: 10, Exploration: 1.0,
		TopicMode: domain.TopicSelectionManual, SelectedCells: []string{"cellA"},
		QuizType: domain.QuizRegular, Status: domain.QuizStatusInProgress,
	}
	e, _, masteries := newTestEngine(quiz, items)
	masteries.byKey[key("learner1", "cellA")] = &domain.LearnerCellMastery{LearnerID: "learner1", CellID: "cellA"}

	// Q3's base half-width (0.4) only covers "near"; the cascade should
	// widen to 1.5x (0.6), which pulls in plus5/minus5 but still excludes
	// far (0.7), clearing the 3-item rescue threshold.
	pool, exhausted, err := e.itemsForTarget(context.Background(), *masteries.byKey[key("learner1", "cellA")], domain.QuizRegular, true)
	if err != nil {
		t.Fatalf("itemsForTarget failed: %v", err)
	}
	if exhausted {
		t.Fatal("expected the cascade to succeed at widen_1, not exhaust")
	}
	if len(pool) != 3 {
		t.Fatalf("got %d items, want 3 (near, plus5, minus5)", len(pool))
	}
	for _, it := range pool {
		if it.ID == "far" {
			t.Error("expected the widened band to still exclude far (B=0.7)")
		}
	}
}

func TestSelectNext_MarksCellMasteredWhenRescueCascadeExhausted(t *testing.T) {
	// A single far-off item (B=3.0) that no amount of band widening around
	// theta=0 will ever reach, and the cell's total unused pool (just this
	// one item) never clears the rescue threshold either.
	items := &fakeItemStore{
		items: map[string]*domain.Item{
			"far": {ID: "far", CellID: "cellA", A: 1, B: 3.0, Active: true, MaxExposure: 100},
		},
		byCell: map[string][]string{"cellA": {"far"}},
	}
	quiz := &domain.QuizSession{
		ID: "quiz1", LearnerID: "learner1", MaxQuestions: 10, Exploration: 1.0,
		TopicMode: domain.TopicSelectionManual, SelectedCells: []string{"cellA"},
		QuizType: domain.QuizRegular, Status: domain.QuizStatusInProgress,
	}
	e, _, masteries := newTestEngine(quiz, items)
	masteries.byKey[key("learner1", "cellA")] = &domain.LearnerCellMastery{LearnerID: "learner1", CellID: "cellA"}

	result, err := e.SelectNext(context.Background(), "learner1", "quiz1")
	if err != nil {
		t.Fatalf("SelectNext failed: %v", err)
	}
	if !result.Done {
		t.Fatalf("expected done once the rescue cascade exhausts the only cell, got %+v", result)
	}
	m := masteries.byKey[key("learner1", "cellA")]
	if m == nil || !m.Mastered() {
		t.Fatalf("expected cellA marked mastered/pool-exhausted, got %+v", m)
	}
}

func TestQuizStatus_ReportsAnsweredCount(t *testing.T) {
	items, quiz := oneCellOneItem()
	e, responses, _ := newTestEngine(quiz, items)
	responses.responses = append(responses.responses, domain.Response{LearnerID: "learner1", QuizID: "quiz1", ItemID: "item1"})

	status, err := e.QuizStatus(context.Background(), "learner1", "quiz1")
	if err != nil {
		t.Fatalf("QuizStatus failed: %v", err)
	}
	if status.Answered != 1 {
		t.Errorf("Answered = %d, want 1", status.Answered)
	}
	if status.MaxQuestions != quiz.MaxQuestions {
		t.Errorf("MaxQuestions = %d, want %d", status.MaxQuestions, quiz.MaxQuestions)
	}
}
