package domain

import (
	"context"
	"time"
)

// ─── Persistence Interfaces ─────────────────────────────────────────────────
// These interfaces define the boundary between the core engine and the
// durable store (§6). Implementations live outside the core (internal/infra);
// the engine only ever depends on these.

// ItemFilter narrows a cell's item pool before candidate scoring.
type ItemFilter struct {
	ActiveOnly bool
	Exclude    map[string]bool // item IDs already administered this session
	MinB, MaxB float64         // difficulty band; both zero means unbounded
	BandSet    bool            // whether MinB/MaxB should be applied
}

// ItemStore fetches items by cell and updates exposure counters.
type ItemStore interface {
	ItemsByCell(ctx context.Context, cellID string, filter ItemFilter) ([]Item, error)
	GetItem(ctx context.Context, itemID string) (*Item, error)
	IncrementExposure(ctx context.Context, itemID string, at time.Time) error
	Cells(ctx context.Context, cellIDs []string) ([]Cell, error)
}

// ResponseStore appends responses and reads ordered per-learner history.
type ResponseStore interface {
	AppendResponse(ctx context.Context, r Response) error
	ResponsesByCell(ctx context.Context, learnerID, cellID string) ([]Response, error)
	CountByQuiz(ctx context.Context, learnerID, quizID string) (int, error)
}

// MasteryStore upserts LearnerCellMastery rows.
type MasteryStore interface {
	GetMastery(ctx context.Context, learnerID, cellID string) (*LearnerCellMastery, error)
	ListMasteries(ctx context.Context, learnerID string, cellIDs []string) ([]LearnerCellMastery, error)
	UpsertMastery(ctx context.Context, m LearnerCellMastery) error
}

// ModelStore gets/puts per-item LinUCB model state, binary-serialized (§4.3).
type ModelStore interface {
	Get(ctx context.Context, itemID string) ([]byte, error)
	Put(ctx context.Context, itemID string, blob []byte) error
}

// SnapshotStore writes decision snapshots and reads the most recent one for
// a (learner, quiz, item) triple, or the most recent handful for a session.
type SnapshotStore interface {
	WriteSnapshot(ctx context.Context, s DecisionSnapshot) error
	LatestSnapshot(ctx context.Context, learnerID, quizID, itemID string) (*DecisionSnapshot, error)
	RecentSnapshots(ctx context.Context, learnerID, quizID string, limit int) ([]DecisionSnapshot, error)
}

// QuizStore reads session settings and updates status/timestamps.
type QuizStore interface {
	GetQuiz(ctx context.Context, quizID string) (*QuizSession, error)
	UpdateQuizStatus(ctx context.Context, quizID string, status QuizStatus, at time.Time) error
}
