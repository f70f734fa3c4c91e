package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency. Grouped by the §7
// error kind each belongs to.

var (
	// InvalidInput — fatal for the single call, never silently clamped
	// except where §4 explicitly prescribes clamping.
	ErrInvalidContext       = errors.New("context vector dimension must be 15")
	ErrInvalidItemParams    = errors.New("item guessing parameter c out of [0, 0.35]")
	ErrRewardWeightsInvalid = errors.New("reward weights must sum to 1 within tolerance")
	ErrNonFiniteReward      = errors.New("reward is not finite")
	ErrConfigInvalid        = errors.New("configuration value out of allowed range")

	// NumericalInstability — LinUCB update produced non-finite entries;
	// the prior model is kept and the update rejected.
	ErrNumericalInstability = errors.New("linucb update produced non-finite state")
	ErrMatrixDriftExceeded  = errors.New("linucb A * A^-1 drifted past tolerance")

	// PoolExhausted — no candidates remain in a cell at any relaxation step.
	ErrPoolExhausted = errors.New("no candidate items remain in cell")

	// Missing Snapshot — answer arrived with no matching decision snapshot.
	ErrSnapshotMissing = errors.New("no decision snapshot for this item administration")

	// StoreError — passed through with enough context to retry.
	ErrStoreUnavailable = errors.New("backing store call failed")

	// Serialization
	ErrCorruptModelBlob = errors.New("linucb model blob has wrong length or is corrupt")
)
