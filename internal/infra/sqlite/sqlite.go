// Package sqlite is the concrete persistence layer for the engine's six
// store interfaces (§6), backed by modernc.org/sqlite — a pure-Go SQLite
// driver, so the binary needs no cgo toolchain to embed a database.
//
// Key concepts for beginners:
//
//   - Migrations-as-statements: the schema is a plain list of `CREATE
//     TABLE IF NOT EXISTS` strings executed in order at startup. There's
//     no migration framework; adding a column means adding a new
//     `ALTER TABLE ... ADD COLUMN` statement to the list, guarded so it's
//     safe to re-run.
//   - Upsert via ON CONFLICT: SQLite's `INSERT ... ON CONFLICT DO UPDATE`
//     lets "insert if new, else update" be one round trip instead of a
//     read-then-write race.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/catengine/cat/internal/domain"

	_ "modernc.org/sqlite"
)

// float64Bytes/bytesFloat64 serialize the decision snapshot's 15-D feature
// context as a flat little-endian blob rather than a second table.
func float64Bytes(f float64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f))
	return buf[:]
}

func bytesFloat64(b []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

// DB wraps a pure-Go SQLite connection and implements every domain store
// interface the engine needs.
type DB struct {
	db *sql.DB
}

// Open connects to the SQLite database at dsn (a file path, or ":memory:"
// for tests) and applies migrations.
func Open(dsn string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", dsn, err)
	}
	// SQLite allows only one writer at a time; a single connection avoids
	// SQLITE_BUSY errors under the engine's per-item update contention (§5).
	sqlDB.SetMaxOpenConns(1)

	db := &DB{db: sqlDB}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Close releases the underlying connection.
func (db *DB) Close() error {
	return db.db.Close()
}

// Migrations returns the full schema migration statement list.
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS items (
			id                      TEXT PRIMARY KEY,
			cell_id                 TEXT NOT NULL,
			a                       REAL NOT NULL,
			b                       REAL NOT NULL,
			c                       REAL NOT NULL DEFAULT 0,
			model                   TEXT NOT NULL DEFAULT '2PL',
			exposure_count          INTEGER NOT NULL DEFAULT 0,
			max_exposure            INTEGER NOT NULL DEFAULT 0,
			last_used               TEXT,
			historical_correct_rate REAL NOT NULL DEFAULT 0,
			active                  INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE INDEX IF NOT EXISTS idx_items_cell ON items(cell_id, active)`,

		`CREATE TABLE IF NOT EXISTS cells (
			id                     TEXT PRIMARY KEY,
			aggregate_discriminate REAL NOT NULL DEFAULT 0,
			aggregate_difficulty   REAL NOT NULL DEFAULT 0,
			item_count             INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS learner_cell_mastery (
			learner_id      TEXT NOT NULL,
			cell_id         TEXT NOT NULL,
			theta           REAL NOT NULL DEFAULT 0,
			sem             REAL NOT NULL DEFAULT 1e308,
			confidence      REAL NOT NULL DEFAULT 0,
			response_count  INTEGER NOT NULL DEFAULT 0,
			mastery_status  INTEGER NOT NULL DEFAULT 0,
			selection_count INTEGER NOT NULL DEFAULT 0,
			last_estimated  TEXT NOT NULL DEFAULT (datetime('now')),
			PRIMARY KEY (learner_id, cell_id)
		)`,

		`CREATE TABLE IF NOT EXISTS responses (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			learner_id       TEXT NOT NULL,
			quiz_id          TEXT NOT NULL,
			item_id          TEXT NOT NULL,
			option           TEXT NOT NULL,
			is_correct       INTEGER NOT NULL,
			response_time_ms INTEGER NOT NULL,
			created_at       TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_responses_learner_cell ON responses(learner_id, item_id)`,
		`CREATE INDEX IF NOT EXISTS idx_responses_learner_quiz ON responses(learner_id, quiz_id)`,

		// One row per item, holding the unified LinUCB state buffer (§9
		// design note: one buffer is authoritative, not four split columns).
		`CREATE TABLE IF NOT EXISTS linucb_models (
			item_id    TEXT PRIMARY KEY,
			blob       BLOB NOT NULL,
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,

		`CREATE TABLE IF NOT EXISTS decision_snapshots (
			id         TEXT PRIMARY KEY,
			learner_id TEXT NOT NULL,
			quiz_id    TEXT NOT NULL,
			item_id    TEXT NOT NULL,
			context    BLOB NOT NULL,
			ucb        REAL NOT NULL,
			mu         REAL NOT NULL,
			sigma      REAL NOT NULL,
			theta      REAL NOT NULL,
			algorithm  TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_lookup ON decision_snapshots(learner_id, quiz_id, item_id, created_at)`,

		`CREATE TABLE IF NOT EXISTS quiz_sessions (
			id             TEXT PRIMARY KEY,
			learner_id     TEXT NOT NULL,
			max_questions  INTEGER NOT NULL,
			exploration    REAL NOT NULL DEFAULT 1.0,
			topic_mode     TEXT NOT NULL DEFAULT 'system',
			selected_cells TEXT NOT NULL DEFAULT '',
			quiz_type      TEXT NOT NULL DEFAULT 'regular',
			status         TEXT NOT NULL DEFAULT 'in_progress',
			started_at     TEXT NOT NULL DEFAULT (datetime('now')),
			completed_at   TEXT
		)`,
	}
}

func (db *DB) migrate() error {
	for _, stmt := range Migrations() {
		if _, err := db.db.Exec(stmt); err != nil {
			return fmt.Errorf("sqlite: migration failed: %w", err)
		}
	}
	return nil
}

const sqliteTimeLayout = "2006-01-02 15:04:05"

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(sqliteTimeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ─── ItemStore ──────────────────────────────────────────────────────────────

func (db *DB) ItemsByCell(ctx context.Context, cellID string, filter domain.ItemFilter) ([]domain.Item, error) {
	query := `SELECT id, cell_id, a, b, c, model, exposure_count, max_exposure, last_used, historical_correct_rate, active
		FROM items WHERE cell_id = ?`
	args := []any{cellID}
	if filter.ActiveOnly {
		query += ` AND active = 1`
	}
	if filter.BandSet {
		query += ` AND b >= ? AND b <= ?`
		args = append(args, filter.MinB, filter.MaxB)
	}

	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: ItemsByCell: %w", err)
	}
	defer rows.Close()

	var out []domain.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		if filter.Exclude[it.ID] {
			continue
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (domain.Item, error) {
	var it domain.Item
	var lastUsed sql.NullString
	var activeInt int
	if err := row.Scan(&it.ID, &it.CellID, &it.A, &it.B, &it.C, &it.Model, &it.ExposureCount, &it.MaxExposure, &lastUsed, &it.HistoricalCorrectRate, &activeInt); err != nil {
		return domain.Item{}, fmt.Errorf("sqlite: scanning item: %w", err)
	}
	it.Active = activeInt == 1
	if lastUsed.Valid {
		t := parseTime(lastUsed.String)
		it.LastUsed = &t
	}
	return it, nil
}

func (db *DB) GetItem(ctx context.Context, itemID string) (*domain.Item, error) {
	row := db.db.QueryRowContext(ctx, `SELECT id, cell_id, a, b, c, model, exposure_count, max_exposure, last_used, historical_correct_rate, active
		FROM items WHERE id = ?`, itemID)
	it, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (db *DB) IncrementExposure(ctx context.Context, itemID string, at time.Time) error {
	_, err := db.db.ExecContext(ctx, `UPDATE items SET exposure_count = exposure_count + 1, last_used = ? WHERE id = ?`, formatTime(at), itemID)
	if err != nil {
		return fmt.Errorf("sqlite: IncrementExposure: %w", err)
	}
	return nil
}

func (db *DB) Cells(ctx context.Context, cellIDs []string) ([]domain.Cell, error) {
	if len(cellIDs) == 0 {
		rows, err := db.db.QueryContext(ctx, `SELECT id, aggregate_discriminate, aggregate_difficulty, item_count FROM cells`)
		if err != nil {
			return nil, fmt.Errorf("sqlite: Cells: %w", err)
		}
		defer rows.Close()
		return scanCells(rows)
	}
	placeholders, args := inClause(cellIDs)
	rows, err := db.db.QueryContext(ctx, `SELECT id, aggregate_discriminate, aggregate_difficulty, item_count FROM cells WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: Cells: %w", err)
	}
	defer rows.Close()
	return scanCells(rows)
}

func scanCells(rows *sql.Rows) ([]domain.Cell, error) {
	var out []domain.Cell
	for rows.Next() {
		var c domain.Cell
		if err := rows.Scan(&c.ID, &c.AggregateDiscriminate, &c.AggregateDifficulty, &c.ItemCount); err != nil {
			return nil, fmt.Errorf("sqlite: scanning cell: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func inClause(ids []string) (string, []any) {
	placeholders := ""
	args := make([]any, len(ids))
	for i, id := range ids {
		if i > 0 {
			placeholders += ","
		}
		placeholders += "?"
		args[i] = id
	}
	return placeholders, args
}

// ─── ResponseStore ──────────────────────────────────────────────────────────

func (db *DB) AppendResponse(ctx context.Context, r domain.Response) error {
	correct := 0
	if r.IsCorrect {
		correct = 1
	}
	_, err := db.db.ExecContext(ctx, `INSERT INTO responses (learner_id, quiz_id, item_id, option, is_correct, response_time_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, r.LearnerID, r.QuizID, r.ItemID, r.Option, correct, r.ResponseTimeMs, formatTime(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("sqlite: AppendResponse: %w", err)
	}
	return nil
}

func (db *DB) ResponsesByCell(ctx context.Context, learnerID, cellID string) ([]domain.Response, error) {
	rows, err := db.db.QueryContext(ctx, `SELECT r.learner_id, r.quiz_id, r.item_id, r.option, r.is_correct, r.response_time_ms, r.created_at
		FROM responses r JOIN items i ON i.id = r.item_id
		WHERE r.learner_id = ? AND i.cell_id = ? ORDER BY r.created_at ASC`, learnerID, cellID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: ResponsesByCell: %w", err)
	}
	defer rows.Close()

	var out []domain.Response
	for rows.Next() {
		var r domain.Response
		var correct int
		var createdStr string
		if err := rows.Scan(&r.LearnerID, &r.QuizID, &r.ItemID, &r.Option, &correct, &r.ResponseTimeMs, &createdStr); err != nil {
			return nil, fmt.Errorf("sqlite: scanning response: %w", err)
		}
		r.IsCorrect = correct == 1
		r.CreatedAt = parseTime(createdStr)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (db *DB) CountByQuiz(ctx context.Context, learnerID, quizID string) (int, error) {
	var n int
	err := db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM responses WHERE learner_id = ? AND quiz_id = ?`, learnerID, quizID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: CountByQuiz: %w", err)
	}
	return n, nil
}

// ─── MasteryStore ───────────────────────────────────────────────────────────

func (db *DB) GetMastery(ctx context.Context, learnerID, cellID string) (*domain.LearnerCellMastery, error) {
	row := db.db.QueryRowContext(ctx, `SELECT learner_id, cell_id, theta, sem, confidence, response_count, mastery_status, selection_count, last_estimated
		FROM learner_cell_mastery WHERE learner_id = ? AND cell_id = ?`, learnerID, cellID)
	m, err := scanMastery(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func scanMastery(row rowScanner) (domain.LearnerCellMastery, error) {
	var m domain.LearnerCellMastery
	var lastEstimated string
	if err := row.Scan(&m.LearnerID, &m.CellID, &m.Theta, &m.SEM, &m.Confidence, &m.ResponseCount, &m.MasteryStatus, &m.SelectionCount, &lastEstimated); err != nil {
		return domain.LearnerCellMastery{}, fmt.Errorf("sqlite: scanning mastery: %w", err)
	}
	m.LastEstimated = parseTime(lastEstimated)
	return m, nil
}

func (db *DB) ListMasteries(ctx context.Context, learnerID string, cellIDs []string) ([]domain.LearnerCellMastery, error) {
	query := `SELECT learner_id, cell_id, theta, sem, confidence, response_count, mastery_status, selection_count, last_estimated
		FROM learner_cell_mastery WHERE learner_id = ?`
	args := []any{learnerID}
	if len(cellIDs) > 0 {
		placeholders, cellArgs := inClause(cellIDs)
		query += ` AND cell_id IN (` + placeholders + `)`
		args = append(args, cellArgs...)
	}
	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: ListMasteries: %w", err)
	}
	defer rows.Close()

	var out []domain.LearnerCellMastery
	for rows.Next() {
		m, err := scanMastery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (db *DB) UpsertMastery(ctx context.Context, m domain.LearnerCellMastery) error {
	_, err := db.db.ExecContext(ctx, `INSERT INTO learner_cell_mastery
			(learner_id, cell_id, theta, sem, confidence, response_count, mastery_status, selection_count, last_estimated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(learner_id, cell_id) DO UPDATE SET
			theta           = excluded.theta,
			sem             = excluded.sem,
			confidence      = excluded.confidence,
			response_count  = excluded.response_count,
			mastery_status  = excluded.mastery_status,
			selection_count = excluded.selection_count,
			last_estimated  = excluded.last_estimated`,
		m.LearnerID, m.CellID, m.Theta, m.SEM, m.Confidence, m.ResponseCount, m.MasteryStatus, m.SelectionCount, formatTime(m.LastEstimated))
	if err != nil {
		return fmt.Errorf("sqlite: UpsertMastery: %w", err)
	}
	return nil
}

// ─── ModelStore ─────────────────────────────────────────────────────────────

func (db *DB) Get(ctx context.Context, itemID string) ([]byte, error) {
	var blob []byte
	err := db.db.QueryRowContext(ctx, `SELECT blob FROM linucb_models WHERE item_id = ?`, itemID).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: Get model: %w", err)
	}
	return blob, nil
}

func (db *DB) Put(ctx context.Context, itemID string, blob []byte) error {
	_, err := db.db.ExecContext(ctx, `INSERT INTO linucb_models (item_id, blob, updated_at) VALUES (?, ?, datetime('now'))
		ON CONFLICT(item_id) DO UPDATE SET blob = excluded.blob, updated_at = datetime('now')`, itemID, blob)
	if err != nil {
		return fmt.Errorf("sqlite: Put model: %w", err)
	}
	return nil
}

// ─── SnapshotStore ──────────────────────────────────────────────────────────

func (db *DB) WriteSnapshot(ctx context.Context, s domain.DecisionSnapshot) error {
	ctxBlob := make([]byte, 0, len(s.Context)*8)
	for _, v := range s.Context {
		ctxBlob = append(ctxBlob, float64Bytes(v)...)
	}
	_, err := db.db.ExecContext(ctx, `INSERT INTO decision_snapshots (id, learner_id, quiz_id, item_id, context, ucb, mu, sigma, theta, algorithm, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.LearnerID, s.QuizID, s.ItemID, ctxBlob, s.UCB, s.Mu, s.Sigma, s.Theta, s.Algorithm, formatTime(s.CreatedAt))
	if err != nil {
		return fmt.Errorf("sqlite: WriteSnapshot: %w", err)
	}
	return nil
}

func (db *DB) LatestSnapshot(ctx context.Context, learnerID, quizID, itemID string) (*domain.DecisionSnapshot, error) {
	row := db.db.QueryRowContext(ctx, `SELECT id, learner_id, quiz_id, item_id, context, ucb, mu, sigma, theta, algorithm, created_at
		FROM decision_snapshots WHERE learner_id = ? AND quiz_id = ? AND item_id = ? ORDER BY created_at DESC LIMIT 1`, learnerID, quizID, itemID)

	var s domain.DecisionSnapshot
	var ctxBlob []byte
	var createdStr string
	err := row.Scan(&s.ID, &s.LearnerID, &s.QuizID, &s.ItemID, &ctxBlob, &s.UCB, &s.Mu, &s.Sigma, &s.Theta, &s.Algorithm, &createdStr)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: LatestSnapshot: %w", err)
	}
	s.CreatedAt = parseTime(createdStr)
	for i := 0; i < len(s.Context) && (i+1)*8 <= len(ctxBlob); i++ {
		s.Context[i] = bytesFloat64(ctxBlob[i*8 : (i+1)*8])
	}
	return &s, nil
}

// RecentSnapshots returns the most recent limit decision snapshots for a
// session, newest first. Used by the stopping controller's diminishing-
// returns rule, which needs the KL information of the last few selections.
func (db *DB) RecentSnapshots(ctx context.Context, learnerID, quizID string, limit int) ([]domain.DecisionSnapshot, error) {
	rows, err := db.db.QueryContext(ctx, `SELECT id, learner_id, quiz_id, item_id, context, ucb, mu, sigma, theta, algorithm, created_at
		FROM decision_snapshots WHERE learner_id = ? AND quiz_id = ? ORDER BY created_at DESC LIMIT ?`, learnerID, quizID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: RecentSnapshots: %w", err)
	}
	defer rows.Close()

	var out []domain.DecisionSnapshot
	for rows.Next() {
		var s domain.DecisionSnapshot
		var ctxBlob []byte
		var createdStr string
		if err := rows.Scan(&s.ID, &s.LearnerID, &s.QuizID, &s.ItemID, &ctxBlob, &s.UCB, &s.Mu, &s.Sigma, &s.Theta, &s.Algorithm, &createdStr); err != nil {
			return nil, fmt.Errorf("sqlite: scanning snapshot: %w", err)
		}
		s.CreatedAt = parseTime(createdStr)
		for i := 0; i < len(s.Context) && (i+1)*8 <= len(ctxBlob); i++ {
			s.Context[i] = bytesFloat64(ctxBlob[i*8 : (i+1)*8])
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ─── QuizStore ──────────────────────────────────────────────────────────────

func (db *DB) GetQuiz(ctx context.Context, quizID string) (*domain.QuizSession, error) {
	row := db.db.QueryRowContext(ctx, `SELECT id, learner_id, max_questions, exploration, topic_mode, selected_cells, quiz_type, status, started_at, completed_at
		FROM quiz_sessions WHERE id = ?`, quizID)

	var q domain.QuizSession
	var topicMode, selectedCells, quizType, status, startedStr string
	var completedStr sql.NullString
	err := row.Scan(&q.ID, &q.LearnerID, &q.MaxQuestions, &q.Exploration, &topicMode, &selectedCells, &quizType, &status, &startedStr, &completedStr)
	if err != nil {
		return nil, fmt.Errorf("sqlite: GetQuiz: %w", err)
	}
	q.TopicMode = domain.TopicSelectionMode(topicMode)
	q.SelectedCells = splitCells(selectedCells)
	q.QuizType = domain.QuizType(quizType)
	q.Status = domain.QuizStatus(status)
	q.StartedAt = parseTime(startedStr)
	if completedStr.Valid {
		t := parseTime(completedStr.String)
		q.CompletedAt = &t
	}
	return &q, nil
}

func (db *DB) UpdateQuizStatus(ctx context.Context, quizID string, status domain.QuizStatus, at time.Time) error {
	var completedAt any
	if status == domain.QuizStatusCompleted || status == domain.QuizStatusAbandoned {
		completedAt = formatTime(at)
	}
	_, err := db.db.ExecContext(ctx, `UPDATE quiz_sessions SET status = ?, completed_at = ? WHERE id = ?`, string(status), completedAt, quizID)
	if err != nil {
		return fmt.Errorf("sqlite: UpdateQuizStatus: %w", err)
	}
	return nil
}

// InsertQuiz is a convenience used by cmd/catctl and tests to seed a
// session; the engine itself only ever reads via GetQuiz/UpdateQuizStatus.
func (db *DB) InsertQuiz(ctx context.Context, q domain.QuizSession) error {
	_, err := db.db.ExecContext(ctx, `INSERT INTO quiz_sessions (id, learner_id, max_questions, exploration, topic_mode, selected_cells, quiz_type, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.LearnerID, q.MaxQuestions, q.Exploration, string(q.TopicMode), joinCells(q.SelectedCells), string(q.QuizType), string(q.Status), formatTime(q.StartedAt))
	if err != nil {
		return fmt.Errorf("sqlite: InsertQuiz: %w", err)
	}
	return nil
}

// InsertItem is a convenience used by cmd/catctl and tests to seed an item.
func (db *DB) InsertItem(ctx context.Context, it domain.Item) error {
	active := 0
	if it.Active {
		active = 1
	}
	_, err := db.db.ExecContext(ctx, `INSERT INTO items (id, cell_id, a, b, c, model, exposure_count, max_exposure, historical_correct_rate, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.ID, it.CellID, it.A, it.B, it.C, string(it.Model), it.ExposureCount, it.MaxExposure, it.HistoricalCorrectRate, active)
	if err != nil {
		return fmt.Errorf("sqlite: InsertItem: %w", err)
	}
	return nil
}

// DistinctCellIDs returns every cell_id referenced by the item bank. Used
// by batch tooling that needs to walk every cell without a populated
// cells table.
func (db *DB) DistinctCellIDs(ctx context.Context) ([]string, error) {
	rows, err := db.db.QueryContext(ctx, `SELECT DISTINCT cell_id FROM items ORDER BY cell_id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: DistinctCellIDs: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scanning cell id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ItemCorrectRate aggregates every recorded response to itemID across all
// learners and returns the empirical correct rate and the sample size,
// used to refresh an item's historical_correct_rate during recalibration.
func (db *DB) ItemCorrectRate(ctx context.Context, itemID string) (float64, int, error) {
	var correct, total int
	err := db.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(is_correct), 0), COUNT(*) FROM responses WHERE item_id = ?`, itemID).Scan(&correct, &total)
	if err != nil {
		return 0, 0, fmt.Errorf("sqlite: ItemCorrectRate: %w", err)
	}
	if total == 0 {
		return 0, 0, nil
	}
	return float64(correct) / float64(total), total, nil
}

// UpdateHistoricalCorrectRate overwrites an item's calibration-stats field
// without touching its IRT parameters or exposure counters.
func (db *DB) UpdateHistoricalCorrectRate(ctx context.Context, itemID string, rate float64) error {
	_, err := db.db.ExecContext(ctx, `UPDATE items SET historical_correct_rate = ? WHERE id = ?`, rate, itemID)
	if err != nil {
		return fmt.Errorf("sqlite: UpdateHistoricalCorrectRate: %w", err)
	}
	return nil
}

func joinCells(cells []string) string {
	out := ""
	for i, c := range cells {
		if i > 0 {
			out += ","
		}
		out += c
	}
	return out
}

func splitCells(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return out
}
