package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mikedesigns-nvisia/spiral-journal/internal/types"
	_ "modernc.org/sqlite"
)

// Compile-time interface check
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore is the SQLite-backed core state store and offline queue.
type SQLiteStore struct {
	db *sql.DB

	// One mutex per core id serializes same-core ApplyUpdate calls;
	// different cores proceed in parallel.
	coreMu map[types.CoreID]*sync.Mutex
}

// NewSQLiteStore creates a new SQLiteStore instance.
// It initializes the database with WAL mode, applies pragmas, runs
// migrations, and seeds the fixed core set if missing.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		coreMu: make(map[types.CoreID]*sync.Mutex, len(types.AllCoreIDs())),
	}
	for _, id := range types.AllCoreIDs() {
		s.coreMu[id] = &sync.Mutex{}
	}

	if err := s.seedCores(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed cores: %w", err)
	}

	return s, nil
}

// enablePragmas sets SQLite pragmas for optimal performance and safety.
func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// seedCores inserts the fixed default core set on cold start. Existing cores
// are left untouched.
func (s *SQLiteStore) seedCores(ctx context.Context) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, id := range types.AllCoreIDs() {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO cores (id, current_level, previous_level, trend, last_updated, milestones)
			VALUES (?, ?, ?, ?, ?, '[]')
			ON CONFLICT(id) DO NOTHING
		`, string(id), types.DefaultCoreLevel, types.DefaultCoreLevel, string(types.TrendStable), now)
		if err != nil {
			return err
		}
	}
	return nil
}

// --- Cores ---

// GetAllCores returns a snapshot of every core in canonical order.
func (s *SQLiteStore) GetAllCores(ctx context.Context) ([]types.EmotionalCore, error) {
	cores := make([]types.EmotionalCore, 0, len(types.AllCoreIDs()))
	for _, id := range types.AllCoreIDs() {
		core, err := s.GetCore(ctx, id)
		if err != nil {
			return nil, err
		}
		cores = append(cores, *core)
	}
	return cores, nil
}

// GetCore returns the current state of one core.
func (s *SQLiteStore) GetCore(ctx context.Context, id types.CoreID) (*types.EmotionalCore, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, current_level, previous_level, trend, last_updated, milestones
		FROM cores WHERE id = ?
	`, string(id))
	return scanCore(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCore(row rowScanner) (*types.EmotionalCore, error) {
	var core types.EmotionalCore
	var id, trend, lastUpdated, milestones string
	if err := row.Scan(&id, &core.CurrentLevel, &core.PreviousLevel, &trend, &lastUpdated, &milestones); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCoreNotFound
		}
		return nil, err
	}
	core.ID = types.CoreID(id)
	core.Trend = types.Trend(trend)

	ts, err := time.Parse(time.RFC3339Nano, lastUpdated)
	if err != nil {
		return nil, fmt.Errorf("parse last_updated: %w", err)
	}
	core.LastUpdated = ts

	if err := json.Unmarshal([]byte(milestones), &core.Milestones); err != nil {
		return nil, fmt.Errorf("parse milestones: %w", err)
	}
	return &core, nil
}

// ApplyUpdate durably applies one core update. The insert into core_updates
// is the idempotence boundary: a second apply of the same (entryID, coreID)
// pair is a no-op. The core row mutation happens in the same transaction, so
// readers never observe a partially-applied state.
func (s *SQLiteStore) ApplyUpdate(ctx context.Context, update types.CoreUpdate) (bool, error) {
	mu, ok := s.coreMu[update.CoreID]
	if !ok {
		return false, ErrCoreNotFound
	}
	mu.Lock()
	defer mu.Unlock()

	if update.NewLevel < 0.0 || update.NewLevel > 1.0 {
		return false, fmt.Errorf("core level %f out of bounds", update.NewLevel)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	achieved, err := json.Marshal(nonNil(update.MilestonesAchieved))
	if err != nil {
		return false, err
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO core_updates (entry_id, core_id, previous_level, new_level, trend_after, milestones_achieved, applied_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(entry_id, core_id) DO NOTHING
	`, update.EntryID, string(update.CoreID), update.PreviousLevel, update.NewLevel,
		string(update.TrendAfter), string(achieved), update.AppliedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return false, err
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if inserted == 0 {
		// Already applied; replayed entries land here.
		return false, nil
	}

	row := tx.QueryRowContext(ctx, `
		SELECT id, current_level, previous_level, trend, last_updated, milestones
		FROM cores WHERE id = ?
	`, string(update.CoreID))
	core, err := scanCore(row)
	if err != nil {
		return false, err
	}

	// lastUpdated is monotonically non-decreasing per core.
	lastUpdated := update.AppliedAt.UTC()
	if core.LastUpdated.After(lastUpdated) {
		lastUpdated = core.LastUpdated
	}

	milestones, err := json.Marshal(mergeMilestones(core.Milestones, update.MilestonesAchieved))
	if err != nil {
		return false, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE cores
		SET current_level = ?, previous_level = ?, trend = ?, last_updated = ?, milestones = ?
		WHERE id = ?
	`, update.NewLevel, update.PreviousLevel, string(update.TrendAfter),
		lastUpdated.Format(time.RFC3339Nano), string(milestones), string(update.CoreID))
	if err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// GetUpdatesForEntry returns the durable core updates recorded for an entry.
func (s *SQLiteStore) GetUpdatesForEntry(ctx context.Context, entryID string) ([]types.CoreUpdate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entry_id, core_id, previous_level, new_level, trend_after, milestones_achieved, applied_at
		FROM core_updates WHERE entry_id = ? ORDER BY core_id
	`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var updates []types.CoreUpdate
	for rows.Next() {
		var u types.CoreUpdate
		var coreID, trendAfter, achieved, appliedAt string
		if err := rows.Scan(&u.EntryID, &coreID, &u.PreviousLevel, &u.NewLevel, &trendAfter, &achieved, &appliedAt); err != nil {
			return nil, err
		}
		u.CoreID = types.CoreID(coreID)
		u.TrendAfter = types.Trend(trendAfter)
		if err := json.Unmarshal([]byte(achieved), &u.MilestonesAchieved); err != nil {
			return nil, fmt.Errorf("parse milestones_achieved: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, appliedAt)
		if err != nil {
			return nil, fmt.Errorf("parse applied_at: %w", err)
		}
		u.AppliedAt = ts
		updates = append(updates, u)
	}
	return updates, rows.Err()
}

// --- Journal entries ---

// CreateEntry persists an immutable journal entry with its initial status.
func (s *SQLiteStore) CreateEntry(ctx context.Context, entry types.JournalEntry, status types.AnalysisStatus) error {
	moods, err := json.Marshal(nonNilStrings(entry.Moods))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO journal_entries (id, content, moods, created_at, analysis_status)
		VALUES (?, ?, ?, ?, ?)
	`, entry.ID, entry.Content, string(moods), entry.CreatedAt.UTC().Format(time.RFC3339Nano), string(status))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateEntry
		}
		return err
	}
	return nil
}

// GetEntry returns one journal entry with its analysis status.
func (s *SQLiteStore) GetEntry(ctx context.Context, id string) (*types.StoredEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, content, moods, created_at, analysis_status
		FROM journal_entries WHERE id = ?
	`, id)
	return scanEntry(row)
}

// ListEntries returns entries newest first, up to limit.
func (s *SQLiteStore) ListEntries(ctx context.Context, limit int) ([]types.StoredEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, moods, created_at, analysis_status
		FROM journal_entries ORDER BY created_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []types.StoredEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

func scanEntry(row rowScanner) (*types.StoredEntry, error) {
	var e types.StoredEntry
	var moods, createdAt, status string
	if err := row.Scan(&e.ID, &e.Content, &moods, &createdAt, &status); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal([]byte(moods), &e.Moods); err != nil {
		return nil, fmt.Errorf("parse moods: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	e.CreatedAt = ts
	e.AnalysisStatus = types.AnalysisStatus(status)
	return &e, nil
}

// SetEntryStatus records an entry's position in the analysis lifecycle.
func (s *SQLiteStore) SetEntryStatus(ctx context.Context, id string, status types.AnalysisStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE journal_entries SET analysis_status = ? WHERE id = ?
	`, string(status), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// --- Offline queue ---

// Enqueue appends an entry to the offline queue. Re-enqueueing an already
// queued entry is a no-op so its original FIFO position is preserved.
func (s *SQLiteStore) Enqueue(ctx context.Context, entryID string, enqueuedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO offline_queue (entry_id, enqueued_at, attempts, abandoned)
		VALUES (?, ?, 0, 0)
		ON CONFLICT(entry_id) DO NOTHING
	`, entryID, enqueuedAt.UTC().Format(time.RFC3339Nano))
	return err
}

// PendingQueue returns non-abandoned items in FIFO order with their payloads.
func (s *SQLiteStore) PendingQueue(ctx context.Context, limit int) ([]types.QueueItem, error) {
	return s.queryQueue(ctx, `
		SELECT q.entry_id, q.enqueued_at, q.attempts, q.abandoned,
		       e.content, e.moods, e.created_at
		FROM offline_queue q
		JOIN journal_entries e ON e.id = q.entry_id
		WHERE q.abandoned = 0
		ORDER BY q.enqueued_at ASC, q.rowid ASC
		LIMIT ?
	`, limit)
}

// ListQueue returns every queue item, abandoned included, in FIFO order.
func (s *SQLiteStore) ListQueue(ctx context.Context) ([]types.QueueItem, error) {
	return s.queryQueue(ctx, `
		SELECT q.entry_id, q.enqueued_at, q.attempts, q.abandoned,
		       e.content, e.moods, e.created_at
		FROM offline_queue q
		JOIN journal_entries e ON e.id = q.entry_id
		ORDER BY q.enqueued_at ASC, q.rowid ASC
	`)
}

func (s *SQLiteStore) queryQueue(ctx context.Context, query string, args ...any) ([]types.QueueItem, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []types.QueueItem
	for rows.Next() {
		var item types.QueueItem
		var enqueuedAt, moods, createdAt string
		var abandoned int
		if err := rows.Scan(&item.EntryID, &enqueuedAt, &item.Attempts, &abandoned,
			&item.Entry.Content, &moods, &createdAt); err != nil {
			return nil, err
		}
		item.Entry.ID = item.EntryID
		item.Abandoned = abandoned != 0

		ts, err := time.Parse(time.RFC3339Nano, enqueuedAt)
		if err != nil {
			return nil, fmt.Errorf("parse enqueued_at: %w", err)
		}
		item.EnqueuedAt = ts

		if err := json.Unmarshal([]byte(moods), &item.Entry.Moods); err != nil {
			return nil, fmt.Errorf("parse moods: %w", err)
		}
		created, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		item.Entry.CreatedAt = created

		items = append(items, item)
	}
	return items, rows.Err()
}

// Dequeue removes an entry from the queue after successful end-to-end
// application.
func (s *SQLiteStore) Dequeue(ctx context.Context, entryID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM offline_queue WHERE entry_id = ?`, entryID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotQueued
	}
	return nil
}

// IncrementAttempts bumps the item's attempt counter and returns the new value.
func (s *SQLiteStore) IncrementAttempts(ctx context.Context, entryID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE offline_queue SET attempts = attempts + 1 WHERE entry_id = ?
	`, entryID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrNotQueued
	}

	var attempts int
	err = s.db.QueryRowContext(ctx, `
		SELECT attempts FROM offline_queue WHERE entry_id = ?
	`, entryID).Scan(&attempts)
	if err != nil {
		return 0, err
	}
	return attempts, nil
}

// MarkAbandoned flags a queue item as permanently failed. The item stays
// visible so the caller can surface "analysis unavailable".
func (s *SQLiteStore) MarkAbandoned(ctx context.Context, entryID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE offline_queue SET abandoned = 1 WHERE entry_id = ?
	`, entryID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotQueued
	}
	return nil
}

// QueueDepth returns the number of pending (non-abandoned) queue items.
func (s *SQLiteStore) QueueDepth(ctx context.Context) (int64, error) {
	var depth int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM offline_queue WHERE abandoned = 0
	`).Scan(&depth)
	return depth, err
}

// --- helpers ---

func mergeMilestones(existing, achieved []float64) []float64 {
	merged := append([]float64{}, existing...)
	for _, m := range achieved {
		present := false
		for _, e := range merged {
			if e == m {
				present = true
				break
			}
		}
		if !present {
			merged = append(merged, m)
		}
	}
	return merged
}

func nonNil(v []float64) []float64 {
	if v == nil {
		return []float64{}
	}
	return v
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
