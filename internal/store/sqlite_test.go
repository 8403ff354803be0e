package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mikedesigns-nvisia/spiral-journal/internal/types"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustCreateEntry(t *testing.T, s *SQLiteStore, id string) {
	t.Helper()
	err := s.CreateEntry(context.Background(), types.JournalEntry{
		ID:        id,
		Content:   "Test entry content",
		Moods:     []string{"calm"},
		CreatedAt: time.Now().UTC(),
	}, types.StatusPending)
	if err != nil {
		t.Fatalf("failed to create entry %s: %v", id, err)
	}
}

func TestColdStart_SeedsDefaultCores(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cores, err := s.GetAllCores(ctx)
	if err != nil {
		t.Fatalf("failed to get cores: %v", err)
	}

	if len(cores) != len(types.AllCoreIDs()) {
		t.Fatalf("expected %d cores, got %d", len(types.AllCoreIDs()), len(cores))
	}
	for _, core := range cores {
		if core.CurrentLevel != types.DefaultCoreLevel {
			t.Errorf("core %s level %f, want %f", core.ID, core.CurrentLevel, types.DefaultCoreLevel)
		}
		if core.Trend != types.TrendStable {
			t.Errorf("core %s trend %s, want stable", core.ID, core.Trend)
		}
		if len(core.Milestones) != 0 {
			t.Errorf("core %s has milestones %v on cold start", core.ID, core.Milestones)
		}
	}
}

func TestSeedCores_IdempotentAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	mustCreateEntry(t, s, "entry-1")

	applied, err := s.ApplyUpdate(ctx, types.CoreUpdate{
		EntryID:            "entry-1",
		CoreID:             types.CoreOptimism,
		PreviousLevel:      0.5,
		NewLevel:           0.7,
		TrendAfter:         types.TrendRising,
		MilestonesAchieved: []float64{0.5},
		AppliedAt:          time.Now().UTC(),
	})
	if err != nil || !applied {
		t.Fatalf("apply failed: applied=%v err=%v", applied, err)
	}
	s.Close()

	// Reopening must not reset evolved state back to defaults.
	s, err = NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer s.Close()

	core, err := s.GetCore(ctx, types.CoreOptimism)
	if err != nil {
		t.Fatalf("failed to get core: %v", err)
	}
	if core.CurrentLevel != 0.7 {
		t.Errorf("reopen reset core level: got %f, want 0.7", core.CurrentLevel)
	}
}

func TestApplyUpdate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreateEntry(t, s, "entry-1")

	update := types.CoreUpdate{
		EntryID:            "entry-1",
		CoreID:             types.CoreResilience,
		PreviousLevel:      0.5,
		NewLevel:           0.65,
		TrendAfter:         types.TrendRising,
		MilestonesAchieved: []float64{0.5},
		AppliedAt:          time.Now().UTC(),
	}

	applied, err := s.ApplyUpdate(ctx, update)
	if err != nil {
		t.Fatalf("first apply failed: %v", err)
	}
	if !applied {
		t.Fatal("first apply should report applied=true")
	}

	// Replaying the same (entry, core) pair is a silent no-op.
	update.NewLevel = 0.99
	applied, err = s.ApplyUpdate(ctx, update)
	if err != nil {
		t.Fatalf("second apply failed: %v", err)
	}
	if applied {
		t.Error("second apply should report applied=false")
	}

	core, err := s.GetCore(ctx, types.CoreResilience)
	if err != nil {
		t.Fatalf("failed to get core: %v", err)
	}
	if core.CurrentLevel != 0.65 {
		t.Errorf("replay mutated core level: got %f, want 0.65", core.CurrentLevel)
	}
}

func TestApplyUpdate_DifferentEntriesAccumulate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreateEntry(t, s, "entry-1")
	mustCreateEntry(t, s, "entry-2")

	now := time.Now().UTC()
	for i, u := range []types.CoreUpdate{
		{EntryID: "entry-1", CoreID: types.CoreOptimism, PreviousLevel: 0.5, NewLevel: 0.6, TrendAfter: types.TrendRising, AppliedAt: now},
		{EntryID: "entry-2", CoreID: types.CoreOptimism, PreviousLevel: 0.6, NewLevel: 0.72, TrendAfter: types.TrendRising, AppliedAt: now.Add(time.Second)},
	} {
		applied, err := s.ApplyUpdate(ctx, u)
		if err != nil || !applied {
			t.Fatalf("apply %d failed: applied=%v err=%v", i, applied, err)
		}
	}

	core, err := s.GetCore(ctx, types.CoreOptimism)
	if err != nil {
		t.Fatalf("failed to get core: %v", err)
	}
	if core.CurrentLevel != 0.72 {
		t.Errorf("expected level 0.72, got %f", core.CurrentLevel)
	}
	if core.PreviousLevel != 0.6 {
		t.Errorf("expected previous level 0.6, got %f", core.PreviousLevel)
	}
}

func TestApplyUpdate_RejectsOutOfBoundsLevel(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, level := range []float64{-0.1, 1.1} {
		_, err := s.ApplyUpdate(ctx, types.CoreUpdate{
			EntryID:   "entry-1",
			CoreID:    types.CoreOptimism,
			NewLevel:  level,
			AppliedAt: time.Now().UTC(),
		})
		if err == nil {
			t.Errorf("level %f should be rejected", level)
		}
	}
}

func TestApplyUpdate_UnknownCore(t *testing.T) {
	s := newTestStore(t)

	_, err := s.ApplyUpdate(context.Background(), types.CoreUpdate{
		EntryID:   "entry-1",
		CoreID:    "charisma",
		NewLevel:  0.5,
		AppliedAt: time.Now().UTC(),
	})
	if !errors.Is(err, ErrCoreNotFound) {
		t.Errorf("expected ErrCoreNotFound, got %v", err)
	}
}

func TestApplyUpdate_LastUpdatedNeverMovesBackward(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreateEntry(t, s, "entry-1")
	mustCreateEntry(t, s, "entry-2")

	later := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	earlier := later.Add(-time.Hour)

	applied, err := s.ApplyUpdate(ctx, types.CoreUpdate{
		EntryID: "entry-1", CoreID: types.CoreGrowthMindset,
		PreviousLevel: 0.5, NewLevel: 0.6, TrendAfter: types.TrendRising, AppliedAt: later,
	})
	if err != nil || !applied {
		t.Fatalf("apply failed: applied=%v err=%v", applied, err)
	}

	// A replayed-late update carries an older wall clock.
	applied, err = s.ApplyUpdate(ctx, types.CoreUpdate{
		EntryID: "entry-2", CoreID: types.CoreGrowthMindset,
		PreviousLevel: 0.6, NewLevel: 0.55, TrendAfter: types.TrendDeclining, AppliedAt: earlier,
	})
	if err != nil || !applied {
		t.Fatalf("apply failed: applied=%v err=%v", applied, err)
	}

	core, err := s.GetCore(ctx, types.CoreGrowthMindset)
	if err != nil {
		t.Fatalf("failed to get core: %v", err)
	}
	if core.LastUpdated.Before(later) {
		t.Errorf("last_updated moved backward: %v < %v", core.LastUpdated, later)
	}
}

func TestApplyUpdate_MergesMilestonesWithoutDuplicates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	mustCreateEntry(t, s, "entry-1")
	mustCreateEntry(t, s, "entry-2")

	updates := []types.CoreUpdate{
		{EntryID: "entry-1", CoreID: types.CoreCreativity, PreviousLevel: 0.5, NewLevel: 0.6,
			TrendAfter: types.TrendRising, MilestonesAchieved: []float64{0.5}, AppliedAt: now},
		{EntryID: "entry-2", CoreID: types.CoreCreativity, PreviousLevel: 0.6, NewLevel: 0.8,
			TrendAfter: types.TrendRising, MilestonesAchieved: []float64{0.75}, AppliedAt: now.Add(time.Second)},
	}
	for i, u := range updates {
		if applied, err := s.ApplyUpdate(ctx, u); err != nil || !applied {
			t.Fatalf("apply %d failed: applied=%v err=%v", i, applied, err)
		}
	}

	core, err := s.GetCore(ctx, types.CoreCreativity)
	if err != nil {
		t.Fatalf("failed to get core: %v", err)
	}
	if len(core.Milestones) != 2 {
		t.Fatalf("expected 2 milestones, got %v", core.Milestones)
	}
	if !core.HasMilestone(0.5) || !core.HasMilestone(0.75) {
		t.Errorf("expected milestones {0.5, 0.75}, got %v", core.Milestones)
	}
}

func TestGetUpdatesForEntry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	mustCreateEntry(t, s, "entry-1")
	mustCreateEntry(t, s, "entry-2")

	for _, u := range []types.CoreUpdate{
		{EntryID: "entry-1", CoreID: types.CoreOptimism, PreviousLevel: 0.5, NewLevel: 0.6, TrendAfter: types.TrendRising, AppliedAt: now},
		{EntryID: "entry-1", CoreID: types.CoreResilience, PreviousLevel: 0.5, NewLevel: 0.55, TrendAfter: types.TrendRising, AppliedAt: now},
		{EntryID: "entry-2", CoreID: types.CoreOptimism, PreviousLevel: 0.6, NewLevel: 0.65, TrendAfter: types.TrendRising, AppliedAt: now},
	} {
		if _, err := s.ApplyUpdate(ctx, u); err != nil {
			t.Fatalf("apply failed: %v", err)
		}
	}

	updates, err := s.GetUpdatesForEntry(ctx, "entry-1")
	if err != nil {
		t.Fatalf("failed to get updates: %v", err)
	}
	if len(updates) != 2 {
		t.Errorf("expected 2 updates for entry-1, got %d", len(updates))
	}
}

func TestGetCore_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetCore(context.Background(), "charisma")
	if !errors.Is(err, ErrCoreNotFound) {
		t.Errorf("expected ErrCoreNotFound, got %v", err)
	}
}

func TestCreateEntry_DuplicateID(t *testing.T) {
	s := newTestStore(t)

	mustCreateEntry(t, s, "entry-1")

	err := s.CreateEntry(context.Background(), types.JournalEntry{
		ID:        "entry-1",
		Content:   "different content",
		CreatedAt: time.Now().UTC(),
	}, types.StatusPending)
	if !errors.Is(err, ErrDuplicateEntry) {
		t.Errorf("expected ErrDuplicateEntry, got %v", err)
	}
}

func TestGetEntry_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := types.JournalEntry{
		ID:        "entry-1",
		Content:   "Today was a breakthrough",
		Moods:     []string{"hopeful", "tired"},
		CreatedAt: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
	}
	if err := s.CreateEntry(ctx, created, types.StatusPending); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	got, err := s.GetEntry(ctx, "entry-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Content != created.Content {
		t.Errorf("content mismatch: %q", got.Content)
	}
	if len(got.Moods) != 2 || got.Moods[0] != "hopeful" {
		t.Errorf("moods mismatch: %v", got.Moods)
	}
	if !got.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("created_at mismatch: %v", got.CreatedAt)
	}
	if got.AnalysisStatus != types.StatusPending {
		t.Errorf("status mismatch: %s", got.AnalysisStatus)
	}
}

func TestGetEntry_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetEntry(context.Background(), "missing")
	if !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("expected ErrEntryNotFound, got %v", err)
	}
}

func TestListEntries_NewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"entry-a", "entry-b", "entry-c"} {
		err := s.CreateEntry(ctx, types.JournalEntry{
			ID:        id,
			Content:   "content",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}, types.StatusAnalyzed)
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	entries, err := s.ListEntries(ctx, 2)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ID != "entry-c" || entries[1].ID != "entry-b" {
		t.Errorf("expected newest first, got %s, %s", entries[0].ID, entries[1].ID)
	}
}

func TestSetEntryStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreateEntry(t, s, "entry-1")

	if err := s.SetEntryStatus(ctx, "entry-1", types.StatusAnalyzed); err != nil {
		t.Fatalf("set status failed: %v", err)
	}

	entry, err := s.GetEntry(ctx, "entry-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if entry.AnalysisStatus != types.StatusAnalyzed {
		t.Errorf("expected analyzed, got %s", entry.AnalysisStatus)
	}

	if err := s.SetEntryStatus(ctx, "missing", types.StatusAnalyzed); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("expected ErrEntryNotFound, got %v", err)
	}
}

func TestQueue_FIFOOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	ids := []string{"entry-a", "entry-b", "entry-c"}
	for i, id := range ids {
		mustCreateEntry(t, s, id)
		if err := s.Enqueue(ctx, id, base.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
	}

	items, err := s.PendingQueue(ctx, 10)
	if err != nil {
		t.Fatalf("pending queue failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	for i, item := range items {
		if item.EntryID != ids[i] {
			t.Errorf("position %d: expected %s, got %s", i, ids[i], item.EntryID)
		}
	}
}

func TestEnqueue_ReEnqueuePreservesPosition(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mustCreateEntry(t, s, "entry-a")
	mustCreateEntry(t, s, "entry-b")
	if err := s.Enqueue(ctx, "entry-a", base); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if err := s.Enqueue(ctx, "entry-b", base.Add(time.Second)); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	// Re-enqueueing with a later timestamp must not move entry-a back.
	if err := s.Enqueue(ctx, "entry-a", base.Add(time.Hour)); err != nil {
		t.Fatalf("re-enqueue failed: %v", err)
	}

	items, err := s.PendingQueue(ctx, 10)
	if err != nil {
		t.Fatalf("pending queue failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].EntryID != "entry-a" {
		t.Errorf("re-enqueue moved entry-a to position %s", items[0].EntryID)
	}
	if !items[0].EnqueuedAt.Equal(base) {
		t.Errorf("re-enqueue changed enqueued_at to %v", items[0].EnqueuedAt)
	}
}

func TestQueue_CarriesEntryPayload(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateEntry(t, s, "entry-a")
	if err := s.Enqueue(ctx, "entry-a", time.Now().UTC()); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	items, err := s.PendingQueue(ctx, 10)
	if err != nil {
		t.Fatalf("pending queue failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].Entry.Content != "Test entry content" {
		t.Errorf("queue item missing entry payload: %q", items[0].Entry.Content)
	}
	if items[0].Entry.ID != "entry-a" {
		t.Errorf("queue item entry id mismatch: %s", items[0].Entry.ID)
	}
}

func TestDequeue(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateEntry(t, s, "entry-a")
	if err := s.Enqueue(ctx, "entry-a", time.Now().UTC()); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	if err := s.Dequeue(ctx, "entry-a"); err != nil {
		t.Fatalf("dequeue failed: %v", err)
	}

	depth, err := s.QueueDepth(ctx)
	if err != nil {
		t.Fatalf("depth failed: %v", err)
	}
	if depth != 0 {
		t.Errorf("expected empty queue, depth %d", depth)
	}

	if err := s.Dequeue(ctx, "entry-a"); !errors.Is(err, ErrNotQueued) {
		t.Errorf("expected ErrNotQueued, got %v", err)
	}
}

func TestIncrementAttempts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateEntry(t, s, "entry-a")
	if err := s.Enqueue(ctx, "entry-a", time.Now().UTC()); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	for want := 1; want <= 3; want++ {
		got, err := s.IncrementAttempts(ctx, "entry-a")
		if err != nil {
			t.Fatalf("increment failed: %v", err)
		}
		if got != want {
			t.Errorf("expected attempts %d, got %d", want, got)
		}
	}

	if _, err := s.IncrementAttempts(ctx, "missing"); !errors.Is(err, ErrNotQueued) {
		t.Errorf("expected ErrNotQueued, got %v", err)
	}
}

func TestMarkAbandoned_ExcludedFromPendingButListed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mustCreateEntry(t, s, "entry-a")
	mustCreateEntry(t, s, "entry-b")
	if err := s.Enqueue(ctx, "entry-a", base); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if err := s.Enqueue(ctx, "entry-b", base.Add(time.Second)); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	if err := s.MarkAbandoned(ctx, "entry-a"); err != nil {
		t.Fatalf("mark abandoned failed: %v", err)
	}

	pending, err := s.PendingQueue(ctx, 10)
	if err != nil {
		t.Fatalf("pending queue failed: %v", err)
	}
	if len(pending) != 1 || pending[0].EntryID != "entry-b" {
		t.Errorf("abandoned item should be excluded from pending, got %v", pending)
	}

	all, err := s.ListQueue(ctx)
	if err != nil {
		t.Fatalf("list queue failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 items in full listing, got %d", len(all))
	}
	if !all[0].Abandoned {
		t.Error("abandoned flag should survive listing")
	}

	depth, err := s.QueueDepth(ctx)
	if err != nil {
		t.Fatalf("depth failed: %v", err)
	}
	if depth != 1 {
		t.Errorf("abandoned items must not count toward depth, got %d", depth)
	}
}
