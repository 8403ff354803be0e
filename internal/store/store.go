package store

import (
	"context"
	"time"

	"github.com/mikedesigns-nvisia/spiral-journal/internal/types"
)

// Store defines the interface contract for all pipeline persistence.
//
// Consistency contract: ApplyUpdate is atomic and idempotent per
// (entryID, coreID); same-core applications are serialized; core levels stay
// within [0,1] and lastUpdated never moves backward. Queue operations
// preserve FIFO order by enqueue time.
type Store interface {
	// Cores
	GetAllCores(ctx context.Context) ([]types.EmotionalCore, error)
	GetCore(ctx context.Context, id types.CoreID) (*types.EmotionalCore, error)
	// ApplyUpdate durably applies one core update. Returns false without
	// error when the (entryID, coreID) pair was already applied.
	ApplyUpdate(ctx context.Context, update types.CoreUpdate) (applied bool, err error)
	GetUpdatesForEntry(ctx context.Context, entryID string) ([]types.CoreUpdate, error)

	// Journal entries
	CreateEntry(ctx context.Context, entry types.JournalEntry, status types.AnalysisStatus) error
	GetEntry(ctx context.Context, id string) (*types.StoredEntry, error)
	ListEntries(ctx context.Context, limit int) ([]types.StoredEntry, error)
	SetEntryStatus(ctx context.Context, id string, status types.AnalysisStatus) error

	// Offline queue
	Enqueue(ctx context.Context, entryID string, enqueuedAt time.Time) error
	PendingQueue(ctx context.Context, limit int) ([]types.QueueItem, error)
	ListQueue(ctx context.Context) ([]types.QueueItem, error)
	Dequeue(ctx context.Context, entryID string) error
	IncrementAttempts(ctx context.Context, entryID string) (attempts int, err error)
	MarkAbandoned(ctx context.Context, entryID string) error
	QueueDepth(ctx context.Context) (int64, error)

	Close() error
}
