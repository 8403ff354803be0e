package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mikedesigns-nvisia/spiral-journal/internal/analysis"
	"github.com/mikedesigns-nvisia/spiral-journal/internal/types"
)

// QueueStore defines the store operations needed by the drain worker.
type QueueStore interface {
	PendingQueue(ctx context.Context, limit int) ([]types.QueueItem, error)
	Dequeue(ctx context.Context, entryID string) error
	IncrementAttempts(ctx context.Context, entryID string) (int, error)
	MarkAbandoned(ctx context.Context, entryID string) error
	SetEntryStatus(ctx context.Context, id string, status types.AnalysisStatus) error
}

// Replayer runs one queued entry through the remote-strict pipeline path.
type Replayer interface {
	Replay(ctx context.Context, entry types.JournalEntry) error
}

// QueueDrainWorker replays offline-queue entries in FIFO order.
// A failure on one item does not block later items and never reorders: the
// failing item keeps its position for the next drain cycle.
type QueueDrainWorker struct {
	store       QueueStore
	replayer    Replayer
	interval    time.Duration
	maxAttempts int
	batchSize   int
}

// NewQueueDrainWorker creates a drain worker with the given schedule and
// attempt budget.
func NewQueueDrainWorker(
	s QueueStore,
	r Replayer,
	interval time.Duration,
	maxAttempts int,
	batchSize int,
) *QueueDrainWorker {
	return &QueueDrainWorker{
		store:       s,
		replayer:    r,
		interval:    interval,
		maxAttempts: maxAttempts,
		batchSize:   batchSize,
	}
}

// Run starts the worker loop. Blocks until ctx is cancelled.
// Processes immediately on start so entries queued during an outage are
// replayed promptly rather than waiting for the full interval.
func (w *QueueDrainWorker) Run(ctx context.Context) {
	slog.Info("queue drain worker started",
		"component", "worker",
		"worker", "queue-drain",
		"interval", w.interval.String(),
		"max_attempts", w.maxAttempts,
		"batch_size", w.batchSize,
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.Drain(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("queue drain worker stopped",
				"component", "worker",
				"worker", "queue-drain",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			w.Drain(ctx)
		}
	}
}

// Drain executes a single drain cycle and reports its outcome. Also called
// directly for the manual drain endpoint.
func (w *QueueDrainWorker) Drain(ctx context.Context) types.DrainResponse {
	var out types.DrainResponse

	items, err := w.store.PendingQueue(ctx, w.batchSize)
	if err != nil {
		slog.Error("failed to read offline queue",
			"component", "worker",
			"worker", "queue-drain",
			"error", err,
		)
		return out
	}

	for _, item := range items {
		if ctx.Err() != nil {
			return out // Graceful shutdown
		}

		err := w.replayer.Replay(ctx, item.Entry)
		if err == nil {
			if derr := w.store.Dequeue(ctx, item.EntryID); derr != nil {
				slog.Error("failed to dequeue replayed entry",
					"component", "worker",
					"worker", "queue-drain",
					"entry_id", item.EntryID,
					"error", derr,
				)
				out.Failed++
				continue
			}
			slog.Info("queued entry replayed",
				"component", "worker",
				"worker", "queue-drain",
				"entry_id", item.EntryID,
				"attempts", item.Attempts+1,
			)
			out.Processed++
			continue
		}

		if errors.Is(err, analysis.ErrRemoteDisabled) {
			// Nothing to do until the remote backend comes back; waiting is
			// not a failed attempt.
			slog.Debug("remote disabled, drain cycle stopped",
				"component", "worker",
				"worker", "queue-drain",
			)
			return out
		}
		if ctx.Err() != nil {
			return out
		}

		attempts, aerr := w.store.IncrementAttempts(ctx, item.EntryID)
		if aerr != nil {
			slog.Error("failed to bump attempt counter",
				"component", "worker",
				"worker", "queue-drain",
				"entry_id", item.EntryID,
				"error", aerr,
			)
			out.Failed++
			continue
		}

		if attempts >= w.maxAttempts {
			w.abandon(ctx, item.EntryID, attempts)
			out.Abandoned++
			continue
		}

		slog.Warn("replay failed, will retry next cycle",
			"component", "worker",
			"worker", "queue-drain",
			"entry_id", item.EntryID,
			"attempts", attempts,
			"error", err,
		)
		out.Failed++
	}

	return out
}

// abandon marks an item permanently failed and surfaces it on the entry.
func (w *QueueDrainWorker) abandon(ctx context.Context, entryID string, attempts int) {
	if err := w.store.MarkAbandoned(ctx, entryID); err != nil {
		slog.Error("failed to mark queue item abandoned",
			"component", "worker",
			"worker", "queue-drain",
			"entry_id", entryID,
			"error", err,
		)
		return
	}
	if err := w.store.SetEntryStatus(ctx, entryID, types.StatusUnavailable); err != nil {
		slog.Error("failed to mark entry analysis unavailable",
			"component", "worker",
			"worker", "queue-drain",
			"entry_id", entryID,
			"error", err,
		)
	}

	slog.Error("analysis permanently failed",
		"component", "worker",
		"worker", "queue-drain",
		"entry_id", entryID,
		"attempts", attempts,
	)
}
