// Package pipeline wires entry submission through analysis, evolution, and
// durable application. It owns no mutable state of its own; the store is the
// single writer of core state and the analyzer absorbs provider failures.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mikedesigns-nvisia/spiral-journal/internal/analysis"
	"github.com/mikedesigns-nvisia/spiral-journal/internal/evolution"
	"github.com/mikedesigns-nvisia/spiral-journal/internal/store"
	"github.com/mikedesigns-nvisia/spiral-journal/internal/types"
	"github.com/mikedesigns-nvisia/spiral-journal/internal/validation"
	"github.com/oklog/ulid/v2"
)

// ValidationFailedError carries field-level failures from entry validation.
// Never retried; surfaced to the caller.
type ValidationFailedError struct {
	Errors []validation.ValidationError
}

func (e *ValidationFailedError) Error() string {
	fields := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		fields[i] = fmt.Sprintf("%s %s", ve.Field, ve.Message)
	}
	return "invalid entry: " + strings.Join(fields, "; ")
}

// Analyzer defines the orchestrator operations the pipeline needs.
type Analyzer interface {
	Analyze(ctx context.Context, entry types.JournalEntry) (*types.AnalysisResult, error)
	AnalyzeRemote(ctx context.Context, entry types.JournalEntry) (*types.AnalysisResult, error)
	SetEnabled(enabled bool)
	Enabled() bool
	Metrics() types.TokenMetricsSnapshot
}

// Service is the emotional core evolution pipeline.
type Service struct {
	store    store.Store
	analyzer Analyzer
	now      func() time.Time
}

// NewService creates a pipeline over the given store and analyzer.
func NewService(st store.Store, an Analyzer) *Service {
	return &Service{
		store:    st,
		analyzer: an,
		now:      time.Now,
	}
}

// Submit persists a journal entry and runs it through the pipeline.
// The entry's own persistence never depends on analysis succeeding: content
// is durable before the first provider call. Queued=true signals the entry
// awaits a later remote attempt on the offline queue.
func (s *Service) Submit(ctx context.Context, req types.SubmitRequest) (*types.SubmitResponse, error) {
	if errs := validation.ValidateSubmitRequest(req); len(errs) > 0 {
		return nil, &ValidationFailedError{Errors: errs}
	}

	entry := types.JournalEntry{
		ID:        req.ID,
		Content:   req.Content,
		Moods:     req.Moods,
		CreatedAt: s.now().UTC(),
	}
	if entry.ID == "" {
		entry.ID = ulid.Make().String()
	}

	if err := s.store.CreateEntry(ctx, entry, types.StatusPending); err != nil {
		return nil, fmt.Errorf("persist entry: %w", err)
	}

	if req.AnalyzeLater {
		if err := s.enqueue(ctx, entry); err != nil {
			return nil, err
		}
		return &types.SubmitResponse{EntryID: entry.ID, Queued: true}, nil
	}

	result, err := s.analyzer.Analyze(ctx, entry)
	switch {
	case err == nil:
		// proceed to apply
	case errors.Is(err, analysis.ErrAnalysisDeferred):
		// The fallback result is returned for display, but core updates wait
		// for the remote attempt so each entry is applied exactly once.
		if qerr := s.enqueue(ctx, entry); qerr != nil {
			return nil, qerr
		}
		return &types.SubmitResponse{EntryID: entry.ID, Queued: true, Analysis: result}, nil
	case errors.Is(err, analysis.ErrEmptyContent):
		return nil, &ValidationFailedError{Errors: []validation.ValidationError{
			{Field: "content", Message: "is required"},
		}}
	case ctx.Err() != nil:
		return nil, err
	default:
		// Unexpected analyzer failure: keep the entry, defer the analysis.
		slog.Error("analysis failed, queueing entry",
			"component", "pipeline",
			"entry_id", entry.ID,
			"error", err,
		)
		if qerr := s.enqueue(ctx, entry); qerr != nil {
			return nil, qerr
		}
		return &types.SubmitResponse{EntryID: entry.ID, Queued: true}, nil
	}

	if err := s.apply(ctx, entry, result); err != nil {
		// Store unavailable mid-apply: already-applied updates are protected
		// by idempotence, so queue the entry and let replay finish the rest.
		slog.Error("apply failed, queueing entry for replay",
			"component", "pipeline",
			"entry_id", entry.ID,
			"error", err,
		)
		if qerr := s.enqueue(ctx, entry); qerr != nil {
			return nil, qerr
		}
		return &types.SubmitResponse{EntryID: entry.ID, Queued: true, Analysis: result}, nil
	}

	return &types.SubmitResponse{EntryID: entry.ID, Analysis: result}, nil
}

// Replay runs a queued entry through the remote-strict path. Used by the
// queue drain worker; the fallback offer already happened at submit time.
func (s *Service) Replay(ctx context.Context, entry types.JournalEntry) error {
	result, err := s.analyzer.AnalyzeRemote(ctx, entry)
	if err != nil {
		return err
	}
	return s.apply(ctx, entry, result)
}

// apply evolves the cores under the analysis and durably applies each update.
// Each ApplyUpdate is atomic; re-applying a pair is a recorded no-op.
func (s *Service) apply(ctx context.Context, entry types.JournalEntry, result *types.AnalysisResult) error {
	cores, err := s.store.GetAllCores(ctx)
	if err != nil {
		return fmt.Errorf("read cores: %w", err)
	}

	updates := evolution.Evolve(cores, result, entry.ID, s.now().UTC())
	for _, update := range updates {
		applied, err := s.store.ApplyUpdate(ctx, update)
		if err != nil {
			return fmt.Errorf("apply update for %s: %w", update.CoreID, err)
		}
		if !applied {
			slog.Debug("update already applied",
				"component", "pipeline",
				"entry_id", update.EntryID,
				"core_id", update.CoreID,
			)
			continue
		}
		if len(update.MilestonesAchieved) > 0 {
			slog.Info("milestone achieved",
				"component", "pipeline",
				"entry_id", update.EntryID,
				"core_id", update.CoreID,
				"milestones", update.MilestonesAchieved,
			)
		}
	}

	if err := s.store.SetEntryStatus(ctx, entry.ID, types.StatusAnalyzed); err != nil {
		return fmt.Errorf("mark entry analyzed: %w", err)
	}
	return nil
}

func (s *Service) enqueue(ctx context.Context, entry types.JournalEntry) error {
	if err := s.store.Enqueue(ctx, entry.ID, s.now().UTC()); err != nil {
		return fmt.Errorf("enqueue entry: %w", err)
	}
	slog.Info("entry queued for later analysis",
		"component", "pipeline",
		"entry_id", entry.ID,
	)
	return nil
}

// GetAllCores returns a read-only snapshot of every core.
func (s *Service) GetAllCores(ctx context.Context) ([]types.EmotionalCore, error) {
	return s.store.GetAllCores(ctx)
}

// GetCoreByID returns one core's current state.
func (s *Service) GetCoreByID(ctx context.Context, id types.CoreID) (*types.EmotionalCore, error) {
	if !types.IsValidCoreID(id) {
		return nil, store.ErrCoreNotFound
	}
	return s.store.GetCore(ctx, id)
}

// GetEntry returns one journal entry with its analysis status.
func (s *Service) GetEntry(ctx context.Context, id string) (*types.StoredEntry, error) {
	return s.store.GetEntry(ctx, id)
}

// ListEntries returns entries newest first.
func (s *Service) ListEntries(ctx context.Context, limit int) ([]types.StoredEntry, error) {
	return s.store.ListEntries(ctx, limit)
}

// ListQueue returns the offline queue, abandoned items included.
func (s *Service) ListQueue(ctx context.Context) ([]types.QueueItem, error) {
	return s.store.ListQueue(ctx)
}

// TokenMetrics returns a snapshot of analyzer usage counters.
func (s *Service) TokenMetrics() types.TokenMetricsSnapshot {
	return s.analyzer.Metrics()
}

// SetAnalysisEnabled toggles the remote backend for subsequent calls.
func (s *Service) SetAnalysisEnabled(enabled bool) {
	s.analyzer.SetEnabled(enabled)
}

// AnalysisEnabled reports whether the remote backend is selected.
func (s *Service) AnalysisEnabled() bool {
	return s.analyzer.Enabled()
}
