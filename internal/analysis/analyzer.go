package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mikedesigns-nvisia/spiral-journal/internal/config"
	"github.com/mikedesigns-nvisia/spiral-journal/internal/types"
)

// Analyzer orchestrates analysis providers: selection, retry, rate limiting,
// and fallback. It holds no per-entry state and is safe for concurrent use.
type Analyzer struct {
	remote   Provider
	fallback Provider

	policy          RetryPolicy
	limiter         *RateLimiter
	metrics         *Metrics
	callTimeout     time.Duration
	rateLimitPolicy config.RateLimitPolicy
	onExhaustion    config.ExhaustionPolicy

	enabled atomic.Bool
}

// NewAnalyzer wires an analyzer from configuration and the two providers.
func NewAnalyzer(cfg config.AnalysisConfig, remote, fallback Provider) *Analyzer {
	a := &Analyzer{
		remote:   remote,
		fallback: fallback,
		policy: RetryPolicy{
			MaxAttempts:    cfg.MaxAttempts,
			InitialBackoff: time.Duration(cfg.InitialBackoff),
			MaxBackoff:     time.Duration(cfg.MaxBackoff),
		},
		limiter:         NewRateLimiter(cfg.MaxConcurrent, time.Duration(cfg.RefillInterval)),
		metrics:         NewMetrics(),
		callTimeout:     time.Duration(cfg.CallTimeout),
		rateLimitPolicy: cfg.RateLimitPolicy,
		onExhaustion:    cfg.OnExhaustion,
	}
	a.enabled.Store(cfg.Enabled)
	return a
}

// SetEnabled toggles the remote backend. Takes effect on the next call.
func (a *Analyzer) SetEnabled(enabled bool) {
	a.enabled.Store(enabled)
	slog.Info("analysis mode changed",
		"component", "analysis",
		"remote_enabled", enabled,
	)
}

// Enabled reports whether the remote backend is selected.
func (a *Analyzer) Enabled() bool { return a.enabled.Load() }

// Metrics returns a snapshot of the usage counters.
func (a *Analyzer) Metrics() types.TokenMetricsSnapshot { return a.metrics.Snapshot() }

// Analyze produces an AnalysisResult for the entry. The caller always
// receives a usable result unless the content itself is invalid: remote
// failures degrade to the local heuristic with provenance=fallback.
//
// When the configured policy defers the remote attempt (rate limiting or
// retry exhaustion with on_exhaustion=defer), the fallback result is returned
// together with ErrAnalysisDeferred so the caller can queue the entry.
func (a *Analyzer) Analyze(ctx context.Context, entry types.JournalEntry) (*types.AnalysisResult, error) {
	content := strings.TrimSpace(entry.Content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	a.metrics.recordRequest()
	a.metrics.addInputTokens(estimateTokens(len(content)))

	if !a.enabled.Load() {
		return a.analyzeFallback(ctx, entry.ID, content)
	}

	result, err := a.analyzeRemote(ctx, entry.ID, content)
	if err == nil {
		return result, nil
	}

	if rle, ok := AsRateLimit(err); ok && a.rateLimitPolicy == config.RateLimitDefer {
		slog.Info("rate limited, deferring remote analysis",
			"component", "analysis",
			"entry_id", entry.ID,
			"retry_after", rle.RetryAfter.String(),
		)
		res, ferr := a.analyzeFallback(ctx, entry.ID, content)
		if ferr != nil {
			return nil, ferr
		}
		return res, ErrAnalysisDeferred
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	slog.Warn("remote analysis failed, falling back",
		"component", "analysis",
		"entry_id", entry.ID,
		"error", err,
	)

	res, ferr := a.analyzeFallback(ctx, entry.ID, content)
	if ferr != nil {
		return nil, ferr
	}
	if a.onExhaustion == config.ExhaustionDefer {
		return res, ErrAnalysisDeferred
	}
	return res, nil
}

// AnalyzeRemote is the strict path used by queue replay: it never falls back.
// It fails with ErrRemoteDisabled while the remote backend is off, and with
// the provider's error when the retry budget is exhausted.
func (a *Analyzer) AnalyzeRemote(ctx context.Context, entry types.JournalEntry) (*types.AnalysisResult, error) {
	content := strings.TrimSpace(entry.Content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if !a.enabled.Load() {
		return nil, ErrRemoteDisabled
	}

	a.metrics.recordRequest()
	a.metrics.addInputTokens(estimateTokens(len(content)))

	return a.analyzeRemote(ctx, entry.ID, content)
}

// analyzeRemote runs the retry loop against the remote provider.
func (a *Analyzer) analyzeRemote(ctx context.Context, entryID, content string) (*types.AnalysisResult, error) {
	var lastErr error

	for attempt := 1; attempt <= a.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, a.policy.Backoff(attempt)); err != nil {
				return nil, err
			}
		}

		if err := a.limiter.Acquire(ctx); err != nil {
			return nil, err
		}

		result, err := a.callRemoteOnce(ctx, entryID, content)
		if err == nil {
			a.metrics.recordRemote()
			return result, nil
		}
		lastErr = err

		if rle, ok := AsRateLimit(err); ok {
			a.metrics.recordRateLimit()
			if a.rateLimitPolicy == config.RateLimitDefer {
				return nil, err
			}
			// wait policy: honor the retry-after hint, then try again
			if serr := sleep(ctx, rle.RetryAfter); serr != nil {
				return nil, serr
			}
			continue
		}

		if !IsTransient(err) {
			return nil, err
		}

		slog.Debug("transient analysis failure",
			"component", "analysis",
			"entry_id", entryID,
			"attempt", attempt,
			"error", err,
		)
	}

	return nil, fmt.Errorf("remote analysis exhausted %d attempts: %w", a.policy.MaxAttempts, lastErr)
}

// callRemoteOnce performs one provider call with the per-call timeout and
// validates the payload. Validation failure is transient by taxonomy.
func (a *Analyzer) callRemoteOnce(ctx context.Context, entryID, content string) (*types.AnalysisResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()

	payload, _, err := a.remote.Call(callCtx, content)
	if err != nil {
		return nil, err
	}
	a.metrics.addOutputTokens(estimateTokens(len(payload)))

	return ParseAnalysis(entryID, payload, types.ProvenanceRemote)
}

// analyzeFallback runs the local heuristic. It is the terminal degradation
// step: the heuristic has no external dependencies and should not fail.
func (a *Analyzer) analyzeFallback(ctx context.Context, entryID, content string) (*types.AnalysisResult, error) {
	payload, _, err := a.fallback.Call(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("fallback analysis failed: %w", err)
	}
	a.metrics.recordFallback()
	a.metrics.addOutputTokens(estimateTokens(len(payload)))

	return ParseAnalysis(entryID, payload, types.ProvenanceFallback)
}
