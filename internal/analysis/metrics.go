package analysis

import (
	"sync/atomic"

	"github.com/mikedesigns-nvisia/spiral-journal/internal/types"
)

// Metrics tracks analyzer usage with monotonically increasing counters.
// All methods are safe for concurrent use.
type Metrics struct {
	requests         atomic.Int64
	remoteRequests   atomic.Int64
	fallbackRequests atomic.Int64
	rateLimitHits    atomic.Int64
	inputTokens      atomic.Int64
	outputTokens     atomic.Int64
}

// NewMetrics creates a zeroed metrics set.
func NewMetrics() *Metrics { return &Metrics{} }

func (m *Metrics) recordRequest()        { m.requests.Add(1) }
func (m *Metrics) recordRemote()         { m.remoteRequests.Add(1) }
func (m *Metrics) recordFallback()       { m.fallbackRequests.Add(1) }
func (m *Metrics) recordRateLimit()      { m.rateLimitHits.Add(1) }
func (m *Metrics) addInputTokens(n int)  { m.inputTokens.Add(int64(n)) }
func (m *Metrics) addOutputTokens(n int) { m.outputTokens.Add(int64(n)) }

// Snapshot returns a point-in-time read of all counters. The delta between
// two snapshots gives usage for the interval.
func (m *Metrics) Snapshot() types.TokenMetricsSnapshot {
	return types.TokenMetricsSnapshot{
		Requests:         m.requests.Load(),
		RemoteRequests:   m.remoteRequests.Load(),
		FallbackRequests: m.fallbackRequests.Load(),
		RateLimitHits:    m.rateLimitHits.Load(),
		InputTokens:      m.inputTokens.Load(),
		OutputTokens:     m.outputTokens.Load(),
	}
}

// estimateTokens approximates token usage from byte length. Four bytes per
// token tracks the provider's own accounting closely enough for quota trends.
func estimateTokens(n int) int {
	if n <= 0 {
		return 0
	}
	return (n + 3) / 4
}
