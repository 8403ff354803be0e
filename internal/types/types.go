package types

import (
	"encoding/json"
	"time"
)

// CoreID identifies one of the fixed personality cores.
type CoreID string

const (
	CoreOptimism         CoreID = "optimism"
	CoreResilience       CoreID = "resilience"
	CoreSelfAwareness    CoreID = "self_awareness"
	CoreCreativity       CoreID = "creativity"
	CoreSocialConnection CoreID = "social_connection"
	CoreGrowthMindset    CoreID = "growth_mindset"
)

// AllCoreIDs returns the fixed core set in canonical order.
func AllCoreIDs() []CoreID {
	return []CoreID{
		CoreOptimism,
		CoreResilience,
		CoreSelfAwareness,
		CoreCreativity,
		CoreSocialConnection,
		CoreGrowthMindset,
	}
}

// IsValidCoreID reports whether id belongs to the fixed core set.
func IsValidCoreID(id CoreID) bool {
	for _, c := range AllCoreIDs() {
		if c == id {
			return true
		}
	}
	return false
}

// DefaultCoreLevel is the level every core starts at on first use.
const DefaultCoreLevel = 0.5

// Trend classifies the direction of a core's most recent change.
type Trend string

const (
	TrendRising    Trend = "rising"
	TrendDeclining Trend = "declining"
	TrendStable    Trend = "stable"
)

// Provenance marks which backend produced an analysis.
type Provenance string

const (
	ProvenanceRemote   Provenance = "remote"
	ProvenanceFallback Provenance = "fallback"
)

// AnalysisStatus tracks an entry's position in the analysis lifecycle.
type AnalysisStatus string

const (
	StatusPending     AnalysisStatus = "pending"
	StatusAnalyzed    AnalysisStatus = "analyzed"
	StatusUnavailable AnalysisStatus = "unavailable"
)

// JournalEntry is an immutable journal record. Once created it is never
// mutated; analysis and core updates reference it by ID.
type JournalEntry struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Moods     []string  `json:"moods"`
	CreatedAt time.Time `json:"created_at"`
}

// StoredEntry is a JournalEntry plus its analysis lifecycle status.
type StoredEntry struct {
	JournalEntry
	AnalysisStatus AnalysisStatus `json:"analysis_status"`
}

// AnalysisResult is the typed output of analyzing one journal entry.
// Produced only by the analysis validator; immutable once built.
type AnalysisResult struct {
	EntryID            string             `json:"entry_id"`
	PrimaryEmotions    []string           `json:"primary_emotions"`
	EmotionalIntensity float64            `json:"emotional_intensity"`
	CoreAdjustments    map[CoreID]float64 `json:"core_adjustments"`
	Confidence         float64            `json:"confidence"`
	Provenance         Provenance         `json:"provenance"`
}

// EmotionalCore is one persistent personality-trait score.
// Mutated only through the store's ApplyUpdate contract; never deleted.
type EmotionalCore struct {
	ID            CoreID    `json:"id"`
	CurrentLevel  float64   `json:"current_level"`
	PreviousLevel float64   `json:"previous_level"`
	Trend         Trend     `json:"trend"`
	LastUpdated   time.Time `json:"last_updated"`
	Milestones    []float64 `json:"milestones"`
}

// HasMilestone reports whether the core already achieved the given threshold.
func (c EmotionalCore) HasMilestone(threshold float64) bool {
	for _, m := range c.Milestones {
		if m == threshold {
			return true
		}
	}
	return false
}

// CoreUpdate is the atomic, auditable unit of core mutation: the durable
// record of one entry's effect on one core.
type CoreUpdate struct {
	EntryID             string    `json:"entry_id"`
	CoreID              CoreID    `json:"core_id"`
	PreviousLevel       float64   `json:"previous_level"`
	NewLevel            float64   `json:"new_level"`
	TrendAfter          Trend     `json:"trend_after"`
	MilestonesAchieved  []float64 `json:"milestones_achieved"`
	AppliedAt           time.Time `json:"applied_at"`
}

// QueueItem is one deferred entry awaiting replay through the pipeline.
type QueueItem struct {
	EntryID    string       `json:"entry_id"`
	Entry      JournalEntry `json:"entry"`
	EnqueuedAt time.Time    `json:"enqueued_at"`
	Attempts   int          `json:"attempts"`
	Abandoned  bool         `json:"abandoned"`
}

// TokenMetricsSnapshot is a point-in-time read of analyzer usage counters.
// All counters are monotonically increasing; the delta between two snapshots
// gives usage for the interval.
type TokenMetricsSnapshot struct {
	Requests         int64 `json:"requests"`
	RemoteRequests   int64 `json:"remote_requests"`
	FallbackRequests int64 `json:"fallback_requests"`
	RateLimitHits    int64 `json:"rate_limit_hits"`
	InputTokens      int64 `json:"input_tokens"`
	OutputTokens     int64 `json:"output_tokens"`
}

// SubmitRequest is the payload for submitting a journal entry.
type SubmitRequest struct {
	ID           string   `json:"id,omitempty"`
	Content      string   `json:"content"`
	Moods        []string `json:"moods,omitempty"`
	AnalyzeLater bool     `json:"analyze_later,omitempty"`
}

// SubmitResponse reports the outcome of a Submit call.
type SubmitResponse struct {
	EntryID  string          `json:"entry_id"`
	Queued   bool            `json:"queued"`
	Analysis *AnalysisResult `json:"analysis,omitempty"`
}

// AnalysisSettingsRequest toggles the remote analysis backend.
type AnalysisSettingsRequest struct {
	Enabled bool `json:"enabled"`
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status          string `json:"status"`
	Version         string `json:"version"`
	AnalysisEnabled bool   `json:"analysis_enabled"`
	CoreCount       int    `json:"core_count"`
	QueueDepth      int64  `json:"queue_depth"`
}

// DrainResponse reports the outcome of a manual queue drain cycle.
type DrainResponse struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	Abandoned int `json:"abandoned"`
}

// MarshalJSON ensures nil slices in JournalEntry marshal as [] not null.
func (e JournalEntry) MarshalJSON() ([]byte, error) {
	if e.Moods == nil {
		e.Moods = []string{}
	}
	type Alias JournalEntry
	return json.Marshal(Alias(e))
}

// MarshalJSON ensures nil slices in EmotionalCore marshal as [] not null.
func (c EmotionalCore) MarshalJSON() ([]byte, error) {
	if c.Milestones == nil {
		c.Milestones = []float64{}
	}
	type Alias EmotionalCore
	return json.Marshal(Alias(c))
}

// MarshalJSON ensures nil slices in CoreUpdate marshal as [] not null.
func (u CoreUpdate) MarshalJSON() ([]byte, error) {
	if u.MilestonesAchieved == nil {
		u.MilestonesAchieved = []float64{}
	}
	type Alias CoreUpdate
	return json.Marshal(Alias(u))
}
