package spiral

import "time"

// Entry is a journal entry as returned by the service.
type Entry struct {
	ID             string    `json:"id"`
	Content        string    `json:"content"`
	Moods          []string  `json:"moods"`
	CreatedAt      time.Time `json:"created_at"`
	AnalysisStatus string    `json:"analysis_status"`
}

// Core is one emotional core's current state.
type Core struct {
	ID            string    `json:"id"`
	CurrentLevel  float64   `json:"current_level"`
	PreviousLevel float64   `json:"previous_level"`
	Trend         string    `json:"trend"`
	LastUpdated   time.Time `json:"last_updated"`
	Milestones    []float64 `json:"milestones"`
}

// Analysis is the emotional analysis attached to a submission.
type Analysis struct {
	EntryID            string             `json:"entry_id"`
	PrimaryEmotions    []string           `json:"primary_emotions"`
	EmotionalIntensity float64            `json:"emotional_intensity"`
	CoreAdjustments    map[string]float64 `json:"core_adjustments"`
	Confidence         float64            `json:"confidence"`
	Provenance         string             `json:"provenance"`
}

// SubmitParams is the payload for submitting a journal entry.
type SubmitParams struct {
	ID           string   `json:"id,omitempty"`
	Content      string   `json:"content"`
	Moods        []string `json:"moods,omitempty"`
	AnalyzeLater bool     `json:"analyze_later,omitempty"`
}

// SubmitResult reports the outcome of a submission. Queued means the entry
// awaits a later remote analysis attempt on the offline queue.
type SubmitResult struct {
	EntryID  string    `json:"entry_id"`
	Queued   bool      `json:"queued"`
	Analysis *Analysis `json:"analysis,omitempty"`
}

// QueueItem is one deferred entry on the offline queue.
type QueueItem struct {
	EntryID    string    `json:"entry_id"`
	Entry      Entry     `json:"entry"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	Attempts   int       `json:"attempts"`
	Abandoned  bool      `json:"abandoned"`
}

// TokenMetrics is a snapshot of the service's analyzer usage counters.
type TokenMetrics struct {
	Requests         int64 `json:"requests"`
	RemoteRequests   int64 `json:"remote_requests"`
	FallbackRequests int64 `json:"fallback_requests"`
	RateLimitHits    int64 `json:"rate_limit_hits"`
	InputTokens      int64 `json:"input_tokens"`
	OutputTokens     int64 `json:"output_tokens"`
}

// Health is the service health payload.
type Health struct {
	Status          string `json:"status"`
	Version         string `json:"version"`
	AnalysisEnabled bool   `json:"analysis_enabled"`
	CoreCount       int    `json:"core_count"`
	QueueDepth      int64  `json:"queue_depth"`
}

// DrainResult reports the outcome of a manual queue drain cycle.
type DrainResult struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	Abandoned int `json:"abandoned"`
}

// FieldError is a single field validation failure from a 422 response.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}
