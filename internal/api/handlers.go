package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/mikedesigns-nvisia/spiral-journal/internal/types"
)

// defaultEntryListLimit bounds GET /entries when no limit is given.
const defaultEntryListLimit = 50

// Pipeline defines the pipeline operations the API exposes.
type Pipeline interface {
	Submit(ctx context.Context, req types.SubmitRequest) (*types.SubmitResponse, error)
	GetAllCores(ctx context.Context) ([]types.EmotionalCore, error)
	GetCoreByID(ctx context.Context, id types.CoreID) (*types.EmotionalCore, error)
	GetEntry(ctx context.Context, id string) (*types.StoredEntry, error)
	ListEntries(ctx context.Context, limit int) ([]types.StoredEntry, error)
	ListQueue(ctx context.Context) ([]types.QueueItem, error)
	TokenMetrics() types.TokenMetricsSnapshot
	SetAnalysisEnabled(enabled bool)
	AnalysisEnabled() bool
}

// Drainer triggers a manual queue drain cycle.
type Drainer interface {
	Drain(ctx context.Context) types.DrainResponse
}

// QueueReader provides the queue depth for health reporting.
type QueueReader interface {
	QueueDepth(ctx context.Context) (int64, error)
}

// Handler implements the API handlers
type Handler struct {
	pipeline Pipeline
	drainer  Drainer
	queue    QueueReader
	apiKey   string
	version  string
}

// NewHandler creates a new Handler.
func NewHandler(p Pipeline, d Drainer, q QueueReader, apiKey, version string) *Handler {
	return &Handler{
		pipeline: p,
		drainer:  d,
		queue:    q,
		apiKey:   apiKey,
		version:  version,
	}
}

// Health returns the health status
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	depth, err := h.queue.QueueDepth(r.Context())
	if err != nil {
		WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	writeJSON(w, http.StatusOK, types.HealthResponse{
		Status:          "healthy",
		Version:         h.version,
		AnalysisEnabled: h.pipeline.AnalysisEnabled(),
		CoreCount:       len(types.AllCoreIDs()),
		QueueDepth:      depth,
	})
}

// SubmitEntry handles POST /api/v1/entries
func (h *Handler) SubmitEntry(w http.ResponseWriter, r *http.Request) {
	var req types.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	resp, err := h.pipeline.Submit(r.Context(), req)
	if err != nil {
		MapPipelineError(w, r, err)
		return
	}

	status := http.StatusCreated
	if resp.Queued {
		status = http.StatusAccepted
	}
	writeJSON(w, status, resp)
}

// ListEntries handles GET /api/v1/entries
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	limit := defaultEntryListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			WriteProblem(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := h.pipeline.ListEntries(r.Context(), limit)
	if err != nil {
		MapPipelineError(w, r, err)
		return
	}
	if entries == nil {
		entries = []types.StoredEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// GetEntry handles GET /api/v1/entries/{id}
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := h.pipeline.GetEntry(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		MapPipelineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// ListCores handles GET /api/v1/cores
func (h *Handler) ListCores(w http.ResponseWriter, r *http.Request) {
	cores, err := h.pipeline.GetAllCores(r.Context())
	if err != nil {
		MapPipelineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cores": cores})
}

// GetCore handles GET /api/v1/cores/{id}
func (h *Handler) GetCore(w http.ResponseWriter, r *http.Request) {
	core, err := h.pipeline.GetCoreByID(r.Context(), types.CoreID(chi.URLParam(r, "id")))
	if err != nil {
		MapPipelineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, core)
}

// TokenMetrics handles GET /api/v1/metrics/tokens
func (h *Handler) TokenMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.pipeline.TokenMetrics())
}

// UpdateAnalysisSettings handles PUT /api/v1/settings/analysis
func (h *Handler) UpdateAnalysisSettings(w http.ResponseWriter, r *http.Request) {
	var req types.AnalysisSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	h.pipeline.SetAnalysisEnabled(req.Enabled)
	writeJSON(w, http.StatusOK, types.AnalysisSettingsRequest{Enabled: h.pipeline.AnalysisEnabled()})
}

// ListQueue handles GET /api/v1/queue
func (h *Handler) ListQueue(w http.ResponseWriter, r *http.Request) {
	items, err := h.pipeline.ListQueue(r.Context())
	if err != nil {
		MapPipelineError(w, r, err)
		return
	}
	if items == nil {
		items = []types.QueueItem{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"queue": items})
}

// DrainQueue handles POST /api/v1/queue/drain
func (h *Handler) DrainQueue(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.drainer.Drain(r.Context()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
