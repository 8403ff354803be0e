package analysis

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"

	"github.com/mikedesigns-nvisia/spiral-journal/internal/types"
)

// rawPayload is the loosely-typed provider output. Only this file ever
// inspects it; everything downstream works with types.AnalysisResult.
type rawPayload struct {
	PrimaryEmotions    []string            `json:"primary_emotions"`
	EmotionalIntensity *float64            `json:"emotional_intensity"`
	CoreAdjustments    *map[string]float64 `json:"core_adjustments"`
	Confidence         *float64            `json:"confidence"`
}

// ParseAnalysis converts a raw provider payload into a typed AnalysisResult,
// or fails with ErrMalformedAnalysis. Out-of-range numbers are clamped rather
// than rejected; unknown core ids are dropped with a warning.
func ParseAnalysis(entryID string, payload []byte, provenance types.Provenance) (*types.AnalysisResult, error) {
	var raw rawPayload
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAnalysis, err)
	}

	if raw.PrimaryEmotions == nil {
		return nil, fmt.Errorf("%w: missing primary_emotions", ErrMalformedAnalysis)
	}
	if len(raw.PrimaryEmotions) == 0 {
		return nil, fmt.Errorf("%w: primary_emotions is empty", ErrMalformedAnalysis)
	}
	if raw.EmotionalIntensity == nil {
		return nil, fmt.Errorf("%w: missing emotional_intensity", ErrMalformedAnalysis)
	}
	if raw.CoreAdjustments == nil {
		return nil, fmt.Errorf("%w: missing core_adjustments", ErrMalformedAnalysis)
	}

	intensity := *raw.EmotionalIntensity
	if math.IsNaN(intensity) || math.IsInf(intensity, 0) {
		return nil, fmt.Errorf("%w: emotional_intensity is not finite", ErrMalformedAnalysis)
	}
	intensity = clamp(intensity, 0.0, 1.0)

	// Confidence is optional; absent means moderate confidence.
	conf := 0.5
	if raw.Confidence != nil {
		if math.IsNaN(*raw.Confidence) || math.IsInf(*raw.Confidence, 0) {
			return nil, fmt.Errorf("%w: confidence is not finite", ErrMalformedAnalysis)
		}
		conf = clamp(*raw.Confidence, 0.0, 1.0)
	}

	adjustments := make(map[types.CoreID]float64, len(*raw.CoreAdjustments))
	for key, value := range *raw.CoreAdjustments {
		id := types.CoreID(key)
		if !types.IsValidCoreID(id) {
			// Unknown ids are dropped, not rejected, for forward compatibility.
			slog.Warn("dropping unknown core adjustment",
				"component", "analysis",
				"entry_id", entryID,
				"core_id", key,
			)
			continue
		}
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return nil, fmt.Errorf("%w: adjustment for %s is not finite", ErrMalformedAnalysis, key)
		}
		adjustments[id] = clamp(value, -1.0, 1.0)
	}

	emotions := raw.PrimaryEmotions
	if len(emotions) > 3 {
		emotions = emotions[:3]
	}

	return &types.AnalysisResult{
		EntryID:            entryID,
		PrimaryEmotions:    emotions,
		EmotionalIntensity: intensity,
		CoreAdjustments:    adjustments,
		Confidence:         conf,
		Provenance:         provenance,
	}, nil
}
