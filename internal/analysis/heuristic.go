package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/mikedesigns-nvisia/spiral-journal/internal/types"
)

// Compile-time interface check
var _ Provider = (*Heuristic)(nil)

// lexiconEntry maps a keyword to an emotion label and a per-core adjustment.
type lexiconEntry struct {
	emotion    string
	core       types.CoreID
	adjustment float64
}

// lexicon is the keyword table behind the local fallback provider.
// Matching is whole-word, case-insensitive. The table is fixed so identical
// content always yields an identical payload.
var lexicon = map[string]lexiconEntry{
	// optimism
	"happy":     {"joy", types.CoreOptimism, 0.3},
	"hopeful":   {"hope", types.CoreOptimism, 0.3},
	"excited":   {"excitement", types.CoreOptimism, 0.3},
	"grateful":  {"gratitude", types.CoreOptimism, 0.25},
	"thankful":  {"gratitude", types.CoreOptimism, 0.25},
	"hopeless":  {"despair", types.CoreOptimism, -0.3},
	"miserable": {"sadness", types.CoreOptimism, -0.3},

	// resilience
	"overcame":   {"pride", types.CoreResilience, 0.35},
	"overcoming": {"pride", types.CoreResilience, 0.35},
	"persevered": {"determination", types.CoreResilience, 0.35},
	"strong":     {"strength", types.CoreResilience, 0.25},
	"challenge":  {"determination", types.CoreResilience, 0.2},
	"struggled":  {"frustration", types.CoreResilience, -0.15},
	"gave":       {"defeat", types.CoreResilience, -0.1}, // "gave up"

	// self_awareness
	"realized":   {"insight", types.CoreSelfAwareness, 0.3},
	"reflected":  {"reflection", types.CoreSelfAwareness, 0.3},
	"noticed":    {"awareness", types.CoreSelfAwareness, 0.2},
	"understand": {"insight", types.CoreSelfAwareness, 0.2},

	// creativity
	"created":     {"inspiration", types.CoreCreativity, 0.3},
	"imagined":    {"inspiration", types.CoreCreativity, 0.3},
	"painted":     {"inspiration", types.CoreCreativity, 0.25},
	"wrote":       {"inspiration", types.CoreCreativity, 0.2},
	"idea":        {"curiosity", types.CoreCreativity, 0.2},
	"uninspired":  {"apathy", types.CoreCreativity, -0.25},

	// social_connection
	"friend":    {"connection", types.CoreSocialConnection, 0.25},
	"friends":   {"connection", types.CoreSocialConnection, 0.25},
	"family":    {"connection", types.CoreSocialConnection, 0.25},
	"together":  {"belonging", types.CoreSocialConnection, 0.2},
	"lonely":    {"loneliness", types.CoreSocialConnection, -0.3},
	"isolated":  {"loneliness", types.CoreSocialConnection, -0.3},
	"argued":    {"conflict", types.CoreSocialConnection, -0.2},

	// growth_mindset
	"learned":   {"curiosity", types.CoreGrowthMindset, 0.3},
	"learning":  {"curiosity", types.CoreGrowthMindset, 0.3},
	"improved":  {"pride", types.CoreGrowthMindset, 0.25},
	"practiced": {"determination", types.CoreGrowthMindset, 0.2},
	"mistake":   {"humility", types.CoreGrowthMindset, 0.1},
	"stuck":     {"frustration", types.CoreGrowthMindset, -0.15},
}

// Heuristic is the deterministic local fallback provider. It scores entries
// with a fixed keyword lexicon and needs no network access.
type Heuristic struct{}

// NewHeuristic creates the local fallback provider.
func NewHeuristic() *Heuristic { return &Heuristic{} }

// Name returns the provider name for logs and metrics.
func (h *Heuristic) Name() string { return "heuristic" }

// Call produces a raw analysis payload from the lexicon. Identical content
// always yields an identical payload.
func (h *Heuristic) Call(_ context.Context, content string) ([]byte, int, error) {
	words := tokenize(content)

	adjustments := make(map[string]float64)
	emotionOrder := []string{}
	emotionSeen := map[string]bool{}
	hits := 0

	for _, w := range words {
		entry, ok := lexicon[w]
		if !ok {
			continue
		}
		hits++
		adjustments[string(entry.core)] += entry.adjustment
		if !emotionSeen[entry.emotion] {
			emotionSeen[entry.emotion] = true
			emotionOrder = append(emotionOrder, entry.emotion)
		}
	}

	if len(emotionOrder) > 3 {
		emotionOrder = emotionOrder[:3]
	}
	if len(emotionOrder) == 0 {
		emotionOrder = []string{"neutral"}
	}

	for core, adj := range adjustments {
		adjustments[core] = clamp(adj, -1.0, 1.0)
	}

	payload := struct {
		PrimaryEmotions    []string           `json:"primary_emotions"`
		EmotionalIntensity float64            `json:"emotional_intensity"`
		CoreAdjustments    map[string]float64 `json:"core_adjustments"`
		Confidence         float64            `json:"confidence"`
	}{
		PrimaryEmotions:    emotionOrder,
		EmotionalIntensity: intensity(content, hits, len(words)),
		CoreAdjustments:    adjustments,
		Confidence:         confidence(hits),
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("marshal heuristic payload: %w", err)
	}
	return raw, http.StatusOK, nil
}

// tokenize lowercases and splits content into words, stripping punctuation.
func tokenize(content string) []string {
	return strings.FieldsFunc(strings.ToLower(content), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') && r != '\''
	})
}

// intensity estimates emotional intensity from lexicon hit density and
// exclamation marks.
func intensity(content string, hits, wordCount int) float64 {
	if wordCount == 0 {
		return 0
	}
	density := float64(hits) / float64(wordCount)
	exclaim := float64(strings.Count(content, "!")) * 0.05
	return clamp(0.2+density*2.0+exclaim, 0.0, 1.0)
}

// confidence grows with hit count but stays well below remote confidence;
// the heuristic is a degraded-quality signal.
func confidence(hits int) float64 {
	return clamp(0.3+0.05*float64(hits), 0.0, 0.6)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
