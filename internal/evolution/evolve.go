// Package evolution turns validated analyses into core updates. Everything
// here is pure: identical inputs always produce identical updates, which is
// what makes queue replay and idempotent application safe to reason about.
package evolution

import (
	"time"

	"github.com/mikedesigns-nvisia/spiral-journal/internal/types"
)

// TrendDeadBand is the tolerance below which a level change is classified as
// stable. Prevents trend flapping on negligible changes.
const TrendDeadBand = 0.01

// MilestoneThresholds are the one-way level crossings recorded per core.
var MilestoneThresholds = []float64{0.25, 0.5, 0.75, 0.9}

// Evolve computes the core updates an analysis implies for the given cores.
// Cores absent from the analysis's adjustments are left untouched: absence is
// not a zero delta. The cores slice is read-only; updates are returned in the
// canonical core order for determinism.
func Evolve(cores []types.EmotionalCore, analysis *types.AnalysisResult, entryID string, now time.Time) []types.CoreUpdate {
	byID := make(map[types.CoreID]types.EmotionalCore, len(cores))
	for _, c := range cores {
		byID[c.ID] = c
	}

	var updates []types.CoreUpdate
	for _, id := range types.AllCoreIDs() {
		adjustment, ok := analysis.CoreAdjustments[id]
		if !ok {
			continue
		}
		core, ok := byID[id]
		if !ok {
			continue
		}

		delta := adjustment * weight(analysis.EmotionalIntensity, analysis.Confidence)
		newLevel := clamp(core.CurrentLevel+delta, 0.0, 1.0)

		updates = append(updates, types.CoreUpdate{
			EntryID:            entryID,
			CoreID:             id,
			PreviousLevel:      core.CurrentLevel,
			NewLevel:           newLevel,
			TrendAfter:         classifyTrend(core.CurrentLevel, newLevel),
			MilestonesAchieved: milestonesCrossed(core, newLevel),
			AppliedAt:          now,
		})
	}
	return updates
}

// weight scales a raw adjustment by intensity and confidence so that
// low-confidence or low-intensity entries move cores less. The constants are
// tunable; correctness does not depend on them.
func weight(intensity, confidence float64) float64 {
	return (0.5 + 0.5*intensity) * confidence
}

// classifyTrend compares levels using the dead-band threshold.
func classifyTrend(previous, current float64) types.Trend {
	diff := current - previous
	switch {
	case diff > TrendDeadBand:
		return types.TrendRising
	case diff < -TrendDeadBand:
		return types.TrendDeclining
	default:
		return types.TrendStable
	}
}

// milestonesCrossed returns thresholds newly passed by this update.
// Already-achieved milestones never re-fire; a later decrease never
// un-achieves one.
func milestonesCrossed(core types.EmotionalCore, newLevel float64) []float64 {
	var crossed []float64
	for _, t := range MilestoneThresholds {
		if core.HasMilestone(t) {
			continue
		}
		if core.CurrentLevel < t && newLevel >= t {
			crossed = append(crossed, t)
		}
	}
	return crossed
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
