package evolution

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/mikedesigns-nvisia/spiral-journal/internal/types"
)

func defaultCores() []types.EmotionalCore {
	cores := make([]types.EmotionalCore, 0, 6)
	for _, id := range types.AllCoreIDs() {
		cores = append(cores, types.EmotionalCore{
			ID:           id,
			CurrentLevel: types.DefaultCoreLevel,
			Trend:        types.TrendStable,
		})
	}
	return cores
}

func analysisWith(adjustments map[types.CoreID]float64, intensity, confidence float64) *types.AnalysisResult {
	return &types.AnalysisResult{
		EntryID:            "entry-1",
		PrimaryEmotions:    []string{"joy"},
		EmotionalIntensity: intensity,
		CoreAdjustments:    adjustments,
		Confidence:         confidence,
		Provenance:         types.ProvenanceRemote,
	}
}

func TestEvolve_WeightedDelta(t *testing.T) {
	// Given: resilience at 0.5, adjustment 0.4, intensity 0.8, confidence 0.9
	cores := defaultCores()
	analysis := analysisWith(map[types.CoreID]float64{types.CoreResilience: 0.4}, 0.8, 0.9)

	// When: evolving
	updates := Evolve(cores, analysis, "entry-1", time.Now())

	// Then: delta = 0.4 * (0.5 + 0.4) * 0.9 = 0.324
	if len(updates) != 1 {
		t.Fatalf("expected 1 update, got %d", len(updates))
	}
	u := updates[0]
	if u.CoreID != types.CoreResilience {
		t.Errorf("expected resilience update, got %s", u.CoreID)
	}
	if math.Abs(u.NewLevel-0.824) > 1e-9 {
		t.Errorf("expected new level 0.824, got %f", u.NewLevel)
	}
	if u.TrendAfter != types.TrendRising {
		t.Errorf("expected rising trend, got %s", u.TrendAfter)
	}
	if !reflect.DeepEqual(u.MilestonesAchieved, []float64{0.75}) {
		t.Errorf("expected milestone 0.75, got %v", u.MilestonesAchieved)
	}
}

func TestEvolve_Deterministic(t *testing.T) {
	cores := defaultCores()
	analysis := analysisWith(map[types.CoreID]float64{
		types.CoreOptimism:      0.3,
		types.CoreResilience:    -0.2,
		types.CoreGrowthMindset: 0.1,
	}, 0.6, 0.7)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := Evolve(cores, analysis, "entry-1", now)
	second := Evolve(cores, analysis, "entry-1", now)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("identical inputs produced different updates:\n%v\n%v", first, second)
	}
}

func TestEvolve_TrendDeadBand(t *testing.T) {
	tests := []struct {
		name       string
		adjustment float64
		intensity  float64
		confidence float64
		want       types.Trend
	}{
		// delta = adj * (0.5+0.5*intensity) * confidence
		{"tiny positive delta is stable", 0.01, 0.0, 1.0, types.TrendStable}, // 0.005
		{"clear positive delta rises", 0.1, 0.0, 1.0, types.TrendRising},     // 0.05
		{"clear negative delta declines", -0.1, 0.0, 1.0, types.TrendDeclining},
		{"zero delta is stable", 0.0, 1.0, 1.0, types.TrendStable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cores := defaultCores()
			analysis := analysisWith(map[types.CoreID]float64{types.CoreOptimism: tt.adjustment}, tt.intensity, tt.confidence)

			updates := Evolve(cores, analysis, "entry-1", time.Now())

			if len(updates) != 1 {
				t.Fatalf("expected 1 update, got %d", len(updates))
			}
			if updates[0].TrendAfter != tt.want {
				t.Errorf("expected trend %s, got %s", tt.want, updates[0].TrendAfter)
			}
		})
	}
}

func TestEvolve_ClampsToBounds(t *testing.T) {
	cores := []types.EmotionalCore{
		{ID: types.CoreOptimism, CurrentLevel: 0.95, Trend: types.TrendStable},
		{ID: types.CoreResilience, CurrentLevel: 0.05, Trend: types.TrendStable},
	}
	analysis := analysisWith(map[types.CoreID]float64{
		types.CoreOptimism:   1.0,
		types.CoreResilience: -1.0,
	}, 1.0, 1.0)

	updates := Evolve(cores, analysis, "entry-1", time.Now())

	for _, u := range updates {
		if u.NewLevel < 0.0 || u.NewLevel > 1.0 {
			t.Errorf("core %s level %f out of bounds", u.CoreID, u.NewLevel)
		}
	}
}

func TestEvolve_AbsentAdjustmentIsNotZeroDelta(t *testing.T) {
	cores := defaultCores()
	analysis := analysisWith(map[types.CoreID]float64{types.CoreCreativity: 0.2}, 0.5, 0.5)

	updates := Evolve(cores, analysis, "entry-1", time.Now())

	if len(updates) != 1 {
		t.Fatalf("expected exactly 1 update, got %d", len(updates))
	}
	if updates[0].CoreID != types.CoreCreativity {
		t.Errorf("expected creativity update, got %s", updates[0].CoreID)
	}
}

func TestEvolve_MilestonesNeverRefire(t *testing.T) {
	// Given: a core that already achieved 0.5 and dropped back below it
	cores := []types.EmotionalCore{
		{
			ID:           types.CoreOptimism,
			CurrentLevel: 0.3,
			Trend:        types.TrendDeclining,
			Milestones:   []float64{0.25, 0.5},
		},
	}
	// When: rising back across 0.5
	analysis := analysisWith(map[types.CoreID]float64{types.CoreOptimism: 0.5}, 1.0, 1.0)
	updates := Evolve(cores, analysis, "entry-1", time.Now())

	// Then: 0.5 does not re-fire; only truly new crossings count
	if len(updates) != 1 {
		t.Fatalf("expected 1 update, got %d", len(updates))
	}
	for _, m := range updates[0].MilestonesAchieved {
		if m == 0.5 || m == 0.25 {
			t.Errorf("milestone %.2f re-fired", m)
		}
	}
	// 0.3 + 0.5 = 0.8 crosses 0.75 for the first time
	if !reflect.DeepEqual(updates[0].MilestonesAchieved, []float64{0.75}) {
		t.Errorf("expected new milestone 0.75, got %v", updates[0].MilestonesAchieved)
	}
}

func TestEvolve_MultipleMilestonesInOneUpdate(t *testing.T) {
	cores := []types.EmotionalCore{
		{ID: types.CoreGrowthMindset, CurrentLevel: 0.2, Trend: types.TrendStable},
	}
	analysis := analysisWith(map[types.CoreID]float64{types.CoreGrowthMindset: 1.0}, 1.0, 1.0)

	updates := Evolve(cores, analysis, "entry-1", time.Now())

	if len(updates) != 1 {
		t.Fatalf("expected 1 update, got %d", len(updates))
	}
	// 0.2 + 1.0 clamps to 1.0: crosses 0.25, 0.5, 0.75, 0.9
	want := []float64{0.25, 0.5, 0.75, 0.9}
	if !reflect.DeepEqual(updates[0].MilestonesAchieved, want) {
		t.Errorf("expected milestones %v, got %v", want, updates[0].MilestonesAchieved)
	}
}

func TestWeight_ScalesWithIntensityAndConfidence(t *testing.T) {
	if w := weight(1.0, 1.0); math.Abs(w-1.0) > 1e-9 {
		t.Errorf("full intensity and confidence should give weight 1.0, got %f", w)
	}
	if w := weight(0.0, 1.0); math.Abs(w-0.5) > 1e-9 {
		t.Errorf("zero intensity should halve the weight, got %f", w)
	}
	if w := weight(1.0, 0.0); w != 0.0 {
		t.Errorf("zero confidence should zero the weight, got %f", w)
	}
}
