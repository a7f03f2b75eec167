package trend

import (
	"math"
	"testing"

	"github.com/cogniflow/cogniflow/internal/estimate"
)

// almostEqual returns true if a and b are within epsilon of each other.
func almostEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) < epsilon
}

func TestSmoother_FirstCallPassesThrough(t *testing.T) {
	s := NewSmoother(0.3)
	raw := estimate.Scores{Stress: 60, CognitiveLoad: 40, Fatigue: 20}

	got := s.Smooth(raw)
	if got != raw {
		t.Errorf("first Smooth = %+v, want raw %+v", got, raw)
	}
}

func TestSmoother_EMAExact(t *testing.T) {
	s := NewSmoother(0.3)
	s.Smooth(estimate.Scores{Stress: 50, CognitiveLoad: 50, Fatigue: 50})

	got := s.Smooth(estimate.Scores{Stress: 100, CognitiveLoad: 0, Fatigue: 50})

	// 0.3*raw + 0.7*prev per score.
	if !almostEqual(got.Stress, 65, 1e-9) {
		t.Errorf("Stress = %v, want 65", got.Stress)
	}
	if !almostEqual(got.CognitiveLoad, 35, 1e-9) {
		t.Errorf("CognitiveLoad = %v, want 35", got.CognitiveLoad)
	}
	if !almostEqual(got.Fatigue, 50, 1e-9) {
		t.Errorf("Fatigue = %v, want 50", got.Fatigue)
	}
}

func TestSmoother_ConvergesToConstantInput(t *testing.T) {
	s := NewSmoother(0.3)
	s.Smooth(estimate.Scores{Stress: 0})

	var got estimate.Scores
	for i := 0; i < 60; i++ {
		got = s.Smooth(estimate.Scores{Stress: 80})
	}
	if !almostEqual(got.Stress, 80, 1e-6) {
		t.Errorf("Stress after 60 constant ticks = %v, want ~80", got.Stress)
	}
}

func TestSmoother_Reset(t *testing.T) {
	s := NewSmoother(0.3)
	s.Smooth(estimate.Scores{Stress: 100})

	s.Reset()
	got := s.Smooth(estimate.Scores{Stress: 10})
	if got.Stress != 10 {
		t.Errorf("Smooth after Reset = %v, want raw 10", got.Stress)
	}
}

func TestSmoother_AlphaOneTracksRaw(t *testing.T) {
	s := NewSmoother(1.0)
	s.Smooth(estimate.Scores{Stress: 0})

	got := s.Smooth(estimate.Scores{Stress: 77})
	if got.Stress != 77 {
		t.Errorf("alpha=1 Smooth = %v, want 77", got.Stress)
	}
}
