package trend

import (
	"testing"
	"time"
)

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// addLine records n observations, one every 5 s, following v = start + slopePerMin*t.
func addLine(f *FatigueTracker, n int, start, slopePerMin float64) {
	for i := 0; i < n; i++ {
		at := baseTime.Add(time.Duration(i) * 5 * time.Second)
		minutes := float64(i) * 5 / 60
		f.Add(at, start+slopePerMin*minutes)
	}
}

func TestTrend_UndefinedBelowTwoPoints(t *testing.T) {
	f := NewFatigueTracker(10)

	if got := f.Trend(); got != (FatigueTrend{}) {
		t.Errorf("empty tracker Trend = %+v, want zero value", got)
	}

	f.Add(baseTime, 50)
	if got := f.Trend(); got != (FatigueTrend{}) {
		t.Errorf("single-point Trend = %+v, want zero value", got)
	}
}

func TestTrend_PerfectLine(t *testing.T) {
	f := NewFatigueTracker(10)

	// 2 points/min over 6 minutes: 73 points, span past the 5-minute
	// reliability threshold.
	addLine(f, 73, 30, 2)

	got := f.Trend()
	if !almostEqual(got.Slope, 2, 1e-9) {
		t.Errorf("Slope = %v, want 2", got.Slope)
	}
	// Last value 30 + 2*6 = 42; projected 10 min ahead: 62.
	if !almostEqual(got.Predicted, 62, 1e-9) {
		t.Errorf("Predicted = %v, want 62", got.Predicted)
	}
	// Perfect fit over a full span: confidence exactly 1.
	if !almostEqual(got.Confidence, 1, 1e-9) {
		t.Errorf("Confidence = %v, want 1", got.Confidence)
	}
}

func TestTrend_ShortSpanLowersConfidence(t *testing.T) {
	f := NewFatigueTracker(10)

	// 2.5 minutes of perfect line: coverage 0.5.
	addLine(f, 31, 30, 2)

	got := f.Trend()
	if !almostEqual(got.Confidence, 0.5, 1e-9) {
		t.Errorf("Confidence = %v, want 0.5 at half coverage", got.Confidence)
	}
}

func TestTrend_FlatSeriesZeroConfidence(t *testing.T) {
	f := NewFatigueTracker(10)
	addLine(f, 73, 40, 0)

	got := f.Trend()
	if got.Slope != 0 {
		t.Errorf("Slope = %v, want 0", got.Slope)
	}
	if got.Confidence != 0 {
		t.Errorf("Confidence = %v, want 0 (no variance to explain)", got.Confidence)
	}
	if !almostEqual(got.Predicted, 40, 1e-9) {
		t.Errorf("Predicted = %v, want 40", got.Predicted)
	}
}

func TestTrend_PredictionClamped(t *testing.T) {
	f := NewFatigueTracker(60) // long horizon amplifies the slope

	addLine(f, 73, 50, 2) // last ~62, projected +120
	if got := f.Trend().Predicted; got != 100 {
		t.Errorf("Predicted = %v, want clamped 100", got)
	}

	f.Reset()
	addLine(f, 73, 50, -2) // falling; projected far below zero
	if got := f.Trend().Predicted; got != 0 {
		t.Errorf("Predicted = %v, want clamped 0", got)
	}
}

func TestTracker_RingEviction(t *testing.T) {
	f := NewFatigueTracker(10)

	// Overfill: 150 observations into a 120-slot history.
	for i := 0; i < 150; i++ {
		f.Add(baseTime.Add(time.Duration(i)*5*time.Second), float64(i))
	}

	if got := f.Len(); got != 120 {
		t.Errorf("Len = %d, want 120", got)
	}

	// The retained series is still the most recent straight line
	// (v = i, one point per 5 s → 12 points/min).
	got := f.Trend()
	if !almostEqual(got.Slope, 12, 1e-6) {
		t.Errorf("Slope = %v, want 12 after eviction", got.Slope)
	}
}

func TestTracker_Reset(t *testing.T) {
	f := NewFatigueTracker(10)
	addLine(f, 10, 30, 1)

	f.Reset()
	if f.Len() != 0 {
		t.Errorf("Len = %d after Reset", f.Len())
	}
	if got := f.Trend(); got != (FatigueTrend{}) {
		t.Errorf("Trend after Reset = %+v, want zero value", got)
	}
}
