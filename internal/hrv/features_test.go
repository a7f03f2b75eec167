package hrv

import (
	"errors"
	"math"
	"testing"
)

// almostEqual returns true if a and b are within epsilon of each other.
func almostEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) < epsilon
}

// steady returns n intervals of ms milliseconds each.
func steady(n int, ms float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = ms
	}
	return out
}

func TestExtract_ConstantSeries(t *testing.T) {
	// A metronome heart: 800 ms intervals, zero variability. Every
	// dispersion metric must be exactly 0 and mean HR exactly 75 bpm.
	e := NewExtractor()
	fv, err := e.Extract(steady(50, 800), 1.0)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if !almostEqual(fv.MeanRR, 800, 1e-9) {
		t.Errorf("MeanRR = %v, want 800", fv.MeanRR)
	}
	if !almostEqual(fv.MeanHR, 75, 1e-9) {
		t.Errorf("MeanHR = %v, want 75", fv.MeanHR)
	}
	for _, check := range []struct {
		name string
		got  float64
	}{
		{"SDNN", fv.SDNN}, {"RMSSD", fv.RMSSD}, {"PNN50", fv.PNN50},
		{"SDSD", fv.SDSD}, {"CVRR", fv.CVRR}, {"SD1", fv.SD1}, {"SD2", fv.SD2},
	} {
		if check.got != 0 {
			t.Errorf("%s = %v, want 0 for a constant series", check.name, check.got)
		}
	}
	if fv.SampleCount != 50 || fv.QualityRatio != 1.0 {
		t.Errorf("metadata = %d/%v, want 50/1.0", fv.SampleCount, fv.QualityRatio)
	}
}

func TestExtract_TooFewSamples(t *testing.T) {
	e := NewExtractor()

	for _, rr := range [][]float64{nil, {}, {800}} {
		_, err := e.Extract(rr, 1.0)
		if err == nil {
			t.Fatalf("Extract(%v) succeeded, want error", rr)
		}
		var ce *ComputationError
		if !errors.As(err, &ce) {
			t.Fatalf("Extract error type = %T, want *ComputationError", err)
		}
		if ce.SampleCount != len(rr) {
			t.Errorf("SampleCount = %d, want %d", ce.SampleCount, len(rr))
		}
	}
}

func TestExtract_TimeDomain(t *testing.T) {
	e := NewExtractor()

	// Alternating 780/820: every successive difference is ±40 ms.
	rr := []float64{780, 820, 780, 820, 780, 820}
	fv, err := e.Extract(rr, 1.0)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if !almostEqual(fv.MeanRR, 800, 1e-9) {
		t.Errorf("MeanRR = %v, want 800", fv.MeanRR)
	}
	if !almostEqual(fv.RMSSD, 40, 1e-9) {
		t.Errorf("RMSSD = %v, want 40", fv.RMSSD)
	}
	// |±40| > 50 is false for every pair.
	if fv.PNN50 != 0 {
		t.Errorf("PNN50 = %v, want 0 (differences are exactly 40 ms)", fv.PNN50)
	}
}

func TestExtract_PNN50(t *testing.T) {
	e := NewExtractor()

	// Differences: +60, -60, +10, -10. Two of four exceed 50 ms.
	rr := []float64{800, 860, 800, 810, 800}
	fv, err := e.Extract(rr, 1.0)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if !almostEqual(fv.PNN50, 50, 1e-9) {
		t.Errorf("PNN50 = %v, want 50", fv.PNN50)
	}
}

func TestExtract_ExactlyTwoSamples(t *testing.T) {
	// The minimum viable window: one successive difference, no sample
	// variance for SDSD or the Poincaré descriptors.
	e := NewExtractor()
	fv, err := e.Extract([]float64{800, 840}, 0.9)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if !almostEqual(fv.RMSSD, 40, 1e-9) {
		t.Errorf("RMSSD = %v, want 40", fv.RMSSD)
	}
	if fv.SDSD != 0 || fv.SD1 != 0 || fv.SD2 != 0 {
		t.Errorf("SDSD/SD1/SD2 = %v/%v/%v, want all 0 at two samples",
			fv.SDSD, fv.SD1, fv.SD2)
	}
	if fv.QualityRatio != 0.9 {
		t.Errorf("QualityRatio = %v, want 0.9", fv.QualityRatio)
	}
}

func TestExtract_Poincare(t *testing.T) {
	e := NewExtractor()

	rr := []float64{800, 840, 790, 830, 805, 815}
	fv, err := e.Extract(rr, 1.0)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	// SD1 = std(successive diffs)/sqrt(2), SD2 = std(successive sums)/sqrt(2).
	diffs := []float64{40, -50, 40, -25, 10}
	sums := []float64{1640, 1630, 1620, 1635, 1620}
	wantSD1 := sampleStd(diffs, mean(diffs)) / math.Sqrt2
	wantSD2 := sampleStd(sums, mean(sums)) / math.Sqrt2

	if !almostEqual(fv.SD1, wantSD1, 1e-9) {
		t.Errorf("SD1 = %v, want %v", fv.SD1, wantSD1)
	}
	if !almostEqual(fv.SD2, wantSD2, 1e-9) {
		t.Errorf("SD2 = %v, want %v", fv.SD2, wantSD2)
	}
	if !almostEqual(fv.SDRatio, wantSD1/wantSD2, 1e-9) {
		t.Errorf("SDRatio = %v, want %v", fv.SDRatio, wantSD1/wantSD2)
	}
}

func TestVector_MatchesNames(t *testing.T) {
	fv := FeatureVector{MeanHR: 1, MeanRR: 2, SDNN: 3, RMSSD: 4, PNN50: 5,
		SDSD: 6, CVRR: 7, LFPower: 8, HFPower: 9, LFHFRatio: 10,
		TotalPower: 11, SD1: 12, SD2: 13, SDRatio: 14}

	vec := fv.Vector()
	if len(vec) != len(Names) {
		t.Fatalf("Vector length %d != Names length %d", len(vec), len(Names))
	}
	for i, v := range vec {
		if v != float64(i+1) {
			t.Errorf("Vector[%d] (%s) = %v, want %v", i, Names[i], v, i+1)
		}
	}
}
