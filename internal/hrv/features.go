package hrv

import (
	"fmt"
	"math"
)

// FeatureVector holds the 14 HRV metrics plus the window metadata carried
// through to scoring and emission. All metric fields are finite; statistics
// that need more data than the window provides degrade to 0 rather than NaN.
type FeatureVector struct {
	// Time domain.
	MeanHR float64 `json:"mean_hr"`  // beats/min, 60000 / mean interval
	MeanRR float64 `json:"mean_rr"`  // ms
	SDNN   float64 `json:"sdnn"`     // ms, sample std of intervals
	RMSSD  float64 `json:"rmssd"`    // ms, RMS of successive differences
	PNN50  float64 `json:"pnn50"`    // % of successive differences > 50 ms
	SDSD   float64 `json:"sdsd"`     // ms, sample std of successive differences
	CVRR   float64 `json:"cv_rr"`    // SDNN / MeanRR

	// Frequency domain.
	LFPower    float64 `json:"lf_power"`    // ms^2, 0.04-0.15 Hz
	HFPower    float64 `json:"hf_power"`    // ms^2, 0.15-0.40 Hz
	LFHFRatio  float64 `json:"lf_hf_ratio"`
	TotalPower float64 `json:"total_power"` // LF + HF

	// Nonlinear (Poincaré).
	SD1     float64 `json:"sd1"` // ms
	SD2     float64 `json:"sd2"` // ms
	SDRatio float64 `json:"sd_ratio"`

	// Window metadata.
	QualityRatio float64 `json:"quality_ratio"`
	SampleCount  int     `json:"sample_count"`
}

// Names lists the metric fields in model input order.
var Names = []string{
	"mean_hr", "mean_rr", "sdnn", "rmssd", "pnn50", "sdsd", "cv_rr",
	"lf_power", "hf_power", "lf_hf_ratio", "total_power",
	"sd1", "sd2", "sd_ratio",
}

// Vector returns the metric fields as an ordered slice matching Names.
func (f FeatureVector) Vector() []float64 {
	return []float64{
		f.MeanHR, f.MeanRR, f.SDNN, f.RMSSD, f.PNN50, f.SDSD, f.CVRR,
		f.LFPower, f.HFPower, f.LFHFRatio, f.TotalPower,
		f.SD1, f.SD2, f.SDRatio,
	}
}

// ComputationError reports a window from which features cannot be derived.
// The tick that produced the window is skipped; the error never propagates a
// partial vector.
type ComputationError struct {
	SampleCount int
	Reason      string
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("hrv: cannot compute features: %s (samples=%d)",
		e.Reason, e.SampleCount)
}

// Extractor computes feature vectors from cleaned interval series.
type Extractor struct{}

// NewExtractor returns a ready Extractor.
func NewExtractor() *Extractor { return &Extractor{} }

// Extract computes the full feature vector from rr (cleaned intervals in
// milliseconds, chronological). It fails with a ComputationError when fewer
// than two samples are present, since neither successive differences nor a
// spectrum exist.
func (e *Extractor) Extract(rr []float64, qualityRatio float64) (FeatureVector, error) {
	if len(rr) < 2 {
		return FeatureVector{}, &ComputationError{
			SampleCount: len(rr),
			Reason:      "need at least 2 intervals",
		}
	}

	fv := FeatureVector{
		QualityRatio: qualityRatio,
		SampleCount:  len(rr),
	}
	e.timeDomain(rr, &fv)
	e.frequencyDomain(rr, &fv)
	e.nonlinear(rr, &fv)
	return fv, nil
}

func (e *Extractor) timeDomain(rr []float64, fv *FeatureVector) {
	fv.MeanRR = mean(rr)
	if fv.MeanRR > 0 {
		fv.MeanHR = 60000.0 / fv.MeanRR
		fv.SDNN = sampleStd(rr, fv.MeanRR)
		fv.CVRR = fv.SDNN / fv.MeanRR
	}

	diffs := successiveDiffs(rr)

	var sumSq float64
	nn50 := 0
	for _, d := range diffs {
		sumSq += d * d
		if math.Abs(d) > 50 {
			nn50++
		}
	}
	fv.RMSSD = math.Sqrt(sumSq / float64(len(diffs)))
	fv.PNN50 = float64(nn50) / float64(len(diffs)) * 100

	if len(diffs) > 1 {
		fv.SDSD = sampleStd(diffs, mean(diffs))
	}
}

func (e *Extractor) frequencyDomain(rr []float64, fv *FeatureVector) {
	lf, hf := bandPowers(rr)
	fv.LFPower = lf
	fv.HFPower = hf
	fv.TotalPower = lf + hf
	if hf > 0 {
		fv.LFHFRatio = lf / hf
	}
}

// nonlinear derives the Poincaré descriptors from consecutive interval
// pairs: SD1 is the spread across the identity line (short-term
// variability), SD2 along it (long-term).
func (e *Extractor) nonlinear(rr []float64, fv *FeatureVector) {
	if len(rr) < 3 {
		// A single pair has no sample variance.
		return
	}
	n := len(rr) - 1
	diff := make([]float64, n)
	summ := make([]float64, n)
	for i := 0; i < n; i++ {
		diff[i] = rr[i+1] - rr[i]
		summ[i] = rr[i+1] + rr[i]
	}
	fv.SD1 = sampleStd(diff, mean(diff)) / math.Sqrt2
	fv.SD2 = sampleStd(summ, mean(summ)) / math.Sqrt2
	if fv.SD2 > 0 {
		fv.SDRatio = fv.SD1 / fv.SD2
	}
}

func successiveDiffs(rr []float64) []float64 {
	diffs := make([]float64, len(rr)-1)
	for i := 1; i < len(rr); i++ {
		diffs[i-1] = rr[i] - rr[i-1]
	}
	return diffs
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// sampleStd is the n-1 (Bessel-corrected) standard deviation.
func sampleStd(xs []float64, mu float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var ss float64
	for _, x := range xs {
		d := x - mu
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}
