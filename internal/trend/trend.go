package trend

import (
	"math"
	"time"
)

const (
	// historyCap bounds the fatigue history to the most recent 120 ticks;
	// the oldest entry is evicted on overflow.
	historyCap = 120

	// reliableSpanMin is the history time-span, in minutes, at which the
	// coverage factor of the trend confidence reaches 1.
	reliableSpanMin = 5.0
)

// FatigueTrend is the short-horizon linear projection of the fatigue series.
type FatigueTrend struct {
	// Slope is in score units per minute; positive means rising fatigue.
	Slope float64 `json:"slope"`

	// Predicted is the projected fatigue score at the configured horizon,
	// clamped to [0, 100].
	Predicted float64 `json:"predicted"`

	// Confidence is the fit R² multiplied by the history coverage factor,
	// in [0, 1].
	Confidence float64 `json:"confidence"`
}

type point struct {
	t time.Time
	v float64
}

// FatigueTracker keeps the bounded (timestamp, fatigue) history and fits a
// linear trend over it. Mutated only by the processing tick, so it carries
// no locking.
type FatigueTracker struct {
	horizonMin float64

	ring  [historyCap]point
	head  int // index of the oldest entry
	count int
}

// NewFatigueTracker returns an empty tracker projecting horizonMin minutes
// ahead.
func NewFatigueTracker(horizonMin float64) *FatigueTracker {
	return &FatigueTracker{horizonMin: horizonMin}
}

// Add records one fatigue observation, evicting the oldest when full.
func (f *FatigueTracker) Add(t time.Time, fatigue float64) {
	idx := (f.head + f.count) % historyCap
	f.ring[idx] = point{t: t, v: fatigue}
	if f.count < historyCap {
		f.count++
	} else {
		f.head = (f.head + 1) % historyCap
	}
}

// Len returns the number of recorded observations.
func (f *FatigueTracker) Len() int { return f.count }

// SetHorizon replaces the projection horizon in minutes.
func (f *FatigueTracker) SetHorizon(horizonMin float64) { f.horizonMin = horizonMin }

// Reset clears the history on session start.
func (f *FatigueTracker) Reset() {
	f.head = 0
	f.count = 0
}

// Trend fits fatigue against elapsed minutes by least squares and projects
// the fitted line forward from the newest observation. With fewer than two
// observations the trend is undefined and reported with zero confidence.
func (f *FatigueTracker) Trend() FatigueTrend {
	if f.count < 2 {
		return FatigueTrend{}
	}

	ts := make([]float64, f.count) // minutes since first observation
	vs := make([]float64, f.count)
	first := f.ring[f.head].t
	for i := 0; i < f.count; i++ {
		p := f.ring[(f.head+i)%historyCap]
		ts[i] = p.t.Sub(first).Minutes()
		vs[i] = p.v
	}

	slope, _, r2 := leastSquares(ts, vs)

	current := vs[f.count-1]
	predicted := current + slope*f.horizonMin
	if predicted < 0 {
		predicted = 0
	} else if predicted > 100 {
		predicted = 100
	}

	coverage := ts[f.count-1] / reliableSpanMin
	if coverage > 1 {
		coverage = 1
	}
	confidence := r2 * coverage
	if confidence < 0 {
		confidence = 0
	} else if confidence > 1 {
		confidence = 1
	}

	return FatigueTrend{Slope: slope, Predicted: predicted, Confidence: confidence}
}

// leastSquares fits y = slope*x + intercept and returns the fit's R².
// A degenerate x spread yields a flat fit; a flat y series has R² = 0 by
// convention (no variance to explain).
func leastSquares(xs, ys []float64) (slope, intercept, r2 float64) {
	n := float64(len(xs))
	var sumX, sumY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX := sumX / n
	meanY := sumY / n

	var sxx, sxy float64
	for i := range xs {
		dx := xs[i] - meanX
		sxx += dx * dx
		sxy += dx * (ys[i] - meanY)
	}
	if sxx == 0 {
		return 0, meanY, 0
	}
	slope = sxy / sxx
	intercept = meanY - slope*meanX

	var ssRes, ssTot float64
	for i := range xs {
		fit := slope*xs[i] + intercept
		ssRes += (ys[i] - fit) * (ys[i] - fit)
		ssTot += (ys[i] - meanY) * (ys[i] - meanY)
	}
	if ssTot == 0 {
		return slope, intercept, 0
	}
	r2 = 1 - ssRes/ssTot
	if math.IsNaN(r2) {
		r2 = 0
	}
	return slope, intercept, r2
}
