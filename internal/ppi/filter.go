package ppi

import (
	"log/slog"

	"github.com/cogniflow/cogniflow/internal/config"
)

// Cleaned is the output of one filtering pass over a window's intervals.
type Cleaned struct {
	// Intervals is the cleaned series, same length and order as the input,
	// with rejected positions replaced by interpolated values.
	Intervals []float64

	// Valid marks which input positions survived both filters.
	Valid []bool

	// QualityRatio is accepted count / total count.
	QualityRatio float64

	// Removed is the number of rejected positions.
	Removed int

	// LowQuality is set when QualityRatio fell below the configured
	// threshold. Non-fatal: the cleaned series is still usable.
	LowQuality bool
}

// Filter rejects implausible intervals and fills the gaps.
type Filter struct {
	cfg config.SignalConfig
}

// NewFilter returns a Filter using the given signal parameters.
func NewFilter(cfg config.SignalConfig) *Filter {
	return &Filter{cfg: cfg}
}

// Clean applies the physiological range filter and the successive-difference
// ectopic filter to intervals (milliseconds, chronological), then
// reconstructs rejected positions by monotone cubic interpolation over the
// surviving neighbors.
//
// The ectopic check compares each candidate against the previous accepted
// interval, so a single outlier does not also poison the beat after it.
func (f *Filter) Clean(intervals []float64) Cleaned {
	n := len(intervals)
	if n == 0 {
		return Cleaned{Intervals: []float64{}, Valid: []bool{}}
	}

	valid := make([]bool, n)
	lastAccepted := -1.0
	accepted := 0
	for i, v := range intervals {
		if v < f.cfg.MinPPIMs || v > f.cfg.MaxPPIMs {
			continue
		}
		if lastAccepted > 0 {
			dev := v - lastAccepted
			if dev < 0 {
				dev = -dev
			}
			if dev/lastAccepted > f.cfg.MaxPPIDiffRatio {
				continue
			}
		}
		valid[i] = true
		lastAccepted = v
		accepted++
	}

	quality := float64(accepted) / float64(n)
	out := Cleaned{
		Intervals:    interpolateGaps(intervals, valid),
		Valid:        valid,
		QualityRatio: quality,
		Removed:      n - accepted,
	}

	if quality < f.cfg.MinQualityRatio {
		out.LowQuality = true
		slog.Warn("ppi: low quality segment",
			"quality_pct", quality*100,
			"accepted", accepted,
			"total", n)
	}
	return out
}

// interpolateGaps returns a copy of intervals with invalid positions replaced
// by monotone cubic interpolation over the valid positions. With fewer than
// two valid positions the input is returned unchanged (copied), since there
// is nothing to interpolate between.
func interpolateGaps(intervals []float64, valid []bool) []float64 {
	out := make([]float64, len(intervals))
	copy(out, intervals)

	var xs, ys []float64
	for i, ok := range valid {
		if ok {
			xs = append(xs, float64(i))
			ys = append(ys, intervals[i])
		}
	}
	if len(xs) < 2 || len(xs) == len(intervals) {
		return out
	}

	eval := MonotoneCubic(xs, ys)
	for i, ok := range valid {
		if !ok {
			out[i] = eval(float64(i))
		}
	}
	return out
}
