package hrv

import (
	"math"

	"github.com/cogniflow/cogniflow/internal/ppi"
)

// Spectral estimation parameters. The interval series is resampled onto a
// uniform 4 Hz grid, mean-detrended, and fed through Welch averaging of
// Hann-windowed periodograms with 50% overlap and segments of at most 256
// samples. Band powers are trapezoid-integrated over the LF and HF ranges.
const (
	resampleHz = 4.0
	maxSegment = 256

	lfLow  = 0.04
	lfHigh = 0.15 // exclusive; HF starts here
	hfHigh = 0.40

	// minSpectrumSpanSec is the minimum signal duration for a usable
	// spectrum; below it the band powers report as 0.
	minSpectrumSpanSec = 10.0
)

// bandPowers returns the LF and HF power (ms^2) of the interval series.
func bandPowers(rr []float64) (lf, hf float64) {
	uniform := resample(rr)
	if uniform == nil {
		return 0, 0
	}

	// Mean removal so the DC component does not dominate the estimate.
	mu := mean(uniform)
	for i := range uniform {
		uniform[i] -= mu
	}

	freqs, psd := welch(uniform, resampleHz)

	lf = integrateBand(freqs, psd, lfLow, lfHigh, false)
	hf = integrateBand(freqs, psd, lfHigh, hfHigh, true)
	return lf, hf
}

// resample interpolates the irregular beat-to-beat series onto a uniform
// 4 Hz time grid. The time axis is the cumulative interval sum, zero-based.
// Returns nil when the series is too short for spectral analysis.
func resample(rr []float64) []float64 {
	if len(rr) < 2 {
		return nil
	}

	ts := make([]float64, len(rr))
	var cum float64
	for i, v := range rr {
		cum += v / 1000.0
		ts[i] = cum
	}
	span := ts[len(ts)-1] - ts[0]
	if span < minSpectrumSpanSec {
		return nil
	}

	eval := ppi.MonotoneCubic(ts, rr)
	n := int(span * resampleHz)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = eval(ts[0] + float64(i)/resampleHz)
	}
	return out
}

// welch estimates the one-sided power spectral density by averaging
// Hann-windowed periodograms of half-overlapping segments.
func welch(x []float64, fs float64) (freqs, psd []float64) {
	nseg := maxSegment
	if len(x) < nseg {
		nseg = len(x)
	}
	step := nseg / 2
	if step == 0 {
		step = 1
	}

	window := hann(nseg)
	var windowPower float64
	for _, w := range window {
		windowPower += w * w
	}

	nbins := nseg/2 + 1
	psd = make([]float64, nbins)
	segments := 0

	buf := make([]float64, nseg)
	for start := 0; start+nseg <= len(x); start += step {
		seg := x[start : start+nseg]

		// Per-segment constant detrend, then taper.
		segMean := mean(seg)
		for i, v := range seg {
			buf[i] = (v - segMean) * window[i]
		}

		for k := 0; k < nbins; k++ {
			var re, im float64
			for j, v := range buf {
				phase := -2 * math.Pi * float64(k) * float64(j) / float64(nseg)
				re += v * math.Cos(phase)
				im += v * math.Sin(phase)
			}
			p := (re*re + im*im) / (fs * windowPower)
			// One-sided: double everything except DC and Nyquist.
			if k != 0 && !(nseg%2 == 0 && k == nbins-1) {
				p *= 2
			}
			psd[k] += p
		}
		segments++
	}

	if segments == 0 {
		return nil, nil
	}
	for k := range psd {
		psd[k] /= float64(segments)
	}

	freqs = make([]float64, nbins)
	for k := range freqs {
		freqs[k] = float64(k) * fs / float64(nseg)
	}
	return freqs, psd
}

// hann returns the periodic Hann window of length n.
func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n)))
	}
	return w
}

// integrateBand trapezoid-integrates psd over frequencies in
// [low, high) — or [low, high] when inclusive is set.
func integrateBand(freqs, psd []float64, low, high float64, inclusive bool) float64 {
	var fs, ps []float64
	for i, f := range freqs {
		if f < low {
			continue
		}
		if f > high || (!inclusive && f == high) {
			break
		}
		fs = append(fs, f)
		ps = append(ps, psd[i])
	}
	if len(fs) < 2 {
		return 0
	}
	var area float64
	for i := 1; i < len(fs); i++ {
		area += (ps[i] + ps[i-1]) / 2 * (fs[i] - fs[i-1])
	}
	return area
}
