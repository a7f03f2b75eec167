// Package ppi cleans and windows the pulse-to-pulse interval stream.
//
// filter.go removes physiologically implausible and ectopic intervals and
// reconstructs the gaps by monotone cubic interpolation. Cleaning never hard
// fails: a low-quality segment is flagged, not rejected, so callers decide
// whether to act on degraded data.
//
// window.go maintains the sliding sample buffer shared between the ingestion
// goroutine (append only) and the processing tick (snapshot only). Window
// timestamps are reconstructed from the intervals themselves, so boundaries
// are signal-relative rather than wall-clock sampled.
package ppi
