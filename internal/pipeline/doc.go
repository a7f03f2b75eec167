// Package pipeline orchestrates the per-tick processing chain from the
// sliding interval window to the emitted cognitive-state result, isolating
// each tick's failures so a bad window never stalls the stream. It owns the
// session-scoped smoothing and fatigue-history state and resets both at
// session boundaries.
package pipeline
