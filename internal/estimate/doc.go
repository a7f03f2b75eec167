// Package estimate maps HRV feature vectors to the three cognitive-state
// scores (stress, cognitive load, fatigue), each clamped to [0, 100]. Two
// interchangeable variants exist: a heuristic weighted combination that is
// always available, and a trained linear model loaded from JSON artifacts
// that silently falls back to the heuristic when its artifacts are missing
// or corrupt.
package estimate
