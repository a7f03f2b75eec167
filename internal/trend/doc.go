// Package trend smooths per-tick cognitive scores with an exponential
// moving average and fits a short-horizon linear projection over the bounded
// fatigue history. Both hold session-scoped state owned by the pipeline and
// reset at session boundaries.
package trend
