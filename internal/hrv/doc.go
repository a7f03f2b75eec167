// Package hrv computes the 14-metric heart-rate-variability feature vector
// from a cleaned interval window: seven time-domain statistics, four
// frequency-domain band powers from a Welch spectral estimate of the 4 Hz
// resampled series, and three Poincaré geometry measures.
package hrv
