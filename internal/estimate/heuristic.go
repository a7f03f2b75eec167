package estimate

import (
	"github.com/cogniflow/cogniflow/internal/hrv"
)

// Per-score weights. Each set must sum to 1.0 across its three inputs.
const (
	stressWeightLFHF  = 0.40
	stressWeightRMSSD = 0.40
	stressWeightHR    = 0.20

	loadWeightSDNN = 0.35
	loadWeightHR   = 0.35
	loadWeightSD1  = 0.30

	fatigueWeightRMSSD = 0.40
	fatigueWeightPNN50 = 0.35
	fatigueWeightHR    = 0.25
)

// HeuristicScorer is the rule-based estimator grounded in established
// HRV-cognition relationships: sympathetic activation (high LF/HF, low
// RMSSD) reads as stress, reduced overall variability with elevated heart
// rate as cognitive load, and parasympathetic withdrawal (falling RMSSD and
// pNN50) as fatigue. Always available; requires no external artifact.
type HeuristicScorer struct{}

// NewHeuristicScorer returns the heuristic estimator.
func NewHeuristicScorer() *HeuristicScorer { return &HeuristicScorer{} }

func (h *HeuristicScorer) Name() string { return "heuristic" }

// Score maps the feature vector to the three scores. Each contributing
// feature is first normalized into [0, 1]; the weighted combinations are
// clamped to [0, 100].
func (h *HeuristicScorer) Score(fv hrv.FeatureVector) Scores {
	stress := stressWeightLFHF*normLFHF(fv.LFHFRatio) +
		stressWeightRMSSD*normLowRMSSD(fv.RMSSD, 80) +
		stressWeightHR*normHR(fv.MeanHR, 60, 50, 0.6)

	load := loadWeightSDNN*normInverse(fv.SDNN, 100) +
		loadWeightHR*normHR(fv.MeanHR, 55, 55, 0.8) +
		loadWeightSD1*normInverse(fv.SD1, 50)

	fatigue := fatigueWeightRMSSD*scaled(normInverse(fv.RMSSD, 60), 0.8) +
		fatigueWeightPNN50*scaled(normInverse(fv.PNN50, 30), 0.8) +
		fatigueWeightHR*normHR(fv.MeanHR, 65, 40, 0.5)

	return Scores{
		Stress:        clamp(stress * 100),
		CognitiveLoad: clamp(load * 100),
		Fatigue:       clamp(fatigue * 100),
	}
}

// normLFHF maps the LF/HF ratio onto [0, 1]; the sympathetic-dominance
// range of interest is roughly 0.5-4.5.
func normLFHF(lfhf float64) float64 {
	return clamp01((lfhf - 0.5) / 4.0)
}

// normLowRMSSD maps a depressed RMSSD onto [0, 1]: 0 at or above ceiling
// (healthy variability), 1 at zero variability.
func normLowRMSSD(rmssd, ceiling float64) float64 {
	return clamp01(1 - rmssd/ceiling)
}

// normInverse is normLowRMSSD generalized to any "low value = high score"
// feature with the given ceiling.
func normInverse(v, ceiling float64) float64 {
	return clamp01(1 - v/ceiling)
}

// normHR maps heart-rate elevation above base onto [0, 1], where span bpm
// above base saturates at gain.
func normHR(hr, base, span, gain float64) float64 {
	return clamp01((hr - base) / span * gain)
}

// scaled damps a normalized value by the given factor, still in [0, 1].
func scaled(v, factor float64) float64 {
	return clamp01(v * factor)
}
