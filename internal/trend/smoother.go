package trend

import "github.com/cogniflow/cogniflow/internal/estimate"

// Smoother applies an exponential moving average independently to each of
// the three scores. The first tick of a session seeds the state with the raw
// scores (no prior history); Reset restores that condition on session start.
type Smoother struct {
	alpha float64
	prev  *estimate.Scores
}

// NewSmoother returns a Smoother with the given EMA coefficient.
func NewSmoother(alpha float64) *Smoother {
	return &Smoother{alpha: alpha}
}

// Smooth returns alpha*raw + (1-alpha)*previous per score, and advances the
// state. The first call after construction or Reset returns raw unchanged.
func (s *Smoother) Smooth(raw estimate.Scores) estimate.Scores {
	if s.prev == nil {
		s.prev = &raw
		return raw
	}

	a := s.alpha
	out := estimate.Scores{
		Stress:        a*raw.Stress + (1-a)*s.prev.Stress,
		CognitiveLoad: a*raw.CognitiveLoad + (1-a)*s.prev.CognitiveLoad,
		Fatigue:       a*raw.Fatigue + (1-a)*s.prev.Fatigue,
		Timestamp:     raw.Timestamp,
	}
	s.prev = &out
	return out
}

// Reset discards the smoothing state so the next Smooth call seeds from raw.
func (s *Smoother) Reset() { s.prev = nil }

// SetAlpha replaces the EMA coefficient. Smoothing state is kept.
func (s *Smoother) SetAlpha(alpha float64) { s.alpha = alpha }
