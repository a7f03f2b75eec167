package estimate

import (
	"log/slog"
	"time"

	"github.com/cogniflow/cogniflow/internal/config"
	"github.com/cogniflow/cogniflow/internal/hrv"
)

// Scores holds the three cognitive-state scores, each hard-clamped to
// [0, 100] by every Scorer implementation.
type Scores struct {
	Stress        float64   `json:"stress"`
	CognitiveLoad float64   `json:"cognitive_load"`
	Fatigue       float64   `json:"fatigue"`
	Timestamp     time.Time `json:"timestamp"`
}

// Scorer maps a feature vector to cognitive scores. The variant is selected
// once at startup and is transparent to the pipeline.
type Scorer interface {
	Score(fv hrv.FeatureVector) Scores

	// Name identifies the active variant ("heuristic" or "model") for
	// logging and the status API.
	Name() string
}

// Select returns the scorer for the given configuration: the trained-model
// variant when both artifacts load, otherwise the heuristic. A model that is
// absent or fails to load is a logged, non-fatal condition — never a startup
// failure.
func Select(cfg config.ScoringConfig) Scorer {
	if cfg.ModelPath == "" {
		slog.Info("estimate: no model configured, using heuristic scorer")
		return NewHeuristicScorer()
	}

	m, err := LoadModelScorer(cfg.ModelPath, cfg.ScalerPath)
	if err != nil {
		slog.Warn("estimate: model load failed, falling back to heuristic",
			"model", cfg.ModelPath, "err", err)
		return NewHeuristicScorer()
	}

	slog.Info("estimate: loaded trained model", "model", cfg.ModelPath)
	return m
}

// clamp restricts v to [0, 100].
func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// clamp01 restricts v to [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
