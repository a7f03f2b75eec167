package estimate

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cogniflow/cogniflow/internal/hrv"
)

// ModelLoadError reports a trained-model artifact that is missing or
// corrupt. Callers fall back to the heuristic scorer; this error is never
// fatal.
type ModelLoadError struct {
	Path string
	Err  error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("estimate: load model artifact %q: %v", e.Path, e.Err)
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

// modelArtifact is the trained linear model: one weight row and intercept
// per score, applied to the standardized feature vector in hrv.Names order.
type modelArtifact struct {
	Weights    [][]float64 `json:"weights"`    // 3 rows x 14 columns
	Intercepts []float64   `json:"intercepts"` // stress, cognitive_load, fatigue
}

// scalerArtifact is the companion standardization transform:
// x' = (x - mean) / scale, per feature.
type scalerArtifact struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// ModelScorer applies a trained linear model over standardized features.
type ModelScorer struct {
	model  modelArtifact
	scaler scalerArtifact
}

// LoadModelScorer reads the model and scaler artifacts and validates their
// shapes against the feature vector.
func LoadModelScorer(modelPath, scalerPath string) (*ModelScorer, error) {
	var m modelArtifact
	if err := readJSON(modelPath, &m); err != nil {
		return nil, &ModelLoadError{Path: modelPath, Err: err}
	}
	var s scalerArtifact
	if err := readJSON(scalerPath, &s); err != nil {
		return nil, &ModelLoadError{Path: scalerPath, Err: err}
	}

	nf := len(hrv.Names)
	if len(m.Weights) != 3 || len(m.Intercepts) != 3 {
		return nil, &ModelLoadError{Path: modelPath,
			Err: fmt.Errorf("expected 3 score rows, got %d weights / %d intercepts",
				len(m.Weights), len(m.Intercepts))}
	}
	for i, row := range m.Weights {
		if len(row) != nf {
			return nil, &ModelLoadError{Path: modelPath,
				Err: fmt.Errorf("weight row %d has %d columns, want %d", i, len(row), nf)}
		}
	}
	if len(s.Mean) != nf || len(s.Scale) != nf {
		return nil, &ModelLoadError{Path: scalerPath,
			Err: fmt.Errorf("scaler shape %d/%d, want %d", len(s.Mean), len(s.Scale), nf)}
	}
	for i, sc := range s.Scale {
		if sc == 0 {
			return nil, &ModelLoadError{Path: scalerPath,
				Err: fmt.Errorf("scaler feature %d has zero scale", i)}
		}
	}

	return &ModelScorer{model: m, scaler: s}, nil
}

func (m *ModelScorer) Name() string { return "model" }

// Score standardizes the feature vector and applies the linear model.
// Output is clamped to [0, 100] per score regardless of what the model
// produces.
func (m *ModelScorer) Score(fv hrv.FeatureVector) Scores {
	x := fv.Vector()
	std := make([]float64, len(x))
	for i, v := range x {
		std[i] = (v - m.scaler.Mean[i]) / m.scaler.Scale[i]
	}

	var out [3]float64
	for row := 0; row < 3; row++ {
		sum := m.model.Intercepts[row]
		for i, w := range m.model.Weights[row] {
			sum += w * std[i]
		}
		out[row] = clamp(sum)
	}

	return Scores{Stress: out[0], CognitiveLoad: out[1], Fatigue: out[2]}
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
