package pipeline

import (
	"time"

	"github.com/cogniflow/cogniflow/internal/estimate"
	"github.com/cogniflow/cogniflow/internal/hrv"
	"github.com/cogniflow/cogniflow/internal/trend"
)

// Result is the combined per-tick output event: smoothed scores, the full
// feature vector, the fatigue trend projection, and window quality. One
// Result is emitted per successful tick; skipped ticks emit nothing.
type Result struct {
	Scores         estimate.Scores    `json:"scores"`
	Features       hrv.FeatureVector  `json:"features"`
	FatigueTrend   trend.FatigueTrend `json:"fatigue_trend"`
	WindowQuality  float64            `json:"window_quality"`
	QualityWarning bool               `json:"quality_warning,omitempty"`
	Timestamp      time.Time          `json:"timestamp"`
}

// Stats are the pipeline's running counters, exposed on the metrics
// endpoint.
type Stats struct {
	Ticks            uint64
	SkippedUnfilled  uint64
	SkippedCompute   uint64
	Emitted          uint64
	SamplesIngested  uint64
	IntervalsDropped uint64
}
