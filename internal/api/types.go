package api

import (
	"github.com/cogniflow/cogniflow/internal/pipeline"
	"github.com/cogniflow/cogniflow/internal/session"
)

// StatusResponse is the GET /api/v1/status body.
type StatusResponse struct {
	ConnectionState string         `json:"connection_state"`
	SignalQuality   float64        `json:"signal_quality"`
	BatteryPct      int            `json:"battery_pct"`
	HeartRate       int            `json:"heart_rate"`
	DroppedFrames   int            `json:"dropped_frames"`
	BufferSpanSec   float64        `json:"buffer_span_sec"`
	WSClients       int            `json:"ws_clients"`
	Session         *session.Info  `json:"session,omitempty"`
	Stats           StatsResponse  `json:"stats"`
}

// StatsResponse mirrors the pipeline counters.
type StatsResponse struct {
	Ticks            uint64 `json:"ticks"`
	SkippedUnfilled  uint64 `json:"skipped_unfilled"`
	SkippedCompute   uint64 `json:"skipped_compute"`
	Emitted          uint64 `json:"emitted"`
	SamplesIngested  uint64 `json:"samples_ingested"`
	IntervalsDropped uint64 `json:"intervals_dropped"`
}

// StartSessionRequest is the POST /api/v1/session/start body.
type StartSessionRequest struct {
	ActivityType string `json:"activity_type"`
}

// RecommendationsResponse is the session recommendations body.
type RecommendationsResponse struct {
	SessionID       string   `json:"session_id"`
	Recommendations []string `json:"recommendations"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// toStatsResponse maps pipeline counters to their JSON representation.
func toStatsResponse(s pipeline.Stats) StatsResponse {
	return StatsResponse{
		Ticks:            s.Ticks,
		SkippedUnfilled:  s.SkippedUnfilled,
		SkippedCompute:   s.SkippedCompute,
		Emitted:          s.Emitted,
		SamplesIngested:  s.SamplesIngested,
		IntervalsDropped: s.IntervalsDropped,
	}
}
