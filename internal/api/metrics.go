package api

import (
	"net/http"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"
)

// metrics returns GET /metrics in Prometheus text exposition format:
// pipeline counters plus sensor link gauges.
func (h *Handler) metrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	stats := h.pipe.SnapshotStats()
	families := []*dto.MetricFamily{
		counter("cogniflow_pipeline_ticks_total", "Processing ticks while a session was active.", float64(stats.Ticks)),
		counter("cogniflow_pipeline_skipped_unfilled_total", "Ticks skipped because the window was under-filled.", float64(stats.SkippedUnfilled)),
		counter("cogniflow_pipeline_skipped_compute_total", "Ticks skipped because feature extraction failed.", float64(stats.SkippedCompute)),
		counter("cogniflow_pipeline_results_total", "Results emitted.", float64(stats.Emitted)),
		counter("cogniflow_pipeline_samples_ingested_total", "PPI samples accepted into the sliding window.", float64(stats.SamplesIngested)),
		counter("cogniflow_pipeline_intervals_dropped_total", "Intervals removed by the artifact filter.", float64(stats.IntervalsDropped)),
		counter("cogniflow_sensor_dropped_frames_total", "Malformed sensor frames dropped.", float64(h.link.DroppedFrames())),
		gauge("cogniflow_sensor_connection_state", "Sensor link state (0=disconnected through 5=error).", float64(h.link.State())),
		gauge("cogniflow_sensor_signal_quality", "Fraction of recent samples with skin contact.", h.link.SignalQuality()),
		gauge("cogniflow_sensor_battery_pct", "Last reported sensor battery percent.", float64(h.link.Battery())),
		gauge("cogniflow_sensor_heart_rate_bpm", "Last reported instantaneous heart rate.", float64(h.link.HeartRate())),
		gauge("cogniflow_ws_clients", "Connected websocket clients.", float64(h.hub.Count())),
		gauge("cogniflow_buffer_span_seconds", "Signal span currently buffered in the sliding window.", h.pipe.BufferSpanSec()),
	}

	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	w.Header().Set("Content-Type", string(format))
	enc := expfmt.NewEncoder(w, format)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return
		}
	}
}

func counter(name, help string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: proto.String(name),
		Help: proto.String(help),
		Type: dto.MetricType_COUNTER.Enum(),
		Metric: []*dto.Metric{
			{Counter: &dto.Counter{Value: proto.Float64(v)}},
		},
	}
}

func gauge(name, help string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: proto.String(name),
		Help: proto.String(help),
		Type: dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{
			{Gauge: &dto.Gauge{Value: proto.Float64(v)}},
		},
	}
}
