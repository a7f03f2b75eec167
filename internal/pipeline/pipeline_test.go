package pipeline

import (
	"testing"
	"time"

	"github.com/cogniflow/cogniflow/internal/config"
	"github.com/cogniflow/cogniflow/internal/estimate"
	"github.com/cogniflow/cogniflow/internal/sensor"
)

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testPipeline() (*Pipeline, *[]Result) {
	sig := config.SignalConfig{
		WindowSizeSec:   30,
		WindowStepSec:   5,
		MinPPIMs:        300,
		MaxPPIMs:        2000,
		MaxPPIDiffRatio: 0.20,
		MinQualityRatio: 0.80,
	}
	sc := config.ScoringConfig{SmoothingAlpha: 0.3, FatigueHorizonMin: 10}

	p := New(sig, sc, estimate.NewHeuristicScorer())
	var results []Result
	p.OnResult(func(r Result) { results = append(results, r) })
	return p, &results
}

// batch builds a sensor batch of n steady 1000 ms intervals.
func batch(n int) []sensor.PPISample {
	samples := make([]sensor.PPISample, n)
	for i := range samples {
		samples[i] = sensor.PPISample{IntervalMs: 1000, SkinContact: true}
	}
	return samples
}

func TestPipeline_IngestDiscardedWhenInactive(t *testing.T) {
	p, _ := testPipeline()

	p.Ingest(sensor.Batch{Samples: batch(10), Arrival: baseTime})
	if got := p.SnapshotStats().SamplesIngested; got != 0 {
		t.Errorf("SamplesIngested = %d without a session, want 0", got)
	}

	p.StartSession()
	p.Ingest(sensor.Batch{Samples: batch(10), Arrival: baseTime})
	if got := p.SnapshotStats().SamplesIngested; got != 10 {
		t.Errorf("SamplesIngested = %d, want 10", got)
	}
}

func TestPipeline_TickNoopWithoutSession(t *testing.T) {
	p, results := testPipeline()

	p.Tick()
	if got := p.SnapshotStats().Ticks; got != 0 {
		t.Errorf("Ticks = %d without a session, want 0", got)
	}
	if len(*results) != 0 {
		t.Errorf("results emitted without a session: %d", len(*results))
	}
}

func TestPipeline_FirstEmissionAtFillThreshold(t *testing.T) {
	// 5-sample batches of 1000 ms arriving every 5 s. The window needs
	// 30 * 0.8 = 24 s of signal before the first emission, which the
	// fifth batch provides.
	p, results := testPipeline()
	p.StartSession()

	for k := 1; k <= 4; k++ {
		p.Ingest(sensor.Batch{Samples: batch(5), Arrival: baseTime.Add(time.Duration(5*k) * time.Second)})
		p.Tick()
	}
	if len(*results) != 0 {
		t.Fatalf("emitted %d results before the fill threshold", len(*results))
	}
	if got := p.SnapshotStats().SkippedUnfilled; got != 4 {
		t.Errorf("SkippedUnfilled = %d, want 4", got)
	}

	p.Ingest(sensor.Batch{Samples: batch(5), Arrival: baseTime.Add(25 * time.Second)})
	p.Tick()
	if len(*results) != 1 {
		t.Fatalf("emitted %d results at the fill threshold, want 1", len(*results))
	}

	res := (*results)[0]
	if res.WindowQuality != 1.0 {
		t.Errorf("WindowQuality = %v, want 1.0", res.WindowQuality)
	}
	if res.QualityWarning {
		t.Error("QualityWarning set on a clean window")
	}
	// Steady 1000 ms means 60 bpm and zero variability.
	if res.Features.MeanHR != 60 {
		t.Errorf("MeanHR = %v, want 60", res.Features.MeanHR)
	}
	for _, s := range []float64{res.Scores.Stress, res.Scores.CognitiveLoad, res.Scores.Fatigue} {
		if s < 0 || s > 100 {
			t.Errorf("score %v outside [0, 100]", s)
		}
	}

	stats := p.SnapshotStats()
	if stats.Emitted != 1 || stats.Ticks != 5 {
		t.Errorf("stats = %+v, want Emitted 1 / Ticks 5", stats)
	}
}

func TestPipeline_TrendNeedsHistory(t *testing.T) {
	p, results := testPipeline()
	p.StartSession()

	fill(p, 0)
	p.Tick()
	if len(*results) != 1 {
		t.Fatalf("results = %d, want 1", len(*results))
	}
	if got := (*results)[0].FatigueTrend; got.Confidence != 0 {
		t.Errorf("first-emission trend confidence = %v, want 0", got.Confidence)
	}

	fill(p, 30*time.Second)
	p.Tick()
	if len(*results) != 2 {
		t.Fatalf("results = %d, want 2", len(*results))
	}
	// Two points define a line; confidence stays low while the history
	// span is short but the trend is now populated.
	second := (*results)[1].FatigueTrend
	if second.Confidence < 0 || second.Confidence > 1 {
		t.Errorf("trend confidence = %v outside [0, 1]", second.Confidence)
	}
}

func TestPipeline_SessionBoundariesResetState(t *testing.T) {
	p, results := testPipeline()

	p.StartSession()
	fill(p, 0)
	p.Tick()
	if len(*results) != 1 {
		t.Fatalf("results = %d, want 1", len(*results))
	}

	// Stop discards the partial window: a new session must refill from
	// scratch before emitting again.
	p.StopSession()
	p.StartSession()
	p.Tick()
	if len(*results) != 1 {
		t.Errorf("tick after restart emitted from a stale window")
	}

	fill(p, time.Minute)
	p.Tick()
	if len(*results) != 2 {
		t.Errorf("results = %d after refilling the new session, want 2", len(*results))
	}
}

func TestPipeline_ArtifactsReflectedInQuality(t *testing.T) {
	p, results := testPipeline()
	p.StartSession()

	// One wild outlier inside an otherwise steady stream.
	samples := batch(30)
	samples[10].IntervalMs = 2500
	p.Ingest(sensor.Batch{Samples: samples, Arrival: baseTime.Add(30 * time.Second)})
	p.Tick()

	if len(*results) != 1 {
		t.Fatalf("results = %d, want 1", len(*results))
	}
	res := (*results)[0]
	if res.WindowQuality >= 1.0 {
		t.Errorf("WindowQuality = %v, want < 1.0 with an artifact present", res.WindowQuality)
	}
	if got := p.SnapshotStats().IntervalsDropped; got != 1 {
		t.Errorf("IntervalsDropped = %d, want 1", got)
	}
}

// fill ingests 30 s of steady signal arriving at baseTime+offset.
func fill(p *Pipeline, offset time.Duration) {
	p.Ingest(sensor.Batch{Samples: batch(30), Arrival: baseTime.Add(offset)})
}
