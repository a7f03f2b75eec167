package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cogniflow/cogniflow/internal/config"
	"github.com/cogniflow/cogniflow/internal/estimate"
	"github.com/cogniflow/cogniflow/internal/hrv"
	"github.com/cogniflow/cogniflow/internal/ppi"
	"github.com/cogniflow/cogniflow/internal/sensor"
	"github.com/cogniflow/cogniflow/internal/trend"
)

// Pipeline drives the fixed-cadence processing tick: window snapshot →
// artifact filter → feature extraction → scoring → smoothing → trend → emit.
// A failure or skip at any stage aborts only that tick; ingestion and
// subsequent ticks are unaffected.
//
// Ingest is called from the sensor goroutine; everything else runs on the
// periodic path. The sliding window is the only state shared between the
// two, and it synchronizes internally.
type Pipeline struct {
	signalCfg config.SignalConfig

	window    *ppi.SlidingWindow
	filter    *ppi.Filter
	extractor *hrv.Extractor

	// Session-scoped state, owned here, mutated only under mu. Reset on
	// every session start so nothing leaks across sessions. The scorer
	// lives here too so a config reload can swap it mid-run.
	mu       sync.Mutex
	scorer   estimate.Scorer
	smoother *trend.Smoother
	tracker  *trend.FatigueTracker
	active   bool
	stats    Stats

	consumers []func(Result)
	now       func() time.Time // injectable for tests
}

// New wires a Pipeline from the configuration and the selected scorer.
func New(signalCfg config.SignalConfig, scoringCfg config.ScoringConfig, scorer estimate.Scorer) *Pipeline {
	return &Pipeline{
		signalCfg: signalCfg,
		window:    ppi.NewSlidingWindow(signalCfg),
		filter:    ppi.NewFilter(signalCfg),
		extractor: hrv.NewExtractor(),
		scorer:    scorer,
		smoother:  trend.NewSmoother(scoringCfg.SmoothingAlpha),
		tracker:   trend.NewFatigueTracker(scoringCfg.FatigueHorizonMin),
		now:       time.Now,
	}
}

// OnResult registers a consumer invoked with every emitted Result. All
// registrations must happen before Run.
func (p *Pipeline) OnResult(fn func(Result)) {
	p.consumers = append(p.consumers, fn)
}

// Ingest appends a sensor batch to the sliding window. Called from the
// sensor's receive goroutine; only the buffer append happens here, never
// processing. Batches outside an active session are discarded.
func (p *Pipeline) Ingest(b sensor.Batch) {
	p.mu.Lock()
	active := p.active
	p.mu.Unlock()
	if !active || len(b.Samples) == 0 {
		return
	}

	intervals := make([]float64, len(b.Samples))
	for i, s := range b.Samples {
		intervals[i] = s.IntervalMs
	}
	p.window.Add(intervals, b.Arrival)

	p.mu.Lock()
	p.stats.SamplesIngested += uint64(len(intervals))
	p.mu.Unlock()
}

// StartSession resets all session-scoped state (window, smoothing, fatigue
// history) and begins accepting samples and emitting results.
func (p *Pipeline) StartSession() {
	p.window.Reset()
	p.mu.Lock()
	p.smoother.Reset()
	p.tracker.Reset()
	p.active = true
	p.mu.Unlock()
	slog.Info("pipeline: session started")
}

// StopSession stops processing and discards the in-flight partial window.
// Nothing is flushed.
func (p *Pipeline) StopSession() {
	p.mu.Lock()
	p.active = false
	p.smoother.Reset()
	p.tracker.Reset()
	p.mu.Unlock()
	p.window.Reset()
	slog.Info("pipeline: session stopped")
}

// Active reports whether a session is running.
func (p *Pipeline) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Snapshot returns a copy of the running counters.
func (p *Pipeline) SnapshotStats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// BufferSpanSec returns the current buffered signal span in seconds.
func (p *Pipeline) BufferSpanSec() float64 { return p.window.SpanSec() }

// UpdateScoring swaps the scorer and applies new smoothing and trend
// parameters, taking effect from the next tick. Smoothing state and fatigue
// history are kept.
func (p *Pipeline) UpdateScoring(cfg config.ScoringConfig, scorer estimate.Scorer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scorer = scorer
	p.smoother.SetAlpha(cfg.SmoothingAlpha)
	p.tracker.SetHorizon(cfg.FatigueHorizonMin)
}

// Run executes the tick loop at the configured cadence until ctx is
// cancelled. Ticks never block on sensor I/O: each one runs against
// whatever the buffer currently holds.
func (p *Pipeline) Run(ctx context.Context) {
	step := time.Duration(p.signalCfg.WindowStepSec * float64(time.Second))
	ticker := time.NewTicker(step)
	defer ticker.Stop()

	slog.Info("pipeline: running", "step", step)
	for {
		select {
		case <-ctx.Done():
			slog.Info("pipeline: stopped")
			return
		case <-ticker.C:
			p.Tick()
		}
	}
}

// Tick runs one processing pass. Exported so tests (and simulated cadences)
// can drive the pipeline without the wall-clock ticker.
func (p *Pipeline) Tick() {
	p.mu.Lock()
	active := p.active
	if active {
		p.stats.Ticks++
	}
	p.mu.Unlock()
	if !active {
		return
	}

	win, ok := p.window.Snapshot()
	if !ok {
		p.mu.Lock()
		p.stats.SkippedUnfilled++
		p.mu.Unlock()
		slog.Debug("pipeline: window under-filled, tick skipped",
			"span_sec", p.window.SpanSec(),
			"needed_sec", p.signalCfg.WindowSizeSec*p.signalCfg.MinQualityRatio)
		return
	}

	cleaned := p.filter.Clean(win.Intervals)

	features, err := p.extractor.Extract(cleaned.Intervals, cleaned.QualityRatio)
	if err != nil {
		p.mu.Lock()
		p.stats.SkippedCompute++
		p.stats.IntervalsDropped += uint64(cleaned.Removed)
		p.mu.Unlock()
		slog.Warn("pipeline: feature extraction failed, tick skipped", "err", err)
		return
	}

	nowT := p.now()
	p.mu.Lock()
	scorer := p.scorer
	p.mu.Unlock()
	raw := scorer.Score(features)
	raw.Timestamp = nowT

	p.mu.Lock()
	scores := p.smoother.Smooth(raw)
	p.tracker.Add(nowT, scores.Fatigue)
	fatigueTrend := p.tracker.Trend()
	p.stats.Emitted++
	p.stats.IntervalsDropped += uint64(cleaned.Removed)
	p.mu.Unlock()

	res := Result{
		Scores:         scores,
		Features:       features,
		FatigueTrend:   fatigueTrend,
		WindowQuality:  cleaned.QualityRatio,
		QualityWarning: cleaned.LowQuality,
		Timestamp:      nowT,
	}
	for _, fn := range p.consumers {
		fn(res)
	}

	slog.Debug("pipeline: result emitted",
		"stress", scores.Stress,
		"load", scores.CognitiveLoad,
		"fatigue", scores.Fatigue,
		"quality", cleaned.QualityRatio,
		"samples", features.SampleCount)
}
