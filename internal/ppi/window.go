package ppi

import (
	"sync"
	"time"

	"github.com/cogniflow/cogniflow/internal/config"
)

// Window is a consistent snapshot of the sliding buffer, handed to feature
// extraction. Intervals are chronological; timestamps are reconstructed from
// the cumulative interval durations, not wall-clock sampled.
type Window struct {
	Intervals  []float64 // milliseconds
	Timestamps []float64 // unix seconds, one per interval
	Start      float64   // unix seconds
	End        float64
}

// SampleCount returns the number of intervals in the window.
func (w Window) SampleCount() int { return len(w.Intervals) }

// Span returns the window's covered duration in seconds.
func (w Window) Span() float64 {
	if len(w.Intervals) < 2 {
		return 0
	}
	return w.End - w.Start
}

type sample struct {
	t   float64 // unix seconds
	ppi float64 // milliseconds
}

// SlidingWindow buffers interval samples across the ingestion and processing
// goroutines. The ingestion path only appends (Add), the processing tick only
// reads a consistent snapshot (Snapshot); both are serialized by the mutex so
// feature extraction never observes a torn buffer.
type SlidingWindow struct {
	cfg config.SignalConfig

	mu  sync.Mutex
	buf []sample
}

// NewSlidingWindow returns an empty window for the given signal parameters.
func NewSlidingWindow(cfg config.SignalConfig) *SlidingWindow {
	return &SlidingWindow{cfg: cfg}
}

// Add appends a batch of intervals that arrived together at the given time.
// Per-sample timestamps are reconstructed backward from arrival by cumulative
// interval sums, then appended oldest first. Samples older than the window
// span are evicted.
func (s *SlidingWindow) Add(intervalsMs []float64, arrival time.Time) {
	if len(intervalsMs) == 0 {
		return
	}

	t := float64(arrival.UnixNano()) / 1e9
	batch := make([]sample, len(intervalsMs))
	for i := len(intervalsMs) - 1; i >= 0; i-- {
		batch[i] = sample{t: t, ppi: intervalsMs[i]}
		t -= intervalsMs[i] / 1000.0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = append(s.buf, batch...)
	s.evictLocked()
}

// evictLocked drops samples older than the window span, measured from the
// newest sample.
func (s *SlidingWindow) evictLocked() {
	if len(s.buf) == 0 {
		return
	}
	cutoff := s.buf[len(s.buf)-1].t - s.cfg.WindowSizeSec
	i := 0
	for i < len(s.buf) && s.buf[i].t < cutoff {
		i++
	}
	if i > 0 {
		s.buf = append(s.buf[:0], s.buf[i:]...)
	}
}

// Snapshot returns a copy of the current window if its covered duration
// reaches the configured fill fraction of the window size. Otherwise it
// returns false and the tick is skipped; downstream stages never see an
// under-filled window.
func (s *SlidingWindow) Snapshot() (Window, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.buf) < 2 {
		return Window{}, false
	}

	span := s.buf[len(s.buf)-1].t - s.buf[0].t
	if span < s.cfg.WindowSizeSec*s.cfg.MinQualityRatio {
		return Window{}, false
	}

	w := Window{
		Intervals:  make([]float64, len(s.buf)),
		Timestamps: make([]float64, len(s.buf)),
		Start:      s.buf[0].t,
		End:        s.buf[len(s.buf)-1].t,
	}
	for i, smp := range s.buf {
		w.Intervals[i] = smp.ppi
		w.Timestamps[i] = smp.t
	}
	return w, true
}

// Len returns the current number of buffered samples.
func (s *SlidingWindow) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

// SpanSec returns the buffer's covered duration in seconds.
func (s *SlidingWindow) SpanSec() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) < 2 {
		return 0
	}
	return s.buf[len(s.buf)-1].t - s.buf[0].t
}

// Reset discards all buffered samples. Called on session boundaries so an
// in-flight partial window never leaks into the next session.
func (s *SlidingWindow) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = s.buf[:0]
}
