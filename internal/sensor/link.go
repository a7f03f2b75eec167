package sensor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cogniflow/cogniflow/internal/config"
)

// qualityWindow is the number of recent contact-quality flags tracked for
// the rolling signal-quality indicator.
const qualityWindow = 50

// AcquisitionError reports a connection failure after the retry bound was
// exhausted. It is surfaced upward as a transition to StateError, never
// silently swallowed.
type AcquisitionError struct {
	Attempts int
	Err      error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("sensor: connection failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// Batch is one delivered group of interval samples, stamped with the
// arrival time the window aggregator reconstructs timestamps from.
type Batch struct {
	Samples []PPISample
	Arrival time.Time
}

// Link owns the connection lifecycle to the measuring device and produces
// the raw sample stream. It is the exclusive owner of ConnectionState.
type Link struct {
	cfg       config.SensorConfig
	transport Transport
	now       func() time.Time // injectable for tests

	onSamples     func(Batch)
	onHeartRate   func(hr int, at time.Time)
	onStateChange func(ConnectionState)

	mu            sync.Mutex
	state         ConnectionState
	battery       int
	currentHR     int
	quality       []bool // ring of the last qualityWindow contact flags
	droppedFrames int
}

// NewLink returns a disconnected Link over the given transport.
func NewLink(cfg config.SensorConfig, transport Transport) *Link {
	return &Link{
		cfg:       cfg,
		transport: transport,
		now:       time.Now,
		state:     StateDisconnected,
		battery:   -1,
	}
}

// OnSamples registers the interval-batch consumer. Must be set before
// StartStreaming.
func (l *Link) OnSamples(fn func(Batch)) { l.onSamples = fn }

// OnHeartRate registers the heart-rate consumer.
func (l *Link) OnHeartRate(fn func(hr int, at time.Time)) { l.onHeartRate = fn }

// OnStateChange registers the state-change notification callback; it fires
// on every ConnectionState transition.
func (l *Link) OnStateChange(fn func(ConnectionState)) { l.onStateChange = fn }

// State returns the current connection state.
func (l *Link) State() ConnectionState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Battery returns the last read battery percentage, or -1 if never read.
func (l *Link) Battery() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.battery
}

// HeartRate returns the most recent heart rate, 0 before the first sample.
func (l *Link) HeartRate() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.currentHR
}

// SignalQuality returns the rolling average of the last 50 contact-quality
// flags, in [0, 1]. Available continuously while streaming, not only at
// emission ticks.
func (l *Link) SignalQuality() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.quality) == 0 {
		return 0
	}
	good := 0
	for _, ok := range l.quality {
		if ok {
			good++
		}
	}
	return float64(good) / float64(len(l.quality))
}

// DroppedFrames returns how many malformed frames were discarded.
func (l *Link) DroppedFrames() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.droppedFrames
}

// Connect walks Scanning → Connecting → Connected, retrying the transport
// up to the configured bound with a fixed delay between attempts. Exceeding
// the bound transitions to StateError and returns an AcquisitionError. A
// context cancellation mid-retry aborts cleanly back to Disconnected.
func (l *Link) Connect(ctx context.Context) error {
	l.setState(StateScanning)
	slog.Info("sensor: scanning", "device", l.cfg.DeviceID)

	l.setState(StateConnecting)
	var lastErr error
	for attempt := 1; attempt <= l.cfg.ReconnectAttempts; attempt++ {
		err := l.transport.Connect(ctx)
		if err == nil {
			l.setState(StateConnected)
			slog.Info("sensor: connected", "device", l.cfg.DeviceID, "attempt", attempt)
			l.readBattery(ctx)
			return nil
		}
		lastErr = err
		slog.Warn("sensor: connection attempt failed",
			"attempt", attempt, "of", l.cfg.ReconnectAttempts, "err", err)

		if attempt == l.cfg.ReconnectAttempts {
			break
		}
		select {
		case <-ctx.Done():
			l.setState(StateDisconnected)
			return ctx.Err()
		case <-time.After(l.cfg.ReconnectDelay):
		}
	}

	l.setState(StateError)
	return &AcquisitionError{Attempts: l.cfg.ReconnectAttempts, Err: lastErr}
}

// StartStreaming subscribes the characteristic handlers and transitions to
// StateStreaming. The link must be Connected.
func (l *Link) StartStreaming(ctx context.Context) error {
	if l.State() != StateConnected {
		return fmt.Errorf("sensor: cannot stream from state %q", l.State())
	}

	if err := l.transport.Subscribe(ctx, CharHeartRate, l.handleHeartRate); err != nil {
		l.setState(StateError)
		return fmt.Errorf("sensor: subscribe hr: %w", err)
	}
	if err := l.transport.Subscribe(ctx, CharPPI, l.handlePPI); err != nil {
		l.setState(StateError)
		return fmt.Errorf("sensor: subscribe ppi: %w", err)
	}
	if err := l.transport.Subscribe(ctx, CharBattery, l.handleBattery); err != nil {
		// Battery is informational; stream without it.
		slog.Warn("sensor: battery subscription failed", "err", err)
	}

	l.setState(StateStreaming)
	slog.Info("sensor: streaming", "device", l.cfg.DeviceID)
	return nil
}

// Stop closes the transport and returns to Disconnected. Safe to call from
// any state.
func (l *Link) Stop() {
	if err := l.transport.Close(); err != nil {
		slog.Warn("sensor: transport close", "err", err)
	}
	l.setState(StateDisconnected)
	slog.Info("sensor: disconnected", "device", l.cfg.DeviceID)
}

// Fail records an unrecoverable transport failure.
func (l *Link) Fail(err error) {
	slog.Error("sensor: link failure", "err", err)
	l.setState(StateError)
}

func (l *Link) setState(s ConnectionState) {
	l.mu.Lock()
	changed := l.state != s
	l.state = s
	fn := l.onStateChange
	l.mu.Unlock()

	if changed && fn != nil {
		fn(s)
	}
}

func (l *Link) readBattery(ctx context.Context) {
	data, err := l.transport.Read(ctx, CharBattery)
	if err != nil {
		slog.Warn("sensor: battery read failed", "err", err)
		return
	}
	l.handleBattery(data)
}

func (l *Link) handleHeartRate(data []byte) {
	hr, err := parseHeartRate(data)
	if err != nil {
		l.dropFrame(err)
		return
	}
	l.mu.Lock()
	l.currentHR = hr
	fn := l.onHeartRate
	l.mu.Unlock()

	if fn != nil && hr > 0 {
		fn(hr, l.now())
	}
}

func (l *Link) handlePPI(data []byte) {
	samples, err := parsePPIFrame(data)
	if err != nil {
		l.dropFrame(err)
		return
	}

	l.mu.Lock()
	for _, s := range samples {
		l.quality = append(l.quality, s.SkinContact)
	}
	if len(l.quality) > qualityWindow {
		l.quality = l.quality[len(l.quality)-qualityWindow:]
	}
	fn := l.onSamples
	l.mu.Unlock()

	if fn != nil {
		fn(Batch{Samples: samples, Arrival: l.now()})
	}
}

func (l *Link) handleBattery(data []byte) {
	level, err := parseBattery(data)
	if err != nil {
		l.dropFrame(err)
		return
	}
	l.mu.Lock()
	l.battery = level
	l.mu.Unlock()
	slog.Debug("sensor: battery level", "pct", level)
}

func (l *Link) dropFrame(err error) {
	l.mu.Lock()
	l.droppedFrames++
	n := l.droppedFrames
	l.mu.Unlock()
	slog.Debug("sensor: dropped malformed frame", "err", err, "total_dropped", n)
}
