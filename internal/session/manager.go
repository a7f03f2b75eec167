// Package session manages recording-session lifecycle: creation, per-tick
// persistence, and summary finalization. At most one session is active at a
// time.
package session

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cogniflow/cogniflow/internal/pipeline"
	"github.com/cogniflow/cogniflow/internal/store"
)

// Score thresholds used when finalizing a session summary.
const (
	overloadThreshold = 70.0 // cognitive load above this counts as overload
	recoveryThreshold = 30.0 // stress AND fatigue below this counts as recovery
)

// ActivityTypes are the recognized session activity labels.
var ActivityTypes = []string{"work", "study", "rest", "other"}

// Info describes the active session.
type Info struct {
	ID             string    `json:"id"`
	StartTime      time.Time `json:"start_time"`
	ActivityType   string    `json:"activity_type"`
	DataPointCount int       `json:"data_point_count"`
}

// Manager owns the active session and writes its data points and final
// summary through the store.
type Manager struct {
	store *store.Store
	now   func() time.Time // injectable for tests

	mu     sync.Mutex
	active *Info
}

// NewManager returns a Manager with no active session.
func NewManager(st *store.Store) *Manager {
	return &Manager{store: st, now: time.Now}
}

// Active returns a copy of the active session info, or false.
func (m *Manager) Active() (Info, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return Info{}, false
	}
	return *m.active, true
}

// Start begins a new session with the given activity type (unknown types
// fall back to "other"). Fails if a session is already active.
func (m *Manager) Start(activityType string) (Info, error) {
	if !validActivity(activityType) {
		activityType = "other"
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil {
		return Info{}, fmt.Errorf("session: %q is already active", m.active.ID)
	}

	info := Info{
		ID:           uuid.NewString()[:8],
		StartTime:    m.now(),
		ActivityType: activityType,
	}
	if err := m.store.CreateSession(info.ID, info.StartTime, activityType); err != nil {
		return Info{}, err
	}

	m.active = &info
	slog.Info("session: started", "id", info.ID, "activity", activityType)
	return info, nil
}

// Record persists one pipeline result under the active session. A no-op
// when no session is active.
func (m *Manager) Record(res pipeline.Result) {
	m.mu.Lock()
	info := m.active
	if info != nil {
		info.DataPointCount++
	}
	m.mu.Unlock()
	if info == nil {
		return
	}

	if err := m.store.InsertResult(info.ID, res); err != nil {
		slog.Error("session: record data point failed", "id", info.ID, "err", err)
	}
}

// Stop ends the active session, computes and persists its summary, and
// returns it. Fails if no session is active.
func (m *Manager) Stop() (store.Summary, error) {
	m.mu.Lock()
	info := m.active
	m.active = nil
	m.mu.Unlock()
	if info == nil {
		return store.Summary{}, fmt.Errorf("session: no active session")
	}

	end := m.now()
	if err := m.store.EndSession(info.ID, end); err != nil {
		return store.Summary{}, err
	}

	sum, err := m.summarize(info, end)
	if err != nil {
		return store.Summary{}, err
	}
	if err := m.store.SaveSummary(sum); err != nil {
		return store.Summary{}, err
	}

	slog.Info("session: stopped",
		"id", info.ID,
		"duration_sec", sum.DurationSec,
		"data_points", info.DataPointCount)
	return sum, nil
}

// summarize aggregates the session's data points into its summary row.
func (m *Manager) summarize(info *Info, end time.Time) (store.Summary, error) {
	points, err := m.store.SessionData(info.ID)
	if err != nil {
		return store.Summary{}, err
	}

	sum := store.Summary{
		SessionID:   info.ID,
		DurationSec: end.Sub(info.StartTime).Seconds(),
	}
	if len(points) == 0 {
		return sum, nil
	}

	overload, recovery := 0, 0
	for _, dp := range points {
		sum.AvgHR += dp.HR
		sum.AvgRMSSD += dp.RMSSD
		sum.AvgStress += dp.Stress
		sum.AvgCognitiveLoad += dp.CognitiveLoad
		sum.AvgFatigue += dp.Fatigue
		if dp.Stress > sum.MaxStress {
			sum.MaxStress = dp.Stress
		}
		if dp.CognitiveLoad > sum.MaxCognitiveLoad {
			sum.MaxCognitiveLoad = dp.CognitiveLoad
		}
		if dp.Fatigue > sum.MaxFatigue {
			sum.MaxFatigue = dp.Fatigue
		}
		if dp.CognitiveLoad > overloadThreshold {
			overload++
		}
		if dp.Stress < recoveryThreshold && dp.Fatigue < recoveryThreshold {
			recovery++
		}
	}

	n := float64(len(points))
	sum.AvgHR /= n
	sum.AvgRMSSD /= n
	sum.AvgStress /= n
	sum.AvgCognitiveLoad /= n
	sum.AvgFatigue /= n
	sum.TimeOverloadPct = float64(overload) / n * 100
	sum.TimeRecoveryPct = float64(recovery) / n * 100
	return sum, nil
}

// List returns the most recent sessions, newest first.
func (m *Manager) List(limit int) ([]store.SessionRow, error) {
	return m.store.Sessions(limit)
}

func validActivity(a string) bool {
	for _, t := range ActivityTypes {
		if a == t {
			return true
		}
	}
	return false
}
