// Package analysis derives historical insights from stored sessions: daily
// digests, critical-period detection inside a session, and plain-text
// recommendations from the session summary.
package analysis

import (
	"sort"
	"time"

	"github.com/cogniflow/cogniflow/internal/store"
)

// Score thresholds driving period detection and recommendations.
const (
	overloadThreshold        = 70.0
	recoveryStressThreshold  = 30.0
	recoveryFatigueThreshold = 30.0
	highStressThreshold      = 60.0
	highFatigueThreshold     = 60.0

	// minPeriodSec is the minimum duration for a detected period to count;
	// shorter excursions are noise.
	minPeriodSec = 30.0
)

// Period types reported by DetectCriticalPeriods.
const (
	PeriodOverload         = "overload"
	PeriodRecovery         = "recovery"
	PeriodProlongedFatigue = "prolonged_fatigue"
)

// CriticalPeriod is one sustained excursion within a session.
type CriticalPeriod struct {
	Start       float64 `json:"start_timestamp"` // unix seconds
	End         float64 `json:"end_timestamp"`
	Type        string  `json:"period_type"`
	AvgScore    float64 `json:"avg_score"`
	DurationSec float64 `json:"duration_sec"`
}

// Service answers historical queries over the store.
type Service struct {
	store *store.Store
}

// NewService returns an analysis Service over st.
func NewService(st *store.Store) *Service {
	return &Service{store: st}
}

// DailyDigest returns the day's aggregates (format 2006-01-02), or false
// when the day has no data.
func (s *Service) DailyDigest(date string) (store.DailyAverages, bool, error) {
	return s.store.DayAverages(date)
}

// WeeklyEvolution returns per-day aggregates for the week ending at end.
func (s *Service) WeeklyEvolution(end time.Time) ([]store.DailyAverages, error) {
	return s.store.WeekAverages(end)
}

// SessionData returns a session's raw data points in time order.
func (s *Service) SessionData(sessionID string) ([]store.DataPoint, error) {
	return s.store.SessionData(sessionID)
}

// Summary returns a session's stored summary.
func (s *Service) Summary(sessionID string) (store.Summary, error) {
	return s.store.GetSummary(sessionID)
}

// DetectCriticalPeriods scans a session's data points for sustained
// overload, recovery, and prolonged-fatigue periods, ordered by start time.
func (s *Service) DetectCriticalPeriods(sessionID string) ([]CriticalPeriod, error) {
	points, err := s.store.SessionData(sessionID)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, nil
	}

	var periods []CriticalPeriod
	periods = append(periods, detect(points, PeriodOverload,
		func(dp store.DataPoint) (bool, float64) {
			return dp.CognitiveLoad > overloadThreshold, dp.CognitiveLoad
		})...)
	periods = append(periods, detect(points, PeriodRecovery,
		func(dp store.DataPoint) (bool, float64) {
			return dp.Stress < recoveryStressThreshold &&
				dp.Fatigue < recoveryFatigueThreshold, 0
		})...)
	periods = append(periods, detect(points, PeriodProlongedFatigue,
		func(dp store.DataPoint) (bool, float64) {
			return dp.Fatigue > highFatigueThreshold, dp.Fatigue
		})...)

	sortByStart(periods)
	return periods, nil
}

// Recommendations returns guidance strings derived from the session
// summary. An unknown session yields no recommendations.
func (s *Service) Recommendations(sessionID string) ([]string, error) {
	sum, err := s.store.GetSummary(sessionID)
	if err != nil {
		return nil, err
	}

	var recs []string
	if sum.AvgStress > highStressThreshold {
		recs = append(recs, "Average stress was high. Try a few minutes of paced breathing between work blocks.")
	}
	if sum.AvgCognitiveLoad > overloadThreshold {
		recs = append(recs, "Average cognitive load was high. Consider splitting intense work into shorter focused blocks.")
	}
	if sum.TimeOverloadPct > 50 {
		recs = append(recs, "More than half the session was spent in cognitive overload. Plan more frequent breaks.")
	}
	if sum.AvgFatigue > highFatigueThreshold {
		recs = append(recs, "Fatigue ran high. Consider a longer break or a change of activity.")
	}
	if sum.TimeRecoveryPct < 10 {
		recs = append(recs, "Very little recovery time was recorded. Build short pauses into the session.")
	}
	if len(recs) == 0 {
		recs = append(recs, "Good cognitive balance. Keep this rhythm going.")
	}
	return recs, nil
}

// detect finds sustained runs where match holds, accumulating the matched
// score for the period average.
func detect(points []store.DataPoint, periodType string,
	match func(store.DataPoint) (bool, float64)) []CriticalPeriod {

	var (
		periods []CriticalPeriod
		in      bool
		startTS float64
		sum     float64
		count   int
	)

	closePeriod := func(endTS float64) {
		duration := endTS - startTS
		if duration >= minPeriodSec {
			var avg float64
			if count > 0 {
				avg = sum / float64(count)
			}
			periods = append(periods, CriticalPeriod{
				Start:       startTS,
				End:         endTS,
				Type:        periodType,
				AvgScore:    avg,
				DurationSec: duration,
			})
		}
		in = false
		sum, count = 0, 0
	}

	for _, dp := range points {
		active, score := match(dp)
		switch {
		case active && !in:
			in = true
			startTS = dp.Timestamp
			sum, count = score, 1
		case active && in:
			sum += score
			count++
		case !active && in:
			closePeriod(dp.Timestamp)
		}
	}
	if in {
		closePeriod(points[len(points)-1].Timestamp)
	}
	return periods
}

func sortByStart(periods []CriticalPeriod) {
	sort.Slice(periods, func(i, j int) bool {
		return periods[i].Start < periods[j].Start
	})
}
