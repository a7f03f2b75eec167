package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/cogniflow/cogniflow/internal/pipeline"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    start_time DOUBLE NOT NULL,
    end_time DOUBLE,
    activity_type TEXT NOT NULL DEFAULT 'other',
    status TEXT NOT NULL DEFAULT 'active',
    notes TEXT DEFAULT ''
);

CREATE TABLE IF NOT EXISTS data_points (
    session_id TEXT NOT NULL,
    timestamp DOUBLE NOT NULL,
    hr DOUBLE,
    rmssd DOUBLE,
    sdnn DOUBLE,
    pnn50 DOUBLE,
    mean_rr DOUBLE,
    lf_power DOUBLE,
    hf_power DOUBLE,
    lf_hf_ratio DOUBLE,
    stress DOUBLE,
    cognitive_load DOUBLE,
    fatigue DOUBLE,
    window_quality DOUBLE,
    fatigue_slope DOUBLE,
    fatigue_predicted DOUBLE
);

CREATE TABLE IF NOT EXISTS session_summaries (
    session_id TEXT PRIMARY KEY,
    duration_sec DOUBLE,
    avg_hr DOUBLE,
    avg_rmssd DOUBLE,
    avg_stress DOUBLE,
    avg_cognitive_load DOUBLE,
    avg_fatigue DOUBLE,
    max_stress DOUBLE,
    max_cognitive_load DOUBLE,
    max_fatigue DOUBLE,
    time_overload_pct DOUBLE,
    time_recovery_pct DOUBLE
);

CREATE INDEX IF NOT EXISTS idx_data_points_session
    ON data_points(session_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_sessions_start
    ON sessions(start_time);
`

// DataPoint is one persisted per-tick record.
type DataPoint struct {
	Timestamp        float64
	HR               float64
	RMSSD            float64
	SDNN             float64
	PNN50            float64
	MeanRR           float64
	LFPower          float64
	HFPower          float64
	LFHFRatio        float64
	Stress           float64
	CognitiveLoad    float64
	Fatigue          float64
	WindowQuality    float64
	FatigueSlope     float64
	FatiguePredicted float64
}

// Summary is the finalized per-session aggregate row.
type Summary struct {
	SessionID        string  `json:"session_id"`
	DurationSec      float64 `json:"duration_sec"`
	AvgHR            float64 `json:"avg_hr"`
	AvgRMSSD         float64 `json:"avg_rmssd"`
	AvgStress        float64 `json:"avg_stress"`
	AvgCognitiveLoad float64 `json:"avg_cognitive_load"`
	AvgFatigue       float64 `json:"avg_fatigue"`
	MaxStress        float64 `json:"max_stress"`
	MaxCognitiveLoad float64 `json:"max_cognitive_load"`
	MaxFatigue       float64 `json:"max_fatigue"`
	TimeOverloadPct  float64 `json:"time_overload_pct"`
	TimeRecoveryPct  float64 `json:"time_recovery_pct"`
}

// SessionRow is one row of the sessions table.
type SessionRow struct {
	ID           string  `json:"id"`
	StartTime    float64 `json:"start_time"`
	EndTime      float64 `json:"end_time,omitempty"`
	ActivityType string  `json:"activity_type"`
	Status       string  `json:"status"`
}

// Store is the DuckDB-backed session history. An empty path opens an
// in-memory database (history lost on exit).
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("store: open duckdb: %w", err)
	}

	// DuckDB is embedded; a single connection avoids writer conflicts.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}

	slog.Info("store: database ready", "path", pathOrMemory(path))
	return &Store{db: db}, nil
}

func pathOrMemory(path string) string {
	if path == "" {
		return ":memory:"
	}
	return path
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

// CreateSession inserts a new active session row.
func (s *Store) CreateSession(id string, start time.Time, activityType string) error {
	_, err := s.db.Exec(
		`INSERT INTO sessions (id, start_time, activity_type, status) VALUES (?, ?, ?, 'active')`,
		id, unix(start), activityType)
	if err != nil {
		return fmt.Errorf("store: create session: %w", err)
	}
	return nil
}

// EndSession marks the session completed.
func (s *Store) EndSession(id string, end time.Time) error {
	_, err := s.db.Exec(
		`UPDATE sessions SET end_time = ?, status = 'completed' WHERE id = ?`,
		unix(end), id)
	if err != nil {
		return fmt.Errorf("store: end session: %w", err)
	}
	return nil
}

// InsertResult persists one pipeline result under the session.
func (s *Store) InsertResult(sessionID string, res pipeline.Result) error {
	_, err := s.db.Exec(`
		INSERT INTO data_points (
			session_id, timestamp, hr, rmssd, sdnn, pnn50, mean_rr,
			lf_power, hf_power, lf_hf_ratio,
			stress, cognitive_load, fatigue,
			window_quality, fatigue_slope, fatigue_predicted
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, unix(res.Timestamp),
		res.Features.MeanHR, res.Features.RMSSD, res.Features.SDNN,
		res.Features.PNN50, res.Features.MeanRR,
		res.Features.LFPower, res.Features.HFPower, res.Features.LFHFRatio,
		res.Scores.Stress, res.Scores.CognitiveLoad, res.Scores.Fatigue,
		res.WindowQuality, res.FatigueTrend.Slope, res.FatigueTrend.Predicted)
	if err != nil {
		return fmt.Errorf("store: insert data point: %w", err)
	}
	return nil
}

// SessionData returns the session's data points in chronological order.
func (s *Store) SessionData(sessionID string) ([]DataPoint, error) {
	rows, err := s.db.Query(`
		SELECT timestamp, hr, rmssd, sdnn, pnn50, mean_rr,
		       lf_power, hf_power, lf_hf_ratio,
		       stress, cognitive_load, fatigue,
		       window_quality, fatigue_slope, fatigue_predicted
		FROM data_points WHERE session_id = ? ORDER BY timestamp`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: query session data: %w", err)
	}
	defer rows.Close()

	var out []DataPoint
	for rows.Next() {
		var dp DataPoint
		if err := rows.Scan(
			&dp.Timestamp, &dp.HR, &dp.RMSSD, &dp.SDNN, &dp.PNN50, &dp.MeanRR,
			&dp.LFPower, &dp.HFPower, &dp.LFHFRatio,
			&dp.Stress, &dp.CognitiveLoad, &dp.Fatigue,
			&dp.WindowQuality, &dp.FatigueSlope, &dp.FatiguePredicted,
		); err != nil {
			return nil, fmt.Errorf("store: scan data point: %w", err)
		}
		out = append(out, dp)
	}
	return out, rows.Err()
}

// SaveSummary upserts the session's summary row.
func (s *Store) SaveSummary(sum Summary) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO session_summaries (
			session_id, duration_sec, avg_hr, avg_rmssd,
			avg_stress, avg_cognitive_load, avg_fatigue,
			max_stress, max_cognitive_load, max_fatigue,
			time_overload_pct, time_recovery_pct
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.SessionID, sum.DurationSec, sum.AvgHR, sum.AvgRMSSD,
		sum.AvgStress, sum.AvgCognitiveLoad, sum.AvgFatigue,
		sum.MaxStress, sum.MaxCognitiveLoad, sum.MaxFatigue,
		sum.TimeOverloadPct, sum.TimeRecoveryPct)
	if err != nil {
		return fmt.Errorf("store: save summary: %w", err)
	}
	return nil
}

// GetSummary returns the session's summary, or sql.ErrNoRows if absent.
func (s *Store) GetSummary(sessionID string) (Summary, error) {
	var sum Summary
	err := s.db.QueryRow(`
		SELECT session_id, duration_sec, avg_hr, avg_rmssd,
		       avg_stress, avg_cognitive_load, avg_fatigue,
		       max_stress, max_cognitive_load, max_fatigue,
		       time_overload_pct, time_recovery_pct
		FROM session_summaries WHERE session_id = ?`, sessionID).Scan(
		&sum.SessionID, &sum.DurationSec, &sum.AvgHR, &sum.AvgRMSSD,
		&sum.AvgStress, &sum.AvgCognitiveLoad, &sum.AvgFatigue,
		&sum.MaxStress, &sum.MaxCognitiveLoad, &sum.MaxFatigue,
		&sum.TimeOverloadPct, &sum.TimeRecoveryPct)
	if err != nil {
		return Summary{}, err
	}
	return sum, nil
}

// Sessions returns the most recent sessions, newest first.
func (s *Store) Sessions(limit int) ([]SessionRow, error) {
	rows, err := s.db.Query(`
		SELECT id, start_time, coalesce(end_time, 0), activity_type, status
		FROM sessions ORDER BY start_time DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRow
	for rows.Next() {
		var r SessionRow
		if err := rows.Scan(&r.ID, &r.StartTime, &r.EndTime, &r.ActivityType, &r.Status); err != nil {
			return nil, fmt.Errorf("store: scan session: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DailyAverages aggregates score and heart-rate means for one calendar day
// (format 2006-01-02). The boolean is false when the day has no data.
type DailyAverages struct {
	Date             string  `json:"date"`
	AvgStress        float64 `json:"avg_stress"`
	AvgCognitiveLoad float64 `json:"avg_cognitive_load"`
	AvgFatigue       float64 `json:"avg_fatigue"`
	AvgHR            float64 `json:"avg_hr"`
	SessionCount     int     `json:"session_count"`
}

// DayAverages returns the aggregates for the given day.
func (s *Store) DayAverages(date string) (DailyAverages, bool, error) {
	var (
		da DailyAverages
		n  int
	)
	da.Date = date
	err := s.db.QueryRow(`
		SELECT count(*),
		       coalesce(avg(stress), 0), coalesce(avg(cognitive_load), 0),
		       coalesce(avg(fatigue), 0), coalesce(avg(hr), 0),
		       count(DISTINCT session_id)
		FROM data_points
		WHERE strftime(to_timestamp(timestamp), '%Y-%m-%d') = ?`, date).Scan(
		&n, &da.AvgStress, &da.AvgCognitiveLoad, &da.AvgFatigue, &da.AvgHR,
		&da.SessionCount)
	if err != nil {
		return DailyAverages{}, false, fmt.Errorf("store: day averages: %w", err)
	}
	return da, n > 0, nil
}

// WeekAverages returns per-day aggregates for the 7 days ending at endDate
// inclusive, oldest first. Days without data are omitted.
func (s *Store) WeekAverages(endDate time.Time) ([]DailyAverages, error) {
	var out []DailyAverages
	for i := 6; i >= 0; i-- {
		day := endDate.AddDate(0, 0, -i).Format("2006-01-02")
		da, ok, err := s.DayAverages(day)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, da)
		}
	}
	return out, nil
}

func unix(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
