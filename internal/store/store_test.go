package store

import (
	"database/sql"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/cogniflow/cogniflow/internal/estimate"
	"github.com/cogniflow/cogniflow/internal/hrv"
	"github.com/cogniflow/cogniflow/internal/pipeline"
	"github.com/cogniflow/cogniflow/internal/trend"
)

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// almostEqual returns true if a and b are within epsilon of each other.
func almostEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) < epsilon
}

// openTestStore opens an in-memory database.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open("")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func testResult(at time.Time, stress float64) pipeline.Result {
	return pipeline.Result{
		Scores: estimate.Scores{Stress: stress, CognitiveLoad: 45, Fatigue: 30},
		Features: hrv.FeatureVector{
			MeanHR: 68, RMSSD: 42, SDNN: 55, PNN50: 18, MeanRR: 880,
			LFPower: 350, HFPower: 300, LFHFRatio: 1.17,
		},
		FatigueTrend:  trend.FatigueTrend{Slope: 0.5, Predicted: 35},
		WindowQuality: 0.92,
		Timestamp:     at,
	}
}

func TestSessionLifecycle(t *testing.T) {
	st := openTestStore(t)

	if err := st.CreateSession("s1", baseTime, "work"); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	rows, err := st.Sessions(10)
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("sessions = %d, want 1", len(rows))
	}
	if rows[0].ID != "s1" || rows[0].Status != "active" || rows[0].ActivityType != "work" {
		t.Errorf("session row = %+v", rows[0])
	}

	if err := st.EndSession("s1", baseTime.Add(30*time.Minute)); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	rows, _ = st.Sessions(10)
	if rows[0].Status != "completed" {
		t.Errorf("status = %q after EndSession, want completed", rows[0].Status)
	}
	if !almostEqual(rows[0].EndTime-rows[0].StartTime, 1800, 1e-6) {
		t.Errorf("duration = %v s, want 1800", rows[0].EndTime-rows[0].StartTime)
	}
}

func TestInsertAndQueryDataPoints(t *testing.T) {
	st := openTestStore(t)
	if err := st.CreateSession("s1", baseTime, "study"); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	for i := 0; i < 3; i++ {
		at := baseTime.Add(time.Duration(i*5) * time.Second)
		if err := st.InsertResult("s1", testResult(at, float64(50+i))); err != nil {
			t.Fatalf("InsertResult: %v", err)
		}
	}

	points, err := st.SessionData("s1")
	if err != nil {
		t.Fatalf("SessionData: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("points = %d, want 3", len(points))
	}
	// Chronological order with values intact.
	for i, dp := range points {
		if !almostEqual(dp.Stress, float64(50+i), 1e-9) {
			t.Errorf("point %d stress = %v, want %v", i, dp.Stress, 50+i)
		}
	}
	if !almostEqual(points[0].HR, 68, 1e-9) || !almostEqual(points[0].RMSSD, 42, 1e-9) {
		t.Errorf("features not round-tripped: %+v", points[0])
	}
	if !almostEqual(points[0].FatigueSlope, 0.5, 1e-9) {
		t.Errorf("FatigueSlope = %v, want 0.5", points[0].FatigueSlope)
	}

	if other, _ := st.SessionData("unknown"); len(other) != 0 {
		t.Errorf("unknown session returned %d points", len(other))
	}
}

func TestSummaryRoundTrip(t *testing.T) {
	st := openTestStore(t)

	sum := Summary{
		SessionID: "s1", DurationSec: 1800, AvgHR: 70, AvgRMSSD: 40,
		AvgStress: 55, AvgCognitiveLoad: 62, AvgFatigue: 38,
		MaxStress: 80, MaxCognitiveLoad: 91, MaxFatigue: 60,
		TimeOverloadPct: 25, TimeRecoveryPct: 10,
	}
	if err := st.SaveSummary(sum); err != nil {
		t.Fatalf("SaveSummary: %v", err)
	}

	got, err := st.GetSummary("s1")
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if got != sum {
		t.Errorf("summary = %+v, want %+v", got, sum)
	}

	// Upsert replaces.
	sum.AvgStress = 60
	if err := st.SaveSummary(sum); err != nil {
		t.Fatalf("SaveSummary (update): %v", err)
	}
	got, _ = st.GetSummary("s1")
	if got.AvgStress != 60 {
		t.Errorf("AvgStress after upsert = %v, want 60", got.AvgStress)
	}

	if _, err := st.GetSummary("absent"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("GetSummary(absent) err = %v, want sql.ErrNoRows", err)
	}
}

func TestDayAverages(t *testing.T) {
	st := openTestStore(t)
	st.CreateSession("s1", baseTime, "work")
	st.CreateSession("s2", baseTime.Add(2*time.Hour), "rest")

	st.InsertResult("s1", testResult(baseTime, 40))
	st.InsertResult("s1", testResult(baseTime.Add(5*time.Second), 60))
	st.InsertResult("s2", testResult(baseTime.Add(2*time.Hour), 20))

	day := baseTime.Format("2006-01-02")
	da, ok, err := st.DayAverages(day)
	if err != nil {
		t.Fatalf("DayAverages: %v", err)
	}
	if !ok {
		t.Fatal("DayAverages reported no data")
	}
	if !almostEqual(da.AvgStress, 40, 1e-6) {
		t.Errorf("AvgStress = %v, want 40", da.AvgStress)
	}
	if da.SessionCount != 2 {
		t.Errorf("SessionCount = %d, want 2", da.SessionCount)
	}

	if _, ok, _ := st.DayAverages("1999-01-01"); ok {
		t.Error("DayAverages reported data for an empty day")
	}
}

func TestWeekAverages(t *testing.T) {
	st := openTestStore(t)
	st.CreateSession("s1", baseTime, "work")

	// Data only on two of the seven days.
	st.InsertResult("s1", testResult(baseTime, 50))
	st.InsertResult("s1", testResult(baseTime.AddDate(0, 0, 3), 70))

	days, err := st.WeekAverages(baseTime.AddDate(0, 0, 3))
	if err != nil {
		t.Fatalf("WeekAverages: %v", err)
	}
	if len(days) != 2 {
		t.Fatalf("days with data = %d, want 2", len(days))
	}
	// Oldest first.
	if days[0].Date != baseTime.Format("2006-01-02") {
		t.Errorf("days[0].Date = %q, want %q", days[0].Date, baseTime.Format("2006-01-02"))
	}
	if !almostEqual(days[1].AvgStress, 70, 1e-6) {
		t.Errorf("days[1].AvgStress = %v, want 70", days[1].AvgStress)
	}
}
