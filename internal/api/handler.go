// Package api is the HTTP surface: live status, session control, stored
// history, and the metrics endpoint.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cogniflow/cogniflow/internal/analysis"
	"github.com/cogniflow/cogniflow/internal/pipeline"
	"github.com/cogniflow/cogniflow/internal/sensor"
	"github.com/cogniflow/cogniflow/internal/session"
	"github.com/cogniflow/cogniflow/internal/ws"
)

// Handler serves all /api/v1/* endpoints plus /healthz and /metrics. It
// reads live state from the sensor link and pipeline and stored history
// through the analysis service.
type Handler struct {
	link     *sensor.Link
	pipe     *pipeline.Pipeline
	sessions *session.Manager
	analysis *analysis.Service
	hub      *ws.Hub
	mux      *http.ServeMux
}

// New creates a Handler and registers all routes.
func New(link *sensor.Link, pipe *pipeline.Pipeline, sm *session.Manager, as *analysis.Service, hub *ws.Hub) http.Handler {
	h := &Handler{
		link:     link,
		pipe:     pipe,
		sessions: sm,
		analysis: as,
		hub:      hub,
		mux:      http.NewServeMux(),
	}

	h.mux.HandleFunc("/healthz", h.healthz)
	h.mux.HandleFunc("/metrics", h.metrics)
	h.mux.Handle("/ws", hub)
	h.mux.HandleFunc("/api/v1/status", h.status)
	h.mux.HandleFunc("/api/v1/session/start", h.startSession)
	h.mux.HandleFunc("/api/v1/session/stop", h.stopSession)
	h.mux.HandleFunc("/api/v1/sessions", h.listSessions)
	h.mux.HandleFunc("/api/v1/sessions/", h.sessionDetail) // subtree — extracts {id}
	h.mux.HandleFunc("/api/v1/history/daily", h.dailyHistory)
	h.mux.HandleFunc("/api/v1/history/weekly", h.weeklyHistory)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// healthz returns 200 once the process is serving. Liveness only; sensor
// state is reported on /api/v1/status.
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, map[string]string{"status": "ok"})
}

// status returns GET /api/v1/status — sensor link state and pipeline
// counters, plus the active session if any.
func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	resp := StatusResponse{
		ConnectionState: h.link.State().String(),
		SignalQuality:   h.link.SignalQuality(),
		BatteryPct:      h.link.Battery(),
		HeartRate:       h.link.HeartRate(),
		DroppedFrames:   h.link.DroppedFrames(),
		BufferSpanSec:   h.pipe.BufferSpanSec(),
		WSClients:       h.hub.Count(),
		Stats:           toStatsResponse(h.pipe.SnapshotStats()),
	}
	if info, ok := h.sessions.Active(); ok {
		resp.Session = &info
	}
	jsonResp(w, http.StatusOK, resp)
}

// startSession handles POST /api/v1/session/start.
func (h *Handler) startSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req StartSessionRequest
	if r.Body != nil {
		// Missing or empty body means activity "other"; malformed JSON
		// is rejected.
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			jsonErr(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	info, err := h.sessions.Start(req.ActivityType)
	if err != nil {
		jsonErr(w, http.StatusConflict, err.Error())
		return
	}
	h.pipe.StartSession()
	jsonResp(w, http.StatusOK, info)
}

// stopSession handles POST /api/v1/session/stop and returns the summary.
func (h *Handler) stopSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	h.pipe.StopSession()
	sum, err := h.sessions.Stop()
	if err != nil {
		jsonErr(w, http.StatusConflict, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, sum)
}

// listSessions returns GET /api/v1/sessions — most recent sessions first.
func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rows, err := h.sessions.List(50)
	if err != nil {
		slog.Error("api: list sessions failed", "err", err)
		jsonErr(w, http.StatusInternalServerError, "query failed")
		return
	}
	jsonResp(w, http.StatusOK, rows)
}

// sessionDetail dispatches GET /api/v1/sessions/{id}/{view} where view is
// data, summary, periods, or recommendations.
func (h *Handler) sessionDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/sessions/")
	id, view, _ := strings.Cut(rest, "/")
	if id == "" {
		h.listSessions(w, r)
		return
	}

	switch view {
	case "data":
		points, err := h.analysis.SessionData(id)
		if err != nil {
			slog.Error("api: session data query failed", "id", id, "err", err)
			jsonErr(w, http.StatusInternalServerError, "query failed")
			return
		}
		jsonResp(w, http.StatusOK, points)
	case "summary":
		sum, err := h.analysis.Summary(id)
		if err != nil {
			jsonErr(w, http.StatusNotFound, "session not found")
			return
		}
		jsonResp(w, http.StatusOK, sum)
	case "periods":
		periods, err := h.analysis.DetectCriticalPeriods(id)
		if err != nil {
			slog.Error("api: period detection failed", "id", id, "err", err)
			jsonErr(w, http.StatusInternalServerError, "query failed")
			return
		}
		if periods == nil {
			periods = []analysis.CriticalPeriod{}
		}
		jsonResp(w, http.StatusOK, periods)
	case "recommendations":
		recs, err := h.analysis.Recommendations(id)
		if err != nil {
			jsonErr(w, http.StatusNotFound, "session not found")
			return
		}
		jsonResp(w, http.StatusOK, RecommendationsResponse{SessionID: id, Recommendations: recs})
	default:
		jsonErr(w, http.StatusNotFound, "unknown view")
	}
}

// dailyHistory returns GET /api/v1/history/daily?date=2006-01-02, defaulting
// to today.
func (h *Handler) dailyHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", date); err != nil {
		jsonErr(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	da, ok, err := h.analysis.DailyDigest(date)
	if err != nil {
		slog.Error("api: daily digest failed", "date", date, "err", err)
		jsonErr(w, http.StatusInternalServerError, "query failed")
		return
	}
	if !ok {
		jsonErr(w, http.StatusNotFound, "no data for date")
		return
	}
	jsonResp(w, http.StatusOK, da)
}

// weeklyHistory returns GET /api/v1/history/weekly — per-day aggregates for
// the last seven days.
func (h *Handler) weeklyHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	days, err := h.analysis.WeeklyEvolution(time.Now())
	if err != nil {
		slog.Error("api: weekly history failed", "err", err)
		jsonErr(w, http.StatusInternalServerError, "query failed")
		return
	}
	jsonResp(w, http.StatusOK, days)
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
