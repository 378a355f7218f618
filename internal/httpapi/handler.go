package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/vigilhq/vigil/internal/engine"
	"github.com/vigilhq/vigil/internal/history"
)

// Server is the read-only status surface exposed in daemon mode: a small
// JSON API over the latest report and trend history, plus a WebSocket live
// feed. It never triggers runs or mutates engine state.
type Server struct {
	runner *engine.Runner
	hist   *history.Store
	target string
	hub    *hub
	mux    *http.ServeMux
}

// New creates a Server wired to the given runner and history store. hist
// may be nil when persistence is disabled; the history-backed routes then
// answer 503 while health and the live feed keep working.
func New(runner *engine.Runner, hist *history.Store, target string) *Server {
	s := &Server{
		runner: runner,
		hist:   hist,
		target: target,
		hub:    newHub(runner),
		mux:    http.NewServeMux(),
	}

	s.mux.HandleFunc("/api/v1/health", s.health)
	s.mux.HandleFunc("/api/v1/report", s.report)
	s.mux.HandleFunc("/api/v1/trend", s.trend)
	s.mux.HandleFunc("/live", s.hub.serveWS)

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Run drives the WebSocket broadcast loop until ctx is cancelled.
func (s *Server) Run(ctx context.Context) {
	s.hub.run(ctx)
}

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Target    string `json:"target"`
	Score     int    `json:"score"`
	Grade     string `json:"grade"`
	Level     string `json:"level"`
	Partial   bool   `json:"partial"`
	Timestamp string `json:"timestamp"` // RFC3339
}

// health serves GET /api/v1/health: the latest composite summary.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rep, ok := s.runner.Latest()
	if !ok {
		jsonErr(w, http.StatusNotFound, "no report yet")
		return
	}
	jsonResp(w, http.StatusOK, HealthResponse{
		Target:    rep.Target,
		Score:     rep.Score,
		Grade:     rep.Grade,
		Level:     string(rep.Level),
		Partial:   rep.Partial,
		Timestamp: rep.Timestamp.UTC().Format(time.RFC3339),
	})
}

// report serves GET /api/v1/report: the latest full report.
func (s *Server) report(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if rep, ok := s.runner.Latest(); ok {
		jsonResp(w, http.StatusOK, rep)
		return
	}
	// Fall back to history so a freshly restarted daemon still answers.
	if s.hist == nil {
		jsonErr(w, http.StatusServiceUnavailable, "history unavailable")
		return
	}
	rep, err := s.hist.Latest(s.target)
	if err != nil {
		if errors.Is(err, history.ErrNoReports) {
			jsonErr(w, http.StatusNotFound, "no report yet")
			return
		}
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, rep)
}

// trend serves GET /api/v1/trend?since=24h&below=70: score statistics
// over the requested window.
func (s *Server) trend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	since := 24 * time.Hour
	if v := r.URL.Query().Get("since"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			jsonErr(w, http.StatusBadRequest, "invalid since duration")
			return
		}
		since = d
	}
	below := 70
	if v := r.URL.Query().Get("below"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 100 {
			jsonErr(w, http.StatusBadRequest, "invalid below score")
			return
		}
		below = n
	}

	if s.hist == nil {
		jsonErr(w, http.StatusServiceUnavailable, "history unavailable")
		return
	}
	t, err := s.hist.Trend(s.target, time.Now().Add(-since), below)
	if err != nil {
		if errors.Is(err, history.ErrNoReports) {
			jsonErr(w, http.StatusNotFound, "no reports in window")
			return
		}
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, t)
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, map[string]string{"error": msg})
}
