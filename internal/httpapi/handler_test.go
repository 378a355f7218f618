package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/vigilhq/vigil/internal/config"
	"github.com/vigilhq/vigil/internal/engine"
	"github.com/vigilhq/vigil/internal/health"
	"github.com/vigilhq/vigil/internal/history"
	"github.com/vigilhq/vigil/internal/state"
)

func testServer(t *testing.T) (*Server, *engine.Runner, *history.Store) {
	t.Helper()
	hist, err := history.Open(filepath.Join(t.TempDir(), "vigil.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { hist.Close() })

	cfg := &config.Config{
		Target:              "prod",
		IntervalSeconds:     300,
		CheckTimeoutSeconds: 2,
		Policy: config.PolicyConfig{
			RecoveryRuns: 3,
			GateMinScore: 90,
			OnCall:       "on-call",
			Lead:         "lead",
			Team:         "team",
		},
		Actions: config.ActionsConfig{
			Notify:   config.ActionPolicy{MaxAttempts: 1},
			AutoHeal: config.ActionPolicy{MaxAttempts: 1},
			Escalate: config.ActionPolicy{MaxAttempts: 1},
		},
	}
	runner := engine.New(cfg, state.New(), hist)
	return New(runner, hist, "prod"), runner, hist
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestHealth_NoRunYet(t *testing.T) {
	s, _, _ := testServer(t)
	rec := get(t, s, "/api/v1/health")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", rec.Code)
	}
}

func TestHealth_AfterRun(t *testing.T) {
	s, runner, _ := testServer(t)
	// No checks enabled: the run completes with a perfect score.
	if _, err := runner.Run(context.Background(), engine.TriggerManual); err != nil {
		t.Fatal(err)
	}

	rec := get(t, s, "/api/v1/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (%s)", rec.Code, rec.Body)
	}
	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Target != "prod" || resp.Score != 100 || resp.Grade != "A+" {
		t.Errorf("unexpected payload: %+v", resp)
	}
	if _, err := time.Parse(time.RFC3339, resp.Timestamp); err != nil {
		t.Errorf("timestamp %q not RFC3339: %v", resp.Timestamp, err)
	}
}

func TestHealth_MethodNotAllowed(t *testing.T) {
	s, _, _ := testServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", rec.Code)
	}
}

func TestReport_FallsBackToHistory(t *testing.T) {
	s, _, hist := testServer(t)

	// Nothing in memory, but a prior daemon run is on disk.
	stored := &health.Report{
		ID: "r-1", Target: "prod",
		Timestamp: time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC),
		Score:     88, Grade: "B+", Level: health.LevelNotify, Trigger: "interval",
	}
	if err := hist.Append(stored); err != nil {
		t.Fatal(err)
	}

	rec := get(t, s, "/api/v1/report")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (%s)", rec.Code, rec.Body)
	}
	var rep health.Report
	if err := json.NewDecoder(rec.Body).Decode(&rep); err != nil {
		t.Fatal(err)
	}
	if rep.ID != "r-1" || rep.Score != 88 {
		t.Errorf("unexpected report: %+v", rep)
	}
}

func TestReport_NoReports(t *testing.T) {
	s, _, _ := testServer(t)
	rec := get(t, s, "/api/v1/report")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", rec.Code)
	}
}

func TestTrend(t *testing.T) {
	s, _, hist := testServer(t)
	now := time.Now().UTC()
	for i, score := range []int{95, 60, 85} {
		r := &health.Report{
			ID: string(rune('a' + i)), Target: "prod",
			Timestamp: now.Add(-time.Duration(i) * time.Minute),
			Score:     score, Grade: "A", Level: health.LevelNone, Trigger: "interval",
		}
		if err := hist.Append(r); err != nil {
			t.Fatal(err)
		}
	}

	rec := get(t, s, "/api/v1/trend?since=1h&below=70")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (%s)", rec.Code, rec.Body)
	}
	var tr history.Trend
	if err := json.NewDecoder(rec.Body).Decode(&tr); err != nil {
		t.Fatal(err)
	}
	if tr.Runs != 3 || tr.MinScore != 60 || tr.MaxScore != 95 || tr.Below != 1 {
		t.Errorf("unexpected trend: %+v", tr)
	}
}

func TestTrend_BadParams(t *testing.T) {
	s, _, _ := testServer(t)
	for _, path := range []string{
		"/api/v1/trend?since=yesterday",
		"/api/v1/trend?since=-2h",
		"/api/v1/trend?below=abc",
		"/api/v1/trend?below=150",
	} {
		if rec := get(t, s, path); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: got %d, want 400", path, rec.Code)
		}
	}
}

// The API stays up without a history store: runner-backed routes work,
// history-backed ones answer 503.
func TestNilHistory(t *testing.T) {
	cfg := &config.Config{
		Target:              "prod",
		IntervalSeconds:     300,
		CheckTimeoutSeconds: 2,
		Policy:              config.PolicyConfig{RecoveryRuns: 3, GateMinScore: 90},
		Actions: config.ActionsConfig{
			Notify:   config.ActionPolicy{MaxAttempts: 1},
			AutoHeal: config.ActionPolicy{MaxAttempts: 1},
			Escalate: config.ActionPolicy{MaxAttempts: 1},
		},
	}
	runner := engine.New(cfg, state.New(), nil)
	s := New(runner, nil, "prod")

	if rec := get(t, s, "/api/v1/report"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("report: got %d, want 503", rec.Code)
	}
	if rec := get(t, s, "/api/v1/trend"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("trend: got %d, want 503", rec.Code)
	}

	if _, err := runner.Run(context.Background(), engine.TriggerManual); err != nil {
		t.Fatal(err)
	}
	if rec := get(t, s, "/api/v1/health"); rec.Code != http.StatusOK {
		t.Errorf("health: got %d, want 200 (%s)", rec.Code, rec.Body)
	}
	// The in-memory report satisfies /report without touching history.
	if rec := get(t, s, "/api/v1/report"); rec.Code != http.StatusOK {
		t.Errorf("report after run: got %d, want 200 (%s)", rec.Code, rec.Body)
	}
}

func TestTrend_EmptyWindow(t *testing.T) {
	s, _, _ := testServer(t)
	rec := get(t, s, "/api/v1/trend")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", rec.Code)
	}
}
