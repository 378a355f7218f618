package history

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/vigilhq/vigil/internal/health"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "vigil.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleReport(id string, ts time.Time, score int) *health.Report {
	return &health.Report{
		ID:        id,
		Target:    "prod",
		Timestamp: ts,
		Score:     score,
		Grade:     "C",
		Level:     health.LevelTicket,
		Trigger:   "interval",
		Results: []health.Result{
			{Component: "backup", Status: health.StatusCritical, Deduction: 25,
				Message: "stale", Metrics: map[string]float64{"backup_age_seconds": 90000}},
		},
		Actions: []health.ActionOutcome{
			{Action: health.Action{Type: health.ActionNotify, Target: "on-call", Message: "score 75"},
				Status: health.ActionExecuted, Attempts: 1},
		},
	}
}

func TestAppendAndLatest_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	want := sampleReport("r-1", time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC), 75)

	if err := s.Append(want); err != nil {
		t.Fatal(err)
	}
	got, err := s.Latest("prod")
	if err != nil {
		t.Fatal(err)
	}

	// Reads always report persistence; the stored copy is otherwise
	// identical to what was appended.
	want.Persisted = true
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("report round-trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLatest_NoReports(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Latest("prod"); !errors.Is(err, ErrNoReports) {
		t.Errorf("got %v, want ErrNoReports", err)
	}
}

func TestLatest_PicksNewestPerTarget(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"r-1", "r-2", "r-3"} {
		if err := s.Append(sampleReport(id, base.Add(time.Duration(i)*time.Hour), 70+i)); err != nil {
			t.Fatal(err)
		}
	}
	other := sampleReport("o-1", base.Add(10*time.Hour), 50)
	other.Target = "staging"
	if err := s.Append(other); err != nil {
		t.Fatal(err)
	}

	got, err := s.Latest("prod")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != "r-3" {
		t.Errorf("latest: got %s, want r-3", got.ID)
	}
}

func TestSince_OrderedOldestFirst(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"r-1", "r-2", "r-3", "r-4"} {
		if err := s.Append(sampleReport(id, base.Add(time.Duration(i)*time.Hour), 75)); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.Since("prod", base.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, r := range got {
		ids = append(ids, r.ID)
	}
	want := []string{"r-2", "r-3", "r-4"}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Errorf("since window mismatch (-want +got):\n%s", diff)
	}
}

func TestTrend(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	scores := []int{95, 80, 65, 100}
	for i, score := range scores {
		r := sampleReport(string(rune('a'+i)), base.Add(time.Duration(i)*time.Minute), score)
		if err := s.Append(r); err != nil {
			t.Fatal(err)
		}
	}

	tr, err := s.Trend("prod", base, 70)
	if err != nil {
		t.Fatal(err)
	}
	if tr.Runs != 4 {
		t.Errorf("runs: got %d, want 4", tr.Runs)
	}
	if tr.MinScore != 65 || tr.MaxScore != 100 {
		t.Errorf("min/max: got %d/%d, want 65/100", tr.MinScore, tr.MaxScore)
	}
	if tr.AvgScore != 85 {
		t.Errorf("avg: got %v, want 85", tr.AvgScore)
	}
	if tr.Below != 1 {
		t.Errorf("below 70: got %d, want 1", tr.Below)
	}
}

func TestTrend_EmptyWindow(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Trend("prod", time.Now(), 70); !errors.Is(err, ErrNoReports) {
		t.Errorf("got %v, want ErrNoReports", err)
	}
}

func TestPrune(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		if err := s.Append(sampleReport(string(rune('a'+i)), base.AddDate(0, 0, i*7), 90)); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := s.Prune(base.AddDate(0, 0, 14))
	if err != nil {
		t.Fatal(err)
	}
	if removed != 2 {
		t.Errorf("removed: got %d, want 2", removed)
	}

	left, err := s.Since("prod", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 3 {
		t.Errorf("remaining: got %d, want 3", len(left))
	}
}

func TestOpen_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "vigil.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	s.Close()
}
