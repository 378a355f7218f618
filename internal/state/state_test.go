package state

import (
	"testing"
	"time"

	"github.com/vigilhq/vigil/internal/health"
)

// fixedClock advances only when the test tells it to.
type fixedClock struct{ t time.Time }

func (c *fixedClock) now() time.Time          { return c.t }
func (c *fixedClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore() (*Store, *fixedClock) {
	clock := &fixedClock{t: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)}
	return NewWithClock(clock.now), clock
}

func TestCooldown(t *testing.T) {
	s, clock := newTestStore()
	window := 5 * time.Minute

	if !s.BeginFire(health.ActionNotify, "on-call", window) {
		t.Fatal("fresh store should allow the first fire")
	}
	s.EndFire(health.ActionNotify, "on-call", true)

	if s.BeginFire(health.ActionNotify, "on-call", window) {
		t.Error("just fired, should be in cooldown")
	}

	clock.advance(4 * time.Minute)
	if s.BeginFire(health.ActionNotify, "on-call", window) {
		t.Error("4m into a 5m window, should still be in cooldown")
	}

	clock.advance(2 * time.Minute)
	if !s.BeginFire(health.ActionNotify, "on-call", window) {
		t.Error("window elapsed, cooldown should be over")
	}
}

func TestCooldown_KeyedByActionAndTarget(t *testing.T) {
	s, _ := newTestStore()
	window := 5 * time.Minute

	s.BeginFire(health.ActionNotify, "on-call", window)
	s.EndFire(health.ActionNotify, "on-call", true)

	if !s.BeginFire(health.ActionNotify, "lead", window) {
		t.Error("different target must not share the cooldown")
	}
	if !s.BeginFire(health.ActionEscalate, "on-call", window) {
		t.Error("different action type must not share the cooldown")
	}
}

func TestCooldown_ZeroWindowDisables(t *testing.T) {
	s, _ := newTestStore()
	s.BeginFire(health.ActionNotify, "on-call", 0)
	s.EndFire(health.ActionNotify, "on-call", true)
	if !s.BeginFire(health.ActionNotify, "on-call", 0) {
		t.Error("zero window must disable the cooldown")
	}
}

// Two claims for the same pair can never both succeed, whatever the
// cooldown window says: the second is excluded until EndFire.
func TestBeginFire_ExcludesConcurrentDuplicate(t *testing.T) {
	s, _ := newTestStore()

	if !s.BeginFire(health.ActionNotify, "on-call", 0) {
		t.Fatal("first claim should succeed")
	}
	if s.BeginFire(health.ActionNotify, "on-call", 0) {
		t.Error("duplicate claim while in flight must be refused")
	}

	// Failed execution releases the claim without starting the cooldown.
	s.EndFire(health.ActionNotify, "on-call", false)
	if !s.BeginFire(health.ActionNotify, "on-call", 5*time.Minute) {
		t.Error("after a failed fire the pair should be claimable again")
	}
}

func TestEndFire_FailureDoesNotStartCooldown(t *testing.T) {
	s, _ := newTestStore()
	window := 5 * time.Minute

	s.BeginFire(health.ActionNotify, "on-call", window)
	s.EndFire(health.ActionNotify, "on-call", false)

	if !s.BeginFire(health.ActionNotify, "on-call", window) {
		t.Error("failure must not start the cooldown window")
	}
}

func TestOpenIncident(t *testing.T) {
	s, clock := newTestStore()

	inc, opened := s.OpenIncident(Incident{ID: "inc-1", Level: health.LevelIncident, Score: 65})
	if !opened {
		t.Fatal("first open should report opened=true")
	}
	if !inc.OpenedAt.Equal(clock.t) {
		t.Errorf("OpenedAt: got %s, want clock time %s", inc.OpenedAt, clock.t)
	}

	// A second open while one is active keeps the original.
	again, opened := s.OpenIncident(Incident{ID: "inc-2", Level: health.LevelCritIncident})
	if opened {
		t.Error("second open should report opened=false")
	}
	if again.ID != "inc-1" {
		t.Errorf("kept incident: got %s, want inc-1", again.ID)
	}

	got, ok := s.Incident()
	if !ok || got.ID != "inc-1" {
		t.Errorf("Incident(): got %+v ok=%v, want inc-1", got, ok)
	}
}

func TestRecordRecovery_ClosesAfterThreshold(t *testing.T) {
	s, _ := newTestStore()
	s.OpenIncident(Incident{ID: "inc-1", Level: health.LevelIncident})

	for i := 0; i < 2; i++ {
		if _, closed := s.RecordRecovery(true, 3); closed {
			t.Fatalf("closed after %d recovered runs, threshold is 3", i+1)
		}
	}
	closed, ok := s.RecordRecovery(true, 3)
	if !ok {
		t.Fatal("third recovered run should close the incident")
	}
	if closed.ID != "inc-1" {
		t.Errorf("closed incident: got %s, want inc-1", closed.ID)
	}
	if _, open := s.Incident(); open {
		t.Error("incident should be cleared after close")
	}
}

func TestRecordRecovery_DegradedRunResetsCounter(t *testing.T) {
	s, _ := newTestStore()
	s.OpenIncident(Incident{ID: "inc-1", Level: health.LevelIncident})

	s.RecordRecovery(true, 3)
	s.RecordRecovery(true, 3)
	if s.Recovered() != 2 {
		t.Fatalf("recovered count: got %d, want 2", s.Recovered())
	}

	// One bad run wipes the streak.
	if _, closed := s.RecordRecovery(false, 3); closed {
		t.Fatal("degraded run must not close the incident")
	}
	if s.Recovered() != 0 {
		t.Errorf("recovered count after reset: got %d, want 0", s.Recovered())
	}

	// The streak must restart from scratch.
	s.RecordRecovery(true, 3)
	s.RecordRecovery(true, 3)
	if _, closed := s.RecordRecovery(true, 3); !closed {
		t.Error("three consecutive recovered runs after reset should close")
	}
}

func TestRecordRecovery_NoIncidentIsNoop(t *testing.T) {
	s, _ := newTestStore()
	if _, closed := s.RecordRecovery(true, 1); closed {
		t.Error("no open incident, nothing to close")
	}
	if s.Recovered() != 0 {
		t.Errorf("recovered count: got %d, want 0", s.Recovered())
	}
}

func TestOpenIncident_ResetsRecoveredCounter(t *testing.T) {
	s, _ := newTestStore()
	s.OpenIncident(Incident{ID: "inc-1"})
	s.RecordRecovery(true, 5)
	s.RecordRecovery(true, 5)

	// Close and reopen: the new incident starts with a clean streak.
	for s.Recovered() < 5 {
		if _, closed := s.RecordRecovery(true, 5); closed {
			break
		}
	}
	s.OpenIncident(Incident{ID: "inc-2"})
	if s.Recovered() != 0 {
		t.Errorf("new incident should start with recovered=0, got %d", s.Recovered())
	}
}
