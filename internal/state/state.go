package state

import (
	"sync"
	"time"

	"github.com/vigilhq/vigil/internal/health"
)

// Incident is the record of an open escalation.
type Incident struct {
	ID       string       `json:"id"`
	OpenedAt time.Time    `json:"opened_at"`
	Level    health.Level `json:"level"`

	// Score is the composite score at the moment the incident opened.
	Score int `json:"score"`
}

// cooldownKey identifies one cooldown entry.
type cooldownKey struct {
	action health.ActionType
	target string
}

// Store is the engine's only mutable shared state: the cooldown registry,
// the consecutive-recovered-runs counter, and the currently open incident.
// It is explicitly injected into the policy evaluator and the dispatcher
// (there are no package-level singletons) and every mutation is serialized
// behind a single mutex.
type Store struct {
	mu         sync.Mutex
	now        func() time.Time
	lastFired  map[cooldownKey]time.Time
	inProgress map[cooldownKey]bool
	recovered  int
	incident   *Incident
}

// New returns an empty Store using the wall clock.
func New() *Store {
	return NewWithClock(time.Now)
}

// NewWithClock returns an empty Store with an injected clock, for
// deterministic tests.
func NewWithClock(now func() time.Time) *Store {
	return &Store{
		now:        now,
		lastFired:  make(map[cooldownKey]time.Time),
		inProgress: make(map[cooldownKey]bool),
	}
}

// BeginFire atomically claims (action, target) for execution. It returns
// false when the pair fired within the last window or when another fire
// of the same pair is still in progress, so an action can never execute
// twice for one signal even under concurrent dispatch. A zero or negative
// window disables the cooldown but keeps the in-progress exclusion.
//
// Every successful BeginFire must be paired with an EndFire.
func (s *Store) BeginFire(action health.ActionType, target string, window time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := cooldownKey{action, target}
	if s.inProgress[k] {
		return false
	}
	if window > 0 {
		if last, ok := s.lastFired[k]; ok && s.now().Sub(last) < window {
			return false
		}
	}
	s.inProgress[k] = true
	return true
}

// EndFire releases the claim taken by BeginFire. fired records whether the
// action actually executed: only then does the cooldown window start, so a
// failed action may be retried on the next run.
func (s *Store) EndFire(action health.ActionType, target string, fired bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := cooldownKey{action, target}
	delete(s.inProgress, k)
	if fired {
		s.lastFired[k] = s.now()
	}
}

// OpenIncident records inc as the open incident. If one is already open it
// is kept and returned with opened=false.
func (s *Store) OpenIncident(inc Incident) (Incident, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.incident != nil {
		return *s.incident, false
	}
	if inc.OpenedAt.IsZero() {
		inc.OpenedAt = s.now()
	}
	s.incident = &inc
	s.recovered = 0
	return inc, true
}

// Incident returns the open incident, if any.
func (s *Store) Incident() (Incident, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.incident == nil {
		return Incident{}, false
	}
	return *s.incident, true
}

// RecordRecovery updates the consecutive-recovered counter after a run.
// recovered is whether the run's score cleared the recovery bar. When the
// counter reaches threshold the open incident is closed and returned.
func (s *Store) RecordRecovery(recovered bool, threshold int) (Incident, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.incident == nil {
		return Incident{}, false
	}
	if !recovered {
		s.recovered = 0
		return Incident{}, false
	}
	s.recovered++
	if s.recovered < threshold {
		return Incident{}, false
	}
	closed := *s.incident
	s.incident = nil
	s.recovered = 0
	return closed, true
}

// Recovered returns the current consecutive-recovered count.
func (s *Store) Recovered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recovered
}
