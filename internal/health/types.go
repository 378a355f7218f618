package health

import "time"

// Status classifies the outcome of a single check.
type Status string

const (
	StatusOK       Status = "OK"
	StatusWarn     Status = "WARN"
	StatusCritical Status = "CRITICAL"
)

// rank orders statuses by severity so callers can compare them.
func (s Status) rank() int {
	switch s {
	case StatusCritical:
		return 2
	case StatusWarn:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether s is at least as severe as other.
func (s Status) AtLeast(other Status) bool { return s.rank() >= other.rank() }

// Result is the immutable outcome of one collector run.
type Result struct {
	// Component is the collector identifier, e.g. "resource", "backup".
	Component string `json:"component"`

	Status Status `json:"status"`

	// Deduction is the number of points this result removes from the
	// composite score. Always >= 0.
	Deduction int `json:"deduction"`

	Message string `json:"message"`

	// Metrics holds diagnostic values observed during the check
	// (e.g. "disk_used_pct", "latency_ms").
	Metrics map[string]float64 `json:"metrics,omitempty"`

	// Synthetic is true when the result was fabricated from a collector
	// fault (timeout, panic, unreachable dependency) rather than a
	// completed probe.
	Synthetic bool `json:"synthetic,omitempty"`
}

// ActionType identifies one of the three graduated response kinds.
type ActionType string

const (
	ActionNotify   ActionType = "NOTIFY"
	ActionAutoHeal ActionType = "AUTO_HEAL"
	ActionEscalate ActionType = "ESCALATE"
)

// Action is a response selected by the policy evaluator, not yet executed.
type Action struct {
	Type ActionType `json:"type"`

	// Target is what the action applies to: a notification recipient for
	// NOTIFY/ESCALATE, a whitelisted procedure ID for AUTO_HEAL.
	Target string `json:"target"`

	// Cooldown is the minimum time between repeated firings of this
	// (type, target) pair.
	Cooldown time.Duration `json:"cooldown"`

	// Message carries the human-readable payload delivered with the action.
	Message string `json:"message,omitempty"`
}

// ActionStatus records how dispatching an action concluded.
type ActionStatus string

const (
	ActionExecuted   ActionStatus = "executed"
	ActionSuppressed ActionStatus = "suppressed"
	ActionDowngraded ActionStatus = "downgraded"
	ActionFailed     ActionStatus = "failed"
)

// ActionOutcome is one dispatched action together with its result.
type ActionOutcome struct {
	Action   Action       `json:"action"`
	Status   ActionStatus `json:"status"`
	Detail   string       `json:"detail,omitempty"`
	Attempts int          `json:"attempts,omitempty"`
}

// Level is the minimum required response severity chosen by the policy
// evaluator. Higher levels strictly include the responses of lower ones.
type Level string

const (
	LevelNone         Level = "none"
	LevelNotify       Level = "notify"
	LevelTicket       Level = "ticket"
	LevelIncident     Level = "incident"
	LevelCritIncident Level = "critical-incident"
)

// rank orders levels so the override rule can take the maximum.
func (l Level) rank() int {
	switch l {
	case LevelCritIncident:
		return 4
	case LevelIncident:
		return 3
	case LevelTicket:
		return 2
	case LevelNotify:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether l is at least as severe as other.
func (l Level) AtLeast(other Level) bool { return l.rank() >= other.rank() }

// Max returns the more severe of l and other.
func (l Level) Max(other Level) Level {
	if other.rank() > l.rank() {
		return other
	}
	return l
}

// Report is the composite outcome of one scoring run. It is created once,
// fully computed in a single pass, and never mutated after creation; the
// history store only ever appends it.
type Report struct {
	ID        string    `json:"id"`
	Target    string    `json:"target"`
	Timestamp time.Time `json:"timestamp"`

	// Score is the composite health value, clamped to 0–100.
	Score int `json:"score"`

	// Grade is the letter banding of Score: A+, A, B+, B, C, D, F.
	Grade string `json:"grade"`

	// Level is the response level the policy evaluator selected.
	Level Level `json:"level"`

	// Partial is true when at least one result is synthetic: the run
	// completed, but not every collector reported real data.
	Partial bool `json:"partial,omitempty"`

	// Persisted is false when the history write failed. The report is
	// still valid and returned to the caller.
	Persisted bool `json:"persisted"`

	// Trigger records what started the run: "interval", "manual",
	// "gate" or "verify".
	Trigger string `json:"trigger"`

	Results []Result        `json:"results"`
	Actions []ActionOutcome `json:"actions,omitempty"`
}

// Worst returns the most severe status across all results.
func (r *Report) Worst() Status {
	worst := StatusOK
	for _, res := range r.Results {
		if res.Status.AtLeast(worst) {
			worst = res.Status
		}
	}
	return worst
}
