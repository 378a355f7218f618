package policy

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/vigilhq/vigil/internal/config"
	"github.com/vigilhq/vigil/internal/health"
	"github.com/vigilhq/vigil/internal/state"
)

// recoveryBar is the score a run must reach to count toward closing an
// open incident.
const recoveryBar = 70

// Decision is the evaluator's output for one run: the minimum required
// response level and the concrete actions implementing it.
type Decision struct {
	Level   health.Level
	Actions []health.Action

	// Opened / Closed report incident transitions caused by this run.
	Opened *state.Incident
	Closed *state.Incident
}

// Evaluator maps a composite score plus collector-specific overrides to a
// required action level. It is stateless per call except for the incident
// and consecutive-recovery bookkeeping, which lives in the injected state
// store alongside the cooldown registry.
type Evaluator struct {
	policy  config.PolicyConfig
	actions config.ActionsConfig
	heal    config.HealConfig
	store   *state.Store

	hard map[string]bool
}

// New builds an Evaluator bound to the given config and state store.
func New(cfg *config.Config, store *state.Store) *Evaluator {
	hard := make(map[string]bool, len(cfg.Policy.HardComponents))
	for _, c := range cfg.Policy.HardComponents {
		hard[c] = true
	}
	return &Evaluator{
		policy:  cfg.Policy,
		actions: cfg.Actions,
		heal:    cfg.Heal,
		store:   store,
		hard:    hard,
	}
}

// Evaluate decides the response for one scored run.
//
// The hard-component override is applied before the banded rule and takes
// precedence: a single CRITICAL result on a hard component forces at least
// incident level no matter how healthy the rest of the system is: one
// catastrophic signal cannot be averaged away. Synthetic CRITICALs count
// too: a durability check that could not run is treated as a failing one.
func (e *Evaluator) Evaluate(score int, results []health.Result) Decision {
	level := bandLevel(score)

	var hardHits []string
	for _, r := range results {
		if e.hard[r.Component] && r.Status == health.StatusCritical {
			hardHits = append(hardHits, r.Component)
		}
	}
	if len(hardHits) > 0 {
		level = level.Max(health.LevelIncident)
	}

	d := Decision{Level: level}
	summary := summarize(score, results)
	if len(hardHits) > 0 {
		summary += fmt.Sprintf(" [hard override: %s]", strings.Join(hardHits, ","))
	}

	// Incident bookkeeping before action construction so the escalate
	// message can carry the incident ID.
	if level.AtLeast(health.LevelIncident) {
		inc, opened := e.store.OpenIncident(state.Incident{
			ID:    uuid.NewString(),
			Level: level,
			Score: score,
		})
		if opened {
			d.Opened = &inc
		}
		// Any incident-level run resets the recovery streak.
		e.store.RecordRecovery(false, e.policy.RecoveryRuns)
		d.Actions = append(d.Actions, e.incidentActions(level, inc, summary)...)
	} else if closed, ok := e.store.RecordRecovery(score >= recoveryBar, e.policy.RecoveryRuns); ok {
		d.Closed = &closed
		d.Actions = append(d.Actions, health.Action{
			Type:     health.ActionNotify,
			Target:   e.policy.OnCall,
			Cooldown: 0, // incident resolution is never suppressed
			Message:  fmt.Sprintf("incident %s resolved after %d recovered runs; %s", closed.ID, e.policy.RecoveryRuns, summary),
		})
	}

	if level.AtLeast(health.LevelNotify) {
		d.Actions = append(d.Actions, health.Action{
			Type:     health.ActionNotify,
			Target:   e.policy.OnCall,
			Cooldown: e.actions.Notify.Cooldown(),
			Message:  summary,
		})
	}
	if level.AtLeast(health.LevelTicket) {
		d.Actions = append(d.Actions,
			health.Action{
				Type:     health.ActionNotify,
				Target:   e.policy.Lead,
				Cooldown: e.actions.Notify.Cooldown(),
				Message:  summary,
			},
			health.Action{
				Type:     health.ActionNotify,
				Target:   "ticket",
				Cooldown: e.actions.Notify.Cooldown(),
				Message:  "open tracked ticket: " + summary,
			},
		)
	}

	d.Actions = append(d.Actions, e.healActions(results)...)
	return d
}

// incidentActions builds the escalation for an incident-level run. The
// escalate cooldown doubles as the fixed interval of recurring status
// updates while the incident stays open.
func (e *Evaluator) incidentActions(level health.Level, inc state.Incident, summary string) []health.Action {
	target := "incident"
	msg := fmt.Sprintf("incident %s: %s", inc.ID, summary)
	if level == health.LevelCritIncident {
		target = "incident-critical"
		msg = fmt.Sprintf("incident %s (full-team response): %s", inc.ID, summary)
	}

	actions := []health.Action{{
		Type:     health.ActionEscalate,
		Target:   target,
		Cooldown: e.actions.Escalate.Cooldown(),
		Message:  msg,
	}}
	if level == health.LevelCritIncident {
		actions = append(actions, health.Action{
			Type:     health.ActionNotify,
			Target:   e.policy.Team,
			Cooldown: e.actions.Notify.Cooldown(),
			Message:  msg,
		})
	}
	return actions
}

// healActions attaches an AUTO_HEAL action for every degraded component
// that has a procedure in the pre-approved whitelist. Components without a
// whitelisted procedure get no heal action; there is no ad hoc execution.
func (e *Evaluator) healActions(results []health.Result) []health.Action {
	var out []health.Action
	for _, r := range results {
		if r.Status == health.StatusOK || r.Synthetic {
			continue
		}
		for _, p := range e.heal.Procedures {
			if p.Component != r.Component {
				continue
			}
			out = append(out, health.Action{
				Type:     health.ActionAutoHeal,
				Target:   p.ID,
				Cooldown: e.actions.AutoHeal.Cooldown(),
				Message:  fmt.Sprintf("remediate %s: %s", r.Component, r.Message),
			})
		}
	}
	return out
}

// bandLevel maps a composite score to the minimum required response level.
func bandLevel(score int) health.Level {
	switch {
	case score < 60:
		return health.LevelCritIncident
	case score < 70:
		return health.LevelIncident
	case score < 80:
		return health.LevelTicket
	case score < 90:
		return health.LevelNotify
	default:
		return health.LevelNone
	}
}

// summarize renders the one-line report summary attached to notifications.
func summarize(score int, results []health.Result) string {
	var degraded []string
	for _, r := range results {
		if r.Status != health.StatusOK {
			degraded = append(degraded, fmt.Sprintf("%s=%s(-%d)", r.Component, r.Status, r.Deduction))
		}
	}
	if len(degraded) == 0 {
		return fmt.Sprintf("score %d, all checks OK", score)
	}
	return fmt.Sprintf("score %d: %s", score, strings.Join(degraded, " "))
}
