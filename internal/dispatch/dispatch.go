package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cenkalti/backoff/v4"

	"github.com/vigilhq/vigil/internal/config"
	"github.com/vigilhq/vigil/internal/health"
	"github.com/vigilhq/vigil/internal/state"
)

// ErrNotWhitelisted is returned when an AUTO_HEAL action names a procedure
// outside the pre-approved whitelist.
var ErrNotWhitelisted = errors.New("dispatch: procedure not whitelisted")

// Notifier delivers a notification to one channel. Implementations are
// external collaborators; the engine only depends on this contract.
type Notifier interface {
	// Send delivers message at the given severity: info | warning | critical.
	Send(ctx context.Context, severity, message string) error
}

// HealExecutor executes one whitelisted remediation procedure.
type HealExecutor interface {
	Execute(ctx context.Context, procedureID string) error
}

// Dispatcher executes the actions selected by the policy evaluator. Every
// dispatch is cooldown-checked against the shared state store, retried
// with bounded exponential backoff on failure, and (for AUTO_HEAL and
// ESCALATE) downgraded to a NOTIFY describing the failure when all
// attempts are exhausted. Nothing ever fails silently.
type Dispatcher struct {
	actions   config.ActionsConfig
	store     *state.Store
	notifiers []Notifier
	healer    HealExecutor
	whitelist map[string]bool
}

// New builds a Dispatcher. notifiers may be empty (delivery becomes a
// logged no-op); healer may be nil when no heal procedures are configured.
func New(cfg *config.Config, store *state.Store, notifiers []Notifier, healer HealExecutor) *Dispatcher {
	wl := make(map[string]bool, len(cfg.Heal.Procedures))
	for _, p := range cfg.Heal.Procedures {
		wl[p.ID] = true
	}
	return &Dispatcher{
		actions:   cfg.Actions,
		store:     store,
		notifiers: notifiers,
		healer:    healer,
		whitelist: wl,
	}
}

// Dispatch executes all actions and returns one outcome per action, in
// input order. Independent actions run concurrently; all cooldown state
// access is serialized inside the state store.
func (d *Dispatcher) Dispatch(ctx context.Context, actions []health.Action) []health.ActionOutcome {
	outcomes := make([]health.ActionOutcome, len(actions))
	var wg sync.WaitGroup
	for i, a := range actions {
		wg.Add(1)
		go func(i int, a health.Action) {
			defer wg.Done()
			outcomes[i] = d.dispatchOne(ctx, a)
		}(i, a)
	}
	wg.Wait()
	return outcomes
}

// dispatchOne runs the full lifecycle for a single action.
func (d *Dispatcher) dispatchOne(ctx context.Context, a health.Action) health.ActionOutcome {
	out := health.ActionOutcome{Action: a}

	if a.Type == health.ActionAutoHeal && !d.whitelist[a.Target] {
		out.Status = health.ActionFailed
		out.Detail = ErrNotWhitelisted.Error()
		slog.Error("dispatch: refused non-whitelisted heal", "procedure", a.Target)
		return out
	}

	// BeginFire claims the (type, target) pair atomically: a pair in its
	// cooldown window or already executing elsewhere is suppressed, so the
	// same signal can never fire twice.
	if !d.store.BeginFire(a.Type, a.Target, a.Cooldown) {
		out.Status = health.ActionSuppressed
		out.Detail = fmt.Sprintf("within %s cooldown or already in flight", a.Cooldown)
		slog.Debug("dispatch: suppressed by cooldown", "type", a.Type, "target", a.Target)
		return out
	}

	attempts, err := d.executeWithRetry(ctx, a)
	d.store.EndFire(a.Type, a.Target, err == nil)
	out.Attempts = attempts
	if err == nil {
		out.Status = health.ActionExecuted
		slog.Info("dispatch: action executed",
			"type", a.Type, "target", a.Target, "attempts", attempts)
		return out
	}

	// Retries exhausted. A failed NOTIFY has nowhere further to go; heal
	// and escalate failures are downgraded to a notification so the
	// failure is surfaced to a human.
	if a.Type == health.ActionNotify {
		out.Status = health.ActionFailed
		out.Detail = err.Error()
		slog.Error("dispatch: notify failed", "target", a.Target, "err", err)
		return out
	}

	msg := fmt.Sprintf("%s %s failed after %d attempts: %v; original: %s",
		a.Type, a.Target, attempts, err, a.Message)
	out.Status = health.ActionDowngraded
	out.Detail = msg
	slog.Warn("dispatch: downgrading to notify",
		"type", a.Type, "target", a.Target, "err", err)
	if nerr := d.notify(ctx, "critical", msg); nerr != nil {
		out.Status = health.ActionFailed
		out.Detail = fmt.Sprintf("%s; downgrade notify also failed: %v", msg, nerr)
		slog.Error("dispatch: downgrade notify failed", "err", nerr)
	}
	return out
}

// executeWithRetry runs the action's side effect under the per-type retry
// policy: bounded attempts with exponential backoff.
func (d *Dispatcher) executeWithRetry(ctx context.Context, a health.Action) (int, error) {
	p := d.policyFor(a.Type)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.InitialBackoff()

	attempts := 0
	op := func() error {
		attempts++
		return d.execute(ctx, a)
	}
	err := backoff.Retry(op,
		backoff.WithContext(backoff.WithMaxRetries(bo, uint64(p.MaxAttempts-1)), ctx))
	return attempts, err
}

// execute performs a single attempt of the action's side effect.
func (d *Dispatcher) execute(ctx context.Context, a health.Action) error {
	switch a.Type {
	case health.ActionNotify:
		return d.notify(ctx, "warning", a.Message)
	case health.ActionEscalate:
		return d.notify(ctx, "critical", a.Message)
	case health.ActionAutoHeal:
		if d.healer == nil {
			return fmt.Errorf("no heal executor configured")
		}
		return d.healer.Execute(ctx, a.Target)
	default:
		return fmt.Errorf("unknown action type %q", a.Type)
	}
}

// notify fans the message out to all configured channels. Delivery counts
// as successful if at least one channel accepts it.
func (d *Dispatcher) notify(ctx context.Context, severity, message string) error {
	if len(d.notifiers) == 0 {
		slog.Warn("dispatch: no notifiers configured", "severity", severity, "message", message)
		return nil
	}
	var firstErr error
	delivered := false
	for _, n := range d.notifiers {
		if err := n.Send(ctx, severity, message); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		delivered = true
	}
	if !delivered {
		return firstErr
	}
	return nil
}

func (d *Dispatcher) policyFor(t health.ActionType) config.ActionPolicy {
	switch t {
	case health.ActionAutoHeal:
		return d.actions.AutoHeal
	case health.ActionEscalate:
		return d.actions.Escalate
	default:
		return d.actions.Notify
	}
}
