package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vigilhq/vigil/internal/check"
	"github.com/vigilhq/vigil/internal/config"
	"github.com/vigilhq/vigil/internal/dispatch"
	"github.com/vigilhq/vigil/internal/health"
	"github.com/vigilhq/vigil/internal/history"
	"github.com/vigilhq/vigil/internal/policy"
	"github.com/vigilhq/vigil/internal/score"
	"github.com/vigilhq/vigil/internal/state"
)

// ErrRunInFlight is returned when a run is requested for a target that
// already has one in progress. Runs for the same target never interleave.
var ErrRunInFlight = errors.New("engine: run already in flight for target")

// Run trigger names recorded on reports.
const (
	TriggerInterval = "interval"
	TriggerManual   = "manual"
	TriggerGate     = "gate"
	TriggerVerify   = "verify"
)

// Runner orchestrates one full evaluation: concurrent collection, scoring,
// policy evaluation, action dispatch and persistence. It owns the
// per-target in-flight guard and the daemon cadence loop.
type Runner struct {
	store *state.Store
	hist  *history.Store
	now   func() time.Time

	mu         sync.Mutex
	inflight   map[string]bool
	cfg        *config.Config
	collectors []check.Collector
	eval       *policy.Evaluator
	disp       *dispatch.Dispatcher

	lastMu sync.RWMutex
	last   *health.Report
}

// New wires a Runner from config. hist may be nil when persistence is
// disabled; reports are then returned with Persisted=false.
func New(cfg *config.Config, store *state.Store, hist *history.Store) *Runner {
	r := &Runner{
		store:    store,
		hist:     hist,
		now:      time.Now,
		inflight: make(map[string]bool),
	}
	r.apply(cfg)
	return r
}

// apply rebuilds the config-derived components. Caller holds no locks.
func (r *Runner) apply(cfg *config.Config) {
	collectors := check.Build(cfg)
	eval := policy.New(cfg, r.store)
	disp := dispatch.New(cfg, r.store,
		dispatch.BuildNotifiers(cfg.Notifiers),
		dispatch.NewCommandExecutor(cfg.Heal))

	r.mu.Lock()
	r.cfg = cfg
	r.collectors = collectors
	r.eval = eval
	r.disp = disp
	r.mu.Unlock()
}

// Reload swaps in a new validated config. Used by the daemon's hot-reload
// path; an in-flight run keeps the components it started with.
func (r *Runner) Reload(cfg *config.Config) {
	r.apply(cfg)
	slog.Info("engine: config reloaded", "target", cfg.Target)
}

// Run executes one evaluation for the configured target. A second Run for
// the same target while one is in flight returns ErrRunInFlight.
//
// The run never aborts on a collector fault: faulted checks contribute
// synthetic CRITICAL results and the report is marked partial. Dispatch
// and persistence failures are surfaced on the report, not as errors.
func (r *Runner) Run(ctx context.Context, trigger string) (*health.Report, error) {
	r.mu.Lock()
	cfg := r.cfg
	collectors := r.collectors
	eval := r.eval
	disp := r.disp
	if r.inflight[cfg.Target] {
		r.mu.Unlock()
		return nil, ErrRunInFlight
	}
	r.inflight[cfg.Target] = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.inflight, cfg.Target)
		r.mu.Unlock()
	}()

	started := r.now().UTC()
	slog.Info("engine: run starting",
		"target", cfg.Target, "trigger", trigger, "checks", len(collectors))

	// All collectors run concurrently, each bounded by its own timeout.
	// The run proceeds once every slot is filled; there is no unbounded
	// wait, and late results from abandoned probes are discarded.
	results := make([]health.Result, len(collectors))
	var wg sync.WaitGroup
	for i, c := range collectors {
		wg.Add(1)
		go func(i int, c check.Collector) {
			defer wg.Done()
			results[i] = *check.Run(ctx, c, cfg.CheckTimeout())
		}(i, c)
	}
	wg.Wait()

	results = check.ApplyRules(cfg.Rules, results)

	partial := false
	for _, res := range results {
		if res.Synthetic {
			partial = true
			break
		}
	}

	total, grade := score.Compute(results)
	report := &health.Report{
		ID:        uuid.NewString(),
		Target:    cfg.Target,
		Timestamp: started,
		Score:     total,
		Grade:     grade,
		Partial:   partial,
		Trigger:   trigger,
		Results:   results,
	}

	decision := eval.Evaluate(total, results)
	report.Level = decision.Level
	if decision.Opened != nil {
		slog.Warn("engine: incident opened",
			"incident", decision.Opened.ID, "level", decision.Opened.Level, "score", total)
	}
	if decision.Closed != nil {
		slog.Info("engine: incident closed", "incident", decision.Closed.ID)
	}

	report.Actions = disp.Dispatch(ctx, decision.Actions)

	if r.hist != nil {
		if err := r.hist.Append(report); err != nil {
			// Non-fatal: the report is still valid and returned.
			slog.Warn("engine: persist failed", "err", err)
		} else {
			report.Persisted = true
		}
	}

	r.lastMu.Lock()
	r.last = report
	r.lastMu.Unlock()

	slog.Info("engine: run complete",
		"target", cfg.Target,
		"score", report.Score,
		"grade", report.Grade,
		"level", report.Level,
		"partial", report.Partial,
		"persisted", report.Persisted,
		"elapsed", time.Since(started).Round(time.Millisecond),
	)
	return report, nil
}

// Gate runs a pre-deployment verification: the deploy is allowed only when
// the score meets the configured minimum (the "A" band by default).
func (r *Runner) Gate(ctx context.Context) (allow bool, report *health.Report, err error) {
	report, err = r.Run(ctx, TriggerGate)
	if err != nil {
		return false, nil, err
	}
	r.mu.Lock()
	min := r.cfg.Policy.GateMinScore
	r.mu.Unlock()
	return report.Score >= min, report, nil
}

// Latest returns the most recent report produced by this Runner, if any.
func (r *Runner) Latest() (*health.Report, bool) {
	r.lastMu.RLock()
	defer r.lastMu.RUnlock()
	if r.last == nil {
		return nil, false
	}
	return r.last, true
}

// Start runs the cadence loop until ctx is cancelled: one evaluation per
// interval plus a retention prune after each run. Overlap with a manual
// run is prevented by the in-flight guard; a skipped tick is logged, not
// queued.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	interval := r.cfg.Interval()
	r.mu.Unlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Run(ctx, TriggerInterval); err != nil {
				if errors.Is(err, ErrRunInFlight) {
					slog.Debug("engine: tick skipped, run in flight")
					continue
				}
				slog.Error("engine: scheduled run failed", "err", err)
				continue
			}
			r.prune()
		}
	}
}

// prune applies the retention window to the history store.
func (r *Runner) prune() {
	if r.hist == nil {
		return
	}
	r.mu.Lock()
	retention := r.cfg.Storage.Retention()
	r.mu.Unlock()

	cutoff := r.now().Add(-retention)
	n, err := r.hist.Prune(cutoff)
	if err != nil {
		slog.Warn("engine: retention prune failed", "err", err)
		return
	}
	if n > 0 {
		slog.Debug("engine: pruned old reports", "count", n)
	}
}
