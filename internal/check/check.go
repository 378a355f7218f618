package check

import (
	"context"
	"fmt"
	"time"

	"github.com/vigilhq/vigil/internal/config"
	"github.com/vigilhq/vigil/internal/health"
)

// FaultDeduction is the fixed number of points a faulted collector
// (timeout, error, panic) removes from the composite score.
const FaultDeduction = 5

// Collector is a single bounded health probe. Implementations must be
// read-only: they observe the monitored system but never mutate it, so an
// abandoned in-flight probe is safe to discard.
type Collector interface {
	// ID returns the stable component identifier, e.g. "resource".
	ID() string

	// Collect performs one probe. A returned error means the probe itself
	// failed; the caller converts it into a synthetic CRITICAL result.
	Collect(ctx context.Context) (*health.Result, error)
}

// Build constructs the collector registry from cfg. The registry is an
// explicit static table assembled once at startup; there is no runtime
// discovery or reflection. Order is fixed so report output is stable.
func Build(cfg *config.Config) []Collector {
	entries := []struct {
		enabled bool
		build   func() Collector
	}{
		{cfg.Checks.Resource.Enabled, func() Collector { return newResource(cfg.Checks.Resource) }},
		{cfg.Checks.Backup.Enabled, func() Collector { return newBackup(cfg.Checks.Backup) }},
		{cfg.Checks.Integrity.Enabled, func() Collector { return newIntegrity(cfg.Checks.Integrity) }},
		{cfg.Checks.Security.Enabled, func() Collector { return newSecurity(cfg.Checks.Security) }},
		{cfg.Checks.Probe.Enabled, func() Collector { return newProbe(cfg.Checks.Probe) }},
	}

	var out []Collector
	for _, e := range entries {
		if e.enabled {
			out = append(out, e.build())
		}
	}
	return out
}

// Run executes c bounded by timeout and never returns a fault to the
// caller: a timeout, error or panic inside the collector is converted into
// a synthetic CRITICAL result carrying the diagnostic message, so one
// broken check cannot abort a run.
//
// On timeout the in-flight goroutine is abandoned cooperatively: its
// context is cancelled and any late result is discarded.
func Run(ctx context.Context, c Collector, timeout time.Duration) *health.Result {
	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		res *health.Result
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		res, err := c.Collect(rctx)
		done <- outcome{res: res, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return Synthetic(c.ID(), o.err.Error())
		}
		if o.res == nil {
			return Synthetic(c.ID(), "collector returned no result")
		}
		return o.res
	case <-rctx.Done():
		return Synthetic(c.ID(), fmt.Sprintf("timed out after %s", timeout))
	}
}

// Synthetic fabricates the CRITICAL result that stands in for a faulted
// collector. It carries the default fault deduction rather than the
// check's own table; the check never got far enough to measure anything.
func Synthetic(component, message string) *health.Result {
	return &health.Result{
		Component: component,
		Status:    health.StatusCritical,
		Deduction: FaultDeduction,
		Message:   message,
		Synthetic: true,
	}
}
