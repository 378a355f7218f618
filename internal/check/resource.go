package check

import (
	"context"
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/vigilhq/vigil/internal/config"
	"github.com/vigilhq/vigil/internal/health"
)

// resourceCheck measures disk, memory and CPU utilisation against the
// configured thresholds.
//
// Deduction table (fixed for determinism):
//
//	one dimension over warn           WARN      −5
//	two or more over warn             WARN      −10
//	one dimension over crit           CRITICAL  −10
//	two or more over crit             CRITICAL  −15
type resourceCheck struct {
	cfg config.ResourceConfig
}

func newResource(cfg config.ResourceConfig) *resourceCheck {
	if cfg.DiskPath == "" {
		cfg.DiskPath = "/"
	}
	return &resourceCheck{cfg: cfg}
}

func (r *resourceCheck) ID() string { return "resource" }

func (r *resourceCheck) Collect(ctx context.Context) (*health.Result, error) {
	metrics := make(map[string]float64, 3)
	var warn, crit []string

	classify := func(name string, used, warnPct, critPct float64) {
		metrics[name+"_used_pct"] = used
		switch {
		case critPct > 0 && used >= critPct:
			crit = append(crit, fmt.Sprintf("%s %.1f%% (crit %.0f%%)", name, used, critPct))
		case warnPct > 0 && used >= warnPct:
			warn = append(warn, fmt.Sprintf("%s %.1f%% (warn %.0f%%)", name, used, warnPct))
		}
	}

	du, err := disk.UsageWithContext(ctx, r.cfg.DiskPath)
	if err != nil {
		return nil, fmt.Errorf("disk usage %q: %w", r.cfg.DiskPath, err)
	}
	classify("disk", du.UsedPercent, r.cfg.DiskWarnPct, r.cfg.DiskCritPct)

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("memory usage: %w", err)
	}
	classify("mem", vm.UsedPercent, r.cfg.MemWarnPct, r.cfg.MemCritPct)

	// Interval 0 compares against the previous call, so repeated runs see
	// utilisation since the last sample instead of blocking here.
	cpuPcts, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return nil, fmt.Errorf("cpu usage: %w", err)
	}
	if len(cpuPcts) > 0 {
		classify("cpu", cpuPcts[0], r.cfg.CPUWarnPct, r.cfg.CPUCritPct)
	}

	res := &health.Result{
		Component: r.ID(),
		Status:    health.StatusOK,
		Message:   "resource utilisation within thresholds",
		Metrics:   metrics,
	}

	switch {
	case len(crit) >= 2:
		res.Status, res.Deduction = health.StatusCritical, 15
	case len(crit) == 1:
		res.Status, res.Deduction = health.StatusCritical, 10
	case len(warn) >= 2:
		res.Status, res.Deduction = health.StatusWarn, 10
	case len(warn) == 1:
		res.Status, res.Deduction = health.StatusWarn, 5
	}
	if len(crit) > 0 || len(warn) > 0 {
		res.Message = strings.Join(append(crit, warn...), ", ")
	}
	return res, nil
}
