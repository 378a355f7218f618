package check

import (
	"context"
	"testing"

	"github.com/vigilhq/vigil/internal/config"
	"github.com/vigilhq/vigil/internal/health"
)

func TestResource_ThresholdsAbove100NeverTrip(t *testing.T) {
	r := newResource(config.ResourceConfig{
		Enabled:     true,
		DiskWarnPct: 101, DiskCritPct: 101,
		MemWarnPct: 101, MemCritPct: 101,
		CPUWarnPct: 101, CPUCritPct: 101,
	})
	res, err := r.Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != health.StatusOK {
		t.Errorf("status: got %s, want OK (%s)", res.Status, res.Message)
	}
	for _, m := range []string{"disk_used_pct", "mem_used_pct"} {
		if _, ok := res.Metrics[m]; !ok {
			t.Errorf("metric %s missing", m)
		}
	}
}

func TestResource_ZeroThresholdsDisabled(t *testing.T) {
	// All thresholds zero: utilisation is measured but never classified.
	r := newResource(config.ResourceConfig{Enabled: true})
	res, err := r.Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != health.StatusOK || res.Deduction != 0 {
		t.Errorf("got %s -%d, want OK -0", res.Status, res.Deduction)
	}
}

func TestResource_TinyThresholdsTrip(t *testing.T) {
	// Warn thresholds close to zero trip on any live system.
	r := newResource(config.ResourceConfig{
		Enabled:     true,
		DiskWarnPct: 0.000001,
		MemWarnPct:  0.000001,
	})
	res, err := r.Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !res.Status.AtLeast(health.StatusWarn) {
		t.Errorf("status: got %s, want at least WARN", res.Status)
	}
	if res.Deduction < 5 {
		t.Errorf("deduction: got %d, want >= 5", res.Deduction)
	}
}
