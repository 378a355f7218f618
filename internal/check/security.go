package check

import (
	"context"
	"fmt"
	"net/http"

	"github.com/vigilhq/vigil/internal/config"
	"github.com/vigilhq/vigil/internal/health"
)

// securityDeductionPerAlert is the penalty per unresolved critical alert.
const securityDeductionPerAlert = 15

// defaultSecurityMetric is the metric family summed when the config does
// not name one.
const defaultSecurityMetric = "security_alerts_unresolved_critical"

// securityCheck scrapes a Prometheus text endpoint and treats the sum of
// the configured metric family as the count of unresolved critical alerts
// in the recent window.
type securityCheck struct {
	cfg    config.SecurityConfig
	client *http.Client
}

func newSecurity(cfg config.SecurityConfig) *securityCheck {
	if cfg.Metric == "" {
		cfg.Metric = defaultSecurityMetric
	}
	return &securityCheck{cfg: cfg, client: newHTTPClient()}
}

func (s *securityCheck) ID() string { return "security" }

func (s *securityCheck) Collect(ctx context.Context) (*health.Result, error) {
	mfs, err := fetchMetrics(ctx, s.client, s.cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("scrape %s: %w", s.cfg.Endpoint, err)
	}

	unresolved := int(sumFamily(mfs[s.cfg.Metric]))
	res := &health.Result{
		Component: s.ID(),
		Status:    health.StatusOK,
		Message:   "no unresolved critical alerts",
		Metrics:   map[string]float64{"unresolved_critical": float64(unresolved)},
	}
	if unresolved > 0 {
		res.Status = health.StatusCritical
		res.Deduction = unresolved * securityDeductionPerAlert
		res.Message = fmt.Sprintf("%d unresolved critical alerts", unresolved)
	}
	return res, nil
}
