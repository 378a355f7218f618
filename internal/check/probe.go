package check

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vigilhq/vigil/internal/config"
	"github.com/vigilhq/vigil/internal/health"
)

// probeCheck samples end-to-end latency of a representative endpoint and
// compares it against the SLA boundaries: over warn SLA is WARN −5, over
// crit SLA is CRITICAL −10. A non-2xx response counts as a failed probe.
type probeCheck struct {
	cfg    config.ProbeConfig
	client *http.Client
}

func newProbe(cfg config.ProbeConfig) *probeCheck {
	return &probeCheck{cfg: cfg, client: newHTTPClient()}
}

func (p *probeCheck) ID() string { return "probe" }

func (p *probeCheck) Collect(ctx context.Context) (*health.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", p.cfg.URL, err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	latency := time.Since(start)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("probe %s: unexpected status %d", p.cfg.URL, resp.StatusCode)
	}

	res := &health.Result{
		Component: p.ID(),
		Status:    health.StatusOK,
		Message:   fmt.Sprintf("latency %s within SLA", latency.Round(time.Millisecond)),
		Metrics:   map[string]float64{"latency_ms": float64(latency.Milliseconds())},
	}

	switch {
	case p.cfg.CritLatencyMS > 0 && latency > p.cfg.CritLatency():
		res.Status = health.StatusCritical
		res.Deduction = 10
		res.Message = fmt.Sprintf("latency %s over critical SLA %s",
			latency.Round(time.Millisecond), p.cfg.CritLatency())
	case p.cfg.WarnLatencyMS > 0 && latency > p.cfg.WarnLatency():
		res.Status = health.StatusWarn
		res.Deduction = 5
		res.Message = fmt.Sprintf("latency %s over SLA %s",
			latency.Round(time.Millisecond), p.cfg.WarnLatency())
	}
	return res, nil
}
