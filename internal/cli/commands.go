package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vigilhq/vigil/internal/engine"
	"github.com/vigilhq/vigil/internal/health"
	"github.com/vigilhq/vigil/internal/history"
	"github.com/vigilhq/vigil/internal/score"
)

// newStatusCommand builds `vigil status`, a one-shot composite report.
// Exit code 0 when score >= 90, 1 for 70-89, 2 below 70, reflecting the
// computed band even when persistence or notification failed.
func newStatusCommand(opts *options) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Run all checks once and print the composite report",
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, hist, _, err := setup(opts)
			if err != nil {
				return err
			}
			defer closeHistory(hist)

			rep, err := runner.Run(cmd.Context(), engine.TriggerManual)
			if err != nil {
				return err
			}
			if err := renderReport(os.Stdout, rep, format); err != nil {
				return err
			}
			return exitForScore(rep.Score)
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "output format: text | json")
	return cmd
}

// newReportCommand builds `vigil report`: the latest persisted report
// plus trend statistics over the requested window.
func newReportCommand(opts *options) *cobra.Command {
	var (
		format string
		since  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show the latest report and trend statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, hist, cfg, err := setup(opts)
			if err != nil {
				return err
			}
			if hist == nil {
				return fmt.Errorf("report requires the history store")
			}
			defer closeHistory(hist)

			rep, err := hist.Latest(cfg.Target)
			if err != nil {
				return err
			}
			trend, err := hist.Trend(cfg.Target, time.Now().Add(-since), 70)
			if err != nil {
				return err
			}

			if format == "json" {
				return json.NewEncoder(os.Stdout).Encode(struct {
					Report *health.Report `json:"report"`
					Trend  *history.Trend `json:"trend"`
				}{rep, trend})
			}
			if err := renderReport(os.Stdout, rep, format); err != nil {
				return err
			}
			renderTrend(os.Stdout, trend, since)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "output format: text | json")
	cmd.Flags().DurationVar(&since, "since", 24*time.Hour, "trend window, e.g. 24h or 7h30m")
	return cmd
}

// newSnapshotCommand builds `vigil snapshot`, a forced verification run,
// intended for use immediately after remediation or an incident.
func newSnapshotCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Force a verification run",
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, hist, _, err := setup(opts)
			if err != nil {
				return err
			}
			defer closeHistory(hist)

			rep, err := runner.Run(cmd.Context(), engine.TriggerVerify)
			if err != nil {
				return err
			}
			if err := renderReport(os.Stdout, rep, "text"); err != nil {
				return err
			}
			return exitForScore(rep.Score)
		},
	}
}

// newGateCommand builds `vigil gate`, the pre-deployment gate. Exit code
// 0 allows the deploy, 1 blocks it.
func newGateCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "gate",
		Short: "Pre-deployment gate: allow only if the score meets the configured minimum",
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, hist, cfg, err := setup(opts)
			if err != nil {
				return err
			}
			defer closeHistory(hist)

			allow, rep, err := runner.Gate(cmd.Context())
			if err != nil {
				return err
			}
			if allow {
				fmt.Fprintf(os.Stdout, "ALLOW: score %d (%s) meets gate minimum %d\n",
					rep.Score, rep.Grade, cfg.Policy.GateMinScore)
				return nil
			}
			fmt.Fprintf(os.Stdout, "BLOCK: score %d (%s) below gate minimum %d\n",
				rep.Score, rep.Grade, cfg.Policy.GateMinScore)
			return &ExitCodeError{Code: 1}
		},
	}
}

// exitForScore converts a score band into the CLI exit contract.
func exitForScore(s int) error {
	if code := score.ExitCode(s); code != 0 {
		return &ExitCodeError{Code: code}
	}
	return nil
}

func closeHistory(hist *history.Store) {
	if hist != nil {
		_ = hist.Close()
	}
}
