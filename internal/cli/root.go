package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vigilhq/vigil/internal/config"
	"github.com/vigilhq/vigil/internal/engine"
	"github.com/vigilhq/vigil/internal/history"
	"github.com/vigilhq/vigil/internal/state"
)

// ExitCodeError carries a specific process exit code through cobra's error
// return. The CLI contract maps score bands to exit codes, so a degraded
// score is not a command failure, it is a result.
type ExitCodeError struct {
	Code int
}

func (e *ExitCodeError) Error() string { return fmt.Sprintf("exit status %d", e.Code) }

// options holds the global flags shared by all commands.
type options struct {
	configPath string
	verbose    bool
}

// NewRootCmd wires the cobra command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "vigil",
		Short: "vigil - health scoring and auto-remediation engine",
		Long: "Vigil evaluates system health from independent checks, produces a\n" +
			"composite 0-100 score, and triggers graduated responses (notify,\n" +
			"auto-heal, escalate) when health degrades.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if opts.verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			slog.SetDefault(logger)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "vigil.yaml", "path to config file")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newStatusCommand(opts))
	root.AddCommand(newReportCommand(opts))
	root.AddCommand(newSnapshotCommand(opts))
	root.AddCommand(newGateCommand(opts))
	root.AddCommand(newRunCommand(opts))
	return root
}

// setup loads the config and wires the runner. A config error is fatal by
// contract; a history open failure is not: the engine then runs without
// persistence and reports carry persisted=false.
func setup(opts *options) (*engine.Runner, *history.Store, *config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	hist, err := history.Open(cfg.Storage.Path)
	if err != nil {
		slog.Warn("history unavailable, reports will not be persisted", "err", err)
		hist = nil
	}

	runner := engine.New(cfg, state.New(), hist)
	return runner, hist, cfg, nil
}
