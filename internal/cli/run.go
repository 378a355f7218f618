package cli

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/vigilhq/vigil/internal/config"
	"github.com/vigilhq/vigil/internal/engine"
	"github.com/vigilhq/vigil/internal/httpapi"
)

// newRunCommand builds `vigil run`, the daemon mode: scheduled runs on
// the configured cadence, config hot-reload, and the optional read-only
// HTTP/WebSocket status surface.
func newRunCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the engine as a daemon on the configured cadence",
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, hist, cfg, err := setup(opts)
			if err != nil {
				return err
			}
			defer closeHistory(hist)

			ctx := cmd.Context()
			slog.Info("vigil starting",
				"target", cfg.Target,
				"interval", cfg.Interval(),
				"listen", cfg.HTTP.Listen,
			)

			// Hot-reload threshold rules, cooldowns and heal whitelist on
			// config change. A failed reload keeps the previous config.
			go func() {
				if err := config.Watch(ctx, opts.configPath, func(updated *config.Config) {
					runner.Reload(updated)
				}); err != nil {
					slog.Error("config watcher stopped", "err", err)
				}
			}()

			// The API serves even without a history store: health and
			// liveness come from the runner, and the history-backed routes
			// answer 503 on their own.
			if cfg.HTTP.Listen != "" {
				api := httpapi.New(runner, hist, cfg.Target)
				go api.Run(ctx)

				srv := &http.Server{
					Addr:              cfg.HTTP.Listen,
					Handler:           api,
					ReadHeaderTimeout: 5 * time.Second,
				}
				go func() {
					<-ctx.Done()
					_ = srv.Close()
				}()
				go func() {
					if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						slog.Error("http server stopped", "err", err)
					}
				}()
			}

			// Run once immediately so the daemon has a report before the
			// first tick, then settle into the cadence loop.
			if _, err := runner.Run(ctx, engine.TriggerInterval); err != nil {
				slog.Error("initial run failed", "err", err)
			}
			runner.Start(ctx)

			slog.Info("vigil shutting down")
			return nil
		},
	}
}
