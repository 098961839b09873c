package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/dayflow/dayflow/pkg/config"
	"github.com/dayflow/dayflow/pkg/telemetry"
)

func newServeCommand() *cobra.Command {
	var replayEvery time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the assistant in the background",
		Long: `Serve keeps the process running until interrupted. While running it
serves the metrics endpoint, replays the offline queue on an interval,
and picks up config file changes without a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, configPath)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			if configPath != "" {
				watcher, err := config.NewWatcher(configPath, a.log)
				if err != nil {
					return err
				}
				go watcher.Watch(ctx, func(cfg config.Config) {
					telemetry.SetGlobalLevel(cfg.Logging.Level)
				})
			}

			a.log.WithField("replay_interval", replayEvery.String()).
				Info("dayflow running, press ctrl-c to stop")

			ticker := time.NewTicker(replayEvery)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					a.log.Info("shutting down")
					return nil
				case <-ticker.C:
					n, err := a.queue.Len(ctx)
					if err != nil || n == 0 {
						continue
					}
					report, err := a.replayer.Replay(ctx)
					if err != nil {
						a.log.WithError(err).Warn("queue replay pass failed")
						continue
					}
					if report.Replayed > 0 || report.Dropped > 0 {
						a.log.WithField("replayed", report.Replayed).
							WithField("dropped", report.Dropped).
							WithField("remaining", report.Remaining).
							Info("offline queue replayed")
					}
				}
			}
		},
	}

	cmd.Flags().DurationVar(&replayEvery, "replay-interval", time.Minute, "how often to attempt queue replay")

	return cmd
}
