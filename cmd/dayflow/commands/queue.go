package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newQueueCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and replay the offline operation queue",
		Long: `Mutations that exhaust their retries with connectivity errors are parked
in the offline queue instead of being lost. "queue list" shows what is
waiting; "queue replay" retries everything in arrival order.`,
	}

	cmd.AddCommand(newQueueListCommand())
	cmd.AddCommand(newQueueReplayCommand())

	return cmd
}

func newQueueListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List queued operations, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, configPath)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			ops, err := a.queue.Snapshot(ctx)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(cmd, ops)
			}
			if len(ops) == 0 {
				cmd.Println("offline queue is empty")
				return nil
			}
			for _, op := range ops {
				cmd.Printf("%s  %s.%s  queued %s  retries %d\n",
					op.ID, op.Service, op.Method,
					op.Timestamp.Format("2006-01-02 15:04:05"), op.RetryCount)
			}
			return nil
		},
	}
}

func newQueueReplayCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "replay",
		Short: "Replay queued operations against their services",
		Long: `Replay drains the offline queue oldest first. Operations that still fail
with a connectivity error stay queued; operations that exceed the replay
ceiling or fail permanently are dropped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, configPath)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			report, err := a.replayer.Replay(ctx)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(cmd, report)
			}
			cmd.Println(fmt.Sprintf("replayed %d, dropped %d, still queued %d",
				report.Replayed, report.Dropped, report.Remaining))
			return nil
		},
	}
}
