package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dayflow/dayflow/pkg/scheduling"
	"github.com/dayflow/dayflow/pkg/workflow"
)

func newPlanCommand() *cobra.Command {
	var (
		userID   string
		date     string
		blockID  string
		strategy string
	)

	cmd := &cobra.Command{
		Use:   "plan <workflow>",
		Short: "Propose changes without applying them",
		Long: `Run the planning phase of a workflow. The proposed changes are printed
together with a proposal id; nothing is applied until the proposal is
confirmed with "dayflow confirm".

Workflows: schedule-day, fill-block, triage`,
		Example: `  # Propose a schedule for today
  dayflow plan schedule-day --user alice

  # Propose filling one block, preferring quick wins
  dayflow plan fill-block --user alice --block 7f3a... --strategy quick_wins

  # Propose archiving stale inbox messages
  dayflow plan triage --user alice`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, configPath)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			req := workflow.Request{
				UserID:   userID,
				Date:     date,
				BlockID:  blockID,
				Strategy: scheduling.Strategy(strategy),
			}
			if req.Date == "" && args[0] == workflow.TypeScheduleDay {
				req.Date = time.Now().Format("2006-01-02")
			}

			var resp workflow.Response
			switch args[0] {
			case workflow.TypeScheduleDay:
				resp = a.orch.ScheduleDay(ctx, req)
			case workflow.TypeFillBlock:
				resp = a.orch.FillBlock(ctx, req)
			case workflow.TypeTriageEmails, "triage":
				resp = a.orch.TriageEmails(ctx, req)
			default:
				return fmt.Errorf("unknown workflow %q (want schedule-day, fill-block, or triage)", args[0])
			}

			return printResponse(cmd, resp)
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "user id (required)")
	cmd.Flags().StringVarP(&date, "date", "d", "", "target day, YYYY-MM-DD (schedule-day; defaults to today)")
	cmd.Flags().StringVarP(&blockID, "block", "b", "", "target block id (fill-block)")
	cmd.Flags().StringVarP(&strategy, "strategy", "s", "", "fitting strategy: priority, quick_wins, mixed")
	cmd.MarkFlagRequired("user")

	return cmd
}
