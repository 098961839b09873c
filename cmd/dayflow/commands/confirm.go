package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dayflow/dayflow/pkg/proposal"
	"github.com/dayflow/dayflow/pkg/workflow"
)

func newConfirmCommand() *cobra.Command {
	var (
		userID     string
		proposalID string
		date       string
		blockID    string
		reject     bool
		only       []string
	)

	cmd := &cobra.Command{
		Use:   "confirm <workflow>",
		Short: "Apply or reject a previously proposed plan",
		Long: `Run the execution phase of a workflow against a stored proposal. When
--proposal is omitted the most recent proposal for the workflow (and
--date or --block, when given) is used.

A proposal can be confirmed at most once. Confirming a proposal that was
already consumed, expired, or belongs to another user reports it as stale.`,
		Example: `  # Apply the latest schedule proposal for a day
  dayflow confirm schedule-day --user alice --date 2026-08-29

  # Apply only some of the proposed changes
  dayflow confirm schedule-day --user alice --only c1 --only c3

  # Discard a proposal without applying it
  dayflow confirm triage --user alice --reject`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, configPath)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			conf := &workflow.Confirmation{
				ProposalID: proposalID,
				Approved:   !reject,
			}
			for _, id := range only {
				conf.ModifiedSelection = append(conf.ModifiedSelection,
					proposal.ChangeDescriptor{ID: id})
			}

			req := workflow.Request{
				UserID:       userID,
				Date:         date,
				BlockID:      blockID,
				Confirmation: conf,
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
	cmd.Flags().StringVarP(&proposalID, "proposal", "p", "", "proposal id (defaults to the latest for the workflow)")
	cmd.Flags().StringVarP(&date, "date", "d", "", "planning date the proposal was created for")
	cmd.Flags().StringVarP(&blockID, "block", "b", "", "block the proposal was created for")
	cmd.Flags().BoolVar(&reject, "reject", false, "discard the proposal instead of applying it")
	cmd.Flags().StringArrayVar(&only, "only", nil, "apply only these change ids (repeatable)")
	cmd.MarkFlagRequired("user")

	return cmd
}
