package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dayflow/dayflow/pkg/workflow"
)

func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(out))
	return nil
}

// printResponse renders a workflow response. Failed invocations become a
// non-zero exit via the returned error.
func printResponse(cmd *cobra.Command, resp workflow.Response) error {
	if jsonOutput {
		if err := printJSON(cmd, resp); err != nil {
			return err
		}
		if !resp.Success {
			return fmt.Errorf("%s: %s", resp.Error.Code, resp.Error.Message)
		}
		return nil
	}

	if !resp.Success {
		return fmt.Errorf("%s: %s", resp.Error.Code, resp.Error.Message)
	}

	if resp.Cancelled {
		cmd.Println("proposal rejected, nothing applied")
		return nil
	}

	switch resp.Phase {
	case workflow.PhaseProposal:
		if resp.ProposalID == "" {
			cmd.Println(resp.Summary)
			return nil
		}
		cmd.Printf("proposal %s: %s\n", resp.ProposalID, resp.Summary)
		for _, c := range resp.Changes {
			cmd.Printf("  [%s] %s\n", c.ID, c.Summary)
		}
		cmd.Println("run \"dayflow confirm\" to apply, or --reject to discard")
	case workflow.PhaseCompleted:
		cmd.Println(resp.Summary)
		for _, r := range resp.Results {
			line := fmt.Sprintf("  [%s] %s: %s", r.ChangeID, r.Outcome, r.Summary)
			if r.Error != "" {
				line += " (" + r.Error + ")"
			}
			cmd.Println(line)
		}
	default:
		cmd.Println(resp.Summary)
	}
	return nil
}
