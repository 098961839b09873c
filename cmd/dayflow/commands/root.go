package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dayflow",
		Short: "Dayflow - personal day-planning assistant",
		Long: `Dayflow plans your day against your calendar, task backlog, and inbox.

Every workflow runs in two phases: "plan" proposes a set of changes without
touching anything, and "confirm" applies a previously returned proposal.
Nothing is mutated until you confirm.

Workflows:
  - schedule-day: fit pending tasks into the free time of a day
  - fill-block:   fit pending tasks into one calendar block
  - triage:       archive stale inbox messages

Mutations that keep failing with connectivity errors are parked in an
offline queue and replayed later with "dayflow queue replay".`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newPlanCommand())
	rootCmd.AddCommand(newConfirmCommand())
	rootCmd.AddCommand(newQueueCommand())
	rootCmd.AddCommand(newTaskCommand())
	rootCmd.AddCommand(newBlockCommand())
	rootCmd.AddCommand(newInboxCommand())
	rootCmd.AddCommand(newServeCommand())

	return rootCmd
}
