package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dayflow/dayflow/pkg/services"
)

func newTaskCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage the task backlog",
	}
	cmd.AddCommand(newTaskAddCommand())
	cmd.AddCommand(newTaskListCommand())
	return cmd
}

func newTaskAddCommand() *cobra.Command {
	var (
		userID   string
		priority string
		estimate int
		due      string
	)

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a pending task",
		Example: `  dayflow task add "write quarterly report" --user alice --priority high --estimate 90
  dayflow task add "book flights" --user alice --due 2026-09-15`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, configPath)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			task := services.Task{
				UserID:           userID,
				Title:            args[0],
				Priority:         services.Priority(priority),
				EstimatedMinutes: estimate,
			}
			if due != "" {
				dueAt, err := time.ParseInLocation("2006-01-02", due, time.Local)
				if err != nil {
					return fmt.Errorf("invalid --due %q: %w", due, err)
				}
				task.Due = &dueAt
			}

			created, err := a.tasks.CreateTask(ctx, task)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd, created)
			}
			cmd.Printf("task %s created\n", created.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "user id (required)")
	cmd.Flags().StringVarP(&priority, "priority", "p", "medium", "priority: high, medium, low")
	cmd.Flags().IntVarP(&estimate, "estimate", "e", 30, "estimated minutes")
	cmd.Flags().StringVar(&due, "due", "", "due date, YYYY-MM-DD")
	cmd.MarkFlagRequired("user")

	return cmd
}

func newTaskListCommand() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pending tasks, highest priority first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, configPath)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			tasks, err := a.tasks.ListPending(ctx, userID)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd, tasks)
			}
			if len(tasks) == 0 {
				cmd.Println("no pending tasks")
				return nil
			}
			for _, t := range tasks {
				line := fmt.Sprintf("%s  [%s] %s (%dm)", t.ID, t.Priority, t.Title, t.EstimatedMinutes)
				if t.Due != nil {
					line += "  due " + t.Due.Format("2006-01-02")
				}
				if t.BlockID != "" {
					line += "  in block " + t.BlockID
				}
				cmd.Println(line)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "user id (required)")
	cmd.MarkFlagRequired("user")

	return cmd
}

func newBlockCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "block",
		Short: "Manage calendar blocks",
	}
	cmd.AddCommand(newBlockAddCommand())
	cmd.AddCommand(newBlockListCommand())
	return cmd
}

func newBlockAddCommand() *cobra.Command {
	var (
		userID string
		kind   string
		start  string
		end    string
	)

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Commit a calendar block",
		Example: `  dayflow block add "team standup" --user alice \
      --start "2026-08-29 09:00" --end "2026-08-29 09:30" --kind meeting`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, configPath)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			startAt, err := time.ParseInLocation("2006-01-02 15:04", start, time.Local)
			if err != nil {
				return fmt.Errorf("invalid --start %q: %w", start, err)
			}
			endAt, err := time.ParseInLocation("2006-01-02 15:04", end, time.Local)
			if err != nil {
				return fmt.Errorf("invalid --end %q: %w", end, err)
			}

			created, err := a.calendar.CreateBlock(ctx, services.TimeBlock{
				UserID: userID,
				Title:  args[0],
				Kind:   kind,
				Start:  startAt,
				End:    endAt,
			})
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd, created)
			}
			cmd.Printf("block %s created\n", created.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "user id (required)")
	cmd.Flags().StringVarP(&kind, "kind", "k", "focus", "block kind: focus, meeting, break")
	cmd.Flags().StringVar(&start, "start", "", "start time, YYYY-MM-DD HH:MM (required)")
	cmd.Flags().StringVar(&end, "end", "", "end time, YYYY-MM-DD HH:MM (required)")
	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("start")
	cmd.MarkFlagRequired("end")

	return cmd
}

func newBlockListCommand() *cobra.Command {
	var (
		userID string
		date   string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List blocks for a day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, configPath)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			if date == "" {
				date = time.Now().Format("2006-01-02")
			}
			day, err := time.ParseInLocation("2006-01-02", date, time.Local)
			if err != nil {
				return fmt.Errorf("invalid --date %q: %w", date, err)
			}

			blocks, err := a.calendar.ListBlocks(ctx, userID, day, day.AddDate(0, 0, 1))
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd, blocks)
			}
			if len(blocks) == 0 {
				cmd.Println("no blocks")
				return nil
			}
			for _, b := range blocks {
				cmd.Printf("%s  %s-%s  [%s] %s\n", b.ID,
					b.Start.Local().Format("15:04"), b.End.Local().Format("15:04"),
					b.Kind, b.Title)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "user id (required)")
	cmd.Flags().StringVarP(&date, "date", "d", "", "day to list, YYYY-MM-DD (defaults to today)")
	cmd.MarkFlagRequired("user")

	return cmd
}
