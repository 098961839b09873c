package commands

import (
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dayflow/dayflow/pkg/services"
)

func newInboxCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "Manage the mail inbox",
	}
	cmd.AddCommand(newInboxAddCommand())
	cmd.AddCommand(newInboxListCommand())
	return cmd
}

// newInboxAddCommand imports a message into the local mailbox, mainly for
// seeding and testing triage.
func newInboxAddCommand() *cobra.Command {
	var (
		userID  string
		sender  string
		snippet string
		ageDays int
		read    bool
		flagged bool
	)

	cmd := &cobra.Command{
		Use:   "add <subject>",
		Short: "Import a message into the inbox",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, configPath)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			msg := services.EmailMessage{
				ID:         uuid.New().String(),
				UserID:     userID,
				Sender:     sender,
				Subject:    args[0],
				Snippet:    snippet,
				ReceivedAt: time.Now().AddDate(0, 0, -ageDays),
				Read:       read,
				Flagged:    flagged,
			}
			if err := a.store.CreateMessage(ctx, msg); err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd, msg)
			}
			cmd.Printf("message %s imported\n", msg.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "user id (required)")
	cmd.Flags().StringVar(&sender, "from", "", "sender address")
	cmd.Flags().StringVar(&snippet, "snippet", "", "preview text")
	cmd.Flags().IntVar(&ageDays, "age-days", 0, "age the message by this many days")
	cmd.Flags().BoolVar(&read, "read", false, "mark the message already read")
	cmd.Flags().BoolVar(&flagged, "flagged", false, "flag the message for follow-up")
	cmd.MarkFlagRequired("user")

	return cmd
}

func newInboxListCommand() *cobra.Command {
	var (
		userID string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List inbox messages, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, configPath)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			msgs, err := a.mail.ListInbox(ctx, userID, limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd, msgs)
			}
			if len(msgs) == 0 {
				cmd.Println("inbox is empty")
				return nil
			}
			for _, m := range msgs {
				state := "unread"
				if m.Read {
					state = "read"
				}
				if m.Flagged {
					state += ",flagged"
				}
				cmd.Printf("%s  %s  [%s] %s: %s\n", m.ID,
					m.ReceivedAt.Local().Format("2006-01-02"), state, m.Sender, m.Subject)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "user id (required)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum messages to list")
	cmd.MarkFlagRequired("user")

	return cmd
}
