package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dayflow/dayflow/pkg/proposal"
)

// Triage thresholds. Flagged messages are never touched.
const (
	triageInboxLimit = 50

	// triageReadAge is how long a read message may sit in the inbox
	// before triage proposes archiving it.
	triageReadAge = 7 * 24 * time.Hour

	// triageUnreadAge is the same cutoff for messages never opened.
	triageUnreadAge = 14 * 24 * time.Hour
)

// triagePlanner proposes inbox cleanup: archive messages that have gone
// stale, read or unread.
type triagePlanner struct {
	o *Orchestrator
}

func (p *triagePlanner) workflowType() string { return TypeTriageEmails }

func (p *triagePlanner) validateTarget(Request) error { return nil }

func (p *triagePlanner) plan(ctx context.Context, req Request) ([]proposal.ChangeDescriptor, string, error) {
	o := p.o

	inbox, err := o.svcs.Mail.ListInbox(ctx, req.UserID, triageInboxLimit)
	if err != nil {
		return nil, "", fmt.Errorf("list inbox: %w", err)
	}

	now := o.now()
	var changes []proposal.ChangeDescriptor
	for _, msg := range inbox {
		if msg.Flagged || msg.Archived {
			continue
		}

		age := now.Sub(msg.ReceivedAt)
		var reason string
		switch {
		case msg.Read && age >= triageReadAge:
			reason = "read and stale"
		case !msg.Read && age >= triageUnreadAge:
			reason = "unread and stale"
		default:
			continue
		}

		markRead := true
		change := proposal.ChangeDescriptor{
			ID:      uuid.New().String(),
			Type:    proposal.ChangeUpdate,
			Summary: fmt.Sprintf("archive %q from %s (%s)", msg.Subject, msg.Sender, reason),
			Message: &proposal.MessageChange{
				MessageID: msg.ID,
				Archive:   true,
			},
		}
		if !msg.Read {
			change.Message.Read = &markRead
		}
		changes = append(changes, change)
	}

	if len(changes) == 0 {
		return nil, "inbox is already tidy", nil
	}

	summary := fmt.Sprintf("archive %d stale messages out of %d in the inbox",
		len(changes), len(inbox))
	return changes, summary, nil
}
