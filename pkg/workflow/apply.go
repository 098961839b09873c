package workflow

import (
	"context"
	"fmt"

	"github.com/dayflow/dayflow/pkg/fault"
	"github.com/dayflow/dayflow/pkg/proposal"
	"github.com/dayflow/dayflow/pkg/resilience"
	"github.com/dayflow/dayflow/pkg/services"
)

// applyChange executes a single change descriptor against the proxied
// services and reports its outcome. Queued outcomes are surfaced distinctly:
// the change is accepted but not yet applied.
func (o *Orchestrator) applyChange(ctx context.Context, owner proposal.OwnerContext, c proposal.ChangeDescriptor) ChangeResult {
	res := ChangeResult{ChangeID: c.ID, Summary: c.Summary}

	err := o.dispatchChange(ctx, owner, c)
	switch {
	case err == nil:
		res.Outcome = OutcomeApplied
	case resilience.IsQueued(err):
		res.Outcome = OutcomeQueued
		res.Error = err.Error()
	default:
		res.Outcome = OutcomeFailed
		res.Error = err.Error()
	}
	return res
}

func (o *Orchestrator) dispatchChange(ctx context.Context, owner proposal.OwnerContext, c proposal.ChangeDescriptor) error {
	switch {
	case c.Block != nil:
		return o.applyBlockChange(ctx, owner, c.Type, c.Block)
	case c.Task != nil:
		return o.applyTaskChange(ctx, owner, c.Type, c.Task)
	case c.Message != nil:
		return o.applyMessageChange(ctx, owner, c.Type, c.Message)
	default:
		return fault.NewValidation(fmt.Sprintf("change %s has no target", c.ID), nil)
	}
}

func (o *Orchestrator) applyBlockChange(ctx context.Context, owner proposal.OwnerContext, t proposal.ChangeType, bc *proposal.BlockChange) error {
	switch t {
	case proposal.ChangeCreate:
		if err := o.checkConflicts(ctx, owner.UserID, bc, ""); err != nil {
			return err
		}
		_, err := o.svcs.Calendar.CreateBlock(ctx, services.TimeBlock{
			UserID: owner.UserID,
			Title:  bc.Title,
			Kind:   bc.Kind,
			Start:  bc.Start,
			End:    bc.End,
		})
		return err

	case proposal.ChangeMove:
		if err := o.checkConflicts(ctx, owner.UserID, bc, bc.BlockID); err != nil {
			return err
		}
		return o.svcs.Calendar.MoveBlock(ctx, owner.UserID, bc.BlockID, bc.Start, bc.End)

	case proposal.ChangeDelete:
		return o.svcs.Calendar.DeleteBlock(ctx, owner.UserID, bc.BlockID)

	default:
		return fault.NewValidation(fmt.Sprintf("change type %q does not apply to a block", t), nil)
	}
}

// checkConflicts rejects a create/move whose time range collides with
// committed state that changed since planning. Conflicts are permanent:
// never retried, never queued.
func (o *Orchestrator) checkConflicts(ctx context.Context, userID string, bc *proposal.BlockChange, excludeID string) error {
	conflicts, err := o.svcs.Calendar.CheckConflicts(ctx, userID, bc.Start, bc.End, excludeID)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		return fault.NewConflict(
			fmt.Sprintf("time range collides with %q", conflicts[0].Title), nil)
	}
	return nil
}

func (o *Orchestrator) applyTaskChange(ctx context.Context, owner proposal.OwnerContext, t proposal.ChangeType, tc *proposal.TaskChange) error {
	switch t {
	case proposal.ChangeAssign:
		return o.svcs.Tasks.AssignToBlock(ctx, owner.UserID, tc.TaskID, tc.BlockID)

	case proposal.ChangeCreate:
		_, err := o.svcs.Tasks.CreateTask(ctx, services.Task{
			UserID:           owner.UserID,
			Title:            tc.Title,
			Priority:         services.Priority(tc.Priority),
			EstimatedMinutes: tc.EstimatedMinutes,
		})
		return err

	case proposal.ChangeUpdate:
		task, err := o.svcs.Tasks.GetTask(ctx, owner.UserID, tc.TaskID)
		if err != nil {
			return err
		}
		if tc.Title != "" {
			task.Title = tc.Title
		}
		if tc.Priority != "" {
			task.Priority = services.Priority(tc.Priority)
		}
		if tc.EstimatedMinutes > 0 {
			task.EstimatedMinutes = tc.EstimatedMinutes
		}
		if tc.Done != nil {
			task.Done = *tc.Done
		}
		return o.svcs.Tasks.UpdateTask(ctx, *task)

	case proposal.ChangeDelete:
		return o.svcs.Tasks.DeleteTask(ctx, owner.UserID, tc.TaskID)

	default:
		return fault.NewValidation(fmt.Sprintf("change type %q does not apply to a task", t), nil)
	}
}

func (o *Orchestrator) applyMessageChange(ctx context.Context, owner proposal.OwnerContext, t proposal.ChangeType, mc *proposal.MessageChange) error {
	if t != proposal.ChangeUpdate {
		return fault.NewValidation(fmt.Sprintf("change type %q does not apply to a message", t), nil)
	}

	if mc.Read != nil {
		if err := o.svcs.Mail.MarkRead(ctx, owner.UserID, mc.MessageID, *mc.Read); err != nil {
			return err
		}
	}
	if mc.Flag != nil {
		if err := o.svcs.Mail.FlagMessage(ctx, owner.UserID, mc.MessageID, *mc.Flag); err != nil {
			return err
		}
	}
	if mc.Archive {
		if err := o.svcs.Mail.ArchiveMessage(ctx, owner.UserID, mc.MessageID); err != nil {
			return err
		}
	}
	return nil
}
