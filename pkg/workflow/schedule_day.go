package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dayflow/dayflow/pkg/fault"
	"github.com/dayflow/dayflow/pkg/proposal"
	"github.com/dayflow/dayflow/pkg/scheduling"
	"github.com/dayflow/dayflow/pkg/services"
)

// scheduleDayPlanner proposes focus blocks for the user's pending tasks
// across the free gaps of one day.
type scheduleDayPlanner struct {
	o *Orchestrator
}

func (p *scheduleDayPlanner) workflowType() string { return TypeScheduleDay }

func (p *scheduleDayPlanner) validateTarget(req Request) error {
	if req.Date == "" {
		return fault.NewValidation("date is required to schedule a day", nil)
	}
	return nil
}

func (p *scheduleDayPlanner) plan(ctx context.Context, req Request) ([]proposal.ChangeDescriptor, string, error) {
	o := p.o

	window, err := o.dayWindow(req)
	if err != nil {
		return nil, "", err
	}

	blocks, err := o.svcs.Calendar.ListBlocks(ctx, req.UserID, window.Start, window.End)
	if err != nil {
		return nil, "", fmt.Errorf("list blocks for %s: %w", req.Date, err)
	}

	pending, err := o.svcs.Tasks.ListPending(ctx, req.UserID)
	if err != nil {
		return nil, "", fmt.Errorf("list pending tasks: %w", err)
	}

	gaps := scheduling.FindGaps(blocks, window, scheduling.DefaultMinGap)
	if len(gaps) == 0 {
		return nil, "no free time left in the day", nil
	}
	if len(pending) == 0 {
		return nil, "no pending tasks to schedule", nil
	}

	strategy := o.strategyFor(req)
	remaining := pending
	var changes []proposal.ChangeDescriptor

	for _, gap := range gaps {
		fitted := scheduling.FitGap(remaining, gap, strategy, scheduling.DefaultMaxItems)
		if len(fitted) == 0 {
			continue
		}

		cursor := gap.Start
		for _, task := range fitted {
			end := cursor.Add(time.Duration(task.EstimatedMinutes) * time.Minute)
			changes = append(changes, proposal.ChangeDescriptor{
				ID:      uuid.New().String(),
				Type:    proposal.ChangeCreate,
				Summary: fmt.Sprintf("block %s for %q", timeRange(cursor, end), task.Title),
				Block: &proposal.BlockChange{
					Title: task.Title,
					Kind:  "focus",
					Start: cursor,
					End:   end,
				},
			})
			cursor = end
		}
		remaining = withoutTasks(remaining, fitted)
	}

	if len(changes) == 0 {
		return nil, "no pending task fits the free time", nil
	}

	summary := fmt.Sprintf("schedule %d focus blocks across %d free gaps on %s",
		len(changes), len(gaps), req.Date)
	return changes, summary, nil
}

func withoutTasks(tasks, used []services.Task) []services.Task {
	usedIDs := make(map[string]bool, len(used))
	for _, t := range used {
		usedIDs[t.ID] = true
	}

	out := tasks[:0:0]
	for _, t := range tasks {
		if !usedIDs[t.ID] {
			out = append(out, t)
		}
	}
	return out
}

func timeRange(start, end time.Time) string {
	return fmt.Sprintf("%s-%s", start.Format("15:04"), end.Format("15:04"))
}
