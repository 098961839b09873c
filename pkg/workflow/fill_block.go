package workflow

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dayflow/dayflow/pkg/fault"
	"github.com/dayflow/dayflow/pkg/proposal"
	"github.com/dayflow/dayflow/pkg/scheduling"
)

// fillBlockPlanner proposes task assignments into one existing block.
type fillBlockPlanner struct {
	o *Orchestrator
}

func (p *fillBlockPlanner) workflowType() string { return TypeFillBlock }

func (p *fillBlockPlanner) validateTarget(req Request) error {
	if req.BlockID == "" {
		return fault.NewValidation("block_id is required to fill a block", nil)
	}
	return nil
}

func (p *fillBlockPlanner) plan(ctx context.Context, req Request) ([]proposal.ChangeDescriptor, string, error) {
	o := p.o

	block, err := o.svcs.Calendar.GetBlock(ctx, req.UserID, req.BlockID)
	if err != nil {
		return nil, "", fmt.Errorf("get block %s: %w", req.BlockID, err)
	}

	pending, err := o.svcs.Tasks.ListPending(ctx, req.UserID)
	if err != nil {
		return nil, "", fmt.Errorf("list pending tasks: %w", err)
	}

	// Tasks already assigned to this block do not compete for its time.
	candidates := pending[:0:0]
	for _, t := range pending {
		if t.BlockID != block.ID {
			candidates = append(candidates, t)
		}
	}

	fitted := scheduling.GreedyFit(candidates, block.Duration(), o.strategyFor(req), scheduling.DefaultMaxItems)
	if len(fitted) == 0 {
		return nil, fmt.Sprintf("no pending task fits %q", block.Title), nil
	}

	changes := make([]proposal.ChangeDescriptor, 0, len(fitted))
	for _, task := range fitted {
		changes = append(changes, proposal.ChangeDescriptor{
			ID:      uuid.New().String(),
			Type:    proposal.ChangeAssign,
			Summary: fmt.Sprintf("work on %q during %q", task.Title, block.Title),
			Task: &proposal.TaskChange{
				TaskID:  task.ID,
				BlockID: block.ID,
			},
		})
	}

	summary := fmt.Sprintf("assign %d tasks to %q (%s)",
		len(changes), block.Title, timeRange(block.Start, block.End))
	return changes, summary, nil
}
