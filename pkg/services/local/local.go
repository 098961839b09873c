// Package local provides sqlite-backed reference implementations of the
// collaborator services, so the CLI works standalone without external
// calendar, task, or mail providers.
package local

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dayflow/dayflow/pkg/fault"
	"github.com/dayflow/dayflow/pkg/services"
	"github.com/dayflow/dayflow/pkg/stores"
)

// Calendar implements services.Calendar over the sqlite store.
type Calendar struct {
	store *stores.SQLiteStore
}

// NewCalendar creates a local calendar service.
func NewCalendar(store *stores.SQLiteStore) *Calendar {
	return &Calendar{store: store}
}

var _ services.Calendar = (*Calendar)(nil)

// ListBlocks implements services.Calendar.
func (c *Calendar) ListBlocks(ctx context.Context, userID string, from, to time.Time) ([]services.TimeBlock, error) {
	return c.store.ListBlocks(ctx, userID, from, to)
}

// GetBlock implements services.Calendar. The returned block carries the ids
// of the tasks assigned to it.
func (c *Calendar) GetBlock(ctx context.Context, userID, blockID string) (*services.TimeBlock, error) {
	block, err := c.store.GetBlock(ctx, userID, blockID)
	if err != nil {
		return nil, err
	}

	taskIDs, err := c.store.TaskIDsForBlock(ctx, userID, blockID)
	if err != nil {
		return nil, err
	}
	block.TaskIDs = taskIDs
	return block, nil
}

// CreateBlock implements services.Calendar. Overlaps with committed blocks
// are rejected as conflicts.
func (c *Calendar) CreateBlock(ctx context.Context, block services.TimeBlock) (*services.TimeBlock, error) {
	if err := validBlockRange(block.Start, block.End); err != nil {
		return nil, err
	}
	if err := c.rejectOverlap(ctx, block.UserID, block.Start, block.End, ""); err != nil {
		return nil, err
	}

	if block.ID == "" {
		block.ID = uuid.New().String()
	}
	if err := c.store.CreateBlock(ctx, block); err != nil {
		return nil, err
	}
	return &block, nil
}

// MoveBlock implements services.Calendar.
func (c *Calendar) MoveBlock(ctx context.Context, userID, blockID string, start, end time.Time) error {
	if err := validBlockRange(start, end); err != nil {
		return err
	}
	if err := c.rejectOverlap(ctx, userID, start, end, blockID); err != nil {
		return err
	}
	return c.store.UpdateBlockTimes(ctx, userID, blockID, start, end)
}

// DeleteBlock implements services.Calendar.
func (c *Calendar) DeleteBlock(ctx context.Context, userID, blockID string) error {
	return c.store.DeleteBlock(ctx, userID, blockID)
}

// CheckConflicts implements services.Calendar.
func (c *Calendar) CheckConflicts(ctx context.Context, userID string, start, end time.Time, excludeID string) ([]services.Conflict, error) {
	overlapping, err := c.store.ListOverlappingBlocks(ctx, userID, start, end, excludeID)
	if err != nil {
		return nil, err
	}

	conflicts := make([]services.Conflict, 0, len(overlapping))
	for _, b := range overlapping {
		conflicts = append(conflicts, services.Conflict{
			BlockID: b.ID,
			Title:   b.Title,
			Start:   b.Start,
			End:     b.End,
		})
	}
	return conflicts, nil
}

func (c *Calendar) rejectOverlap(ctx context.Context, userID string, start, end time.Time, excludeID string) error {
	conflicts, err := c.CheckConflicts(ctx, userID, start, end, excludeID)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		return fault.NewConflict(
			fmt.Sprintf("time range overlaps %q", conflicts[0].Title), nil)
	}
	return nil
}

func validBlockRange(start, end time.Time) error {
	if !end.After(start) {
		return fault.NewValidation("block end must be after its start", nil)
	}
	return nil
}

// Tasks implements services.Tasks over the sqlite store.
type Tasks struct {
	store *stores.SQLiteStore
}

// NewTasks creates a local task backlog service.
func NewTasks(store *stores.SQLiteStore) *Tasks {
	return &Tasks{store: store}
}

var _ services.Tasks = (*Tasks)(nil)

// ListPending implements services.Tasks.
func (t *Tasks) ListPending(ctx context.Context, userID string) ([]services.Task, error) {
	return t.store.ListPendingTasks(ctx, userID)
}

// GetTask implements services.Tasks.
func (t *Tasks) GetTask(ctx context.Context, userID, taskID string) (*services.Task, error) {
	return t.store.GetTask(ctx, userID, taskID)
}

// CreateTask implements services.Tasks.
func (t *Tasks) CreateTask(ctx context.Context, task services.Task) (*services.Task, error) {
	if task.Title == "" {
		return nil, fault.NewValidation("task title is required", nil)
	}
	if task.Priority == "" {
		task.Priority = services.PriorityMedium
	}
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if err := t.store.CreateTask(ctx, task); err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateTask implements services.Tasks.
func (t *Tasks) UpdateTask(ctx context.Context, task services.Task) error {
	return t.store.UpdateTask(ctx, task)
}

// AssignToBlock implements services.Tasks. The block must exist.
func (t *Tasks) AssignToBlock(ctx context.Context, userID, taskID, blockID string) error {
	if _, err := t.store.GetBlock(ctx, userID, blockID); err != nil {
		return err
	}
	return t.store.AssignTaskToBlock(ctx, userID, taskID, blockID)
}

// DeleteTask implements services.Tasks.
func (t *Tasks) DeleteTask(ctx context.Context, userID, taskID string) error {
	return t.store.DeleteTask(ctx, userID, taskID)
}

// Mail implements services.Mail over the sqlite store.
type Mail struct {
	store *stores.SQLiteStore
}

// NewMail creates a local mailbox service.
func NewMail(store *stores.SQLiteStore) *Mail {
	return &Mail{store: store}
}

var _ services.Mail = (*Mail)(nil)

// ListInbox implements services.Mail.
func (m *Mail) ListInbox(ctx context.Context, userID string, limit int) ([]services.EmailMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	return m.store.ListInboxMessages(ctx, userID, limit)
}

// GetMessage implements services.Mail.
func (m *Mail) GetMessage(ctx context.Context, userID, messageID string) (*services.EmailMessage, error) {
	return m.store.GetMessage(ctx, userID, messageID)
}

// ArchiveMessage implements services.Mail.
func (m *Mail) ArchiveMessage(ctx context.Context, userID, messageID string) error {
	archived := true
	return m.store.SetMessageFlags(ctx, userID, messageID, nil, nil, &archived)
}

// FlagMessage implements services.Mail.
func (m *Mail) FlagMessage(ctx context.Context, userID, messageID string, flagged bool) error {
	return m.store.SetMessageFlags(ctx, userID, messageID, nil, &flagged, nil)
}

// MarkRead implements services.Mail.
func (m *Mail) MarkRead(ctx context.Context, userID, messageID string, read bool) error {
	return m.store.SetMessageFlags(ctx, userID, messageID, &read, nil, nil)
}
