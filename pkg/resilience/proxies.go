package resilience

import (
	"context"
	"time"

	"github.com/dayflow/dayflow/pkg/services"
	"github.com/dayflow/dayflow/pkg/telemetry"
)

// CalendarProxy wraps a Calendar with retry, error translation, and offline
// queueing of mutations. It implements services.Calendar.
type CalendarProxy struct {
	inner services.Calendar
	core  proxyCore
}

var _ services.Calendar = (*CalendarProxy)(nil)

// NewCalendarProxy creates a resilient decorator around a calendar service.
func NewCalendarProxy(inner services.Calendar, retrier *Retrier, queue Queue, log *telemetry.Logger) *CalendarProxy {
	return &CalendarProxy{
		inner: inner,
		core:  newProxyCore(services.ServiceCalendar, retrier, queue, log),
	}
}

// WithObserver attaches a metrics observer.
func (p *CalendarProxy) WithObserver(obs CallObserver) *CalendarProxy {
	p.core.metrics = obs
	return p
}

// WithTracer attaches a tracer for per-call spans.
func (p *CalendarProxy) WithTracer(t *telemetry.Tracer) *CalendarProxy {
	p.core.tracer = t
	return p
}

// ListBlocks implements services.Calendar.
func (p *CalendarProxy) ListBlocks(ctx context.Context, userID string, from, to time.Time) ([]services.TimeBlock, error) {
	var blocks []services.TimeBlock
	err := p.core.read(ctx, "ListBlocks", func(ctx context.Context) error {
		var err error
		blocks, err = p.inner.ListBlocks(ctx, userID, from, to)
		return err
	})
	return blocks, err
}

// GetBlock implements services.Calendar.
func (p *CalendarProxy) GetBlock(ctx context.Context, userID, blockID string) (*services.TimeBlock, error) {
	var block *services.TimeBlock
	err := p.core.read(ctx, "GetBlock", func(ctx context.Context) error {
		var err error
		block, err = p.inner.GetBlock(ctx, userID, blockID)
		return err
	})
	return block, err
}

// CreateBlock implements services.Calendar. On a QueuedError outcome the
// returned block is nil: the block does not exist yet.
func (p *CalendarProxy) CreateBlock(ctx context.Context, block services.TimeBlock) (*services.TimeBlock, error) {
	var created *services.TimeBlock
	err := p.core.mutate(ctx, "CreateBlock", []any{block}, func(ctx context.Context) error {
		var err error
		created, err = p.inner.CreateBlock(ctx, block)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// MoveBlock implements services.Calendar.
func (p *CalendarProxy) MoveBlock(ctx context.Context, userID, blockID string, start, end time.Time) error {
	return p.core.mutate(ctx, "MoveBlock", []any{userID, blockID, start, end}, func(ctx context.Context) error {
		return p.inner.MoveBlock(ctx, userID, blockID, start, end)
	})
}

// DeleteBlock implements services.Calendar.
func (p *CalendarProxy) DeleteBlock(ctx context.Context, userID, blockID string) error {
	return p.core.mutate(ctx, "DeleteBlock", []any{userID, blockID}, func(ctx context.Context) error {
		return p.inner.DeleteBlock(ctx, userID, blockID)
	})
}

// CheckConflicts implements services.Calendar.
func (p *CalendarProxy) CheckConflicts(ctx context.Context, userID string, start, end time.Time, excludeID string) ([]services.Conflict, error) {
	var conflicts []services.Conflict
	err := p.core.read(ctx, "CheckConflicts", func(ctx context.Context) error {
		var err error
		conflicts, err = p.inner.CheckConflicts(ctx, userID, start, end, excludeID)
		return err
	})
	return conflicts, err
}

// RegisterReplay installs replay handlers for the calendar mutations.
// Handlers call the wrapped service directly; the replayer owns retry and
// drop decisions on that path.
func (p *CalendarProxy) RegisterReplay(r *Replayer) {
	r.Register(services.ServiceCalendar, "CreateBlock", func(ctx context.Context, op QueuedOperation) error {
		var block services.TimeBlock
		if err := op.Arg(0, &block); err != nil {
			return err
		}
		_, err := p.inner.CreateBlock(ctx, block)
		return err
	})
	r.Register(services.ServiceCalendar, "MoveBlock", func(ctx context.Context, op QueuedOperation) error {
		var (
			userID, blockID string
			start, end      time.Time
		)
		if err := decodeArgs(op, &userID, &blockID, &start, &end); err != nil {
			return err
		}
		return p.inner.MoveBlock(ctx, userID, blockID, start, end)
	})
	r.Register(services.ServiceCalendar, "DeleteBlock", func(ctx context.Context, op QueuedOperation) error {
		var userID, blockID string
		if err := decodeArgs(op, &userID, &blockID); err != nil {
			return err
		}
		return p.inner.DeleteBlock(ctx, userID, blockID)
	})
}

// TaskProxy wraps a Tasks service. It implements services.Tasks.
type TaskProxy struct {
	inner services.Tasks
	core  proxyCore
}

var _ services.Tasks = (*TaskProxy)(nil)

// NewTaskProxy creates a resilient decorator around a task backlog service.
func NewTaskProxy(inner services.Tasks, retrier *Retrier, queue Queue, log *telemetry.Logger) *TaskProxy {
	return &TaskProxy{
		inner: inner,
		core:  newProxyCore(services.ServiceTasks, retrier, queue, log),
	}
}

// WithObserver attaches a metrics observer.
func (p *TaskProxy) WithObserver(obs CallObserver) *TaskProxy {
	p.core.metrics = obs
	return p
}

// WithTracer attaches a tracer for per-call spans.
func (p *TaskProxy) WithTracer(t *telemetry.Tracer) *TaskProxy {
	p.core.tracer = t
	return p
}

// ListPending implements services.Tasks.
func (p *TaskProxy) ListPending(ctx context.Context, userID string) ([]services.Task, error) {
	var tasks []services.Task
	err := p.core.read(ctx, "ListPending", func(ctx context.Context) error {
		var err error
		tasks, err = p.inner.ListPending(ctx, userID)
		return err
	})
	return tasks, err
}

// GetTask implements services.Tasks.
func (p *TaskProxy) GetTask(ctx context.Context, userID, taskID string) (*services.Task, error) {
	var task *services.Task
	err := p.core.read(ctx, "GetTask", func(ctx context.Context) error {
		var err error
		task, err = p.inner.GetTask(ctx, userID, taskID)
		return err
	})
	return task, err
}

// CreateTask implements services.Tasks.
func (p *TaskProxy) CreateTask(ctx context.Context, task services.Task) (*services.Task, error) {
	var created *services.Task
	err := p.core.mutate(ctx, "CreateTask", []any{task}, func(ctx context.Context) error {
		var err error
		created, err = p.inner.CreateTask(ctx, task)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateTask implements services.Tasks.
func (p *TaskProxy) UpdateTask(ctx context.Context, task services.Task) error {
	return p.core.mutate(ctx, "UpdateTask", []any{task}, func(ctx context.Context) error {
		return p.inner.UpdateTask(ctx, task)
	})
}

// AssignToBlock implements services.Tasks.
func (p *TaskProxy) AssignToBlock(ctx context.Context, userID, taskID, blockID string) error {
	return p.core.mutate(ctx, "AssignToBlock", []any{userID, taskID, blockID}, func(ctx context.Context) error {
		return p.inner.AssignToBlock(ctx, userID, taskID, blockID)
	})
}

// DeleteTask implements services.Tasks.
func (p *TaskProxy) DeleteTask(ctx context.Context, userID, taskID string) error {
	return p.core.mutate(ctx, "DeleteTask", []any{userID, taskID}, func(ctx context.Context) error {
		return p.inner.DeleteTask(ctx, userID, taskID)
	})
}

// RegisterReplay installs replay handlers for the task mutations.
func (p *TaskProxy) RegisterReplay(r *Replayer) {
	r.Register(services.ServiceTasks, "CreateTask", func(ctx context.Context, op QueuedOperation) error {
		var task services.Task
		if err := op.Arg(0, &task); err != nil {
			return err
		}
		_, err := p.inner.CreateTask(ctx, task)
		return err
	})
	r.Register(services.ServiceTasks, "UpdateTask", func(ctx context.Context, op QueuedOperation) error {
		var task services.Task
		if err := op.Arg(0, &task); err != nil {
			return err
		}
		return p.inner.UpdateTask(ctx, task)
	})
	r.Register(services.ServiceTasks, "AssignToBlock", func(ctx context.Context, op QueuedOperation) error {
		var userID, taskID, blockID string
		if err := decodeArgs(op, &userID, &taskID, &blockID); err != nil {
			return err
		}
		return p.inner.AssignToBlock(ctx, userID, taskID, blockID)
	})
	r.Register(services.ServiceTasks, "DeleteTask", func(ctx context.Context, op QueuedOperation) error {
		var userID, taskID string
		if err := decodeArgs(op, &userID, &taskID); err != nil {
			return err
		}
		return p.inner.DeleteTask(ctx, userID, taskID)
	})
}

// MailProxy wraps a Mail service. It implements services.Mail.
type MailProxy struct {
	inner services.Mail
	core  proxyCore
}

var _ services.Mail = (*MailProxy)(nil)

// NewMailProxy creates a resilient decorator around a mailbox service.
func NewMailProxy(inner services.Mail, retrier *Retrier, queue Queue, log *telemetry.Logger) *MailProxy {
	return &MailProxy{
		inner: inner,
		core:  newProxyCore(services.ServiceMail, retrier, queue, log),
	}
}

// WithObserver attaches a metrics observer.
func (p *MailProxy) WithObserver(obs CallObserver) *MailProxy {
	p.core.metrics = obs
	return p
}

// WithTracer attaches a tracer for per-call spans.
func (p *MailProxy) WithTracer(t *telemetry.Tracer) *MailProxy {
	p.core.tracer = t
	return p
}

// ListInbox implements services.Mail.
func (p *MailProxy) ListInbox(ctx context.Context, userID string, limit int) ([]services.EmailMessage, error) {
	var messages []services.EmailMessage
	err := p.core.read(ctx, "ListInbox", func(ctx context.Context) error {
		var err error
		messages, err = p.inner.ListInbox(ctx, userID, limit)
		return err
	})
	return messages, err
}

// GetMessage implements services.Mail.
func (p *MailProxy) GetMessage(ctx context.Context, userID, messageID string) (*services.EmailMessage, error) {
	var msg *services.EmailMessage
	err := p.core.read(ctx, "GetMessage", func(ctx context.Context) error {
		var err error
		msg, err = p.inner.GetMessage(ctx, userID, messageID)
		return err
	})
	return msg, err
}

// ArchiveMessage implements services.Mail.
func (p *MailProxy) ArchiveMessage(ctx context.Context, userID, messageID string) error {
	return p.core.mutate(ctx, "ArchiveMessage", []any{userID, messageID}, func(ctx context.Context) error {
		return p.inner.ArchiveMessage(ctx, userID, messageID)
	})
}

// FlagMessage implements services.Mail.
func (p *MailProxy) FlagMessage(ctx context.Context, userID, messageID string, flagged bool) error {
	return p.core.mutate(ctx, "FlagMessage", []any{userID, messageID, flagged}, func(ctx context.Context) error {
		return p.inner.FlagMessage(ctx, userID, messageID, flagged)
	})
}

// MarkRead implements services.Mail.
func (p *MailProxy) MarkRead(ctx context.Context, userID, messageID string, read bool) error {
	return p.core.mutate(ctx, "MarkRead", []any{userID, messageID, read}, func(ctx context.Context) error {
		return p.inner.MarkRead(ctx, userID, messageID, read)
	})
}

// RegisterReplay installs replay handlers for the mail mutations.
func (p *MailProxy) RegisterReplay(r *Replayer) {
	r.Register(services.ServiceMail, "ArchiveMessage", func(ctx context.Context, op QueuedOperation) error {
		var userID, messageID string
		if err := decodeArgs(op, &userID, &messageID); err != nil {
			return err
		}
		return p.inner.ArchiveMessage(ctx, userID, messageID)
	})
	r.Register(services.ServiceMail, "FlagMessage", func(ctx context.Context, op QueuedOperation) error {
		var (
			userID, messageID string
			flagged           bool
		)
		if err := decodeArgs(op, &userID, &messageID, &flagged); err != nil {
			return err
		}
		return p.inner.FlagMessage(ctx, userID, messageID, flagged)
	})
	r.Register(services.ServiceMail, "MarkRead", func(ctx context.Context, op QueuedOperation) error {
		var (
			userID, messageID string
			read              bool
		)
		if err := decodeArgs(op, &userID, &messageID, &read); err != nil {
			return err
		}
		return p.inner.MarkRead(ctx, userID, messageID, read)
	})
}

// decodeArgs decodes positional queued arguments in order.
func decodeArgs(op QueuedOperation, outs ...any) error {
	for i, out := range outs {
		if err := op.Arg(i, out); err != nil {
			return err
		}
	}
	return nil
}
