// Package services defines the collaborator contracts the dayflow core plans
// against: the user's calendar, task backlog, and mailbox. The core never
// talks to an external API directly; it consumes these interfaces, usually
// through the resilience proxies.
package services

import (
	"context"
	"time"
)

// Priority is the user-assigned importance of a task.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Tier returns the numeric tier used by the scheduling heuristics.
// High outranks medium outranks low.
func (p Priority) Tier() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// TimeBlock is a committed entry on the user's calendar.
type TimeBlock struct {
	// ID is the unique identifier of the block.
	ID string `json:"id"`

	// UserID identifies whose calendar the block belongs to.
	UserID string `json:"user_id"`

	// Title is the display title of the block.
	Title string `json:"title"`

	// Start is the inclusive start of the block.
	Start time.Time `json:"start"`

	// End is the exclusive end of the block.
	End time.Time `json:"end"`

	// Kind distinguishes meetings from focus blocks and similar.
	Kind string `json:"kind,omitempty"`

	// TaskIDs lists tasks assigned into this block, if any.
	TaskIDs []string `json:"task_ids,omitempty"`
}

// Duration returns the block length.
func (b TimeBlock) Duration() time.Duration {
	return b.End.Sub(b.Start)
}

// Task is a pending work item in the user's backlog.
type Task struct {
	// ID is the unique identifier of the task.
	ID string `json:"id"`

	// UserID identifies whose backlog the task belongs to.
	UserID string `json:"user_id"`

	// Title is the display title of the task.
	Title string `json:"title"`

	// Priority is the user-assigned importance.
	Priority Priority `json:"priority"`

	// EstimatedMinutes is the user's duration estimate.
	EstimatedMinutes int `json:"estimated_minutes"`

	// Due is the optional deadline.
	Due *time.Time `json:"due,omitempty"`

	// Done marks completed tasks.
	Done bool `json:"done"`

	// BlockID is the calendar block the task is assigned to, if any.
	BlockID string `json:"block_id,omitempty"`
}

// EmailMessage is a message in the user's inbox.
type EmailMessage struct {
	// ID is the unique identifier of the message.
	ID string `json:"id"`

	// UserID identifies whose mailbox the message belongs to.
	UserID string `json:"user_id"`

	// Sender is the sender address.
	Sender string `json:"sender"`

	// Subject is the message subject.
	Subject string `json:"subject"`

	// Snippet is a short body preview.
	Snippet string `json:"snippet,omitempty"`

	// ReceivedAt is when the message arrived.
	ReceivedAt time.Time `json:"received_at"`

	// Read marks messages the user has opened.
	Read bool `json:"read"`

	// Flagged marks messages the user has starred for follow-up.
	Flagged bool `json:"flagged"`

	// Archived removes the message from the inbox view.
	Archived bool `json:"archived"`
}

// Conflict describes an overlap between a requested time range and a
// committed block.
type Conflict struct {
	// BlockID is the committed block that overlaps.
	BlockID string `json:"block_id"`

	// Title is the overlapping block's title.
	Title string `json:"title"`

	// Start and End bound the overlapping region.
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Calendar is the collaborator contract for the user's calendar.
type Calendar interface {
	// ListBlocks returns the user's blocks intersecting [from, to), sorted
	// by start time.
	ListBlocks(ctx context.Context, userID string, from, to time.Time) ([]TimeBlock, error)

	// GetBlock returns a single block by id.
	GetBlock(ctx context.Context, userID, blockID string) (*TimeBlock, error)

	// CreateBlock commits a new block and returns it with its assigned id.
	CreateBlock(ctx context.Context, block TimeBlock) (*TimeBlock, error)

	// MoveBlock changes the time range of an existing block.
	MoveBlock(ctx context.Context, userID, blockID string, start, end time.Time) error

	// DeleteBlock removes a block.
	DeleteBlock(ctx context.Context, userID, blockID string) error

	// CheckConflicts returns committed blocks overlapping [start, end),
	// excluding the block named by excludeID when non-empty.
	CheckConflicts(ctx context.Context, userID string, start, end time.Time, excludeID string) ([]Conflict, error)
}

// Tasks is the collaborator contract for the user's task backlog.
type Tasks interface {
	// ListPending returns not-done tasks, highest priority first.
	ListPending(ctx context.Context, userID string) ([]Task, error)

	// GetTask returns a single task by id.
	GetTask(ctx context.Context, userID, taskID string) (*Task, error)

	// CreateTask adds a task and returns it with its assigned id.
	CreateTask(ctx context.Context, task Task) (*Task, error)

	// UpdateTask replaces the mutable fields of a task.
	UpdateTask(ctx context.Context, task Task) error

	// AssignToBlock links a task to a calendar block.
	AssignToBlock(ctx context.Context, userID, taskID, blockID string) error

	// DeleteTask removes a task.
	DeleteTask(ctx context.Context, userID, taskID string) error
}

// Mail is the collaborator contract for the user's mailbox.
type Mail interface {
	// ListInbox returns non-archived messages, newest first.
	ListInbox(ctx context.Context, userID string, limit int) ([]EmailMessage, error)

	// GetMessage returns a single message by id.
	GetMessage(ctx context.Context, userID, messageID string) (*EmailMessage, error)

	// ArchiveMessage removes a message from the inbox view.
	ArchiveMessage(ctx context.Context, userID, messageID string) error

	// FlagMessage stars a message for follow-up.
	FlagMessage(ctx context.Context, userID, messageID string, flagged bool) error

	// MarkRead sets the read state of a message.
	MarkRead(ctx context.Context, userID, messageID string, read bool) error
}

// Logical service names used in structured errors and queued operations.
const (
	ServiceCalendar = "calendar"
	ServiceTasks    = "tasks"
	ServiceMail     = "mail"
)
