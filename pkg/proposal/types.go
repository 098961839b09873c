// Package proposal implements the pending-proposal store at the center of
// the propose/confirm workflow. A proposal is data, not behavior: an ordered
// list of change descriptors a workflow intends to apply once the user
// confirms. Consume is the single mutation boundary that gives phase 2 its
// apply-exactly-once semantics.
package proposal

import (
	"time"
)

// ChangeType is the kind of mutation a change descriptor carries.
type ChangeType string

const (
	ChangeCreate ChangeType = "create"
	ChangeMove   ChangeType = "move"
	ChangeDelete ChangeType = "delete"
	ChangeAssign ChangeType = "assign"
	ChangeUpdate ChangeType = "update"
)

// Valid reports whether the change type is one of the known kinds.
func (t ChangeType) Valid() bool {
	switch t {
	case ChangeCreate, ChangeMove, ChangeDelete, ChangeAssign, ChangeUpdate:
		return true
	}
	return false
}

// BlockChange describes a calendar mutation.
type BlockChange struct {
	// BlockID targets an existing block for move/delete; empty for create.
	BlockID string `json:"block_id,omitempty"`

	// Title is the block title for create.
	Title string `json:"title,omitempty"`

	// Kind distinguishes focus blocks from meetings and similar.
	Kind string `json:"kind,omitempty"`

	// Start and End are the intended time range.
	Start time.Time `json:"start,omitempty"`
	End   time.Time `json:"end,omitempty"`
}

// TaskChange describes a backlog mutation.
type TaskChange struct {
	// TaskID targets an existing task; empty for create.
	TaskID string `json:"task_id,omitempty"`

	// BlockID is the calendar block the task is assigned into.
	BlockID string `json:"block_id,omitempty"`

	// Title, Priority, and EstimatedMinutes describe a task to create.
	Title            string `json:"title,omitempty"`
	Priority         string `json:"priority,omitempty"`
	EstimatedMinutes int    `json:"estimated_minutes,omitempty"`

	// Done, when set, marks the task complete or not.
	Done *bool `json:"done,omitempty"`
}

// MessageChange describes a mailbox mutation.
type MessageChange struct {
	// MessageID targets the message.
	MessageID string `json:"message_id"`

	// Archive removes the message from the inbox view.
	Archive bool `json:"archive,omitempty"`

	// Flag, when set, stars or unstars the message.
	Flag *bool `json:"flag,omitempty"`

	// Read, when set, marks the message read or unread.
	Read *bool `json:"read,omitempty"`
}

// ChangeDescriptor is one intended mutation inside a proposal. Exactly one
// of Block, Task, Message is set. Every descriptor is independently
// applicable so the execution phase can apply a user-edited subset.
type ChangeDescriptor struct {
	// ID identifies the descriptor within its proposal, so a modified
	// selection can reference the originals.
	ID string `json:"id"`

	// Type is the kind of mutation.
	Type ChangeType `json:"type"`

	// Summary is a one-line human description of the change.
	Summary string `json:"summary,omitempty"`

	Block   *BlockChange   `json:"block,omitempty"`
	Task    *TaskChange    `json:"task,omitempty"`
	Message *MessageChange `json:"message,omitempty"`
}

// OwnerContext identifies whose state a proposal applies to, plus the
// correlation keys used for secondary lookup.
type OwnerContext struct {
	// UserID is the owning user. Proposals are invisible across users.
	UserID string `json:"user_id"`

	// Date is the planning date in YYYY-MM-DD form, when relevant.
	Date string `json:"date,omitempty"`

	// BlockID is the targeted calendar block, when relevant.
	BlockID string `json:"block_id,omitempty"`
}

// Proposal is a stored, pending description of intended mutations awaiting
// confirmation.
type Proposal struct {
	// ID is the opaque unique identifier assigned at creation.
	ID string `json:"id"`

	// WorkflowType tags which orchestrator produced the proposal.
	WorkflowType string `json:"workflow_type"`

	// Owner identifies whose state the proposal applies to.
	Owner OwnerContext `json:"owner"`

	// Changes is the ordered list of intended mutations.
	Changes []ChangeDescriptor `json:"changes"`

	// Summary is the human-readable description shown for confirmation.
	Summary string `json:"summary,omitempty"`

	// CreatedAt is when the proposal was stored. Proposals expire a fixed
	// TTL after this instant.
	CreatedAt time.Time `json:"created_at"`

	// ConsumedAt is set exactly once, by Consume. A consumed proposal can
	// never execute again.
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
}

// Pending reports whether the proposal is still executable at now: not yet
// consumed and not past its TTL.
func (p *Proposal) Pending(now time.Time, ttl time.Duration) bool {
	if p.ConsumedAt != nil {
		return false
	}
	return now.Before(p.CreatedAt.Add(ttl))
}
