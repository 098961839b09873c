// Package workflow implements the two-phase propose/confirm orchestrators.
// A request without a confirmation runs the read-only planning phase and
// stores a proposal; a request carrying a confirmation consumes that
// proposal and applies its changes through the resilient service proxies.
package workflow

import (
	"errors"

	"github.com/dayflow/dayflow/pkg/fault"
	"github.com/dayflow/dayflow/pkg/proposal"
	"github.com/dayflow/dayflow/pkg/scheduling"
)

// Workflow type tags, stored on every proposal.
const (
	TypeScheduleDay  = "schedule-day"
	TypeFillBlock    = "fill-block"
	TypeTriageEmails = "triage-emails"
)

// Response phases.
const (
	// PhaseProposal means planning ran and a proposal awaits confirmation.
	PhaseProposal = "proposal"

	// PhaseCompleted means the confirmation was processed, whether the
	// changes were applied, cancelled, or reported per-item failures.
	PhaseCompleted = "completed"
)

// Per-change outcomes in a completed response.
const (
	OutcomeApplied = "applied"

	// OutcomeQueued means the change was accepted into the offline queue
	// and will be replayed when connectivity returns. Not yet applied.
	OutcomeQueued = "queued"

	OutcomeFailed = "failed"
)

// Confirmation is the second-phase token referencing a stored proposal.
type Confirmation struct {
	// ProposalID names the proposal to confirm. When empty, the most
	// recent pending proposal for the workflow and target is used.
	ProposalID string `json:"proposal_id"`

	// Approved applies the proposal when true, discards it when false.
	Approved bool `json:"approved"`

	// ModifiedSelection, when non-nil, replaces the proposal's change
	// list with a user-edited subset. Only changes present in the stored
	// proposal are honored.
	ModifiedSelection []proposal.ChangeDescriptor `json:"modified_selection,omitempty"`
}

// Request is the single invocation surface shared by all workflows.
// Which target fields are required depends on the workflow type.
type Request struct {
	// UserID identifies whose state the workflow plans against.
	UserID string `json:"user_id" validate:"required"`

	// Date is the target day in YYYY-MM-DD form. Required by schedule-day.
	Date string `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`

	// BlockID is the target block. Required by fill-block.
	BlockID string `json:"block_id,omitempty"`

	// Strategy selects the fitting heuristic. Defaults to mixed.
	Strategy scheduling.Strategy `json:"strategy,omitempty" validate:"omitempty,oneof=priority quick_wins mixed"`

	// Confirmation switches the invocation into the execution phase.
	Confirmation *Confirmation `json:"confirmation,omitempty"`
}

// ChangeResult is the per-item outcome of the execution phase.
type ChangeResult struct {
	// ChangeID is the id of the change descriptor.
	ChangeID string `json:"change_id"`

	// Summary is the human description of the change.
	Summary string `json:"summary,omitempty"`

	// Outcome is applied, queued, or failed.
	Outcome string `json:"outcome"`

	// Error holds the failure reason when the outcome is failed.
	Error string `json:"error,omitempty"`
}

// ResponseError is the structured error surfaced to callers.
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Response is the envelope returned by every workflow invocation.
type Response struct {
	// Success is false only when the invocation itself failed. A
	// completed execution with per-item failures still succeeds.
	Success bool `json:"success"`

	// Phase is proposal or completed.
	Phase string `json:"phase"`

	// ProposalID references the stored proposal, when one exists.
	ProposalID string `json:"proposal_id,omitempty"`

	// Changes is the proposed change list (planning phase only).
	Changes []proposal.ChangeDescriptor `json:"changes,omitempty"`

	// Summary is the human-readable description of the outcome.
	Summary string `json:"summary,omitempty"`

	// Results holds per-change outcomes (execution phase only).
	Results []ChangeResult `json:"results,omitempty"`

	// Cancelled is true when an unapproved confirmation discarded the
	// proposal.
	Cancelled bool `json:"cancelled,omitempty"`

	// Error is set when Success is false.
	Error *ResponseError `json:"error,omitempty"`
}

// failure builds an error response from a classified fault.
func failure(phase string, err error) Response {
	re := &ResponseError{Code: fault.CodeInternal, Message: err.Error()}

	var fe *fault.Error
	if errors.As(err, &fe) {
		re.Message = fe.Message
		if fe.Code != "" {
			re.Code = fe.Code
		}
	}

	return Response{Phase: phase, Error: re}
}
