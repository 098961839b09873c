// Package fault defines the error taxonomy shared by the dayflow core.
// Every failure crossing a component boundary is classified as transient,
// conflict, or permanent, which is what the retry and offline-queue layers
// branch on.
package fault

import (
	"errors"
	"fmt"
)

// Class represents the classification of an error for retry and recovery logic.
type Class string

const (
	// ClassTransient indicates a temporary failure that may succeed on retry.
	// Examples: network timeouts, connection refused, DNS resolution failures.
	ClassTransient Class = "transient"

	// ClassConflict indicates the requested change collides with committed
	// state. Examples: overlapping calendar blocks, concurrent edits.
	ClassConflict Class = "conflict"

	// ClassPermanent indicates a non-recoverable error.
	// Examples: invalid input, missing resources, permission denied.
	ClassPermanent Class = "permanent"
)

// Error is a classified error with service and operation context.
type Error struct {
	// Class is the error classification for retry logic.
	Class Class `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Service is the logical service that produced the error, if applicable.
	Service string `json:"service,omitempty"`

	// Operation is the operation being performed when the error occurred.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Service != "" && e.Operation != "" {
		return fmt.Sprintf("[%s] %s (service=%s, operation=%s): %s",
			e.Class, e.Message, e.Service, e.Operation, e.causeMessage())
	}
	if e.Service != "" {
		return fmt.Sprintf("[%s] %s (service=%s): %s",
			e.Class, e.Message, e.Service, e.causeMessage())
	}
	return fmt.Sprintf("[%s] %s: %s", e.Class, e.Message, e.causeMessage())
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) causeMessage() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

// Is implements error equality checking for errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewTransient creates a new transient error.
func NewTransient(message string, err error) *Error {
	return &Error{Class: ClassTransient, Message: message, Err: err}
}

// NewConflict creates a new conflict error.
func NewConflict(message string, err error) *Error {
	return &Error{Class: ClassConflict, Message: message, Code: CodeConflict, Err: err}
}

// NewPermanent creates a new permanent error.
func NewPermanent(message string, err error) *Error {
	return &Error{Class: ClassPermanent, Message: message, Err: err}
}

// NewValidation creates a permanent error carrying the validation code.
func NewValidation(message string, err error) *Error {
	return &Error{Class: ClassPermanent, Message: message, Code: CodeValidation, Err: err}
}

// NewNotFound creates a permanent error carrying the not-found code.
func NewNotFound(message string) *Error {
	return &Error{Class: ClassPermanent, Message: message, Code: CodeNotFound}
}

// WithService adds service context to an error.
func (e *Error) WithService(service string) *Error {
	e.Service = service
	return e
}

// WithOperation adds operation context to an error.
func (e *Error) WithOperation(operation string) *Error {
	e.Operation = operation
	return e
}

// WithCode adds an error code to an error.
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// IsTransient returns true if the error is classified as transient.
func IsTransient(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ClassTransient
	}
	return false
}

// IsConflict returns true if the error is classified as a conflict.
func IsConflict(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ClassConflict
	}
	return false
}

// IsPermanent returns true if the error is classified as permanent.
func IsPermanent(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ClassPermanent
	}
	return false
}

// IsNotFound returns true if the error carries the not-found code.
// Expired and already-consumed proposals surface this way so callers know
// to re-plan rather than retry.
func IsNotFound(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == CodeNotFound || e.Code == CodeStaleProposal
	}
	return false
}

// IsValidation returns true if the error carries the validation code.
func IsValidation(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == CodeValidation
	}
	return false
}

// IsStaleProposal returns true if the error carries the stale-proposal code.
func IsStaleProposal(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == CodeStaleProposal
	}
	return false
}

// Common error codes.
const (
	CodeValidation    = "VALIDATION_ERROR"
	CodeNotFound      = "NOT_FOUND"
	CodeStaleProposal = "STALE_PROPOSAL"
	CodeConflict      = "CONFLICT"
	CodeTimeout       = "TIMEOUT"
	CodeUnavailable   = "SERVICE_UNAVAILABLE"
	CodeQueued        = "QUEUED"
	CodeInternal      = "INTERNAL_ERROR"
)
