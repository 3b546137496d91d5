// Package services runs flows on behalf of the API and the CLI: it loads flows, executes
// them, persists execution records and publishes lifecycle events.
package services

import (
	"errors"
	"fmt"

	"github.com/dukex/inboxflow/pkg/channels"
	"github.com/dukex/inboxflow/pkg/workflow"
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrContactMissing = errors.New("contact is required")

	// ErrNotWaiting is returned when an answer targets an execution that is not paused.
	ErrNotWaiting = workflow.ErrNotWaiting
)

// ServiceError carries the failing operation and a caller-facing message.
type ServiceError struct {
	Op      string
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// IsValidationError reports whether err was caused by the caller's input.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrContactMissing) ||
		errors.Is(err, workflow.ErrInvalidAnswer) ||
		errors.Is(err, channels.ErrUnsupportedChannel)
}

// IsConflictError reports whether err conflicts with the current execution state.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrNotWaiting)
}

// NewValidationError wraps ErrInvalidRequest for op.
func NewValidationError(op, message string) *ServiceError {
	return &ServiceError{
		Op:      op,
		Message: message,
		Err:     ErrInvalidRequest,
	}
}
