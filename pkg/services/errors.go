// Package services provides the application layer between the HTTP
// surface and the execution core: process CRUD with parse validation,
// session operations against a live graph, and review file handling.
package services

import (
	"errors"
	"fmt"

	"github.com/sopflow/sopflow/pkg/execution"
	"github.com/sopflow/sopflow/pkg/persistence"
)

// Validation errors (400 Bad Request).
var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrProcessNameRequired = errors.New("process name is required")
	ErrDiagramRequired     = errors.New("process diagram content is required")
	ErrProcessNil          = errors.New("process cannot be nil")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
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

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error should map to HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrProcessNameRequired) ||
		errors.Is(err, ErrDiagramRequired) ||
		errors.Is(err, ErrProcessNil) ||
		errors.Is(err, execution.ErrBadLogIndex)
}

// IsNotFoundError checks if an error should map to HTTP 404.
func IsNotFoundError(err error) bool {
	return persistence.IsProcessNotFound(err) ||
		persistence.IsSessionNotFound(err) ||
		errors.Is(err, execution.ErrElementNotFound)
}

// IsConflictError checks if an error should map to HTTP 409: gate
// violations, wrong-position completions, and mutations of finished runs.
func IsConflictError(err error) bool {
	return errors.Is(err, execution.ErrGateViolation) ||
		errors.Is(err, execution.ErrNotCurrentTask) ||
		errors.Is(err, execution.ErrNotExecutable) ||
		errors.Is(err, execution.ErrSessionFinished) ||
		persistence.IsRevisionConflict(err)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
