// Package persistence provides standardized error types shared by all
// storage backends.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrProcessNotFound indicates no process exists for the identifier.
	ErrProcessNotFound = errors.New("process not found")

	// ErrSessionNotFound indicates the process has no stored session.
	ErrSessionNotFound = errors.New("session not found")

	// ErrRevisionConflict indicates a concurrent writer updated the
	// session between this writer's read and write.
	ErrRevisionConflict = errors.New("session revision conflict")
)

// ProcessError wraps process storage failures with operation context.
type ProcessError struct {
	Op        string
	ProcessID int64
	Err       error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("%s failed for process %d: %v", e.Op, e.ProcessID, e.Err)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

func (e *ProcessError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// SessionError wraps session storage failures with operation context. A
// failed session write is never safe to hide: the session is the only
// record of a real-world operational step.
type SessionError struct {
	Op        string
	ProcessID int64
	Err       error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("%s failed for session of process %d: %v", e.Op, e.ProcessID, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

func (e *SessionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsProcessNotFound checks if an error indicates a missing process.
func IsProcessNotFound(err error) bool {
	return errors.Is(err, ErrProcessNotFound)
}

// IsSessionNotFound checks if an error indicates a missing session.
func IsSessionNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound)
}

// IsRevisionConflict checks if an error indicates a lost optimistic write.
func IsRevisionConflict(err error) bool {
	return errors.Is(err, ErrRevisionConflict)
}
