package execution

import (
	"errors"
	"fmt"
)

var (
	// ErrElementNotFound indicates the referenced element id is not in the graph.
	ErrElementNotFound = errors.New("element not found in graph")
	// ErrNotExecutable indicates the element kind never participates in execution.
	ErrNotExecutable = errors.New("element is not executable")
	// ErrGateViolation indicates a start attempt with incomplete predecessors.
	ErrGateViolation = errors.New("predecessor steps are not completed")
	// ErrNotCurrentTask indicates a completion attempt on an element that is
	// not the operator's current position.
	ErrNotCurrentTask = errors.New("element is not the current task")
	// ErrSessionFinished indicates a mutation attempt on a finished session.
	ErrSessionFinished = errors.New("session is already finished")
	// ErrBadLogIndex indicates a note edit outside the log's bounds.
	ErrBadLogIndex = errors.New("log index out of range")
)

// EngineError wraps an engine operation failure with its context.
type EngineError struct {
	Op        string
	ProcessID int64
	ElementID string
	Err       error
}

func (e *EngineError) Error() string {
	if e.ElementID != "" {
		return fmt.Sprintf("execution %s failed for process %d element %q: %v", e.Op, e.ProcessID, e.ElementID, e.Err)
	}

	return fmt.Sprintf("execution %s failed for process %d: %v", e.Op, e.ProcessID, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// IsGateViolation reports whether err is a predecessor-gate violation.
func IsGateViolation(err error) bool {
	return errors.Is(err, ErrGateViolation)
}
