// Package execution implements the session state machine: it turns a
// process graph plus operator actions into an append-only log and a
// current-position pointer, enforcing predecessor-completion ordering.
package execution

import (
	"strings"

	"github.com/sopflow/sopflow/pkg/models"
)

// Load-bearing message shapes. The engine correlates historical log
// entries back to graph elements by parsing these, so the exact prefixes
// are part of the persisted contract and must not change.
const (
	TaskStartPrefix    = "任務開始"
	TaskCompletePrefix = "任務完成"

	// ProcessFinishedMessage is the system entry the operator's explicit
	// finish appends.
	ProcessFinishedMessage = "流程結束"
	// ProcessAbortedPrefix heads the system entry recorded on manual abort.
	ProcessAbortedPrefix = "流程中止"
)

const messageSeparator = ": "

// StartMessage renders the task-start entry for an element name.
func StartMessage(name string) string {
	return TaskStartPrefix + messageSeparator + name
}

// CompleteMessage renders the task-complete entry for an element name.
func CompleteMessage(name string) string {
	return TaskCompletePrefix + messageSeparator + name
}

// AbortMessage renders the system abort entry. The reason may be empty.
func AbortMessage(reason string) string {
	if reason == "" {
		return ProcessAbortedPrefix
	}

	return ProcessAbortedPrefix + messageSeparator + reason
}

// ParseTaskName extracts the element name from a start or complete entry.
// Returns ok=false for messages of any other shape.
func ParseTaskName(message string) (name string, started bool, ok bool) {
	switch {
	case strings.HasPrefix(message, TaskStartPrefix+messageSeparator):
		return message[len(TaskStartPrefix+messageSeparator):], true, true
	case strings.HasPrefix(message, TaskCompletePrefix+messageSeparator):
		return message[len(TaskCompletePrefix+messageSeparator):], false, true
	default:
		return "", false, false
	}
}

// IsCompletionOf reports whether a log entry records the completion of the
// named element. Matching is prefix-plus-contains on the display name, the
// same correlation the stored logs were written against.
func IsCompletionOf(entry models.LogEntry, name string) bool {
	return strings.HasPrefix(entry.Message, TaskCompletePrefix) &&
		strings.Contains(entry.Message, name)
}
