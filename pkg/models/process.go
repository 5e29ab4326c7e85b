// Package models defines the core domain models for SOP process execution.
package models

import "time"

// SessionStatus summarises the latest session of a process for listings.
type SessionStatus string

const (
	SessionStatusNone     SessionStatus = "none"     // No session has ever been opened
	SessionStatusRunning  SessionStatus = "running"  // A session exists and is not finished
	SessionStatusFinished SessionStatus = "finished" // The latest session reached a terminal state
)

// Process is a stored SOP procedure: a name plus the BPMN diagram that
// defines it. The diagram XML is opaque to storage; pkg/bpmn parses it.
type Process struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"        validate:"required,min=1"`
	XMLContent string    `json:"xml_content" validate:"required"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Version returns the process version token embedded in exported logs.
// The update timestamp doubles as the version: every save bumps it.
func (p *Process) Version() string {
	return p.UpdatedAt.UTC().Format("2006-01-02 15:04:05")
}

// ProcessSummary is the listing row for a process, carrying the status of
// its most recent session (if any).
type ProcessSummary struct {
	ID            int64         `json:"id"`
	Name          string        `json:"name"`
	UpdatedAt     time.Time     `json:"updated_at"`
	SessionStatus SessionStatus `json:"session_status"`
}
