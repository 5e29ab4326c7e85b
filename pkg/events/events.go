// Package events defines event types for session lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Kafka topic carrying all session lifecycle events.
const Topic = "sopflow.sessions"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	SessionOpenedEvent    EventType = "session.opened"
	SessionFinishedEvent  EventType = "session.finished"
	SessionAbortedEvent   EventType = "session.aborted"
	SessionRestartedEvent EventType = "session.restarted"

	ElementStartedEvent   EventType = "element.started"
	ElementCompletedEvent EventType = "element.completed"

	NoteEditedEvent EventType = "note.edited"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	ProcessID int64          `json:"process_id"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type SessionOpened struct {
	BaseEvent

	StartElementID string `json:"start_element_id"`
	StartName      string `json:"start_name"`
}

func (e SessionOpened) GetType() EventType {
	return SessionOpenedEvent
}

type SessionFinished struct {
	BaseEvent

	EndElementID string `json:"end_element_id"`
	IsFinalEnd   bool   `json:"is_final_end"`
}

func (e SessionFinished) GetType() EventType {
	return SessionFinishedEvent
}

type SessionAborted struct {
	BaseEvent

	LastTaskID string `json:"last_task_id,omitempty"`
}

func (e SessionAborted) GetType() EventType {
	return SessionAbortedEvent
}

type SessionRestarted struct {
	BaseEvent
}

func (e SessionRestarted) GetType() EventType {
	return SessionRestartedEvent
}

type ElementStarted struct {
	BaseEvent

	ElementID   string `json:"element_id"`
	ElementName string `json:"element_name"`
	Value       string `json:"value,omitempty"`
}

func (e ElementStarted) GetType() EventType {
	return ElementStartedEvent
}

type ElementCompleted struct {
	BaseEvent

	ElementID   string `json:"element_id"`
	ElementName string `json:"element_name"`
	Value       string `json:"value,omitempty"`
	Note        string `json:"note,omitempty"`
}

func (e ElementCompleted) GetType() EventType {
	return ElementCompletedEvent
}

type NoteEdited struct {
	BaseEvent

	LogIndex int    `json:"log_index"`
	Note     string `json:"note"`
}

func (e NoteEdited) GetType() EventType {
	return NoteEditedEvent
}

func NewBaseEvent(eventType EventType, processID int64) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		ProcessID: processID,
		Metadata:  make(map[string]any),
	}
}
