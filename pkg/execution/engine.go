package execution

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/sopflow/sopflow/pkg/bpmn"
	"github.com/sopflow/sopflow/pkg/eventbus"
	"github.com/sopflow/sopflow/pkg/events"
	"github.com/sopflow/sopflow/pkg/models"
	"github.com/sopflow/sopflow/pkg/persistence"
	"github.com/sopflow/sopflow/pkg/tags"
)

// putRetries bounds the read-modify-write retry loop on revision conflicts.
const putRetries = 3

// Engine drives execution sessions. Every mutation reads the whole session,
// applies the change in memory and writes it back through the store's
// compare-and-swap, retrying when a concurrent writer got there first.
type Engine struct {
	logger *slog.Logger
	store  persistence.SessionRepository
	oracle tags.Oracle
	bus    eventbus.EventPublisher
	tracer trace.Tracer
	clock  func() time.Time
}

// NewEngine assembles an engine. The oracle and bus may be nil: tag reads
// then degrade to sentinel values and lifecycle events are skipped.
func NewEngine(logger *slog.Logger, store persistence.SessionRepository, oracle tags.Oracle, bus eventbus.EventPublisher, tracer trace.Tracer) *Engine {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("execution")
	}

	return &Engine{
		logger: logger.With("module", "execution"),
		store:  store,
		oracle: oracle,
		bus:    bus,
		tracer: tracer,
		clock:  time.Now,
	}
}

// OpenSession resumes the current session for a process, or creates and
// immediately persists a fresh one when none exists or the previous run
// finished. A stored position that no longer resolves in the graph is
// dropped so the operator falls back to a start event.
func (e *Engine) OpenSession(ctx context.Context, graph *bpmn.Graph, processID int64) (*models.Session, error) {
	ctx, span := e.tracer.Start(ctx, "execution.open_session",
		trace.WithAttributes(attribute.Int64("process.id", processID)))
	defer span.End()

	session, err := e.store.Get(ctx, processID)

	switch {
	case persistence.IsSessionNotFound(err):
		session = models.NewSession(processID)
	case err != nil:
		return nil, &EngineError{Op: "open_session", ProcessID: processID, Err: err}
	case session.IsFinished:
		fresh := models.NewSession(processID)
		fresh.Revision = session.Revision
		session = fresh
	default:
		if session.CurrentTaskID != "" && graph.ElementByID(session.CurrentTaskID) == nil {
			session.CurrentTaskID = ""
		}

		return session, nil
	}

	if err := e.store.Put(ctx, session); err != nil {
		return nil, &EngineError{Op: "open_session", ProcessID: processID, Err: err}
	}

	e.publish(ctx, events.SessionOpened{
		BaseEvent: events.NewBaseEvent(events.SessionOpenedEvent, processID),
	})

	return session, nil
}

// StartElement records entry into an element. Start events are one-shot:
// the single start entry both enters and completes them. All other kinds
// must pass the predecessor gate; the entry then carries the element's tag
// readout and the element becomes the current task.
func (e *Engine) StartElement(ctx context.Context, graph *bpmn.Graph, processID int64, elementID string) (*models.Session, error) {
	ctx, span := e.tracer.Start(ctx, "execution.start_element",
		trace.WithAttributes(
			attribute.Int64("process.id", processID),
			attribute.String("element.id", elementID),
		))
	defer span.End()

	element := graph.ElementByID(elementID)
	if element == nil {
		return nil, &EngineError{Op: "start_element", ProcessID: processID, ElementID: elementID, Err: ErrElementNotFound}
	}

	if !element.Kind.Executable() {
		return nil, &EngineError{Op: "start_element", ProcessID: processID, ElementID: elementID, Err: ErrNotExecutable}
	}

	session, err := e.mutate(ctx, "start_element", processID, func(session *models.Session) error {
		if session.IsFinished {
			return ErrSessionFinished
		}

		if element.Kind != bpmn.KindStartEvent && !CanEnter(graph, element, session.Log) {
			return ErrGateViolation
		}

		value := e.readTags(ctx, element.Meta)

		session.Append(models.LogEntry{
			Time:    e.clock().Format(models.LogTimeFormat),
			Source:  models.SourceUser,
			Message: StartMessage(element.Name),
			Value:   value,
			Note:    "",
			TaskID:  element.ID,
		})

		if element.Kind != bpmn.KindStartEvent {
			session.CurrentTaskID = element.ID
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish(ctx, events.ElementStarted{
		BaseEvent:   events.NewBaseEvent(events.ElementStartedEvent, processID),
		ElementID:   element.ID,
		ElementName: element.Name,
		Value:       lastValue(session),
	})

	return session, nil
}

// CompleteElement records completion of the current task with an
// end-of-task tag readout, independent of the readout taken at start.
// End events are gated on predecessors instead of the current-task pointer
// since entering and completing them is one action; completing the final
// end (or any end when the graph declares none) finishes the run, as does
// completing a dead end with no way forward.
func (e *Engine) CompleteElement(ctx context.Context, graph *bpmn.Graph, processID int64, elementID, note string) (*models.Session, error) {
	ctx, span := e.tracer.Start(ctx, "execution.complete_element",
		trace.WithAttributes(
			attribute.Int64("process.id", processID),
			attribute.String("element.id", elementID),
		))
	defer span.End()

	element := graph.ElementByID(elementID)
	if element == nil {
		return nil, &EngineError{Op: "complete_element", ProcessID: processID, ElementID: elementID, Err: ErrElementNotFound}
	}

	if !element.Kind.Executable() {
		return nil, &EngineError{Op: "complete_element", ProcessID: processID, ElementID: elementID, Err: ErrNotExecutable}
	}

	finished := false

	session, err := e.mutate(ctx, "complete_element", processID, func(session *models.Session) error {
		if session.IsFinished {
			return ErrSessionFinished
		}

		if element.Kind == bpmn.KindEndEvent {
			if !CanEnter(graph, element, session.Log) {
				return ErrGateViolation
			}
		} else if session.CurrentTaskID != element.ID {
			return ErrNotCurrentTask
		}

		value := e.readTags(ctx, element.Meta)
		now := e.clock()

		session.Append(models.LogEntry{
			Time:    now.Format(models.LogTimeFormat),
			Source:  models.SourceUser,
			Message: CompleteMessage(element.Name),
			Value:   value,
			Note:    note,
			TaskID:  element.ID,
		})
		session.CurrentTaskID = ""

		finished = runEndsAt(graph, element)
		if finished {
			session.IsFinished = true
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish(ctx, events.ElementCompleted{
		BaseEvent:   events.NewBaseEvent(events.ElementCompletedEvent, processID),
		ElementID:   element.ID,
		ElementName: element.Name,
		Note:        note,
	})

	if finished {
		e.publish(ctx, events.SessionFinished{
			BaseEvent:    events.NewBaseEvent(events.SessionFinishedEvent, processID),
			EndElementID: element.ID,
			IsFinalEnd:   element.Meta.IsFinalEnd,
		})
	}

	return session, nil
}

// FinishSession ends the run on the operator's explicit say-so, recording
// the system finish entry. Completing the final end only flips the
// finished flag; this is the one place the finish entry is written, so a
// run closed mid-way still carries it in the exported log.
func (e *Engine) FinishSession(ctx context.Context, processID int64) (*models.Session, error) {
	ctx, span := e.tracer.Start(ctx, "execution.finish_session",
		trace.WithAttributes(attribute.Int64("process.id", processID)))
	defer span.End()

	session, err := e.mutate(ctx, "finish_session", processID, func(session *models.Session) error {
		// A run finished by completing the final end may still receive its
		// finish entry; one that was aborted or already explicitly finished
		// may not.
		if session.IsFinished && hasTerminalEntry(session.Log) {
			return ErrSessionFinished
		}

		session.Append(models.LogEntry{
			Time:    e.clock().Format(models.LogTimeFormat),
			Source:  models.SourceSystem,
			Message: ProcessFinishedMessage,
			Value:   models.NoValue,
		})
		session.CurrentTaskID = ""
		session.IsFinished = true

		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish(ctx, events.SessionFinished{
		BaseEvent: events.NewBaseEvent(events.SessionFinishedEvent, processID),
	})

	return session, nil
}

// AbortSession force-finishes the run with a system entry carrying the
// reason. It ignores position and final-end gating; this is the manual
// override, not a normal completion.
func (e *Engine) AbortSession(ctx context.Context, processID int64, reason string) (*models.Session, error) {
	ctx, span := e.tracer.Start(ctx, "execution.abort_session",
		trace.WithAttributes(attribute.Int64("process.id", processID)))
	defer span.End()

	var lastTaskID string

	session, err := e.mutate(ctx, "abort_session", processID, func(session *models.Session) error {
		if session.IsFinished {
			return ErrSessionFinished
		}

		lastTaskID = session.CurrentTaskID

		session.Append(models.LogEntry{
			Time:    e.clock().Format(models.LogTimeFormat),
			Source:  models.SourceSystem,
			Message: AbortMessage(reason),
			Value:   models.NoValue,
		})
		session.CurrentTaskID = ""
		session.IsFinished = true

		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish(ctx, events.SessionAborted{
		BaseEvent:  events.NewBaseEvent(events.SessionAbortedEvent, processID),
		LastTaskID: lastTaskID,
	})

	return session, nil
}

// RestartSession wipes the log and state in place. Irreversible; the
// discarded run is not retained anywhere.
func (e *Engine) RestartSession(ctx context.Context, processID int64) (*models.Session, error) {
	ctx, span := e.tracer.Start(ctx, "execution.restart_session",
		trace.WithAttributes(attribute.Int64("process.id", processID)))
	defer span.End()

	session, err := e.mutate(ctx, "restart_session", processID, func(session *models.Session) error {
		session.Log = []models.LogEntry{}
		session.CurrentTaskID = ""
		session.IsFinished = false

		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish(ctx, events.SessionRestarted{
		BaseEvent: events.NewBaseEvent(events.SessionRestartedEvent, processID),
	})

	return session, nil
}

// EditNote amends one entry's note in place. The note is the only mutable
// field of a recorded entry; the store has no partial update, so the whole
// session is written back.
func (e *Engine) EditNote(ctx context.Context, processID int64, logIndex int, note string) (*models.Session, error) {
	ctx, span := e.tracer.Start(ctx, "execution.edit_note",
		trace.WithAttributes(
			attribute.Int64("process.id", processID),
			attribute.Int("log.index", logIndex),
		))
	defer span.End()

	session, err := e.mutate(ctx, "edit_note", processID, func(session *models.Session) error {
		if logIndex < 0 || logIndex >= len(session.Log) {
			return ErrBadLogIndex
		}

		session.Log[logIndex].Note = note

		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish(ctx, events.NoteEdited{
		BaseEvent: events.NewBaseEvent(events.NoteEditedEvent, processID),
		LogIndex:  logIndex,
		Note:      note,
	})

	return session, nil
}

// NextAfter suggests the element following the given one: the target of
// its first outgoing flow in declaration order. Gateway conditions are
// never evaluated; branching is the operator's call, this is only the
// default suggestion. Returns "" at dead ends.
func (e *Engine) NextAfter(graph *bpmn.Graph, elementID string) string {
	outgoing := graph.OutgoingOf(elementID)
	if len(outgoing) == 0 {
		return ""
	}

	return outgoing[0].TargetID
}

// hasTerminalEntry reports whether the log already records how the run
// ended, by finish entry or abort entry.
func hasTerminalEntry(log []models.LogEntry) bool {
	for _, entry := range log {
		if entry.Message == ProcessFinishedMessage || strings.HasPrefix(entry.Message, ProcessAbortedPrefix) {
			return true
		}
	}

	return false
}

// runEndsAt reports whether completing this element terminates the run:
// the flagged final end, any end event in a graph that declares no final
// end, or a dead end with no outgoing flow.
func runEndsAt(graph *bpmn.Graph, element *bpmn.Element) bool {
	if element.Kind == bpmn.KindEndEvent {
		return element.Meta.IsFinalEnd || graph.FinalEnd() == nil
	}

	return len(element.Outgoing) == 0
}

// mutate is the read-modify-write loop behind every session mutation. The
// whole record moves as one unit; a revision conflict on write means a
// concurrent writer won, so the change is re-applied on the fresh record.
func (e *Engine) mutate(ctx context.Context, op string, processID int64, apply func(*models.Session) error) (*models.Session, error) {
	for attempt := 0; ; attempt++ {
		session, err := e.store.Get(ctx, processID)
		if err != nil {
			if !persistence.IsSessionNotFound(err) {
				return nil, &EngineError{Op: op, ProcessID: processID, Err: err}
			}

			session = models.NewSession(processID)
		}

		if err := apply(session); err != nil {
			return nil, &EngineError{Op: op, ProcessID: processID, Err: err}
		}

		err = e.store.Put(ctx, session)
		if err == nil {
			return session, nil
		}

		if !persistence.IsRevisionConflict(err) || attempt >= putRetries {
			return nil, &EngineError{Op: op, ProcessID: processID, Err: err}
		}

		e.logger.WarnContext(ctx, "Concurrent session write detected, retrying",
			"process_id", processID, "op", op, "attempt", attempt+1)
	}
}

// readTags fetches and formats the element's tag readout. Failures never
// block recording: a broken oracle yields sentinel values instead.
func (e *Engine) readTags(ctx context.Context, meta bpmn.Metadata) string {
	if meta.Tag == "" {
		return models.NoValue
	}

	readings := tags.FetchOrSentinel(ctx, e.oracle, meta.Tag)

	units := make(map[string]string, len(readings))

	for i, reading := range readings {
		readings[i].Value = tags.FormatValue(reading.Value, meta.Precision)
		units[reading.Tag] = meta.Unit
	}

	return tags.FormatReadings(readings, units)
}

func (e *Engine) publish(ctx context.Context, event eventbus.Event) {
	if e.bus == nil {
		return
	}

	if err := e.bus.Publish(ctx, string(event.GetType()), event); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish session event",
			"event_type", event.GetType(), "error", err)
	}
}

func lastValue(session *models.Session) string {
	if len(session.Log) == 0 {
		return ""
	}

	return session.Log[len(session.Log)-1].Value
}
