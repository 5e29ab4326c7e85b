package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/sopflow/sopflow/pkg/bpmn"
	"github.com/sopflow/sopflow/pkg/execution"
	"github.com/sopflow/sopflow/pkg/models"
	"github.com/sopflow/sopflow/pkg/persistence"
	"github.com/sopflow/sopflow/pkg/review"
	"github.com/sopflow/sopflow/pkg/viewsync"
)

// SessionView is the session state a viewer renders from: the raw session
// plus the element statuses derived from its log.
type SessionView struct {
	Session *models.Session                   `json:"session"`
	Status  map[string]execution.ElementState `json:"status"`
}

// Session exposes execution operations over stored processes. Each call
// loads the process, parses its graph and hands the pair to the engine.
type Session struct {
	logger      *slog.Logger
	processes   *Process
	engine      *execution.Engine
	coordinator *viewsync.Coordinator
	persistence persistence.Persistence
}

// NewSession creates a new session service.
func NewSession(logger *slog.Logger, processes *Process, engine *execution.Engine, coordinator *viewsync.Coordinator, p persistence.Persistence) *Session {
	return &Session{
		logger:      logger.With("module", "session-service"),
		processes:   processes,
		engine:      engine,
		coordinator: coordinator,
		persistence: p,
	}
}

// Open resumes or creates the session for a process.
func (s *Session) Open(ctx context.Context, processID int64) (*SessionView, error) {
	_, graph, err := s.processes.FetchGraph(ctx, processID)
	if err != nil {
		return nil, err
	}

	session, err := s.engine.OpenSession(ctx, graph, processID)
	if err != nil {
		return nil, err
	}

	return newView(graph, session), nil
}

// Current fetches the stored session without mutating it. A process that
// was never run yields an empty view.
func (s *Session) Current(ctx context.Context, processID int64) (*SessionView, error) {
	_, graph, err := s.processes.FetchGraph(ctx, processID)
	if err != nil {
		return nil, err
	}

	session, err := s.persistence.Sessions().Get(ctx, processID)
	if err != nil {
		if persistence.IsSessionNotFound(err) {
			return newView(graph, models.NewSession(processID)), nil
		}

		return nil, err
	}

	return newView(graph, session), nil
}

// StartElement records entry into an element.
func (s *Session) StartElement(ctx context.Context, processID int64, elementID string) (*SessionView, error) {
	_, graph, err := s.processes.FetchGraph(ctx, processID)
	if err != nil {
		return nil, err
	}

	session, err := s.engine.StartElement(ctx, graph, processID, elementID)
	if err != nil {
		return nil, err
	}

	return newView(graph, session), nil
}

// CompleteElement records completion of an element with an operator note.
func (s *Session) CompleteElement(ctx context.Context, processID int64, elementID, note string) (*SessionView, error) {
	_, graph, err := s.processes.FetchGraph(ctx, processID)
	if err != nil {
		return nil, err
	}

	session, err := s.engine.CompleteElement(ctx, graph, processID, elementID, note)
	if err != nil {
		return nil, err
	}

	return newView(graph, session), nil
}

// Finish ends the session on the operator's explicit request, recording
// the system finish entry.
func (s *Session) Finish(ctx context.Context, processID int64) (*SessionView, error) {
	_, graph, err := s.processes.FetchGraph(ctx, processID)
	if err != nil {
		return nil, err
	}

	session, err := s.engine.FinishSession(ctx, processID)
	if err != nil {
		return nil, err
	}

	return newView(graph, session), nil
}

// Abort force-finishes the session with a reason.
func (s *Session) Abort(ctx context.Context, processID int64, reason string) (*SessionView, error) {
	_, graph, err := s.processes.FetchGraph(ctx, processID)
	if err != nil {
		return nil, err
	}

	session, err := s.engine.AbortSession(ctx, processID, reason)
	if err != nil {
		return nil, err
	}

	return newView(graph, session), nil
}

// Restart wipes the session and starts over.
func (s *Session) Restart(ctx context.Context, processID int64) (*SessionView, error) {
	_, graph, err := s.processes.FetchGraph(ctx, processID)
	if err != nil {
		return nil, err
	}

	session, err := s.engine.RestartSession(ctx, processID)
	if err != nil {
		return nil, err
	}

	return newView(graph, session), nil
}

// EditNote amends one log entry's note.
func (s *Session) EditNote(ctx context.Context, processID int64, logIndex int, note string) (*SessionView, error) {
	_, graph, err := s.processes.FetchGraph(ctx, processID)
	if err != nil {
		return nil, err
	}

	session, err := s.engine.EditNote(ctx, processID, logIndex, note)
	if err != nil {
		return nil, err
	}

	return newView(graph, session), nil
}

// CanEnter reports, per executable element, whether its predecessor gate
// is currently satisfied. The UI disables blocked elements up front
// instead of rejecting after the fact.
func (s *Session) CanEnter(ctx context.Context, processID int64) (map[string]bool, error) {
	_, graph, err := s.processes.FetchGraph(ctx, processID)
	if err != nil {
		return nil, err
	}

	session, err := s.persistence.Sessions().Get(ctx, processID)
	if err != nil {
		if !persistence.IsSessionNotFound(err) {
			return nil, err
		}

		session = models.NewSession(processID)
	}

	gates := make(map[string]bool)

	for _, element := range graph.Elements() {
		if element.Kind.Executable() {
			gates[element.ID] = execution.CanEnter(graph, element, session.Log)
		}
	}

	return gates, nil
}

// ExportCSV renders the session log as the review interchange file and
// returns the conventional download filename alongside it.
func (s *Session) ExportCSV(ctx context.Context, processID int64, now time.Time) ([]byte, string, error) {
	process, err := s.processes.FetchByID(ctx, processID)
	if err != nil {
		return nil, "", err
	}

	session, err := s.persistence.Sessions().Get(ctx, processID)
	if err != nil {
		if !persistence.IsSessionNotFound(err) {
			return nil, "", err
		}

		session = models.NewSession(processID)
	}

	return review.Export(process, session.Log), review.Filename(process.Name, now), nil
}

// ReviewFile parses an uploaded review CSV, replays its statuses against
// the loaded graph and checks its identity line against the target
// process. Warnings never block the replay.
func (s *Session) ReviewFile(ctx context.Context, processID int64, data []byte) (*review.ExportedLog, map[string]execution.ElementState, []string, error) {
	process, graph, err := s.processes.FetchGraph(ctx, processID)
	if err != nil {
		return nil, nil, nil, err
	}

	parsed, err := review.Parse(data)
	if err != nil {
		return nil, nil, nil, NewValidationError("ReviewFile", "INVALID_REVIEW_FILE", err.Error(), ErrInvalidRequest)
	}

	warnings := review.CheckIdentity(parsed.Metadata, process)
	if len(warnings) > 0 {
		s.logger.WarnContext(ctx, "Review file identity mismatch",
			"process_id", processID, "warnings", warnings)
	}

	return parsed, review.ReplayWithGraph(graph, parsed.Entries), warnings, nil
}

// Heartbeat registers viewer liveness and returns the fresh online count.
func (s *Session) Heartbeat(ctx context.Context, processID int64, viewerID string) (int, error) {
	return s.coordinator.SendHeartbeat(ctx, processID, viewerID)
}

func newView(graph *bpmn.Graph, session *models.Session) *SessionView {
	return &SessionView{
		Session: session,
		Status:  execution.DeriveStatusWithGraph(graph, session.Log),
	}
}
