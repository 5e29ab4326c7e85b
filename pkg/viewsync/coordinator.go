// Package viewsync keeps concurrent viewers of one running session
// visually consistent without a push channel. Three independent timers do
// the work: session polling, viewer heartbeats, and always-on tag
// overlays. All of them stop when their context is cancelled, so a
// torn-down view never leaves a timer firing.
package viewsync

import (
	"context"
	"log/slog"
	"time"

	"github.com/sopflow/sopflow/pkg/bpmn"
	"github.com/sopflow/sopflow/pkg/execution"
	"github.com/sopflow/sopflow/pkg/models"
	"github.com/sopflow/sopflow/pkg/persistence"
	"github.com/sopflow/sopflow/pkg/tags"
)

// Intervals are the timer settings for the three loops.
type Intervals struct {
	Poll            time.Duration
	Heartbeat       time.Duration
	HeartbeatExpiry time.Duration
	Overlay         time.Duration
}

// DefaultIntervals matches the observable staleness bounds viewers are
// used to: session state at most one poll behind, liveness within 30s.
func DefaultIntervals() Intervals {
	return Intervals{
		Poll:            7 * time.Second,
		Heartbeat:       5 * time.Second,
		HeartbeatExpiry: 30 * time.Second,
		Overlay:         5 * time.Second,
	}
}

// Coordinator reconciles session state across viewers and tracks liveness.
type Coordinator struct {
	logger     *slog.Logger
	sessions   persistence.SessionRepository
	heartbeats persistence.HeartbeatRepository
	oracle     tags.Oracle
	intervals  Intervals
	clock      func() time.Time
}

// NewCoordinator assembles a coordinator. The oracle may be nil when no
// overlay display is needed.
func NewCoordinator(logger *slog.Logger, sessions persistence.SessionRepository, heartbeats persistence.HeartbeatRepository, oracle tags.Oracle, intervals Intervals) *Coordinator {
	return &Coordinator{
		logger:     logger.With("module", "viewsync"),
		sessions:   sessions,
		heartbeats: heartbeats,
		oracle:     oracle,
		intervals:  intervals,
		clock:      time.Now,
	}
}

// ReconcileResult is the outcome of one poll.
type ReconcileResult struct {
	Log           []models.LogEntry
	CurrentTaskID string
	IsFinished    bool
	// Changed reports whether the fetched log differed from the local one.
	// The caller replaces its state wholesale when set; there is no merge.
	Changed bool
	// Status is each element's derived state, recomputed from scratch on
	// every poll so two polls with no intervening write agree exactly.
	Status map[string]execution.ElementState
}

// PollAndReconcile fetches the persisted session and compares its log
// structurally against the locally held one. Last writer wins at the
// granularity of the most recently fetched full session. A process with no
// stored session reconciles to the empty state. The graph feeds the status
// derivation and may be nil when the caller holds none.
func (c *Coordinator) PollAndReconcile(ctx context.Context, graph *bpmn.Graph, processID int64, localLog []models.LogEntry) (*ReconcileResult, error) {
	session, err := c.sessions.Get(ctx, processID)
	if err != nil {
		if persistence.IsSessionNotFound(err) {
			session = models.NewSession(processID)
		} else {
			return nil, err
		}
	}

	return &ReconcileResult{
		Log:           session.Log,
		CurrentTaskID: session.CurrentTaskID,
		IsFinished:    session.IsFinished,
		Changed:       !models.LogEqual(localLog, session.Log),
		Status:        execution.DeriveStatusWithGraph(graph, session.Log),
	}, nil
}

// SendHeartbeat upserts the viewer's liveness record and returns the fresh
// count of viewers still inside the expiry window. The count is always
// recomputed from live records, so a crashed viewer ages out on its own.
func (c *Coordinator) SendHeartbeat(ctx context.Context, processID int64, viewerID string) (int, error) {
	return c.heartbeats.Beat(ctx, processID, viewerID, c.clock(), c.intervals.HeartbeatExpiry)
}

// RunSessionSync polls until the context is cancelled, invoking onChange
// only when the fetched log differs from the last delivered one.
func (c *Coordinator) RunSessionSync(ctx context.Context, graph *bpmn.Graph, processID int64, onChange func(*ReconcileResult)) {
	ticker := time.NewTicker(c.intervals.Poll)
	defer ticker.Stop()

	var localLog []models.LogEntry

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := c.PollAndReconcile(ctx, graph, processID, localLog)
			if err != nil {
				c.logger.WarnContext(ctx, "Session poll failed", "process_id", processID, "error", err)

				continue
			}

			if result.Changed {
				localLog = result.Log
				onChange(result)
			}
		}
	}
}

// RunHeartbeat keeps the viewer's liveness record fresh until the context
// is cancelled, reporting each online count to onCount.
func (c *Coordinator) RunHeartbeat(ctx context.Context, processID int64, viewerID string, onCount func(int)) {
	ticker := time.NewTicker(c.intervals.Heartbeat)
	defer ticker.Stop()

	beat := func() {
		count, err := c.SendHeartbeat(ctx, processID, viewerID)
		if err != nil {
			c.logger.WarnContext(ctx, "Heartbeat failed", "process_id", processID, "error", err)

			return
		}

		onCount(count)
	}

	beat()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			beat()
		}
	}
}
