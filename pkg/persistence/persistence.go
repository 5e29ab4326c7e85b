// Package persistence provides the data storage abstraction for processes,
// execution sessions, and viewer heartbeats.
package persistence

import (
	"context"
	"time"

	"github.com/sopflow/sopflow/pkg/models"
)

// ProcessRepository stores SOP process definitions. Save assigns an id on
// first insert and bumps UpdatedAt on every write.
type ProcessRepository interface {
	List(ctx context.Context) ([]*models.ProcessSummary, error)
	GetByID(ctx context.Context, id int64) (*models.Process, error)
	Save(ctx context.Context, process *models.Process) (*models.Process, error)
	// Delete removes the process and its session together.
	Delete(ctx context.Context, id int64) error
}

// SessionRepository stores at most one session per process. The store has
// no partial-update primitive: every mutation rewrites the whole record.
//
// Put enforces optimistic concurrency: the session's Revision must match
// the stored one (0 for a record that does not exist yet) or
// ErrRevisionConflict is returned. On success the store bumps Revision and
// UpdatedAt on the passed session.
type SessionRepository interface {
	Get(ctx context.Context, processID int64) (*models.Session, error)
	Put(ctx context.Context, session *models.Session) error
	Delete(ctx context.Context, processID int64) error
}

// HeartbeatRepository tracks which viewers are currently looking at a
// running session. Records are ephemeral: a viewer that stops beating ages
// out after the expiry window with no explicit disconnect.
type HeartbeatRepository interface {
	// Beat upserts the (processID, viewerID) liveness record, expires
	// records older than the window, and returns the number of distinct
	// viewers still alive for the process. The count is always computed
	// fresh, never incrementally maintained.
	Beat(ctx context.Context, processID int64, viewerID string, now time.Time, expiry time.Duration) (int, error)
	// Sweep drops expired records across all processes.
	Sweep(ctx context.Context, now time.Time, expiry time.Duration) error
}

// Persistence bundles the repositories behind one backend.
type Persistence interface {
	Processes() ProcessRepository
	Sessions() SessionRepository
	Heartbeats() HeartbeatRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
