package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sopflow/sopflow/pkg/models"
	"github.com/sopflow/sopflow/pkg/persistence"
)

// SessionRepository stores one JSON file per session under
// <root>/sessions, keyed by process id. Writes are serialized per key and
// guarded by the session's revision counter.
type SessionRepository struct {
	root  string
	locks *keyedLocks
}

func NewSessionRepository(root string, locks *keyedLocks) *SessionRepository {
	return &SessionRepository{root: root, locks: locks}
}

func (r *SessionRepository) path(processID int64) string {
	return filepath.Join(r.root, "sessions", strconv.FormatInt(processID, 10)+".json")
}

func (r *SessionRepository) Get(_ context.Context, processID int64) (*models.Session, error) {
	data, err := os.ReadFile(r.path(processID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &persistence.SessionError{Op: "Get", ProcessID: processID, Err: persistence.ErrSessionNotFound}
		}

		return nil, &persistence.SessionError{Op: "Get", ProcessID: processID, Err: err}
	}

	var session models.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, &persistence.SessionError{Op: "Get", ProcessID: processID, Err: fmt.Errorf("corrupt session file: %w", err)}
	}

	return &session, nil
}

// Put writes the whole session record. The incoming Revision must match
// the stored one (0 when no record exists yet); on success the stored and
// in-memory Revision are bumped together.
func (r *SessionRepository) Put(ctx context.Context, session *models.Session) error {
	lock := r.locks.forKey(session.ProcessID)
	lock.Lock()
	defer lock.Unlock()

	stored, err := r.Get(ctx, session.ProcessID)
	if err != nil && !persistence.IsSessionNotFound(err) {
		return err
	}

	var storedRevision int64
	if stored != nil {
		storedRevision = stored.Revision
	}

	if session.Revision != storedRevision {
		return &persistence.SessionError{Op: "Put", ProcessID: session.ProcessID, Err: persistence.ErrRevisionConflict}
	}

	session.Revision++
	session.UpdatedAt = time.Now().UTC()

	if err := os.MkdirAll(filepath.Dir(r.path(session.ProcessID)), 0o755); err != nil {
		return &persistence.SessionError{Op: "Put", ProcessID: session.ProcessID, Err: err}
	}

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return &persistence.SessionError{Op: "Put", ProcessID: session.ProcessID, Err: err}
	}

	if err := os.WriteFile(r.path(session.ProcessID), data, 0o644); err != nil {
		return &persistence.SessionError{Op: "Put", ProcessID: session.ProcessID, Err: err}
	}

	return nil
}

func (r *SessionRepository) Delete(_ context.Context, processID int64) error {
	lock := r.locks.forKey(processID)
	lock.Lock()
	defer lock.Unlock()

	err := os.Remove(r.path(processID))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &persistence.SessionError{Op: "Delete", ProcessID: processID, Err: err}
	}

	return nil
}
