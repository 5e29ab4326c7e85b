package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sopflow/sopflow/pkg/models"
	"github.com/sopflow/sopflow/pkg/persistence"
)

// SessionRepository stores sessions whole, one row per process, with the
// log serialized as JSONB. The version column carries the optimistic
// revision counter.
type SessionRepository struct {
	db *sql.DB
}

func (r *SessionRepository) Get(ctx context.Context, processID int64) (*models.Session, error) {
	var (
		session models.Session
		rawLog  []byte
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT process_id, current_task_id, log, is_finished, version, updated_at
		FROM sessions WHERE process_id = $1
	`, processID).Scan(
		&session.ProcessID, &session.CurrentTaskID, &rawLog,
		&session.IsFinished, &session.Revision, &session.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &persistence.SessionError{Op: "Get", ProcessID: processID, Err: persistence.ErrSessionNotFound}
		}

		return nil, &persistence.SessionError{Op: "Get", ProcessID: processID, Err: err}
	}

	if err := json.Unmarshal(rawLog, &session.Log); err != nil {
		return nil, &persistence.SessionError{Op: "Get", ProcessID: processID, Err: fmt.Errorf("corrupt session log: %w", err)}
	}

	return &session, nil
}

func (r *SessionRepository) Put(ctx context.Context, session *models.Session) error {
	rawLog, err := json.Marshal(session.Log)
	if err != nil {
		return &persistence.SessionError{Op: "Put", ProcessID: session.ProcessID, Err: err}
	}

	now := time.Now().UTC()

	if session.Revision == 0 {
		// First write for this process. A unique violation here means a
		// concurrent writer created the row first.
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO sessions (process_id, current_task_id, log, is_finished, version, updated_at)
			VALUES ($1, $2, $3, $4, 1, $5)
		`, session.ProcessID, session.CurrentTaskID, rawLog, session.IsFinished, now)
		if err != nil {
			if isUniqueViolation(err) {
				return &persistence.SessionError{Op: "Put", ProcessID: session.ProcessID, Err: persistence.ErrRevisionConflict}
			}

			return &persistence.SessionError{Op: "Put", ProcessID: session.ProcessID, Err: err}
		}

		session.Revision = 1
		session.UpdatedAt = now

		return nil
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE sessions
		SET current_task_id = $2, log = $3, is_finished = $4, version = version + 1, updated_at = $5
		WHERE process_id = $1 AND version = $6
	`, session.ProcessID, session.CurrentTaskID, rawLog, session.IsFinished, now, session.Revision)
	if err != nil {
		return &persistence.SessionError{Op: "Put", ProcessID: session.ProcessID, Err: err}
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return &persistence.SessionError{Op: "Put", ProcessID: session.ProcessID, Err: err}
	}

	if affected == 0 {
		return &persistence.SessionError{Op: "Put", ProcessID: session.ProcessID, Err: persistence.ErrRevisionConflict}
	}

	session.Revision++
	session.UpdatedAt = now

	return nil
}

func (r *SessionRepository) Delete(ctx context.Context, processID int64) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM sessions WHERE process_id = $1", processID); err != nil {
		return &persistence.SessionError{Op: "Delete", ProcessID: processID, Err: err}
	}

	return nil
}

func isUniqueViolation(err error) bool {
	type coder interface{ SQLState() string }

	var pqErr coder
	if errors.As(err, &pqErr) {
		return pqErr.SQLState() == "23505"
	}

	return false
}
