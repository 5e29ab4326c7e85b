package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/sopflow/sopflow/pkg/models"
	"github.com/sopflow/sopflow/pkg/persistence"
)

// SessionRepository stores each session as one JSON value and serializes
// concurrent writers with a WATCH transaction on the session key.
type SessionRepository struct {
	client *goredis.Client
}

func (r *SessionRepository) Get(ctx context.Context, processID int64) (*models.Session, error) {
	data, err := r.client.Get(ctx, sessionKey(processID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, &persistence.SessionError{Op: "Get", ProcessID: processID, Err: persistence.ErrSessionNotFound}
		}

		return nil, &persistence.SessionError{Op: "Get", ProcessID: processID, Err: err}
	}

	var session models.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, &persistence.SessionError{Op: "Get", ProcessID: processID, Err: fmt.Errorf("corrupt session record: %w", err)}
	}

	return &session, nil
}

func (r *SessionRepository) Put(ctx context.Context, session *models.Session) error {
	key := sessionKey(session.ProcessID)

	txn := func(tx *goredis.Tx) error {
		var storedRevision int64

		data, err := tx.Get(ctx, key).Bytes()

		switch {
		case errors.Is(err, goredis.Nil):
			storedRevision = 0
		case err != nil:
			return err
		default:
			var stored models.Session
			if err := json.Unmarshal(data, &stored); err != nil {
				return fmt.Errorf("corrupt session record: %w", err)
			}

			storedRevision = stored.Revision
		}

		if session.Revision != storedRevision {
			return persistence.ErrRevisionConflict
		}

		session.Revision++
		session.UpdatedAt = time.Now().UTC()

		payload, err := json.Marshal(session)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)

			return nil
		})

		return err
	}

	err := r.client.Watch(ctx, txn, key)
	if err != nil {
		// A WATCH abort means another writer got in between our read
		// and write, which is exactly a revision conflict.
		if errors.Is(err, goredis.TxFailedErr) {
			session.Revision--

			err = persistence.ErrRevisionConflict
		}

		return &persistence.SessionError{Op: "Put", ProcessID: session.ProcessID, Err: err}
	}

	return nil
}

func (r *SessionRepository) Delete(ctx context.Context, processID int64) error {
	if err := r.client.Del(ctx, sessionKey(processID)).Err(); err != nil {
		return &persistence.SessionError{Op: "Delete", ProcessID: processID, Err: err}
	}

	return nil
}
