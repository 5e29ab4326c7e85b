package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/sopflow/sopflow/pkg/models"
	"github.com/sopflow/sopflow/pkg/persistence"
)

// ProcessRepository stores each process as one JSON value. Ids come from
// an INCR counter so they stay monotonic like the SQL backends.
type ProcessRepository struct {
	client   *goredis.Client
	sessions *SessionRepository
}

func (r *ProcessRepository) List(ctx context.Context) ([]*models.ProcessSummary, error) {
	var summaries []*models.ProcessSummary

	iter := r.client.Scan(ctx, 0, processKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		data, err := r.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			if errors.Is(err, goredis.Nil) {
				continue
			}

			return nil, &persistence.ProcessError{Op: "List", Err: err}
		}

		var process models.Process
		if err := json.Unmarshal(data, &process); err != nil {
			return nil, &persistence.ProcessError{Op: "List", Err: fmt.Errorf("corrupt process record: %w", err)}
		}

		summaries = append(summaries, &models.ProcessSummary{
			ID:            process.ID,
			Name:          process.Name,
			UpdatedAt:     process.UpdatedAt,
			SessionStatus: r.sessionStatus(ctx, process.ID),
		})
	}

	if err := iter.Err(); err != nil {
		return nil, &persistence.ProcessError{Op: "List", Err: err}
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})

	return summaries, nil
}

func (r *ProcessRepository) sessionStatus(ctx context.Context, id int64) models.SessionStatus {
	session, err := r.sessions.Get(ctx, id)
	if err != nil {
		return models.SessionStatusNone
	}

	if session.IsFinished {
		return models.SessionStatusFinished
	}

	return models.SessionStatusRunning
}

func (r *ProcessRepository) GetByID(ctx context.Context, id int64) (*models.Process, error) {
	data, err := r.client.Get(ctx, processKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, &persistence.ProcessError{Op: "GetByID", ProcessID: id, Err: persistence.ErrProcessNotFound}
		}

		return nil, &persistence.ProcessError{Op: "GetByID", ProcessID: id, Err: err}
	}

	var process models.Process
	if err := json.Unmarshal(data, &process); err != nil {
		return nil, &persistence.ProcessError{Op: "GetByID", ProcessID: id, Err: fmt.Errorf("corrupt process record: %w", err)}
	}

	return &process, nil
}

func (r *ProcessRepository) Save(ctx context.Context, process *models.Process) (*models.Process, error) {
	if process.ID == 0 {
		id, err := r.client.Incr(ctx, processIDKey).Result()
		if err != nil {
			return nil, &persistence.ProcessError{Op: "Save", Err: err}
		}

		process.ID = id
	}

	process.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(process)
	if err != nil {
		return nil, &persistence.ProcessError{Op: "Save", ProcessID: process.ID, Err: err}
	}

	if err := r.client.Set(ctx, processKey(process.ID), data, 0).Err(); err != nil {
		return nil, &persistence.ProcessError{Op: "Save", ProcessID: process.ID, Err: err}
	}

	return process, nil
}

func (r *ProcessRepository) Delete(ctx context.Context, id int64) error {
	if err := r.client.Del(ctx, processKey(id)).Err(); err != nil {
		return &persistence.ProcessError{Op: "Delete", ProcessID: id, Err: err}
	}

	return r.sessions.Delete(ctx, id)
}
