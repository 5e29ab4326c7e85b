package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/sopflow/sopflow/pkg/models"
	"github.com/sopflow/sopflow/pkg/persistence"
)

// ProcessRepository stores one JSON file per process under
// <root>/processes. Ids are assigned sequentially from the highest id on
// disk, mirroring the autoincrement behavior of the SQL backends.
type ProcessRepository struct {
	root     string
	sessions *SessionRepository
	mu       sync.Mutex
}

func NewProcessRepository(root string, sessions *SessionRepository) *ProcessRepository {
	return &ProcessRepository{root: root, sessions: sessions}
}

func (r *ProcessRepository) dir() string {
	return filepath.Join(r.root, "processes")
}

func (r *ProcessRepository) path(id int64) string {
	return filepath.Join(r.dir(), strconv.FormatInt(id, 10)+".json")
}

// List returns process summaries ordered by update time, newest first,
// each carrying its latest-session status.
func (r *ProcessRepository) List(ctx context.Context) ([]*models.ProcessSummary, error) {
	ids, err := r.ids()
	if err != nil {
		return nil, &persistence.ProcessError{Op: "List", Err: err}
	}

	summaries := make([]*models.ProcessSummary, 0, len(ids))

	for _, id := range ids {
		process, err := r.GetByID(ctx, id)
		if err != nil {
			if persistence.IsProcessNotFound(err) {
				continue
			}

			return nil, err
		}

		summaries = append(summaries, &models.ProcessSummary{
			ID:            process.ID,
			Name:          process.Name,
			UpdatedAt:     process.UpdatedAt,
			SessionStatus: r.sessionStatus(ctx, id),
		})
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

func (r *ProcessRepository) GetByID(_ context.Context, id int64) (*models.Process, error) {
	data, err := os.ReadFile(r.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &persistence.ProcessError{Op: "GetByID", ProcessID: id, Err: persistence.ErrProcessNotFound}
		}

		return nil, &persistence.ProcessError{Op: "GetByID", ProcessID: id, Err: err}
	}

	var process models.Process
	if err := json.Unmarshal(data, &process); err != nil {
		return nil, &persistence.ProcessError{Op: "GetByID", ProcessID: id, Err: fmt.Errorf("corrupt process file: %w", err)}
	}

	return &process, nil
}

// Save writes the process, assigning the next free id for new records and
// bumping UpdatedAt in either case.
func (r *ProcessRepository) Save(_ context.Context, process *models.Process) (*models.Process, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(r.dir(), 0o755); err != nil {
		return nil, &persistence.ProcessError{Op: "Save", Err: err}
	}

	if process.ID == 0 {
		ids, err := r.ids()
		if err != nil {
			return nil, &persistence.ProcessError{Op: "Save", Err: err}
		}

		var maxID int64
		for _, id := range ids {
			if id > maxID {
				maxID = id
			}
		}

		process.ID = maxID + 1
	}

	process.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(process, "", "  ")
	if err != nil {
		return nil, &persistence.ProcessError{Op: "Save", ProcessID: process.ID, Err: err}
	}

	if err := os.WriteFile(r.path(process.ID), data, 0o644); err != nil {
		return nil, &persistence.ProcessError{Op: "Save", ProcessID: process.ID, Err: err}
	}

	return process, nil
}

// Delete removes the process file and its session together.
func (r *ProcessRepository) Delete(ctx context.Context, id int64) error {
	err := os.Remove(r.path(id))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &persistence.ProcessError{Op: "Delete", ProcessID: id, Err: err}
	}

	if err := r.sessions.Delete(ctx, id); err != nil && !persistence.IsSessionNotFound(err) {
		return err
	}

	return nil
}

func (r *ProcessRepository) ids() ([]int64, error) {
	entries, err := os.ReadDir(r.dir())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}

		return nil, err
	}

	ids := make([]int64, 0, len(entries))

	for _, entry := range entries {
		name := entry.Name()
		if filepath.Ext(name) != ".json" {
			continue
		}

		id, err := strconv.ParseInt(name[:len(name)-len(".json")], 10, 64)
		if err != nil {
			continue
		}

		ids = append(ids, id)
	}

	return ids, nil
}
