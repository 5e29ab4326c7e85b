// Package file provides file-based persistence, the default backend for
// development and tests. Processes and sessions are stored as one JSON
// document per record; heartbeats are ephemeral and live in memory.
package file

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/sopflow/sopflow/pkg/persistence"
)

// Persistence implements persistence.Persistence on the file system.
type Persistence struct {
	root       string
	processes  *ProcessRepository
	sessions   *SessionRepository
	heartbeats *HeartbeatRepository
}

// NewPersistence creates a file persistence rooted at the given directory.
// Accepts both a plain path and a file:// URL.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	locks := &keyedLocks{locks: make(map[int64]*sync.Mutex)}
	sessions := NewSessionRepository(cleanRoot, locks)

	return &Persistence{
		root:       cleanRoot,
		processes:  NewProcessRepository(cleanRoot, sessions),
		sessions:   sessions,
		heartbeats: NewHeartbeatRepository(),
	}
}

func (p *Persistence) Processes() persistence.ProcessRepository {
	return p.processes
}

func (p *Persistence) Sessions() persistence.SessionRepository {
	return p.sessions
}

func (p *Persistence) Heartbeats() persistence.HeartbeatRepository {
	return p.heartbeats
}

// HealthCheck verifies the root directory exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close performs any necessary cleanup. Nothing to do for files.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// keyedLocks serializes writers per process id. The store contract
// requires whole-record read-modify-write to be atomic per key.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func (k *keyedLocks) forKey(id int64) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()

	lock, ok := k.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		k.locks[id] = lock
	}

	return lock
}
