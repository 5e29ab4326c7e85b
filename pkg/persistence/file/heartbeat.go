package file

import (
	"context"
	"sync"
	"time"
)

// HeartbeatRepository keeps liveness records in memory. Heartbeats are
// never persisted beyond liveness, so a process restart simply looks like
// every viewer aging out at once.
type HeartbeatRepository struct {
	mu    sync.Mutex
	beats map[int64]map[string]time.Time
}

func NewHeartbeatRepository() *HeartbeatRepository {
	return &HeartbeatRepository{beats: make(map[int64]map[string]time.Time)}
}

func (r *HeartbeatRepository) Beat(_ context.Context, processID int64, viewerID string, now time.Time, expiry time.Duration) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	viewers, ok := r.beats[processID]
	if !ok {
		viewers = make(map[string]time.Time)
		r.beats[processID] = viewers
	}

	viewers[viewerID] = now

	cutoff := now.Add(-expiry)
	for id, seen := range viewers {
		if seen.Before(cutoff) {
			delete(viewers, id)
		}
	}

	return len(viewers), nil
}

func (r *HeartbeatRepository) Sweep(_ context.Context, now time.Time, expiry time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := now.Add(-expiry)

	for processID, viewers := range r.beats {
		for id, seen := range viewers {
			if seen.Before(cutoff) {
				delete(viewers, id)
			}
		}

		if len(viewers) == 0 {
			delete(r.beats, processID)
		}
	}

	return nil
}
