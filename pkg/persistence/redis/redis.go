// Package redis provides Redis-backed persistence. Sessions use WATCH
// based compare-and-swap on the revision counter; heartbeats map directly
// onto keys with a TTL, so expiry needs no sweeping of our own.
package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/sopflow/sopflow/pkg/persistence"
)

const (
	processKeyPrefix   = "sopflow:process:"
	processIDKey       = "sopflow:process_next_id"
	sessionKeyPrefix   = "sopflow:session:"
	heartbeatKeyPrefix = "sopflow:heartbeat:"
)

// Persistence implements persistence.Persistence on Redis.
type Persistence struct {
	client     *goredis.Client
	processes  *ProcessRepository
	sessions   *SessionRepository
	heartbeats *HeartbeatRepository
}

// NewPersistence connects to the Redis instance named by the URL
// (redis://host:port/db) and verifies the connection.
func NewPersistence(ctx context.Context, redisURL string) (*Persistence, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := goredis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	sessions := &SessionRepository{client: client}

	return &Persistence{
		client:     client,
		processes:  &ProcessRepository{client: client, sessions: sessions},
		sessions:   sessions,
		heartbeats: &HeartbeatRepository{client: client},
	}, nil
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

func (p *Persistence) HealthCheck(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *Persistence) Close(_ context.Context) error {
	return p.client.Close()
}

func processKey(id int64) string {
	return fmt.Sprintf("%s%d", processKeyPrefix, id)
}

func sessionKey(processID int64) string {
	return fmt.Sprintf("%s%d", sessionKeyPrefix, processID)
}

func heartbeatKey(processID int64, viewerID string) string {
	return fmt.Sprintf("%s%d:%s", heartbeatKeyPrefix, processID, viewerID)
}
