package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// HeartbeatRepository maps each (process, viewer) pair to a key with a
// TTL of the expiry window. Redis ages records out by itself, so Beat only
// has to upsert and count, and Sweep has nothing left to do.
type HeartbeatRepository struct {
	client *goredis.Client
}

func (r *HeartbeatRepository) Beat(ctx context.Context, processID int64, viewerID string, now time.Time, expiry time.Duration) (int, error) {
	key := heartbeatKey(processID, viewerID)

	if err := r.client.Set(ctx, key, now.UTC().Format(time.RFC3339), expiry).Err(); err != nil {
		return 0, err
	}

	count := 0
	pattern := fmt.Sprintf("%s%d:*", heartbeatKeyPrefix, processID)

	iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		count++
	}

	if err := iter.Err(); err != nil {
		return 0, err
	}

	return count, nil
}

// Sweep is a no-op: key TTLs already expire stale records.
func (r *HeartbeatRepository) Sweep(_ context.Context, _ time.Time, _ time.Duration) error {
	return nil
}
