package postgresql

import (
	"context"
	"database/sql"
	"time"
)

// HeartbeatRepository keeps one row per (process, viewer) pair. Beat
// upserts the row and counts peers still inside the expiry window; Sweep
// clears out everything older than the window.
type HeartbeatRepository struct {
	db *sql.DB
}

func (r *HeartbeatRepository) Beat(ctx context.Context, processID int64, viewerID string, now time.Time, expiry time.Duration) (int, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO heartbeats (process_id, viewer_id, seen_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (process_id, viewer_id) DO UPDATE SET seen_at = EXCLUDED.seen_at
	`, processID, viewerID, now.UTC())
	if err != nil {
		return 0, err
	}

	var count int

	err = r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM heartbeats WHERE process_id = $1 AND seen_at > $2",
		processID, now.UTC().Add(-expiry),
	).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}

func (r *HeartbeatRepository) Sweep(ctx context.Context, now time.Time, expiry time.Duration) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM heartbeats WHERE seen_at <= $1", now.UTC().Add(-expiry))

	return err
}
