package postgresql

var migrations = map[int]string{
	1: `
		CREATE TABLE IF NOT EXISTS processes (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			xml_content TEXT NOT NULL,
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS sessions (
			process_id BIGINT PRIMARY KEY REFERENCES processes(id) ON DELETE CASCADE,
			current_task_id TEXT NOT NULL DEFAULT '',
			log JSONB NOT NULL DEFAULT '[]',
			is_finished BOOLEAN NOT NULL DEFAULT FALSE,
			version BIGINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS heartbeats (
			process_id BIGINT NOT NULL,
			viewer_id TEXT NOT NULL,
			seen_at TIMESTAMP WITH TIME ZONE NOT NULL,
			PRIMARY KEY (process_id, viewer_id)
		);

		CREATE INDEX IF NOT EXISTS idx_heartbeats_seen_at ON heartbeats(seen_at);
	`,
}
