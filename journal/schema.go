// journal/schema.go
package journal

const Schema = `
CREATE TABLE IF NOT EXISTS fetches (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	provider TEXT NOT NULL,
	symbol TEXT NOT NULL,
	granularity TEXT NOT NULL,
	since DATETIME NOT NULL,
	until DATETIME NOT NULL,
	cache_hit INTEGER NOT NULL,
	bars INTEGER NOT NULL,
	truncated INTEGER NOT NULL,
	error TEXT NOT NULL,
	started_at DATETIME NOT NULL,
	duration_ms INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fetches_run ON fetches(run_id);
CREATE INDEX IF NOT EXISTS idx_fetches_started ON fetches(started_at);
`
