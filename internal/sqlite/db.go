package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection
type DB struct {
	*sql.DB
}

// New creates a new SQLite database connection
func New(dataSourceName string) (*DB, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite pragma %q: %w", p, err)
		}
	}

	return &DB{db}, nil
}

// RunMigrations creates the schema. Every table is partitioned by the
// tenant-resource id; digests and summaries carry time indexes for range
// scans.
func (db *DB) RunMigrations() error {
	migration := `
-- Tenant resources
CREATE TABLE IF NOT EXISTS resources (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    provider TEXT NOT NULL DEFAULT 'github',
    external_ref TEXT NOT NULL DEFAULT '',
    model_tier TEXT NOT NULL DEFAULT 'fast' CHECK(model_tier IN ('fast', 'quality')),
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_tenant_resources ON resources(tenant_id);

-- Bearer tokens
CREATE TABLE IF NOT EXISTS api_keys (
    token_hash TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_tenant_api_keys ON api_keys(tenant_id);

-- Activity events
CREATE TABLE IF NOT EXISTS events (
    id TEXT PRIMARY KEY,
    resource_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    payload TEXT NOT NULL DEFAULT '{}',
    actor TEXT NOT NULL DEFAULT '',
    occurred_at TIMESTAMP NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending'
        CHECK(status IN ('pending', 'processing', 'completed', 'failed', 'skipped')),
    file_changes TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (resource_id) REFERENCES resources(id)
);
CREATE INDEX IF NOT EXISTS idx_resource_events ON events(resource_id, occurred_at);

-- Digests: at most one per event
CREATE TABLE IF NOT EXISTS digests (
    id TEXT PRIMARY KEY,
    resource_id TEXT NOT NULL,
    event_id TEXT NOT NULL UNIQUE,
    title TEXT NOT NULL,
    narrative TEXT NOT NULL,
    category TEXT NOT NULL
        CHECK(category IN ('feature', 'bugfix', 'refactor', 'docs', 'chore', 'security')),
    rationale TEXT NOT NULL DEFAULT '',
    contributors TEXT,
    impact TEXT,
    perspectives TEXT,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY (resource_id) REFERENCES resources(id),
    FOREIGN KEY (event_id) REFERENCES events(id)
);
CREATE INDEX IF NOT EXISTS idx_resource_digests ON digests(resource_id, created_at);

-- Period rollups: one per (resource, granularity, period start)
CREATE TABLE IF NOT EXISTS summaries (
    id TEXT PRIMARY KEY,
    resource_id TEXT NOT NULL,
    granularity TEXT NOT NULL CHECK(granularity IN ('daily', 'weekly', 'monthly')),
    period_start TIMESTAMP NOT NULL,
    headline TEXT NOT NULL DEFAULT '',
    accomplishments TEXT,
    key_features TEXT,
    breakdown TEXT,
    total_items INTEGER NOT NULL DEFAULT 0,
    digest_ids TEXT,
    state TEXT NOT NULL DEFAULT 'streaming' CHECK(state IN ('streaming', 'settled')),
    updated_at TIMESTAMP NOT NULL,
    UNIQUE(resource_id, granularity, period_start),
    FOREIGN KEY (resource_id) REFERENCES resources(id)
);
CREATE INDEX IF NOT EXISTS idx_resource_summaries ON summaries(resource_id, period_start);

-- Content-addressed generation cache; cache_key embeds the resource id
CREATE TABLE IF NOT EXISTS gen_cache (
    cache_key TEXT PRIMARY KEY,
    payload TEXT NOT NULL,
    expires_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_gen_cache_expiry ON gen_cache(expires_at);
`
	if _, err := db.Exec(migration); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
