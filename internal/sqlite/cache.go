package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chronicle-dev/chronicle/internal/repository"
)

// CacheRepository implements repository.CacheRepository for SQLite
type CacheRepository struct {
	db *DB
}

var _ repository.CacheRepository = (*CacheRepository)(nil)

// NewCacheRepository creates a new CacheRepository
func NewCacheRepository(db *DB) *CacheRepository {
	return &CacheRepository{db: db}
}

// Get returns the payload for key when present and unexpired. Expired rows
// are treated as absent; PurgeExpired reclaims them.
func (r *CacheRepository) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	var (
		payload   string
		expiresAt time.Time
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT payload, expires_at FROM gen_cache WHERE cache_key = ?`, key).
		Scan(&payload, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}
	if !time.Now().Before(expiresAt) {
		return nil, false, nil
	}
	return json.RawMessage(payload), true, nil
}

// Put upserts the payload for key with the given expiry
func (r *CacheRepository) Put(ctx context.Context, key string, payload json.RawMessage, expiresAt time.Time) error {
	query := `
		INSERT INTO gen_cache (cache_key, payload, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET payload = excluded.payload, expires_at = excluded.expires_at
	`
	if _, err := r.db.ExecContext(ctx, query, key, string(payload), expiresAt.UTC()); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// PurgeExpired deletes expired cache rows
func (r *CacheRepository) PurgeExpired(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM gen_cache WHERE expires_at <= ?`, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to purge cache: %w", err)
	}
	return nil
}
