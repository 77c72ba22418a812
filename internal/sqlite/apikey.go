package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/chronicle-dev/chronicle/internal/repository"
	"github.com/chronicle-dev/chronicle/internal/storage"
)

// APIKeyRepository implements repository.APIKeyRepository for SQLite
type APIKeyRepository struct {
	db *DB
}

var _ repository.APIKeyRepository = (*APIKeyRepository)(nil)

// NewAPIKeyRepository creates a new APIKeyRepository
func NewAPIKeyRepository(db *DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// ResolveTenant returns the tenant owning the token hash
func (r *APIKeyRepository) ResolveTenant(ctx context.Context, tokenHash string) (string, error) {
	var tenantID string
	err := r.db.QueryRowContext(ctx,
		`SELECT tenant_id FROM api_keys WHERE token_hash = ?`, tokenHash).Scan(&tenantID)
	if err == sql.ErrNoRows {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve api key: %w", err)
	}
	return tenantID, nil
}
