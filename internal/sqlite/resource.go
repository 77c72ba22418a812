package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/chronicle-dev/chronicle/internal/domain/resource"
	"github.com/chronicle-dev/chronicle/internal/repository"
	"github.com/chronicle-dev/chronicle/internal/storage"
)

// ResourceRepository implements repository.ResourceRepository for SQLite
type ResourceRepository struct {
	db *DB
}

var _ repository.ResourceRepository = (*ResourceRepository)(nil)

// NewResourceRepository creates a new ResourceRepository
func NewResourceRepository(db *DB) *ResourceRepository {
	return &ResourceRepository{db: db}
}

// Create inserts a new resource
func (r *ResourceRepository) Create(ctx context.Context, res *resource.Resource) error {
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now().UTC()
	}
	if res.ModelTier == "" {
		res.ModelTier = resource.TierFast
	}

	query := `
		INSERT INTO resources (id, tenant_id, name, provider, external_ref, model_tier, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		res.ID, res.TenantID, res.Name, res.Provider, res.ExternalRef, res.ModelTier, res.CreatedAt)
	if err != nil {
		if constraintViolation(err, "UNIQUE") {
			return storage.ErrConflict
		}
		return fmt.Errorf("failed to create resource: %w", err)
	}
	return nil
}

// Get retrieves a resource by ID
func (r *ResourceRepository) Get(ctx context.Context, id string) (*resource.Resource, error) {
	query := `
		SELECT id, tenant_id, name, provider, external_ref, model_tier, created_at
		FROM resources WHERE id = ?
	`
	var res resource.Resource
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&res.ID, &res.TenantID, &res.Name, &res.Provider, &res.ExternalRef, &res.ModelTier, &res.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get resource: %w", err)
	}
	return &res, nil
}

// ListByTenant lists all resources a tenant owns
func (r *ResourceRepository) ListByTenant(ctx context.Context, tenantID string) ([]resource.Resource, error) {
	query := `
		SELECT id, tenant_id, name, provider, external_ref, model_tier, created_at
		FROM resources WHERE tenant_id = ? ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	defer rows.Close()

	var out []resource.Resource
	for rows.Next() {
		var res resource.Resource
		if err := rows.Scan(&res.ID, &res.TenantID, &res.Name, &res.Provider,
			&res.ExternalRef, &res.ModelTier, &res.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan resource: %w", err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}
