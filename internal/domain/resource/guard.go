package resource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/chronicle-dev/chronicle/internal/storage"
)

// Repository provides persistence for resources.
type Repository interface {
	Create(ctx context.Context, res *Resource) error
	Get(ctx context.Context, id string) (*Resource, error)
}

// Guard verifies tenant ownership of a resource. Every service entry point
// calls Verify before doing any work; its failure is never retried and
// never swallowed.
type Guard struct {
	resources Repository
	logger    *slog.Logger
}

// NewGuard creates a new ownership guard.
func NewGuard(resources Repository, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{resources: resources, logger: logger}
}

// Verify loads the resource and checks that callerTenantID owns it.
// A missing resource and an ownership mismatch both return ErrUnauthorized.
func (g *Guard) Verify(ctx context.Context, resourceID, callerTenantID string) (*Resource, error) {
	if resourceID == "" || callerTenantID == "" {
		return nil, ErrUnauthorized
	}

	res, err := g.resources.Get(ctx, resourceID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("load resource: %w", err)
	}

	if res.TenantID != callerTenantID {
		g.logger.Warn("ownership mismatch",
			"resource_id", resourceID,
			"caller_tenant", callerTenantID)
		return nil, ErrUnauthorized
	}

	return res, nil
}
