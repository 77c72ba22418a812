package resource

import (
	"context"
	"log/slog"
)

// Lister enumerates a tenant's registered resources.
type Lister interface {
	ListByTenant(ctx context.Context, tenantID string) ([]Resource, error)
}

// Service exposes tenant-facing resource operations.
type Service struct {
	resources Lister
	logger    *slog.Logger
}

// NewService creates a resource service.
func NewService(resources Lister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{resources: resources, logger: logger}
}

// ListForTenant returns every resource the tenant owns. The tenant id comes
// from authentication, so no per-resource ownership check applies here.
func (s *Service) ListForTenant(ctx context.Context, tenantID string) ([]Resource, error) {
	if tenantID == "" {
		return nil, ErrUnauthorized
	}
	return s.resources.ListByTenant(ctx, tenantID)
}
