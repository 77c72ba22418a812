package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/chronicle-dev/chronicle/internal/domain/digest"
	"github.com/chronicle-dev/chronicle/internal/domain/event"
	"github.com/chronicle-dev/chronicle/internal/domain/resource"
	"github.com/chronicle-dev/chronicle/internal/domain/summary"
)

// ResourceRepository manages tenant-resource persistence
type ResourceRepository interface {
	Create(ctx context.Context, res *resource.Resource) error
	Get(ctx context.Context, id string) (*resource.Resource, error)
	ListByTenant(ctx context.Context, tenantID string) ([]resource.Resource, error)
}

// EventRepository manages activity event persistence
type EventRepository interface {
	Create(ctx context.Context, resourceID string, ev *event.Event) error
	Get(ctx context.Context, resourceID, id string) (*event.Event, error)
	UpdateStatus(ctx context.Context, resourceID, id string, status event.Status) error
	UpdateFileChanges(ctx context.Context, resourceID, id string, changes []event.FileChange) error
}

// DigestRepository manages digest persistence
type DigestRepository interface {
	Create(ctx context.Context, resourceID string, d *digest.Digest) error
	Get(ctx context.Context, resourceID, id string) (*digest.Digest, error)
	GetByEvent(ctx context.Context, resourceID, eventID string) (*digest.Digest, error)
	ListByRange(ctx context.Context, resourceID string, from, to time.Time) ([]digest.Digest, error)
	ListResourceIDsWithDigests(ctx context.Context, from, to time.Time) ([]string, error)
}

// SummaryRepository manages period-rollup persistence
type SummaryRepository interface {
	// Create inserts a new summary; storage.ErrConflict if one already
	// exists for (resource, granularity, period start).
	Create(ctx context.Context, resourceID string, s *summary.Summary) error
	Get(ctx context.Context, resourceID string, g summary.Granularity, periodStart time.Time) (*summary.Summary, error)
	// Update writes the current summary state unconditionally. Only digest
	// incorporation may apply it to a settled row.
	Update(ctx context.Context, resourceID string, s *summary.Summary) error
	// UpdateStreaming writes the row only while its stored state is still
	// streaming; storage.ErrConflict once it has settled. Settling through
	// this method is atomic with the state check.
	UpdateStreaming(ctx context.Context, resourceID string, s *summary.Summary) error
	Delete(ctx context.Context, resourceID, id string) error
	// AppendDigestID atomically appends digestID to the included set if
	// absent. Returns false when it was already present.
	AppendDigestID(ctx context.Context, resourceID, summaryID, digestID string) (bool, error)
	ListByRange(ctx context.Context, resourceID string, g summary.Granularity, from, to time.Time) ([]summary.Summary, error)
}

// CacheRepository manages the content-addressed generation cache
type CacheRepository interface {
	// Get returns the stored payload for key when present and unexpired.
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)
	// Put upserts the payload for key with the given expiry.
	Put(ctx context.Context, key string, payload json.RawMessage, expiresAt time.Time) error
	PurgeExpired(ctx context.Context) error
}

// APIKeyRepository resolves bearer tokens to tenants
type APIKeyRepository interface {
	ResolveTenant(ctx context.Context, tokenHash string) (string, error)
}
