package digest

import (
	"context"
	"time"

	"github.com/chronicle-dev/chronicle/internal/domain/event"
	"github.com/chronicle-dev/chronicle/internal/domain/resource"
)

// EventRepository provides event data for digest generation.
type EventRepository interface {
	Get(ctx context.Context, resourceID, id string) (*event.Event, error)
	UpdateStatus(ctx context.Context, resourceID, id string, status event.Status) error
	UpdateFileChanges(ctx context.Context, resourceID, id string, changes []event.FileChange) error
}

// Repository provides persistence for digests.
type Repository interface {
	Create(ctx context.Context, resourceID string, d *Digest) error
	Get(ctx context.Context, resourceID, id string) (*Digest, error)
	GetByEvent(ctx context.Context, resourceID, eventID string) (*Digest, error)
}

// ChangeFetcher fetches normalized file changes for an event, best-effort.
type ChangeFetcher interface {
	FetchChanges(ctx context.Context, res *resource.Resource, ev *event.Event) ([]event.FileChange, error)
}

// Incorporator folds a freshly created digest into open period rollups.
type Incorporator interface {
	IncorporateDigest(ctx context.Context, resourceID, callerTenantID, digestID string, createdAt time.Time) error
}
