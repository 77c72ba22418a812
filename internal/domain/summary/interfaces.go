package summary

import (
	"context"
	"time"

	"github.com/chronicle-dev/chronicle/internal/domain/digest"
)

// Repository provides persistence for summaries.
type Repository interface {
	Create(ctx context.Context, resourceID string, s *Summary) error
	Get(ctx context.Context, resourceID string, g Granularity, periodStart time.Time) (*Summary, error)
	Update(ctx context.Context, resourceID string, s *Summary) error
	// UpdateStreaming writes the row only while its stored state is still
	// streaming; once it has settled the write fails with a conflict.
	UpdateStreaming(ctx context.Context, resourceID string, s *Summary) error
	Delete(ctx context.Context, resourceID, id string) error
	AppendDigestID(ctx context.Context, resourceID, summaryID, digestID string) (bool, error)
	ListByRange(ctx context.Context, resourceID string, g Granularity, from, to time.Time) ([]Summary, error)
}

// DigestRepository provides the digests a summary rolls up.
type DigestRepository interface {
	Get(ctx context.Context, resourceID, id string) (*digest.Digest, error)
	ListByRange(ctx context.Context, resourceID string, from, to time.Time) ([]digest.Digest, error)
}
