package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/chronicle-dev/chronicle/internal/domain/resource"
	"github.com/chronicle-dev/chronicle/internal/storage"
)

// Repository provides persistence for events.
type Repository interface {
	Create(ctx context.Context, resourceID string, ev *Event) error
	Get(ctx context.Context, resourceID, id string) (*Event, error)
}

// Service records and reads activity events. Payload parsing happens
// upstream; this service accepts already-normalized events.
type Service struct {
	guard  *resource.Guard
	events Repository
	logger *slog.Logger
}

// NewService creates an event service.
func NewService(guard *resource.Guard, events Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{guard: guard, events: events, logger: logger}
}

// CreateRequest describes an event to record.
type CreateRequest struct {
	Kind       Kind      `json:"kind"`
	Payload    Payload   `json:"payload"`
	Actor      string    `json:"actor"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Record persists a new event for the resource.
func (s *Service) Record(ctx context.Context, resourceID, callerTenantID string, req CreateRequest) (*Event, error) {
	if _, err := s.guard.Verify(ctx, resourceID, callerTenantID); err != nil {
		return nil, err
	}

	if req.Kind == "" {
		req.Kind = KindUnknown
	}
	if req.OccurredAt.IsZero() {
		return nil, fmt.Errorf("%w: occurred_at is required", ErrInvalidInput)
	}

	ev := &Event{
		ID:         uuid.NewString(),
		ResourceID: resourceID,
		Kind:       req.Kind,
		Payload:    req.Payload,
		Actor:      req.Actor,
		OccurredAt: req.OccurredAt.UTC(),
		Status:     StatusPending,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.events.Create(ctx, resourceID, ev); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}

	s.logger.Info("event recorded", "event_id", ev.ID, "resource_id", resourceID, "kind", ev.Kind)
	return ev, nil
}

// Get returns one event, tenant-scoped.
func (s *Service) Get(ctx context.Context, resourceID, callerTenantID, id string) (*Event, error) {
	if _, err := s.guard.Verify(ctx, resourceID, callerTenantID); err != nil {
		return nil, err
	}
	ev, err := s.events.Get(ctx, resourceID, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrEventNotFound
	}
	return ev, err
}
