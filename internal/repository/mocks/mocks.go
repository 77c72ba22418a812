package mocks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/chronicle-dev/chronicle/internal/domain/digest"
	"github.com/chronicle-dev/chronicle/internal/domain/event"
	"github.com/chronicle-dev/chronicle/internal/domain/resource"
	"github.com/chronicle-dev/chronicle/internal/domain/summary"
)

// ResourceRepository is a mock for repository.ResourceRepository.
type ResourceRepository struct {
	mock.Mock
}

func (m *ResourceRepository) Create(ctx context.Context, res *resource.Resource) error {
	args := m.Called(ctx, res)
	return args.Error(0)
}

func (m *ResourceRepository) Get(ctx context.Context, id string) (*resource.Resource, error) {
	args := m.Called(ctx, id)
	if res, ok := args.Get(0).(*resource.Resource); ok {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ResourceRepository) ListByTenant(ctx context.Context, tenantID string) ([]resource.Resource, error) {
	args := m.Called(ctx, tenantID)
	if list, ok := args.Get(0).([]resource.Resource); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// EventRepository is a mock for repository.EventRepository.
type EventRepository struct {
	mock.Mock
}

func (m *EventRepository) Create(ctx context.Context, resourceID string, ev *event.Event) error {
	args := m.Called(ctx, resourceID, ev)
	return args.Error(0)
}

func (m *EventRepository) Get(ctx context.Context, resourceID, id string) (*event.Event, error) {
	args := m.Called(ctx, resourceID, id)
	if ev, ok := args.Get(0).(*event.Event); ok {
		return ev, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *EventRepository) UpdateStatus(ctx context.Context, resourceID, id string, status event.Status) error {
	args := m.Called(ctx, resourceID, id, status)
	return args.Error(0)
}

func (m *EventRepository) UpdateFileChanges(ctx context.Context, resourceID, id string, changes []event.FileChange) error {
	args := m.Called(ctx, resourceID, id, changes)
	return args.Error(0)
}

// DigestRepository is a mock for repository.DigestRepository.
type DigestRepository struct {
	mock.Mock
}

func (m *DigestRepository) Create(ctx context.Context, resourceID string, d *digest.Digest) error {
	args := m.Called(ctx, resourceID, d)
	return args.Error(0)
}

func (m *DigestRepository) Get(ctx context.Context, resourceID, id string) (*digest.Digest, error) {
	args := m.Called(ctx, resourceID, id)
	if d, ok := args.Get(0).(*digest.Digest); ok {
		return d, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *DigestRepository) GetByEvent(ctx context.Context, resourceID, eventID string) (*digest.Digest, error) {
	args := m.Called(ctx, resourceID, eventID)
	if d, ok := args.Get(0).(*digest.Digest); ok {
		return d, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *DigestRepository) ListByRange(ctx context.Context, resourceID string, from, to time.Time) ([]digest.Digest, error) {
	args := m.Called(ctx, resourceID, from, to)
	if list, ok := args.Get(0).([]digest.Digest); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *DigestRepository) ListResourceIDsWithDigests(ctx context.Context, from, to time.Time) ([]string, error) {
	args := m.Called(ctx, from, to)
	if list, ok := args.Get(0).([]string); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// SummaryRepository is a mock for repository.SummaryRepository.
type SummaryRepository struct {
	mock.Mock
}

func (m *SummaryRepository) Create(ctx context.Context, resourceID string, s *summary.Summary) error {
	args := m.Called(ctx, resourceID, s)
	return args.Error(0)
}

func (m *SummaryRepository) Get(ctx context.Context, resourceID string, g summary.Granularity, periodStart time.Time) (*summary.Summary, error) {
	args := m.Called(ctx, resourceID, g, periodStart)
	if s, ok := args.Get(0).(*summary.Summary); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *SummaryRepository) Update(ctx context.Context, resourceID string, s *summary.Summary) error {
	args := m.Called(ctx, resourceID, s)
	return args.Error(0)
}

func (m *SummaryRepository) UpdateStreaming(ctx context.Context, resourceID string, s *summary.Summary) error {
	args := m.Called(ctx, resourceID, s)
	return args.Error(0)
}

func (m *SummaryRepository) Delete(ctx context.Context, resourceID, id string) error {
	args := m.Called(ctx, resourceID, id)
	return args.Error(0)
}

func (m *SummaryRepository) AppendDigestID(ctx context.Context, resourceID, summaryID, digestID string) (bool, error) {
	args := m.Called(ctx, resourceID, summaryID, digestID)
	return args.Bool(0), args.Error(1)
}

func (m *SummaryRepository) ListByRange(ctx context.Context, resourceID string, g summary.Granularity, from, to time.Time) ([]summary.Summary, error) {
	args := m.Called(ctx, resourceID, g, from, to)
	if list, ok := args.Get(0).([]summary.Summary); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// CacheRepository is a mock for repository.CacheRepository.
type CacheRepository struct {
	mock.Mock
}

func (m *CacheRepository) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	args := m.Called(ctx, key)
	if payload, ok := args.Get(0).(json.RawMessage); ok {
		return payload, args.Bool(1), args.Error(2)
	}
	return nil, args.Bool(1), args.Error(2)
}

func (m *CacheRepository) Put(ctx context.Context, key string, payload json.RawMessage, expiresAt time.Time) error {
	args := m.Called(ctx, key, payload, expiresAt)
	return args.Error(0)
}

func (m *CacheRepository) PurgeExpired(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
