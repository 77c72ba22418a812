package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chronicle-dev/chronicle/internal/domain/event"
	"github.com/chronicle-dev/chronicle/internal/repository"
	"github.com/chronicle-dev/chronicle/internal/storage"
)

// EventRepository implements repository.EventRepository for SQLite
type EventRepository struct {
	db *DB
}

var _ repository.EventRepository = (*EventRepository)(nil)

// NewEventRepository creates a new EventRepository
func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create inserts a new event
func (r *EventRepository) Create(ctx context.Context, resourceID string, ev *event.Event) error {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	if ev.Status == "" {
		ev.Status = event.StatusPending
	}

	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	changes, err := jsonOrNull(ev.FileChanges, len(ev.FileChanges) == 0)
	if err != nil {
		return fmt.Errorf("marshal file changes: %w", err)
	}

	query := `
		INSERT INTO events (id, resource_id, kind, payload, actor, occurred_at, status, file_changes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		ev.ID, resourceID, ev.Kind, string(payload), ev.Actor,
		ev.OccurredAt.UTC(), ev.Status, changes, ev.CreatedAt)
	if err != nil {
		if constraintViolation(err, "FOREIGN KEY") {
			return storage.ErrNotFound
		}
		if constraintViolation(err, "UNIQUE") {
			return storage.ErrConflict
		}
		return fmt.Errorf("failed to create event: %w", err)
	}
	ev.ResourceID = resourceID
	return nil
}

// Get retrieves an event scoped to its resource
func (r *EventRepository) Get(ctx context.Context, resourceID, id string) (*event.Event, error) {
	query := `
		SELECT id, resource_id, kind, payload, actor, occurred_at, status, file_changes, created_at
		FROM events WHERE id = ? AND resource_id = ?
	`
	var (
		ev      event.Event
		payload string
		changes sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, id, resourceID).Scan(
		&ev.ID, &ev.ResourceID, &ev.Kind, &payload, &ev.Actor,
		&ev.OccurredAt, &ev.Status, &changes, &ev.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	if err := json.Unmarshal([]byte(payload), &ev.Payload); err != nil {
		return nil, fmt.Errorf("unmarshal event payload: %w", err)
	}
	if changes.Valid && changes.String != "" {
		if err := json.Unmarshal([]byte(changes.String), &ev.FileChanges); err != nil {
			return nil, fmt.Errorf("unmarshal file changes: %w", err)
		}
	}
	return &ev, nil
}

// UpdateStatus sets the processing status of an event
func (r *EventRepository) UpdateStatus(ctx context.Context, resourceID, id string, status event.Status) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE events SET status = ? WHERE id = ? AND resource_id = ?`,
		status, id, resourceID)
	if err != nil {
		return fmt.Errorf("failed to update event status: %w", err)
	}
	return requireRow(result)
}

// UpdateFileChanges persists normalized diff data onto an event
func (r *EventRepository) UpdateFileChanges(ctx context.Context, resourceID, id string, changes []event.FileChange) error {
	data, err := jsonOrNull(changes, len(changes) == 0)
	if err != nil {
		return fmt.Errorf("marshal file changes: %w", err)
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE events SET file_changes = ? WHERE id = ? AND resource_id = ?`,
		data, id, resourceID)
	if err != nil {
		return fmt.Errorf("failed to update file changes: %w", err)
	}
	return requireRow(result)
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
