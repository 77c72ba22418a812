package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chronicle-dev/chronicle/internal/domain/digest"
	"github.com/chronicle-dev/chronicle/internal/repository"
	"github.com/chronicle-dev/chronicle/internal/storage"
)

// DigestRepository implements repository.DigestRepository for SQLite
type DigestRepository struct {
	db *DB
}

var _ repository.DigestRepository = (*DigestRepository)(nil)

// NewDigestRepository creates a new DigestRepository
func NewDigestRepository(db *DB) *DigestRepository {
	return &DigestRepository{db: db}
}

// Create inserts a new digest. The UNIQUE constraint on event_id enforces
// at most one digest per event; violations map to ErrConflict.
func (r *DigestRepository) Create(ctx context.Context, resourceID string, d *digest.Digest) error {
	contributors, err := jsonOrNull(d.Contributors, len(d.Contributors) == 0)
	if err != nil {
		return fmt.Errorf("marshal contributors: %w", err)
	}
	impact, err := jsonOrNull(d.Impact, d.Impact == nil)
	if err != nil {
		return fmt.Errorf("marshal impact: %w", err)
	}
	perspectives, err := jsonOrNull(d.Perspectives, len(d.Perspectives) == 0)
	if err != nil {
		return fmt.Errorf("marshal perspectives: %w", err)
	}

	query := `
		INSERT INTO digests (id, resource_id, event_id, title, narrative, category,
			rationale, contributors, impact, perspectives, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		d.ID, resourceID, d.EventID, d.Title, d.Narrative, d.Category,
		d.Rationale, contributors, impact, perspectives, d.CreatedAt.UTC())
	if err != nil {
		if constraintViolation(err, "UNIQUE") {
			return storage.ErrConflict
		}
		if constraintViolation(err, "FOREIGN KEY") {
			return storage.ErrNotFound
		}
		return fmt.Errorf("failed to create digest: %w", err)
	}
	d.ResourceID = resourceID
	return nil
}

// Get retrieves a digest scoped to its resource
func (r *DigestRepository) Get(ctx context.Context, resourceID, id string) (*digest.Digest, error) {
	return r.getWhere(ctx, `id = ? AND resource_id = ?`, id, resourceID)
}

// GetByEvent retrieves the digest for an event, if any
func (r *DigestRepository) GetByEvent(ctx context.Context, resourceID, eventID string) (*digest.Digest, error) {
	return r.getWhere(ctx, `event_id = ? AND resource_id = ?`, eventID, resourceID)
}

func (r *DigestRepository) getWhere(ctx context.Context, where string, args ...any) (*digest.Digest, error) {
	query := `
		SELECT id, resource_id, event_id, title, narrative, category,
			rationale, contributors, impact, perspectives, created_at
		FROM digests WHERE ` + where

	row := r.db.QueryRowContext(ctx, query, args...)
	d, err := scanDigest(row.Scan)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get digest: %w", err)
	}
	return d, nil
}

// ListByRange lists digests for a resource within [from, to), ordered by
// creation time
func (r *DigestRepository) ListByRange(ctx context.Context, resourceID string, from, to time.Time) ([]digest.Digest, error) {
	query := `
		SELECT id, resource_id, event_id, title, narrative, category,
			rationale, contributors, impact, perspectives, created_at
		FROM digests
		WHERE resource_id = ? AND created_at >= ? AND created_at < ?
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, resourceID, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list digests: %w", err)
	}
	defer rows.Close()

	var out []digest.Digest
	for rows.Next() {
		d, err := scanDigest(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan digest: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// ListResourceIDsWithDigests returns the distinct resources that produced
// digests within [from, to). Used by the scheduler to find period rollup
// candidates.
func (r *DigestRepository) ListResourceIDsWithDigests(ctx context.Context, from, to time.Time) ([]string, error) {
	query := `
		SELECT DISTINCT resource_id FROM digests
		WHERE created_at >= ? AND created_at < ?
	`
	rows, err := r.db.QueryContext(ctx, query, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list digest resources: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan resource id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func scanDigest(scan func(dest ...any) error) (*digest.Digest, error) {
	var (
		d            digest.Digest
		contributors sql.NullString
		impact       sql.NullString
		perspectives sql.NullString
	)
	err := scan(&d.ID, &d.ResourceID, &d.EventID, &d.Title, &d.Narrative, &d.Category,
		&d.Rationale, &contributors, &impact, &perspectives, &d.CreatedAt)
	if err != nil {
		return nil, err
	}

	if contributors.Valid && contributors.String != "" {
		if err := json.Unmarshal([]byte(contributors.String), &d.Contributors); err != nil {
			return nil, fmt.Errorf("unmarshal contributors: %w", err)
		}
	}
	if impact.Valid && impact.String != "" {
		if err := json.Unmarshal([]byte(impact.String), &d.Impact); err != nil {
			return nil, fmt.Errorf("unmarshal impact: %w", err)
		}
	}
	if perspectives.Valid && perspectives.String != "" {
		if err := json.Unmarshal([]byte(perspectives.String), &d.Perspectives); err != nil {
			return nil, fmt.Errorf("unmarshal perspectives: %w", err)
		}
	}
	return &d, nil
}

// jsonOrNull serializes v unless empty is true, in which case the column
// stays NULL.
func jsonOrNull(v any, empty bool) (any, error) {
	if empty {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
