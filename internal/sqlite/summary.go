package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/chronicle-dev/chronicle/internal/domain/digest"
	"github.com/chronicle-dev/chronicle/internal/domain/summary"
	"github.com/chronicle-dev/chronicle/internal/repository"
	"github.com/chronicle-dev/chronicle/internal/storage"
)

// SummaryRepository implements repository.SummaryRepository for SQLite
type SummaryRepository struct {
	db *DB
}

var _ repository.SummaryRepository = (*SummaryRepository)(nil)

// NewSummaryRepository creates a new SummaryRepository
func NewSummaryRepository(db *DB) *SummaryRepository {
	return &SummaryRepository{db: db}
}

// Create inserts a new summary. The UNIQUE constraint on
// (resource_id, granularity, period_start) is the race gate for concurrent
// generation; violations map to ErrConflict.
func (r *SummaryRepository) Create(ctx context.Context, resourceID string, s *summary.Summary) error {
	cols, err := marshalSummaryColumns(s)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO summaries (id, resource_id, granularity, period_start, headline,
			accomplishments, key_features, breakdown, total_items, digest_ids, state, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		s.ID, resourceID, s.Granularity, s.PeriodStart.UTC(), s.Headline,
		cols.accomplishments, cols.keyFeatures, cols.breakdown,
		s.TotalItems, cols.digestIDs, s.State, s.UpdatedAt.UTC())
	if err != nil {
		if constraintViolation(err, "UNIQUE") {
			return storage.ErrConflict
		}
		if constraintViolation(err, "FOREIGN KEY") {
			return storage.ErrNotFound
		}
		return fmt.Errorf("failed to create summary: %w", err)
	}
	s.ResourceID = resourceID
	return nil
}

// Get retrieves the summary for one period
func (r *SummaryRepository) Get(ctx context.Context, resourceID string, g summary.Granularity, periodStart time.Time) (*summary.Summary, error) {
	query := selectSummary + ` WHERE resource_id = ? AND granularity = ? AND period_start = ?`
	row := r.db.QueryRowContext(ctx, query, resourceID, g, periodStart.UTC())
	s, err := scanSummary(row.Scan)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get summary: %w", err)
	}
	return s, nil
}

// Update writes the full summary state
func (r *SummaryRepository) Update(ctx context.Context, resourceID string, s *summary.Summary) error {
	cols, err := marshalSummaryColumns(s)
	if err != nil {
		return err
	}

	query := `
		UPDATE summaries
		SET headline = ?, accomplishments = ?, key_features = ?, breakdown = ?,
			total_items = ?, digest_ids = ?, state = ?, updated_at = ?
		WHERE id = ? AND resource_id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		s.Headline, cols.accomplishments, cols.keyFeatures, cols.breakdown,
		s.TotalItems, cols.digestIDs, s.State, s.UpdatedAt.UTC(),
		s.ID, resourceID)
	if err != nil {
		return fmt.Errorf("failed to update summary: %w", err)
	}
	return requireRow(result)
}

// UpdateStreaming writes the summary only while the stored row is still
// streaming. The state predicate makes settling atomic: once a row has
// settled, every further streaming write loses with ErrConflict.
func (r *SummaryRepository) UpdateStreaming(ctx context.Context, resourceID string, s *summary.Summary) error {
	cols, err := marshalSummaryColumns(s)
	if err != nil {
		return err
	}

	query := `
		UPDATE summaries
		SET headline = ?, accomplishments = ?, key_features = ?, breakdown = ?,
			total_items = ?, digest_ids = ?, state = ?, updated_at = ?
		WHERE id = ? AND resource_id = ? AND state = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		s.Headline, cols.accomplishments, cols.keyFeatures, cols.breakdown,
		s.TotalItems, cols.digestIDs, s.State, s.UpdatedAt.UTC(),
		s.ID, resourceID, summary.StateStreaming)
	if err != nil {
		return fmt.Errorf("failed to update streaming summary: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check streaming update: %w", err)
	}
	if rows == 0 {
		// Missing rows also land here; callers only ever stream-write a
		// summary they created, so a zero count means it settled.
		return storage.ErrConflict
	}
	return nil
}

// Delete removes a summary
func (r *SummaryRepository) Delete(ctx context.Context, resourceID, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM summaries WHERE id = ? AND resource_id = ?`, id, resourceID)
	if err != nil {
		return fmt.Errorf("failed to delete summary: %w", err)
	}
	return requireRow(result)
}

// AppendDigestID appends digestID to the included set if absent, inside a
// transaction so concurrent incorporations can't drop each other's ids.
// Returns false when the id was already present.
func (r *SummaryRepository) AppendDigestID(ctx context.Context, resourceID, summaryID, digestID string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin append tx: %w", err)
	}
	defer tx.Rollback()

	var ids sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT digest_ids FROM summaries WHERE id = ? AND resource_id = ?`,
		summaryID, resourceID).Scan(&ids)
	if err == sql.ErrNoRows {
		return false, storage.ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("read digest ids: %w", err)
	}

	var digestIDs []string
	if ids.Valid && ids.String != "" {
		if err := json.Unmarshal([]byte(ids.String), &digestIDs); err != nil {
			return false, fmt.Errorf("unmarshal digest ids: %w", err)
		}
	}
	if slices.Contains(digestIDs, digestID) {
		return false, nil
	}
	digestIDs = append(digestIDs, digestID)

	data, err := json.Marshal(digestIDs)
	if err != nil {
		return false, fmt.Errorf("marshal digest ids: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE summaries SET digest_ids = ? WHERE id = ? AND resource_id = ?`,
		string(data), summaryID, resourceID); err != nil {
		return false, fmt.Errorf("write digest ids: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit append tx: %w", err)
	}
	return true, nil
}

// ListByRange lists summaries with period_start within [from, to)
func (r *SummaryRepository) ListByRange(ctx context.Context, resourceID string, g summary.Granularity, from, to time.Time) ([]summary.Summary, error) {
	query := selectSummary + `
		WHERE resource_id = ? AND granularity = ? AND period_start >= ? AND period_start < ?
		ORDER BY period_start`
	rows, err := r.db.QueryContext(ctx, query, resourceID, g, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list summaries: %w", err)
	}
	defer rows.Close()

	var out []summary.Summary
	for rows.Next() {
		s, err := scanSummary(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

const selectSummary = `
	SELECT id, resource_id, granularity, period_start, headline,
		accomplishments, key_features, breakdown, total_items, digest_ids, state, updated_at
	FROM summaries`

type summaryColumns struct {
	accomplishments any
	keyFeatures     any
	breakdown       any
	digestIDs       any
}

func marshalSummaryColumns(s *summary.Summary) (summaryColumns, error) {
	var cols summaryColumns
	var err error
	if cols.accomplishments, err = jsonOrNull(s.Accomplishments, len(s.Accomplishments) == 0); err != nil {
		return cols, fmt.Errorf("marshal accomplishments: %w", err)
	}
	if cols.keyFeatures, err = jsonOrNull(s.KeyFeatures, len(s.KeyFeatures) == 0); err != nil {
		return cols, fmt.Errorf("marshal key features: %w", err)
	}
	if cols.breakdown, err = jsonOrNull(s.Breakdown, len(s.Breakdown) == 0); err != nil {
		return cols, fmt.Errorf("marshal breakdown: %w", err)
	}
	if cols.digestIDs, err = jsonOrNull(s.DigestIDs, len(s.DigestIDs) == 0); err != nil {
		return cols, fmt.Errorf("marshal digest ids: %w", err)
	}
	return cols, nil
}

func scanSummary(scan func(dest ...any) error) (*summary.Summary, error) {
	var (
		s               summary.Summary
		accomplishments sql.NullString
		keyFeatures     sql.NullString
		breakdown       sql.NullString
		digestIDs       sql.NullString
	)
	err := scan(&s.ID, &s.ResourceID, &s.Granularity, &s.PeriodStart, &s.Headline,
		&accomplishments, &keyFeatures, &breakdown, &s.TotalItems, &digestIDs, &s.State, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if accomplishments.Valid && accomplishments.String != "" {
		if err := json.Unmarshal([]byte(accomplishments.String), &s.Accomplishments); err != nil {
			return nil, fmt.Errorf("unmarshal accomplishments: %w", err)
		}
	}
	if keyFeatures.Valid && keyFeatures.String != "" {
		if err := json.Unmarshal([]byte(keyFeatures.String), &s.KeyFeatures); err != nil {
			return nil, fmt.Errorf("unmarshal key features: %w", err)
		}
	}
	if breakdown.Valid && breakdown.String != "" {
		s.Breakdown = make(map[digest.Category]summary.BreakdownEntry)
		if err := json.Unmarshal([]byte(breakdown.String), &s.Breakdown); err != nil {
			return nil, fmt.Errorf("unmarshal breakdown: %w", err)
		}
	}
	if digestIDs.Valid && digestIDs.String != "" {
		if err := json.Unmarshal([]byte(digestIDs.String), &s.DigestIDs); err != nil {
			return nil, fmt.Errorf("unmarshal digest ids: %w", err)
		}
	}
	s.PeriodStart = s.PeriodStart.UTC()
	return &s, nil
}
