package summary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/chronicle-dev/chronicle/internal/ai"
	"github.com/chronicle-dev/chronicle/internal/domain/digest"
	"github.com/chronicle-dev/chronicle/internal/domain/resource"
	"github.com/chronicle-dev/chronicle/internal/retry"
	"github.com/chronicle-dev/chronicle/internal/storage"
)

// mergeBatchSize is how many digests are folded into the rollup per
// provider call during a full period generation.
const mergeBatchSize = 10

// Service creates, looks up, and incrementally updates period rollups.
// There is no deterministic fallback at this level: generation failures
// surface to the trigger, which owns retry-on-next-tick.
type Service struct {
	guard         *resource.Guard
	summaries     Repository
	digests       DigestRepository
	generator     ai.Generator
	retry         *retry.Policy
	writeInterval time.Duration
	now           func() time.Time
	logger        *slog.Logger
}

// NewService creates a summary service.
func NewService(
	guard *resource.Guard,
	summaries Repository,
	digests DigestRepository,
	generator ai.Generator,
	retryPolicy *retry.Policy,
	writeInterval time.Duration,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		guard:         guard,
		summaries:     summaries,
		digests:       digests,
		generator:     generator,
		retry:         retryPolicy,
		writeInterval: writeInterval,
		now:           time.Now,
		logger:        logger,
	}
}

// SetClock overrides the current-time source. Test hook.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// GenerateForPeriod builds the rollup for one period. Returns (nil, nil)
// when the period has no digests: absence means "not yet generated", never
// an error. Safe against concurrent triggers for the same period; the
// unique (resource, granularity, period start) insert is the race gate.
func (s *Service) GenerateForPeriod(ctx context.Context, resourceID, callerTenantID string, g Granularity, periodStart time.Time) (*Summary, error) {
	if !g.Valid() {
		return nil, ErrInvalidGranularity
	}

	res, err := s.guard.Verify(ctx, resourceID, callerTenantID)
	if err != nil {
		return nil, err
	}

	start := PeriodStart(periodStart, g)
	end := PeriodEnd(start, g)

	// Existence re-check before any work: a concurrent cron tick or
	// on-demand trigger may already have built this period.
	if existing, err := s.summaries.Get(ctx, resourceID, g, start); err == nil {
		return existing, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("check existing summary: %w", err)
	}

	digests, err := s.digests.ListByRange(ctx, resourceID, start, end)
	if err != nil {
		return nil, fmt.Errorf("list period digests: %w", err)
	}
	if len(digests) == 0 {
		// Never create an empty summary.
		return nil, nil
	}

	placeholder := &Summary{
		ID:          uuid.NewString(),
		ResourceID:  resourceID,
		Granularity: g,
		PeriodStart: start,
		State:       StateStreaming,
		UpdatedAt:   s.now().UTC(),
	}
	if err := s.summaries.Create(ctx, resourceID, placeholder); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			if existing, getErr := s.summaries.Get(ctx, resourceID, g, start); getErr == nil {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("create summary placeholder: %w", err)
	}

	final, err := s.streamMerge(ctx, res, placeholder, digests, g)
	if errors.Is(err, ErrSummarySettled) {
		// Digest incorporation settled this period mid-stream. The settled
		// row is the winner and must survive; never delete it.
		if settled, getErr := s.summaries.Get(ctx, resourceID, g, start); getErr == nil {
			return settled, nil
		}
		return nil, err
	}
	if err != nil {
		// Remove the placeholder so the next trigger can regenerate the
		// period instead of finding a permanently streaming stub.
		if delErr := s.summaries.Delete(ctx, resourceID, placeholder.ID); delErr != nil {
			s.logger.Error("delete failed summary placeholder", "summary_id", placeholder.ID, "error", delErr)
		}
		return nil, err
	}

	s.logger.Info("summary generated",
		"resource_id", resourceID,
		"granularity", g,
		"period_start", start,
		"total_items", final.TotalItems)
	return final, nil
}

// streamMerge folds the digests into the placeholder batch by batch,
// applying throttled partial writes while streaming, then settles. Every
// write goes through UpdateStreaming, so a row that settled underneath us
// rejects the remainder of the stream with ErrSummarySettled.
func (s *Service) streamMerge(ctx context.Context, res *resource.Resource, target *Summary, digests []digest.Digest, g Granularity) (*Summary, error) {
	writer := &throttledWriter{interval: s.writeInterval, now: s.now}
	current := narrative{}

	for i := 0; i < len(digests); i += mergeBatchSize {
		batch := digests[i:min(i+mergeBatchSize, len(digests))]
		merged, err := s.merge(ctx, res, current, batch, g)
		if err != nil {
			return nil, fmt.Errorf("merge summary batch: %w", err)
		}
		current = merged

		target.Headline = current.Headline
		target.Accomplishments = current.Accomplishments
		target.KeyFeatures = current.KeyFeatures
		for _, d := range batch {
			if !slices.Contains(target.DigestIDs, d.ID) {
				target.DigestIDs = append(target.DigestIDs, d.ID)
			}
		}
		target.Breakdown, target.TotalItems = ComputeBreakdown(digests[:min(i+mergeBatchSize, len(digests))])
		target.UpdatedAt = s.now().UTC()

		if err := writer.write(ctx, s.summaries, res.ID, target); err != nil {
			if errors.Is(err, storage.ErrConflict) {
				return nil, ErrSummarySettled
			}
			s.logger.Warn("partial summary write failed", "summary_id", target.ID, "error", err)
		}
	}

	target.Breakdown, target.TotalItems = ComputeBreakdown(digests)
	target.State = StateSettled
	target.UpdatedAt = s.now().UTC()
	if err := s.summaries.UpdateStreaming(ctx, res.ID, target); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, ErrSummarySettled
		}
		return nil, fmt.Errorf("settle summary: %w", err)
	}
	return target, nil
}

// IncorporateDigest folds one freshly created digest into every rollup
// whose currently open period contains its timestamp. Closed periods are
// immutable and skipped; missing summaries are created lazily later, so
// absence is a no-op. A failed merge leaves the prior settled summary
// untouched.
func (s *Service) IncorporateDigest(ctx context.Context, resourceID, callerTenantID, digestID string, createdAt time.Time) error {
	res, err := s.guard.Verify(ctx, resourceID, callerTenantID)
	if err != nil {
		return err
	}

	d, err := s.digests.Get(ctx, resourceID, digestID)
	if errors.Is(err, storage.ErrNotFound) {
		return digest.ErrDigestNotFound
	}
	if err != nil {
		return fmt.Errorf("load digest: %w", err)
	}

	now := s.now()
	var firstErr error
	for _, g := range Granularities {
		if !InOpenPeriod(createdAt, now, g) {
			continue
		}
		if err := s.incorporateOne(ctx, res, d, g, createdAt); err != nil {
			s.logger.Error("incorporate digest failed",
				"resource_id", resourceID,
				"digest_id", digestID,
				"granularity", g,
				"error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (s *Service) incorporateOne(ctx context.Context, res *resource.Resource, d *digest.Digest, g Granularity, createdAt time.Time) error {
	start := PeriodStart(createdAt, g)

	existing, err := s.summaries.Get(ctx, res.ID, g, start)
	if errors.Is(err, storage.ErrNotFound) {
		// Created lazily by the next full generation.
		return nil
	}
	if err != nil {
		return fmt.Errorf("load summary: %w", err)
	}

	if slices.Contains(existing.DigestIDs, d.ID) {
		return nil
	}

	prior := narrative{
		Headline:        existing.Headline,
		Accomplishments: existing.Accomplishments,
		KeyFeatures:     existing.KeyFeatures,
	}
	merged, err := s.merge(ctx, res, prior, []digest.Digest{*d}, g)
	if err != nil {
		return fmt.Errorf("merge digest into summary: %w", err)
	}

	// Append-if-absent at the repository level so concurrent
	// incorporations can't drop each other's ids.
	appended, err := s.summaries.AppendDigestID(ctx, res.ID, existing.ID, d.ID)
	if err != nil {
		return fmt.Errorf("append digest id: %w", err)
	}
	if !appended {
		return nil
	}

	// Recompute the breakdown from the authoritative included set, never
	// as a delta on the prior histogram.
	end := PeriodEnd(start, g)
	all, err := s.digests.ListByRange(ctx, res.ID, start, end)
	if err != nil {
		return fmt.Errorf("list period digests: %w", err)
	}
	included := make([]digest.Digest, 0, len(all))
	updated, err := s.summaries.Get(ctx, res.ID, g, start)
	if err != nil {
		return fmt.Errorf("reload summary: %w", err)
	}
	for _, pd := range all {
		if slices.Contains(updated.DigestIDs, pd.ID) {
			included = append(included, pd)
		}
	}

	updated.Headline = merged.Headline
	updated.Accomplishments = merged.Accomplishments
	updated.KeyFeatures = merged.KeyFeatures
	updated.Breakdown, updated.TotalItems = ComputeBreakdown(included)
	updated.State = StateSettled
	updated.UpdatedAt = s.now().UTC()

	// Unconditional write: incorporation is the one path allowed to touch
	// a settled row, and it always leaves the row settled again.
	if err := s.summaries.Update(ctx, res.ID, updated); err != nil {
		return fmt.Errorf("update summary: %w", err)
	}
	return nil
}

// ListForRange returns settled and streaming summaries for a time range.
func (s *Service) ListForRange(ctx context.Context, resourceID, callerTenantID string, g Granularity, from, to time.Time) ([]Summary, error) {
	if !g.Valid() {
		return nil, ErrInvalidGranularity
	}
	if _, err := s.guard.Verify(ctx, resourceID, callerTenantID); err != nil {
		return nil, err
	}
	return s.summaries.ListByRange(ctx, resourceID, g, from.UTC(), to.UTC())
}

// merge performs one provider call folding batch into prior, with the
// single-retry rule applied.
func (s *Service) merge(ctx context.Context, res *resource.Resource, prior narrative, batch []digest.Digest, g Granularity) (narrative, error) {
	var raw json.RawMessage
	err := s.retry.Do(ctx, "summary.merge", func(ctx context.Context) error {
		var callErr error
		raw, callErr = s.generator.GenerateObject(ctx, ai.ObjectRequest{
			Tier:         tierFor(res),
			SystemPrompt: mergeSystemPrompt,
			UserPrompt:   buildMergePrompt(prior, batch, g),
			SchemaHint:   mergeSchemaHint,
		})
		return callErr
	})
	if err != nil {
		return narrative{}, err
	}

	var merged narrative
	if err := json.Unmarshal(raw, &merged); err != nil {
		return narrative{}, fmt.Errorf("parse merged narrative: %w", err)
	}
	if merged.Headline == "" {
		return narrative{}, fmt.Errorf("merged narrative missing headline")
	}
	return merged, nil
}

// throttledWriter spaces out streaming partial writes; skipped writes are
// fine because the settle write always lands.
type throttledWriter struct {
	interval  time.Duration
	now       func() time.Time
	lastWrite time.Time
}

func (w *throttledWriter) write(ctx context.Context, repo Repository, resourceID string, s *Summary) error {
	now := w.now()
	if !w.lastWrite.IsZero() && now.Sub(w.lastWrite) < w.interval {
		return nil
	}
	w.lastWrite = now
	return repo.UpdateStreaming(ctx, resourceID, s)
}

func tierFor(res *resource.Resource) ai.Tier {
	if res.ModelTier == resource.TierQuality {
		return ai.TierQuality
	}
	return ai.TierFast
}
