// Package scheduler drives summary generation off period boundaries. Each
// cron tick sweeps the resources that produced digests in the just-closed
// period; per-resource failures are logged and the sweep continues, since
// the next tick (or an on-demand trigger) retries naturally.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	rcron "github.com/robfig/cron/v3"

	"github.com/chronicle-dev/chronicle/internal/domain/summary"
)

// SummaryTrigger generates one period rollup.
type SummaryTrigger interface {
	GenerateForPeriod(ctx context.Context, resourceID, callerTenantID string, g summary.Granularity, periodStart time.Time) (*summary.Summary, error)
}

// DigestIndex finds resources with digest activity in a window.
type DigestIndex interface {
	ListResourceIDsWithDigests(ctx context.Context, from, to time.Time) ([]string, error)
}

// ResourceDirectory resolves a resource to its owning tenant.
type ResourceDirectory interface {
	GetTenantID(ctx context.Context, resourceID string) (string, error)
}

// CacheJanitor reclaims expired cache rows.
type CacheJanitor interface {
	PurgeExpired(ctx context.Context) error
}

// Service owns the cron schedule for period rollups and cache cleanup.
type Service struct {
	cron      *rcron.Cron
	summaries SummaryTrigger
	digests   DigestIndex
	resources ResourceDirectory
	janitor   CacheJanitor
	logger    *slog.Logger
}

// NewService creates the scheduler. All schedules run in UTC, shortly after
// each boundary so late-arriving digests still land in their period.
func NewService(
	summaries SummaryTrigger,
	digests DigestIndex,
	resources ResourceDirectory,
	janitor CacheJanitor,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cron:      rcron.New(rcron.WithLocation(time.UTC)),
		summaries: summaries,
		digests:   digests,
		resources: resources,
		janitor:   janitor,
		logger:    logger,
	}
}

// Start registers the cron entries and begins ticking.
func (s *Service) Start(ctx context.Context) error {
	specs := []struct {
		expr string
		g    summary.Granularity
	}{
		{"5 0 * * *", summary.GranularityDaily},
		{"10 0 * * 0", summary.GranularityWeekly},
		{"15 0 1 * *", summary.GranularityMonthly},
	}
	for _, spec := range specs {
		g := spec.g
		if _, err := s.cron.AddFunc(spec.expr, func() {
			s.rollup(ctx, g)
		}); err != nil {
			return err
		}
	}

	if s.janitor != nil {
		if _, err := s.cron.AddFunc("30 * * * *", func() {
			if err := s.janitor.PurgeExpired(ctx); err != nil {
				s.logger.Warn("cache purge failed", "error", err)
			}
		}); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.logger.Info("scheduler started")
	return nil
}

// Stop halts the cron loop, waiting for running jobs.
func (s *Service) Stop() {
	<-s.cron.Stop().Done()
}

// rollup generates summaries for every resource active in the period that
// just closed.
func (s *Service) rollup(ctx context.Context, g summary.Granularity) {
	start, end := ClosedPeriod(time.Now(), g)

	resourceIDs, err := s.digests.ListResourceIDsWithDigests(ctx, start, end)
	if err != nil {
		s.logger.Error("list rollup candidates failed", "granularity", g, "error", err)
		return
	}

	s.logger.Info("period rollup tick",
		"granularity", g,
		"period_start", start,
		"resources", len(resourceIDs))

	for _, resourceID := range resourceIDs {
		tenantID, err := s.resources.GetTenantID(ctx, resourceID)
		if err != nil {
			s.logger.Error("resolve resource tenant failed", "resource_id", resourceID, "error", err)
			continue
		}
		if _, err := s.summaries.GenerateForPeriod(ctx, resourceID, tenantID, g, start); err != nil {
			s.logger.Error("period rollup failed",
				"resource_id", resourceID,
				"granularity", g,
				"period_start", start,
				"error", err)
		}
	}
}

// ClosedPeriod returns the [start, end) bounds of the most recently closed
// period at time now.
func ClosedPeriod(now time.Time, g summary.Granularity) (time.Time, time.Time) {
	end := summary.PeriodStart(now, g)
	var start time.Time
	switch g {
	case summary.GranularityWeekly:
		start = end.AddDate(0, 0, -7)
	case summary.GranularityMonthly:
		start = end.AddDate(0, -1, 0)
	default:
		start = end.AddDate(0, 0, -1)
	}
	return start, end
}
