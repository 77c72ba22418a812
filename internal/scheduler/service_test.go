package scheduler_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronicle-dev/chronicle/internal/domain/summary"
	"github.com/chronicle-dev/chronicle/internal/scheduler"
)

func TestClosedPeriod_Daily(t *testing.T) {
	now := time.Date(2024, 3, 15, 0, 5, 0, 0, time.UTC)

	start, end := scheduler.ClosedPeriod(now, summary.GranularityDaily)

	assert.Equal(t, time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), end)
}

func TestClosedPeriod_Weekly(t *testing.T) {
	// Sunday just after the weekly boundary.
	now := time.Date(2024, 3, 17, 0, 10, 0, 0, time.UTC)

	start, end := scheduler.ClosedPeriod(now, summary.GranularityWeekly)

	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 3, 17, 0, 0, 0, 0, time.UTC), end)
	assert.Equal(t, time.Sunday, start.Weekday())
}

func TestClosedPeriod_Monthly(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 15, 0, 0, time.UTC)

	start, end := scheduler.ClosedPeriod(now, summary.GranularityMonthly)

	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), end)
}

func TestClosedPeriod_MonthlyYearRollover(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 15, 0, 0, time.UTC)

	start, end := scheduler.ClosedPeriod(now, summary.GranularityMonthly)

	assert.Equal(t, time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), end)
}

type nopTrigger struct{}

func (nopTrigger) GenerateForPeriod(ctx context.Context, resourceID, callerTenantID string, g summary.Granularity, periodStart time.Time) (*summary.Summary, error) {
	return nil, nil
}

type nopIndex struct{}

func (nopIndex) ListResourceIDsWithDigests(ctx context.Context, from, to time.Time) ([]string, error) {
	return nil, nil
}

type nopDirectory struct{}

func (nopDirectory) GetTenantID(ctx context.Context, resourceID string) (string, error) {
	return "tenant1", nil
}

func TestStartStop(t *testing.T) {
	svc := scheduler.NewService(nopTrigger{}, nopIndex{}, nopDirectory{}, nil, nil)

	require.NoError(t, svc.Start(context.Background()))
	svc.Stop()
}
