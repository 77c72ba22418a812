package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronicle-dev/chronicle/internal/ai"
	"github.com/chronicle-dev/chronicle/internal/cache"
	"github.com/chronicle-dev/chronicle/internal/domain/digest"
	"github.com/chronicle-dev/chronicle/internal/domain/event"
	"github.com/chronicle-dev/chronicle/internal/domain/resource"
	"github.com/chronicle-dev/chronicle/internal/domain/summary"
	"github.com/chronicle-dev/chronicle/internal/retry"
	"github.com/chronicle-dev/chronicle/internal/sqlite"
)

// scriptedGenerator answers draft, enrichment, and merge requests with
// canned structured output, and can be switched into failure mode.
type scriptedGenerator struct {
	failWith error
	calls    int
}

func (g *scriptedGenerator) GenerateObject(ctx context.Context, req ai.ObjectRequest) (json.RawMessage, error) {
	g.calls++
	if g.failWith != nil {
		return nil, g.failWith
	}
	switch {
	case strings.Contains(req.SchemaHint, `"severity"`):
		return json.RawMessage(`{"severity":"medium","statement":"Touches the ingest path.","areas":["ingest"]}`), nil
	case strings.Contains(req.SchemaHint, `"perspectives"`):
		return json.RawMessage(`{"perspectives":[{"role":"developer","viewpoint":"Cleaner ingest.","rank":1}]}`), nil
	case strings.Contains(req.SchemaHint, `"headline"`):
		return json.RawMessage(`{"headline":"Steady progress on ingest","accomplishments":["hardened the ingest path"],"key_features":["structured diffs"]}`), nil
	default:
		return json.RawMessage(`{"title":"Ingest hardening","narrative":"The ingest path now validates payloads.","category":"feature","rationale":"New validation behavior.","contributors":["alice"]}`), nil
	}
}

type testEnv struct {
	db           *sqlite.DB
	resourceRepo *sqlite.ResourceRepository
	generator    *scriptedGenerator

	eventSvc   *event.Service
	digestSvc  *digest.Service
	summarySvc *summary.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())
	t.Cleanup(func() { _ = db.Close() })

	resourceRepo := sqlite.NewResourceRepository(db)
	eventRepo := sqlite.NewEventRepository(db)
	digestRepo := sqlite.NewDigestRepository(db)
	summaryRepo := sqlite.NewSummaryRepository(db)
	cacheRepo := sqlite.NewCacheRepository(db)

	guard := resource.NewGuard(resourceRepo, nil)
	retryPolicy := retry.NewPolicy(time.Millisecond, nil)
	generator := &scriptedGenerator{}

	eventSvc := event.NewService(guard, eventRepo, nil)
	digestSvc := digest.NewService(guard, eventRepo, digestRepo,
		cache.New(cacheRepo, time.Hour, nil), generator, nil, retryPolicy, nil)
	summarySvc := summary.NewService(guard, summaryRepo, digestRepo, generator, retryPolicy, 0, nil)
	digestSvc.SetIncorporator(summarySvc)

	return &testEnv{
		db:           db,
		resourceRepo: resourceRepo,
		generator:    generator,
		eventSvc:     eventSvc,
		digestSvc:    digestSvc,
		summarySvc:   summarySvc,
	}
}

func (env *testEnv) seedResource(t *testing.T, id, tenantID string) {
	t.Helper()
	require.NoError(t, env.resourceRepo.Create(context.Background(), &resource.Resource{
		ID:       id,
		TenantID: tenantID,
		Name:     "api",
		Provider: "github",
	}))
}

func pushRequest(n int) event.CreateRequest {
	commits := make([]event.Commit, n)
	for i := range commits {
		commits[i] = event.Commit{
			SHA:     fmt.Sprintf("sha%d", i+1),
			Message: fmt.Sprintf("commit %d", i+1),
			Author:  "alice",
		}
	}
	return event.CreateRequest{
		Kind:       event.KindPush,
		Actor:      "alice",
		OccurredAt: time.Now().UTC(),
		Payload: event.Payload{
			Push: &event.PushPayload{Branch: "main", HeadSHA: commits[n-1].SHA, Commits: commits},
		},
	}
}

func TestIntegration_EventToDigestToSummary(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedResource(t, "res1", "tenant1")

	ev, err := env.eventSvc.Record(ctx, "res1", "tenant1", pushRequest(3))
	require.NoError(t, err)

	d, trackingID, err := env.digestSvc.Generate(ctx, ev.ID, "res1", "tenant1")
	require.NoError(t, err)
	require.NotEmpty(t, trackingID)
	assert.Equal(t, "Ingest hardening", d.Title)
	assert.Equal(t, digest.CategoryFeature, d.Category)
	require.NotNil(t, d.Impact)

	// The completed event status and the digest row both persisted.
	got, err := env.eventSvc.Get(ctx, "res1", "tenant1", ev.ID)
	require.NoError(t, err)
	assert.Equal(t, event.StatusCompleted, got.Status)

	sum, err := env.summarySvc.GenerateForPeriod(ctx, "res1", "tenant1", summary.GranularityDaily, d.CreatedAt)
	require.NoError(t, err)
	require.NotNil(t, sum)
	assert.Equal(t, summary.StateSettled, sum.State)
	assert.Equal(t, "Steady progress on ingest", sum.Headline)
	assert.Contains(t, sum.DigestIDs, d.ID)
	assert.Equal(t, 1, sum.Breakdown[digest.CategoryFeature].Count)
}

func TestIntegration_DigestIdempotentPerEvent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedResource(t, "res1", "tenant1")

	ev, err := env.eventSvc.Record(ctx, "res1", "tenant1", pushRequest(2))
	require.NoError(t, err)

	first, _, err := env.digestSvc.Generate(ctx, ev.ID, "res1", "tenant1")
	require.NoError(t, err)
	second, _, err := env.digestSvc.Generate(ctx, ev.ID, "res1", "tenant1")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
}

func TestIntegration_ProviderOutageFallsBack(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedResource(t, "res1", "tenant1")
	env.generator.failWith = &ai.ProviderError{StatusCode: 500, Body: "outage"}

	ev, err := env.eventSvc.Record(ctx, "res1", "tenant1", pushRequest(3))
	require.NoError(t, err)

	d, _, err := env.digestSvc.Generate(ctx, ev.ID, "res1", "tenant1")
	require.NoError(t, err)
	assert.Contains(t, d.Title, "3")
	assert.Equal(t, digest.CategoryRefactor, d.Category)
	assert.Nil(t, d.Impact)

	// The outage left nothing in the cache: once the provider recovers,
	// generation produces a real narrative again.
	env.generator.failWith = nil
	ev2, err := env.eventSvc.Record(ctx, "res1", "tenant1", pushRequest(4))
	require.NoError(t, err)
	d2, _, err := env.digestSvc.Generate(ctx, ev2.ID, "res1", "tenant1")
	require.NoError(t, err)
	assert.Equal(t, "Ingest hardening", d2.Title)
}

func TestIntegration_TenantIsolation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedResource(t, "res1", "tenant1")
	env.seedResource(t, "res2", "tenant2")

	ev, err := env.eventSvc.Record(ctx, "res1", "tenant1", pushRequest(1))
	require.NoError(t, err)

	_, _, err = env.digestSvc.Generate(ctx, ev.ID, "res1", "tenant2")
	require.ErrorIs(t, err, resource.ErrUnauthorized)

	_, err = env.summarySvc.ListForRange(ctx, "res1", "tenant2", summary.GranularityDaily,
		time.Now().Add(-24*time.Hour), time.Now())
	require.ErrorIs(t, err, resource.ErrUnauthorized)
}

func TestIntegration_IncorporationUpdatesOpenSummary(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedResource(t, "res1", "tenant1")

	ev, err := env.eventSvc.Record(ctx, "res1", "tenant1", pushRequest(2))
	require.NoError(t, err)
	d, _, err := env.digestSvc.Generate(ctx, ev.ID, "res1", "tenant1")
	require.NoError(t, err)

	sum, err := env.summarySvc.GenerateForPeriod(ctx, "res1", "tenant1", summary.GranularityDaily, d.CreatedAt)
	require.NoError(t, err)
	require.Len(t, sum.DigestIDs, 1)

	// A second digest lands in the now-existing open daily summary via the
	// incorporation hook on Generate.
	ev2, err := env.eventSvc.Record(ctx, "res1", "tenant1", pushRequest(5))
	require.NoError(t, err)
	d2, _, err := env.digestSvc.Generate(ctx, ev2.ID, "res1", "tenant1")
	require.NoError(t, err)

	updated, err := env.summarySvc.GenerateForPeriod(ctx, "res1", "tenant1", summary.GranularityDaily, d.CreatedAt)
	require.NoError(t, err)
	assert.Contains(t, updated.DigestIDs, d2.ID)
	assert.Equal(t, 2, updated.TotalItems)
	assert.Equal(t, summary.StateSettled, updated.State)
}
