package sqlite_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronicle-dev/chronicle/internal/domain/digest"
	"github.com/chronicle-dev/chronicle/internal/domain/event"
	"github.com/chronicle-dev/chronicle/internal/domain/resource"
	"github.com/chronicle-dev/chronicle/internal/domain/summary"
	"github.com/chronicle-dev/chronicle/internal/sqlite"
	"github.com/chronicle-dev/chronicle/internal/storage"
)

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.RunMigrations())
	return db
}

func seedResource(t *testing.T, db *sqlite.DB, id, tenantID string) {
	t.Helper()
	repo := sqlite.NewResourceRepository(db)
	require.NoError(t, repo.Create(context.Background(), &resource.Resource{
		ID:       id,
		TenantID: tenantID,
		Name:     "repo-" + id,
		Provider: "github",
	}))
}

func seedEvent(t *testing.T, db *sqlite.DB, resourceID, id string, occurredAt time.Time) {
	t.Helper()
	repo := sqlite.NewEventRepository(db)
	require.NoError(t, repo.Create(context.Background(), resourceID, &event.Event{
		ID:         id,
		Kind:       event.KindPush,
		OccurredAt: occurredAt,
		Payload: event.Payload{
			Push: &event.PushPayload{Branch: "main", Commits: []event.Commit{{SHA: "c1", Author: "alice"}}},
		},
	}))
}

func TestResourceRepository(t *testing.T) {
	db := newTestDB(t)
	repo := sqlite.NewResourceRepository(db)
	ctx := context.Background()

	res := &resource.Resource{ID: "res1", TenantID: "tenant1", Name: "api", Provider: "github", ModelTier: resource.TierQuality}
	require.NoError(t, repo.Create(ctx, res))

	got, err := repo.Get(ctx, "res1")
	require.NoError(t, err)
	assert.Equal(t, "tenant1", got.TenantID)
	assert.Equal(t, resource.TierQuality, got.ModelTier)

	_, err = repo.Get(ctx, "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.ErrorIs(t, repo.Create(ctx, res), storage.ErrConflict)

	list, err := repo.ListByTenant(ctx, "tenant1")
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestEventRepository_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	repo := sqlite.NewEventRepository(db)
	ctx := context.Background()
	seedResource(t, db, "res1", "tenant1")

	occurred := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	ev := &event.Event{
		ID:         "ev1",
		Kind:       event.KindPush,
		Actor:      "octocat",
		OccurredAt: occurred,
		Payload: event.Payload{
			Push: &event.PushPayload{
				Branch:  "main",
				HeadSHA: "c2",
				Commits: []event.Commit{{SHA: "c1", Message: "fix", Author: "alice"}, {SHA: "c2", Message: "more", Author: "bob"}},
			},
		},
	}
	require.NoError(t, repo.Create(ctx, "res1", ev))

	got, err := repo.Get(ctx, "res1", "ev1")
	require.NoError(t, err)
	assert.Equal(t, event.StatusPending, got.Status)
	assert.True(t, got.OccurredAt.Equal(occurred))
	require.NotNil(t, got.Payload.Push)
	assert.Len(t, got.Payload.Push.Commits, 2)
	assert.Empty(t, got.FileChanges)

	// Events are scoped to their resource.
	_, err = repo.Get(ctx, "other-res", "ev1")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestEventRepository_CreateUnknownResource(t *testing.T) {
	db := newTestDB(t)
	repo := sqlite.NewEventRepository(db)

	err := repo.Create(context.Background(), "ghost", &event.Event{
		ID:         "ev1",
		Kind:       event.KindPush,
		OccurredAt: time.Now(),
	})

	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestEventRepository_UpdateStatusAndFileChanges(t *testing.T) {
	db := newTestDB(t)
	repo := sqlite.NewEventRepository(db)
	ctx := context.Background()
	seedResource(t, db, "res1", "tenant1")
	seedEvent(t, db, "res1", "ev1", time.Now().UTC())

	require.NoError(t, repo.UpdateStatus(ctx, "res1", "ev1", event.StatusCompleted))
	require.NoError(t, repo.UpdateFileChanges(ctx, "res1", "ev1", []event.FileChange{
		{Path: "main.go", Additions: 10, Deletions: 2, Patch: "@@ -1 +1 @@"},
	}))

	got, err := repo.Get(ctx, "res1", "ev1")
	require.NoError(t, err)
	assert.Equal(t, event.StatusCompleted, got.Status)
	require.Len(t, got.FileChanges, 1)
	assert.Equal(t, "main.go", got.FileChanges[0].Path)

	require.ErrorIs(t, repo.UpdateStatus(ctx, "res1", "ghost", event.StatusFailed), storage.ErrNotFound)
}

func TestDigestRepository_OnePerEvent(t *testing.T) {
	db := newTestDB(t)
	repo := sqlite.NewDigestRepository(db)
	ctx := context.Background()
	seedResource(t, db, "res1", "tenant1")
	seedEvent(t, db, "res1", "ev1", time.Now().UTC())

	d := &digest.Digest{
		ID:           "d1",
		EventID:      "ev1",
		Title:        "Parser hardening",
		Narrative:    "The parser no longer crashes on empty input.",
		Category:     digest.CategoryBugfix,
		Rationale:    "Fixes a crash.",
		Contributors: []string{"alice"},
		Impact:       &digest.Impact{Severity: "low", Statement: "Parser only.", Areas: []string{"parser"}},
		Perspectives: []digest.Perspective{{Role: "developer", Viewpoint: "Safer.", Rank: 1}},
		CreatedAt:    time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Create(ctx, "res1", d))

	got, err := repo.GetByEvent(ctx, "res1", "ev1")
	require.NoError(t, err)
	assert.Equal(t, "d1", got.ID)
	require.NotNil(t, got.Impact)
	assert.Equal(t, "low", got.Impact.Severity)
	require.Len(t, got.Perspectives, 1)

	dup := *d
	dup.ID = "d2"
	require.ErrorIs(t, repo.Create(ctx, "res1", &dup), storage.ErrConflict)
}

func TestDigestRepository_ListByRange(t *testing.T) {
	db := newTestDB(t)
	repo := sqlite.NewDigestRepository(db)
	ctx := context.Background()
	seedResource(t, db, "res1", "tenant1")

	base := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	for i, offset := range []time.Duration{time.Hour, 5 * time.Hour, 30 * time.Hour} {
		evID := []string{"ev1", "ev2", "ev3"}[i]
		seedEvent(t, db, "res1", evID, base.Add(offset))
		require.NoError(t, repo.Create(ctx, "res1", &digest.Digest{
			ID:        "d" + evID,
			EventID:   evID,
			Title:     "t",
			Narrative: "n",
			Category:  digest.CategoryFeature,
			CreatedAt: base.Add(offset),
		}))
	}

	// Half-open range: only the two digests created on the 15th.
	got, err := repo.ListByRange(ctx, "res1", base, base.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "dev1", got[0].ID)
	assert.Equal(t, "dev2", got[1].ID)

	ids, err := repo.ListResourceIDsWithDigests(ctx, base, base.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, []string{"res1"}, ids)
}

func TestSummaryRepository_UniquePeriod(t *testing.T) {
	db := newTestDB(t)
	repo := sqlite.NewSummaryRepository(db)
	ctx := context.Background()
	seedResource(t, db, "res1", "tenant1")

	start := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	s := &summary.Summary{
		ID:          "s1",
		Granularity: summary.GranularityDaily,
		PeriodStart: start,
		Headline:    "Busy day",
		Breakdown: map[digest.Category]summary.BreakdownEntry{
			digest.CategoryFeature: {Count: 2, Percentage: 67},
		},
		TotalItems: 3,
		DigestIDs:  []string{"d1", "d2", "d3"},
		State:      summary.StateSettled,
		UpdatedAt:  start.Add(time.Hour),
	}
	require.NoError(t, repo.Create(ctx, "res1", s))

	got, err := repo.Get(ctx, "res1", summary.GranularityDaily, start)
	require.NoError(t, err)
	assert.Equal(t, "Busy day", got.Headline)
	assert.Equal(t, 2, got.Breakdown[digest.CategoryFeature].Count)
	assert.Equal(t, []string{"d1", "d2", "d3"}, got.DigestIDs)

	dup := *s
	dup.ID = "s2"
	require.ErrorIs(t, repo.Create(ctx, "res1", &dup), storage.ErrConflict)

	// Same day, different granularity is a distinct row.
	weekly := *s
	weekly.ID = "s3"
	weekly.Granularity = summary.GranularityWeekly
	weekly.PeriodStart = summary.WeeklyStart(start)
	require.NoError(t, repo.Create(ctx, "res1", &weekly))
}

func TestSummaryRepository_AppendDigestID(t *testing.T) {
	db := newTestDB(t)
	repo := sqlite.NewSummaryRepository(db)
	ctx := context.Background()
	seedResource(t, db, "res1", "tenant1")

	start := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, "res1", &summary.Summary{
		ID:          "s1",
		Granularity: summary.GranularityDaily,
		PeriodStart: start,
		DigestIDs:   []string{"d1"},
		State:       summary.StateSettled,
		UpdatedAt:   start,
	}))

	appended, err := repo.AppendDigestID(ctx, "res1", "s1", "d2")
	require.NoError(t, err)
	assert.True(t, appended)

	appended, err = repo.AppendDigestID(ctx, "res1", "s1", "d2")
	require.NoError(t, err)
	assert.False(t, appended)

	got, err := repo.Get(ctx, "res1", summary.GranularityDaily, start)
	require.NoError(t, err)
	assert.Equal(t, []string{"d1", "d2"}, got.DigestIDs)

	_, err = repo.AppendDigestID(ctx, "res1", "ghost", "d3")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSummaryRepository_UpdateAndDelete(t *testing.T) {
	db := newTestDB(t)
	repo := sqlite.NewSummaryRepository(db)
	ctx := context.Background()
	seedResource(t, db, "res1", "tenant1")

	start := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	s := &summary.Summary{
		ID:          "s1",
		Granularity: summary.GranularityDaily,
		PeriodStart: start,
		State:       summary.StateStreaming,
		UpdatedAt:   start,
	}
	require.NoError(t, repo.Create(ctx, "res1", s))

	s.Headline = "Settled now"
	s.State = summary.StateSettled
	require.NoError(t, repo.Update(ctx, "res1", s))

	got, err := repo.Get(ctx, "res1", summary.GranularityDaily, start)
	require.NoError(t, err)
	assert.Equal(t, summary.StateSettled, got.State)

	require.NoError(t, repo.Delete(ctx, "res1", "s1"))
	_, err = repo.Get(ctx, "res1", summary.GranularityDaily, start)
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.ErrorIs(t, repo.Delete(ctx, "res1", "s1"), storage.ErrNotFound)
}

func TestSummaryRepository_UpdateStreamingRejectsSettled(t *testing.T) {
	db := newTestDB(t)
	repo := sqlite.NewSummaryRepository(db)
	ctx := context.Background()
	seedResource(t, db, "res1", "tenant1")

	start := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	s := &summary.Summary{
		ID:          "s1",
		Granularity: summary.GranularityDaily,
		PeriodStart: start,
		State:       summary.StateStreaming,
		UpdatedAt:   start,
	}
	require.NoError(t, repo.Create(ctx, "res1", s))

	// Streaming writes land while the row streams, including the settle
	// transition itself.
	s.Headline = "First pass"
	require.NoError(t, repo.UpdateStreaming(ctx, "res1", s))
	s.Headline = "Final"
	s.State = summary.StateSettled
	require.NoError(t, repo.UpdateStreaming(ctx, "res1", s))

	// Once settled the row is terminal for streaming writers.
	late := *s
	late.Headline = "Reopened"
	late.State = summary.StateStreaming
	require.ErrorIs(t, repo.UpdateStreaming(ctx, "res1", &late), storage.ErrConflict)

	got, err := repo.Get(ctx, "res1", summary.GranularityDaily, start)
	require.NoError(t, err)
	assert.Equal(t, summary.StateSettled, got.State)
	assert.Equal(t, "Final", got.Headline)

	require.ErrorIs(t, repo.UpdateStreaming(ctx, "res1", &summary.Summary{ID: "ghost"}), storage.ErrConflict)
}

func TestCacheRepository(t *testing.T) {
	db := newTestDB(t)
	repo := sqlite.NewCacheRepository(db)
	ctx := context.Background()

	_, ok, err := repo.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Put(ctx, "k1", json.RawMessage(`{"v":1}`), time.Now().Add(time.Hour)))
	payload, ok, err := repo.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"v":1}`, string(payload))

	// Upsert replaces the payload.
	require.NoError(t, repo.Put(ctx, "k1", json.RawMessage(`{"v":2}`), time.Now().Add(time.Hour)))
	payload, _, err = repo.Get(ctx, "k1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(payload))
}

func TestCacheRepository_Expiry(t *testing.T) {
	db := newTestDB(t)
	repo := sqlite.NewCacheRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, "stale", json.RawMessage(`{}`), time.Now().Add(-time.Minute)))

	_, ok, err := repo.Get(ctx, "stale")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.PurgeExpired(ctx))
	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM gen_cache`).Scan(&count))
	assert.Zero(t, count)
}

func TestAPIKeyRepository(t *testing.T) {
	db := newTestDB(t)
	repo := sqlite.NewAPIKeyRepository(db)
	ctx := context.Background()

	_, err := db.Exec(`INSERT INTO api_keys (token_hash, tenant_id, name) VALUES (?, ?, ?)`,
		"hash1", "tenant1", "ci key")
	require.NoError(t, err)

	tenantID, err := repo.ResolveTenant(ctx, "hash1")
	require.NoError(t, err)
	assert.Equal(t, "tenant1", tenantID)

	_, err = repo.ResolveTenant(ctx, "unknown")
	require.ErrorIs(t, err, storage.ErrNotFound)
}
