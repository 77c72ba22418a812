package digest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/chronicle-dev/chronicle/internal/ai"
	"github.com/chronicle-dev/chronicle/internal/cache"
	"github.com/chronicle-dev/chronicle/internal/domain/event"
	"github.com/chronicle-dev/chronicle/internal/domain/resource"
	"github.com/chronicle-dev/chronicle/internal/retry"
	"github.com/chronicle-dev/chronicle/internal/storage"
)

const generateFnID = "digest.generate"

// Service orchestrates digest generation: ownership, context gathering,
// cache, the provider call, retry, and deterministic fallback.
type Service struct {
	guard        *resource.Guard
	events       EventRepository
	digests      Repository
	cache        *cache.Cache
	generator    ai.Generator
	changes      ChangeFetcher
	retry        *retry.Policy
	incorporator Incorporator
	logger       *slog.Logger
}

// NewService creates a digest service.
func NewService(
	guard *resource.Guard,
	events EventRepository,
	digests Repository,
	genCache *cache.Cache,
	generator ai.Generator,
	changes ChangeFetcher,
	retryPolicy *retry.Policy,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		guard:     guard,
		events:    events,
		digests:   digests,
		cache:     genCache,
		generator: generator,
		changes:   changes,
		retry:     retryPolicy,
		logger:    logger,
	}
}

// SetIncorporator wires the summary side of the pipeline. Kept out of the
// constructor because the summary service is built after this one.
func (s *Service) SetIncorporator(inc Incorporator) {
	s.incorporator = inc
}

// fingerprintInputs are the identifying fields hashed into the cache key.
// Deliberately excludes diff text and other noisy payload fields so the key
// stays stable across re-deliveries of the same logical event.
type fingerprintInputs struct {
	Kind        event.Kind `json:"kind"`
	HeadSHA     string     `json:"head_sha,omitempty"`
	CommitSHAs  []string   `json:"commit_shas,omitempty"`
	PRNumber    int        `json:"pr_number,omitempty"`
	PRAction    string     `json:"pr_action,omitempty"`
	PRTitle     string     `json:"pr_title,omitempty"`
	IssueNumber int        `json:"issue_number,omitempty"`
	IssueAction string     `json:"issue_action,omitempty"`
	ReleaseTag  string     `json:"release_tag,omitempty"`
	EventID     string     `json:"event_id,omitempty"`
}

// Generate produces the digest for one event. It returns the digest and an
// opaque tracking id used only for log correlation. Provider failure alone
// never fails this call; only authorization and missing-event errors do.
func (s *Service) Generate(ctx context.Context, eventID, resourceID, callerTenantID string) (*Digest, string, error) {
	trackingID := uuid.NewString()
	log := s.logger.With("tracking_id", trackingID, "event_id", eventID, "resource_id", resourceID)

	res, err := s.guard.Verify(ctx, resourceID, callerTenantID)
	if err != nil {
		return nil, trackingID, err
	}

	ev, err := s.events.Get(ctx, resourceID, eventID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, trackingID, event.ErrEventNotFound
	}
	if err != nil {
		return nil, trackingID, fmt.Errorf("load event: %w", err)
	}

	// One digest per event. The cache makes regeneration cheap but this is
	// the authoritative idempotence check.
	if existing, err := s.digests.GetByEvent(ctx, resourceID, eventID); err == nil {
		return existing, trackingID, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, trackingID, fmt.Errorf("check existing digest: %w", err)
	}

	if err := s.events.UpdateStatus(ctx, resourceID, eventID, event.StatusProcessing); err != nil {
		log.Warn("update event status failed", "error", err)
	}

	s.enrichFileChanges(ctx, res, ev, log)

	draft, aiSourced := s.synthesize(ctx, res, ev, log)

	if aiSourced {
		s.enrichDraft(ctx, res, ev, &draft, log)
	}

	d := &Digest{
		ID:           uuid.NewString(),
		ResourceID:   resourceID,
		EventID:      eventID,
		Title:        draft.Title,
		Narrative:    draft.Narrative,
		Category:     draft.Category,
		Rationale:    draft.Rationale,
		Contributors: draft.Contributors,
		Impact:       draft.Impact,
		Perspectives: draft.Perspectives,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.digests.Create(ctx, resourceID, d); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			// Lost a race with a concurrent generation for the same event.
			if existing, getErr := s.digests.GetByEvent(ctx, resourceID, eventID); getErr == nil {
				return existing, trackingID, nil
			}
		}
		return nil, trackingID, fmt.Errorf("persist digest: %w", err)
	}

	if err := s.events.UpdateStatus(ctx, resourceID, eventID, event.StatusCompleted); err != nil {
		log.Warn("update event status failed", "error", err)
	}

	if s.incorporator != nil {
		// The digest already exists; a rollup failure is the scheduler's
		// problem to retry, not this caller's.
		if err := s.incorporator.IncorporateDigest(ctx, resourceID, callerTenantID, d.ID, d.CreatedAt); err != nil {
			log.Warn("incorporate digest into summaries failed", "digest_id", d.ID, "error", err)
		}
	}

	log.Info("digest generated", "digest_id", d.ID, "category", d.Category, "ai_sourced", aiSourced)
	return d, trackingID, nil
}

// enrichFileChanges backfills normalized diff data onto the event when the
// kind supports it. Failures are logged and absorbed.
func (s *Service) enrichFileChanges(ctx context.Context, res *resource.Resource, ev *event.Event, log *slog.Logger) {
	if len(ev.FileChanges) > 0 || !ev.Kind.SupportsFileChanges() || s.changes == nil {
		return
	}

	changes, err := s.changes.FetchChanges(ctx, res, ev)
	if err != nil {
		log.Warn("file change fetch failed", "error", err)
		return
	}
	if len(changes) == 0 {
		return
	}

	ev.FileChanges = changes
	if err := s.events.UpdateFileChanges(ctx, res.ID, ev.ID, changes); err != nil {
		log.Warn("persist file changes failed", "error", err)
	}
}

// synthesize returns the digest draft and whether it came from the
// provider. The provider path runs through the content cache with the
// single-retry rule; any final failure lands on the deterministic fallback.
func (s *Service) synthesize(ctx context.Context, res *resource.Resource, ev *event.Event, log *slog.Logger) (Draft, bool) {
	inputs := fingerprint(ev)

	payload, hit, err := s.cache.Fetch(ctx, generateFnID, res.ID, inputs, func(ctx context.Context) (json.RawMessage, error) {
		var raw json.RawMessage
		genErr := s.retry.Do(ctx, generateFnID, func(ctx context.Context) error {
			var callErr error
			raw, callErr = s.generator.GenerateObject(ctx, ai.ObjectRequest{
				Tier:         tierFor(res),
				SystemPrompt: systemPrompt,
				UserPrompt:   BuildPrompt(ev),
				SchemaHint:   draftSchemaHint,
			})
			return callErr
		})
		if genErr != nil {
			return nil, genErr
		}
		return raw, nil
	})
	if err != nil {
		log.Warn("provider generation failed, using fallback", "error", err)
		return Fallback(ev), false
	}

	var draft Draft
	if err := json.Unmarshal(payload, &draft); err != nil {
		log.Warn("cached draft unreadable, using fallback", "error", err)
		return Fallback(ev), false
	}
	if draft.Title == "" || draft.Narrative == "" {
		log.Warn("provider draft incomplete, using fallback")
		return Fallback(ev), false
	}
	if !draft.Category.Valid() {
		draft.Category = CategoryChore
	}
	if hit {
		log.Info("digest draft served from cache")
	}
	return draft, true
}

// enrichDraft attaches the optional impact assessment and ranked
// perspectives. Each is an independent best-effort call retried once;
// failure leaves the field absent and never aborts the digest.
func (s *Service) enrichDraft(ctx context.Context, res *resource.Resource, ev *event.Event, draft *Draft, log *slog.Logger) {
	prompt := BuildPrompt(ev)

	var g errgroup.Group
	g.Go(func() error {
		var raw json.RawMessage
		err := s.retry.Do(ctx, "digest.impact", func(ctx context.Context) error {
			var callErr error
			raw, callErr = s.generator.GenerateObject(ctx, ai.ObjectRequest{
				Tier:         tierFor(res),
				SystemPrompt: impactSystemPrompt,
				UserPrompt:   prompt,
				SchemaHint:   impactSchemaHint,
			})
			return callErr
		})
		if err != nil {
			log.Warn("impact assessment failed", "error", err)
			return nil
		}
		var impact Impact
		if err := json.Unmarshal(raw, &impact); err != nil || impact.Statement == "" {
			log.Warn("impact assessment unparseable")
			return nil
		}
		draft.Impact = &impact
		return nil
	})
	g.Go(func() error {
		var raw json.RawMessage
		err := s.retry.Do(ctx, "digest.perspectives", func(ctx context.Context) error {
			var callErr error
			raw, callErr = s.generator.GenerateObject(ctx, ai.ObjectRequest{
				Tier:         tierFor(res),
				SystemPrompt: perspectivesSystemPrompt,
				UserPrompt:   prompt,
				SchemaHint:   perspectivesSchemaHint,
			})
			return callErr
		})
		if err != nil {
			log.Warn("perspectives generation failed", "error", err)
			return nil
		}
		var out struct {
			Perspectives []Perspective `json:"perspectives"`
		}
		if err := json.Unmarshal(raw, &out); err != nil || len(out.Perspectives) == 0 {
			log.Warn("perspectives unparseable")
			return nil
		}
		draft.Perspectives = out.Perspectives
		return nil
	})
	_ = g.Wait()
}

func fingerprint(ev *event.Event) fingerprintInputs {
	in := fingerprintInputs{Kind: ev.Kind}
	switch {
	case ev.Payload.Push != nil:
		p := ev.Payload.Push
		in.HeadSHA = p.HeadSHA
		for _, c := range p.Commits {
			in.CommitSHAs = append(in.CommitSHAs, c.SHA)
		}
	case ev.Payload.PullRequest != nil:
		p := ev.Payload.PullRequest
		in.PRNumber = p.Number
		in.PRAction = p.Action
		in.PRTitle = p.Title
		in.HeadSHA = p.HeadSHA
	case ev.Payload.Issue != nil:
		in.IssueNumber = ev.Payload.Issue.Number
		in.IssueAction = ev.Payload.Issue.Action
	case ev.Payload.Release != nil:
		in.ReleaseTag = ev.Payload.Release.Tag
	default:
		// Unknown payloads have no stable identifying fields; fall back to
		// the event id so re-deliveries still hit the cache.
		in.EventID = ev.ID
	}
	return in
}

func tierFor(res *resource.Resource) ai.Tier {
	if res.ModelTier == resource.TierQuality {
		return ai.TierQuality
	}
	return ai.TierFast
}
