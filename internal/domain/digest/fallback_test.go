package digest_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronicle-dev/chronicle/internal/domain/digest"
	"github.com/chronicle-dev/chronicle/internal/domain/event"
)

func TestFallback_Push(t *testing.T) {
	ev := &event.Event{
		ID:    "ev1",
		Kind:  event.KindPush,
		Actor: "octocat",
		Payload: event.Payload{
			Push: &event.PushPayload{
				Branch:  "main",
				HeadSHA: "c3",
				Commits: []event.Commit{
					{SHA: "c1", Message: "fix parser\n\nlong body", Author: "alice"},
					{SHA: "c2", Message: "add tests", Author: "bob"},
					{SHA: "c3", Message: "tidy docs", Author: "alice"},
				},
			},
		},
	}

	d := digest.Fallback(ev)

	assert.Equal(t, "Pushed 3 commits to main", d.Title)
	assert.Contains(t, d.Narrative, "fix parser")
	assert.NotContains(t, d.Narrative, "long body")
	assert.Equal(t, digest.CategoryRefactor, d.Category)
	assert.NotEmpty(t, d.Rationale)
	assert.Equal(t, []string{"alice", "bob"}, d.Contributors)
	assert.Nil(t, d.Impact)
	assert.Empty(t, d.Perspectives)
}

func TestFallback_PushSingleCommit(t *testing.T) {
	ev := &event.Event{
		Kind: event.KindPush,
		Payload: event.Payload{
			Push: &event.PushPayload{
				Ref:     "refs/heads/develop",
				Commits: []event.Commit{{SHA: "c1", Message: "one", Author: "alice"}},
			},
		},
	}

	d := digest.Fallback(ev)

	assert.Equal(t, "Pushed 1 commit to develop", d.Title)
}

func TestFallback_PullRequest(t *testing.T) {
	ev := &event.Event{
		Kind:  event.KindPullRequest,
		Actor: "carol",
		Payload: event.Payload{
			PullRequest: &event.PullRequestPayload{Number: 42, Action: "merged", Title: "Add cache layer"},
		},
	}

	d := digest.Fallback(ev)

	assert.Equal(t, "Pull request #42 merged: Add cache layer", d.Title)
	assert.Equal(t, []string{"carol"}, d.Contributors)
}

func TestFallback_Issue(t *testing.T) {
	ev := &event.Event{
		Kind: event.KindIssue,
		Payload: event.Payload{
			Issue: &event.IssuePayload{Number: 7, Action: "closed", Title: "Crash on empty input"},
		},
	}

	d := digest.Fallback(ev)

	assert.Equal(t, "Issue #7 closed: Crash on empty input", d.Title)
}

func TestFallback_Release(t *testing.T) {
	ev := &event.Event{
		Kind:    event.KindRelease,
		Payload: event.Payload{Release: &event.ReleasePayload{Tag: "v1.2.0"}},
	}

	d := digest.Fallback(ev)

	assert.Equal(t, "Released v1.2.0", d.Title)
}

func TestFallback_UnknownKind(t *testing.T) {
	ev := &event.Event{ID: "ev1", Kind: event.KindUnknown, Actor: "dave"}

	d := digest.Fallback(ev)

	require.NotEmpty(t, d.Title)
	require.NotEmpty(t, d.Narrative)
	assert.True(t, d.Category.Valid())
}

func TestFallback_Deterministic(t *testing.T) {
	ev := &event.Event{
		Kind: event.KindPush,
		Payload: event.Payload{
			Push: &event.PushPayload{
				Branch:  "main",
				Commits: []event.Commit{{SHA: "c1", Message: "m", Author: "a"}},
			},
		},
	}

	assert.Equal(t, digest.Fallback(ev), digest.Fallback(ev))
}
