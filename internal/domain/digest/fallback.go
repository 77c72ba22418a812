package digest

import (
	"fmt"
	"strings"

	"github.com/chronicle-dev/chronicle/internal/domain/event"
)

const fallbackRationale = "Synthesized from event metadata without provider assistance."

// Fallback builds a minimal deterministic draft from the event's structural
// fields. It never fails, so the pipeline always has something to emit when
// the provider doesn't cooperate.
func Fallback(ev *event.Event) Draft {
	switch ev.Kind {
	case event.KindPush:
		return fallbackPush(ev)
	case event.KindPullRequest:
		return fallbackPullRequest(ev)
	case event.KindIssue:
		return fallbackIssue(ev)
	case event.KindRelease:
		return fallbackRelease(ev)
	default:
		return fallbackGeneric(ev)
	}
}

func fallbackPush(ev *event.Event) Draft {
	p := ev.Payload.Push
	if p == nil {
		return fallbackGeneric(ev)
	}

	n := len(p.Commits)
	branch := p.Branch
	if branch == "" {
		branch = strings.TrimPrefix(p.Ref, "refs/heads/")
	}

	title := fmt.Sprintf("Pushed %d commits to %s", n, branch)
	if n == 1 {
		title = fmt.Sprintf("Pushed 1 commit to %s", branch)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d commits were pushed to %s.", n, branch)
	for i, c := range p.Commits {
		if i >= 5 {
			fmt.Fprintf(&b, " (and %d more)", n-i)
			break
		}
		b.WriteString(" ")
		b.WriteString(firstLine(c.Message))
		b.WriteString(".")
	}

	return Draft{
		Title:        title,
		Narrative:    b.String(),
		Category:     CategoryRefactor,
		Rationale:    fallbackRationale,
		Contributors: pushContributors(ev, p),
	}
}

func fallbackPullRequest(ev *event.Event) Draft {
	p := ev.Payload.PullRequest
	if p == nil {
		return fallbackGeneric(ev)
	}
	action := p.Action
	if action == "" {
		action = "updated"
	}
	return Draft{
		Title:        fmt.Sprintf("Pull request #%d %s: %s", p.Number, action, p.Title),
		Narrative:    fmt.Sprintf("Pull request #%d (%s) was %s.", p.Number, p.Title, action),
		Category:     CategoryRefactor,
		Rationale:    fallbackRationale,
		Contributors: actorOnly(ev),
	}
}

func fallbackIssue(ev *event.Event) Draft {
	p := ev.Payload.Issue
	if p == nil {
		return fallbackGeneric(ev)
	}
	action := p.Action
	if action == "" {
		action = "updated"
	}
	return Draft{
		Title:        fmt.Sprintf("Issue #%d %s: %s", p.Number, action, p.Title),
		Narrative:    fmt.Sprintf("Issue #%d (%s) was %s.", p.Number, p.Title, action),
		Category:     CategoryRefactor,
		Rationale:    fallbackRationale,
		Contributors: actorOnly(ev),
	}
}

func fallbackRelease(ev *event.Event) Draft {
	p := ev.Payload.Release
	if p == nil {
		return fallbackGeneric(ev)
	}
	name := p.Name
	if name == "" {
		name = p.Tag
	}
	return Draft{
		Title:        fmt.Sprintf("Released %s", name),
		Narrative:    fmt.Sprintf("Release %s was published.", name),
		Category:     CategoryRefactor,
		Rationale:    fallbackRationale,
		Contributors: actorOnly(ev),
	}
}

func fallbackGeneric(ev *event.Event) Draft {
	return Draft{
		Title:        fmt.Sprintf("Activity recorded (%s)", ev.Kind),
		Narrative:    fmt.Sprintf("A %s event occurred on the repository.", ev.Kind),
		Category:     CategoryRefactor,
		Rationale:    fallbackRationale,
		Contributors: actorOnly(ev),
	}
}

func pushContributors(ev *event.Event, p *event.PushPayload) []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range p.Commits {
		if c.Author != "" && !seen[c.Author] {
			seen[c.Author] = true
			out = append(out, c.Author)
		}
	}
	if len(out) == 0 {
		return actorOnly(ev)
	}
	return out
}

func actorOnly(ev *event.Event) []string {
	if ev.Actor == "" {
		return nil
	}
	return []string{ev.Actor}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
