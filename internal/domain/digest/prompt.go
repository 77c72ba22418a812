package digest

import (
	"fmt"
	"strings"

	"github.com/chronicle-dev/chronicle/internal/domain/event"
)

const systemPrompt = `You are an engineering activity narrator. Given one repository
event, write a short narrative a non-engineer stakeholder can read: what changed,
why it likely matters, and who did it. Be concrete and avoid speculation beyond
what the event shows. category must be one of:
feature/bugfix/refactor/docs/chore/security.`

const draftSchemaHint = `{"title":"...","narrative":"...","category":"feature",
"rationale":"why this category","contributors":["login"]}`

const impactSystemPrompt = `You assess the impact of one repository change. Rate
severity as low/medium/high and state in one or two sentences which areas of the
system are affected and how.`

const impactSchemaHint = `{"severity":"low","statement":"...","areas":["api"]}`

const perspectivesSystemPrompt = `You produce ranked stakeholder perspectives on one
repository change. Provide at most three, rank 1 being the most relevant role.`

const perspectivesSchemaHint = `{"perspectives":[{"role":"product manager","viewpoint":"...","rank":1}]}`

const maxPromptChanges = 20

// BuildPrompt renders the user prompt for an event. Diff context is bounded:
// each change's patch was already truncated at fetch time, and only the
// first maxPromptChanges files are included.
func BuildPrompt(ev *event.Event) string {
	var b strings.Builder

	switch ev.Kind {
	case event.KindPush:
		writePushPrompt(&b, ev)
	case event.KindPullRequest:
		writePullRequestPrompt(&b, ev)
	case event.KindIssue:
		writeIssuePrompt(&b, ev)
	case event.KindRelease:
		writeReleasePrompt(&b, ev)
	default:
		fmt.Fprintf(&b, "Event kind: %s\nActor: %s\n", ev.Kind, ev.Actor)
		if len(ev.Payload.Raw) > 0 {
			fmt.Fprintf(&b, "Raw payload: %s\n", truncate(string(ev.Payload.Raw), 2000))
		}
	}

	writeChanges(&b, ev.FileChanges)
	return b.String()
}

func writePushPrompt(b *strings.Builder, ev *event.Event) {
	p := ev.Payload.Push
	if p == nil {
		fmt.Fprintf(b, "Push event with no payload. Actor: %s\n", ev.Actor)
		return
	}
	fmt.Fprintf(b, "Push to branch %s by %s (%d commits):\n", p.Branch, ev.Actor, len(p.Commits))
	for _, c := range p.Commits {
		fmt.Fprintf(b, "- %s: %s (%s)\n", shortSHA(c.SHA), firstLine(c.Message), c.Author)
	}
}

func writePullRequestPrompt(b *strings.Builder, ev *event.Event) {
	p := ev.Payload.PullRequest
	if p == nil {
		fmt.Fprintf(b, "Pull request event with no payload. Actor: %s\n", ev.Actor)
		return
	}
	fmt.Fprintf(b, "Pull request #%d %s by %s: %s\n", p.Number, p.Action, ev.Actor, p.Title)
	if p.Body != "" {
		fmt.Fprintf(b, "Description: %s\n", truncate(p.Body, 2000))
	}
	fmt.Fprintf(b, "Base branch: %s\n", p.BaseBranch)
}

func writeIssuePrompt(b *strings.Builder, ev *event.Event) {
	p := ev.Payload.Issue
	if p == nil {
		fmt.Fprintf(b, "Issue event with no payload. Actor: %s\n", ev.Actor)
		return
	}
	fmt.Fprintf(b, "Issue #%d %s by %s: %s\n", p.Number, p.Action, ev.Actor, p.Title)
}

func writeReleasePrompt(b *strings.Builder, ev *event.Event) {
	p := ev.Payload.Release
	if p == nil {
		fmt.Fprintf(b, "Release event with no payload. Actor: %s\n", ev.Actor)
		return
	}
	fmt.Fprintf(b, "Release %s (%s) published by %s\n", p.Name, p.Tag, ev.Actor)
}

func writeChanges(b *strings.Builder, changes []event.FileChange) {
	if len(changes) == 0 {
		return
	}
	b.WriteString("\nChanged files:\n")
	for i, fc := range changes {
		if i >= maxPromptChanges {
			fmt.Fprintf(b, "(and %d more files)\n", len(changes)-i)
			break
		}
		fmt.Fprintf(b, "- %s (+%d/-%d)\n", fc.Path, fc.Additions, fc.Deletions)
		if fc.Patch != "" {
			fmt.Fprintf(b, "%s\n", fc.Patch)
		}
	}
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
