package event

import (
	"encoding/json"
	"time"
)

// Kind identifies the type of activity an event records.
type Kind string

const (
	KindPush        Kind = "push"
	KindPullRequest Kind = "pull_request"
	KindIssue       Kind = "issue"
	KindRelease     Kind = "release"
	KindUnknown     Kind = "unknown"
)

// Status represents the processing state of an event.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusSkipped    Status = "skipped"
)

// Commit is a single commit carried by a push payload.
type Commit struct {
	SHA     string `json:"sha"`
	Message string `json:"message"`
	Author  string `json:"author"`
}

// PushPayload describes a push event.
type PushPayload struct {
	Ref       string   `json:"ref"`
	Branch    string   `json:"branch"`
	BeforeSHA string   `json:"before_sha"`
	HeadSHA   string   `json:"head_sha"`
	Commits   []Commit `json:"commits"`
}

// PullRequestPayload describes a pull request event.
type PullRequestPayload struct {
	Number     int    `json:"number"`
	Action     string `json:"action"`
	Title      string `json:"title"`
	Body       string `json:"body,omitempty"`
	HeadSHA    string `json:"head_sha"`
	BaseBranch string `json:"base_branch"`
}

// IssuePayload describes an issue event.
type IssuePayload struct {
	Number int    `json:"number"`
	Action string `json:"action"`
	Title  string `json:"title"`
}

// ReleasePayload describes a release event.
type ReleasePayload struct {
	Tag  string `json:"tag"`
	Name string `json:"name"`
}

// Payload is a tagged union over the per-kind payload shapes. Exactly one
// branch is set for known kinds; Raw always holds the original body so
// unknown kinds still round-trip.
type Payload struct {
	Push        *PushPayload        `json:"push,omitempty"`
	PullRequest *PullRequestPayload `json:"pull_request,omitempty"`
	Issue       *IssuePayload       `json:"issue,omitempty"`
	Release     *ReleasePayload     `json:"release,omitempty"`
	Raw         json.RawMessage     `json:"raw,omitempty"`
}

// FileChange is one normalized changed file, with a bounded patch excerpt.
type FileChange struct {
	Path      string `json:"path"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Patch     string `json:"patch,omitempty"`
}

// Event is an immutable activity record. Ingestion creates it; the pipeline
// mutates only Status and FileChanges.
type Event struct {
	ID          string       `json:"id"`
	ResourceID  string       `json:"resource_id"`
	Kind        Kind         `json:"kind"`
	Payload     Payload      `json:"payload"`
	Actor       string       `json:"actor"`
	OccurredAt  time.Time    `json:"occurred_at"`
	Status      Status       `json:"status"`
	FileChanges []FileChange `json:"file_changes,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// SupportsFileChanges reports whether the kind carries fetchable diff data.
func (k Kind) SupportsFileChanges() bool {
	return k == KindPush || k == KindPullRequest
}
