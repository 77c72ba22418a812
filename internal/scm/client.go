// Package scm fetches normalized file-change data from the source-control
// provider. Every call here is best-effort: callers log failures and move
// on without the diff context.
package scm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/chronicle-dev/chronicle/internal/config"
	"github.com/chronicle-dev/chronicle/internal/domain/event"
	"github.com/chronicle-dev/chronicle/internal/domain/resource"
)

// Client fetches diffs from a GitHub-style API.
type Client struct {
	baseURL       string
	token         string
	maxPatchBytes int
	httpClient    *http.Client
	logger        *slog.Logger
}

// NewClient creates a source-control client from configuration.
func NewClient(cfg config.SCMConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	maxPatch := cfg.MaxPatchBytes
	if maxPatch <= 0 {
		maxPatch = 4096
	}
	return &Client{
		baseURL:       cfg.BaseURL,
		token:         cfg.Token,
		maxPatchBytes: maxPatch,
		httpClient:    &http.Client{Timeout: 15 * time.Second},
		logger:        logger,
	}
}

type fileEntry struct {
	Filename  string `json:"filename"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Patch     string `json:"patch"`
}

// FetchChanges returns the normalized file changes for an event. Push
// events use the compare endpoint; pull request events list the PR files.
// Patch text is truncated per file so unbounded diffs never propagate.
func (c *Client) FetchChanges(ctx context.Context, res *resource.Resource, ev *event.Event) ([]event.FileChange, error) {
	var url string
	switch {
	case ev.Kind == event.KindPush && ev.Payload.Push != nil:
		p := ev.Payload.Push
		if p.BeforeSHA == "" || p.HeadSHA == "" {
			return nil, fmt.Errorf("push event missing compare range")
		}
		url = fmt.Sprintf("%s/repos/%s/compare/%s...%s", c.baseURL, res.ExternalRef, p.BeforeSHA, p.HeadSHA)
	case ev.Kind == event.KindPullRequest && ev.Payload.PullRequest != nil:
		url = fmt.Sprintf("%s/repos/%s/pulls/%d/files", c.baseURL, res.ExternalRef, ev.Payload.PullRequest.Number)
	default:
		return nil, fmt.Errorf("event kind %q has no diff source", ev.Kind)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch changes: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scm http %d", resp.StatusCode)
	}

	var files []fileEntry
	if ev.Kind == event.KindPush {
		var compare struct {
			Files []fileEntry `json:"files"`
		}
		if err := json.Unmarshal(body, &compare); err != nil {
			return nil, fmt.Errorf("parse compare response: %w", err)
		}
		files = compare.Files
	} else {
		if err := json.Unmarshal(body, &files); err != nil {
			return nil, fmt.Errorf("parse files response: %w", err)
		}
	}

	changes := make([]event.FileChange, 0, len(files))
	for _, f := range files {
		patch := f.Patch
		if len(patch) > c.maxPatchBytes {
			patch = patch[:c.maxPatchBytes]
		}
		changes = append(changes, event.FileChange{
			Path:      f.Filename,
			Additions: f.Additions,
			Deletions: f.Deletions,
			Patch:     patch,
		})
	}
	return changes, nil
}
