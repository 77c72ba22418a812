// Package ai wraps the provider's chat-completions endpoint as a
// structured-output capability: prompt plus schema in, parsed JSON object or
// a classifiable failure out.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chronicle-dev/chronicle/internal/config"
)

// Tier selects the model class for a call.
type Tier string

const (
	TierFast    Tier = "fast"
	TierQuality Tier = "quality"
)

// ObjectRequest describes one structured-output generation call.
type ObjectRequest struct {
	Tier         Tier
	SystemPrompt string
	UserPrompt   string
	// SchemaHint is a JSON shape description appended to the system prompt.
	// The provider is asked for a json_object response matching it.
	SchemaHint string
}

// Generator produces structured objects from prompts.
type Generator interface {
	GenerateObject(ctx context.Context, req ObjectRequest) (json.RawMessage, error)
}

// Client is an HTTP chat-completions client with per-tier model selection.
type Client struct {
	apiKey       string
	baseURL      string
	fastModel    string
	qualityModel string
	maxTokens    int
	httpClient   *http.Client
}

// NewClient creates a provider client from configuration.
func NewClient(cfg config.AIConfig) *Client {
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		fastModel:    cfg.FastModel,
		qualityModel: cfg.QualityModel,
		maxTokens:    cfg.MaxTokens,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

// GenerateObject performs one structured-output call and returns the raw
// JSON object the model produced. Non-2xx responses surface as
// *ProviderError so the retry policy can classify them; a body that isn't a
// JSON object is a fatal (non-retryable) failure.
func (c *Client) GenerateObject(ctx context.Context, req ObjectRequest) (json.RawMessage, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("missing provider api key")
	}
	if c.baseURL == "" {
		return nil, fmt.Errorf("missing provider base url")
	}

	model := c.fastModel
	if req.Tier == TierQuality {
		model = c.qualityModel
	}

	system := req.SystemPrompt
	if req.SchemaHint != "" {
		system += "\n\nRespond with a single JSON object of this exact shape:\n" + req.SchemaHint
	}

	body := map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": req.UserPrompt},
		},
		"max_tokens":  c.maxTokens,
		"temperature": 0.3,
		"response_format": map[string]string{
			"type": "json_object",
		},
	}

	content, err := c.sendChatCompletion(ctx, body)
	if err != nil {
		return nil, err
	}

	raw := json.RawMessage(content)
	var parsed map[string]any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse structured output: %w", err)
	}
	return raw, nil
}

func (c *Client) sendChatCompletion(ctx context.Context, body map[string]any) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &ProviderError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(respBody)),
		}
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("parse completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}
	return parsed.Choices[0].Message.Content, nil
}
