package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	anthropicAPIVersion = "2023-06-01"
	anthropicBaseURL    = "https://api.anthropic.com/v1"

	// DefaultClaudeModel is used when a test case names no model.
	DefaultClaudeModel = "claude-sonnet-4-20250514"
)

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	ID      string             `json:"id"`
	Content []anthropicContent `json:"content"`
	Error   *anthropicError    `json:"error,omitempty"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Claude calls the Anthropic Messages API.
type Claude struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// ClaudeOption configures a Claude provider.
type ClaudeOption func(*Claude)

// WithClaudeBaseURL overrides the API root (e.g. a proxy or a test server).
func WithClaudeBaseURL(url string) ClaudeOption {
	return func(c *Claude) {
		if url != "" {
			c.baseURL = url
		}
	}
}

// WithClaudeHTTPClient replaces the HTTP client.
func WithClaudeHTTPClient(hc *http.Client) ClaudeOption {
	return func(c *Claude) { c.httpClient = hc }
}

// WithClaudeLogger sets the logger.
func WithClaudeLogger(l *slog.Logger) ClaudeOption {
	return func(c *Claude) { c.logger = l }
}

// NewClaude creates a Claude provider. An empty apiKey is a configuration error.
func NewClaude(apiKey string, opts ...ClaudeOption) (*Claude, error) {
	if apiKey == "" {
		return nil, missingKey("claude", "ANTHROPIC_API_KEY")
	}
	c := &Claude{
		apiKey:     apiKey,
		baseURL:    anthropicBaseURL,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Claude) Name() string { return "claude" }

// Generate sends a single user message and returns the first text block.
func (c *Claude) Generate(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = DefaultClaudeModel
	}

	payload := anthropicRequest{
		Model:       model,
		Messages:    []anthropicMessage{{Role: "user", Content: req.Prompt}},
		System:      req.SystemPrompt,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", generationFailed(c.Name(), "marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return "", generationFailed(c.Name(), "create request: %w", err)
	}
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)
	httpReq.Header.Set("content-type", "application/json")

	c.logger.Debug("sending request to Anthropic", "model", model)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", generationFailed(c.Name(), "request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return "", generationFailed(c.Name(), "read body: %w", err)
	}

	var apiResp anthropicResponse
	decodeErr := json.Unmarshal(respBody, &apiResp)

	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && apiResp.Error != nil {
			return "", generationFailed(c.Name(), "status %d: %s: %s", resp.StatusCode, apiResp.Error.Type, apiResp.Error.Message)
		}
		return "", generationFailed(c.Name(), "status %d: %s", resp.StatusCode, string(respBody))
	}
	if decodeErr != nil {
		return "", generationFailed(c.Name(), "parse response: %w", decodeErr)
	}
	if apiResp.Error != nil {
		return "", generationFailed(c.Name(), "%s: %s", apiResp.Error.Type, apiResp.Error.Message)
	}

	for _, block := range apiResp.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", generationFailed(c.Name(), "response %s has no text content", apiResp.ID)
}

var _ Provider = (*Claude)(nil)
