package provider

import (
	"context"
	"log/slog"
	"math"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

// DefaultOpenAIModel is used when a test case names no model.
const DefaultOpenAIModel = "gpt-4"

// OpenAI calls the chat completions API through go-openai.
type OpenAI struct {
	client *openai.Client
	logger *slog.Logger
}

type openAIOptions struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// OpenAIOption configures an OpenAI provider.
type OpenAIOption func(*openAIOptions)

// WithOpenAIBaseURL overrides the API root, including the /v1 suffix.
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(o *openAIOptions) { o.baseURL = url }
}

// WithOpenAIHTTPClient replaces the HTTP client.
func WithOpenAIHTTPClient(hc *http.Client) OpenAIOption {
	return func(o *openAIOptions) { o.httpClient = hc }
}

// WithOpenAILogger sets the logger.
func WithOpenAILogger(l *slog.Logger) OpenAIOption {
	return func(o *openAIOptions) { o.logger = l }
}

// NewOpenAI creates an OpenAI provider. An empty apiKey is a configuration error.
func NewOpenAI(apiKey string, opts ...OpenAIOption) (*OpenAI, error) {
	if apiKey == "" {
		return nil, missingKey("openai", "OPENAI_API_KEY")
	}

	o := openAIOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	cfg := openai.DefaultConfig(apiKey)
	if o.baseURL != "" {
		cfg.BaseURL = o.baseURL
	}
	if o.httpClient != nil {
		cfg.HTTPClient = o.httpClient
	}

	return &OpenAI{
		client: openai.NewClientWithConfig(cfg),
		logger: o.logger,
	}, nil
}

func (p *OpenAI) Name() string { return "openai" }

// Generate sends an optional system message plus the user prompt and
// returns the first choice's content.
func (p *OpenAI) Generate(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = DefaultOpenAIModel
	}

	var messages []openai.ChatCompletionMessage
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	// go-openai omits a zero temperature, which the API reads as 1.0.
	temperature := float32(req.Temperature)
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}

	p.logger.Debug("sending request to OpenAI", "model", model)

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", &GenerationError{Provider: p.Name(), Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", generationFailed(p.Name(), "response %s has no choices", resp.ID)
	}

	p.logger.Debug("received response from OpenAI", "finish_reason", resp.Choices[0].FinishReason)
	return resp.Choices[0].Message.Content, nil
}

var _ Provider = (*OpenAI)(nil)
