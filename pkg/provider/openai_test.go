package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewOpenAIMissingKey(t *testing.T) {
	_, err := NewOpenAI("")
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if cfgErr.Provider != "openai" {
		t.Errorf("Provider = %q", cfgErr.Provider)
	}
}

type chatRequest struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newChatServer(t *testing.T, got *chatRequest, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-openai" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		if got != nil {
			json.NewDecoder(r.Body).Decode(got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIGenerate(t *testing.T) {
	var got chatRequest
	srv := newChatServer(t, &got, http.StatusOK, `{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"model": "gpt-test",
		"choices": [
			{"index": 0, "message": {"role": "assistant", "content": "Hi!"}, "finish_reason": "stop"},
			{"index": 1, "message": {"role": "assistant", "content": "second"}, "finish_reason": "stop"}
		]
	}`)

	p, err := NewOpenAI("sk-openai", WithOpenAIBaseURL(srv.URL+"/v1"), WithOpenAILogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}

	text, err := p.Generate(context.Background(), Request{
		Prompt:       "Say hi",
		Model:        "gpt-test",
		SystemPrompt: "You are terse.",
		Temperature:  0.25,
		MaxTokens:    32,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "Hi!" {
		t.Errorf("text = %q", text)
	}

	if got.Model != "gpt-test" || got.MaxTokens != 32 || got.Temperature != 0.25 {
		t.Errorf("request = %+v", got)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("messages = %+v", got.Messages)
	}
	if got.Messages[0].Role != "system" || got.Messages[0].Content != "You are terse." {
		t.Errorf("first message = %+v", got.Messages[0])
	}
	if got.Messages[1].Role != "user" || got.Messages[1].Content != "Say hi" {
		t.Errorf("second message = %+v", got.Messages[1])
	}
}

func TestOpenAIWithoutSystemPrompt(t *testing.T) {
	var got chatRequest
	srv := newChatServer(t, &got, http.StatusOK,
		`{"id":"c","choices":[{"index":0,"message":{"role":"assistant","content":"ok"}}]}`)

	p, _ := NewOpenAI("sk-openai", WithOpenAIBaseURL(srv.URL+"/v1"), WithOpenAILogger(quietLogger()))
	if _, err := p.Generate(context.Background(), Request{Prompt: "p", MaxTokens: 5}); err != nil {
		t.Fatal(err)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != "user" {
		t.Errorf("messages = %+v", got.Messages)
	}
	if got.Model != DefaultOpenAIModel {
		t.Errorf("model = %q", got.Model)
	}
}

func TestOpenAIZeroTemperatureIsSent(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&raw)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c","choices":[{"index":0,"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer srv.Close()

	p, _ := NewOpenAI("sk-openai", WithOpenAIBaseURL(srv.URL+"/v1"), WithOpenAILogger(quietLogger()))
	if _, err := p.Generate(context.Background(), Request{Prompt: "p", Model: "m", Temperature: 0, MaxTokens: 5}); err != nil {
		t.Fatal(err)
	}

	temp, ok := raw["temperature"]
	if !ok {
		t.Fatalf("temperature missing from request: %v", raw)
	}
	if f, _ := temp.(float64); f < 0 || f > 1e-6 {
		t.Errorf("temperature = %v, want ~0", temp)
	}
}

func TestOpenAIGenerateErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"api error", http.StatusUnauthorized, `{"error":{"message":"bad key","type":"invalid_request_error"}}`},
		{"no choices", http.StatusOK, `{"id":"c","choices":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newChatServer(t, nil, tt.status, tt.body)
			p, _ := NewOpenAI("sk-openai", WithOpenAIBaseURL(srv.URL+"/v1"), WithOpenAILogger(quietLogger()))
			_, err := p.Generate(context.Background(), Request{Prompt: "p"})
			var genErr *GenerationError
			if !errors.As(err, &genErr) {
				t.Fatalf("expected GenerationError, got %v", err)
			}
		})
	}
}
