package provider

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

// recordingProvider captures the last request it received.
type recordingProvider struct {
	name string
	last Request
	text string
	err  error
}

func (p *recordingProvider) Name() string { return p.name }

func (p *recordingProvider) Generate(_ context.Context, req Request) (string, error) {
	p.last = req
	return p.text, p.err
}

func backendsFor(ps ...*recordingProvider) map[string]Constructor {
	m := make(map[string]Constructor)
	for _, p := range ps {
		p := p
		m[p.name] = func() (Provider, error) { return p, nil }
	}
	return m
}

func TestGooseDefaultsToClaude(t *testing.T) {
	claude := &recordingProvider{name: "claude", text: "from claude"}
	openai := &recordingProvider{name: "openai", text: "from openai"}

	g, err := NewGoose("", backendsFor(claude, openai), quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	if g.Backend() != "claude" {
		t.Errorf("Backend = %q, want claude", g.Backend())
	}

	text, err := g.Generate(context.Background(), Request{Prompt: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if text != "from claude" {
		t.Errorf("text = %q", text)
	}
}

func TestGooseInjectsSystemPrompt(t *testing.T) {
	openai := &recordingProvider{name: "openai", text: "ok"}
	g, err := NewGoose("openai", backendsFor(openai), quietLogger())
	if err != nil {
		t.Fatal(err)
	}

	req := Request{Prompt: "hi", Model: "m", Temperature: 0.3, MaxTokens: 10}
	if _, err := g.Generate(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	want := req
	want.SystemPrompt = DefaultGooseSystemPrompt
	if openai.last != want {
		t.Errorf("delegated request = %+v, want %+v", openai.last, want)
	}

	req.SystemPrompt = "custom"
	g.Generate(context.Background(), req)
	if openai.last.SystemPrompt != "custom" {
		t.Errorf("explicit system prompt replaced: %q", openai.last.SystemPrompt)
	}
}

func TestGoosePropagatesErrors(t *testing.T) {
	boom := &GenerationError{Provider: "claude", Err: errors.New("boom")}
	claude := &recordingProvider{name: "claude", err: boom}
	g, _ := NewGoose("claude", backendsFor(claude), quietLogger())

	_, err := g.Generate(context.Background(), Request{Prompt: "hi"})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want backend error", err)
	}
}

func TestGooseUnknownBackend(t *testing.T) {
	_, err := NewGoose("gemini", backendsFor(&recordingProvider{name: "claude"}), quietLogger())
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if !strings.Contains(err.Error(), "unknown Goose backend: gemini") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestGooseBackendConstructionError(t *testing.T) {
	backends := map[string]Constructor{
		"claude": func() (Provider, error) { return NewClaude("") },
	}
	_, err := NewGoose("claude", backends, quietLogger())
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError from backend, got %v", err)
	}
}

func TestGooseAnnouncesBackend(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	if _, err := NewGoose("claude", backendsFor(&recordingProvider{name: "claude"}), logger); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "goose using backend") || !strings.Contains(out, "backend=claude") {
		t.Errorf("log output = %q", out)
	}
}
