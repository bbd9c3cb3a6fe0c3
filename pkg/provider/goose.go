package provider

import (
	"context"
	"log/slog"
	"sort"
	"strings"
)

const (
	// DefaultGooseBackend is the backend Goose routes to when none is configured.
	DefaultGooseBackend = "claude"

	// DefaultGooseSystemPrompt replaces an empty system prompt on Goose calls.
	DefaultGooseSystemPrompt = "You are Goose, a helpful AI assistant."
)

// Goose is the agentic backend. It has no model access of its own: it picks
// another provider at construction time and forwards every call to it.
type Goose struct {
	backend string
	inner   Provider
}

// NewGoose selects backend from backends and builds it. An empty backend
// means DefaultGooseBackend.
func NewGoose(backend string, backends map[string]Constructor, logger *slog.Logger) (*Goose, error) {
	if backend == "" {
		backend = DefaultGooseBackend
	}
	if logger == nil {
		logger = slog.Default()
	}

	build, ok := backends[backend]
	if !ok {
		names := make([]string, 0, len(backends))
		for name := range backends {
			names = append(names, name)
		}
		sort.Strings(names)
		return nil, &ConfigError{
			Provider: "goose",
			Message:  "unknown Goose backend: " + backend + " (expected one of " + strings.Join(names, ", ") + ")",
		}
	}

	inner, err := build()
	if err != nil {
		return nil, err
	}

	logger.Info("goose using backend", "backend", backend)
	return &Goose{backend: backend, inner: inner}, nil
}

func (g *Goose) Name() string { return "goose" }

// Backend returns the name of the provider Goose routes to.
func (g *Goose) Backend() string { return g.backend }

// Generate injects the Goose system prompt when none is given and delegates.
func (g *Goose) Generate(ctx context.Context, req Request) (string, error) {
	if req.SystemPrompt == "" {
		req.SystemPrompt = DefaultGooseSystemPrompt
	}
	return g.inner.Generate(ctx, req)
}

var _ Provider = (*Goose)(nil)
