package provider

import (
	"log/slog"
	"sort"
)

// Constructor builds a provider instance.
type Constructor func() (Provider, error)

// Credentials is the explicit configuration backends are built from.
// Callers fill it from config files and the environment; providers never
// read the environment themselves.
type Credentials struct {
	AnthropicAPIKey  string
	AnthropicBaseURL string
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	GooseBackend     string
}

// Factory maps provider names to constructors. The set is fixed at
// construction, so a Factory is safe for concurrent use.
type Factory struct {
	constructors map[string]Constructor
	creds        Credentials
	logger       *slog.Logger
}

// NewFactory creates a factory with the claude, openai and goose backends registered.
func NewFactory(creds Credentials, logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Factory{
		constructors: make(map[string]Constructor),
		creds:        creds,
		logger:       logger,
	}
	f.constructors["claude"] = f.newClaude
	f.constructors["openai"] = f.newOpenAI
	f.constructors["goose"] = f.newGoose
	return f
}

// New builds the named provider.
func (f *Factory) New(name string) (Provider, error) {
	build, ok := f.constructors[name]

	if !ok {
		return nil, &ConfigError{Message: "unknown provider: " + name}
	}
	return build()
}

// Names returns all registered provider names, sorted.
func (f *Factory) Names() []string {
	names := make([]string, 0, len(f.constructors))
	for name := range f.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (f *Factory) newClaude() (Provider, error) {
	return NewClaude(f.creds.AnthropicAPIKey,
		WithClaudeBaseURL(f.creds.AnthropicBaseURL),
		WithClaudeLogger(f.logger))
}

func (f *Factory) newOpenAI() (Provider, error) {
	return NewOpenAI(f.creds.OpenAIAPIKey,
		WithOpenAIBaseURL(f.creds.OpenAIBaseURL),
		WithOpenAILogger(f.logger))
}

// newGoose routes only to direct backends, never to another router.
func (f *Factory) newGoose() (Provider, error) {
	return NewGoose(f.creds.GooseBackend, map[string]Constructor{
		"claude": f.newClaude,
		"openai": f.newOpenAI,
	}, f.logger)
}
