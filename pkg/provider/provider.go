// Package provider turns a prompt and generation parameters into text using
// a language-model backend.
package provider

import (
	"context"
	"fmt"
)

// Request carries the uniform generation parameters.
type Request struct {
	Prompt       string
	Model        string
	SystemPrompt string // empty means no system instruction
	Temperature  float64
	MaxTokens    int
}

// Provider is the capability every backend implements.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

// ConfigError reports a backend that cannot be constructed: a missing
// credential or an unknown provider/backend name.
type ConfigError struct {
	Provider string
	Message  string
}

func (e *ConfigError) Error() string {
	if e.Provider == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// GenerationError wraps a failure during a generation call.
type GenerationError struct {
	Provider string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: generate: %v", e.Provider, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

func missingKey(provider, envVar string) error {
	return &ConfigError{Provider: provider, Message: envVar + " not found"}
}

func generationFailed(provider string, format string, args ...any) error {
	return &GenerationError{Provider: provider, Err: fmt.Errorf(format, args...)}
}
