package provider

import (
	"errors"
	"reflect"
	"testing"
)

func TestFactoryNames(t *testing.T) {
	f := NewFactory(Credentials{}, quietLogger())
	want := []string{"claude", "goose", "openai"}
	if got := f.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names = %v, want %v", got, want)
	}
}

func TestFactoryNew(t *testing.T) {
	f := NewFactory(Credentials{
		AnthropicAPIKey: "ak",
		OpenAIAPIKey:    "ok",
		GooseBackend:    "openai",
	}, quietLogger())

	tests := []struct {
		name string
		want string
	}{
		{"claude", "claude"},
		{"openai", "openai"},
		{"goose", "goose"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := f.New(tt.name)
			if err != nil {
				t.Fatalf("New(%q): %v", tt.name, err)
			}
			if p.Name() != tt.want {
				t.Errorf("Name = %q, want %q", p.Name(), tt.want)
			}
		})
	}

	p, _ := f.New("goose")
	if p.(*Goose).Backend() != "openai" {
		t.Errorf("goose backend = %q, want openai", p.(*Goose).Backend())
	}
}

func TestFactoryErrors(t *testing.T) {
	f := NewFactory(Credentials{}, quietLogger())

	tests := []struct {
		name    string
		wantMsg string
	}{
		{"claude", "claude: ANTHROPIC_API_KEY not found"},
		{"openai", "openai: OPENAI_API_KEY not found"},
		{"goose", "claude: ANTHROPIC_API_KEY not found"},
		{"mistral", "unknown provider: mistral"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.New(tt.name)
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigError, got %v", err)
			}
			if err.Error() != tt.wantMsg {
				t.Errorf("error = %q, want %q", err.Error(), tt.wantMsg)
			}
		})
	}
}
