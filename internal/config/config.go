package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/cgast/promptreg/pkg/provider"
)

// DefaultPath is where the CLI looks for its config file.
const DefaultPath = ".promptreg/config.yaml"

// Environment variables consulted when the config file leaves a field empty.
const (
	EnvAnthropicKey = "ANTHROPIC_API_KEY"
	EnvOpenAIKey    = "OPENAI_API_KEY"
	EnvGooseBackend = "GOOSE_BACKEND"
	EnvGitHubToken  = "GITHUB_TOKEN"
)

// Config represents the runtime configuration from .promptreg/config.yaml.
type Config struct {
	DataDir   string          `yaml:"data_dir" validate:"required"`
	LogLevel  string          `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	LogFormat string          `yaml:"log_format" validate:"omitempty,oneof=text json"`
	Providers ProvidersConfig `yaml:"providers"`
	Server    ServerConfig    `yaml:"server"`
	Report    ReportConfig    `yaml:"report"`
}

// ProvidersConfig holds model vendor credentials.
type ProvidersConfig struct {
	Anthropic AnthropicConfig `yaml:"anthropic"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Goose     GooseConfig     `yaml:"goose"`
}

type AnthropicConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url" validate:"omitempty,url"`
}

type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url" validate:"omitempty,url"`
}

// GooseConfig selects the backend the goose provider routes to.
type GooseConfig struct {
	Backend string `yaml:"backend"` // empty means claude
}

// ServerConfig defines the HTTP API settings.
type ServerConfig struct {
	Port int `yaml:"port" validate:"gte=0,lte=65535"`
}

// ReportConfig holds issue reporting settings.
type ReportConfig struct {
	GitHub GitHubConfig `yaml:"github"`
}

// GitHubConfig holds GitHub reporting settings.
type GitHubConfig struct {
	Token  string   `yaml:"token"`
	Repo   string   `yaml:"repo"` // owner/name
	Labels []string `yaml:"labels"`
}

// LookupFunc resolves an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(string) (string, bool)

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DataDir:   ".promptreg",
		LogLevel:  "info",
		LogFormat: "text",
		Server:    ServerConfig{Port: 8080},
		Report: ReportConfig{
			GitHub: GitHubConfig{Labels: []string{"prompt-regression"}},
		},
	}
}

// LoadConfig reads and parses a config YAML file. ${VAR} references are
// interpolated through lookup, and empty credentials fall back to their
// conventional environment variables. A missing file yields the defaults.
func LoadConfig(path string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	default:
		interpolated := interpolateEnvVars(string(data), lookup)
		if err := yaml.Unmarshal([]byte(interpolated), &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv(lookup)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup LookupFunc) {
	fallback := func(dst *string, env string) {
		if envVarPattern.MatchString(*dst) {
			*dst = "" // unresolved ${VAR}
		}
		if *dst != "" {
			return
		}
		if v, ok := lookup(env); ok {
			*dst = v
		}
	}
	fallback(&c.Providers.Anthropic.APIKey, EnvAnthropicKey)
	fallback(&c.Providers.OpenAI.APIKey, EnvOpenAIKey)
	fallback(&c.Providers.Goose.Backend, EnvGooseBackend)
	fallback(&c.Report.GitHub.Token, EnvGitHubToken)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field ranges and enumerations.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		msgs := make([]string, len(fieldErrs))
		for i, fe := range fieldErrs {
			msgs[i] = fmt.Sprintf("%s: invalid value %v (%s)", fe.Namespace(), fe.Value(), fe.Tag())
		}
		return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
	}
	if repo := c.Report.GitHub.Repo; repo != "" {
		if _, _, err := SplitRepo(repo); err != nil {
			return err
		}
	}
	return nil
}

// Credentials returns the provider credentials held by the config.
func (c Config) Credentials() provider.Credentials {
	return provider.Credentials{
		AnthropicAPIKey:  c.Providers.Anthropic.APIKey,
		AnthropicBaseURL: c.Providers.Anthropic.BaseURL,
		OpenAIAPIKey:     c.Providers.OpenAI.APIKey,
		OpenAIBaseURL:    c.Providers.OpenAI.BaseURL,
		GooseBackend:     c.Providers.Goose.Backend,
	}
}

// DBPath returns the database location inside the data directory.
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, "promptreg.db")
}

// SplitRepo parses "owner/name".
func SplitRepo(repo string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("invalid repo %q (expected owner/name)", repo)
	}
	return owner, name, nil
}

// WriteDefault writes a starter config to path without secrets; keys are
// referenced through ${VAR} interpolation. Existing files are left alone.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, []byte(starterConfig), 0644)
}

const starterConfig = `data_dir: .promptreg
log_level: info
log_format: text

providers:
  anthropic:
    api_key: "${ANTHROPIC_API_KEY}"
  openai:
    api_key: "${OPENAI_API_KEY}"
  goose:
    backend: "${GOOSE_BACKEND}"

server:
  port: 8080

report:
  github:
    token: "${GITHUB_TOKEN}"
    repo: ""
    labels: [prompt-regression]
`

// envVarPattern matches ${VAR_NAME} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// interpolateEnvVars replaces ${VAR_NAME} patterns with values from lookup.
func interpolateEnvVars(s string, lookup LookupFunc) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimPrefix(strings.TrimSuffix(match, "}"), "${")
		if val, ok := lookup(varName); ok {
			return val
		}
		return match // Leave unresolved if not set.
	})
}
