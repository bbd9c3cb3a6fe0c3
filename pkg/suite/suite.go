package suite

import (
	"time"

	"github.com/google/uuid"

	prov "github.com/cgast/promptreg/pkg/provider"
	"github.com/cgast/promptreg/pkg/verify"
)

// Defaults applied to test cases that leave fields unset.
const (
	DefaultProvider    = "claude"
	DefaultModel       = prov.DefaultClaudeModel
	DefaultTemperature = 1.0
	DefaultMaxTokens   = 1024
)

// Providers lists the provider names a test case may declare.
var Providers = []string{"claude", "openai", "goose"}

// TestCase is a named, reusable prompt configuration plus its expectations.
type TestCase struct {
	ID           string               `json:"id" yaml:"id" validate:"required"`
	Name         string               `json:"name" yaml:"name" validate:"required"`
	Prompt       string               `json:"prompt" yaml:"prompt" validate:"required"`
	Provider     string               `json:"provider" yaml:"provider" validate:"required,oneof=claude openai goose"`
	Model        string               `json:"model" yaml:"model"`
	Expectations []verify.Expectation `json:"expectations" yaml:"expectations" validate:"dive"`
	SystemPrompt string               `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
	Temperature  float64              `json:"temperature" yaml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens    int                  `json:"max_tokens" yaml:"max_tokens" validate:"gt=0"`
	CreatedAt    time.Time            `json:"created_at" yaml:"created_at"`
	Tags         []string             `json:"tags" yaml:"tags"`
}

// HasTag reports whether the test case carries tag.
func (tc TestCase) HasTag(tag string) bool {
	for _, t := range tc.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// TestResult is an immutable record of one execution of a TestCase. It
// copies the test name and prompt so history stays readable after the
// test case is edited or deleted.
type TestResult struct {
	TestID            string              `json:"test_id"`
	TestName          string              `json:"test_name"`
	Prompt            string              `json:"prompt"`
	Response          string              `json:"response"`
	Provider          string              `json:"provider"`
	Model             string              `json:"model"`
	Passed            verify.Verdict      `json:"passed"`
	EvaluationResults []verify.Diagnostic `json:"evaluation_results"`
	ExecutionTime     float64             `json:"execution_time"` // seconds
	Timestamp         time.Time           `json:"timestamp"`
	Error             string              `json:"error,omitempty"`
}

// Status returns "passed", "failed" or "inconclusive".
func (r TestResult) Status() string {
	return r.Passed.String()
}

// DefaultModelFor returns the model used when a test case names none.
func DefaultModelFor(provider string) string {
	if provider == "openai" {
		return prov.DefaultOpenAIModel
	}
	return DefaultModel
}

// NewID returns a fresh test case id.
func NewID() string {
	return uuid.NewString()
}

// ApplyDefaults fills unset fields. A zero temperature is a legitimate
// setting, so temperature is left to the loader.
func (tc *TestCase) ApplyDefaults(now time.Time) {
	if tc.ID == "" {
		tc.ID = NewID()
	}
	if tc.Provider == "" {
		tc.Provider = DefaultProvider
	}
	if tc.Model == "" {
		tc.Model = DefaultModelFor(tc.Provider)
	}
	if tc.MaxTokens == 0 {
		tc.MaxTokens = DefaultMaxTokens
	}
	if tc.CreatedAt.IsZero() {
		tc.CreatedAt = now
	}
	if tc.Tags == nil {
		tc.Tags = []string{}
	}
	if tc.Expectations == nil {
		tc.Expectations = []verify.Expectation{}
	}
}
