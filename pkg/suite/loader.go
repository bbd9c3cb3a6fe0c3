package suite

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cgast/promptreg/pkg/verify"
)

// Document is the on-disk shape of a suite file.
type Document struct {
	APIVersion string            `yaml:"apiVersion" json:"apiVersion"`
	Kind       string            `yaml:"kind" json:"kind"`
	Vars       map[string]string `yaml:"vars" json:"vars"`
	Tests      []CaseDef         `yaml:"tests" json:"tests"`
}

// CaseDef is one test case as written in a suite file. Pointer fields tell
// "unset" apart from an explicit zero.
type CaseDef struct {
	ID           string               `yaml:"id"`
	Name         string               `yaml:"name"`
	Prompt       string               `yaml:"prompt"`
	Provider     string               `yaml:"provider"`
	Model        string               `yaml:"model"`
	SystemPrompt string               `yaml:"system_prompt"`
	Temperature  *float64             `yaml:"temperature"`
	MaxTokens    *int                 `yaml:"max_tokens"`
	Tags         []string             `yaml:"tags"`
	Expectations []verify.Expectation `yaml:"expectations"`
	CreatedAt    time.Time            `yaml:"created_at"`
}

// Suite is a parsed suite file.
type Suite struct {
	APIVersion string
	Kind       string
	Cases      []TestCase
}

// LoadSuite reads a YAML suite file. Template variables like {{date}} and
// {{name}} are interpolated from the suite's vars and the overrides.
func LoadSuite(path string, overrides map[string]string) (Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Suite{}, fmt.Errorf("read suite %s: %w", path, err)
	}
	return ParseSuite(data, overrides)
}

// ParseSuite parses YAML suite data with variable interpolation and
// applies test case defaults.
func ParseSuite(data []byte, overrides map[string]string) (Suite, error) {
	// First pass: collect vars.
	var raw Document
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Suite{}, fmt.Errorf("parse suite: %w", err)
	}

	vars := buildVarMap(raw.Vars, overrides)
	interpolated := interpolateVars(string(data), vars)

	// Second pass on the interpolated text.
	var doc Document
	if err := yaml.Unmarshal([]byte(interpolated), &doc); err != nil {
		return Suite{}, fmt.Errorf("parse interpolated suite: %w", err)
	}

	now := time.Now().UTC()
	s := Suite{
		APIVersion: doc.APIVersion,
		Kind:       doc.Kind,
		Cases:      make([]TestCase, 0, len(doc.Tests)),
	}
	for _, def := range doc.Tests {
		s.Cases = append(s.Cases, def.TestCase(now))
	}
	return s, nil
}

// TestCase converts the definition, applying defaults.
func (d CaseDef) TestCase(now time.Time) TestCase {
	tc := TestCase{
		ID:           d.ID,
		Name:         d.Name,
		Prompt:       d.Prompt,
		Provider:     d.Provider,
		Model:        d.Model,
		SystemPrompt: d.SystemPrompt,
		Temperature:  DefaultTemperature,
		Tags:         d.Tags,
		Expectations: d.Expectations,
		CreatedAt:    d.CreatedAt,
	}
	if d.Temperature != nil {
		tc.Temperature = *d.Temperature
	}
	if d.MaxTokens != nil {
		tc.MaxTokens = *d.MaxTokens
	}
	tc.ApplyDefaults(now)
	return tc
}

// buildVarMap merges built-in variables, suite vars and runtime overrides.
func buildVarMap(suiteVars, overrides map[string]string) map[string]string {
	vars := make(map[string]string)

	now := time.Now()
	vars["date"] = now.Format("2006-01-02")
	vars["datetime"] = now.Format("2006-01-02T15:04:05")

	for k, v := range suiteVars {
		vars[k] = v
	}
	for k, v := range overrides {
		vars[k] = v
	}
	return vars
}

// templatePattern matches {{var_name}} patterns.
var templatePattern = regexp.MustCompile(`\{\{([A-Za-z_][A-Za-z0-9_]*)\}\}`)

// interpolateVars replaces {{var_name}} with values from vars, leaving
// unknown names untouched.
func interpolateVars(s string, vars map[string]string) string {
	return templatePattern.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimSuffix(strings.TrimPrefix(match, "{{"), "}}")
		if val, ok := vars[name]; ok {
			return val
		}
		return match
	})
}

// Marshal renders test cases as a suite document.
func Marshal(cases []TestCase) ([]byte, error) {
	doc := struct {
		APIVersion string     `yaml:"apiVersion"`
		Kind       string     `yaml:"kind"`
		Tests      []TestCase `yaml:"tests"`
	}{
		APIVersion: APIVersion,
		Kind:       KindSuite,
		Tests:      cases,
	}
	return yaml.Marshal(doc)
}
