package suite

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cgast/promptreg/pkg/verify"
)

const sampleSuite = `
apiVersion: promptreg/v1
kind: Suite
vars:
  user: Ada
tests:
  - id: greeting
    name: Greeting
    prompt: "Say hello to {{user}}"
    provider: openai
    temperature: 0
    tags: [smoke]
    expectations:
      - kind: contains
        value: hello
      - kind: length_min
        value: 5
        description: "not too short"
  - name: Haiku
    prompt: "Write a haiku"
`

func TestLoadSuite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "suite.yaml")
	if err := os.WriteFile(path, []byte(sampleSuite), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := LoadSuite(path, nil)
	if err != nil {
		t.Fatalf("LoadSuite: %v", err)
	}
	if s.APIVersion != APIVersion || s.Kind != KindSuite {
		t.Errorf("header = %q/%q", s.APIVersion, s.Kind)
	}
	if len(s.Cases) != 2 {
		t.Fatalf("Cases len = %d, want 2", len(s.Cases))
	}

	first := s.Cases[0]
	if first.Prompt != "Say hello to Ada" {
		t.Errorf("Prompt = %q", first.Prompt)
	}
	if first.Temperature != 0 {
		t.Errorf("explicit zero temperature lost: %v", first.Temperature)
	}
	if first.Model != "gpt-4" {
		t.Errorf("Model = %q, want openai default", first.Model)
	}
	if len(first.Expectations) != 2 {
		t.Fatalf("Expectations len = %d", len(first.Expectations))
	}
	if first.Expectations[1].Kind != verify.KindLengthMin || !verify.IsInteger(first.Expectations[1].Value) {
		t.Errorf("length expectation = %+v", first.Expectations[1])
	}
	if !first.HasTag("smoke") {
		t.Error("expected smoke tag")
	}
}

func TestLoadSuiteMissing(t *testing.T) {
	_, err := LoadSuite("/nonexistent/suite.yaml", nil)
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParseSuiteDefaults(t *testing.T) {
	s, err := ParseSuite([]byte(sampleSuite), nil)
	if err != nil {
		t.Fatalf("ParseSuite: %v", err)
	}
	tc := s.Cases[1]

	if tc.ID == "" {
		t.Error("expected generated id")
	}
	if tc.Provider != DefaultProvider {
		t.Errorf("Provider = %q", tc.Provider)
	}
	if tc.Model != DefaultModel {
		t.Errorf("Model = %q", tc.Model)
	}
	if tc.Temperature != DefaultTemperature {
		t.Errorf("Temperature = %v", tc.Temperature)
	}
	if tc.MaxTokens != DefaultMaxTokens {
		t.Errorf("MaxTokens = %d", tc.MaxTokens)
	}
	if tc.CreatedAt.IsZero() {
		t.Error("expected CreatedAt")
	}
	if tc.Tags == nil || tc.Expectations == nil {
		t.Error("expected non-nil tags and expectations")
	}
}

func TestParseSuiteOverrides(t *testing.T) {
	s, err := ParseSuite([]byte(sampleSuite), map[string]string{"user": "Grace"})
	if err != nil {
		t.Fatalf("ParseSuite: %v", err)
	}
	if s.Cases[0].Prompt != "Say hello to Grace" {
		t.Errorf("Prompt = %q", s.Cases[0].Prompt)
	}
}

func TestParseSuiteBadYAML(t *testing.T) {
	if _, err := ParseSuite([]byte("tests: [unclosed"), nil); err == nil {
		t.Error("expected parse error")
	}
}

func TestInterpolateVars(t *testing.T) {
	vars := map[string]string{"name": "world"}
	tests := []struct {
		in   string
		want string
	}{
		{"hello {{name}}", "hello world"},
		{"{{unknown}} stays", "{{unknown}} stays"},
		{"no vars", "no vars"},
		{"{{name}}{{name}}", "worldworld"},
	}
	for _, tt := range tests {
		if got := interpolateVars(tt.in, vars); got != tt.want {
			t.Errorf("interpolateVars(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildVarMapBuiltins(t *testing.T) {
	vars := buildVarMap(map[string]string{"date": "suite"}, nil)
	if vars["date"] != "suite" {
		t.Errorf("suite vars should override built-ins, got %q", vars["date"])
	}
	if vars["datetime"] == "" {
		t.Error("expected datetime built-in")
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tc := TestCase{
		ID:       "t1",
		Name:     "One",
		Prompt:   "Say one",
		Provider: "claude",
		Expectations: []verify.Expectation{
			{Kind: verify.KindContains, Value: "one"},
		},
		Temperature: 0.5,
	}
	tc.ApplyDefaults(now)

	data, err := Marshal([]TestCase{tc})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), "apiVersion: promptreg/v1") {
		t.Errorf("missing header:\n%s", data)
	}

	s, err := ParseSuite(data, nil)
	if err != nil {
		t.Fatalf("ParseSuite: %v", err)
	}
	if len(s.Cases) != 1 {
		t.Fatalf("Cases len = %d", len(s.Cases))
	}
	got := s.Cases[0]
	if got.ID != "t1" || got.Temperature != 0.5 || !got.CreatedAt.Equal(now) {
		t.Errorf("round trip = %+v", got)
	}
}
