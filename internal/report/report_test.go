package report

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cgast/promptreg/pkg/suite"
	"github.com/cgast/promptreg/pkg/verify"
)

var t0 = time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)

func sampleResults() []suite.TestResult {
	return []suite.TestResult{
		{TestID: "a", TestName: "Alpha", Passed: verify.Fail, Timestamp: t0},
		{TestID: "a", TestName: "Alpha", Passed: verify.Pass, Timestamp: t0.Add(time.Minute)},
		{TestID: "b", TestName: "Beta", Provider: "claude", Model: "m", Passed: verify.Fail,
			Response: "nope", Timestamp: t0.Add(time.Minute),
			EvaluationResults: []verify.Diagnostic{
				{Kind: verify.KindContains, Description: "contains: yes", Passed: verify.Fail, Details: "Looking for: 'yes' (not found)"},
				{Kind: verify.KindLengthMax, Description: "length_max: 10", Passed: verify.Pass, Details: "Max length: 10, Actual: 4"},
			}},
		{TestID: "c", TestName: "Gamma", Passed: verify.Fail, Error: "claude: ANTHROPIC_API_KEY not found", Timestamp: t0},
	}
}

func TestFailures(t *testing.T) {
	failed := Failures(sampleResults())
	if len(failed) != 2 || failed[0].TestID != "b" || failed[1].TestID != "c" {
		t.Errorf("failed = %+v", failed)
	}
}

func TestRender(t *testing.T) {
	title, body := Render(Failures(sampleResults()), t0)

	if title != "Prompt regression: 2 failing test(s) on 2025-05-01" {
		t.Errorf("title = %q", title)
	}
	for _, want := range []string{
		"### Beta (`b`)",
		"Looking for: 'yes' (not found)",
		"ANTHROPIC_API_KEY not found",
		"<summary>Response</summary>",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}
	if strings.Contains(body, "Max length") {
		t.Error("passing diagnostics should be omitted")
	}
}

func TestNewReporterRequiresToken(t *testing.T) {
	if _, err := NewReporter(""); err == nil {
		t.Error("expected error for empty token")
	}
}

func TestFile(t *testing.T) {
	var gotAuth string
	var gotReq struct {
		Title  string   `json:"title"`
		Body   string   `json:"body"`
		Labels []string `json:"labels"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/repos/acme/prompts/issues" {
			http.Error(w, "unexpected "+r.Method+" "+r.URL.Path, http.StatusNotFound)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"number": 42, "html_url": "https://github.com/acme/prompts/issues/42"}`))
	}))
	defer srv.Close()

	rep, err := NewReporter("ghp_test", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatal(err)
	}

	issue, err := rep.File(context.Background(), "acme", "prompts", sampleResults(), []string{"prompt-regression"})
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if issue.Number != 42 || issue.URL != "https://github.com/acme/prompts/issues/42" {
		t.Errorf("issue = %+v", issue)
	}
	if gotAuth != "Bearer ghp_test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if !strings.Contains(gotReq.Title, "2 failing") || len(gotReq.Labels) != 1 {
		t.Errorf("request = %+v", gotReq)
	}
}

func TestFileNothingToReport(t *testing.T) {
	rep, err := NewReporter("ghp_test", WithBaseURL("http://127.0.0.1:1"))
	if err != nil {
		t.Fatal(err)
	}
	passing := []suite.TestResult{{TestID: "a", Passed: verify.Pass, Timestamp: t0}}
	if _, err := rep.File(context.Background(), "acme", "prompts", passing, nil); !errors.Is(err, ErrNothingToReport) {
		t.Errorf("err = %v, want ErrNothingToReport", err)
	}
}

func TestFileAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message": "Resource not accessible"}`))
	}))
	defer srv.Close()

	rep, _ := NewReporter("ghp_test", WithBaseURL(srv.URL))
	_, err := rep.File(context.Background(), "acme", "prompts", sampleResults(), nil)
	if err == nil || !strings.Contains(err.Error(), "acme/prompts") {
		t.Errorf("err = %v", err)
	}
}
