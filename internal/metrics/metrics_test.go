package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/cgast/promptreg/pkg/suite"
	"github.com/cgast/promptreg/pkg/verify"
)

func TestObserveRun(t *testing.T) {
	r := New()

	r.ObserveRun(suite.TestResult{
		Provider:      "claude",
		Passed:        verify.Pass,
		ExecutionTime: 0.4,
		EvaluationResults: []verify.Diagnostic{
			{Kind: verify.KindContains, Passed: verify.Pass},
			{Kind: verify.KindManual, Passed: verify.Inconclusive},
		},
	})
	r.ObserveRun(suite.TestResult{Provider: "claude", Passed: verify.Fail, Error: "boom", ExecutionTime: 1.2})
	r.ObserveRun(suite.TestResult{Provider: "openai", Passed: verify.Pass, ExecutionTime: 2})

	if got := testutil.ToFloat64(r.runs.WithLabelValues("claude", "passed")); got != 1 {
		t.Errorf("claude passed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.runs.WithLabelValues("claude", "failed")); got != 1 {
		t.Errorf("claude failed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.runErrors.WithLabelValues("claude")); got != 1 {
		t.Errorf("claude errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.expectations.WithLabelValues("manual", "inconclusive")); got != 1 {
		t.Errorf("manual expectations = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(r.runDuration); got != 2 {
		t.Errorf("duration series = %d, want 2", got)
	}
}

func TestHandler(t *testing.T) {
	r := New()
	r.ObserveRun(suite.TestResult{Provider: "goose", Passed: verify.Inconclusive})

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	want := `promptreg_runs_total{provider="goose",status="inconclusive"} 1`
	if !strings.Contains(string(body), want) {
		t.Errorf("missing %q in exposition", want)
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Error("expected Go runtime collector output")
	}
}
