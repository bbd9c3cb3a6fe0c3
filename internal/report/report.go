// Package report files failing test runs as GitHub issues.
package report

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v60/github"

	"github.com/cgast/promptreg/pkg/history"
	"github.com/cgast/promptreg/pkg/suite"
	"github.com/cgast/promptreg/pkg/verify"
)

// ErrNothingToReport is returned when no latest result failed.
var ErrNothingToReport = errors.New("no failing tests to report")

// Issue identifies a created issue.
type Issue struct {
	Number int
	URL    string
}

// Reporter creates issues through the GitHub API.
type Reporter struct {
	inner *gh.Client
}

// Option configures a Reporter.
type Option func(*gh.Client) error

// WithBaseURL points the client at another API root, e.g. a test server.
func WithBaseURL(raw string) Option {
	return func(c *gh.Client) error {
		if !strings.HasSuffix(raw, "/") {
			raw += "/"
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("parse base url: %w", err)
		}
		c.BaseURL = u
		return nil
	}
}

// NewReporter creates a reporter authenticated with token.
func NewReporter(token string, opts ...Option) (*Reporter, error) {
	if token == "" {
		return nil, fmt.Errorf("github token is required")
	}
	httpClient := &http.Client{
		Transport: &tokenTransport{token: token},
		Timeout:   30 * time.Second,
	}
	client := gh.NewClient(httpClient)
	for _, opt := range opts {
		if err := opt(client); err != nil {
			return nil, err
		}
	}
	return &Reporter{inner: client}, nil
}

// tokenTransport adds Bearer token auth to HTTP requests.
type tokenTransport struct {
	token string
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.token)
	return http.DefaultTransport.RoundTrip(req)
}

// Failures returns the latest result of every test whose latest run failed.
func Failures(results []suite.TestResult) []suite.TestResult {
	var failed []suite.TestResult
	for _, r := range history.Latest(results) {
		if r.Passed == verify.Fail {
			failed = append(failed, r)
		}
	}
	return failed
}

// Render builds the issue title and markdown body for failing results.
func Render(failed []suite.TestResult, now time.Time) (title, body string) {
	title = fmt.Sprintf("Prompt regression: %d failing test(s) on %s", len(failed), now.Format("2006-01-02"))

	var b strings.Builder
	fmt.Fprintf(&b, "%d test(s) failed in their latest run.\n\n", len(failed))
	for _, r := range failed {
		fmt.Fprintf(&b, "### %s (`%s`)\n\n", r.TestName, r.TestID)
		fmt.Fprintf(&b, "- Provider: %s / %s\n", r.Provider, r.Model)
		fmt.Fprintf(&b, "- Run at: %s (%.2fs)\n", r.Timestamp.UTC().Format(time.RFC3339), r.ExecutionTime)
		if r.Error != "" {
			fmt.Fprintf(&b, "- Error: `%s`\n", r.Error)
		}
		for _, d := range r.EvaluationResults {
			if d.Passed != verify.Fail {
				continue
			}
			fmt.Fprintf(&b, "- [ ] %s: %s\n", d.Description, d.Details)
		}
		if r.Response != "" {
			fmt.Fprintf(&b, "\n<details><summary>Response</summary>\n\n```\n%s\n```\n</details>\n", suite.Truncate(r.Response, 2000))
		}
		b.WriteString("\n")
	}
	return title, b.String()
}

// File opens an issue in repo ("owner/name") listing the failing tests
// found in results.
func (r *Reporter) File(ctx context.Context, owner, name string, results []suite.TestResult, labels []string) (Issue, error) {
	failed := Failures(results)
	if len(failed) == 0 {
		return Issue{}, ErrNothingToReport
	}
	title, body := Render(failed, time.Now())

	req := &gh.IssueRequest{
		Title: &title,
		Body:  &body,
	}
	if len(labels) > 0 {
		req.Labels = &labels
	}

	issue, _, err := r.inner.Issues.Create(ctx, owner, name, req)
	if err != nil {
		return Issue{}, fmt.Errorf("create issue in %s/%s: %w", owner, name, err)
	}
	return Issue{Number: issue.GetNumber(), URL: issue.GetHTMLURL()}, nil
}
