// Package history summarizes, filters and compares stored test results.
package history

import (
	"sort"

	"github.com/cgast/promptreg/pkg/suite"
	"github.com/cgast/promptreg/pkg/verify"
)

// Summary aggregates a set of results.
type Summary struct {
	Total        int     `json:"total"`
	Passed       int     `json:"passed"`
	Failed       int     `json:"failed"`
	Inconclusive int     `json:"inconclusive"`
	AvgSeconds   float64 `json:"avg_seconds"`
}

// PassRate returns the passed share in percent, or 0 for no results.
func (s Summary) PassRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Passed) / float64(s.Total) * 100
}

// Summarize counts verdicts and averages execution time.
func Summarize(results []suite.TestResult) Summary {
	var s Summary
	var total float64
	for _, r := range results {
		s.Total++
		total += r.ExecutionTime
		switch r.Passed {
		case verify.Pass:
			s.Passed++
		case verify.Fail:
			s.Failed++
		default:
			s.Inconclusive++
		}
	}
	if s.Total > 0 {
		s.AvgSeconds = total / float64(s.Total)
	}
	return s
}

// Filter selects results. Empty fields match everything.
type Filter struct {
	Statuses  []verify.Verdict
	TestNames []string
	Models    []string
	TestID    string
}

// Apply returns the matching results, newest first.
func (f Filter) Apply(results []suite.TestResult) []suite.TestResult {
	out := make([]suite.TestResult, 0, len(results))
	for _, r := range results {
		if f.TestID != "" && r.TestID != f.TestID {
			continue
		}
		if len(f.Statuses) > 0 && !contains(f.Statuses, r.Passed) {
			continue
		}
		if len(f.TestNames) > 0 && !contains(f.TestNames, r.TestName) {
			continue
		}
		if len(f.Models) > 0 && !contains(f.Models, r.Model) {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

func contains[T comparable](items []T, v T) bool {
	for _, item := range items {
		if item == v {
			return true
		}
	}
	return false
}

// ParseStatus maps "passed", "failed", "inconclusive" (or "manual") to a verdict.
func ParseStatus(s string) (verify.Verdict, bool) {
	switch s {
	case "passed", "pass":
		return verify.Pass, true
	case "failed", "fail":
		return verify.Fail, true
	case "inconclusive", "manual":
		return verify.Inconclusive, true
	}
	return verify.Inconclusive, false
}

// Latest returns the most recent result per test id, ordered by test id.
// Results are expected in insertion order; equal timestamps favor the
// later entry.
func Latest(results []suite.TestResult) []suite.TestResult {
	_, curr := Snapshots(results)
	return curr
}

// Snapshots splits history into the previous and the latest result of
// each test, both ordered by test id. Tests with a single run appear only
// in curr.
func Snapshots(results []suite.TestResult) (prev, curr []suite.TestResult) {
	type pair struct {
		prev, curr *suite.TestResult
	}
	byTest := make(map[string]*pair)
	for i := range results {
		r := &results[i]
		p, ok := byTest[r.TestID]
		if !ok {
			byTest[r.TestID] = &pair{curr: r}
			continue
		}
		if !r.Timestamp.Before(p.curr.Timestamp) {
			p.prev, p.curr = p.curr, r
		} else if p.prev == nil || !r.Timestamp.Before(p.prev.Timestamp) {
			p.prev = r
		}
	}

	ids := make([]string, 0, len(byTest))
	for id := range byTest {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	curr = make([]suite.TestResult, 0, len(ids))
	for _, id := range ids {
		p := byTest[id]
		curr = append(curr, *p.curr)
		if p.prev != nil {
			prev = append(prev, *p.prev)
		}
	}
	return prev, curr
}
