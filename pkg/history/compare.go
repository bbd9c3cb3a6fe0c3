package history

import (
	"sort"

	"github.com/cgast/promptreg/pkg/suite"
	"github.com/cgast/promptreg/pkg/verify"
)

// Change types.
const (
	ChangeAdded     = "added"
	ChangeRemoved   = "removed"
	ChangeRegressed = "regressed" // now failing
	ChangeFixed     = "fixed"     // was failing, now passing
	ChangeChanged   = "changed"   // any other verdict change
)

// Change records a verdict difference for one test between two snapshots.
type Change struct {
	TestID   string         `json:"test_id"`
	TestName string         `json:"test_name"`
	Before   verify.Verdict `json:"before"`
	After    verify.Verdict `json:"after"`
	Type     string         `json:"type"`
}

// Compare diffs two snapshots keyed by test id. Unchanged verdicts are
// omitted. Changes are ordered by test id.
func Compare(prev, curr []suite.TestResult) []Change {
	before := index(prev)
	after := index(curr)

	changes := make([]Change, 0)
	for id, a := range before {
		b, ok := after[id]
		if !ok {
			changes = append(changes, Change{TestID: id, TestName: a.TestName, Before: a.Passed, Type: ChangeRemoved})
			continue
		}
		if a.Passed == b.Passed {
			continue
		}
		changes = append(changes, Change{
			TestID:   id,
			TestName: b.TestName,
			Before:   a.Passed,
			After:    b.Passed,
			Type:     classify(a.Passed, b.Passed),
		})
	}
	for id, b := range after {
		if _, ok := before[id]; !ok {
			changes = append(changes, Change{TestID: id, TestName: b.TestName, After: b.Passed, Type: ChangeAdded})
		}
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].TestID < changes[j].TestID })
	return changes
}

func classify(before, after verify.Verdict) string {
	switch {
	case after == verify.Fail:
		return ChangeRegressed
	case before == verify.Fail && after == verify.Pass:
		return ChangeFixed
	default:
		return ChangeChanged
	}
}

// index keeps the last result seen per test id.
func index(results []suite.TestResult) map[string]suite.TestResult {
	m := make(map[string]suite.TestResult, len(results))
	for _, r := range results {
		m[r.TestID] = r
	}
	return m
}
