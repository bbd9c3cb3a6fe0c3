// Package store persists test cases and their results.
package store

import (
	"errors"

	"github.com/cgast/promptreg/pkg/suite"
)

// ErrNotFound is returned when a test case id is not in the store.
var ErrNotFound = errors.New("not found")

// Gateway is the persistence boundary used by the CLI, the API server and
// the runner's result sink. Test cases are keyed by id; results are an
// append-only log.
type Gateway interface {
	// SaveTestCase appends a new test case or replaces the one with the same id.
	SaveTestCase(tc suite.TestCase) error
	GetTestCase(id string) (suite.TestCase, error)
	// ListTestCases returns test cases ordered by CreatedAt, then ID.
	ListTestCases() ([]suite.TestCase, error)
	DeleteTestCase(id string) error
	AppendResult(r suite.TestResult) error
	// ListResults returns results in insertion order.
	ListResults() ([]suite.TestResult, error)
	ResultsForTest(testID string) ([]suite.TestResult, error)
	Close() error
}
