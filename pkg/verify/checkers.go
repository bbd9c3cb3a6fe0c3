package verify

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// Checker checks a single expectation against a response.
type Checker func(response string, exp Expectation) Diagnostic

var (
	checkersMu sync.RWMutex
	checkers   = map[Kind]Checker{
		KindContains:    checkContains,
		KindNotContains: checkNotContains,
		KindRegex:       checkRegex,
		KindLengthMin:   checkLengthMin,
		KindLengthMax:   checkLengthMax,
		KindManual:      checkManual,
	}
)

// RegisterChecker adds or replaces the checker for a kind.
func RegisterChecker(kind Kind, checker Checker) {
	checkersMu.Lock()
	defer checkersMu.Unlock()
	checkers[kind] = checker
}

// GetChecker returns the checker for a kind, or nil if none is registered.
func GetChecker(kind Kind) Checker {
	checkersMu.RLock()
	defer checkersMu.RUnlock()
	return checkers[kind]
}

// ValidPattern reports whether p compiles as a regular expression.
func ValidPattern(p string) error {
	if _, err := regexp.Compile(p); err != nil {
		return fmt.Errorf("invalid pattern %q: %w", p, err)
	}
	return nil
}

func newDiagnostic(exp Expectation) Diagnostic {
	return Diagnostic{
		Kind:        exp.Kind,
		Description: exp.Label(),
		Passed:      Fail,
	}
}

// fold lower-cases with Unicode case folding. Casers are stateful, so one per call.
func fold(s string) string {
	return cases.Fold().String(s)
}

func foundWord(ok bool) string {
	if ok {
		return "found"
	}
	return "not found"
}

func checkContains(response string, exp Expectation) Diagnostic {
	d := newDiagnostic(exp)
	needle := fmt.Sprintf("%v", exp.Value)
	found := strings.Contains(fold(response), fold(needle))
	d.Passed = VerdictOf(found)
	d.Details = fmt.Sprintf("Looking for: '%s' (%s)", needle, foundWord(found))
	return d
}

func checkNotContains(response string, exp Expectation) Diagnostic {
	d := newDiagnostic(exp)
	needle := fmt.Sprintf("%v", exp.Value)
	found := strings.Contains(fold(response), fold(needle))
	d.Passed = VerdictOf(!found)
	d.Details = fmt.Sprintf("Should not contain: '%s' (%s)", needle, foundWord(found))
	return d
}

func checkRegex(response string, exp Expectation) Diagnostic {
	d := newDiagnostic(exp)
	pattern := fmt.Sprintf("%v", exp.Value)

	re, err := regexp.Compile(pattern)
	if err != nil {
		d.Details = fmt.Sprintf("Pattern: %s, error: %v", pattern, err)
		return d
	}

	loc := re.FindStringIndex(response)
	if loc == nil {
		d.Details = fmt.Sprintf("Pattern: %s, no match", pattern)
		return d
	}
	d.Passed = Pass
	d.Details = fmt.Sprintf("Pattern: %s, Match: '%s'", pattern, truncate(response[loc[0]:loc[1]], 80))
	return d
}

func checkLengthMin(response string, exp Expectation) Diagnostic {
	d := newDiagnostic(exp)
	bound, err := toInt(exp.Value)
	if err != nil {
		d.Details = fmt.Sprintf("Min length: invalid value %v: %v", exp.Value, err)
		return d
	}
	actual := utf8.RuneCountInString(response)
	d.Passed = VerdictOf(actual >= bound)
	d.Details = fmt.Sprintf("Min length: %d, Actual: %d", bound, actual)
	return d
}

func checkLengthMax(response string, exp Expectation) Diagnostic {
	d := newDiagnostic(exp)
	bound, err := toInt(exp.Value)
	if err != nil {
		d.Details = fmt.Sprintf("Max length: invalid value %v: %v", exp.Value, err)
		return d
	}
	actual := utf8.RuneCountInString(response)
	d.Passed = VerdictOf(actual <= bound)
	d.Details = fmt.Sprintf("Max length: %d, Actual: %d", bound, actual)
	return d
}

func checkManual(_ string, exp Expectation) Diagnostic {
	d := newDiagnostic(exp)
	d.Passed = Inconclusive
	d.Details = "Manual review required"
	return d
}

// toInt converts the numeric shapes YAML and JSON decoding produce to int.
// Fractional floats are rejected.
func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%v is not an integer", n)
		}
		return int(n), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(n))
	default:
		return 0, fmt.Errorf("cannot convert %T to int", v)
	}
}

// IsInteger reports whether v is usable as a length bound.
func IsInteger(v any) bool {
	_, err := toInt(v)
	return err == nil
}

// truncate limits a string to maxLen runes so the result stays valid UTF-8.
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen]) + "..."
}
