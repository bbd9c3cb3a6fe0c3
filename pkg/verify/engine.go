package verify

import "fmt"

// Evaluator applies expectations to a generated response.
type Evaluator struct{}

// NewEvaluator creates an evaluator backed by the registered checkers.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Evaluate checks every expectation independently and aggregates a verdict.
//
// No expectations means Inconclusive with no diagnostics. Otherwise any
// failed expectation fails the whole response; failing that, a manual
// expectation leaves it Inconclusive; only a clean sweep of automatic
// checks passes.
func (e *Evaluator) Evaluate(response string, expectations []Expectation) (Verdict, []Diagnostic) {
	diagnostics := make([]Diagnostic, 0, len(expectations))
	if len(expectations) == 0 {
		return Inconclusive, diagnostics
	}

	failed, pending := false, false
	for _, exp := range expectations {
		d := e.check(response, exp)
		diagnostics = append(diagnostics, d)

		switch d.Passed {
		case Fail:
			failed = true
		case Inconclusive:
			pending = true
		}
	}

	switch {
	case failed:
		return Fail, diagnostics
	case pending:
		return Inconclusive, diagnostics
	default:
		return Pass, diagnostics
	}
}

func (e *Evaluator) check(response string, exp Expectation) (d Diagnostic) {
	checker := GetChecker(exp.Kind)
	if checker == nil {
		d = newDiagnostic(exp)
		d.Details = fmt.Sprintf("unknown expectation kind %q", exp.Kind)
		return d
	}

	// A misbehaving custom checker fails its own expectation only.
	defer func() {
		if r := recover(); r != nil {
			d = newDiagnostic(exp)
			d.Details = fmt.Sprintf("checker panic: %v", r)
		}
	}()
	return checker(response, exp)
}

// Evaluate is a convenience wrapper around a default Evaluator.
func Evaluate(response string, expectations []Expectation) (Verdict, []Diagnostic) {
	return NewEvaluator().Evaluate(response, expectations)
}
