package verify

import (
	"encoding/json"
	"fmt"
)

// Kind names an expectation type.
type Kind string

const (
	KindContains    Kind = "contains"
	KindNotContains Kind = "not_contains"
	KindRegex       Kind = "regex"
	KindLengthMin   Kind = "length_min"
	KindLengthMax   Kind = "length_max"
	KindManual      Kind = "manual"
)

// Kinds lists every expectation kind the evaluator understands.
var Kinds = []Kind{KindContains, KindNotContains, KindRegex, KindLengthMin, KindLengthMax, KindManual}

// Expectation is one declarative assertion checked against a generated response.
type Expectation struct {
	Kind        Kind   `json:"kind" yaml:"kind" validate:"required,oneof=contains not_contains regex length_min length_max manual"`
	Value       any    `json:"value" yaml:"value"` // string for text kinds, integer for length bounds
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Label returns the description, or "{kind}: {value}" when none was given.
func (e Expectation) Label() string {
	if e.Description != "" {
		return e.Description
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Value)
}

// Verdict is a tri-state outcome. The zero value is Inconclusive.
type Verdict int8

const (
	Inconclusive Verdict = iota
	Pass
	Fail
)

// VerdictOf converts a boolean check into a Verdict.
func VerdictOf(ok bool) Verdict {
	if ok {
		return Pass
	}
	return Fail
}

func (v Verdict) String() string {
	switch v {
	case Pass:
		return "passed"
	case Fail:
		return "failed"
	default:
		return "inconclusive"
	}
}

// MarshalJSON encodes Pass, Fail and Inconclusive as true, false and null.
func (v Verdict) MarshalJSON() ([]byte, error) {
	switch v {
	case Pass:
		return []byte("true"), nil
	case Fail:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

func (v *Verdict) UnmarshalJSON(data []byte) error {
	var b *bool
	if err := json.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("verdict: %w", err)
	}
	switch {
	case b == nil:
		*v = Inconclusive
	case *b:
		*v = Pass
	default:
		*v = Fail
	}
	return nil
}

// Diagnostic records the outcome of checking a single expectation.
type Diagnostic struct {
	Kind        Kind    `json:"kind"`
	Description string  `json:"description"`
	Passed      Verdict `json:"passed"`
	Details     string  `json:"details"`
}
