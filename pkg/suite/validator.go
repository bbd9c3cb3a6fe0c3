package suite

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/cgast/promptreg/pkg/verify"
)

// Suite document identifiers.
const (
	APIVersion = "promptreg/v1"
	KindSuite  = "Suite"
)

// ValidationError represents a single validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationResult holds all validation errors found.
type ValidationResult struct {
	Errors []ValidationError
}

// Valid returns true if no validation errors were found.
func (r ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// Error returns a combined error message from all validation errors.
func (r ValidationResult) Error() string {
	if r.Valid() {
		return ""
	}
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(msgs, "; "))
}

func (r *ValidationResult) add(field, format string, args ...any) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// structValidator reports fields by their json names.
func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks a test case before it is saved.
func Validate(tc TestCase) ValidationResult {
	return validateCase("", tc)
}

func validateCase(prefix string, tc TestCase) ValidationResult {
	var result ValidationResult

	if err := structValidator().Struct(tc); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			result.add(prefix+"test", "%v", err)
			return result
		}
		for _, fe := range fieldErrs {
			field := strings.TrimPrefix(fe.Namespace(), "TestCase.")
			result.add(prefix+field, "%s", describeFieldError(fe))
		}
	}

	if strings.TrimSpace(tc.Name) == "" && tc.Name != "" {
		result.add(prefix+"name", "must not be blank")
	}
	if strings.TrimSpace(tc.Prompt) == "" && tc.Prompt != "" {
		result.add(prefix+"prompt", "must not be blank")
	}

	for i, exp := range tc.Expectations {
		field := fmt.Sprintf("%sexpectations[%d].value", prefix, i)
		switch exp.Kind {
		case verify.KindRegex:
			if err := verify.ValidPattern(fmt.Sprintf("%v", exp.Value)); err != nil {
				result.add(field, "%v", err)
			}
		case verify.KindLengthMin, verify.KindLengthMax:
			if !verify.IsInteger(exp.Value) {
				result.add(field, "must be an integer, got %v", exp.Value)
			}
		case verify.KindContains, verify.KindNotContains:
			if exp.Value == nil {
				result.add(field, "required")
			}
		}
	}

	return result
}

// ValidateSuite checks the document header, every test case and id uniqueness.
func ValidateSuite(s Suite) ValidationResult {
	var result ValidationResult

	if s.APIVersion == "" {
		result.add("apiVersion", "required")
	} else if s.APIVersion != APIVersion {
		result.add("apiVersion", "unsupported version %q (expected %s)", s.APIVersion, APIVersion)
	}
	if s.Kind == "" {
		result.add("kind", "required")
	} else if s.Kind != KindSuite {
		result.add("kind", "unsupported kind %q (expected %s)", s.Kind, KindSuite)
	}

	seen := make(map[string]int)
	for i, tc := range s.Cases {
		prefix := fmt.Sprintf("tests[%d].", i)
		if first, dup := seen[tc.ID]; dup {
			result.add(prefix+"id", "duplicate id %q (also tests[%d])", tc.ID, first)
		} else {
			seen[tc.ID] = i
		}
		result.Errors = append(result.Errors, validateCase(prefix, tc).Errors...)
	}

	return result
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %q", fe.Param(), fmt.Sprintf("%v", fe.Value()))
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be <= %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be > %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
