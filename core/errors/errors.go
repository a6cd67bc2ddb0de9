package errors

import (
	"errors"
	"fmt"
)

type Category string

const (
	// CategoryConfig marks a policy document that cannot be used. The gate did not run.
	CategoryConfig Category = "config_error"
	// CategoryInput marks metric records that violate a structural invariant. The gate did not run.
	CategoryInput           Category = "input_error"
	CategoryIOFailure       Category = "io_failure"
	CategoryVerification    Category = "verification_failed"
	CategoryInternalFailure Category = "internal_failure"
)

type classifiedError struct {
	category  Category
	code      string
	field     string
	hint      string
	retryable bool
	cause     error
}

func (e *classifiedError) Error() string {
	if e.cause == nil {
		return "unknown error"
	}
	return e.cause.Error()
}

func (e *classifiedError) Unwrap() error {
	return e.cause
}

func Wrap(cause error, category Category, code, hint string, retryable bool) error {
	if cause == nil {
		return nil
	}
	return &classifiedError{
		category:  category,
		code:      code,
		hint:      hint,
		retryable: retryable,
		cause:     cause,
	}
}

// Config builds a config_error naming the offending policy field.
func Config(field string, format string, args ...any) error {
	return &classifiedError{
		category: CategoryConfig,
		code:     "policy_invalid",
		field:    field,
		hint:     "fix " + field + " in the policy document",
		cause:    fmt.Errorf("policy %s: %s", field, fmt.Sprintf(format, args...)),
	}
}

// Input builds an input_error naming the offending metric field.
func Input(field string, format string, args ...any) error {
	return &classifiedError{
		category: CategoryInput,
		code:     "signals_invalid",
		field:    field,
		hint:     "fix " + field + " in the metric inputs",
		cause:    fmt.Errorf("signals %s: %s", field, fmt.Sprintf(format, args...)),
	}
}

func CategoryOf(err error) Category {
	var classified *classifiedError
	if errors.As(err, &classified) {
		return classified.category
	}
	return ""
}

func CodeOf(err error) string {
	var classified *classifiedError
	if errors.As(err, &classified) {
		return classified.code
	}
	return ""
}

func FieldOf(err error) string {
	var classified *classifiedError
	if errors.As(err, &classified) {
		return classified.field
	}
	return ""
}

func HintOf(err error) string {
	var classified *classifiedError
	if errors.As(err, &classified) {
		return classified.hint
	}
	return ""
}

func RetryableOf(err error) bool {
	var classified *classifiedError
	if errors.As(err, &classified) {
		return classified.retryable
	}
	return false
}

// IsConfig reports whether err aborted evaluation because of the policy document.
func IsConfig(err error) bool {
	return CategoryOf(err) == CategoryConfig
}

// IsInput reports whether err aborted evaluation because of malformed metric records.
func IsInput(err error) bool {
	return CategoryOf(err) == CategoryInput
}
