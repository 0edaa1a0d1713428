package framework

import (
	"strings"

	"github.com/pkg/errors"
)

// AggregatedError collects the errors returned by concurrent runners.
type AggregatedError struct {
	Errors []error
}

// Error implements error.
func (e *AggregatedError) Error() string {
	switch len(e.Errors) {
	case 0:
		return ""
	case 1:
		return e.Errors[0].Error()
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		msgs = append(msgs, err.Error())
	}
	return "multiple errors: " + strings.Join(msgs, "; ")
}

// Add appends errors, skipping nil ones.
func (e *AggregatedError) Add(errs ...error) *AggregatedError {
	for _, err := range errs {
		if err != nil {
			e.Errors = append(e.Errors, err)
		}
	}
	return e
}

// Contains reports whether any collected error matches target.
func (e *AggregatedError) Contains(target error) bool {
	for _, err := range e.Errors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Aggregate returns nil if nothing was collected.
func (e *AggregatedError) Aggregate() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

// IsOrContains reports whether err is target, or an *AggregatedError
// holding target.
func IsOrContains(err, target error) bool {
	if agg, ok := err.(*AggregatedError); ok {
		return agg.Contains(target)
	}
	return errors.Is(err, target)
}
