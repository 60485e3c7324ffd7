package types

import (
	"fmt"
	"strings"
)

// ValidationError collects every violated rule found while building a
// request, so callers see the full picture instead of the first failure.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s", strings.Join(e.Violations, "; "))
}

// Add appends a formatted violation
func (e *ValidationError) Add(format string, args ...interface{}) {
	e.Violations = append(e.Violations, fmt.Sprintf(format, args...))
}

// HasViolations reports whether any rule failed
func (e *ValidationError) HasViolations() bool {
	return len(e.Violations) > 0
}

// InfeasibleError means no lineup can satisfy the hard constraints
type InfeasibleError struct {
	Reasons []string
}

func (e *InfeasibleError) Error() string {
	return fmt.Sprintf("infeasible constraints: %s", strings.Join(e.Reasons, "; "))
}

// TimeoutError means the caller-supplied deadline expired; partial results
// accompany it on the response, never through the error itself.
type TimeoutError struct {
	Stage string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("deadline exceeded during %s", e.Stage)
}

// NumericError covers unrepairable numeric failures such as a correlation
// matrix that cannot be projected to PSD or NaN variance inputs.
type NumericError struct {
	Detail string
}

func (e *NumericError) Error() string {
	return fmt.Sprintf("numeric failure: %s", e.Detail)
}
