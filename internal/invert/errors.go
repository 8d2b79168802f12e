package invert

import (
	"errors"
	"fmt"
)

// InversionError explains why no sound finite generator could be
// constructed.
//
// The contract deliberately flattens the taxonomy: callers must branch
// only on "got a result" vs "fell back", never on the code. The code and
// fields exist for diagnostics and logging - distinguishing an unbounded
// base case from an unsupported shape matters to a human reading a trace,
// not to the fallback path, which is the same safe exhaustive enumeration
// either way.
type InversionError struct {
	// Code identifies the failure category.
	Code FailureCode

	// Message is a human-readable description.
	Message string

	// Expr is the deterministic rendering of the offending expression.
	Expr string

	// Fn identifies the user function involved (for recursion/depth
	// failures).
	Fn string
}

// FailureCode categorizes inversion failures.
type FailureCode string

const (
	// CodeUnsupportedShape indicates the expression matches no recognized
	// invertible pattern.
	CodeUnsupportedShape FailureCode = "UNSUPPORTED_SHAPE"

	// CodeUnboundedBase indicates a recursive predicate's base case could
	// not be proven finite.
	CodeUnboundedBase FailureCode = "UNBOUNDED_BASE"

	// CodeUnsupportedRecursion indicates more than one self-call, or
	// mutual recursion between distinct functions.
	CodeUnsupportedRecursion FailureCode = "UNSUPPORTED_RECURSION"

	// CodeDepthExceeded indicates the inlining depth bound was exceeded.
	CodeDepthExceeded FailureCode = "DEPTH_EXCEEDED"
)

// Error implements the error interface.
func (e *InversionError) Error() string {
	if e.Fn != "" {
		return fmt.Sprintf("%s: %s (fn=%s)", e.Code, e.Message, e.Fn)
	}
	if e.Expr != "" {
		return fmt.Sprintf("%s: %s (expr=%s)", e.Code, e.Message, e.Expr)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// CodeOf returns the failure code of an inversion error, or "" if err is
// not an InversionError. Uses errors.As to handle wrapped errors.
func CodeOf(err error) FailureCode {
	var ie *InversionError
	if errors.As(err, &ie) {
		return ie.Code
	}
	return ""
}

// IsDepthExceeded returns true if the error is a depth-bound failure.
func IsDepthExceeded(err error) bool {
	return CodeOf(err) == CodeDepthExceeded
}

// IsUnboundedBase returns true if the error is an unbounded-base failure.
func IsUnboundedBase(err error) bool {
	return CodeOf(err) == CodeUnboundedBase
}

func unsupportedShape(format string, args ...any) *InversionError {
	return &InversionError{Code: CodeUnsupportedShape, Message: fmt.Sprintf(format, args...)}
}

func unsupportedRecursion(fn, format string, args ...any) *InversionError {
	return &InversionError{Code: CodeUnsupportedRecursion, Message: fmt.Sprintf(format, args...), Fn: fn}
}
