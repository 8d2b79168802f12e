package eval

import (
	"errors"
	"fmt"
)

// EvalError represents an error detected during expression evaluation
// or generator enumeration.
type EvalError struct {
	// Code identifies the error category.
	Code EvalErrorCode

	// Message is a human-readable description.
	Message string

	// Expr is the deterministic rendering of the offending expression,
	// when one is available.
	Expr string
}

// EvalErrorCode categorizes evaluation errors.
type EvalErrorCode string

const (
	// ErrCodeUnboundVariable indicates a variable had no binding.
	ErrCodeUnboundVariable EvalErrorCode = "UNBOUND_VARIABLE"

	// ErrCodeNotEnumerable indicates enumeration was requested of an
	// expression that does not denote a finite collection.
	ErrCodeNotEnumerable EvalErrorCode = "NOT_ENUMERABLE"

	// ErrCodeTypeMismatch indicates an operand had the wrong value kind.
	ErrCodeTypeMismatch EvalErrorCode = "TYPE_MISMATCH"

	// ErrCodeRebind indicates a comprehension tried to bind a variable
	// that already had a binding. Synthesized comprehensions never do
	// this; hitting it means a synthesis bug escaped.
	ErrCodeRebind EvalErrorCode = "REBIND"

	// ErrCodeRoundsExceeded indicates a fixpoint loop exceeded the
	// round quota without converging.
	ErrCodeRoundsExceeded EvalErrorCode = "ROUNDS_EXCEEDED"

	// ErrCodeCallsExceeded indicates direct evaluation exceeded the
	// user-function inlining quota.
	ErrCodeCallsExceeded EvalErrorCode = "CALLS_EXCEEDED"

	// ErrCodeUnknownRelation indicates a relation reference had no
	// backing data source.
	ErrCodeUnknownRelation EvalErrorCode = "UNKNOWN_RELATION"
)

// Error implements the error interface.
func (e *EvalError) Error() string {
	if e.Expr != "" {
		return fmt.Sprintf("%s: %s (expr=%s)", e.Code, e.Message, e.Expr)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsRoundsExceeded returns true if the error is a fixpoint round quota
// failure. Uses errors.As to handle wrapped errors.
func IsRoundsExceeded(err error) bool {
	var ee *EvalError
	if errors.As(err, &ee) {
		return ee.Code == ErrCodeRoundsExceeded
	}
	return false
}

// IsCallsExceeded returns true if the error is an inlining quota
// failure. Uses errors.As to handle wrapped errors.
func IsCallsExceeded(err error) bool {
	var ee *EvalError
	if errors.As(err, &ee) {
		return ee.Code == ErrCodeCallsExceeded
	}
	return false
}

func evalErrorf(code EvalErrorCode, format string, args ...any) *EvalError {
	return &EvalError{Code: code, Message: fmt.Sprintf(format, args...)}
}
