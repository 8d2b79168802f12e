package ir

import (
	"fmt"
	"strings"
)

// Value is a sealed interface representing constrained runtime values.
// Only VString, VInt, VBool, VTuple, and VList implement this.
// NO floats and NO null - both break deterministic value identity, which
// the inversion engine relies on for deduplication and memoization.
type Value interface {
	value() // Sealed - only these types implement it
}

// VString represents a string value.
type VString string

func (VString) value() {}

// VInt represents an integer value.
// Always int64, never float64.
type VInt int64

func (VInt) value() {}

// VBool represents a boolean value.
type VBool bool

func (VBool) value() {}

// VTuple represents an ordered, fixed-arity grouping of values.
// Tuples are the currency of generators: every enumerated candidate
// binding is materialized as one VTuple in goal-pattern order.
type VTuple []Value

func (VTuple) value() {}

// VList represents an ordered collection of values.
// Lists are enumerable: a literal VList is always a finite collection.
type VList []Value

func (VList) value() {}

// NewVString creates a VString value.
func NewVString(s string) VString {
	return VString(s)
}

// NewVInt creates a VInt value.
func NewVInt(n int64) VInt {
	return VInt(n)
}

// NewVBool creates a VBool value.
func NewVBool(b bool) VBool {
	return VBool(b)
}

// NewVTuple creates a VTuple from values.
func NewVTuple(vals ...Value) VTuple {
	return VTuple(vals)
}

// NewVList creates a VList from values.
func NewVList(vals ...Value) VList {
	return VList(vals)
}

// ValueEqual reports deep value equality.
// Tuples never equal lists of the same elements; kind is part of identity.
func ValueEqual(a, b Value) bool {
	switch av := a.(type) {
	case VString:
		bv, ok := b.(VString)
		return ok && av == bv
	case VInt:
		bv, ok := b.(VInt)
		return ok && av == bv
	case VBool:
		bv, ok := b.(VBool)
		return ok && av == bv
	case VTuple:
		bv, ok := b.(VTuple)
		return ok && sliceEqual([]Value(av), []Value(bv))
	case VList:
		bv, ok := b.(VList)
		return ok && sliceEqual([]Value(av), []Value(bv))
	default:
		return false
	}
}

func sliceEqual(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !ValueEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

// FormatValue renders a value in the deterministic surface syntax used by
// diagnostics and golden files.
func FormatValue(v Value) string {
	switch val := v.(type) {
	case VString:
		return fmt.Sprintf("%q", string(val))
	case VInt:
		return fmt.Sprintf("%d", int64(val))
	case VBool:
		if val {
			return "true"
		}
		return "false"
	case VTuple:
		return "(" + joinValues([]Value(val)) + ")"
	case VList:
		return "[" + joinValues([]Value(val)) + "]"
	default:
		return fmt.Sprintf("<unknown %T>", v)
	}
}

func joinValues(vals []Value) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = FormatValue(v)
	}
	return strings.Join(parts, ", ")
}
