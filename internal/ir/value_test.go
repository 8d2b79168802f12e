package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValueEqualScalars(t *testing.T) {
	tests := []struct {
		name  string
		a, b  Value
		equal bool
	}{
		{"equal strings", VString("a"), VString("a"), true},
		{"different strings", VString("a"), VString("b"), false},
		{"equal ints", VInt(42), VInt(42), true},
		{"different ints", VInt(42), VInt(-42), false},
		{"equal bools", VBool(true), VBool(true), true},
		{"different bools", VBool(true), VBool(false), false},
		{"string vs int", VString("1"), VInt(1), false},
		{"bool vs int", VBool(true), VInt(1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.equal, ValueEqual(tt.a, tt.b))
		})
	}
}

func TestValueEqualComposites(t *testing.T) {
	tests := []struct {
		name  string
		a, b  Value
		equal bool
	}{
		{"equal tuples", NewVTuple(VInt(1), VInt(2)), NewVTuple(VInt(1), VInt(2)), true},
		{"reordered tuples", NewVTuple(VInt(1), VInt(2)), NewVTuple(VInt(2), VInt(1)), false},
		{"different arity", NewVTuple(VInt(1)), NewVTuple(VInt(1), VInt(2)), false},
		{"equal lists", NewVList(VString("x")), NewVList(VString("x")), true},
		{"nested", NewVList(NewVTuple(VInt(1), VInt(2))), NewVList(NewVTuple(VInt(1), VInt(2))), true},
		// Kind is part of identity: a tuple never equals a list.
		{"tuple vs list", NewVTuple(VInt(1), VInt(2)), NewVList(VInt(1), VInt(2)), false},
		{"empty tuple vs empty list", NewVTuple(), NewVList(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.equal, ValueEqual(tt.a, tt.b))
		})
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name     string
		input    Value
		expected string
	}{
		{"string", VString("hello"), `"hello"`},
		{"int", VInt(-7), "-7"},
		{"bool", VBool(false), "false"},
		{"tuple", NewVTuple(VInt(1), VString("a")), `(1, "a")`},
		{"list", NewVList(VInt(1), VInt(2)), "[1, 2]"},
		{"empty list", NewVList(), "[]"},
		{"nested", NewVList(NewVTuple(VInt(1), VInt(2))), "[(1, 2)]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatValue(tt.input))
		})
	}
}
