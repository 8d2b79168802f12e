// Package testutil provides deterministic helpers shared across the
// engine's test suites: compact IR builders and an in-memory environment
// that stands in for the SQLite-backed store.
package testutil

import (
	"sort"

	"github.com/calyx-lang/calyx/internal/ir"
)

// Ints builds a slice of integer values.
func Ints(ns ...int64) []ir.Value {
	vals := make([]ir.Value, len(ns))
	for i, n := range ns {
		vals[i] = ir.NewVInt(n)
	}
	return vals
}

// IntTuple builds an integer tuple value.
func IntTuple(ns ...int64) ir.Value {
	return ir.NewVTuple(Ints(ns...)...)
}

// IntTuples builds a slice of integer tuples, one per row.
func IntTuples(rows ...[]int64) []ir.Value {
	vals := make([]ir.Value, len(rows))
	for i, row := range rows {
		vals[i] = IntTuple(row...)
	}
	return vals
}

// ListLit builds a literal list expression from the given values.
func ListLit(vals ...ir.Value) ir.Expr {
	return ir.Lit{Value: ir.NewVList(vals...)}
}

// Vars builds variable references for the given names.
func Vars(names ...string) []ir.Expr {
	exprs := make([]ir.Expr, len(names))
	for i, name := range names {
		exprs[i] = ir.Var{Name: name}
	}
	return exprs
}

// TupleOf builds a tuple-construction expression over variable names.
func TupleOf(names ...string) ir.Expr {
	return ir.MkTuple{Elems: Vars(names...)}
}

// Member builds a membership test of a variable tuple against a relation.
func Member(rel string, vars ...string) ir.Expr {
	if len(vars) == 1 {
		return ir.In{Elem: ir.Var{Name: vars[0]}, Coll: ir.Rel{Name: rel}}
	}
	return ir.In{Elem: TupleOf(vars...), Coll: ir.Rel{Name: rel}}
}

// FormatAll formats values and sorts the result, for order-insensitive
// set comparison in assertions.
func FormatAll(vals []ir.Value) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = ir.FormatValue(v)
	}
	sort.Strings(out)
	return out
}
