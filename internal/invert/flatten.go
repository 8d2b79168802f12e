package invert

import (
	"fmt"

	"github.com/calyx-lang/calyx/internal/gen"
	"github.com/calyx-lang/calyx/internal/ir"
)

// UnionFinite merges finite generators into one finite generator whose
// enumeration is the deduplicated concatenation of all inputs, in input
// order. Duplicates are removed by value equality of the produced tuples
// (the evaluator's union primitive dedups by canonical value identity).
//
// CONTRACT: the input list is non-empty, every generator is Finite, and
// all generators bind the same variables in the same order. Callers
// filter to finite branches first and treat "no finite branches" as an
// inversion failure, never as an empty union. Violations are programmer
// errors and panic.
func UnionFinite(gens []gen.Generator) gen.Generator {
	if len(gens) == 0 {
		panic("invert: UnionFinite called with zero generators")
	}
	first := gens[0]
	if first.Cardinality != gen.Finite {
		panic(fmt.Sprintf("invert: UnionFinite given %s generator", first.Cardinality))
	}
	if len(gens) == 1 {
		return first
	}

	args := make([]ir.Expr, len(gens))
	for i, g := range gens {
		if g.Cardinality != gen.Finite {
			panic(fmt.Sprintf("invert: UnionFinite given %s generator at position %d", g.Cardinality, i))
		}
		if !sameBinds(g.Binds, first.Binds) {
			panic(fmt.Sprintf("invert: UnionFinite binds mismatch: %v vs %v", g.Binds, first.Binds))
		}
		args[i] = g.Expr
	}

	return gen.Generator{
		Cardinality: gen.Finite,
		Expr:        ir.Builtin{Op: ir.BuiltinUnion, Args: args},
		Binds:       first.Binds,
	}
}

func sameBinds(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
