package eval

import (
	"github.com/calyx-lang/calyx/internal/ir"
)

// Fallback is the defined safe response to an inversion failure: every
// combination of the externally supplied per-variable domains is tried
// against the original predicate, and the satisfying combinations are
// returned as the solution set.
//
// Shapes match Materialize: scalars for a single goal variable, tuples
// in goal order otherwise. The output is deduplicated, so for any
// predicate where inversion succeeds, Fallback over a covering domain
// and Materialize of the inverted result agree as sets.
func (ev *Evaluator) Fallback(expr ir.Expr, goal []string, domains map[string][]ir.Value, binding Binding) ([]ir.Value, error) {
	if len(goal) == 0 {
		return nil, evalErrorf(ErrCodeTypeMismatch, "fallback requires a non-empty goal pattern")
	}
	for _, g := range goal {
		if len(domains[g]) == 0 {
			return nil, evalErrorf(ErrCodeNotEnumerable, "no domain supplied for goal variable %q", g)
		}
	}

	var out []ir.Value
	seen := make(map[string]bool)
	assignment := make([]ir.Value, len(goal))

	var walk func(i int, row Binding) error
	walk = func(i int, row Binding) error {
		if i == len(goal) {
			ok, err := ev.EvalBool(expr, row)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			var candidate ir.Value
			if len(goal) == 1 {
				candidate = assignment[0]
			} else {
				tuple := make(ir.VTuple, len(assignment))
				copy(tuple, assignment)
				candidate = tuple
			}
			key, err := ir.HashValue(candidate)
			if err != nil {
				return err
			}
			if !seen[key] {
				seen[key] = true
				out = append(out, candidate)
			}
			return nil
		}
		for _, v := range domains[goal[i]] {
			assignment[i] = v
			if err := walk(i+1, row.extend(goal[i], v)); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(0, binding); err != nil {
		return nil, err
	}
	return out, nil
}
