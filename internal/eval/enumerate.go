package eval

import (
	"fmt"

	"github.com/calyx-lang/calyx/internal/gen"
	"github.com/calyx-lang/calyx/internal/ir"
)

// Enumerate materializes a generator expression into its elements under
// the binding. Recognized forms: literal lists, variables bound to
// lists, relation references, union, iterate, and comprehensions.
//
// Enumeration preserves source order. It does not deduplicate except
// where the form itself promises a set (union, iterate, relations);
// callers consuming a MayHaveDuplicates generator deduplicate
// themselves or use Materialize.
func (ev *Evaluator) Enumerate(e ir.Expr, binding Binding) ([]ir.Value, error) {
	return ev.enumerate(e, binding, newCallQuota(ev.maxCalls))
}

func (ev *Evaluator) enumerate(e ir.Expr, binding Binding, calls *callQuota) ([]ir.Value, error) {
	switch ex := e.(type) {
	case ir.Lit:
		if list, ok := ex.Value.(ir.VList); ok {
			return []ir.Value(list), nil
		}
		return nil, notEnumerable(e)

	case ir.Var:
		v, ok := binding[ex.Name]
		if !ok || v == nil {
			return nil, evalErrorf(ErrCodeUnboundVariable, "collection variable %q is unbound", ex.Name)
		}
		if list, ok := v.(ir.VList); ok {
			return []ir.Value(list), nil
		}
		return nil, notEnumerable(e)

	case ir.Rel:
		if ev.src == nil {
			return nil, evalErrorf(ErrCodeUnknownRelation, "no relation source configured for %q", ex.Name)
		}
		vals, err := ev.src.EnumerateRelation(ex.Name)
		if err != nil {
			return nil, fmt.Errorf("enumerate relation %q: %w", ex.Name, err)
		}
		return vals, nil

	case ir.Builtin:
		switch ex.Op {
		case ir.BuiltinUnion:
			return ev.enumerateUnion(ex.Args, binding, calls)
		case ir.BuiltinIterate:
			return ev.enumerateIterate(ex, binding, calls)
		default:
			return nil, notEnumerable(e)
		}

	case ir.Comprehension:
		return ev.enumerateComprehension(ex, binding, calls)

	default:
		return nil, notEnumerable(e)
	}
}

func notEnumerable(e ir.Expr) *EvalError {
	return &EvalError{
		Code:    ErrCodeNotEnumerable,
		Message: "expression does not denote a finite collection",
		Expr:    ir.Format(e),
	}
}

// enumerateUnion concatenates the member enumerations in input order and
// removes duplicates by value identity.
func (ev *Evaluator) enumerateUnion(args []ir.Expr, binding Binding, calls *callQuota) ([]ir.Value, error) {
	var out []ir.Value
	seen := make(map[string]bool)
	for _, arg := range args {
		vals, err := ev.enumerate(arg, binding, calls)
		if err != nil {
			return nil, err
		}
		for _, v := range vals {
			key, err := ir.HashValue(v)
			if err != nil {
				return nil, err
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, v)
		}
	}
	return out, nil
}

// enumerateIterate runs the iterate-to-fixpoint primitive: the least
// relation containing the seed and closed under the step function.
//
// Rounds are semi-naive: the step lambda is applied to the newest delta
// only, which is equivalent to applying it to the full accumulation for
// the single-join steps the synthesizer produces, and avoids re-deriving
// the bulk of the relation every round. New tuples are deduplicated by
// value identity; the loop stops when a round derives nothing new. An
// empty seed converges in zero rounds.
func (ev *Evaluator) enumerateIterate(it ir.Builtin, binding Binding, calls *callQuota) ([]ir.Value, error) {
	if len(it.Args) != 2 {
		return nil, evalErrorf(ErrCodeTypeMismatch, "iterate expects (seed, step), got %d arguments", len(it.Args))
	}
	step, ok := it.Args[1].(ir.Lambda)
	if !ok {
		return nil, &EvalError{
			Code:    ErrCodeTypeMismatch,
			Message: "iterate step must be a lambda",
			Expr:    ir.Format(it.Args[1]),
		}
	}

	seed, err := ev.enumerate(it.Args[0], binding, calls)
	if err != nil {
		return nil, err
	}

	var acc []ir.Value
	seen := make(map[string]bool)
	var delta []ir.Value
	for _, v := range seed {
		key, err := ir.HashValue(v)
		if err != nil {
			return nil, err
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		acc = append(acc, v)
		delta = append(delta, v)
	}

	quota := newRoundQuota(ev.maxRounds)
	for len(delta) > 0 {
		if err := quota.check(); err != nil {
			ev.logger.Error("fixpoint aborted", "rounds", ev.maxRounds, "size", len(acc))
			return nil, err
		}

		stepBinding := binding.extend(step.Param, ir.VList(delta))
		derived, err := ev.enumerate(step.Body, stepBinding, calls)
		if err != nil {
			return nil, err
		}

		delta = delta[:0]
		for _, v := range derived {
			key, err := ir.HashValue(v)
			if err != nil {
				return nil, err
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			acc = append(acc, v)
			delta = append(delta, v)
		}
		ev.logger.Debug("fixpoint round", "round", quota.current, "new", len(delta), "total", len(acc))
	}
	return acc, nil
}

// enumerateComprehension executes the clause list left to right: Bind
// clauses fan rows out over their source, Guard clauses filter rows.
// Surviving rows are projected through the head.
func (ev *Evaluator) enumerateComprehension(c ir.Comprehension, binding Binding, calls *callQuota) ([]ir.Value, error) {
	rows := []Binding{binding}
	for _, clause := range c.Clauses {
		var err error
		switch cl := clause.(type) {
		case ir.Bind:
			rows, err = ev.bindRows(rows, cl, calls)
		case ir.Guard:
			rows, err = ev.guardRows(rows, cl, calls)
		default:
			err = evalErrorf(ErrCodeTypeMismatch, "unknown clause type %T", clause)
		}
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, nil
		}
	}

	out := make([]ir.Value, 0, len(rows))
	for _, row := range rows {
		if len(c.Head) == 1 {
			v, err := ev.eval(c.Head[0], row, calls)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
			continue
		}
		tuple := make(ir.VTuple, len(c.Head))
		for i, h := range c.Head {
			v, err := ev.eval(h, row, calls)
			if err != nil {
				return nil, err
			}
			tuple[i] = v
		}
		out = append(out, tuple)
	}
	return out, nil
}

func (ev *Evaluator) bindRows(rows []Binding, bind ir.Bind, calls *callQuota) ([]Binding, error) {
	var out []Binding
	for _, row := range rows {
		elems, err := ev.enumerate(bind.Source, row, calls)
		if err != nil {
			return nil, err
		}
		for _, elem := range elems {
			extended, err := destructure(row, bind.Vars, elem)
			if err != nil {
				return nil, err
			}
			out = append(out, extended)
		}
	}
	return out, nil
}

// destructure binds an enumerated element to the clause variables.
// A single variable takes the element as-is; multiple variables require
// a tuple of matching arity. Rebinding is a synthesis bug, not a join.
func destructure(row Binding, vars []string, elem ir.Value) (Binding, error) {
	if len(vars) == 1 {
		if _, exists := row[vars[0]]; exists {
			return nil, evalErrorf(ErrCodeRebind, "variable %q is already bound", vars[0])
		}
		return row.extend(vars[0], elem), nil
	}

	tuple, ok := elem.(ir.VTuple)
	if !ok || len(tuple) != len(vars) {
		return nil, evalErrorf(ErrCodeTypeMismatch,
			"cannot destructure %s into %d variables", ir.FormatValue(elem), len(vars))
	}
	out := row
	for i, v := range vars {
		if _, exists := out[v]; exists {
			return nil, evalErrorf(ErrCodeRebind, "variable %q is already bound", v)
		}
		out = out.extend(v, tuple[i])
	}
	return out, nil
}

func (ev *Evaluator) guardRows(rows []Binding, guard ir.Guard, calls *callQuota) ([]Binding, error) {
	out := rows[:0:0]
	for _, row := range rows {
		keep, err := ev.evalCondition(guard.Cond, row, calls)
		if err != nil {
			return nil, err
		}
		if keep {
			out = append(out, row)
		}
	}
	return out, nil
}

// Materialize enumerates an inversion result and applies its remaining
// filters, returning the deduplicated solution set: scalars when one
// goal variable is satisfied, tuples in SatisfiedPats order otherwise.
//
// This is the post-filter contract every InversionResult consumer must
// honor, implemented once.
func (ev *Evaluator) Materialize(res *gen.InversionResult, binding Binding) ([]ir.Value, error) {
	if err := gen.Validate(res); err != nil {
		return nil, fmt.Errorf("materialize: %w", err)
	}

	candidates, err := ev.Enumerate(res.Generator.Expr, binding)
	if err != nil {
		return nil, err
	}

	calls := newCallQuota(ev.maxCalls)
	var out []ir.Value
	seen := make(map[string]bool)
	for _, candidate := range candidates {
		row, err := bindCandidate(binding, res.SatisfiedPats, candidate)
		if err != nil {
			return nil, err
		}

		keep := true
		for _, filter := range res.RemainingFilters {
			ok, err := ev.evalCondition(filter, row, calls)
			if err != nil {
				return nil, err
			}
			if !ok {
				keep = false
				break
			}
		}
		if !keep {
			continue
		}

		key, err := ir.HashValue(candidate)
		if err != nil {
			return nil, err
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, candidate)
	}
	return out, nil
}

func bindCandidate(binding Binding, pats []string, candidate ir.Value) (Binding, error) {
	if len(pats) == 1 {
		return binding.extend(pats[0], candidate), nil
	}
	tuple, ok := candidate.(ir.VTuple)
	if !ok || len(tuple) != len(pats) {
		return nil, evalErrorf(ErrCodeTypeMismatch,
			"candidate %s does not match pattern %v", ir.FormatValue(candidate), pats)
	}
	row := binding
	for i, p := range pats {
		row = row.extend(p, tuple[i])
	}
	return row, nil
}
