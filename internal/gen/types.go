package gen

import (
	"fmt"

	"github.com/calyx-lang/calyx/internal/ir"
)

// Cardinality tags a generator as finitely or infinitely enumerable.
type Cardinality string

const (
	// Finite means the generator's expression denotes a statically known
	// finite collection. Only Finite generators may reach the caller.
	Finite Cardinality = "FINITE"

	// Infinite means enumeration is unbounded. Infinite generators exist
	// transiently during analysis and must never be terminal.
	Infinite Cardinality = "INFINITE"
)

// Generator describes how to enumerate candidate bindings for a subset
// of the goal pattern.
//
// Expr denotes an enumerable collection understood by the external
// evaluator: a literal list, a finite relation reference, a union, a
// comprehension, or an iterate call. Binds lists the goal variables each
// enumerated tuple supplies, in goal-pattern order; a single-variable
// Binds enumerates scalars rather than 1-tuples.
type Generator struct {
	Cardinality Cardinality
	Expr        ir.Expr
	Binds       []string
}

// InversionResult is the output contract of a successful inversion.
//
// Constructed once per successful dispatch, immutable, and consumed
// immediately by the caller - either composed into a larger result or
// handed to the evaluator. The generator's cardinality is always Finite
// here; Validate enforces that boundary invariant.
type InversionResult struct {
	// Generator enumerates candidate bindings for SatisfiedPats.
	Generator Generator

	// MayHaveDuplicates is true when the enumeration can re-derive the
	// same tuple (fixpoint generators always set this). Consumers must
	// deduplicate before treating the output as a set.
	MayHaveDuplicates bool

	// IsSupersetOfSolution is true when the generator may enumerate
	// candidates that do not satisfy the original predicate; the
	// RemainingFilters must then be applied as a post-filter.
	IsSupersetOfSolution bool

	// SatisfiedPats lists the goal variables actually bound by the
	// generator, in goal-pattern order.
	SatisfiedPats []string

	// RemainingFilters are the conditions not enforced by the generator.
	// The caller must evaluate each against every enumerated candidate.
	RemainingFilters []ir.Expr
}

// GoalPattern is the ordered set of variables an inversion is asked to
// produce bindings for.
type GoalPattern []string

// NewGoalPattern validates and returns a goal pattern.
// A goal pattern must be non-empty and free of duplicate variables.
func NewGoalPattern(vars ...string) (GoalPattern, error) {
	if len(vars) == 0 {
		return nil, fmt.Errorf("goal pattern must be non-empty")
	}
	seen := make(map[string]bool, len(vars))
	for _, v := range vars {
		if v == "" {
			return nil, fmt.Errorf("goal pattern contains empty variable name")
		}
		if seen[v] {
			return nil, fmt.Errorf("goal pattern contains duplicate variable %q", v)
		}
		seen[v] = true
	}
	return GoalPattern(vars), nil
}

// Contains reports whether the pattern includes the named variable.
func (g GoalPattern) Contains(name string) bool {
	for _, v := range g {
		if v == name {
			return true
		}
	}
	return false
}

// BoundContext maps variable names to already-available bindings from
// the enclosing scope. Read-only during one inversion call.
//
// A nil value means the variable is known to be bound at run time but
// its value is unavailable to the analysis (for example the components
// of a tuple drawn from an accumulated relation). Cardinality reasoning
// that needs the actual value treats nil as unknown.
type BoundContext map[string]ir.Value
