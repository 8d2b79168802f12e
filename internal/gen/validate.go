package gen

import "fmt"

// Validate checks the boundary invariants of a terminal InversionResult.
//
// Rules:
//  1. The generator's cardinality is Finite. An Infinite generator may
//     exist transiently during analysis, but any path that would surface
//     one to the caller must report failure instead. A documented defect
//     in an earlier system let an unbounded generator escape into
//     generated code and crash at run time; this check is the last line
//     of defense against that class of bug.
//  2. The generator's expression is present.
//  3. SatisfiedPats is non-empty, duplicate-free, and matches the
//     generator's Binds.
//
// The dispatcher calls Validate on every result it returns; tests call
// it directly.
func Validate(r *InversionResult) error {
	if r == nil {
		return fmt.Errorf("nil inversion result")
	}
	if r.Generator.Cardinality != Finite {
		return fmt.Errorf("terminal generator has cardinality %s; only %s may surface",
			r.Generator.Cardinality, Finite)
	}
	if r.Generator.Expr == nil {
		return fmt.Errorf("terminal generator has no expression")
	}
	if len(r.SatisfiedPats) == 0 {
		return fmt.Errorf("inversion result satisfies no goal variables")
	}
	seen := make(map[string]bool, len(r.SatisfiedPats))
	for _, v := range r.SatisfiedPats {
		if seen[v] {
			return fmt.Errorf("satisfied pattern %q appears twice", v)
		}
		seen[v] = true
	}
	if len(r.Generator.Binds) != len(r.SatisfiedPats) {
		return fmt.Errorf("generator binds %d variables but result satisfies %d",
			len(r.Generator.Binds), len(r.SatisfiedPats))
	}
	for i, v := range r.Generator.Binds {
		if r.SatisfiedPats[i] != v {
			return fmt.Errorf("generator binds %q at position %d, result satisfies %q",
				v, i, r.SatisfiedPats[i])
		}
	}
	return nil
}
