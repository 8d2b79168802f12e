// Package invert implements predicate inversion: given a boolean
// expression over a set of goal variables - possibly calling a
// user-defined, self-recursive function - it attempts to synthesize a
// finite, explicit enumeration of exactly the variable bindings that
// satisfy the predicate, instead of requiring an exhaustive scan of an
// unbounded domain.
//
// ARCHITECTURE:
//
//	[ir.Expr] → [dispatcher] → [flatten/union, closure synthesizer] → [gen.InversionResult]
//
// The dispatcher (invert.go) classifies the expression shape and either
// converts it to a generator directly (membership tests over finite
// collections), delegates to conjunction/disjunction handling, or
// inlines a user function body. Self-recursive `base ∨ recursive`
// bodies go to the closure synthesizer (closure.go), which assembles an
// iterate-to-fixpoint generator from a finite seed and a one-step
// inference function.
//
// FAILURE CONTRACT:
//
// Every failure - unsupported shape, unbounded base case, unsupported
// recursion, depth bound - surfaces uniformly as a non-nil error.
// Callers branch only on success vs failure; the safe response to
// failure is always exhaustive enumeration of the externally supplied
// domain filtered by the original predicate. No partial or approximate
// generator ever escapes.
//
// PURITY:
//
// Inversion is pure compile-time analysis: no I/O, no suspension, no
// engine-wide mutable state. The memo table and active set are created
// per top-level call and confined to it, so concurrent inversions are
// fully independent.
package invert
