// Package eval is the reference evaluator: the runtime collaborator
// that executes expressions and enumerates the generators the inversion
// engine synthesizes, including the iterate-to-fixpoint primitive.
//
// The engine itself never depends on this package - it only promises
// that a Finite generator can be materialized by a runtime honoring the
// iterate contract. eval exists so that contract has a concrete,
// testable implementation: conformance tests compare Materialize of an
// inverted result against Fallback (exhaustive enumerate-then-filter)
// over the same domain.
//
// Termination of iterate for well-founded step relations is assumed,
// not proven; the round quota converts a non-converging step into a
// typed ROUNDS_EXCEEDED error rather than a hang.
package eval
