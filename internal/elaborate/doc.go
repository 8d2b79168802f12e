// Package elaborate turns CUE definition documents into IR.
//
// A document declares relations (name, arity, finiteness), relation data,
// function definitions, and named queries. The elaborator is the deliberate
// boundary between surface syntax and the engine: everything downstream of
// this package works on ir nodes only, so the inversion engine and the
// evaluator never see CUE values.
//
// Elaboration is strict. Floats are rejected, data rows must match declared
// arity, and every expression node must carry exactly one recognized form
// field. Errors are reported as *CompileError with source positions.
package elaborate
