// Package gen defines the generator abstraction: the typed description
// of "how to enumerate candidate bindings" that the inversion engine
// produces and the external evaluator consumes.
//
// The load-bearing invariant lives at this boundary: a Generator tagged
// Infinite may exist transiently inside the engine, but an
// InversionResult handed to a caller always carries a Finite generator.
// Validate enforces this; the dispatcher refuses to return otherwise.
package gen
