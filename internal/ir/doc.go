// Package ir defines the immutable expression and value model shared by
// the inversion engine, the reference evaluator, and the elaborator.
//
// Expr and Value are sealed interfaces using the marker method pattern:
// only types in this package implement them, enabling exhaustive type
// switches at every dispatch site. Adding a variant means touching every
// switch, which is the point.
//
// The package also provides the canonical encoding and domain-separated
// hashing that give values and expressions content-addressed identity.
// Value identity is the deduplication key for union and fixpoint
// enumeration; expression identity is half of the inversion memo key.
package ir
