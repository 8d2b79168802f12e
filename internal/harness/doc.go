// Package harness provides a conformance testing framework for the
// inversion engine.
//
// Scenarios are YAML files pairing a CUE definition file with an expected
// outcome: whether a query inverts, which failure code a refusal carries,
// and which tuples the synthesized generator enumerates. Each scenario
// runs against a fresh in-memory store, so scenarios are hermetic and
// order-independent.
//
// Golden files capture the synthesized generator expression and the
// materialized tuple set, guarding against silent changes in what the
// engine synthesizes rather than only what it enumerates.
package harness
