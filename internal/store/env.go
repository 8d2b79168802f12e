package store

import "github.com/calyx-lang/calyx/internal/ir"

// Env adapts a Store's relation catalog plus a set of function
// definitions into the ir.Env lookup contract the inversion engine and
// evaluator consume.
//
// Catalog lookups hit the database; inversion performs a bounded number
// of them per call, and the single-connection pool keeps them cheap.
type Env struct {
	store *Store
	funcs map[string]*ir.FuncDef
}

// NewEnv creates an Env over a store and function definitions.
func NewEnv(s *Store, defs []*ir.FuncDef) *Env {
	funcs := make(map[string]*ir.FuncDef, len(defs))
	for _, def := range defs {
		funcs[def.Name] = def
	}
	return &Env{store: s, funcs: funcs}
}

// Function implements ir.Env.
func (e *Env) Function(name string) (*ir.FuncDef, bool) {
	def, ok := e.funcs[name]
	return def, ok
}

// Relation implements ir.Env. Database errors resolve to "not found":
// a relation the engine cannot verify as finite must not generate.
func (e *Env) Relation(name string) (*ir.RelationInfo, bool) {
	info, err := e.store.Relation(name)
	if err != nil || info == nil {
		return nil, false
	}
	return info, true
}
