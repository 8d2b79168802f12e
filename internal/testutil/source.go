package testutil

import (
	"fmt"

	"github.com/calyx-lang/calyx/internal/ir"
)

// Fixture is an in-memory environment plus relation data, implementing
// both ir.Env and the evaluator's RelationSource. It replaces the
// SQLite-backed store in tests that do not exercise persistence.
type Fixture struct {
	Env  *ir.MapEnv
	Data map[string][]ir.Value
}

// NewFixture creates an empty fixture.
func NewFixture() *Fixture {
	return &Fixture{
		Env:  ir.NewMapEnv(),
		Data: make(map[string][]ir.Value),
	}
}

// AddRelation declares a finite relation and loads its tuples.
func (f *Fixture) AddRelation(name string, arity int, rows []ir.Value) *Fixture {
	f.Env.DefineRelation(&ir.RelationInfo{Name: name, Arity: arity, Finite: true})
	f.Data[name] = rows
	return f
}

// AddOpenRelation declares a relation that can never be enumerated.
func (f *Fixture) AddOpenRelation(name string, arity int) *Fixture {
	f.Env.DefineRelation(&ir.RelationInfo{Name: name, Arity: arity, Finite: false})
	return f
}

// AddFunc registers a function definition.
func (f *Fixture) AddFunc(name string, params []string, body ir.Expr) *Fixture {
	f.Env.DefineFunc(&ir.FuncDef{Name: name, Params: params, Body: body})
	return f
}

// Function implements ir.Env.
func (f *Fixture) Function(name string) (*ir.FuncDef, bool) {
	return f.Env.Function(name)
}

// Relation implements ir.Env.
func (f *Fixture) Relation(name string) (*ir.RelationInfo, bool) {
	return f.Env.Relation(name)
}

// EnumerateRelation implements eval.RelationSource.
func (f *Fixture) EnumerateRelation(name string) ([]ir.Value, error) {
	info, ok := f.Env.Relation(name)
	if !ok {
		return nil, fmt.Errorf("unknown relation %q", name)
	}
	if !info.Finite {
		return nil, fmt.Errorf("relation %q is not enumerable", name)
	}
	return f.Data[name], nil
}

// Universe returns every distinct scalar in the fixture's relation data,
// for use as an existential witness domain or a fallback domain.
func (f *Fixture) Universe() []ir.Value {
	seen := map[string]bool{}
	var universe []ir.Value
	add := func(v ir.Value) {
		key := ir.FormatValue(v)
		if !seen[key] {
			seen[key] = true
			universe = append(universe, v)
		}
	}
	for _, rows := range f.Data {
		for _, row := range rows {
			if tup, ok := row.(ir.VTuple); ok {
				for _, elem := range tup {
					add(elem)
				}
				continue
			}
			add(row)
		}
	}
	return universe
}
