package ir

// FuncDef is a user-defined function: named parameters over a predicate
// body. Bodies may call the function itself (self-recursion); mutual
// recursion between distinct functions is not supported by the engine.
type FuncDef struct {
	Name   string
	Params []string
	Body   Expr
}

// RelationInfo describes a named relation in the environment catalog.
//
// Finite relations (loaded fixture data, store-backed tables) may serve
// as generators. Unbounded relations (open domains such as "all
// integers") are legal in predicates but can never be enumerated; the
// inversion engine treats references to them as infinite-cardinality.
type RelationInfo struct {
	Name   string
	Arity  int
	Finite bool
}

// Env resolves function and relation names to their definitions.
//
// The engine only reads through this interface; it is supplied by the
// surrounding elaborator and must be stable for the duration of one
// top-level inversion call.
type Env interface {
	// Function returns the definition of a user function, if any.
	Function(name string) (*FuncDef, bool)

	// Relation returns the catalog entry for a named relation, if any.
	Relation(name string) (*RelationInfo, bool)
}

// MapEnv is a simple in-memory Env backed by maps.
// The zero value is usable; nil maps resolve nothing.
type MapEnv struct {
	Funcs     map[string]*FuncDef
	Relations map[string]*RelationInfo
}

// NewMapEnv creates an empty MapEnv.
func NewMapEnv() *MapEnv {
	return &MapEnv{
		Funcs:     make(map[string]*FuncDef),
		Relations: make(map[string]*RelationInfo),
	}
}

// DefineFunc registers a function definition, replacing any previous one.
func (e *MapEnv) DefineFunc(def *FuncDef) {
	if e.Funcs == nil {
		e.Funcs = make(map[string]*FuncDef)
	}
	e.Funcs[def.Name] = def
}

// DefineRelation registers a relation catalog entry, replacing any
// previous one.
func (e *MapEnv) DefineRelation(info *RelationInfo) {
	if e.Relations == nil {
		e.Relations = make(map[string]*RelationInfo)
	}
	e.Relations[info.Name] = info
}

// Function implements Env.
func (e *MapEnv) Function(name string) (*FuncDef, bool) {
	def, ok := e.Funcs[name]
	return def, ok
}

// Relation implements Env.
func (e *MapEnv) Relation(name string) (*RelationInfo, bool) {
	info, ok := e.Relations[name]
	return info, ok
}
