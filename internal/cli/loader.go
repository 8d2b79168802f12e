package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/calyx-lang/calyx/internal/elaborate"
	"github.com/calyx-lang/calyx/internal/eval"
	"github.com/calyx-lang/calyx/internal/gen"
	"github.com/calyx-lang/calyx/internal/ir"
	"github.com/calyx-lang/calyx/internal/store"
)

// session is an elaborated definition file loaded into a store.
type session struct {
	doc *elaborate.Document
	st  *store.Store
	env *store.Env
}

// openSession elaborates the definition file and loads its relations
// into the database at dbPath (in-memory when empty).
func openSession(defPath, dbPath string) (*session, error) {
	doc, err := elaborate.LoadFile(defPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to elaborate definitions", err)
	}

	if dbPath == "" {
		dbPath = ":memory:"
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open store", err)
	}

	for _, rel := range doc.Relations {
		if err := st.DefineRelation(rel.Name, rel.Arity, rel.Finite); err != nil {
			st.Close()
			return nil, WrapExitError(ExitCommandError, fmt.Sprintf("failed to define relation %q", rel.Name), err)
		}
		if rows := doc.Data[rel.Name]; len(rows) > 0 {
			if err := st.InsertTuples(rel.Name, rows); err != nil {
				st.Close()
				return nil, WrapExitError(ExitCommandError, fmt.Sprintf("failed to load relation %q", rel.Name), err)
			}
		}
	}

	return &session{doc: doc, st: st, env: store.NewEnv(st, doc.Functions)}, nil
}

func (s *session) Close() {
	s.st.Close()
}

// query resolves a query by name, defaulting to a sole query.
func (s *session) query(name string) (*elaborate.Query, error) {
	if name == "" {
		if len(s.doc.Queries) != 1 {
			return nil, WrapExitError(ExitCommandError,
				fmt.Sprintf("definition file has %d queries; use --query to pick one", len(s.doc.Queries)), nil)
		}
		return s.doc.Queries[0], nil
	}
	for _, q := range s.doc.Queries {
		if q.Name == name {
			return q, nil
		}
	}
	return nil, WrapExitError(ExitCommandError, fmt.Sprintf("query %q not found", name), nil)
}

// universe gathers every distinct scalar in the loaded relation data.
func (s *session) universe() ([]ir.Value, error) {
	seen := map[string]bool{}
	var universe []ir.Value
	add := func(v ir.Value) {
		key := ir.FormatValue(v)
		if !seen[key] {
			seen[key] = true
			universe = append(universe, v)
		}
	}
	for _, rel := range s.doc.Relations {
		if !rel.Finite {
			continue
		}
		rows, err := s.st.EnumerateRelation(rel.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to enumerate relation %q: %w", rel.Name, err)
		}
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
	return universe, nil
}

// parseBindings parses repeated --bound flags of the form name=value.
// Values parse as int, then bool, then fall back to string.
func parseBindings(args []string) (gen.BoundContext, eval.Binding, error) {
	bound := gen.BoundContext{}
	binding := eval.Binding{}
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, nil, fmt.Errorf("invalid binding %q: expected name=value", arg)
		}
		binding[name] = parseScalar(raw)
		bound[name] = binding[name]
	}
	return bound, binding, nil
}

func parseScalar(raw string) ir.Value {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return ir.NewVInt(n)
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return ir.NewVBool(b)
	}
	return ir.NewVString(raw)
}
