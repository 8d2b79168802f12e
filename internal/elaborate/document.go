package elaborate

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/calyx-lang/calyx/internal/gen"
	"github.com/calyx-lang/calyx/internal/ir"
)

// Document is the elaborated form of a CUE definition file: relation
// declarations plus their tuples, function definitions, and named queries.
type Document struct {
	Relations []*ir.RelationInfo
	Data      map[string][]ir.Value // relation name -> tuples, canonical order
	Functions []*ir.FuncDef
	Queries   []*Query
}

// Query is a predicate expression paired with its goal variables.
type Query struct {
	Name string
	Goal []string
	Expr ir.Expr
}

// LoadFile reads and elaborates a CUE definition file.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read definitions: %w", err)
	}
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	return CompileDocument(v)
}

// CompileDocument parses a CUE value into a Document.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The expected top-level fields are:
//
//	relations: { edge: { arity: 2 } }
//	data:      { edge: [[1, 2], [2, 3]] }
//	functions: { path: { params: ["x", "y"], body: {...} } }
//	queries:   { reach: { goal: ["x", "y"], expr: {...} } }
func CompileDocument(v cue.Value) (*Document, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	doc := &Document{Data: map[string][]ir.Value{}}

	if err := parseRelations(v, doc); err != nil {
		return nil, err
	}
	if err := parseData(v, doc); err != nil {
		return nil, err
	}
	if err := parseFunctions(v, doc); err != nil {
		return nil, err
	}
	if err := parseQueries(v, doc); err != nil {
		return nil, err
	}

	return doc, nil
}

// parseRelations extracts relation declarations from the document.
func parseRelations(v cue.Value, doc *Document) error {
	relVal := v.LookupPath(cue.ParsePath("relations"))
	if !relVal.Exists() {
		return nil // relations are optional
	}

	iter, err := relVal.Fields()
	if err != nil {
		return formatCUEError(err)
	}

	for iter.Next() {
		name := iter.Label()
		relValue := iter.Value()

		arityVal := relValue.LookupPath(cue.ParsePath("arity"))
		if !arityVal.Exists() {
			return &CompileError{
				Field:   fmt.Sprintf("relations.%s", name),
				Message: "arity is required",
				Pos:     relValue.Pos(),
			}
		}
		arity, err := arityVal.Int64()
		if err != nil {
			return formatCUEError(err)
		}
		if arity < 1 {
			return &CompileError{
				Field:   fmt.Sprintf("relations.%s.arity", name),
				Message: fmt.Sprintf("arity must be >= 1, got %d", arity),
				Pos:     arityVal.Pos(),
			}
		}

		// Relations default to finite; an explicit finite: false marks an
		// open relation that membership inversion must refuse to enumerate.
		finite := true
		finiteVal := relValue.LookupPath(cue.ParsePath("finite"))
		if finiteVal.Exists() {
			finite, err = finiteVal.Bool()
			if err != nil {
				return formatCUEError(err)
			}
		}

		doc.Relations = append(doc.Relations, &ir.RelationInfo{
			Name:   name,
			Arity:  int(arity),
			Finite: finite,
		})
	}

	return nil
}

// parseData extracts relation tuples. Each row must match the declared
// arity: a scalar value for arity 1, a list of that length otherwise.
func parseData(v cue.Value, doc *Document) error {
	dataVal := v.LookupPath(cue.ParsePath("data"))
	if !dataVal.Exists() {
		return nil
	}

	arities := map[string]int{}
	for _, rel := range doc.Relations {
		arities[rel.Name] = rel.Arity
	}

	iter, err := dataVal.Fields()
	if err != nil {
		return formatCUEError(err)
	}

	for iter.Next() {
		name := iter.Label()
		arity, ok := arities[name]
		if !ok {
			return &CompileError{
				Field:   fmt.Sprintf("data.%s", name),
				Message: "data for undeclared relation",
				Pos:     iter.Value().Pos(),
			}
		}

		rowIter, err := iter.Value().List()
		if err != nil {
			return formatCUEError(err)
		}

		var rows []ir.Value
		for i := 0; rowIter.Next(); i++ {
			row, err := compileRow(rowIter.Value(), name, i, arity)
			if err != nil {
				return err
			}
			rows = append(rows, row)
		}
		doc.Data[name] = rows
	}

	return nil
}

func compileRow(v cue.Value, rel string, index, arity int) (ir.Value, error) {
	field := fmt.Sprintf("data.%s[%d]", rel, index)

	if arity == 1 {
		return compileScalar(v, field)
	}

	elemIter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var elems []ir.Value
	for elemIter.Next() {
		elem, err := compileScalar(elemIter.Value(), field)
		if err != nil {
			return nil, err
		}
		elems = append(elems, elem)
	}
	if len(elems) != arity {
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("tuple has %d elements, relation arity is %d", len(elems), arity),
			Pos:     v.Pos(),
		}
	}
	return ir.NewVTuple(elems...), nil
}

// compileScalar converts a CUE leaf into an ir.Value.
// Floats are forbidden; all numbers must be ints.
func compileScalar(v cue.Value, field string) (ir.Value, error) {
	switch v.Kind() {
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.NewVString(s), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.NewVInt(n), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.NewVBool(b), nil
	case cue.ListKind:
		elemIter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		var elems []ir.Value
		for elemIter.Next() {
			elem, err := compileScalar(elemIter.Value(), field)
			if err != nil {
				return nil, err
			}
			elems = append(elems, elem)
		}
		return ir.NewVList(elems...), nil
	case cue.FloatKind, cue.NumberKind:
		return nil, &CompileError{
			Field:   field,
			Message: "float values are forbidden - use int instead",
			Pos:     v.Pos(),
		}
	default:
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("unsupported value kind: %v", v.Kind()),
			Pos:     v.Pos(),
		}
	}
}

// parseFunctions extracts function definitions.
func parseFunctions(v cue.Value, doc *Document) error {
	fnVal := v.LookupPath(cue.ParsePath("functions"))
	if !fnVal.Exists() {
		return nil
	}

	iter, err := fnVal.Fields()
	if err != nil {
		return formatCUEError(err)
	}

	for iter.Next() {
		name := iter.Label()
		fnValue := iter.Value()

		params, err := parseNameList(fnValue.LookupPath(cue.ParsePath("params")),
			fmt.Sprintf("functions.%s.params", name))
		if err != nil {
			return err
		}

		bodyVal := fnValue.LookupPath(cue.ParsePath("body"))
		if !bodyVal.Exists() {
			return &CompileError{
				Field:   fmt.Sprintf("functions.%s", name),
				Message: "body is required",
				Pos:     fnValue.Pos(),
			}
		}
		body, err := compileExpr(bodyVal, fmt.Sprintf("functions.%s.body", name))
		if err != nil {
			return err
		}

		doc.Functions = append(doc.Functions, &ir.FuncDef{
			Name:   name,
			Params: params,
			Body:   body,
		})
	}

	return nil
}

// parseQueries extracts named queries.
func parseQueries(v cue.Value, doc *Document) error {
	qVal := v.LookupPath(cue.ParsePath("queries"))
	if !qVal.Exists() {
		return nil
	}

	iter, err := qVal.Fields()
	if err != nil {
		return formatCUEError(err)
	}

	for iter.Next() {
		name := iter.Label()
		qValue := iter.Value()

		goal, err := parseNameList(qValue.LookupPath(cue.ParsePath("goal")),
			fmt.Sprintf("queries.%s.goal", name))
		if err != nil {
			return err
		}
		if len(goal) == 0 {
			return &CompileError{
				Field:   fmt.Sprintf("queries.%s.goal", name),
				Message: "at least one goal variable is required",
				Pos:     qValue.Pos(),
			}
		}

		exprVal := qValue.LookupPath(cue.ParsePath("expr"))
		if !exprVal.Exists() {
			return &CompileError{
				Field:   fmt.Sprintf("queries.%s", name),
				Message: "expr is required",
				Pos:     qValue.Pos(),
			}
		}
		expr, err := compileExpr(exprVal, fmt.Sprintf("queries.%s.expr", name))
		if err != nil {
			return err
		}

		doc.Queries = append(doc.Queries, &Query{Name: name, Goal: goal, Expr: expr})
	}

	return nil
}

func parseNameList(v cue.Value, field string) ([]string, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var names []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		names = append(names, s)
	}
	return names, nil
}

// GoalPattern converts the query's goal list into a gen.GoalPattern.
func (q *Query) GoalPattern() (gen.GoalPattern, error) {
	return gen.NewGoalPattern(q.Goal...)
}
