package elaborate

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/calyx-lang/calyx/internal/ir"
)

// Expression nodes are structs with exactly one recognized field:
//
//	{lit: 3}                       constant
//	{var: "x"}                     variable reference
//	{call: {fn: "path", args: [...]}}
//	{and: [e1, e2, ...]}           n-ary, folded to binary
//	{or: [e1, e2, ...]}
//	{cmp: {op: "==", l: e, r: e}}
//	{in: {elem: e, coll: e}}
//	{exists: {vars: [...], body: e}}
//	{tuple: [e1, e2, ...]}
//	{rel: "edge"}
var exprForms = []string{"lit", "var", "call", "and", "or", "cmp", "in", "exists", "tuple", "rel"}

// compileExpr parses a CUE value into an ir.Expr.
func compileExpr(v cue.Value, field string) (ir.Expr, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	form, formVal, err := exprForm(v, field)
	if err != nil {
		return nil, err
	}

	switch form {
	case "lit":
		val, err := compileScalar(formVal, field)
		if err != nil {
			return nil, err
		}
		return ir.Lit{Value: val}, nil

	case "var":
		name, err := formVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Var{Name: name}, nil

	case "call":
		fn, err := formVal.LookupPath(cue.ParsePath("fn")).String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		args, err := compileExprList(formVal.LookupPath(cue.ParsePath("args")), field+".call.args")
		if err != nil {
			return nil, err
		}
		return ir.Call{Fn: fn, Args: args}, nil

	case "and", "or":
		operands, err := compileExprList(formVal, field+"."+form)
		if err != nil {
			return nil, err
		}
		if len(operands) == 0 {
			return nil, &CompileError{
				Field:   field,
				Message: form + " requires at least one operand",
				Pos:     formVal.Pos(),
			}
		}
		if form == "and" {
			return ir.NewAnd(operands...), nil
		}
		return ir.NewOr(operands...), nil

	case "cmp":
		opStr, err := formVal.LookupPath(cue.ParsePath("op")).String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		op, err := compareOp(opStr, field, formVal)
		if err != nil {
			return nil, err
		}
		l, err := compileExpr(formVal.LookupPath(cue.ParsePath("l")), field+".cmp.l")
		if err != nil {
			return nil, err
		}
		r, err := compileExpr(formVal.LookupPath(cue.ParsePath("r")), field+".cmp.r")
		if err != nil {
			return nil, err
		}
		return ir.Compare{Op: op, L: l, R: r}, nil

	case "in":
		elem, err := compileExpr(formVal.LookupPath(cue.ParsePath("elem")), field+".in.elem")
		if err != nil {
			return nil, err
		}
		coll, err := compileExpr(formVal.LookupPath(cue.ParsePath("coll")), field+".in.coll")
		if err != nil {
			return nil, err
		}
		return ir.In{Elem: elem, Coll: coll}, nil

	case "exists":
		vars, err := parseNameList(formVal.LookupPath(cue.ParsePath("vars")), field+".exists.vars")
		if err != nil {
			return nil, err
		}
		if len(vars) == 0 {
			return nil, &CompileError{
				Field:   field,
				Message: "exists requires at least one binder",
				Pos:     formVal.Pos(),
			}
		}
		body, err := compileExpr(formVal.LookupPath(cue.ParsePath("body")), field+".exists.body")
		if err != nil {
			return nil, err
		}
		return ir.Exists{Vars: vars, Body: body}, nil

	case "tuple":
		elems, err := compileExprList(formVal, field+".tuple")
		if err != nil {
			return nil, err
		}
		return ir.MkTuple{Elems: elems}, nil

	case "rel":
		name, err := formVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Rel{Name: name}, nil
	}

	// Unreachable: exprForm only returns names from exprForms.
	return nil, &CompileError{Field: field, Message: "unknown expression form: " + form, Pos: v.Pos()}
}

// exprForm finds the single recognized form field on the node.
func exprForm(v cue.Value, field string) (string, cue.Value, error) {
	var (
		found string
		val   cue.Value
	)
	for _, form := range exprForms {
		fv := v.LookupPath(cue.ParsePath(form))
		if !fv.Exists() {
			continue
		}
		if found != "" {
			return "", cue.Value{}, &CompileError{
				Field:   field,
				Message: fmt.Sprintf("ambiguous expression: both %q and %q present", found, form),
				Pos:     v.Pos(),
			}
		}
		found = form
		val = fv
	}
	if found == "" {
		return "", cue.Value{}, &CompileError{
			Field:   field,
			Message: "expression must have exactly one of: lit, var, call, and, or, cmp, in, exists, tuple, rel",
			Pos:     v.Pos(),
		}
	}
	return found, val, nil
}

func compileExprList(v cue.Value, field string) ([]ir.Expr, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var exprs []ir.Expr
	for i := 0; iter.Next(); i++ {
		e, err := compileExpr(iter.Value(), fmt.Sprintf("%s[%d]", field, i))
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}
	return exprs, nil
}

func compareOp(s string, field string, v cue.Value) (ir.CmpOp, error) {
	switch op := ir.CmpOp(s); op {
	case ir.CmpEq, ir.CmpNe, ir.CmpLt, ir.CmpLe, ir.CmpGt, ir.CmpGe:
		return op, nil
	}
	return "", &CompileError{
		Field:   field,
		Message: fmt.Sprintf("unknown comparison operator %q", s),
		Pos:     v.Pos(),
	}
}
