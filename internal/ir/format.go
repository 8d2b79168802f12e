package ir

import (
	"fmt"
	"strings"
)

// Format renders an expression in the deterministic surface syntax used
// by diagnostics, golden files, and expression hashing.
//
// The rendering is injective over the expression model: structurally
// distinct trees never render to the same string. Every composite form
// carries its own delimiters, relation references are prefixed with '$',
// and builtin applications with '@', so none of the atom forms collide.
func Format(e Expr) string {
	switch ex := e.(type) {
	case Lit:
		return FormatValue(ex.Value)
	case Var:
		return ex.Name
	case Call:
		return ex.Fn + "(" + joinExprs(ex.Args) + ")"
	case Builtin:
		return "@" + ex.Op + "(" + joinExprs(ex.Args) + ")"
	case And:
		return "(" + Format(ex.L) + " && " + Format(ex.R) + ")"
	case Or:
		return "(" + Format(ex.L) + " || " + Format(ex.R) + ")"
	case Compare:
		return "(" + Format(ex.L) + " " + string(ex.Op) + " " + Format(ex.R) + ")"
	case In:
		return "(" + Format(ex.Elem) + " in " + Format(ex.Coll) + ")"
	case Exists:
		return "(exists " + strings.Join(ex.Vars, ", ") + ": " + Format(ex.Body) + ")"
	case MkTuple:
		return "(" + joinExprs(ex.Elems) + ")"
	case Rel:
		return "$" + ex.Name
	case Lambda:
		return "(fun " + ex.Param + " -> " + Format(ex.Body) + ")"
	case Comprehension:
		return formatComprehension(ex)
	default:
		return fmt.Sprintf("<unknown %T>", e)
	}
}

func formatComprehension(c Comprehension) string {
	var b strings.Builder
	b.WriteString("{ (")
	b.WriteString(joinExprs(c.Head))
	b.WriteString(") | ")
	for i, clause := range c.Clauses {
		if i > 0 {
			b.WriteString("; ")
		}
		switch cl := clause.(type) {
		case Bind:
			b.WriteString(strings.Join(cl.Vars, ", "))
			b.WriteString(" <- ")
			b.WriteString(Format(cl.Source))
		case Guard:
			b.WriteString(Format(cl.Cond))
		default:
			fmt.Fprintf(&b, "<unknown %T>", clause)
		}
	}
	b.WriteString(" }")
	return b.String()
}

func joinExprs(exprs []Expr) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = Format(e)
	}
	return strings.Join(parts, ", ")
}
