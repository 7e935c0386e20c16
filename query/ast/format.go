package ast

import (
	"fmt"
	"strings"
)

// Format renders an expression back to AQL text. It is used for error fragments and
// debug output; the result reparses to an equivalent tree.
func Format(e Expr) string {
	var b strings.Builder
	format(&b, e)
	return b.String()
}

func format(b *strings.Builder, e Expr) {
	switch n := e.(type) {
	case nil:
	case *Path:
		b.WriteString(n.String())
	case *Literal:
		switch n.Kind {
		case StringLiteral:
			b.WriteString("'" + strings.ReplaceAll(fmt.Sprint(n.Value), "'", "''") + "'")
		case NullLiteral:
			b.WriteString("null")
		default:
			fmt.Fprint(b, n.Value)
		}
	case *Constant:
		b.WriteString(n.Name)
	case *Param:
		if n.IsNamed() {
			if n.Name[0] >= '0' && n.Name[0] <= '9' {
				b.WriteString("?" + n.Name)
			} else {
				b.WriteString(":" + n.Name)
			}
		} else {
			b.WriteString("?")
		}
	case *Binary:
		b.WriteString("(")
		format(b, n.Left)
		b.WriteString(" " + n.Op + " ")
		format(b, n.Right)
		b.WriteString(")")
	case *Unary:
		if n.Op == "-" {
			b.WriteString("-")
		} else {
			b.WriteString(n.Op + " ")
		}
		format(b, n.Operand)
	case *Compare:
		format(b, n.Left)
		b.WriteString(" " + n.Op + " ")
		format(b, n.Right)
	case *IsNull:
		format(b, n.Operand)
		if n.Not {
			b.WriteString(" is not null")
		} else {
			b.WriteString(" is null")
		}
	case *Between:
		format(b, n.Operand)
		b.WriteString(not(n.Not) + " between ")
		format(b, n.Low)
		b.WriteString(" and ")
		format(b, n.High)
	case *In:
		format(b, n.Operand)
		b.WriteString(not(n.Not) + " in (")
		for i, x := range n.List {
			if i > 0 {
				b.WriteString(", ")
			}
			format(b, x)
		}
		b.WriteString(")")
	case *Like:
		format(b, n.Operand)
		b.WriteString(not(n.Not) + " like ")
		format(b, n.Pattern)
		if n.Escape != nil {
			b.WriteString(" escape ")
			format(b, n.Escape)
		}
	case *Func:
		b.WriteString(n.Name + "(")
		if n.Distinct {
			b.WriteString("distinct ")
		}
		if n.Star {
			b.WriteString("*")
		}
		for i, x := range n.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			format(b, x)
		}
		b.WriteString(")")
	default:
		fmt.Fprintf(b, "%T", e)
	}
}

func not(negated bool) string {
	if negated {
		return " not"
	}
	return ""
}
