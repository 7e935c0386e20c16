package binder

import (
	"fmt"
	"time"

	"github.com/satishbabariya/aql-go/catalog"
	"github.com/satishbabariya/aql-go/query/ast"
	"github.com/satishbabariya/aql-go/query/bound"
	"github.com/satishbabariya/aql-go/query/qerrors"
)

func (b *Binder) expr(sc *scope, e ast.Expr) (bound.Expr, error) {
	switch n := e.(type) {
	case *ast.Path:
		return b.resolvePath(sc, n)
	case *ast.Literal:
		return literal(n), nil
	case *ast.Constant:
		return &bound.Literal{Value: n.Value, LitType: typeOf(n.Value), Constant: n.Name}, nil
	case *ast.Param:
		return b.param(sc, n)
	case *ast.Binary:
		return b.binary(sc, n)
	case *ast.Unary:
		operand, err := b.expr(sc, n.Operand)
		if err != nil {
			return nil, err
		}
		return &bound.Unary{Op: n.Op, Operand: operand}, nil
	case *ast.Compare:
		left, err := b.expr(sc, n.Left)
		if err != nil {
			return nil, err
		}
		right, err := b.expr(sc, n.Right)
		if err != nil {
			return nil, err
		}
		if err := unify(n, left, right); err != nil {
			return nil, err
		}
		if columnCount(left) != columnCount(right) {
			return nil, qerrors.Semanticf(ast.Format(n), "operands have %d and %d columns",
				columnCount(left), columnCount(right))
		}
		return &bound.Compare{Op: n.Op, Left: left, Right: right}, nil
	case *ast.IsNull:
		operand, err := b.expr(sc, n.Operand)
		if err != nil {
			return nil, err
		}
		return &bound.IsNull{Operand: operand, Not: n.Not}, nil
	case *ast.Between:
		operand, err := b.expr(sc, n.Operand)
		if err != nil {
			return nil, err
		}
		low, err := b.expr(sc, n.Low)
		if err != nil {
			return nil, err
		}
		high, err := b.expr(sc, n.High)
		if err != nil {
			return nil, err
		}
		if err := unify(n, operand, low); err != nil {
			return nil, err
		}
		if err := unify(n, operand, high); err != nil {
			return nil, err
		}
		return &bound.Between{Operand: operand, Low: low, High: high, Not: n.Not}, nil
	case *ast.In:
		operand, err := b.expr(sc, n.Operand)
		if err != nil {
			return nil, err
		}
		out := &bound.In{Operand: operand, Not: n.Not}
		for _, x := range n.List {
			item, err := b.expr(sc, x)
			if err != nil {
				return nil, err
			}
			if err := unify(n, operand, item); err != nil {
				return nil, err
			}
			out.List = append(out.List, item)
		}
		return out, nil
	case *ast.Like:
		operand, err := b.expr(sc, n.Operand)
		if err != nil {
			return nil, err
		}
		pattern, err := b.expr(sc, n.Pattern)
		if err != nil {
			return nil, err
		}
		setType(pattern, catalog.String)
		like := &bound.Like{Operand: operand, Pattern: pattern, Not: n.Not}
		if n.Escape != nil {
			if like.Escape, err = b.expr(sc, n.Escape); err != nil {
				return nil, err
			}
			setType(like.Escape, catalog.String)
		}
		return like, nil
	case *ast.Func:
		return b.function(sc, n)
	default:
		return nil, qerrors.NewQueryError("unexpected expression", fmt.Sprintf("%T", e))
	}
}

// resolvePath binds a dotted path. The first segment is an alias when one is declared
// with that name; otherwise the path is relative to the single root (or the filter's
// element).
func (b *Binder) resolvePath(sc *scope, p *ast.Path) (bound.Expr, error) {
	text := p.String()
	rest := p.Parts
	fe, ok := sc.aliases[rest[0]]
	if ok {
		rest = rest[1:]
	} else if fe = sc.implicitElement(); fe == nil {
		return nil, qerrors.Semanticf(text, "unknown alias or unqualified property")
	}
	if len(rest) == 0 {
		return &bound.EntityRef{From: fe}, nil
	}

	for {
		name := rest[0]
		if prop, ok := fe.Entity.Property(name); ok {
			if len(rest) > 1 {
				return nil, qerrors.Semanticf(text, "property %s of %s is not an association", name, fe.Entity.Name)
			}
			return &bound.ColumnRef{
				From:     fe,
				Property: prop,
				Columns:  prop.Columns,
				Table:    fe.Entity.TableIndex(prop.Table),
				ColType:  prop.Type,
			}, nil
		}

		assoc, ok := fe.Entity.Association(name)
		if !ok {
			return nil, qerrors.Semanticf(text, "could not resolve property %q of %s", name, fe.Entity.Name)
		}
		if assoc.IsCollection() {
			return nil, qerrors.Semanticf(text, "illegal attempt to dereference collection %s.%s", fe.Entity.Name, name)
		}
		target, err := b.entity(assoc.Target)
		if err != nil {
			return nil, err
		}
		fk := &bound.ColumnRef{
			From:        fe,
			Association: assoc,
			Columns:     assoc.Columns,
			Table:       fe.Entity.TableIndex(assoc.Table),
			ColType:     target.Identifier.Type,
		}
		switch {
		case len(rest) == 1 && !sc.inSelect:
			return fk, nil
		case len(rest) == 2 && rest[1] == target.Identifier.Name:
			// the target identifier is the foreign key itself
			return fk, nil
		}

		if sc.noJoins != "" {
			return nil, qerrors.Semanticf(text, "%s", sc.noJoins)
		}
		fe = b.impliedJoin(sc, fe, assoc, target)
		rest = rest[1:]
		if len(rest) == 0 {
			return &bound.EntityRef{From: fe}, nil
		}
	}
}

func (b *Binder) impliedJoin(sc *scope, origin *bound.FromElement, assoc *catalog.Association, target *catalog.Entity) *bound.FromElement {
	for _, f := range sc.from {
		if f.Implied && f.Origin == origin && f.Association == assoc {
			return f
		}
	}
	fe := &bound.FromElement{
		Entity:      target,
		TableAlias:  b.tableAlias(target),
		Origin:      origin,
		Association: assoc,
		JoinType:    ast.InnerJoin,
		Implied:     true,
	}
	sc.from = append(sc.from, fe)
	return fe
}

func (b *Binder) param(sc *scope, p *ast.Param) (bound.Expr, error) {
	spec := &bound.ParameterSpec{Location: p.Position}
	switch {
	case sc.filter != nil:
		if !p.IsNamed() {
			return nil, qerrors.Semanticf(sc.filter.Name, "filter conditions only accept named parameters")
		}
		spec.Kind = bound.FilterParameter
		spec.Filter = sc.filter.Name
		spec.Name = p.Name
		spec.Type = sc.filter.Parameters[p.Name]
	case p.IsNamed():
		spec.Kind = bound.NamedParameter
		spec.Name = p.Name
	default:
		spec.Kind = bound.PositionalParameter
		spec.Position = p.Index
	}
	return &bound.Param{Spec: spec}, nil
}

func (b *Binder) binary(sc *scope, n *ast.Binary) (bound.Expr, error) {
	left, err := b.expr(sc, n.Left)
	if err != nil {
		return nil, err
	}
	right, err := b.expr(sc, n.Right)
	if err != nil {
		return nil, err
	}
	out := &bound.Binary{Op: n.Op, Left: left, Right: right}
	switch n.Op {
	case "and", "or":
		out.ResultType = catalog.Boolean
	case "||":
		setType(left, catalog.String)
		setType(right, catalog.String)
		out.ResultType = catalog.String
	default:
		if err := unify(n, left, right); err != nil {
			return nil, err
		}
		lt, rt := left.Type(), right.Type()
		switch {
		case lt == catalog.Float || rt == catalog.Float:
			out.ResultType = catalog.Float
		case lt == catalog.Integer && rt == catalog.Integer:
			out.ResultType = catalog.Integer
		case lt.Numeric():
			out.ResultType = lt
		default:
			out.ResultType = rt
		}
	}
	return out, nil
}

func (b *Binder) function(sc *scope, n *ast.Func) (bound.Expr, error) {
	out := &bound.Func{Name: n.Name, Distinct: n.Distinct, Star: n.Star}
	inSelect := sc.inSelect
	sc.inSelect = false
	defer func() { sc.inSelect = inSelect }()

	for _, a := range n.Args {
		arg, err := b.expr(sc, a)
		if err != nil {
			return nil, err
		}
		out.Args = append(out.Args, arg)
	}

	var first catalog.Type
	if len(out.Args) > 0 {
		first = out.Args[0].Type()
	}
	switch n.Name {
	case "count", "length", "locate", "bit_length":
		out.ResultType = catalog.Integer
	case "avg":
		out.ResultType = catalog.Float
	case "sum":
		if first == catalog.Integer {
			out.ResultType = catalog.Integer
		} else {
			out.ResultType = catalog.Float
		}
	case "lower", "upper", "trim", "concat", "substring", "str":
		out.ResultType = catalog.String
	case "current_date", "current_time", "current_timestamp":
		out.ResultType = catalog.Timestamp
	default:
		// min, max, abs, coalesce, nullif and unknown functions take the first argument type
		out.ResultType = first
	}
	if out.Star && n.Name != "count" {
		return nil, qerrors.Semanticf(ast.Format(n), "only count accepts *")
	}
	return out, nil
}

func literal(l *ast.Literal) *bound.Literal {
	out := &bound.Literal{Value: l.Value}
	switch l.Kind {
	case ast.StringLiteral:
		out.LitType = catalog.String
	case ast.IntegerLiteral:
		out.LitType = catalog.Integer
	case ast.FloatLiteral:
		out.LitType = catalog.Float
	case ast.BoolLiteral:
		out.LitType = catalog.Boolean
	}
	return out
}

func typeOf(v any) catalog.Type {
	switch v.(type) {
	case string:
		return catalog.String
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return catalog.Integer
	case float32, float64:
		return catalog.Float
	case bool:
		return catalog.Boolean
	case time.Time:
		return catalog.Timestamp
	case []byte:
		return catalog.Binary
	default:
		return catalog.Unknown
	}
}

// setType gives an untyped parameter the expected type t.
func setType(e bound.Expr, t catalog.Type) {
	if p, ok := e.(*bound.Param); ok && p.Spec.Type == catalog.Unknown {
		p.Spec.Type = t
	}
}

// unify infers parameter types from the opposite operand and rejects operands of
// incompatible types.
func unify(at ast.Expr, left, right bound.Expr) error {
	setType(left, right.Type())
	setType(right, left.Type())
	lt, rt := left.Type(), right.Type()
	if lt == catalog.Unknown || rt == catalog.Unknown || lt == rt || (lt.Numeric() && rt.Numeric()) {
		return nil
	}
	// timestamps compare against string literals in the database's date format
	if (lt == catalog.Timestamp && rt == catalog.String) || (lt == catalog.String && rt == catalog.Timestamp) {
		return nil
	}
	return qerrors.Semanticf(ast.Format(at), "type mismatch: %s and %s", lt, rt)
}

func columnCount(e bound.Expr) int {
	switch n := e.(type) {
	case *bound.ColumnRef:
		return len(n.Columns)
	case *bound.EntityRef:
		return len(n.From.Entity.IdentifierColumns())
	default:
		return 1
	}
}
