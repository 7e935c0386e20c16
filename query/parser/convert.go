package parser

import (
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"

	"github.com/satishbabariya/aql-go/query/ast"
	"github.com/satishbabariya/aql-go/query/qerrors"
)

// converter turns the participle parse tree into the ast. It numbers plain "?"
// parameters in the order they appear in the query text.
type converter struct {
	positional int
}

func pos(p lexer.Position) ast.Position {
	return ast.Position{Offset: p.Offset, Line: p.Line, Column: p.Column}
}

func (c *converter) statement(raw *RawStatement) (ast.Statement, error) {
	switch {
	case raw.Update != nil:
		return c.update(raw.Update)
	case raw.Delete != nil:
		return c.delete(raw.Delete)
	case raw.Insert != nil:
		return c.insert(raw.Insert)
	case raw.Select != nil:
		return c.selectStatement(raw.Select)
	default:
		return nil, &qerrors.SyntaxError{Line: raw.Pos.Line, Column: raw.Pos.Column, Message: "empty query"}
	}
}

func (c *converter) selectStatement(raw *SelectStatement) (*ast.Select, error) {
	s := &ast.Select{Position: pos(raw.Pos)}
	var err error

	if raw.Select != nil {
		s.Distinct = raw.Select.Distinct
		for _, item := range raw.Select.Items {
			e, err := c.expression(item.Expr)
			if err != nil {
				return nil, err
			}
			s.Items = append(s.Items, &ast.SelectItem{Position: pos(item.Pos), Expr: e, Alias: item.Alias})
		}
	}

	if raw.From != nil {
		s.From = &ast.From{Position: pos(raw.From.Pos)}
		s.From.Items = append(s.From.Items, rangeOf(raw.From.Root))
		for _, tail := range raw.From.Tails {
			if tail.Range != nil {
				s.From.Items = append(s.From.Items, rangeOf(tail.Range))
				continue
			}
			j, err := c.join(tail.Join)
			if err != nil {
				return nil, err
			}
			s.From.Items = append(s.From.Items, j)
		}
	}

	if s.Where, err = c.optional(raw.Where); err != nil {
		return nil, err
	}
	if s.GroupBy, err = c.list(raw.GroupBy); err != nil {
		return nil, err
	}
	if s.Having, err = c.optional(raw.Having); err != nil {
		return nil, err
	}
	for _, o := range raw.OrderBy {
		e, err := c.expression(o.Expr)
		if err != nil {
			return nil, err
		}
		s.OrderBy = append(s.OrderBy, &ast.OrderItem{
			Position: pos(o.Pos),
			Expr:     e,
			Desc:     strings.EqualFold(o.Direction, "desc"),
		})
	}
	return s, nil
}

func rangeOf(r *RangeDecl) *ast.Range {
	return &ast.Range{Position: pos(r.Pos), Entity: r.Entity, Alias: r.Alias}
}

func (c *converter) join(raw *JoinDecl) (*ast.Join, error) {
	j := &ast.Join{
		Position: pos(raw.Pos),
		Fetch:    raw.Fetch,
		Path:     path(raw.Path),
		Alias:    raw.Alias,
	}
	switch strings.ToLower(raw.Kind) {
	case "left":
		j.Kind = ast.LeftJoin
	case "right":
		j.Kind = ast.RightJoin
	case "full":
		j.Kind = ast.FullJoin
	default:
		j.Kind = ast.InnerJoin
	}
	var err error
	if j.With, err = c.optional(raw.With); err != nil {
		return nil, err
	}
	return j, nil
}

func (c *converter) update(raw *UpdateStatement) (*ast.Update, error) {
	u := &ast.Update{Position: pos(raw.Pos), Entity: raw.Entity, Alias: raw.Alias}
	for _, a := range raw.Assignments {
		v, err := c.expression(a.Value)
		if err != nil {
			return nil, err
		}
		u.Assignments = append(u.Assignments, &ast.Assignment{Position: pos(a.Pos), Target: path(a.Target), Value: v})
	}
	var err error
	if u.Where, err = c.optional(raw.Where); err != nil {
		return nil, err
	}
	return u, nil
}

func (c *converter) delete(raw *DeleteStatement) (*ast.Delete, error) {
	where, err := c.optional(raw.Where)
	if err != nil {
		return nil, err
	}
	return &ast.Delete{Position: pos(raw.Pos), Entity: raw.Entity, Alias: raw.Alias, Where: where}, nil
}

func (c *converter) insert(raw *InsertStatement) (*ast.Insert, error) {
	ins := &ast.Insert{Position: pos(raw.Pos), Entity: raw.Entity}
	for _, p := range raw.Properties {
		ins.Properties = append(ins.Properties, path(p))
	}
	if raw.Select != nil {
		sel, err := c.selectStatement(raw.Select)
		if err != nil {
			return nil, err
		}
		ins.Select = sel
		return ins, nil
	}
	values, err := c.list(raw.Values)
	if err != nil {
		return nil, err
	}
	ins.Values = values
	return ins, nil
}

func (c *converter) optional(raw *Expression) (ast.Expr, error) {
	if raw == nil {
		return nil, nil
	}
	return c.expression(raw)
}

func (c *converter) list(raw []*Expression) ([]ast.Expr, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]ast.Expr, 0, len(raw))
	for _, r := range raw {
		e, err := c.expression(r)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (c *converter) expression(raw *Expression) (ast.Expr, error) {
	var out ast.Expr
	for _, and := range raw.Or {
		e, err := c.and(and)
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = e
			continue
		}
		out = &ast.Binary{Position: pos(and.Pos), Op: "or", Left: out, Right: e}
	}
	return out, nil
}

func (c *converter) and(raw *AndExpr) (ast.Expr, error) {
	var out ast.Expr
	for _, not := range raw.And {
		e, err := c.not(not)
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = e
			continue
		}
		out = &ast.Binary{Position: pos(not.Pos), Op: "and", Left: out, Right: e}
	}
	return out, nil
}

func (c *converter) not(raw *NotExpr) (ast.Expr, error) {
	if raw.Not != nil {
		e, err := c.not(raw.Not)
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Position: pos(raw.Pos), Op: "not", Operand: e}, nil
	}
	return c.predicate(raw.Predicate)
}

func (c *converter) predicate(raw *Predicate) (ast.Expr, error) {
	left, err := c.additive(raw.Left)
	if err != nil || raw.Tail == nil {
		return left, err
	}
	p := pos(raw.Pos)
	t := raw.Tail
	switch {
	case t.Compare != nil:
		right, err := c.additive(t.Compare.Right)
		if err != nil {
			return nil, err
		}
		op := t.Compare.Op
		if op == "!=" {
			op = "<>"
		}
		return &ast.Compare{Position: p, Op: op, Left: left, Right: right}, nil
	case t.IsNull != nil:
		return &ast.IsNull{Position: p, Operand: left, Not: t.IsNull.Not}, nil
	case t.Between != nil:
		low, err := c.additive(t.Between.Low)
		if err != nil {
			return nil, err
		}
		high, err := c.additive(t.Between.High)
		if err != nil {
			return nil, err
		}
		return &ast.Between{Position: p, Operand: left, Low: low, High: high, Not: t.Between.Not}, nil
	case t.In != nil:
		list, err := c.list(t.In.List)
		if err != nil {
			return nil, err
		}
		return &ast.In{Position: p, Operand: left, List: list, Not: t.In.Not}, nil
	case t.Like != nil:
		pattern, err := c.additive(t.Like.Pattern)
		if err != nil {
			return nil, err
		}
		like := &ast.Like{Position: p, Operand: left, Pattern: pattern, Not: t.Like.Not}
		if t.Like.Escape != nil {
			if like.Escape, err = c.additive(t.Like.Escape); err != nil {
				return nil, err
			}
		}
		return like, nil
	}
	return left, nil
}

func (c *converter) additive(raw *Additive) (ast.Expr, error) {
	out, err := c.multiplicative(raw.Left)
	if err != nil {
		return nil, err
	}
	for _, op := range raw.Rest {
		right, err := c.multiplicative(op.Right)
		if err != nil {
			return nil, err
		}
		out = &ast.Binary{Position: pos(op.Pos), Op: op.Op, Left: out, Right: right}
	}
	return out, nil
}

func (c *converter) multiplicative(raw *Multiplicative) (ast.Expr, error) {
	out, err := c.unary(raw.Left)
	if err != nil {
		return nil, err
	}
	for _, op := range raw.Rest {
		right, err := c.unary(op.Right)
		if err != nil {
			return nil, err
		}
		out = &ast.Binary{Position: pos(op.Pos), Op: op.Op, Left: out, Right: right}
	}
	return out, nil
}

func (c *converter) unary(raw *Unary) (ast.Expr, error) {
	if raw.Neg != nil {
		operand, err := c.unary(raw.Neg)
		if err != nil {
			return nil, err
		}
		// fold negative numeric literals directly
		if lit, ok := operand.(*ast.Literal); ok {
			switch v := lit.Value.(type) {
			case int64:
				return &ast.Literal{Position: pos(raw.Pos), Kind: lit.Kind, Value: -v}, nil
			case float64:
				return &ast.Literal{Position: pos(raw.Pos), Kind: lit.Kind, Value: -v}, nil
			}
		}
		return &ast.Unary{Position: pos(raw.Pos), Op: "-", Operand: operand}, nil
	}
	return c.primary(raw.Primary)
}

func (c *converter) primary(raw *Primary) (ast.Expr, error) {
	switch {
	case raw.Literal != nil:
		return literal(raw.Literal)
	case raw.Param != nil:
		return c.param(raw.Param), nil
	case raw.Func != nil:
		args, err := c.list(raw.Func.Args)
		if err != nil {
			return nil, err
		}
		return &ast.Func{
			Position: pos(raw.Func.Pos),
			Name:     strings.ToLower(raw.Func.Name),
			Distinct: raw.Func.Distinct,
			Star:     raw.Func.Star,
			Args:     args,
		}, nil
	case raw.Path != nil:
		return path(raw.Path), nil
	case raw.Group != nil:
		return c.expression(raw.Group)
	}
	return nil, &qerrors.SyntaxError{Line: raw.Pos.Line, Column: raw.Pos.Column, Offset: raw.Pos.Offset, Message: "expected expression"}
}

func literal(raw *Literal) (ast.Expr, error) {
	p := pos(raw.Pos)
	switch {
	case raw.String != nil:
		s := *raw.String
		s = strings.ReplaceAll(s[1:len(s)-1], "''", "'")
		return &ast.Literal{Position: p, Kind: ast.StringLiteral, Value: s}, nil
	case raw.Number != nil:
		text := *raw.Number
		if !strings.ContainsAny(text, ".eE") {
			if v, err := strconv.ParseInt(text, 10, 64); err == nil {
				return &ast.Literal{Position: p, Kind: ast.IntegerLiteral, Value: v}, nil
			}
		}
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, &qerrors.SyntaxError{Line: p.Line, Column: p.Column, Offset: p.Offset, Token: text, Message: "invalid number"}
		}
		return &ast.Literal{Position: p, Kind: ast.FloatLiteral, Value: v}, nil
	case raw.Bool != nil:
		return &ast.Literal{Position: p, Kind: ast.BoolLiteral, Value: strings.EqualFold(*raw.Bool, "true")}, nil
	default:
		return &ast.Literal{Position: p, Kind: ast.NullLiteral}, nil
	}
}

func (c *converter) param(raw *Param) *ast.Param {
	p := &ast.Param{Position: pos(raw.Pos), Index: -1}
	switch {
	case raw.Named != nil:
		p.Name = strings.TrimPrefix(*raw.Named, ":")
	case *raw.Positional != "?":
		// "?1" is an ordinal parameter, addressed by name like a named one
		p.Name = strings.TrimPrefix(*raw.Positional, "?")
	default:
		p.Index = c.positional
		c.positional++
	}
	return p
}

func path(raw *PathExpr) *ast.Path {
	return &ast.Path{Position: pos(raw.Pos), Parts: append([]string(nil), raw.Parts...)}
}
