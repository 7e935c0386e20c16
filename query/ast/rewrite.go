package ast

// Rewrite returns a copy of e in which every expression node has been passed through fn,
// children before parents. fn returns the replacement for the node it receives; returning
// the argument keeps it. The input tree is never modified.
func Rewrite(e Expr, fn func(Expr) Expr) Expr {
	if e == nil {
		return nil
	}
	switch n := e.(type) {
	case *Binary:
		c := *n
		c.Left = Rewrite(n.Left, fn)
		c.Right = Rewrite(n.Right, fn)
		return fn(&c)
	case *Unary:
		c := *n
		c.Operand = Rewrite(n.Operand, fn)
		return fn(&c)
	case *Compare:
		c := *n
		c.Left = Rewrite(n.Left, fn)
		c.Right = Rewrite(n.Right, fn)
		return fn(&c)
	case *IsNull:
		c := *n
		c.Operand = Rewrite(n.Operand, fn)
		return fn(&c)
	case *Between:
		c := *n
		c.Operand = Rewrite(n.Operand, fn)
		c.Low = Rewrite(n.Low, fn)
		c.High = Rewrite(n.High, fn)
		return fn(&c)
	case *In:
		c := *n
		c.Operand = Rewrite(n.Operand, fn)
		c.List = rewriteList(n.List, fn)
		return fn(&c)
	case *Like:
		c := *n
		c.Operand = Rewrite(n.Operand, fn)
		c.Pattern = Rewrite(n.Pattern, fn)
		c.Escape = Rewrite(n.Escape, fn)
		return fn(&c)
	case *Func:
		c := *n
		c.Args = rewriteList(n.Args, fn)
		return fn(&c)
	case *Path:
		c := *n
		c.Parts = append([]string(nil), n.Parts...)
		return fn(&c)
	case *Literal:
		c := *n
		return fn(&c)
	case *Constant:
		c := *n
		return fn(&c)
	case *Param:
		c := *n
		return fn(&c)
	default:
		return fn(e)
	}
}

func rewriteList(list []Expr, fn func(Expr) Expr) []Expr {
	if list == nil {
		return nil
	}
	out := make([]Expr, len(list))
	for i, e := range list {
		out[i] = Rewrite(e, fn)
	}
	return out
}

// RewriteStatement applies Rewrite to every expression position of s and returns the new
// statement. Join and assignment target paths are structural and left untouched.
func RewriteStatement(s Statement, fn func(Expr) Expr) Statement {
	switch n := s.(type) {
	case *Select:
		return rewriteSelect(n, fn)
	case *Update:
		c := *n
		c.Assignments = make([]*Assignment, len(n.Assignments))
		for i, a := range n.Assignments {
			ca := *a
			ca.Value = Rewrite(a.Value, fn)
			c.Assignments[i] = &ca
		}
		c.Where = Rewrite(n.Where, fn)
		return &c
	case *Delete:
		c := *n
		c.Where = Rewrite(n.Where, fn)
		return &c
	case *Insert:
		c := *n
		if n.Select != nil {
			c.Select = rewriteSelect(n.Select, fn)
		}
		c.Values = rewriteList(n.Values, fn)
		return &c
	default:
		return s
	}
}

func rewriteSelect(s *Select, fn func(Expr) Expr) *Select {
	c := *s
	if s.Items != nil {
		c.Items = make([]*SelectItem, len(s.Items))
		for i, it := range s.Items {
			ci := *it
			ci.Expr = Rewrite(it.Expr, fn)
			c.Items[i] = &ci
		}
	}
	if s.From != nil {
		from := &From{Position: s.From.Position, Items: make([]FromItem, len(s.From.Items))}
		for i, item := range s.From.Items {
			if j, ok := item.(*Join); ok {
				cj := *j
				cj.With = Rewrite(j.With, fn)
				from.Items[i] = &cj
				continue
			}
			from.Items[i] = item
		}
		c.From = from
	}
	c.Where = Rewrite(s.Where, fn)
	c.GroupBy = rewriteList(s.GroupBy, fn)
	c.Having = Rewrite(s.Having, fn)
	if s.OrderBy != nil {
		c.OrderBy = make([]*OrderItem, len(s.OrderBy))
		for i, o := range s.OrderBy {
			co := *o
			co.Expr = Rewrite(o.Expr, fn)
			c.OrderBy[i] = &co
		}
	}
	return &c
}

// Walk visits e and its children depth-first, parents first. Children of a node are
// skipped when fn returns false for it.
func Walk(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch n := e.(type) {
	case *Binary:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case *Unary:
		Walk(n.Operand, fn)
	case *Compare:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case *IsNull:
		Walk(n.Operand, fn)
	case *Between:
		Walk(n.Operand, fn)
		Walk(n.Low, fn)
		Walk(n.High, fn)
	case *In:
		Walk(n.Operand, fn)
		for _, x := range n.List {
			Walk(x, fn)
		}
	case *Like:
		Walk(n.Operand, fn)
		Walk(n.Pattern, fn)
		Walk(n.Escape, fn)
	case *Func:
		for _, x := range n.Args {
			Walk(x, fn)
		}
	}
}
