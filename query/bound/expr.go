package bound

import "github.com/satishbabariya/aql-go/catalog"

// Expr is a bound expression.
type Expr interface {
	Type() catalog.Type
	expr()
}

// ColumnRef references the columns of a property, or the foreign-key columns of a
// many-to-one association, on one physical table of a from element.
type ColumnRef struct {
	From *FromElement
	// Property is nil for association references.
	Property    *catalog.Property
	Association *catalog.Association
	Columns     []string
	// Table is the index of the physical table in From.Entity.Tables.
	Table   int
	ColType catalog.Type
}

// Type implements Expr.
func (c *ColumnRef) Type() catalog.Type { return c.ColType }

// Name returns the property or association name.
func (c *ColumnRef) Name() string {
	if c.Property != nil {
		return c.Property.Name
	}
	return c.Association.Name
}

// IsIdentifier reports whether the reference is the identifier of its element.
func (c *ColumnRef) IsIdentifier() bool {
	return c.Property != nil && c.Property == c.From.Entity.Identifier
}

// EntityRef is an alias used as a value. In a projection it returns the entity; in a
// predicate it stands for the identifier columns.
type EntityRef struct {
	From *FromElement
}

// Type implements Expr.
func (e *EntityRef) Type() catalog.Type { return e.From.Entity.Identifier.Type }

// ItemRef references a projection item by its select alias, used in ORDER BY.
type ItemRef struct {
	Item *ProjectionItem
}

// Type implements Expr.
func (r *ItemRef) Type() catalog.Type { return r.Item.Expr.Type() }

// Literal is a constant rendered inline.
type Literal struct {
	Value   any
	LitType catalog.Type
	// Constant is the qualified name of a folded constant, if any.
	Constant string
}

// Type implements Expr.
func (l *Literal) Type() catalog.Type { return l.LitType }

// Param is one parameter occurrence.
type Param struct {
	Spec *ParameterSpec
}

// Type implements Expr.
func (p *Param) Type() catalog.Type { return p.Spec.Type }

// Binary is a logical, arithmetic or concatenation operation.
type Binary struct {
	Op          string
	Left, Right Expr
	ResultType  catalog.Type
}

// Type implements Expr.
func (b *Binary) Type() catalog.Type { return b.ResultType }

// Unary is "not" or "-".
type Unary struct {
	Op      string
	Operand Expr
}

// Type implements Expr.
func (u *Unary) Type() catalog.Type {
	if u.Op == "not" {
		return catalog.Boolean
	}
	return u.Operand.Type()
}

// Compare is a comparison.
type Compare struct {
	Op          string
	Left, Right Expr
}

// Type implements Expr.
func (*Compare) Type() catalog.Type { return catalog.Boolean }

// IsNull is a null check.
type IsNull struct {
	Operand Expr
	Not     bool
}

// Type implements Expr.
func (*IsNull) Type() catalog.Type { return catalog.Boolean }

// Between is a range check.
type Between struct {
	Operand, Low, High Expr
	Not                bool
}

// Type implements Expr.
func (*Between) Type() catalog.Type { return catalog.Boolean }

// In is a list membership check.
type In struct {
	Operand Expr
	List    []Expr
	Not     bool
}

// Type implements Expr.
func (*In) Type() catalog.Type { return catalog.Boolean }

// Like is a pattern match.
type Like struct {
	Operand, Pattern, Escape Expr
	Not                      bool
}

// Type implements Expr.
func (*Like) Type() catalog.Type { return catalog.Boolean }

// Func is a function or aggregate call.
type Func struct {
	Name       string
	Distinct   bool
	Star       bool
	Args       []Expr
	ResultType catalog.Type
}

// Type implements Expr.
func (f *Func) Type() catalog.Type { return f.ResultType }

// IsAggregate reports whether the function is an SQL aggregate.
func (f *Func) IsAggregate() bool {
	switch f.Name {
	case "count", "sum", "avg", "min", "max":
		return true
	}
	return false
}

func (*ColumnRef) expr() {}
func (*EntityRef) expr() {}
func (*ItemRef) expr()   {}
func (*Literal) expr()   {}
func (*Param) expr()     {}
func (*Binary) expr()    {}
func (*Unary) expr()     {}
func (*Compare) expr()   {}
func (*IsNull) expr()    {}
func (*Between) expr()   {}
func (*In) expr()        {}
func (*Like) expr()      {}
func (*Func) expr()      {}

// Walk visits e and its children, parents first.
func Walk(e Expr, fn func(Expr)) {
	if e == nil {
		return
	}
	fn(e)
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
