// Package ast defines the raw syntax tree of AQL queries, as produced by the parser and
// before any identifier has been resolved against the catalog.
package ast

import "strings"

// Position is a location in the query string.
type Position struct {
	Offset int
	Line   int
	Column int
}

// Pos returns the position itself so that embedding it satisfies Node.
func (p Position) Pos() Position { return p }

// Node is any syntax tree node.
type Node interface {
	Pos() Position
}

// Statement is a top-level query: *Select, *Update, *Delete or *Insert.
type Statement interface {
	Node
	statementNode()
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

// Select is a select query. Items is empty for an implicit select ("from Patient p") and
// From is nil for filter fragments ("where this.amount > 10").
type Select struct {
	Position
	Distinct bool
	Items    []*SelectItem
	From     *From
	Where    Expr
	GroupBy  []Expr
	Having   Expr
	OrderBy  []*OrderItem
}

// SelectItem is one projected expression.
type SelectItem struct {
	Position
	Expr  Expr
	Alias string
}

// From lists ranges and joins in the order they were written.
type From struct {
	Position
	Items []FromItem
}

// FromItem is *Range or *Join.
type FromItem interface {
	Node
	fromItem()
}

// Range introduces an entity root: "Patient as p".
type Range struct {
	Position
	Entity string
	Alias  string
}

// JoinKind is the SQL join type.
type JoinKind int

const (
	// InnerJoin is the default join type.
	InnerJoin JoinKind = iota
	// LeftJoin is a left outer join.
	LeftJoin
	// RightJoin is a right outer join.
	RightJoin
	// FullJoin is a full outer join.
	FullJoin
)

// String returns the SQL keyword sequence for the join type.
func (k JoinKind) String() string {
	switch k {
	case LeftJoin:
		return "left outer join"
	case RightJoin:
		return "right outer join"
	case FullJoin:
		return "full outer join"
	default:
		return "inner join"
	}
}

// Join navigates an association: "left join fetch p.visits v with v.amount > 10".
type Join struct {
	Position
	Kind  JoinKind
	Fetch bool
	Path  *Path
	Alias string
	With  Expr
}

// OrderItem is one ordering term.
type OrderItem struct {
	Position
	Expr Expr
	Desc bool
}

// Update is a bulk update.
type Update struct {
	Position
	Entity      string
	Alias       string
	Assignments []*Assignment
	Where       Expr
}

// Assignment is "path = value" in a SET clause.
type Assignment struct {
	Position
	Target *Path
	Value  Expr
}

// Delete is a bulk delete.
type Delete struct {
	Position
	Entity string
	Alias  string
	Where  Expr
}

// Insert is "insert into Entity (props) select ..." or "... values (...)".
type Insert struct {
	Position
	Entity     string
	Properties []*Path
	Select     *Select
	Values     []Expr
}

// Path is a dotted identifier: an alias, an alias-qualified property, or an unqualified
// property. Paths with more than one part may also name a compile-time constant.
type Path struct {
	Position
	Parts []string
}

// String joins the path parts with dots.
func (p *Path) String() string { return strings.Join(p.Parts, ".") }

// LiteralKind classifies a literal.
type LiteralKind int

const (
	// StringLiteral is a quoted string.
	StringLiteral LiteralKind = iota
	// IntegerLiteral is a whole number.
	IntegerLiteral
	// FloatLiteral is a decimal number.
	FloatLiteral
	// BoolLiteral is true or false.
	BoolLiteral
	// NullLiteral is null.
	NullLiteral
)

// Literal is a constant written in the query.
type Literal struct {
	Position
	Kind  LiteralKind
	Value any
}

// Constant is a dotted path folded into its compile-time value.
type Constant struct {
	Position
	Name  string
	Value any
}

// Param is a query parameter. Named parameters (":name" and the JPA style "?1") have a
// Name; plain "?" parameters have an Index, their zero-based order of appearance.
type Param struct {
	Position
	Name  string
	Index int
}

// IsNamed reports whether the parameter is referenced by name.
func (p *Param) IsNamed() bool { return p.Name != "" }

// Binary is a logical (and, or), arithmetic or concatenation expression.
type Binary struct {
	Position
	Op    string
	Left  Expr
	Right Expr
}

// Unary is "not x" or "-x".
type Unary struct {
	Position
	Op      string
	Operand Expr
}

// Compare is a comparison.
type Compare struct {
	Position
	Op    string
	Left  Expr
	Right Expr
}

// IsNull is "x is [not] null".
type IsNull struct {
	Position
	Operand Expr
	Not     bool
}

// Between is "x [not] between low and high".
type Between struct {
	Position
	Operand Expr
	Low     Expr
	High    Expr
	Not     bool
}

// In is "x [not] in (a, b, ...)".
type In struct {
	Position
	Operand Expr
	List    []Expr
	Not     bool
}

// Like is "x [not] like pattern [escape e]".
type Like struct {
	Position
	Operand Expr
	Pattern Expr
	Escape  Expr
	Not     bool
}

// Func is a function or aggregate call.
type Func struct {
	Position
	Name     string
	Distinct bool
	Star     bool
	Args     []Expr
}

func (*Select) statementNode() {}
func (*Update) statementNode() {}
func (*Delete) statementNode() {}
func (*Insert) statementNode() {}

func (*Range) fromItem() {}
func (*Join) fromItem()  {}

func (*Path) exprNode()     {}
func (*Literal) exprNode()  {}
func (*Constant) exprNode() {}
func (*Param) exprNode()    {}
func (*Binary) exprNode()   {}
func (*Unary) exprNode()    {}
func (*Compare) exprNode()  {}
func (*IsNull) exprNode()   {}
func (*Between) exprNode()  {}
func (*In) exprNode()       {}
func (*Like) exprNode()     {}
func (*Func) exprNode()     {}
