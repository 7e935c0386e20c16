package parser

import "github.com/alecthomas/participle/v2/lexer"

// RawStatement is the parse tree of a query. It is converted to an ast.Statement after
// parsing.
type RawStatement struct {
	Pos    lexer.Position
	Update *UpdateStatement `  @@`
	Delete *DeleteStatement `| @@`
	Insert *InsertStatement `| @@`
	Select *SelectStatement `| @@`
}

// SelectStatement is a select query. Both the select and from clauses are optional:
// "from Patient p" is an implicit select and "where this.amount > 1" is a filter fragment.
type SelectStatement struct {
	Pos     lexer.Position
	Select  *SelectClause `@@?`
	From    *FromClause   `@@?`
	Where   *Expression   `( "where" @@ )?`
	GroupBy []*Expression `( "group" "by" @@ ( "," @@ )* )?`
	Having  *Expression   `( "having" @@ )?`
	OrderBy []*OrderItem  `( "order" "by" @@ ( "," @@ )* )?`
}

// SelectClause is the projection list.
type SelectClause struct {
	Pos      lexer.Position
	Distinct bool          `"select" @"distinct"?`
	Items    []*SelectItem `@@ ( "," @@ )*`
}

// SelectItem is a projected expression with an optional alias.
type SelectItem struct {
	Pos   lexer.Position
	Expr  *Expression `@@`
	Alias string      `( "as"? @Ident )?`
}

// FromClause is the root range followed by further ranges and joins.
type FromClause struct {
	Pos   lexer.Position
	Root  *RangeDecl  `"from" @@`
	Tails []*FromTail `@@*`
}

// FromTail is either ", Entity alias" or a join.
type FromTail struct {
	Pos   lexer.Position
	Range *RangeDecl `  "," @@`
	Join  *JoinDecl  `| @@`
}

// RangeDecl introduces an entity with an optional alias.
type RangeDecl struct {
	Pos    lexer.Position
	Entity string `@Ident`
	Alias  string `( "as"? @Ident )?`
}

// JoinDecl navigates an association path.
type JoinDecl struct {
	Pos   lexer.Position
	Kind  string      `@( "left" | "right" | "full" | "inner" )? "outer"? "join"`
	Fetch bool        `@"fetch"?`
	Path  *PathExpr   `@@`
	Alias string      `( "as"? @Ident )?`
	With  *Expression `( "with" @@ )?`
}

// OrderItem is an ordering expression and direction.
type OrderItem struct {
	Pos       lexer.Position
	Expr      *Expression `@@`
	Direction string      `@( "asc" | "desc" )?`
}

// UpdateStatement is a bulk update.
type UpdateStatement struct {
	Pos         lexer.Position
	Entity      string        `"update" @Ident`
	Alias       string        `( "as"? @Ident )?`
	Assignments []*Assignment `"set" @@ ( "," @@ )*`
	Where       *Expression   `( "where" @@ )?`
}

// Assignment is a SET clause entry.
type Assignment struct {
	Pos    lexer.Position
	Target *PathExpr   `@@ "="`
	Value  *Expression `@@`
}

// DeleteStatement is a bulk delete.
type DeleteStatement struct {
	Pos    lexer.Position
	Entity string      `"delete" "from"? @Ident`
	Alias  string      `( "as"? @Ident )?`
	Where  *Expression `( "where" @@ )?`
}

// InsertStatement is insert-select or insert-values.
type InsertStatement struct {
	Pos        lexer.Position
	Entity     string           `"insert" "into" @Ident`
	Properties []*PathExpr      `"(" @@ ( "," @@ )* ")"`
	Values     []*Expression    `( "values" "(" @@ ( "," @@ )* ")"`
	Select     *SelectStatement `| @@ )`
}

// Expression is a disjunction.
type Expression struct {
	Pos lexer.Position
	Or  []*AndExpr `@@ ( "or" @@ )*`
}

// AndExpr is a conjunction.
type AndExpr struct {
	Pos lexer.Position
	And []*NotExpr `@@ ( "and" @@ )*`
}

// NotExpr is an optionally negated predicate.
type NotExpr struct {
	Pos       lexer.Position
	Not       *NotExpr   `  "not" @@`
	Predicate *Predicate `| @@`
}

// Predicate is an operand with an optional comparison-like tail.
type Predicate struct {
	Pos  lexer.Position
	Left *Additive      `@@`
	Tail *PredicateTail `@@?`
}

// PredicateTail is the right-hand side of a predicate.
type PredicateTail struct {
	Pos     lexer.Position
	Compare *CompareTail `  @@`
	IsNull  *IsNullTail  `| @@`
	Between *BetweenTail `| @@`
	In      *InTail      `| @@`
	Like    *LikeTail    `| @@`
}

// CompareTail is a binary comparison.
type CompareTail struct {
	Pos   lexer.Position
	Op    string    `@( "=" | "<>" | "!=" | "<=" | ">=" | "<" | ">" )`
	Right *Additive `@@`
}

// IsNullTail is "is [not] null".
type IsNullTail struct {
	Pos lexer.Position
	Not bool `"is" @"not"? "null"`
}

// BetweenTail is "[not] between low and high".
type BetweenTail struct {
	Pos  lexer.Position
	Not  bool      `@"not"? "between"`
	Low  *Additive `@@`
	High *Additive `"and" @@`
}

// InTail is "[not] in (list)".
type InTail struct {
	Pos  lexer.Position
	Not  bool          `@"not"? "in"`
	List []*Expression `"(" @@ ( "," @@ )* ")"`
}

// LikeTail is "[not] like pattern [escape char]".
type LikeTail struct {
	Pos     lexer.Position
	Not     bool      `@"not"? "like"`
	Pattern *Additive `@@`
	Escape  *Additive `( "escape" @@ )?`
}

// Additive is a chain of +, - and || operations.
type Additive struct {
	Pos  lexer.Position
	Left *Multiplicative `@@`
	Rest []*AddOp        `@@*`
}

// AddOp is one additive step.
type AddOp struct {
	Pos   lexer.Position
	Op    string          `@( "+" | "-" | "||" )`
	Right *Multiplicative `@@`
}

// Multiplicative is a chain of *, / and % operations.
type Multiplicative struct {
	Pos  lexer.Position
	Left *Unary   `@@`
	Rest []*MulOp `@@*`
}

// MulOp is one multiplicative step.
type MulOp struct {
	Pos   lexer.Position
	Op    string `@( "*" | "/" | "%" )`
	Right *Unary `@@`
}

// Unary is an optionally negated primary.
type Unary struct {
	Pos     lexer.Position
	Neg     *Unary   `  "-" @@`
	Primary *Primary `| @@`
}

// Primary is a leaf or parenthesized expression.
type Primary struct {
	Pos     lexer.Position
	Literal *Literal    `  @@`
	Param   *Param      `| @@`
	Func    *FuncCall   `| @@`
	Path    *PathExpr   `| @@`
	Group   *Expression `| "(" @@ ")"`
}

// Literal is a constant.
type Literal struct {
	Pos    lexer.Position
	String *string `  @String`
	Number *string `| @Number`
	Bool   *string `| @( "true" | "false" )`
	Null   bool    `| @"null"`
}

// Param is a named (":name", "?1") or positional ("?") parameter.
type Param struct {
	Pos        lexer.Position
	Named      *string `  @NamedParam`
	Positional *string `| @PositionalParam`
}

// FuncCall is a function or aggregate call.
type FuncCall struct {
	Pos      lexer.Position
	Name     string        `@Ident "("`
	Star     bool          `( @"*"`
	Distinct bool          `  | @"distinct"?`
	Args     []*Expression `    ( @@ ( "," @@ )* )? ) ")"`
}

// PathExpr is a dotted path. Segments after the first may collide with keywords.
type PathExpr struct {
	Pos   lexer.Position
	Parts []string `@Ident ( "." @( Ident | Keyword ) )*`
}
