package parser

import (
	"github.com/satishbabariya/aql-go/query/ast"
)

// Constants resolves qualified names such as "Status.ACTIVE" to compile-time values.
type Constants interface {
	Constant(name string) (any, bool)
}

// ConstantMap is a Constants backed by a map.
type ConstantMap map[string]any

// Constant implements Constants.
func (m ConstantMap) Constant(name string) (any, bool) {
	v, ok := m[name]
	return v, ok
}

// Fold returns a copy of stmt in which every dotted path naming a constant is replaced by
// an ast.Constant. Single-segment paths are never folded; they are aliases or properties.
// stmt is left unmodified.
func Fold(stmt ast.Statement, constants Constants) ast.Statement {
	if constants == nil {
		return stmt
	}
	return ast.RewriteStatement(stmt, folder(constants))
}

// FoldExpr is Fold for a standalone expression.
func FoldExpr(e ast.Expr, constants Constants) ast.Expr {
	if constants == nil {
		return e
	}
	return ast.Rewrite(e, folder(constants))
}

func folder(constants Constants) func(ast.Expr) ast.Expr {
	return func(e ast.Expr) ast.Expr {
		p, ok := e.(*ast.Path)
		if !ok || len(p.Parts) < 2 {
			return e
		}
		name := p.String()
		v, ok := constants.Constant(name)
		if !ok {
			return e
		}
		return &ast.Constant{Position: p.Position, Name: name, Value: v}
	}
}
