// Package parser turns AQL query strings into raw syntax trees.
//
// Parsing happens in three steps: substitution tokens are replaced in the token stream,
// the participle grammar produces a RawStatement which is converted into an ast.Statement,
// and finally dotted paths naming compile-time constants are folded into ast.Constant
// nodes by a pure rewrite.
package parser

import (
	"errors"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/satishbabariya/aql-go/query/ast"
	"github.com/satishbabariya/aql-go/query/qerrors"
)

var options = []participle.Option{
	participle.Lexer(QueryLexer),
	participle.Elide("Whitespace"),
	participle.CaseInsensitive("Keyword"),
	participle.UseLookahead(16),
}

var (
	statementParser  = participle.MustBuild[RawStatement](options...)
	expressionParser = participle.MustBuild[Expression](options...)
)

// Parse parses a query string into a statement. Substitutions are applied to identifier
// and keyword tokens before parsing.
func Parse(query string, substitutions map[string]string) (ast.Statement, error) {
	src, err := Substitute(query, substitutions)
	if err != nil {
		return nil, err
	}
	raw, err := statementParser.ParseString("", src)
	if err != nil {
		return nil, syntaxError(err)
	}
	c := &converter{}
	return c.statement(raw)
}

// ParseExpression parses a standalone predicate, such as a filter condition.
func ParseExpression(fragment string) (ast.Expr, error) {
	raw, err := expressionParser.ParseString("", fragment)
	if err != nil {
		return nil, syntaxError(err)
	}
	c := &converter{}
	return c.expression(raw)
}

// Substitute replaces identifier and keyword tokens that exactly match a key of
// substitutions with the mapped text. Literals, parameters and operators are never
// replaced.
func Substitute(query string, substitutions map[string]string) (string, error) {
	if len(substitutions) == 0 {
		return query, nil
	}
	lex, err := QueryLexer.Lex("", strings.NewReader(query))
	if err != nil {
		return "", syntaxError(err)
	}
	tokens, err := lexer.ConsumeAll(lex)
	if err != nil {
		return "", syntaxError(err)
	}

	symbols := QueryLexer.Symbols()
	ident, keyword := symbols["Ident"], symbols["Keyword"]

	var b strings.Builder
	b.Grow(len(query))
	for _, tok := range tokens {
		if tok.EOF() {
			break
		}
		if tok.Type == ident || tok.Type == keyword {
			if replacement, ok := substitutions[tok.Value]; ok {
				b.WriteString(replacement)
				continue
			}
		}
		b.WriteString(tok.Value)
	}
	return b.String(), nil
}

// syntaxError converts participle and lexer errors into a qerrors.SyntaxError.
func syntaxError(err error) error {
	se := &qerrors.SyntaxError{Message: err.Error()}

	var perr participle.Error
	if errors.As(err, &perr) {
		pos := perr.Position()
		se.Message = perr.Message()
		se.Line, se.Column, se.Offset = pos.Line, pos.Column, pos.Offset
	}
	var unexpected *participle.UnexpectedTokenError
	if errors.As(err, &unexpected) {
		se.Token = unexpected.Unexpected.Value
	}
	return se
}
