package parser

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// QueryLexer defines the token types of AQL.
var QueryLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `[ \t\r\n]+`},

	// Literals
	{Name: "String", Pattern: `'(?:''|[^'])*'`},
	{Name: "Number", Pattern: `\d+(?:\.\d+)?(?:[eE][+-]?\d+)?`},

	// Parameters
	{Name: "NamedParam", Pattern: `:[\p{L}_][\p{L}\p{N}_]*`},
	{Name: "PositionalParam", Pattern: `\?\d*`},

	// Keywords (must come before identifiers)
	{Name: "Keyword", Pattern: `(?i)\b(select|distinct|from|as|where|group|by|having|order|asc|desc|` +
		`join|left|right|full|inner|outer|fetch|with|and|or|not|is|null|between|in|like|escape|` +
		`true|false|update|set|delete|insert|into|values)\b`},

	{Name: "Ident", Pattern: `[\p{L}_$][\p{L}\p{N}_$]*`},

	// Operators and punctuation
	{Name: "Operator", Pattern: `<>|!=|<=|>=|\|\||[-+*/%=<>]`},
	{Name: "Punct", Pattern: `[(),.]`},
})
