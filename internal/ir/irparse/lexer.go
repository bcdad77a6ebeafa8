package irparse

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// irLexer tokenizes the textual IR. Order matters: value refs and function
// names carry their sigil, numbers swallow an optional sign and exponent.
var irLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{Name: "Comment", Pattern: `//[^\n]*`, Action: nil},
		{Name: "ValueRef", Pattern: `%[0-9a-zA-Z_]+`, Action: nil},
		{Name: "AtName", Pattern: `@[a-zA-Z_][a-zA-Z0-9_]*`, Action: nil},
		{Name: "String", Pattern: `"[^"]*"`, Action: nil},
		{Name: "Number", Pattern: `-?[0-9]+(\.[0-9]+)?([eE][+-]?[0-9]+)?`, Action: nil},
		{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_.]*`, Action: nil},
		{Name: "Punct", Pattern: `[{}()\[\]<>=,:?^]`, Action: nil},
		{Name: "Whitespace", Pattern: `[ \t\r\n]+`, Action: nil},
	},
})
