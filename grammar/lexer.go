package grammar

import (
	"github.com/alecthomas/participle/v2/lexer"
)

var CalyxLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		// Comments
		{"Comment", `//[^\n]*`, nil},

		{"String", `"(\\.|[^"\\])*"`, nil},

		// Names carry their namespace in a prefix (order matters: before Ident)
		{"Var", `v[0-9]+\b`, nil},
		{"Local", `c[0-9]+\b`, nil},
		{"Label", `L[0-9]+\b`, nil},
		{"Global", `@[a-zA-Z_.$][a-zA-Z0-9_.$]*`, nil},

		// Numeric literals
		{"Float", `-?([0-9]+\.[0-9]*([eE][-+]?[0-9]+)?|[0-9]+[eE][-+]?[0-9]+)|[-+]Inf|NaN`, nil},
		{"Int", `-?(0x[0-9a-fA-F]+|[0-9]+)`, nil},

		// Keywords, types and mnemonics
		{"Ident", `[a-zA-Z_][a-zA-Z0-9_]*`, nil},

		{"Arrow", `<-`, nil},
		{"Punctuation", `[{}[\]():,=?*;+]`, nil},

		// Whitespace
		{"Whitespace", `[ \t\r\n]+`, nil},
	},
})
