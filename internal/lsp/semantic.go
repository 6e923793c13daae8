package lsp

import (
	"slices"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"

	"calyx/grammar"
	"calyx/internal/ir"
)

// SemanticToken represents a single LSP semantic token entry
// Line and StartChar are 0-based positions
// TokenType is an index into SemanticTokenTypes
// TokenModifiers is a bitmask over SemanticTokenModifiers
type SemanticToken struct {
	Line           uint32
	StartChar      uint32
	Length         uint32
	TokenType      int
	TokenModifiers int
}

var tokenNames = func() map[lexer.TokenType]string {
	names := make(map[lexer.TokenType]string)
	for name, t := range grammar.CalyxLexer.Symbols() {
		names[t] = name
	}
	return names
}()

// lexDocument returns the tokens of content up to the first lexing error,
// without whitespace
func lexDocument(content string) []lexer.Token {
	lex, err := grammar.CalyxLexer.Lex("", strings.NewReader(content))
	if err != nil {
		return nil
	}
	var tokens []lexer.Token
	for {
		token, err := lex.Next()
		if err != nil || token.EOF() {
			return tokens
		}
		if tokenNames[token.Type] != "Whitespace" {
			tokens = append(tokens, token)
		}
	}
}

// collectSemanticTokens classifies the lexed tokens of doc. Lexing works
// on text that does not parse, so highlighting survives syntax errors.
func collectSemanticTokens(doc *document) []SemanticToken {
	var tokens []SemanticToken

	lexed := lexDocument(doc.content)
	text := func(i int) string {
		if i < 0 || i >= len(lexed) {
			return ""
		}
		return lexed[i].Value
	}

	for i, token := range lexed {
		kind, decl := "", false
		switch tokenNames[token.Type] {
		case "Comment":
			kind = "comment"
		case "String":
			kind = "string"
		case "Var":
			kind, decl = "variable", text(i+1) == "="
		case "Local":
			kind, decl = "parameter", text(i-1) == "local"
		case "Label":
			kind, decl = "label", text(i+1) == ":"
		case "Global":
			kind, decl = globalKind(doc, token.Value, text(i-1))
		case "Float", "Int":
			kind = "number"
		case "Ident":
			if _, ok := ir.ParseType(token.Value); ok {
				kind = "type"
			} else {
				kind = "keyword"
			}
		case "Arrow":
			kind = "operator"
		default:
			continue
		}
		tokens = append(tokens, makeToken(token.Pos, token.Value, kind, decl))
	}

	return tokens
}

// globalKind tells functions from data symbols by their declaration or,
// for references, by what the last successful parse declared
func globalKind(doc *document, value, prev string) (string, bool) {
	switch prev {
	case "func":
		return "function", true
	case "global":
		return "property", true
	}
	name := strings.TrimPrefix(value, "@")
	if doc.result != nil && doc.result.Program != nil {
		if _, ok := doc.result.Program.Functions[name]; ok {
			return "function", false
		}
	}
	return "property", false
}

func makeToken(pos lexer.Position, value, tokenType string, declaration bool) SemanticToken {
	modifiers := 0
	if declaration {
		modifiers = 1 << slices.Index(SemanticTokenModifiers, "declaration")
	}
	return SemanticToken{
		Line:           uint32(pos.Line - 1),
		StartChar:      uint32(pos.Column - 1),
		Length:         uint32(len(value)),
		TokenType:      max(slices.Index(SemanticTokenTypes, tokenType), 0),
		TokenModifiers: modifiers,
	}
}
