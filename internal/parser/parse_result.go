package parser

import (
	"fmt"

	"calyx/internal/errors"
	"calyx/internal/ir"
)

// ParseError is a problem found while turning the syntax tree into IR
type ParseError struct {
	Code     string
	Message  string
	Position errors.Position
	Length   int
}

func (e ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Position, e.Message)
}

// Diagnostic converts the error for the reporter and the language server
func (e ParseError) Diagnostic() errors.CompilerError {
	return errors.NewSemanticError(e.Code, e.Message, e.Position).WithLength(e.Length).Build()
}

// ParseResult contains the full parsing result
type ParseResult struct {
	Program *ir.Program
	Source  *SourceMap
	// SyntaxError is set when the text does not match the grammar; Program
	// is nil in that case
	SyntaxError error
	ParseErrors []ParseError
}

// OK reports whether the program was read without any error
func (pr *ParseResult) OK() bool {
	return pr.SyntaxError == nil && len(pr.ParseErrors) == 0
}

// Err returns the first error, or nil
func (pr *ParseResult) Err() error {
	if pr.SyntaxError != nil {
		return pr.SyntaxError
	}
	if len(pr.ParseErrors) > 0 {
		return pr.ParseErrors[0]
	}
	return nil
}

// Diagnostics returns every error of the result in source order
func (pr *ParseResult) Diagnostics() []errors.CompilerError {
	var out []errors.CompilerError
	if pr.SyntaxError != nil {
		out = append(out, syntaxDiagnostic(pr.SyntaxError))
	}
	for _, e := range pr.ParseErrors {
		out = append(out, e.Diagnostic())
	}
	return out
}

// SourceMap records where the parts of a program were written
type SourceMap struct {
	Globals   map[string]errors.Position
	Functions map[string]*FunctionSource
}

// FunctionSource holds the positions of one function's declarations and
// directives
type FunctionSource struct {
	Position   errors.Position
	Blocks     map[ir.BlockLabel]errors.Position
	Locals     map[ir.VarIndex]errors.Position
	Directives map[ir.Pos]errors.Position
	// Values maps each defined value to its defining directive
	Values map[ir.VarIndex]errors.Position
}

func newSourceMap() *SourceMap {
	return &SourceMap{
		Globals:   make(map[string]errors.Position),
		Functions: make(map[string]*FunctionSource),
	}
}

// Function returns the positions recorded for symbol, or nil
func (m *SourceMap) Function(symbol string) *FunctionSource {
	if m == nil {
		return nil
	}
	return m.Functions[symbol]
}

// Directive returns where the directive at pos in symbol was written
func (m *SourceMap) Directive(symbol string, pos ir.Pos) errors.Position {
	if fs := m.Function(symbol); fs != nil {
		if p, ok := fs.Directives[pos]; ok {
			return p
		}
		return fs.Position
	}
	return errors.Position{}
}

// Block returns where block label of symbol was declared
func (m *SourceMap) Block(symbol string, label ir.BlockLabel) errors.Position {
	if fs := m.Function(symbol); fs != nil {
		if p, ok := fs.Blocks[label]; ok {
			return p
		}
		return fs.Position
	}
	return errors.Position{}
}

// Local returns where local c of symbol was declared
func (m *SourceMap) Local(symbol string, c ir.VarIndex) errors.Position {
	if fs := m.Function(symbol); fs != nil {
		if p, ok := fs.Locals[c]; ok {
			return p
		}
		return fs.Position
	}
	return errors.Position{}
}

// At finds the directive written at line, for editor lookups
func (m *SourceMap) At(line int) (string, ir.Pos, bool) {
	if m == nil {
		return "", ir.Pos{}, false
	}
	for symbol, fs := range m.Functions {
		for pos, p := range fs.Directives {
			if p.Line == line {
				return symbol, pos, true
			}
		}
	}
	return "", ir.Pos{}, false
}
