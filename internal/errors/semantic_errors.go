package errors

import (
	"fmt"
	"sort"
	"strings"
)

// SemanticErrorBuilder provides a fluent interface for creating IR diagnostics
type SemanticErrorBuilder struct {
	err CompilerError
}

// NewSemanticError creates a new error builder
func NewSemanticError(code, message string, pos Position) *SemanticErrorBuilder {
	return &SemanticErrorBuilder{
		err: CompilerError{
			Level:    Error,
			Code:     code,
			Message:  message,
			Position: pos,
			Length:   1,
		},
	}
}

// NewSemanticWarning creates a new warning builder
func NewSemanticWarning(code, message string, pos Position) *SemanticErrorBuilder {
	b := NewSemanticError(code, message, pos)
	b.err.Level = Warning
	return b
}

// WithLength sets the length of the error span
func (b *SemanticErrorBuilder) WithLength(length int) *SemanticErrorBuilder {
	b.err.Length = length
	return b
}

// WithSuggestion adds a suggestion to the error
func (b *SemanticErrorBuilder) WithSuggestion(message string) *SemanticErrorBuilder {
	b.err.Suggestions = append(b.err.Suggestions, Suggestion{Message: message})
	return b
}

// WithNote adds a note to the error
func (b *SemanticErrorBuilder) WithNote(note string) *SemanticErrorBuilder {
	b.err.Notes = append(b.err.Notes, note)
	return b
}

// WithHelp adds help text to the error
func (b *SemanticErrorBuilder) WithHelp(help string) *SemanticErrorBuilder {
	b.err.HelpText = help
	return b
}

// Build returns the completed compiler error
func (b *SemanticErrorBuilder) Build() CompilerError {
	return b.err
}

// UndefinedValue reports a read of a value with no definition
func UndefinedValue(name string, pos Position, defined []string) CompilerError {
	builder := NewSemanticError(ErrorUndefinedValue, fmt.Sprintf("value %s is used but never defined", name), pos).
		WithLength(len(name))
	if similar := findSimilarNames(name, defined); len(similar) > 0 {
		builder = builder.WithSuggestion(fmt.Sprintf("did you mean %s?", strings.Join(similar, " or ")))
	}
	return builder.WithNote("every value must be defined by exactly one directive").Build()
}

// RedefinedValue reports a second definition of a write-once value
func RedefinedValue(name string, pos Position, first Position) CompilerError {
	builder := NewSemanticError(ErrorRedefinedValue, fmt.Sprintf("value %s is defined more than once", name), pos).
		WithLength(len(name))
	if first.Line > 0 {
		builder = builder.WithNote(fmt.Sprintf("first defined at %d:%d", first.Line, first.Column))
	}
	return builder.WithHelp("use a local with load and store for values that change").Build()
}

// UndefinedLocal reports a reference to an undeclared stack local
func UndefinedLocal(name string, pos Position) CompilerError {
	return NewSemanticError(ErrorUndefinedLocal, fmt.Sprintf("local %s is not declared", name), pos).
		WithLength(len(name)).
		WithSuggestion(fmt.Sprintf("declare it with 'local %s: <type>, size <n>'", name)).
		Build()
}

// UndefinedBlock reports a branch to a block the function does not contain
func UndefinedBlock(label string, pos Position) CompilerError {
	return NewSemanticError(ErrorUndefinedBlock, fmt.Sprintf("block %s does not exist", label), pos).
		WithLength(len(label)).
		Build()
}

// MissingEntry reports a function without block L1
func MissingEntry(symbol string, pos Position) CompilerError {
	return NewSemanticError(ErrorMissingEntry, fmt.Sprintf("function @%s has no entry block", symbol), pos).
		WithNote("execution always starts at block L1").
		Build()
}

// MissingTerminator reports a block that falls off its end
func MissingTerminator(label string, pos Position) CompilerError {
	return NewSemanticError(ErrorMissingTerminator, fmt.Sprintf("block %s does not end with a terminator", label), pos).
		WithLength(len(label)).
		WithSuggestion("end the block with br, select or ret").
		Build()
}

// MisplacedTerminator reports a terminator followed by more directives
func MisplacedTerminator(label string, pos Position) CompilerError {
	return NewSemanticError(ErrorMisplacedTerminator, fmt.Sprintf("terminator in the middle of block %s", label), pos).
		WithNote("directives after a terminator can never execute").
		Build()
}

// InvalidOperandType reports an operation applied to a type it does not support
func InvalidOperandType(op, typ string, pos Position) CompilerError {
	builder := NewSemanticError(ErrorInvalidOperandType, fmt.Sprintf("%s is not defined on type %s", op, typ), pos).
		WithLength(len(op))
	switch typ {
	case "i8", "u8", "i16", "u16":
		builder = builder.WithNote("small integer types only exist in memory; arithmetic uses i32 or u32")
	case "struct":
		builder = builder.WithNote("struct values can only be accessed field by field through memory")
	}
	return builder.Build()
}

// DuplicateSymbol reports a global or function declared twice
func DuplicateSymbol(name string, pos Position) CompilerError {
	return NewSemanticError(ErrorDuplicateSymbol, fmt.Sprintf("symbol @%s is declared more than once", name), pos).
		WithLength(len(name) + 1).
		Build()
}

// InvalidLocal reports a malformed local declaration
func InvalidLocal(name, reason string, pos Position) CompilerError {
	return NewSemanticError(ErrorInvalidLocal, fmt.Sprintf("invalid local %s: %s", name, reason), pos).
		WithLength(len(name)).
		Build()
}

// UnreachableBlock warns about a block no path from the entry reaches
func UnreachableBlock(label string, pos Position) CompilerError {
	return NewSemanticWarning(WarningUnreachableBlock, fmt.Sprintf("block %s is unreachable", label), pos).
		WithLength(len(label)).
		WithNote("the optimizer removes unreachable blocks").
		Build()
}

// UnusedLocal warns about a local that is never accessed
func UnusedLocal(name string, pos Position) CompilerError {
	return NewSemanticWarning(WarningUnusedLocal, fmt.Sprintf("local %s is never used", name), pos).
		WithLength(len(name)).
		Build()
}

// findSimilarNames returns up to two candidates within edit distance 1 of target
func findSimilarNames(target string, candidates []string) []string {
	var similar []string
	for _, c := range candidates {
		if c != target && levenshteinDistance(target, c) <= 1 {
			similar = append(similar, c)
		}
	}
	sort.Strings(similar)
	if len(similar) > 2 {
		similar = similar[:2]
	}
	return similar
}

// levenshteinDistance calculates the edit distance between two strings
func levenshteinDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
