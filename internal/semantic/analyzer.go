// Package semantic verifies the structural rules of IR programs before
// they reach the optimizer.
package semantic

import (
	"fmt"
	"slices"

	"calyx/internal/errors"
	"calyx/internal/graph"
	"calyx/internal/ir"
	"calyx/internal/parser"
)

type Analyzer struct {
	program *ir.Program
	source  *parser.SourceMap
	errors  []errors.CompilerError

	// per function
	fn      *ir.Function
	defined map[ir.VarIndex]ir.Pos
}

func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Analyze checks every function of program and returns the errors and
// warnings found, ordered by function and position. source may be nil,
// in which case diagnostics carry no location.
func (a *Analyzer) Analyze(program *ir.Program, source *parser.SourceMap) []errors.CompilerError {
	a.program = program
	a.source = source
	a.errors = make([]errors.CompilerError, 0)

	for _, name := range program.SortedGlobals() {
		a.analyzeGlobal(name, program.Globals[name])
	}
	for _, name := range program.SortedFunctions() {
		a.analyzeFunction(program.Functions[name])
	}
	return a.errors
}

// GetErrors returns the diagnostics of the last analysis
func (a *Analyzer) GetErrors() []errors.CompilerError {
	return a.errors
}

// Verify analyzes program and returns an error if any diagnostic is an error
func Verify(program *ir.Program) error {
	for _, d := range NewAnalyzer().Analyze(program, nil) {
		if d.Level == errors.Error {
			return fmt.Errorf("%s: %s", d.Code, d.Message)
		}
	}
	return nil
}

// HasErrors reports whether diags contain anything worse than a warning
func HasErrors(diags []errors.CompilerError) bool {
	return slices.ContainsFunc(diags, func(d errors.CompilerError) bool {
		return d.Level == errors.Error
	})
}

func (a *Analyzer) addCompilerError(err errors.CompilerError) {
	a.errors = append(a.errors, err)
}

func (a *Analyzer) at(pos ir.Pos) errors.Position {
	return a.source.Directive(a.fn.Symbol, pos)
}

func (a *Analyzer) analyzeGlobal(name string, g *ir.Global) {
	pos := errors.Position{}
	if a.source != nil {
		pos = a.source.Globals[name]
	}
	if g.Type == ir.Void {
		a.addCompilerError(errors.InvalidOperandType("global", g.Type.String(), pos))
	}
	if g.Label != "" && g.Type != ir.Pointer {
		a.addCompilerError(errors.InvalidOperandType("address initializer", g.Type.String(), pos))
	}
}

func (a *Analyzer) analyzeFunction(fn *ir.Function) {
	a.fn = fn
	a.defined = make(map[ir.VarIndex]ir.Pos)

	fpos := a.source.Directive(fn.Symbol, ir.Pos{})
	if _, ok := fn.Blocks[ir.EntryBlock]; !ok {
		a.addCompilerError(errors.MissingEntry(fn.Symbol, fpos))
	}
	a.analyzeLocals()

	// Definitions first, so that uses in earlier blocks resolve
	for _, label := range fn.SortedBlocks() {
		for i, d := range fn.Blocks[label].Directives {
			v, ok := ir.Def(d)
			if !ok {
				continue
			}
			pos := ir.Pos{Block: label, Index: i}
			if first, seen := a.defined[v]; seen {
				a.addCompilerError(errors.RedefinedValue(fmt.Sprintf("v%d", v), a.at(pos), a.at(first)))
				continue
			}
			a.defined[v] = pos
		}
	}

	for _, label := range fn.SortedBlocks() {
		a.analyzeBlock(label, fn.Blocks[label])
	}
	a.analyzeFlow()
}

func (a *Analyzer) analyzeLocals() {
	args := make(map[int]ir.VarIndex)
	for _, c := range a.fn.SortedLocals() {
		l := a.fn.Locals[c]
		name := fmt.Sprintf("c%d", c)
		pos := a.source.Local(a.fn.Symbol, c)
		switch {
		case l.Index != c:
			a.addCompilerError(errors.InvalidLocal(name, fmt.Sprintf("recorded index is c%d", l.Index), pos))
		case l.Type == ir.Void:
			a.addCompilerError(errors.InvalidLocal(name, "locals cannot be void", pos))
		case l.Size == 0:
			a.addCompilerError(errors.InvalidLocal(name, "size must be positive", pos))
		case l.Type != ir.Struct && l.Size < l.Type.Size():
			a.addCompilerError(errors.InvalidLocal(name, fmt.Sprintf("size %d is too small for %s", l.Size, l.Type), pos))
		}
		if l.IsArg {
			if other, ok := args[l.ArgIndex]; ok {
				a.addCompilerError(errors.InvalidLocal(name, fmt.Sprintf("argument %d is already held by c%d", l.ArgIndex, other), pos))
			}
			args[l.ArgIndex] = c
		}
	}
}

func (a *Analyzer) analyzeBlock(label ir.BlockLabel, block *ir.BasicBlock) {
	name := fmt.Sprintf("L%d", label)
	if len(block.Directives) == 0 {
		a.addCompilerError(errors.MissingTerminator(name, a.source.Block(a.fn.Symbol, label)))
		return
	}
	last := len(block.Directives) - 1
	for i, d := range block.Directives {
		pos := ir.Pos{Block: label, Index: i}
		if ir.IsBlockEnd(d) && i != last {
			a.addCompilerError(errors.MisplacedTerminator(name, a.at(pos)))
		}
		a.analyzeDirective(pos, d)
	}
	if !ir.IsBlockEnd(block.Directives[last]) {
		a.addCompilerError(errors.MissingTerminator(name, a.source.Block(a.fn.Symbol, label)))
	}
}

func (a *Analyzer) analyzeDirective(pos ir.Pos, d ir.Directive) {
	for _, v := range ir.Uses(d) {
		if _, ok := a.defined[v]; !ok {
			a.addCompilerError(errors.UndefinedValue(fmt.Sprintf("v%d", v), a.at(pos), a.definedNames()))
		}
	}
	if br, ok := d.(ir.Branch); ok {
		for _, dest := range br.Destinations() {
			if _, ok := a.fn.Blocks[dest]; !ok {
				a.addCompilerError(errors.UndefinedBlock(fmt.Sprintf("L%d", dest), a.at(pos)))
			}
		}
	}
	if c, ok := localOf(d); ok {
		if _, declared := a.fn.Locals[c]; !declared {
			a.addCompilerError(errors.UndefinedLocal(fmt.Sprintf("c%d", c), a.at(pos)))
		}
	}
	if symbol, ok := globalOf(d); ok {
		if _, declared := a.program.Globals[symbol]; !declared {
			a.addCompilerError(errors.NewSemanticError(errors.ErrorUndefinedSymbol,
				fmt.Sprintf("global @%s is not declared", symbol), a.at(pos)).
				WithLength(len(symbol) + 1).
				Build())
		}
	}
	a.analyzeTypes(pos, d)
}

func (a *Analyzer) definedNames() []string {
	names := make([]string, 0, len(a.defined))
	for v := range a.defined {
		names = append(names, fmt.Sprintf("v%d", v))
	}
	slices.Sort(names)
	return names
}

func localOf(d ir.Directive) (ir.VarIndex, bool) {
	switch d := d.(type) {
	case *ir.LoadLocal:
		return d.Local, true
	case *ir.LoadLocalAddr:
		return d.Local, true
	case *ir.StoreLocal:
		return d.Local, true
	}
	return 0, false
}

// globalOf returns the data symbol d accesses. Address loads are left
// out since they may name functions defined elsewhere.
func globalOf(d ir.Directive) (string, bool) {
	switch d := d.(type) {
	case *ir.LoadGlobal:
		return d.Symbol, true
	case *ir.StoreGlobal:
		return d.Symbol, true
	}
	return "", false
}

// analyzeFlow warns about blocks no path reaches and locals nothing uses
func (a *Analyzer) analyzeFlow() {
	if _, ok := a.fn.Blocks[ir.EntryBlock]; !ok {
		return
	}
	blocks := graph.NewDirected[ir.BlockLabel, struct{}]()
	for label := range a.fn.Blocks {
		blocks.AddNode(label, struct{}{})
	}
	used := make(map[ir.VarIndex]bool)
	for label, b := range a.fn.Blocks {
		for _, d := range b.Directives {
			if c, ok := localOf(d); ok {
				used[c] = true
			}
		}
		if br := b.Terminator(); br != nil {
			for _, dest := range br.Destinations() {
				if blocks.Has(dest) && !blocks.HasEdge(label, dest) {
					blocks.AddEdge(label, dest)
				}
			}
		}
	}

	for _, label := range a.fn.SortedBlocks() {
		if !blocks.Reaches(ir.EntryBlock, label) {
			a.addCompilerError(errors.UnreachableBlock(fmt.Sprintf("L%d", label), a.source.Block(a.fn.Symbol, label)))
		}
	}
	for _, c := range a.fn.SortedLocals() {
		if !used[c] && !a.fn.Locals[c].IsArg {
			a.addCompilerError(errors.UnusedLocal(fmt.Sprintf("c%d", c), a.source.Local(a.fn.Symbol, c)))
		}
	}
}
