package ir

import (
	"maps"
	"slices"
	"strconv"

	"calyx/internal/errors"
)

// Program represents a whole translation unit in Calyx IR
type Program struct {
	Functions map[string]*Function
	Strings   []string
	Globals   map[string]*Global
}

// Function represents a function body as a graph of basic blocks
type Function struct {
	Symbol string
	Blocks map[BlockLabel]*BasicBlock
	Locals map[VarIndex]*Local
}

// BasicBlock is a straight-line sequence of directives ending in a terminator
type BasicBlock struct {
	Directives []Directive
}

func NewProgram() *Program {
	return &Program{
		Functions: make(map[string]*Function),
		Globals:   make(map[string]*Global),
	}
}

func NewFunction(symbol string) *Function {
	return &Function{
		Symbol: symbol,
		Blocks: make(map[BlockLabel]*BasicBlock),
		Locals: make(map[VarIndex]*Local),
	}
}

// StringSymbol is the global symbol under which string literal i is addressable
func StringSymbol(i int) string {
	return ".str." + strconv.Itoa(i)
}

// SortedFunctions returns the function symbols in lexical order
func (p *Program) SortedFunctions() []string {
	return slices.Sorted(maps.Keys(p.Functions))
}

// SortedGlobals returns the global symbols in lexical order
func (p *Program) SortedGlobals() []string {
	return slices.Sorted(maps.Keys(p.Globals))
}

// Clone returns a deep copy of the program
func (p *Program) Clone() *Program {
	c := &Program{
		Functions: make(map[string]*Function, len(p.Functions)),
		Strings:   slices.Clone(p.Strings),
		Globals:   make(map[string]*Global, len(p.Globals)),
	}
	for name, fn := range p.Functions {
		c.Functions[name] = fn.Clone()
	}
	for name, g := range p.Globals {
		gc := *g
		if g.Value != nil {
			v := *g.Value
			gc.Value = &v
		}
		c.Globals[name] = &gc
	}
	return c
}

// SortedBlocks returns the block labels in ascending order
func (f *Function) SortedBlocks() []BlockLabel {
	return slices.Sorted(maps.Keys(f.Blocks))
}

// SortedLocals returns the local ids in ascending order
func (f *Function) SortedLocals() []VarIndex {
	return slices.Sorted(maps.Keys(f.Locals))
}

// Block returns the block with the given label, creating it if needed
func (f *Function) Block(label BlockLabel) *BasicBlock {
	if label == InvalidBlock {
		errors.Invariant("block label 0 is reserved")
	}
	b, ok := f.Blocks[label]
	if !ok {
		b = &BasicBlock{}
		f.Blocks[label] = b
	}
	return b
}

// At returns the directive at pos
func (f *Function) At(pos Pos) Directive {
	b, ok := f.Blocks[pos.Block]
	if !ok || pos.Index < 0 || pos.Index >= len(b.Directives) {
		errors.Invariant("no directive at %s in %s", pos, f.Symbol)
	}
	return b.Directives[pos.Index]
}

// Args returns the argument locals ordered by argument index
func (f *Function) Args() []*Local {
	var args []*Local
	for _, l := range f.Locals {
		if l.IsArg {
			args = append(args, l)
		}
	}
	slices.SortFunc(args, func(a, b *Local) int { return a.ArgIndex - b.ArgIndex })
	return args
}

// DirectiveCount returns the number of directives across all blocks
func (f *Function) DirectiveCount() int {
	n := 0
	for _, b := range f.Blocks {
		n += len(b.Directives)
	}
	return n
}

// Clone returns a deep copy of the function
func (f *Function) Clone() *Function {
	c := NewFunction(f.Symbol)
	for label, b := range f.Blocks {
		nb := &BasicBlock{Directives: make([]Directive, len(b.Directives))}
		for i, d := range b.Directives {
			nb.Directives[i] = Clone(d)
		}
		c.Blocks[label] = nb
	}
	for idx, l := range f.Locals {
		lc := *l
		c.Locals[idx] = &lc
	}
	return c
}

// Ended reports whether the block already holds its terminator
func (b *BasicBlock) Ended() bool {
	return len(b.Directives) > 0 && IsBlockEnd(b.Directives[len(b.Directives)-1])
}

// Terminator returns the block's final branch, or nil if it has none yet
func (b *BasicBlock) Terminator() Branch {
	if len(b.Directives) == 0 {
		return nil
	}
	br, _ := b.Directives[len(b.Directives)-1].(Branch)
	return br
}

// Append adds d to the end of the block. Appending past a terminator is
// an invariant violation.
func (b *BasicBlock) Append(d Directive) {
	if b.Ended() {
		errors.Invariant("append of %T to a block that already ended", d)
	}
	b.Directives = append(b.Directives, d)
}
