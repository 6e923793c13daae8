// Package deps computes the read-only dependency graphs the optimizer and
// the register allocator work from: a def/use graph over values, a
// write/read/alias graph over locals and the block graph.
package deps

import (
	"github.com/tliron/commonlog"

	"calyx/internal/errors"
	"calyx/internal/graph"
	"calyx/internal/ir"
)

var log = commonlog.GetLogger("calyx.deps")

// Var describes one IR value
type Var struct {
	Created      ir.Pos
	Deps         []ir.VarIndex
	IsCallResult bool
	// Reads lists every directive using the value, Returns included
	Reads []ir.Pos
	// Returns lists the Return directives yielding the value
	Returns []ir.Pos
	// Aliases is the local whose address the value holds, or 0. Pointers
	// derived with AddToPointer alias the local of their base.
	Aliases ir.VarIndex
}

// Local describes one stack slot
type Local struct {
	Writes    []ir.Pos
	Reads     []ir.Pos
	AliasedBy graph.Set[ir.VarIndex]
}

// Escaped reports whether the address of the local was ever taken
func (l *Local) Escaped() bool {
	return len(l.AliasedBy) > 0
}

// Function holds the dependency graphs of a single function
type Function struct {
	Symbol string
	Vars   map[ir.VarIndex]*Var
	Locals map[ir.VarIndex]*Local
	Blocks *graph.Graph[ir.BlockLabel, *ir.BasicBlock]
}

// AnalyzeProgram analyzes every function of p
func AnalyzeProgram(p *ir.Program) map[string]*Function {
	result := make(map[string]*Function, len(p.Functions))
	for _, name := range p.SortedFunctions() {
		result[name] = Analyze(p.Functions[name])
	}
	return result
}

// Analyze walks fn once and builds its graphs. Structural problems in fn
// (a value defined twice, an unknown local, a branch to a missing block)
// panic with an invariant violation.
func Analyze(fn *ir.Function) *Function {
	a := &analyzer{
		result: &Function{
			Symbol: fn.Symbol,
			Vars:   make(map[ir.VarIndex]*Var),
			Locals: make(map[ir.VarIndex]*Local, len(fn.Locals)),
			Blocks: graph.NewDirected[ir.BlockLabel, *ir.BasicBlock](),
		},
		fn: fn,
	}
	for idx := range fn.Locals {
		a.result.Locals[idx] = &Local{AliasedBy: make(graph.Set[ir.VarIndex])}
	}
	for _, label := range fn.SortedBlocks() {
		a.result.Blocks.AddNode(label, fn.Blocks[label])
	}
	for _, label := range fn.SortedBlocks() {
		for i, d := range fn.Blocks[label].Directives {
			a.pos = ir.Pos{Block: label, Index: i}
			a.emit(d)
		}
	}
	a.propagateAliases()

	log.Debugf("analyzed @%s: %d values, %d locals, %d blocks",
		fn.Symbol, len(a.result.Vars), len(a.result.Locals), a.result.Blocks.Len())
	return a.result
}

type analyzer struct {
	result *Function
	fn     *ir.Function
	pos    ir.Pos
	// derived pairs the result of every AddToPointer with its base pointer
	derived [][2]ir.VarIndex
}

func (a *analyzer) emit(d ir.Directive) {
	uses := ir.Uses(d)
	for _, u := range uses {
		a.read(u)
	}

	if v, ok := ir.Def(d); ok {
		a.define(v, uses)
	}

	switch d := d.(type) {
	case *ir.LoadLocal:
		a.local(d.Local).Reads = append(a.local(d.Local).Reads, a.pos)
	case *ir.LoadLocalAddr:
		l := a.local(d.Local)
		l.Reads = append(l.Reads, a.pos)
		l.AliasedBy.Add(d.Result)
		a.result.Vars[d.Result].Aliases = d.Local
	case *ir.StoreLocal:
		a.local(d.Local).Writes = append(a.local(d.Local).Writes, a.pos)
	case *ir.AddToPointer:
		if !d.Ptr.IsImm {
			a.derived = append(a.derived, [2]ir.VarIndex{d.Result, d.Ptr.Var})
		}
	case *ir.Call, *ir.CallLabel:
		if v, ok := ir.Def(d); ok {
			a.result.Vars[v].IsCallResult = true
		}
	case *ir.Return:
		if d.Type != ir.Void && !d.Value.IsImm {
			v := a.variable(d.Value.Var)
			v.Returns = append(v.Returns, a.pos)
		}
	}

	if br, ok := d.(ir.Branch); ok {
		for _, dest := range br.Destinations() {
			if !a.result.Blocks.Has(dest) {
				errors.Invariant("@%s: branch at %s to missing block L%d", a.fn.Symbol, a.pos, dest)
			}
			a.result.Blocks.AddEdge(a.pos.Block, dest)
		}
	}
}

// propagateAliases hands the aliased local of a base pointer down to the
// pointers derived from it. A base may be defined in a later block than
// its derivation, so this runs to a fixed point after the walk.
func (a *analyzer) propagateAliases() {
	for changed := true; changed; {
		changed = false
		for _, pair := range a.derived {
			derived, base := a.result.Vars[pair[0]], a.result.Vars[pair[1]]
			if base.Aliases == 0 || derived.Aliases != 0 {
				continue
			}
			derived.Aliases = base.Aliases
			a.result.Locals[base.Aliases].AliasedBy.Add(pair[0])
			changed = true
		}
	}
}

func (a *analyzer) define(v ir.VarIndex, uses []ir.VarIndex) {
	existing := a.variable(v)
	if existing.Created.Block != ir.InvalidBlock {
		errors.Invariant("@%s: value v%d defined at %s and again at %s", a.fn.Symbol, v, existing.Created, a.pos)
	}
	existing.Created = a.pos
	existing.Deps = append(existing.Deps, uses...)
}

func (a *analyzer) read(v ir.VarIndex) {
	rec := a.variable(v)
	rec.Reads = append(rec.Reads, a.pos)
}

// variable returns the record of v, creating it for reads that precede
// the definition in block order
func (a *analyzer) variable(v ir.VarIndex) *Var {
	rec, ok := a.result.Vars[v]
	if !ok {
		rec = &Var{}
		a.result.Vars[v] = rec
	}
	return rec
}

func (a *analyzer) local(idx ir.VarIndex) *Local {
	l, ok := a.result.Locals[idx]
	if !ok {
		errors.Invariant("@%s: access at %s to undeclared local c%d", a.fn.Symbol, a.pos, idx)
	}
	return l
}

// Uses returns the number of directives reading v
func (f *Function) Uses(v ir.VarIndex) int {
	if rec, ok := f.Vars[v]; ok {
		return len(rec.Reads)
	}
	return 0
}

// Defined reports whether v has a defining directive
func (f *Function) Defined(v ir.VarIndex) bool {
	rec, ok := f.Vars[v]
	return ok && rec.Created.Block != ir.InvalidBlock
}
