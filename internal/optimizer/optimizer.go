// Package optimizer implements the local optimization pass, the dead code
// eliminator and the pipeline driving both to a fixed point.
package optimizer

import (
	"fmt"
	"maps"
	"slices"

	"github.com/tliron/commonlog"

	"calyx/internal/deps"
	"calyx/internal/errors"
	"calyx/internal/graph"
	"calyx/internal/ir"
)

var log = commonlog.GetLogger("calyx.optimizer")

// Stats counts the rewrites performed by the passes
type Stats struct {
	Replacements   int
	Folds          int
	ElidedLoads    int
	ElidedStores   int
	LinkedBlocks   int
	FoldedBranches int
	RemovedBlocks  int
	// Removed counts the directives and locals dropped by RemoveUnused
	Removed int
}

// Changed reports whether any rewrite happened
func (s Stats) Changed() bool {
	return s != Stats{}
}

// Add accumulates o into s
func (s *Stats) Add(o Stats) {
	s.Replacements += o.Replacements
	s.Folds += o.Folds
	s.ElidedLoads += o.ElidedLoads
	s.ElidedStores += o.ElidedStores
	s.LinkedBlocks += o.LinkedBlocks
	s.FoldedBranches += o.FoldedBranches
	s.RemovedBlocks += o.RemovedBlocks
	s.Removed += o.Removed
}

func (s Stats) String() string {
	return fmt.Sprintf("%d replaced, %d folded, %d loads and %d stores elided, %d blocks linked, %d branches folded, %d blocks removed, %d dead",
		s.Replacements, s.Folds, s.ElidedLoads, s.ElidedStores, s.LinkedBlocks, s.FoldedBranches, s.RemovedBlocks, s.Removed)
}

// localState is what the optimizer knows about a local at the current point
type localState struct {
	value ir.Operand
	known bool
	// exact is false while value still needs truncating to the local's type
	exact bool
	// pending marks a store of value that has not been emitted yet
	pending bool
}

type candidate struct {
	result ir.VarIndex
	block  ir.BlockLabel
}

type optimizer struct {
	old    *ir.Function
	deps   *deps.Function
	blocks *graph.Graph[ir.BlockLabel, *ir.BasicBlock]
	fn     *ir.Function
	stats  Stats

	replacement map[ir.VarIndex]ir.VarIndex
	defs        map[ir.VarIndex]ir.Expr
	exprs       map[string][]candidate
	locals      map[ir.VarIndex]*localState
	finals      map[ir.BlockLabel]map[ir.VarIndex]localState
	visited     graph.Set[ir.BlockLabel]
	linked      graph.Set[ir.BlockLabel]

	// block is the new block being filled, oldBlock the old block being scanned
	block    *ir.BasicBlock
	oldBlock ir.BlockLabel
}

// OptimizeFunction builds an optimized copy of fn. fn is not modified.
// Malformed input panics with an invariant violation; callers that need
// an error use errors.Recover.
func OptimizeFunction(fn *ir.Function) (*ir.Function, Stats) {
	if _, ok := fn.Blocks[ir.EntryBlock]; !ok {
		errors.Invariant("@%s has no entry block", fn.Symbol)
	}

	d := deps.Analyze(fn)
	o := &optimizer{
		old:         fn,
		deps:        d,
		blocks:      d.Blocks,
		fn:          ir.NewFunction(fn.Symbol),
		replacement: make(map[ir.VarIndex]ir.VarIndex),
		defs:        make(map[ir.VarIndex]ir.Expr),
		exprs:       make(map[string][]candidate),
		finals:      make(map[ir.BlockLabel]map[ir.VarIndex]localState),
		visited:     make(graph.Set[ir.BlockLabel]),
		linked:      make(graph.Set[ir.BlockLabel]),
	}
	o.run()

	log.Debugf("optimized @%s: %s", fn.Symbol, o.stats)
	return o.fn, o.stats
}

func (o *optimizer) run() {
	order := slices.DeleteFunc(o.blocks.TopSort(), func(l ir.BlockLabel) bool { return l == ir.EntryBlock })
	order = append([]ir.BlockLabel{ir.EntryBlock}, order...)

	for _, label := range order {
		if o.visited.Has(label) {
			continue
		}
		if label != ir.EntryBlock && o.blocks.InCount(label) == 0 {
			o.visited.Add(label)
			o.cascade(label)
			o.stats.RemovedBlocks++
			continue
		}
		o.emitChain(label)
	}

	o.prune()
	for idx, l := range o.old.Locals {
		lc := *l
		o.fn.Locals[idx] = &lc
	}
}

// emitChain fills the new block label, following linked blocks until a
// block ends in an emitted terminator
func (o *optimizer) emitChain(label ir.BlockLabel) {
	o.enter(label)
	o.block = o.fn.Block(label)
	for next := label; next != ir.InvalidBlock; {
		o.visited.Add(next)
		o.oldBlock = next
		next = o.emitBlock(next)
	}
	o.finals[o.oldBlock] = o.snapshot()
}

func (o *optimizer) emitBlock(label ir.BlockLabel) ir.BlockLabel {
	directives := o.old.Blocks[label].Directives
	for i, d := range directives {
		if ir.IsBlockEnd(d) && i != len(directives)-1 {
			errors.Invariant("@%s: terminator at L%d:%d is not the last directive", o.old.Symbol, label, i)
		}
		if next := o.emit(d); next != ir.InvalidBlock {
			return next
		}
	}
	if !o.block.Ended() {
		errors.Invariant("@%s: block L%d does not end in a branch or return", o.old.Symbol, label)
	}
	return ir.InvalidBlock
}

// emit rewrites one old directive into the new block. It returns the
// label of the block to continue with when the directive was a branch
// that got linked.
func (o *optimizer) emit(d ir.Directive) ir.BlockLabel {
	switch d := d.(type) {
	case ir.NoOp:
	case *ir.Imm:
		o.expr(&ir.Imm{Result: d.Result, Value: d.Value})
	case *ir.Cast:
		o.cast(d.Result, d.To, d.From, o.operand(d.Value))
	case *ir.Binop:
		o.binop(d.Result, d.Type, d.Op, o.resolve(d.Left), o.operand(d.Right))
	case *ir.Unop:
		o.unop(d)
	case *ir.Shift:
		o.shift(d)
	case *ir.Compare:
		o.compare(d)
	case *ir.AddToPointer:
		o.addToPointer(d)
	case *ir.LoadLocal:
		o.loadLocal(d.Result, d.Type, d.Local, d.Offset)
	case *ir.LoadLocalAddr:
		o.expr(&ir.LoadLocalAddr{Result: d.Result, Local: d.Local})
	case *ir.StoreLocal:
		o.storeLocal(d.Type, d.Local, o.operand(d.Value), d.Offset)
	case *ir.LoadGlobal:
		o.value(&ir.LoadGlobal{Result: d.Result, Type: d.Type, Symbol: d.Symbol, Offset: d.Offset})
	case *ir.LoadGlobalAddr:
		o.expr(&ir.LoadGlobalAddr{Result: d.Result, Symbol: d.Symbol})
	case *ir.StoreGlobal:
		o.append(&ir.StoreGlobal{Type: d.Type, Symbol: d.Symbol, Value: o.operand(d.Value), Offset: d.Offset})
	case *ir.LoadFromPointer:
		o.loadFromPointer(d)
	case *ir.StoreToPointer:
		o.storeToPointer(d)
	case *ir.Call:
		o.call(d)
	case *ir.CallLabel:
		o.callLabel(d.Result, d.Type, d.Label, o.vars(d.Args), o.vars(d.VarArgs))
	case *ir.UnconditionalBranch:
		return o.jump(d.Dest)
	case *ir.BranchCompare:
		return o.branchCompare(d)
	case *ir.Select:
		return o.selectBranch(d)
	case *ir.Return:
		o.ret(d)
	default:
		errors.Invariant("@%s: unknown directive %T", o.old.Symbol, d)
	}
	return ir.InvalidBlock
}

func (o *optimizer) append(d ir.Directive) {
	o.block.Append(d)
}

// value appends a directive defining a value that may not be merged with
// others
func (o *optimizer) value(e ir.Expr) {
	if e.Def() != 0 {
		o.defs[e.Def()] = e
	}
	o.append(e)
}

func (o *optimizer) replace(v, with ir.VarIndex) {
	if v == with {
		errors.Invariant("@%s: v%d replaced by itself", o.old.Symbol, v)
	}
	o.replacement[v] = with
	o.stats.Replacements++
}

// resolve follows the replacement chain of v
func (o *optimizer) resolve(v ir.VarIndex) ir.VarIndex {
	for {
		next, ok := o.replacement[v]
		if !ok {
			return v
		}
		v = next
	}
}

func (o *optimizer) vars(vs []ir.VarIndex) []ir.VarIndex {
	if vs == nil {
		return nil
	}
	out := make([]ir.VarIndex, len(vs))
	for i, v := range vs {
		out[i] = o.resolve(v)
	}
	return out
}

// operand resolves op and substitutes values known to be immediates
func (o *optimizer) operand(op ir.Operand) ir.Operand {
	if op.IsImm {
		return op
	}
	v := o.resolve(op.Var)
	if s, ok := o.immOf(v); ok {
		o.stats.Replacements++
		return ir.ImmOperand(s)
	}
	return ir.VarOperand(v)
}

// immOf returns the immediate a value is defined by in the new function
func (o *optimizer) immOf(v ir.VarIndex) (ir.Scalar, bool) {
	if imm, ok := o.defs[v].(*ir.Imm); ok {
		return imm.Value, true
	}
	return ir.Scalar{}, false
}

// enter sets up the local state at the start of a block: a local is known
// only when every predecessor ended with the same known value
func (o *optimizer) enter(label ir.BlockLabel) {
	o.locals = make(map[ir.VarIndex]*localState)
	preds := o.blocks.Predecessors(label)
	if label == ir.EntryBlock || len(preds) == 0 {
		return
	}
	first, ok := o.finals[preds[0]]
	if !ok {
		return
	}
	for c, st := range first {
		agreed := true
		for _, p := range preds[1:] {
			if f, ok := o.finals[p]; !ok || f[c] != st {
				agreed = false
				break
			}
		}
		if agreed {
			o.locals[c] = &localState{value: st.value, known: true, exact: st.exact}
		}
	}
}

func (o *optimizer) snapshot() map[ir.VarIndex]localState {
	final := make(map[ir.VarIndex]localState, len(o.locals))
	for c, st := range o.locals {
		if st.known {
			final[c] = localState{value: st.value, known: true, exact: st.exact}
		}
	}
	return final
}

// cascade drops the outgoing edges of a block that lost all predecessors,
// and recursively those of its successors
func (o *optimizer) cascade(label ir.BlockLabel) {
	if label == ir.EntryBlock || o.blocks.InCount(label) > 0 {
		return
	}
	for _, succ := range o.blocks.Edges(label) {
		o.blocks.RemoveEdge(label, succ)
		o.cascade(succ)
	}
}

// setSuccessors makes dests the only successors of the block being scanned
func (o *optimizer) setSuccessors(dests ...ir.BlockLabel) {
	keep := make(graph.Set[ir.BlockLabel], len(dests))
	for _, dest := range dests {
		keep.Add(dest)
		o.blocks.AddEdge(o.oldBlock, dest)
	}
	for _, succ := range o.blocks.Edges(o.oldBlock) {
		if !keep.Has(succ) {
			o.blocks.RemoveEdge(o.oldBlock, succ)
			o.cascade(succ)
		}
	}
}

// forward bypasses blocks that consist of a single jump
func (o *optimizer) forward(dest ir.BlockLabel) ir.BlockLabel {
	orig := dest
	seen := make(graph.Set[ir.BlockLabel])
	for dest != ir.EntryBlock && !seen.Has(dest) {
		seen.Add(dest)
		directives := o.old.Blocks[dest].Directives
		if len(directives) != 1 {
			break
		}
		br, ok := directives[0].(*ir.UnconditionalBranch)
		if !ok || o.linked.Has(br.Dest) {
			break
		}
		dest = br.Dest
	}
	if dest != orig {
		o.stats.FoldedBranches++
	}
	return dest
}

func (o *optimizer) canLink(dest ir.BlockLabel) bool {
	if dest == ir.EntryBlock || o.visited.Has(dest) {
		return false
	}
	preds := o.blocks.Predecessors(dest)
	return len(preds) == 1 && preds[0] == o.oldBlock
}

func (o *optimizer) jump(dest ir.BlockLabel) ir.BlockLabel {
	dest = o.forward(dest)
	o.setSuccessors(dest)
	if o.canLink(dest) {
		o.stats.LinkedBlocks++
		o.linked.Add(dest)
		return dest
	}
	o.flushOnBranch()
	o.append(&ir.UnconditionalBranch{Dest: dest})
	return ir.InvalidBlock
}

func (o *optimizer) foldBranch(dest ir.BlockLabel) ir.BlockLabel {
	o.stats.FoldedBranches++
	return o.jump(dest)
}

func (o *optimizer) branchCompare(d *ir.BranchCompare) ir.BlockLabel {
	left, right, op := o.resolve(d.Left), o.operand(d.Right), d.Op
	if l, ok := o.immOf(left); ok {
		if right.IsImm {
			if ir.EvalCompare(op, d.Type, l, right.Value) {
				return o.foldBranch(d.True)
			}
			return o.foldBranch(d.False)
		}
		left, right, op = right.Var, ir.ImmOperand(l), op.Flip()
		o.stats.Folds++
	}
	left, right = o.mergeXor(op, d.Type, left, right)

	ifTrue, ifFalse := o.forward(d.True), o.forward(d.False)
	if ifTrue == ifFalse {
		return o.foldBranch(ifTrue)
	}
	o.setSuccessors(ifTrue, ifFalse)
	o.flushOnBranch()
	o.append(&ir.BranchCompare{Type: d.Type, Op: op, Left: left, Right: right, True: ifTrue, False: ifFalse})
	return ir.InvalidBlock
}

func (o *optimizer) selectBranch(d *ir.Select) ir.BlockLabel {
	value := o.resolve(d.Value)
	if s, ok := o.immOf(value); ok {
		dest, found := d.Table[s.Int]
		if !found {
			dest = d.Default
		}
		if dest == ir.InvalidBlock {
			errors.Invariant("@%s: select on constant %s matches no case and has no default", o.old.Symbol, s)
		}
		return o.foldBranch(dest)
	}

	sel := &ir.Select{Value: value, Table: make(map[int64]ir.BlockLabel, len(d.Table))}
	for _, k := range slices.Sorted(maps.Keys(d.Table)) {
		sel.Table[k] = o.forward(d.Table[k])
	}
	if d.Default != ir.InvalidBlock {
		sel.Default = o.forward(d.Default)
	}
	o.setSuccessors(sel.Destinations()...)
	o.flushOnBranch()
	o.append(sel)
	return ir.InvalidBlock
}

func (o *optimizer) ret(d *ir.Return) {
	for _, c := range slices.Sorted(maps.Keys(o.locals)) {
		if st := o.locals[c]; st.pending {
			st.pending = false
			o.stats.ElidedStores++
		}
	}
	r := &ir.Return{Type: d.Type}
	if d.Type != ir.Void {
		r.Value = d.Value
		if !d.Value.IsImm {
			r.Value = ir.VarOperand(o.resolve(d.Value.Var))
		}
	}
	o.append(r)
}

// prune removes new blocks that cannot be reached from the entry
func (o *optimizer) prune() {
	g := graph.NewDirected[ir.BlockLabel, struct{}]()
	for label := range o.fn.Blocks {
		g.AddNode(label, struct{}{})
	}
	for _, label := range o.fn.SortedBlocks() {
		for _, dest := range o.fn.Blocks[label].Terminator().Destinations() {
			if !g.Has(dest) {
				errors.Invariant("@%s: L%d branches to L%d which was never emitted", o.old.Symbol, label, dest)
			}
			g.AddEdge(label, dest)
		}
	}

	live := g.ReachableSet(ir.EntryBlock)
	for _, label := range o.fn.SortedBlocks() {
		if !live.Has(label) {
			delete(o.fn.Blocks, label)
			o.stats.RemovedBlocks++
		}
	}
}
