package optimizer

import (
	"maps"
	"slices"

	"calyx/internal/errors"
	"calyx/internal/graph"
	"calyx/internal/ir"
)

func (o *optimizer) localInfo(c ir.VarIndex) *ir.Local {
	l, ok := o.old.Locals[c]
	if !ok {
		errors.Invariant("@%s: access to undeclared local c%d", o.old.Symbol, c)
	}
	return l
}

func (o *optimizer) state(c ir.VarIndex) *localState {
	st, ok := o.locals[c]
	if !ok {
		st = &localState{}
		o.locals[c] = st
	}
	return st
}

// promotable reports whether an access covers the whole local with its
// own type, so that its value can be tracked in a register
func promotable(l *ir.Local, t ir.Type, offset uint64) bool {
	return offset == 0 && t == l.Type && t != ir.Struct
}

func (o *optimizer) loadLocal(result ir.VarIndex, t ir.Type, c ir.VarIndex, offset uint64) {
	l := o.localInfo(c)
	if !promotable(l, t, offset) {
		o.flushLocal(c)
		o.value(&ir.LoadLocal{Result: result, Type: t, Local: c, Offset: offset})
		return
	}

	st := o.state(c)
	if !st.known {
		o.value(&ir.LoadLocal{Result: result, Type: t, Local: c})
		st.value, st.known, st.exact = ir.VarOperand(result), true, true
		return
	}

	o.stats.ElidedLoads++
	switch {
	case st.value.IsImm:
		o.expr(&ir.Imm{Result: result, Value: ir.Convert(st.value.Value, t.Upcast())})
	case st.exact || !t.IsSmall():
		o.replace(result, st.value.Var)
	default:
		// the stored value still carries the bits the local truncates
		o.cast(result, t.Upcast(), t, st.value)
		st.value, st.exact = ir.VarOperand(o.resolve(result)), true
	}
}

func (o *optimizer) storeLocal(t ir.Type, c ir.VarIndex, value ir.Operand, offset uint64) {
	l := o.localInfo(c)
	st := o.state(c)
	if !promotable(l, t, offset) {
		o.flushLocal(c)
		o.append(&ir.StoreLocal{Type: t, Local: c, Value: value, Offset: offset})
		st.known = false
		return
	}

	if st.pending {
		o.stats.ElidedStores++
	}
	if value.IsImm {
		value = ir.ImmOperand(ir.Convert(value.Value, t))
	}
	st.value, st.known, st.pending = value, true, true
	st.exact = value.IsImm || !t.IsSmall()
}

// flushLocal emits the deferred store of c, if there is one
func (o *optimizer) flushLocal(c ir.VarIndex) {
	st, ok := o.locals[c]
	if !ok || !st.pending {
		return
	}
	st.pending = false
	o.append(&ir.StoreLocal{Type: o.localInfo(c).Type, Local: c, Value: st.value})
}

// flushAliased emits the deferred stores of every local whose address
// was taken, before memory is accessed through an unknown pointer
func (o *optimizer) flushAliased() {
	for _, c := range slices.Sorted(maps.Keys(o.locals)) {
		if o.deps.Locals[c].Escaped() {
			o.flushLocal(c)
		}
	}
}

// forgetAliased drops the known values of escaped locals after an
// operation that may have written them
func (o *optimizer) forgetAliased() {
	for c, st := range o.locals {
		if o.deps.Locals[c].Escaped() {
			st.known = false
		}
	}
}

// flushOnBranch decides, for every deferred store, whether some path
// leaving the current block may observe it
func (o *optimizer) flushOnBranch() {
	for _, c := range slices.Sorted(maps.Keys(o.locals)) {
		st := o.locals[c]
		if !st.pending {
			continue
		}
		if o.shouldFlush(c) {
			o.flushLocal(c)
		} else {
			st.pending = false
			o.stats.ElidedStores++
		}
	}
}

type pathEvent int

const (
	eventNone pathEvent = iota
	eventObserved
	eventOverwritten
)

// shouldFlush searches every path leaving the current block in the old
// function. A deferred store to c must be emitted when some path reads c
// (or, for an escaped local, touches memory through a pointer or calls)
// before c is fully overwritten or the function returns.
func (o *optimizer) shouldFlush(c ir.VarIndex) bool {
	escaped := o.deps.Locals[c].Escaped()
	seen := make(graph.Set[ir.BlockLabel])
	stack := o.blocks.Edges(o.oldBlock)
	for len(stack) > 0 {
		label := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen.Has(label) {
			continue
		}
		seen.Add(label)

		switch o.scan(label, c, escaped) {
		case eventObserved:
			return true
		case eventNone:
			stack = append(stack, o.blocks.Edges(label)...)
		}
	}
	return false
}

func (o *optimizer) scan(label ir.BlockLabel, c ir.VarIndex, escaped bool) pathEvent {
	l := o.localInfo(c)
	for _, d := range o.old.Blocks[label].Directives {
		switch d := d.(type) {
		case *ir.LoadLocal:
			if d.Local == c {
				return eventObserved
			}
		case *ir.StoreLocal:
			if d.Local == c {
				if promotable(l, d.Type, d.Offset) {
					return eventOverwritten
				}
				return eventObserved
			}
		case *ir.LoadFromPointer, *ir.StoreToPointer, *ir.Call, *ir.CallLabel:
			if escaped {
				return eventObserved
			}
		case *ir.Return:
			return eventOverwritten
		}
	}
	return eventNone
}

func (o *optimizer) loadFromPointer(d *ir.LoadFromPointer) {
	ptr := o.resolve(d.Ptr)
	if addr, ok := o.defs[ptr].(*ir.LoadLocalAddr); ok {
		o.stats.Folds++
		o.loadLocal(d.Result, d.Type, addr.Local, d.Offset)
		return
	}
	o.flushAliased()
	o.value(&ir.LoadFromPointer{Result: d.Result, Type: d.Type, Ptr: ptr, Offset: d.Offset})
}

func (o *optimizer) storeToPointer(d *ir.StoreToPointer) {
	ptr, value := o.resolve(d.Ptr), o.operand(d.Value)
	if addr, ok := o.defs[ptr].(*ir.LoadLocalAddr); ok {
		o.stats.Folds++
		o.storeLocal(d.Type, addr.Local, value, d.Offset)
		return
	}
	o.flushAliased()
	o.append(&ir.StoreToPointer{Type: d.Type, Ptr: ptr, Value: value, Offset: d.Offset})
	o.forgetAliased()
}

func (o *optimizer) call(d *ir.Call) {
	fn, args, varArgs := o.resolve(d.Fn), o.vars(d.Args), o.vars(d.VarArgs)
	if g, ok := o.defs[fn].(*ir.LoadGlobalAddr); ok {
		o.stats.Folds++
		o.callLabel(d.Result, d.Type, g.Symbol, args, varArgs)
		return
	}
	o.flushAliased()
	o.value(&ir.Call{Result: d.Result, Type: d.Type, Fn: fn, Args: args, VarArgs: varArgs})
	o.forgetAliased()
}

func (o *optimizer) callLabel(result ir.VarIndex, t ir.Type, label string, args, varArgs []ir.VarIndex) {
	o.flushAliased()
	o.value(&ir.CallLabel{Result: result, Type: t, Label: label, Args: args, VarArgs: varArgs})
	o.forgetAliased()
}
