package ir

import "strings"

// This file implements the Effects() method for all directive kinds.
// Effects describe which state a directive observes or changes beyond
// the value it produces.

// Effect is a bit set of side effects
type Effect uint16

const (
	// EffectPure marks a directive that only computes its result
	EffectPure Effect = 0

	EffectLocalRead Effect = 1 << iota
	EffectLocalWrite
	EffectGlobalRead
	EffectGlobalWrite
	EffectPointerRead
	EffectPointerWrite
	EffectCall
	EffectControl
)

// observable effects can never be removed, whatever their use count
const observable = EffectGlobalWrite | EffectPointerWrite | EffectCall | EffectControl

// IsPure reports whether the directive can be recomputed or shared freely
func (e Effect) IsPure() bool {
	return e == EffectPure
}

// HasSideEffects reports whether removing the directive changes observable behavior
func (e Effect) HasSideEffects() bool {
	return e&observable != 0
}

// ReadsMemory reports whether the directive observes memory that calls or
// pointer stores may change
func (e Effect) ReadsMemory() bool {
	return e&(EffectGlobalRead|EffectPointerRead|EffectCall) != 0
}

func (e Effect) String() string {
	if e == EffectPure {
		return "pure"
	}
	names := []string{"local-read", "local-write", "global-read", "global-write", "pointer-read", "pointer-write", "call", "control"}
	var parts []string
	for i, name := range names {
		if e&(EffectLocalRead<<i) != 0 {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, "|")
}

func (NoOp) Effects() Effect { return EffectPure }

func (*Imm) Effects() Effect          { return EffectPure }
func (*Cast) Effects() Effect         { return EffectPure }
func (*Binop) Effects() Effect        { return EffectPure }
func (*Unop) Effects() Effect         { return EffectPure }
func (*Shift) Effects() Effect        { return EffectPure }
func (*Compare) Effects() Effect      { return EffectPure }
func (*AddToPointer) Effects() Effect { return EffectPure }

// Taking an address does not touch the slot itself
func (*LoadLocalAddr) Effects() Effect  { return EffectPure }
func (*LoadGlobalAddr) Effects() Effect { return EffectPure }

// Memory directives
func (*LoadLocal) Effects() Effect       { return EffectLocalRead }
func (*StoreLocal) Effects() Effect      { return EffectLocalWrite }
func (*LoadGlobal) Effects() Effect      { return EffectGlobalRead }
func (*StoreGlobal) Effects() Effect     { return EffectGlobalWrite }
func (*LoadFromPointer) Effects() Effect { return EffectPointerRead }
func (*StoreToPointer) Effects() Effect  { return EffectPointerWrite }

// Calls may read and write any memory reachable through escaped pointers
func (*Call) Effects() Effect {
	return EffectCall | EffectGlobalRead | EffectGlobalWrite | EffectPointerRead | EffectPointerWrite
}

func (*CallLabel) Effects() Effect {
	return EffectCall | EffectGlobalRead | EffectGlobalWrite | EffectPointerRead | EffectPointerWrite
}

// Terminators
func (*UnconditionalBranch) Effects() Effect { return EffectControl }
func (*BranchCompare) Effects() Effect       { return EffectControl }
func (*Select) Effects() Effect              { return EffectControl }
func (*Return) Effects() Effect              { return EffectControl }
