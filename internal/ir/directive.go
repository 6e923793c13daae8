package ir

import (
	"maps"
	"slices"
)

// Directive is one operation inside a basic block. The set of kinds is
// closed: every implementation lives in this file.
type Directive interface {
	Effects() Effect
	directive()
}

// Expr is a directive that produces a value
type Expr interface {
	Directive
	// Def returns the produced value, or 0 for a call returning void
	Def() VarIndex
	// ResultType is the register type of the produced value
	ResultType() Type
}

// Branch is a block-terminating directive
type Branch interface {
	Directive
	Destinations() []BlockLabel
}

type NoOp struct{}

// Imm materializes an immediate value
type Imm struct {
	Result VarIndex
	Value  Scalar
}

// Cast converts Value, read as From, to To
type Cast struct {
	Result VarIndex
	To     Type
	From   Type
	Value  Operand
}

type Binop struct {
	Result VarIndex
	Type   Type
	Op     BinaryOp
	Left   VarIndex
	Right  Operand
}

type Unop struct {
	Result VarIndex
	Type   Type
	Op     UnaryOp
	Value  Operand
}

// Shift shifts Left by Right bits. Right is always typed u32.
type Shift struct {
	Result VarIndex
	Type   Type
	Op     ShiftOp
	Left   Operand
	Right  Operand
}

// Compare yields an i32 that is 1 when the relation holds and 0 otherwise
type Compare struct {
	Result VarIndex
	Type   Type
	Op     CmpOp
	Left   VarIndex
	Right  Operand
}

// AddToPointer computes Ptr + Stride*Right, where Right is typed Type
type AddToPointer struct {
	Result VarIndex
	Type   Type
	Ptr    Operand
	Stride uint64
	Right  Operand
}

type LoadLocal struct {
	Result VarIndex
	Type   Type
	Local  VarIndex
	Offset uint64
}

type LoadLocalAddr struct {
	Result VarIndex
	Local  VarIndex
}

type StoreLocal struct {
	Type   Type
	Local  VarIndex
	Value  Operand
	Offset uint64
}

type LoadGlobal struct {
	Result VarIndex
	Type   Type
	Symbol string
	Offset uint64
}

type LoadGlobalAddr struct {
	Result VarIndex
	Symbol string
}

type StoreGlobal struct {
	Type   Type
	Symbol string
	Value  Operand
	Offset uint64
}

type LoadFromPointer struct {
	Result VarIndex
	Type   Type
	Ptr    VarIndex
	Offset uint64
}

type StoreToPointer struct {
	Type   Type
	Ptr    VarIndex
	Value  Operand
	Offset uint64
}

// Call calls through the function pointer held by Fn
type Call struct {
	Result  VarIndex
	Type    Type
	Fn      VarIndex
	Args    []VarIndex
	VarArgs []VarIndex
}

// CallLabel calls the function named Label directly
type CallLabel struct {
	Result  VarIndex
	Type    Type
	Label   string
	Args    []VarIndex
	VarArgs []VarIndex
}

type UnconditionalBranch struct {
	Dest BlockLabel
}

type BranchCompare struct {
	Type  Type
	Op    CmpOp
	Left  VarIndex
	Right Operand
	True  BlockLabel
	False BlockLabel
}

// Select jumps to Table[Value], or to Default when no case matches.
// A zero Default means there is no default destination.
type Select struct {
	Value   VarIndex
	Table   map[int64]BlockLabel
	Default BlockLabel
}

// Return leaves the function. Value is ignored when Type is Void.
type Return struct {
	Type  Type
	Value Operand
}

func (NoOp) directive()                 {}
func (*Imm) directive()                 {}
func (*Cast) directive()                {}
func (*Binop) directive()               {}
func (*Unop) directive()                {}
func (*Shift) directive()               {}
func (*Compare) directive()             {}
func (*AddToPointer) directive()        {}
func (*LoadLocal) directive()           {}
func (*LoadLocalAddr) directive()       {}
func (*StoreLocal) directive()          {}
func (*LoadGlobal) directive()          {}
func (*LoadGlobalAddr) directive()      {}
func (*StoreGlobal) directive()         {}
func (*LoadFromPointer) directive()     {}
func (*StoreToPointer) directive()      {}
func (*Call) directive()                {}
func (*CallLabel) directive()           {}
func (*UnconditionalBranch) directive() {}
func (*BranchCompare) directive()       {}
func (*Select) directive()              {}
func (*Return) directive()              {}

func (d *Imm) Def() VarIndex             { return d.Result }
func (d *Cast) Def() VarIndex            { return d.Result }
func (d *Binop) Def() VarIndex           { return d.Result }
func (d *Unop) Def() VarIndex            { return d.Result }
func (d *Shift) Def() VarIndex           { return d.Result }
func (d *Compare) Def() VarIndex         { return d.Result }
func (d *AddToPointer) Def() VarIndex    { return d.Result }
func (d *LoadLocal) Def() VarIndex       { return d.Result }
func (d *LoadLocalAddr) Def() VarIndex   { return d.Result }
func (d *LoadGlobal) Def() VarIndex      { return d.Result }
func (d *LoadGlobalAddr) Def() VarIndex  { return d.Result }
func (d *LoadFromPointer) Def() VarIndex { return d.Result }
func (d *Call) Def() VarIndex            { return d.Result }
func (d *CallLabel) Def() VarIndex       { return d.Result }

func (d *Imm) ResultType() Type             { return d.Value.Type }
func (d *Cast) ResultType() Type            { return d.To }
func (d *Binop) ResultType() Type           { return d.Type }
func (d *Unop) ResultType() Type            { return d.Type }
func (d *Shift) ResultType() Type           { return d.Type }
func (d *Compare) ResultType() Type         { return I32 }
func (d *AddToPointer) ResultType() Type    { return Pointer }
func (d *LoadLocal) ResultType() Type       { return d.Type.Upcast() }
func (d *LoadLocalAddr) ResultType() Type   { return Pointer }
func (d *LoadGlobal) ResultType() Type      { return d.Type.Upcast() }
func (d *LoadGlobalAddr) ResultType() Type  { return Pointer }
func (d *LoadFromPointer) ResultType() Type { return d.Type.Upcast() }
func (d *Call) ResultType() Type            { return d.Type }
func (d *CallLabel) ResultType() Type       { return d.Type }

func (d *UnconditionalBranch) Destinations() []BlockLabel {
	return []BlockLabel{d.Dest}
}

func (d *BranchCompare) Destinations() []BlockLabel {
	if d.True == d.False {
		return []BlockLabel{d.True}
	}
	return []BlockLabel{d.True, d.False}
}

// Destinations returns the distinct targets of the select in ascending order
func (d *Select) Destinations() []BlockLabel {
	seen := make(map[BlockLabel]struct{}, len(d.Table)+1)
	for _, dest := range d.Table {
		seen[dest] = struct{}{}
	}
	if d.Default != InvalidBlock {
		seen[d.Default] = struct{}{}
	}
	return slices.Sorted(maps.Keys(seen))
}

func (d *Return) Destinations() []BlockLabel { return nil }

// Def returns the value defined by d, if any
func Def(d Directive) (VarIndex, bool) {
	if e, ok := d.(Expr); ok && e.Def() != 0 {
		return e.Def(), true
	}
	return 0, false
}

// IsBlockEnd reports whether d terminates its block
func IsBlockEnd(d Directive) bool {
	_, ok := d.(Branch)
	return ok
}

// Uses returns the values read by d, in operand order. Duplicates are kept.
func Uses(d Directive) []VarIndex {
	var uses []VarIndex
	op := func(o Operand) {
		if !o.IsImm {
			uses = append(uses, o.Var)
		}
	}
	switch d := d.(type) {
	case NoOp, *Imm, *LoadLocal, *LoadLocalAddr, *LoadGlobal, *LoadGlobalAddr, *UnconditionalBranch:
	case *Cast:
		op(d.Value)
	case *Binop:
		uses = append(uses, d.Left)
		op(d.Right)
	case *Unop:
		op(d.Value)
	case *Shift:
		op(d.Left)
		op(d.Right)
	case *Compare:
		uses = append(uses, d.Left)
		op(d.Right)
	case *AddToPointer:
		op(d.Ptr)
		op(d.Right)
	case *StoreLocal:
		op(d.Value)
	case *StoreGlobal:
		op(d.Value)
	case *LoadFromPointer:
		uses = append(uses, d.Ptr)
	case *StoreToPointer:
		uses = append(uses, d.Ptr)
		op(d.Value)
	case *Call:
		uses = append(uses, d.Fn)
		uses = append(uses, d.Args...)
		uses = append(uses, d.VarArgs...)
	case *CallLabel:
		uses = append(uses, d.Args...)
		uses = append(uses, d.VarArgs...)
	case *BranchCompare:
		uses = append(uses, d.Left)
		op(d.Right)
	case *Select:
		uses = append(uses, d.Value)
	case *Return:
		if d.Type != Void {
			op(d.Value)
		}
	}
	return uses
}

// Clone returns a copy of d that shares no mutable state with it
func Clone(d Directive) Directive {
	switch d := d.(type) {
	case NoOp:
		return d
	case *Imm:
		c := *d
		return &c
	case *Cast:
		c := *d
		return &c
	case *Binop:
		c := *d
		return &c
	case *Unop:
		c := *d
		return &c
	case *Shift:
		c := *d
		return &c
	case *Compare:
		c := *d
		return &c
	case *AddToPointer:
		c := *d
		return &c
	case *LoadLocal:
		c := *d
		return &c
	case *LoadLocalAddr:
		c := *d
		return &c
	case *StoreLocal:
		c := *d
		return &c
	case *LoadGlobal:
		c := *d
		return &c
	case *LoadGlobalAddr:
		c := *d
		return &c
	case *StoreGlobal:
		c := *d
		return &c
	case *LoadFromPointer:
		c := *d
		return &c
	case *StoreToPointer:
		c := *d
		return &c
	case *Call:
		c := *d
		c.Args = slices.Clone(d.Args)
		c.VarArgs = slices.Clone(d.VarArgs)
		return &c
	case *CallLabel:
		c := *d
		c.Args = slices.Clone(d.Args)
		c.VarArgs = slices.Clone(d.VarArgs)
		return &c
	case *UnconditionalBranch:
		c := *d
		return &c
	case *BranchCompare:
		c := *d
		return &c
	case *Select:
		c := *d
		c.Table = maps.Clone(d.Table)
		return &c
	case *Return:
		c := *d
		return &c
	}
	panic("unreachable")
}
