package ir

import (
	"calyx/internal/errors"
)

// Builder constructs a Function directive by directive. It owns the
// monotonic id counters for values, locals and blocks of that function.
type Builder struct {
	fn        *Function
	current   BlockLabel
	nextVar   VarIndex
	nextLocal VarIndex
	nextBlock BlockLabel
}

// NewBuilder creates a function with an empty entry block selected for appends
func NewBuilder(symbol string) *Builder {
	b := &Builder{
		fn:        NewFunction(symbol),
		nextVar:   1,
		nextLocal: 1,
		nextBlock: EntryBlock,
	}
	b.SelectBlock(b.NewBlock())
	return b
}

// Function returns the function under construction
func (b *Builder) Function() *Function {
	return b.fn
}

// Current returns the label of the block receiving directives
func (b *Builder) Current() BlockLabel {
	return b.current
}

// NewBlock allocates an empty block without selecting it
func (b *Builder) NewBlock() BlockLabel {
	label := b.nextBlock
	b.nextBlock++
	b.fn.Block(label)
	return label
}

// SelectBlock directs further directives to label, which must still be empty
func (b *Builder) SelectBlock(label BlockLabel) {
	block, ok := b.fn.Blocks[label]
	if !ok {
		errors.Invariant("select of unknown block L%d", label)
	}
	if len(block.Directives) > 0 {
		errors.Invariant("block L%d selected for appends is not empty", label)
	}
	b.current = label
}

// Local declares a stack slot
func (b *Builder) Local(t Type, size uint64) VarIndex {
	idx := b.nextLocal
	b.nextLocal++
	if size == 0 {
		size = t.Size()
	}
	b.fn.Locals[idx] = &Local{Index: idx, Type: t, Size: size}
	return idx
}

// ArgLocal declares a stack slot holding argument number arg on entry
func (b *Builder) ArgLocal(t Type, size uint64, arg int) VarIndex {
	idx := b.Local(t, size)
	b.fn.Locals[idx].IsArg = true
	b.fn.Locals[idx].ArgIndex = arg
	return idx
}

func (b *Builder) emit(d Directive) {
	b.fn.Block(b.current).Append(d)
}

func (b *Builder) newVar() VarIndex {
	v := b.nextVar
	b.nextVar++
	return v
}

func (b *Builder) Imm(value Scalar) VarIndex {
	v := b.newVar()
	b.emit(&Imm{Result: v, Value: value})
	return v
}

func (b *Builder) Cast(to, from Type, value Operand) VarIndex {
	v := b.newVar()
	b.emit(&Cast{Result: v, To: to, From: from, Value: value})
	return v
}

func (b *Builder) Binop(op BinaryOp, t Type, left VarIndex, right Operand) VarIndex {
	v := b.newVar()
	b.emit(&Binop{Result: v, Type: t, Op: op, Left: left, Right: right})
	return v
}

func (b *Builder) Unop(op UnaryOp, t Type, value Operand) VarIndex {
	v := b.newVar()
	b.emit(&Unop{Result: v, Type: t, Op: op, Value: value})
	return v
}

func (b *Builder) Shift(op ShiftOp, t Type, left, right Operand) VarIndex {
	v := b.newVar()
	b.emit(&Shift{Result: v, Type: t, Op: op, Left: left, Right: right})
	return v
}

func (b *Builder) Compare(op CmpOp, t Type, left VarIndex, right Operand) VarIndex {
	v := b.newVar()
	b.emit(&Compare{Result: v, Type: t, Op: op, Left: left, Right: right})
	return v
}

func (b *Builder) AddToPointer(ptr Operand, stride uint64, t Type, right Operand) VarIndex {
	v := b.newVar()
	b.emit(&AddToPointer{Result: v, Type: t, Ptr: ptr, Stride: stride, Right: right})
	return v
}

func (b *Builder) LoadLocal(t Type, local VarIndex, offset uint64) VarIndex {
	v := b.newVar()
	b.emit(&LoadLocal{Result: v, Type: t, Local: local, Offset: offset})
	return v
}

func (b *Builder) LoadLocalAddr(local VarIndex) VarIndex {
	v := b.newVar()
	b.emit(&LoadLocalAddr{Result: v, Local: local})
	return v
}

func (b *Builder) StoreLocal(t Type, local VarIndex, value Operand, offset uint64) {
	b.emit(&StoreLocal{Type: t, Local: local, Value: value, Offset: offset})
}

func (b *Builder) LoadGlobal(t Type, symbol string, offset uint64) VarIndex {
	v := b.newVar()
	b.emit(&LoadGlobal{Result: v, Type: t, Symbol: symbol, Offset: offset})
	return v
}

func (b *Builder) LoadGlobalAddr(symbol string) VarIndex {
	v := b.newVar()
	b.emit(&LoadGlobalAddr{Result: v, Symbol: symbol})
	return v
}

func (b *Builder) StoreGlobal(t Type, symbol string, value Operand, offset uint64) {
	b.emit(&StoreGlobal{Type: t, Symbol: symbol, Value: value, Offset: offset})
}

func (b *Builder) LoadFromPointer(t Type, ptr VarIndex, offset uint64) VarIndex {
	v := b.newVar()
	b.emit(&LoadFromPointer{Result: v, Type: t, Ptr: ptr, Offset: offset})
	return v
}

func (b *Builder) StoreToPointer(t Type, ptr VarIndex, value Operand, offset uint64) {
	b.emit(&StoreToPointer{Type: t, Ptr: ptr, Value: value, Offset: offset})
}

// Call emits an indirect call. The result is 0 when t is Void.
func (b *Builder) Call(t Type, fn VarIndex, args, varArgs []VarIndex) VarIndex {
	var v VarIndex
	if t != Void {
		v = b.newVar()
	}
	b.emit(&Call{Result: v, Type: t, Fn: fn, Args: args, VarArgs: varArgs})
	return v
}

// CallLabel emits a direct call. The result is 0 when t is Void.
func (b *Builder) CallLabel(t Type, label string, args, varArgs []VarIndex) VarIndex {
	var v VarIndex
	if t != Void {
		v = b.newVar()
	}
	b.emit(&CallLabel{Result: v, Type: t, Label: label, Args: args, VarArgs: varArgs})
	return v
}

func (b *Builder) Branch(dest BlockLabel) {
	b.emit(&UnconditionalBranch{Dest: dest})
}

func (b *Builder) BranchCompare(op CmpOp, t Type, left VarIndex, right Operand, ifTrue, ifFalse BlockLabel) {
	b.emit(&BranchCompare{Type: t, Op: op, Left: left, Right: right, True: ifTrue, False: ifFalse})
}

func (b *Builder) Select(value VarIndex, table map[int64]BlockLabel, def BlockLabel) {
	b.emit(&Select{Value: value, Table: table, Default: def})
}

func (b *Builder) Return(t Type, value Operand) {
	b.emit(&Return{Type: t, Value: value})
}

func (b *Builder) ReturnVoid() {
	b.emit(&Return{Type: Void})
}
