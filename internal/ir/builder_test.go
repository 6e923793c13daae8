package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calyx/internal/errors"
)

// buildSum builds int f(){ int a=1; int b=2; int c=a+b; return c; }
func buildSum() *Function {
	b := NewBuilder("f")
	a := b.Local(I32, 4)
	bl := b.Local(I32, 4)
	c := b.Local(I32, 4)

	one := b.Imm(IntScalar(I32, 1))
	b.StoreLocal(I32, a, VarOperand(one), 0)
	two := b.Imm(IntScalar(I32, 2))
	b.StoreLocal(I32, bl, VarOperand(two), 0)
	la := b.LoadLocal(I32, a, 0)
	lb := b.LoadLocal(I32, bl, 0)
	sum := b.Binop(Add, I32, la, VarOperand(lb))
	b.StoreLocal(I32, c, VarOperand(sum), 0)
	lc := b.LoadLocal(I32, c, 0)
	b.Return(I32, VarOperand(lc))
	return b.Function()
}

func TestBuilderCounters(t *testing.T) {
	fn := buildSum()

	require.Len(t, fn.Blocks, 1)
	require.Contains(t, fn.Blocks, EntryBlock)
	assert.Len(t, fn.Locals, 3)
	assert.Equal(t, 10, fn.DirectiveCount())

	ret, ok := fn.Blocks[EntryBlock].Terminator().(*Return)
	require.True(t, ok)
	assert.Equal(t, VarOperand(6), ret.Value)
}

func TestBuilderSelectBlockMustBeEmpty(t *testing.T) {
	b := NewBuilder("g")
	next := b.NewBlock()
	b.Branch(next)

	var err error
	func() {
		defer errors.Recover(&err)
		b.SelectBlock(EntryBlock)
	}()
	require.Error(t, err)
	assert.True(t, errors.IsInvariantViolation(err))

	b.SelectBlock(next)
	b.ReturnVoid()
	assert.Equal(t, next, b.Current())
}

func TestAppendAfterTerminator(t *testing.T) {
	b := NewBuilder("h")
	b.ReturnVoid()

	var err error
	func() {
		defer errors.Recover(&err)
		b.Imm(IntScalar(I32, 1))
	}()
	assert.True(t, errors.IsInvariantViolation(err))
}

func TestArgLocals(t *testing.T) {
	b := NewBuilder("k")
	second := b.ArgLocal(I64, 0, 1)
	first := b.ArgLocal(I32, 0, 0)
	b.Local(Double, 0)

	args := b.Function().Args()
	require.Len(t, args, 2)
	assert.Equal(t, first, args[0].Index)
	assert.Equal(t, second, args[1].Index)
	assert.Equal(t, uint64(8), args[1].Size)
}

func TestUsesAndDestinations(t *testing.T) {
	call := &Call{Result: 9, Type: I32, Fn: 1, Args: []VarIndex{2, 3}, VarArgs: []VarIndex{4}}
	assert.Equal(t, []VarIndex{1, 2, 3, 4}, Uses(call))

	store := &StoreToPointer{Type: I32, Ptr: 5, Value: ImmOperand(IntScalar(I32, 0))}
	assert.Equal(t, []VarIndex{5}, Uses(store))

	ret := &Return{Type: Void, Value: VarOperand(3)}
	assert.Empty(t, Uses(ret))

	sel := &Select{Value: 1, Table: map[int64]BlockLabel{0: 4, 1: 2, 2: 4}, Default: 3}
	assert.Equal(t, []BlockLabel{2, 3, 4}, sel.Destinations())
	assert.True(t, IsBlockEnd(sel))
	assert.False(t, IsBlockEnd(store))

	br := &BranchCompare{True: 2, False: 2}
	assert.Equal(t, []BlockLabel{2}, br.Destinations())
}

func TestCloneIsDeep(t *testing.T) {
	sel := &Select{Value: 1, Table: map[int64]BlockLabel{0: 2}}
	c := Clone(sel).(*Select)
	c.Table[1] = 3
	assert.Len(t, sel.Table, 1)

	fn := buildSum()
	cp := fn.Clone()
	cp.Blocks[EntryBlock].Directives[0].(*Imm).Value = IntScalar(I32, 42)
	assert.Equal(t, int64(1), fn.Blocks[EntryBlock].Directives[0].(*Imm).Value.Int)
}

func TestEffects(t *testing.T) {
	assert.True(t, (&Binop{}).Effects().IsPure())
	assert.True(t, (&LoadLocalAddr{}).Effects().IsPure())
	assert.False(t, (&LoadLocal{}).Effects().HasSideEffects())
	assert.True(t, (&StoreGlobal{}).Effects().HasSideEffects())
	assert.True(t, (&CallLabel{}).Effects().HasSideEffects())
	assert.True(t, (&CallLabel{}).Effects().ReadsMemory())
	assert.False(t, (&StoreLocal{}).Effects().HasSideEffects())
	assert.Equal(t, "local-read", (&LoadLocal{}).Effects().String())
	assert.Equal(t, "pure", NoOp{}.Effects().String())
}

func TestPrintFunction(t *testing.T) {
	b := NewBuilder("p")
	c := b.ArgLocal(I8, 1, 0)
	v := b.LoadLocal(I8, c, 0)
	ptr := b.LoadGlobalAddr("table")
	elem := b.AddToPointer(VarOperand(ptr), 4, I32, VarOperand(v))
	b.StoreToPointer(I32, elem, ImmOperand(IntScalar(I32, -1)), 8)
	next := b.NewBlock()
	b.BranchCompare(Lt, I32, v, ImmOperand(IntScalar(I32, 3)), next, next)
	b.SelectBlock(next)
	b.CallLabel(Void, "puts", []VarIndex{v}, []VarIndex{elem})
	b.ReturnVoid()

	want := `func @p {
  local c1: i8, size 1, arg 0
L1:
  v1 = load i8 c1
  v2 = gaddr @table
  v3 = ptradd v2, 4 * i32 v1
  sptr i32 v3 + 8, -1
  br lt i32 v1, 3 ? L2 : L2
L2:
  call void @puts(v1; v3)
  ret void
}
`
	assert.Equal(t, want, PrintFunction(b.Function()))
}
