package optimizer

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calyx/internal/interp"
	"calyx/internal/ir"
)

func program(fns ...*ir.Function) *ir.Program {
	p := ir.NewProgram()
	for _, fn := range fns {
		p.Functions[fn.Symbol] = fn
	}
	return p
}

func args(vs ...int64) []ir.Scalar {
	out := make([]ir.Scalar, len(vs))
	for i, v := range vs {
		out[i] = ir.IntScalar(ir.I32, v)
	}
	return out
}

// assertEquivalent optimizes a copy of p and checks that running entry
// produces the same trace before and after, for every argument list
func assertEquivalent(t *testing.T, p *ir.Program, entry string, inputs ...[]ir.Scalar) {
	t.Helper()
	optimized := p.Clone()
	report := NewDefaultPipeline().Run(optimized)
	require.Empty(t, report.Failed())

	if len(inputs) == 0 {
		inputs = [][]ir.Scalar{nil}
	}
	for _, in := range inputs {
		before, err := interp.Run(p, entry, interp.Options{}, in...)
		require.NoError(t, err, "original with %v", in)
		after, err := interp.Run(optimized, entry, interp.Options{}, in...)
		require.NoError(t, err, "optimized with %v\n%s", in, ir.Print(optimized))
		assert.Equal(t, before.String(), after.String(), "arguments %v", in)
	}
}

// buildClassify walks 0..n-1, counting multiples of three in @hits and
// reporting numbers that leave a remainder of one
func buildClassify() *ir.Program {
	b := ir.NewBuilder("classify")
	n := b.ArgLocal(ir.I32, 4, 0)
	k := b.Local(ir.I32, 4)
	head, body, zero, one, other, next, done :=
		b.NewBlock(), b.NewBlock(), b.NewBlock(), b.NewBlock(), b.NewBlock(), b.NewBlock(), b.NewBlock()

	b.StoreLocal(ir.I32, k, i32(0), 0)
	b.Branch(head)

	b.SelectBlock(head)
	kv := b.LoadLocal(ir.I32, k, 0)
	nv := b.LoadLocal(ir.I32, n, 0)
	b.BranchCompare(ir.Lt, ir.I32, kv, ir.VarOperand(nv), body, done)

	b.SelectBlock(body)
	kv2 := b.LoadLocal(ir.I32, k, 0)
	m := b.Binop(ir.Mod, ir.I32, kv2, i32(3))
	wide := b.Cast(ir.I64, ir.I32, ir.VarOperand(m))
	b.Select(wide, map[int64]ir.BlockLabel{0: zero, 1: one}, other)

	b.SelectBlock(zero)
	g := b.LoadGlobal(ir.I32, "hits", 0)
	g1 := b.Binop(ir.Add, ir.I32, g, i32(1))
	b.StoreGlobal(ir.I32, "hits", ir.VarOperand(g1), 0)
	b.Branch(next)

	b.SelectBlock(one)
	b.CallLabel(ir.Void, "tick", []ir.VarIndex{kv2}, nil)
	b.Branch(next)

	b.SelectBlock(other)
	b.Branch(next)

	b.SelectBlock(next)
	kv3 := b.LoadLocal(ir.I32, k, 0)
	inc := b.Binop(ir.Add, ir.I32, kv3, i32(1))
	b.StoreLocal(ir.I32, k, ir.VarOperand(inc), 0)
	b.Branch(head)

	b.SelectBlock(done)
	h := b.LoadGlobal(ir.I32, "hits", 0)
	b.Return(ir.I32, ir.VarOperand(h))

	p := program(b.Function())
	p.Globals["hits"] = &ir.Global{Type: ir.I32}
	return p
}

// buildPointers fills a small array through pointer arithmetic and
// reads one element back through the local itself
func buildPointers() *ir.Program {
	b := ir.NewBuilder("pointers")
	x := b.ArgLocal(ir.I32, 4, 0)
	arr := b.Local(ir.Struct, 16)
	tmp := b.Local(ir.I32, 4)

	base := b.LoadLocalAddr(arr)
	xv := b.LoadLocal(ir.I32, x, 0)
	for i := int64(0); i < 4; i++ {
		p := b.AddToPointer(ir.VarOperand(base), 4, ir.I32, i32(i))
		v := b.Binop(ir.Mul, ir.I32, xv, i32(i+1))
		b.StoreToPointer(ir.I32, p, ir.VarOperand(v), 0)
	}
	tp := b.LoadLocalAddr(tmp)
	b.StoreToPointer(ir.I32, tp, i32(9), 0)
	b.CallLabel(ir.Void, "observe", []ir.VarIndex{base}, nil)
	e := b.LoadLocal(ir.I32, arr, 8)
	t := b.LoadFromPointer(ir.I32, tp, 0)
	s := b.Binop(ir.Add, ir.I32, e, ir.VarOperand(t))
	b.Return(ir.I32, ir.VarOperand(s))
	return program(b.Function())
}

func buildIndirectCalls() *ir.Program {
	callee := ir.NewBuilder("twice")
	a := callee.ArgLocal(ir.I64, 8, 0)
	av := callee.LoadLocal(ir.I64, a, 0)
	d := callee.Binop(ir.Add, ir.I64, av, ir.VarOperand(av))
	callee.Return(ir.I64, ir.VarOperand(d))

	b := ir.NewBuilder("main")
	fp := b.LoadGlobalAddr("twice")
	ext := b.LoadGlobalAddr("printf")
	seven := b.Imm(ir.IntScalar(ir.I64, 7))
	r := b.Call(ir.I64, fp, []ir.VarIndex{seven}, nil)
	str := b.LoadGlobalAddr(ir.StringSymbol(0))
	b.Call(ir.I32, ext, []ir.VarIndex{str}, []ir.VarIndex{r})
	narrow := b.Cast(ir.I32, ir.I64, ir.VarOperand(r))
	b.Return(ir.I32, ir.VarOperand(narrow))

	p := program(callee.Function(), b.Function())
	p.Strings = []string{"%ld\n"}
	return p
}

func TestSemanticEquivalence(t *testing.T) {
	cases := []struct {
		name   string
		p      *ir.Program
		entry  string
		inputs [][]ir.Scalar
	}{
		{"sum", program(buildSum()), "f", nil},
		{"countdown", program(buildCountdown()), "countdown", [][]ir.Scalar{args(0), args(1), args(7)}},
		{"siblings", program(buildBranches(false)), "branches", [][]ir.Scalar{args(-3), args(0), args(4)}},
		{"dominated", program(buildBranches(true)), "branches", [][]ir.Scalar{args(-3), args(4)}},
		{"escaped", program(buildEscaped()), "escaped", nil},
		{"classify", buildClassify(), "classify", [][]ir.Scalar{args(0), args(5), args(10)}},
		{"pointers", buildPointers(), "pointers", [][]ir.Scalar{args(3), args(-2)}},
		{"indirect calls", buildIndirectCalls(), "main", nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assertEquivalent(t, c.p, c.entry, c.inputs...)
		})
	}
}

func TestSemanticEquivalenceOfFolding(t *testing.T) {
	for x := int64(-2); x <= 2; x++ {
		for y := int64(-2); y <= 2; y++ {
			t.Run(fmt.Sprintf("%d,%d", x, y), func(t *testing.T) {
				b := ir.NewBuilder("algebra")
				xl := b.ArgLocal(ir.I32, 4, 0)
				yl := b.ArgLocal(ir.I8, 1, 1)
				xv := b.LoadLocal(ir.I32, xl, 0)
				yv := b.LoadLocal(ir.I8, yl, 0)
				n := b.Unop(ir.Neg, ir.I32, ir.VarOperand(yv))
				s := b.Binop(ir.Sub, ir.I32, xv, ir.VarOperand(n))
				t1 := b.Binop(ir.Sub, ir.I32, s, i32(5))
				t2 := b.Binop(ir.Add, ir.I32, t1, i32(2))
				xr := b.Binop(ir.BinXor, ir.I32, t2, i32(6))
				c := b.Compare(ir.Ne, ir.I32, xr, i32(3))
				sh := b.Shift(ir.ShiftLeft, ir.I32, ir.VarOperand(c), ir.ImmOperand(ir.IntScalar(ir.U32, 4)))
				b.Return(ir.I32, ir.VarOperand(sh))

				assertEquivalent(t, program(b.Function()), "algebra", args(x, y))
			})
		}
	}
}
