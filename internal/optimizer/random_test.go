package optimizer

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calyx/internal/interp"
	"calyx/internal/ir"
)

type genLocal struct {
	index ir.VarIndex
	typ   ir.Type
}

// programGen builds random valid functions out of straight-line code,
// diamonds, selects and bounded loops over a mix of small, wide and
// escaped locals
type programGen struct {
	rng     *rand.Rand
	b       *ir.Builder
	locals  []genLocal
	escAddr ir.VarIndex
	// pool holds i32 values defined in the current block
	pool []ir.VarIndex
}

var genOps = []ir.BinaryOp{ir.Add, ir.Sub, ir.Mul, ir.BinAnd, ir.BinOr, ir.BinXor}

func generate(seed uint64) *ir.Program {
	g := &programGen{
		rng: rand.New(rand.NewPCG(seed, 0x9e3779b97f4a7c15)),
		b:   ir.NewBuilder("gen"),
	}
	b := g.b

	x := b.ArgLocal(ir.I32, 4, 0)
	y := b.ArgLocal(ir.I8, 1, 1)
	g.locals = []genLocal{{x, ir.I32}, {y, ir.I8}}
	for _, t := range []ir.Type{ir.I32, ir.U8, ir.U16, ir.I64, ir.I32} {
		g.locals = append(g.locals, genLocal{b.Local(t, t.Size()), t})
	}
	escaped := g.locals[len(g.locals)-1].index
	g.escAddr = b.LoadLocalAddr(escaped)
	for _, l := range g.locals[2:] {
		g.store(l, g.imm())
	}

	for n := 1 + g.rng.IntN(5); n > 0; n-- {
		switch g.rng.IntN(4) {
		case 0:
			g.straight(1 + g.rng.IntN(3))
		case 1:
			g.diamond()
		case 2:
			g.selectOn()
		case 3:
			g.loop()
		}
	}
	b.Return(ir.I32, ir.VarOperand(g.value(2)))

	p := ir.NewProgram()
	p.Functions["gen"] = b.Function()
	p.Globals["out"] = &ir.Global{Type: ir.I32}
	p.Globals["flag"] = &ir.Global{Type: ir.U8}
	return p
}

func (g *programGen) enter(label ir.BlockLabel) {
	g.b.SelectBlock(label)
	g.pool = nil
}

func (g *programGen) imm() ir.VarIndex {
	v := g.b.Imm(ir.IntScalar(ir.I32, int64(g.rng.IntN(9))-2))
	g.pool = append(g.pool, v)
	return v
}

// load reads a random local and widens it to i32
func (g *programGen) load() ir.VarIndex {
	l := g.locals[g.rng.IntN(len(g.locals))]
	v := g.b.LoadLocal(l.typ, l.index, 0)
	if from := l.typ.Upcast(); from != ir.I32 {
		v = g.b.Cast(ir.I32, from, ir.VarOperand(v))
	}
	g.pool = append(g.pool, v)
	return v
}

func (g *programGen) operand(depth int) ir.Operand {
	if g.rng.IntN(3) == 0 {
		return i32(int64(g.rng.IntN(9)) - 2)
	}
	return ir.VarOperand(g.value(depth))
}

// value returns an i32 value usable in the current block
func (g *programGen) value(depth int) ir.VarIndex {
	choice := g.rng.IntN(5)
	if depth <= 0 {
		choice %= 2
	}
	switch choice {
	case 0:
		return g.load()
	case 1:
		if len(g.pool) == 0 {
			return g.imm()
		}
		return g.pool[g.rng.IntN(len(g.pool))]
	case 2:
		un := []ir.UnaryOp{ir.Neg, ir.BinNot}[g.rng.IntN(2)]
		return g.b.Unop(un, ir.I32, ir.VarOperand(g.value(depth-1)))
	default:
		op := genOps[g.rng.IntN(len(genOps))]
		v := g.b.Binop(op, ir.I32, g.value(depth-1), g.operand(depth-1))
		g.pool = append(g.pool, v)
		return v
	}
}

// store narrows v to the type of l
func (g *programGen) store(l genLocal, v ir.VarIndex) {
	if to := l.typ.Upcast(); to != ir.I32 {
		v = g.b.Cast(to, ir.I32, ir.VarOperand(v))
	}
	g.b.StoreLocal(l.typ, l.index, ir.VarOperand(v), 0)
}

func (g *programGen) statement() {
	b := g.b
	switch g.rng.IntN(7) {
	case 0, 1:
		g.store(g.locals[g.rng.IntN(len(g.locals))], g.value(2))
	case 2:
		b.StoreGlobal(ir.I32, "out", ir.VarOperand(g.value(2)), 0)
	case 3:
		b.StoreToPointer(ir.I32, g.escAddr, ir.VarOperand(g.value(1)), 0)
	case 4:
		g.pool = append(g.pool, b.LoadFromPointer(ir.I32, g.escAddr, 0))
	case 5:
		r := b.CallLabel(ir.I32, "ext", []ir.VarIndex{g.value(1)}, nil)
		g.pool = append(g.pool, r)
	case 6:
		// the same bits at two register types
		l := g.locals[3]
		b.StoreLocal(ir.U8, l.index, ir.ImmOperand(ir.IntScalar(ir.U8, int64(g.rng.IntN(4)))), 0)
		wide := b.LoadLocal(ir.U8, l.index, 0)
		signed := b.Cast(ir.I32, ir.U32, ir.VarOperand(wide))
		b.CallLabel(ir.Void, "ext", []ir.VarIndex{wide, signed}, nil)
		narrow := b.Cast(ir.U32, ir.I32, ir.VarOperand(g.value(1)))
		b.StoreGlobal(ir.U8, "flag", ir.VarOperand(narrow), 0)
	}
}

func (g *programGen) straight(n int) {
	for ; n > 0; n-- {
		g.statement()
	}
}

func (g *programGen) diamond() {
	b := g.b
	yes, no, join := b.NewBlock(), b.NewBlock(), b.NewBlock()
	op := ir.CmpOp(g.rng.IntN(6))
	b.BranchCompare(op, ir.I32, g.value(1), g.operand(0), yes, no)
	for _, arm := range []ir.BlockLabel{yes, no} {
		g.enter(arm)
		g.straight(g.rng.IntN(3))
		b.Branch(join)
	}
	g.enter(join)
}

func (g *programGen) selectOn() {
	b := g.b
	zero, one, other, join := b.NewBlock(), b.NewBlock(), b.NewBlock(), b.NewBlock()
	m := b.Binop(ir.BinAnd, ir.I32, g.value(1), i32(3))
	wide := b.Cast(ir.I64, ir.I32, ir.VarOperand(m))
	b.Select(wide, map[int64]ir.BlockLabel{0: zero, 1: one}, other)
	for _, arm := range []ir.BlockLabel{zero, one, other} {
		g.enter(arm)
		g.straight(g.rng.IntN(2))
		b.Branch(join)
	}
	g.enter(join)
}

// loop runs a body up to three times through a counter local of its own
func (g *programGen) loop() {
	b := g.b
	counter := b.Local(ir.I32, 4)
	head, body, exit := b.NewBlock(), b.NewBlock(), b.NewBlock()
	b.StoreLocal(ir.I32, counter, i32(0), 0)
	b.Branch(head)

	g.enter(head)
	n := b.LoadLocal(ir.I32, counter, 0)
	b.BranchCompare(ir.Lt, ir.I32, n, i32(int64(1+g.rng.IntN(3))), body, exit)

	g.enter(body)
	g.straight(1 + g.rng.IntN(3))
	n = b.LoadLocal(ir.I32, counter, 0)
	next := b.Binop(ir.Add, ir.I32, n, i32(1))
	b.StoreLocal(ir.I32, counter, ir.VarOperand(next), 0)
	b.Branch(head)

	g.enter(exit)
}

func TestRandomProgramsEquivalentAndStable(t *testing.T) {
	inputs := [][]ir.Scalar{args(0, 0), args(3, -1), args(-7, 5)}
	for seed := uint64(1); seed <= 300; seed++ {
		p := generate(seed)
		optimized := p.Clone()

		report := NewDefaultPipeline().Run(optimized)
		require.Empty(t, report.Failed(), "seed %d\n%s", seed, ir.Print(p))

		for _, in := range inputs {
			before, err := interp.Run(p, "gen", interp.Options{}, in...)
			require.NoError(t, err, "seed %d\n%s", seed, ir.Print(p))
			after, err := interp.Run(optimized, "gen", interp.Options{}, in...)
			require.NoError(t, err, "seed %d\n%s", seed, ir.Print(optimized))
			if !assert.Equal(t, before.String(), after.String(), "seed %d, arguments %v", seed, in) {
				t.Logf("original:\n%s\noptimized:\n%s", ir.Print(p), ir.Print(optimized))
				return
			}
		}

		printed := ir.Print(optimized)
		again := NewDefaultPipeline().Run(optimized)
		require.Empty(t, again.Failed(), "seed %d", seed)
		assert.False(t, again.Total().Changed(), "seed %d: second run %s", seed, again.Total())
		assert.Equal(t, printed, ir.Print(optimized), "seed %d", seed)
	}
}
