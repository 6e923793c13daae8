package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calyx/internal/errors"
	"calyx/internal/ir"
)

const canonical = `global @g: i32 = 5

func @f {
  local c1: i32, size 4, arg 0
L1:
  v1 = load i32 c1
  v2 = lglob i32 @g
  v3 = add i32 v1, v2
  br gt i32 v3, 10 ? L2 : L3
L2:
  ret i32 v3
L3:
  ret i32 0
}
`

func TestParseSum(t *testing.T) {
	result, err := ParseFile("../../grammar/testdata/sum.calyx")
	require.NoError(t, err)
	require.True(t, result.OK(), "%v", result.Err())

	fn := result.Program.Functions["f"]
	require.NotNil(t, fn)
	assert.Len(t, fn.Locals, 3)
	assert.Equal(t, &ir.Local{Index: 2, Type: ir.I32, Size: 4}, fn.Locals[2])

	block := fn.Blocks[ir.EntryBlock]
	require.Len(t, block.Directives, 8)
	assert.Equal(t, &ir.StoreLocal{Type: ir.I32, Local: 1, Value: ir.ImmOperand(ir.IntScalar(ir.I32, 1))}, block.Directives[0])
	assert.Equal(t, "v3 = add i32 v1, v2", ir.FormatDirective(block.Directives[4]))
	assert.Equal(t, &ir.Return{Type: ir.I32, Value: ir.VarOperand(5)}, block.Directives[7])

	pos := result.Source.Directive("f", ir.Pos{Block: ir.EntryBlock, Index: 0})
	assert.Equal(t, 7, pos.Line)
	assert.Equal(t, 3, pos.Column)
	assert.Equal(t, 11, result.Source.Function("f").Values[3].Line)
	assert.Equal(t, 6, result.Source.Block("f", ir.EntryBlock).Line)
	assert.Equal(t, 4, result.Source.Local("f", 2).Line)

	symbol, at, ok := result.Source.At(13)
	require.True(t, ok)
	assert.Equal(t, "f", symbol)
	assert.Equal(t, ir.Pos{Block: ir.EntryBlock, Index: 6}, at)
}

func TestCanonicalText(t *testing.T) {
	result := ParseSource("f.calyx", canonical)
	require.True(t, result.OK(), "%v", result.Err())
	assert.Equal(t, canonical, ir.Print(result.Program))

	g := result.Program.Globals["g"]
	require.NotNil(t, g.Value)
	assert.Equal(t, ir.IntScalar(ir.I32, 5), *g.Value)
}

func TestPrintParseRoundTrip(t *testing.T) {
	result, err := ParseFile("../../grammar/testdata/everything.calyx")
	require.NoError(t, err)
	require.True(t, result.OK(), "%v", result.Err())

	printed := ir.Print(result.Program)
	again := ParseSource("printed.calyx", printed)
	require.True(t, again.OK(), "%v\n%s", again.Err(), printed)
	assert.Equal(t, printed, ir.Print(again.Program))
	assert.Equal(t, result.Program, again.Program)
}

func TestBuilderRoundTrip(t *testing.T) {
	b := ir.NewBuilder("loop")
	n := b.ArgLocal(ir.U8, 1, 0)
	head, done := b.NewBlock(), b.NewBlock()
	b.Branch(head)
	b.SelectBlock(head)
	v := b.LoadLocal(ir.U8, n, 0)
	w := b.Binop(ir.Sub, ir.U32, v, ir.ImmOperand(ir.IntScalar(ir.U32, 1)))
	b.StoreLocal(ir.U8, n, ir.VarOperand(w), 0)
	f := b.Cast(ir.Double, ir.U32, ir.VarOperand(w))
	b.CallLabel(ir.Void, "report", []ir.VarIndex{f}, nil)
	b.Select(w, map[int64]ir.BlockLabel{0: done}, head)
	b.SelectBlock(done)
	b.ReturnVoid()

	p := ir.NewProgram()
	p.Functions["loop"] = b.Function()

	result := ParseSource("loop.calyx", ir.Print(p))
	require.True(t, result.OK(), "%v", result.Err())
	assert.Equal(t, p, result.Program)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		code   string
		line   int
		substr string
	}{
		{"unknown type", "L1:\n  v1 = imm i33 1\n  ret void", errors.ErrorUnknownType, 4, `unknown type "i33"`},
		{"undefined local", "L1:\n  v1 = load i32 c7\n  ret void", errors.ErrorUndefinedLocal, 4, "local c7 is not declared"},
		{"redefined value", "L1:\n  v1 = imm i32 1\n  v1 = imm i32 2\n  ret void", errors.ErrorRedefinedValue, 5, "v1 is defined more than once"},
		{"duplicate block", "L1:\n  br L1\nL1:\n  ret void", errors.ErrorDuplicateBlock, 5, "block L1 is declared more than once"},
		{"missing result", "L1:\n  imm i32 1\n  ret void", errors.ErrorInvalidResult, 4, "imm must define a value"},
		{"unexpected result", "L1:\n  v1 = store i32 c1, 1\n  ret void", errors.ErrorInvalidResult, 4, "store does not define a value"},
		{"literal left operand", "L1:\n  v1 = add i32 1, 2\n  ret void", errors.ErrorInvalidLiteral, 4, "left operand of add must be a value"},
		{"bad literal", "L1:\n  v1 = imm i32 1.5\n  ret void", errors.ErrorInvalidLiteral, 4, `invalid i32 literal "1.5"`},
		{"missing operand", "L1:\n  v1 = add i32 v2\n  ret void", errors.ErrorSyntax, 4, "add takes two operands"},
		{"unknown comparison", "L1:\n  br less i32 v1, 0 ? L1 : L1", errors.ErrorSyntax, 4, `unknown comparison "less"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := "func @f {\n  local c1: i32, size 4\n" + tt.body + "\n}\n"
			result := ParseSource("bad.calyx", source)
			require.NoError(t, result.SyntaxError)
			require.NotEmpty(t, result.ParseErrors)

			first := result.ParseErrors[0]
			assert.Equal(t, tt.code, first.Code)
			assert.Equal(t, tt.line, first.Position.Line)
			assert.Contains(t, first.Message, tt.substr)
			assert.Equal(t, "bad.calyx", first.Position.Filename)
		})
	}
}

func TestDuplicateSymbols(t *testing.T) {
	result := ParseSource("dup.calyx", `global @g: i32
global @g: i64
func @f {
L1:
  ret void
}
func @f {
L1:
  ret void
}
`)
	require.Len(t, result.ParseErrors, 2)
	assert.Equal(t, errors.ErrorDuplicateSymbol, result.ParseErrors[0].Code)
	assert.Equal(t, 2, result.ParseErrors[0].Position.Line)
	assert.Equal(t, 7, result.ParseErrors[1].Position.Line)
	assert.Len(t, result.Program.Functions, 1)
}

func TestSyntaxErrorDiagnostic(t *testing.T) {
	result := ParseSource("bad.calyx", "func @f {\nL1:\n  ret i32 v1 v2\n}\n")
	require.Error(t, result.SyntaxError)
	assert.False(t, result.OK())
	assert.Nil(t, result.Program)

	diags := result.Diagnostics()
	require.Len(t, diags, 1)
	assert.Equal(t, errors.ErrorSyntax, diags[0].Code)
	assert.Equal(t, 3, diags[0].Position.Line)
}
