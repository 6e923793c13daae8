package grammar_test

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calyx/grammar"
)

func TestSum(t *testing.T) {
	program, err := grammar.ParseFile("testdata/sum.calyx")
	require.NoError(t, err)

	require.Len(t, program.Items, 1)
	fn := program.Items[0].Function
	require.NotNil(t, fn)
	assert.Equal(t, "@f", fn.Name)
	assert.Equal(t, 2, fn.Pos.Line)

	require.Len(t, fn.Locals, 3)
	assert.Equal(t, "c2", fn.Locals[1].Name)
	assert.Equal(t, "i32", fn.Locals[1].Type)
	assert.Equal(t, "4", fn.Locals[1].Size)
	assert.Empty(t, fn.Locals[1].Arg)

	require.Len(t, fn.Blocks, 1)
	block := fn.Blocks[0]
	assert.Equal(t, "L1", block.Label)
	require.Len(t, block.Directives, 8)

	store := block.Directives[0]
	assert.Empty(t, store.Result)
	require.NotNil(t, store.StoreLocal)
	assert.Equal(t, "c1", store.StoreLocal.Local)
	assert.Equal(t, "1", store.StoreLocal.Value.Literal)
	assert.Equal(t, 7, store.Pos.Line)
	assert.Equal(t, 3, store.Pos.Column)

	add := block.Directives[4]
	assert.Equal(t, "v3", add.Result)
	require.NotNil(t, add.Arith)
	assert.Equal(t, "add", add.Arith.Op)
	assert.Equal(t, "v1", add.Arith.Left.Var)
	assert.Equal(t, "v2", add.Arith.Right.Var)

	ret := block.Directives[7].Return
	require.NotNil(t, ret)
	assert.False(t, ret.Void)
	assert.Equal(t, "i32", ret.Type)
	assert.Equal(t, "v5", ret.Value.Var)
}

func TestEveryDirective(t *testing.T) {
	program, err := grammar.ParseFile("testdata/everything.calyx")
	require.NoError(t, err)
	require.Len(t, program.Items, 6)

	str := program.Items[0].String
	require.NotNil(t, str)
	assert.Equal(t, "0", str.Index)
	assert.Equal(t, "hello\n", str.Value)

	count := program.Items[1].Global
	assert.Equal(t, "@count", count.Name)
	assert.Equal(t, "5", count.Init.Value)

	buf := program.Items[2].Global
	assert.Equal(t, "struct", buf.Type)
	assert.Equal(t, "16", buf.Size)
	assert.Nil(t, buf.Init)

	ptr := program.Items[3].Global
	assert.Equal(t, "@buf", ptr.Init.Label)
	assert.Equal(t, "8", ptr.Init.Offset)

	assert.Equal(t, "0.5", program.Items[4].Global.Init.Value)

	fn := program.Items[5].Function
	require.NotNil(t, fn)
	assert.Equal(t, "0", fn.Locals[0].Arg)
	require.Len(t, fn.Blocks, 4)

	ds := fn.Blocks[0].Directives
	require.Len(t, ds, 19)
	assert.True(t, ds[0].NoOp)
	assert.Equal(t, "-3", ds[1].Imm.Value)
	assert.Equal(t, "i64", ds[2].Cast.To)
	assert.Equal(t, "i32", ds[2].Cast.From)
	assert.Equal(t, "neg", ds[4].Arith.Op)
	assert.Nil(t, ds[4].Arith.Right)
	assert.Equal(t, "shl", ds[5].Arith.Op)
	assert.Equal(t, "lt", ds[6].Compare.Op)
	assert.Equal(t, "c2", ds[7].Addr.Local)
	assert.Equal(t, "4", ds[8].AddToPointer.Stride)
	assert.Equal(t, "v1", ds[8].AddToPointer.Right.Var)
	assert.Equal(t, "4", ds[10].StoreLocal.Offset)
	assert.Equal(t, "@count", ds[11].LoadGlobal.Symbol)
	assert.Equal(t, "@.str.0", ds[12].GlobalAddr.Symbol)
	assert.Equal(t, "7", ds[13].StoreGlobal.Value.Literal)
	assert.Equal(t, "1", ds[14].Deref.Offset)
	assert.Equal(t, "v12", ds[15].StorePtr.Value.Var)

	call := ds[16].Call
	assert.Equal(t, "@printf", call.Label)
	assert.Equal(t, []string{"v11"}, call.Args)
	assert.Equal(t, []string{"v9", "v10"}, call.VarArgs)

	indirect := ds[17]
	assert.Empty(t, indirect.Result)
	assert.Equal(t, "v11", indirect.Call.Fn)
	assert.Empty(t, indirect.Call.Args)

	br := ds[18].Branch.Cond
	assert.Equal(t, "eq", br.Op)
	assert.Equal(t, "L2", br.True)
	assert.Equal(t, "L3", br.False)

	sel := fn.Blocks[1].Directives[0].Select
	require.Len(t, sel.Cases, 2)
	assert.Equal(t, "-1", sel.Cases[0].Key)
	assert.Equal(t, "L2", sel.Cases[1].Label)
	assert.Equal(t, "L3", sel.Default)

	assert.Equal(t, "L4", fn.Blocks[2].Directives[0].Branch.Dest)
	assert.True(t, fn.Blocks[3].Directives[0].Return.Void)
}

func TestFloatLiterals(t *testing.T) {
	program, err := grammar.ParseString("floats.calyx", `func @f {
L1:
  v1 = imm double 1e+21
  v2 = imm double -Inf
  v3 = imm float NaN
  v4 = add double v1, 2.5
  ret double v4
}`)
	require.NoError(t, err)

	ds := program.Items[0].Function.Blocks[0].Directives
	assert.Equal(t, "1e+21", ds[0].Imm.Value)
	assert.Equal(t, "-Inf", ds[1].Imm.Value)
	assert.Equal(t, "NaN", ds[2].Imm.Value)
	assert.Equal(t, "2.5", ds[3].Arith.Right.Literal)
}

func TestSyntaxError(t *testing.T) {
	source := "func @f {\nL1:\n  v1 = frobnicate i32 v2\n}\n"
	_, err := grammar.ParseString("bad.calyx", source)
	require.Error(t, err)

	color.NoColor = true
	var out bytes.Buffer
	grammar.ReportParseError(&out, source, err)

	assert.Contains(t, out.String(), "Syntax error in bad.calyx at line 3")
	assert.Contains(t, out.String(), "  v1 = frobnicate i32 v2\n")
	assert.Contains(t, out.String(), "^")
}

func TestParseFileMissing(t *testing.T) {
	_, err := grammar.ParseFile("testdata/missing.calyx")
	assert.ErrorContains(t, err, "failed to read file")
}
