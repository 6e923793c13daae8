package ir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntScalarWraps(t *testing.T) {
	assert.Equal(t, int64(-128), IntScalar(I8, 128).Int)
	assert.Equal(t, int64(44), IntScalar(U8, 300).Int)
	assert.Equal(t, int64(-1), IntScalar(I32, 0xffffffff).Int)
	assert.Equal(t, int64(0xffffffff), IntScalar(U32, -1).Int)
	assert.Equal(t, uint64(math.MaxUint64), IntScalar(U64, -1).Uint())
	assert.Equal(t, "18446744073709551615", IntScalar(U64, -1).String())
}

func TestEvalBinop(t *testing.T) {
	tests := []struct {
		name string
		op   BinaryOp
		typ  Type
		l, r int64
		want int64
	}{
		{"add", Add, I32, 1, 2, 3},
		{"add wraps", Add, I32, math.MaxInt32, 1, math.MinInt32},
		{"sub unsigned wraps", Sub, U32, 0, 1, 0xffffffff},
		{"signed div truncates", Div, I32, -7, 2, -3},
		{"unsigned div", Div, U32, -2, 2, 0x7fffffff},
		{"signed mod", Mod, I64, -7, 2, -1},
		{"xor", BinXor, U64, 0b1100, 0b1010, 0b0110},
		{"min int div", Div, I32, math.MinInt32, -1, math.MinInt32},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := EvalBinop(tt.op, tt.typ, IntScalar(tt.typ, tt.l), IntScalar(tt.typ, tt.r))
			require.True(t, ok)
			assert.Equal(t, IntScalar(tt.typ, tt.want), got)
		})
	}
}

func TestEvalBinopUndefined(t *testing.T) {
	_, ok := EvalBinop(Div, I32, IntScalar(I32, 1), IntScalar(I32, 0))
	assert.False(t, ok)
	_, ok = EvalBinop(Mod, U64, IntScalar(U64, 1), IntScalar(U64, 0))
	assert.False(t, ok)
	_, ok = EvalBinop(BinAnd, Double, FloatScalar(Double, 1), FloatScalar(Double, 2))
	assert.False(t, ok)

	got, ok := EvalBinop(Div, Double, FloatScalar(Double, 1), FloatScalar(Double, 4))
	require.True(t, ok)
	assert.Equal(t, 0.25, got.Float)
}

func TestEvalShift(t *testing.T) {
	got, _ := EvalShift(ShiftRight, I32, IntScalar(I32, -8), IntScalar(U32, 1))
	assert.Equal(t, int64(-4), got.Int)
	got, _ = EvalShift(ShiftRight, U32, IntScalar(U32, -8), IntScalar(U32, 1))
	assert.Equal(t, int64(0x7ffffffc), got.Int)
	got, _ = EvalShift(ShiftLeft, I32, IntScalar(I32, 1), IntScalar(U32, 33))
	assert.Equal(t, int64(2), got.Int)
}

func TestEvalCompare(t *testing.T) {
	assert.True(t, EvalCompare(Lt, I32, IntScalar(I32, -1), IntScalar(I32, 0)))
	assert.False(t, EvalCompare(Lt, U32, IntScalar(U32, -1), IntScalar(U32, 0)))
	assert.True(t, EvalCompare(Ne, Double, FloatScalar(Double, math.NaN()), FloatScalar(Double, 0)))
	assert.False(t, EvalCompare(Eq, Double, FloatScalar(Double, math.NaN()), FloatScalar(Double, math.NaN())))
	assert.True(t, EvalCompare(Ge, Pointer, IntScalar(Pointer, 16), IntScalar(Pointer, 8)))
}

func TestCmpOpFlip(t *testing.T) {
	for _, op := range []CmpOp{Eq, Ne, Lt, Le, Gt, Ge} {
		l, r := IntScalar(I32, 3), IntScalar(I32, 5)
		assert.Equal(t, EvalCompare(op, I32, l, r), EvalCompare(op.Flip(), I32, r, l), op.String())
	}
}

func TestConvert(t *testing.T) {
	assert.Equal(t, IntScalar(I32, -1), Convert(IntScalar(I8, -1), I32))
	assert.Equal(t, IntScalar(U32, 255), Convert(Convert(IntScalar(I32, -1), U8), U32))
	assert.Equal(t, FloatScalar(Double, 3), Convert(IntScalar(I32, 3), Double))
	assert.Equal(t, IntScalar(I32, -2), Convert(FloatScalar(Double, -2.9), I32))
	assert.Equal(t, FloatScalar(Double, 4294967295), Convert(IntScalar(U32, -1), Double))
}

func TestParseScalar(t *testing.T) {
	s, err := ParseScalar(I32, "-0x10")
	require.NoError(t, err)
	assert.Equal(t, int64(-16), s.Int)

	s, err = ParseScalar(U64, "18446744073709551615")
	require.NoError(t, err)
	assert.Equal(t, int64(-1), s.Int)

	s, err = ParseScalar(Float, "1")
	require.NoError(t, err)
	assert.Equal(t, 1.0, s.Float)

	_, err = ParseScalar(I32, "1.5")
	assert.Error(t, err)
	_, err = ParseScalar(Struct, "1")
	assert.Error(t, err)
}

func TestTypePredicates(t *testing.T) {
	assert.Equal(t, I32, I8.Upcast())
	assert.Equal(t, U32, U16.Upcast())
	assert.Equal(t, Double, Double.Upcast())
	assert.True(t, U8.IsSmall())
	assert.False(t, U8.IsIntegral())
	assert.True(t, U8.IsInteger())
	assert.False(t, Pointer.IsArithmetic())
	assert.Equal(t, uint64(8), Pointer.Size())

	for _, typ := range []Type{I8, U8, I16, U16, I32, U32, I64, U64, Float, Double, Pointer, Struct, Void} {
		parsed, ok := ParseType(typ.String())
		require.True(t, ok)
		assert.Equal(t, typ, parsed)
	}
	_, ok := ParseType("int")
	assert.False(t, ok)
}
