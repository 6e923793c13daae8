package interp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calyx/internal/ir"
)

func TestParseArgs(t *testing.T) {
	b := ir.NewBuilder("f")
	b.ArgLocal(ir.Double, 8, 1)
	b.ArgLocal(ir.U8, 1, 0)
	b.ReturnVoid()
	fn := b.Function()

	args, err := ParseArgs(fn, []string{"7", "2.5"})
	require.NoError(t, err)
	assert.Equal(t, []ir.Scalar{ir.IntScalar(ir.U32, 7), ir.FloatScalar(ir.Double, 2.5)}, args)

	_, err = ParseArgs(fn, []string{"7"})
	assert.EqualError(t, err, "@f takes 2 arguments, got 1")

	_, err = ParseArgs(fn, []string{"x", "1"})
	assert.ErrorContains(t, err, "argument 0")
}
