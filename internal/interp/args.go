package interp

import (
	"fmt"

	"calyx/internal/ir"
)

// ParseArgs reads one literal per argument local of fn, in argument order.
// Small integer arguments are read as their register type.
func ParseArgs(fn *ir.Function, texts []string) ([]ir.Scalar, error) {
	params := fn.Args()
	if len(texts) != len(params) {
		return nil, fmt.Errorf("@%s takes %d arguments, got %d", fn.Symbol, len(params), len(texts))
	}
	args := make([]ir.Scalar, len(params))
	for i, l := range params {
		s, err := ir.ParseScalar(l.Type.Upcast(), texts[i])
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		args[i] = s
	}
	return args, nil
}
