// Package regalloc builds the register interference graph of a function
// and classifies its variables into register classes.
package regalloc

import (
	"fmt"

	"calyx/internal/ir"
)

// GeneralizedVar is either an IR value or a local, so that both can be
// colored in the same graph
type GeneralizedVar struct {
	Index   ir.VarIndex
	IsLocal bool
}

func Var(v ir.VarIndex) GeneralizedVar {
	return GeneralizedVar{Index: v}
}

func Local(c ir.VarIndex) GeneralizedVar {
	return GeneralizedVar{Index: c, IsLocal: true}
}

// NodeUID maps values to positive and locals to negative ids
func (g GeneralizedVar) NodeUID() int64 {
	if g.IsLocal {
		return -int64(g.Index)
	}
	return int64(g.Index)
}

// FromNodeUID inverts NodeUID
func FromNodeUID(uid int64) GeneralizedVar {
	if uid < 0 {
		return Local(ir.VarIndex(-uid))
	}
	return Var(ir.VarIndex(uid))
}

func (g GeneralizedVar) String() string {
	if g.IsLocal {
		return fmt.Sprintf("c%d", g.Index)
	}
	return fmt.Sprintf("v%d", g.Index)
}
