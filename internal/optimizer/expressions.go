package optimizer

import (
	"fmt"

	"calyx/internal/ir"
)

// expr appends a pure expression, unless an identical expression was
// already emitted in a block that dominates the current one
func (o *optimizer) expr(e ir.Expr) {
	key := cseKey(e)
	for _, c := range o.exprs[key] {
		if o.blocks.CommonAncestor(c.block, o.oldBlock) == c.block {
			o.replace(e.Def(), c.result)
			return
		}
	}
	o.exprs[key] = append(o.exprs[key], candidate{result: e.Def(), block: o.oldBlock})
	o.value(e)
}

// cseKey renders e with its result cleared, so structurally identical
// expressions share a key. The Go syntax form keeps the type of every
// immediate, which Scalar.String leaves out.
func cseKey(e ir.Expr) string {
	c := ir.Clone(e)
	switch c := c.(type) {
	case *ir.Imm:
		c.Result = 0
	case *ir.Cast:
		c.Result = 0
	case *ir.Binop:
		c.Result = 0
	case *ir.Unop:
		c.Result = 0
	case *ir.Shift:
		c.Result = 0
	case *ir.Compare:
		c.Result = 0
	case *ir.AddToPointer:
		c.Result = 0
	case *ir.LoadLocalAddr:
		c.Result = 0
	case *ir.LoadGlobalAddr:
		c.Result = 0
	}
	return fmt.Sprintf("%#v", c)
}

func (o *optimizer) fold(result ir.VarIndex, value ir.Scalar) {
	o.stats.Folds++
	o.expr(&ir.Imm{Result: result, Value: value})
}

func (o *optimizer) cast(result ir.VarIndex, to, from ir.Type, value ir.Operand) {
	switch {
	case value.IsImm:
		o.fold(result, ir.Convert(ir.Convert(value.Value, from), to))
	case to == from && !to.IsSmall():
		o.replace(result, value.Var)
	default:
		o.expr(&ir.Cast{Result: result, To: to, From: from, Value: value})
	}
}

func (o *optimizer) binop(result ir.VarIndex, t ir.Type, op ir.BinaryOp, left ir.VarIndex, right ir.Operand) {
	if l, ok := o.immOf(left); ok {
		if right.IsImm {
			if v, ok := ir.EvalBinop(op, t, l, right.Value); ok {
				o.fold(result, v)
				return
			}
		} else if op.IsCommutative() {
			left, right = right.Var, ir.ImmOperand(l)
			o.stats.Folds++
		}
	}

	if right.IsImm && t.IsIntegral() {
		if isIdentity(op, right.Value) {
			o.replace(result, left)
			return
		}
		if inner, ok := o.defs[left].(*ir.Binop); ok && inner.Type == t && inner.Right.IsImm {
			if outer, c, ok := reassociate(inner.Op, op, t, inner.Right.Value, right.Value); ok {
				o.stats.Folds++
				o.binop(result, t, outer, inner.Left, ir.ImmOperand(c))
				return
			}
		}
	}

	if !right.IsImm && (op == ir.Add || op == ir.Sub) {
		if neg, ok := o.defs[right.Var].(*ir.Unop); ok && neg.Op == ir.Neg && neg.Type == t && !neg.Value.IsImm {
			o.stats.Folds++
			flipped := ir.Sub
			if op == ir.Sub {
				flipped = ir.Add
			}
			o.binop(result, t, flipped, left, neg.Value)
			return
		}
	}

	o.expr(&ir.Binop{Result: result, Type: t, Op: op, Left: left, Right: right})
}

func isIdentity(op ir.BinaryOp, v ir.Scalar) bool {
	switch op {
	case ir.Add, ir.Sub, ir.BinOr, ir.BinXor:
		return v.Int == 0
	case ir.Mul, ir.Div:
		return v.Int == 1
	}
	return false
}

// reassociate folds (x inner a) outer b into x op c for integral types
func reassociate(inner, outer ir.BinaryOp, t ir.Type, a, b ir.Scalar) (ir.BinaryOp, ir.Scalar, bool) {
	var (
		op      ir.BinaryOp
		combine ir.BinaryOp
	)
	switch {
	case inner == outer && (outer == ir.Add || outer == ir.Mul || outer == ir.BinAnd || outer == ir.BinOr || outer == ir.BinXor):
		op, combine = outer, outer
	case inner == ir.Sub && outer == ir.Sub:
		op, combine = ir.Sub, ir.Add
	case inner == ir.Add && outer == ir.Sub:
		op, combine = ir.Add, ir.Sub
	case inner == ir.Sub && outer == ir.Add:
		op, combine = ir.Sub, ir.Sub
	default:
		return 0, ir.Scalar{}, false
	}
	c, ok := ir.EvalBinop(combine, t, a, b)
	return op, c, ok
}

func (o *optimizer) unop(d *ir.Unop) {
	value := o.operand(d.Value)
	if value.IsImm {
		if v, ok := ir.EvalUnop(d.Op, d.Type, value.Value); ok {
			o.fold(d.Result, v)
			return
		}
	} else if inner, ok := o.defs[value.Var].(*ir.Unop); ok && inner.Op == d.Op && inner.Type == d.Type && !inner.Value.IsImm {
		o.replace(d.Result, inner.Value.Var)
		return
	}
	o.expr(&ir.Unop{Result: d.Result, Type: d.Type, Op: d.Op, Value: value})
}

func (o *optimizer) shift(d *ir.Shift) {
	left, right := o.operand(d.Left), o.operand(d.Right)
	if right.IsImm {
		if left.IsImm {
			if v, ok := ir.EvalShift(d.Op, d.Type, left.Value, right.Value); ok {
				o.fold(d.Result, v)
				return
			}
		} else if right.Value.IsZero() {
			o.replace(d.Result, left.Var)
			return
		}
	}
	o.expr(&ir.Shift{Result: d.Result, Type: d.Type, Op: d.Op, Left: left, Right: right})
}

func (o *optimizer) compare(d *ir.Compare) {
	left, right, op := o.resolve(d.Left), o.operand(d.Right), d.Op
	if l, ok := o.immOf(left); ok {
		if right.IsImm {
			o.fold(d.Result, ir.BoolScalar(ir.EvalCompare(op, d.Type, l, right.Value)))
			return
		}
		left, right, op = right.Var, ir.ImmOperand(l), op.Flip()
		o.stats.Folds++
	}
	left, right = o.mergeXor(op, d.Type, left, right)
	o.expr(&ir.Compare{Result: d.Result, Type: d.Type, Op: op, Left: left, Right: right})
}

// mergeXor rewrites (x ^ a) == b into x == (a ^ b), and likewise for !=
func (o *optimizer) mergeXor(op ir.CmpOp, t ir.Type, left ir.VarIndex, right ir.Operand) (ir.VarIndex, ir.Operand) {
	if !right.IsImm || (op != ir.Eq && op != ir.Ne) || !t.IsIntegral() {
		return left, right
	}
	inner, ok := o.defs[left].(*ir.Binop)
	if !ok || inner.Op != ir.BinXor || inner.Type != t || !inner.Right.IsImm {
		return left, right
	}
	merged, ok := ir.EvalBinop(ir.BinXor, t, inner.Right.Value, right.Value)
	if !ok {
		return left, right
	}
	o.stats.Folds++
	return inner.Left, ir.ImmOperand(merged)
}

func (o *optimizer) addToPointer(d *ir.AddToPointer) {
	ptr, right := o.operand(d.Ptr), o.operand(d.Right)
	if right.IsImm {
		offset := ir.Convert(right.Value, ir.I64).Int * int64(d.Stride)
		if ptr.IsImm {
			o.fold(d.Result, ir.IntScalar(ir.Pointer, ptr.Value.Int+offset))
			return
		}
		if offset == 0 {
			o.replace(d.Result, ptr.Var)
			return
		}
	}
	o.expr(&ir.AddToPointer{Result: d.Result, Type: d.Type, Ptr: ptr, Stride: d.Stride, Right: right})
}
