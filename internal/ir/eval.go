package ir

import "math"

// BinaryOp is the operator of a Binop directive
type BinaryOp uint8

const (
	Add BinaryOp = iota
	Sub
	Mul
	Div
	Mod
	BinAnd
	BinOr
	BinXor
)

var binaryOpNames = [...]string{"add", "sub", "mul", "div", "mod", "and", "or", "xor"}

func (op BinaryOp) String() string { return binaryOpNames[op] }

// IsCommutative reports whether the operands of op may be swapped
func (op BinaryOp) IsCommutative() bool {
	switch op {
	case Add, Mul, BinAnd, BinOr, BinXor:
		return true
	}
	return false
}

// ParseBinaryOp resolves a printed binop mnemonic
func ParseBinaryOp(name string) (BinaryOp, bool) {
	for i, n := range binaryOpNames {
		if n == name {
			return BinaryOp(i), true
		}
	}
	return 0, false
}

// UnaryOp is the operator of a Unop directive
type UnaryOp uint8

const (
	Neg UnaryOp = iota
	BinNot
)

func (op UnaryOp) String() string {
	if op == Neg {
		return "neg"
	}
	return "not"
}

// ShiftOp is the operator of a Shift directive
type ShiftOp uint8

const (
	ShiftLeft ShiftOp = iota
	ShiftRight
)

func (op ShiftOp) String() string {
	if op == ShiftLeft {
		return "shl"
	}
	return "shr"
}

// CmpOp is the relation tested by Compare and BranchCompare
type CmpOp uint8

const (
	Eq CmpOp = iota
	Ne
	Lt
	Le
	Gt
	Ge
)

var cmpOpNames = [...]string{"eq", "ne", "lt", "le", "gt", "ge"}

func (op CmpOp) String() string { return cmpOpNames[op] }

// ParseCmpOp resolves a printed comparison mnemonic
func ParseCmpOp(name string) (CmpOp, bool) {
	for i, n := range cmpOpNames {
		if n == name {
			return CmpOp(i), true
		}
	}
	return 0, false
}

// Flip returns the relation that holds when the operands are swapped
func (op CmpOp) Flip() CmpOp {
	switch op {
	case Lt:
		return Gt
	case Le:
		return Ge
	case Gt:
		return Lt
	case Ge:
		return Le
	}
	return op
}

// EvalBinop computes l op r in type t. It reports false when the result
// is undefined or the operator does not apply to t, such as a division
// by zero or a bitwise operation on floats.
func EvalBinop(op BinaryOp, t Type, l, r Scalar) (Scalar, bool) {
	l, r = Convert(l, t), Convert(r, t)
	if t.IsFloat() {
		var v float64
		switch op {
		case Add:
			v = l.Float + r.Float
		case Sub:
			v = l.Float - r.Float
		case Mul:
			v = l.Float * r.Float
		case Div:
			v = l.Float / r.Float
		default:
			return Scalar{}, false
		}
		return FloatScalar(t, v), true
	}
	if !t.IsInteger() {
		return Scalar{}, false
	}
	switch op {
	case Add:
		return IntScalar(t, l.Int+r.Int), true
	case Sub:
		return IntScalar(t, l.Int-r.Int), true
	case Mul:
		return IntScalar(t, l.Int*r.Int), true
	case BinAnd:
		return IntScalar(t, l.Int&r.Int), true
	case BinOr:
		return IntScalar(t, l.Int|r.Int), true
	case BinXor:
		return IntScalar(t, l.Int^r.Int), true
	}
	if r.Int == 0 {
		return Scalar{}, false
	}
	if t.IsSigned() {
		if op == Div {
			return IntScalar(t, l.Int/r.Int), true
		}
		return IntScalar(t, l.Int%r.Int), true
	}
	if op == Div {
		return IntScalar(t, int64(l.Uint()/r.Uint())), true
	}
	return IntScalar(t, int64(l.Uint()%r.Uint())), true
}

// EvalUnop computes op v in type t
func EvalUnop(op UnaryOp, t Type, v Scalar) (Scalar, bool) {
	v = Convert(v, t)
	switch {
	case t.IsFloat():
		if op != Neg {
			return Scalar{}, false
		}
		return FloatScalar(t, -v.Float), true
	case t.IsInteger():
		if op == Neg {
			return IntScalar(t, -v.Int), true
		}
		return IntScalar(t, ^v.Int), true
	}
	return Scalar{}, false
}

// EvalShift computes l shifted by r bits in type t. The shift amount is
// taken modulo the width of t.
func EvalShift(op ShiftOp, t Type, l, r Scalar) (Scalar, bool) {
	if !t.IsInteger() || r.Type.IsFloat() {
		return Scalar{}, false
	}
	l = Convert(l, t)
	amount := r.Uint() & (t.Size()*8 - 1)
	if op == ShiftLeft {
		return IntScalar(t, l.Int<<amount), true
	}
	if t.IsSigned() {
		return IntScalar(t, l.Int>>amount), true
	}
	return IntScalar(t, int64(l.Uint()>>amount)), true
}

// EvalCompare tests l op r in type t
func EvalCompare(op CmpOp, t Type, l, r Scalar) bool {
	l, r = Convert(l, t), Convert(r, t)
	var c int
	switch {
	case t.IsFloat():
		if math.IsNaN(l.Float) || math.IsNaN(r.Float) {
			return op == Ne
		}
		c = compareOrdered(l.Float, r.Float)
	case t.IsSigned():
		c = compareOrdered(l.Int, r.Int)
	default:
		c = compareOrdered(l.Uint(), r.Uint())
	}
	switch op {
	case Eq:
		return c == 0
	case Ne:
		return c != 0
	case Lt:
		return c < 0
	case Le:
		return c <= 0
	case Gt:
		return c > 0
	default:
		return c >= 0
	}
}

func compareOrdered[T int64 | uint64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// BoolScalar is the i32 result of a comparison
func BoolScalar(b bool) Scalar {
	if b {
		return IntScalar(I32, 1)
	}
	return IntScalar(I32, 0)
}
