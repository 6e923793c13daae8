package ir

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// VarIndex identifies an IR value or a stack local within a function.
// Values and locals live in separate namespaces; 0 is never a valid id.
type VarIndex uint32

// BlockLabel identifies a basic block within a function.
type BlockLabel uint32

const (
	// InvalidBlock is the sentinel block label
	InvalidBlock BlockLabel = 0
	// EntryBlock is the reserved label of every function's first block
	EntryBlock BlockLabel = 1
)

// Pos locates a directive inside a function
type Pos struct {
	Block BlockLabel
	Index int
}

func (p Pos) String() string {
	return fmt.Sprintf("L%d:%d", p.Block, p.Index)
}

// Type is the scalar operand type a directive is parameterized by
type Type uint8

const (
	Void Type = iota
	I8
	U8
	I16
	U16
	I32
	U32
	I64
	U64
	Float
	Double
	Pointer
	Struct
)

var typeNames = [...]string{
	Void:    "void",
	I8:      "i8",
	U8:      "u8",
	I16:     "i16",
	U16:     "u16",
	I32:     "i32",
	U32:     "u32",
	I64:     "i64",
	U64:     "u64",
	Float:   "float",
	Double:  "double",
	Pointer: "ptr",
	Struct:  "struct",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// ParseType resolves a type name as printed by Type.String
func ParseType(name string) (Type, bool) {
	for t, n := range typeNames {
		if n == name {
			return Type(t), true
		}
	}
	return Void, false
}

// IsSmall reports whether values of this type only exist in memory.
// Loading them yields a value of the Upcast type.
func (t Type) IsSmall() bool {
	return t == I8 || t == U8 || t == I16 || t == U16
}

// IsIntegral reports whether t is a register-width integer type
func (t Type) IsIntegral() bool {
	return t == I32 || t == U32 || t == I64 || t == U64
}

// IsInteger reports whether t is any integer type, small or not
func (t Type) IsInteger() bool {
	return t.IsSmall() || t.IsIntegral()
}

func (t Type) IsFloat() bool {
	return t == Float || t == Double
}

// IsArithmetic reports whether binary arithmetic is defined on t
func (t Type) IsArithmetic() bool {
	return t.IsIntegral() || t.IsFloat()
}

func (t Type) IsSigned() bool {
	return t == I8 || t == I16 || t == I32 || t == I64
}

// Size returns the number of bytes a value of type t occupies in memory.
// Struct sizes are carried by the owning local or global instead.
func (t Type) Size() uint64 {
	switch t {
	case I8, U8:
		return 1
	case I16, U16:
		return 2
	case I32, U32, Float:
		return 4
	case I64, U64, Double, Pointer:
		return 8
	default:
		return 0
	}
}

// Upcast returns the register type a small type is widened to on load
func (t Type) Upcast() Type {
	switch t {
	case I8, I16:
		return I32
	case U8, U16:
		return U32
	default:
		return t
	}
}

// Scalar is an immediate value. Int holds the two's complement bits of
// integer and pointer values, normalized to the width of Type.
type Scalar struct {
	Type  Type
	Int   int64
	Float float64
}

// IntScalar builds an integer or pointer immediate, wrapping v to the width of t
func IntScalar(t Type, v int64) Scalar {
	return Scalar{Type: t, Int: normalizeInt(t, v)}
}

// FloatScalar builds a float or double immediate
func FloatScalar(t Type, v float64) Scalar {
	if t == Float {
		v = float64(float32(v))
	}
	return Scalar{Type: t, Float: v}
}

func normalizeInt(t Type, v int64) int64 {
	switch t {
	case I8:
		return int64(int8(v))
	case U8:
		return int64(uint8(v))
	case I16:
		return int64(int16(v))
	case U16:
		return int64(uint16(v))
	case I32:
		return int64(int32(v))
	case U32:
		return int64(uint32(v))
	default:
		return v
	}
}

// Uint returns the value reinterpreted as unsigned bits
func (s Scalar) Uint() uint64 {
	return uint64(s.Int)
}

// IsZero reports whether the scalar compares equal to zero
func (s Scalar) IsZero() bool {
	if s.Type.IsFloat() {
		return s.Float == 0
	}
	return s.Int == 0
}

func (s Scalar) String() string {
	switch {
	case s.Type.IsFloat():
		text := strconv.FormatFloat(s.Float, 'g', -1, 64)
		if !strings.ContainsAny(text, ".eEnN") {
			text += ".0"
		}
		return text
	case s.Type == U64 || s.Type == Pointer:
		return strconv.FormatUint(s.Uint(), 10)
	default:
		return strconv.FormatInt(s.Int, 10)
	}
}

// ParseScalar parses an immediate literal as a value of type t
func ParseScalar(t Type, text string) (Scalar, error) {
	if t.IsFloat() {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Scalar{}, fmt.Errorf("invalid %s literal %q", t, text)
		}
		return FloatScalar(t, f), nil
	}
	if t == Void || t == Struct {
		return Scalar{}, fmt.Errorf("type %s has no immediate values", t)
	}
	if body := strings.TrimPrefix(text, "-"); !strings.HasPrefix(body, "0x") && strings.ContainsAny(body, ".eE") {
		return Scalar{}, fmt.Errorf("invalid %s literal %q", t, text)
	}
	if strings.HasPrefix(text, "-") {
		v, err := strconv.ParseInt(text, 0, 64)
		if err != nil {
			return Scalar{}, fmt.Errorf("invalid %s literal %q", t, text)
		}
		return IntScalar(t, v), nil
	}
	u, err := strconv.ParseUint(text, 0, 64)
	if err != nil {
		return Scalar{}, fmt.Errorf("invalid %s literal %q", t, text)
	}
	return IntScalar(t, int64(u)), nil
}

// Convert reinterprets s as a value of type to, with C conversion semantics
func Convert(s Scalar, to Type) Scalar {
	if s.Type == to {
		return s
	}
	switch {
	case to.IsFloat():
		switch {
		case s.Type.IsFloat():
			return FloatScalar(to, s.Float)
		case s.Type.IsSigned():
			return FloatScalar(to, float64(s.Int))
		default:
			return FloatScalar(to, float64(s.Uint()))
		}
	case s.Type.IsFloat():
		if math.IsNaN(s.Float) {
			return IntScalar(to, 0)
		}
		if to.IsSigned() {
			return IntScalar(to, int64(s.Float))
		}
		return IntScalar(to, int64(uint64(s.Float)))
	default:
		return IntScalar(to, s.Int)
	}
}

// Operand is either a reference to an IR value or an immediate
type Operand struct {
	Var   VarIndex
	Value Scalar
	IsImm bool
}

func VarOperand(v VarIndex) Operand {
	return Operand{Var: v}
}

func ImmOperand(s Scalar) Operand {
	return Operand{Value: s, IsImm: true}
}

func (o Operand) String() string {
	if o.IsImm {
		return o.Value.String()
	}
	return fmt.Sprintf("v%d", o.Var)
}

// Local describes a stack slot, distinct from IR values
type Local struct {
	Index    VarIndex
	Type     Type
	Size     uint64
	IsArg    bool
	ArgIndex int
}

// Global is a statically allocated symbol. It is initialized either by
// Value, by the address of Label plus Offset, or zero filled.
type Global struct {
	Type   Type
	Size   uint64
	Value  *Scalar
	Label  string
	Offset int64
}

// ByteSize returns the storage a global needs
func (g *Global) ByteSize() uint64 {
	if g.Size > 0 {
		return g.Size
	}
	return g.Type.Size()
}
