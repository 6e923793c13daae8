package regalloc

import (
	"fmt"

	"calyx/internal/errors"
	"calyx/internal/ir"
)

// RegisterClass is a set of interchangeable physical registers
type RegisterClass uint32

const (
	GPR RegisterClass = iota // general purpose: integers and pointers
	FPR                      // floating point
)

func (c RegisterClass) String() string {
	switch c {
	case GPR:
		return "gpr"
	case FPR:
		return "fpr"
	}
	return fmt.Sprintf("class(%d)", uint32(c))
}

// Register names one physical register
type Register struct {
	Class RegisterClass
	Index uint32
}

// RegisterSpace describes the registers of a target as seen by the
// allocator
type RegisterSpace interface {
	// RegisterType classifies a variable
	RegisterType(gv GeneralizedVar) RegisterClass
	// RegisterTypePopulation is the number of registers of a class
	RegisterTypePopulation(class RegisterClass) int
	// ForcedRegister reports a register the target requires for gv
	ForcedRegister(gv GeneralizedVar) (Register, bool)
}

// ClassOf maps a value type to its register class
func ClassOf(t ir.Type) (RegisterClass, error) {
	switch {
	case t.IsInteger(), t == ir.Pointer:
		return GPR, nil
	case t.IsFloat():
		return FPR, nil
	case t == ir.Struct:
		return 0, errors.Unimplemented("struct values in registers")
	}
	return 0, fmt.Errorf("type %s has no register class", t)
}

// DefaultPopulation is the register count per class of ExampleRegSpace
const DefaultPopulation = 16

// ExampleRegSpace puts integers and pointers in general purpose
// registers and floats in floating point registers. It forces nothing.
type ExampleRegSpace struct {
	classes     map[GeneralizedVar]RegisterClass
	populations map[RegisterClass]int
}

// NewExampleRegSpace classifies every value and local of fn. gpr and fpr
// set the register counts; non-positive counts select DefaultPopulation.
func NewExampleRegSpace(fn *ir.Function, gpr, fpr int) (*ExampleRegSpace, error) {
	if gpr <= 0 {
		gpr = DefaultPopulation
	}
	if fpr <= 0 {
		fpr = DefaultPopulation
	}
	rs := &ExampleRegSpace{
		classes:     make(map[GeneralizedVar]RegisterClass),
		populations: map[RegisterClass]int{GPR: gpr, FPR: fpr},
	}

	for _, c := range fn.SortedLocals() {
		if err := rs.classify(Local(c), fn.Locals[c].Type); err != nil {
			return nil, fmt.Errorf("@%s local c%d: %w", fn.Symbol, c, err)
		}
	}
	for _, label := range fn.SortedBlocks() {
		for _, d := range fn.Blocks[label].Directives {
			e, ok := d.(ir.Expr)
			if !ok || e.Def() == 0 {
				continue
			}
			if err := rs.classify(Var(e.Def()), e.ResultType()); err != nil {
				return nil, fmt.Errorf("@%s v%d: %w", fn.Symbol, e.Def(), err)
			}
		}
	}
	return rs, nil
}

func (rs *ExampleRegSpace) classify(gv GeneralizedVar, t ir.Type) error {
	class, err := ClassOf(t)
	if err != nil {
		return err
	}
	rs.classes[gv] = class
	return nil
}

func (rs *ExampleRegSpace) RegisterType(gv GeneralizedVar) RegisterClass {
	class, ok := rs.classes[gv]
	if !ok {
		errors.Invariant("%s was not classified", gv)
	}
	return class
}

func (rs *ExampleRegSpace) RegisterTypePopulation(class RegisterClass) int {
	n, ok := rs.populations[class]
	if !ok {
		errors.Invariant("unknown register class %s", class)
	}
	return n
}

func (rs *ExampleRegSpace) ForcedRegister(GeneralizedVar) (Register, bool) {
	return Register{}, false
}
