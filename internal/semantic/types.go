package semantic

import (
	"calyx/internal/errors"
	"calyx/internal/ir"
)

// analyzeTypes checks that the operation of d is defined on its operand type
func (a *Analyzer) analyzeTypes(pos ir.Pos, d ir.Directive) {
	bad := func(op string, t ir.Type) {
		a.addCompilerError(errors.InvalidOperandType(op, t.String(), a.at(pos)))
	}

	switch d := d.(type) {
	case *ir.Imm:
		if !d.Value.Type.IsArithmetic() && d.Value.Type != ir.Pointer {
			bad("imm", d.Value.Type)
		}
	case *ir.Cast:
		if !registerType(d.To) {
			bad("cast", d.To)
		} else if !registerType(d.From.Upcast()) {
			bad("cast", d.From)
		}
	case *ir.Binop:
		switch {
		case !d.Type.IsArithmetic():
			bad(d.Op.String(), d.Type)
		case d.Type.IsFloat() && !floatBinop(d.Op):
			bad(d.Op.String(), d.Type)
		}
	case *ir.Unop:
		switch {
		case !d.Type.IsArithmetic():
			bad(d.Op.String(), d.Type)
		case d.Type.IsFloat() && d.Op == ir.BinNot:
			bad(d.Op.String(), d.Type)
		}
	case *ir.Shift:
		if !d.Type.IsIntegral() {
			bad(d.Op.String(), d.Type)
		}
	case *ir.Compare:
		if !registerType(d.Type) {
			bad(d.Op.String(), d.Type)
		}
	case *ir.BranchCompare:
		if !registerType(d.Type) {
			bad(d.Op.String(), d.Type)
		}
	case *ir.AddToPointer:
		if !d.Type.IsIntegral() {
			bad("ptradd", d.Type)
		}
	case *ir.LoadLocal:
		a.memoryType("load", d.Type, pos)
	case *ir.StoreLocal:
		a.memoryType("store", d.Type, pos)
	case *ir.LoadGlobal:
		a.memoryType("lglob", d.Type, pos)
	case *ir.StoreGlobal:
		a.memoryType("sglob", d.Type, pos)
	case *ir.LoadFromPointer:
		a.memoryType("deref", d.Type, pos)
	case *ir.StoreToPointer:
		a.memoryType("sptr", d.Type, pos)
	case *ir.Call:
		if d.Type != ir.Void && !registerType(d.Type) {
			bad("call", d.Type)
		}
	case *ir.CallLabel:
		if d.Type != ir.Void && !registerType(d.Type) {
			bad("call", d.Type)
		}
	case *ir.Return:
		if d.Type != ir.Void && !registerType(d.Type) {
			bad("ret", d.Type)
		}
	}
}

func (a *Analyzer) memoryType(op string, t ir.Type, pos ir.Pos) {
	if t == ir.Void || t == ir.Struct {
		a.addCompilerError(errors.InvalidOperandType(op, t.String(), a.at(pos)))
	}
}

// registerType reports whether values of t can live in a register
func registerType(t ir.Type) bool {
	return t.IsArithmetic() || t == ir.Pointer
}

func floatBinop(op ir.BinaryOp) bool {
	switch op {
	case ir.Add, ir.Sub, ir.Mul, ir.Div:
		return true
	}
	return false
}
