package interp

import (
	"fmt"

	"calyx/internal/errors"
	"calyx/internal/ir"
)

// exec runs a directive that does not transfer control
func (m *Machine) exec(f *frame, d ir.Directive) error {
	switch d := d.(type) {
	case ir.NoOp:
		return nil
	case *ir.Imm:
		f.values[d.Result] = d.Value
	case *ir.Cast:
		v, err := f.operand(d.Value)
		if err != nil {
			return err
		}
		f.values[d.Result] = ir.Convert(ir.Convert(v, d.From), d.To)
	case *ir.Binop:
		l, err := f.value(d.Left)
		if err != nil {
			return err
		}
		r, err := f.operand(d.Right)
		if err != nil {
			return err
		}
		v, ok := ir.EvalBinop(d.Op, d.Type, ir.Convert(l, d.Type), ir.Convert(r, d.Type))
		if !ok {
			return fmt.Errorf("%s %s of %s and %s is undefined", d.Op, d.Type, l, r)
		}
		f.values[d.Result] = v
	case *ir.Unop:
		x, err := f.operand(d.Value)
		if err != nil {
			return err
		}
		v, ok := ir.EvalUnop(d.Op, d.Type, ir.Convert(x, d.Type))
		if !ok {
			return fmt.Errorf("%s %s of %s is undefined", d.Op, d.Type, x)
		}
		f.values[d.Result] = v
	case *ir.Shift:
		l, err := f.operand(d.Left)
		if err != nil {
			return err
		}
		r, err := f.operand(d.Right)
		if err != nil {
			return err
		}
		v, ok := ir.EvalShift(d.Op, d.Type, ir.Convert(l, d.Type), ir.Convert(r, ir.U32))
		if !ok {
			return fmt.Errorf("%s %s of %s by %s is undefined", d.Op, d.Type, l, r)
		}
		f.values[d.Result] = v
	case *ir.Compare:
		l, err := f.value(d.Left)
		if err != nil {
			return err
		}
		r, err := f.operand(d.Right)
		if err != nil {
			return err
		}
		f.values[d.Result] = ir.BoolScalar(ir.EvalCompare(d.Op, d.Type, ir.Convert(l, d.Type), ir.Convert(r, d.Type)))
	case *ir.AddToPointer:
		p, err := f.operand(d.Ptr)
		if err != nil {
			return err
		}
		r, err := f.operand(d.Right)
		if err != nil {
			return err
		}
		offset := ir.Convert(ir.Convert(r, d.Type), ir.I64).Int * int64(d.Stride)
		f.values[d.Result] = ir.IntScalar(ir.Pointer, ir.Convert(p, ir.Pointer).Int+offset)
	case *ir.LoadLocal:
		addr, err := f.local(d.Local)
		if err != nil {
			return err
		}
		return m.load(f, d.Result, addr+d.Offset, d.Type)
	case *ir.LoadLocalAddr:
		addr, err := f.local(d.Local)
		if err != nil {
			return err
		}
		f.values[d.Result] = ir.IntScalar(ir.Pointer, int64(addr))
	case *ir.StoreLocal:
		addr, err := f.local(d.Local)
		if err != nil {
			return err
		}
		return m.store(f, addr+d.Offset, d.Type, d.Value)
	case *ir.LoadGlobal:
		addr, err := m.global(d.Symbol)
		if err != nil {
			return err
		}
		return m.load(f, d.Result, addr+d.Offset, d.Type)
	case *ir.LoadGlobalAddr:
		f.values[d.Result] = ir.IntScalar(ir.Pointer, int64(m.symbolAddress(d.Symbol)))
	case *ir.StoreGlobal:
		addr, err := m.global(d.Symbol)
		if err != nil {
			return err
		}
		return m.store(f, addr+d.Offset, d.Type, d.Value)
	case *ir.LoadFromPointer:
		p, err := f.value(d.Ptr)
		if err != nil {
			return err
		}
		return m.load(f, d.Result, p.Uint()+d.Offset, d.Type)
	case *ir.StoreToPointer:
		p, err := f.value(d.Ptr)
		if err != nil {
			return err
		}
		return m.store(f, p.Uint()+d.Offset, d.Type, d.Value)
	case *ir.Call:
		p, err := f.value(d.Fn)
		if err != nil {
			return err
		}
		symbol, ok := m.functionAt(p.Uint())
		if !ok {
			return fmt.Errorf("call through %s, which is not a function", m.render(p))
		}
		return m.invoke(f, d.Result, d.Type, symbol, d.Args, d.VarArgs)
	case *ir.CallLabel:
		return m.invoke(f, d.Result, d.Type, d.Label, d.Args, d.VarArgs)
	default:
		errors.Invariant("interpreter cannot execute %T", d)
	}
	return nil
}

func (m *Machine) global(symbol string) (uint64, error) {
	addr, ok := m.globals[symbol]
	if !ok {
		return 0, fmt.Errorf("unknown global @%s", symbol)
	}
	return addr, nil
}

func (m *Machine) load(f *frame, result ir.VarIndex, addr uint64, t ir.Type) error {
	v, err := m.mem.load(addr, t)
	if err != nil {
		return err
	}
	f.values[result] = ir.Convert(v, t.Upcast())
	return nil
}

func (m *Machine) store(f *frame, addr uint64, t ir.Type, op ir.Operand) error {
	v, err := f.operand(op)
	if err != nil {
		return err
	}
	if err := m.mem.store(addr, t, v); err != nil {
		return err
	}
	if m.mem.isGlobal(addr) {
		name, offset := m.globalAt(addr)
		m.trace.Events = append(m.trace.Events, Event{
			Kind:   EventStore,
			Symbol: name,
			Offset: offset,
			Type:   t,
			Value:  m.render(ir.Convert(v, t)),
		})
	}
	return nil
}

// functionAt finds the function symbol whose address is addr, among the
// defined functions and every symbol the program mentions
func (m *Machine) functionAt(addr uint64) (string, bool) {
	for name := range m.program.Functions {
		if functionAddress(name) == addr {
			return name, true
		}
	}
	for _, fn := range m.program.Functions {
		for _, b := range fn.Blocks {
			for _, d := range b.Directives {
				if g, ok := d.(*ir.LoadGlobalAddr); ok && functionAddress(g.Symbol) == addr {
					return g.Symbol, true
				}
			}
		}
	}
	for _, g := range m.program.Globals {
		if g.Label != "" && functionAddress(g.Label) == addr {
			return g.Label, true
		}
	}
	return "", false
}

// invoke calls a defined function, or records a call to an external one
// and yields zero
func (m *Machine) invoke(f *frame, result ir.VarIndex, t ir.Type, symbol string, args, varArgs []ir.VarIndex) error {
	values := make([]ir.Scalar, 0, len(args)+len(varArgs))
	for _, a := range append(append([]ir.VarIndex{}, args...), varArgs...) {
		v, err := f.value(a)
		if err != nil {
			return err
		}
		values = append(values, v)
	}

	var ret ir.Scalar
	if callee, ok := m.program.Functions[symbol]; ok {
		v, err := m.call(callee, values)
		if err != nil {
			return err
		}
		ret = v
	} else {
		rendered := make([]string, len(values))
		for i, v := range values {
			rendered[i] = m.render(v)
		}
		m.trace.Events = append(m.trace.Events, Event{Kind: EventCall, Symbol: symbol, Args: rendered})
		ret = ir.Scalar{Type: t}
	}

	if result != 0 {
		f.values[result] = ir.Convert(ret, t)
	}
	return nil
}
