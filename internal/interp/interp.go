// Package interp executes IR programs directly. It records the observable
// behavior of a run as a Trace, which lets an optimized program be checked
// against the program it was produced from.
package interp

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/tliron/commonlog"

	"calyx/internal/ir"
)

var log = commonlog.GetLogger("calyx.interp")

const (
	DefaultMaxSteps = 1_000_000
	DefaultMaxDepth = 256
)

// ErrStepLimit is returned when a run exceeds its step budget
var ErrStepLimit = stderrors.New("step limit exceeded")

// Options bounds a run. Zero values select the defaults.
type Options struct {
	MaxSteps int
	MaxDepth int
}

// EventKind distinguishes the entries of a Trace
type EventKind int

const (
	// EventStore is a store into global memory
	EventStore EventKind = iota
	// EventCall is a call to a function the program does not define
	EventCall
)

// Event is one observable effect. Values are rendered so that pointers
// into the stack name the local they point to instead of an address,
// which depends on the frame layout.
type Event struct {
	Kind EventKind
	// Symbol is the global stored to, or the external function called
	Symbol string
	Offset uint64
	Type   ir.Type
	Value  string
	Args   []string
}

func (e Event) String() string {
	if e.Kind == EventCall {
		return fmt.Sprintf("call @%s(%s)", e.Symbol, strings.Join(e.Args, ", "))
	}
	return fmt.Sprintf("store %s @%s+%d = %s", e.Type, e.Symbol, e.Offset, e.Value)
}

// Trace is everything a run did that is visible from outside
type Trace struct {
	Events []Event
	Result ir.Scalar
	Steps  int
}

func (t *Trace) String() string {
	var sb strings.Builder
	for _, e := range t.Events {
		sb.WriteString(e.String())
		sb.WriteString("\n")
	}
	if t.Result.Type == ir.Void {
		sb.WriteString("return void\n")
	} else {
		fmt.Fprintf(&sb, "return %s %s\n", t.Result.Type, t.Result)
	}
	return sb.String()
}

// Equivalent reports whether two traces show the same behavior. Step
// counts are ignored.
func (t *Trace) Equivalent(o *Trace) bool {
	return t.String() == o.String()
}

// RuntimeError locates a failure inside the executed program
type RuntimeError struct {
	Symbol string
	Pos    ir.Pos
	Err    error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("@%s at %s: %s", e.Symbol, e.Pos, e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// Machine runs the functions of one program
type Machine struct {
	program *ir.Program
	opts    Options
	mem     memory
	// globals maps a global or string symbol to its address
	globals map[string]uint64
	sizes   map[string]uint64
	trace   *Trace
	frames  []*frame
}

// New lays out the globals and string literals of p
func New(p *ir.Program, opts Options) (*Machine, error) {
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	m := &Machine{
		program: p,
		opts:    opts,
		globals: make(map[string]uint64),
		sizes:   make(map[string]uint64),
	}

	for i, s := range p.Strings {
		addr := m.mem.alloc(uint64(len(s)) + 1)
		b, _ := m.mem.slice(addr, uint64(len(s)))
		copy(b, s)
		m.globals[ir.StringSymbol(i)] = addr
		m.sizes[ir.StringSymbol(i)] = uint64(len(s)) + 1
	}
	for _, name := range p.SortedGlobals() {
		m.globals[name] = m.mem.alloc(p.Globals[name].ByteSize())
		m.sizes[name] = p.Globals[name].ByteSize()
	}
	m.mem.globalsEnd = memoryBase + uint64(len(m.mem.bytes))

	for _, name := range p.SortedGlobals() {
		g := p.Globals[name]
		var err error
		switch {
		case g.Value != nil:
			err = m.mem.store(m.globals[name], g.Type, *g.Value)
		case g.Label != "":
			target := m.symbolAddress(g.Label)
			err = m.mem.store(m.globals[name], ir.Pointer, ir.IntScalar(ir.Pointer, int64(target)+g.Offset))
		}
		if err != nil {
			return nil, fmt.Errorf("initialize @%s: %w", name, err)
		}
	}
	return m, nil
}

// Run executes symbol with the given arguments on a fresh machine
func Run(p *ir.Program, symbol string, opts Options, args ...ir.Scalar) (*Trace, error) {
	m, err := New(p, opts)
	if err != nil {
		return nil, err
	}
	return m.Run(symbol, args...)
}

// Run executes the function symbol. Global memory persists across runs on
// the same machine; the trace covers this run only.
func (m *Machine) Run(symbol string, args ...ir.Scalar) (*Trace, error) {
	fn, ok := m.program.Functions[symbol]
	if !ok {
		return nil, fmt.Errorf("no function @%s", symbol)
	}
	m.trace = &Trace{}
	result, err := m.call(fn, args)
	if err != nil {
		return m.trace, err
	}
	m.trace.Result = result
	log.Debugf("@%s returned %s after %d steps", symbol, result, m.trace.Steps)
	return m.trace, nil
}

func (m *Machine) symbolAddress(symbol string) uint64 {
	if addr, ok := m.globals[symbol]; ok {
		return addr
	}
	return functionAddress(symbol)
}

// globalAt names the global containing addr
func (m *Machine) globalAt(addr uint64) (string, uint64) {
	for name, base := range m.globals {
		if addr >= base && addr < base+m.sizes[name] {
			return name, addr - base
		}
	}
	return fmt.Sprintf("%#x", addr), 0
}

// render formats a value for a trace
func (m *Machine) render(s ir.Scalar) string {
	if s.Type != ir.Pointer {
		return fmt.Sprintf("%s %s", s.Type, s)
	}
	addr := s.Uint()
	if m.mem.isGlobal(addr) {
		name, offset := m.globalAt(addr)
		return fmt.Sprintf("ptr &@%s+%d", name, offset)
	}
	for depth := len(m.frames) - 1; depth >= 0; depth-- {
		f := m.frames[depth]
		for c, base := range f.locals {
			l := f.fn.Locals[c]
			if addr >= base && addr < base+max(l.Size, l.Type.Size(), 1) {
				return fmt.Sprintf("ptr &%d:c%d+%d", depth, c, addr-base)
			}
		}
	}
	return fmt.Sprintf("ptr %s", s)
}

// frame is one activation of a function
type frame struct {
	fn     *ir.Function
	values map[ir.VarIndex]ir.Scalar
	locals map[ir.VarIndex]uint64
	pos    ir.Pos
}

func (f *frame) fail(err error) error {
	var re *RuntimeError
	if stderrors.As(err, &re) {
		return err
	}
	return &RuntimeError{Symbol: f.fn.Symbol, Pos: f.pos, Err: err}
}

func (f *frame) value(v ir.VarIndex) (ir.Scalar, error) {
	s, ok := f.values[v]
	if !ok {
		return ir.Scalar{}, fmt.Errorf("v%d used before it is defined", v)
	}
	return s, nil
}

func (f *frame) operand(op ir.Operand) (ir.Scalar, error) {
	if op.IsImm {
		return op.Value, nil
	}
	return f.value(op.Var)
}

func (f *frame) local(c ir.VarIndex) (uint64, error) {
	addr, ok := f.locals[c]
	if !ok {
		return 0, fmt.Errorf("undeclared local c%d", c)
	}
	return addr, nil
}

func (m *Machine) call(fn *ir.Function, args []ir.Scalar) (ir.Scalar, error) {
	if len(m.frames) >= m.opts.MaxDepth {
		return ir.Scalar{}, fmt.Errorf("call depth limit of %d exceeded calling @%s", m.opts.MaxDepth, fn.Symbol)
	}
	f := &frame{
		fn:     fn,
		values: make(map[ir.VarIndex]ir.Scalar),
		locals: make(map[ir.VarIndex]uint64, len(fn.Locals)),
	}
	m.frames = append(m.frames, f)
	mark := m.mem.mark()
	defer func() {
		m.frames = m.frames[:len(m.frames)-1]
		m.mem.release(mark)
	}()

	for _, c := range fn.SortedLocals() {
		l := fn.Locals[c]
		f.locals[c] = m.mem.alloc(max(l.Size, l.Type.Size()))
	}
	for _, l := range fn.Args() {
		if l.ArgIndex >= len(args) || l.Type == ir.Struct {
			continue
		}
		if err := m.mem.store(f.locals[l.Index], l.Type, args[l.ArgIndex]); err != nil {
			return ir.Scalar{}, f.fail(err)
		}
	}

	label := ir.EntryBlock
	for {
		block, ok := fn.Blocks[label]
		if !ok {
			return ir.Scalar{}, f.fail(fmt.Errorf("jump to missing block L%d", label))
		}
		next, result, done, err := m.runBlock(f, label, block)
		if err != nil {
			return ir.Scalar{}, f.fail(err)
		}
		if done {
			return result, nil
		}
		label = next
	}
}

func (m *Machine) runBlock(f *frame, label ir.BlockLabel, block *ir.BasicBlock) (ir.BlockLabel, ir.Scalar, bool, error) {
	for i, d := range block.Directives {
		f.pos = ir.Pos{Block: label, Index: i}
		m.trace.Steps++
		if m.trace.Steps > m.opts.MaxSteps {
			return 0, ir.Scalar{}, false, ErrStepLimit
		}

		switch d := d.(type) {
		case *ir.UnconditionalBranch:
			return d.Dest, ir.Scalar{}, false, nil
		case *ir.BranchCompare:
			next, err := m.branchCompare(f, d)
			return next, ir.Scalar{}, false, err
		case *ir.Select:
			next, err := m.selectBranch(f, d)
			return next, ir.Scalar{}, false, err
		case *ir.Return:
			if d.Type == ir.Void {
				return 0, ir.Scalar{}, true, nil
			}
			v, err := f.operand(d.Value)
			return 0, ir.Convert(v, d.Type), true, err
		}
		if err := m.exec(f, d); err != nil {
			return 0, ir.Scalar{}, false, err
		}
	}
	return 0, ir.Scalar{}, false, fmt.Errorf("block L%d ends without a terminator", label)
}

func (m *Machine) branchCompare(f *frame, d *ir.BranchCompare) (ir.BlockLabel, error) {
	l, err := f.value(d.Left)
	if err != nil {
		return 0, err
	}
	r, err := f.operand(d.Right)
	if err != nil {
		return 0, err
	}
	if ir.EvalCompare(d.Op, d.Type, ir.Convert(l, d.Type), ir.Convert(r, d.Type)) {
		return d.True, nil
	}
	return d.False, nil
}

func (m *Machine) selectBranch(f *frame, d *ir.Select) (ir.BlockLabel, error) {
	v, err := f.value(d.Value)
	if err != nil {
		return 0, err
	}
	key := ir.Convert(v, ir.I64).Int
	if dest, ok := d.Table[key]; ok {
		return dest, nil
	}
	if d.Default == ir.InvalidBlock {
		return 0, fmt.Errorf("select value %d matches no case and there is no default", key)
	}
	return d.Default, nil
}
