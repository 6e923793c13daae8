// Package parser reads the textual form of the IR into an ir.Program.
package parser

import (
	stderrors "errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"calyx/grammar"
	"calyx/internal/errors"
	"calyx/internal/ir"
)

func ParseFile(path string) (*ParseResult, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return ParseSource(path, string(source)), nil
}

// ParseSource parses and converts source. Conversion continues past
// errors so that every problem in the file is reported at once.
func ParseSource(path, source string) *ParseResult {
	ast, err := grammar.ParseString(path, source)
	if err != nil {
		return &ParseResult{SyntaxError: err, Source: newSourceMap()}
	}
	return Convert(ast)
}

// Convert builds a program from a syntax tree
func Convert(ast *grammar.Program) *ParseResult {
	c := &converter{
		program: ir.NewProgram(),
		source:  newSourceMap(),
	}
	declared := make(map[int]errors.Position)
	for _, item := range ast.Items {
		switch {
		case item.String != nil:
			c.stringDecl(item.String, declared)
		case item.Global != nil:
			c.global(item.Global)
		case item.Function != nil:
			c.function(item.Function)
		}
	}
	for i := range c.program.Strings {
		if _, ok := declared[i]; !ok {
			c.errorf(errors.ErrorInvalidLiteral, errors.Position{}, 0, "string %d is missing; strings must be numbered from 0", i)
		}
	}
	return &ParseResult{Program: c.program, Source: c.source, ParseErrors: c.errors}
}

type converter struct {
	program *ir.Program
	source  *SourceMap
	errors  []ParseError

	// per function
	fn *ir.Function
	fs *FunctionSource
}

func position(p lexer.Position) errors.Position {
	return errors.Position{Filename: p.Filename, Offset: p.Offset, Line: p.Line, Column: p.Column}
}

func span(from, to lexer.Position) int {
	if to.Offset > from.Offset {
		return to.Offset - from.Offset
	}
	return 1
}

func (c *converter) errorf(code string, pos errors.Position, length int, format string, args ...any) {
	c.errors = append(c.errors, ParseError{
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Position: pos,
		Length:   length,
	})
}

func syntaxDiagnostic(err error) errors.CompilerError {
	var pe participle.Error
	if !stderrors.As(err, &pe) {
		return errors.NewSemanticError(errors.ErrorSyntax, err.Error(), errors.Position{}).Build()
	}
	return errors.NewSemanticError(errors.ErrorSyntax, pe.Message(), position(pe.Position())).Build()
}

// Names

func (c *converter) index(text, prefix string, pos errors.Position) uint32 {
	n, err := strconv.ParseUint(strings.TrimPrefix(text, prefix), 10, 32)
	if err != nil || n == 0 {
		c.errorf(errors.ErrorInvalidLiteral, pos, len(text), "invalid name %s", text)
		return 0
	}
	return uint32(n)
}

func (c *converter) value(text string, pos errors.Position) ir.VarIndex {
	return ir.VarIndex(c.index(text, "v", pos))
}

func (c *converter) values(texts []string, pos errors.Position) []ir.VarIndex {
	if len(texts) == 0 {
		return nil
	}
	out := make([]ir.VarIndex, len(texts))
	for i, t := range texts {
		out[i] = c.value(t, pos)
	}
	return out
}

func (c *converter) label(text string, pos errors.Position) ir.BlockLabel {
	return ir.BlockLabel(c.index(text, "L", pos))
}

// local resolves a local reference, which must have been declared
func (c *converter) local(text string, pos errors.Position) ir.VarIndex {
	idx := ir.VarIndex(c.index(text, "c", pos))
	if _, ok := c.fn.Locals[idx]; idx != 0 && !ok {
		e := errors.UndefinedLocal(text, pos)
		c.errorf(errors.ErrorUndefinedLocal, pos, len(text), "%s", e.Message)
	}
	return idx
}

func symbol(text string) string {
	return strings.TrimPrefix(text, "@")
}

func (c *converter) typ(name string, pos errors.Position) ir.Type {
	t, ok := ir.ParseType(name)
	if !ok {
		c.errorf(errors.ErrorUnknownType, pos, len(name), "unknown type %q", name)
	}
	return t
}

func (c *converter) unsigned(text string, pos errors.Position) uint64 {
	if text == "" {
		return 0
	}
	n, err := strconv.ParseUint(text, 0, 64)
	if err != nil {
		c.errorf(errors.ErrorInvalidLiteral, pos, len(text), "invalid unsigned number %s", text)
	}
	return n
}

func (c *converter) scalar(t ir.Type, text string, pos errors.Position) ir.Scalar {
	s, err := ir.ParseScalar(t, text)
	if err != nil {
		c.errorf(errors.ErrorInvalidLiteral, pos, len(text), "%s", err)
		return ir.Scalar{Type: t}
	}
	return s
}

// operand reads o; immediates are typed t
func (c *converter) operand(o *grammar.Operand, t ir.Type) ir.Operand {
	pos := position(o.Pos)
	if o.Var != "" {
		return ir.VarOperand(c.value(o.Var, pos))
	}
	return ir.ImmOperand(c.scalar(t, o.Literal, pos))
}

// valueOperand reads an operand that may not be an immediate
func (c *converter) valueOperand(o *grammar.Operand, what string) ir.VarIndex {
	pos := position(o.Pos)
	if o.Var == "" {
		c.errorf(errors.ErrorInvalidLiteral, pos, len(o.Literal), "%s must be a value, not the literal %s", what, o.Literal)
		return 0
	}
	return c.value(o.Var, pos)
}

// Declarations

func (c *converter) stringDecl(d *grammar.StringDecl, seen map[int]errors.Position) {
	pos := position(d.Pos)
	i := int(c.unsigned(d.Index, pos))
	if _, ok := seen[i]; ok {
		c.errorf(errors.ErrorDuplicateSymbol, pos, span(d.Pos, d.EndPos), "string %d is declared more than once", i)
		return
	}
	seen[i] = pos
	for len(c.program.Strings) <= i {
		c.program.Strings = append(c.program.Strings, "")
	}
	c.program.Strings[i] = d.Value
	c.source.Globals[ir.StringSymbol(i)] = pos
}

func (c *converter) global(d *grammar.GlobalDecl) {
	pos := position(d.Pos)
	name := symbol(d.Name)
	if _, ok := c.program.Globals[name]; ok {
		e := errors.DuplicateSymbol(name, pos)
		c.errorf(e.Code, pos, e.Length, "%s", e.Message)
		return
	}

	g := &ir.Global{Type: c.typ(d.Type, pos), Size: c.unsigned(d.Size, pos)}
	if g.Type == ir.Struct && g.Size == 0 {
		c.errorf(errors.ErrorInvalidLocal, pos, len(d.Name), "struct global %s needs a size", d.Name)
	}
	if init := d.Init; init != nil {
		ipos := position(init.Pos)
		if init.Label != "" {
			g.Label = symbol(init.Label)
			g.Offset = int64(c.unsigned(init.Offset, ipos))
		} else {
			v := c.scalar(g.Type, init.Value, ipos)
			g.Value = &v
		}
	}
	c.program.Globals[name] = g
	c.source.Globals[name] = pos
}

func (c *converter) function(d *grammar.Function) {
	pos := position(d.Pos)
	name := symbol(d.Name)
	if _, ok := c.program.Functions[name]; ok {
		e := errors.DuplicateSymbol(name, pos)
		c.errorf(e.Code, pos, e.Length, "%s", e.Message)
		return
	}

	c.fn = ir.NewFunction(name)
	c.fs = &FunctionSource{
		Position:   pos,
		Blocks:     make(map[ir.BlockLabel]errors.Position),
		Locals:     make(map[ir.VarIndex]errors.Position),
		Directives: make(map[ir.Pos]errors.Position),
		Values:     make(map[ir.VarIndex]errors.Position),
	}
	for _, l := range d.Locals {
		c.localDecl(l)
	}
	for _, b := range d.Blocks {
		c.block(b)
	}
	c.program.Functions[name] = c.fn
	c.source.Functions[name] = c.fs
}

func (c *converter) localDecl(d *grammar.LocalDecl) {
	pos := position(d.Pos)
	idx := ir.VarIndex(c.index(d.Name, "c", pos))
	if _, ok := c.fn.Locals[idx]; ok {
		c.errorf(errors.ErrorInvalidLocal, pos, len(d.Name), "local %s is declared more than once", d.Name)
		return
	}
	l := &ir.Local{Index: idx, Type: c.typ(d.Type, pos), Size: c.unsigned(d.Size, pos)}
	if d.Arg != "" {
		l.IsArg = true
		l.ArgIndex = int(c.unsigned(d.Arg, pos))
	}
	c.fn.Locals[idx] = l
	c.fs.Locals[idx] = pos
}

func (c *converter) block(b *grammar.Block) {
	pos := position(b.Pos)
	label := c.label(b.Label, pos)
	if _, ok := c.fn.Blocks[label]; ok {
		c.errorf(errors.ErrorDuplicateBlock, pos, len(b.Label), "block %s is declared more than once", b.Label)
		return
	}
	block := &ir.BasicBlock{}
	c.fn.Blocks[label] = block
	c.fs.Blocks[label] = pos

	for _, d := range b.Directives {
		dpos := position(d.Pos)
		directive := c.directive(d, dpos)
		if directive == nil {
			continue
		}
		c.fs.Directives[ir.Pos{Block: label, Index: len(block.Directives)}] = dpos
		block.Directives = append(block.Directives, directive)
	}
}

// Directives

func (c *converter) define(d *grammar.Directive, pos errors.Position, kind string) ir.VarIndex {
	if d.Result == "" {
		c.errorf(errors.ErrorInvalidResult, pos, span(d.Pos, d.EndPos), "%s must define a value", kind)
		return 0
	}
	v := c.value(d.Result, pos)
	if first, ok := c.fs.Values[v]; ok {
		e := errors.RedefinedValue(d.Result, pos, first)
		c.errorf(e.Code, pos, e.Length, "%s", e.Message)
	} else if v != 0 {
		c.fs.Values[v] = pos
	}
	return v
}

func (c *converter) noResult(d *grammar.Directive, pos errors.Position, kind string) {
	if d.Result != "" {
		c.errorf(errors.ErrorInvalidResult, pos, len(d.Result), "%s does not define a value", kind)
	}
}

func (c *converter) directive(d *grammar.Directive, pos errors.Position) ir.Directive {
	switch {
	case d.NoOp:
		c.noResult(d, pos, "noop")
		return ir.NoOp{}

	case d.Imm != nil:
		t := c.typ(d.Imm.Type, pos)
		return &ir.Imm{Result: c.define(d, pos, "imm"), Value: c.scalar(t, d.Imm.Value, pos)}

	case d.Cast != nil:
		to, from := c.typ(d.Cast.To, pos), c.typ(d.Cast.From, pos)
		return &ir.Cast{Result: c.define(d, pos, "cast"), To: to, From: from, Value: c.operand(d.Cast.Value, from)}

	case d.Arith != nil:
		return c.arith(d, pos)

	case d.Compare != nil:
		op, ok := ir.ParseCmpOp(d.Compare.Op)
		if !ok {
			c.errorf(errors.ErrorSyntax, pos, len(d.Compare.Op), "unknown comparison %q", d.Compare.Op)
		}
		t := c.typ(d.Compare.Type, pos)
		return &ir.Compare{
			Result: c.define(d, pos, "cmp"),
			Type:   t,
			Op:     op,
			Left:   c.value(d.Compare.Left, pos),
			Right:  c.operand(d.Compare.Right, t),
		}

	case d.AddToPointer != nil:
		a := d.AddToPointer
		t := c.typ(a.Type, pos)
		return &ir.AddToPointer{
			Result: c.define(d, pos, "ptradd"),
			Type:   t,
			Ptr:    c.operand(a.Ptr, ir.Pointer),
			Stride: c.unsigned(a.Stride, pos),
			Right:  c.operand(a.Right, t),
		}

	case d.LoadLocal != nil:
		l := d.LoadLocal
		return &ir.LoadLocal{
			Result: c.define(d, pos, "load"),
			Type:   c.typ(l.Type, pos),
			Local:  c.local(l.Local, pos),
			Offset: c.unsigned(l.Offset, pos),
		}

	case d.Addr != nil:
		return &ir.LoadLocalAddr{Result: c.define(d, pos, "addr"), Local: c.local(d.Addr.Local, pos)}

	case d.StoreLocal != nil:
		s := d.StoreLocal
		c.noResult(d, pos, "store")
		t := c.typ(s.Type, pos)
		return &ir.StoreLocal{
			Type:   t,
			Local:  c.local(s.Local, pos),
			Value:  c.operand(s.Value, t.Upcast()),
			Offset: c.unsigned(s.Offset, pos),
		}

	case d.LoadGlobal != nil:
		l := d.LoadGlobal
		return &ir.LoadGlobal{
			Result: c.define(d, pos, "lglob"),
			Type:   c.typ(l.Type, pos),
			Symbol: symbol(l.Symbol),
			Offset: c.unsigned(l.Offset, pos),
		}

	case d.GlobalAddr != nil:
		return &ir.LoadGlobalAddr{Result: c.define(d, pos, "gaddr"), Symbol: symbol(d.GlobalAddr.Symbol)}

	case d.StoreGlobal != nil:
		s := d.StoreGlobal
		c.noResult(d, pos, "sglob")
		t := c.typ(s.Type, pos)
		return &ir.StoreGlobal{
			Type:   t,
			Symbol: symbol(s.Symbol),
			Value:  c.operand(s.Value, t.Upcast()),
			Offset: c.unsigned(s.Offset, pos),
		}

	case d.Deref != nil:
		l := d.Deref
		return &ir.LoadFromPointer{
			Result: c.define(d, pos, "deref"),
			Type:   c.typ(l.Type, pos),
			Ptr:    c.value(l.Ptr, pos),
			Offset: c.unsigned(l.Offset, pos),
		}

	case d.StorePtr != nil:
		s := d.StorePtr
		c.noResult(d, pos, "sptr")
		t := c.typ(s.Type, pos)
		return &ir.StoreToPointer{
			Type:   t,
			Ptr:    c.value(s.Ptr, pos),
			Value:  c.operand(s.Value, t.Upcast()),
			Offset: c.unsigned(s.Offset, pos),
		}

	case d.Call != nil:
		return c.call(d, pos)

	case d.Branch != nil:
		c.noResult(d, pos, "br")
		if d.Branch.Cond == nil {
			return &ir.UnconditionalBranch{Dest: c.label(d.Branch.Dest, pos)}
		}
		cond := d.Branch.Cond
		op, ok := ir.ParseCmpOp(cond.Op)
		if !ok {
			c.errorf(errors.ErrorSyntax, pos, len(cond.Op), "unknown comparison %q", cond.Op)
		}
		t := c.typ(cond.Type, pos)
		return &ir.BranchCompare{
			Type:  t,
			Op:    op,
			Left:  c.value(cond.Left, pos),
			Right: c.operand(cond.Right, t),
			True:  c.label(cond.True, pos),
			False: c.label(cond.False, pos),
		}

	case d.Select != nil:
		c.noResult(d, pos, "select")
		s := &ir.Select{Value: c.value(d.Select.Value, pos), Table: make(map[int64]ir.BlockLabel)}
		for _, cs := range d.Select.Cases {
			cpos := position(cs.Pos)
			key := c.scalar(ir.I64, cs.Key, cpos).Int
			if _, ok := s.Table[key]; ok {
				c.errorf(errors.ErrorInvalidLiteral, cpos, len(cs.Key), "select case %d appears more than once", key)
			}
			s.Table[key] = c.label(cs.Label, cpos)
		}
		if d.Select.Default != "" {
			s.Default = c.label(d.Select.Default, pos)
		}
		return s

	case d.Return != nil:
		c.noResult(d, pos, "ret")
		if d.Return.Void {
			return &ir.Return{Type: ir.Void}
		}
		t := c.typ(d.Return.Type, pos)
		return &ir.Return{Type: t, Value: c.operand(d.Return.Value, t)}
	}
	return nil
}

func (c *converter) arith(d *grammar.Directive, pos errors.Position) ir.Directive {
	a := d.Arith
	t := c.typ(a.Type, pos)
	result := c.define(d, pos, a.Op)

	if op, ok := ir.ParseBinaryOp(a.Op); ok {
		if a.Right == nil {
			c.errorf(errors.ErrorSyntax, pos, len(a.Op), "%s takes two operands", a.Op)
			return nil
		}
		return &ir.Binop{
			Result: result,
			Type:   t,
			Op:     op,
			Left:   c.valueOperand(a.Left, "left operand of "+a.Op),
			Right:  c.operand(a.Right, t),
		}
	}

	switch a.Op {
	case "neg", "not":
		if a.Right != nil {
			c.errorf(errors.ErrorSyntax, pos, len(a.Op), "%s takes one operand", a.Op)
		}
		op := ir.Neg
		if a.Op == "not" {
			op = ir.BinNot
		}
		return &ir.Unop{Result: result, Type: t, Op: op, Value: c.operand(a.Left, t)}
	default:
		if a.Right == nil {
			c.errorf(errors.ErrorSyntax, pos, len(a.Op), "%s takes two operands", a.Op)
			return nil
		}
		op := ir.ShiftLeft
		if a.Op == "shr" {
			op = ir.ShiftRight
		}
		return &ir.Shift{Result: result, Type: t, Op: op, Left: c.operand(a.Left, t), Right: c.operand(a.Right, ir.U32)}
	}
}

func (c *converter) call(d *grammar.Directive, pos errors.Position) ir.Directive {
	call := d.Call
	t := c.typ(call.Type, pos)

	var result ir.VarIndex
	if t == ir.Void {
		c.noResult(d, pos, "void call")
	} else if d.Result != "" {
		result = c.define(d, pos, "call")
	}

	args, varArgs := c.values(call.Args, pos), c.values(call.VarArgs, pos)
	if call.Label != "" {
		return &ir.CallLabel{Result: result, Type: t, Label: symbol(call.Label), Args: args, VarArgs: varArgs}
	}
	return &ir.Call{Result: result, Type: t, Fn: c.value(call.Fn, pos), Args: args, VarArgs: varArgs}
}
