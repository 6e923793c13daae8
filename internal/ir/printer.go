package ir

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Printer renders IR in the textual form accepted by the calyx grammar
type Printer struct {
	indent int
	output strings.Builder
}

// NewPrinter creates a new IR printer
func NewPrinter() *Printer {
	return &Printer{indent: 0}
}

// Print returns the string representation of an IR program
func Print(program *Program) string {
	p := NewPrinter()
	p.printProgram(program)
	return p.output.String()
}

// PrintFunction returns the string representation of a single function
func PrintFunction(fn *Function) string {
	p := NewPrinter()
	p.printFunction(fn)
	return p.output.String()
}

// Helper methods

func (p *Printer) writeIndent() {
	for i := 0; i < p.indent; i++ {
		p.output.WriteString("  ")
	}
}

func (p *Printer) writeLine(format string, args ...interface{}) {
	p.writeIndent()
	p.output.WriteString(fmt.Sprintf(format, args...))
	p.output.WriteString("\n")
}

// printProgram prints strings, globals and functions in a stable order
func (p *Printer) printProgram(program *Program) {
	for i, s := range program.Strings {
		p.writeLine("string %d %s", i, strconv.Quote(s))
	}
	if len(program.Strings) > 0 {
		p.writeLine("")
	}

	for _, name := range program.SortedGlobals() {
		p.printGlobal(name, program.Globals[name])
	}
	if len(program.Globals) > 0 {
		p.writeLine("")
	}

	for i, name := range program.SortedFunctions() {
		if i > 0 {
			p.writeLine("")
		}
		p.printFunction(program.Functions[name])
	}
}

func (p *Printer) printGlobal(name string, g *Global) {
	p.writeLine("%s", FormatGlobal(name, g))
}

func (p *Printer) printFunction(fn *Function) {
	p.writeLine("func @%s {", fn.Symbol)
	p.indent++
	for _, idx := range fn.SortedLocals() {
		p.writeLine("%s", FormatLocal(fn.Locals[idx]))
	}
	p.indent--

	for _, label := range fn.SortedBlocks() {
		p.writeLine("L%d:", label)
		p.indent++
		for _, d := range fn.Blocks[label].Directives {
			p.writeLine("%s", FormatDirective(d))
		}
		p.indent--
	}
	p.writeLine("}")
}

// FormatGlobal renders the declaration of global name
func FormatGlobal(name string, g *Global) string {
	line := fmt.Sprintf("global @%s: %s", name, g.Type)
	if g.Size > 0 && g.Size != g.Type.Size() {
		line += fmt.Sprintf(" size %d", g.Size)
	}
	switch {
	case g.Value != nil:
		line += " = " + g.Value.String()
	case g.Label != "":
		line += " = @" + g.Label
		if g.Offset != 0 {
			line += fmt.Sprintf(" + %d", g.Offset)
		}
	}
	return line
}

// FormatLocal renders the declaration of l
func FormatLocal(l *Local) string {
	line := fmt.Sprintf("local c%d: %s, size %d", l.Index, l.Type, l.Size)
	if l.IsArg {
		line += fmt.Sprintf(", arg %d", l.ArgIndex)
	}
	return line
}

// FormatDirective renders a single directive
func FormatDirective(d Directive) string {
	switch d := d.(type) {
	case NoOp:
		return "noop"
	case *Imm:
		return fmt.Sprintf("v%d = imm %s %s", d.Result, d.Value.Type, d.Value)
	case *Cast:
		return fmt.Sprintf("v%d = cast %s <- %s %s", d.Result, d.To, d.From, d.Value)
	case *Binop:
		return fmt.Sprintf("v%d = %s %s v%d, %s", d.Result, d.Op, d.Type, d.Left, d.Right)
	case *Unop:
		return fmt.Sprintf("v%d = %s %s %s", d.Result, d.Op, d.Type, d.Value)
	case *Shift:
		return fmt.Sprintf("v%d = %s %s %s, %s", d.Result, d.Op, d.Type, d.Left, d.Right)
	case *Compare:
		return fmt.Sprintf("v%d = cmp %s %s v%d, %s", d.Result, d.Op, d.Type, d.Left, d.Right)
	case *AddToPointer:
		return fmt.Sprintf("v%d = ptradd %s, %d * %s %s", d.Result, d.Ptr, d.Stride, d.Type, d.Right)
	case *LoadLocal:
		return fmt.Sprintf("v%d = load %s c%d%s", d.Result, d.Type, d.Local, offset(d.Offset))
	case *LoadLocalAddr:
		return fmt.Sprintf("v%d = addr c%d", d.Result, d.Local)
	case *StoreLocal:
		return fmt.Sprintf("store %s c%d%s, %s", d.Type, d.Local, offset(d.Offset), d.Value)
	case *LoadGlobal:
		return fmt.Sprintf("v%d = lglob %s @%s%s", d.Result, d.Type, d.Symbol, offset(d.Offset))
	case *LoadGlobalAddr:
		return fmt.Sprintf("v%d = gaddr @%s", d.Result, d.Symbol)
	case *StoreGlobal:
		return fmt.Sprintf("sglob %s @%s%s, %s", d.Type, d.Symbol, offset(d.Offset), d.Value)
	case *LoadFromPointer:
		return fmt.Sprintf("v%d = deref %s v%d%s", d.Result, d.Type, d.Ptr, offset(d.Offset))
	case *StoreToPointer:
		return fmt.Sprintf("sptr %s v%d%s, %s", d.Type, d.Ptr, offset(d.Offset), d.Value)
	case *Call:
		return result(d.Result) + fmt.Sprintf("call %s v%d(%s)", d.Type, d.Fn, formatArgs(d.Args, d.VarArgs))
	case *CallLabel:
		return result(d.Result) + fmt.Sprintf("call %s @%s(%s)", d.Type, d.Label, formatArgs(d.Args, d.VarArgs))
	case *UnconditionalBranch:
		return fmt.Sprintf("br L%d", d.Dest)
	case *BranchCompare:
		return fmt.Sprintf("br %s %s v%d, %s ? L%d : L%d", d.Op, d.Type, d.Left, d.Right, d.True, d.False)
	case *Select:
		return formatSelect(d)
	case *Return:
		if d.Type == Void {
			return "ret void"
		}
		return fmt.Sprintf("ret %s %s", d.Type, d.Value)
	}
	return fmt.Sprintf("<unknown %T>", d)
}

func offset(o uint64) string {
	if o == 0 {
		return ""
	}
	return fmt.Sprintf(" + %d", o)
}

func result(v VarIndex) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("v%d = ", v)
}

func formatArgs(args, varArgs []VarIndex) string {
	var b strings.Builder
	for i, a := range args {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "v%d", a)
	}
	if len(varArgs) > 0 {
		b.WriteString("; ")
		for i, a := range varArgs {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "v%d", a)
		}
	}
	return b.String()
}

func formatSelect(d *Select) string {
	keys := make([]int64, 0, len(d.Table))
	for k := range d.Table {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	cases := make([]string, len(keys))
	for i, k := range keys {
		cases[i] = fmt.Sprintf("%d: L%d", k, d.Table[k])
	}
	s := fmt.Sprintf("select v%d [%s]", d.Value, strings.Join(cases, ", "))
	if d.Default != InvalidBlock {
		s += fmt.Sprintf(" default L%d", d.Default)
	}
	return s
}
