// Package repl reads Calyx IR interactively and prints it back optimized.
package repl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"

	"calyx/internal/config"
	"calyx/internal/errors"
	"calyx/internal/interp"
	"calyx/internal/ir"
	"calyx/internal/parser"
	"calyx/internal/regalloc"
	"calyx/internal/semantic"
)

const (
	PROMPT   = ">> "
	CONTINUE = ".. "
)

const help = `Enter a program, then an empty line to verify, optimize and print it.
Commands:
  :help             show this text
  :show             print the current program
  :passes [a,b]     show or set the optimization passes
  :rig [@fn]        print the reduced interference graphs
  :run @fn [args]   interpret a function of the current program
  :reset            forget the current program
  :quit             leave
`

// REPL holds the session state: the pending input and the last program
// that was accepted
type REPL struct {
	cfg     config.Config
	out     io.Writer
	program *ir.Program
	buffer  []string
}

func New(cfg config.Config, out io.Writer) *REPL {
	return &REPL{cfg: cfg, out: out}
}

// Start runs a session until in is exhausted or the user quits. Prompts
// are only shown when in is a terminal.
func Start(in io.Reader, out io.Writer, cfg config.Config) {
	r := New(cfg, out)
	interactive := false
	if f, ok := in.(*os.File); ok {
		interactive = term.IsTerminal(int(f.Fd()))
	}

	scanner := bufio.NewScanner(in)
	for {
		if interactive {
			if len(r.buffer) == 0 {
				fmt.Fprint(out, PROMPT)
			} else {
				fmt.Fprint(out, CONTINUE)
			}
		}
		if !scanner.Scan() {
			r.flush()
			return
		}
		if !r.Line(scanner.Text()) {
			return
		}
	}
}

// Line handles one line of input and reports whether the session goes on
func (r *REPL) Line(line string) bool {
	trimmed := strings.TrimSpace(line)
	if len(r.buffer) == 0 && strings.HasPrefix(trimmed, ":") {
		return r.command(strings.Fields(trimmed))
	}
	if trimmed == "" {
		r.flush()
		return true
	}
	r.buffer = append(r.buffer, line)
	return true
}

func (r *REPL) flush() {
	if len(r.buffer) == 0 {
		return
	}
	source := strings.Join(r.buffer, "\n") + "\n"
	r.buffer = nil
	r.eval(source)
}

func (r *REPL) eval(source string) {
	const name = "<repl>"
	reporter := errors.NewErrorReporter(name, source)

	result := parser.ParseSource(name, source)
	diags := result.Diagnostics()
	if result.OK() {
		diags = append(diags, semantic.NewAnalyzer().Analyze(result.Program, result.Source)...)
	}
	for _, d := range diags {
		fmt.Fprint(r.out, reporter.FormatError(d))
	}
	if !result.OK() || semantic.HasErrors(diags) {
		return
	}

	pipeline, err := r.cfg.Pipeline()
	if err != nil {
		r.fail("%s", err)
		return
	}
	report := pipeline.Run(result.Program)
	for _, fr := range report.Failed() {
		fmt.Fprint(r.out, reporter.FormatError(errors.FromFailure(fr.Symbol, fr.Err)))
	}

	r.program = result.Program
	fmt.Fprint(r.out, ir.Print(r.program))
	color.New(color.Faint).Fprintf(r.out, "// %s\n", report.Total())
}

func (r *REPL) fail(format string, args ...any) {
	color.New(color.FgRed).Fprintf(r.out, format+"\n", args...)
}

func (r *REPL) command(fields []string) bool {
	switch fields[0] {
	case ":quit", ":q", ":exit":
		return false
	case ":help", ":h":
		fmt.Fprint(r.out, help)
	case ":reset":
		r.program = nil
	case ":show":
		if r.requireProgram() {
			fmt.Fprint(r.out, ir.Print(r.program))
		}
	case ":passes":
		r.passes(fields[1:])
	case ":rig":
		r.rig(fields[1:])
	case ":run":
		r.run(fields[1:])
	default:
		r.fail("unknown command %s, try :help", fields[0])
	}
	return true
}

func (r *REPL) requireProgram() bool {
	if r.program == nil {
		r.fail("no program yet")
		return false
	}
	return true
}

func (r *REPL) passes(args []string) {
	if len(args) > 0 {
		cfg := r.cfg
		cfg.Optimizer.Passes = strings.Split(strings.Join(args, ","), ",")
		if err := cfg.Validate(); err != nil {
			r.fail("%s", err)
			return
		}
		r.cfg = cfg
	}
	fmt.Fprintf(r.out, "passes: %s\n", strings.Join(r.cfg.Optimizer.Passes, ", "))
}

func (r *REPL) rig(args []string) {
	if !r.requireProgram() {
		return
	}
	symbols := r.program.SortedFunctions()
	if len(args) > 0 {
		symbols = []string{strings.TrimPrefix(args[0], "@")}
	}
	for _, symbol := range symbols {
		fn, ok := r.program.Functions[symbol]
		if !ok {
			r.fail("function @%s is not defined", symbol)
			continue
		}
		rig, err := regalloc.Build(fn)
		if err != nil {
			r.fail("@%s: %s", symbol, err)
			continue
		}
		space, err := r.cfg.RegisterSpace(fn)
		if err != nil {
			r.fail("@%s: %s", symbol, err)
			continue
		}
		removed := rig.Reduce(space)
		fmt.Fprintf(r.out, "// rig @%s, %d cross-class edges removed\n%s", symbol, removed, rig.Dump())
	}
}

func (r *REPL) run(args []string) {
	if !r.requireProgram() {
		return
	}
	if len(args) == 0 {
		r.fail("usage: :run @fn [args]")
		return
	}
	symbol := strings.TrimPrefix(args[0], "@")
	fn, ok := r.program.Functions[symbol]
	if !ok {
		r.fail("function @%s is not defined", symbol)
		return
	}
	values, err := interp.ParseArgs(fn, args[1:])
	if err != nil {
		r.fail("%s", err)
		return
	}
	trace, err := interp.Run(r.program, symbol, r.cfg.InterpOptions(), values...)
	if err != nil {
		r.fail("%s", err)
		return
	}
	fmt.Fprint(r.out, trace)
}
