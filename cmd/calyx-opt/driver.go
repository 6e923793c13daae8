package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"calyx/internal/config"
	"calyx/internal/errors"
	"calyx/internal/interp"
	"calyx/internal/ir"
	"calyx/internal/parser"
	"calyx/internal/regalloc"
	"calyx/internal/semantic"
)

// driver runs the verify, optimize and report steps over input files
type driver struct {
	cfg    config.Config
	out    io.Writer
	errOut io.Writer

	outDir     string
	rig        bool
	run        string
	runArgs    []string
	verifyOnly bool
}

// batch processes every path and reports whether all of them succeeded.
// A progress bar is shown for several files when results go to a
// directory and stderr is a terminal.
func (d *driver) batch(paths []string) bool {
	var bar *progressbar.ProgressBar
	if len(paths) > 1 && d.outDir != "" && isTerminal(d.errOut) {
		bar = progressbar.Default(int64(len(paths)), "optimizing")
		defer bar.Close()
	}

	ok := true
	for _, path := range paths {
		if !d.process(path) {
			ok = false
		}
		if bar != nil {
			bar.Add(1)
		}
	}
	return ok
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// process handles one file and reports whether it succeeded
func (d *driver) process(path string) bool {
	startTime := time.Now()

	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(d.errOut, "failed to read file: %v\n", err)
		return false
	}

	reporter := errors.NewErrorReporter(path, string(source))
	result := parser.ParseSource(path, string(source))
	for _, diag := range result.Diagnostics() {
		fmt.Fprint(d.errOut, reporter.FormatError(diag))
	}
	if !result.OK() {
		d.failed(startTime)
		return false
	}

	diags := semantic.NewAnalyzer().Analyze(result.Program, result.Source)
	for _, diag := range diags {
		fmt.Fprint(d.errOut, reporter.FormatError(diag))
	}
	if semantic.HasErrors(diags) {
		d.failed(startTime)
		return false
	}

	if d.verifyOnly {
		color.New(color.FgGreen).Fprintf(d.errOut, "Verified %s in %s\n", path, formatDuration(time.Since(startTime)))
		return true
	}

	program := result.Program
	original := program.Clone()

	pipeline, err := d.cfg.Pipeline()
	if err != nil {
		color.New(color.FgRed).Fprintf(d.errOut, "%s\n", err)
		return false
	}
	report := pipeline.Run(program)
	for _, fr := range report.Failed() {
		diag := errors.FromFailure(fr.Symbol, fr.Err)
		diag.Level = errors.Warning
		fmt.Fprint(d.errOut, reporter.FormatError(diag))
	}

	if err := d.emit(path, program); err != nil {
		color.New(color.FgRed).Fprintf(d.errOut, "%s\n", err)
		return false
	}

	ok := true
	if d.rig {
		ok = d.printRIGs(program) && ok
	}
	if d.run != "" {
		ok = d.compareRuns(original, program) && ok
	}

	if !ok {
		d.failed(startTime)
		return false
	}
	color.New(color.FgGreen).Fprintf(d.errOut, "Optimized %s in %s: %s\n", path, formatDuration(time.Since(startTime)), report.Total())
	return true
}

func (d *driver) failed(startTime time.Time) {
	color.New(color.FgRed).Fprintf(d.errOut, "Compilation failed after %s\n", formatDuration(time.Since(startTime)))
}

// emit writes the optimized program to stdout or into the output directory
func (d *driver) emit(path string, program *ir.Program) error {
	text := ir.Print(program)
	if d.outDir == "" {
		_, err := io.WriteString(d.out, text)
		return err
	}
	if err := os.MkdirAll(d.outDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", d.outDir, err)
	}
	target := filepath.Join(d.outDir, filepath.Base(path))
	if err := os.WriteFile(target, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}
	return nil
}

func (d *driver) printRIGs(program *ir.Program) bool {
	ok := true
	for _, name := range program.SortedFunctions() {
		fn := program.Functions[name]
		rig, err := regalloc.Build(fn)
		if err == nil {
			var space *regalloc.ExampleRegSpace
			space, err = d.cfg.RegisterSpace(fn)
			if err == nil {
				rig.Reduce(space)
			}
		}
		if err != nil {
			fmt.Fprint(d.errOut, errors.NewErrorReporter("", "").FormatError(errors.FromFailure(name, err)))
			ok = false
			continue
		}
		fmt.Fprintf(d.out, "// rig @%s\n%s", name, rig.Dump())
	}
	return ok
}

// compareRuns interprets the run function in both programs and requires
// the same observable behavior
func (d *driver) compareRuns(original, optimized *ir.Program) bool {
	fn, ok := original.Functions[d.run]
	if !ok {
		color.New(color.FgRed).Fprintf(d.errOut, "function @%s is not defined\n", d.run)
		return false
	}
	args, err := interp.ParseArgs(fn, d.runArgs)
	if err != nil {
		color.New(color.FgRed).Fprintf(d.errOut, "%s\n", err)
		return false
	}

	opts := d.cfg.InterpOptions()
	before, err := interp.Run(original, d.run, opts, args...)
	if err != nil {
		color.New(color.FgRed).Fprintf(d.errOut, "run before optimization: %s\n", err)
		return false
	}
	after, err := interp.Run(optimized, d.run, opts, args...)
	if err != nil {
		color.New(color.FgRed).Fprintf(d.errOut, "run after optimization: %s\n", err)
		return false
	}

	fmt.Fprintf(d.out, "// trace @%s: %d steps before, %d after\n%s", d.run, before.Steps, after.Steps, after)
	if !before.Equivalent(after) {
		color.New(color.FgRed).Fprintf(d.errOut, "optimization changed the behavior of @%s; before:\n%s", d.run, before)
		return false
	}
	return true
}

func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Minute:
		return fmt.Sprintf("%.2fmin", d.Minutes())
	case d >= time.Second:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%.1fms", float64(d.Nanoseconds())/1000000.0)
	case d >= time.Microsecond:
		return fmt.Sprintf("%.1fμs", float64(d.Nanoseconds())/1000.0)
	default:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	}
}
