package optimizer

import (
	"fmt"
	"strings"

	"calyx/internal/errors"
	"calyx/internal/ir"
)

// Pass is a single function-level transformation
type Pass interface {
	Name() string
	// Apply rewrites fn in place, records what it did in stats and
	// returns true if changes were made
	Apply(fn *ir.Function, stats *Stats) bool
	Description() string
}

// LocalOptimization runs OptimizeFunction and swaps the result into place
type LocalOptimization struct{}

func (lo *LocalOptimization) Name() string {
	return "local"
}

func (lo *LocalOptimization) Description() string {
	return "Propagates constants, copies and local values, merges common subexpressions and simplifies control flow"
}

func (lo *LocalOptimization) Apply(fn *ir.Function, stats *Stats) bool {
	optimized, s := OptimizeFunction(fn)
	fn.Blocks = optimized.Blocks
	fn.Locals = optimized.Locals
	stats.Add(s)
	return s.Changed()
}

// DeadCodeElimination removes unread locals and unused values
type DeadCodeElimination struct{}

func (dce *DeadCodeElimination) Name() string {
	return "dce"
}

func (dce *DeadCodeElimination) Description() string {
	return "Removes locals that are never read and values that are never used"
}

func (dce *DeadCodeElimination) Apply(fn *ir.Function, stats *Stats) bool {
	removed := RemoveUnused(fn)
	stats.Removed += removed
	return removed > 0
}

// PassNames lists the passes PassByName knows, in default order
var PassNames = []string{"local", "dce"}

// PassByName looks up a pass by the name used in configuration files
func PassByName(name string) (Pass, error) {
	switch strings.ToLower(name) {
	case "local":
		return &LocalOptimization{}, nil
	case "dce":
		return &DeadCodeElimination{}, nil
	}
	return nil, fmt.Errorf("unknown pass %q (known passes: %s)", name, strings.Join(PassNames, ", "))
}

// DefaultMaxIterations bounds the fixed point loop when no limit is configured
const DefaultMaxIterations = 16

// Pipeline runs a sequence of passes over every function until none of
// them changes anything
type Pipeline struct {
	passes        []Pass
	maxIterations int
}

// NewPipeline creates a pipeline running the given passes in order.
// A non-positive maxIterations selects DefaultMaxIterations.
func NewPipeline(maxIterations int, passes ...Pass) *Pipeline {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return &Pipeline{passes: passes, maxIterations: maxIterations}
}

// NewDefaultPipeline creates a pipeline with the local optimizer followed
// by the dead code eliminator
func NewDefaultPipeline() *Pipeline {
	return NewPipeline(DefaultMaxIterations, &LocalOptimization{}, &DeadCodeElimination{})
}

// AddPass appends a pass to the pipeline
func (p *Pipeline) AddPass(pass Pass) {
	p.passes = append(p.passes, pass)
}

// Passes returns the configured passes
func (p *Pipeline) Passes() []Pass {
	return p.passes
}

// FunctionReport describes the pipeline run over one function
type FunctionReport struct {
	Symbol     string
	Iterations int
	// Converged is false when the iteration limit was reached first
	Converged bool
	Stats     Stats
	// Err holds the failure that left the function unoptimized
	Err error
}

// Report collects the per-function results of Pipeline.Run
type Report struct {
	Functions []FunctionReport
}

// Failed returns the reports of functions that could not be optimized
func (r *Report) Failed() []FunctionReport {
	var failed []FunctionReport
	for _, f := range r.Functions {
		if f.Err != nil {
			failed = append(failed, f)
		}
	}
	return failed
}

// Total sums the statistics of every function
func (r *Report) Total() Stats {
	var total Stats
	for _, f := range r.Functions {
		total.Add(f.Stats)
	}
	return total
}

// Run optimizes every function of program in place. A function whose
// optimization fails keeps its original body and the failure is recorded
// in the report; the remaining functions are still optimized.
func (p *Pipeline) Run(program *ir.Program) *Report {
	report := &Report{}
	for _, name := range program.SortedFunctions() {
		fr := p.RunFunction(program.Functions[name])
		if fr.Err == nil {
			log.Infof("@%s: %d iterations, %s", name, fr.Iterations, fr.Stats)
		} else {
			log.Errorf("@%s left unoptimized: %s", name, fr.Err)
		}
		report.Functions = append(report.Functions, fr)
	}
	return report
}

// RunFunction optimizes fn in place, iterating the passes until a fixed point
func (p *Pipeline) RunFunction(fn *ir.Function) FunctionReport {
	fr := FunctionReport{Symbol: fn.Symbol}
	work := fn.Clone()
	err := p.iterate(work, &fr)
	if err != nil {
		fr.Err = err
		fr.Stats = Stats{}
		return fr
	}
	fn.Blocks = work.Blocks
	fn.Locals = work.Locals
	return fr
}

func (p *Pipeline) iterate(fn *ir.Function, fr *FunctionReport) (err error) {
	defer errors.Recover(&err)

	for fr.Iterations < p.maxIterations {
		fr.Iterations++
		changed := false
		for _, pass := range p.passes {
			if pass.Apply(fn, &fr.Stats) {
				log.Debugf("@%s iteration %d: %s changed the function", fn.Symbol, fr.Iterations, pass.Name())
				changed = true
			}
		}
		if !changed {
			fr.Converged = true
			return nil
		}
	}
	log.Warningf("@%s did not converge within %d iterations", fn.Symbol, p.maxIterations)
	return nil
}
