package optimizer

import (
	"calyx/internal/deps"
	"calyx/internal/ir"
)

// RemoveUnused deletes, in place, locals that are never read together
// with their writes, and values that are never used together with the
// directives producing them. Directives with side effects are kept no
// matter how their results are used. It returns the number of directives
// and locals removed.
func RemoveUnused(fn *ir.Function) int {
	total := 0
	for {
		s := &sweeper{
			fn:   fn,
			deps: deps.Analyze(fn),
			uses: make(map[ir.VarIndex]int),
			dead: make(map[ir.Pos]bool),
		}
		removed := s.sweep()
		if removed == 0 {
			break
		}
		s.compact()
		total += removed
	}
	// NoOps from the emitter carry no meaning
	for _, b := range fn.Blocks {
		b.Directives = dropNoOps(b.Directives)
	}

	if total > 0 {
		log.Debugf("removed %d unused directives and locals from @%s", total, fn.Symbol)
	}
	return total
}

type sweeper struct {
	fn      *ir.Function
	deps    *deps.Function
	uses    map[ir.VarIndex]int
	dead    map[ir.Pos]bool
	work    []ir.VarIndex
	removed int
}

func (s *sweeper) sweep() int {
	for v, rec := range s.deps.Vars {
		s.uses[v] = len(rec.Reads)
	}

	for _, c := range s.fn.SortedLocals() {
		l := s.deps.Locals[c]
		if len(l.Reads) > 0 {
			continue
		}
		for _, pos := range l.Writes {
			s.nullify(pos)
		}
		if !s.fn.Locals[c].IsArg {
			delete(s.fn.Locals, c)
			s.removed++
		}
	}

	for v := range s.deps.Vars {
		if s.uses[v] == 0 {
			s.work = append(s.work, v)
		}
	}
	for len(s.work) > 0 {
		v := s.work[len(s.work)-1]
		s.work = s.work[:len(s.work)-1]
		if s.uses[v] > 0 || !s.deps.Defined(v) {
			continue
		}
		pos := s.deps.Vars[v].Created
		if s.dead[pos] || !removable(s.fn.At(pos)) {
			continue
		}
		s.nullify(pos)
	}
	return s.removed
}

// removable reports whether dropping d cannot change observable behavior
func removable(d ir.Directive) bool {
	effects := d.Effects()
	return !effects.HasSideEffects() && effects&ir.EffectLocalWrite == 0
}

func (s *sweeper) nullify(pos ir.Pos) {
	if s.dead[pos] {
		return
	}
	s.dead[pos] = true
	s.removed++
	for _, u := range ir.Uses(s.fn.At(pos)) {
		s.uses[u]--
		if s.uses[u] == 0 {
			s.work = append(s.work, u)
		}
	}
}

func (s *sweeper) compact() {
	for label, b := range s.fn.Blocks {
		kept := b.Directives[:0]
		for i, d := range b.Directives {
			if !s.dead[ir.Pos{Block: label, Index: i}] {
				kept = append(kept, d)
			}
		}
		b.Directives = kept
	}
}

func dropNoOps(ds []ir.Directive) []ir.Directive {
	kept := ds[:0]
	for _, d := range ds {
		if _, ok := d.(ir.NoOp); !ok {
			kept = append(kept, d)
		}
	}
	return kept
}
