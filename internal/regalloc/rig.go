package regalloc

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/tliron/commonlog"

	"calyx/internal/deps"
	"calyx/internal/errors"
	"calyx/internal/graph"
	"calyx/internal/ir"
)

var log = commonlog.GetLogger("calyx.regalloc")

// BlockLiveness holds the block-level data flow sets, keyed by NodeUID
type BlockLiveness struct {
	// Def holds everything defined in the block; argument locals count as
	// defined by the entry block
	Def graph.Set[int64]
	// Use holds what is used before being defined in the block
	Use graph.Set[int64]
	In  graph.Set[int64]
	Out graph.Set[int64]
}

func newBlockLiveness() *BlockLiveness {
	return &BlockLiveness{
		Def: make(graph.Set[int64]),
		Use: make(graph.Set[int64]),
		In:  make(graph.Set[int64]),
		Out: make(graph.Set[int64]),
	}
}

func (l *BlockLiveness) LiveIn(gv GeneralizedVar) bool {
	return l.In.Has(gv.NodeUID())
}

func (l *BlockLiveness) LiveOut(gv GeneralizedVar) bool {
	return l.Out.Has(gv.NodeUID())
}

func (l *BlockLiveness) Defines(gv GeneralizedVar) bool {
	return l.Def.Has(gv.NodeUID())
}

// RIG is the register interference graph of one function. An edge means
// the two variables are live at the same time and may not share a register.
type RIG struct {
	Symbol     string
	Iterations int

	graph    *graph.Graph[int64, GeneralizedVar]
	liveness map[ir.BlockLabel]*BlockLiveness
}

// access is what a single directive defines and uses
type access struct {
	def    GeneralizedVar
	hasDef bool
	uses   []GeneralizedVar
}

type builder struct {
	fn       *ir.Function
	deps     *deps.Function
	rig      *RIG
	accesses map[ir.BlockLabel][]access
}

// Build computes liveness for fn and the interference graph derived from
// it. Structural problems in fn are returned as invariant violations.
func Build(fn *ir.Function) (rig *RIG, err error) {
	defer errors.Recover(&err)

	b := &builder{
		fn:   fn,
		deps: deps.Analyze(fn),
		rig: &RIG{
			Symbol:   fn.Symbol,
			graph:    graph.NewUndirected[int64, GeneralizedVar](),
			liveness: make(map[ir.BlockLabel]*BlockLiveness, len(fn.Blocks)),
		},
		accesses: make(map[ir.BlockLabel][]access, len(fn.Blocks)),
	}
	b.addNodes()
	b.collect()
	b.solve()
	b.refine()

	log.Debugf("@%s: %d nodes, %d edges after %d liveness iterations",
		fn.Symbol, b.rig.graph.Len(), b.rig.graph.EdgeCount(), b.rig.Iterations)
	return b.rig, nil
}

func (b *builder) addNodes() {
	for v := range b.deps.Vars {
		if b.deps.Defined(v) {
			b.rig.graph.AddNode(Var(v).NodeUID(), Var(v))
		}
	}
	for c := range b.fn.Locals {
		b.rig.graph.AddNode(Local(c).NodeUID(), Local(c))
	}
}

func (b *builder) access(d ir.Directive) access {
	var a access
	for _, u := range ir.Uses(d) {
		a.uses = append(a.uses, Var(u))
		// using a pointer to a local keeps the local alive
		if rec, ok := b.deps.Vars[u]; ok && rec.Aliases != 0 {
			a.uses = append(a.uses, Local(rec.Aliases))
		}
	}
	if v, ok := ir.Def(d); ok {
		a.def, a.hasDef = Var(v), true
	}

	switch d := d.(type) {
	case *ir.LoadLocal:
		a.uses = append(a.uses, Local(d.Local))
	case *ir.LoadLocalAddr:
		a.uses = append(a.uses, Local(d.Local))
	case *ir.StoreLocal:
		l, ok := b.fn.Locals[d.Local]
		if !ok {
			errors.Invariant("@%s: store to undeclared local c%d", b.fn.Symbol, d.Local)
		}
		if d.Offset == 0 && d.Type == l.Type {
			a.def, a.hasDef = Local(d.Local), true
		} else {
			// a field store keeps the rest of the local
			a.uses = append(a.uses, Local(d.Local))
		}
	}
	return a
}

// collect computes the def and upward exposed use sets of every block
func (b *builder) collect() {
	for _, label := range b.fn.SortedBlocks() {
		lv := newBlockLiveness()
		if label == ir.EntryBlock {
			for _, arg := range b.fn.Args() {
				lv.Def.Add(Local(arg.Index).NodeUID())
			}
		}

		directives := b.fn.Blocks[label].Directives
		accesses := make([]access, len(directives))
		for i, d := range directives {
			a := b.access(d)
			accesses[i] = a
			for _, u := range a.uses {
				if !lv.Def.Has(u.NodeUID()) {
					lv.Use.Add(u.NodeUID())
				}
			}
			if a.hasDef {
				lv.Def.Add(a.def.NodeUID())
			}
		}
		lv.In = lv.Use.Clone()
		b.accesses[label] = accesses
		b.rig.liveness[label] = lv
	}

	// returned values stay live until the end of their block
	for v, rec := range b.deps.Vars {
		for _, pos := range rec.Returns {
			lv := b.rig.liveness[pos.Block]
			lv.Out.Add(Var(v).NodeUID())
			if !lv.Def.Has(Var(v).NodeUID()) {
				lv.In.Add(Var(v).NodeUID())
			}
		}
	}
}

// solve iterates out[b] = U in[s] and in[b] = use[b] U (out[b] - def[b])
// until nothing changes. The sets only grow, so this terminates. Blocks
// are visited in reverse topological order so that values propagate
// against the edges quickly.
func (b *builder) solve() {
	order := b.deps.Blocks.TopSort()
	for changed := true; changed; {
		changed = false
		b.rig.Iterations++
		for i := len(order) - 1; i >= 0; i-- {
			label := order[i]
			lv := b.rig.liveness[label]
			for _, succ := range b.deps.Blocks.Edges(label) {
				for uid := range b.rig.liveness[succ].In {
					if lv.Out.Has(uid) {
						continue
					}
					lv.Out.Add(uid)
					changed = true
					if !lv.Def.Has(uid) {
						lv.In.Add(uid)
					}
				}
			}
		}
	}
}

// refine walks every block backwards from its out set. Each definition
// interferes with everything live right after it.
func (b *builder) refine() {
	for _, label := range b.fn.SortedBlocks() {
		live := b.rig.liveness[label].Out.Clone()
		accesses := b.accesses[label]
		for i := len(accesses) - 1; i >= 0; i-- {
			a := accesses[i]
			if a.hasDef {
				uid := a.def.NodeUID()
				live.Remove(uid)
				for other := range live {
					b.rig.graph.AddEdge(uid, other)
				}
			}
			for _, u := range a.uses {
				live.Add(u.NodeUID())
			}
		}

		if label != ir.EntryBlock {
			continue
		}
		// arguments are all defined on entry, before the first directive
		for _, arg := range b.fn.Args() {
			uid := Local(arg.Index).NodeUID()
			for other := range live {
				b.rig.graph.AddEdge(uid, other)
			}
		}
	}
}

// Liveness returns the data flow sets of a block, or nil for an unknown label
func (r *RIG) Liveness(label ir.BlockLabel) *BlockLiveness {
	return r.liveness[label]
}

func (r *RIG) Has(gv GeneralizedVar) bool {
	return r.graph.Has(gv.NodeUID())
}

// Nodes returns every variable of the graph, values first
func (r *RIG) Nodes() []GeneralizedVar {
	nodes := make([]GeneralizedVar, 0, r.graph.Len())
	for _, uid := range r.graph.Nodes() {
		nodes = append(nodes, r.graph.At(uid))
	}
	sortVars(nodes)
	return nodes
}

// Interferes reports whether a and b may not share a register
func (r *RIG) Interferes(a, b GeneralizedVar) bool {
	return r.graph.HasEdge(a.NodeUID(), b.NodeUID())
}

// Neighbors returns the variables interfering with gv
func (r *RIG) Neighbors(gv GeneralizedVar) []GeneralizedVar {
	var out []GeneralizedVar
	for _, uid := range r.graph.Edges(gv.NodeUID()) {
		out = append(out, r.graph.At(uid))
	}
	sortVars(out)
	return out
}

// Edges lists every interference once, in a stable order
func (r *RIG) Edges() [][2]GeneralizedVar {
	var edges [][2]GeneralizedVar
	for _, gv := range r.Nodes() {
		for _, other := range r.Neighbors(gv) {
			if compareVars(gv, other) < 0 {
				edges = append(edges, [2]GeneralizedVar{gv, other})
			}
		}
	}
	return edges
}

func (r *RIG) EdgeCount() int {
	return r.graph.EdgeCount()
}

// Reduce removes the edges between variables of different register
// classes, which can never compete for the same register. It returns the
// number of edges removed.
func (r *RIG) Reduce(space RegisterSpace) int {
	removed := 0
	for _, e := range r.Edges() {
		if space.RegisterType(e[0]) != space.RegisterType(e[1]) {
			r.graph.RemoveEdge(e[0].NodeUID(), e[1].NodeUID())
			removed++
		}
	}
	log.Debugf("@%s: reduction removed %d cross-class edges", r.Symbol, removed)
	return removed
}

// Dump renders the adjacency list, one variable per line
func (r *RIG) Dump() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "rig @%s:\n", r.Symbol)
	for _, gv := range r.Nodes() {
		fmt.Fprintf(&sb, "  %s:", gv)
		for _, n := range r.Neighbors(gv) {
			sb.WriteString(" " + n.String())
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func compareVars(a, b GeneralizedVar) int {
	if a.IsLocal != b.IsLocal {
		if a.IsLocal {
			return 1
		}
		return -1
	}
	return cmp.Compare(a.Index, b.Index)
}

func sortVars(vs []GeneralizedVar) {
	slices.SortFunc(vs, compareVars)
}
