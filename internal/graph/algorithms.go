package graph

import "slices"

// TopSort orders the nodes so that, wherever the graph is acyclic, every
// node comes after all of its predecessors. Sources are emitted first.
// When only cycles remain, the node with the fewest unresolved
// predecessors is emitted next, ties going to the smallest id.
func (g *Graph[I, T]) TopSort() []I {
	unresolved := make(map[I]int, len(g.nodes))
	var ready []I
	for _, id := range g.Nodes() {
		unresolved[id] = len(g.nodes[id].in)
		if unresolved[id] == 0 {
			ready = append(ready, id)
		}
	}

	result := make([]I, 0, len(g.nodes))
	done := make(Set[I], len(g.nodes))
	for len(result) < len(g.nodes) {
		if len(ready) == 0 {
			ready = append(ready, g.leastUnresolved(unresolved, done))
		}
		id := ready[0]
		ready = ready[1:]
		if done.Has(id) {
			continue
		}
		done.Add(id)
		result = append(result, id)

		for _, succ := range g.nodes[id].out.Sorted() {
			if done.Has(succ) {
				continue
			}
			unresolved[succ]--
			if unresolved[succ] == 0 {
				ready = append(ready, succ)
			}
		}
	}
	return result
}

func (g *Graph[I, T]) leastUnresolved(unresolved map[I]int, done Set[I]) I {
	var best I
	bestCount := -1
	for _, id := range g.Nodes() {
		if done.Has(id) {
			continue
		}
		if bestCount < 0 || unresolved[id] < bestCount {
			best, bestCount = id, unresolved[id]
		}
	}
	return best
}

// CommonAncestor walks predecessors upward from a and b, always expanding
// the largest id of the frontier, until a single node remains. It returns
// the zero id when the walk reaches a node without predecessors first.
// With ids assigned in emission order the result dominates both nodes.
func (g *Graph[I, T]) CommonAncestor(a, b I) I {
	var zero I
	frontier := Set[I]{a: {}, b: {}}
	considered := make(Set[I])
	for len(frontier) > 1 {
		largest := slices.Max(frontier.Sorted())
		frontier.Remove(largest)
		preds := g.mustNode(largest).in
		if len(preds) == 0 {
			return zero
		}
		for _, p := range preds.Sorted() {
			if !considered.Has(p) {
				considered.Add(p)
				frontier.Add(p)
			}
		}
		if len(frontier) == 0 {
			return zero
		}
	}
	for id := range frontier {
		return id
	}
	return zero
}

// ReachableSet returns every node reachable from any of the bases,
// bases included
func (g *Graph[I, T]) ReachableSet(bases ...I) Set[I] {
	set := make(Set[I])
	for _, id := range g.walk(bases) {
		set.Add(id)
	}
	return set
}

// Reaches reports whether a path leads from base to other
func (g *Graph[I, T]) Reaches(base, other I) bool {
	return g.ReachableSet(base).Has(other)
}

func (g *Graph[I, T]) walk(bases []I) []I {
	var order []I
	seen := make(Set[I])
	queue := make([]I, 0, len(bases))
	for _, b := range bases {
		g.mustNode(b)
		if !seen.Has(b) {
			seen.Add(b)
			queue = append(queue, b)
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, next := range g.nodes[id].out.Sorted() {
			if !seen.Has(next) {
				seen.Add(next)
				queue = append(queue, next)
			}
		}
	}
	return order
}
