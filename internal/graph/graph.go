// Package graph provides the small generic graph used for control flow
// and register interference.
package graph

import (
	"cmp"
	"maps"
	"slices"

	"calyx/internal/errors"
)

// Set is an unordered collection of node ids
type Set[I cmp.Ordered] map[I]struct{}

func (s Set[I]) Add(id I) {
	s[id] = struct{}{}
}

func (s Set[I]) Remove(id I) {
	delete(s, id)
}

func (s Set[I]) Has(id I) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the elements in ascending order
func (s Set[I]) Sorted() []I {
	return slices.Sorted(maps.Keys(s))
}

func (s Set[I]) Clone() Set[I] {
	return maps.Clone(s)
}


type node[I cmp.Ordered, T any] struct {
	value T
	in    Set[I]
	out   Set[I]
}

// Graph is a directed or undirected graph keyed by ordered ids. Every
// iteration order it exposes is ascending by id.
type Graph[I cmp.Ordered, T any] struct {
	directed bool
	nodes    map[I]*node[I, T]
}

// NewDirected creates an empty directed graph
func NewDirected[I cmp.Ordered, T any]() *Graph[I, T] {
	return &Graph[I, T]{directed: true, nodes: make(map[I]*node[I, T])}
}

// NewUndirected creates an empty undirected graph
func NewUndirected[I cmp.Ordered, T any]() *Graph[I, T] {
	return &Graph[I, T]{nodes: make(map[I]*node[I, T])}
}

// AddNode inserts a node. Adding an existing id is an invariant violation.
func (g *Graph[I, T]) AddNode(id I, value T) {
	if _, ok := g.nodes[id]; ok {
		errors.Invariant("graph node %v already exists", id)
	}
	g.nodes[id] = &node[I, T]{value: value, in: make(Set[I]), out: make(Set[I])}
}

func (g *Graph[I, T]) Has(id I) bool {
	_, ok := g.nodes[id]
	return ok
}

func (g *Graph[I, T]) Len() int {
	return len(g.nodes)
}

// At returns the value stored at id, which must exist
func (g *Graph[I, T]) At(id I) T {
	return g.mustNode(id).value
}

// AddEdge connects from to to. Both nodes must exist. Undirected graphs
// ignore self loops.
func (g *Graph[I, T]) AddEdge(from, to I) {
	f, t := g.mustNode(from), g.mustNode(to)
	if !g.directed {
		if from == to {
			return
		}
		f.out.Add(to)
		f.in.Add(to)
		t.out.Add(from)
		t.in.Add(from)
		return
	}
	f.out.Add(to)
	t.in.Add(from)
}

// RemoveEdge disconnects from and to if they are connected
func (g *Graph[I, T]) RemoveEdge(from, to I) {
	f, fok := g.nodes[from]
	t, tok := g.nodes[to]
	if !fok || !tok {
		return
	}
	f.out.Remove(to)
	t.in.Remove(from)
	if !g.directed {
		f.in.Remove(to)
		t.out.Remove(from)
	}
}

// HasEdge reports whether from is connected to to
func (g *Graph[I, T]) HasEdge(from, to I) bool {
	f, ok := g.nodes[from]
	return ok && f.out.Has(to)
}

// Nodes returns every id in ascending order
func (g *Graph[I, T]) Nodes() []I {
	return slices.Sorted(maps.Keys(g.nodes))
}

// Edges returns the successors of id, or its neighbors when undirected
func (g *Graph[I, T]) Edges(id I) []I {
	return g.mustNode(id).out.Sorted()
}

// Predecessors returns the ids with an edge into id
func (g *Graph[I, T]) Predecessors(id I) []I {
	return g.mustNode(id).in.Sorted()
}

// InCount returns the number of predecessors of id
func (g *Graph[I, T]) InCount(id I) int {
	return len(g.mustNode(id).in)
}

// EdgeCount returns the number of edges. Each undirected edge counts once.
func (g *Graph[I, T]) EdgeCount() int {
	n := 0
	for _, nd := range g.nodes {
		n += len(nd.out)
	}
	if !g.directed {
		n /= 2
	}
	return n
}

func (g *Graph[I, T]) mustNode(id I) *node[I, T] {
	n, ok := g.nodes[id]
	if !ok {
		errors.Invariant("graph node %v does not exist", id)
	}
	return n
}
