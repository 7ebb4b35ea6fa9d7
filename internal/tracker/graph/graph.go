package graph

import (
	"errors"
	"fmt"
	"io"
	"log"
)

var (
	ErrCycle       = errors.New("edge would create a cycle")
	ErrUnknownNode = errors.New("unknown node")
)

// Graph is a directed graph keyed by entity id with edges pointing from a
// prerequisite to its dependent. A Graph returned by Builder.Build is never
// modified afterwards.
type Graph struct {
	order []string
	nodes map[string]struct{}
	out   map[string][]string
	in    map[string][]string
	edges int
}

func newGraph() *Graph {
	return &Graph{
		nodes: map[string]struct{}{},
		out:   map[string][]string{},
		in:    map[string][]string{},
	}
}

func (g *Graph) Has(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

func (g *Graph) Len() int       { return len(g.order) }
func (g *Graph) EdgeCount() int { return g.edges }

// Nodes returns node ids in insertion order.
func (g *Graph) Nodes() []string { return append([]string(nil), g.order...) }

func (g *Graph) Children(id string) []string { return append([]string(nil), g.out[id]...) }
func (g *Graph) Parents(id string) []string  { return append([]string(nil), g.in[id]...) }

func (g *Graph) HasEdge(from, to string) bool {
	for _, c := range g.out[from] {
		if c == to {
			return true
		}
	}
	return false
}

// Ancestors returns every node that can reach id, nearest first.
func (g *Graph) Ancestors(id string) []string { return g.walk(id, g.in) }

// Descendants returns every node reachable from id, nearest first.
func (g *Graph) Descendants(id string) []string { return g.walk(id, g.out) }

func (g *Graph) walk(start string, adj map[string][]string) []string {
	seen := map[string]bool{start: true}
	queue := append([]string(nil), adj[start]...)
	var out []string
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
		queue = append(queue, adj[n]...)
	}
	return out
}

// Reachable reports whether to can be reached from from by following edges.
func (g *Graph) Reachable(from, to string) bool {
	if from == to {
		return true
	}
	seen := map[string]bool{from: true}
	stack := append([]string(nil), g.out[from]...)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == to {
			return true
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		stack = append(stack, g.out[n]...)
	}
	return false
}

// WouldCreateCycle reports whether adding from->to closes a cycle, i.e.
// whether from is already reachable from to.
func WouldCreateCycle(g *Graph, from, to string) bool {
	return g.Reachable(to, from)
}

// Builder accumulates nodes and edges and hands out an immutable Graph.
type Builder struct {
	g   *Graph
	log *log.Logger
}

func NewBuilder(logger *log.Logger) *Builder {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Builder{g: newGraph(), log: logger}
}

// AddNode is idempotent.
func (b *Builder) AddNode(id string) {
	if _, ok := b.g.nodes[id]; ok {
		return
	}
	b.g.nodes[id] = struct{}{}
	b.g.order = append(b.g.order, id)
}

func (b *Builder) Has(id string) bool { return b.g.Has(id) }

// AddEdge adds from->to. Duplicate edges are ignored. An edge that would
// close a cycle is dropped, logged, and reported as ErrCycle.
func (b *Builder) AddEdge(from, to string) error {
	if !b.g.Has(from) {
		return fmt.Errorf("%w: %s", ErrUnknownNode, from)
	}
	if !b.g.Has(to) {
		return fmt.Errorf("%w: %s", ErrUnknownNode, to)
	}
	if b.g.HasEdge(from, to) {
		return nil
	}
	if WouldCreateCycle(b.g, from, to) {
		b.log.Printf("graph: dropping edge %s -> %s: would create a cycle", from, to)
		return fmt.Errorf("%w: %s -> %s", ErrCycle, from, to)
	}
	b.g.out[from] = append(b.g.out[from], to)
	b.g.in[to] = append(b.g.in[to], from)
	b.g.edges++
	return nil
}

// Build returns the accumulated graph and resets the builder.
func (b *Builder) Build() *Graph {
	g := b.g
	b.g = newGraph()
	return g
}
