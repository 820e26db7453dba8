// Package graph provides an immutable snapshot of the component dependency
// graph and the auto-tag propagation over it.
package graph

import (
	"sort"

	"github.com/relicta-tech/bitsmith/internal/domain/component"
)

// Graph is an immutable dependency graph built from a workspace snapshot.
//
// It is safe for concurrent read access.
type Graph struct {
	ids   component.IDList
	index map[string]int

	outgoing [][]int // dependencies, by canonical index, sorted ascending
	incoming [][]int // dependents, by canonical index, sorted ascending

	missing map[int][]component.ID
	cycles  [][]int
	cyclic  map[int]bool
}

// New builds a graph. Component order is the canonical order. Dependencies
// that do not name a workspace component are recorded as missing rather than
// rejected; a dependency without a scope resolves to the unique component of
// that name.
func New(components []component.Component) *Graph {
	g := &Graph{
		ids:      make(component.IDList, 0, len(components)),
		index:    make(map[string]int, len(components)),
		outgoing: make([][]int, len(components)),
		incoming: make([][]int, len(components)),
		missing:  make(map[int][]component.ID),
		cyclic:   make(map[int]bool),
	}
	for i, c := range components {
		id := c.ID.WithoutVersion()
		g.ids = append(g.ids, id)
		g.index[id.FullName()] = i
	}

	for i, c := range components {
		seen := make(map[int]bool)
		for _, dep := range c.Dependencies {
			j, ok := g.resolve(dep)
			if !ok {
				g.missing[i] = append(g.missing[i], dep.WithoutVersion())
				continue
			}
			if seen[j] {
				continue
			}
			seen[j] = true
			g.outgoing[i] = append(g.outgoing[i], j)
			g.incoming[j] = append(g.incoming[j], i)
		}
	}
	for i := range g.outgoing {
		sort.Ints(g.outgoing[i])
		sort.Ints(g.incoming[i])
	}

	g.findCycles()
	return g
}

func (g *Graph) resolve(dep component.ID) (int, bool) {
	if i, ok := g.index[dep.FullName()]; ok {
		return i, true
	}
	if dep.Scope != "" {
		return 0, false
	}
	match := -1
	for i, id := range g.ids {
		if id.EqualWithoutScopeAndVersion(dep) {
			if match >= 0 {
				return 0, false
			}
			match = i
		}
	}
	return match, match >= 0
}

func (g *Graph) lookup(id component.ID) (int, bool) {
	i, ok := g.index[id.FullName()]
	return i, ok
}

// Len returns the number of components.
func (g *Graph) Len() int {
	return len(g.ids)
}

// IDs returns the component ids in canonical order.
func (g *Graph) IDs() component.IDList {
	out := make(component.IDList, len(g.ids))
	copy(out, g.ids)
	return out
}

// Has reports whether id (ignoring version) is part of the graph.
func (g *Graph) Has(id component.ID) bool {
	_, ok := g.lookup(id)
	return ok
}

// Dependencies returns the resolved direct dependencies of id.
func (g *Graph) Dependencies(id component.ID) component.IDList {
	i, ok := g.lookup(id)
	if !ok {
		return nil
	}
	return g.toIDs(g.outgoing[i])
}

// Dependents returns the components that directly depend on id.
func (g *Graph) Dependents(id component.ID) component.IDList {
	i, ok := g.lookup(id)
	if !ok {
		return nil
	}
	return g.toIDs(g.incoming[i])
}

// Missing returns the dependencies of id that are not workspace components.
func (g *Graph) Missing(id component.ID) []component.ID {
	i, ok := g.lookup(id)
	if !ok {
		return nil
	}
	return g.missing[i]
}

// InCycle reports whether id is part of a dependency cycle.
func (g *Graph) InCycle(id component.ID) bool {
	i, ok := g.lookup(id)
	return ok && g.cyclic[i]
}

// Cycles returns every dependency cycle as a list of its members.
func (g *Graph) Cycles() []component.IDList {
	out := make([]component.IDList, 0, len(g.cycles))
	for _, c := range g.cycles {
		out = append(out, g.toIDs(c))
	}
	return out
}

func (g *Graph) toIDs(idx []int) component.IDList {
	out := make(component.IDList, 0, len(idx))
	for _, i := range idx {
		out = append(out, g.ids[i])
	}
	return out
}

// findCycles runs Tarjan's strongly connected components algorithm. Every
// component of size > 1, and every self-loop, is a cycle.
func (g *Graph) findCycles() {
	n := len(g.ids)
	index := make([]int, n)
	low := make([]int, n)
	onStack := make([]bool, n)
	for i := range index {
		index[i] = -1
	}
	var stack []int
	next := 0

	var strongConnect func(v int)
	strongConnect = func(v int) {
		index[v] = next
		low[v] = next
		next++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.outgoing[v] {
			if index[w] < 0 {
				strongConnect(w)
				low[v] = min(low[v], low[w])
			} else if onStack[w] {
				low[v] = min(low[v], index[w])
			}
		}

		if low[v] != index[v] {
			return
		}
		var scc []int
		for {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[w] = false
			scc = append(scc, w)
			if w == v {
				break
			}
		}
		if len(scc) > 1 || g.selfLoop(v) {
			sort.Ints(scc)
			g.cycles = append(g.cycles, scc)
			for _, w := range scc {
				g.cyclic[w] = true
			}
		}
	}

	for v := 0; v < n; v++ {
		if index[v] < 0 {
			strongConnect(v)
		}
	}
	sort.Slice(g.cycles, func(i, j int) bool { return g.cycles[i][0] < g.cycles[j][0] })
}

func (g *Graph) selfLoop(v int) bool {
	for _, w := range g.outgoing[v] {
		if w == v {
			return true
		}
	}
	return false
}
