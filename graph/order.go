package graph

import (
	"slices"

	"github.com/albertocavalcante/go-modman/mod"
)

// Components returns the strongly connected components of the graph in
// dependency order: every component comes after the components it depends
// on. Members of a component are sorted, and ties between independent
// components are broken by ID, so the result is deterministic.
func (g *Graph) Components() [][]mod.ID {
	t := tarjan{
		g:       g,
		index:   make(map[mod.ID]int),
		lowlink: make(map[mod.ID]int),
		onStack: make(map[mod.ID]bool),
	}
	for _, id := range g.IDs() {
		if _, seen := t.index[id]; !seen {
			t.connect(id)
		}
	}
	return t.out
}

// FindCycles returns the components with more than one member.
func (g *Graph) FindCycles() [][]mod.ID {
	var cycles [][]mod.ID
	for _, scc := range g.Components() {
		if len(scc) > 1 {
			cycles = append(cycles, scc)
		}
	}
	return cycles
}

// HasCycles returns true if the graph contains a dependency cycle.
func (g *Graph) HasCycles() bool {
	return len(g.FindCycles()) > 0
}

// TopologicalOrder flattens Components, dependencies first.
func (g *Graph) TopologicalOrder() []mod.ID {
	out := make([]mod.ID, 0, len(g.Mods))
	for _, scc := range g.Components() {
		out = append(out, scc...)
	}
	return out
}

// tarjan emits components in reverse topological order of the condensation.
// With edges pointing at dependencies that is exactly dependencies first.
type tarjan struct {
	g       *Graph
	next    int
	index   map[mod.ID]int
	lowlink map[mod.ID]int
	onStack map[mod.ID]bool
	stack   []mod.ID
	out     [][]mod.ID
}

func (t *tarjan) connect(id mod.ID) {
	t.index[id] = t.next
	t.lowlink[id] = t.next
	t.next++
	t.stack = append(t.stack, id)
	t.onStack[id] = true

	for _, dep := range t.g.Mods[id].Dependencies {
		if _, seen := t.index[dep]; !seen {
			t.connect(dep)
			t.lowlink[id] = min(t.lowlink[id], t.lowlink[dep])
		} else if t.onStack[dep] {
			t.lowlink[id] = min(t.lowlink[id], t.index[dep])
		}
	}

	if t.lowlink[id] != t.index[id] {
		return
	}
	var scc []mod.ID
	for {
		n := len(t.stack) - 1
		top := t.stack[n]
		t.stack = t.stack[:n]
		t.onStack[top] = false
		scc = append(scc, top)
		if top == id {
			break
		}
	}
	slices.Sort(scc)
	t.out = append(t.out, scc)
}
