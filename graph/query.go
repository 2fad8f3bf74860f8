package graph

import (
	"fmt"
	"slices"

	"github.com/albertocavalcante/go-modman/mod"
)

// Get returns the node for id, or nil if not found.
func (g *Graph) Get(id mod.ID) *Node {
	return g.Mods[id]
}

// Contains returns true if the graph contains id.
func (g *Graph) Contains(id mod.ID) bool {
	_, ok := g.Mods[id]
	return ok
}

// IDs returns every mod in the graph, sorted.
func (g *Graph) IDs() []mod.ID {
	ids := make([]mod.ID, 0, len(g.Mods))
	for id := range g.Mods {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// DirectDeps returns the direct dependencies of id.
func (g *Graph) DirectDeps(id mod.ID) []mod.ID {
	if node := g.Mods[id]; node != nil {
		return node.Dependencies
	}
	return nil
}

// DirectDependents returns mods that directly depend on id.
func (g *Graph) DirectDependents(id mod.ID) []mod.ID {
	if node := g.Mods[id]; node != nil {
		return node.Dependents
	}
	return nil
}

// HardDependents returns mods that depend on id through a non-optional
// dependency.
func (g *Graph) HardDependents(id mod.ID) []mod.ID {
	var out []mod.ID
	for _, dep := range g.DirectDependents(id) {
		if !g.Mods[dep].Optional[id] {
			out = append(out, dep)
		}
	}
	return out
}

// TransitiveDeps returns all transitive dependencies of id in breadth-first
// order.
func (g *Graph) TransitiveDeps(id mod.ID) []mod.ID {
	return g.walk(id, func(n *Node) []mod.ID { return n.Dependencies })
}

// TransitiveDependents returns all mods that transitively depend on id,
// closest first.
func (g *Graph) TransitiveDependents(id mod.ID) []mod.ID {
	return g.walk(id, func(n *Node) []mod.ID { return n.Dependents })
}

func (g *Graph) walk(start mod.ID, next func(*Node) []mod.ID) []mod.ID {
	result := make([]mod.ID, 0)
	visited := map[mod.ID]bool{start: true}
	queue := []mod.ID{start}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		node := g.Mods[current]
		if node == nil {
			continue
		}
		for _, id := range next(node) {
			if !visited[id] {
				visited[id] = true
				result = append(result, id)
				queue = append(queue, id)
			}
		}
	}
	return result
}

// Path finds the shortest dependency path from one mod to another.
// Returns nil if no path exists.
func (g *Graph) Path(from, to mod.ID) Chain {
	if from == to {
		if g.Contains(from) {
			return Chain{from}
		}
		return nil
	}

	type queueItem struct {
		id   mod.ID
		path Chain
	}

	visited := map[mod.ID]bool{from: true}
	queue := []queueItem{{id: from, path: Chain{from}}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		node := g.Mods[current.id]
		if node == nil {
			continue
		}
		for _, dep := range node.Dependencies {
			if visited[dep] {
				continue
			}
			path := make(Chain, len(current.path), len(current.path)+1)
			copy(path, current.path)
			path = append(path, dep)
			if dep == to {
				return path
			}
			visited[dep] = true
			queue = append(queue, queueItem{id: dep, path: path})
		}
	}
	return nil
}

// Explicit returns the mods the user asked for, sorted.
func (g *Graph) Explicit() []mod.ID {
	var out []mod.ID
	for _, id := range g.IDs() {
		if g.Mods[id].Explicit {
			out = append(out, id)
		}
	}
	return out
}

// WhyIncluded returns the shortest chain from each explicit mod that
// reaches id. An explicit mod yields a chain of itself.
func (g *Graph) WhyIncluded(id mod.ID) ([]Chain, error) {
	if !g.Contains(id) {
		return nil, fmt.Errorf("mod %q not found in graph", id)
	}
	var chains []Chain
	for _, root := range g.Explicit() {
		if path := g.Path(root, id); path != nil {
			chains = append(chains, path)
		}
	}
	return chains, nil
}

// Leaves returns mods with no dependencies, sorted.
func (g *Graph) Leaves() []mod.ID {
	var leaves []mod.ID
	for _, id := range g.IDs() {
		if len(g.Mods[id].Dependencies) == 0 {
			leaves = append(leaves, id)
		}
	}
	return leaves
}

// Orphans returns mods that are neither explicit nor reachable from an
// explicit mod, sorted.
func (g *Graph) Orphans() []mod.ID {
	reachable := make(map[mod.ID]bool)
	for _, root := range g.Explicit() {
		reachable[root] = true
		for _, id := range g.TransitiveDeps(root) {
			reachable[id] = true
		}
	}
	var out []mod.ID
	for _, id := range g.IDs() {
		if !reachable[id] {
			out = append(out, id)
		}
	}
	return out
}

// Stats returns statistics about the graph.
func (g *Graph) Stats() Stats {
	stats := Stats{Total: len(g.Mods)}
	for _, node := range g.Mods {
		if node.Explicit {
			stats.Explicit++
		} else {
			stats.Dependencies++
		}
	}
	stats.Cycles = len(g.FindCycles())
	stats.MaxDepth = g.calculateMaxDepth()
	return stats
}

func (g *Graph) calculateMaxDepth() int {
	depths := make(map[mod.ID]int)
	onPath := make(map[mod.ID]bool)
	var maxDepth int

	var dfs func(id mod.ID, depth int)
	dfs = func(id mod.ID, depth int) {
		// A node already on the current path closes a cycle.
		if onPath[id] {
			return
		}
		if existing, ok := depths[id]; ok && existing >= depth {
			return
		}
		depths[id] = depth
		maxDepth = max(maxDepth, depth)

		node := g.Mods[id]
		if node == nil {
			return
		}
		onPath[id] = true
		for _, dep := range node.Dependencies {
			dfs(dep, depth+1)
		}
		delete(onPath, id)
	}

	for _, id := range g.IDs() {
		if len(g.Mods[id].Dependents) == 0 || g.Mods[id].Explicit {
			dfs(id, 0)
		}
	}
	return maxDepth
}
