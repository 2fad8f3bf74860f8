package graph

import (
	"strings"

	"github.com/albertocavalcante/go-modman/mod"
)

// Graph is the dependency graph of a mod set. It supports traversal in both
// directions.
type Graph struct {
	// Mods contains all nodes, keyed by mod ID.
	Mods map[mod.ID]*Node
}

// Node is one mod in the graph.
type Node struct {
	// Release is the release this node stands for.
	Release *mod.Release

	// Dependencies are the mods this one depends on, sorted. Only targets
	// present in the graph are listed.
	Dependencies []mod.ID

	// Dependents are the mods that depend on this one, sorted.
	Dependents []mod.ID

	// Optional marks dependencies declared optional by Release.
	Optional map[mod.ID]bool

	// Explicit is true for mods the user asked for.
	Explicit bool
}

// Key returns the node's release identity.
func (n *Node) Key() mod.Key { return n.Release.Key() }

// Chain is a path of dependencies from an explicit mod to another mod.
type Chain []mod.ID

func (c Chain) String() string {
	parts := make([]string, len(c))
	for i, id := range c {
		parts[i] = string(id)
	}
	return strings.Join(parts, " -> ")
}

// Stats summarizes a graph.
type Stats struct {
	// Total is the number of mods in the graph.
	Total int

	// Explicit is the number of mods the user asked for.
	Explicit int

	// Dependencies is the number of mods installed only as dependencies.
	Dependencies int

	// MaxDepth is the longest acyclic dependency chain.
	MaxDepth int

	// Cycles is the number of dependency cycles.
	Cycles int
}
