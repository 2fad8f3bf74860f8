package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/albertocavalcante/go-modman/mod"
)

const separatorWidth = 60 // Width of separator lines in text output

// JSONGraph is the JSON form of a Graph.
type JSONGraph struct {
	Mods   []JSONMod  `json:"mods"`
	Cycles [][]string `json:"cycles,omitempty"`
}

// JSONMod is one mod in the JSON form.
type JSONMod struct {
	ID           string   `json:"id"`
	Version      string   `json:"version"`
	Explicit     bool     `json:"explicit,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
	RequiredBy   []string `json:"requiredBy,omitempty"`
}

// ToJSON outputs the graph as indented JSON with mods sorted by ID.
func (g *Graph) ToJSON() ([]byte, error) {
	out := JSONGraph{Mods: make([]JSONMod, 0, len(g.Mods))}
	for _, id := range g.IDs() {
		node := g.Mods[id]
		out.Mods = append(out.Mods, JSONMod{
			ID:           string(id),
			Version:      node.Release.Version.String(),
			Explicit:     node.Explicit,
			Dependencies: idStrings(node.Dependencies),
			RequiredBy:   idStrings(node.Dependents),
		})
	}
	for _, cycle := range g.FindCycles() {
		out.Cycles = append(out.Cycles, idStrings(cycle))
	}
	return json.MarshalIndent(out, "", "  ")
}

func idStrings(ids []mod.ID) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

// ToDOT outputs the graph in Graphviz DOT format. Optional edges are dashed
// and explicit mods are bold.
func (g *Graph) ToDOT() string {
	var buf bytes.Buffer

	buf.WriteString("digraph mods {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  node [shape=box];\n\n")

	ids := g.IDs()
	for _, id := range ids {
		node := g.Mods[id]
		attrs := fmt.Sprintf(`label="%s\n%s"`, id, node.Release.Version) //nolint:gocritic // DOT format requires this quote style
		if node.Explicit {
			attrs += ", style=bold"
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", string(id), attrs)
	}

	buf.WriteString("\n")

	for _, id := range ids {
		node := g.Mods[id]
		for _, dep := range node.Dependencies {
			if node.Optional[dep] {
				fmt.Fprintf(&buf, "  %q -> %q [style=dashed];\n", string(id), string(dep))
				continue
			}
			fmt.Fprintf(&buf, "  %q -> %q;\n", string(id), string(dep))
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

// ToText outputs a human-readable tree rooted at each explicit mod,
// followed by any mods no explicit mod reaches.
func (g *Graph) ToText() string {
	var buf bytes.Buffer

	stats := g.Stats()
	buf.WriteString("Installed Mods\n")
	buf.WriteString(strings.Repeat("=", separatorWidth) + "\n\n")
	fmt.Fprintf(&buf, "Total mods: %d\n", stats.Total)
	fmt.Fprintf(&buf, "Explicit: %d\n", stats.Explicit)
	fmt.Fprintf(&buf, "Dependencies: %d\n", stats.Dependencies)
	fmt.Fprintf(&buf, "Max depth: %d\n", stats.MaxDepth)
	if stats.Cycles > 0 {
		fmt.Fprintf(&buf, "Cycles: %d\n", stats.Cycles)
	}
	buf.WriteString("\n")

	visited := make(map[mod.ID]bool)
	for _, root := range g.Explicit() {
		g.printRoot(&buf, root, visited)
	}
	if orphans := g.Orphans(); len(orphans) > 0 {
		buf.WriteString("\nUnreferenced:\n")
		for _, id := range orphans {
			fmt.Fprintf(&buf, "  %s\n", g.Mods[id].Key())
		}
	}
	return buf.String()
}

func (g *Graph) printRoot(buf *bytes.Buffer, id mod.ID, visited map[mod.ID]bool) {
	node := g.Mods[id]
	buf.WriteString(node.Key().String() + "\n")

	visited[id] = true
	defer func() { visited[id] = false }()
	for i, dep := range node.Dependencies {
		g.printTree(buf, dep, "", i == len(node.Dependencies)-1, visited)
	}
}

func (g *Graph) printTree(buf *bytes.Buffer, id mod.ID, prefix string, isLast bool, visited map[mod.ID]bool) {
	connector := "├── "
	if isLast {
		connector = "└── "
	}
	node := g.Mods[id]
	buf.WriteString(prefix + connector + node.Key().String())
	if visited[id] {
		buf.WriteString(" (circular)\n")
		return
	}
	buf.WriteString("\n")

	visited[id] = true
	defer func() { visited[id] = false }()

	childPrefix := prefix + "│   "
	if isLast {
		childPrefix = prefix + "    "
	}
	for i, dep := range node.Dependencies {
		g.printTree(buf, dep, childPrefix, i == len(node.Dependencies)-1, visited)
	}
}
