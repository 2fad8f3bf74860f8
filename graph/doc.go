// Package graph provides the dependency graph of an installed or target mod
// set and the queries the planner and the CLI run over it.
//
// A Graph holds one release per mod. Edges point from a dependent to the
// mods it depends on; both hard and optional dependencies produce edges when
// the target is present in the set.
//
// # Building a Graph
//
//	g := graph.Build(releases, explicit)
//
// # Ordering
//
// Components returns the strongly connected components in dependency order,
// so a planner can install dependencies before their dependents and treat
// each multi-member component as one batch:
//
//	for _, scc := range g.Components() {
//		...
//	}
//
// # Output Formats
//
//	jsonBytes, _ := g.ToJSON()
//	dotString := g.ToDOT()
//	textString := g.ToText()
package graph
