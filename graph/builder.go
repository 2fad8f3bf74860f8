package graph

import (
	"slices"

	"github.com/albertocavalcante/go-modman/mod"
)

// Build constructs a Graph from releases. explicit reports which mods were
// requested by the user; it may be nil. When two releases share an ID the
// last one wins.
func Build(releases []*mod.Release, explicit func(mod.ID) bool) *Graph {
	g := &Graph{Mods: make(map[mod.ID]*Node, len(releases))}

	for _, r := range releases {
		if r == nil {
			continue
		}
		g.Mods[r.ID] = &Node{
			Release:  r,
			Optional: make(map[mod.ID]bool),
			Explicit: explicit != nil && explicit(r.ID),
		}
	}

	// Forward edges only to mods in the set; reverse edges from those.
	for id, node := range g.Mods {
		for _, dep := range node.Release.Dependencies {
			if dep.Target == id {
				continue
			}
			if _, ok := g.Mods[dep.Target]; !ok {
				continue
			}
			if slices.Contains(node.Dependencies, dep.Target) {
				continue
			}
			node.Dependencies = append(node.Dependencies, dep.Target)
			if dep.Optional {
				node.Optional[dep.Target] = true
			}
		}
	}
	for id, node := range g.Mods {
		for _, dep := range node.Dependencies {
			target := g.Mods[dep]
			target.Dependents = append(target.Dependents, id)
		}
	}
	for _, node := range g.Mods {
		slices.Sort(node.Dependencies)
		slices.Sort(node.Dependents)
	}
	return g
}

// FromInstalled builds the graph of an installed state. lookup supplies the
// release for each entry; entries it cannot resolve become stubs without
// dependencies.
func FromInstalled(installed mod.InstalledState, lookup func(mod.InstalledEntry) (*mod.Release, bool)) *Graph {
	releases := make([]*mod.Release, 0, len(installed))
	for _, id := range installed.IDs() {
		entry := installed[id]
		var r *mod.Release
		if lookup != nil {
			if found, ok := lookup(entry); ok {
				r = found
			}
		}
		if r == nil {
			r = mod.Stub(id, entry.Version)
		}
		releases = append(releases, r)
	}
	return Build(releases, func(id mod.ID) bool {
		return installed[id].Reason == mod.ReasonExplicit
	})
}
