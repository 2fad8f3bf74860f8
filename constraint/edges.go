package constraint

import (
	"github.com/albertocavalcante/go-modman/mod"
	"github.com/albertocavalcante/go-modman/version"
)

// EdgeKind distinguishes the two relations between mods.
type EdgeKind int

const (
	DependsOn EdgeKind = iota
	ConflictsWith
)

func (k EdgeKind) String() string {
	if k == ConflictsWith {
		return "conflicts-with"
	}
	return "depends-on"
}

// Edge is a relation declared by one release towards another mod.
type Edge struct {
	From     mod.Key
	To       mod.ID
	Kind     EdgeKind
	Range    version.Range
	Optional bool
}

// EdgesOf returns the edges declared by r, dependencies first.
func EdgesOf(r *mod.Release) []Edge {
	edges := make([]Edge, 0, len(r.Dependencies)+len(r.Conflicts))
	from := r.Key()
	for _, d := range r.Dependencies {
		edges = append(edges, Edge{From: from, To: d.Target, Kind: DependsOn, Range: d.Range, Optional: d.Optional})
	}
	for _, c := range r.Conflicts {
		edges = append(edges, Edge{From: from, To: c.Target, Kind: ConflictsWith, Range: c.Range})
	}
	return edges
}

// Edges returns the edges of a loaded release, or nil when it is not loaded.
func (m *Model) Edges(id mod.ID, v version.Version) []Edge {
	r, ok := m.Release(id, v)
	if !ok {
		return nil
	}
	return EdgesOf(r)
}

// Violates reports whether a and b may not be installed together because
// either declares a conflict covering the other.
func Violates(a, b *mod.Release) bool {
	for _, c := range a.Conflicts {
		if c.Target == b.ID && c.Range.Contains(b.Version) {
			return true
		}
	}
	for _, c := range b.Conflicts {
		if c.Target == a.ID && c.Range.Contains(a.Version) {
			return true
		}
	}
	return false
}
