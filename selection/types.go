package selection

import (
	"slices"

	"github.com/albertocavalcante/go-modman/mod"
	"github.com/albertocavalcante/go-modman/version"
)

// OpKind is the kind of a requested operation.
type OpKind int

const (
	OpInstall OpKind = iota
	OpRemove
	OpUpgrade
)

func (k OpKind) String() string {
	switch k {
	case OpInstall:
		return "install"
	case OpRemove:
		return "remove"
	case OpUpgrade:
		return "upgrade"
	}
	return "unknown"
}

// Operation is one entry of a Request. A nil Range means any version.
type Operation struct {
	Kind  OpKind
	Mod   mod.ID
	Range *version.Range
}

// Install requests id, optionally within rng.
func Install(id mod.ID, rng ...version.Range) Operation {
	return Operation{Kind: OpInstall, Mod: id, Range: firstRange(rng)}
}

// Remove requests id be uninstalled.
func Remove(id mod.ID) Operation {
	return Operation{Kind: OpRemove, Mod: id}
}

// Upgrade requests the latest version of id, optionally within rng.
func Upgrade(id mod.ID, rng ...version.Range) Operation {
	return Operation{Kind: OpUpgrade, Mod: id, Range: firstRange(rng)}
}

func firstRange(rs []version.Range) *version.Range {
	if len(rs) == 0 {
		return nil
	}
	r := rs[0]
	return &r
}

// rangeOrAny returns the operation's range, or Any when none was given.
func (o Operation) rangeOrAny() version.Range {
	if o.Range == nil {
		return version.Any()
	}
	return *o.Range
}

func (o Operation) String() string {
	s := o.Kind.String() + " " + string(o.Mod)
	if o.Range != nil && !o.Range.IsAny() {
		s += " " + o.Range.String()
	}
	return s
}

// Request is a set of operations resolved together as one unit.
type Request struct {
	Ops []Operation
}

// NewRequest builds a request from operations.
func NewRequest(ops ...Operation) Request {
	return Request{Ops: ops}
}

// Removals returns the mods the request removes, in request order.
func (r Request) Removals() []mod.ID {
	var out []mod.ID
	for _, op := range r.Ops {
		if op.Kind == OpRemove && !slices.Contains(out, op.Mod) {
			out = append(out, op.Mod)
		}
	}
	return out
}

// Selected is one entry of a TargetState.
type Selected struct {
	Release *mod.Release
	Reason  mod.InstallReason
}

// TargetState is the desired installed set after a request.
type TargetState map[mod.ID]Selected

// IDs returns the selected mods in sorted order.
func (t TargetState) IDs() []mod.ID {
	ids := make([]mod.ID, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Version returns the selected version of id.
func (t TargetState) Version(id mod.ID) (version.Version, bool) {
	s, ok := t[id]
	if !ok {
		return version.Version{}, false
	}
	return s.Release.Version, true
}

// Installed converts t to the InstalledState it describes once applied.
func (t TargetState) Installed() mod.InstalledState {
	out := make(mod.InstalledState, len(t))
	for id, s := range t {
		out[id] = mod.InstalledEntry{ID: id, Version: s.Release.Version, Reason: s.Reason}
	}
	return out
}
