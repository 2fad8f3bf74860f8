package plan

import (
	"github.com/albertocavalcante/go-modman/mod"
	"github.com/albertocavalcante/go-modman/version"
)

// Change is an added or removed mod in a state diff.
type Change struct {
	// ID is the mod identifier.
	ID mod.ID `json:"id"`

	// Version is the mod version.
	Version string `json:"version"`

	// Reason is the install reason on the side the mod is present.
	Reason mod.InstallReason `json:"reason"`
}

// VersionChange is a version change for a mod present on both sides.
type VersionChange struct {
	// ID is the mod identifier.
	ID mod.ID `json:"id"`

	// OldVersion is the installed version.
	OldVersion string `json:"oldVersion"`

	// NewVersion is the target version.
	NewVersion string `json:"newVersion"`
}

// ReasonChange is an install reason change with no version change, such as
// a dependency the user now installs explicitly.
type ReasonChange struct {
	ID  mod.ID            `json:"id"`
	Old mod.InstallReason `json:"old"`
	New mod.InstallReason `json:"new"`
}

// Diff describes the differences between two installed states.
//
// Example usage:
//
//	d := plan.DiffStates(installed, target.Installed())
//	if !d.IsEmpty() {
//	    fmt.Printf("Changes: %d added, %d removed, %d upgraded, %d downgraded\n",
//	        len(d.Added), len(d.Removed), len(d.Upgraded), len(d.Downgraded))
//	}
type Diff struct {
	// Added contains mods present in new but not in old.
	Added []Change `json:"added,omitempty"`

	// Removed contains mods present in old but not in new.
	Removed []Change `json:"removed,omitempty"`

	// Upgraded contains mods where the new version is higher.
	Upgraded []VersionChange `json:"upgraded,omitempty"`

	// Downgraded contains mods where the new version is lower.
	Downgraded []VersionChange `json:"downgraded,omitempty"`

	// Retagged contains mods whose install reason changed alone.
	Retagged []ReasonChange `json:"retagged,omitempty"`
}

// IsEmpty returns true if there are no version changes. Retagged entries do
// not count: they touch no files.
func (d *Diff) IsEmpty() bool {
	return d.TotalChanges() == 0
}

// TotalChanges returns the number of added, removed, upgraded and downgraded
// mods.
func (d *Diff) TotalChanges() int {
	return len(d.Added) + len(d.Removed) + len(d.Upgraded) + len(d.Downgraded)
}

// DiffStates computes the difference between two installed states. Either
// side may be nil. Results are sorted by mod ID.
func DiffStates(old, new mod.InstalledState) *Diff {
	diff := &Diff{}

	for _, id := range new.IDs() {
		n := new[id]
		o, existedBefore := old[id]
		if !existedBefore {
			diff.Added = append(diff.Added, Change{ID: id, Version: n.Version.String(), Reason: n.Reason})
			continue
		}
		switch c := version.Compare(n.Version, o.Version); {
		case c > 0:
			diff.Upgraded = append(diff.Upgraded, VersionChange{ID: id, OldVersion: o.Version.String(), NewVersion: n.Version.String()})
		case c < 0:
			diff.Downgraded = append(diff.Downgraded, VersionChange{ID: id, OldVersion: o.Version.String(), NewVersion: n.Version.String()})
		case n.Reason != o.Reason:
			diff.Retagged = append(diff.Retagged, ReasonChange{ID: id, Old: o.Reason, New: n.Reason})
		}
	}

	for _, id := range old.IDs() {
		if _, existsNow := new[id]; !existsNow {
			o := old[id]
			diff.Removed = append(diff.Removed, Change{ID: id, Version: o.Version.String(), Reason: o.Reason})
		}
	}

	return diff
}
