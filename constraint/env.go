package constraint

import (
	"slices"

	"github.com/albertocavalcante/go-modman/mod"
	"github.com/albertocavalcante/go-modman/version"
)

// Environment describes the game installation releases must run on. Zero
// fields do not restrict anything.
type Environment struct {
	GameVersion   version.Version
	Loader        string
	LoaderVersion version.Version
	// Channels lists the accepted release channels. Empty accepts all.
	Channels []mod.Channel
}

// Accepts reports whether r is installable in e.
func (e Environment) Accepts(r *mod.Release) bool {
	if !e.GameVersion.IsZero() && !r.GameRange.Contains(e.GameVersion) {
		return false
	}
	if !e.LoaderVersion.IsZero() && !r.LoaderRange.Contains(e.LoaderVersion) {
		return false
	}
	if !r.SupportsLoader(e.Loader) {
		return false
	}
	if len(e.Channels) > 0 && r.Channel != "" && !slices.Contains(e.Channels, r.Channel) {
		return false
	}
	return true
}
