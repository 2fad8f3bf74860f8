package mod

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"

	"github.com/albertocavalcante/go-modman/version"
)

// ID identifies a mod in a registry (a slug such as "fabric-api").
type ID string

// NormalizeID returns the canonical form of a user supplied identifier.
func NormalizeID(s string) ID {
	return ID(strings.ToLower(strings.TrimSpace(s)))
}

func (id ID) String() string { return string(id) }

// Key identifies one release of a mod.
type Key struct {
	ID      ID
	Version string
}

// String returns "id@version", or "id@_" when the version is unknown.
func (k Key) String() string {
	if k.Version == "" {
		return string(k.ID) + "@_"
	}
	return string(k.ID) + "@" + k.Version
}

// Dependency is a release's requirement on another mod.
type Dependency struct {
	Target ID
	Range  version.Range
	// Optional dependencies only constrain the version of Target when
	// Target is present for another reason.
	Optional bool
}

func (d Dependency) String() string {
	s := string(d.Target) + " " + d.Range.String()
	if d.Optional {
		s += " (optional)"
	}
	return s
}

// Conflict declares versions of Target that cannot coexist with the
// declaring release.
type Conflict struct {
	Target ID
	Range  version.Range
}

// Channel is a release's stability channel.
type Channel string

const (
	ChannelRelease Channel = "release"
	ChannelBeta    Channel = "beta"
	ChannelAlpha   Channel = "alpha"
)

// File is a downloadable artifact of a release.
type File struct {
	URL      string
	Filename string
	Size     int64
	SHA1     string
	SHA512   string
	Primary  bool
}

// Release is one published version of a mod.
type Release struct {
	ID           ID
	Version      version.Version
	Dependencies []Dependency
	Conflicts    []Conflict

	// LoaderRange and GameRange bound the loader and game versions the
	// release runs on. The zero Range accepts everything.
	LoaderRange version.Range
	GameRange   version.Range

	// Loaders names the mod loaders the release supports (fabric, forge,
	// quilt). Empty means unrestricted.
	Loaders []string
	Channel Channel
	Files   []File
}

// Key returns the release's identity.
func (r *Release) Key() Key {
	return Key{ID: r.ID, Version: r.Version.String()}
}

func (r *Release) String() string { return r.Key().String() }

// PrimaryFile returns the file to install for this release. When no file
// is flagged primary the first one is used.
func (r *Release) PrimaryFile() (File, bool) {
	for _, f := range r.Files {
		if f.Primary {
			return f, true
		}
	}
	if len(r.Files) > 0 {
		return r.Files[0], true
	}
	return File{}, false
}

// DependsOn returns the dependency on target, if declared.
func (r *Release) DependsOn(target ID) (Dependency, bool) {
	for _, d := range r.Dependencies {
		if d.Target == target {
			return d, true
		}
	}
	return Dependency{}, false
}

// SupportsLoader reports whether the release runs on loader.
func (r *Release) SupportsLoader(loader string) bool {
	if len(r.Loaders) == 0 || loader == "" {
		return true
	}
	return slices.ContainsFunc(r.Loaders, func(l string) bool {
		return strings.EqualFold(l, loader)
	})
}

// Stub returns a release carrying only an identity. It stands in for an
// installed release whose metadata is no longer available.
func Stub(id ID, v version.Version) *Release {
	return &Release{ID: id, Version: v}
}

// Provider supplies releases for a mod. Implementations return an error
// matching ErrNotFound when the mod does not exist. Results must be
// deterministic for the lifetime of one resolution.
type Provider interface {
	GetReleases(ctx context.Context, id ID) ([]*Release, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, id ID) ([]*Release, error)

// GetReleases calls f.
func (f ProviderFunc) GetReleases(ctx context.Context, id ID) ([]*Release, error) {
	return f(ctx, id)
}

// InstallReason records why a mod is installed.
type InstallReason int

const (
	// ReasonExplicit marks mods the user asked for.
	ReasonExplicit InstallReason = iota
	// ReasonDependency marks mods pulled in to satisfy another mod. They are
	// removed once nothing requires them.
	ReasonDependency
)

func (r InstallReason) String() string {
	switch r {
	case ReasonExplicit:
		return "explicit"
	case ReasonDependency:
		return "dependency"
	default:
		return fmt.Sprintf("InstallReason(%d)", int(r))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r InstallReason) MarshalText() ([]byte, error) {
	switch r {
	case ReasonExplicit, ReasonDependency:
		return []byte(r.String()), nil
	}
	return nil, fmt.Errorf("invalid install reason %d", int(r))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *InstallReason) UnmarshalText(text []byte) error {
	switch string(text) {
	case "explicit":
		*r = ReasonExplicit
	case "dependency":
		*r = ReasonDependency
	default:
		return fmt.Errorf("invalid install reason %q", text)
	}
	return nil
}

// InstalledEntry is one installed mod.
type InstalledEntry struct {
	ID      ID
	Version version.Version
	Reason  InstallReason
}

// InstalledState maps each installed mod to its entry. A mod appears at
// most once.
type InstalledState map[ID]InstalledEntry

// IDs returns the installed mod identifiers in sorted order.
func (s InstalledState) IDs() []ID {
	ids := make([]ID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Clone returns an independent copy of s.
func (s InstalledState) Clone() InstalledState {
	out := make(InstalledState, len(s))
	for id, e := range s {
		out[id] = e
	}
	return out
}

// Equal reports whether both states hold the same entries.
func (s InstalledState) Equal(o InstalledState) bool {
	if len(s) != len(o) {
		return false
	}
	for id, e := range s {
		oe, ok := o[id]
		if !ok || oe.Reason != e.Reason || !oe.Version.Equal(e.Version) {
			return false
		}
	}
	return true
}

// Fingerprint returns a stable digest of s. Two states with the same
// entries always share a fingerprint.
func (s InstalledState) Fingerprint() string {
	h := sha256.New()
	for _, id := range s.IDs() {
		e := s[id]
		fmt.Fprintf(h, "%s\x00%s\x00%s\n", id, e.Version.String(), e.Reason)
	}
	return hex.EncodeToString(h.Sum(nil))
}
