package version

import (
	"fmt"
	"slices"
	"strings"

	mm "github.com/Masterminds/semver/v3"
)

// Version is a parsed mod version.
//
// The zero Version is valid and sorts below every parsed version.
type Version struct {
	raw string
	sv  *mm.Version
	lax *laxVersion
}

// ParseError reports a version string that cannot be ordered.
type ParseError struct {
	Version string
	Message string
}

func (e *ParseError) Error() string {
	return "bad version " + e.Version + ": " + e.Message
}

// Parse parses a version string.
func Parse(raw string) (Version, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Version{}, &ParseError{Version: raw, Message: "empty"}
	}
	if sv, err := mm.NewVersion(s); err == nil {
		return Version{raw: s, sv: sv}, nil
	}
	lax, err := parseLax(s)
	if err != nil {
		return Version{}, err
	}
	return Version{raw: s, lax: lax}, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// package-level literals.
func MustParse(raw string) Version {
	v, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return v
}

// IsZero reports whether v is the zero Version.
func (v Version) IsZero() bool {
	return v.sv == nil && v.lax == nil
}

// Original returns the string v was parsed from.
func (v Version) Original() string {
	return v.raw
}

// String returns the canonical form of v. Semantic versions are normalised
// ("1.2" becomes "1.2.0"); lenient versions are returned as published.
func (v Version) String() string {
	switch {
	case v.sv != nil:
		return v.sv.String()
	case v.lax != nil:
		return v.raw
	default:
		return ""
	}
}

// Prerelease returns the pre-release tag, if any.
func (v Version) Prerelease() string {
	switch {
	case v.sv != nil:
		return v.sv.Prerelease()
	case v.lax != nil:
		return v.lax.prereleaseString()
	default:
		return ""
	}
}

// Compare returns -1, 0 or 1 when a is lower than, equal to or higher than b.
func Compare(a, b Version) int {
	switch {
	case a.IsZero() && b.IsZero():
		return 0
	case a.IsZero():
		return -1
	case b.IsZero():
		return 1
	}

	if a.sv != nil && b.sv != nil {
		if c := a.sv.Compare(b.sv); c != 0 {
			return c
		}
		// semver ignores build metadata; distinct builds still need an order.
		return strings.Compare(a.sv.Metadata(), b.sv.Metadata())
	}

	la, lb := a.laxForm(), b.laxForm()
	if c := compareLax(la, lb); c != 0 {
		return c
	}
	if c := strings.Compare(la.build, lb.build); c != 0 {
		return c
	}
	return strings.Compare(a.String(), b.String())
}

// laxForm returns the lenient representation used when at least one side of
// a comparison is not a semantic version.
func (v Version) laxForm() *laxVersion {
	if v.lax != nil {
		return v.lax
	}
	lax, err := parseLax(v.sv.String())
	if err != nil {
		// Canonical semver strings always match the lenient pattern.
		panic(fmt.Sprintf("version: canonical %q not parseable: %v", v.sv.String(), err))
	}
	return lax
}

// Equal reports whether a and b compare equal.
func (v Version) Equal(o Version) bool { return Compare(v, o) == 0 }

// Less reports whether v sorts before o.
func (v Version) Less(o Version) bool { return Compare(v, o) < 0 }

// MarshalText implements encoding.TextMarshaler.
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Version) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*v = Version{}
		return nil
	}
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Max returns the higher of two versions.
func Max(a, b Version) Version {
	if Compare(a, b) >= 0 {
		return a
	}
	return b
}

// SortDescending sorts versions from highest to lowest in place.
func SortDescending(vs []Version) {
	slices.SortFunc(vs, func(a, b Version) int { return Compare(b, a) })
}
