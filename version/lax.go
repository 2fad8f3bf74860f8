package version

import (
	"cmp"
	"regexp"
	"strconv"
	"strings"
)

var laxPattern = regexp.MustCompile(
	`^v?([a-zA-Z0-9._]+)(?:-([a-zA-Z0-9.\-_]+))?(?:\+([a-zA-Z0-9.\-_]+))?$`,
)

// identifier is one dot-separated segment of a lenient version.
type identifier struct {
	numeric bool
	num     uint64
	str     string
}

func parseIdentifier(s string) identifier {
	if s != "" && strings.Trim(s, "0123456789") == "" {
		if n, err := strconv.ParseUint(s, 10, 64); err == nil {
			return identifier{numeric: true, num: n, str: s}
		}
	}
	return identifier{str: s}
}

// compareIdentifiers orders numeric identifiers before alphanumeric ones,
// numerically among themselves, and alphanumeric ones lexically.
func compareIdentifiers(a, b identifier) int {
	if a.numeric != b.numeric {
		if a.numeric {
			return -1
		}
		return 1
	}
	if a.numeric {
		return cmp.Compare(a.num, b.num)
	}
	return strings.Compare(a.str, b.str)
}

// laxVersion is a RELEASE[-PRERELEASE][+BUILD] version that is not valid
// semver, e.g. four numeric components or an alphanumeric release segment.
type laxVersion struct {
	release    []identifier
	prerelease []identifier
	build      string
}

func parseLax(s string) (*laxVersion, error) {
	m := laxPattern.FindStringSubmatch(s)
	if m == nil {
		return nil, &ParseError{Version: s, Message: "does not match version pattern"}
	}
	v := &laxVersion{build: m[3]}
	for _, part := range strings.FieldsFunc(m[1], isSegmentSep) {
		v.release = append(v.release, parseIdentifier(part))
	}
	if len(v.release) == 0 {
		return nil, &ParseError{Version: s, Message: "no release segment"}
	}
	if m[2] != "" {
		for _, part := range strings.Split(m[2], ".") {
			v.prerelease = append(v.prerelease, parseIdentifier(part))
		}
	}
	return v, nil
}

func isSegmentSep(r rune) bool { return r == '.' || r == '_' }

func (v *laxVersion) prereleaseString() string {
	parts := make([]string, len(v.prerelease))
	for i, id := range v.prerelease {
		parts[i] = id.str
	}
	return strings.Join(parts, ".")
}

// compareLax compares release segments first, then ranks pre-releases below
// the matching release, then compares pre-release segments.
func compareLax(a, b *laxVersion) int {
	if c := compareIdentifierLists(trimZeros(a.release), trimZeros(b.release)); c != 0 {
		return c
	}
	aPre, bPre := len(a.prerelease) > 0, len(b.prerelease) > 0
	if aPre != bPre {
		if aPre {
			return -1
		}
		return 1
	}
	return compareIdentifierLists(a.prerelease, b.prerelease)
}

// trimZeros drops trailing numeric zero segments so that "1.2" and "1.2.0"
// share a release order.
func trimZeros(ids []identifier) []identifier {
	n := len(ids)
	for n > 1 && ids[n-1].numeric && ids[n-1].num == 0 {
		n--
	}
	return ids[:n]
}

func compareIdentifierLists(a, b []identifier) int {
	for i := range min(len(a), len(b)) {
		if c := compareIdentifiers(a[i], b[i]); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(a), len(b))
}
