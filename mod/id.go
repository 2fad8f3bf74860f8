package mod

import (
	"fmt"
	"regexp"
)

// MaxIDLength bounds the length of a mod identifier.
const MaxIDLength = 64

// Identifiers are registry slugs: lower-case letters, digits and . _ + -,
// starting and ending with a letter or digit.
var idRegex = regexp.MustCompile(`^[a-z0-9]([a-z0-9._+-]*[a-z0-9])?$`)

// ParseID normalizes s and validates it as a mod identifier.
func ParseID(s string) (ID, error) {
	id := NormalizeID(s)
	if id == "" {
		return "", fmt.Errorf("mod id cannot be empty")
	}
	if len(id) > MaxIDLength {
		return "", fmt.Errorf("invalid mod id %q: longer than %d characters", s, MaxIDLength)
	}
	if !idRegex.MatchString(string(id)) {
		return "", fmt.Errorf("invalid mod id %q: must match pattern [a-z0-9]([a-z0-9._+-]*[a-z0-9])?", s)
	}
	return id, nil
}

// MustParseID is like ParseID but panics on invalid input. Use only for
// constants and tests.
func MustParseID(s string) ID {
	id, err := ParseID(s)
	if err != nil {
		panic(err)
	}
	return id
}
