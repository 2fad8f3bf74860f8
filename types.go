package modman

import (
	"fmt"
	"strings"

	"github.com/albertocavalcante/go-modman/mod"
	"github.com/albertocavalcante/go-modman/selection"
	"github.com/albertocavalcante/go-modman/version"
)

// Request types, re-exported for callers that only import the root package.
type (
	Request     = selection.Request
	Operation   = selection.Operation
	TargetState = selection.TargetState
	Selected    = selection.Selected
)

// Install, Remove and Upgrade build request operations.
var (
	Install = selection.Install
	Remove  = selection.Remove
	Upgrade = selection.Upgrade
)

// NewRequest builds a request from ops.
func NewRequest(ops ...Operation) Request {
	return selection.NewRequest(ops...)
}

// ParseTarget splits a command line argument of the form "id" or
// "id@range" into a mod identifier and an optional version range.
//
//	sodium            any version
//	sodium@0.5.3      exactly 0.5.3
//	sodium@>=0.5,<0.6 a comparator range
func ParseTarget(s string) (mod.ID, []version.Range, error) {
	idPart, rangePart, hasRange := strings.Cut(s, "@")
	id, err := mod.ParseID(idPart)
	if err != nil {
		return "", nil, fmt.Errorf("invalid target %q: %w", s, err)
	}
	if !hasRange {
		return id, nil, nil
	}
	rng, err := version.ParseRange(rangePart)
	if err != nil {
		return "", nil, fmt.Errorf("invalid target %q: %w", s, err)
	}
	return id, []version.Range{rng}, nil
}
