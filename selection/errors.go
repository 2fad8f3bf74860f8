package selection

import (
	"errors"
	"fmt"
	"strings"

	"github.com/albertocavalcante/go-modman/mod"
	"github.com/albertocavalcante/go-modman/version"
)

var (
	// ErrConflictingRequest marks requests whose operations contradict each
	// other before any search happens.
	ErrConflictingRequest = errors.New("conflicting operations in request")

	// ErrNotInstalled marks an upgrade of a mod that is not installed.
	ErrNotInstalled = errors.New("mod is not installed")

	// ErrBudgetExhausted marks a search stopped by the step budget.
	ErrBudgetExhausted = errors.New("resolution step budget exhausted")
)

// ConstraintKind classifies a Constraint.
type ConstraintKind int

const (
	// Requested is a version range from the request.
	Requested ConstraintKind = iota
	// Pinned is an installed explicit mod kept by the request.
	Pinned
	// DependsOn is a dependency declared by a release.
	DependsOn
	// ConflictsWith is a conflict declared by a release.
	ConflictsWith
	// Excluded is a mod the request removes.
	Excluded
	// Unavailable is a mod with no usable release.
	Unavailable
	// NotInstalled is an upgrade of a mod that is not installed.
	NotInstalled
)

// Constraint is one fact that took part in a failed resolution.
type Constraint struct {
	Kind ConstraintKind
	// Source is the declaring release for DependsOn and ConflictsWith, and
	// the installed release for Pinned.
	Source mod.Key
	Target mod.ID
	Range  version.Range
	Op     OpKind
	Detail string
}

func (c Constraint) String() string {
	switch c.Kind {
	case Requested:
		s := "request: " + c.Op.String() + " " + string(c.Target)
		if !c.Range.IsAny() {
			s += " " + c.Range.String()
		}
		return s
	case Pinned:
		return fmt.Sprintf("%s is installed at %s", c.Target, c.Source.Version)
	case DependsOn:
		return fmt.Sprintf("%s requires %s %s", c.Source, c.Target, c.Range)
	case ConflictsWith:
		return fmt.Sprintf("%s conflicts with %s %s", c.Source, c.Target, c.Range)
	case Excluded:
		return "request: remove " + string(c.Target)
	case Unavailable:
		if c.Detail != "" {
			return fmt.Sprintf("no usable release of %s: %s", c.Target, c.Detail)
		}
		return "no usable release of " + string(c.Target)
	case NotInstalled:
		return fmt.Sprintf("request: upgrade %s, which is not installed", c.Target)
	}
	return "unknown constraint"
}

// ResolutionImpossibleError reports a request that no assignment satisfies.
type ResolutionImpossibleError struct {
	// Constraints is the smallest conflicting set found during the search.
	Constraints []Constraint
	// Cause is ErrConflictingRequest, ErrNotInstalled, ErrBudgetExhausted,
	// or nil for an exhausted search space.
	Cause error
}

func (e *ResolutionImpossibleError) Error() string {
	var b strings.Builder
	b.WriteString("resolution impossible")
	if e.Cause != nil {
		b.WriteString(" (")
		b.WriteString(e.Cause.Error())
		b.WriteString(")")
	}
	for i, c := range e.Constraints {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		b.WriteString(c.String())
	}
	return b.String()
}

func (e *ResolutionImpossibleError) Unwrap() error { return e.Cause }

// Mods returns the mods named by the conflicting constraints, in order of
// first appearance.
func (e *ResolutionImpossibleError) Mods() []mod.ID {
	var out []mod.ID
	seen := make(map[mod.ID]bool)
	add := func(id mod.ID) {
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, c := range e.Constraints {
		add(c.Source.ID)
		add(c.Target)
	}
	return out
}

// BlockedRemovalError reports a removal that would break a mod the request
// keeps.
type BlockedRemovalError struct {
	Mod        mod.ID
	Dependents []mod.ID
}

func (e *BlockedRemovalError) Error() string {
	deps := make([]string, len(e.Dependents))
	for i, d := range e.Dependents {
		deps[i] = string(d)
	}
	return fmt.Sprintf("cannot remove %s: required by %s", e.Mod, strings.Join(deps, ", "))
}
