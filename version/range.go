package version

import (
	"strings"
)

// Kind identifies the shape of a Range.
type Kind int

const (
	KindAny Kind = iota
	KindEmpty
	KindExact
	KindInterval
	KindUnion
)

// Bound is one end of an interval.
type Bound struct {
	Version   Version
	Inclusive bool
}

// Range is a predicate over versions. The zero Range matches every version.
type Range struct {
	kind  Kind
	exact Version
	lower *Bound
	upper *Bound
	union []Range
}

// Any returns the range matching every version.
func Any() Range { return Range{kind: KindAny} }

// Empty returns the range matching no version.
func Empty() Range { return Range{kind: KindEmpty} }

// Exact returns the range matching only v.
func Exact(v Version) Range { return Range{kind: KindExact, exact: v} }

// AtLeast returns [v, +inf).
func AtLeast(v Version) Range {
	return Interval(&Bound{Version: v, Inclusive: true}, nil)
}

// Below returns (-inf, v).
func Below(v Version) Range {
	return Interval(nil, &Bound{Version: v})
}

// Interval returns the range between the given bounds; a nil bound is
// unbounded on that side. A lower bound above the upper bound, or equal
// bounds that are not both inclusive, produce Empty.
func Interval(lower, upper *Bound) Range {
	if lower == nil && upper == nil {
		return Any()
	}
	if lower != nil && upper != nil {
		c := Compare(lower.Version, upper.Version)
		if c > 0 || (c == 0 && !(lower.Inclusive && upper.Inclusive)) {
			return Empty()
		}
		if c == 0 {
			return Exact(lower.Version)
		}
	}
	r := Range{kind: KindInterval}
	if lower != nil {
		b := *lower
		r.lower = &b
	}
	if upper != nil {
		b := *upper
		r.upper = &b
	}
	return r
}

// Union returns the range matching any member. Empty members are dropped;
// an Any member absorbs the rest.
func Union(members ...Range) Range {
	flat := make([]Range, 0, len(members))
	for _, m := range members {
		switch m.kind {
		case KindAny:
			return Any()
		case KindEmpty:
			continue
		case KindUnion:
			flat = append(flat, m.union...)
		default:
			flat = append(flat, m)
		}
	}
	switch len(flat) {
	case 0:
		return Empty()
	case 1:
		return flat[0]
	}
	return Range{kind: KindUnion, union: flat}
}

// Kind returns the shape of r.
func (r Range) Kind() Kind { return r.kind }

// IsAny reports whether r matches every version.
func (r Range) IsAny() bool { return r.kind == KindAny }

// IsEmpty reports whether r is the always-unsatisfiable range.
func (r Range) IsEmpty() bool { return r.kind == KindEmpty }

// Lower returns the lower bound of an interval, or nil.
func (r Range) Lower() *Bound { return r.lower }

// Upper returns the upper bound of an interval, or nil.
func (r Range) Upper() *Bound { return r.upper }

// Members returns the alternatives of a union.
func (r Range) Members() []Range { return r.union }

// Contains reports whether v satisfies r.
func (r Range) Contains(v Version) bool {
	switch r.kind {
	case KindAny:
		return true
	case KindEmpty:
		return false
	case KindExact:
		return Compare(v, r.exact) == 0
	case KindInterval:
		if r.lower != nil {
			c := Compare(v, r.lower.Version)
			if c < 0 || (c == 0 && !r.lower.Inclusive) {
				return false
			}
		}
		if r.upper != nil {
			c := Compare(v, r.upper.Version)
			if c > 0 || (c == 0 && !r.upper.Inclusive) {
				return false
			}
		}
		return true
	case KindUnion:
		for _, m := range r.union {
			if m.Contains(v) {
				return true
			}
		}
		return false
	}
	return false
}

// Satisfies reports whether v is contained in r.
func Satisfies(v Version, r Range) bool { return r.Contains(v) }

// String renders r in the comparator notation accepted by ParseRange.
func (r Range) String() string {
	switch r.kind {
	case KindAny:
		return "*"
	case KindEmpty:
		return "<none>"
	case KindExact:
		return "=" + r.exact.String()
	case KindInterval:
		var parts []string
		if r.lower != nil {
			op := ">"
			if r.lower.Inclusive {
				op = ">="
			}
			parts = append(parts, op+r.lower.Version.String())
		}
		if r.upper != nil {
			op := "<"
			if r.upper.Inclusive {
				op = "<="
			}
			parts = append(parts, op+r.upper.Version.String())
		}
		return strings.Join(parts, " ")
	case KindUnion:
		parts := make([]string, len(r.union))
		for i, m := range r.union {
			parts[i] = m.String()
		}
		return strings.Join(parts, " || ")
	}
	return ""
}

// MarshalText implements encoding.TextMarshaler.
func (r Range) MarshalText() ([]byte, error) {
	if r.kind == KindEmpty {
		return nil, &RangeError{Range: r.String(), Message: "empty range has no text form"}
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Range) UnmarshalText(text []byte) error {
	parsed, err := ParseRange(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
