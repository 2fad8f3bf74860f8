package version

import (
	"fmt"
	"strconv"
	"strings"
)

// RangeError reports a malformed range expression.
type RangeError struct {
	Range   string
	Message string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("bad version range %q: %s", e.Range, e.Message)
}

// MustParseRange is like ParseRange but panics on error.
func MustParseRange(s string) Range {
	r, err := ParseRange(s)
	if err != nil {
		panic(err)
	}
	return r
}

// ParseRange parses a range expression. See the package documentation for
// the accepted notations.
func ParseRange(s string) (Range, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Any(), nil
	}

	if s[0] == '[' || s[0] == '(' {
		return parseIntervals(s)
	}

	alts := strings.Split(s, "||")
	members := make([]Range, 0, len(alts))
	for _, alt := range alts {
		r, err := parseConjunction(strings.TrimSpace(alt), s)
		if err != nil {
			return Range{}, err
		}
		members = append(members, r)
	}
	return Union(members...), nil
}

// parseConjunction intersects comparators separated by commas or spaces.
func parseConjunction(s, whole string) (Range, error) {
	if s == "" {
		return Range{}, &RangeError{Range: whole, Message: "empty alternative"}
	}
	fields := strings.Fields(strings.ReplaceAll(s, ",", " "))

	result := Any()
	for i := 0; i < len(fields); i++ {
		tok := fields[i]
		// Allow a space between operator and version: ">= 1.0".
		if isOperator(tok) {
			if i+1 >= len(fields) {
				return Range{}, &RangeError{Range: whole, Message: "operator " + tok + " without version"}
			}
			i++
			tok += fields[i]
		}
		r, err := parseComparator(tok, whole)
		if err != nil {
			return Range{}, err
		}
		result = Intersect(result, r)
	}
	return result, nil
}

var operators = []string{">=", "<=", "==", ">", "<", "=", "^", "~"}

func isOperator(tok string) bool {
	for _, op := range operators {
		if tok == op {
			return true
		}
	}
	return false
}

func parseComparator(tok, whole string) (Range, error) {
	op := ""
	for _, candidate := range operators {
		if strings.HasPrefix(tok, candidate) {
			op = candidate
			break
		}
	}
	raw := strings.TrimSpace(strings.TrimPrefix(tok, op))

	if parts, ok := wildcardParts(raw); ok {
		if op != "" && op != "=" && op != "==" {
			raw = strings.Join(append(parts, zeros(3-len(parts))...), ".")
		} else {
			return wildcardRange(parts), nil
		}
	}

	v, err := Parse(raw)
	if err != nil {
		return Range{}, &RangeError{Range: whole, Message: err.Error()}
	}

	switch op {
	case ">=":
		return AtLeast(v), nil
	case ">":
		return Interval(&Bound{Version: v}, nil), nil
	case "<=":
		return Interval(nil, &Bound{Version: v, Inclusive: true}), nil
	case "<":
		return Below(v), nil
	case "", "=", "==":
		return Exact(v), nil
	case "^":
		return caretRange(v, whole)
	case "~":
		return tildeRange(v, raw, whole)
	}
	return Range{}, &RangeError{Range: whole, Message: "unknown operator " + op}
}

// wildcardParts splits "1.2.x" into its fixed numeric prefix ["1", "2"].
func wildcardParts(raw string) ([]string, bool) {
	if raw == "*" || raw == "x" || raw == "X" {
		return nil, true
	}
	segs := strings.Split(raw, ".")
	last := segs[len(segs)-1]
	if last != "x" && last != "X" && last != "*" {
		return nil, false
	}
	fixed := segs[:len(segs)-1]
	for _, seg := range fixed {
		if _, err := strconv.ParseUint(seg, 10, 64); err != nil {
			return nil, false
		}
	}
	return fixed, true
}

func wildcardRange(fixed []string) Range {
	if len(fixed) == 0 {
		return Any()
	}
	nums := make([]uint64, len(fixed))
	for i, seg := range fixed {
		nums[i], _ = strconv.ParseUint(seg, 10, 64)
	}
	lower := numericVersion(nums...)
	nums[len(nums)-1]++
	return Interval(&Bound{Version: lower, Inclusive: true}, &Bound{Version: numericVersion(nums...)})
}

// caretRange keeps the major version: ^1.2.3 is >=1.2.3 <2.0.0.
func caretRange(v Version, whole string) (Range, error) {
	if v.sv == nil {
		return Range{}, &RangeError{Range: whole, Message: "^ requires a semantic version"}
	}
	upper := numericVersion(v.sv.Major() + 1)
	return Interval(&Bound{Version: v, Inclusive: true}, &Bound{Version: upper}), nil
}

// tildeRange keeps the minor version when one is given: ~1.2.3 is
// >=1.2.3 <1.3.0 and ~1 is >=1.0.0 <2.0.0.
func tildeRange(v Version, raw, whole string) (Range, error) {
	if v.sv == nil {
		return Range{}, &RangeError{Range: whole, Message: "~ requires a semantic version"}
	}
	var upper Version
	if strings.Count(strings.SplitN(raw, "-", 2)[0], ".") == 0 {
		upper = numericVersion(v.sv.Major() + 1)
	} else {
		upper = numericVersion(v.sv.Major(), v.sv.Minor()+1)
	}
	return Interval(&Bound{Version: v, Inclusive: true}, &Bound{Version: upper}), nil
}

func numericVersion(nums ...uint64) Version {
	parts := make([]string, 3)
	for i := range parts {
		if i < len(nums) {
			parts[i] = strconv.FormatUint(nums[i], 10)
		} else {
			parts[i] = "0"
		}
	}
	return MustParse(strings.Join(parts, "."))
}

func zeros(n int) []string {
	out := make([]string, 0, max(n, 0))
	for range n {
		out = append(out, "0")
	}
	return out
}

// parseIntervals handles bracket notation, including comma separated unions
// such as "[1.0,2.0),[3.0,)".
func parseIntervals(s string) (Range, error) {
	var members []Range
	rest := s
	for rest != "" {
		rest = strings.TrimLeft(rest, " ,")
		if rest == "" {
			break
		}
		if rest[0] != '[' && rest[0] != '(' {
			return Range{}, &RangeError{Range: s, Message: "expected [ or ("}
		}
		end := strings.IndexAny(rest, "])")
		if end < 0 {
			return Range{}, &RangeError{Range: s, Message: "unterminated interval"}
		}
		r, err := parseInterval(rest[:end+1], s)
		if err != nil {
			return Range{}, err
		}
		members = append(members, r)
		rest = rest[end+1:]
	}
	return Union(members...), nil
}

func parseInterval(group, whole string) (Range, error) {
	lowerIncl := group[0] == '['
	upperIncl := group[len(group)-1] == ']'
	body := group[1 : len(group)-1]

	if !strings.Contains(body, ",") {
		// "[1.2]" pins a single version.
		if !lowerIncl || !upperIncl {
			return Range{}, &RangeError{Range: whole, Message: "single version must use [v]"}
		}
		v, err := Parse(body)
		if err != nil {
			return Range{}, &RangeError{Range: whole, Message: err.Error()}
		}
		return Exact(v), nil
	}

	lo, hi, _ := strings.Cut(body, ",")
	lo, hi = strings.TrimSpace(lo), strings.TrimSpace(hi)

	var lower, upper *Bound
	if lo != "" {
		v, err := Parse(lo)
		if err != nil {
			return Range{}, &RangeError{Range: whole, Message: err.Error()}
		}
		lower = &Bound{Version: v, Inclusive: lowerIncl}
	}
	if hi != "" {
		v, err := Parse(hi)
		if err != nil {
			return Range{}, &RangeError{Range: whole, Message: err.Error()}
		}
		upper = &Bound{Version: v, Inclusive: upperIncl}
	}
	return Interval(lower, upper), nil
}

// Intersect returns the range matching versions contained in both a and b.
func Intersect(a, b Range) Range {
	switch {
	case a.kind == KindAny:
		return b
	case b.kind == KindAny:
		return a
	case a.kind == KindEmpty || b.kind == KindEmpty:
		return Empty()
	case a.kind == KindUnion:
		parts := make([]Range, len(a.union))
		for i, m := range a.union {
			parts[i] = Intersect(m, b)
		}
		return Union(parts...)
	case b.kind == KindUnion:
		return Intersect(b, a)
	case a.kind == KindExact:
		if b.Contains(a.exact) {
			return a
		}
		return Empty()
	case b.kind == KindExact:
		return Intersect(b, a)
	}
	return Interval(tighterLower(a.lower, b.lower), tighterUpper(a.upper, b.upper))
}

func tighterLower(a, b *Bound) *Bound {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	switch c := Compare(a.Version, b.Version); {
	case c > 0:
		return a
	case c < 0:
		return b
	case !a.Inclusive:
		return a
	}
	return b
}

func tighterUpper(a, b *Bound) *Bound {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	switch c := Compare(a.Version, b.Version); {
	case c < 0:
		return a
	case c > 0:
		return b
	case !a.Inclusive:
		return a
	}
	return b
}
