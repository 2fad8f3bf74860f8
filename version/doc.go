// Package version implements mod version parsing, comparison and ranges.
//
// Versions are parsed as semantic versions through
// github.com/Masterminds/semver/v3. Strings that are not valid semver but
// still follow the dotted RELEASE[-PRERELEASE][+BUILD] shape (for example
// "1.20.1.4" or "r5-fabric") are accepted with a lenient identifier-wise
// comparison, so every release published by a registry can be ordered.
//
// Ordering is total: two versions compare equal only when their canonical
// strings are identical, including build metadata.
//
// # Ranges
//
// A Range is a tagged variant over a small set of shapes:
//
//	Any()                      every version
//	Empty()                    no version
//	Exact(v)                   exactly v
//	Interval(lower, upper)     optional bounds, each inclusive or exclusive
//	Union(r1, r2, ...)         any member matches
//
// Range.Contains is pure and total. ParseRange accepts the notations mod
// registries publish:
//
//	*                    any
//	1.2.0  =1.2  ==1.2   exact
//	>=1.0 <2.0           comparators, space or comma separated
//	>=1.0, <2.0 || 3.1   alternatives
//	^1.2  ~1.2.3  1.2.x  caret, tilde and wildcard shorthands
//	[1.0,2.0)  (,1.5]    interval notation
package version
