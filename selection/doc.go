// Package selection computes the set of mod releases to install for a
// request.
//
// # Algorithm Overview
//
// Resolution is a backtracking constraint search over one variable per mod.
// The variables that must be assigned are:
//
//   - the targets of Install and Upgrade operations, in request order
//   - every installed mod with an explicit install reason that the request
//     does not remove (sorted by identifier)
//   - every hard dependency target of an assigned release
//
// Installed mods that were only pulled in as dependencies are not roots.
// They come back when something still requires them and are dropped
// otherwise, which garbage-collects orphaned dependencies.
//
// # Value Ordering
//
// Candidates are tried highest version first, except that a mod already
// installed at a version compatible with the request tries that version
// first. Mods named by Install or Upgrade operations always start from the
// highest version.
//
// # Consistency
//
// Before a candidate is assigned it is checked against every release already
// in the assignment:
//
//   - dependency ranges, hard and optional, in both directions
//   - declared conflicts, in both directions
//   - the range given by the request for either side
//   - removed mods, which no candidate may hard-depend on
//
// A mod with no consistent candidate fails the branch and the newest
// decision is retried with its next candidate. Each propagation round costs
// one step; a budget bounds the search and cancellation is checked every
// round.
//
// # Diagnostics
//
// Every dead end yields the set of constraints that eliminated all
// candidates of a mod. The smallest such set seen during the search is
// reported in *ResolutionImpossibleError. When a request that removes mods
// fails but succeeds with the removals relaxed, *BlockedRemovalError names
// the dependents that still need them.
package selection
