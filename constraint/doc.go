// Package constraint holds the searchable space of candidate releases for one
// resolution run.
//
// A Model fetches releases lazily through a mod.Provider and memoizes them
// for its lifetime: the first Candidates call for a mod hits the provider,
// later calls are served from memory. Releases live in a single arena and
// are addressed by index from an identifier-keyed table; dependency and
// conflict edges are derived from that arena on demand.
//
// Provider failures for mods that were not explicitly requested degrade to
// "no candidates", so an unreachable optional corner of the registry does not
// abort the whole resolution. Failures for explicitly requested mods surface
// as *mod.UnknownModError.
//
// Prefetch warms the table concurrently with a bounded worker pool. The
// search itself always runs on a single goroutine.
package constraint
