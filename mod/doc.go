// Package mod defines the data model shared by the resolver, planner and
// executor: mod identifiers, releases with their dependencies and conflicts,
// the installed state, and the Provider contract that supplies releases.
//
// Releases are immutable once a Provider has returned them. Every consumer
// treats them as read-only values.
package mod
