// Package transaction applies plans with all-or-nothing semantics for the
// persisted installed state.
//
// An Executor holds the state lock for the whole apply, refuses plans
// computed against a state that has since changed, stages each step through
// a Stager with bounded retries, and persists the new state only once every
// step succeeded. When a step fails, the steps already applied are undone in
// reverse order. If undoing fails too, the error carries a DirtyStateError
// naming the mods left in an unknown state.
package transaction
