// Package modman is the core of a Minecraft mod manager: it resolves
// install, upgrade and remove requests against a mod registry and applies
// the result to an installation as a single transaction.
//
// # Overview
//
// The package ties together these components:
//
//   - constraint: memoized, environment-filtered view of registry metadata
//   - selection: backtracking resolver producing a target state
//   - plan: ordered steps from the installed state to the target
//   - transaction: executor that stages files, rolls back on failure and
//     persists the new state
//   - state: versioned state file guarded by a lock
//
// Registry access and file staging are collaborators behind the
// mod.Provider and transaction.Stager interfaces; the registry and staging
// packages provide HTTP and filesystem implementations.
//
// # Quick Start
//
//	src, err := registry.New([]string{registry.DefaultBaseURL})
//	store := state.NewStore("modman.state.json")
//	stager := staging.New("mods")
//
//	engine, err := modman.New(src, store, stager,
//	    modman.WithEnvironment(constraint.Environment{Loader: "fabric"}),
//	)
//	result, err := engine.Run(ctx, modman.NewRequest(modman.Install("sodium")))
//
// # Failures
//
// Resolution failures are *ResolutionImpossibleError or
// *BlockedRemovalError and carry the constraints involved. Apply failures
// are *ApplyError; the installation is rolled back before Run returns and
// *DirtyStateError is reported when rollback itself fails.
//
// # Thread Safety
//
// An Engine is safe for concurrent use. Concurrent applies on the same
// state file are serialized, and a plan computed against an older state
// fails with *StaleStateError instead of being applied.
package modman
