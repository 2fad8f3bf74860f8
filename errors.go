package modman

import (
	"github.com/albertocavalcante/go-modman/mod"
	"github.com/albertocavalcante/go-modman/plan"
	"github.com/albertocavalcante/go-modman/selection"
	"github.com/albertocavalcante/go-modman/transaction"
)

// Error types returned by the engine, usable with errors.As.
type (
	UnknownModError           = mod.UnknownModError
	ResolutionImpossibleError = selection.ResolutionImpossibleError
	BlockedRemovalError       = selection.BlockedRemovalError
	UnresolvableOrderingError = plan.UnresolvableOrderingError
	StagingFailedError        = transaction.StagingFailedError
	RemovalFailedError        = transaction.RemovalFailedError
	DirtyStateError           = transaction.DirtyStateError
	StaleStateError           = transaction.StaleStateError
	ApplyError                = transaction.ApplyError
)

// Sentinel errors, usable with errors.Is.
var (
	// ErrNotFound is returned by providers for mods they do not know.
	ErrNotFound = mod.ErrNotFound

	// ErrUnknownMod matches every UnknownModError.
	ErrUnknownMod = mod.ErrUnknownMod

	// ErrConflictingRequest indicates a request that contradicts itself.
	ErrConflictingRequest = selection.ErrConflictingRequest

	// ErrNotInstalled indicates an upgrade of a mod that is not installed.
	ErrNotInstalled = selection.ErrNotInstalled

	// ErrUnresolvableOrdering matches every UnresolvableOrderingError.
	ErrUnresolvableOrdering = plan.ErrUnresolvableOrdering

	// ErrStaleState indicates the installed state changed since planning.
	ErrStaleState = transaction.ErrStaleState

	// ErrDirtyState indicates a rollback that could not restore every file.
	ErrDirtyState = transaction.ErrDirtyState
)
