package transaction

import (
	"errors"
	"fmt"
	"strings"

	"github.com/albertocavalcante/go-modman/mod"
	"github.com/albertocavalcante/go-modman/plan"
)

var (
	// ErrStaleState is matched by every *StaleStateError.
	ErrStaleState = errors.New("stale state")

	// ErrDirtyState is matched by every *DirtyStateError.
	ErrDirtyState = errors.New("dirty state")
)

// StagingFailedError reports an artifact that could not be staged within
// the retry budget.
type StagingFailedError struct {
	Mod      mod.ID
	Version  string
	Attempts int
	Err      error
}

func (e *StagingFailedError) Error() string {
	return fmt.Sprintf("staging %s@%s failed after %d attempts: %v", e.Mod, e.Version, e.Attempts, e.Err)
}

func (e *StagingFailedError) Unwrap() error { return e.Err }

// RemovalFailedError reports an artifact that could not be removed within
// the retry budget.
type RemovalFailedError struct {
	Mod      mod.ID
	Version  string
	Attempts int
	Err      error
}

func (e *RemovalFailedError) Error() string {
	return fmt.Sprintf("removing %s@%s failed after %d attempts: %v", e.Mod, e.Version, e.Attempts, e.Err)
}

func (e *RemovalFailedError) Unwrap() error { return e.Err }

// undoFailedError reports a step that failed half way and could not put
// back what it had already staged. Key names the artifact left behind.
type undoFailedError struct {
	Key  mod.Key
	Err  error
	Undo error
}

func (e *undoFailedError) Error() string {
	return fmt.Sprintf("%v; undo staging of %s: %v", e.Err, e.Key, e.Undo)
}

func (e *undoFailedError) Unwrap() []error { return []error{e.Err, e.Undo} }

// StaleStateError reports a plan computed against a state that changed
// before apply began. The caller must resolve again.
type StaleStateError struct {
	ExpectedRevision int64
	FoundRevision    int64
}

func (e *StaleStateError) Error() string {
	if e.ExpectedRevision == e.FoundRevision {
		return fmt.Sprintf("installed state changed since planning (revision %d, contents differ)", e.FoundRevision)
	}
	return fmt.Sprintf("installed state changed since planning (revision %d, now %d)", e.ExpectedRevision, e.FoundRevision)
}

func (e *StaleStateError) Is(target error) bool { return target == ErrStaleState }

// DirtyStateError reports a rollback that could not undo every applied
// step. The named mods need manual attention.
type DirtyStateError struct {
	Mods []mod.ID
	Errs []error
}

func (e *DirtyStateError) Error() string {
	ids := make([]string, len(e.Mods))
	for i, id := range e.Mods {
		ids[i] = string(id)
	}
	return fmt.Sprintf("rollback incomplete, manual intervention required for: %s: %v",
		strings.Join(ids, ", "), errors.Join(e.Errs...))
}

func (e *DirtyStateError) Unwrap() []error { return e.Errs }

func (e *DirtyStateError) Is(target error) bool { return target == ErrDirtyState }

// ApplyError reports a failed apply. RolledBack is true when every applied
// step was undone; otherwise Dirty lists what was not.
type ApplyError struct {
	Step       plan.Step
	Cause      error
	RolledBack bool
	Dirty      *DirtyStateError
}

func (e *ApplyError) Error() string {
	var b strings.Builder
	b.WriteString("apply failed")
	if e.Step.Kind == plan.StepBatch || e.Step.Mod != "" {
		b.WriteString(" at ")
		b.WriteString(e.Step.String())
	}
	b.WriteString(": ")
	b.WriteString(e.Cause.Error())
	if e.RolledBack {
		b.WriteString(" (rolled back)")
	} else if e.Dirty != nil {
		b.WriteString("; ")
		b.WriteString(e.Dirty.Error())
	}
	return b.String()
}

func (e *ApplyError) Unwrap() []error {
	if e.Dirty != nil {
		return []error{e.Cause, e.Dirty}
	}
	return []error{e.Cause}
}
