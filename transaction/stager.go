package transaction

import (
	"context"

	"github.com/albertocavalcante/go-modman/mod"
)

// Artifact is a staged mod file.
type Artifact struct {
	Mod     mod.ID
	Version string
	Path    string
}

// Stager materializes and removes mod artifacts. Both calls must be safe to
// retry after a failure.
type Stager interface {
	// Stage places the artifact of r.
	Stage(ctx context.Context, r *mod.Release) (Artifact, error)
	// Remove deletes the artifact of r.
	Remove(ctx context.Context, r *mod.Release) error
}

// Committer is implemented by stagers that keep undo data until the
// transaction is persisted. Commit is called once after a successful apply.
type Committer interface {
	Commit(ctx context.Context) error
}
