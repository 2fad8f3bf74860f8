// Package staging places mod artifacts in a game's mods directory.
//
// Stager implements transaction.Stager. Artifacts are stored under a
// deterministic name, {id}-{version}{ext}, so two versions of one mod never
// overwrite each other during an upgrade. Removed artifacts are moved to a
// trash directory instead of being deleted, which lets a rollback restore
// them without a download; Commit empties the trash once the new state has
// been persisted.
package staging
