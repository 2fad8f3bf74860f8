// Package state persists the installed mod set.
//
// The state file is a versioned JSON document:
//
//	{
//	  "schemaVersion": 1,
//	  "revision": 4,
//	  "updatedAt": "2026-01-02T15:04:05Z",
//	  "mods": {
//	    "fabric-api": {"version": "0.92.0", "reason": "dependency"},
//	    "sodium": {"version": "0.5.8", "reason": "explicit"}
//	  }
//	}
//
// Every save replaces the file atomically and bumps the revision, which
// lets a caller detect that the state changed since it was read. A Store
// also hands out an exclusive file lock so only one process applies changes
// at a time.
//
// # Usage
//
//	store := state.NewStore("modman.state.json")
//	unlock, err := store.Lock(ctx)
//	if err != nil {
//	    return err
//	}
//	defer unlock()
//
//	snap, err := store.Load()
//	...
//	snap, err = store.Save(next, snap.Revision)
package state
