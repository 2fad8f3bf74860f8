package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/albertocavalcante/go-modman/mod"
	"github.com/albertocavalcante/go-modman/version"
)

// SchemaVersion is the document format this package reads and writes.
// Documents are only accepted when their schema matches exactly.
const SchemaVersion = 1

// statePermissions is the file permission mode for state files.
const statePermissions = 0o600

// ErrSchema is matched by every *SchemaError.
var ErrSchema = errors.New("unsupported state schema")

// SchemaError reports a document written in a format this build cannot
// read, such as one from a newer release.
type SchemaError struct {
	Found int
}

func (e *SchemaError) Error() string {
	if e.Found == 0 {
		return "state document has no schemaVersion"
	}
	if e.Found > SchemaVersion {
		return fmt.Sprintf("state schema %d is newer than supported schema %d", e.Found, SchemaVersion)
	}
	return fmt.Sprintf("state schema %d is not supported (want %d)", e.Found, SchemaVersion)
}

func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

// Snapshot is a loaded installed state together with its revision.
type Snapshot struct {
	State     mod.InstalledState
	Revision  int64
	UpdatedAt time.Time
}

// Fingerprint returns the digest of the snapshot's installed state.
func (s *Snapshot) Fingerprint() string {
	return s.State.Fingerprint()
}

// document is the on-disk form. encoding/json writes map keys sorted, so
// output is deterministic.
type document struct {
	SchemaVersion int              `json:"schemaVersion"`
	Revision      int64            `json:"revision"`
	UpdatedAt     time.Time        `json:"updatedAt"`
	Mods          map[mod.ID]entry `json:"mods"`
}

type entry struct {
	Version string            `json:"version"`
	Reason  mod.InstallReason `json:"reason"`
}

// Parse decodes a state document.
func Parse(data []byte) (*Snapshot, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse state JSON: %w", err)
	}
	if doc.SchemaVersion != SchemaVersion {
		return nil, &SchemaError{Found: doc.SchemaVersion}
	}

	snap := &Snapshot{
		State:     make(mod.InstalledState, len(doc.Mods)),
		Revision:  doc.Revision,
		UpdatedAt: doc.UpdatedAt,
	}
	for id, e := range doc.Mods {
		v, err := version.Parse(e.Version)
		if err != nil {
			return nil, fmt.Errorf("mod %s: %w", id, err)
		}
		snap.State[id] = mod.InstalledEntry{ID: id, Version: v, Reason: e.Reason}
	}
	return snap, nil
}

// Marshal encodes a snapshot as an indented state document.
func Marshal(s *Snapshot) ([]byte, error) {
	doc := document{
		SchemaVersion: SchemaVersion,
		Revision:      s.Revision,
		UpdatedAt:     s.UpdatedAt.UTC(),
		Mods:          make(map[mod.ID]entry, len(s.State)),
	}
	for id, e := range s.State {
		doc.Mods[id] = entry{Version: e.Version.Original(), Reason: e.Reason}
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
