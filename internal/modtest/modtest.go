// Package modtest provides release fixtures and an in-memory provider for
// tests.
package modtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/albertocavalcante/go-modman/mod"
	"github.com/albertocavalcante/go-modman/version"
)

// Compile-time interface compliance check
var _ mod.Provider = (*Registry)(nil)

// Option customises a fixture release.
type Option func(*mod.Release)

// Release builds a release fixture. It panics on malformed versions.
func Release(id, v string, opts ...Option) *mod.Release {
	r := &mod.Release{
		ID:      mod.ID(id),
		Version: version.MustParse(v),
		Channel: mod.ChannelRelease,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Requires adds a hard dependency.
func Requires(target, rng string) Option {
	return func(r *mod.Release) {
		r.Dependencies = append(r.Dependencies, mod.Dependency{
			Target: mod.ID(target),
			Range:  version.MustParseRange(rng),
		})
	}
}

// Optional adds an optional dependency.
func Optional(target, rng string) Option {
	return func(r *mod.Release) {
		r.Dependencies = append(r.Dependencies, mod.Dependency{
			Target:   mod.ID(target),
			Range:    version.MustParseRange(rng),
			Optional: true,
		})
	}
}

// Conflicts adds a declared conflict.
func Conflicts(target, rng string) Option {
	return func(r *mod.Release) {
		r.Conflicts = append(r.Conflicts, mod.Conflict{
			Target: mod.ID(target),
			Range:  version.MustParseRange(rng),
		})
	}
}

// Game sets the supported game version range.
func Game(rng string) Option {
	return func(r *mod.Release) { r.GameRange = version.MustParseRange(rng) }
}

// Loader sets the supported loaders and loader version range.
func Loader(rng string, loaders ...string) Option {
	return func(r *mod.Release) {
		r.LoaderRange = version.MustParseRange(rng)
		r.Loaders = loaders
	}
}

// Channel sets the release channel.
func Channel(c mod.Channel) Option {
	return func(r *mod.Release) { r.Channel = c }
}

// File attaches a primary download.
func File(url string) Option {
	return func(r *mod.Release) {
		r.Files = append(r.Files, mod.File{URL: url, Primary: true})
	}
}

// Explicit returns an installed entry with ReasonExplicit.
func Explicit(id, v string) mod.InstalledEntry {
	return mod.InstalledEntry{ID: mod.ID(id), Version: version.MustParse(v), Reason: mod.ReasonExplicit}
}

// Dependency returns an installed entry with ReasonDependency.
func Dependency(id, v string) mod.InstalledEntry {
	return mod.InstalledEntry{ID: mod.ID(id), Version: version.MustParse(v), Reason: mod.ReasonDependency}
}

// Installed builds an installed state from entries.
func Installed(entries ...mod.InstalledEntry) mod.InstalledState {
	s := make(mod.InstalledState, len(entries))
	for _, e := range entries {
		s[e.ID] = e
	}
	return s
}

// Registry is a thread-safe in-memory provider that counts lookups.
type Registry struct {
	mu       sync.Mutex
	releases map[mod.ID][]*mod.Release
	failures map[mod.ID]error
	delays   map[mod.ID]time.Duration
	calls    map[mod.ID]int
}

// NewRegistry creates a provider serving the given releases.
func NewRegistry(releases ...*mod.Release) *Registry {
	r := &Registry{
		releases: make(map[mod.ID][]*mod.Release),
		failures: make(map[mod.ID]error),
		delays:   make(map[mod.ID]time.Duration),
		calls:    make(map[mod.ID]int),
	}
	r.Add(releases...)
	return r
}

// Add registers more releases.
func (r *Registry) Add(releases ...*mod.Release) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rel := range releases {
		r.releases[rel.ID] = append(r.releases[rel.ID], rel)
	}
}

// FailWith makes lookups of id return err.
func (r *Registry) FailWith(id string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[mod.ID(id)] = err
}

// Delay makes lookups of id block for d or until the context ends.
func (r *Registry) Delay(id string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays[mod.ID(id)] = d
}

// Calls returns how many times id was looked up.
func (r *Registry) Calls(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[mod.ID(id)]
}

// GetReleases returns the registered releases for id.
func (r *Registry) GetReleases(ctx context.Context, id mod.ID) ([]*mod.Release, error) {
	r.mu.Lock()
	r.calls[id]++
	delay := r.delays[id]
	failure := r.failures[id]
	rels, ok := r.releases[id]
	r.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	if failure != nil {
		return nil, failure
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, mod.ErrNotFound)
	}
	out := make([]*mod.Release, len(rels))
	copy(out, rels)
	return out, nil
}
