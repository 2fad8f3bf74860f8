package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/albertocavalcante/go-modman/mod"
)

// Source is a provider with a displayable location.
type Source interface {
	mod.Provider
	BaseURL() string
}

// Compile-time interface compliance checks
var (
	_ Source = (*Client)(nil)
	_ Source = (*Local)(nil)
	_ Source = (*Chain)(nil)
)

// Chain looks mods up in several sources with fallback.
//
//  1. Mods are looked up in source order (first to last).
//  2. The first source that knows a mod serves it for the rest of the
//     chain's lifetime, so one mod never mixes releases from two sources.
//  3. Any error, not only not-found, falls through to the next source.
//
// A mod is reported as not found only when every source said so; if some
// source failed for another reason the combined error does not match
// mod.ErrNotFound, since that source might have known it.
type Chain struct {
	sources []Source

	owner   map[mod.ID]int // mod -> source index
	ownerMu sync.RWMutex
}

// NewChain creates a chain over sources, which must not be empty.
func NewChain(sources ...Source) (*Chain, error) {
	if len(sources) == 0 {
		return nil, errors.New("no registry sources provided")
	}
	return &Chain{
		sources: sources,
		owner:   make(map[mod.ID]int),
	}, nil
}

// GetReleases returns the releases of id from the first source that has it.
func (c *Chain) GetReleases(ctx context.Context, id mod.ID) ([]*mod.Release, error) {
	c.ownerMu.RLock()
	idx, found := c.owner[id]
	c.ownerMu.RUnlock()

	if found {
		return c.sources[idx].GetReleases(ctx, id)
	}

	var failures []string
	var errs []error
	allNotFound := true
	for i, src := range c.sources {
		releases, err := src.GetReleases(ctx, id)
		if err == nil {
			c.ownerMu.Lock()
			if _, exists := c.owner[id]; !exists {
				c.owner[id] = i
			}
			c.ownerMu.Unlock()
			return releases, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if !errors.Is(err, mod.ErrNotFound) {
			allNotFound = false
		}
		failures = append(failures, fmt.Sprintf("%s: %v", src.BaseURL(), err))
		errs = append(errs, err)
	}

	if allNotFound {
		return nil, fmt.Errorf("mod %s not found in any registry (%s): %w",
			id, strings.Join(failures, "; "), mod.ErrNotFound)
	}
	// Drop not-found results so the joined error only carries real failures.
	var failed []error
	for _, err := range errs {
		if !errors.Is(err, mod.ErrNotFound) {
			failed = append(failed, err)
		}
	}
	return nil, fmt.Errorf("mod %s: no registry could answer: %w", id, errors.Join(failed...))
}

// BaseURL returns the URL of the first source in the chain.
// This is used for display purposes.
func (c *Chain) BaseURL() string {
	return c.sources[0].BaseURL()
}

// Sources returns the sources in lookup order.
func (c *Chain) Sources() []Source {
	return append([]Source(nil), c.sources...)
}

// SourceFor returns the URL of the source that serves id.
// Returns empty string if the mod hasn't been looked up yet.
func (c *Chain) SourceFor(id mod.ID) string {
	c.ownerMu.RLock()
	defer c.ownerMu.RUnlock()

	if idx, found := c.owner[id]; found {
		return c.sources[idx].BaseURL()
	}
	return ""
}
