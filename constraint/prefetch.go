package constraint

import (
	"context"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/albertocavalcante/go-modman/mod"
)

// DefaultConcurrency is the prefetch worker count used when none is given.
const DefaultConcurrency = 5

// Prefetch loads roots and the transitive closure of their hard dependency
// targets, level by level, with at most concurrency provider calls in
// flight. Lookup failures are memoized like any other result; Prefetch
// only returns an error when ctx ends.
func (m *Model) Prefetch(ctx context.Context, roots []mod.ID, concurrency int) error {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	seen := make(map[mod.ID]bool, len(roots))
	level := make([]mod.ID, 0, len(roots))
	for _, id := range roots {
		if !seen[id] {
			seen[id] = true
			level = append(level, id)
		}
	}

	for len(level) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)
		for _, id := range level {
			g.Go(func() error {
				_, err := m.load(gctx, id)
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		var next []mod.ID
		for _, id := range level {
			for _, dep := range m.dependencyTargets(id) {
				if !seen[dep] {
					seen[dep] = true
					next = append(next, dep)
				}
			}
		}
		slices.Sort(next)
		level = next
	}
	return nil
}

// dependencyTargets returns the hard dependency targets declared by any
// loaded candidate of id.
func (m *Model) dependencyTargets(id mod.ID) []mod.ID {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.index[id]
	if !ok || !isReady(e) {
		return nil
	}
	var out []mod.ID
	for _, slot := range e.slots {
		for _, d := range m.arena[slot].Dependencies {
			if !d.Optional {
				out = append(out, d.Target)
			}
		}
	}
	return out
}
