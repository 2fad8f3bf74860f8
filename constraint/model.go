package constraint

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/albertocavalcante/go-modman/mod"
	"github.com/albertocavalcante/go-modman/version"
)

// DefaultTimeout bounds a single provider call.
const DefaultTimeout = 15 * time.Second

// Model is the candidate space of one resolution run.
type Model struct {
	provider mod.Provider
	env      Environment
	timeout  time.Duration
	logger   *slog.Logger
	explicit map[mod.ID]bool

	mu    sync.Mutex
	arena []*mod.Release
	index map[mod.ID]*entry
}

// entry is the memoized lookup result for one mod.
type entry struct {
	ready chan struct{}

	// Set before ready is closed.
	slots    []int // arena indices, highest version first
	filtered int   // releases dropped by the environment
	err      error
	retry    bool // the loading caller was cancelled; load again
}

// Option configures a Model.
type Option func(*Model)

// WithEnvironment filters candidates to releases compatible with env.
func WithEnvironment(env Environment) Option {
	return func(m *Model) { m.env = env }
}

// WithTimeout sets the per-call provider timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(m *Model) { m.timeout = d }
}

// WithLogger sets the logger used to report degraded lookups.
func WithLogger(l *slog.Logger) Option {
	return func(m *Model) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithExplicit marks mods whose lookup failures are fatal.
func WithExplicit(ids ...mod.ID) Option {
	return func(m *Model) {
		for _, id := range ids {
			m.explicit[id] = true
		}
	}
}

// New creates an empty model over provider.
func New(provider mod.Provider, opts ...Option) *Model {
	m := &Model{
		provider: provider,
		timeout:  DefaultTimeout,
		logger:   slog.New(slog.DiscardHandler),
		explicit: make(map[mod.ID]bool),
		index:    make(map[mod.ID]*entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MarkExplicit marks more mods whose lookup failures are fatal.
func (m *Model) MarkExplicit(ids ...mod.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		m.explicit[id] = true
	}
}

// Environment returns the environment candidates are filtered against.
func (m *Model) Environment() Environment { return m.env }

// Candidates returns the releases of id compatible with the environment,
// highest version first. The slice is owned by the caller.
func (m *Model) Candidates(ctx context.Context, id mod.ID) ([]*mod.Release, error) {
	e, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.err != nil {
		m.mu.Lock()
		explicit := m.explicit[id]
		m.mu.Unlock()
		if explicit {
			return nil, &mod.UnknownModError{ID: id, Cause: e.err}
		}
		return nil, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*mod.Release, len(e.slots))
	for i, slot := range e.slots {
		out[i] = m.arena[slot]
	}
	return out, nil
}

// Satisfies reports whether v is in r.
func Satisfies(v version.Version, r version.Range) bool {
	return r.Contains(v)
}

// HighestSatisfying returns the highest candidate of id contained in r.
// A mod the provider does not know yields *mod.UnknownModError even when it
// was not explicitly requested.
func (m *Model) HighestSatisfying(ctx context.Context, id mod.ID, r version.Range) (*mod.Release, bool, error) {
	cands, err := m.Candidates(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if cands == nil {
		if lookupErr := m.Unavailable(id); errors.Is(lookupErr, mod.ErrNotFound) {
			return nil, false, &mod.UnknownModError{ID: id, Cause: lookupErr}
		}
	}
	for _, c := range cands {
		if r.Contains(c.Version) {
			return c, true, nil
		}
	}
	return nil, false, nil
}

// Release returns an already loaded release. It never calls the provider.
func (m *Model) Release(id mod.ID, v version.Version) (*mod.Release, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.index[id]
	if !ok || !isReady(e) {
		return nil, false
	}
	for _, slot := range e.slots {
		if rel := m.arena[slot]; rel.Version.Equal(v) {
			return rel, true
		}
	}
	return nil, false
}

// Unavailable returns the lookup error recorded for id, or nil when id
// loaded successfully or was never requested.
func (m *Model) Unavailable(id mod.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.index[id]
	if !ok || !isReady(e) {
		return nil
	}
	return e.err
}

// Filtered returns how many releases of id the environment rejected.
func (m *Model) Filtered(id mod.ID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.index[id]
	if !ok || !isReady(e) {
		return 0
	}
	return e.filtered
}

// Loaded returns the mods looked up so far, sorted.
func (m *Model) Loaded() []mod.ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]mod.ID, 0, len(m.index))
	for id, e := range m.index {
		if isReady(e) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of releases held in the arena.
func (m *Model) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.arena)
}

func isReady(e *entry) bool {
	select {
	case <-e.ready:
		return !e.retry
	default:
		return false
	}
}

// load returns the memoized entry for id, fetching it on first use.
// Concurrent callers for the same id share one provider call.
func (m *Model) load(ctx context.Context, id mod.ID) (*entry, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		m.mu.Lock()
		e, ok := m.index[id]
		if !ok {
			e = &entry{ready: make(chan struct{})}
			m.index[id] = e
			m.mu.Unlock()
			m.fetch(ctx, id, e)
			if e.retry {
				return nil, ctx.Err()
			}
			return e, nil
		}
		m.mu.Unlock()

		select {
		case <-e.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if !e.retry {
			return e, nil
		}
	}
}

func (m *Model) fetch(ctx context.Context, id mod.ID, e *entry) {
	callCtx := ctx
	if m.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	start := time.Now()
	rels, err := m.provider.GetReleases(callCtx, id)

	m.mu.Lock()
	defer m.mu.Unlock()
	defer close(e.ready)

	if err != nil {
		if ctx.Err() != nil {
			// The run was cancelled, not the lookup; let the next caller retry.
			delete(m.index, id)
			e.retry = true
			return
		}
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("lookup timed out after %s: %w", m.timeout, err)
		}
		e.err = err
		m.logger.Warn("mod lookup failed", "mod", id, "error", err, "elapsed", time.Since(start))
		return
	}

	kept := make([]*mod.Release, 0, len(rels))
	seen := make(map[string]bool, len(rels))
	for _, r := range rels {
		if r == nil || r.ID != id {
			continue
		}
		key := r.Version.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		if !m.env.Accepts(r) {
			e.filtered++
			continue
		}
		kept = append(kept, r)
	}
	slices.SortStableFunc(kept, func(a, b *mod.Release) int {
		return cmp.Compare(0, version.Compare(a.Version, b.Version))
	})

	e.slots = make([]int, len(kept))
	for i, r := range kept {
		e.slots[i] = len(m.arena)
		m.arena = append(m.arena, r)
	}
	m.logger.Debug("mod loaded", "mod", id, "candidates", len(kept), "filtered", e.filtered, "elapsed", time.Since(start))
}
