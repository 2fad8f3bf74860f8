package modman

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albertocavalcante/go-modman/internal/modtest"
	"github.com/albertocavalcante/go-modman/mod"
	"github.com/albertocavalcante/go-modman/state"
	"github.com/albertocavalcante/go-modman/staging"
	"github.com/albertocavalcante/go-modman/version"
)

const cdn = "https://cdn.example.com/"

func jar(id, v string) modtest.Option {
	return modtest.File(cdn + id + "-" + v + ".jar")
}

// scenarioRegistry serves A 1.2 depending on B >=2.0,<3.0 with B in
// 1.9, 2.0, 2.5 and 3.0, plus standalone mods c and d.
func scenarioRegistry() *modtest.Registry {
	return modtest.NewRegistry(
		modtest.Release("a", "1.2", modtest.Requires("b", ">=2.0,<3.0"), jar("a", "1.2")),
		modtest.Release("b", "1.9", jar("b", "1.9")),
		modtest.Release("b", "2.0", jar("b", "2.0")),
		modtest.Release("b", "2.5", jar("b", "2.5")),
		modtest.Release("b", "3.0", jar("b", "3.0")),
		modtest.Release("c", "1.0", jar("c", "1.0")),
		modtest.Release("d", "1.0", jar("d", "1.0")),
	)
}

type harness struct {
	engine  *Engine
	store   *state.Store
	stager  *staging.Stager
	fetched []string
	broken  map[string]bool
}

func newHarness(t *testing.T, provider mod.Provider, opts ...Option) *harness {
	t.Helper()
	dir := t.TempDir()
	h := &harness{broken: make(map[string]bool)}
	h.store = state.NewStore(filepath.Join(dir, "modman.state.json"))
	h.stager = staging.New(filepath.Join(dir, "mods"), staging.WithFetcher(
		staging.FetcherFunc(func(_ context.Context, url string) (io.ReadCloser, error) {
			h.fetched = append(h.fetched, strings.TrimPrefix(url, cdn))
			if h.broken[url] {
				return nil, errors.New("connection reset")
			}
			return io.NopCloser(strings.NewReader("jar " + url)), nil
		}),
	))

	opts = append([]Option{WithRetries(0, time.Millisecond)}, opts...)
	engine, err := New(provider, h.store, h.stager, opts...)
	require.NoError(t, err)
	h.engine = engine
	return h
}

func (h *harness) state(t *testing.T) *state.Snapshot {
	t.Helper()
	snap, err := h.store.Load()
	require.NoError(t, err)
	return snap
}

func installRange(t *testing.T, id, rng string) Operation {
	t.Helper()
	r, err := version.ParseRange(rng)
	require.NoError(t, err)
	return Install(mod.ID(id), r)
}

func TestRunInstallsWithDependency(t *testing.T) {
	h := newHarness(t, scenarioRegistry())

	result, err := h.engine.Run(context.Background(), NewRequest(installRange(t, "a", ">=1.0")))
	require.NoError(t, err)

	want := modtest.Installed(modtest.Explicit("a", "1.2"), modtest.Dependency("b", "2.5"))
	assert.True(t, want.Equal(result.State.State), "got %v", result.State.State)
	assert.Equal(t, int64(1), result.State.Revision)
	assert.Equal(t, []string{"b-2.5.jar", "a-1.2.jar"}, h.fetched)

	for _, id := range []string{"a", "b"} {
		entry := result.State.State[mod.ID(id)]
		assert.FileExists(t, h.stager.Path(mod.Stub(entry.ID, entry.Version)))
	}
}

func TestRunRemovesOrphans(t *testing.T) {
	h := newHarness(t, scenarioRegistry())
	ctx := context.Background()

	installed, err := h.engine.Run(ctx, NewRequest(Install("a"), Install("c")))
	require.NoError(t, err)
	b := installed.State.State["b"]

	result, err := h.engine.Run(ctx, NewRequest(Remove("a")))
	require.NoError(t, err)

	assert.True(t, modtest.Installed(modtest.Explicit("c", "1.0")).Equal(result.State.State))
	assert.NoFileExists(t, h.stager.Path(mod.Stub(b.ID, b.Version)))
	assert.Equal(t, []string{"remove a 1.2.0", "remove b 2.5.0"}, stepNames(result))
}

func stepNames(r *Result) []string {
	var out []string
	for _, s := range r.Plan.Flatten() {
		out = append(out, s.String())
	}
	return out
}

func TestRunBlockedRemoval(t *testing.T) {
	h := newHarness(t, scenarioRegistry())
	ctx := context.Background()

	_, err := h.engine.Run(ctx, NewRequest(Install("a"), Install("b")))
	require.NoError(t, err)

	_, err = h.engine.Run(ctx, NewRequest(Remove("b")))
	var blocked *BlockedRemovalError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, mod.ID("b"), blocked.Mod)
	assert.Equal(t, []mod.ID{"a"}, blocked.Dependents)
	assert.Equal(t, int64(1), h.state(t).Revision, "nothing applied")
}

func TestRunIncompatibleCycle(t *testing.T) {
	reg := modtest.NewRegistry(
		modtest.Release("a", "1.0", modtest.Requires("b", ">=2.0")),
		modtest.Release("a", "1.5", modtest.Requires("b", ">=2.0")),
		modtest.Release("a", "2.0", modtest.Requires("b", ">=2.0")),
		modtest.Release("b", "2.0", modtest.Requires("a", ">=2.0")),
		modtest.Release("b", "2.5", modtest.Requires("a", ">=1.0,<2.0")),
	)
	h := newHarness(t, reg)

	_, err := h.engine.Run(context.Background(), NewRequest(
		installRange(t, "a", ">=2.0"),
		installRange(t, "b", ">=2.5"),
	))
	var impossible *ResolutionImpossibleError
	require.ErrorAs(t, err, &impossible)
	assert.ElementsMatch(t, []mod.ID{"a", "b"}, impossible.Mods())
	assert.Empty(t, h.fetched)
}

func TestRunUnknownMod(t *testing.T) {
	h := newHarness(t, scenarioRegistry())
	_, err := h.engine.Run(context.Background(), NewRequest(Install("ghost")))
	assert.ErrorIs(t, err, ErrUnknownMod)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRunConflictingRequest(t *testing.T) {
	h := newHarness(t, scenarioRegistry())
	_, err := h.engine.Run(context.Background(), NewRequest(
		installRange(t, "b", "1.9"),
		installRange(t, "b", "2.0"),
	))
	assert.ErrorIs(t, err, ErrConflictingRequest)
}

func TestRunRollsBackFailedApply(t *testing.T) {
	h := newHarness(t, scenarioRegistry())
	h.broken[cdn+"c-1.0.jar"] = true

	result, err := h.engine.Run(context.Background(), NewRequest(Install("a"), Install("c")))
	var applyErr *ApplyError
	require.ErrorAs(t, err, &applyErr)
	assert.True(t, applyErr.RolledBack)
	assert.NotNil(t, result.Plan)

	snap := h.state(t)
	assert.Empty(t, snap.State)
	assert.Equal(t, int64(0), snap.Revision)
	for _, s := range result.Plan.Flatten() {
		assert.NoFileExists(t, h.stager.Path(s.To))
	}
}

func TestApplyStalePlan(t *testing.T) {
	h := newHarness(t, scenarioRegistry())
	ctx := context.Background()

	stale, err := h.engine.Prepare(ctx, NewRequest(Install("c")))
	require.NoError(t, err)

	_, err = h.engine.Run(ctx, NewRequest(Install("d")))
	require.NoError(t, err)

	_, err = h.engine.Apply(ctx, stale)
	assert.ErrorIs(t, err, ErrStaleState)
	assert.True(t, modtest.Installed(modtest.Explicit("d", "1.0")).Equal(h.state(t).State))
}

func TestResolveIsDeterministic(t *testing.T) {
	h := newHarness(t, scenarioRegistry())
	ctx := context.Background()
	req := NewRequest(Install("a"), Install("c"))

	first, err := h.engine.Resolve(ctx, req, nil)
	require.NoError(t, err)
	second, err := h.engine.Resolve(ctx, req, nil)
	require.NoError(t, err)
	assert.Equal(t, first.Installed(), second.Installed())
}

func TestPlanUsesSnapshotRevision(t *testing.T) {
	h := newHarness(t, scenarioRegistry())
	ctx := context.Background()

	_, err := h.engine.Run(ctx, NewRequest(Install("c")))
	require.NoError(t, err)

	snap := h.state(t)
	target, err := h.engine.Resolve(ctx, NewRequest(Install("a")), snap.State)
	require.NoError(t, err)
	p, err := h.engine.Plan(ctx, snap, target)
	require.NoError(t, err)

	assert.Equal(t, snap.Revision, p.Base.Revision)
	assert.Equal(t, snap.Fingerprint(), p.Base.Fingerprint)
}

func TestProgressEvents(t *testing.T) {
	var events []string
	h := newHarness(t, scenarioRegistry(), WithProgress(func(e ProgressEvent) {
		mark := "start"
		if e.Done {
			mark = "done"
		}
		events = append(events, string(e.Phase)+" "+mark)
	}))

	_, err := h.engine.Run(context.Background(), NewRequest(Install("c")))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"resolve start", "resolve done",
		"plan start", "plan done",
		"apply start", "apply done",
	}, events)
}

func TestGraphOfInstalledState(t *testing.T) {
	h := newHarness(t, scenarioRegistry())
	ctx := context.Background()

	_, err := h.engine.Run(ctx, NewRequest(Install("a"), Install("c")))
	require.NoError(t, err)

	g, err := h.engine.Graph(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []mod.ID{"a", "b", "c"}, g.IDs())
	assert.Equal(t, []mod.ID{"a"}, g.HardDependents("b"))
}

func TestNewValidation(t *testing.T) {
	reg := scenarioRegistry()
	store := state.NewStore(filepath.Join(t.TempDir(), "state.json"))
	stager := staging.New(t.TempDir())

	tests := []struct {
		name     string
		provider mod.Provider
		store    *state.Store
		stager   *staging.Stager
		opts     []Option
		errMsg   string
	}{
		{"valid", reg, store, stager, nil, ""},
		{"nil provider", nil, store, stager, nil, "provider is nil"},
		{"nil store", reg, nil, stager, nil, "state store is nil"},
		{"zero concurrency", reg, store, stager, []Option{WithConcurrency(0)}, "concurrency"},
		{"negative retries", reg, store, stager, []Option{WithRetries(-1, 0)}, "retries"},
		{"negative timeout", reg, store, stager, []Option{WithProviderTimeout(-time.Second)}, "timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.provider, tt.store, tt.stager, tt.opts...)
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		in      string
		id      mod.ID
		ranges  int
		wantErr bool
	}{
		{"sodium", "sodium", 0, false},
		{" Fabric-API ", "fabric-api", 0, false},
		{"sodium@0.5.3", "sodium", 1, false},
		{"sodium@>=0.5,<0.6", "sodium", 1, false},
		{"@1.0", "", 0, true},
		{"sodium@>=", "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			id, ranges, err := ParseTarget(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.id, id)
			assert.Len(t, ranges, tt.ranges)
		})
	}
}
