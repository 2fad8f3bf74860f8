package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albertocavalcante/go-modman/internal/modtest"
	"github.com/albertocavalcante/go-modman/mod"
	"github.com/albertocavalcante/go-modman/selection"
)

// catalog serves lookups for installed entries.
type catalog map[mod.Key]*mod.Release

func newCatalog(releases ...*mod.Release) catalog {
	c := make(catalog)
	for _, r := range releases {
		c[r.Key()] = r
	}
	return c
}

func (c catalog) lookup(e mod.InstalledEntry) (*mod.Release, bool) {
	r, ok := c[mod.Key{ID: e.ID, Version: e.Version.String()}]
	return r, ok
}

func target(entries ...selection.Selected) selection.TargetState {
	ts := make(selection.TargetState, len(entries))
	for _, e := range entries {
		ts[e.Release.ID] = e
	}
	return ts
}

func explicit(r *mod.Release) selection.Selected {
	return selection.Selected{Release: r, Reason: mod.ReasonExplicit}
}

func dependency(r *mod.Release) selection.Selected {
	return selection.Selected{Release: r, Reason: mod.ReasonDependency}
}

func stepStrings(steps []Step) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.String()
	}
	return out
}

func TestPlanInstallsDependenciesFirst(t *testing.T) {
	a := modtest.Release("a", "1.2", modtest.Requires("b", ">=2.0,<3.0"))
	b := modtest.Release("b", "2.5", modtest.Requires("c", "*"))
	c := modtest.Release("c", "1.0")

	pl, err := NewPlanner().Plan(nil, target(explicit(a), dependency(b), dependency(c)))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"install c 1.0.0",
		"install b 2.5.0",
		"install a 1.2.0",
	}, stepStrings(pl.Steps))
	assert.Equal(t, mod.ReasonDependency, pl.Steps[0].Reason)
	assert.Equal(t, mod.ReasonExplicit, pl.Steps[2].Reason)
}

func TestPlanRemovesDependentsFirst(t *testing.T) {
	a := modtest.Release("a", "1.0", modtest.Requires("b", "*"))
	b := modtest.Release("b", "1.0", modtest.Requires("c", "*"))
	c := modtest.Release("c", "1.0")
	keep := modtest.Release("keep", "1.0")
	installed := modtest.Installed(
		modtest.Explicit("a", "1.0"),
		modtest.Dependency("b", "1.0"),
		modtest.Dependency("c", "1.0"),
		modtest.Explicit("keep", "1.0"),
	)

	p := NewPlanner(WithLookup(newCatalog(a, b, c, keep).lookup))
	pl, err := p.Plan(installed, target(explicit(keep)))
	require.NoError(t, err)
	assert.Equal(t, []string{"remove a 1.0.0", "remove b 1.0.0", "remove c 1.0.0"}, stepStrings(pl.Steps))
	assert.Same(t, a, pl.Steps[0].From)
}

func TestPlanRemovalsBeforeInstalls(t *testing.T) {
	old := modtest.Release("old", "1.0")
	lib := modtest.Release("lib", "1.0")
	libNext := modtest.Release("lib", "2.0")
	fresh := modtest.Release("fresh", "1.0", modtest.Requires("lib", ">=2"))
	installed := modtest.Installed(
		modtest.Explicit("old", "1.0"),
		modtest.Dependency("lib", "1.0"),
	)

	p := NewPlanner(WithLookup(newCatalog(old, lib).lookup))
	pl, err := p.Plan(installed, target(explicit(fresh), dependency(libNext)))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"remove old 1.0.0",
		"upgrade lib 1.0.0 -> 2.0.0",
		"install fresh 1.0.0",
	}, stepStrings(pl.Steps))
	assert.Same(t, lib, pl.Steps[1].From)
}

func TestPlanDowngradeAndStubs(t *testing.T) {
	installed := modtest.Installed(modtest.Explicit("a", "2.0"))
	a1 := modtest.Release("a", "1.0")

	pl, err := NewPlanner().Plan(installed, target(explicit(a1)))
	require.NoError(t, err)
	require.Len(t, pl.Steps, 1)
	step := pl.Steps[0]
	assert.Equal(t, StepDowngrade, step.Kind)
	assert.Equal(t, "2.0.0", step.From.Version.String(), "unknown installed release is planned as a stub")
	assert.Empty(t, step.From.Dependencies)
}

func TestPlanBatchesCycles(t *testing.T) {
	app := modtest.Release("app", "1.0", modtest.Requires("x", "*"))
	x := modtest.Release("x", "1.0", modtest.Requires("y", "*"))
	y := modtest.Release("y", "1.0", modtest.Requires("x", "*"), modtest.Requires("z", "*"))
	z := modtest.Release("z", "1.0")
	ts := target(explicit(app), dependency(x), dependency(y), dependency(z))

	pl, err := NewPlanner().Plan(nil, ts)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"install z 1.0.0",
		"batch [install x 1.0.0, install y 1.0.0]",
		"install app 1.0.0",
	}, stepStrings(pl.Steps))
	assert.Equal(t, []mod.ID{"x", "y"}, pl.Steps[1].Mods())
	assert.Equal(t, 4, pl.Counts()[StepInstall])

	_, err = NewPlanner(WithMaxBatch(1)).Plan(nil, ts)
	var unresolvable *UnresolvableOrderingError
	require.ErrorAs(t, err, &unresolvable)
	assert.ErrorIs(t, err, ErrUnresolvableOrdering)
	assert.Equal(t, []mod.ID{"x", "y"}, unresolvable.Mods)
}

func TestPlanBatchOnlyChangedMembers(t *testing.T) {
	x := modtest.Release("x", "1.0", modtest.Requires("y", "*"))
	y := modtest.Release("y", "1.0", modtest.Requires("x", "*"))
	y2 := modtest.Release("y", "2.0", modtest.Requires("x", "*"))
	installed := modtest.Installed(modtest.Explicit("x", "1.0"), modtest.Dependency("y", "1.0"))

	p := NewPlanner(WithLookup(newCatalog(x, y).lookup))
	pl, err := p.Plan(installed, target(explicit(x), dependency(y2)))
	require.NoError(t, err)
	assert.Equal(t, []string{"upgrade y 1.0.0 -> 2.0.0"}, stepStrings(pl.Steps))
}

func TestPlanRejectsDanglingTarget(t *testing.T) {
	a := modtest.Release("a", "1.0", modtest.Requires("b", ">=2"))
	b := modtest.Release("b", "1.0")

	tests := []struct {
		name string
		ts   selection.TargetState
		want string
	}{
		{"missing", target(explicit(a)), "a@1.0.0 requires b, which the target does not include"},
		{"unsatisfied", target(explicit(a), dependency(b)), "a@1.0.0 requires b >=2.0.0, target has 1.0.0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPlanner().Plan(nil, tt.ts)
			require.ErrorIs(t, err, ErrUnresolvableOrdering)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestPlanOptionalDependencyMayBeAbsent(t *testing.T) {
	a := modtest.Release("a", "1.0", modtest.Optional("b", "*"))
	_, err := NewPlanner().Plan(nil, target(explicit(a)))
	assert.NoError(t, err)
}

func TestPlanRoundTrip(t *testing.T) {
	a := modtest.Release("a", "1.0", modtest.Requires("lib", "*"))
	lib := modtest.Release("lib", "1.0")
	old := modtest.Release("old", "1.0", modtest.Requires("lib", "*"))
	a2 := modtest.Release("a", "2.0", modtest.Requires("lib", "*"), modtest.Requires("new", "*"))
	newMod := modtest.Release("new", "1.0")
	installed := modtest.Installed(
		modtest.Explicit("a", "1.0"),
		modtest.Dependency("lib", "1.0"),
		modtest.Explicit("old", "1.0"),
	)
	ts := target(explicit(a2), explicit(lib), dependency(newMod))

	pl, err := NewPlanner(WithLookup(newCatalog(a, lib, old).lookup)).Plan(installed, ts)
	require.NoError(t, err)

	state := installed.Clone()
	for _, s := range pl.Steps {
		s.Apply(state)
	}
	pl.ApplyReasons(state)
	assert.True(t, state.Equal(ts.Installed()), "applied state %v != target", state)
	assert.True(t, pl.Target.Equal(ts.Installed()))
	assert.Equal(t, installed.Fingerprint(), pl.Base.Fingerprint)
}

func TestPlanEmptyAndRetag(t *testing.T) {
	lib := modtest.Release("lib", "1.0")
	installed := modtest.Installed(modtest.Dependency("lib", "1.0"))

	pl, err := NewPlanner().Plan(installed, target(dependency(lib)))
	require.NoError(t, err)
	assert.True(t, pl.IsEmpty())
	assert.Equal(t, "Nothing to do.\n", pl.Render())

	pl, err = NewPlanner().Plan(installed, target(explicit(lib)))
	require.NoError(t, err)
	assert.Empty(t, pl.Steps)
	assert.False(t, pl.IsEmpty())
	assert.Contains(t, pl.Render(), "* mark lib as explicit")
}

func TestStepInverse(t *testing.T) {
	v1 := modtest.Release("a", "1.0")
	v2 := modtest.Release("a", "2.0")

	install := Step{Kind: StepInstall, Mod: "a", To: v1, Reason: mod.ReasonDependency}
	assert.Equal(t, Step{Kind: StepRemove, Mod: "a", From: v1, Reason: mod.ReasonDependency}, install.Inverse())
	assert.Equal(t, install, install.Inverse().Inverse())

	upgrade := Step{Kind: StepUpgrade, Mod: "a", From: v1, To: v2}
	assert.Equal(t, "downgrade a 2.0.0 -> 1.0.0", upgrade.Inverse().String())
	assert.Equal(t, upgrade, upgrade.Inverse().Inverse())

	batch := Step{Kind: StepBatch, Members: []Step{
		{Kind: StepInstall, Mod: "x", To: modtest.Release("x", "1.0")},
		{Kind: StepInstall, Mod: "y", To: modtest.Release("y", "1.0")},
	}}
	assert.Equal(t, "batch [remove y 1.0.0, remove x 1.0.0]", batch.Inverse().String())
}

func TestPlanRender(t *testing.T) {
	a := modtest.Release("a", "1.0", modtest.Requires("lib", "*"))
	lib := modtest.Release("lib", "1.0")
	lib2 := modtest.Release("lib", "1.1")
	installed := modtest.Installed(modtest.Dependency("lib", "1.0"), modtest.Explicit("gone", "0.1"))

	pl, err := NewPlanner(WithLookup(newCatalog(lib).lookup)).Plan(installed, target(explicit(a), dependency(lib2)))
	require.NoError(t, err)
	assert.Equal(t, "Plan: 1 to install, 1 to upgrade, 0 to downgrade, 1 to remove\n"+
		"  - remove gone 0.1.0\n"+
		"  ^ upgrade lib 1.0.0 -> 1.1.0\n"+
		"  + install a 1.0.0 (explicit)\n", pl.Render())
}
