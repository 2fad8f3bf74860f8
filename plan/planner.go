package plan

import (
	"fmt"
	"log/slog"

	"github.com/albertocavalcante/go-modman/graph"
	"github.com/albertocavalcante/go-modman/metrics"
	"github.com/albertocavalcante/go-modman/mod"
	"github.com/albertocavalcante/go-modman/selection"
	"github.com/albertocavalcante/go-modman/version"
)

// DefaultMaxBatch bounds the number of mutually dependent changes grouped in
// one batch step.
const DefaultMaxBatch = 32

// Lookup returns the full release for an installed entry. Entries it cannot
// resolve are planned with a stub release carrying only the identity.
type Lookup func(mod.InstalledEntry) (*mod.Release, bool)

// Base identifies the installed state a plan was computed against.
type Base struct {
	Revision    int64
	Fingerprint string
}

// Plan is an ordered list of steps taking Installed to Target.
type Plan struct {
	Base      Base
	Installed mod.InstalledState
	Target    mod.InstalledState
	Steps     []Step
}

// IsEmpty reports whether applying the plan changes nothing at all.
func (p *Plan) IsEmpty() bool {
	return len(p.Steps) == 0 && p.Installed.Equal(p.Target)
}

// Diff returns the state diff the plan implements.
func (p *Plan) Diff() *Diff {
	return DiffStates(p.Installed, p.Target)
}

// Flatten returns the steps with batches expanded, in apply order.
func (p *Plan) Flatten() []Step {
	var out []Step
	for _, s := range p.Steps {
		if s.Kind == StepBatch {
			out = append(out, s.Members...)
			continue
		}
		out = append(out, s)
	}
	return out
}

// Counts returns the number of flattened steps per kind.
func (p *Plan) Counts() map[StepKind]int {
	counts := make(map[StepKind]int)
	for _, s := range p.Flatten() {
		counts[s.Kind]++
	}
	return counts
}

// Planner computes plans.
type Planner struct {
	lookup   Lookup
	maxBatch int
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures a Planner.
type Option func(*Planner)

// WithLookup sets how installed entries are resolved to releases. Without
// it removals are ordered as if installed mods had no dependencies.
func WithLookup(l Lookup) Option {
	return func(p *Planner) { p.lookup = l }
}

// WithMaxBatch sets the largest allowed batch. Zero disables the limit.
func WithMaxBatch(n int) Option {
	return func(p *Planner) { p.maxBatch = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Planner) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithMetrics records planned steps on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Planner) { p.metrics = m }
}

// NewPlanner creates a planner.
func NewPlanner(opts ...Option) *Planner {
	p := &Planner{
		maxBatch: DefaultMaxBatch,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan diffs installed against target and orders the resulting steps.
// Planning has no side effects. The returned plan's Base carries the
// fingerprint of installed; callers that track revisions set Base.Revision.
func (p *Planner) Plan(installed mod.InstalledState, target selection.TargetState) (*Plan, error) {
	if err := validateTarget(target); err != nil {
		return nil, err
	}

	changes := make(map[mod.ID]Step)
	for _, id := range target.IDs() {
		sel := target[id]
		entry, ok := installed[id]
		if !ok {
			changes[id] = Step{Kind: StepInstall, Mod: id, To: sel.Release, Reason: sel.Reason}
			continue
		}
		switch c := version.Compare(sel.Release.Version, entry.Version); {
		case c > 0:
			changes[id] = Step{Kind: StepUpgrade, Mod: id, From: p.release(entry), To: sel.Release, Reason: sel.Reason}
		case c < 0:
			changes[id] = Step{Kind: StepDowngrade, Mod: id, From: p.release(entry), To: sel.Release, Reason: sel.Reason}
		}
	}

	removals := make(map[mod.ID]Step)
	for _, id := range installed.IDs() {
		if _, kept := target[id]; !kept {
			entry := installed[id]
			removals[id] = Step{Kind: StepRemove, Mod: id, From: p.release(entry), Reason: entry.Reason}
		}
	}

	pl := &Plan{
		Base:      Base{Fingerprint: installed.Fingerprint()},
		Installed: installed.Clone(),
		Target:    target.Installed(),
	}

	// Dependents go before their dependencies when removing.
	if len(removals) > 0 {
		old := graph.FromInstalled(installed, p.lookup)
		comps := old.Components()
		for i := len(comps) - 1; i >= 0; i-- {
			step, ok, err := p.group(comps[i], removals)
			if err != nil {
				return nil, err
			}
			if ok {
				pl.Steps = append(pl.Steps, step)
			}
		}
	}

	if len(changes) > 0 {
		releases := make([]*mod.Release, 0, len(target))
		for _, id := range target.IDs() {
			releases = append(releases, target[id].Release)
		}
		next := graph.Build(releases, func(id mod.ID) bool {
			return target[id].Reason == mod.ReasonExplicit
		})
		for _, scc := range next.Components() {
			step, ok, err := p.group(scc, changes)
			if err != nil {
				return nil, err
			}
			if ok {
				pl.Steps = append(pl.Steps, step)
			}
		}
	}

	for _, s := range pl.Flatten() {
		p.metrics.ObservePlanStep(s.Kind.String())
	}
	p.logger.Debug("plan computed",
		"steps", len(pl.Steps),
		"installed", len(installed),
		"target", len(target),
	)
	return pl, nil
}

func (p *Planner) release(entry mod.InstalledEntry) *mod.Release {
	if p.lookup != nil {
		if r, ok := p.lookup(entry); ok && r != nil {
			return r
		}
	}
	return mod.Stub(entry.ID, entry.Version)
}

// group returns the step for the members of scc present in steps. A
// component with several changed members becomes one batch.
func (p *Planner) group(scc []mod.ID, steps map[mod.ID]Step) (Step, bool, error) {
	var members []Step
	for _, id := range scc {
		if s, ok := steps[id]; ok {
			members = append(members, s)
		}
	}
	switch {
	case len(members) == 0:
		return Step{}, false, nil
	case len(members) == 1:
		return members[0], true, nil
	case p.maxBatch > 0 && len(members) > p.maxBatch:
		ids := make([]mod.ID, len(members))
		for i, m := range members {
			ids[i] = m.Mod
		}
		return Step{}, false, &UnresolvableOrderingError{
			Mods:   ids,
			Reason: fmt.Sprintf("dependency cycle of %d changes exceeds the batch limit of %d", len(members), p.maxBatch),
		}
	}
	return Step{Kind: StepBatch, Members: members}, true, nil
}

// validateTarget rejects targets with a hard dependency the target itself
// does not satisfy: no order of steps could keep that mod working.
func validateTarget(target selection.TargetState) error {
	for _, id := range target.IDs() {
		r := target[id].Release
		for _, d := range r.Dependencies {
			if d.Optional {
				continue
			}
			dep, ok := target[d.Target]
			if !ok {
				return &UnresolvableOrderingError{
					Mods:   []mod.ID{id, d.Target},
					Reason: fmt.Sprintf("%s requires %s, which the target does not include", r.Key(), d.Target),
				}
			}
			if !d.Range.Contains(dep.Release.Version) {
				return &UnresolvableOrderingError{
					Mods:   []mod.ID{id, d.Target},
					Reason: fmt.Sprintf("%s requires %s %s, target has %s", r.Key(), d.Target, d.Range, dep.Release.Version),
				}
			}
		}
	}
	return nil
}

// ApplyReasons copies install reasons from the target onto state for mods
// whose version the plan leaves unchanged. Steps do not carry these.
func (p *Plan) ApplyReasons(state mod.InstalledState) {
	for id, want := range p.Target {
		if have, ok := state[id]; ok && have.Version.Equal(want.Version) {
			have.Reason = want.Reason
			state[id] = have
		}
	}
}
