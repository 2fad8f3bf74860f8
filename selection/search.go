package selection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/albertocavalcante/go-modman/constraint"
	"github.com/albertocavalcante/go-modman/mod"
)

// search is the mutable state of one backtracking run. It is created per
// call and never shared.
type search struct {
	ctx       context.Context
	model     *constraint.Model
	logger    *slog.Logger
	budget    int
	installed mod.InstalledState

	roots     []root
	rootIndex map[mod.ID]int
	excluded  map[mod.ID]bool
	// relaxed ignores exclusions; used to tell blocked removals apart.
	relaxed bool

	assigned map[mod.ID]*mod.Release
	order    []mod.ID // assignment trail, oldest first

	steps      int
	backtracks int
	exhausted  bool
	err        error

	// best is the smallest conflicting constraint set seen so far.
	best []Constraint
}

// solve extends the current assignment to a full one, retrying the newest
// decision on dead ends. It reports whether a solution was found.
func (s *search) solve() bool {
	if err := s.ctx.Err(); err != nil {
		s.err = err
		return false
	}
	s.steps++
	if s.budget > 0 && s.steps > s.budget {
		s.exhausted = true
		return false
	}

	id, ok := s.next()
	if !ok {
		return true
	}

	cands, why := s.candidatesFor(id)
	if s.err != nil {
		return false
	}
	if len(cands) == 0 {
		s.record(why)
		return false
	}

	for i, c := range cands {
		if i > 0 {
			s.backtracks++
		}
		s.assign(c)
		if s.solve() {
			return true
		}
		s.unassign(c.ID)
		if s.err != nil || s.exhausted {
			return false
		}
	}
	return false
}

// next returns the first mod that must be assigned but is not: roots first,
// then hard dependency targets in assignment order.
func (s *search) next() (mod.ID, bool) {
	for _, r := range s.roots {
		if _, ok := s.assigned[r.id]; !ok {
			return r.id, true
		}
	}

	visited := make(map[mod.ID]bool, len(s.order))
	for _, id := range s.order {
		for _, d := range s.assigned[id].Dependencies {
			if d.Optional || visited[d.Target] {
				continue
			}
			visited[d.Target] = true
			if _, ok := s.assigned[d.Target]; !ok {
				return d.Target, true
			}
		}
	}
	return "", false
}

func (s *search) assign(r *mod.Release) {
	s.assigned[r.ID] = r
	s.order = append(s.order, r.ID)
}

func (s *search) unassign(id mod.ID) {
	delete(s.assigned, id)
	if n := len(s.order); n > 0 && s.order[n-1] == id {
		s.order = s.order[:n-1]
		return
	}
	s.order = slices.DeleteFunc(s.order, func(x mod.ID) bool { return x == id })
}

// candidatesFor returns the candidates of id consistent with the current
// assignment, in preference order. When none remain it returns the
// constraints that eliminated them.
func (s *search) candidatesFor(id mod.ID) ([]*mod.Release, []Constraint) {
	if s.excluded[id] && !s.relaxed {
		return nil, s.withNeed(id, Constraint{Kind: Excluded, Target: id, Op: OpRemove})
	}

	all, err := s.model.Candidates(s.ctx, id)
	if err != nil {
		s.err = err
		return nil, nil
	}
	if len(all) == 0 {
		if entry, ok := s.installed[id]; ok && s.model.Unavailable(id) != nil {
			// Keep an installed mod whose metadata cannot be fetched.
			s.logger.Warn("metadata unavailable, keeping installed version",
				"mod", id, "version", entry.Version, "error", s.model.Unavailable(id))
			all = []*mod.Release{mod.Stub(id, entry.Version)}
		} else {
			return nil, s.withNeed(id, Constraint{Kind: Unavailable, Target: id, Detail: s.unavailableDetail(id)})
		}
	}

	var ok []*mod.Release
	var reasons constraintSet
	for _, c := range s.prefer(id, all) {
		if why := s.reject(c); len(why) > 0 {
			reasons.add(why...)
			continue
		}
		ok = append(ok, c)
	}
	if len(ok) == 0 {
		return nil, s.withNeed(id, reasons.list...)
	}
	return ok, nil
}

func (s *search) unavailableDetail(id mod.ID) string {
	if err := s.model.Unavailable(id); err != nil {
		if errors.Is(err, mod.ErrNotFound) {
			return "not found in any registry"
		}
		return err.Error()
	}
	if n := s.model.Filtered(id); n > 0 {
		return fmt.Sprintf("%d releases incompatible with the game environment", n)
	}
	return "no releases published"
}

// prefer orders candidates: an installed version goes first unless the
// request names the mod in an install or upgrade, the rest stay highest
// first.
func (s *search) prefer(id mod.ID, cands []*mod.Release) []*mod.Release {
	entry, installed := s.installed[id]
	if !installed {
		return cands
	}
	if i, isRoot := s.rootIndex[id]; isRoot {
		if op := s.roots[i].op; op != nil && (op.Kind == OpInstall || op.Kind == OpUpgrade) {
			return cands
		}
	}

	out := make([]*mod.Release, 0, len(cands))
	for _, c := range cands {
		if c.Version.Equal(entry.Version) {
			out = append(out, c)
		}
	}
	for _, c := range cands {
		if !c.Version.Equal(entry.Version) {
			out = append(out, c)
		}
	}
	return out
}

// reject returns the first constraint c violates against the current
// assignment, with the request constraints that fix the other side. It
// returns nil when c is consistent.
func (s *search) reject(c *mod.Release) []Constraint {
	if rc, ok := s.rootRange(c.ID); ok && !rc.Range.Contains(c.Version) {
		return []Constraint{rc}
	}

	for _, id := range s.order {
		a := s.assigned[id]
		if d, ok := a.DependsOn(c.ID); ok && !d.Range.Contains(c.Version) {
			return s.withRoot(a, Constraint{Kind: DependsOn, Source: a.Key(), Target: c.ID, Range: d.Range})
		}
		if d, ok := c.DependsOn(a.ID); ok && !d.Range.Contains(a.Version) {
			return s.withRoot(a, Constraint{Kind: DependsOn, Source: c.Key(), Target: a.ID, Range: d.Range})
		}
		for _, cf := range a.Conflicts {
			if cf.Target == c.ID && cf.Range.Contains(c.Version) {
				return s.withRoot(a, Constraint{Kind: ConflictsWith, Source: a.Key(), Target: c.ID, Range: cf.Range})
			}
		}
		for _, cf := range c.Conflicts {
			if cf.Target == a.ID && cf.Range.Contains(a.Version) {
				return s.withRoot(a, Constraint{Kind: ConflictsWith, Source: c.Key(), Target: a.ID, Range: cf.Range})
			}
		}
	}

	if !s.relaxed {
		for _, d := range c.Dependencies {
			if !d.Optional && s.excluded[d.Target] {
				return []Constraint{
					{Kind: DependsOn, Source: c.Key(), Target: d.Target, Range: d.Range},
					{Kind: Excluded, Target: d.Target, Op: OpRemove},
				}
			}
		}
	}
	return nil
}

// rootRange returns the request constraint on id, if id is a root.
func (s *search) rootRange(id mod.ID) (Constraint, bool) {
	i, ok := s.rootIndex[id]
	if !ok {
		return Constraint{}, false
	}
	if op := s.roots[i].op; op != nil {
		return requestConstraint(*op), true
	}
	return Constraint{}, false
}

// withRoot appends the request constraint that placed a, if any.
func (s *search) withRoot(a *mod.Release, c Constraint) []Constraint {
	out := []Constraint{c}
	if rc, ok := s.rootRange(a.ID); ok && !rc.Range.IsAny() {
		out = append(out, rc)
	}
	return out
}

// withNeed prefixes why with the constraint that made id required.
func (s *search) withNeed(id mod.ID, why ...Constraint) []Constraint {
	var set constraintSet
	if i, ok := s.rootIndex[id]; ok {
		if op := s.roots[i].op; op != nil {
			set.add(requestConstraint(*op))
		} else {
			entry := s.installed[id]
			set.add(Constraint{Kind: Pinned, Target: id, Source: mod.Key{ID: id, Version: entry.Version.String()}})
		}
	} else {
		for _, aid := range s.order {
			a := s.assigned[aid]
			if d, ok := a.DependsOn(id); ok && !d.Optional {
				set.add(Constraint{Kind: DependsOn, Source: a.Key(), Target: id, Range: d.Range})
				break
			}
		}
	}
	set.add(why...)
	return set.list
}

// record keeps the smallest explanation; ties keep the earliest.
func (s *search) record(why []Constraint) {
	if len(why) == 0 {
		return
	}
	if s.best == nil || len(why) < len(s.best) {
		s.best = why
	}
}

func (s *search) failure() error {
	var cause error
	if s.exhausted {
		cause = ErrBudgetExhausted
	}
	return &ResolutionImpossibleError{Constraints: s.best, Cause: cause}
}

// target converts the final assignment into a TargetState.
func (s *search) target() TargetState {
	out := make(TargetState, len(s.assigned))
	for id, r := range s.assigned {
		out[id] = Selected{Release: r, Reason: s.reasonFor(id)}
	}
	return out
}

func (s *search) reasonFor(id mod.ID) mod.InstallReason {
	i, isRoot := s.rootIndex[id]
	if !isRoot {
		return mod.ReasonDependency
	}
	op := s.roots[i].op
	if op != nil && op.Kind == OpUpgrade {
		return s.installed[id].Reason
	}
	return mod.ReasonExplicit
}

// dependentsOf returns the assigned mods that hard-depend on id, sorted.
func (s *search) dependentsOf(id mod.ID) []mod.ID {
	var out []mod.ID
	for aid, a := range s.assigned {
		if aid == id {
			continue
		}
		if d, ok := a.DependsOn(id); ok && !d.Optional {
			out = append(out, aid)
		}
	}
	slices.Sort(out)
	return out
}

// constraintSet is an ordered set of constraints keyed by rendering.
type constraintSet struct {
	list []Constraint
	seen map[string]bool
}

func (cs *constraintSet) add(cons ...Constraint) {
	if cs.seen == nil {
		cs.seen = make(map[string]bool)
	}
	for _, c := range cons {
		key := c.String()
		if cs.seen[key] {
			continue
		}
		cs.seen[key] = true
		cs.list = append(cs.list, c)
	}
}
