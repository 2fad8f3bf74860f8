package selection

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/albertocavalcante/go-modman/constraint"
	"github.com/albertocavalcante/go-modman/metrics"
	"github.com/albertocavalcante/go-modman/mod"
	"github.com/albertocavalcante/go-modman/version"
)

// DefaultStepBudget bounds the propagation rounds of one resolution.
const DefaultStepBudget = 100_000

// Resolver computes target states against one constraint model.
type Resolver struct {
	model   *constraint.Model
	budget  int
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithStepBudget sets the maximum number of propagation rounds. Zero or a
// negative value disables the limit.
func WithStepBudget(n int) Option {
	return func(r *Resolver) { r.budget = n }
}

// WithLogger sets the logger for search diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics records resolution outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

// NewResolver creates a resolver over model.
func NewResolver(model *constraint.Model, opts ...Option) *Resolver {
	r := &Resolver{
		model:  model,
		budget: DefaultStepBudget,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve computes the target state for req applied to installed.
//
// It returns *ResolutionImpossibleError when no assignment exists,
// *BlockedRemovalError when a removal is the reason, *mod.UnknownModError
// when an explicitly requested mod does not exist, or the context error when
// ctx ends first.
func (r *Resolver) Resolve(ctx context.Context, req Request, installed mod.InstalledState) (TargetState, error) {
	start := time.Now()
	target, s, err := r.resolve(ctx, req, installed)

	steps, backtracks := 0, 0
	if s != nil {
		steps, backtracks = s.steps, s.backtracks
	}
	result := metrics.ResultSuccess
	var impossible *ResolutionImpossibleError
	var blocked *BlockedRemovalError
	switch {
	case err == nil:
	case errors.As(err, &blocked):
		result = metrics.ResultBlocked
	case errors.As(err, &impossible):
		result = metrics.ResultImpossible
	default:
		result = metrics.ResultError
	}
	r.metrics.ObserveResolution(result, steps, backtracks, time.Since(start))
	r.logger.Debug("resolution finished",
		"result", result,
		"steps", steps,
		"backtracks", backtracks,
		"selected", len(target),
		"elapsed", time.Since(start),
	)
	return target, err
}

func (r *Resolver) resolve(ctx context.Context, req Request, installed mod.InstalledState) (TargetState, *search, error) {
	ops, err := normalize(req)
	if err != nil {
		return nil, nil, err
	}

	roots, excluded, err := buildRoots(ops, installed)
	if err != nil {
		return nil, nil, err
	}

	for _, op := range ops {
		if op.Kind != OpRemove {
			r.model.MarkExplicit(op.Mod)
		}
	}

	s := r.newSearch(ctx, roots, excluded, installed)
	if s.solve() {
		return s.target(), s, nil
	}
	if s.err != nil {
		return nil, s, s.err
	}
	failure := s.failure()

	var removals []mod.ID
	for _, op := range ops {
		if op.Kind == OpRemove {
			removals = append(removals, op.Mod)
		}
	}
	if len(removals) == 0 {
		return nil, s, failure
	}

	// Retry with removals relaxed: success means a removal is what breaks it.
	relaxed := r.newSearch(ctx, roots, excluded, installed)
	relaxed.relaxed = true
	if !relaxed.solve() {
		if relaxed.err != nil {
			return nil, s, relaxed.err
		}
		return nil, s, failure
	}
	for _, id := range removals {
		if dependents := relaxed.dependentsOf(id); len(dependents) > 0 {
			return nil, s, &BlockedRemovalError{Mod: id, Dependents: dependents}
		}
	}
	return nil, s, failure
}

func (r *Resolver) newSearch(ctx context.Context, roots []root, excluded map[mod.ID]bool, installed mod.InstalledState) *search {
	s := &search{
		ctx:       ctx,
		model:     r.model,
		logger:    r.logger,
		budget:    r.budget,
		installed: installed,
		roots:     roots,
		rootIndex: make(map[mod.ID]int, len(roots)),
		excluded:  excluded,
		assigned:  make(map[mod.ID]*mod.Release),
	}
	for i, rt := range roots {
		s.rootIndex[rt.id] = i
	}
	return s
}

// normalize collapses duplicate operations per mod and rejects
// contradictory ones. Two ranges on the same mod are intersected; an empty
// intersection is a conflict.
func normalize(req Request) ([]Operation, error) {
	out := make([]Operation, 0, len(req.Ops))
	pos := make(map[mod.ID]int)

	for _, op := range req.Ops {
		op.Mod = mod.NormalizeID(string(op.Mod))
		i, seen := pos[op.Mod]
		if !seen {
			pos[op.Mod] = len(out)
			out = append(out, op)
			continue
		}

		prev := out[i]
		if prev.Kind != op.Kind {
			return nil, conflictingOps(prev, op)
		}
		if op.Kind == OpRemove || op.Range == nil {
			continue
		}
		if prev.Range == nil {
			out[i] = op
			continue
		}
		merged := version.Intersect(*prev.Range, *op.Range)
		if merged.IsEmpty() {
			return nil, conflictingOps(prev, op)
		}
		out[i].Range = &merged
	}
	return out, nil
}

func conflictingOps(a, b Operation) error {
	return &ResolutionImpossibleError{
		Constraints: []Constraint{requestConstraint(a), requestConstraint(b)},
		Cause:       ErrConflictingRequest,
	}
}

func requestConstraint(op Operation) Constraint {
	if op.Kind == OpRemove {
		return Constraint{Kind: Excluded, Target: op.Mod, Op: OpRemove}
	}
	return Constraint{Kind: Requested, Target: op.Mod, Range: op.rangeOrAny(), Op: op.Kind}
}

// root is a mod that must be assigned regardless of dependencies.
type root struct {
	id mod.ID
	// op is nil for installed explicit mods the request leaves alone.
	op *Operation
}

func buildRoots(ops []Operation, installed mod.InstalledState) ([]root, map[mod.ID]bool, error) {
	var roots []root
	excluded := make(map[mod.ID]bool)
	targeted := make(map[mod.ID]bool)

	for i := range ops {
		op := ops[i]
		targeted[op.Mod] = true
		switch op.Kind {
		case OpRemove:
			excluded[op.Mod] = true
		case OpUpgrade:
			if _, ok := installed[op.Mod]; !ok {
				return nil, nil, &ResolutionImpossibleError{
					Constraints: []Constraint{{Kind: NotInstalled, Target: op.Mod, Op: OpUpgrade}},
					Cause:       ErrNotInstalled,
				}
			}
			roots = append(roots, root{id: op.Mod, op: &op})
		case OpInstall:
			roots = append(roots, root{id: op.Mod, op: &op})
		}
	}

	for _, id := range installed.IDs() {
		if targeted[id] || installed[id].Reason != mod.ReasonExplicit {
			continue
		}
		roots = append(roots, root{id: id})
	}
	return roots, excluded, nil
}
