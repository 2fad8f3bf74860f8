package modman

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/albertocavalcante/go-modman/constraint"
	"github.com/albertocavalcante/go-modman/graph"
	"github.com/albertocavalcante/go-modman/mod"
	"github.com/albertocavalcante/go-modman/plan"
	"github.com/albertocavalcante/go-modman/selection"
	"github.com/albertocavalcante/go-modman/state"
	"github.com/albertocavalcante/go-modman/transaction"
)

// Phase names a stage of an engine run.
type Phase string

const (
	PhaseResolve Phase = "resolve"
	PhasePlan    Phase = "plan"
	PhaseApply   Phase = "apply"
)

// ProgressEvent reports the start or the end of a phase.
type ProgressEvent struct {
	Phase   Phase
	Done    bool
	Elapsed time.Duration
	Err     error
}

// Result is the outcome of Run.
type Result struct {
	Plan  *plan.Plan
	State *state.Snapshot
}

// Engine resolves requests against one provider and applies them to one
// installation. It is safe for concurrent use; applies are serialized by
// the state store lock.
type Engine struct {
	provider mod.Provider
	store    *state.Store
	executor *transaction.Executor
	cfg      *engineConfig
}

// New creates an engine reading releases from provider, persisting to
// store and materializing files through stager.
func New(provider mod.Provider, store *state.Store, stager transaction.Stager, opts ...Option) (*Engine, error) {
	if provider == nil {
		return nil, errors.New("provider is nil")
	}
	if store == nil {
		return nil, errors.New("state store is nil")
	}
	if stager == nil {
		return nil, errors.New("stager is nil")
	}
	cfg, err := newEngineConfig(opts...)
	if err != nil {
		return nil, err
	}

	execOpts := []transaction.Option{
		transaction.WithRetries(cfg.retries),
		transaction.WithLogger(cfg.log()),
		transaction.WithMetrics(cfg.metrics),
	}
	if cfg.retryWait > 0 {
		execOpts = append(execOpts, transaction.WithBackoff(cfg.retryWait, 10*cfg.retryWait))
	}

	return &Engine{
		provider: provider,
		store:    store,
		executor: transaction.NewExecutor(store, stager, execOpts...),
		cfg:      cfg,
	}, nil
}

// State loads the installed state.
func (e *Engine) State() (*state.Snapshot, error) {
	return e.store.Load()
}

// Resolve computes the target state for req applied to installed. Errors
// are *ResolutionImpossibleError, *BlockedRemovalError, *UnknownModError or
// the context error.
func (e *Engine) Resolve(ctx context.Context, req Request, installed mod.InstalledState) (TargetState, error) {
	return e.newSession().resolve(ctx, req, installed)
}

// Plan orders the changes from snap to target. Releases of installed mods
// are looked up to order removals; mods whose metadata is gone are planned
// as stubs.
func (e *Engine) Plan(ctx context.Context, snap *state.Snapshot, target TargetState) (*plan.Plan, error) {
	s := e.newSession()
	if err := s.model.Prefetch(ctx, snap.State.IDs(), e.cfg.concurrency); err != nil {
		return nil, err
	}
	return s.plan(snap, target)
}

// Apply executes p and returns the persisted state.
func (e *Engine) Apply(ctx context.Context, p *plan.Plan) (*state.Snapshot, error) {
	done := e.track(PhaseApply)
	snap, err := e.executor.Apply(ctx, p)
	done(err)
	return snap, err
}

// Prepare loads the installed state, resolves req against it and plans
// the result without changing anything.
func (e *Engine) Prepare(ctx context.Context, req Request) (*plan.Plan, error) {
	snap, err := e.store.Load()
	if err != nil {
		return nil, err
	}
	s := e.newSession()
	target, err := s.resolve(ctx, req, snap.State)
	if err != nil {
		return nil, err
	}
	return s.plan(snap, target)
}

// Run prepares req and applies the plan.
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	p, err := e.Prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	snap, err := e.Apply(ctx, p)
	if err != nil {
		return &Result{Plan: p}, err
	}
	return &Result{Plan: p, State: snap}, nil
}

// Graph returns the dependency graph of the installed state.
func (e *Engine) Graph(ctx context.Context) (*graph.Graph, error) {
	snap, err := e.store.Load()
	if err != nil {
		return nil, err
	}
	s := e.newSession()
	if err := s.model.Prefetch(ctx, snap.State.IDs(), e.cfg.concurrency); err != nil {
		return nil, err
	}
	return graph.FromInstalled(snap.State, s.lookup), nil
}

func (e *Engine) track(phase Phase) func(error) {
	start := time.Now()
	e.cfg.progress(ProgressEvent{Phase: phase})
	return func(err error) {
		e.cfg.progress(ProgressEvent{Phase: phase, Done: true, Elapsed: time.Since(start), Err: err})
	}
}

// session shares one constraint model between the phases of a run, so
// every phase sees the same metadata.
type session struct {
	e     *Engine
	model *constraint.Model
}

func (e *Engine) newSession() *session {
	return &session{
		e: e,
		model: constraint.New(e.provider,
			constraint.WithEnvironment(e.cfg.env),
			constraint.WithTimeout(e.cfg.providerTimeout),
			constraint.WithLogger(e.cfg.log()),
		),
	}
}

func (s *session) resolve(ctx context.Context, req Request, installed mod.InstalledState) (target TargetState, err error) {
	done := s.e.track(PhaseResolve)
	defer func() { done(err) }()

	roots := installed.IDs()
	for _, op := range req.Ops {
		roots = append(roots, mod.NormalizeID(string(op.Mod)))
	}
	if err := s.model.Prefetch(ctx, roots, s.e.cfg.concurrency); err != nil {
		return nil, err
	}

	resolver := selection.NewResolver(s.model,
		selection.WithStepBudget(s.e.cfg.stepBudget),
		selection.WithLogger(s.e.cfg.log()),
		selection.WithMetrics(s.e.cfg.metrics),
	)
	return resolver.Resolve(ctx, req, installed)
}

func (s *session) plan(snap *state.Snapshot, target TargetState) (*plan.Plan, error) {
	done := s.e.track(PhasePlan)
	planner := plan.NewPlanner(
		plan.WithLookup(s.lookup),
		plan.WithMaxBatch(s.e.cfg.maxBatch),
		plan.WithLogger(s.e.cfg.log()),
		plan.WithMetrics(s.e.cfg.metrics),
	)
	p, err := planner.Plan(snap.State, target)
	done(err)
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	p.Base.Revision = snap.Revision
	return p, nil
}

func (s *session) lookup(entry mod.InstalledEntry) (*mod.Release, bool) {
	return s.model.Release(entry.ID, entry.Version)
}
