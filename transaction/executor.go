package transaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenk/backoff"

	"github.com/albertocavalcante/go-modman/metrics"
	"github.com/albertocavalcante/go-modman/mod"
	"github.com/albertocavalcante/go-modman/plan"
	"github.com/albertocavalcante/go-modman/state"
)

const (
	// DefaultRetries is how many times a failed stage or remove is retried.
	DefaultRetries = 2

	defaultInitialInterval = 500 * time.Millisecond
	defaultMaxInterval     = 5 * time.Second
)

// Executor applies plans against one state store.
type Executor struct {
	store   *state.Store
	stager  Stager
	retries int
	initial time.Duration
	max     time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures an Executor.
type Option func(*Executor)

// WithRetries sets how many times a failed stage or remove is retried.
func WithRetries(n int) Option {
	return func(e *Executor) { e.retries = max(n, 0) }
}

// WithBackoff sets the first and the largest wait between retries.
func WithBackoff(initial, maxInterval time.Duration) Option {
	return func(e *Executor) {
		e.initial = initial
		e.max = maxInterval
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics records apply outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// NewExecutor creates an executor persisting to store and staging through
// stager.
func NewExecutor(store *state.Store, stager Stager, opts ...Option) *Executor {
	e := &Executor{
		store:   store,
		stager:  stager,
		retries: DefaultRetries,
		initial: defaultInitialInterval,
		max:     defaultMaxInterval,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply runs p and persists the resulting state.
//
// It fails with *StaleStateError, without touching anything, when the
// stored state no longer matches the plan's base. Cancelling ctx stops the
// apply at the next step boundary and rolls back. Any failure after the
// first step is returned as *ApplyError.
func (e *Executor) Apply(ctx context.Context, p *plan.Plan) (*state.Snapshot, error) {
	start := time.Now()
	defer func() { e.metrics.ObserveApply(time.Since(start)) }()

	unlock, err := e.store.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := unlock(); err != nil {
			e.logger.Warn("failed to release state lock", "error", err)
		}
	}()

	snap, err := e.store.Load()
	if err != nil {
		return nil, err
	}
	if snap.Revision != p.Base.Revision || snap.Fingerprint() != p.Base.Fingerprint {
		return nil, &StaleStateError{ExpectedRevision: p.Base.Revision, FoundRevision: snap.Revision}
	}
	if p.IsEmpty() {
		return snap, nil
	}

	// Steps run to completion once started; ctx is only consulted between them.
	stepCtx := context.WithoutCancel(ctx)
	working := snap.State.Clone()
	var applied []plan.Step

	for _, step := range p.Steps {
		if err := ctx.Err(); err != nil {
			return nil, e.abort(stepCtx, step, err, applied, working)
		}
		done, err := e.applyStep(stepCtx, step, working)
		applied = append(applied, done...)
		if err != nil {
			return nil, e.abort(stepCtx, step, err, applied, working)
		}
	}

	p.ApplyReasons(working)
	if !working.Equal(p.Target) {
		err := errors.New("applied state does not match the plan target")
		return nil, e.abort(stepCtx, plan.Step{}, err, applied, working)
	}

	saved, err := e.store.Save(working, snap.Revision)
	if err != nil {
		return nil, e.abort(stepCtx, plan.Step{}, err, applied, working)
	}

	if c, ok := e.stager.(Committer); ok {
		if err := c.Commit(stepCtx); err != nil {
			e.logger.Warn("stager commit failed", "error", err)
		}
	}
	e.logger.Info("transaction applied", "steps", len(applied), "revision", saved.Revision)
	return saved, nil
}

// applyStep runs one plan step and records its effect on working. It
// returns the simple steps that completed, so a failing batch can be undone
// member by member.
func (e *Executor) applyStep(ctx context.Context, step plan.Step, working mod.InstalledState) ([]plan.Step, error) {
	if step.Kind == plan.StepBatch {
		var done []plan.Step
		for _, m := range step.Members {
			if err := e.run(ctx, m); err != nil {
				return done, err
			}
			m.Apply(working)
			done = append(done, m)
		}
		return done, nil
	}
	if err := e.run(ctx, step); err != nil {
		return nil, err
	}
	step.Apply(working)
	return []plan.Step{step}, nil
}

// run performs the staging work of a simple step.
func (e *Executor) run(ctx context.Context, step plan.Step) error {
	var err error
	switch step.Kind {
	case plan.StepInstall:
		err = e.stage(ctx, step.To)
	case plan.StepRemove:
		err = e.remove(ctx, step.From)
	case plan.StepUpgrade, plan.StepDowngrade:
		if err = e.stage(ctx, step.To); err != nil {
			break
		}
		if err = e.remove(ctx, step.From); err != nil {
			// Leave the old version in place, as before the step.
			if undo := e.remove(ctx, step.To); undo != nil {
				err = &undoFailedError{Key: step.To.Key(), Err: err, Undo: undo}
			}
		}
	default:
		err = fmt.Errorf("unexpected step kind %s", step.Kind)
	}
	e.metrics.ObserveApplyStep(step.Kind.String(), err == nil)
	if err != nil {
		e.logger.Warn("step failed", "step", step.String(), "error", err)
		return err
	}
	e.logger.Debug("step applied", "step", step.String())
	return nil
}

func (e *Executor) stage(ctx context.Context, r *mod.Release) error {
	attempts, err := e.retry(ctx, func() error {
		_, err := e.stager.Stage(ctx, r)
		return err
	})
	if err != nil {
		return &StagingFailedError{Mod: r.ID, Version: r.Version.String(), Attempts: attempts, Err: err}
	}
	return nil
}

func (e *Executor) remove(ctx context.Context, r *mod.Release) error {
	attempts, err := e.retry(ctx, func() error {
		return e.stager.Remove(ctx, r)
	})
	if err != nil {
		return &RemovalFailedError{Mod: r.ID, Version: r.Version.String(), Attempts: attempts, Err: err}
	}
	return nil
}

// retry calls op until it succeeds or the retry budget runs out, waiting
// with exponential backoff in between. It returns the number of attempts.
func (e *Executor) retry(ctx context.Context, op func() error) (int, error) {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = e.initial
	expBackoff.MaxInterval = e.max
	expBackoff.MaxElapsedTime = 0
	expBackoff.Reset()
	b := backoff.WithMaxRetries(expBackoff, uint64(e.retries))

	attempts := 0
	for {
		attempts++
		err := op()
		if err == nil {
			return attempts, nil
		}
		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return attempts, err
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempts, err
		case <-timer.C:
		}
	}
}

// abort rolls back applied and wraps cause in an ApplyError.
func (e *Executor) abort(ctx context.Context, failed plan.Step, cause error, applied []plan.Step, working mod.InstalledState) error {
	dirty := e.rollback(ctx, applied, working)
	var partial *undoFailedError
	if errors.As(cause, &partial) {
		if dirty == nil {
			dirty = &DirtyStateError{}
		}
		dirty.Mods = append([]mod.ID{partial.Key.ID}, dirty.Mods...)
		dirty.Errs = append([]error{partial.Undo}, dirty.Errs...)
	}
	e.metrics.ObserveRollback(dirty == nil)

	aerr := &ApplyError{Step: failed, Cause: cause, RolledBack: dirty == nil, Dirty: dirty}
	if dirty != nil {
		e.logger.Error("rollback incomplete", "mods", dirty.Mods, "error", aerr)
	} else {
		e.logger.Warn("transaction rolled back", "undone", len(applied), "error", cause)
	}
	return aerr
}

// rollback undoes applied in reverse order, best effort.
func (e *Executor) rollback(ctx context.Context, applied []plan.Step, working mod.InstalledState) *DirtyStateError {
	var dirty *DirtyStateError
	for i := len(applied) - 1; i >= 0; i-- {
		inverse := applied[i].Inverse()
		if err := e.run(ctx, inverse); err != nil {
			if dirty == nil {
				dirty = &DirtyStateError{}
			}
			dirty.Mods = append(dirty.Mods, inverse.Mod)
			dirty.Errs = append(dirty.Errs, err)
			continue
		}
		inverse.Apply(working)
	}
	return dirty
}
