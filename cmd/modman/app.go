package main

import (
	"io"
	"log/slog"
	"time"

	"github.com/albertocavalcante/go-modman"
	"github.com/albertocavalcante/go-modman/config"
	"github.com/albertocavalcante/go-modman/registry"
	"github.com/albertocavalcante/go-modman/staging"
	"github.com/albertocavalcante/go-modman/state"
)

const retryWait = 500 * time.Millisecond

// app holds what the commands share once the configuration is loaded.
type app struct {
	out    io.Writer
	logger *slog.Logger
	cfg    *config.Config
	engine *modman.Engine
}

func (a *app) setup(cfg *config.Config) error {
	env, err := cfg.Environment()
	if err != nil {
		return err
	}

	provider, err := registry.New(cfg.Registry.URLs,
		registry.WithTimeout(time.Duration(cfg.Registry.Timeout)),
		registry.WithUserAgent(cfg.Registry.UserAgent),
		registry.WithLogger(a.logger.With("component", "registry")),
	)
	if err != nil {
		return err
	}

	store := state.NewStore(cfg.Paths.State, state.WithLogger(a.logger.With("component", "state")))
	stager := staging.New(cfg.Paths.Mods,
		staging.WithFetcher(staging.NewHTTPFetcher(staging.WithUserAgent(cfg.Registry.UserAgent))),
		staging.WithLogger(a.logger.With("component", "staging")),
	)

	engine, err := modman.New(provider, store, stager,
		modman.WithEnvironment(env),
		modman.WithStepBudget(cfg.Resolver.StepBudget),
		modman.WithConcurrency(cfg.Registry.Concurrency),
		modman.WithProviderTimeout(time.Duration(cfg.Registry.Timeout)),
		modman.WithRetries(cfg.Apply.Retries, retryWait),
		modman.WithMaxBatch(cfg.Apply.MaxBatch),
		modman.WithLogger(a.logger),
		modman.WithProgress(a.progress),
	)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.engine = engine
	return nil
}

func (a *app) progress(e modman.ProgressEvent) {
	if !e.Done {
		a.logger.Debug("phase started", "phase", e.Phase)
		return
	}
	a.logger.Info("phase finished", "phase", e.Phase, "elapsed", e.Elapsed.Round(time.Millisecond), "ok", e.Err == nil)
}
