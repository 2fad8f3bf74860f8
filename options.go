package modman

import (
	"errors"
	"log/slog"
	"time"

	"github.com/albertocavalcante/go-modman/constraint"
	"github.com/albertocavalcante/go-modman/metrics"
	"github.com/albertocavalcante/go-modman/plan"
	"github.com/albertocavalcante/go-modman/selection"
	"github.com/albertocavalcante/go-modman/transaction"
)

// Option configures an Engine.
type Option func(*engineConfig) error

// engineConfig holds all engine configuration.
type engineConfig struct {
	env             constraint.Environment
	stepBudget      int
	concurrency     int
	providerTimeout time.Duration
	retries         int
	retryWait       time.Duration
	maxBatch        int
	onProgress      func(ProgressEvent)
	metrics         *metrics.Metrics

	// logger is nil until WithLogger; log() then returns a discarding logger.
	logger *slog.Logger
}

// WithEnvironment restricts candidates to releases that run on env.
func WithEnvironment(env constraint.Environment) Option {
	return func(c *engineConfig) error {
		c.env = env
		return nil
	}
}

// WithStepBudget bounds the propagation rounds of one resolution. Zero
// disables the limit.
func WithStepBudget(n int) Option {
	return func(c *engineConfig) error {
		c.stepBudget = n
		return nil
	}
}

// WithConcurrency sets how many provider lookups may run at once while
// prefetching metadata.
func WithConcurrency(n int) Option {
	return func(c *engineConfig) error {
		c.concurrency = n
		return nil
	}
}

// WithProviderTimeout sets the per-lookup provider timeout.
func WithProviderTimeout(d time.Duration) Option {
	return func(c *engineConfig) error {
		c.providerTimeout = d
		return nil
	}
}

// WithRetries sets how many times a failed staging operation is retried
// and the first wait between attempts.
func WithRetries(n int, wait time.Duration) Option {
	return func(c *engineConfig) error {
		c.retries = n
		c.retryWait = wait
		return nil
	}
}

// WithMaxBatch bounds how many mutually dependent changes may be grouped
// in one batch step.
func WithMaxBatch(n int) Option {
	return func(c *engineConfig) error {
		c.maxBatch = n
		return nil
	}
}

// WithProgress sets a callback for phase progress events.
func WithProgress(fn func(ProgressEvent)) Option {
	return func(c *engineConfig) error {
		c.onProgress = fn
		return nil
	}
}

// WithMetrics records resolution, planning and apply outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *engineConfig) error {
		c.metrics = m
		return nil
	}
}

// WithLogger sets a structured logger for engine diagnostics.
// If not set, logging is disabled (silent mode).
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil)).With("component", "modman")
//	engine, err := modman.New(provider, store, stager, modman.WithLogger(logger))
func WithLogger(l *slog.Logger) Option {
	return func(c *engineConfig) error {
		c.logger = l
		return nil
	}
}

// validate checks the configuration for logical consistency.
func (c *engineConfig) validate() error {
	if c.concurrency < 1 {
		return errors.New("concurrency must be positive")
	}
	if c.providerTimeout < 0 {
		return errors.New("provider timeout must not be negative")
	}
	if c.retries < 0 {
		return errors.New("retries must not be negative")
	}
	if c.maxBatch < 0 {
		return errors.New("max batch must not be negative")
	}
	return nil
}

func (c *engineConfig) log() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return slog.New(slog.DiscardHandler)
}

func (c *engineConfig) progress(e ProgressEvent) {
	if c.onProgress != nil {
		c.onProgress(e)
	}
}

// newEngineConfig applies opts over the defaults and validates the result.
func newEngineConfig(opts ...Option) (*engineConfig, error) {
	c := &engineConfig{
		stepBudget:      selection.DefaultStepBudget,
		concurrency:     constraint.DefaultConcurrency,
		providerTimeout: constraint.DefaultTimeout,
		retries:         transaction.DefaultRetries,
		maxBatch:        plan.DefaultMaxBatch,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}
