package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/albertocavalcante/go-modman/internal/atomicfile"
	"github.com/albertocavalcante/go-modman/mod"
)

// DefaultLockRetry is how often Lock polls a lock held by another process.
const DefaultLockRetry = 100 * time.Millisecond

// ErrRevisionMismatch reports a save against a revision that is no longer
// current.
var ErrRevisionMismatch = errors.New("state revision changed")

// Store reads and writes one state file.
type Store struct {
	path      string
	lockPath  string
	lockRetry time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the clock used for UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLockRetry sets the lock polling interval.
func WithLockRetry(d time.Duration) Option {
	return func(s *Store) { s.lockRetry = d }
}

// NewStore creates a store for the state file at path. The lock file lives
// next to it as path + ".lock".
func NewStore(path string, opts ...Option) *Store {
	s := &Store{
		path:      path,
		lockPath:  path + ".lock",
		lockRetry: DefaultLockRetry,
		now:       time.Now,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the state file path.
func (s *Store) Path() string { return s.path }

// Load reads the current state. A missing file is an empty state at
// revision 0.
func (s *Store) Load() (*Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return &Snapshot{State: make(mod.InstalledState)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state: %w", err)
	}
	snap, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	return snap, nil
}

// Save atomically replaces the state with next. expected must be the
// revision the caller read; when the file has moved on Save returns
// ErrRevisionMismatch and writes nothing. Callers serialize saves with Lock.
func (s *Store) Save(next mod.InstalledState, expected int64) (*Snapshot, error) {
	current, err := s.Load()
	if err != nil {
		return nil, err
	}
	if current.Revision != expected {
		return nil, fmt.Errorf("%w: expected revision %d, found %d", ErrRevisionMismatch, expected, current.Revision)
	}

	snap := &Snapshot{
		State:     next.Clone(),
		Revision:  expected + 1,
		UpdatedAt: s.now().UTC(),
	}
	data, err := Marshal(snap)
	if err != nil {
		return nil, err
	}
	if err := atomicfile.WriteFile(s.path, data, statePermissions); err != nil {
		return nil, fmt.Errorf("failed to write state: %w", err)
	}
	s.logger.Debug("state saved", "path", s.path, "revision", snap.Revision, "mods", len(snap.State))
	return snap, nil
}

// Lock acquires the exclusive state lock, waiting until ctx ends. The
// returned function releases it. Every call opens its own lock handle, so
// two holders in one process exclude each other like two processes do.
func (s *Store) Lock(ctx context.Context) (func() error, error) {
	lock, err := s.newLock()
	if err != nil {
		return nil, err
	}
	ok, err := lock.TryLockContext(ctx, s.lockRetry)
	if err != nil || !ok {
		_ = lock.Close()
		if err == nil {
			err = ctx.Err()
		}
		return nil, fmt.Errorf("acquire state lock: %w", err)
	}
	s.logger.Debug("state lock acquired", "path", s.lockPath)
	return lock.Unlock, nil
}

// TryLock acquires the state lock without waiting. It reports false when
// another holder has it.
func (s *Store) TryLock() (func() error, bool, error) {
	lock, err := s.newLock()
	if err != nil {
		return nil, false, err
	}
	ok, err := lock.TryLock()
	if err != nil || !ok {
		_ = lock.Close()
		return nil, false, err
	}
	return lock.Unlock, true, nil
}

func (s *Store) newLock() (*flock.Flock, error) {
	if err := os.MkdirAll(filepath.Dir(s.lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	return flock.New(s.lockPath), nil
}

// Exists returns true if a state file exists at the store's path.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}
