package staging

import (
	"context"
	"crypto/sha1" //nolint:gosec // Modrinth publishes SHA-1 file hashes
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/albertocavalcante/go-modman/internal/atomicfile"
	"github.com/albertocavalcante/go-modman/mod"
	"github.com/albertocavalcante/go-modman/transaction"
)

const (
	// DefaultTrashDir is the trash directory name inside the mods directory.
	DefaultTrashDir = ".modman-trash"

	artifactPermissions = 0o644
	defaultExtension    = ".jar"
)

// ErrNoArtifact is returned when a release has no downloadable file and no
// earlier copy to restore.
var ErrNoArtifact = errors.New("release has no downloadable file")

// ChecksumError reports a download whose SHA-1 does not match the release.
type ChecksumError struct {
	Mod      mod.ID
	Version  string
	Expected string
	Actual   string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s@%s: expected sha1 %s, got %s",
		e.Mod, e.Version, e.Expected, e.Actual)
}

// Compile-time interface compliance checks
var (
	_ transaction.Stager    = (*Stager)(nil)
	_ transaction.Committer = (*Stager)(nil)
)

// Stager stages artifacts into a mods directory.
type Stager struct {
	dir     string
	trash   string
	fetcher Fetcher
	logger  *slog.Logger

	mu sync.Mutex
}

// Option configures a Stager.
type Option func(*Stager)

// WithFetcher sets how artifacts are downloaded.
func WithFetcher(f Fetcher) Option {
	return func(s *Stager) {
		if f != nil {
			s.fetcher = f
		}
	}
}

// WithTrashDir keeps removed artifacts in dir instead of the default
// directory inside the mods directory.
func WithTrashDir(dir string) Option {
	return func(s *Stager) {
		if dir != "" {
			s.trash = dir
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Stager) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a stager for the mods directory dir.
func New(dir string, opts ...Option) *Stager {
	s := &Stager{
		dir:    filepath.Clean(dir),
		logger: slog.New(slog.DiscardHandler),
	}
	s.trash = filepath.Join(s.dir, DefaultTrashDir)
	for _, opt := range opts {
		opt(s)
	}
	if s.fetcher == nil {
		s.fetcher = NewHTTPFetcher()
	}
	return s
}

// Dir returns the mods directory.
func (s *Stager) Dir() string { return s.dir }

// FileName returns the name r is stored under.
func FileName(r *mod.Release) string {
	ext := defaultExtension
	if f, ok := r.PrimaryFile(); ok {
		name := f.Filename
		if name == "" {
			name = f.URL
		}
		if e := filepath.Ext(name); e != "" && !strings.ContainsAny(e, "/?#") {
			ext = e
		}
	}
	return fmt.Sprintf("%s-%s%s", r.ID, r.Version, ext)
}

// Path returns where the artifact of r lives when installed.
func (s *Stager) Path(r *mod.Release) string {
	return filepath.Join(s.dir, FileName(r))
}

func (s *Stager) trashPath(r *mod.Release) string {
	return filepath.Join(s.trash, FileName(r))
}

// Stage places the artifact of r in the mods directory. An artifact already
// in place is kept when it matches the published checksum; one in the trash
// is restored without downloading.
func (s *Stager) Stage(ctx context.Context, r *mod.Release) (transaction.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.Path(r)
	art := transaction.Artifact{Mod: r.ID, Version: r.Version.String(), Path: path}
	file, hasFile := r.PrimaryFile()

	if ok, err := s.present(path, file); err != nil {
		return art, err
	} else if ok {
		return art, nil
	}

	trashed := s.trashPath(r)
	if _, err := os.Stat(trashed); err == nil {
		if err := os.Rename(trashed, path); err != nil {
			return art, fmt.Errorf("restore %s: %w", trashed, err)
		}
		s.logger.Debug("restored artifact", "mod", r.ID, "version", r.Version)
		return art, nil
	}

	if !hasFile || file.URL == "" {
		return art, fmt.Errorf("stage %s: %w", r.Key(), ErrNoArtifact)
	}
	if err := s.download(ctx, r, file, path); err != nil {
		return art, err
	}
	s.logger.Debug("downloaded artifact", "mod", r.ID, "version", r.Version, "path", path)
	return art, nil
}

// present reports whether path already holds a valid copy of file.
func (s *Stager) present(path string, file mod.File) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if file.SHA1 == "" {
		return true, nil
	}
	sum, err := sha1File(path)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(sum, file.SHA1), nil
}

func (s *Stager) download(ctx context.Context, r *mod.Release, file mod.File, path string) error {
	body, err := s.fetcher.Fetch(ctx, file.URL)
	if err != nil {
		return fmt.Errorf("download %s: %w", r.Key(), err)
	}
	defer func() { _ = body.Close() }()

	return atomicfile.Write(path, artifactPermissions, func(w io.Writer) error {
		h := sha1.New() //nolint:gosec // see import
		if _, err := io.Copy(io.MultiWriter(w, h), body); err != nil {
			return fmt.Errorf("download %s: %w", r.Key(), err)
		}
		if file.SHA1 == "" {
			return nil
		}
		if got := hex.EncodeToString(h.Sum(nil)); !strings.EqualFold(got, file.SHA1) {
			return &ChecksumError{Mod: r.ID, Version: r.Version.String(), Expected: file.SHA1, Actual: got}
		}
		return nil
	})
}

// Remove moves the artifact of r to the trash. Removing an artifact that is
// not installed is not an error.
func (s *Stager) Remove(_ context.Context, r *mod.Release) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.Path(r)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := os.MkdirAll(s.trash, 0o755); err != nil {
		return fmt.Errorf("create trash: %w", err)
	}
	if err := os.Rename(path, s.trashPath(r)); err != nil {
		return fmt.Errorf("remove %s: %w", r.Key(), err)
	}
	s.logger.Debug("removed artifact", "mod", r.ID, "version", r.Version)
	return nil
}

// Commit empties the trash.
func (s *Stager) Commit(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.RemoveAll(s.trash); err != nil {
		return fmt.Errorf("empty trash: %w", err)
	}
	return nil
}

func sha1File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha1.New() //nolint:gosec // see import
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
