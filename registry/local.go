package registry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/albertocavalcante/go-modman/mod"
	"github.com/albertocavalcante/go-modman/version"
)

// Local provides releases from YAML indexes in a directory. It enables
// offline workflows and pinning private builds.
//
// Create with file:// URLs through New, or directly with a native path:
//
//	reg := registry.NewLocal("/srv/modman/local")
type Local struct {
	rootPath string
	cache    sync.Map // map[mod.ID][]*mod.Release
}

// NewLocal creates a provider for the directory at rootPath.
func NewLocal(rootPath string) *Local {
	return &Local{rootPath: filepath.Clean(rootPath)}
}

// localIndex is the YAML form of {root}/{id}.yaml.
type localIndex struct {
	Releases []localRelease `yaml:"releases"`
}

type localRelease struct {
	Version      string      `yaml:"version"`
	Channel      string      `yaml:"channel"`
	GameVersions []string    `yaml:"game_versions"`
	Game         string      `yaml:"game"`
	Loaders      []string    `yaml:"loaders"`
	Loader       string      `yaml:"loader"`
	Dependencies []localEdge `yaml:"dependencies"`
	Conflicts    []localEdge `yaml:"conflicts"`
	Files        []localFile `yaml:"files"`
}

type localEdge struct {
	ID       string `yaml:"id"`
	Range    string `yaml:"range"`
	Optional bool   `yaml:"optional"`
}

type localFile struct {
	URL      string `yaml:"url"`
	Filename string `yaml:"filename"`
	Size     int64  `yaml:"size"`
	SHA1     string `yaml:"sha1"`
	SHA512   string `yaml:"sha512"`
	Primary  bool   `yaml:"primary"`
}

// BaseURL returns the file:// URL for this registry.
// The URL uses forward slashes regardless of OS, per RFC 8089.
func (l *Local) BaseURL() string {
	urlPath := filepath.ToSlash(l.rootPath)

	// C:/path -> /C:/path for file:///C:/path
	if runtime.GOOS == "windows" && len(urlPath) >= 2 && isWindowsDriveLetter(urlPath[0]) && urlPath[1] == ':' {
		urlPath = "/" + urlPath
	}
	return "file://" + urlPath
}

// GetReleases reads the index of id. A missing index yields an error
// matching mod.ErrNotFound.
func (l *Local) GetReleases(ctx context.Context, id mod.ID) ([]*mod.Release, error) {
	if cached, ok := l.cache.Load(id); ok {
		return cached.([]*mod.Release), nil
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	path := filepath.Join(l.rootPath, string(id)+".yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("mod %s not in local registry %s: %w", id, l.rootPath, mod.ErrNotFound)
		}
		return nil, fmt.Errorf("read local index %s: %w", path, err)
	}

	var index localIndex
	if err := yaml.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("parse local index %s: %w", path, err)
	}

	releases := make([]*mod.Release, 0, len(index.Releases))
	for i, lr := range index.Releases {
		r, err := lr.toRelease(id)
		if err != nil {
			return nil, fmt.Errorf("local index %s: release %d: %w", path, i, err)
		}
		releases = append(releases, r)
	}

	l.cache.Store(id, releases)
	return releases, nil
}

func (lr localRelease) toRelease(id mod.ID) (*mod.Release, error) {
	v, err := version.Parse(lr.Version)
	if err != nil {
		return nil, err
	}
	r := &mod.Release{
		ID:      id,
		Version: v,
		Loaders: lr.Loaders,
		Channel: channelOf(lr.Channel),
	}

	switch {
	case lr.Game != "":
		if r.GameRange, err = version.ParseRange(lr.Game); err != nil {
			return nil, fmt.Errorf("game: %w", err)
		}
	default:
		r.GameRange = gameRange(lr.GameVersions)
	}
	if lr.Loader != "" {
		if r.LoaderRange, err = version.ParseRange(lr.Loader); err != nil {
			return nil, fmt.Errorf("loader: %w", err)
		}
	}

	for _, e := range lr.Dependencies {
		rng, err := parseEdgeRange(e)
		if err != nil {
			return nil, err
		}
		r.Dependencies = append(r.Dependencies, mod.Dependency{
			Target:   mod.NormalizeID(e.ID),
			Range:    rng,
			Optional: e.Optional,
		})
	}
	for _, e := range lr.Conflicts {
		rng, err := parseEdgeRange(e)
		if err != nil {
			return nil, err
		}
		r.Conflicts = append(r.Conflicts, mod.Conflict{Target: mod.NormalizeID(e.ID), Range: rng})
	}

	for _, f := range lr.Files {
		r.Files = append(r.Files, mod.File(f))
	}
	return r, nil
}

func parseEdgeRange(e localEdge) (version.Range, error) {
	if e.ID == "" {
		return version.Range{}, errors.New("edge without id")
	}
	if e.Range == "" {
		return version.Any(), nil
	}
	rng, err := version.ParseRange(e.Range)
	if err != nil {
		return version.Range{}, fmt.Errorf("%s: %w", e.ID, err)
	}
	return rng, nil
}

// parseFileURL extracts the path from a file:// URL.
// Handles both Unix (file:///path) and Windows (file:///C:/path) formats.
func parseFileURL(url string) (string, error) {
	if !isFileURL(url) {
		return "", fmt.Errorf("not a file:// URL: %s", url)
	}
	path := strings.TrimPrefix(url, "file://")

	// file:///C:/path -> C:/path
	if len(path) >= 3 && path[0] == '/' && isWindowsDriveLetter(path[1]) && path[2] == ':' {
		path = path[1:]
	}
	return filepath.Clean(path), nil
}

// isWindowsDriveLetter returns true if c is a valid Windows drive letter (A-Z, a-z).
func isWindowsDriveLetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

// isFileURL checks if a URL is a file:// URL.
func isFileURL(url string) bool {
	return strings.HasPrefix(url, "file://")
}
