package registry

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// New creates a provider for the given registry URLs.
//
// Supported URL schemes:
//   - https:// or http:// - Modrinth-compatible API, configured by opts
//   - file:// - local directory of YAML indexes
//
// A single URL yields its source directly; several are wrapped in a Chain
// in the given order.
func New(urls []string, opts ...ClientOption) (Source, error) {
	if len(urls) == 0 {
		return nil, errors.New("no registry URLs provided")
	}

	sources := make([]Source, 0, len(urls))
	for _, u := range urls {
		src, err := newSource(u, opts)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	if len(sources) == 1 {
		return sources[0], nil
	}
	return NewChain(sources...)
}

func newSource(url string, opts []ClientOption) (Source, error) {
	switch {
	case isFileURL(url):
		path, err := parseFileURL(url)
		if err != nil {
			return nil, err
		}
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("local registry path does not exist: %s", path)
			}
			return nil, fmt.Errorf("cannot access local registry path %s: %w", path, err)
		}
		return NewLocal(path), nil
	case strings.HasPrefix(url, "https://"), strings.HasPrefix(url, "http://"):
		return NewClient(url, opts...), nil
	}
	return nil, fmt.Errorf("unsupported registry URL %q", url)
}
