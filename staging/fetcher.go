package staging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/albertocavalcante/go-modman/internal/netutil"
)

// ErrNotFound is returned when the artifact URL does not exist.
var ErrNotFound = errors.New("artifact not found")

// DefaultDownloadTimeout bounds one artifact download.
const DefaultDownloadTimeout = 5 * time.Minute

// Fetcher opens artifact downloads. The caller closes the body.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, url string) (io.ReadCloser, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	return f(ctx, url)
}

// DownloadError reports an unexpected HTTP status.
type DownloadError struct {
	URL        string
	StatusCode int
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s: HTTP %d", e.URL, e.StatusCode)
}

// Is makes a 404 match ErrNotFound.
func (e *DownloadError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// HTTPFetcher downloads artifacts over HTTP.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// FetcherOption configures an HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *HTTPFetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *HTTPFetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// NewHTTPFetcher creates a fetcher using the shared DNS-caching transport.
func NewHTTPFetcher(opts ...FetcherOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client: &http.Client{
			Timeout:   DefaultDownloadTimeout,
			Transport: netutil.NewTransport(),
		},
		userAgent: "modman/0.1",
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch starts downloading url.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching artifact: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, &DownloadError{URL: url, StatusCode: resp.StatusCode}
	}
	return resp.Body, nil
}
