package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenk/backoff"
	lru "github.com/hashicorp/golang-lru/v2"
	circuit "github.com/rubyist/circuitbreaker"

	"github.com/albertocavalcante/go-modman/internal/netutil"
	"github.com/albertocavalcante/go-modman/metrics"
	"github.com/albertocavalcante/go-modman/mod"
	"github.com/albertocavalcante/go-modman/version"
)

// Client configuration defaults.
const (
	DefaultBaseURL        = "https://api.modrinth.com/v2"
	DefaultUserAgent      = "modman/0.1 (+https://github.com/albertocavalcante/go-modman)"
	DefaultRequestTimeout = 15 * time.Second
	DefaultCacheSize      = 1024
	DefaultRetries        = 2
	DefaultRetryWait      = 500 * time.Millisecond

	// breakerThreshold is the number of consecutive upstream failures that
	// open the breaker.
	breakerThreshold = 5
)

// Client fetches releases from a Modrinth-compatible API.
//
// Responses are cached for the client's lifetime, so repeated lookups of
// the same mod are answered without a request.
type Client struct {
	baseURL   string
	host      string
	client    *http.Client
	userAgent string
	limiter   *RateLimiter
	breaker   *circuit.Breaker

	cacheSize int
	releases  *lru.Cache[mod.ID, []*mod.Release]
	versions  *lru.Cache[string, *versionDoc]
	slugs     *lru.Cache[string, mod.ID]

	retries   int
	retryWait time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

// WithTimeout sets the HTTP request timeout.
// Zero or negative values fall back to the default timeout (15 seconds).
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.client.Timeout = timeout
		} else {
			c.client.Timeout = DefaultRequestTimeout
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithCacheSize sets how many entries each response cache holds.
func WithCacheSize(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.cacheSize = n
		}
	}
}

// WithRetries sets how often a request failing with a server error is
// retried, and the first wait between attempts.
func WithRetries(n int, wait time.Duration) ClientOption {
	return func(c *Client) {
		c.retries = max(n, 0)
		if wait > 0 {
			c.retryWait = wait
		}
	}
}

// WithRateLimiter shares a limiter between clients of the same API.
func WithRateLimiter(l *RateLimiter) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.limiter = l
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics records registry traffic on m.
func WithMetrics(m *metrics.Metrics) ClientOption {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout:   DefaultRequestTimeout,
			Transport: netutil.NewTransport(),
		},
		userAgent: DefaultUserAgent,
		limiter:   NewRateLimiter(DefaultRateLimit),
		cacheSize: DefaultCacheSize,
		retries:   DefaultRetries,
		retryWait: DefaultRetryWait,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.host = hostOf(c.baseURL)
	c.breaker = newBreaker()
	// lru.New only fails for non-positive sizes, which the options rule out.
	c.releases, _ = lru.New[mod.ID, []*mod.Release](c.cacheSize)
	c.versions, _ = lru.New[string, *versionDoc](c.cacheSize)
	c.slugs, _ = lru.New[string, mod.ID](c.cacheSize)
	return c
}

func newBreaker() *circuit.Breaker {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 30 * time.Second
	expBackoff.MaxInterval = 5 * time.Minute
	expBackoff.Multiplier = 2.0
	expBackoff.Reset()

	return circuit.NewBreakerWithOptions(&circuit.Options{
		BackOff:    expBackoff,
		ShouldTrip: circuit.ThresholdTripFunc(breakerThreshold),
	})
}

func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return rawURL
	}
	return parsed.Host
}

// BaseURL returns the API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// RateLimiter returns the limiter tracking this client's budget.
func (c *Client) RateLimiter() *RateLimiter {
	return c.limiter
}

// Tripped reports whether the circuit breaker is open.
func (c *Client) Tripped() bool {
	return c.breaker.Tripped()
}

// ClearCache removes all cached responses.
func (c *Client) ClearCache() {
	c.releases.Purge()
	c.versions.Purge()
	c.slugs.Purge()
}

// GetReleases lists the releases of id. Versions that do not parse are
// skipped. A mod the API does not know yields an error matching
// mod.ErrNotFound.
func (c *Client) GetReleases(ctx context.Context, id mod.ID) ([]*mod.Release, error) {
	if cached, ok := c.releases.Get(id); ok {
		return cached, nil
	}

	var docs []versionDoc
	if err := c.get(ctx, "/project/"+url.PathEscape(string(id))+"/version", &docs); err != nil {
		return nil, fmt.Errorf("failed to list versions of %s: %w", id, err)
	}

	// The listing names the mod's own project ID; remember it so
	// dependencies on it do not need a lookup.
	for _, d := range docs {
		if d.ProjectID != "" {
			c.slugs.Add(d.ProjectID, id)
			break
		}
	}

	releases := make([]*mod.Release, 0, len(docs))
	for i := range docs {
		doc := &docs[i]
		c.versions.Add(doc.ID, doc)
		r, err := c.toRelease(ctx, id, doc)
		if err != nil {
			var perr *version.ParseError
			if errors.As(err, &perr) {
				c.logger.Debug("skipping unparseable version", "mod", id, "version", doc.VersionNumber)
				continue
			}
			return nil, err
		}
		releases = append(releases, r)
	}

	c.releases.Add(id, releases)
	c.logger.Debug("fetched releases", "mod", id, "count", len(releases))
	return releases, nil
}

func (c *Client) toRelease(ctx context.Context, id mod.ID, doc *versionDoc) (*mod.Release, error) {
	v, err := version.Parse(doc.VersionNumber)
	if err != nil {
		return nil, err
	}
	r := &mod.Release{
		ID:        id,
		Version:   v,
		GameRange: gameRange(doc.GameVersions),
		Loaders:   doc.Loaders,
		Channel:   channelOf(doc.VersionType),
		Files:     filesOf(doc.Files),
	}

	for _, dep := range doc.Dependencies {
		if dep.DependencyType == dependencyEmbedded {
			continue
		}
		target, rng, err := c.dependencyTarget(ctx, dep)
		if err != nil {
			if errors.Is(err, mod.ErrNotFound) {
				c.logger.Warn("dropping dependency on missing project",
					"mod", id, "version", v, "project", dep.ProjectID, "version_id", dep.VersionID)
				continue
			}
			return nil, err
		}
		if target == "" || target == id {
			continue
		}

		switch dep.DependencyType {
		case dependencyRequired:
			r.Dependencies = append(r.Dependencies, mod.Dependency{Target: target, Range: rng})
		case dependencyOptional:
			r.Dependencies = append(r.Dependencies, mod.Dependency{Target: target, Range: rng, Optional: true})
		case dependencyIncompatible:
			r.Conflicts = append(r.Conflicts, mod.Conflict{Target: target, Range: rng})
		}
	}
	return r, nil
}

// dependencyTarget resolves a dependency to a mod ID and version range. A
// version pin narrows the range to exactly that version.
func (c *Client) dependencyTarget(ctx context.Context, dep dependencyDoc) (mod.ID, version.Range, error) {
	rng := version.Any()
	projectID := dep.ProjectID

	if dep.VersionID != "" {
		pinned, err := c.getVersion(ctx, dep.VersionID)
		if err != nil {
			return "", rng, err
		}
		if v, err := version.Parse(pinned.VersionNumber); err == nil {
			rng = version.Exact(v)
		}
		if projectID == "" {
			projectID = pinned.ProjectID
		}
	}
	if projectID == "" {
		// External files named only by file_name are not installable.
		return "", rng, nil
	}

	target, err := c.slug(ctx, projectID)
	return target, rng, err
}

func (c *Client) getVersion(ctx context.Context, versionID string) (*versionDoc, error) {
	if cached, ok := c.versions.Get(versionID); ok {
		return cached, nil
	}
	var doc versionDoc
	if err := c.get(ctx, "/version/"+url.PathEscape(versionID), &doc); err != nil {
		return nil, fmt.Errorf("failed to fetch version %s: %w", versionID, err)
	}
	c.versions.Add(versionID, &doc)
	return &doc, nil
}

// slug maps a project ID to the slug used as mod ID.
func (c *Client) slug(ctx context.Context, projectID string) (mod.ID, error) {
	if cached, ok := c.slugs.Get(projectID); ok {
		return cached, nil
	}
	var doc projectDoc
	if err := c.get(ctx, "/project/"+url.PathEscape(projectID), &doc); err != nil {
		return "", fmt.Errorf("failed to fetch project %s: %w", projectID, err)
	}
	id := mod.NormalizeID(doc.Slug)
	if id == "" {
		id = mod.NormalizeID(doc.ID)
	}
	c.slugs.Add(projectID, id)
	return id, nil
}

// get performs a GET against the API and decodes the JSON body into out.
// Server errors are retried with exponential backoff; only those count
// against the circuit breaker.
func (c *Client) get(ctx context.Context, path string, out any) error {
	if resetAt, limited := c.limiter.Limited(); limited {
		return &RateLimitedError{ResetAt: resetAt}
	}
	if !c.breaker.Ready() {
		return fmt.Errorf("circuit breaker open for registry %s: %w", c.host, ErrUpstreamDown)
	}

	var result error
	err := c.breaker.Call(func() error {
		result = c.getWithRetry(ctx, c.baseURL+path, out)
		if errors.Is(result, ErrUpstreamDown) {
			return result
		}
		return nil
	}, 0)
	if err != nil {
		return err
	}
	return result
}

func (c *Client) getWithRetry(ctx context.Context, rawURL string, out any) error {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = c.retryWait
	expBackoff.MaxElapsedTime = 0
	expBackoff.Reset()
	b := backoff.WithMaxRetries(expBackoff, uint64(c.retries))

	for {
		err := c.doGet(ctx, rawURL, out)
		if err == nil || !errors.Is(err, ErrUpstreamDown) {
			return err
		}
		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return err
		}
		c.logger.Debug("retrying registry request", "url", rawURL, "wait", wait, "error", err)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *Client) doGet(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.metrics.ObserveRegistryRequest(c.host, "error", time.Since(start))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %w", ErrUpstreamDown, err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.metrics.ObserveRegistryRequest(c.host, strconv.Itoa(resp.StatusCode), time.Since(start))
	c.limiter.Sync(resp.Header)

	switch {
	case resp.StatusCode == http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode %s: %w", rawURL, err)
		}
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitedError{ResetAt: c.limiter.ResetAt()}
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode >= http.StatusInternalServerError:
		return &HTTPError{StatusCode: resp.StatusCode, URL: rawURL}
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &HTTPError{StatusCode: resp.StatusCode, URL: rawURL, Body: strings.TrimSpace(string(body))}
	}
}
