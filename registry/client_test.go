package registry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/albertocavalcante/go-modman/mod"
	"github.com/albertocavalcante/go-modman/version"
)

// modrinthFixture serves a small Modrinth API and counts requests.
type modrinthFixture struct {
	requests  atomic.Int32
	userAgent atomic.Value
	routes    map[string]any
}

func newModrinthServer(t *testing.T) (*httptest.Server, *modrinthFixture) {
	t.Helper()
	f := &modrinthFixture{routes: map[string]any{
		"/project/sodium/version": []map[string]any{
			{
				"id": "V_SOD_053", "project_id": "P_SOD", "version_number": "0.5.3",
				"version_type": "release", "game_versions": []string{"1.20", "1.20.1"},
				"loaders": []string{"fabric", "quilt"},
				"dependencies": []map[string]any{
					{"project_id": "P_FAPI", "dependency_type": "required"},
					{"project_id": "P_MM", "dependency_type": "optional"},
					{"version_id": "V_OPTI", "dependency_type": "incompatible"},
					{"project_id": "P_SHADED", "dependency_type": "embedded"},
					{"file_name": "extra.jar", "dependency_type": "required"},
					{"project_id": "P_SOD", "dependency_type": "required"},
				},
				"files": []map[string]any{
					{"url": "https://cdn.example.com/sodium-src.jar", "filename": "sodium-src.jar", "primary": false},
					{"url": "https://cdn.example.com/sodium.jar", "filename": "sodium.jar", "primary": true, "size": 42,
						"hashes": map[string]string{"sha1": "abc", "sha512": "def"}},
				},
			},
			{
				"id": "V_SOD_060", "project_id": "P_SOD", "version_number": "0.6.0-beta.1",
				"version_type": "beta", "game_versions": []string{"1.21"}, "loaders": []string{"fabric"},
			},
			{
				"id": "V_SOD_BAD", "project_id": "P_SOD", "version_number": "",
				"version_type": "alpha",
			},
		},
		"/project/P_FAPI": map[string]string{"id": "P_FAPI", "slug": "fabric-api"},
		"/project/P_MM":   map[string]string{"id": "P_MM", "slug": "modmenu"},
		"/project/P_OPTI": map[string]string{"id": "P_OPTI", "slug": "OptiFine"},
		"/version/V_OPTI": map[string]string{"id": "V_OPTI", "project_id": "P_OPTI", "version_number": "1.2.0"},
	}}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)
		f.userAgent.Store(r.Header.Get("User-Agent"))
		body, ok := f.routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv, f
}

func TestClientGetReleases(t *testing.T) {
	srv, fixture := newModrinthServer(t)
	client := NewClient(srv.URL, WithUserAgent("modman-test/1.0"))

	releases, err := client.GetReleases(context.Background(), "sodium")
	if err != nil {
		t.Fatalf("GetReleases() error = %v", err)
	}
	if len(releases) != 2 {
		t.Fatalf("GetReleases() returned %d releases, want 2 (unparseable skipped)", len(releases))
	}

	r := releases[0]
	if got := r.Version.String(); got != "0.5.3" {
		t.Errorf("Version = %s, want 0.5.3", got)
	}
	if r.Channel != mod.ChannelRelease {
		t.Errorf("Channel = %s, want release", r.Channel)
	}
	if !r.GameRange.Contains(version.MustParse("1.20.1")) || r.GameRange.Contains(version.MustParse("1.19.4")) {
		t.Errorf("GameRange = %s, want exactly 1.20 and 1.20.1", r.GameRange)
	}
	if !r.SupportsLoader("quilt") || r.SupportsLoader("forge") {
		t.Errorf("Loaders = %v", r.Loaders)
	}

	if len(r.Dependencies) != 2 {
		t.Fatalf("Dependencies = %v, want fabric-api and modmenu", r.Dependencies)
	}
	if d := r.Dependencies[0]; d.Target != "fabric-api" || d.Optional || !d.Range.IsAny() {
		t.Errorf("Dependencies[0] = %+v, want required fabric-api", d)
	}
	if d := r.Dependencies[1]; d.Target != "modmenu" || !d.Optional {
		t.Errorf("Dependencies[1] = %+v, want optional modmenu", d)
	}

	if len(r.Conflicts) != 1 {
		t.Fatalf("Conflicts = %v, want optifine", r.Conflicts)
	}
	if c := r.Conflicts[0]; c.Target != "optifine" || !c.Range.Contains(version.MustParse("1.2.0")) || c.Range.Contains(version.MustParse("1.3.0")) {
		t.Errorf("Conflicts[0] = %+v, want optifine pinned to 1.2.0", c)
	}

	f, ok := r.PrimaryFile()
	if !ok || f.URL != "https://cdn.example.com/sodium.jar" || f.SHA1 != "abc" || f.Size != 42 {
		t.Errorf("PrimaryFile() = %+v", f)
	}

	if releases[1].Channel != mod.ChannelBeta {
		t.Errorf("releases[1].Channel = %s, want beta", releases[1].Channel)
	}
	if ua := fixture.userAgent.Load(); ua != "modman-test/1.0" {
		t.Errorf("User-Agent = %v", ua)
	}
}

func TestClientCachesResponses(t *testing.T) {
	srv, fixture := newModrinthServer(t)
	client := NewClient(srv.URL)
	ctx := context.Background()

	if _, err := client.GetReleases(ctx, "sodium"); err != nil {
		t.Fatalf("first GetReleases() error = %v", err)
	}
	first := fixture.requests.Load()
	if _, err := client.GetReleases(ctx, "sodium"); err != nil {
		t.Fatalf("second GetReleases() error = %v", err)
	}
	if got := fixture.requests.Load(); got != first {
		t.Errorf("second lookup made %d requests, want 0", got-first)
	}

	client.ClearCache()
	if _, err := client.GetReleases(ctx, "sodium"); err != nil {
		t.Fatalf("GetReleases() after ClearCache error = %v", err)
	}
	if got := fixture.requests.Load(); got == first {
		t.Error("ClearCache() did not drop cached responses")
	}
}

func TestClientNotFound(t *testing.T) {
	srv, _ := newModrinthServer(t)
	client := NewClient(srv.URL)

	_, err := client.GetReleases(context.Background(), "does-not-exist")
	if !errors.Is(err, mod.ErrNotFound) {
		t.Fatalf("GetReleases() error = %v, want mod.ErrNotFound", err)
	}
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusNotFound {
		t.Errorf("GetReleases() error = %v, want *HTTPError with 404", err)
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[{"id":"V1","project_id":"P1","version_number":"1.0.0"}]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, WithRetries(2, time.Millisecond))
	releases, err := client.GetReleases(context.Background(), "lithium")
	if err != nil {
		t.Fatalf("GetReleases() error = %v", err)
	}
	if len(releases) != 1 || calls.Load() != 3 {
		t.Errorf("got %d releases after %d calls, want 1 after 3", len(releases), calls.Load())
	}
}

func TestClientGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, WithRetries(1, time.Millisecond))
	_, err := client.GetReleases(context.Background(), "lithium")
	if !errors.Is(err, ErrUpstreamDown) {
		t.Fatalf("GetReleases() error = %v, want ErrUpstreamDown", err)
	}
	if errors.Is(err, mod.ErrNotFound) {
		t.Error("a server error must not look like a missing mod")
	}
	if calls.Load() != 2 {
		t.Errorf("server saw %d calls, want 2", calls.Load())
	}
}

func TestClientCircuitBreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, WithRetries(0, time.Millisecond))
	ctx := context.Background()
	for i := 0; i < breakerThreshold; i++ {
		if _, err := client.GetReleases(ctx, "lithium"); err == nil {
			t.Fatal("GetReleases() succeeded against a failing server")
		}
	}
	if !client.Tripped() {
		t.Fatalf("breaker not tripped after %d failures", breakerThreshold)
	}

	_, err := client.GetReleases(ctx, "lithium")
	if !errors.Is(err, ErrUpstreamDown) || !strings.Contains(err.Error(), "circuit breaker open") {
		t.Errorf("GetReleases() error = %v, want open breaker", err)
	}
	if calls.Load() != breakerThreshold {
		t.Errorf("server saw %d calls, want %d", calls.Load(), breakerThreshold)
	}
}

func TestClientNotFoundDoesNotTripBreaker(t *testing.T) {
	srv, _ := newModrinthServer(t)
	client := NewClient(srv.URL)

	for i := 0; i < breakerThreshold+1; i++ {
		_, _ = client.GetReleases(context.Background(), "missing")
	}
	if client.Tripped() {
		t.Error("404 responses tripped the breaker")
	}
}

func TestClientRateLimitFailsFast(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set(HeaderRateLimit, "300")
		w.Header().Set(HeaderRateRemaining, "0")
		w.Header().Set(HeaderRateReset, "60")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	ctx := context.Background()
	if _, err := client.GetReleases(ctx, "a"); err != nil {
		t.Fatalf("first GetReleases() error = %v", err)
	}

	_, err := client.GetReleases(ctx, "b")
	var limited *RateLimitedError
	if !errors.As(err, &limited) || !errors.Is(err, ErrRateLimited) {
		t.Fatalf("GetReleases() error = %v, want *RateLimitedError", err)
	}
	if limited.ResetAt.Before(time.Now().Add(50 * time.Second)) {
		t.Errorf("ResetAt = %v, want about a minute from now", limited.ResetAt)
	}
	if calls.Load() != 1 {
		t.Errorf("server saw %d calls, want 1", calls.Load())
	}
}

func TestClientTooManyRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).GetReleases(context.Background(), "a")
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("GetReleases() error = %v, want ErrRateLimited", err)
	}
}

func TestClientHonoursCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	client := NewClient(srv.URL)
	_, err := client.GetReleases(ctx, "slow")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("GetReleases() error = %v, want context.DeadlineExceeded", err)
	}
	if client.Tripped() {
		t.Error("cancellation tripped the breaker")
	}
}
