// Package e2e runs the engine against a Modrinth-compatible HTTP server,
// with real downloads, checksums and state files.
package e2e

import (
	"context"
	"crypto/sha1" //nolint:gosec // Modrinth publishes SHA-1 file hashes
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	modman "github.com/albertocavalcante/go-modman"
	"github.com/albertocavalcante/go-modman/constraint"
	"github.com/albertocavalcante/go-modman/mod"
	"github.com/albertocavalcante/go-modman/registry"
	"github.com/albertocavalcante/go-modman/staging"
	"github.com/albertocavalcante/go-modman/state"
	"github.com/albertocavalcante/go-modman/version"
)

// modrinth is a minimal Modrinth v2 API plus a CDN for the files it lists.
type modrinth struct {
	srv *httptest.Server

	mu        sync.Mutex
	projects  map[string][]map[string]any
	slugs     map[string]string
	files     map[string][]byte
	corrupt   map[string]bool
	downloads []string
}

func newModrinth(t *testing.T) *modrinth {
	t.Helper()
	m := &modrinth{
		projects: make(map[string][]map[string]any),
		slugs:    make(map[string]string),
		files:    make(map[string][]byte),
		corrupt:  make(map[string]bool),
	}
	m.srv = httptest.NewServer(http.HandlerFunc(m.serve))
	t.Cleanup(m.srv.Close)
	return m
}

func (m *modrinth) serve(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path := r.URL.Path
	switch {
	case strings.HasPrefix(path, "/cdn/"):
		name := strings.TrimPrefix(path, "/cdn/")
		data, ok := m.files[name]
		if !ok {
			http.NotFound(w, r)
			return
		}
		m.downloads = append(m.downloads, name)
		if m.corrupt[name] {
			data = []byte("truncated")
		}
		_, _ = w.Write(data)
	case strings.HasPrefix(path, "/project/") && strings.HasSuffix(path, "/version"):
		id := strings.TrimSuffix(strings.TrimPrefix(path, "/project/"), "/version")
		versions, ok := m.projects[id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, versions)
	case strings.HasPrefix(path, "/project/"):
		id := strings.TrimPrefix(path, "/project/")
		slug, ok := m.slugs[id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, map[string]string{"id": id, "slug": slug})
	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Ratelimit-Limit", "300")
	w.Header().Set("X-Ratelimit-Remaining", "299")
	w.Header().Set("X-Ratelimit-Reset", "60")
	_ = json.NewEncoder(w).Encode(v)
}

// publish adds a version of slug (project ID projectID) with one primary
// file. deps lists required project IDs.
func (m *modrinth) publish(projectID, slug, number string, deps ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := slug + "-" + number + ".jar"
	content := []byte("jar " + name)
	sum := sha1.Sum(content) //nolint:gosec
	m.files[name] = content
	m.slugs[projectID] = slug

	dependencies := make([]map[string]any, 0, len(deps))
	for _, d := range deps {
		dependencies = append(dependencies, map[string]any{"project_id": d, "dependency_type": "required"})
	}
	m.projects[slug] = append([]map[string]any{{
		"id":             projectID + "-" + number,
		"project_id":     projectID,
		"version_number": number,
		"version_type":   "release",
		"game_versions":  []string{"1.20.1"},
		"loaders":        []string{"fabric"},
		"dependencies":   dependencies,
		"files": []map[string]any{{
			"url":      m.srv.URL + "/cdn/" + name,
			"filename": name,
			"primary":  true,
			"size":     len(content),
			"hashes":   map[string]string{"sha1": hex.EncodeToString(sum[:])},
		}},
	}}, m.projects[slug]...)
}

func (m *modrinth) downloaded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.downloads...)
}

type installation struct {
	m      *modrinth
	dir    string
	mods   string
	engine *modman.Engine
	store  *state.Store
}

func newInstallation(t *testing.T, m *modrinth) *installation {
	t.Helper()
	dir := t.TempDir()
	inst := &installation{m: m, dir: dir, mods: filepath.Join(dir, "mods")}
	inst.open(t)
	return inst
}

// open builds a fresh engine over the installation, the way each CLI
// invocation does. Registry responses cached by a previous engine are gone.
func (i *installation) open(t *testing.T) {
	t.Helper()
	provider, err := registry.New([]string{i.m.srv.URL}, registry.WithUserAgent("modman-e2e"), registry.WithRetries(0, 0))
	if err != nil {
		t.Fatalf("registry.New() error = %v", err)
	}
	i.store = state.NewStore(filepath.Join(i.dir, "modman.state.json"))
	stager := staging.New(i.mods)

	i.engine, err = modman.New(provider, i.store, stager,
		modman.WithEnvironment(constraint.Environment{
			GameVersion: version.MustParse("1.20.1"),
			Loader:      "fabric",
		}),
		modman.WithRetries(1, time.Millisecond),
	)
	if err != nil {
		t.Fatalf("modman.New() error = %v", err)
	}
}

func (i *installation) jars(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(i.mods)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("ReadDir(%s) error = %v", i.mods, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names
}

func TestInstallUpgradeRemove(t *testing.T) {
	m := newModrinth(t)
	m.publish("P_FAPI", "fabric-api", "0.90.0")
	m.publish("P_SOD", "sodium", "0.5.3", "P_FAPI")
	inst := newInstallation(t, m)
	ctx := context.Background()

	result, err := inst.engine.Run(ctx, modman.NewRequest(modman.Install("sodium")))
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if got := result.State.State["fabric-api"]; got.Reason != mod.ReasonDependency {
		t.Errorf("fabric-api reason = %s, want dependency", got.Reason)
	}
	if got, want := strings.Join(inst.jars(t), ","), "fabric-api-0.90.0.jar,sodium-0.5.3.jar"; got != want {
		t.Errorf("mods dir = %s, want %s", got, want)
	}

	// Upgrading sodium keeps the installed fabric-api, which still fits.
	m.publish("P_FAPI", "fabric-api", "0.91.0")
	m.publish("P_SOD", "sodium", "0.5.4", "P_FAPI")
	inst.open(t)
	result, err = inst.engine.Run(ctx, modman.NewRequest(modman.Upgrade("sodium")))
	if err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	if got := result.State.State["sodium"].Version.String(); got != "0.5.4" {
		t.Errorf("sodium after upgrade = %s, want 0.5.4", got)
	}
	if got, want := strings.Join(inst.jars(t), ","), "fabric-api-0.90.0.jar,sodium-0.5.4.jar"; got != want {
		t.Errorf("mods dir after upgrade = %s, want %s", got, want)
	}

	result, err = inst.engine.Run(ctx, modman.NewRequest(modman.Remove("sodium")))
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(result.State.State) != 0 {
		t.Errorf("state after remove = %v, want empty", result.State.State)
	}
	if jars := inst.jars(t); len(jars) != 0 {
		t.Errorf("mods dir after remove = %v, want empty", jars)
	}
	if result.State.Revision != 3 {
		t.Errorf("revision = %d, want 3", result.State.Revision)
	}
}

func TestChecksumMismatchRollsBack(t *testing.T) {
	m := newModrinth(t)
	m.publish("P_FAPI", "fabric-api", "0.90.0")
	m.publish("P_SOD", "sodium", "0.5.3", "P_FAPI")
	m.corrupt["sodium-0.5.3.jar"] = true
	inst := newInstallation(t, m)

	_, err := inst.engine.Run(context.Background(), modman.NewRequest(modman.Install("sodium")))

	var applyErr *modman.ApplyError
	if !errors.As(err, &applyErr) {
		t.Fatalf("error = %v, want *ApplyError", err)
	}
	var checksum *staging.ChecksumError
	if !errors.As(err, &checksum) {
		t.Errorf("error = %v, want a checksum failure", err)
	}
	if !applyErr.RolledBack {
		t.Errorf("RolledBack = false, want true")
	}
	if jars := inst.jars(t); len(jars) != 0 {
		t.Errorf("mods dir after rollback = %v, want empty", jars)
	}

	// One attempt plus one retry for the corrupt file.
	var sodium int
	for _, name := range m.downloaded() {
		if name == "sodium-0.5.3.jar" {
			sodium++
		}
	}
	if sodium != 2 {
		t.Errorf("sodium downloads = %d, want 2", sodium)
	}

	snap, err := inst.store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(snap.State) != 0 || snap.Revision != 0 {
		t.Errorf("state = %v (revision %d), want untouched", snap.State, snap.Revision)
	}
}

func TestIncompatibleGameVersionIsImpossible(t *testing.T) {
	m := newModrinth(t)
	m.publish("P_SOD", "sodium", "0.5.3")
	m.mu.Lock()
	m.projects["sodium"][0]["game_versions"] = []string{"1.21"}
	m.mu.Unlock()
	inst := newInstallation(t, m)

	_, err := inst.engine.Run(context.Background(), modman.NewRequest(modman.Install("sodium")))
	var impossible *modman.ResolutionImpossibleError
	if !errors.As(err, &impossible) {
		t.Fatalf("error = %v, want *ResolutionImpossibleError", err)
	}
	if got := m.downloaded(); len(got) != 0 {
		t.Errorf("downloads = %v, want none", got)
	}
}

// TestLiveModrinth resolves a well known mod against the public API. It
// needs network access and runs only when MODMAN_E2E is set.
func TestLiveModrinth(t *testing.T) {
	if os.Getenv("MODMAN_E2E") == "" {
		t.Skip("set MODMAN_E2E=1 to run against api.modrinth.com")
	}

	provider, err := registry.New([]string{registry.DefaultBaseURL})
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	engine, err := modman.New(provider,
		state.NewStore(filepath.Join(dir, "state.json")),
		staging.New(filepath.Join(dir, "mods")),
		modman.WithEnvironment(constraint.Environment{
			GameVersion: version.MustParse("1.20.1"),
			Loader:      "fabric",
			Channels:    []mod.Channel{mod.ChannelRelease},
		}),
	)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	target, err := engine.Resolve(ctx, modman.NewRequest(modman.Install("sodium")), nil)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if _, ok := target["sodium"]; !ok {
		t.Errorf("target %v does not contain sodium", target.IDs())
	}
	t.Logf("resolved %d mods: %v", len(target), target.IDs())
}
