// Package config loads modman.toml, the per-installation settings file.
//
// A configuration is discovered by walking up from the working directory.
// Relative paths in the file are resolved against the directory holding it.
// MODMAN_* environment variables override file values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	toml "github.com/pelletier/go-toml/v2"

	"github.com/albertocavalcante/go-modman/constraint"
	"github.com/albertocavalcante/go-modman/internal/atomicfile"
	"github.com/albertocavalcante/go-modman/mod"
	"github.com/albertocavalcante/go-modman/registry"
	"github.com/albertocavalcante/go-modman/selection"
	"github.com/albertocavalcante/go-modman/version"
)

const (
	// FileName is the configuration file looked up by Discover.
	FileName = "modman.toml"

	// StateFileName is the default state file next to the configuration.
	StateFileName = "modman.state.json"

	// AppName names the XDG directories.
	AppName = "modman"
)

// Environment variables overriding file values.
const (
	EnvGameVersion   = "MODMAN_GAME_VERSION"
	EnvLoader        = "MODMAN_LOADER"
	EnvLoaderVersion = "MODMAN_LOADER_VERSION"
	EnvRegistry      = "MODMAN_REGISTRY"
	EnvUserAgent     = "MODMAN_USER_AGENT"
	EnvModsDir       = "MODMAN_MODS_DIR"
	EnvStateFile     = "MODMAN_STATE_FILE"
	EnvStepBudget    = "MODMAN_STEP_BUDGET"
	EnvConcurrency   = "MODMAN_CONCURRENCY"
)

// Defaults for fields the file leaves out.
const (
	DefaultConcurrency = 8
	DefaultTimeout     = 15 * time.Second
	DefaultRetries     = 2
	DefaultMaxBatch    = 32
)

// ErrNotFound is returned by Discover when no modman.toml exists in the
// start directory or any parent.
var ErrNotFound = errors.New("no " + FileName + " found")

// Config is the content of modman.toml.
type Config struct {
	Game     Game     `toml:"game"`
	Registry Registry `toml:"registry"`
	Paths    Paths    `toml:"paths"`
	Resolver Resolver `toml:"resolver"`
	Apply    Apply    `toml:"apply"`

	// Path is the file the configuration was read from, empty for defaults.
	Path string `toml:"-"`
}

// Game describes the installation mods must run on.
type Game struct {
	Version       string   `toml:"version,omitempty"`
	Loader        string   `toml:"loader,omitempty"`
	LoaderVersion string   `toml:"loader_version,omitempty"`
	Channels      []string `toml:"channels,omitempty"`
}

// Registry configures where releases come from.
type Registry struct {
	URLs        []string `toml:"urls"`
	Timeout     Duration `toml:"timeout"`
	Concurrency int      `toml:"concurrency"`
	UserAgent   string   `toml:"user_agent"`
}

// Paths locates the mods directory and the state file.
type Paths struct {
	Mods  string `toml:"mods"`
	State string `toml:"state"`
}

// Resolver tunes dependency resolution.
type Resolver struct {
	StepBudget int `toml:"step_budget"`
}

// Apply tunes transaction execution.
type Apply struct {
	Retries  int `toml:"retries"`
	MaxBatch int `toml:"max_batch"`
}

// Duration is a time.Duration written as "15s" in TOML.
type Duration time.Duration

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText formats d as a Go duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Default returns the configuration used when no file exists, rooted at
// dir. The state file then lives in the XDG state directory.
func Default(dir string) *Config {
	return &Config{
		Registry: Registry{
			URLs:        []string{registry.DefaultBaseURL},
			Timeout:     Duration(DefaultTimeout),
			Concurrency: DefaultConcurrency,
			UserAgent:   registry.DefaultUserAgent,
		},
		Paths: Paths{
			Mods:  filepath.Join(dir, "mods"),
			State: filepath.Join(xdg.StateHome, AppName, "state.json"),
		},
		Resolver: Resolver{StepBudget: selection.DefaultStepBudget},
		Apply:    Apply{Retries: DefaultRetries, MaxBatch: DefaultMaxBatch},
	}
}

// Discover returns the path of the nearest modman.toml at or above start.
func Discover(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w in %s or any parent directory", ErrNotFound, start)
		}
		dir = parent
	}
}

// Load reads the configuration at path. Missing fields take their defaults
// and relative paths are resolved against the file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	dir := filepath.Dir(path)
	cfg := Default(dir)
	cfg.Paths.State = StateFileName
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	cfg.Path = path
	cfg.Paths.Mods = resolve(dir, cfg.Paths.Mods)
	cfg.Paths.State = resolve(dir, cfg.Paths.State)
	return cfg, nil
}

// LoadFrom discovers and loads the configuration for start, applies
// environment overrides and validates the result. Without a file the
// defaults rooted at start are used.
func LoadFrom(start string) (*Config, error) {
	var cfg *Config
	path, err := Discover(start)
	switch {
	case err == nil:
		if cfg, err = Load(path); err != nil {
			return nil, err
		}
	case errors.Is(err, ErrNotFound):
		abs, err := filepath.Abs(start)
		if err != nil {
			return nil, err
		}
		cfg = Default(abs)
	default:
		return nil, err
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables read through
// lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str(EnvGameVersion, &c.Game.Version)
	str(EnvLoader, &c.Game.Loader)
	str(EnvLoaderVersion, &c.Game.LoaderVersion)
	str(EnvUserAgent, &c.Registry.UserAgent)
	str(EnvModsDir, &c.Paths.Mods)
	str(EnvStateFile, &c.Paths.State)
	if v, ok := lookup(EnvRegistry); ok && v != "" {
		c.Registry.URLs = splitList(v)
	}
	if err := num(EnvStepBudget, &c.Resolver.StepBudget); err != nil {
		return err
	}
	return num(EnvConcurrency, &c.Registry.Concurrency)
}

// Validate checks the configuration for values the engine cannot use.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Registry.URLs) == 0 {
		errs = append(errs, errors.New("registry.urls must not be empty"))
	}
	if c.Registry.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("registry.concurrency must be positive, got %d", c.Registry.Concurrency))
	}
	if c.Registry.Timeout < 0 {
		errs = append(errs, errors.New("registry.timeout must not be negative"))
	}
	if c.Apply.Retries < 0 {
		errs = append(errs, fmt.Errorf("apply.retries must not be negative, got %d", c.Apply.Retries))
	}
	if c.Paths.Mods == "" || c.Paths.State == "" {
		errs = append(errs, errors.New("paths.mods and paths.state must be set"))
	}
	if _, err := c.Environment(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// Environment converts the game section into a candidate filter.
func (c *Config) Environment() (constraint.Environment, error) {
	var env constraint.Environment
	var err error
	if c.Game.Version != "" {
		if env.GameVersion, err = version.Parse(c.Game.Version); err != nil {
			return env, fmt.Errorf("game.version: %w", err)
		}
	}
	if c.Game.LoaderVersion != "" {
		if env.LoaderVersion, err = version.Parse(c.Game.LoaderVersion); err != nil {
			return env, fmt.Errorf("game.loader_version: %w", err)
		}
	}
	env.Loader = strings.ToLower(c.Game.Loader)
	for _, ch := range c.Game.Channels {
		switch channel := mod.Channel(strings.ToLower(ch)); channel {
		case mod.ChannelRelease, mod.ChannelBeta, mod.ChannelAlpha:
			env.Channels = append(env.Channels, channel)
		default:
			return env, fmt.Errorf("game.channels: unknown channel %q", ch)
		}
	}
	return env, nil
}

// Save writes c to path as TOML.
func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return atomicfile.WriteFile(path, data, 0o644)
}

func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
