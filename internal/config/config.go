// Package config loads and validates yatr.toml task definitions.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// fileNames are the accepted config file names, checked in order at each
// directory level while walking up from the starting directory.
var fileNames = []string{"yatr.toml", "Yatr.toml"}

// fs is the filesystem Discover/Load read from. It's a package variable
// (not a parameter) so every call site keeps its existing signature; a
// test can swap in an in-memory afero.MemMapFs instead of touching disk.
var fs afero.Fs = afero.NewOsFs()

// TaskConfig is a single task definition as declared in yatr.toml.
type TaskConfig struct {
	Name string `toml:"-"`

	// DependsOn lists the names of tasks that must complete (successfully,
	// or with allow_failure) before this task is dispatched.
	DependsOn []string `toml:"depends"`

	// Run is a list of shell commands executed sequentially, or
	// concurrently when Parallel is true.
	Run []string `toml:"commands"`

	// Script is an embedded script body. Mutually exclusive with Run.
	Script string `toml:"script"`

	// Env holds task-scoped environment variables, merged over the
	// config-level Env map.
	Env map[string]string `toml:"env"`

	// Sources is a set of glob patterns whose content hash participates in
	// the task's cache key.
	Sources []string `toml:"sources"`

	// Cwd overrides the working directory commands run in. Defaults to the
	// directory containing the config file.
	Cwd string `toml:"cwd"`

	// Shell overrides whether commands are launched through the platform
	// shell (nil means "use the executor's default").
	Shell *bool `toml:"shell"`

	// Parallel runs Run's commands concurrently instead of sequentially.
	Parallel bool `toml:"parallel_commands"`

	// NoCache disables cache lookups and writes for this task even when
	// caching is enabled globally.
	NoCache bool `toml:"no_cache"`

	// AllowFailure lets a non-zero exit or script error not stop the run:
	// the task's TaskResult still carries the error, but later stages are
	// still dispatched.
	AllowFailure bool `toml:"allow_failure"`

	// TimeoutSeconds bounds how long the task may run before it is killed
	// and reported as TaskFailed. Zero means no timeout.
	TimeoutSeconds int `toml:"timeout_seconds"`

	// Watch lists additional glob patterns used by `yatr watch`; defaults
	// to Sources when empty.
	Watch []string `toml:"watch"`
}

// rawFile is the literal shape of a yatr.toml document.
type rawFile struct {
	Env      map[string]string      `toml:"env"`
	Settings settings               `toml:"settings"`
	Tasks    map[string]*TaskConfig `toml:"tasks"`
}

type settings struct {
	Shell           string `toml:"shell"`
	Cache           *bool  `toml:"cache"`
	CacheDir        string `toml:"cache_dir"`
	Parallelism     int    `toml:"parallelism"`
	WatchDebounceMs int    `toml:"watch_debounce_ms"`
}

// Config is the fully resolved, validated configuration for a project.
type Config struct {
	// Root is the absolute directory containing the config file that was
	// loaded, used as the default cwd for tasks. `sources` globs are not
	// resolved against it but against the executor's working directory.
	Root string

	// Env holds config-level environment variables inherited by every task.
	Env map[string]string

	Tasks map[string]*TaskConfig

	Shell           string
	CacheEnabled    bool
	CacheDir        string
	Parallelism     int
	WatchDebounceMs int
}

// NotFoundError is returned when no yatr.toml/Yatr.toml is found walking up
// from the starting directory.
type NotFoundError struct {
	StartDir string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no yatr.toml found in %s or any parent directory", e.StartDir)
}

// ParseError wraps a TOML decoding failure with the offending file path.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// InvalidTaskError is returned when a task definition violates an invariant
// (e.g. declares both run and script, or none of run, script and depends).
type InvalidTaskError struct {
	Task   string
	Reason string
}

func (e *InvalidTaskError) Error() string {
	return fmt.Sprintf("invalid task %q: %s", e.Task, e.Reason)
}

// Discover walks upward from startDir looking for yatr.toml or Yatr.toml.
func Discover(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", errors.Wrap(err, "resolving start directory")
	}
	for {
		for _, name := range fileNames {
			candidate := filepath.Join(dir, name)
			if info, err := fs.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", &NotFoundError{StartDir: startDir}
		}
		dir = parent
	}
}

// Load reads and validates the config file at path.
func Load(path string) (*Config, error) {
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{StartDir: filepath.Dir(path)}
		}
		return nil, errors.Wrapf(err, "reading %s", path)
	}

	dec := toml.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()

	var raw rawFile
	if err := dec.Decode(&raw); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	cfg := &Config{
		Root:            filepath.Dir(path),
		Env:             raw.Env,
		Tasks:           raw.Tasks,
		Shell:           raw.Settings.Shell,
		CacheEnabled:    raw.Settings.Cache == nil || *raw.Settings.Cache,
		CacheDir:        raw.Settings.CacheDir,
		Parallelism:     raw.Settings.Parallelism,
		WatchDebounceMs: raw.Settings.WatchDebounceMs,
	}
	if cfg.Env == nil {
		cfg.Env = map[string]string{}
	}
	if cfg.Tasks == nil {
		cfg.Tasks = map[string]*TaskConfig{}
	}
	if cfg.WatchDebounceMs <= 0 {
		cfg.WatchDebounceMs = 300
	}

	for name, task := range cfg.Tasks {
		task.Name = name
		if len(task.Run) > 0 && task.Script != "" {
			return nil, &InvalidTaskError{Task: name, Reason: "declares both run and script"}
		}
		if len(task.Run) == 0 && task.Script == "" && len(task.DependsOn) == 0 {
			return nil, &InvalidTaskError{Task: name, Reason: "declares neither run, script, nor depends"}
		}
		if task.Cwd == "" {
			task.Cwd = cfg.Root
		} else if !filepath.IsAbs(task.Cwd) {
			task.Cwd = filepath.Join(cfg.Root, task.Cwd)
		}
		if len(task.Watch) == 0 {
			task.Watch = task.Sources
		}
	}

	return cfg, nil
}
