// Package cache implements the content-addressable cache for task output.
//
// A cache key is derived from a task's name, its commands or script body,
// its sorted environment variables, and the hashed contents of any files
// matched by its `sources` globs. Entries are stored as a pair of files on
// disk: `<key>.cache` (the captured stdout) and `<key>.meta.json`
// (structured metadata) stored as a blob next to a JSON metadata sidecar.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Entry is the metadata persisted alongside a cached task's output.
type Entry struct {
	Key        string    `json:"key"`
	Task       string    `json:"task"`
	CreatedAt  time.Time `json:"created_at"`
	DurationMs int64     `json:"duration_ms"`
	OutputSize int       `json:"output_size"`
}

// Error reports malformed cache metadata found by Get, per spec.md's
// Cache(message) taxonomy entry. Other cache failures (an invalid `sources`
// glob, a read or write error) are returned as ordinary wrapped errors, not
// as *Error.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cache: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("cache: %s", e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Stats summarizes the contents of a cache directory.
type Stats struct {
	Entries   int    `json:"entries"`
	TotalSize int64  `json:"total_size"`
	CacheDir  string `json:"cache_dir"`
}

// Cache reads and writes task output keyed by TaskInputs.
type Cache struct {
	dir     string
	enabled bool
}

// TaskInputs is the subset of a task's configuration that participates in
// its cache key.
type TaskInputs struct {
	Name    string
	Run     []string
	Script  string
	Env     map[string]string
	Sources []string
	// SourceRoot is the directory `sources` globs are resolved against.
	// The executor sets it to its own working directory (the resolved
	// --cwd, else the process's current working directory), not the
	// task's own cwd.
	SourceRoot string
}

// New creates a Cache rooted at dir, creating it if necessary.
func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating cache dir %s", dir)
	}
	return &Cache{dir: dir, enabled: true}, nil
}

// Disabled returns a no-op cache; Get always misses and Put is a no-op.
func Disabled() *Cache {
	return &Cache{enabled: false}
}

// Enabled reports whether this cache actually persists anything.
func (c *Cache) Enabled() bool {
	return c.enabled
}

// Dir returns the cache's backing directory.
func (c *Cache) Dir() string {
	return c.dir
}

func (c *Cache) blobPath(key string) string { return filepath.Join(c.dir, key+".cache") }
func (c *Cache) metaPath(key string) string { return filepath.Join(c.dir, key+".meta.json") }

// Key computes the content-addressable cache key for a task.
func (c *Cache) Key(inputs TaskInputs) (string, error) {
	return computeKey(inputs)
}

// Get returns the cached output for a task's current inputs, if present and
// valid. A missing entry, a metadata/task mismatch, or a disabled cache all
// report a clean miss rather than an error; malformed metadata is a hard
// failure (*Error), per spec.md §4.3.
func (c *Cache) Get(inputs TaskInputs) (output string, hit bool, err error) {
	if !c.enabled {
		return "", false, nil
	}
	key, err := computeKey(inputs)
	if err != nil {
		return "", false, errors.Wrap(err, "computing cache key")
	}

	metaBytes, err := os.ReadFile(c.metaPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, errors.Wrap(err, "reading cache metadata")
	}
	var entry Entry
	if err := json.Unmarshal(metaBytes, &entry); err != nil {
		return "", false, &Error{Message: "invalid metadata", Err: err}
	}
	if entry.Task != inputs.Name {
		return "", false, nil
	}

	blob, err := os.ReadFile(c.blobPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, errors.Wrap(err, "reading cached output")
	}
	return string(blob), true, nil
}

// Put stores a task's output under its current cache key. Writes are
// best-effort atomic via a temp-file-then-rename within the cache
// directory, so a crash mid-write can't leave a half-written entry visible
// under its final name.
func (c *Cache) Put(inputs TaskInputs, output string, duration time.Duration) error {
	if !c.enabled {
		return nil
	}
	key, err := computeKey(inputs)
	if err != nil {
		return errors.Wrap(err, "computing cache key")
	}

	entry := Entry{
		Key:        key,
		Task:       inputs.Name,
		CreatedAt:  time.Now().UTC(),
		DurationMs: duration.Milliseconds(),
		OutputSize: len(output),
	}
	metaBytes, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding cache metadata")
	}

	// The blob and its metadata sidecar don't depend on each other, so
	// they are written concurrently.
	var g errgroup.Group
	g.Go(func() error {
		return errors.Wrap(atomicWrite(c.blobPath(key), []byte(output)), "writing cache blob")
	})
	g.Go(func() error {
		return errors.Wrap(atomicWrite(c.metaPath(key), metaBytes), "writing cache metadata")
	})
	return g.Wait()
}

// Invalidate removes a task's cache entry, if any.
func (c *Cache) Invalidate(inputs TaskInputs) error {
	if !c.enabled {
		return nil
	}
	key, err := computeKey(inputs)
	if err != nil {
		return errors.Wrap(err, "computing cache key")
	}
	return removeIfExists(c.blobPath(key), c.metaPath(key))
}

// Clear removes every entry in the cache directory.
func (c *Cache) Clear() error {
	if !c.enabled {
		return nil
	}
	if err := os.RemoveAll(c.dir); err != nil {
		return errors.Wrap(err, "clearing cache dir")
	}
	return os.MkdirAll(c.dir, 0o755)
}

// StatsOf reports the number of cached entries and their total on-disk size.
func (c *Cache) StatsOf() (Stats, error) {
	stats := Stats{CacheDir: c.dir}
	if !c.enabled {
		return stats, nil
	}
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return stats, nil
		}
		return stats, errors.Wrap(err, "reading cache dir")
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) != ".cache" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		stats.Entries++
		stats.TotalSize += info.Size()
	}
	return stats, nil
}

// Format renders Stats the way spec.md §4.3 specifies:
// "N entries, <human-bytes> total (<dir>)".
func (s Stats) Format() string {
	return fmt.Sprintf("%d entries, %s total (%s)", s.Entries, formatBytes(s.TotalSize), s.CacheDir)
}

// formatBytes renders n as spec.md's three-tier human size: plain bytes
// below 1024, one-decimal KB below 1,048,576, one-decimal MB above that.
func formatBytes(n int64) string {
	const (
		kb = 1024
		mb = 1024 * 1024
	)
	switch {
	case n < kb:
		return fmt.Sprintf("%dB", n)
	case n < mb:
		return fmt.Sprintf("%.1fKB", float64(n)/kb)
	default:
		return fmt.Sprintf("%.1fMB", float64(n)/mb)
	}
}

func removeIfExists(paths ...string) error {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
