// Package watch implements recursive, glob-filtered, debounced filesystem
// watching that re-triggers a task when matching files change.
//
// Recursive registration and the onFileAdded helper follow the same shape
// as turborepo's filewatcher package (fsnotify registration, re-walking new
// subdirectories for backends that don't auto-watch them), layered with
// glob-filtered change detection the way turborepo's globwatcher does.
// Batches are delivered on the Events channel. Debouncing is implemented here as
// a single reset-on-event time.Timer, the minimal idiomatic approach for
// coalescing a burst of fsnotify events into one re-run.
package watch

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
	"github.com/hashicorp/go-hclog"
	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"
)

// ignoredDirs are never descended into or watched.
var ignoredDirs = map[string]bool{".git": true, "node_modules": true}

// Event describes a single debounced batch trigger.
type Event struct {
	// Paths lists every changed file observed during the debounce window,
	// deduplicated.
	Paths []string
}

// Watcher recursively watches root for changes matching any of patterns,
// emitting a debounced Event on Events() no more often than once per
// debounce window.
type Watcher struct {
	root     string
	globs    []glob.Glob
	debounce time.Duration
	logger   hclog.Logger

	fsWatcher *fsnotify.Watcher
	events    chan Event
	errors    chan error

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
}

// New builds a Watcher rooted at root, matching files against patterns
// (relative, slash-separated globs), coalescing bursts of events within
// debounce before firing.
func New(root string, patterns []string, debounce time.Duration, logger hclog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		// gobwas/glob keeps the slashes around "**" literal, so
		// "src/**/*.go" alone never matches "src/main.go". Each pattern is
		// also compiled with every "**/" removed to cover zero directories.
		// With several "**/" in one pattern, either all of them match at
		// least one directory or all of them match none.
		variants := []string{p}
		if stripped := strings.ReplaceAll(p, "**/", ""); stripped != p {
			variants = append(variants, stripped)
		}
		for _, v := range variants {
			g, err := glob.Compile(v, '/')
			if err != nil {
				return nil, errors.Wrapf(err, "invalid watch pattern %q", p)
			}
			globs = append(globs, g)
		}
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "creating fsnotify watcher")
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrap(err, "resolving watch root")
	}

	return &Watcher{
		root:      absRoot,
		globs:     globs,
		debounce:  debounce,
		logger:    logger.Named("watch"),
		fsWatcher: fsWatcher,
		events:    make(chan Event),
		errors:    make(chan error),
		pending:   make(map[string]struct{}),
	}, nil
}

// Events returns the channel debounced change batches are delivered on.
func (w *Watcher) Events() <-chan Event { return w.events }

// Errors returns the channel filesystem-watch errors are delivered on.
func (w *Watcher) Errors() <-chan error { return w.errors }

// Start recursively registers watches under root and begins processing
// fsnotify events in a background goroutine. Callers should range over
// Events()/Errors() after calling Start.
func (w *Watcher) Start() error {
	if err := w.watchRecursively(w.root); err != nil {
		return err
	}
	go w.loop()
	return nil
}

// Close stops watching and releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fsWatcher.Close()
}

func (w *Watcher) watchRecursively(root string) error {
	return godirwalk.Walk(root, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if ignoredDirs[de.Name()] && de.IsDir() {
				return filepath.SkipDir
			}
			if de.IsDir() {
				if err := w.fsWatcher.Add(path); err != nil {
					return errors.Wrapf(err, "watching %s", path)
				}
			}
			return nil
		},
		Unsorted: true,
	})
}

// onFileAdded handles the fact that fsnotify backends differ in whether
// they automatically start watching newly created subdirectories, so any
// Create event for a directory is re-walked.
func (w *Watcher) onFileAdded(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.IsDir() {
		return w.watchRecursively(path)
	}
	return w.fsWatcher.Add(path)
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if ev.Op&fsnotify.Create != 0 {
				if err := w.onFileAdded(ev.Name); err != nil {
					w.logger.Warn("failed handling new path", "path", ev.Name, "error", err)
				}
			}
			w.handle(ev.Name)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.errors <- err
		}
	}
}

func (w *Watcher) handle(path string) {
	if !w.matches(path) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[path] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	if len(paths) == 0 {
		return
	}
	w.events <- Event{Paths: paths}
}

func (w *Watcher) matches(path string) bool {
	if len(w.globs) == 0 {
		return true
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)
	for _, g := range w.globs {
		if g.Match(rel) {
			return true
		}
	}
	return false
}
