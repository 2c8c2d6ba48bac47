package executor

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"gotest.tools/v3/assert"

	"github.com/cargopete/yatr/internal/cache"
	"github.com/cargopete/yatr/internal/config"
	"github.com/cargopete/yatr/internal/graph"
	"github.com/cargopete/yatr/internal/plan"
)

func buildExecutor(t *testing.T, tasks map[string]*config.TaskConfig) (*Executor, *plan.ExecutionPlan, string) {
	t.Helper()
	cfg := &config.Config{Tasks: tasks, Env: map[string]string{}}
	for name, task := range tasks {
		task.Name = name
		if task.Cwd == "" {
			task.Cwd = t.TempDir()
		}
	}
	g, err := graph.New(cfg)
	assert.NilError(t, err)

	// The lexically last task name is the target, so a multi-task test
	// names its final task last.
	var target string
	for name := range tasks {
		if name > target {
			target = name
		}
	}
	p, err := plan.Build(g, target)
	assert.NilError(t, err)

	return New(cfg, cache.Disabled()), p, target
}

func TestExecute_RunsSequentialCommands(t *testing.T) {
	exec, p, target := buildExecutor(t, map[string]*config.TaskConfig{
		"build": {Run: []string{"echo one", "echo two"}},
	})
	_ = target

	results, err := exec.Execute(context.Background(), p, Options{})
	assert.NilError(t, err)
	assert.Equal(t, len(results), 1)
	assert.Equal(t, results[0].Output, "one\ntwo\n")
}

func TestExecute_StopsOnFailure(t *testing.T) {
	exec, p, _ := buildExecutor(t, map[string]*config.TaskConfig{
		"build": {Run: []string{"exit 1"}},
	})

	_, err := exec.Execute(context.Background(), p, Options{})
	assert.Assert(t, err != nil)
}

func TestExecute_AllowFailureDoesNotStopRun(t *testing.T) {
	exec, p, _ := buildExecutor(t, map[string]*config.TaskConfig{
		"flaky": {Run: []string{"exit 1"}, AllowFailure: true},
	})

	results, err := exec.Execute(context.Background(), p, Options{})
	assert.NilError(t, err)
	assert.Equal(t, len(results), 1)
	assert.Assert(t, results[0].Err != nil)
}

func TestExecute_CachesEvenWithoutDeclaredSources(t *testing.T) {
	// Per spec.md S4: a task with sources=[] still participates in the
	// cache, since caching is gated on no_cache/force, not on Sources.
	dir := t.TempDir()
	c, err := cache.New(dir)
	assert.NilError(t, err)

	cfg := &config.Config{
		Env:   map[string]string{},
		Tasks: map[string]*config.TaskConfig{"build": {Name: "build", Run: []string{"printf hello"}, Cwd: t.TempDir()}},
	}
	g, err := graph.New(cfg)
	assert.NilError(t, err)
	p, err := plan.Build(g, "build")
	assert.NilError(t, err)

	exec := New(cfg, c)

	results, err := exec.Execute(context.Background(), p, Options{CacheEnabled: true})
	assert.NilError(t, err)
	assert.Equal(t, results[0].Cached, false)
	assert.Equal(t, results[0].Output, "hello")

	results, err = exec.Execute(context.Background(), p, Options{CacheEnabled: true})
	assert.NilError(t, err)
	assert.Equal(t, results[0].Cached, true)
	assert.Equal(t, results[0].Output, "hello")

	results, err = exec.Execute(context.Background(), p, Options{CacheEnabled: true, Force: true})
	assert.NilError(t, err)
	assert.Equal(t, results[0].Cached, false)
}

func TestExecute_NoCacheTaskFieldBypassesCache(t *testing.T) {
	c, err := cache.New(t.TempDir())
	assert.NilError(t, err)

	cfg := &config.Config{
		Env:   map[string]string{},
		Tasks: map[string]*config.TaskConfig{"build": {Name: "build", Run: []string{"printf hello"}, Cwd: t.TempDir(), NoCache: true}},
	}
	g, err := graph.New(cfg)
	assert.NilError(t, err)
	p, err := plan.Build(g, "build")
	assert.NilError(t, err)

	exec := New(cfg, c)

	for i := 0; i < 2; i++ {
		results, err := exec.Execute(context.Background(), p, Options{CacheEnabled: true})
		assert.NilError(t, err)
		assert.Equal(t, results[0].Cached, false)
	}
}

func TestExecute_DirectModeSkipsShell(t *testing.T) {
	exec, p, _ := buildExecutor(t, map[string]*config.TaskConfig{
		"build": {Run: []string{"echo one two"}, Shell: boolPtr(false)},
	})

	results, err := exec.Execute(context.Background(), p, Options{})
	assert.NilError(t, err)
	assert.Equal(t, results[0].Output, "one two\n")
}

func TestExecute_FallsBackToOptionsCwdWhenTaskCwdUnset(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Env:   map[string]string{},
		Tasks: map[string]*config.TaskConfig{"build": {Name: "build", Run: []string{"pwd"}}},
	}
	g, err := graph.New(cfg)
	assert.NilError(t, err)
	p, err := plan.Build(g, "build")
	assert.NilError(t, err)

	exec := New(cfg, cache.Disabled())
	results, err := exec.Execute(context.Background(), p, Options{Cwd: dir})
	assert.NilError(t, err)
	assert.Equal(t, results[0].Output, dir+"\n")
}

func boolPtr(b bool) *bool { return &b }

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (r *recordingLogger) Printf(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, fmt.Sprintf(format, args...))
}

func TestExecute_NotifiesLoggerPerTaskStart(t *testing.T) {
	exec, p, _ := buildExecutor(t, map[string]*config.TaskConfig{
		"a": {Run: []string{"echo a"}},
		"b": {Run: []string{"echo b"}, DependsOn: []string{"a"}},
	})

	rec := &recordingLogger{}
	_, err := exec.Execute(context.Background(), p, Options{Logger: rec})
	assert.NilError(t, err)
	assert.Equal(t, len(rec.lines), 2)
}

func TestExecute_TimeoutKillsLongRunningTask(t *testing.T) {
	exec, p, _ := buildExecutor(t, map[string]*config.TaskConfig{
		"slow": {Run: []string{"sleep 5"}, TimeoutSeconds: 1},
	})

	start := time.Now()
	_, err := exec.Execute(context.Background(), p, Options{})
	assert.Assert(t, err != nil)
	assert.Assert(t, time.Since(start) < 4*time.Second)
}
