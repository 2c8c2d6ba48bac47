// Package executor runs an ExecutionPlan: it walks each stage in order,
// dispatches that stage's tasks with bounded concurrency, and enforces the
// allow-failure propagation policy between stages. Grounded on the
// teacher's core.Engine.Execute, which gates a dag.Walk with a
// semaphore-bounded counter and short-circuits on the first error via an
// atomic flag; this executor uses the same semaphore/short-circuit idiom
// but iterates explicit plan stages with a hard barrier between them
// instead of a continuously-pipelined graph walk.
package executor

import (
	"context"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/cargopete/yatr/internal/cache"
	"github.com/cargopete/yatr/internal/config"
	"github.com/cargopete/yatr/internal/plan"
	"github.com/cargopete/yatr/internal/script"
	"github.com/cargopete/yatr/internal/util"
)

// defaultParallelism is used when the host's available parallelism can't
// be determined.
const defaultParallelism = 4

// Result captures the outcome of running a single task.
type Result struct {
	Task     string
	Output   string
	Err      error
	Duration time.Duration
	Cached   bool
}

// StartLogger receives a line each time a task begins dispatch. Since
// several tasks in a stage start concurrently, an implementation must be
// safe for concurrent use (logger.ConcurrentLogger serializes the
// underlying writes with a mutex).
type StartLogger interface {
	Printf(format string, args ...interface{})
}

// Options configures a single Execute call.
type Options struct {
	// Concurrency bounds how many tasks within a stage may run at once.
	// Zero means "auto": the host's available parallelism, or
	// defaultParallelism if that can't be determined.
	Concurrency int
	// CacheEnabled turns the cache lookup/store around each task on or off.
	CacheEnabled bool
	// Force bypasses a cache hit (a task still runs, and its fresh output
	// still repopulates the cache for next time).
	Force bool
	// Shell forces every command to run through the platform shell, even
	// for tasks that set shell = false.
	Shell bool
	// Cwd is the executor's own working directory, per spec.md's
	// ExecutorConfig.cwd: the root `sources` globs are hashed against, and
	// the directory a task runs in when it doesn't set its own `cwd`.
	// Empty means the process's actual working directory.
	Cwd string
	// Logger, if set, is notified as each task starts. Left nil, no
	// per-task start line is printed.
	Logger StartLogger
}

// resolveConcurrency turns a requested concurrency (0 meaning "auto") into
// the semaphore capacity actually used for a stage.
func resolveConcurrency(n int) int {
	if n > 0 {
		return n
	}
	if cpus := runtime.NumCPU(); cpus > 0 {
		return cpus
	}
	return defaultParallelism
}

// Executor runs tasks defined in a Config against an ExecutionPlan.
type Executor struct {
	cfg   *config.Config
	cache *cache.Cache
}

// New builds an Executor for cfg, backed by the given cache.
func New(cfg *config.Config, c *cache.Cache) *Executor {
	return &Executor{cfg: cfg, cache: c}
}

// Execute runs every stage of p in order. Within a stage, tasks run
// concurrently up to opts.Concurrency. A stage only begins once every task
// in the previous stage has finished (succeeded, failed-but-allowed, or
// failed); this is the stage barrier. The first non-allow-failure error
// encountered stops the run: already-started sibling tasks in the same
// stage are allowed to finish, but no further stage is dispatched.
func (e *Executor) Execute(ctx context.Context, p *plan.ExecutionPlan, opts Options) ([]Result, error) {
	sema := util.NewSemaphore(resolveConcurrency(opts.Concurrency))
	var (
		allResults []Result
		mu         sync.Mutex
		errored    int32
		merr       *multierror.Error
	)

	for _, stage := range p.Stages {
		if atomic.LoadInt32(&errored) != 0 {
			break
		}

		var wg sync.WaitGroup
		for _, taskName := range stage.Tasks {
			taskName := taskName
			wg.Add(1)
			go func() {
				defer wg.Done()
				sema.Acquire()
				defer sema.Release()

				if atomic.LoadInt32(&errored) != 0 {
					return
				}

				if opts.Logger != nil {
					opts.Logger.Printf("starting %s", taskName)
				}

				result := e.runTask(ctx, taskName, opts)

				mu.Lock()
				allResults = append(allResults, result)
				mu.Unlock()

				if result.Err != nil {
					allowFailure := e.cfg.Tasks[taskName].AllowFailure
					// Only the first non-allow-failure error is returned;
					// later failures in the same stage stay in their Results.
					if !allowFailure && atomic.CompareAndSwapInt32(&errored, 0, 1) {
						mu.Lock()
						merr = multierror.Append(merr, result.Err)
						mu.Unlock()
					}
				}
			}()
		}
		wg.Wait()
	}

	if merr != nil {
		return allResults, merr.ErrorOrNil()
	}
	return allResults, nil
}

// runTask executes a single task: a cache hit short-circuits dispatch
// entirely, otherwise the task's commands or script run and, on success,
// the cache is populated for next time.
func (e *Executor) runTask(ctx context.Context, name string, opts Options) Result {
	task := e.cfg.Tasks[name]
	start := time.Now()

	inputs := cache.TaskInputs{
		Name:       name,
		Run:        task.Run,
		Script:     task.Script,
		Env:        mergedEnv(e.cfg.Env, task.Env),
		Sources:    task.Sources,
		SourceRoot: sourceRoot(opts.Cwd),
	}

	// Per spec.md §4.4: the cache is consulted whenever caching is enabled
	// and the task doesn't opt out, regardless of whether it declares any
	// `sources` globs (an empty source set still participates in the key
	// derivation, just without a source-hash component).
	cacheActive := opts.CacheEnabled && !task.NoCache && e.cache != nil
	if cacheActive && !opts.Force {
		output, hit, err := e.cache.Get(inputs)
		if err != nil {
			return Result{Task: name, Err: err, Duration: time.Since(start)}
		}
		if hit {
			return Result{Task: name, Output: output, Cached: true, Duration: time.Since(start)}
		}
	}

	output, err := e.dispatch(ctx, task, opts.Shell, opts.Cwd)
	duration := time.Since(start)

	result := Result{Task: name, Output: output, Err: err, Duration: duration}

	if err == nil && cacheActive {
		_ = e.cache.Put(inputs, output, duration)
	}
	return result
}

// dispatch runs a task's script body or its run commands, applying a
// per-task timeout via context cancellation when TimeoutSeconds is set.
// Per the corrected behavior recorded in the design notes, the timeout is
// enforced here rather than accepted but ignored.
func (e *Executor) dispatch(ctx context.Context, task *config.TaskConfig, forceShell bool, execCwd string) (string, error) {
	runCtx := ctx
	if task.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(task.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	env := mergedEnv(e.cfg.Env, task.Env)
	cwd := taskCwd(task, execCwd)

	if task.Script != "" {
		return script.Execute(runCtx, task.Script, env, cwd)
	}

	shell := true
	if task.Shell != nil {
		shell = *task.Shell
	}
	if forceShell {
		shell = true
	}

	if task.Parallel {
		return runParallel(runCtx, task.Run, env, cwd, shell, e.cfg.Shell)
	}
	return runSequential(runCtx, task.Run, env, cwd, shell, e.cfg.Shell)
}

// taskCwd resolves the directory a task's commands or script run in, per
// spec.md:100: the task's own `cwd` if set, else the executor's `cwd`.
func taskCwd(task *config.TaskConfig, execCwd string) string {
	if task.Cwd != "" {
		return task.Cwd
	}
	return execCwd
}

func mergedEnv(base, override map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}

// sourceRoot is the root `sources` globs are resolved against: the
// executor's own `cwd` (spec.md's ExecutorConfig.cwd), not the task's own
// `cwd`. An empty execCwd falls back to the process's actual working
// directory.
func sourceRoot(execCwd string) string {
	if execCwd != "" {
		return execCwd
	}
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	return dir
}
