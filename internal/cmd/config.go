package cmd

import (
	"github.com/pkg/errors"

	"github.com/cargopete/yatr/internal/cache"
	"github.com/cargopete/yatr/internal/config"
	"github.com/cargopete/yatr/internal/graph"
	"github.com/cargopete/yatr/internal/logger"
)

// configBundle is the resolved project state every task-aware subcommand
// needs: the loaded config, its dependency graph, a cache instance, and a
// logger configured per the global --verbose/--quiet flags.
type configBundle struct {
	cfg   *config.Config
	graph *graph.TaskGraph
	cache *cache.Cache
	log   *logger.Logger
}

// resolveConfigBundle discovers and loads yatr.toml relative to opts.cwd
// (or uses opts.configPath directly, if set), then builds its dependency
// graph and cache.
func resolveConfigBundle(opts *globalOpts) (*configBundle, error) {
	dir, err := opts.resolveCwd()
	if err != nil {
		return nil, errors.Wrap(err, "resolving working directory")
	}

	path := opts.configPath
	if path == "" {
		path, err = config.Discover(dir)
		if err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	g, err := graph.New(cfg)
	if err != nil {
		return nil, err
	}

	cacheDir, err := cfg.ResolveCacheDir()
	if err != nil {
		return nil, errors.Wrap(err, "resolving cache directory")
	}
	c, err := cache.New(cacheDir)
	if err != nil {
		return nil, err
	}

	return &configBundle{cfg: cfg, graph: g, cache: c, log: logger.New()}, nil
}

// taskInputs mirrors the executor's own cache-key input construction, so
// `cache clear <task>` invalidates the exact same key `run` would look up.
// cwd is the resolved --cwd (see globalOpts.resolveCwd), matching
// executor.Options.Cwd so the two never derive different keys for the same
// task.
func taskInputs(bundle *configBundle, task *config.TaskConfig, cwd string) cache.TaskInputs {
	env := make(map[string]string, len(bundle.cfg.Env)+len(task.Env))
	for k, v := range bundle.cfg.Env {
		env[k] = v
	}
	for k, v := range task.Env {
		env[k] = v
	}
	return cache.TaskInputs{
		Name:       task.Name,
		Run:        task.Run,
		Script:     task.Script,
		Env:        env,
		Sources:    task.Sources,
		SourceRoot: cwd,
	}
}
