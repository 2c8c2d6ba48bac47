package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/cargopete/yatr/internal/executor"
	"github.com/cargopete/yatr/internal/plan"
	"github.com/cargopete/yatr/internal/watch"
)

// defaultWatchPatterns is used when the target task declares neither
// `watch` nor `sources`, matching the Go-ecosystem defaults the original
// implementation's Rust equivalent (**/*.rs, **/*.toml, Cargo.lock) picks
// for its own ecosystem.
var defaultWatchPatterns = []string{"**/*.go", "go.mod", "go.sum"}

func newWatchCmd(global *globalOpts) *cobra.Command {
	var clear bool
	var debounceMs int

	cmd := &cobra.Command{
		Use:   "watch <task>",
		Short: "Re-run a task whenever its watched files change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bundle, err := loadConfig(global)
			if err != nil {
				return err
			}
			cwd, err := global.resolveCwd()
			if err != nil {
				return err
			}
			target := args[0]
			p, err := plan.Build(bundle.graph, target)
			if err != nil {
				return err
			}

			level := hclog.Warn
			if global.verbose {
				level = hclog.Debug
			}
			watchLog := hclog.New(&hclog.LoggerOptions{Name: "yatr", Level: level, Output: os.Stderr})

			debounce := time.Duration(debounceMs) * time.Millisecond
			if debounceMs <= 0 {
				debounce = time.Duration(bundle.cfg.WatchDebounceMs) * time.Millisecond
			}

			patterns := watchPatterns(bundle, target)
			w, err := watch.New(bundle.cfg.Root, patterns, debounce, watchLog)
			if err != nil {
				return err
			}
			defer w.Close()
			if err := w.Start(); err != nil {
				return err
			}

			// Per spec.md §4.6, watch mode always runs with caching
			// disabled: the point of watching is to observe every
			// re-run's actual output, not a stale cached one.
			exec := executor.New(bundle.cfg, bundle.cache)
			runOnce := func() {
				if clear {
					fmt.Print("\033[H\033[2J")
				}
				bundle.log.Printf("running %s", target)
				results, err := exec.Execute(cmd.Context(), p, executor.Options{CacheEnabled: false, Cwd: cwd})
				for _, r := range results {
					printResult(global, r)
				}
				if err != nil {
					fmt.Println(err)
				}
			}

			runOnce()
			for {
				select {
				case <-w.Events():
					runOnce()
				case err := <-w.Errors():
					fmt.Println("watch error:", err)
				case <-cmd.Context().Done():
					return nil
				}
			}
		},
	}

	cmd.Flags().BoolVar(&clear, "clear", false, "clear the terminal before each re-run")
	cmd.Flags().IntVar(&debounceMs, "debounce", 0, "milliseconds to wait for more changes before re-running (default: settings.watch_debounce_ms, or 300)")

	return cmd
}

// watchPatterns determines the glob patterns watched for task, per
// spec.md's watch_and_run: the task's own `watch` field if set (which
// config.Load already defaults to `sources` when `watch` is empty), else
// a default pattern set. Dependency tasks are deliberately not consulted:
// the original implementation's equivalent dependency-aggregating helper
// (collect_watch_patterns in original_source/src/watch.rs) is dead code
// never called from its own watch_and_run.
func watchPatterns(bundle *configBundle, target string) []string {
	task := bundle.cfg.Tasks[target]
	if len(task.Watch) > 0 {
		return task.Watch
	}
	return defaultWatchPatterns
}
