package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cargopete/yatr/internal/config"
	"github.com/cargopete/yatr/internal/executor"
	"github.com/cargopete/yatr/internal/logger"
	"github.com/cargopete/yatr/internal/plan"
	"github.com/cargopete/yatr/internal/util"
)

type runOpts struct {
	concurrency int
	noCache     bool
	dryRun      bool
	force       bool
	shell       bool
}

func newRunCmd(global *globalOpts) *cobra.Command {
	opts := &runOpts{}
	concurrencyValue := &util.ConcurrencyValue{Value: &opts.concurrency}

	cmd := &cobra.Command{
		Use:   "run <tasks...>",
		Short: "Run one or more tasks and everything they depend on",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bundle, err := loadConfig(global)
			if err != nil {
				return err
			}

			cwd, err := global.resolveCwd()
			if err != nil {
				return err
			}

			concurrency := opts.concurrency
			if concurrency == 0 {
				concurrency = bundle.cfg.Parallelism
			}
			execOpts := executor.Options{
				Concurrency:  concurrency,
				CacheEnabled: bundle.cfg.CacheEnabled && !opts.noCache,
				Force:        opts.force,
				Shell:        opts.shell,
				Cwd:          cwd,
			}
			// Tasks within a stage start concurrently, so the start-line
			// logger needs its writes serialized.
			if global.verbose {
				execOpts.Logger = logger.NewConcurrent(bundle.log)
			}

			exec := executor.New(bundle.cfg, bundle.cache)

			var exitErr error
			for _, target := range args {
				p, err := plan.Build(bundle.graph, target)
				if err != nil {
					return err
				}

				if opts.dryRun {
					printPlan(bundle.cfg, p)
					continue
				}

				results, err := exec.Execute(cmd.Context(), p, execOpts)
				for _, r := range results {
					printResult(global, r)
				}
				if err != nil {
					exitErr = err
					break
				}
			}
			return exitErr
		},
	}

	flags := cmd.Flags()
	flags.Var(concurrencyValue, "parallel", "limit how many tasks within a stage run at once (number >= 1 or percentage); when unset, settings.parallelism applies, where 0 means auto")
	flags.BoolVar(&opts.noCache, "no-cache", false, "bypass the cache for this run")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "print the execution plan without running anything")
	flags.BoolVar(&opts.force, "force", false, "bypass cache hits, re-running every task")
	flags.BoolVar(&opts.shell, "shell", false, "force every command through the platform shell, overriding per-task shell=false")

	return cmd
}

// printPlan renders the plan stage by stage, per spec.md's dry-run
// requirement: for each task, whether it runs in parallel and the
// commands or script body it would run, not just its name.
func printPlan(cfg *config.Config, p *plan.ExecutionPlan) {
	for i, stage := range p.Stages {
		fmt.Printf("stage %d:\n", i+1)
		for _, name := range stage.Tasks {
			task := cfg.Tasks[name]
			if task == nil {
				fmt.Printf("  %s\n", name)
				continue
			}
			mode := "sequential"
			if task.Parallel {
				mode = "parallel"
			}
			fmt.Printf("  %s (%s):\n", name, mode)
			if task.Script != "" {
				fmt.Printf("    script:\n")
				for _, line := range strings.Split(strings.TrimRight(task.Script, "\n"), "\n") {
					fmt.Printf("      %s\n", line)
				}
				continue
			}
			for _, c := range task.Run {
				fmt.Printf("    $ %s\n", c)
			}
		}
	}
}

func printResult(global *globalOpts, r executor.Result) {
	if global.quiet && r.Err == nil {
		return
	}
	elapsed := r.Duration.Round(time.Millisecond)
	prefix := r.Task + ": "
	taskLog := logger.NewPrefixed(prefix, prefix, prefix, prefix)
	switch {
	case r.Err != nil:
		taskLog.Printf("%s", taskLog.Errorf("(%s): %v", elapsed, r.Err).Error())
	case r.Cached:
		taskLog.Printf("%s", taskLog.Sucessf("cached, %s", elapsed))
	default:
		taskLog.Printf("%s", taskLog.Sucessf("%s", elapsed))
	}
	if r.Output != "" && (global.verbose || r.Err != nil) {
		w := logger.NewPrefixedWriter(prefix, os.Stdout)
		_, _ = w.Write([]byte(r.Output))
	}
}
