// Package cmd holds the root cobra command for yatr.
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/pprof"
	"runtime/trace"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/cargopete/yatr/internal/ui"
)

// globalOpts holds the persistent flags shared by every subcommand.
type globalOpts struct {
	configPath string
	verbose    bool
	quiet      bool
	cwd        string
	noColor    bool

	heapFile       string
	cpuProfileFile string
	traceFile      string
}

func (g *globalOpts) addFlags(flags *pflag.FlagSet) {
	flags.StringVar(&g.configPath, "config", "", "path to yatr.toml (default: discovered by walking up from --cwd)")
	flags.BoolVarP(&g.verbose, "verbose", "v", false, "print debug-level logging")
	flags.BoolVarP(&g.quiet, "quiet", "q", false, "suppress non-error output")
	flags.StringVar(&g.cwd, "cwd", ".", "directory to run in")
	flags.BoolVar(&g.noColor, "no-color", false, "disable colored output")

	// These are relative to the actual process cwd, not --cwd, since a
	// user inspects them after the process exits and may not know the
	// resolved config root at that point.
	flags.StringVar(&g.heapFile, "heap", "", "write a pprof heap profile to this file")
	flags.StringVar(&g.cpuProfileFile, "cpuprofile", "", "write a pprof CPU profile to this file")
	flags.StringVar(&g.traceFile, "trace", "", "write a runtime trace to this file")
}

// resolveCwd returns the absolute directory commands should be discovered
// and run from.
func (g *globalOpts) resolveCwd() (string, error) {
	if g.cwd == "" || g.cwd == "." {
		return os.Getwd()
	}
	return filepath.Abs(g.cwd)
}

// RunWithArgs runs yatr with the specified arguments, not including the
// binary name itself. It returns the process exit code.
func RunWithArgs(args []string, version string) int {
	root := getCmd(version)
	root.SetArgs(resolveArgs(root, args))

	doneCh := make(chan struct{})
	var execErr error
	go func() {
		execErr = root.Execute()
		close(doneCh)
	}()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(signalCh)

	select {
	case <-doneCh:
		if execErr != nil {
			fmt.Fprintln(os.Stderr, execErr)
			return 1
		}
		return 0
	case <-signalCh:
		fmt.Fprintln(os.Stderr, "interrupted")
		return 130
	}
}

// resolveArgs implements the bare-argument shorthand: `yatr build` runs the
// `build` task exactly like `yatr run build`, and no arguments at all lists
// every defined task.
func resolveArgs(root *cobra.Command, args []string) []string {
	if len(args) == 0 {
		return []string{"list"}
	}
	for _, arg := range args {
		if arg == "--help" || arg == "-h" || arg == "--version" || arg == "completion" {
			return args
		}
	}
	cmd, _, err := root.Traverse(args)
	if err != nil {
		return args
	}
	if cmd.Name() == root.Name() {
		return append([]string{"run"}, args...)
	}
	return args
}

// getCmd returns the root cobra command with every subcommand attached.
func getCmd(version string) *cobra.Command {
	opts := &globalOpts{}

	root := &cobra.Command{
		Use:              "yatr",
		Short:            "A declarative task runner",
		Version:          version,
		TraverseChildren: true,
		SilenceUsage:     true,
		SilenceErrors:    true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.noColor {
				ui.ApplyColorMode(ui.ColorModeSuppressed)
			} else {
				ui.ApplyColorMode(ui.GetColorModeFromEnv())
			}

			if opts.traceFile != "" {
				cleanup, err := createTraceFile(opts.traceFile)
				if err != nil {
					return err
				}
				registerCleanup(cmd, cleanup)
			}
			if opts.heapFile != "" {
				cleanup, err := createHeapFile(opts.heapFile)
				if err != nil {
					return err
				}
				registerCleanup(cmd, cleanup)
			}
			if opts.cpuProfileFile != "" {
				cleanup, err := createCPUProfileFile(opts.cpuProfileFile)
				if err != nil {
					return err
				}
				registerCleanup(cmd, cleanup)
			}
			return nil
		},
	}
	root.SetVersionTemplate("{{.Version}}\n")
	opts.addFlags(root.PersistentFlags())

	root.AddCommand(newRunCmd(opts))
	root.AddCommand(newListCmd(opts))
	root.AddCommand(newWatchCmd(opts))
	root.AddCommand(newGraphCmd(opts))
	root.AddCommand(newCacheCmd(opts))
	root.AddCommand(newInitCmd(opts))
	root.AddCommand(newCheckCmd(opts))

	return root
}

type profileCleanup func() error

func registerCleanup(cmd *cobra.Command, cleanup profileCleanup) {
	prev := cmd.Root().PersistentPostRunE
	cmd.Root().PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		err := cleanup()
		if prev != nil {
			if prevErr := prev(cmd, args); prevErr != nil && err == nil {
				err = prevErr
			}
		}
		return err
	}
}

// To view a runtime trace, use "go tool trace [file]".
func createTraceFile(traceFile string) (profileCleanup, error) {
	f, err := os.Create(traceFile)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create trace file: %v", traceFile)
	}
	if err := trace.Start(f); err != nil {
		return nil, errors.Wrap(err, "failed to start tracing")
	}
	return func() error {
		trace.Stop()
		return f.Close()
	}, nil
}

// To view a heap profile, use "go tool pprof [file]".
func createHeapFile(heapFile string) (profileCleanup, error) {
	f, err := os.Create(heapFile)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create heap file: %v", heapFile)
	}
	return func() error {
		if err := pprof.WriteHeapProfile(f); err != nil {
			_ = f.Close()
			return errors.Wrapf(err, "failed to write heap file: %v", heapFile)
		}
		return f.Close()
	}, nil
}

// To view a CPU profile, drop the file into https://speedscope.app.
func createCPUProfileFile(cpuProfileFile string) (profileCleanup, error) {
	f, err := os.Create(cpuProfileFile)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create cpuprofile file: %v", cpuProfileFile)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		return nil, errors.Wrap(err, "failed to start CPU profiling")
	}
	return func() error {
		pprof.StopCPUProfile()
		return f.Close()
	}, nil
}

// loadConfig discovers (unless opts.configPath is set) and loads the
// project config, returning an error that cobra will print and translate
// into a non-zero exit code.
func loadConfig(opts *globalOpts) (*configBundle, error) {
	return resolveConfigBundle(opts)
}
