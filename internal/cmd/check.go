package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newCheckCmd validates the discovered config and its dependency graph
// without running anything: a clean parse and an acyclic graph report ok,
// anything else surfaces the same typed errors `run` would hit.
func newCheckCmd(global *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate yatr.toml and its task graph without running anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			bundle, err := loadConfig(global)
			if err != nil {
				return err
			}
			fmt.Printf("ok: %d task(s) defined, %s\n", len(bundle.graph.AllTasksOrdered()), bundle.cfg.Root)
			return nil
		},
	}
}
