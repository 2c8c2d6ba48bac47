package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cargopete/yatr/internal/cache"
)

func newCacheCmd(global *globalOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the task output cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Print cache entry count and total size",
		RunE: func(cmd *cobra.Command, args []string) error {
			bundle, err := loadConfig(global)
			if err != nil {
				return err
			}
			stats, err := bundle.cache.StatsOf()
			if err != nil {
				return err
			}
			fmt.Println(stats.Format())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear [task]",
		Short: "Remove every cached entry, or just one task's",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bundle, err := loadConfig(global)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				return bundle.cache.Clear()
			}
			task, err := bundle.graph.Task(args[0])
			if err != nil {
				return err
			}
			cwd, err := global.resolveCwd()
			if err != nil {
				return err
			}
			return bundle.cache.Invalidate(taskInputs(bundle, task, cwd))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the resolved cache directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			bundle, err := loadConfig(global)
			if err != nil {
				return err
			}
			fmt.Println(bundle.cache.Dir())
			return nil
		},
	})

	return cmd
}
