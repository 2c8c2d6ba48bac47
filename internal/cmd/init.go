package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const initTemplate = `# yatr.toml
#
# [tasks.<name>]
#   depends = ["other-task"]
#   commands = ["echo hello"]
#   sources = ["src/**/*.go"]

[settings]
cache = true
parallelism = 0
watch_debounce_ms = 300

[tasks.build]
commands = ["echo \"building...\""]
sources = ["**/*.go"]

[tasks.test]
depends = ["build"]
commands = ["echo \"testing...\""]
`

func newInitCmd(global *globalOpts) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter yatr.toml in the current directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := global.resolveCwd()
			if err != nil {
				return err
			}
			path := filepath.Join(dir, "yatr.toml")

			if !force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("%s already exists; pass --force to overwrite", path)
				}
			}

			if err := os.WriteFile(path, []byte(initTemplate), 0o644); err != nil {
				return errors.Wrapf(err, "writing %s", path)
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing yatr.toml")
	return cmd
}
