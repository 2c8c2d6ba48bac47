package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cargopete/yatr/internal/config"
	"github.com/cargopete/yatr/internal/plan"
)

type listedTask struct {
	Name       string   `json:"name"`
	DependsOn  []string `json:"depends_on"`
	Dependents []string `json:"dependents"`
}

func newListCmd(global *globalOpts) *cobra.Command {
	var format string
	var target string
	var showDeps bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List defined tasks, or the execution plan for one target",
		RunE: func(cmd *cobra.Command, args []string) error {
			bundle, err := loadConfig(global)
			if err != nil {
				return err
			}

			if target != "" {
				p, err := plan.Build(bundle.graph, target)
				if err != nil {
					return err
				}
				return printStages(format, bundle.cfg, p)
			}

			names := bundle.graph.AllTasksOrdered()
			tasks := make([]listedTask, 0, len(names))
			for _, name := range names {
				deps, err := bundle.graph.Dependencies(name)
				if err != nil {
					return err
				}
				dependents, err := bundle.graph.Dependents(name)
				if err != nil {
					return err
				}
				tasks = append(tasks, listedTask{Name: name, DependsOn: deps, Dependents: dependents})
			}
			return printTasks(format, tasks, showDeps)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&format, "format", "table", "output format: table, json, or plain")
	flags.StringVar(&target, "target", "", "print the execution plan for this task instead of listing all tasks")
	flags.BoolVar(&showDeps, "deps", false, "include each task's dependencies in table/plain output")

	return cmd
}

func printTasks(format string, tasks []listedTask, showDeps bool) error {
	if format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(tasks)
	}
	for _, t := range tasks {
		if format == "plain" {
			fmt.Println(t.Name)
		} else {
			fmt.Printf("%s\n", t.Name)
		}
		if showDeps && len(t.DependsOn) > 0 {
			fmt.Printf("  depends_on: %v\n", t.DependsOn)
		}
	}
	return nil
}

func printStages(format string, cfg *config.Config, p *plan.ExecutionPlan) error {
	if format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(p.Stages)
	}
	printPlan(cfg, p)
	return nil
}
