package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// newGraphCmd renders the task dependency graph as text, Graphviz dot, or
// JSON. With a target argument the graph is restricted to that task's
// ancestors, matching `list --target`.
func newGraphCmd(global *globalOpts) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "graph [task]",
		Short: "Print the task dependency graph",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bundle, err := loadConfig(global)
			if err != nil {
				return err
			}

			names := bundle.graph.AllTasksOrdered()
			if len(args) == 1 {
				scope, err := bundle.graph.Subgraph(args[0])
				if err != nil {
					return err
				}
				var scoped []string
				for _, name := range names {
					if _, ok := scope[name]; ok {
						scoped = append(scoped, name)
					}
				}
				names = scoped
			}

			switch format {
			case "dot":
				return printGraphDot(names, bundle)
			case "json":
				return printGraphJSON(names, bundle)
			default:
				return printGraphText(names, bundle)
			}
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "output format: text, dot, or json")
	return cmd
}

func printGraphDot(names []string, bundle *configBundle) error {
	fmt.Println("digraph yatr {")
	for _, name := range names {
		deps, err := bundle.graph.Dependencies(name)
		if err != nil {
			return err
		}
		if len(deps) == 0 {
			fmt.Printf("\t%q;\n", name)
			continue
		}
		for _, dep := range deps {
			fmt.Printf("\t%q -> %q;\n", name, dep)
		}
	}
	fmt.Println("}")
	return nil
}

func printGraphText(names []string, bundle *configBundle) error {
	for _, name := range names {
		deps, err := bundle.graph.Dependencies(name)
		if err != nil {
			return err
		}
		fmt.Printf("%s -> %v\n", name, deps)
	}
	return nil
}

func printGraphJSON(names []string, bundle *configBundle) error {
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
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(tasks)
}
