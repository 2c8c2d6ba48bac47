// Package graph builds the task dependency graph and validates it before
// any execution plan is derived from it.
package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pyr-sh/dag"
	"github.com/pkg/errors"

	"github.com/cargopete/yatr/internal/config"
)

// rootNodeName is a synthetic vertex that every task without dependencies
// has an edge to (edges point from a task to its dependencies), so every
// dependency chain ends at one shared vertex. It is left out of every task
// list this package returns.
const rootNodeName = "\x00ROOT"

// CyclicDependencyError is returned when the task graph contains a cycle.
// Witness is a human-readable path through the cycle, e.g. "a -> b -> c -> a".
type CyclicDependencyError struct {
	Witness string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("cyclic dependency detected: %s", e.Witness)
}

// TaskNotFoundError is returned when a task references a dependency, or a
// caller requests a task, that isn't defined in the configuration.
type TaskNotFoundError struct {
	Name string
}

func (e *TaskNotFoundError) Error() string {
	return fmt.Sprintf("task not found: %s", e.Name)
}

// TaskGraph is the dependency graph over a Config's tasks.
type TaskGraph struct {
	cfg   *config.Config
	dag   dag.AcyclicGraph
	tasks map[string]*config.TaskConfig
}

// New builds a TaskGraph from a Config, validating that every dependency
// named by a task actually exists and that the resulting graph is acyclic.
func New(cfg *config.Config) (*TaskGraph, error) {
	g := &TaskGraph{
		cfg:   cfg,
		tasks: make(map[string]*config.TaskConfig, len(cfg.Tasks)),
	}

	for name := range cfg.Tasks {
		task := cfg.Tasks[name]
		g.tasks[name] = task
		g.dag.Add(name)
	}
	g.dag.Add(rootNodeName)

	for name, task := range g.tasks {
		if len(task.DependsOn) == 0 {
			g.dag.Connect(dag.BasicEdge(name, rootNodeName))
			continue
		}
		for _, dep := range task.DependsOn {
			if _, ok := g.tasks[dep]; !ok {
				return nil, &TaskNotFoundError{Name: dep}
			}
			g.dag.Connect(dag.BasicEdge(name, dep))
		}
	}

	if err := validate(&g.dag); err != nil {
		return nil, err
	}

	return g, nil
}

// validate checks for cycles and self-referential edges, producing a
// witness path for the first cycle found. Uses Cycles() rather than
// Validate() because this graph legitimately has multiple roots.
func validate(g *dag.AcyclicGraph) error {
	if cycles := g.Cycles(); len(cycles) > 0 {
		cycle := cycles[0]
		vertices := make([]string, 0, len(cycle)+1)
		for _, v := range cycle {
			vertices = append(vertices, v.(string))
		}
		if len(vertices) > 0 {
			vertices = append(vertices, vertices[0])
		}
		return &CyclicDependencyError{Witness: strings.Join(vertices, " -> ")}
	}
	for _, e := range g.Edges() {
		if e.Source() == e.Target() {
			return &CyclicDependencyError{Witness: fmt.Sprintf("%s -> %s", e.Source(), e.Target())}
		}
	}
	return nil
}

// HasTask reports whether name is a defined task.
func (g *TaskGraph) HasTask(name string) bool {
	_, ok := g.tasks[name]
	return ok
}

// Task returns the configuration for a defined task.
func (g *TaskGraph) Task(name string) (*config.TaskConfig, error) {
	task, ok := g.tasks[name]
	if !ok {
		return nil, &TaskNotFoundError{Name: name}
	}
	return task, nil
}

// Dependencies returns the direct dependencies of a task, sorted.
func (g *TaskGraph) Dependencies(name string) ([]string, error) {
	if !g.HasTask(name) {
		return nil, &TaskNotFoundError{Name: name}
	}
	var deps []string
	for dep := range g.dag.DownEdges(name) {
		if s, ok := dep.(string); ok && s != rootNodeName {
			deps = append(deps, s)
		}
	}
	sort.Strings(deps)
	return deps, nil
}

// Dependents returns the tasks that directly depend on name, sorted.
func (g *TaskGraph) Dependents(name string) ([]string, error) {
	if !g.HasTask(name) {
		return nil, &TaskNotFoundError{Name: name}
	}
	var dependents []string
	for dep := range g.dag.UpEdges(name) {
		if s, ok := dep.(string); ok {
			dependents = append(dependents, s)
		}
	}
	sort.Strings(dependents)
	return dependents, nil
}

// Ancestors returns every task transitively required to run name, sorted,
// excluding the synthetic root node.
func (g *TaskGraph) Ancestors(name string) ([]string, error) {
	if !g.HasTask(name) {
		return nil, &TaskNotFoundError{Name: name}
	}
	raw, err := g.dag.Ancestors(name)
	if err != nil {
		return nil, errors.Wrapf(err, "computing ancestors of %s", name)
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && s != rootNodeName {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out, nil
}

// AllTasksOrdered returns every defined task name in deterministic
// (lexical) order, independent of dependency structure.
func (g *TaskGraph) AllTasksOrdered() []string {
	names := make([]string, 0, len(g.tasks))
	for name := range g.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Subgraph restricts the graph to target and its ancestors, returning the
// set of task names reachable from target (inclusive).
func (g *TaskGraph) Subgraph(target string) (map[string]struct{}, error) {
	if !g.HasTask(target) {
		return nil, &TaskNotFoundError{Name: target}
	}
	ancestors, err := g.Ancestors(target)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(ancestors)+1)
	set[target] = struct{}{}
	for _, a := range ancestors {
		set[a] = struct{}{}
	}
	return set, nil
}

// EdgesWithin returns the direct-dependency edges (task -> dependency)
// among the given set of task names, used by the plan package to build
// in-degree counts without re-touching the dag.
func (g *TaskGraph) EdgesWithin(names map[string]struct{}) map[string][]string {
	edges := make(map[string][]string, len(names))
	for name := range names {
		var deps []string
		for dep := range g.dag.DownEdges(name) {
			if s, ok := dep.(string); ok && s != rootNodeName {
				if _, ok := names[s]; ok {
					deps = append(deps, s)
				}
			}
		}
		sort.Strings(deps)
		edges[name] = deps
	}
	return edges
}
