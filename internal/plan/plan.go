// Package plan partitions a task graph into stages: groups of tasks with no
// dependency relationship between them, ordered so every dependency of a
// task appears in an earlier stage.
package plan

import (
	"sort"

	"github.com/cargopete/yatr/internal/graph"
)

// Stage is a set of task names with no dependency edges between them,
// sorted for deterministic output.
type Stage struct {
	Tasks []string
}

// ExecutionPlan is the ordered sequence of stages required to run target
// (and, transitively, everything it depends on).
type ExecutionPlan struct {
	Target string
	Stages []Stage
}

// Build computes the execution plan for target using Kahn's algorithm,
// restricted to target's ancestor set so unrelated tasks never appear in
// the plan. Each peeled layer of zero-remaining-in-degree tasks becomes one
// stage; this is the same ordering a semaphore-gated dag.Walk produces, but
// made explicit and inspectable up front for `plan`/`list --format json`
// and dry-run rendering.
func Build(g *graph.TaskGraph, target string) (*ExecutionPlan, error) {
	scope, err := g.Subgraph(target)
	if err != nil {
		return nil, err
	}
	deps := g.EdgesWithin(scope)

	inDegree := make(map[string]int, len(scope))
	dependents := make(map[string][]string, len(scope))
	for name := range scope {
		inDegree[name] = len(deps[name])
		for _, dep := range deps[name] {
			dependents[dep] = append(dependents[dep], name)
		}
	}

	plan := &ExecutionPlan{Target: target}
	remaining := len(scope)
	for remaining > 0 {
		var ready []string
		for name, degree := range inDegree {
			if degree == 0 {
				ready = append(ready, name)
			}
		}
		if len(ready) == 0 {
			// EdgesWithin/Subgraph are derived from an already-validated,
			// acyclic TaskGraph, so this can only happen if the caller
			// passes an inconsistent graph/target pairing.
			return nil, &StalledPlanError{Target: target}
		}
		sort.Strings(ready)

		for _, name := range ready {
			delete(inDegree, name)
			for _, dependent := range dependents[name] {
				inDegree[dependent]--
			}
		}
		plan.Stages = append(plan.Stages, Stage{Tasks: ready})
		remaining -= len(ready)
	}

	return plan, nil
}

// StalledPlanError indicates Build could not make progress peeling stages,
// which signals a bug in graph construction rather than a user error.
type StalledPlanError struct {
	Target string
}

func (e *StalledPlanError) Error() string {
	return "could not compute execution plan for " + e.Target + ": no task became ready"
}

// AllTasks flattens the plan's stages into a single ordered task list.
func (p *ExecutionPlan) AllTasks() []string {
	var out []string
	for _, stage := range p.Stages {
		out = append(out, stage.Tasks...)
	}
	return out
}
