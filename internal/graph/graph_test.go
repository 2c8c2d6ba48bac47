package graph

import (
	"errors"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/cargopete/yatr/internal/config"
)

func cfgWithTasks(tasks map[string][]string) *config.Config {
	cfg := &config.Config{Tasks: map[string]*config.TaskConfig{}}
	for name, deps := range tasks {
		cfg.Tasks[name] = &config.TaskConfig{Name: name, DependsOn: deps}
	}
	return cfg
}

func TestNew_LinearChain(t *testing.T) {
	cfg := cfgWithTasks(map[string][]string{
		"build": {"compile"},
		"compile": nil,
		"deploy": {"build"},
	})

	g, err := New(cfg)
	assert.NilError(t, err)

	deps, err := g.Dependencies("build")
	assert.NilError(t, err)
	assert.DeepEqual(t, deps, []string{"compile"})

	ancestors, err := g.Ancestors("deploy")
	assert.NilError(t, err)
	assert.DeepEqual(t, ancestors, []string{"build", "compile"})
}

func TestNew_MissingDependency(t *testing.T) {
	cfg := cfgWithTasks(map[string][]string{
		"build": {"does-not-exist"},
	})

	_, err := New(cfg)
	assert.ErrorContains(t, err, "task not found")
}

func TestNew_CycleDetected(t *testing.T) {
	cfg := cfgWithTasks(map[string][]string{
		"a": {"b"},
		"b": {"c"},
		"c": {"a"},
	})

	_, err := New(cfg)
	assert.ErrorContains(t, err, "cyclic dependency detected")

	var cycleErr *CyclicDependencyError
	ok := errors.As(err, &cycleErr)
	assert.Assert(t, ok)
	assert.Assert(t, len(cycleErr.Witness) > 0)
}

func TestDependents(t *testing.T) {
	cfg := cfgWithTasks(map[string][]string{
		"build": nil,
		"test":  {"build"},
		"lint":  {"build"},
	})
	g, err := New(cfg)
	assert.NilError(t, err)

	dependents, err := g.Dependents("build")
	assert.NilError(t, err)
	assert.DeepEqual(t, dependents, []string{"lint", "test"})
}

func TestSubgraph(t *testing.T) {
	cfg := cfgWithTasks(map[string][]string{
		"build":   nil,
		"test":    {"build"},
		"deploy":  {"test"},
		"unrelated": nil,
	})
	g, err := New(cfg)
	assert.NilError(t, err)

	sub, err := g.Subgraph("deploy")
	assert.NilError(t, err)
	assert.Equal(t, len(sub), 3)
	_, ok := sub["unrelated"]
	assert.Assert(t, !ok)
}
