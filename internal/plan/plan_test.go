package plan

import (
	"testing"

	"gotest.tools/v3/assert"

	"github.com/cargopete/yatr/internal/config"
	"github.com/cargopete/yatr/internal/graph"
)

func buildGraph(t *testing.T, tasks map[string][]string) *graph.TaskGraph {
	t.Helper()
	cfg := &config.Config{Tasks: map[string]*config.TaskConfig{}}
	for name, deps := range tasks {
		cfg.Tasks[name] = &config.TaskConfig{Name: name, DependsOn: deps}
	}
	g, err := graph.New(cfg)
	assert.NilError(t, err)
	return g
}

func TestBuild_Diamond(t *testing.T) {
	g := buildGraph(t, map[string][]string{
		"compile": nil,
		"test":    {"compile"},
		"lint":    {"compile"},
		"deploy":  {"test", "lint"},
	})

	p, err := Build(g, "deploy")
	assert.NilError(t, err)
	assert.Equal(t, len(p.Stages), 3)
	assert.DeepEqual(t, p.Stages[0].Tasks, []string{"compile"})
	assert.DeepEqual(t, p.Stages[1].Tasks, []string{"lint", "test"})
	assert.DeepEqual(t, p.Stages[2].Tasks, []string{"deploy"})
}

func TestBuild_RestrictsToAncestors(t *testing.T) {
	g := buildGraph(t, map[string][]string{
		"build":     nil,
		"unrelated": nil,
	})

	p, err := Build(g, "build")
	assert.NilError(t, err)
	assert.Equal(t, len(p.AllTasks()), 1)
	assert.Equal(t, p.AllTasks()[0], "build")
}
