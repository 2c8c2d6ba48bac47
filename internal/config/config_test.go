package config

import (
	"os"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"
)

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "yatr.toml")
	assert.NilError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoad_Basic(t *testing.T) {
	path := writeTemp(t, `
[env]
FOO = "bar"

[tasks.build]
commands = ["echo build"]

[tasks.test]
depends = ["build"]
commands = ["echo test"]
sources = ["**/*.go"]
`)

	cfg, err := Load(path)
	assert.NilError(t, err)
	assert.Equal(t, cfg.Env["FOO"], "bar")
	assert.Equal(t, len(cfg.Tasks), 2)
	assert.DeepEqual(t, cfg.Tasks["test"].DependsOn, []string{"build"})
	assert.Equal(t, cfg.Tasks["build"].Cwd, cfg.Root)
	assert.Equal(t, cfg.CacheEnabled, true)
	assert.Equal(t, cfg.WatchDebounceMs, 300)
}

func TestLoad_RejectsRunAndScript(t *testing.T) {
	path := writeTemp(t, `
[tasks.bad]
commands = ["echo hi"]
script = "print('hi')"
`)

	_, err := Load(path)
	var invalid *InvalidTaskError
	assert.Assert(t, err != nil)
	assert.ErrorContains(t, err, "declares both run and script")
	_ = invalid
}

func TestLoad_RejectsNeitherRunScriptNorDepends(t *testing.T) {
	path := writeTemp(t, `
[tasks.bad]
`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "declares neither run, script, nor depends")
}

func TestLoad_AllowsDependsOnlyTask(t *testing.T) {
	path := writeTemp(t, `
[tasks.build]
commands = ["echo build"]

[tasks.meta]
depends = ["build"]
`)

	cfg, err := Load(path)
	assert.NilError(t, err)
	assert.DeepEqual(t, cfg.Tasks["meta"].DependsOn, []string{"build"})
}

func TestLoad_CacheDisabledGlobally(t *testing.T) {
	path := writeTemp(t, `
[settings]
cache = false

[tasks.build]
commands = ["echo build"]
`)

	cfg, err := Load(path)
	assert.NilError(t, err)
	assert.Equal(t, cfg.CacheEnabled, false)
}

func TestLoad_NoCacheTaskField(t *testing.T) {
	path := writeTemp(t, `
[tasks.build]
commands = ["echo build"]
no_cache = true
`)

	cfg, err := Load(path)
	assert.NilError(t, err)
	assert.Equal(t, cfg.Tasks["build"].NoCache, true)
}

func TestDiscover_WalksUpward(t *testing.T) {
	root := t.TempDir()
	assert.NilError(t, os.WriteFile(filepath.Join(root, "yatr.toml"), []byte("[tasks.build]\ncommands=[\"x\"]\n"), 0o644))
	nested := filepath.Join(root, "a", "b", "c")
	assert.NilError(t, os.MkdirAll(nested, 0o755))

	found, err := Discover(nested)
	assert.NilError(t, err)
	assert.Equal(t, found, filepath.Join(root, "yatr.toml"))
}

func TestDiscover_NotFound(t *testing.T) {
	_, err := Discover(t.TempDir())
	var notFound *NotFoundError
	assert.Assert(t, err != nil)
	_ = notFound
}
