package cache

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gotest.tools/v3/assert"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(t.TempDir())
	assert.NilError(t, err)
	return c
}

func TestGet_MissWhenEmpty(t *testing.T) {
	c := newTestCache(t)
	_, hit, err := c.Get(TaskInputs{Name: "build", Run: []string{"echo hi"}})
	assert.NilError(t, err)
	assert.Assert(t, !hit)
}

func TestPutThenGet_Hit(t *testing.T) {
	c := newTestCache(t)
	inputs := TaskInputs{Name: "build", Run: []string{"echo hi"}}

	assert.NilError(t, c.Put(inputs, "hello world\n", 42*time.Millisecond))

	out, hit, err := c.Get(inputs)
	assert.NilError(t, err)
	assert.Assert(t, hit)
	assert.Equal(t, out, "hello world\n")
}

func TestKey_DiffersWithEnvAndCommands(t *testing.T) {
	c := newTestCache(t)
	base := TaskInputs{Name: "build", Run: []string{"echo hi"}}
	withEnv := TaskInputs{Name: "build", Run: []string{"echo hi"}, Env: map[string]string{"FOO": "bar"}}
	otherCmd := TaskInputs{Name: "build", Run: []string{"echo bye"}}

	k1, err := c.Key(base)
	assert.NilError(t, err)
	k2, err := c.Key(withEnv)
	assert.NilError(t, err)
	k3, err := c.Key(otherCmd)
	assert.NilError(t, err)

	assert.Assert(t, k1 != k2)
	assert.Assert(t, k1 != k3)
	assert.Equal(t, len(k1), keyLength)
}

func TestKey_SensitiveToSourceContent(t *testing.T) {
	dir := t.TempDir()
	assert.NilError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main"), 0o644))

	c := newTestCache(t)
	inputs := TaskInputs{Name: "build", Run: []string{"go build"}, Sources: []string{"*.go"}, SourceRoot: dir}

	k1, err := c.Key(inputs)
	assert.NilError(t, err)

	assert.NilError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main // changed"), 0o644))
	k2, err := c.Key(inputs)
	assert.NilError(t, err)

	assert.Assert(t, k1 != k2)
}

func TestInvalidateAndClear(t *testing.T) {
	c := newTestCache(t)
	inputs := TaskInputs{Name: "build", Run: []string{"echo hi"}}
	assert.NilError(t, c.Put(inputs, "out", time.Millisecond))

	assert.NilError(t, c.Invalidate(inputs))
	_, hit, err := c.Get(inputs)
	assert.NilError(t, err)
	assert.Assert(t, !hit)

	assert.NilError(t, c.Put(inputs, "out", time.Millisecond))
	stats, err := c.StatsOf()
	assert.NilError(t, err)
	assert.Equal(t, stats.Entries, 1)

	assert.NilError(t, c.Clear())
	stats, err = c.StatsOf()
	assert.NilError(t, err)
	assert.Equal(t, stats.Entries, 0)
}

func TestStats_Format(t *testing.T) {
	assert.Equal(t, Stats{Entries: 3, TotalSize: 512, CacheDir: "/tmp/x"}.Format(), "3 entries, 512B total (/tmp/x)")
	assert.Equal(t, Stats{Entries: 1, TotalSize: 2048, CacheDir: "/tmp/x"}.Format(), "1 entries, 2.0KB total (/tmp/x)")
	assert.Equal(t, Stats{Entries: 1, TotalSize: 5 * 1024 * 1024, CacheDir: "/tmp/x"}.Format(), "1 entries, 5.0MB total (/tmp/x)")
}

func TestGet_MalformedMetadataFails(t *testing.T) {
	c := newTestCache(t)
	inputs := TaskInputs{Name: "build", Run: []string{"echo hi"}}
	key, err := c.Key(inputs)
	assert.NilError(t, err)

	assert.NilError(t, os.WriteFile(c.blobPath(key), []byte("out"), 0o644))
	assert.NilError(t, os.WriteFile(c.metaPath(key), []byte("not json"), 0o644))

	_, hit, err := c.Get(inputs)
	assert.Assert(t, !hit)
	assert.ErrorContains(t, err, "invalid metadata")
	var cacheErr *Error
	assert.Assert(t, errors.As(err, &cacheErr))
}

func TestDisabledCache(t *testing.T) {
	c := Disabled()
	inputs := TaskInputs{Name: "build", Run: []string{"echo hi"}}
	assert.NilError(t, c.Put(inputs, "out", time.Millisecond))
	_, hit, err := c.Get(inputs)
	assert.NilError(t, err)
	assert.Assert(t, !hit)
}
