package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"gotest.tools/v3/assert"
)

func TestWatcher_FiresOnMatchingChange(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "src", "main.go")
	assert.NilError(t, os.MkdirAll(filepath.Dir(target), 0o755))
	assert.NilError(t, os.WriteFile(target, []byte("package main"), 0o644))

	w, err := New(dir, []string{"src/**/*.go"}, 50*time.Millisecond, nil)
	assert.NilError(t, err)
	defer w.Close()
	assert.NilError(t, w.Start())

	time.Sleep(50 * time.Millisecond)
	assert.NilError(t, os.WriteFile(target, []byte("package main // changed"), 0o644))

	select {
	case ev := <-w.Events():
		assert.Assert(t, len(ev.Paths) > 0)
	case err := <-w.Errors():
		t.Fatalf("unexpected watch error: %v", err)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for debounced event")
	}
}

func TestWatcher_IgnoresNonMatchingChange(t *testing.T) {
	dir := t.TempDir()
	ignored := filepath.Join(dir, "README.md")
	assert.NilError(t, os.WriteFile(ignored, []byte("hello"), 0o644))

	w, err := New(dir, []string{"*.go"}, 50*time.Millisecond, nil)
	assert.NilError(t, err)
	defer w.Close()
	assert.NilError(t, w.Start())

	time.Sleep(50 * time.Millisecond)
	assert.NilError(t, os.WriteFile(ignored, []byte("hello again"), 0o644))

	select {
	case ev := <-w.Events():
		t.Fatalf("unexpected event for non-matching change: %v", ev.Paths)
	case <-time.After(300 * time.Millisecond):
	}
}
