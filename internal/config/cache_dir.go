package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

// ResolveCacheDir returns the directory cache entries should be written to:
// the project's configured settings.cache_dir if set (resolved relative to
// Root), otherwise a per-user cache directory named after the project
// root.
func (c *Config) ResolveCacheDir() (string, error) {
	if c.CacheDir != "" {
		if filepath.IsAbs(c.CacheDir) {
			return c.CacheDir, nil
		}
		return filepath.Join(c.Root, c.CacheDir), nil
	}
	return xdg.CacheFile(filepath.Join("yatr", projectSlug(c.Root)))
}

// projectSlug derives a stable, filesystem-safe identifier for a project
// root so unrelated projects don't collide in the shared user cache dir.
func projectSlug(root string) string {
	base := filepath.Base(root)
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "default"
	}
	return base
}
