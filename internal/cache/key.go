package cache

import (
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/gobwas/glob"
	"github.com/pkg/errors"
	"lukechampine.com/blake3"
)

// keyLength is the number of hex characters the BLAKE3 digest is truncated
// to.
const keyLength = 16

// computeKey hashes a task's name, commands/script, sorted env vars, and
// the content of any `sources`-matched files into a single BLAKE3 digest.
func computeKey(inputs TaskInputs) (string, error) {
	h := blake3.New(32, nil)

	if _, err := io.WriteString(h, inputs.Name); err != nil {
		return "", err
	}
	for _, cmd := range inputs.Run {
		if _, err := io.WriteString(h, cmd); err != nil {
			return "", err
		}
	}
	if inputs.Script != "" {
		if _, err := io.WriteString(h, inputs.Script); err != nil {
			return "", err
		}
	}

	keys := make([]string, 0, len(inputs.Env))
	for k := range inputs.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		io.WriteString(h, k)
		io.WriteString(h, inputs.Env[k])
	}

	if len(inputs.Sources) > 0 {
		sourceHash, err := hashSources(inputs.SourceRoot, inputs.Sources)
		if err != nil {
			return "", errors.Wrap(err, "hashing sources")
		}
		io.WriteString(h, sourceHash)
	}

	sum := h.Sum(nil)
	return hexString(sum)[:keyLength], nil
}

// hashSources walks root matching each file against the compiled glob
// patterns and folds every matched file's content into a single digest.
// Matched paths are sorted first so the result is independent of
// filesystem iteration order.
func hashSources(root string, patterns []string) (string, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return "", errors.Wrapf(err, "invalid source pattern %q", p)
		}
		globs = append(globs, g)
	}

	var matched []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)
		for _, g := range globs {
			if g.Match(rel) {
				matched = append(matched, path)
				break
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	sort.Strings(matched)

	h := blake3.New(32, nil)
	for _, path := range matched {
		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		_, copyErr := io.Copy(h, f)
		f.Close()
		if copyErr != nil {
			return "", copyErr
		}
	}
	return hexString(h.Sum(nil)), nil
}

const hexDigits = "0123456789abcdef"

func hexString(b []byte) string {
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hexDigits[v>>4]
		out[i*2+1] = hexDigits[v&0x0f]
	}
	return string(out)
}
