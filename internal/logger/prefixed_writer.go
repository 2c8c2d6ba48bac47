package logger

import (
	"bytes"
	"io"
)

// PrefixedWriter prepends prefix to every line written to it, splitting on
// '\n' the way a terminal would, so a single Write call containing several
// lines of a task's captured output gets the prefix repeated per line.
type PrefixedWriter struct {
	underlying io.Writer
	prefix     string
}

// NewPrefixedWriter wraps underlying so every line written through it is
// tagged with prefix, used to keep concurrently-run tasks' output visually
// distinguishable when printed together.
func NewPrefixedWriter(prefix string, underlying io.Writer) *PrefixedWriter {
	return &PrefixedWriter{underlying: underlying, prefix: prefix}
}

func (w *PrefixedWriter) Write(payload []byte) (int, error) {
	var buf bytes.Buffer
	newLine := true
	for _, b := range payload {
		if newLine {
			buf.WriteString(w.prefix)
			newLine = false
		}
		buf.WriteByte(b)
		if b == '\n' {
			newLine = true
		}
	}
	if _, err := w.underlying.Write(buf.Bytes()); err != nil {
		return 0, err
	}
	return len(payload), nil
}
