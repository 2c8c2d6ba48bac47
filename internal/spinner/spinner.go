// Package spinner shows transient progress for operations that may take a
// while, falling back to a single status line when stdout isn't a
// terminal.
package spinner

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/briandowns/spinner"

	"github.com/cargopete/yatr/internal/logger"
)

// WaitFor runs fn, and prints msg to out if it takes longer than
// initialDelay to complete. On a TTY that's an animated spinner updated
// every 100ms; otherwise a single plain status line.
func WaitFor(ctx context.Context, fn func(), out io.Writer, msg string, initialDelay time.Duration) error {
	doneCh := make(chan struct{})
	go func() {
		fn()
		close(doneCh)
	}()

	if !logger.IsTTY {
		select {
		case <-ctx.Done():
			return nil
		case <-doneCh:
			return nil
		case <-time.After(initialDelay):
			fmt.Fprintln(out, msg)
		}
		select {
		case <-ctx.Done():
		case <-doneCh:
		}
		return nil
	}

	select {
	case <-ctx.Done():
		return nil
	case <-doneCh:
		return nil
	case <-time.After(initialDelay):
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(out))
	s.Suffix = " " + msg
	s.Start()
	defer s.Stop()

	select {
	case <-doneCh:
		return nil
	case <-ctx.Done():
		return nil
	}
}
