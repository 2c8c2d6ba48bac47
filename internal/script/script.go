// Package script embeds a capability-restricted scripting runtime for the
// `script` task field. Each invocation gets a fresh goja.Runtime with a
// fixed set of builtins bound onto its global object; no state or runtime
// is ever shared across tasks.
package script

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/pkg/errors"
)

// FailedError wraps a script's failure (a thrown exception, a syntax
// error, or exceeding its resource bounds) per the ScriptFailed taxonomy
// entry.
type FailedError struct {
	Err error
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("script failed: %v", e.Err)
}

func (e *FailedError) Unwrap() error { return e.Err }

// maxRuntime bounds how long a single script may run before it is
// interrupted, independent of any task-level timeout, so a runaway script
// can't hang a stage indefinitely even with TimeoutSeconds unset.
const maxRuntime = 5 * time.Minute

// Execute runs script in a fresh runtime with env exposed via get_env and
// cwd as the working directory seen by file and exec builtins. It returns
// everything written via the print builtin, each line newline-terminated,
// as the task's captured output.
func Execute(ctx context.Context, body string, env map[string]string, cwd string) (string, error) {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.UncapFieldNameMapper())

	var output strings.Builder
	adapter := &adapter{env: env, cwd: cwd, out: &output}
	if err := bind(vm, adapter); err != nil {
		return "", errors.Wrap(err, "binding script builtins")
	}

	// spec.md: "The script environment also exposes two injected
	// variables: a mapping env populated from the caller's env, and a
	// string cwd", distinct from the get_env/set_env builtins.
	if err := vm.Set("env", env); err != nil {
		return "", errors.Wrap(err, "binding env global")
	}
	if err := vm.Set("cwd", cwd); err != nil {
		return "", errors.Wrap(err, "binding cwd global")
	}

	done := make(chan struct{})
	runCtx, cancel := context.WithTimeout(ctx, maxRuntime)
	defer cancel()

	go func() {
		select {
		case <-runCtx.Done():
			vm.Interrupt("timed out")
		case <-done:
		}
	}()

	_, err := vm.RunString(body)
	close(done)
	if err != nil {
		return output.String(), &FailedError{Err: err}
	}
	return output.String(), nil
}
