package script

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Masterminds/semver"
	"github.com/dop251/goja"
	"github.com/gobwas/glob"
	"github.com/pelletier/go-toml/v2"
)

// adapter holds the per-invocation state (working directory, environment
// overlay, captured output) that the bound builtins close over.
type adapter struct {
	env map[string]string
	cwd string
	out *strings.Builder
}

func (a *adapter) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(a.cwd, path)
}

// bind attaches every builtin named in the script adapter contract onto
// the runtime's global object.
func bind(vm *goja.Runtime, a *adapter) error {
	set := func(name string, fn func(goja.FunctionCall) goja.Value) error {
		return vm.Set(name, fn)
	}

	throw := func(vm *goja.Runtime, err error) goja.Value {
		panic(vm.ToValue(err.Error()))
	}

	if err := set("print", func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		a.out.WriteString(strings.Join(parts, " "))
		a.out.WriteString("\n")
		return goja.Undefined()
	}); err != nil {
		return err
	}

	if err := set("read_file", func(call goja.FunctionCall) goja.Value {
		path := call.Argument(0).String()
		b, err := os.ReadFile(a.resolve(path))
		if err != nil {
			return throw(vm, err)
		}
		return vm.ToValue(string(b))
	}); err != nil {
		return err
	}

	if err := set("write_file", func(call goja.FunctionCall) goja.Value {
		path := call.Argument(0).String()
		contents := call.Argument(1).String()
		if err := os.WriteFile(a.resolve(path), []byte(contents), 0o644); err != nil {
			return throw(vm, err)
		}
		return goja.Undefined()
	}); err != nil {
		return err
	}

	if err := set("file_exists", func(call goja.FunctionCall) goja.Value {
		_, err := os.Stat(a.resolve(call.Argument(0).String()))
		return vm.ToValue(err == nil)
	}); err != nil {
		return err
	}

	if err := set("is_file", func(call goja.FunctionCall) goja.Value {
		info, err := os.Stat(a.resolve(call.Argument(0).String()))
		return vm.ToValue(err == nil && !info.IsDir())
	}); err != nil {
		return err
	}

	if err := set("is_dir", func(call goja.FunctionCall) goja.Value {
		info, err := os.Stat(a.resolve(call.Argument(0).String()))
		return vm.ToValue(err == nil && info.IsDir())
	}); err != nil {
		return err
	}

	if err := set("mkdir", func(call goja.FunctionCall) goja.Value {
		if err := os.MkdirAll(a.resolve(call.Argument(0).String()), 0o755); err != nil {
			return throw(vm, err)
		}
		return goja.Undefined()
	}); err != nil {
		return err
	}

	if err := set("rmdir", func(call goja.FunctionCall) goja.Value {
		if err := os.RemoveAll(a.resolve(call.Argument(0).String())); err != nil {
			return throw(vm, err)
		}
		return goja.Undefined()
	}); err != nil {
		return err
	}

	if err := set("list_dir", func(call goja.FunctionCall) goja.Value {
		entries, err := os.ReadDir(a.resolve(call.Argument(0).String()))
		if err != nil {
			return throw(vm, err)
		}
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		return vm.ToValue(names)
	}); err != nil {
		return err
	}

	if err := set("join_path", func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		return vm.ToValue(filepath.Join(parts...))
	}); err != nil {
		return err
	}

	if err := set("parent_path", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(filepath.Dir(call.Argument(0).String()))
	}); err != nil {
		return err
	}

	if err := set("file_name", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(filepath.Base(call.Argument(0).String()))
	}); err != nil {
		return err
	}

	if err := set("extension", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(strings.TrimPrefix(filepath.Ext(call.Argument(0).String()), "."))
	}); err != nil {
		return err
	}

	if err := set("exec", func(call goja.FunctionCall) goja.Value {
		commandLine := call.Argument(0).String()
		cmd := exec.Command("sh", "-c", commandLine)
		cmd.Dir = a.cwd
		cmd.Env = append(os.Environ(), flattenEnv(a.env)...)
		out, err := cmd.CombinedOutput()
		if err != nil {
			return throw(vm, err)
		}
		return vm.ToValue(string(out))
	}); err != nil {
		return err
	}

	if err := set("get_env", func(call goja.FunctionCall) goja.Value {
		key := call.Argument(0).String()
		if v, ok := a.env[key]; ok {
			return vm.ToValue(v)
		}
		return vm.ToValue(os.Getenv(key))
	}); err != nil {
		return err
	}

	if err := set("set_env", func(call goja.FunctionCall) goja.Value {
		a.env[call.Argument(0).String()] = call.Argument(1).String()
		return goja.Undefined()
	}); err != nil {
		return err
	}

	if err := set("glob", func(call goja.FunctionCall) goja.Value {
		pattern := call.Argument(0).String()
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return throw(vm, err)
		}
		var matches []string
		_ = filepath.Walk(a.cwd, func(path string, info os.FileInfo, err error) error {
			if err != nil || info.IsDir() {
				return nil
			}
			rel, relErr := filepath.Rel(a.cwd, path)
			if relErr != nil {
				rel = path
			}
			rel = filepath.ToSlash(rel)
			if g.Match(rel) {
				matches = append(matches, rel)
			}
			return nil
		})
		return vm.ToValue(matches)
	}); err != nil {
		return err
	}

	if err := set("parse_json", func(call goja.FunctionCall) goja.Value {
		var v interface{}
		if err := json.Unmarshal([]byte(call.Argument(0).String()), &v); err != nil {
			return throw(vm, err)
		}
		return vm.ToValue(v)
	}); err != nil {
		return err
	}

	if err := set("to_json", func(call goja.FunctionCall) goja.Value {
		b, err := json.Marshal(call.Argument(0).Export())
		if err != nil {
			return throw(vm, err)
		}
		return vm.ToValue(string(b))
	}); err != nil {
		return err
	}

	if err := set("parse_toml", func(call goja.FunctionCall) goja.Value {
		var v map[string]interface{}
		if err := toml.Unmarshal([]byte(call.Argument(0).String()), &v); err != nil {
			return throw(vm, err)
		}
		return vm.ToValue(v)
	}); err != nil {
		return err
	}

	if err := set("semver_bump", func(call goja.FunctionCall) goja.Value {
		version := call.Argument(0).String()
		part := call.Argument(1).String()
		v, err := semver.NewVersion(version)
		if err != nil {
			return throw(vm, err)
		}
		var bumped semver.Version
		switch part {
		case "major":
			bumped = v.IncMajor()
		case "minor":
			bumped = v.IncMinor()
		case "patch":
			bumped = v.IncPatch()
		default:
			return throw(vm, errInvalidBumpPart(part))
		}
		return vm.ToValue(bumped.String())
	}); err != nil {
		return err
	}

	return nil
}

func flattenEnv(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

type bumpPartError struct{ part string }

func (e *bumpPartError) Error() string {
	return "invalid semver_bump part " + strconv.Quote(e.part) + ": want major, minor, or patch"
}

func errInvalidBumpPart(part string) error {
	return &bumpPartError{part: part}
}
