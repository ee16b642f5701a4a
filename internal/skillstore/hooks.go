package skillstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dop251/goja"

	"github.com/gatekit/gatekit/internal/catalog"
)

const hooksFileName = "hooks.js"

// Hooks drives optional hooks.js sibling scripts: a hooks.js file
// exporting preExec(args) -> args and postExec(result) -> result, run in
// a fresh goja VM per call that has the standard JavaScript built-ins
// (JSON among them) and no Go globals. Runtime runs them around the
// bundled tool of any skill whose directory contains hooks.js; the
// manifest's entrypoint value is not consulted. Gives the teacher's
// unused dop251/goja dependency a concrete home.
type Hooks struct{}

// NewHooks builds a Hooks driver. There is no state to hold: every call
// gets its own VM.
func NewHooks() *Hooks { return &Hooks{} }

// HasHooks reports whether skillDir has a hooks.js sibling file.
func (h *Hooks) HasHooks(skillDir string) bool {
	_, err := os.Stat(filepath.Join(skillDir, hooksFileName))
	return err == nil
}

// RunPreExec runs hooks.js's preExec(args) function, if present, and
// returns its (possibly adjusted) return value. A hooks.js with no
// preExec export is a no-op.
func (h *Hooks) RunPreExec(skillDir string, args map[string]interface{}) (map[string]interface{}, error) {
	vm, err := h.load(skillDir)
	if err != nil {
		return args, err
	}

	fn, ok := goja.AssertFunction(vm.Get("preExec"))
	if !ok {
		return args, nil
	}

	argsValue, err := toJSValue(vm, args)
	if err != nil {
		return args, err
	}

	result, err := fn(goja.Undefined(), argsValue)
	if err != nil {
		return args, fmt.Errorf("skillstore: preExec hook: %w", err)
	}

	var out map[string]interface{}
	if err := fromJSValue(result, &out); err != nil {
		return args, fmt.Errorf("skillstore: preExec hook returned non-object: %w", err)
	}
	return out, nil
}

// RunPostExec runs hooks.js's postExec(result) function, if present.
func (h *Hooks) RunPostExec(skillDir string, result *catalog.ToolResult) (*catalog.ToolResult, error) {
	vm, err := h.load(skillDir)
	if err != nil {
		return result, err
	}

	fn, ok := goja.AssertFunction(vm.Get("postExec"))
	if !ok {
		return result, nil
	}

	resultValue, err := toJSValue(vm, result)
	if err != nil {
		return result, err
	}

	out, err := fn(goja.Undefined(), resultValue)
	if err != nil {
		return result, fmt.Errorf("skillstore: postExec hook: %w", err)
	}

	var adjusted catalog.ToolResult
	if err := fromJSValue(out, &adjusted); err != nil {
		return result, fmt.Errorf("skillstore: postExec hook returned malformed result: %w", err)
	}
	return &adjusted, nil
}

// load builds a fresh goja.Runtime and evaluates skillDir's hooks.js in
// it; the VM has the standard JavaScript built-ins and no Go globals.
func (h *Hooks) load(skillDir string) (*goja.Runtime, error) {
	src, err := os.ReadFile(filepath.Join(skillDir, hooksFileName))
	if err != nil {
		return nil, fmt.Errorf("skillstore: read hooks.js: %w", err)
	}

	vm := goja.New()
	if _, err := vm.RunScript(hooksFileName, string(src)); err != nil {
		return nil, fmt.Errorf("skillstore: evaluate hooks.js: %w", err)
	}
	return vm, nil
}

func toJSValue(vm *goja.Runtime, v interface{}) (goja.Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("skillstore: marshal hook argument: %w", err)
	}
	var parsed interface{}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, err
	}
	return vm.ToValue(parsed), nil
}

func fromJSValue(v goja.Value, out interface{}) error {
	exported := v.Export()
	data, err := json.Marshal(exported)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
