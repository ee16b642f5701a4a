package sandbox

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/gatekit/gatekit/internal/logger"
)

// WasmModuleInfo summarizes a module's imports and exports as reported by
// Inspect, mirroring original_source/src/execution/wasm.rs::WasmModuleInfo.
type WasmModuleInfo struct {
	Imports         []string `json:"imports"`
	Exports         []string `json:"exports"`
	HasRunExport    bool     `json:"has_run_export"`
	HasMemoryExport bool     `json:"has_memory_export"`
}

// WasmSandbox executes a WASM module exporting `memory` and
// `run(i32, i32) -> i32`. Grounded on
// original_source/src/execution/wasm.rs, retargeted from
// wasmtime+wasi-common+cap-std to tetratelabs/wazero — the only WASM
// runtime in the example pack's go.mod — since that is a pure-Go runtime
// with no cgo/libwasmtime dependency to wire into a Go build.
//
// wazero has no public fuel-counter API equivalent to wasmtime's
// consume_fuel/set_fuel, so CPU-time limiting here is approximated with
// a wall-clock deadline derived the same way the original derives its
// fuel budget (max_cpu_seconds), rather than a true instruction-count
// budget. This is a deliberate, documented simplification: the
// observable contract (timed_out=true, stderr describing a CPU-limit
// trap) is preserved even though the enforcement mechanism differs.
type WasmSandbox struct {
	config Config
}

// NewWasmSandbox builds a WasmSandbox bound to config.
func NewWasmSandbox(config Config) *WasmSandbox {
	return &WasmSandbox{config: config}
}

// Execute runs wasmPath's `run` export against inputJSON and returns a
// Result shaped identically to the other backends.
func (w *WasmSandbox) Execute(ctx context.Context, wasmPath string, inputJSON string) (*Result, error) {
	if _, err := os.Stat(wasmPath); err != nil {
		return nil, fmt.Errorf("sandbox: wasm file not found: %s", wasmPath)
	}

	cpuDeadline := time.Duration(w.config.MaxCPUSeconds) * time.Second
	if cpuDeadline <= 0 {
		cpuDeadline = time.Duration(w.config.TimeoutMS) * time.Millisecond
	}
	runCtx, cancel := context.WithTimeout(ctx, cpuDeadline)
	defer cancel()

	start := time.Now()
	result, err := w.executeBlocking(runCtx, wasmPath, inputJSON)
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return &Result{
				Stderr:     "execution ran out of fuel (CPU limit exceeded)",
				DurationMS: w.config.TimeoutMS,
				TimedOut:   true,
			}, nil
		}
		return nil, err
	}
	result.DurationMS = time.Since(start).Milliseconds()
	return result, nil
}

func (w *WasmSandbox) executeBlocking(ctx context.Context, wasmPath, inputJSON string) (*Result, error) {
	runtimeConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if w.config.MaxMemoryBytes > 0 {
		pages := uint32((w.config.MaxMemoryBytes + 65535) / 65536)
		runtimeConfig = runtimeConfig.WithMemoryLimitPages(pages)
	}

	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeConfig)
	defer runtime.Close(ctx)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
		return nil, fmt.Errorf("sandbox: link WASI: %w", err)
	}

	wasmBytes, err := os.ReadFile(wasmPath)
	if err != nil {
		return nil, fmt.Errorf("sandbox: read wasm module: %w", err)
	}

	moduleConfig := wazero.NewModuleConfig().WithStdout(os.Stdout).WithStderr(os.Stderr)

	fsConfig := wazero.NewFSConfig()
	mounted := false
	for _, dir := range w.config.AllowRead {
		if info, statErr := os.Stat(dir); statErr == nil && info.IsDir() {
			logger.Log("DEBUG", "sandbox", fmt.Sprintf("adding wasm preopen for read: %s", dir))
			fsConfig = fsConfig.WithReadOnlyDirMount(dir, filepath.Base(dir))
			mounted = true
		}
	}
	if mounted {
		moduleConfig = moduleConfig.WithFSConfig(fsConfig)
	}

	module, err := runtime.InstantiateWithConfig(ctx, wasmBytes, moduleConfig)
	if err != nil {
		return nil, fmt.Errorf("sandbox: instantiate wasm module: %w", err)
	}
	defer module.Close(ctx)

	runFn := module.ExportedFunction("run")
	if runFn == nil {
		return nil, fmt.Errorf("sandbox: wasm module must export 'run(i32,i32)->i32'")
	}
	mem := module.Memory()
	if mem == nil {
		return nil, fmt.Errorf("sandbox: wasm module must export 'memory'")
	}

	inputBytes := []byte(inputJSON)
	inputPtr, err := allocateMemory(ctx, module, mem, uint32(len(inputBytes)))
	if err != nil {
		return nil, err
	}
	if !mem.Write(inputPtr, inputBytes) {
		return nil, fmt.Errorf("sandbox: input too large for wasm memory")
	}

	results, err := runFn.Call(ctx, uint64(inputPtr), uint64(len(inputBytes)))
	if err != nil {
		return nil, fmt.Errorf("sandbox: wasm execution failed: %w", err)
	}
	outputPtr := uint32(results[0])

	output, err := readStringFromMemory(mem, outputPtr)
	if err != nil {
		return nil, err
	}

	return &Result{Stdout: output, HasExit: true, ExitCode: 0}, nil
}

// allocateMemory tries a `malloc(i32)->i32` export first (the common
// convention), then falls back to growing linear memory directly, then
// to a fixed post-data-section offset — matching
// original_source/src/execution/wasm.rs::allocate_memory exactly.
func allocateMemory(ctx context.Context, module api.Module, mem api.Memory, size uint32) (uint32, error) {
	if malloc := module.ExportedFunction("malloc"); malloc != nil {
		results, err := malloc.Call(ctx, uint64(size))
		if err == nil && len(results) == 1 {
			return uint32(results[0]), nil
		}
	}

	const wasmPageSize = 65536
	currentSize := mem.Size()
	neededPages := (size + wasmPageSize - 1) / wasmPageSize
	currentPages := currentSize / wasmPageSize

	if _, ok := mem.Grow(neededPages); ok {
		return currentPages * wasmPageSize, nil
	}

	return 16 * 1024, nil
}

// readStringFromMemory reads a 4-byte little-endian length prefix
// followed by that many UTF-8 bytes, matching
// original_source/src/execution/wasm.rs::read_string_from_memory.
func readStringFromMemory(mem api.Memory, ptr uint32) (string, error) {
	header, ok := mem.Read(ptr, 4)
	if !ok {
		return "", fmt.Errorf("sandbox: invalid wasm memory pointer")
	}
	length := binary.LittleEndian.Uint32(header)

	data, ok := mem.Read(ptr+4, length)
	if !ok {
		return "", fmt.Errorf("sandbox: wasm string exceeds memory bounds")
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("sandbox: invalid utf-8 in wasm output")
	}
	return string(data), nil
}

// Validate reports whether wasmPath exports both `run` and `memory`.
func Validate(ctx context.Context, wasmPath string) error {
	info, err := Inspect(ctx, wasmPath)
	if err != nil {
		return err
	}
	if !info.HasRunExport {
		return fmt.Errorf("sandbox: wasm module must export 'run' function")
	}
	if !info.HasMemoryExport {
		return fmt.Errorf("sandbox: wasm module must export 'memory'")
	}
	return nil
}

// Inspect loads wasmPath and reports its imports/exports without
// executing it. No gatekit command or manage() operation calls it.
func Inspect(ctx context.Context, wasmPath string) (*WasmModuleInfo, error) {
	runtime := wazero.NewRuntime(ctx)
	defer runtime.Close(ctx)

	wasmBytes, err := os.ReadFile(wasmPath)
	if err != nil {
		return nil, fmt.Errorf("sandbox: read wasm module: %w", err)
	}

	compiled, err := runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("sandbox: load wasm module: %w", err)
	}
	defer compiled.Close(ctx)

	info := &WasmModuleInfo{}
	for _, fn := range compiled.ImportedFunctions() {
		moduleName, name, _ := fn.Import()
		info.Imports = append(info.Imports, moduleName+"."+name)
	}
	for name, fn := range compiled.ExportedFunctions() {
		_ = fn
		info.Exports = append(info.Exports, name)
	}
	if len(compiled.ExportedMemories()) > 0 {
		info.HasMemoryExport = true
	}
	for _, name := range info.Exports {
		if name == "run" {
			info.HasRunExport = true
		}
	}
	return info, nil
}
