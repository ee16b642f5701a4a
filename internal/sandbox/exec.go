package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/gatekit/gatekit/internal/logger"
)

// Result is the outcome of one sandboxed execution, independent of which
// backend produced it.
type Result struct {
	Stdout     string
	Stderr     string
	ExitCode   int
	HasExit    bool
	DurationMS int64
	TimedOut   bool
}

// NotAvailableError means the requested backend's external dependency
// (e.g. the bwrap binary) is missing from the host.
type NotAvailableError struct {
	Backend Backend
	Reason  string
}

func (e *NotAvailableError) Error() string {
	return fmt.Sprintf("sandbox backend %s not available: %s", e.Backend, e.Reason)
}

// Sandbox executes a command under one configured Config.
type Sandbox struct {
	config Config
}

// New builds a Sandbox bound to config.
func New(config Config) *Sandbox {
	return &Sandbox{config: config}
}

// Execute dispatches to the backend named by s.config.Backend, matching
// original_source/src/execution/sandbox.rs::Sandbox::execute.
func (s *Sandbox) Execute(ctx context.Context, program string, args []string, workingDir string, env map[string]string) (*Result, error) {
	switch s.config.Backend {
	case BackendNone:
		logger.Log("WARN", "sandbox", fmt.Sprintf("executing without sandbox: %s", program))
		return s.executeTimeout(ctx, program, args, workingDir, env)
	case BackendTimeout:
		return s.executeTimeout(ctx, program, args, workingDir, env)
	case BackendRestricted:
		return s.executeRestricted(ctx, program, args, workingDir, env)
	case BackendBubblewrap:
		return s.executeBubblewrap(ctx, program, args, workingDir, env)
	case BackendWasm:
		return s.executeWasm(ctx, program, args, workingDir, env)
	default:
		return s.executeTimeout(ctx, program, args, workingDir, env)
	}
}

// executeTimeout runs program under a plain timeout, no filesystem or
// resource isolation beyond what the OS gives every process.
func (s *Sandbox) executeTimeout(ctx context.Context, program string, args []string, workingDir string, env map[string]string) (*Result, error) {
	timeout := time.Duration(s.config.TimeoutMS) * time.Millisecond
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, program, args...)
	cmd.Dir = workingDir
	cmd.Env = mergedEnv(env)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	if runCtx.Err() == context.DeadlineExceeded {
		return &Result{Stderr: "execution timed out", DurationMS: s.config.TimeoutMS, TimedOut: true}, nil
	}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return &Result{
				Stdout:     stdout.String(),
				Stderr:     stderr.String(),
				ExitCode:   exitErr.ExitCode(),
				HasExit:    true,
				DurationMS: duration.Milliseconds(),
			}, nil
		}
		return nil, fmt.Errorf("sandbox: %w", err)
	}

	return &Result{
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		ExitCode:   0,
		HasExit:    true,
		DurationMS: duration.Milliseconds(),
	}, nil
}

// executeRestricted stages a clean environment (PATH only plus the
// caller's explicit env vars), blocks network via proxy-blackhole
// variables when disallowed, and applies rlimits through a platform
// hook (see rlimit_linux.go / rlimit_other.go) before running under the
// same timeout as executeTimeout. Grounded on
// original_source/src/execution/sandbox.rs::execute_restricted, ported
// from pre_exec+setrlimit to Go's SysProcAttr-free re-exec shim because
// os/exec has no pre_exec equivalent.
func (s *Sandbox) executeRestricted(ctx context.Context, program string, args []string, workingDir string, env map[string]string) (*Result, error) {
	sandboxDir, err := os.MkdirTemp("", "gatekit-sandbox-*")
	if err != nil {
		return nil, fmt.Errorf("sandbox: create sandbox dir: %w", err)
	}
	defer os.RemoveAll(sandboxDir)

	for _, src := range s.config.AllowRead {
		if err := copyIntoSandbox(src, sandboxDir); err != nil {
			logger.Log("WARN", "sandbox", fmt.Sprintf("failed to copy %s into sandbox: %v", src, err))
		}
	}

	timeout := time.Duration(s.config.TimeoutMS) * time.Millisecond
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, program, args...)
	cmd.Dir = sandboxDir

	restrictedEnv := []string{"PATH=" + os.Getenv("PATH")}
	for k, v := range env {
		restrictedEnv = append(restrictedEnv, k+"="+v)
	}
	if !s.config.AllowNetwork {
		restrictedEnv = append(restrictedEnv,
			"HTTP_PROXY=http://127.0.0.1:0",
			"HTTPS_PROXY=http://127.0.0.1:0",
			"ALL_PROXY=http://127.0.0.1:0",
		)
	}
	cmd.Env = restrictedEnv

	applyRlimits(cmd, s.config.MaxCPUSeconds, s.config.MaxMemoryBytes)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	if runCtx.Err() == context.DeadlineExceeded {
		return &Result{Stderr: "execution timed out", DurationMS: s.config.TimeoutMS, TimedOut: true}, nil
	}
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			return &Result{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: exitErr.ExitCode(), HasExit: true, DurationMS: duration.Milliseconds()}, nil
		}
		return nil, fmt.Errorf("sandbox: %w", runErr)
	}

	return &Result{Stdout: stdout.String(), Stderr: stderr.String(), HasExit: true, DurationMS: duration.Milliseconds()}, nil
}

// executeBubblewrap runs program inside a bwrap container with the exact
// argument sequence from original_source/src/execution/sandbox.rs::execute_bubblewrap.
func (s *Sandbox) executeBubblewrap(ctx context.Context, program string, args []string, workingDir string, env map[string]string) (*Result, error) {
	if !bubblewrapAvailable() {
		return nil, &NotAvailableError{Backend: BackendBubblewrap, Reason: "bwrap not found; install with your package manager's bubblewrap package"}
	}

	bwrapArgs := []string{
		"--unshare-all", "--share-net", "--die-with-parent",
		"--ro-bind", "/usr", "/usr",
		"--ro-bind", "/lib", "/lib",
		"--ro-bind", "/lib64", "/lib64",
		"--ro-bind", "/bin", "/bin",
		"--ro-bind", "/sbin", "/sbin",
		"--tmpfs", "/tmp", "--tmpfs", "/var",
		"--proc", "/proc", "--dev", "/dev",
		"--bind", workingDir, workingDir,
	}

	for _, p := range s.config.AllowRead {
		if pathExists(p) {
			bwrapArgs = append(bwrapArgs, "--ro-bind", p, p)
		}
	}
	for _, p := range s.config.AllowWrite {
		if pathExists(p) {
			bwrapArgs = append(bwrapArgs, "--bind", p, p)
		}
	}
	if !s.config.AllowNetwork {
		bwrapArgs = append(bwrapArgs, "--unshare-net")
	}

	bwrapArgs = append(bwrapArgs, "--chdir", workingDir)
	for k, v := range env {
		bwrapArgs = append(bwrapArgs, "--setenv", k, v)
	}
	bwrapArgs = append(bwrapArgs, program)
	bwrapArgs = append(bwrapArgs, args...)

	timeout := time.Duration(s.config.TimeoutMS) * time.Millisecond
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "bwrap", bwrapArgs...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Log("DEBUG", "sandbox", fmt.Sprintf("executing with bubblewrap: %v", cmd.Args))

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	if runCtx.Err() == context.DeadlineExceeded {
		return &Result{Stderr: "execution timed out", DurationMS: s.config.TimeoutMS, TimedOut: true}, nil
	}
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			return &Result{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: exitErr.ExitCode(), HasExit: true, DurationMS: duration.Milliseconds()}, nil
		}
		return nil, fmt.Errorf("sandbox: bubblewrap failed: %w", runErr)
	}

	return &Result{Stdout: stdout.String(), Stderr: stderr.String(), HasExit: true, DurationMS: duration.Milliseconds()}, nil
}

// executeWasm extracts the skill's JSON arguments from env (preferring
// SKILL_ARGS_JSON, falling back to reading the file named by
// SKILL_ARGS_FILE) and delegates to WasmSandbox, matching
// original_source/src/execution/sandbox.rs::execute_wasm.
func (s *Sandbox) executeWasm(ctx context.Context, program string, args []string, workingDir string, env map[string]string) (*Result, error) {
	if filepath.Ext(program) != ".wasm" {
		return nil, fmt.Errorf("sandbox: not a wasm file: %s", program)
	}

	inputJSON := "{}"
	if v, ok := env["SKILL_ARGS_JSON"]; ok {
		inputJSON = v
	} else if path, ok := env["SKILL_ARGS_FILE"]; ok {
		if data, err := os.ReadFile(path); err == nil {
			inputJSON = string(data)
		}
	}

	wasmSandbox := NewWasmSandbox(s.config)
	return wasmSandbox.Execute(ctx, program, inputJSON)
}

func bubblewrapAvailable() bool {
	_, err := exec.LookPath("bwrap")
	return err == nil
}

func pathExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

func copyIntoSandbox(src, sandboxDir string) error {
	info, err := os.Stat(src)
	if err != nil {
		return nil // original silently skips paths that don't exist
	}
	dest := filepath.Join(sandboxDir, filepath.Base(src))
	if info.IsDir() {
		return copyDirRecursive(src, dest)
	}
	return copyFile(src, dest)
}

func copyDirRecursive(src, dst string) error {
	if err := os.MkdirAll(dst, 0755); err != nil {
		return err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())
		if entry.IsDir() {
			if err := copyDirRecursive(srcPath, dstPath); err != nil {
				return err
			}
		} else if err := copyFile(srcPath, dstPath); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}

func mergedEnv(env map[string]string) []string {
	out := os.Environ()
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}
