//go:build !linux

package sandbox

import "os/exec"

// applyRlimits is a no-op outside Linux: RLIMIT_AS/RLIMIT_CPU enforcement
// via setrlimit is a Linux-specific technique in the original too (its
// execute_restricted falls back to timeout-only "on this platform" for
// non-unix targets); the restricted backend here degrades the same way,
// relying on the timeout and memory ceilings of whatever container or VM
// the process already runs in.
func applyRlimits(cmd *exec.Cmd, maxCPUSeconds, maxMemoryBytes int64) {}

// RunRlimitShim is a no-op outside Linux — there is no rlimit shim to run.
func RunRlimitShim() {}
