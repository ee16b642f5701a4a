//go:build linux

package sandbox

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"syscall"
)

const rlimitShimFlag = "-gatekit-sandbox-init"

// applyRlimits arranges for cmd, once started, to apply CPU/memory/open-file
// rlimits before it execs the target program. Go's os/exec has no
// pre_exec hook (unlike the original's unsafe Command::pre_exec), so this
// re-execs the gatekit binary itself as a thin shim: argv[0] becomes our
// own executable, and RunRlimitShim — which every gatekit entrypoint
// calls first thing in main(), before flag parsing — recognizes the
// sentinel flag, sets the limits with syscall.Setrlimit, and
// syscall.Exec's into the real target, replacing itself in place so
// cmd's pipes, Process, and Wait all still refer to one process.
func applyRlimits(cmd *exec.Cmd, maxCPUSeconds, maxMemoryBytes int64) {
	self, err := os.Executable()
	if err != nil {
		return
	}
	target := cmd.Path
	targetArgs := cmd.Args

	cmd.Path = self
	cmd.Args = append([]string{
		self,
		rlimitShimFlag,
		strconv.FormatInt(maxCPUSeconds, 10),
		strconv.FormatInt(maxMemoryBytes, 10),
		target,
	}, targetArgs[1:]...)
}

// RunRlimitShim must be called first thing in main(), before cobra ever
// sees os.Args. If argv[1] is the sandbox-init sentinel, it applies
// rlimits and execs into the real target; it never returns in that case.
func RunRlimitShim() {
	if len(os.Args) < 5 || os.Args[1] != rlimitShimFlag {
		return
	}

	cpuSeconds, _ := strconv.ParseInt(os.Args[2], 10, 64)
	memBytes, _ := strconv.ParseInt(os.Args[3], 10, 64)

	if cpuSeconds > 0 {
		limit := syscall.Rlimit{Cur: uint64(cpuSeconds), Max: uint64(cpuSeconds)}
		syscall.Setrlimit(syscall.RLIMIT_CPU, &limit)
	}
	if memBytes > 0 {
		limit := syscall.Rlimit{Cur: uint64(memBytes), Max: uint64(memBytes)}
		syscall.Setrlimit(syscall.RLIMIT_AS, &limit)
	}
	fileLimit := syscall.Rlimit{Cur: 64, Max: 64}
	syscall.Setrlimit(syscall.RLIMIT_NOFILE, &fileLimit)

	target := os.Args[4]
	targetArgs := os.Args[4:]

	if err := syscall.Exec(target, targetArgs, os.Environ()); err != nil {
		fmt.Fprintf(os.Stderr, "gatekit sandbox shim: exec %s failed: %v\n", target, err)
		os.Exit(127)
	}
}
