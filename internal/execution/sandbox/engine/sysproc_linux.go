//go:build linux

package engine

import (
	"errors"
	"syscall"

	"codeexec/internal/execution/sandbox/spec"

	"golang.org/x/sys/unix"
)

func buildSysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
}

// awaitExit blocks until pid has exited without reaping it.
func awaitExit(pid int) error {
	var info unix.Siginfo
	for {
		err := unix.Waitid(unix.P_PID, pid, &info, unix.WEXITED|unix.WNOWAIT, nil)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		return err
	}
}

// applyRlimits sets backstop limits on a started child: no core dumps and
// a CPU ceiling one second past the time limit.
func applyRlimits(pid int, limits spec.Limits) error {
	var errs []error
	core := unix.Rlimit{Cur: 0, Max: 0}
	if err := unix.Prlimit(pid, unix.RLIMIT_CORE, &core, nil); err != nil {
		errs = append(errs, err)
	}
	if limits.TimeLimitMs > 0 {
		seconds := uint64(limits.TimeLimitMs/1000) + 2
		cpu := unix.Rlimit{Cur: seconds, Max: seconds + 1}
		if err := unix.Prlimit(pid, unix.RLIMIT_CPU, &cpu, nil); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
